package server

import (
	"errors"
	"net/http"

	analyzerdomain "github.com/complyscan/complyscan/internal/analyzer/domain"
	balancedomain "github.com/complyscan/complyscan/internal/balance/domain"
	billingdomain "github.com/complyscan/complyscan/internal/billing/domain"
	identitydomain "github.com/complyscan/complyscan/internal/identity/domain"
	scandomain "github.com/complyscan/complyscan/internal/scan/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrNotFound        = errors.New("not_found")
	ErrTooManyRequests = errors.New("too_many_requests")
	ErrInternal        = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}

	// Admission denials carry the action the user can take.
	case errors.Is(err, scandomain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_balance",
			Message: "not enough credits for this scan",
			Action:  "purchase more credits",
		}
	case errors.Is(err, scandomain.ErrDailyLimitReached):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "daily_limit_reached",
			Message: "daily scan limit reached",
			Action:  "wait for the daily reset",
		}
	case errors.Is(err, scandomain.ErrUnknownScanKind):
		return http.StatusBadRequest, errorPayload{
			Type:    "unknown_scan_kind",
			Message: "unknown scan kind",
		}

	case errors.Is(err, ErrUnauthorized), errors.Is(err, identitydomain.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, billingdomain.ErrProviderNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, balancedomain.ErrInvalidUser),
		errors.Is(err, balancedomain.ErrInvalidAmount),
		errors.Is(err, analyzerdomain.ErrEmptyDocument),
		errors.Is(err, billingdomain.ErrInvalidProvider),
		errors.Is(err, billingdomain.ErrInvalidSignature),
		errors.Is(err, billingdomain.ErrInvalidPayload),
		errors.Is(err, billingdomain.ErrInvalidEvent),
		errors.Is(err, billingdomain.ErrMalformedEvent):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}

	case errors.Is(err, analyzerdomain.ErrProviderRateLimit),
		errors.Is(err, analyzerdomain.ErrProviderDown),
		errors.Is(err, analyzerdomain.ErrProviderAuth),
		errors.Is(err, analyzerdomain.ErrProviderBadRequest):
		return http.StatusBadGateway, errorPayload{
			Type:    "analysis_failed",
			Message: "failed to analyze document",
		}

	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog labels request errors for the access log.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	class := "server_error"
	if status < http.StatusInternalServerError {
		class = "client_error"
	}
	return class, payload.Type
}
