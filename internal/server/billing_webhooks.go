package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// IngestBillingWebhook handles provider push deliveries. Duplicates and
// ignored event types are acknowledged with 200 so the provider stops
// retrying; verification and parse failures return 4xx and stay eligible for
// provider-side retry.
func (s *Server) IngestBillingWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	applied, err := s.webhookSvc.IngestWebhook(
		c.Request.Context(),
		c.Param("provider"),
		payload,
		c.Request.Header,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "applied": applied})
}
