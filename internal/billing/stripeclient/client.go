// Package stripeclient queries the Stripe API for recent checkout sessions.
// It backs the pull-sync path only; webhooks remain the primary delivery.
package stripeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/complyscan/complyscan/internal/billing/domain"
	"github.com/complyscan/complyscan/internal/config"
	"go.uber.org/zap"
)

type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

var _ domain.CheckoutLister = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func New(cfg config.BillingConfig, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		secretKey:  cfg.StripeSecretKey,
		baseURL:    strings.TrimRight(cfg.StripeAPIBaseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.Named("billing.stripeclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sessionList struct {
	Data []checkoutSession `json:"data"`
}

type checkoutSession struct {
	ID            string            `json:"id"`
	AmountTotal   int64             `json:"amount_total"`
	Created       int64             `json:"created"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

func (c *Client) ListRecentSessions(ctx context.Context, limit int) ([]domain.CheckoutSession, error) {
	if limit <= 0 {
		limit = 10
	}

	url := fmt.Sprintf("%s/v1/checkout/sessions?limit=%d", c.baseURL, limit)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create sessions request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list checkout sessions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("list checkout sessions: status %d: %s", resp.StatusCode, string(body))
	}

	var list sessionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode sessions response: %w", err)
	}

	sessions := make([]domain.CheckoutSession, 0, len(list.Data))
	for _, item := range list.Data {
		credits, err := strconv.ParseInt(strings.TrimSpace(item.Metadata["credits"]), 10, 64)
		if err != nil {
			credits = 0
		}
		sessions = append(sessions, domain.CheckoutSession{
			ID:            item.ID,
			UserID:        strings.TrimSpace(item.Metadata["userId"]),
			Credits:       credits,
			AmountCents:   item.AmountTotal,
			PaymentStatus: item.PaymentStatus,
			Created:       time.Unix(item.Created, 0).UTC(),
		})
	}
	return sessions, nil
}
