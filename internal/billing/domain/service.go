package domain

import (
	"context"
	"net/http"
)

type SyncedSession struct {
	SessionID   string `json:"session_id"`
	Credits     int64  `json:"credits"`
	AmountCents int64  `json:"amount_cents"`
	Applied     bool   `json:"applied"`
}

type SyncResult struct {
	SessionsProcessed int             `json:"sessions_processed"`
	CreditsAdded      int64           `json:"credits_added"`
	Balance           int64           `json:"balance"`
	Sessions          []SyncedSession `json:"sessions"`
}

// Service converts billing-provider truth into balance grants with
// exactly-once effect per session.
type Service interface {
	// ProcessEvent applies one verified event. Returns false without error
	// when the event was a duplicate or requires no balance mutation.
	ProcessEvent(ctx context.Context, event *GrantEvent) (bool, error)

	// SyncFromProvider replays the provider's recent completed sessions for
	// the user. Safe to call repeatedly; already-applied sessions are
	// skipped by the ledger.
	SyncFromProvider(ctx context.Context, userID string) (SyncResult, error)
}

// WebhookService is the push-path entry point.
type WebhookService interface {
	// IngestWebhook verifies, parses and applies one delivery. Returns
	// false without error for ignored event types and duplicates, which the
	// transport layer acknowledges as success.
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (bool, error)
}
