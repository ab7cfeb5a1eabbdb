package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	EventTypePaymentSucceeded      = "payment.succeeded"
	EventTypeSubscriptionCancelled = "subscription.cancelled"
)

// GrantEvent is a provider-agnostic billing notification after signature
// verification and parsing. For payment events the session identifier is the
// idempotency key: one session converts into at most one grant.
type GrantEvent struct {
	Provider          string
	ProviderEventID   string
	ProviderSessionID string
	Type              string
	UserID            string
	Credits           int64
	AmountCents       int64
	OccurredAt        time.Time
	RawPayload        []byte
}

// GrantRecord is the idempotency ledger. The unique (provider,
// provider_session_id) index is what makes redelivery and push/pull overlap
// safe.
type GrantRecord struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	Provider          string       `gorm:"type:text;not null;uniqueIndex:ux_billing_grants_session,priority:1" json:"provider"`
	ProviderSessionID string       `gorm:"type:text;not null;uniqueIndex:ux_billing_grants_session,priority:2" json:"provider_session_id"`
	ProviderEventID   string       `gorm:"type:text;not null;default:''" json:"provider_event_id"`
	UserID            string       `gorm:"type:text;not null;index" json:"user_id"`
	Credits           int64        `gorm:"not null" json:"credits"`
	AmountCents       int64        `gorm:"not null;default:0" json:"amount_cents"`
	AppliedAt         time.Time    `gorm:"not null" json:"applied_at"`
}

// TableName sets the database table name.
func (GrantRecord) TableName() string { return "billing_grants" }

// BillingAdapter verifies and parses one provider's webhook payloads.
type BillingAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*GrantEvent, error)
}

type AdapterConfig struct {
	WebhookSecret string
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (BillingAdapter, error)
}

// CheckoutSession is one completed checkout as reported by the provider's
// query API, used by the pull-sync path.
type CheckoutSession struct {
	ID            string
	UserID        string
	Credits       int64
	AmountCents   int64
	PaymentStatus string
	Created       time.Time
}

// CheckoutLister queries the billing provider for recent checkout sessions.
type CheckoutLister interface {
	ListRecentSessions(ctx context.Context, limit int) ([]CheckoutSession, error)
}

var (
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_provider_config")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrMalformedEvent   = errors.New("malformed_event")
	ErrEventIgnored     = errors.New("event_ignored")
)
