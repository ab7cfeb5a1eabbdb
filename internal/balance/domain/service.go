package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type DebitRequest struct {
	UserID        string
	ScanKind      string
	Credits       int64
	DocumentLabel string
}

type GrantRequest struct {
	UserID      string
	Credits     int64
	AmountCents int64
}

type Service interface {
	// Get returns the user's balance record, lazily creating it with the
	// starter grant on first access.
	Get(ctx context.Context, userID string) (BalanceRecord, error)

	History(ctx context.Context, userID string, limit int) ([]UsageEntry, error)

	// Debit commits a spend and appends the usage entry in one transaction.
	// The balance guard fails closed: ErrInsufficientBalance means nothing
	// was written.
	Debit(ctx context.Context, req DebitRequest) error

	// Grant adds credits from a confirmed payment.
	Grant(ctx context.Context, req GrantRequest) error

	// GrantTx is Grant running inside the caller's transaction, so a grant
	// and its idempotency-ledger insert commit or roll back together.
	GrantTx(ctx context.Context, tx *gorm.DB, req GrantRequest) error
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInsufficientBalance = errors.New("insufficient_balance")
)
