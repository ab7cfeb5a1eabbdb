package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertGrant appends to the idempotency ledger. Returns false when the
	// (provider, session) pair was already recorded; no row is written in
	// that case.
	InsertGrant(ctx context.Context, db *gorm.DB, record *GrantRecord) (bool, error)

	ListGrantsByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]GrantRecord, error)
}
