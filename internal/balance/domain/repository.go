package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*BalanceRecord, error)

	// InsertStarter creates the record with the starter balance if it does
	// not exist yet. Returns true when this call created the record.
	InsertStarter(ctx context.Context, db *gorm.DB, record *BalanceRecord) (bool, error)

	// ApplyDebit decrements the balance and updates the daily counter in a
	// single guarded statement. Returns false when the guard rejected the
	// update (insufficient balance or missing record); no row is changed in
	// that case.
	ApplyDebit(ctx context.Context, db *gorm.DB, userID string, credits int64, today string, now time.Time) (bool, error)

	// ApplyGrant increments the balance in a single atomic statement.
	ApplyGrant(ctx context.Context, db *gorm.DB, userID string, credits, amountCents int64, grantedAt time.Time) error

	InsertUsage(ctx context.Context, db *gorm.DB, entry *UsageEntry) error
	ListUsage(ctx context.Context, db *gorm.DB, userID string, limit int) ([]UsageEntry, error)
}
