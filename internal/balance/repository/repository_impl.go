package repository

import (
	"context"
	"time"

	"github.com/complyscan/complyscan/internal/balance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.BalanceRecord, error) {
	var item domain.BalanceRecord
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, balance, lifetime_spent_cents, daily_scan_count,
			last_scan_date, last_grant_at, created_at, updated_at
		 FROM balance_records
		 WHERE user_id = ?
		 LIMIT 1`,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.UserID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertStarter(ctx context.Context, db *gorm.DB, record *domain.BalanceRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO balance_records (
			user_id, balance, lifetime_spent_cents, daily_scan_count,
			last_scan_date, last_grant_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		record.UserID,
		record.Balance,
		record.LifetimeSpentCents,
		record.DailyScanCount,
		record.LastScanDate,
		record.LastGrantAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ApplyDebit is a single guarded UPDATE so concurrent debits for the same
// user cannot lose updates or drive the balance negative. The daily counter
// resets to 1 when the day-of-record changes and increments otherwise, in
// the same statement.
func (r *repo) ApplyDebit(ctx context.Context, db *gorm.DB, userID string, credits int64, today string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE balance_records
		 SET balance = balance - ?,
			daily_scan_count = CASE WHEN last_scan_date = ? THEN daily_scan_count + 1 ELSE 1 END,
			last_scan_date = ?,
			updated_at = ?
		 WHERE user_id = ? AND balance >= ?`,
		credits,
		today,
		today,
		now,
		userID,
		credits,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ApplyGrant(ctx context.Context, db *gorm.DB, userID string, credits, amountCents int64, grantedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE balance_records
		 SET balance = balance + ?,
			lifetime_spent_cents = lifetime_spent_cents + ?,
			last_grant_at = ?,
			updated_at = ?
		 WHERE user_id = ?`,
		credits,
		amountCents,
		grantedAt,
		grantedAt,
		userID,
	).Error
}

func (r *repo) InsertUsage(ctx context.Context, db *gorm.DB, entry *domain.UsageEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_entries (
			id, user_id, scan_kind, credits, document_label, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.ScanKind,
		entry.Credits,
		entry.DocumentLabel,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListUsage(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.UsageEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.UsageEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, scan_kind, credits, document_label, metadata, created_at
		 FROM usage_entries
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
