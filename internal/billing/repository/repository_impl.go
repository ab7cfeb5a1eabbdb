package repository

import (
	"context"

	"github.com/complyscan/complyscan/internal/billing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertGrant(ctx context.Context, db *gorm.DB, record *domain.GrantRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO billing_grants (
			id, provider, provider_session_id, provider_event_id,
			user_id, credits, amount_cents, applied_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_session_id) DO NOTHING`,
		record.ID,
		record.Provider,
		record.ProviderSessionID,
		record.ProviderEventID,
		record.UserID,
		record.Credits,
		record.AmountCents,
		record.AppliedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListGrantsByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.GrantRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.GrantRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_session_id, provider_event_id,
			user_id, credits, amount_cents, applied_at
		 FROM billing_grants
		 WHERE user_id = ?
		 ORDER BY applied_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
