package service

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/complyscan/complyscan/internal/clock"
	"github.com/complyscan/complyscan/internal/identity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func New(p Params) domain.Verifier {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("identity.service"),
		clock: p.Clock,
	}
}

func (s *Service) Verify(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.ErrUnauthorized
	}

	hash := domain.HashToken(token)
	now := s.clock.Now()

	var record struct {
		ID        snowflake.ID `gorm:"column:id"`
		UserID    string       `gorm:"column:user_id"`
		TokenHash string       `gorm:"column:token_hash"`
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, user_id, token_hash
		 FROM api_tokens
		 WHERE token_hash = ?
		   AND is_active = true
		   AND (expires_at IS NULL OR expires_at > ?)
		 LIMIT 1`,
		hash,
		now,
	).Scan(&record).Error
	if err != nil {
		return "", err
	}

	if record.ID == 0 || subtle.ConstantTimeCompare([]byte(record.TokenHash), []byte(hash)) != 1 {
		return "", domain.ErrUnauthorized
	}
	return record.UserID, nil
}
