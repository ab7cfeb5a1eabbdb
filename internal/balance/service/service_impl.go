package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/complyscan/complyscan/internal/balance/domain"
	"github.com/complyscan/complyscan/internal/clock"
	"github.com/complyscan/complyscan/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Catalog *config.CatalogHolder
	Repo    domain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	catalog *config.CatalogHolder
	repo    domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("balance.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		catalog: p.Catalog,
		repo:    p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, userID string) (domain.BalanceRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.BalanceRecord{}, domain.ErrInvalidUser
	}

	record, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.BalanceRecord{}, err
	}
	if record != nil {
		return *record, nil
	}

	if err := s.ensureRecord(ctx, s.db, userID); err != nil {
		return domain.BalanceRecord{}, err
	}

	record, err = s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.BalanceRecord{}, err
	}
	if record == nil {
		return domain.BalanceRecord{}, domain.ErrInvalidUser
	}
	return *record, nil
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.UsageEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.ListUsage(ctx, s.db, userID, limit)
}

func (s *Service) Debit(ctx context.Context, req domain.DebitRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return domain.ErrInvalidUser
	}
	if req.Credits <= 0 {
		return domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	today := clock.Date(now)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.ApplyDebit(ctx, tx, req.UserID, req.Credits, today, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInsufficientBalance
		}

		return s.repo.InsertUsage(ctx, tx, &domain.UsageEntry{
			ID:            s.genID.Generate(),
			UserID:        req.UserID,
			ScanKind:      req.ScanKind,
			Credits:       req.Credits,
			DocumentLabel: strings.TrimSpace(req.DocumentLabel),
			CreatedAt:     now,
		})
	})
}

func (s *Service) Grant(ctx context.Context, req domain.GrantRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return domain.ErrInvalidUser
	}
	if req.Credits <= 0 {
		return domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureRecord(ctx, tx, req.UserID); err != nil {
			return err
		}
		return s.repo.ApplyGrant(ctx, tx, req.UserID, req.Credits, req.AmountCents, now)
	})
}

// GrantTx applies a grant inside the caller's transaction. The grant
// reconciler uses this to keep the idempotency-ledger insert and the balance
// update atomic.
func (s *Service) GrantTx(ctx context.Context, tx *gorm.DB, req domain.GrantRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return domain.ErrInvalidUser
	}
	if req.Credits <= 0 {
		return domain.ErrInvalidAmount
	}
	if err := s.ensureRecord(ctx, tx, req.UserID); err != nil {
		return err
	}
	return s.repo.ApplyGrant(ctx, tx, req.UserID, req.Credits, req.AmountCents, s.clock.Now())
}

func (s *Service) ensureRecord(ctx context.Context, tx *gorm.DB, userID string) error {
	now := s.clock.Now()
	created, err := s.repo.InsertStarter(ctx, tx, &domain.BalanceRecord{
		UserID:    userID,
		Balance:   s.catalog.Get().StarterCredits,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return err
	}
	if created {
		s.log.Info("initialized starter balance", zap.String("user_id", userID))
	}
	return nil
}
