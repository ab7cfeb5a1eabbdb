package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	balancedomain "github.com/complyscan/complyscan/internal/balance/domain"
	"github.com/complyscan/complyscan/internal/billing/domain"
	"github.com/complyscan/complyscan/internal/clock"
	"github.com/complyscan/complyscan/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const syncSessionLimit = 10

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Balance  balancedomain.Service
	Repo     domain.Repository
	Checkout domain.CheckoutLister `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	metrics  *metrics.Metrics
	balance  balancedomain.Service
	repo     domain.Repository
	checkout domain.CheckoutLister
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("billing.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		metrics:  p.Metrics,
		balance:  p.Balance,
		repo:     p.Repo,
		checkout: p.Checkout,
	}
}

func (s *Service) ProcessEvent(ctx context.Context, event *domain.GrantEvent) (bool, error) {
	if event == nil {
		return false, domain.ErrInvalidEvent
	}

	switch event.Type {
	case domain.EventTypeSubscriptionCancelled:
		// Credits already paid for are retained; only future grants stop.
		s.log.Info("subscription cancelled, retaining balance",
			zap.String("provider", event.Provider),
			zap.String("provider_session_id", event.ProviderSessionID),
		)
		return false, nil
	case domain.EventTypePaymentSucceeded:
		return s.applyGrant(ctx, event)
	default:
		return false, domain.ErrInvalidEvent
	}
}

// applyGrant writes the ledger row and the balance update in one
// transaction. A ledger conflict means the session was already applied; the
// balance is left untouched and the caller sees a clean duplicate.
func (s *Service) applyGrant(ctx context.Context, event *domain.GrantEvent) (bool, error) {
	if strings.TrimSpace(event.UserID) == "" || event.Credits <= 0 {
		return false, domain.ErrMalformedEvent
	}
	if strings.TrimSpace(event.ProviderSessionID) == "" {
		return false, domain.ErrMalformedEvent
	}

	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertGrant(ctx, tx, &domain.GrantRecord{
			ID:                s.genID.Generate(),
			Provider:          event.Provider,
			ProviderSessionID: event.ProviderSessionID,
			ProviderEventID:   event.ProviderEventID,
			UserID:            event.UserID,
			Credits:           event.Credits,
			AmountCents:       event.AmountCents,
			AppliedAt:         s.clock.Now(),
		})
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}

		applied = true
		return s.balance.GrantTx(ctx, tx, balancedomain.GrantRequest{
			UserID:      event.UserID,
			Credits:     event.Credits,
			AmountCents: event.AmountCents,
		})
	})
	if err != nil {
		return false, err
	}

	if applied {
		s.metrics.RecordGrantApplied(ctx, event.Provider)
		s.log.Info("grant applied",
			zap.String("provider", event.Provider),
			zap.String("provider_session_id", event.ProviderSessionID),
			zap.String("user_id", event.UserID),
			zap.Int64("credits", event.Credits),
		)
	} else {
		s.metrics.RecordGrantDuplicate(ctx, event.Provider)
		s.log.Info("grant already applied, skipping",
			zap.String("provider", event.Provider),
			zap.String("provider_session_id", event.ProviderSessionID),
		)
	}
	return applied, nil
}

func (s *Service) SyncFromProvider(ctx context.Context, userID string) (domain.SyncResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.SyncResult{}, balancedomain.ErrInvalidUser
	}
	if s.checkout == nil {
		return domain.SyncResult{}, domain.ErrProviderNotFound
	}

	sessions, err := s.checkout.ListRecentSessions(ctx, syncSessionLimit)
	if err != nil {
		return domain.SyncResult{}, err
	}

	result := domain.SyncResult{Sessions: []domain.SyncedSession{}}
	for _, session := range sessions {
		if session.UserID != userID || session.PaymentStatus != "paid" || session.Credits <= 0 {
			continue
		}

		applied, err := s.applyGrant(ctx, &domain.GrantEvent{
			Provider:          "stripe",
			ProviderSessionID: session.ID,
			Type:              domain.EventTypePaymentSucceeded,
			UserID:            session.UserID,
			Credits:           session.Credits,
			AmountCents:       session.AmountCents,
			OccurredAt:        session.Created,
		})
		if err != nil {
			return domain.SyncResult{}, err
		}

		result.SessionsProcessed++
		if applied {
			result.CreditsAdded += session.Credits
		}
		result.Sessions = append(result.Sessions, domain.SyncedSession{
			SessionID:   session.ID,
			Credits:     session.Credits,
			AmountCents: session.AmountCents,
			Applied:     applied,
		})
	}

	record, err := s.balance.Get(ctx, userID)
	if err != nil {
		return domain.SyncResult{}, err
	}
	result.Balance = record.Balance
	return result, nil
}
