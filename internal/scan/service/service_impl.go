package service

import (
	"context"
	"strings"

	analyzerdomain "github.com/complyscan/complyscan/internal/analyzer/domain"
	balancedomain "github.com/complyscan/complyscan/internal/balance/domain"
	"github.com/complyscan/complyscan/internal/clock"
	"github.com/complyscan/complyscan/internal/config"
	"github.com/complyscan/complyscan/internal/observability/metrics"
	"github.com/complyscan/complyscan/internal/quota"
	"github.com/complyscan/complyscan/internal/scan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Catalog  *config.CatalogHolder
	Metrics  *metrics.Metrics
	Balance  balancedomain.Service
	Analyzer analyzerdomain.Analyzer
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	catalog  *config.CatalogHolder
	metrics  *metrics.Metrics
	balance  balancedomain.Service
	analyzer analyzerdomain.Analyzer
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("scan.service"),
		clock:    p.Clock,
		catalog:  p.Catalog,
		metrics:  p.Metrics,
		balance:  p.Balance,
		analyzer: p.Analyzer,
	}
}

func (s *Service) Scan(ctx context.Context, req domain.ScanRequest) (domain.ScanResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return domain.ScanResult{}, balancedomain.ErrInvalidUser
	}

	// Admission always runs against a fresh read of the balance record.
	record, err := s.balance.Get(ctx, req.UserID)
	if err != nil {
		return domain.ScanResult{}, err
	}

	catalog := s.catalog.Get()
	today := clock.Date(s.clock.Now())
	decision := quota.Decide(record, req.ScanKind, catalog, today)
	if !decision.Admit {
		s.metrics.RecordScanDenied(ctx, req.ScanKind, decision.Reason)
		return domain.ScanResult{}, denialError(decision.Reason)
	}

	analysis, err := s.analyzer.Analyze(ctx, analyzerdomain.Request{
		ScanKind:      req.ScanKind,
		DocumentText:  req.DocumentText,
		DocumentLabel: req.DocumentLabel,
	})
	if err != nil {
		// The user is never charged for a failed analysis.
		return domain.ScanResult{}, err
	}

	result := domain.ScanResult{
		ScanKind:       req.ScanKind,
		CreditsCharged: decision.Cost,
		Balance:        record.Balance - decision.Cost,
		Analysis:       analysis,
	}

	// The analysis already succeeded, so a failed debit must not turn the
	// scan into a user-visible failure. It is logged and counted for
	// reconciliation instead.
	err = s.balance.Debit(ctx, balancedomain.DebitRequest{
		UserID:        req.UserID,
		ScanKind:      req.ScanKind,
		Credits:       decision.Cost,
		DocumentLabel: req.DocumentLabel,
	})
	if err != nil {
		s.log.Error("debit not recorded",
			zap.String("user_id", req.UserID),
			zap.String("scan_kind", req.ScanKind),
			zap.Int64("credits", decision.Cost),
			zap.Error(err),
		)
		s.metrics.RecordDebitUnrecorded(ctx, req.ScanKind)
		result.Balance = record.Balance
	}

	s.metrics.RecordScanCompleted(ctx, req.ScanKind)
	return result, nil
}

func denialError(reason string) error {
	switch reason {
	case quota.ReasonInsufficientBalance:
		return domain.ErrInsufficientBalance
	case quota.ReasonDailyLimitReached:
		return domain.ErrDailyLimitReached
	default:
		return domain.ErrUnknownScanKind
	}
}
