package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/complyscan/complyscan/internal/billing/adapters"
	"github.com/complyscan/complyscan/internal/billing/domain"
	"github.com/complyscan/complyscan/internal/config"
	"github.com/complyscan/complyscan/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Metrics    *metrics.Metrics
	Adapters   *adapters.Registry
	BillingSvc domain.Service
}

type Service struct {
	log        *zap.Logger
	cfg        config.Config
	metrics    *metrics.Metrics
	adapters   *adapters.Registry
	billingSvc domain.Service
}

func NewService(p Params) domain.WebhookService {
	return &Service{
		log:        p.Log.Named("billing.webhook"),
		cfg:        p.Cfg,
		metrics:    p.Metrics,
		adapters:   p.Adapters,
		billingSvc: p.BillingSvc,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (bool, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return false, domain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return false, domain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return false, domain.ErrInvalidPayload
	}

	adapter, err := s.adapters.NewAdapter(provider, domain.AdapterConfig{
		WebhookSecret: s.cfg.Billing.StripeWebhookSecret,
	})
	if err != nil {
		return false, err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider))
		return false, err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			return false, nil
		}
		return false, err
	}

	s.metrics.RecordWebhookEvent(ctx, provider, event.Type)
	return s.billingSvc.ProcessEvent(ctx, event)
}
