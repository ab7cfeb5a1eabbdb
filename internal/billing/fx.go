package billing

import (
	"github.com/complyscan/complyscan/internal/billing/adapters"
	"github.com/complyscan/complyscan/internal/billing/adapters/stripe"
	"github.com/complyscan/complyscan/internal/billing/domain"
	"github.com/complyscan/complyscan/internal/billing/repository"
	"github.com/complyscan/complyscan/internal/billing/service"
	"github.com/complyscan/complyscan/internal/billing/stripeclient"
	"github.com/complyscan/complyscan/internal/billing/webhook"
	"github.com/complyscan/complyscan/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("billing.service",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(stripe.NewFactory())
	}),
	fx.Provide(func(cfg config.Config, log *zap.Logger) domain.CheckoutLister {
		return stripeclient.New(cfg.Billing, log)
	}),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(webhook.NewService),
)
