package analyzer

import (
	"github.com/complyscan/complyscan/internal/analyzer/domain"
	"github.com/complyscan/complyscan/internal/analyzer/openrouter"
	"github.com/complyscan/complyscan/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("analyzer",
	fx.Provide(func(cfg config.Config, log *zap.Logger) domain.Analyzer {
		return openrouter.New(cfg.Analyzer, log)
	}),
)
