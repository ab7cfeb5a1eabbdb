package balance

import (
	"github.com/complyscan/complyscan/internal/balance/repository"
	"github.com/complyscan/complyscan/internal/balance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("balance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
