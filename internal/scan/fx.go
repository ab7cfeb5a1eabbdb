package scan

import (
	"github.com/complyscan/complyscan/internal/scan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("scan.service",
	fx.Provide(service.New),
)
