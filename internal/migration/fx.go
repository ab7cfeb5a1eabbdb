package migration

import (
	"strings"

	"github.com/complyscan/complyscan/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		// The migration set is written for postgres. Other dialects manage
		// their schema externally.
		if !strings.EqualFold(cfg.DBType, "postgres") {
			log.Warn("skipping embedded migrations", zap.String("db_type", cfg.DBType))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
