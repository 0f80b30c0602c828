package migration

import (
	"strings"

	"github.com/smallbiznis/coursepay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if strings.EqualFold(strings.TrimSpace(cfg.DBType), "sqlite") {
			log.Info("applying embedded schema", zap.String("dialect", "sqlite"))
			return ApplyEmbedded(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
