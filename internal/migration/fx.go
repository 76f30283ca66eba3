package migration

import (
	"github.com/Haufe-Lexware/wicked.portal-test/internal/config"
	"github.com/Haufe-Lexware/wicked.portal-test/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if db.NormalizeType(cfg.DBType) != "postgres" {
			log.Info("migrating schema from models", zap.String("type", cfg.DBType))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
