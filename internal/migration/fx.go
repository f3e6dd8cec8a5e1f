package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
		if err := AutoMigrate(conn); err != nil {
			return err
		}
		log.Named("migration").Info("catalog schema ready", zap.String("dialect", conn.Dialector.Name()))
		return nil
	}),
)
