package migration

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/ecotrail/emissiondesk/internal/config"
	emissiondomain "github.com/ecotrail/emissiondesk/internal/emission/domain"
	referencedomain "github.com/ecotrail/emissiondesk/internal/reference/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql installs skip the versioned migrations and let
			// gorm derive the schema.
			if err := conn.AutoMigrate(
				&emissiondomain.EmissionRecord{},
				&referencedomain.EmissionReference{},
				&referencedomain.LifecycleStageChoice{},
				&referencedomain.BomLineItem{},
			); err != nil {
				return err
			}
		}

		return EnsureReferenceCatalog(conn, genID)
	}),
)
