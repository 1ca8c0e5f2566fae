package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date on startup when running in dev with auto-migrate enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})
	logg.Info(ctx, "migrate.autorun.start")
	if err := Apply(ctx, cfg.DB, client); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.autorun.done")
	return nil
}

// Apply migrates the database behind client. The goose files target Postgres, so SQLite
// schemas are derived from the gorm models instead.
func Apply(ctx context.Context, cfg config.DBConfig, client *db.Client) error {
	if cfg.IsSQLite() {
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrate sqlite: %w", err)
		}
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	return Up(ctx, sqlDB)
}
