package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/kerm1977/rifas/internal/config"
	"github.com/kerm1977/rifas/internal/database/migrations"
	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/models"
)

const maxRetries = 5

// Open connects to the configured store, retrying while it comes up.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		err   error
	)

	driverName := "postgres"
	if cfg.Driver == "sqlite" {
		driverName = sqliteshim.ShimName
	} else if cfg.Driver != "postgres" {
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s (attempt %d/%d)", cfg.Driver, i+1, maxRetries))
		sqldb, err = sql.Open(driverName, cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open %s: %v", cfg.Driver, err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", cfg.Driver, err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.Driver, maxRetries, err)
	}

	var bunDB *bun.DB
	if cfg.Driver == "sqlite" {
		// sqlite allows one writer; a single connection keeps transactions serialized.
		sqldb.SetMaxOpenConns(1)
		bunDB = bun.NewDB(sqldb, sqlitedialect.New())
	} else {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		bunDB = bun.NewDB(sqldb, pgdialect.New())
	}

	log.Info("DATABASE", fmt.Sprintf("✅ %s connection successful", cfg.Driver))
	return bunDB, nil
}

// Migrate applies the SQL migrations for the connected dialect.
func Migrate(bunDB *bun.DB, cfg config.DatabaseConfig, log *logger.Logger) error {
	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.MigrationsDir})
	defer runner.Close()

	if err := runner.MigrateUp(); err != nil {
		return err
	}
	version, _, err := runner.Version()
	if err != nil {
		return err
	}
	log.Info("DATABASE", fmt.Sprintf("Schema at version %d", version))
	return nil
}

// CreateSchema builds the tables straight from the bun models.
// Tests use it on in-memory sqlite.
func CreateSchema(ctx context.Context, bunDB *bun.DB) error {
	for _, m := range []interface{}{(*models.Raffle)(nil), (*models.Selection)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	return nil
}
