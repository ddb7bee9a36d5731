package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/kerm1977/rifas/internal/auth"
	"github.com/kerm1977/rifas/internal/config"
	"github.com/kerm1977/rifas/internal/database"
	"github.com/kerm1977/rifas/internal/database/migrations"
	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/models"
)

const usage = `usage: migrate <command>

commands:
  up          apply all pending migrations
  down        roll back every migration
  to N        migrate to version N
  version     print the applied version
  reset       drop and recreate the tables from the models
  seed        insert a sample raffle with a few selections`

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		err   error
	)
	switch cfg.Driver {
	case "postgres":
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	case "sqlite":
		sqldb, err = sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Driver == "postgres" {
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func main() {
	_ = godotenv.Load()

	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.NewLogger("")
	ctx := context.Background()

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer db.Close()

	runner := migrations.NewRunner(db, migrations.MigrateOptions{MigrationsDir: cfg.Database.MigrationsDir})
	defer runner.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = runner.MigrateUp()
	case "down":
		err = runner.MigrateDown()
	case "to":
		var version uint64
		version, err = strconv.ParseUint(flag.Arg(1), 10, 32)
		if err == nil {
			err = runner.MigrateTo(uint(version))
		}
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = runner.Version()
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		}
	case "reset":
		err = reset(ctx, db, log)
	case "seed":
		err = seed(ctx, db, cfg.Admin.SecretCost, log)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", "✅ Done.")
}

// reset drops the tables in reverse dependency order and recreates them.
func reset(ctx context.Context, db *bun.DB, log *logger.Logger) error {
	tables := []struct {
		model interface{}
		name  string
	}{
		{(*models.Selection)(nil), "selections"},
		{(*models.Raffle)(nil), "raffles"},
	}
	for _, t := range tables {
		if _, err := db.NewDropTable().Model(t.model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table %s: %w", t.name, err)
		}
		log.LogDatabase("DROP", t.name, "table dropped")
	}
	if err := database.CreateSchema(ctx, db); err != nil {
		return err
	}
	log.LogDatabase("CREATE", "raffles, selections", "schema recreated from models")
	return nil
}

func seed(ctx context.Context, db *bun.DB, cost int, log *logger.Logger) error {
	hash, err := auth.NewBcryptHasher(cost).Hash("demo")
	if err != nil {
		return err
	}

	raffle := &models.Raffle{
		RaffleNumber:   "DEMO-001",
		Name:           "Rifa de prueba",
		Price:          1000,
		Prize:          "Canasta navideña",
		Detail:         "Sorteo con la lotería nacional",
		DrawDate:       time.Now().AddDate(0, 1, 0).Truncate(24 * time.Hour),
		DrawTime:       "19:30",
		WinningNumbers: models.WinningNumbers{},
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(raffle).Exec(ctx); err != nil {
		return fmt.Errorf("seed raffle: %w", err)
	}
	log.LogDatabase("SEED", "raffles", fmt.Sprintf("raffle %s id=%d", raffle.RaffleNumber, raffle.ID))

	selections := []models.Selection{
		{RaffleID: raffle.ID, Number: "07", CustomerName: "Ana Mora", CustomerPhone: "8888-0001"},
		{RaffleID: raffle.ID, Number: "13", CustomerName: "Ana Mora", CustomerPhone: "8888-0001"},
		{RaffleID: raffle.ID, Number: "42", CustomerName: "Luis Rojas", CustomerPhone: "8888-0002", IsCanceled: true},
	}
	for i := range selections {
		selections[i].SecretHash = hash
		selections[i].PaymentMethod = models.DefaultPaymentMethod
		selections[i].CreatedAt = time.Now().UTC()
	}
	if _, err := db.NewInsert().Model(&selections).Exec(ctx); err != nil {
		return fmt.Errorf("seed selections: %w", err)
	}
	log.LogDatabase("SEED", "selections", fmt.Sprintf("%d selections for raffle %d, one canceled", len(selections), raffle.ID))
	return nil
}
