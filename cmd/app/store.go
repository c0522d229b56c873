package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pix-subscription/internal/config"
	"pix-subscription/internal/domain/ports/repository"
	"pix-subscription/internal/infra/db/postgres"
	"pix-subscription/internal/infra/db/sqlite"
)

// store bundles the repositories of whichever driver is configured.
type store struct {
	tm           repository.TransactionManager
	transactions repository.TransactionRepository
	users        repository.UserRepository
	billing      repository.BillingRepository

	ping    func(ctx context.Context) error
	migrate func(ctx context.Context) error
	stats   func(ctx context.Context, every time.Duration)
	close   func()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return &store{
			tm:           postgres.NewTxManager(pool),
			transactions: postgres.NewTransactionRepo(pool),
			users:        postgres.NewUserRepo(pool),
			billing:      postgres.NewBillingRepo(pool),
			ping:         func(ctx context.Context) error { return pool.Ping(ctx) },
			migrate:      func(ctx context.Context) error { return postgres.Migrate(ctx, pool) },
			stats:        func(ctx context.Context, every time.Duration) { postgres.ReportPoolStats(ctx, pool, every) },
			close:        pool.Close,
		}, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return &store{
			tm:           sqlite.NewTxManager(db),
			transactions: sqlite.NewTransactionRepo(db),
			users:        sqlite.NewUserRepo(db),
			billing:      sqlite.NewBillingRepo(db),
			ping:         db.PingContext,
			migrate:      func(ctx context.Context) error { return sqlite.Migrate(ctx, db) },
			stats:        func(ctx context.Context, every time.Duration) { sqlite.ReportPoolStats(ctx, db, every) },
			close:        func() { closeDB(db) },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func closeDB(db *sql.DB) { _ = db.Close() }
