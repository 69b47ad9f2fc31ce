package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/phrazzld/enroll-api/internal/config"
	"github.com/phrazzld/enroll-api/internal/store"
)

// Open connects to the database described by cfg and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// lockedTxFn runs the statements of one read-modify-write.
type lockedTxFn func(ctx context.Context, q store.DBTX) error

// inTx runs fn on db when db is already a transaction, so that its row locks
// last until the caller commits. On a plain *sql.DB it opens a transaction
// for fn alone.
func inTx(ctx context.Context, db store.DBTX, fn lockedTxFn) error {
	pool, ok := db.(*sql.DB)
	if !ok {
		return fn(ctx, db)
	}
	return store.RunInTransaction(ctx, pool, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}
