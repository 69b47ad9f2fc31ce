package store

import (
	"context"
	"database/sql"
)

// DBTX is the statement surface shared by *sql.DB and *sql.Tx. SQL stores
// hold a DBTX so that the same store code runs on the pool or, after WithTx,
// inside a caller's transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)
