package storage

import (
	"context"
	"database/sql"
)

// Tx is the transaction handle the booking write path runs under.
// *sql.Tx satisfies it. Declaring the handle as an interface keeps the
// service layer off database/sql and lets tests drive the commit and
// rollback paths directly.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Commit() error
	Rollback() error
}
