package rbum

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, a single *pgxpool.Conn, and pgx.Tx,
// so the same Store methods run against the shared pool, a
// search_path-scoped connection, or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the pgx-backed persistence layer for the RBUM kernel.
type Store struct {
	db DBTX
}

// NewStore wraps db (a pool or a tenant-scoped connection) for RBUM kernel access.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}
