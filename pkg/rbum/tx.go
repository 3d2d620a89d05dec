package rbum

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// txBeginner is satisfied by *pgxpool.Pool, *pgxpool.Conn, and pgx.Tx
// itself (nested calls become savepoints).
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InTx runs fn against a Store bound to a single transaction, committing
// on success and rolling back on error. Mutations that cascade across
// tables (item deletion, app teardown, item+ext insertion) go through
// here so partial writes never become visible.
func (s *Store) InTx(ctx context.Context, fn func(*Store) error) error {
	b, ok := s.db.(txBeginner)
	if !ok {
		// Already a bare statement executor with no transaction support;
		// run fn directly against it.
		return fn(s)
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "tx", "beginning transaction", err)
	}
	if err := fn(&Store{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "rbum", "tx", "committing transaction", err)
	}
	return nil
}
