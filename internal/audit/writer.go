// Package audit provides an async, buffered writer for RBUM mutation audit
// entries: a channel-backed buffer drained by a background goroutine in
// time- or size-triggered batches.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one audited RBUM mutation: which account did what to which
// entity, scoped to own_paths.
type Entry struct {
	OwnPaths  string
	AccountID string
	Action    string // e.g. "add_item", "delete_cert", "add_rel"
	Kind      string // the rbum kind code the mutation targeted
	ItemID    string
	Detail    json.RawMessage
	At        time.Time
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer buffers Entry values and flushes them to Postgres in the
// background; Log never blocks the caller.
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan Entry
	done    chan struct{}
}

// NewWriter constructs a Writer. Call Start to begin draining it.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:    pool,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
		done:    make(chan struct{}),
	}
}

// Start runs the background flush loop until ctx is cancelled.
func (w *Writer) Start(ctx context.Context) {
	go w.run(ctx)
}

// Close stops accepting entries and waits for the final flush.
func (w *Writer) Close() {
	close(w.entries)
	<-w.done
}

// Log enqueues entry for async writing. If the buffer is full the entry
// is dropped and a warning logged — auditing must never block a mutation.
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit buffer full, dropping entry", "action", entry.Action, "kind", entry.Kind)
	}
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}

func (w *Writer) flush(ctx context.Context, batch []Entry) {
	for _, e := range batch {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO rbum_audit_log (own_paths, account_id, action, kind, item_id, detail, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.OwnPaths, e.AccountID, e.Action, e.Kind, e.ItemID, e.Detail, e.At,
		)
		if err != nil {
			w.logger.Error("flushing audit entry", "error", err, "action", e.Action)
		}
	}
}
