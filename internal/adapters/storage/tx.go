package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// TxRunner groups the store writes of one operation so they commit or fail together.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTx returns a context carrying tx, a *sql.Tx or a wrapper around one.
// SQL stores called with this context run their statements inside it.
func WithTx(ctx context.Context, tx Executor) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// Conn returns the transaction carried by ctx, or db when there is none.
func Conn(ctx context.Context, db Executor) Executor {
	if exec, ok := ctx.Value(txKey{}).(Executor); ok {
		return exec
	}
	return db
}

// SQLTxRunner runs functions inside a database/sql transaction.
type SQLTxRunner struct {
	db SQLDB
	// SQLite has a single writer and upgrading a read transaction to a write
	// one fails with SQLITE_BUSY instead of waiting, so writers queue here.
	writeMu *sync.Mutex
}

// NewSQLTxRunner creates a transaction runner over db.
// PRE: db is a valid connection pool
// POST: Returns a runner; serializeWriters makes transactions queue in-process
func NewSQLTxRunner(db SQLDB, serializeWriters bool) *SQLTxRunner {
	r := &SQLTxRunner{db: db}
	if serializeWriters {
		r.writeMu = &sync.Mutex{}
	}
	return r
}

// InTx runs fn inside a transaction carried by the context passed to fn.
// PRE: fn only touches stores through the given context
// POST: Commits when fn returns nil, rolls back otherwise; nested calls join the outer transaction
func (r *SQLTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(Executor); ok {
		return fn(ctx)
	}
	if r.writeMu != nil {
		r.writeMu.Lock()
		defer r.writeMu.Unlock()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var exec Executor = tx
	if timed, ok := r.db.(*TimedDB); ok {
		exec = timed.WrapTx(tx)
	}
	if err := fn(WithTx(ctx, exec)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type memTxKey struct{}

// MemoryTxRunner serializes operations against the in-memory stores.
// Memory stores validate before they mutate, so an operation that fails
// leaves nothing behind; there is no rollback.
type MemoryTxRunner struct {
	mu sync.Mutex
}

// NewMemoryTxRunner creates a runner for the in-memory backend.
func NewMemoryTxRunner() *MemoryTxRunner {
	return &MemoryTxRunner{}
}

// InTx runs fn while holding the runner lock.
// PRE: none
// POST: fn ran exclusively with respect to other InTx calls; nested calls do not deadlock
func (r *MemoryTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) == r {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(context.WithValue(ctx, memTxKey{}, r))
}
