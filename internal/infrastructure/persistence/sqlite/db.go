package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/brightpath/screening-lifecycle/internal/application/port"
)

// Executor covers both *sql.DB and *sql.Tx. Repositories run every
// statement through it so that work inside a WithTransaction callback
// lands on the shared transaction instead of the pool.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// txKeyType is unexported and empty so no other package can collide
// with or forge the transaction entry in a context.
type txKeyType struct{}

// DB wraps sql.DB with context-scoped transactions
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: sqlDB, logger: logger}
}

// Executor returns the transaction bound to ctx, or the database itself
func (db *DB) Executor(ctx context.Context) Executor {
	if tx := boundTx(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// WithTransaction implements port.TransactionManager. A nested call
// joins the enclosing transaction rather than opening its own; commit
// and rollback then belong to the outermost caller alone.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if boundTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Rollback in the defer covers both error returns and panics; after
	// a successful commit it is a no-op returning sql.ErrTxDone.
	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	if err := fn(context.WithValue(ctx, txKeyType{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("commit transaction: %w", err)
	}
	done = true
	return nil
}

// boundTx retrieves the transaction from ctx if present
func boundTx(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKeyType{}).(*sql.Tx)
	return tx
}

// Verify interface compliance
var _ port.TransactionManager = (*DB)(nil)
