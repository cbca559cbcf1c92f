package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/pkg/database"
)

type txKey struct{}

// DB wraps the shared connection and implements port.TransactionManager.
// Repositories obtain their executor through Conn so they join an open transaction.
type DB struct {
	db     *database.DB
	logger *zap.Logger
}

// NewDB creates a new database wrapper
func NewDB(db *database.DB, logger *zap.Logger) *DB {
	return &DB{
		db:     db,
		logger: logger,
	}
}

// Dialect returns the SQL flavour of the underlying connection
func (db *DB) Dialect() database.Dialect {
	return db.db.Dialect
}

// Raw exposes the underlying pool for health checks
func (db *DB) Raw() *sql.DB {
	return db.db.DB
}

// WithTransaction implements port.TransactionManager.
// Nested calls reuse the transaction already on the context.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := extractTx(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InTransaction reports whether ctx carries an open transaction
func InTransaction(ctx context.Context) bool {
	return extractTx(ctx) != nil
}

func extractTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Conn returns the transaction on ctx, or the pool, with placeholders rebound for the dialect
func (db *DB) Conn(ctx context.Context) Executor {
	var exec Executor = db.db.DB
	if tx := extractTx(ctx); tx != nil {
		exec = tx
	}
	return &rebinder{exec: exec, dialect: db.db.Dialect}
}

// InsertReturningID runs an INSERT ... RETURNING id statement and returns the new id
func (db *DB) InsertReturningID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := db.Conn(ctx).QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

type rebinder struct {
	exec    Executor
	dialect database.Dialect
}

func (r *rebinder) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return r.exec.ExecContext(ctx, r.dialect.Rebind(query), args...)
}

func (r *rebinder) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return r.exec.QueryContext(ctx, r.dialect.Rebind(query), args...)
}

func (r *rebinder) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return r.exec.QueryRowContext(ctx, r.dialect.Rebind(query), args...)
}

var _ port.TransactionManager = (*DB)(nil)
