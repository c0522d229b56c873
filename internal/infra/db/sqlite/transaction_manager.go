package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"pix-subscription/internal/domain"
	"pix-subscription/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager implements repository.TransactionManager over database/sql.
// The tx handle passed to the callback is *sql.Tx.
type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getExecutor(db *sql.DB, tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case *sql.Tx:
		return v, nil
	case *sql.DB:
		return v, nil
	case nil:
		if db != nil {
			return db, nil
		}
		return nil, domain.ErrInvalidArgument
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

func execSQL(ctx context.Context, db *sql.DB, tx repository.Tx, q string, args ...any) (sql.Result, error) {
	ex, err := getExecutor(db, tx)
	if err != nil {
		return nil, err
	}
	return ex.ExecContext(ctx, q, args...)
}

func pickRow(ctx context.Context, db *sql.DB, tx repository.Tx, q string, args ...any) (*sql.Row, error) {
	ex, err := getExecutor(db, tx)
	if err != nil {
		return nil, err
	}
	return ex.QueryRowContext(ctx, q, args...), nil
}

func queryRows(ctx context.Context, db *sql.DB, tx repository.Tx, q string, args ...any) (*sql.Rows, error) {
	ex, err := getExecutor(db, tx)
	if err != nil {
		return nil, err
	}
	return ex.QueryContext(ctx, q, args...)
}

// affected reports whether exactly one row changed.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr(err)
	}
	return n == 1, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	// without extended result codes only the message tells UNIQUE apart
	return strings.Contains(se.Error(), "UNIQUE constraint failed")
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
		return err
	case isUniqueViolation(err):
		return domain.ErrAlreadyExists
	default:
		return errors.Join(domain.ErrOperationFailed, err)
	}
}

const stampLayout = "2006-01-02T15:04:05.000000000Z"

func stamp(t time.Time) string { return t.UTC().Format(stampLayout) }

func stampPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return stamp(*t)
}

func parseStamp(s string) (time.Time, error) {
	t, err := time.Parse(stampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseStampPtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseStamp(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
