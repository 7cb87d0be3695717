// Package sqlxrepos implements the repositories on PostgreSQL with sqlx and lib/pq.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core"
)

const uniqueViolation = "23505"

type (
	DB struct {
		db *sqlx.DB
	}

	txKey struct{}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func NewDB(db *sql.DB) *DB {
	return &DB{db: sqlx.NewDb(db, "postgres")}
}

// WithinTx runs fn in a transaction carried by the context. Nested calls join it.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// getExec returns the transaction running in ctx, or the pool.
func (d *DB) getExec(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return d.db
}

// isUniqueViolation reports whether err is a unique constraint violation, on constraint if given.
func isUniqueViolation(err error, constraint ...string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code != uniqueViolation {
		return false
	}
	return len(constraint) == 0 || pqErr.Constraint == constraint[0]
}
