package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

type txKey struct{}

// DBExecutor hands repositories either the pool or the transaction carried by ctx
type DBExecutor struct {
	pool *pgxpool.Pool
}

var _ ports.TransactionManager = (*DBExecutor)(nil)

func NewDBExecutor(pool *pgxpool.Pool) *DBExecutor {
	return &DBExecutor{pool: pool}
}

// Pool exposes the pool for health checks and the job storage
func (db *DBExecutor) Pool() *pgxpool.Pool {
	return db.pool
}

// Conn returns the transaction bound to ctx, or the pool
func (db *DBExecutor) Conn(ctx context.Context) ports.DBTX {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.pool
}

// WithTransaction runs fn in a read-write transaction. A ctx that already carries one joins it.
func (db *DBExecutor) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return db.inTx(ctx, pgx.TxOptions{}, fn)
}

// WithReadOnlyTransaction gives fn a consistent snapshot across several queries
func (db *DBExecutor) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return db.inTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead}, fn)
}

func (db *DBExecutor) inTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	if tx, ok := txFrom(ctx); ok {
		return fn(ctx, tx)
	}

	tx, err := db.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx), tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}
