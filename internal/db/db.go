// Package db provides the PostgreSQL connection pool, the executor
// interfaces the data models are written against, and transaction
// helpers. Models take a SQLExecuter so the same query code runs against
// the pool or inside a transaction.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	maxConnIdleTime = 10 * time.Second
	maxOpenConns    = 30
)

// SQLExecuter is the subset of *sqlx.DB and *sqlx.Tx the data models use.
type SQLExecuter interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

var (
	_ SQLExecuter = (*sqlx.DB)(nil)
	_ SQLExecuter = (*sqlx.Tx)(nil)
)

// Transaction wraps the *sqlx.Tx methods used by this codebase.
type Transaction interface {
	SQLExecuter
	Commit() error
	Rollback() error
}

var _ Transaction = (*sqlx.Tx)(nil)

type ConnectionPool interface {
	SQLExecuter
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (Transaction, error)
	Close() error
	Ping(ctx context.Context) error
	SqlDB(ctx context.Context) (*sql.DB, error)
	SqlxDB(ctx context.Context) (*sqlx.DB, error)
}

var _ ConnectionPool = (*sqlxPool)(nil)

type sqlxPool struct {
	*sqlx.DB
}

// OpenDBConnectionPool opens a pool against dataSourceName and verifies
// it with a ping before returning.
func OpenDBConnectionPool(dataSourceName string) (ConnectionPool, error) {
	sqlxDB, err := sqlx.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening connection pool: %w", err)
	}
	sqlxDB.SetConnMaxIdleTime(maxConnIdleTime)
	sqlxDB.SetMaxOpenConns(maxOpenConns)

	if err = sqlxDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging connection pool: %w", err)
	}

	return &sqlxPool{DB: sqlxDB}, nil
}

//nolint:wrapcheck // thin layer over sqlx.DB.BeginTxx
func (p *sqlxPool) BeginTxx(ctx context.Context, opts *sql.TxOptions) (Transaction, error) {
	return p.DB.BeginTxx(ctx, opts)
}

//nolint:wrapcheck // thin layer over sqlx.DB.PingContext
func (p *sqlxPool) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

func (p *sqlxPool) SqlDB(ctx context.Context) (*sql.DB, error) {
	return p.DB.DB, nil
}

func (p *sqlxPool) SqlxDB(ctx context.Context) (*sqlx.DB, error) {
	return p.DB, nil
}

// RunInTransaction runs fn inside a transaction, committing when fn
// returns nil and rolling back otherwise.
func RunInTransaction(ctx context.Context, pool ConnectionPool, opts *sql.TxOptions, fn func(dbTx Transaction) error) error {
	_, err := RunInTransactionWithResult(ctx, pool, opts, func(dbTx Transaction) (interface{}, error) {
		return nil, fn(dbTx)
	})
	return err
}

// RunInTransactionWithResult is RunInTransaction for functions that
// produce a value alongside the error.
func RunInTransactionWithResult[T any](ctx context.Context, pool ConnectionPool, opts *sql.TxOptions, fn func(dbTx Transaction) (T, error)) (result T, err error) {
	dbTx, err := pool.BeginTxx(ctx, opts)
	if err != nil {
		return *new(T), fmt.Errorf("beginning db transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if errRollback := dbTx.Rollback(); errRollback != nil {
				logrus.WithContext(ctx).Errorf("Error rolling back transaction: %v", errRollback)
			}
		}
	}()

	result, err = fn(dbTx)
	if err != nil {
		return *new(T), fmt.Errorf("running transactional function: %w", err)
	}

	if err = dbTx.Commit(); err != nil {
		return *new(T), fmt.Errorf("committing db transaction: %w", err)
	}

	return result, nil
}
