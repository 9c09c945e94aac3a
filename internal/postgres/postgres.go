package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/config"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DB wraps sqlx.DB to add context-scoped transaction management on top of
// the billing schema.
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// Querier is the subset of sqlx operations both *sqlx.DB and *sqlx.Tx
// satisfy; repositories code against this so they work unmodified inside
// or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExec(query string, arg interface{}) (sql.Result, error)
	NamedQuery(query string, arg interface{}) (*sqlx.Rows, error)
	PrepareNamed(query string) (*sqlx.NamedStmt, error)
	Preparex(query string) (*sqlx.Stmt, error)
}

// NewDB opens the billing database connection pool.
func NewDB(cfg *config.Configuration, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		return nil, err
	}

	if cfg.Postgres.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	}
	if cfg.Postgres.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	}
	if cfg.Postgres.ConnMaxLifetimeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetimeMinutes) * time.Minute)
	}

	return &DB{DB: db, logger: log}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// Querier returns the in-flight transaction from ctx if one was started
// with WithTx/BeginTx, or the base pool otherwise. Mutators must always go
// through this so a caller's outer transaction wraps their work.
func (db *DB) Querier(ctx context.Context) Querier {
	if tx, ok := GetTx(ctx); ok {
		return tx.Tx
	}
	return db.DB
}

// NamedExecContext and NamedQueryContext let repositories write
// `db.NamedQueryContext(ctx, query, params)` without fetching the querier
// themselves first.
func (db *DB) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	return db.Querier(ctx).NamedExec(query, arg)
}

func (db *DB) NamedQueryContext(ctx context.Context, query string, arg interface{}) (*sqlx.Rows, error) {
	return db.Querier(ctx).NamedQuery(query, arg)
}
