package core

import (
	"context"
	"database/sql"
)

type (
	// DBExecutor is satisfied by *sql.DB and *sql.Tx; repositories accept it so
	// services can run several repository calls inside one transaction.
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		BeginTx(context.Context, *sql.TxOptions) (DBTransactor, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

// WrapDB adapts *sql.DB to DB.
func WrapDB(db *sql.DB) DB { return sqlDB{db} }

type sqlDB struct{ *sql.DB }

func (d sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (DBTransactor, error) {
	return d.DB.BeginTx(ctx, opts)
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
