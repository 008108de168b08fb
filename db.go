package dbmigration

import (
	"context"
	"database/sql"
	"fmt"
)

// DefaultTableName defines the name of the database table which will
// hold the ledger of applied migrations
const DefaultTableName = "db_migrations"

// Connection defines the interface for a *sql.DB or *sql.Conn, which can both
// start a new transaction and run queries.
type Connection interface {
	Transactor
	Queryer
}

// Queryer is something which can execute a Query (a sql.DB, sql.Conn or
// sql.Tx)
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Transactor defines the interface for the BeginTx method of *sql.DB and
// *sql.Conn
type Transactor interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// transaction wraps the supplied function in a transaction with the supplied
// database connection. The transaction is committed when f returns nil and
// rolled back otherwise, including when f panics.
func transaction(ctx context.Context, db Transactor, f func(Queryer) error) (err error) {
	if db == nil {
		return ErrNilDB
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			switch p := p.(type) {
			case error:
				err = p
			default:
				err = fmt.Errorf("%s", p)
			}
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return f(tx)
}
