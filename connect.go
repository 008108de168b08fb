package dbmigration

import (
	"context"
	"database/sql"
)

// Open connects to the database with a registered database/sql driver and
// verifies the connection with a ping. Any failure is reported as a
// *ConnectionError. The caller must have imported the driver, for example
// github.com/lib/pq ("postgres") or github.com/jackc/pgx/v5/stdlib ("pgx").
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &ConnectionError{Driver: driver, Err: err}
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Driver: driver, Err: err}
	}
	return db, nil
}
