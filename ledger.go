package dbmigration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LedgerEntry represents a successfully-applied unit. This type is what
// records persisted in the ledger table align with.
type LedgerEntry struct {
	Group    string
	Version  int64
	Name     string
	Checksum string

	// DownSQL is the rollback script captured when the unit was applied (or
	// later replaced by UpdateRollbackSQL). Rollback replays this, never the
	// file on disk.
	DownSQL string

	// ExecutionTimeInMillis is how long the up script took to run.
	ExecutionTimeInMillis int

	// AppliedAt is the time at which the up script began executing (not when
	// it completed executing).
	AppliedAt time.Time
}

func (e *LedgerEntry) String() string {
	return fmt.Sprintf("V%d %s", e.Version, e.Name)
}

// Ledger reads and writes the table recording which versions of each group
// have been applied. Every method runs against the Queryer it is given, so
// writes take part in the caller's transaction.
type Ledger struct {
	SchemaName string
	TableName  string
}

// QuotedTableName returns the quoted, fully-qualified name of the ledger
// table.
func (l Ledger) QuotedTableName() string {
	return QuotedTableName(l.SchemaName, l.TableName)
}

// EnsureInitialized creates the ledger table if it does not already exist.
// Losing a creation race against another session is not an error.
func (l Ledger) EnsureInitialized(ctx context.Context, q Queryer) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			group_name TEXT NOT NULL,
			version BIGINT NOT NULL,
			name TEXT NOT NULL,
			checksum VARCHAR(32) NOT NULL DEFAULT '',
			down_sql TEXT,
			execution_time_in_millis INTEGER NOT NULL DEFAULT 0,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (group_name, version)
		)`, l.QuotedTableName())
	_, err := q.ExecContext(ctx, query)
	if err != nil && !isConcurrentCreate(err) {
		return fmt.Errorf("failed to create ledger table %s: %w", l.QuotedTableName(), err)
	}
	return nil
}

// Applied retrieves every entry recorded for the group, ascending by version.
func (l Ledger) Applied(ctx context.Context, q Queryer, group string) (entries []*LedgerEntry, err error) {
	entries = make([]*LedgerEntry, 0)

	query := fmt.Sprintf(`
		SELECT group_name, version, name, checksum, down_sql, execution_time_in_millis, applied_at
		FROM %s WHERE group_name = $1 ORDER BY version ASC
	`, l.QuotedTableName())
	rows, err := q.QueryContext(ctx, query, group)
	if err != nil {
		return entries, err
	}
	defer rows.Close()

	for rows.Next() {
		entry := LedgerEntry{}
		var downSQL sql.NullString
		err = rows.Scan(&entry.Group, &entry.Version, &entry.Name, &entry.Checksum, &downSQL, &entry.ExecutionTimeInMillis, &entry.AppliedAt)
		if err != nil {
			err = fmt.Errorf("failed to read applied migrations. Did somebody change the structure of the %s table?: %w", l.QuotedTableName(), err)
			return entries, err
		}
		entry.DownSQL = downSQL.String
		entry.AppliedAt = entry.AppliedAt.In(time.Local)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Record inserts an entry. It fails with a *ConflictError if the group
// already has an entry for the version.
func (l Ledger) Record(ctx context.Context, q Queryer, entry *LedgerEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		( group_name, version, name, checksum, down_sql, execution_time_in_millis, applied_at )
		VALUES
		( $1, $2, $3, $4, $5, $6, $7 )
		ON CONFLICT (group_name, version) DO NOTHING`,
		l.QuotedTableName(),
	)
	res, err := q.ExecContext(ctx, query,
		entry.Group,
		entry.Version,
		entry.Name,
		entry.Checksum,
		nullable(entry.DownSQL),
		entry.ExecutionTimeInMillis,
		entry.AppliedAt,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res, &ConflictError{Group: entry.Group, Version: entry.Version})
}

// Remove deletes the entry for a version. It fails with a *NotFoundError if
// there is none.
func (l Ledger) Remove(ctx context.Context, q Queryer, group string, version int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE group_name = $1 AND version = $2`, l.QuotedTableName())
	res, err := q.ExecContext(ctx, query, group, version)
	if err != nil {
		return err
	}
	return expectOneRow(res, &NotFoundError{Group: group, Version: version})
}

// UpdateDownSQL replaces the rollback script and checksum recorded for a
// version. It fails with a *NotFoundError if the version was never applied.
func (l Ledger) UpdateDownSQL(ctx context.Context, q Queryer, group string, version int64, downSQL, checksum string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET down_sql = $1, checksum = $2
		WHERE group_name = $3 AND version = $4`,
		l.QuotedTableName(),
	)
	res, err := q.ExecContext(ctx, query, nullable(downSQL), checksum, group, version)
	if err != nil {
		return err
	}
	return expectOneRow(res, &NotFoundError{Group: group, Version: version})
}

// Lock obtains a session-level advisory lock keyed on the ledger table name.
// It blocks until the lock is available or ctx is done.
func (l Ledger) Lock(ctx context.Context, q Queryer) error {
	query := fmt.Sprintf("SELECT pg_advisory_lock(%s)", advisoryLockID(l.TableName))
	_, err := q.ExecContext(ctx, query)
	return err
}

// Unlock releases the lock obtained by Lock.
func (l Ledger) Unlock(ctx context.Context, q Queryer) error {
	query := fmt.Sprintf("SELECT pg_advisory_unlock(%s)", advisoryLockID(l.TableName))
	_, err := q.ExecContext(ctx, query)
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOneRow(res sql.Result, notAffected error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notAffected
	}
	return nil
}
