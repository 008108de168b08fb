package dbmigration

import (
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const postgresAdvisoryLockSalt uint32 = 542384964

// SQLSTATE codes the ledger reacts to.
const (
	sqlStateUniqueViolation = "23505"
	sqlStateDuplicateTable  = "42P07"
)

// QuotedTableName returns the Postgres-quoted, optionally schema-qualified
// name of a table.
func QuotedTableName(schemaName, tableName string) string {
	if schemaName == "" {
		return QuotedIdent(tableName)
	}
	return QuotedIdent(schemaName) + "." + QuotedIdent(tableName)
}

// QuotedIdent wraps the supplied string in the Postgres identifier
// quote character
func QuotedIdent(ident string) string {
	if ident == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteRune('"')
	for _, r := range ident {
		switch {
		case unicode.IsSpace(r):
			// Skip spaces
			continue
		case r == '"':
			// Escape double-quotes with repeated double-quotes
			sb.WriteString(`""`)
		case r == ';':
			// Ignore the command termination character
			continue
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteRune('"')
	return sb.String()
}

// advisoryLockID generates a table-specific lock key for pg_advisory_lock
func advisoryLockID(tableName string) string {
	sum := crc32.ChecksumIEEE([]byte(tableName))
	sum = sum * postgresAdvisoryLockSalt
	return fmt.Sprint(sum)
}

// sqlState extracts the SQLSTATE code from an error returned by either
// lib/pq or pgx. It returns "" for any other error.
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isConcurrentCreate reports whether err is what Postgres raises when two
// sessions run CREATE TABLE IF NOT EXISTS for the same table at once: the
// loser sees either duplicate_table or a unique_violation on pg_type.
func isConcurrentCreate(err error) bool {
	switch sqlState(err) {
	case sqlStateDuplicateTable, sqlStateUniqueViolation:
		return true
	}
	return false
}
