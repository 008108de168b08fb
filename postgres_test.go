package dbmigration

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestPostgreSQLQuotedTableName(t *testing.T) {
	type qtnTest struct {
		schema, table string
		expected      string
	}
	tests := []qtnTest{
		{"public", "users", `"public"."users"`},
		{"", "users", `"users"`},
		{"schema.with.dot", "table.with.dot", `"schema.with.dot"."table.with.dot"`},
		{`public"`, `"; DROP TABLE users`, `"public"""."""DROPTABLEusers"`},
	}
	for _, test := range tests {
		actual := QuotedTableName(test.schema, test.table)
		if actual != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, actual)
		}
	}
}

func TestPostgreSQLQuotedIdent(t *testing.T) {
	table := map[string]string{
		"":                  "",
		"MY_TABLE":          `"MY_TABLE"`,
		"users_roles":       `"users_roles"`,
		"table.with.dot":    `"table.with.dot"`,
		`table"with"quotes`: `"table""with""quotes"`,
	}
	for ident, expected := range table {
		actual := QuotedIdent(ident)
		if expected != actual {
			t.Errorf("Expected %s, got %s", expected, actual)
		}
	}
}

func TestAdvisoryLockID(t *testing.T) {
	if advisoryLockID("db_migrations") != advisoryLockID("db_migrations") {
		t.Error("Expected the lock ID to be stable for a table name")
	}
	if advisoryLockID("db_migrations") == advisoryLockID("music_migrations") {
		t.Error("Expected different tables to lock with different IDs")
	}
}

func TestSQLState(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{&pq.Error{Code: "42P07"}, "42P07"},
		{fmt.Errorf("wrapped: %w", &pq.Error{Code: "42501"}), "42501"},
		{&pgconn.PgError{Code: "23505"}, "23505"},
		{fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"}), "40001"},
		{errors.New("connection refused"), ""},
		{nil, ""},
	}
	for _, test := range tests {
		if actual := sqlState(test.err); actual != test.expected {
			t.Errorf("Expected SQLSTATE '%s' for %v. Got '%s'", test.expected, test.err, actual)
		}
	}
}

func TestIsConcurrentCreate(t *testing.T) {
	if !isConcurrentCreate(&pq.Error{Code: "42P07"}) {
		t.Error("Expected duplicate_table to be a concurrent create")
	}
	if !isConcurrentCreate(&pgconn.PgError{Code: "23505"}) {
		t.Error("Expected unique_violation to be a concurrent create")
	}
	if isConcurrentCreate(&pq.Error{Code: "42501"}) {
		t.Error("Didn't expect insufficient_privilege to be a concurrent create")
	}
}
