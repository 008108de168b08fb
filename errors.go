package dbmigration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilDB is returned when the database handle is nil
	ErrNilDB = errors.New("DB pointer is nil")

	// ErrNilChangeSet is returned when the change set pointer is nil
	ErrNilChangeSet = errors.New("change set is nil")

	// ErrMissingUnit is returned by Redo when an applied version has no
	// script in the change set to apply it again from.
	ErrMissingUnit = errors.New("migration is missing from the change set")

	// ErrInsufficientHistory is returned when a rollback asks for more
	// versions than the ledger holds for the group.
	ErrInsufficientHistory = errors.New("fewer applied migrations than requested")
)

// ParseError is returned when a migration file name or its contents don't
// follow the expected conventions.
type ParseError struct {
	File   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid migration file '%s': %s", e.File, e.Reason)
}

// DuplicateVersionError is returned when two units of the same group share
// a version.
type DuplicateVersionError struct {
	Group   string
	Version int64
	Files   []string
}

func (e *DuplicateVersionError) Error() string {
	msg := fmt.Sprintf("duplicate version %d in group '%s'", e.Version, e.Group)
	if len(e.Files) > 0 {
		msg += fmt.Sprintf(" (%s)", strings.Join(e.Files, ", "))
	}
	return msg
}

// ConnectionError is returned when the database can't be reached. The DSN is
// deliberately left out of the message since it usually carries credentials.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed connecting to %s database: %s", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ExecutionError wraps a database failure that occurred while applying or
// rolling back a particular unit.
type ExecutionError struct {
	Group   string
	Version int64
	Name    string
	Op      string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s of migration V%d %s in group '%s' failed: %s", e.Op, e.Version, e.Name, e.Group, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ConflictError is returned when the ledger already holds an entry for a
// version being recorded. It usually means two runs raced each other.
type ConflictError struct {
	Group   string
	Version int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version %d of group '%s' is already recorded as applied", e.Version, e.Group)
}

// NotFoundError is returned when the ledger holds no entry for a version.
type NotFoundError struct {
	Group   string
	Version int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("version %d of group '%s' is not recorded as applied", e.Version, e.Group)
}

// NotReversibleError is returned when a rollback reaches an entry that was
// recorded without rollback SQL.
type NotReversibleError struct {
	Group   string
	Version int64
	Name    string
}

func (e *NotReversibleError) Error() string {
	return fmt.Sprintf("migration V%d %s in group '%s' has no rollback SQL", e.Version, e.Name, e.Group)
}

// SyncError aggregates the versions UpdateRollbackSQL couldn't find in the
// ledger.
type SyncError struct {
	Group   string
	Missing []*NotFoundError
}

func (e *SyncError) Error() string {
	versions := make([]string, 0, len(e.Missing))
	for _, nf := range e.Missing {
		versions = append(versions, fmt.Sprint(nf.Version))
	}
	return fmt.Sprintf("rollback SQL of group '%s' not updated for %d version(s): %s",
		e.Group, len(e.Missing), strings.Join(versions, ", "))
}

// Unwrap exposes each NotFoundError to errors.Is and errors.As.
func (e *SyncError) Unwrap() []error {
	errs := make([]error, 0, len(e.Missing))
	for _, nf := range e.Missing {
		errs = append(errs, nf)
	}
	return errs
}
