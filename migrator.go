package dbmigration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Migrator applies and reverses change sets against a particular ledger
// table. Runs are serialized across processes with an advisory lock, and
// every unit is applied or reverted in its own transaction.
type Migrator struct {
	SchemaName string
	TableName  string
	Logger     *slog.Logger

	now func() time.Time
}

// NewMigrator creates a new Migrator with the supplied
// options
func NewMigrator(options ...Option) *Migrator {
	m := Migrator{
		TableName: DefaultTableName,
		Logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
	}
	for _, opt := range options {
		m = opt(m)
	}
	return &m
}

// Ledger returns the ledger this Migrator records applied units in.
func (m *Migrator) Ledger() Ledger {
	return Ledger{SchemaName: m.SchemaName, TableName: m.TableName}
}

// Migrate applies the change set's pending units, in ascending version
// order, up to the supplied limit. Each unit runs in its own transaction
// together with its ledger record.
//
// The first failure stops the run: its transaction is rolled back, later
// units are never attempted, and the units committed before it are returned
// along with the error. Calling Migrate again resumes from there.
func (m *Migrator) Migrate(ctx context.Context, db Connection, cs *ChangeSet, limit Limit) (applied []*Unit, err error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if cs == nil {
		return nil, ErrNilChangeSet
	}
	if err = limit.validate(); err != nil {
		return nil, err
	}

	applied = make([]*Unit, 0)
	err = m.withLock(ctx, db, func(db Connection) error {
		entries, err := m.Ledger().Applied(ctx, db, cs.Group())
		if err != nil {
			return err
		}
		for _, d := range detectDrift(cs, entries) {
			m.Logger.Warn("applied migration differs from local copy",
				"group", cs.Group(), "version", d.Version, "drift", d.Kind.String())
		}

		plan := limit.forward(cs.Pending(entries))
		if len(plan) == 0 {
			m.Logger.Info("no pending migrations", "group", cs.Group())
			return nil
		}

		for _, u := range plan {
			if err := m.apply(ctx, db, u); err != nil {
				return err
			}
			applied = append(applied, u)
		}
		return nil
	})
	return applied, err
}

// Rollback reverts the most recently applied units of the group in
// descending version order, replaying the rollback SQL stored in the ledger.
// With All() only the latest unit is reverted; Count(n) reverts the latest n
// and ToVersion(v) every unit above v.
//
// If any selected entry has no rollback SQL a *NotReversibleError is
// returned before anything is changed. Otherwise failures behave as in
// Migrate: the failing unit is untouched and the entries reverted before it
// are returned with the error.
func (m *Migrator) Rollback(ctx context.Context, db Connection, group string, limit Limit) (reverted []*LedgerEntry, err error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if err = limit.validate(); err != nil {
		return nil, err
	}

	reverted = make([]*LedgerEntry, 0)
	err = m.withLock(ctx, db, func(db Connection) error {
		entries, err := m.Ledger().Applied(ctx, db, group)
		if err != nil {
			return err
		}

		selected, err := limit.backward(entries)
		if err != nil {
			return err
		}
		if len(selected) == 0 {
			m.Logger.Info("nothing to roll back", "group", group)
			return nil
		}
		if err := checkReversible(selected); err != nil {
			return err
		}

		for _, entry := range selected {
			if err := m.revert(ctx, db, entry); err != nil {
				return err
			}
			reverted = append(reverted, entry)
		}
		return nil
	})
	return reverted, err
}

// Redo rolls back the latest n units of the change set's group and applies
// the same versions again from the change set, all under one lock. Every
// reverted version must still exist in the change set, otherwise
// ErrMissingUnit is returned before anything is changed.
func (m *Migrator) Redo(ctx context.Context, db Connection, cs *ChangeSet, n int) (reverted []*LedgerEntry, applied []*Unit, err error) {
	if db == nil {
		return nil, nil, ErrNilDB
	}
	if cs == nil {
		return nil, nil, ErrNilChangeSet
	}
	limit := Count(n)
	if err = limit.validate(); err != nil {
		return nil, nil, err
	}

	reverted = make([]*LedgerEntry, 0)
	applied = make([]*Unit, 0)
	err = m.withLock(ctx, db, func(db Connection) error {
		entries, err := m.Ledger().Applied(ctx, db, cs.Group())
		if err != nil {
			return err
		}
		selected, err := limit.backward(entries)
		if err != nil {
			return err
		}
		if err := checkReversible(selected); err != nil {
			return err
		}

		units := make([]*Unit, 0, len(selected))
		for _, entry := range selected {
			u, ok := cs.Unit(entry.Version)
			if !ok {
				return fmt.Errorf("can't redo %s of group '%s': %w", entry, cs.Group(), ErrMissingUnit)
			}
			units = append(units, u)
		}

		for _, entry := range selected {
			if err := m.revert(ctx, db, entry); err != nil {
				return err
			}
			reverted = append(reverted, entry)
		}
		// selected is descending, re-apply ascending
		for i := len(units) - 1; i >= 0; i-- {
			if err := m.apply(ctx, db, units[i]); err != nil {
				return err
			}
			applied = append(applied, units[i])
		}
		return nil
	})
	return reverted, applied, err
}

// Pending returns the units of the change set which have not been applied
// yet, without applying them.
func (m *Migrator) Pending(ctx context.Context, db Connection, cs *ChangeSet) ([]*Unit, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if cs == nil {
		return nil, ErrNilChangeSet
	}
	if err := m.Ledger().EnsureInitialized(ctx, db); err != nil {
		return nil, err
	}
	entries, err := m.Ledger().Applied(ctx, db, cs.Group())
	if err != nil {
		return nil, err
	}
	return cs.Pending(entries), nil
}

func (m *Migrator) apply(ctx context.Context, db Transactor, u *Unit) error {
	startedAt := m.now()
	var elapsed time.Duration

	err := transaction(ctx, db, func(tx Queryer) error {
		if _, err := tx.ExecContext(ctx, u.UpSQL); err != nil {
			return executionError(u.Group, u.Version, u.Name, "apply", err)
		}
		elapsed = time.Since(startedAt)

		err := m.Ledger().Record(ctx, tx, &LedgerEntry{
			Group:                 u.Group,
			Version:               u.Version,
			Name:                  u.Name,
			Checksum:              u.Checksum,
			DownSQL:               u.DownSQL,
			ExecutionTimeInMillis: int(elapsed.Milliseconds()),
			AppliedAt:             startedAt,
		})
		var conflict *ConflictError
		if err != nil && !errors.As(err, &conflict) {
			return executionError(u.Group, u.Version, u.Name, "record", err)
		}
		return err
	})
	if err != nil {
		return executionError(u.Group, u.Version, u.Name, "transaction", err)
	}

	m.Logger.Info("migration applied",
		"group", u.Group, "version", u.Version, "name", u.Name, "duration", elapsed)
	return nil
}

func (m *Migrator) revert(ctx context.Context, db Transactor, entry *LedgerEntry) error {
	startedAt := m.now()

	err := transaction(ctx, db, func(tx Queryer) error {
		if _, err := tx.ExecContext(ctx, entry.DownSQL); err != nil {
			return executionError(entry.Group, entry.Version, entry.Name, "rollback", err)
		}
		err := m.Ledger().Remove(ctx, tx, entry.Group, entry.Version)
		var notFound *NotFoundError
		if err != nil && !errors.As(err, &notFound) {
			return executionError(entry.Group, entry.Version, entry.Name, "remove", err)
		}
		return err
	})
	if err != nil {
		return executionError(entry.Group, entry.Version, entry.Name, "transaction", err)
	}

	m.Logger.Info("migration rolled back",
		"group", entry.Group, "version", entry.Version, "name", entry.Name, "duration", time.Since(startedAt))
	return nil
}

// checkReversible fails with a *NotReversibleError for the first entry that
// was recorded without rollback SQL.
func checkReversible(selected []*LedgerEntry) error {
	for _, entry := range selected {
		if strings.TrimSpace(entry.DownSQL) == "" {
			return &NotReversibleError{Group: entry.Group, Version: entry.Version, Name: entry.Name}
		}
	}
	return nil
}

// executionError wraps err in an *ExecutionError unless it already is one of
// the package's typed errors.
func executionError(group string, version int64, name, op string, err error) error {
	var (
		execErr  *ExecutionError
		conflict *ConflictError
		notFound *NotFoundError
	)
	if errors.Is(err, ErrNilDB) || errors.As(err, &execErr) || errors.As(err, &conflict) || errors.As(err, &notFound) {
		return err
	}
	return &ExecutionError{Group: group, Version: version, Name: name, Op: op, Err: err}
}

// withLock runs f while holding the ledger's advisory lock, after making sure
// the ledger table exists. The lock is released even if ctx was cancelled.
//
// Advisory locks belong to a session, so a *sql.DB is pinned to one of its
// connections for the whole run and f receives that connection.
func (m *Migrator) withLock(ctx context.Context, db Connection, f func(Connection) error) (err error) {
	if pool, ok := db.(*sql.DB); ok {
		conn, err := pool.Conn(ctx)
		if err != nil {
			return fmt.Errorf("failed to reserve a connection: %w", err)
		}
		defer func() { _ = conn.Close() }()
		db = conn
	}

	ledger := m.Ledger()
	if err = ledger.Lock(ctx, db); err != nil {
		return fmt.Errorf("failed to lock %s: %w", ledger.QuotedTableName(), err)
	}
	m.Logger.Debug("locked", "table", ledger.TableName, "at", m.now().Format(time.RFC3339Nano))

	defer func() {
		unlockErr := ledger.Unlock(context.WithoutCancel(ctx), db)
		if unlockErr == nil {
			m.Logger.Debug("unlocked", "table", ledger.TableName, "at", m.now().Format(time.RFC3339Nano))
		} else if err == nil {
			// Only report the unlock failure if we're not overwriting an
			// earlier error
			err = fmt.Errorf("failed to unlock %s: %w", ledger.QuotedTableName(), unlockErr)
		}
	}()

	if err = ledger.EnsureInitialized(ctx, db); err != nil {
		return err
	}
	return f(db)
}
