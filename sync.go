package dbmigration

import (
	"context"
	"errors"
	"fmt"
)

// SyncReport describes the outcome of UpdateRollbackSQL for one group.
type SyncReport struct {
	Group string

	// Updated lists the versions whose rollback SQL was rewritten.
	Updated []int64

	// Unchanged lists applied versions whose stored rollback SQL and
	// checksum already matched the change set.
	Unchanged []int64

	// Missing holds the versions which disappeared from the ledger between
	// being read and being updated.
	Missing []*NotFoundError
}

// Err returns a *SyncError aggregating Missing, or nil if every applied
// version was synced.
func (r *SyncReport) Err() error {
	if r == nil || len(r.Missing) == 0 {
		return nil
	}
	return &SyncError{Group: r.Group, Missing: r.Missing}
}

// UpdateRollbackSQL rewrites the rollback SQL and checksum stored in the
// ledger for every applied unit of the change set, so that a later Rollback
// replays the current down scripts. Units which were never applied are
// ignored and no schema change is executed.
//
// A version removed from the ledger while the sync runs doesn't stop it; it
// is reported in SyncReport.Missing and the returned error is the report's
// *SyncError.
func (m *Migrator) UpdateRollbackSQL(ctx context.Context, db Connection, cs *ChangeSet) (*SyncReport, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if cs == nil {
		return nil, ErrNilChangeSet
	}

	report := &SyncReport{
		Group:     cs.Group(),
		Updated:   make([]int64, 0),
		Unchanged: make([]int64, 0),
		Missing:   make([]*NotFoundError, 0),
	}
	err := m.withLock(ctx, db, func(db Connection) error {
		entries, err := m.Ledger().Applied(ctx, db, cs.Group())
		if err != nil {
			return err
		}

		for _, entry := range entries {
			u, ok := cs.Unit(entry.Version)
			if !ok {
				continue
			}
			if u.Name != entry.Name {
				m.Logger.Warn("migration was renamed since it was applied",
					"group", cs.Group(), "version", u.Version, "applied_name", entry.Name, "name", u.Name)
			}
			if entry.DownSQL == u.DownSQL && entry.Checksum == u.Checksum {
				report.Unchanged = append(report.Unchanged, u.Version)
				continue
			}

			err := m.Ledger().UpdateDownSQL(ctx, db, cs.Group(), u.Version, u.DownSQL, u.Checksum)
			var notFound *NotFoundError
			switch {
			case errors.As(err, &notFound):
				m.Logger.Warn("migration vanished from the ledger during sync",
					"group", cs.Group(), "version", u.Version)
				report.Missing = append(report.Missing, notFound)
			case err != nil:
				return fmt.Errorf("failed to update rollback SQL of %s: %w", u, err)
			default:
				m.Logger.Info("rollback SQL updated", "group", cs.Group(), "version", u.Version, "name", u.Name)
				report.Updated = append(report.Updated, u.Version)
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, report.Err()
}
