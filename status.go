package dbmigration

import (
	"context"
)

// DriftKind classifies how an applied ledger entry differs from the local
// change set.
type DriftKind int

const (
	// DriftChecksum means the local unit's checksum differs from the one
	// recorded when it was applied.
	DriftChecksum DriftKind = iota + 1

	// DriftMissing means the ledger holds a version with no local unit.
	DriftMissing
)

func (k DriftKind) String() string {
	switch k {
	case DriftChecksum:
		return "checksum"
	case DriftMissing:
		return "missing"
	}
	return "unknown"
}

// Drift describes one applied entry which no longer matches the change set.
// Unit is nil for DriftMissing.
type Drift struct {
	Kind    DriftKind
	Version int64
	Entry   *LedgerEntry
	Unit    *Unit
}

// detectDrift compares every applied entry against the change set. Entries
// recorded without a checksum are not compared.
func detectDrift(cs *ChangeSet, entries []*LedgerEntry) []Drift {
	drift := make([]Drift, 0)
	for _, entry := range entries {
		u, ok := cs.Unit(entry.Version)
		if !ok {
			drift = append(drift, Drift{Kind: DriftMissing, Version: entry.Version, Entry: entry})
			continue
		}
		if entry.Checksum != "" && entry.Checksum != u.Checksum {
			drift = append(drift, Drift{Kind: DriftChecksum, Version: entry.Version, Entry: entry, Unit: u})
		}
	}
	return drift
}

// Status is a snapshot of a group's ledger compared with its change set.
type Status struct {
	Group   string
	Applied []*LedgerEntry
	Pending []*Unit
	Drift   []Drift
}

// Current returns the highest applied version, or -1 when nothing has been
// applied.
func (s *Status) Current() int64 {
	if len(s.Applied) == 0 {
		return -1
	}
	return s.Applied[len(s.Applied)-1].Version
}

// UpToDate reports whether every unit of the change set has been applied.
func (s *Status) UpToDate() bool {
	return len(s.Pending) == 0
}

// Status reports which units of the change set are applied, which are
// pending and which applied entries have drifted from their local copy. It
// never modifies anything except creating the ledger table if it's missing.
func (m *Migrator) Status(ctx context.Context, db Connection, cs *ChangeSet) (*Status, error) {
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
	return &Status{
		Group:   cs.Group(),
		Applied: entries,
		Pending: cs.Pending(entries),
		Drift:   detectDrift(cs, entries),
	}, nil
}
