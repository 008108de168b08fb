package dbmigration

import "fmt"

type limitKind int

const (
	limitAll limitKind = iota
	limitCount
	limitVersion
)

// Limit bounds how many units a Migrate or Rollback call processes. The zero
// value is All().
type Limit struct {
	kind    limitKind
	count   int
	version int64
}

// All is no explicit limit. Migrate applies every pending unit; Rollback,
// which is conservative by default, reverts only the latest applied one.
func All() Limit {
	return Limit{}
}

// Count limits the call to n units.
func Count(n int) Limit {
	return Limit{kind: limitCount, count: n}
}

// ToVersion targets a version. Migrate applies pending units up to and
// including v; Rollback reverts every applied unit above v.
func ToVersion(v int64) Limit {
	return Limit{kind: limitVersion, version: v}
}

func (l Limit) String() string {
	switch l.kind {
	case limitCount:
		return fmt.Sprintf("count=%d", l.count)
	case limitVersion:
		return fmt.Sprintf("to=%d", l.version)
	default:
		return "all"
	}
}

func (l Limit) validate() error {
	if l.kind == limitCount && l.count < 0 {
		return fmt.Errorf("invalid migration count %d", l.count)
	}
	if l.kind == limitVersion && l.version < 0 {
		return fmt.Errorf("invalid target version %d", l.version)
	}
	return nil
}

// forward truncates an ascending list of pending units.
func (l Limit) forward(pending []*Unit) []*Unit {
	switch l.kind {
	case limitCount:
		if l.count < len(pending) {
			return pending[:l.count]
		}
	case limitVersion:
		for i, u := range pending {
			if u.Version > l.version {
				return pending[:i]
			}
		}
	}
	return pending
}

// backward selects entries to revert from an ascending list of applied
// entries. The result is in descending version order.
func (l Limit) backward(applied []*LedgerEntry) ([]*LedgerEntry, error) {
	var n int
	switch l.kind {
	case limitCount:
		if l.count > len(applied) {
			return nil, fmt.Errorf("%w: asked to roll back %d, %d applied", ErrInsufficientHistory, l.count, len(applied))
		}
		n = l.count
	case limitVersion:
		for _, entry := range applied {
			if entry.Version > l.version {
				n++
			}
		}
	default:
		n = 1
		if len(applied) == 0 {
			n = 0
		}
	}

	selected := make([]*LedgerEntry, 0, n)
	for i := len(applied) - 1; i >= len(applied)-n; i-- {
		selected = append(selected, applied[i])
	}
	return selected, nil
}
