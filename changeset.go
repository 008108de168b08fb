package dbmigration

import (
	"fmt"
	"sort"
	"strings"
)

// ChangeSet is the ordered collection of units available for one group. It
// is immutable once built by NewChangeSet: it keeps its own copies of the
// units and hands out copies.
type ChangeSet struct {
	group string
	units []*Unit
}

// NewChangeSet validates the supplied units and returns copies of them as a
// ChangeSet sorted by version. Every unit must belong to the group, have a
// non-blank UpSQL and a version unique within the group. A blank Checksum is
// computed.
func NewChangeSet(group string, units []*Unit) (*ChangeSet, error) {
	if strings.TrimSpace(group) == "" {
		return nil, fmt.Errorf("change set group name is blank")
	}

	sorted := make([]*Unit, 0, len(units))
	seen := make(map[int64]*Unit, len(units))
	for _, u := range units {
		if u.Group != group {
			return nil, fmt.Errorf("migration %s belongs to group '%s', not '%s'", u, u.Group, group)
		}
		if u.Version < 0 {
			return nil, &ParseError{File: u.Name, Reason: fmt.Sprintf("negative version %d", u.Version)}
		}
		if strings.TrimSpace(u.UpSQL) == "" {
			return nil, &ParseError{File: u.Name, Reason: "empty up script"}
		}
		if prev, exists := seen[u.Version]; exists {
			return nil, &DuplicateVersionError{
				Group:   group,
				Version: u.Version,
				Files:   []string{prev.Name, u.Name},
			}
		}
		seen[u.Version] = u

		c := *u
		if c.Checksum == "" {
			c.Checksum = c.MD5()
		}
		sorted = append(sorted, &c)
	}
	SortUnits(sorted)

	return &ChangeSet{group: group, units: sorted}, nil
}

// SortUnits sorts a slice of units by their versions
func SortUnits(units []*Unit) {
	sort.Slice(units, func(i, j int) bool {
		return units[i].Version < units[j].Version
	})
}

// Group returns the name of the group this change set belongs to.
func (cs *ChangeSet) Group() string {
	return cs.group
}

// Len returns the number of units in the change set.
func (cs *ChangeSet) Len() int {
	return len(cs.units)
}

// Units returns copies of the units in ascending version order; modifying
// them doesn't affect the change set.
func (cs *ChangeSet) Units() []*Unit {
	units := make([]*Unit, 0, len(cs.units))
	for _, u := range cs.units {
		c := *u
		units = append(units, &c)
	}
	return units
}

// Unit looks up a copy of the unit with the version.
func (cs *ChangeSet) Unit(version int64) (*Unit, bool) {
	i := sort.Search(len(cs.units), func(i int) bool {
		return cs.units[i].Version >= version
	})
	if i < len(cs.units) && cs.units[i].Version == version {
		c := *cs.units[i]
		return &c, true
	}
	return nil, false
}

// Versions returns every version in the change set, ascending.
func (cs *ChangeSet) Versions() []int64 {
	versions := make([]int64, 0, len(cs.units))
	for _, u := range cs.units {
		versions = append(versions, u.Version)
	}
	return versions
}

// Pending returns copies of the units whose versions are absent from the
// supplied ledger entries, in ascending version order.
func (cs *ChangeSet) Pending(applied []*LedgerEntry) []*Unit {
	done := make(map[int64]struct{}, len(applied))
	for _, entry := range applied {
		done[entry.Version] = struct{}{}
	}

	pending := make([]*Unit, 0)
	for _, u := range cs.units {
		if _, exists := done[u.Version]; !exists {
			c := *u
			pending = append(pending, &c)
		}
	}
	return pending
}
