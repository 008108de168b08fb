package dbmigration

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewChangeSetSortsByVersion(t *testing.T) {
	cs, err := NewChangeSet("default", []*Unit{
		NewUnit("default", 10, "c", "SELECT 10;", ""),
		NewUnit("default", 2, "b", "SELECT 2;", ""),
		NewUnit("default", 1, "a", "SELECT 1;", ""),
	})
	if err != nil {
		t.Fatal(err)
	}
	expectVersions(t, cs.Versions(), 1, 2, 10)
	if cs.Len() != 3 || cs.Group() != "default" {
		t.Errorf("Unexpected change set %s/%d", cs.Group(), cs.Len())
	}
}

func TestNewChangeSetValidation(t *testing.T) {
	tests := []struct {
		name     string
		group    string
		units    []*Unit
		contains string
	}{
		{"blank group", " ", nil, "group name is blank"},
		{"foreign unit", "default", []*Unit{NewUnit("other", 1, "a", "SELECT 1;", "")}, "belongs to group 'other'"},
		{"negative version", "default", []*Unit{NewUnit("default", -1, "a", "SELECT 1;", "")}, "negative version -1"},
		{"empty up", "default", []*Unit{NewUnit("default", 1, "a", "  ", "")}, "empty up script"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewChangeSet(test.group, test.units)
			expectErrorContains(t, err, test.contains)
		})
	}
}

func TestNewChangeSetRejectsDuplicates(t *testing.T) {
	_, err := NewChangeSet("default", []*Unit{
		NewUnit("default", 1, "a", "SELECT 1;", ""),
		NewUnit("default", 1, "b", "SELECT 2;", ""),
	})
	var dup *DuplicateVersionError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected a DuplicateVersionError. Got %v", err)
	}
	if dup.Version != 1 || len(dup.Files) != 2 {
		t.Errorf("Unexpected DuplicateVersionError: %+v", dup)
	}
}

func TestChangeSetPending(t *testing.T) {
	cs := testChangeSet(t, 1, 2, 3, 4)

	pending := cs.Pending([]*LedgerEntry{{Version: 1}, {Version: 3}, {Version: 99}})
	expectVersions(t, unitVersions(pending), 2, 4)

	pending = cs.Pending(nil)
	expectVersions(t, unitVersions(pending), 1, 2, 3, 4)

	pending = cs.Pending([]*LedgerEntry{{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}})
	if len(pending) != 0 {
		t.Errorf("Expected nothing pending. Got %d", len(pending))
	}
}

func TestChangeSetUnit(t *testing.T) {
	cs := testChangeSet(t, 1, 5, 9)
	u, ok := cs.Unit(5)
	if !ok || u.Version != 5 {
		t.Errorf("Expected to find version 5. Got %v", u)
	}
	if _, ok = cs.Unit(4); ok {
		t.Error("Didn't expect to find version 4")
	}
	if _, ok = cs.Unit(10); ok {
		t.Error("Didn't expect to find version 10")
	}
}

func TestNewChangeSetComputesBlankChecksums(t *testing.T) {
	u := &Unit{Group: "default", Version: 1, Name: "a", UpSQL: "SELECT 1;", DownSQL: "SELECT 0;"}
	cs, err := NewChangeSet("default", []*Unit{u})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := cs.Unit(1)
	if got.Checksum != u.MD5() {
		t.Errorf("Expected checksum %s. Got '%s'", u.MD5(), got.Checksum)
	}
	if u.Checksum != "" {
		t.Error("Expected the caller's unit to be left alone")
	}

	kept := &Unit{Group: "default", Version: 2, Name: "b", UpSQL: "SELECT 2;", Checksum: "legacy"}
	cs, err = NewChangeSet("default", []*Unit{kept})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ = cs.Unit(2); got.Checksum != "legacy" {
		t.Errorf("Expected a supplied checksum to be kept. Got '%s'", got.Checksum)
	}
}

func TestChangeSetUnitsIsACopy(t *testing.T) {
	cs := testChangeSet(t, 1, 2)
	units := cs.Units()
	units[0] = nil
	if cs.Units()[0] == nil {
		t.Error("Expected modifying Units() to leave the change set intact")
	}
}

func TestChangeSetIsImmutable(t *testing.T) {
	u := testUnit(1)
	cs, err := NewChangeSet("default", []*Unit{u})
	if err != nil {
		t.Fatal(err)
	}
	u.UpSQL = "DROP TABLE everything;"

	cs.Units()[0].UpSQL = "DROP TABLE everything;"
	found, _ := cs.Unit(1)
	found.DownSQL = ""
	cs.Pending(nil)[0].Checksum = "tampered"

	got, _ := cs.Unit(1)
	want := testUnit(1)
	if got.UpSQL != want.UpSQL || got.DownSQL != want.DownSQL || got.Checksum != want.Checksum {
		t.Errorf("Expected the change set to keep its own units. Got %+v", got)
	}
}

// testChangeSet builds a "default" change set with one reversible unit per
// version.
func testChangeSet(t *testing.T, versions ...int64) *ChangeSet {
	t.Helper()
	units := make([]*Unit, 0, len(versions))
	for _, v := range versions {
		units = append(units, testUnit(v))
	}
	cs, err := NewChangeSet("default", units)
	if err != nil {
		t.Fatal(err)
	}
	return cs
}

func testUnit(version int64) *Unit {
	return NewUnit("default", version, "step",
		fmt.Sprintf("CREATE TABLE t%d (id INTEGER);", version),
		fmt.Sprintf("DROP TABLE t%d;", version))
}

func unitVersions(units []*Unit) []int64 {
	versions := make([]int64, 0, len(units))
	for _, u := range units {
		versions = append(versions, u.Version)
	}
	return versions
}

func entryVersions(entries []*LedgerEntry) []int64 {
	versions := make([]int64, 0, len(entries))
	for _, e := range entries {
		versions = append(versions, e.Version)
	}
	return versions
}

func expectVersions(t *testing.T, actual []int64, expected ...int64) {
	t.Helper()
	if len(actual) != len(expected) {
		t.Errorf("Expected versions %v, got %v", expected, actual)
		return
	}
	for i := range expected {
		if actual[i] != expected[i] {
			t.Errorf("Expected versions %v, got %v", expected, actual)
			return
		}
	}
}
