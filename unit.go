package dbmigration

import (
	"crypto/md5" // #nosec MD5 is only being used to fingerprint the script contents, not for encryption
	"fmt"
	"strings"
)

// Unit is a single versioned change to the schema. It carries the SQL needed
// to apply it and, optionally, the SQL needed to reverse it.
type Unit struct {
	// Group is the migration stream the unit belongs to.
	Group string

	// Version orders units within a Group. It is unique within the Group.
	Version int64

	// Name is a human-readable label. It has no uniqueness requirement.
	Name string

	// UpSQL is executed to apply the change.
	UpSQL string

	// DownSQL is executed to reverse the change. A blank DownSQL means the
	// unit can't be rolled back automatically.
	DownSQL string

	// Checksum fingerprints UpSQL and DownSQL so that drift between what was
	// applied and what is currently on disk can be detected.
	Checksum string
}

// NewUnit builds a Unit and computes its Checksum.
func NewUnit(group string, version int64, name, upSQL, downSQL string) *Unit {
	u := &Unit{
		Group:   group,
		Version: version,
		Name:    name,
		UpSQL:   upSQL,
		DownSQL: downSQL,
	}
	u.Checksum = u.MD5()
	return u
}

// MD5 computes the MD5 hash of the unit's scripts, for use as its
// Checksum. The up and down scripts are separated by a NUL byte so that
// moving text between them changes the hash.
func (u *Unit) MD5() string {
	h := md5.New() // #nosec not being used for security purposes
	_, _ = h.Write([]byte(u.UpSQL))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(u.DownSQL))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Reversible reports whether the unit has a rollback script.
func (u *Unit) Reversible() bool {
	return strings.TrimSpace(u.DownSQL) != ""
}

func (u *Unit) String() string {
	return fmt.Sprintf("V%d %s", u.Version, u.Name)
}
