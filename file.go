package dbmigration

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Direction tells whether a migration file holds the script applying a
// change or the one reversing it.
type Direction int

const (
	// Up scripts apply a change.
	Up Direction = iota
	// Down scripts reverse a change.
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// filenamePattern matches <version>__<name>.sql, <version>__<name>__up.sql
// and <version>__<name>__down.sql. The suffix and extension are case
// insensitive.
var filenamePattern = regexp.MustCompile(`^([0-9]+)__(.+?)(?:__((?i:up|down)))?\.(?i:sql)$`)

// ParseFilename extracts the version, name and direction from a migration
// file name. Directory components are ignored.
func ParseFilename(filename string) (version int64, name string, dir Direction, err error) {
	base := path.Base(filename)
	match := filenamePattern.FindStringSubmatch(base)
	if match == nil {
		return 0, "", Up, &ParseError{
			File:   filename,
			Reason: "name must look like <version>__<name>.sql or <version>__<name>__down.sql",
		}
	}

	version, err = strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, "", Up, &ParseError{File: filename, Reason: fmt.Sprintf("version %s is out of range", match[1])}
	}

	if strings.EqualFold(match[3], "down") {
		dir = Down
	}
	return version, match[2], dir, nil
}

// LoadDir builds a ChangeSet for the group from the .sql files in a
// directory on disk.
func LoadDir(group, dirPath string) (*ChangeSet, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations from '%s': %w", dirPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to read migrations from '%s': not a directory", dirPath)
	}
	return LoadFS(group, os.DirFS(dirPath), ".")
}

// LoadFS builds a ChangeSet for the group from the .sql files found directly
// inside dir of the filesystem (such as an embed.FS). Files without the .sql
// extension and subdirectories are ignored; .sql files which don't follow the
// naming convention fail the load.
//
// Example usage:
//
//	LoadFS("default", embeddedFS, "migrations")
func LoadFS(group string, fsys fs.FS, dir string) (*ChangeSet, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory '%s': %w", dir, err)
	}

	ups := make(map[int64]*Unit)
	upFiles := make(map[int64]string)
	downs := make(map[int64]string)
	downFiles := make(map[int64]string)
	downNames := make(map[int64]string)
	order := make([]int64, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(path.Ext(entry.Name()), ".sql") {
			continue
		}
		filename := path.Join(dir, entry.Name())

		version, name, direction, err := ParseFilename(filename)
		if err != nil {
			return nil, err
		}

		data, err := fs.ReadFile(fsys, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration from '%s': %w", filename, err)
		}

		switch direction {
		case Up:
			if prev, exists := upFiles[version]; exists {
				return nil, &DuplicateVersionError{Group: group, Version: version, Files: []string{prev, filename}}
			}
			if strings.TrimSpace(string(data)) == "" {
				return nil, &ParseError{File: filename, Reason: "empty up script"}
			}
			upFiles[version] = filename
			ups[version] = &Unit{Group: group, Version: version, Name: name, UpSQL: string(data)}
			order = append(order, version)
		case Down:
			if prev, exists := downFiles[version]; exists {
				return nil, &DuplicateVersionError{Group: group, Version: version, Files: []string{prev, filename}}
			}
			downFiles[version] = filename
			downNames[version] = name
			downs[version] = string(data)
		}
	}

	for version, filename := range downFiles {
		up, exists := ups[version]
		if !exists {
			return nil, &ParseError{File: filename, Reason: "rollback script has no matching up script"}
		}
		if downNames[version] != up.Name {
			return nil, &ParseError{
				File:   filename,
				Reason: fmt.Sprintf("name '%s' doesn't match up script '%s'", downNames[version], upFiles[version]),
			}
		}
	}

	units := make([]*Unit, 0, len(order))
	for _, version := range order {
		u := ups[version]
		u.DownSQL = downs[version]
		u.Checksum = u.MD5()
		units = append(units, u)
	}

	return NewChangeSet(group, units)
}
