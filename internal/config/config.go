// Package config reads and writes the dbmigration configuration file, which
// names the database to migrate and the directories holding each group's
// migration scripts.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"gopkg.in/yaml.v3"

	"github.com/adlio/dbmigration"
)

// FileNames are the configuration file names looked up in the working
// directory, in order of preference.
var FileNames = []string{"dbmigration.json", "dbmigration.yaml", "dbmigration.yml"}

// UserFile is the configuration path looked up under the XDG config
// directories when the working directory holds none of FileNames.
const UserFile = "dbmigration/config.yaml"

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// ErrNotFound is returned by Find when no configuration file exists.
var ErrNotFound = errors.New("configuration file not found")

// searchUserFile is replaced in tests so that the user's real XDG
// directories are never read.
var searchUserFile = xdg.SearchConfigFile

// Config represents the application configuration, backed by a filesystem for
// persistence.
type Config struct {
	DatabaseURL string      `json:"database_url" yaml:"database_url"`
	Driver      string      `json:"driver,omitempty" yaml:"driver,omitempty"`
	Table       string      `json:"table,omitempty" yaml:"table,omitempty"`
	Schema      string      `json:"schema,omitempty" yaml:"schema,omitempty"`
	ChangeSets  []ChangeSet `json:"changesets" yaml:"changesets"`

	fs   vfs.FileSystem
	path string
}

// ChangeSet maps a migration group to the directory holding its scripts.
// Relative directories are relative to the configuration file.
type ChangeSet struct {
	Group     string `json:"group_name" yaml:"group_name"`
	Directory string `json:"directory" yaml:"directory"`
}

// NewConfig creates a new Config instance with the specified filesystem
// and configuration file path.
func NewConfig(fs vfs.FileSystem, path string) *Config {
	return &Config{fs: fs, path: path}
}

// Find returns the path of the configuration file for the working directory
// dir: the first of FileNames present in it, otherwise UserFile from the XDG
// config directories. It returns ErrNotFound if neither exists.
func Find(fs vfs.FileSystem, dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		info, err := fs.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !vfs.IsErrNotExist(err) {
			return "", fmt.Errorf("failed checking configuration file '%s': %w", path, err)
		}
	}

	if path, err := searchUserFile(UserFile); err == nil {
		if _, err = fs.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w in '%s' (looked for %s)", ErrNotFound, dir, strings.Join(FileNames, ", "))
}

// Load reads, parses and validates the configuration file at path. Files
// ending in .yaml or .yml are parsed as YAML, anything else as JSON.
func Load(fs vfs.FileSystem, path string) (*Config, error) {
	c := NewConfig(fs, path)
	if err := c.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses the configuration file from the filesystem, then
// applies defaults and validates the result.
func (c *Config) Load() error {
	data, err := vfs.ReadFile(c.fs, c.path)
	if err != nil {
		return fmt.Errorf("failed reading configuration file: %w", err)
	}

	if isYAML(c.path) {
		err = yaml.Unmarshal(data, c)
	} else {
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("failed parsing configuration file '%s': %w", c.path, err)
	}

	c.SetDefaults()
	return c.Validate()
}

// Save writes the current configuration to the filesystem, as YAML or JSON
// depending on the file extension.
func (c *Config) Save() error {
	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed creating configuration directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(c.path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed serializing configuration data: %w", err)
	}
	if err = vfs.WriteFile(c.fs, c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed writing configuration file: %w", err)
	}

	return nil
}

// Path returns the filesystem path where the configuration is stored.
func (c *Config) Path() string {
	return c.path
}

// SetDefaults sets default configuration values if they weren't set already.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	if c.Table == "" {
		c.Table = dbmigration.DefaultTableName
	}
}

// Validate checks the driver name and that every change set has a unique,
// non-blank group name and a directory. The database URL isn't checked since
// it can be supplied on the command line.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverPgx:
	default:
		return fmt.Errorf("unsupported driver '%s': must be '%s' or '%s'", c.Driver, DriverPostgres, DriverPgx)
	}

	seen := make(map[string]struct{}, len(c.ChangeSets))
	for i, cs := range c.ChangeSets {
		if strings.TrimSpace(cs.Group) == "" {
			return fmt.Errorf("changeset #%d has no group_name", i+1)
		}
		if strings.TrimSpace(cs.Directory) == "" {
			return fmt.Errorf("changeset '%s' has no directory", cs.Group)
		}
		if _, exists := seen[cs.Group]; exists {
			return fmt.Errorf("changeset '%s' is configured more than once", cs.Group)
		}
		seen[cs.Group] = struct{}{}
	}

	return nil
}

// ChangeSet returns the change set configured for group.
func (c *Config) ChangeSet(group string) (ChangeSet, bool) {
	for _, cs := range c.ChangeSets {
		if cs.Group == group {
			return cs, true
		}
	}
	return ChangeSet{}, false
}

// Directory returns the change set's directory, resolved against the
// directory of the configuration file when it is relative.
func (c *Config) Directory(cs ChangeSet) string {
	if filepath.IsAbs(cs.Directory) {
		return filepath.Clean(cs.Directory)
	}
	return filepath.Join(filepath.Dir(c.path), cs.Directory)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
