package cli

import (
	"fmt"
	"path/filepath"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/adlio/dbmigration/internal/config"
)

const defaultDatabaseURL = "postgres://localhost:5432/postgres?sslmode=disable"

// The Init command creates a configuration file in a directory, along with a
// first pair of migration scripts for one group.
type Init struct {
	Dir   string `arg:"" optional:"" default:"." help:"Directory to initialize."`
	Group string `default:"default" help:"Name of the first migration group."`
}

// Run the init command.
func (c *Init) Run(appCtx *Context, g *Globals) error {
	dir := c.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(appCtx.WorkDir, dir)
	}

	cfgPath := filepath.Join(dir, config.FileNames[0])
	if _, err := appCtx.FS.Stat(cfgPath); err == nil {
		return fmt.Errorf("'%s' already exists", cfgPath)
	} else if !vfs.IsErrNotExist(err) {
		return fmt.Errorf("failed checking '%s': %w", cfgPath, err)
	}

	url := g.URL
	if url == "" {
		url = defaultDatabaseURL
	}
	cfg := config.NewConfig(appCtx.FS, cfgPath)
	cfg.DatabaseURL = url
	cfg.ChangeSets = []config.ChangeSet{{Group: c.Group, Directory: c.Group}}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	groupDir := filepath.Join(dir, c.Group)
	if err := appCtx.FS.MkdirAll(groupDir, 0o755); err != nil {
		return fmt.Errorf("failed creating '%s': %w", groupDir, err)
	}
	scripts := []struct {
		name string
		sql  string
	}{
		{"1__start.sql", "CREATE TABLE start_table (id INTEGER PRIMARY KEY);\n"},
		{"1__start__down.sql", "DROP TABLE start_table;\n"},
	}
	for _, script := range scripts {
		path := filepath.Join(groupDir, script.name)
		if err := vfs.WriteFile(appCtx.FS, path, []byte(script.sql), 0o644); err != nil {
			return fmt.Errorf("failed writing '%s': %w", path, err)
		}
		fmt.Fprintf(appCtx.Stdout, "created %s\n", path)
	}

	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Fprintf(appCtx.Stdout, "created %s\n", cfgPath)

	return nil
}
