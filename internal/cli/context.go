package cli

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// OpenFunc opens a database handle for a driver name and DSN.
type OpenFunc func(ctx context.Context, driver, dsn string) (*sql.DB, error)

// Context contains common objects used by the commands. It is passed around
// to avoid direct dependencies on external systems, and make testing easier.
type Context struct {
	Ctx     context.Context // global context
	FS      vfs.FileSystem  // filesystem holding the configuration and scripts
	WorkDir string          // directory the configuration is looked up in
	Logger  *slog.Logger    // global logger
	OpenDB  OpenFunc        // database connector

	// Standard streams
	Stdout io.Writer
	Stderr io.Writer
}
