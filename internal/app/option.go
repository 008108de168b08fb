package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/adlio/dbmigration/internal/cli"
)

// Option is a function that allows configuring the application.
type Option func(*App)

// WithContext sets the main context.
func WithContext(ctx context.Context) Option {
	return func(app *App) {
		app.ctx.Ctx = ctx
	}
}

// WithFDs sets the output streams used by the application.
func WithFDs(stdout, stderr io.Writer) Option {
	return func(app *App) {
		app.ctx.Stdout = stdout
		app.ctx.Stderr = stderr
	}
}

// WithFS sets the filesystem used by the application.
func WithFS(fs vfs.FileSystem) Option {
	return func(app *App) {
		app.ctx.FS = fs
	}
}

// WithWorkDir sets the directory the configuration file is looked up in.
func WithWorkDir(dir string) Option {
	return func(app *App) {
		app.ctx.WorkDir = dir
	}
}

// WithOpener sets the function used to connect to the database.
func WithOpener(open cli.OpenFunc) Option {
	return func(app *App) {
		app.ctx.OpenDB = open
	}
}

// WithLogger initializes the logger used by the application. It writes to
// the stderr stream, so it must follow WithFDs.
func WithLogger(isStderrTTY bool) Option {
	return func(app *App) {
		lvl := &slog.LevelVar{}
		lvl.Set(slog.LevelInfo)
		logger := slog.New(
			tint.NewHandler(app.ctx.Stderr, &tint.Options{
				Level:      lvl,
				NoColor:    !isStderrTTY,
				TimeFormat: "2006-01-02 15:04:05.000",
			}),
		)
		app.logLevel = lvl
		app.ctx.Logger = logger
	}
}
