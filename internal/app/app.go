// Package app wires the command line interface to the process environment:
// filesystem, standard streams, logger and database connector.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mandelsoft/vfs/pkg/memoryfs"

	"github.com/adlio/dbmigration"
	"github.com/adlio/dbmigration/internal/cli"
)

// App is the application.
type App struct {
	name    string
	version string
	ctx     *cli.Context
	cli     *cli.CLI
	// the logging level is set via the CLI, if the app was initialized with the
	// WithLogger option.
	logLevel *slog.LevelVar
}

// New initializes a new application.
func New(name, version string, opts ...Option) (*App, error) {
	defaultCtx := &cli.Context{
		Ctx:     context.Background(),
		FS:      memoryfs.New(),
		WorkDir: "/",
		Logger:  slog.New(slog.DiscardHandler),
		OpenDB:  dbmigration.Open,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	app := &App{name: name, version: version, ctx: defaultCtx}

	for _, opt := range opts {
		opt(app)
	}

	var err error
	app.cli, err = cli.New(app.ctx, name+" "+version)
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Run parses the arguments and executes the selected command.
func (app *App) Run(args []string) error {
	if err := app.cli.Parse(args); err != nil {
		return err
	}

	if app.logLevel != nil {
		app.logLevel.Set(app.cli.Log.Level)
	}
	app.ctx.Logger.Debug("running command", "command", app.cli.Command())

	return app.cli.Execute(app.ctx)
}

// Logger returns the application logger.
func (app *App) Logger() *slog.Logger {
	return app.ctx.Logger
}

// LogError logs err, adding the group and version of the failing migration
// when the error carries them.
func (app *App) LogError(err error) {
	attrs := []any{}

	var (
		execErr       *dbmigration.ExecutionError
		notReversible *dbmigration.NotReversibleError
		conflict      *dbmigration.ConflictError
		notFound      *dbmigration.NotFoundError
		dup           *dbmigration.DuplicateVersionError
		parseErr      *dbmigration.ParseError
	)
	switch {
	case errors.As(err, &execErr):
		attrs = append(attrs, "group", execErr.Group, "version", execErr.Version, "name", execErr.Name, "op", execErr.Op)
	case errors.As(err, &notReversible):
		attrs = append(attrs, "group", notReversible.Group, "version", notReversible.Version)
	case errors.As(err, &conflict):
		attrs = append(attrs, "group", conflict.Group, "version", conflict.Version)
	case errors.As(err, &notFound):
		attrs = append(attrs, "group", notFound.Group, "version", notFound.Version)
	case errors.As(err, &dup):
		attrs = append(attrs, "group", dup.Group, "version", dup.Version)
	case errors.As(err, &parseErr):
		attrs = append(attrs, "file", parseErr.File)
	}

	app.ctx.Logger.Error(err.Error(), attrs...)
}
