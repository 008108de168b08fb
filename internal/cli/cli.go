package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/alecthomas/kong"
)

// CLI is the command line interface of dbmigration.
type CLI struct {
	Globals `embed:""`

	Migrate           Migrate           `kong:"cmd,help='Apply pending migrations.'"`
	Rollback          Rollback          `kong:"cmd,help='Roll back applied migrations using the SQL stored in the ledger.'"`
	UpdateRollbackSQL UpdateRollbackSQL `kong:"cmd,name='update-rollback-sql',help='Store the current rollback scripts in the ledger.'"`
	Redo              Redo              `kong:"cmd,help='Roll back and re-apply the latest migrations.'"`
	Status            Status            `kong:"cmd,help='Show applied and pending migrations.'"`
	Init              Init              `kong:"cmd,help='Create a configuration file and a first migration.'"`

	Version kong.VersionFlag `kong:"help='Output version and exit.'"`

	kong *kong.Kong
	kctx *kong.Context
}

// Globals are the flags shared by every command.
type Globals struct {
	Log struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the logging level."`
	} `embed:"" prefix:"log-"`
	// NOTE: kong.ConfigFlag isn't used, since the configuration file has its
	// own format and lookup rules.
	ConfigFile string `name:"config" short:"c" placeholder:"PATH" help:"Path to the configuration file. Looked up in the working directory if omitted."`
	URL        string `name:"url" env:"DBMIGRATION_DATABASE_URL" placeholder:"DSN" help:"Database URL, overriding the configuration file."`
}

// New initializes the command-line interface.
func New(appCtx *Context, version string) (*CLI, error) {
	c := &CLI{}
	kparser, err := kong.New(c,
		kong.Name("dbmigration"),
		kong.Description("Versioned schema migrations for PostgreSQL."),
		kong.UsageOnError(),
		kong.Writers(appCtx.Stdout, appCtx.Stderr),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed creating the Kong parser: %w", err)
	}

	c.kong = kparser

	return c, nil
}

// Execute starts the command execution. Parse must be called before this method.
func (c *CLI) Execute(appCtx *Context) error {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}

	//nolint:wrapcheck // This is fine.
	return c.kctx.Run(appCtx, &c.Globals)
}

// Parse the given command line arguments. This method must be called before
// Execute.
func (c *CLI) Parse(args []string) error {
	kctx, err := c.kong.Parse(args)
	if err != nil {
		return fmt.Errorf("failed parsing CLI arguments: %w", err)
	}
	c.kctx = kctx

	return nil
}

// Command returns the full path of the executed command.
func (c *CLI) Command() string {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	cmdPath := []string{}
	for _, p := range c.kctx.Path {
		if p.Command != nil {
			cmdPath = append(cmdPath, p.Command.Name)
		}
	}

	return strings.Join(cmdPath, " ")
}
