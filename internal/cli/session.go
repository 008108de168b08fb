package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/adlio/dbmigration"
	"github.com/adlio/dbmigration/internal/config"
)

// session holds what a database command needs: the configuration, a
// Migrator bound to the configured ledger table and, once connected, a
// dedicated connection.
// The advisory lock is session-scoped in Postgres, so every statement of a
// run must go through the same *sql.Conn.
type session struct {
	cfg      *config.Config
	db       *sql.DB
	conn     *sql.Conn
	migrator *dbmigration.Migrator
	appCtx   *Context
}

// loadConfig finds and loads the configuration file, applying the --url
// override.
func loadConfig(appCtx *Context, g *Globals) (*config.Config, error) {
	path := g.ConfigFile
	if path == "" {
		var err error
		if path, err = config.Find(appCtx.FS, appCtx.WorkDir); err != nil {
			return nil, err
		}
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(appCtx.WorkDir, path)
	}

	cfg, err := config.Load(appCtx.FS, path)
	if err != nil {
		return nil, err
	}
	if g.URL != "" {
		cfg.DatabaseURL = g.URL
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database URL: set database_url in '%s' or pass --url", path)
	}
	appCtx.Logger.Debug("loaded configuration", "path", path, "driver", cfg.Driver, "changesets", len(cfg.ChangeSets))

	return cfg, nil
}

// newSession loads the configuration and prepares the Migrator. Nothing is
// opened until connect is called, so commands can validate their scripts
// first.
func newSession(appCtx *Context, g *Globals) (*session, error) {
	cfg, err := loadConfig(appCtx, g)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg: cfg,
		migrator: dbmigration.NewMigrator(
			dbmigration.WithTableName(cfg.Schema, cfg.Table),
			dbmigration.WithLogger(appCtx.Logger),
		),
		appCtx: appCtx,
	}, nil
}

// connect opens the pool and reserves the dedicated connection.
func (s *session) connect() error {
	db, err := s.appCtx.OpenDB(s.appCtx.Ctx, s.cfg.Driver, s.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	conn, err := db.Conn(s.appCtx.Ctx)
	if err != nil {
		_ = db.Close()
		return &dbmigration.ConnectionError{Driver: s.cfg.Driver, Err: err}
	}
	s.db, s.conn = db, conn

	return nil
}

// Close releases the connection and the pool, if connect succeeded.
// Failures are logged, since they can't affect what was already committed.
func (s *session) Close() {
	if s.conn == nil {
		return
	}
	if err := errors.Join(s.conn.Close(), s.db.Close()); err != nil {
		s.appCtx.Logger.Warn("failed closing the database connection", "error", err)
	}
}

// changeSets loads the scripts of the named group, or of every configured
// group in configuration order if group is empty.
func (s *session) changeSets(group string) ([]*dbmigration.ChangeSet, error) {
	entries := s.cfg.ChangeSets
	if group != "" {
		entry, ok := s.cfg.ChangeSet(group)
		if !ok {
			return nil, fmt.Errorf("group '%s' is not configured in '%s'", group, s.cfg.Path())
		}
		entries = []config.ChangeSet{entry}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no changesets are configured in '%s'", s.cfg.Path())
	}

	sets := make([]*dbmigration.ChangeSet, 0, len(entries))
	for _, entry := range entries {
		dir := s.cfg.Directory(entry)
		cs, err := dbmigration.LoadFS(entry.Group, newDirFS(s.appCtx.FS, dir), ".")
		if err != nil {
			return nil, fmt.Errorf("failed loading group '%s' from '%s': %w", entry.Group, dir, err)
		}
		s.appCtx.Logger.Debug("loaded migrations", "group", cs.Group(), "dir", dir, "count", cs.Len())
		sets = append(sets, cs)
	}

	return sets, nil
}

// newLimit converts the COUNT argument and --to flag into a Limit. A zero
// count and a negative version mean they weren't supplied.
func newLimit(count int, to int64) (dbmigration.Limit, error) {
	switch {
	case count < 0:
		return dbmigration.Limit{}, fmt.Errorf("invalid count %d", count)
	case count > 0 && to >= 0:
		return dbmigration.Limit{}, errors.New("COUNT and --to can't be used together")
	case to >= 0:
		return dbmigration.ToVersion(to), nil
	case count > 0:
		return dbmigration.Count(count), nil
	}
	return dbmigration.All(), nil
}
