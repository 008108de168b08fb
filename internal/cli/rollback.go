package cli

import (
	"fmt"
)

// The Rollback command reverts the latest applied migrations of a group.
type Rollback struct {
	Group string `arg:"" help:"Group to roll back."`
	Count int    `arg:"" optional:"" help:"Number of migrations to roll back. Only the latest one if omitted."`
	To    int64  `default:"-1" placeholder:"VERSION" help:"Roll back every migration above this version."`
}

// Run the rollback command.
func (c *Rollback) Run(appCtx *Context, g *Globals) error {
	limit, err := newLimit(c.Count, c.To)
	if err != nil {
		return err
	}

	s, err := newSession(appCtx, g)
	if err != nil {
		return err
	}
	// The group must be configured, but its scripts aren't needed: rollback
	// replays what the ledger stored.
	if _, ok := s.cfg.ChangeSet(c.Group); !ok {
		return fmt.Errorf("group '%s' is not configured in '%s'", c.Group, s.cfg.Path())
	}
	if err = s.connect(); err != nil {
		return err
	}
	defer s.Close()

	reverted, err := s.migrator.Rollback(appCtx.Ctx, s.conn, c.Group, limit)
	for _, entry := range reverted {
		fmt.Fprintf(appCtx.Stdout, "rolled back %s/%s\n", c.Group, entry)
	}
	if err != nil {
		return fmt.Errorf("failed rolling back group '%s': %w", c.Group, err)
	}
	if len(reverted) == 0 {
		fmt.Fprintf(appCtx.Stdout, "%s has nothing to roll back\n", c.Group)
	}

	return nil
}
