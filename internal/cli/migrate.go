package cli

import (
	"fmt"
)

// The Migrate command applies pending migrations of one or every configured
// group.
type Migrate struct {
	Group string `arg:"" optional:"" help:"Group to migrate. Every configured group if omitted."`
	Count int    `arg:"" optional:"" help:"Maximum number of migrations to apply per group. All pending if omitted."`
	To    int64  `default:"-1" placeholder:"VERSION" help:"Apply pending migrations up to and including this version."`
}

// Run the migrate command.
func (c *Migrate) Run(appCtx *Context, g *Globals) error {
	limit, err := newLimit(c.Count, c.To)
	if err != nil {
		return err
	}

	s, err := newSession(appCtx, g)
	if err != nil {
		return err
	}
	sets, err := s.changeSets(c.Group)
	if err != nil {
		return err
	}
	if err = s.connect(); err != nil {
		return err
	}
	defer s.Close()

	for _, cs := range sets {
		applied, err := s.migrator.Migrate(appCtx.Ctx, s.conn, cs, limit)
		for _, u := range applied {
			fmt.Fprintf(appCtx.Stdout, "applied %s/%s\n", cs.Group(), u)
		}
		if err != nil {
			return fmt.Errorf("failed migrating group '%s': %w", cs.Group(), err)
		}
		if len(applied) == 0 {
			fmt.Fprintf(appCtx.Stdout, "%s is up to date\n", cs.Group())
		}
	}

	return nil
}
