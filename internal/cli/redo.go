package cli

import (
	"fmt"
)

// The Redo command rolls back the latest migrations of a group and applies
// them again from the current scripts.
type Redo struct {
	Group string `arg:"" help:"Group to redo."`
	Count int    `arg:"" optional:"" default:"1" help:"Number of migrations to redo."`
}

// Run the redo command.
func (c *Redo) Run(appCtx *Context, g *Globals) error {
	if c.Count < 1 {
		return fmt.Errorf("invalid count %d", c.Count)
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
	cs := sets[0]

	reverted, applied, err := s.migrator.Redo(appCtx.Ctx, s.conn, cs, c.Count)
	for _, entry := range reverted {
		fmt.Fprintf(appCtx.Stdout, "rolled back %s/%s\n", cs.Group(), entry)
	}
	for _, u := range applied {
		fmt.Fprintf(appCtx.Stdout, "applied %s/%s\n", cs.Group(), u)
	}
	if err != nil {
		return fmt.Errorf("failed redoing group '%s': %w", cs.Group(), err)
	}

	return nil
}
