package cli

import (
	"errors"
	"fmt"
)

// The UpdateRollbackSQL command replaces the rollback SQL stored for applied
// migrations with the current down scripts.
type UpdateRollbackSQL struct {
	Group string `arg:"" optional:"" help:"Group to update. Every configured group if omitted."`
}

// Run the update-rollback-sql command.
func (c *UpdateRollbackSQL) Run(appCtx *Context, g *Globals) error {
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

	var errs []error
	for _, cs := range sets {
		report, err := s.migrator.UpdateRollbackSQL(appCtx.Ctx, s.conn, cs)
		if report != nil {
			fmt.Fprintf(appCtx.Stdout, "%s: %d updated, %d unchanged, %d missing\n",
				cs.Group(), len(report.Updated), len(report.Unchanged), len(report.Missing))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed updating rollback SQL of group '%s': %w", cs.Group(), err))
		}
	}

	return errors.Join(errs...)
}
