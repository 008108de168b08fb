package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/adlio/dbmigration"
)

// The Status command lists the applied and pending migrations of one or
// every configured group.
type Status struct {
	Group string `arg:"" optional:"" help:"Group to report on. Every configured group if omitted."`
}

type statusRow struct {
	group     string
	version   int64
	name      string
	state     string
	appliedAt time.Time
}

// Run the status command.
func (c *Status) Run(appCtx *Context, g *Globals) error {
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

	data := [][]string{}
	for _, cs := range sets {
		st, err := s.migrator.Status(appCtx.Ctx, s.conn, cs)
		if err != nil {
			return fmt.Errorf("failed reading status of group '%s': %w", cs.Group(), err)
		}
		for _, d := range st.Drift {
			appCtx.Logger.Warn("applied migration differs from local copy",
				"group", cs.Group(), "version", d.Version, "drift", d.Kind.String())
		}
		for _, row := range statusRows(st) {
			appliedAt := ""
			if !row.appliedAt.IsZero() {
				appliedAt = row.appliedAt.Format(time.DateTime)
			}
			data = append(data, []string{
				row.group, strconv.FormatInt(row.version, 10), row.name, row.state, appliedAt,
			})
		}
	}

	header := []string{"Group", "Version", "Name", "State", "Applied At"}
	if err = renderTable(header, data, appCtx.Stdout); err != nil {
		return fmt.Errorf("failed rendering table: %w", err)
	}

	return nil
}

// statusRows merges the applied entries and pending units of a Status into
// one list ordered by version.
func statusRows(st *dbmigration.Status) []statusRow {
	drift := make(map[int64]dbmigration.DriftKind, len(st.Drift))
	for _, d := range st.Drift {
		drift[d.Version] = d.Kind
	}

	rows := make([]statusRow, 0, len(st.Applied)+len(st.Pending))
	for _, entry := range st.Applied {
		state := "applied"
		if kind, ok := drift[entry.Version]; ok {
			state = fmt.Sprintf("applied (%s drift)", kind)
		}
		rows = append(rows, statusRow{
			group: st.Group, version: entry.Version, name: entry.Name,
			state: state, appliedAt: entry.AppliedAt,
		})
	}
	for _, u := range st.Pending {
		rows = append(rows, statusRow{group: st.Group, version: u.Version, name: u.Name, state: "pending"})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].version < rows[j].version
	})

	return rows
}
