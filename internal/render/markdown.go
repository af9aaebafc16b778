package render

import (
	"fmt"
	"io"

	"github.com/schemadelta/schemadelta/internal/diff"
)

// MarkdownReport writes the comparison report as markdown, with the same
// section order and determinism guarantees as Report.
func MarkdownReport(w io.Writer, d *diff.Diff, oldLabel, newLabel string) error {
	out := func(format string, args ...any) error {
		_, err := fmt.Fprintf(w, format, args...)
		return err
	}

	if err := out("# Schema Comparison\n\n"); err != nil {
		return err
	}
	if err := out("- **Old:** %s\n- **New:** %s\n\n", oldLabel, newLabel); err != nil {
		return err
	}

	if err := out("## Summary\n\n"); err != nil {
		return err
	}
	if err := out("| | Old | New |\n|---|---|---|\n| Tables | %d | %d |\n\n", d.OldTableCount, d.NewTableCount); err != nil {
		return err
	}
	if err := out("Added: %d, removed: %d, common: %d\n\n", len(d.Added), len(d.Removed), len(d.Common)); err != nil {
		return err
	}

	if len(d.Added) > 0 {
		if err := out("## Added Tables\n\n"); err != nil {
			return err
		}
		for _, t := range d.Added {
			if err := out("- %s\n", t.Name); err != nil {
				return err
			}
		}
		if err := out("\n"); err != nil {
			return err
		}
	}

	if len(d.Removed) > 0 {
		if err := out("## Removed Tables\n\n"); err != nil {
			return err
		}
		for _, t := range d.Removed {
			if err := out("- %s\n", t.Name); err != nil {
				return err
			}
		}
		if err := out("\n"); err != nil {
			return err
		}
	}

	// Index/trigger-only changes get an entry of their own; a common table
	// must not vanish from the report just because no column moved.
	changed := changedTables(d)
	if len(changed) > 0 {
		if err := out("## Modified Tables\n\n"); err != nil {
			return err
		}
		for _, name := range changed {
			if err := out("### %s\n\n", name); err != nil {
				return err
			}
			if td := d.Modified[name]; td != nil {
				if td.Rebuild {
					if err := out("- structure changed (opaque table, compared wholesale)\n"); err != nil {
						return err
					}
				}
				for _, c := range td.AddedColumns {
					if err := out("- **%s:** added (%s)\n", c.Name, describeColumn(c)); err != nil {
						return err
					}
				}
				for _, c := range td.RemovedColumns {
					if err := out("- **%s:** removed\n", c.Name); err != nil {
						return err
					}
				}
				for _, ch := range td.ChangedColumns {
					if err := out("- **%s:** %s → %s\n", ch.Old.Name, describeColumn(ch.Old), describeColumn(ch.New)); err != nil {
						return err
					}
				}
			}
			if d.IndexesChanged[name] {
				if err := out("- indexes changed\n"); err != nil {
					return err
				}
			}
			if d.TriggersChanged[name] {
				if err := out("- triggers changed\n"); err != nil {
					return err
				}
			}
			if err := out("\n"); err != nil {
				return err
			}
		}
	}

	return nil
}
