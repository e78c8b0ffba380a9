package output

import (
	"bytes"
	"fmt"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
)

func init() {
	Register("plain", func() Formatter { return &PlainFormatter{} })
}

// PlainFormatter renders a report as line-oriented text suitable for
// scripts and logs.
type PlainFormatter struct{}

// Format writes the plain-text report.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	if r.Plan == nil {
		return fmt.Errorf("report has no plan")
	}

	fmt.Fprintf(w, "snapshot: %s", r.Plan.SnapshotRoot)
	if r.Commit != "" {
		fmt.Fprintf(w, " @ %s", shortHash(r.Commit))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "instance: %s\n", r.Plan.InstanceRoot)

	if r.Plan.Mutations() == 0 {
		fmt.Fprintln(w, "instance is up to date")
	}

	for _, op := range r.Plan.Operations {
		fmt.Fprintf(w, "%-11s %s\n", op.Kind, op.Path)
	}

	for _, warn := range r.Plan.Warnings {
		fmt.Fprintf(w, "warning: %s: %s\n", warn.Path, warn.Error)
	}

	if r.Result == nil {
		return nil
	}

	fmt.Fprintln(w)
	for _, res := range r.Result.Results {
		if res.Status == types.StatusApplied {
			continue
		}
		fmt.Fprintf(w, "%-8s %-11s %s: %s\n", res.Status, res.Op.Kind, res.Op.Path, res.Reason)
	}
	fmt.Fprintln(w, r.Result.Summary())

	return nil
}

// shortHash abbreviates a commit hash for display.
func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
