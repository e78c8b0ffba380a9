// Package planner computes the reconciliation plan from the two walk
// results. It is pure: no I/O, no clock beyond the plan timestamp, and
// deterministic output for a given pair of tree states so idempotence
// is testable.
package planner

import (
	"sort"
	"strings"
	"time"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/zone"
)

// Input carries everything the planner needs. Both record maps are
// keyed by slash-separated relative path and must come from symmetric
// walks of the snapshot and the instance.
type Input struct {
	SnapshotRoot string
	InstanceRoot string
	Snapshot     map[string]types.FileRecord
	Instance     map[string]types.FileRecord
	Zones        *zone.Config
	Warnings     []types.Warning
}

// Build compares the two record sets and emits the ordered plan.
//
// A path present only in the snapshot becomes a Create; present on
// both sides with differing fingerprints, an Overwrite; present only
// in the instance (and therefore inside a managed zone, since walkers
// record nothing else), a Delete. Identical fingerprints produce no
// operation. Symlinks are never mirrored: a snapshot link counts as
// absent, and a local link is replaced by the shipped file when the
// snapshot carries one or deleted otherwise. Every configured
// force-reset entry is appended unconditionally, regardless of local
// presence or content; directory entries expand to one operation per
// shipped file under the entry's source.
func Build(in Input) *types.Plan {
	ops := make([]types.Operation, 0, len(in.Snapshot)+len(in.Instance))

	for rel, snap := range in.Snapshot {
		if snap.Symlink {
			continue
		}
		local, exists := in.Instance[rel]
		switch {
		case !exists:
			ops = append(ops, types.Operation{Kind: types.OpCreate, Path: rel, Source: rel, Size: snap.Size})
		case local.Symlink, local.Fingerprint != snap.Fingerprint:
			// Rename replaces a local link with the shipped file.
			ops = append(ops, types.Operation{Kind: types.OpOverwrite, Path: rel, Source: rel, Size: snap.Size})
		}
	}

	for rel, local := range in.Instance {
		snap, exists := in.Snapshot[rel]
		if !exists || snap.Symlink {
			ops = append(ops, types.Operation{Kind: types.OpDelete, Path: rel, Size: local.Size})
		}
	}

	ops = append(ops, resetOps(in)...)

	// Deletes first so stale files never race writes to same-named
	// paths, force resets last so they always win, lexicographic by
	// path within each group for deterministic output.
	sort.SliceStable(ops, func(i, j int) bool {
		pi, pj := ops[i].Kind.Priority(), ops[j].Kind.Priority()
		if pi != pj {
			return pi < pj
		}
		return ops[i].Path < ops[j].Path
	})

	return &types.Plan{
		SnapshotRoot: in.SnapshotRoot,
		InstanceRoot: in.InstanceRoot,
		Operations:   ops,
		Warnings:     in.Warnings,
		CreatedAt:    time.Now().UTC(),
	}
}

// resetOps emits the unconditional force-reset operations. A file
// entry becomes one operation. A directory entry expands against the
// snapshot records: every shipped file under the entry's source maps
// to an operation at Path/<rel>, so the expansion needs no extra I/O
// and a source outside the walked zones simply yields nothing. The
// first entry claiming a destination wins.
func resetOps(in Input) []types.Operation {
	var ops []types.Operation
	seen := make(map[string]struct{}, len(in.Zones.ForceReset))

	claim := func(dest string) bool {
		if _, dup := seen[dest]; dup {
			return false
		}
		seen[dest] = struct{}{}
		return true
	}

	for _, entry := range in.Zones.SortedResetEntries() {
		if !entry.Dir {
			dest := zone.Clean(entry.Path)
			if claim(dest) {
				ops = append(ops, types.Operation{
					Kind:   types.OpForceReset,
					Path:   dest,
					Source: in.Zones.ResetSource(entry),
				})
			}
			continue
		}

		prefix := in.Zones.ResetSource(entry) + "/"
		base := zone.Clean(entry.Path)
		for rel, snap := range in.Snapshot {
			if snap.Symlink || !strings.HasPrefix(rel, prefix) {
				continue
			}
			dest := base + "/" + rel[len(prefix):]
			if claim(dest) {
				ops = append(ops, types.Operation{
					Kind:   types.OpForceReset,
					Path:   dest,
					Source: rel,
					Size:   snap.Size,
				})
			}
		}
	}
	return ops
}
