// Package reconcile is the entry point to the reconciliation engine.
// It wires the walkers, the planner and the executor together: both
// trees are walked concurrently with no shared mutable state, planning
// waits for a full barrier on the two walks, and execution runs
// strictly after planning so the plan always reflects one consistent
// pair of tree states.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/executor"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/planner"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/walker"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/zone"
)

// Option customizes a Plan or Execute call.
type Option func(*options)

type options struct {
	onSnapshotProgress func(walker.Progress)
	onInstanceProgress func(walker.Progress)
	onOpProgress       func(done, total int, res types.OperationResult)
	opTimeout          time.Duration
}

// WithSnapshotProgress registers a progress callback for the snapshot
// walk.
func WithSnapshotProgress(fn func(walker.Progress)) Option {
	return func(o *options) { o.onSnapshotProgress = fn }
}

// WithInstanceProgress registers a progress callback for the instance
// walk.
func WithInstanceProgress(fn func(walker.Progress)) Option {
	return func(o *options) { o.onInstanceProgress = fn }
}

// WithOperationProgress registers a callback invoked after every
// executed operation.
func WithOperationProgress(fn func(done, total int, res types.OperationResult)) Option {
	return func(o *options) { o.onOpProgress = fn }
}

// WithOpTimeout overrides the per-operation execution deadline.
func WithOpTimeout(d time.Duration) Option {
	return func(o *options) { o.opTimeout = d }
}

// Plan walks the snapshot and the instance concurrently and builds the
// reconciliation plan. A malformed zone table is fatal and reported
// before any walking. An unreadable root returns
// types.ErrRootUnavailable; per-entry read problems inside either tree
// surface as plan warnings instead.
func Plan(ctx context.Context, snapshotRoot, instanceRoot string, zones *zone.Config, opts ...Option) (*types.Plan, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := zones.Validate(); err != nil {
		return nil, err
	}

	snapWalker := walker.New(walker.Options{
		Root:       snapshotRoot,
		Zones:      zones,
		OnProgress: o.onSnapshotProgress,
	})
	instWalker := walker.New(walker.Options{
		Root:       instanceRoot,
		Zones:      zones,
		OnProgress: o.onInstanceProgress,
	})

	var (
		wg      sync.WaitGroup
		snapRes *walker.Result
		instRes *walker.Result
		snapErr error
		instErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		snapRes, snapErr = snapWalker.Walk(ctx)
	}()
	go func() {
		defer wg.Done()
		instRes, instErr = instWalker.Walk(ctx)
	}()
	wg.Wait()

	if snapErr != nil {
		return nil, snapErr
	}
	if instErr != nil {
		return nil, instErr
	}

	warnings := make([]types.Warning, 0, len(snapRes.Warnings)+len(instRes.Warnings))
	warnings = append(warnings, snapRes.Warnings...)
	warnings = append(warnings, instRes.Warnings...)

	return planner.Build(planner.Input{
		SnapshotRoot: snapRes.Root,
		InstanceRoot: instRes.Root,
		Snapshot:     snapRes.Records,
		Instance:     instRes.Records,
		Zones:        zones,
		Warnings:     warnings,
	}), nil
}

// Execute applies a previously built plan to the instance. It must run
// only after Plan has returned: the plan's correctness depends on a
// consistent view of both trees at one instant, so there is no
// streaming execution while walking. The returned result always
// carries the complete per-operation outcome list; the error is
// non-nil only when execution aborted before any mutation.
func Execute(ctx context.Context, plan *types.Plan, instanceRoot string, opts ...Option) (*types.ExecutionResult, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	exec := executor.New(executor.Options{
		OpTimeout:  o.opTimeout,
		OnProgress: o.onOpProgress,
	})
	return exec.Execute(ctx, plan, instanceRoot)
}
