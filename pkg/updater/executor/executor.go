// Package executor applies a reconciliation plan to the instance
// filesystem. It is the only component in the updater that mutates
// disk state. Operations run sequentially in plan order with per-op
// failure isolation: one failed write never abandons the rest of the
// plan, because finishing leaves the instance in a better state than
// stopping halfway.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
)

// DefaultOpTimeout bounds a single file operation. An operation that
// exceeds it is recorded as failed rather than hanging the whole run.
const DefaultOpTimeout = 30 * time.Second

// Options configures plan execution.
type Options struct {
	// OpTimeout is the per-operation deadline. Zero means
	// DefaultOpTimeout.
	OpTimeout time.Duration

	// OnProgress, when set, is called after each operation settles
	// with the 1-based index, the total, and the operation's result.
	OnProgress func(done, total int, res types.OperationResult)
}

// Executor applies plans. It holds no per-run state; one Executor may
// apply many plans.
type Executor struct {
	opts Options
}

// New creates an Executor.
func New(opts Options) *Executor {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	return &Executor{opts: opts}
}

// Execute applies the plan to instanceRoot and returns the full
// per-operation result list. An unusable instance root aborts before
// any mutation and returns types.ErrRootUnavailable alongside an
// ExecutionResult with status Aborted. Cancellation is honored between
// operations only: an in-flight atomic write always settles first.
func (e *Executor) Execute(ctx context.Context, plan *types.Plan, instanceRoot string) (*types.ExecutionResult, error) {
	start := time.Now()
	result := &types.ExecutionResult{
		RunID:   uuid.NewString(),
		Results: make([]types.OperationResult, 0, len(plan.Operations)),
	}

	root, err := filepath.Abs(instanceRoot)
	if err == nil {
		var info os.FileInfo
		info, err = os.Stat(root)
		if err == nil && !info.IsDir() {
			err = fmt.Errorf("not a directory")
		}
	}
	if err != nil {
		result.Status = types.RunAborted
		result.Elapsed = time.Since(start)
		return result, fmt.Errorf("%w: %s: %v", types.ErrRootUnavailable, instanceRoot, err)
	}

	total := len(plan.Operations)
	cancelled := false
	for i, op := range plan.Operations {
		var res types.OperationResult
		if cancelled || ctx.Err() != nil {
			cancelled = true
			res = types.OperationResult{Op: op, Status: types.StatusSkipped, Reason: "run cancelled"}
		} else {
			res = e.apply(plan.SnapshotRoot, root, op)
		}

		result.Results = append(result.Results, res)
		switch res.Status {
		case types.StatusApplied:
			result.Applied++
		case types.StatusSkipped:
			result.Skipped++
		case types.StatusFailed:
			result.Failed++
		}

		if e.opts.OnProgress != nil {
			e.opts.OnProgress(i+1, total, res)
		}
	}

	switch {
	case cancelled:
		result.Status = types.RunAborted
	case result.Failed > 0:
		result.Status = types.RunPartialFailure
	default:
		result.Status = types.RunSuccess
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// apply runs one operation under the per-op timeout.
func (e *Executor) apply(snapshotRoot, instanceRoot string, op types.Operation) types.OperationResult {
	done := make(chan types.OperationResult, 1)
	go func() {
		done <- e.applyOne(snapshotRoot, instanceRoot, op)
	}()

	select {
	case res := <-done:
		return res
	case <-time.After(e.opts.OpTimeout):
		return types.OperationResult{
			Op:     op,
			Status: types.StatusFailed,
			Reason: fmt.Sprintf("timed out after %s", e.opts.OpTimeout),
		}
	}
}

// applyOne dispatches a single operation to its handler.
func (e *Executor) applyOne(snapshotRoot, instanceRoot string, op types.Operation) types.OperationResult {
	dest := filepath.Join(instanceRoot, filepath.FromSlash(op.Path))

	switch op.Kind {
	case types.OpDelete:
		if err := deleteAndPrune(instanceRoot, op.Path, dest); err != nil {
			return failed(op, err)
		}
		return applied(op)

	case types.OpCreate, types.OpOverwrite:
		src := filepath.Join(snapshotRoot, filepath.FromSlash(op.Source))
		if err := atomicCopy(src, dest); err != nil {
			return failed(op, err)
		}
		return applied(op)

	case types.OpForceReset:
		src := filepath.Join(snapshotRoot, filepath.FromSlash(op.Source))
		if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
			// The snapshot ships no default for this entry; nothing to
			// restore, and the local file is left as-is.
			return types.OperationResult{Op: op, Status: types.StatusSkipped, Reason: "default content missing from snapshot"}
		}
		if err := atomicCopy(src, dest); err != nil {
			return failed(op, err)
		}
		return applied(op)

	default:
		return failed(op, fmt.Errorf("unknown operation kind %d", op.Kind))
	}
}

func applied(op types.Operation) types.OperationResult {
	return types.OperationResult{Op: op, Status: types.StatusApplied}
}

func failed(op types.Operation, err error) types.OperationResult {
	return types.OperationResult{Op: op, Status: types.StatusFailed, Reason: err.Error()}
}

// atomicCopy copies src over dest via a temp file in the destination
// directory followed by a rename, so a crash mid-write never leaves a
// half-written file visible at the destination path.
func atomicCopy(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// deleteAndPrune removes the file at dest, then removes now-empty
// parent directories walking upward, stopping at the top path element
// so pruning never leaves the owning managed zone. A file that is
// already gone counts as deleted.
func deleteAndPrune(instanceRoot, relPath, dest string) error {
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing file: %w", err)
	}

	// Prune strictly below the zone folder: the zone itself survives
	// even when emptied.
	rel := filepath.ToSlash(filepath.Dir(filepath.FromSlash(relPath)))
	for rel != "." && strings.Contains(rel, "/") {
		dir := filepath.Join(instanceRoot, filepath.FromSlash(rel))
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
		rel = filepath.ToSlash(filepath.Dir(filepath.FromSlash(rel)))
	}
	return nil
}
