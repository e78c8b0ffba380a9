// Package types provides the core data types for the modpack updater.
// It defines the file records produced by the tree walkers, the
// reconciliation plan emitted by the planner, and the per-operation
// results reported by the executor.
package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrRootUnavailable indicates that a tree root could not be read.
// It is fatal and is reported before any filesystem mutation.
var ErrRootUnavailable = errors.New("root unavailable")

// FileRecord describes one managed file found by a tree walker.
// Records are keyed by relative path; the fingerprint is a content
// hash rather than a modification time, because mtimes do not survive
// copy and clone operations reliably.
type FileRecord struct {
	// RelPath is the slash-separated path relative to the tree root.
	RelPath string `json:"rel_path"`

	// Fingerprint is the hex-encoded SHA-256 of the file content.
	// Empty for symlinks, whose targets are never read.
	Fingerprint string `json:"fingerprint"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// Symlink marks a link found inside a managed zone. Links are
	// never mirrored; a local one is stale and gets deleted unless the
	// snapshot ships a regular file at the same path.
	Symlink bool `json:"symlink,omitempty"`
}

// HumanSize returns the record size formatted as a human-readable string.
func (r *FileRecord) HumanSize() string {
	return FormatSize(r.Size)
}

// OpKind identifies the kind of a planned operation.
type OpKind int

// Operation kinds in execution priority order. Deletes run first so a
// stale file never races a write to a same-named path, force resets run
// last so they always win.
const (
	OpDelete OpKind = iota
	OpCreate
	OpOverwrite
	OpForceReset
)

// String returns the lowercase name of the operation kind.
func (k OpKind) String() string {
	switch k {
	case OpDelete:
		return "delete"
	case OpCreate:
		return "create"
	case OpOverwrite:
		return "overwrite"
	case OpForceReset:
		return "force-reset"
	default:
		return "unknown"
	}
}

// Priority returns the sort priority of the kind. Create and Overwrite
// share a priority: they are the same write distinguished only for
// reporting.
func (k OpKind) Priority() int {
	switch k {
	case OpDelete:
		return 0
	case OpCreate, OpOverwrite:
		return 1
	case OpForceReset:
		return 2
	default:
		return 3
	}
}

// Operation is a single planned filesystem action.
type Operation struct {
	// Kind is the action to perform.
	Kind OpKind `json:"kind"`

	// Path is the destination path relative to the instance root.
	Path string `json:"path"`

	// Source is the content source relative to the snapshot root.
	// Empty for deletes. For force resets it points into the snapshot's
	// shipped-defaults directory.
	Source string `json:"source,omitempty"`

	// Size is the source content size in bytes, when known.
	Size int64 `json:"size,omitempty"`
}

// Plan is an ordered, deterministic list of operations that brings the
// managed zones of an instance in line with a snapshot. It is built
// once per run, never mutated after construction, and discarded after
// execution.
type Plan struct {
	// SnapshotRoot is the absolute path of the snapshot tree the plan
	// was computed against. Write operations source content from it.
	SnapshotRoot string `json:"snapshot_root"`

	// InstanceRoot is the absolute path of the instance tree.
	InstanceRoot string `json:"instance_root"`

	// Operations is the sorted operation list: deletes, then writes,
	// then force resets, lexicographic by path within each group.
	Operations []Operation `json:"operations"`

	// Warnings holds per-entry walk problems that did not abort
	// planning (unreadable files skipped during the scans).
	Warnings []Warning `json:"warnings,omitempty"`

	// CreatedAt is when the plan was computed.
	CreatedAt time.Time `json:"created_at"`
}

// IsNoop reports whether the plan contains no operations at all.
// A second run against an unchanged snapshot must produce a plan for
// which only the unconditional force resets remain; Mutations reports
// that case.
func (p *Plan) IsNoop() bool {
	return len(p.Operations) == 0
}

// Mutations returns the number of operations excluding force resets,
// which appear in every plan.
func (p *Plan) Mutations() int {
	n := 0
	for _, op := range p.Operations {
		if op.Kind != OpForceReset {
			n++
		}
	}
	return n
}

// Warning records a non-fatal problem encountered while walking a tree.
type Warning struct {
	// Path is the file or directory the problem occurred on.
	Path string `json:"path"`

	// Error is the message describing what went wrong.
	Error string `json:"error"`
}

// OpStatus is the terminal state of one executed operation.
type OpStatus int

// Operation outcomes.
const (
	StatusApplied OpStatus = iota
	StatusSkipped
	StatusFailed
)

// String returns the lowercase name of the status.
func (s OpStatus) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// OperationResult is the outcome of one attempted operation.
type OperationResult struct {
	// Op is the operation that was attempted.
	Op Operation `json:"op"`

	// Status is the terminal state reached.
	Status OpStatus `json:"status"`

	// Reason explains a skip or failure; empty when applied.
	Reason string `json:"reason,omitempty"`
}

// RunStatus is the aggregate outcome of executing a plan.
type RunStatus int

// Aggregate outcomes. PartialFailure means some operations failed but
// the rest of the plan was still attempted; it must be surfaced to the
// user distinctly from Success.
const (
	RunSuccess RunStatus = iota
	RunPartialFailure
	RunAborted
)

// String returns the human-readable name of the run status.
func (s RunStatus) String() string {
	switch s {
	case RunSuccess:
		return "success"
	case RunPartialFailure:
		return "partial failure"
	case RunAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ExecutionResult reports the full outcome of applying a plan. The
// per-operation list is always complete; nothing is silently swallowed.
type ExecutionResult struct {
	// RunID uniquely identifies this execution for history records.
	RunID string `json:"run_id"`

	// Results holds one entry per attempted operation, in plan order.
	Results []OperationResult `json:"results"`

	// Status is the aggregate outcome.
	Status RunStatus `json:"status"`

	// Applied, Skipped and Failed are operation counts by outcome.
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	// Elapsed is the total execution time.
	Elapsed time.Duration `json:"elapsed"`
}

// FailedResults returns only the failed entries, for reporting.
func (r *ExecutionResult) FailedResults() []OperationResult {
	var failed []OperationResult
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Summary returns a one-line description of the execution outcome.
func (r *ExecutionResult) Summary() string {
	return fmt.Sprintf("%s: %d applied, %d skipped, %d failed in %s",
		r.Status, r.Applied, r.Skipped, r.Failed, r.Elapsed.Round(time.Millisecond))
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}
