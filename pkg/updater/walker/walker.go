// Package walker builds the set of managed file records for one tree.
// The same walker scans both the snapshot and the instance so the two
// sides are always fingerprinted symmetrically: same classifier, same
// hash, same skip rules.
package walker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/zone"
)

// Progress is a snapshot of walk state for progress reporting.
type Progress struct {
	// Root is the tree being walked.
	Root string

	// DirsWalked is the number of directories entered so far.
	DirsWalked int64

	// FilesHashed is the number of managed files fingerprinted so far.
	FilesHashed int64

	// BytesHashed is the total content bytes fingerprinted so far.
	BytesHashed int64

	// CurrentPath is the path currently being processed.
	CurrentPath string
}

// Options configures a walk.
type Options struct {
	// Root is the tree to scan.
	Root string

	// Zones is the validated zone table. Only Managed paths produce
	// records; ForceReset paths are handled by a dedicated plan pass
	// and Untouched paths are skipped entirely.
	Zones *zone.Config

	// OnProgress, when set, receives throttled progress updates.
	OnProgress func(Progress)
}

// Result is the outcome of walking one tree.
type Result struct {
	// Root is the resolved absolute path that was walked.
	Root string

	// Records maps relative path to the file record for every managed
	// regular file in the tree, plus delete-only entries for managed
	// symlinks.
	Records map[string]types.FileRecord

	// Warnings lists entries that could not be read and were skipped.
	Warnings []types.Warning

	// Elapsed is the total walk time.
	Elapsed time.Duration
}

// Walker scans one tree with fastwalk. A Walker is single-use: create
// one per tree per run, records are never cached across runs.
type Walker struct {
	opts Options

	dirsWalked  atomic.Int64
	filesHashed atomic.Int64
	bytesHashed atomic.Int64
	currentPath atomic.Value

	// lastProgress throttles the progress callback.
	lastProgress atomic.Int64

	records   map[string]types.FileRecord
	recordsMu sync.Mutex

	warnings   []types.Warning
	warningsMu sync.Mutex

	root string
}

// New creates a Walker for the given options.
func New(opts Options) *Walker {
	w := &Walker{
		opts:    opts,
		records: make(map[string]types.FileRecord),
	}
	w.currentPath.Store("")
	return w
}

// Walk scans the tree and returns its managed file records. An
// unreadable root is fatal and returns types.ErrRootUnavailable; an
// unreadable entry inside the tree is recorded as a warning and
// skipped so one corrupt file never blocks the whole scan.
func (w *Walker) Walk(ctx context.Context) (*Result, error) {
	start := time.Now()

	root, err := w.validateRoot()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrRootUnavailable, w.opts.Root, err)
	}
	w.root = root

	w.currentPath.Store(root)
	w.reportProgressForce()

	conf := fastwalk.Config{
		Follow: false, // never follow symlinks out of the tree
	}

	done := make(chan struct{})
	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-walkCtx.Done()
		close(done)
	}()

	walkErr := fastwalk.Walk(&conf, root, w.callback(done))
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) && !errors.Is(walkErr, fastwalk.ErrSkipFiles) {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrRootUnavailable, root, walkErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.reportProgressForce()

	return &Result{
		Root:     w.root,
		Records:  w.records,
		Warnings: w.warnings,
		Elapsed:  time.Since(start),
	}, nil
}

// validateRoot resolves the root to an absolute path and verifies it is
// a readable directory.
func (w *Walker) validateRoot() (string, error) {
	root, err := filepath.Abs(w.opts.Root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory")
	}
	if _, err := os.ReadDir(root); err != nil {
		return "", err
	}
	return root, nil
}

// callback returns the fastwalk callback for this walk.
func (w *Walker) callback(done <-chan struct{}) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		select {
		case <-done:
			return fastwalk.ErrSkipFiles
		default:
		}

		if err != nil {
			w.addWarning(path, err)
			return nil
		}

		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			w.addWarning(path, relErr)
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == w.root {
				return nil
			}
			class, _ := w.opts.Zones.Classify(rel)
			// Directories are interesting only as containers of managed
			// files; anything rooted outside a managed zone is pruned.
			if class != zone.Managed {
				return fastwalk.SkipDir
			}
			w.dirsWalked.Add(1)
			w.currentPath.Store(path)
			w.reportProgress()
			return nil
		}

		class, _ := w.opts.Zones.Classify(rel)
		if class != zone.Managed {
			return nil
		}

		if !d.Type().IsRegular() {
			if d.Type()&fs.ModeSymlink == 0 {
				return nil
			}
			// Links are recorded so stale ones can be deleted, but
			// their targets are never opened or fingerprinted.
			w.recordsMu.Lock()
			w.records[rel] = types.FileRecord{RelPath: rel, Symlink: true}
			w.recordsMu.Unlock()
			return nil
		}

		w.processFile(path, rel)
		return nil
	}
}

// processFile fingerprints one managed file and records it.
func (w *Walker) processFile(path, rel string) {
	fingerprint, size, err := hashFile(path)
	if err != nil {
		w.addWarning(path, err)
		return
	}

	w.filesHashed.Add(1)
	w.bytesHashed.Add(size)
	w.currentPath.Store(path)

	w.recordsMu.Lock()
	w.records[rel] = types.FileRecord{
		RelPath:     rel,
		Fingerprint: fingerprint,
		Size:        size,
	}
	w.recordsMu.Unlock()

	w.reportProgress()
}

// hashFile returns the hex SHA-256 of a file's content and its size.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// addWarning records a non-fatal per-entry problem thread-safely.
func (w *Walker) addWarning(path string, err error) {
	w.warningsMu.Lock()
	w.warnings = append(w.warnings, types.Warning{
		Path:  path,
		Error: err.Error(),
	})
	w.warningsMu.Unlock()
}

// reportProgress calls the progress callback, throttled to every 10ms.
func (w *Walker) reportProgress() {
	if w.opts.OnProgress == nil {
		return
	}
	now := time.Now().UnixMilli()
	last := w.lastProgress.Load()
	if now-last < 10 {
		return
	}
	if !w.lastProgress.CompareAndSwap(last, now) {
		return
	}
	w.sendProgress()
}

// reportProgressForce bypasses the throttle for walk start and end.
func (w *Walker) reportProgressForce() {
	if w.opts.OnProgress == nil {
		return
	}
	w.lastProgress.Store(time.Now().UnixMilli())
	w.sendProgress()
}

// sendProgress delivers the current counters to the callback.
func (w *Walker) sendProgress() {
	currentPath, _ := w.currentPath.Load().(string)
	w.opts.OnProgress(Progress{
		Root:        w.root,
		DirsWalked:  w.dirsWalked.Load(),
		FilesHashed: w.filesHashed.Load(),
		BytesHashed: w.bytesHashed.Load(),
		CurrentPath: currentPath,
	})
}
