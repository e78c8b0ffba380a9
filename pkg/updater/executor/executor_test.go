package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func makePlan(snap, inst string, ops ...types.Operation) *types.Plan {
	return &types.Plan{
		SnapshotRoot: snap,
		InstanceRoot: inst,
		Operations:   ops,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestExecuteAppliesWrites(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	writeFile(t, snap, "mods/a.jar", "upstream content")
	writeFile(t, inst, "mods/a.jar", "locally modified")

	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpOverwrite, Path: "mods/a.jar", Source: "mods/a.jar"},
	)

	res, err := New(Options{}).Execute(context.Background(), plan, inst)
	require.NoError(t, err)

	assert.Equal(t, types.RunSuccess, res.Status)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, "upstream content", readFile(t, inst, "mods/a.jar"))
	assert.NotEmpty(t, res.RunID)
}

func TestExecuteCreateMakesParents(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	writeFile(t, snap, "kubejs/server_scripts/recipes.js", "js content")

	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpCreate, Path: "kubejs/server_scripts/recipes.js", Source: "kubejs/server_scripts/recipes.js"},
	)

	res, err := New(Options{}).Execute(context.Background(), plan, inst)
	require.NoError(t, err)
	assert.Equal(t, types.RunSuccess, res.Status)
	assert.Equal(t, "js content", readFile(t, inst, "kubejs/server_scripts/recipes.js"))
}

func TestExecuteDeletePrunesEmptyDirs(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	writeFile(t, inst, "mods/deep/nested/stale.jar", "stale")
	writeFile(t, inst, "mods/keep.jar", "kept")

	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpDelete, Path: "mods/deep/nested/stale.jar"},
	)

	res, err := New(Options{}).Execute(context.Background(), plan, inst)
	require.NoError(t, err)
	assert.Equal(t, types.RunSuccess, res.Status)

	assert.NoFileExists(t, filepath.Join(inst, "mods", "deep", "nested", "stale.jar"))
	assert.NoDirExists(t, filepath.Join(inst, "mods", "deep"), "emptied parents are pruned")
	assert.DirExists(t, filepath.Join(inst, "mods"), "the zone folder itself survives")
	assert.FileExists(t, filepath.Join(inst, "mods", "keep.jar"))
}

func TestExecuteDeleteKeepsNonEmptyParents(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	writeFile(t, inst, "mods/deep/stale.jar", "stale")
	writeFile(t, inst, "mods/deep/other.jar", "still here")

	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpDelete, Path: "mods/deep/stale.jar"},
	)

	_, err := New(Options{}).Execute(context.Background(), plan, inst)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(inst, "mods", "deep", "other.jar"))
}

func TestExecuteForceResetReplacesEditedContent(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	writeFile(t, snap, "configureddefaults/config/sodium-options.json", `{"shipped": true}`)
	writeFile(t, inst, "config/sodium-options.json", `{"hand-edited": true}`)

	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpForceReset, Path: "config/sodium-options.json", Source: "configureddefaults/config/sodium-options.json"},
	)

	res, err := New(Options{}).Execute(context.Background(), plan, inst)
	require.NoError(t, err)
	assert.Equal(t, types.RunSuccess, res.Status)
	assert.Equal(t, `{"shipped": true}`, readFile(t, inst, "config/sodium-options.json"))
}

func TestExecuteForceResetCreatesMissingFile(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	writeFile(t, snap, "configureddefaults/parcool-client.toml", "defaults")

	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpForceReset, Path: "parcool-client.toml", Source: "configureddefaults/parcool-client.toml"},
	)

	res, err := New(Options{}).Execute(context.Background(), plan, inst)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, "defaults", readFile(t, inst, "parcool-client.toml"))
}

func TestExecuteForceResetSkipsMissingDefault(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	writeFile(t, inst, "config/raised.json", "user content stays")

	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpForceReset, Path: "config/raised.json", Source: "configureddefaults/config/raised.json"},
	)

	res, err := New(Options{}).Execute(context.Background(), plan, inst)
	require.NoError(t, err)
	assert.Equal(t, types.RunSuccess, res.Status)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "user content stays", readFile(t, inst, "config/raised.json"))
}

func TestExecutePartialFailureContinues(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	for _, rel := range []string{"mods/a.jar", "mods/b.jar", "mods/c.jar", "mods/d.jar"} {
		writeFile(t, snap, rel, "content of "+rel)
	}

	// One of five operations fails (missing source); the other four
	// must still be attempted and applied.
	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpCreate, Path: "mods/a.jar", Source: "mods/a.jar"},
		types.Operation{Kind: types.OpCreate, Path: "mods/b.jar", Source: "mods/b.jar"},
		types.Operation{Kind: types.OpCreate, Path: "mods/broken.jar", Source: "mods/missing-from-snapshot.jar"},
		types.Operation{Kind: types.OpCreate, Path: "mods/c.jar", Source: "mods/c.jar"},
		types.Operation{Kind: types.OpCreate, Path: "mods/d.jar", Source: "mods/d.jar"},
	)

	res, err := New(Options{}).Execute(context.Background(), plan, inst)
	require.NoError(t, err)

	assert.Equal(t, types.RunPartialFailure, res.Status)
	assert.Equal(t, 4, res.Applied)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 5)

	failed := res.FailedResults()
	require.Len(t, failed, 1)
	assert.Equal(t, "mods/broken.jar", failed[0].Op.Path)
	assert.NotEmpty(t, failed[0].Reason)

	assert.FileExists(t, filepath.Join(inst, "mods", "d.jar"), "operations after the failure still ran")
}

func TestExecuteAbortsOnMissingInstanceRoot(t *testing.T) {
	snap := t.TempDir()
	missing := filepath.Join(t.TempDir(), "gone")

	plan := makePlan(snap, missing,
		types.Operation{Kind: types.OpCreate, Path: "mods/a.jar", Source: "mods/a.jar"},
	)

	res, err := New(Options{}).Execute(context.Background(), plan, missing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrRootUnavailable))
	assert.Equal(t, types.RunAborted, res.Status)
	assert.Empty(t, res.Results, "aborted before any operation")
}

func TestExecuteCancelledBetweenOps(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	writeFile(t, snap, "mods/a.jar", "content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpCreate, Path: "mods/a.jar", Source: "mods/a.jar"},
		types.Operation{Kind: types.OpCreate, Path: "mods/b.jar", Source: "mods/a.jar"},
	)

	res, err := New(Options{}).Execute(ctx, plan, inst)
	require.NoError(t, err)
	assert.Equal(t, types.RunAborted, res.Status)
	assert.Equal(t, 2, res.Skipped)
}

func TestExecuteProgressCallback(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	writeFile(t, snap, "mods/a.jar", "content")
	writeFile(t, snap, "mods/b.jar", "content")

	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpCreate, Path: "mods/a.jar", Source: "mods/a.jar"},
		types.Operation{Kind: types.OpCreate, Path: "mods/b.jar", Source: "mods/b.jar"},
	)

	var seen []int
	exec := New(Options{
		OnProgress: func(done, total int, res types.OperationResult) {
			assert.Equal(t, 2, total)
			seen = append(seen, done)
		},
	})

	_, err := exec.Execute(context.Background(), plan, inst)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestExecuteDeleteOfMissingFileIsApplied(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()

	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpDelete, Path: "mods/already-gone.jar"},
	)

	res, err := New(Options{}).Execute(context.Background(), plan, inst)
	require.NoError(t, err)
	assert.Equal(t, types.RunSuccess, res.Status)
	assert.Equal(t, 1, res.Applied)
}

func TestAtomicCopyLeavesNoTempOnSuccess(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	writeFile(t, snap, "mods/a.jar", "content")

	plan := makePlan(snap, inst,
		types.Operation{Kind: types.OpCreate, Path: "mods/a.jar", Source: "mods/a.jar"},
	)
	_, err := New(Options{}).Execute(context.Background(), plan, inst)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(inst, "mods"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.jar", entries[0].Name())
}
