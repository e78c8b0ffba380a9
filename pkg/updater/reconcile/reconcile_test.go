package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/walker"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/zone"
)

func testZones(t *testing.T) *zone.Config {
	t.Helper()
	cfg := &zone.Config{
		ManagedZones: []string{"mods", "kubejs", "configureddefaults"},
		ResetZones:   []string{"config"},
		ForceReset: []zone.ForceResetEntry{
			{Path: "config/sodium-options.json"},
		},
		DefaultsDir: "configureddefaults",
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

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

// setupTrees builds the snapshot and instance used by most tests:
// snapshot ships mods/a.jar plus a default for the force-reset file;
// the instance has a modified a.jar, a stale b.jar, untouched saves,
// and a hand-edited config.
func setupTrees(t *testing.T) (snap, inst string) {
	t.Helper()
	snap = t.TempDir()
	inst = t.TempDir()

	writeFile(t, snap, "mods/a.jar", "upstream a")
	writeFile(t, snap, "configureddefaults/config/sodium-options.json", "shipped defaults")

	writeFile(t, inst, "mods/a.jar", "locally patched a")
	writeFile(t, inst, "mods/b.jar", "local-only mod... stale")
	writeFile(t, inst, "saves/world1/level.dat", "precious save data")
	writeFile(t, inst, "config/sodium-options.json", "hand-edited")
	return snap, inst
}

func TestPlanScenario(t *testing.T) {
	snap, inst := setupTrees(t)

	plan, err := Plan(context.Background(), snap, inst, testZones(t))
	require.NoError(t, err)

	got := make([]string, len(plan.Operations))
	for i, op := range plan.Operations {
		got[i] = op.Kind.String() + " " + op.Path
	}
	assert.Equal(t, []string{
		"delete mods/b.jar",
		"create configureddefaults/config/sodium-options.json",
		"overwrite mods/a.jar",
		"force-reset config/sodium-options.json",
	}, got)

	for _, op := range plan.Operations {
		assert.NotContains(t, op.Path, "saves/", "untouched paths never enter a plan")
	}
}

func TestPlanExecuteIdempotent(t *testing.T) {
	snap, inst := setupTrees(t)
	zones := testZones(t)
	ctx := context.Background()

	plan, err := Plan(ctx, snap, inst, zones)
	require.NoError(t, err)
	res, err := Execute(ctx, plan, inst)
	require.NoError(t, err)
	require.Equal(t, types.RunSuccess, res.Status)

	// A second plan against the unchanged snapshot must carry no
	// mutations; only the unconditional force resets remain.
	second, err := Plan(ctx, snap, inst, zones)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Mutations(), "second plan should be a no-op: %+v", second.Operations)
}

func TestExecuteCompleteness(t *testing.T) {
	snap, inst := setupTrees(t)
	writeFile(t, snap, "mods/deep/new.jar", "brand new")
	ctx := context.Background()

	plan, err := Plan(ctx, snap, inst, testZones(t))
	require.NoError(t, err)
	res, err := Execute(ctx, plan, inst)
	require.NoError(t, err)
	require.Equal(t, types.RunSuccess, res.Status)

	assert.Equal(t, "upstream a", readFile(t, inst, "mods/a.jar"))
	assert.Equal(t, "brand new", readFile(t, inst, "mods/deep/new.jar"))
	assert.NoFileExists(t, filepath.Join(inst, "mods", "b.jar"), "stale managed file deleted")
}

func TestExecuteNonInterference(t *testing.T) {
	snap, inst := setupTrees(t)
	before := readFile(t, inst, "saves/world1/level.dat")
	ctx := context.Background()

	plan, err := Plan(ctx, snap, inst, testZones(t))
	require.NoError(t, err)
	_, err = Execute(ctx, plan, inst)
	require.NoError(t, err)

	assert.Equal(t, before, readFile(t, inst, "saves/world1/level.dat"))
}

func TestExecuteUnconditionalReset(t *testing.T) {
	snap, inst := setupTrees(t)
	ctx := context.Background()
	zones := testZones(t)

	// First run brings everything in line.
	plan, err := Plan(ctx, snap, inst, zones)
	require.NoError(t, err)
	_, err = Execute(ctx, plan, inst)
	require.NoError(t, err)

	// User corrupts the critical config between runs; snapshot is
	// unchanged.
	writeFile(t, inst, "config/sodium-options.json", "corrupted by hand")

	plan, err = Plan(ctx, snap, inst, zones)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.Mutations())

	res, err := Execute(ctx, plan, inst)
	require.NoError(t, err)
	require.Equal(t, types.RunSuccess, res.Status)
	assert.Equal(t, "shipped defaults", readFile(t, inst, "config/sodium-options.json"))
}

func TestDeletionScope(t *testing.T) {
	snap := t.TempDir()
	inst := t.TempDir()
	writeFile(t, inst, "mods/stale.jar", "inside managed zone")
	writeFile(t, inst, "shaderpacks/stale.jar", "same name, outside any zone")
	ctx := context.Background()

	plan, err := Plan(ctx, snap, inst, testZones(t))
	require.NoError(t, err)
	_, err = Execute(ctx, plan, inst)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(inst, "mods", "stale.jar"))
	assert.FileExists(t, filepath.Join(inst, "shaderpacks", "stale.jar"))
}

func TestExecuteRemovesStaleSymlink(t *testing.T) {
	snap, inst := setupTrees(t)
	target := filepath.Join(inst, "saves", "world1", "level.dat")
	linkPath := filepath.Join(inst, "mods", "rogue-link.jar")
	if err := os.Symlink(target, linkPath); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	ctx := context.Background()

	plan, err := Plan(ctx, snap, inst, testZones(t))
	require.NoError(t, err)
	res, err := Execute(ctx, plan, inst)
	require.NoError(t, err)
	require.Equal(t, types.RunSuccess, res.Status)

	_, err = os.Lstat(linkPath)
	assert.True(t, os.IsNotExist(err), "stale link inside a managed zone must be removed")
	assert.FileExists(t, target, "the link target itself is untouched")
}

func TestExecuteReplacesSymlinkWithShippedFile(t *testing.T) {
	snap, inst := setupTrees(t)
	elsewhere := filepath.Join(inst, "saves", "world1", "level.dat")
	if err := os.Symlink(elsewhere, filepath.Join(inst, "mods", "c.jar")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	writeFile(t, snap, "mods/c.jar", "upstream c")
	ctx := context.Background()

	plan, err := Plan(ctx, snap, inst, testZones(t))
	require.NoError(t, err)
	res, err := Execute(ctx, plan, inst)
	require.NoError(t, err)
	require.Equal(t, types.RunSuccess, res.Status)

	info, err := os.Lstat(filepath.Join(inst, "mods", "c.jar"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular(), "the link itself is replaced, not written through")
	assert.Equal(t, "upstream c", readFile(t, inst, "mods/c.jar"))
	assert.Equal(t, "precious save data", readFile(t, inst, "saves/world1/level.dat"))
}

func TestExecuteDirectoryReset(t *testing.T) {
	snap, inst := setupTrees(t)
	zones := testZones(t)
	zones.ResetZones = []string{"config", "."}
	zones.ForceReset = append(zones.ForceReset, zone.ForceResetEntry{Path: "customsplashscreen", Dir: true})
	require.NoError(t, zones.Validate())

	writeFile(t, snap, "configureddefaults/customsplashscreen/splash.png", "shipped splash")
	writeFile(t, snap, "configureddefaults/customsplashscreen/deep/texture.png", "shipped texture")
	writeFile(t, inst, "customsplashscreen/splash.png", "user replaced splash")
	ctx := context.Background()

	plan, err := Plan(ctx, snap, inst, zones)
	require.NoError(t, err)
	res, err := Execute(ctx, plan, inst)
	require.NoError(t, err)
	require.Equal(t, types.RunSuccess, res.Status)

	assert.Equal(t, "shipped splash", readFile(t, inst, "customsplashscreen/splash.png"))
	assert.Equal(t, "shipped texture", readFile(t, inst, "customsplashscreen/deep/texture.png"))

	// Hand-edit again; an unchanged snapshot must still restore it.
	writeFile(t, inst, "customsplashscreen/splash.png", "user replaced splash again")
	plan, err = Plan(ctx, snap, inst, zones)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.Mutations())
	_, err = Execute(ctx, plan, inst)
	require.NoError(t, err)
	assert.Equal(t, "shipped splash", readFile(t, inst, "customsplashscreen/splash.png"))
}

func TestPlanRootUnavailable(t *testing.T) {
	inst := t.TempDir()
	missing := filepath.Join(t.TempDir(), "no-such-snapshot")

	_, err := Plan(context.Background(), missing, inst, testZones(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrRootUnavailable))
}

func TestPlanInvalidZonesFatalBeforeWalking(t *testing.T) {
	zones := testZones(t)
	zones.ManagedZones = append(zones.ManagedZones, "mods") // duplicate

	_, err := Plan(context.Background(), t.TempDir(), t.TempDir(), zones)
	assert.ErrorIs(t, err, zone.ErrDuplicateZone)
}

func TestPlanProgressCallbacks(t *testing.T) {
	snap, inst := setupTrees(t)

	snapCalls := 0
	instCalls := 0
	_, err := Plan(context.Background(), snap, inst, testZones(t),
		WithSnapshotProgress(func(walker.Progress) { snapCalls++ }),
		WithInstanceProgress(func(walker.Progress) { instCalls++ }),
	)
	require.NoError(t, err)
	assert.Positive(t, snapCalls)
	assert.Positive(t, instCalls)
}

func TestExecuteOperationProgress(t *testing.T) {
	snap, inst := setupTrees(t)
	ctx := context.Background()

	plan, err := Plan(ctx, snap, inst, testZones(t))
	require.NoError(t, err)

	var results []types.OperationResult
	_, err = Execute(ctx, plan, inst, WithOperationProgress(
		func(done, total int, res types.OperationResult) {
			results = append(results, res)
		}))
	require.NoError(t, err)
	assert.Len(t, results, len(plan.Operations))
}
