package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/zone"
)

func testZones(t *testing.T) *zone.Config {
	t.Helper()
	cfg := &zone.Config{
		ManagedZones: []string{"mods", "kubejs"},
		ResetZones:   []string{"config"},
		ForceReset: []zone.ForceResetEntry{
			{Path: "mods/pinned.cfg"},
		},
		DefaultsDir: "configureddefaults",
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// writeFile creates a file with content, making parent directories.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalkRecordsManagedFilesOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "mods/a.jar", "jar-bytes")
	writeFile(t, root, "mods/deep/nested/b.jar", "more-bytes")
	writeFile(t, root, "kubejs/scripts/recipes.js", "js")
	writeFile(t, root, "saves/world1/level.dat", "save-data")
	writeFile(t, root, "options.txt", "user settings")
	writeFile(t, root, "mods/pinned.cfg", "force-reset handled elsewhere")

	w := New(Options{Root: root, Zones: testZones(t)})
	res, err := w.Walk(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Records, 3)
	assert.Contains(t, res.Records, "mods/a.jar")
	assert.Contains(t, res.Records, "mods/deep/nested/b.jar")
	assert.Contains(t, res.Records, "kubejs/scripts/recipes.js")

	assert.NotContains(t, res.Records, "saves/world1/level.dat", "untouched zone must be skipped")
	assert.NotContains(t, res.Records, "options.txt")
	assert.NotContains(t, res.Records, "mods/pinned.cfg", "force-reset files are not part of the mirror set")

	rec := res.Records["mods/a.jar"]
	assert.Equal(t, int64(len("jar-bytes")), rec.Size)
	assert.Len(t, rec.Fingerprint, 64, "hex sha256")
	assert.Empty(t, res.Warnings)
}

func TestWalkSymmetricFingerprints(t *testing.T) {
	// Two trees with identical content must produce identical records,
	// whatever the mtimes say.
	a := t.TempDir()
	b := t.TempDir()
	writeFile(t, a, "mods/a.jar", "same content")
	writeFile(t, b, "mods/a.jar", "same content")

	zones := testZones(t)
	resA, err := New(Options{Root: a, Zones: zones}).Walk(context.Background())
	require.NoError(t, err)
	resB, err := New(Options{Root: b, Zones: zones}).Walk(context.Background())
	require.NoError(t, err)

	assert.Equal(t, resA.Records["mods/a.jar"].Fingerprint, resB.Records["mods/a.jar"].Fingerprint)
}

func TestWalkDifferingContentDiffers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "mods/a.jar", "v1")
	writeFile(t, root, "mods/b.jar", "v2")

	res, err := New(Options{Root: root, Zones: testZones(t)}).Walk(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, res.Records["mods/a.jar"].Fingerprint, res.Records["mods/b.jar"].Fingerprint)
}

func TestWalkRootUnavailable(t *testing.T) {
	w := New(Options{Root: filepath.Join(t.TempDir(), "does-not-exist"), Zones: testZones(t)})
	_, err := w.Walk(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrRootUnavailable))
}

func TestWalkRootIsFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := New(Options{Root: file, Zones: testZones(t)}).Walk(context.Background())
	assert.True(t, errors.Is(err, types.ErrRootUnavailable))
}

func TestWalkEmptyRoot(t *testing.T) {
	res, err := New(Options{Root: t.TempDir(), Zones: testZones(t)}).Walk(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestWalkRecordsSymlinksUnfingerprinted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "mods/a.jar", "real")
	writeFile(t, root, "shaderpacks/pack.zip", "outside")
	if err := os.Symlink(filepath.Join(root, "mods", "a.jar"), filepath.Join(root, "mods", "link.jar")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	// A dangling link is still a managed entry: stale and deletable.
	require.NoError(t, os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "mods", "dangling.jar")))
	require.NoError(t, os.Symlink(filepath.Join(root, "shaderpacks", "pack.zip"), filepath.Join(root, "outside.zip")))

	res, err := New(Options{Root: root, Zones: testZones(t)}).Walk(context.Background())
	require.NoError(t, err)

	require.Contains(t, res.Records, "mods/link.jar")
	link := res.Records["mods/link.jar"]
	assert.True(t, link.Symlink)
	assert.Empty(t, link.Fingerprint, "link targets are never read")

	require.Contains(t, res.Records, "mods/dangling.jar")
	assert.True(t, res.Records["mods/dangling.jar"].Symlink)
	assert.Empty(t, res.Warnings, "links are recorded, not hashed, so a dangling one cannot fail")

	assert.NotContains(t, res.Records, "outside.zip", "links outside managed zones stay invisible")
	assert.False(t, res.Records["mods/a.jar"].Symlink)
}

func TestWalkProgressReported(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "mods/a.jar", "content")

	var (
		mu    sync.Mutex
		calls []Progress
	)
	w := New(Options{
		Root:  root,
		Zones: testZones(t),
		OnProgress: func(p Progress) {
			mu.Lock()
			calls = append(calls, p)
			mu.Unlock()
		},
	})

	_, err := w.Walk(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	assert.Equal(t, int64(1), last.FilesHashed)
	assert.Equal(t, int64(len("content")), last.BytesHashed)
}

func TestWalkCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "mods/a.jar", "content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{Root: root, Zones: testZones(t)}).Walk(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
