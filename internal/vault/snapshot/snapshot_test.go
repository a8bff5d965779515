package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/ignore"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/object"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	layout := config.NewLayout(t.TempDir())
	for _, d := range []string{layout.VaultRoot(), layout.FilesetsPath(), layout.ObjectsPath()} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return NewContext(layout, object.NewStore(layout.ObjectsPath()), ignore.Load(layout.IgnorePath()))
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func TestScanSkipsVaultAndIgnored(t *testing.T) {
	sc := newTestContext(t)
	writeTree(t, sc.Layout.Root, map[string]string{
		"configuration.yaml":        "homeassistant:\n",
		"automations.yaml":          "[]\n",
		"secrets.yaml":              "api_key: hunter2\n",
		"home-assistant.log":        "noise\n",
		".storage/core.registry":    "{}",
		"themes/nice_dark.yaml":     "nice_dark:\n",
		".agent-vault/objects/x.db": "internal",
	})

	paths, err := sc.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"automations.yaml", "configuration.yaml", "themes/nice_dark.yaml"}, paths)
}

func TestBuildFromWorkingTree(t *testing.T) {
	sc := newTestContext(t)
	writeTree(t, sc.Layout.Root, map[string]string{
		"configuration.yaml": "homeassistant:\n",
		"automations.yaml":   "[]\n",
	})

	fs, err := sc.BuildFromWorkingTree()
	require.NoError(t, err)
	require.Len(t, fs.Files, 2)
	assert.NotEmpty(t, fs.ID)
	assert.Equal(t, "automations.yaml", fs.Files[0].Path, "entries sorted by path")

	// content is retrievable from the object store
	data, err := sc.Objects.Get(fs.Files[1].Object.Hash)
	require.NoError(t, err)
	assert.Equal(t, "homeassistant:\n", string(data))

	// identical tree builds the identical fileset
	again, err := sc.BuildFromWorkingTree()
	require.NoError(t, err)
	assert.Equal(t, fs.ID, again.ID)
}

func TestHashEntriesIsOrderInsensitive(t *testing.T) {
	a := Entry{Path: "a.yaml", Object: object.Ref{Hash: "h1", Size: 1}}
	b := Entry{Path: "b.yaml", Object: object.Ref{Hash: "h2", Size: 2}}
	assert.Equal(t, HashEntries([]Entry{a, b}), HashEntries([]Entry{b, a}))
	assert.NotEqual(t, HashEntries([]Entry{a}), HashEntries([]Entry{a, b}))
}

func TestSaveLoadFileset(t *testing.T) {
	sc := newTestContext(t)
	writeTree(t, sc.Layout.Root, map[string]string{"configuration.yaml": "x: 1\n"})

	fs, err := sc.BuildFromWorkingTree()
	require.NoError(t, err)
	require.NoError(t, sc.Save(fs))
	require.NoError(t, sc.Save(fs), "saving an existing fileset is a no-op")

	got, err := sc.Load(fs.ID)
	require.NoError(t, err)
	assert.Equal(t, fs, got)

	ids, err := sc.ListIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{fs.ID}, ids)
}

func TestRestorePartial(t *testing.T) {
	sc := newTestContext(t)
	writeTree(t, sc.Layout.Root, map[string]string{
		"configuration.yaml": "original config\n",
		"automations.yaml":   "original automations\n",
	})

	fs, err := sc.BuildFromWorkingTree()
	require.NoError(t, err)

	writeTree(t, sc.Layout.Root, map[string]string{
		"configuration.yaml": "broken config\n",
		"automations.yaml":   "broken automations\n",
	})

	entry, ok := fs.Lookup("automations.yaml")
	require.True(t, ok)
	restored, err := sc.Restore([]Entry{entry}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"automations.yaml"}, restored)

	data, _ := os.ReadFile(filepath.Join(sc.Layout.Root, "automations.yaml"))
	assert.Equal(t, "original automations\n", string(data))
	data, _ = os.ReadFile(filepath.Join(sc.Layout.Root, "configuration.yaml"))
	assert.Equal(t, "broken config\n", string(data), "partial restore must not touch other files")
}

func TestRestoreFullRemovesUntracked(t *testing.T) {
	sc := newTestContext(t)
	writeTree(t, sc.Layout.Root, map[string]string{
		"configuration.yaml": "config\n",
	})

	fs, err := sc.BuildFromWorkingTree()
	require.NoError(t, err)

	writeTree(t, sc.Layout.Root, map[string]string{
		"configuration.yaml": "changed\n",
		"packages/new.yaml":  "stray\n",
		"home-assistant.log": "keep me, I am ignored\n",
		"secrets.yaml":       "keep me too\n",
	})

	_, err = sc.Restore(fs.Files, true)
	require.NoError(t, err)

	data, _ := os.ReadFile(filepath.Join(sc.Layout.Root, "configuration.yaml"))
	assert.Equal(t, "config\n", string(data))

	_, err = os.Stat(filepath.Join(sc.Layout.Root, "packages", "new.yaml"))
	assert.True(t, os.IsNotExist(err), "untracked file should be removed")
	_, err = os.Stat(filepath.Join(sc.Layout.Root, "packages"))
	assert.True(t, os.IsNotExist(err), "emptied directory should be pruned")

	for _, keep := range []string{"home-assistant.log", "secrets.yaml"} {
		_, err = os.Stat(filepath.Join(sc.Layout.Root, keep))
		assert.NoError(t, err, "%s is ignored and must survive a full restore", keep)
	}
}

func TestTreeMatches(t *testing.T) {
	sc := newTestContext(t)
	writeTree(t, sc.Layout.Root, map[string]string{"configuration.yaml": "a\n"})

	fs, err := sc.BuildFromWorkingTree()
	require.NoError(t, err)

	ok, err := sc.TreeMatches(fs)
	require.NoError(t, err)
	assert.True(t, ok)

	writeTree(t, sc.Layout.Root, map[string]string{"configuration.yaml": "b\n"})
	ok, err = sc.TreeMatches(fs)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndexRoundTrip(t *testing.T) {
	sc := newTestContext(t)

	got, err := sc.LoadIndex()
	require.NoError(t, err)
	assert.Nil(t, got, "missing index is empty")

	entries := []Entry{{Path: "configuration.yaml", Object: object.Ref{Hash: "h", Size: 3}}}
	require.NoError(t, sc.SaveIndex(entries))

	got, err = sc.LoadIndex()
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}
