package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault"
)

type countingStore struct {
	mu     sync.Mutex
	labels []string
}

func (c *countingStore) Snapshot(label string, opts vault.SnapshotOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels = append(c.labels, label)
	return "deadbeefdeadbeef", nil
}

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.labels)
}

type denyAll struct{}

func (denyAll) Match(string) bool { return true }

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// give the watcher a beat to register its directories
	time.Sleep(100 * time.Millisecond)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestDebouncedSnapshotAfterEdits(t *testing.T) {
	root := t.TempDir()
	store := &countingStore{}
	w := New(root, store, nil, nil)
	w.debounce = 100 * time.Millisecond
	startWatcher(t, w)

	// a burst of writes collapses into one snapshot
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "configuration.yaml"), []byte("x"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	require.True(t, waitFor(t, 3*time.Second, func() bool { return store.count() >= 1 }))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, store.count(), "burst must debounce to one snapshot")
	assert.Equal(t, "External edit detected", store.labels[0])
}

func TestVaultDirChangesIgnored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".agent-vault"), 0o755))

	store := &countingStore{}
	w := New(root, store, nil, nil)
	w.debounce = 100 * time.Millisecond
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".agent-vault", "head"), []byte("rev"), 0o644))

	time.Sleep(500 * time.Millisecond)
	assert.Zero(t, store.count(), "the store's own writes must not trigger snapshots")
}

func TestIgnoredPathsFiltered(t *testing.T) {
	root := t.TempDir()
	store := &countingStore{}
	w := New(root, store, denyAll{}, nil)
	w.debounce = 100 * time.Millisecond
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(root, "home-assistant.log"), []byte("line"), 0o644))

	time.Sleep(500 * time.Millisecond)
	assert.Zero(t, store.count())
}

func TestNewDirectoriesAreWatched(t *testing.T) {
	root := t.TempDir()
	store := &countingStore{}
	w := New(root, store, nil, nil)
	w.debounce = 100 * time.Millisecond
	startWatcher(t, w)

	sub := filepath.Join(root, "packages")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	// mkdir itself schedules a snapshot; wait it out so the next assertion
	// isolates the file inside the new directory
	require.True(t, waitFor(t, 3*time.Second, func() bool { return store.count() >= 1 }))

	require.NoError(t, os.WriteFile(filepath.Join(sub, "lights.yaml"), []byte("light:\n"), 0o644))
	require.True(t, waitFor(t, 3*time.Second, func() bool { return store.count() >= 2 }))
}
