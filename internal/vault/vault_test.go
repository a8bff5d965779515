package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestVault(t *testing.T, opts Options) *Vault {
	t.Helper()
	opts.Enabled = true
	if opts.MaxRevisions == 0 {
		opts.MaxRevisions = 1000 // keep auto-prune out of the way unless a test wants it
		opts.RetainRevisions = 500
	}
	v, err := Open(t.TempDir(), opts)
	require.NoError(t, err)
	return v
}

func write(t *testing.T, v *Vault, rel, content string) {
	t.Helper()
	abs := filepath.Join(v.Root(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func read(t *testing.T, v *Vault, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(v.Root(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestSnapshotNoChangesIsNoop(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "homeassistant:\n")

	id1, err := v.Snapshot("first", SnapshotOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := v.Snapshot("second", SnapshotOptions{})
	require.NoError(t, err)
	assert.Empty(t, id2, "no intervening change, no new revision")

	history, err := v.History(0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSnapshotCapturesChange(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "a: 1\n")

	id1, err := v.Snapshot("one", SnapshotOptions{})
	require.NoError(t, err)

	write(t, v, "configuration.yaml", "a: 2\n")
	id2, err := v.Snapshot("two", SnapshotOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, id2)
	assert.NotEqual(t, id1, id2)

	history, err := v.History(0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "two", history[0].Label)
	assert.Equal(t, id1, history[0].Parent, "linear chain")
	assert.Equal(t, "one", history[1].Label)
}

func TestSnapshotDetectsDeletion(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "a\n")
	write(t, v, "automations.yaml", "b\n")

	_, err := v.Snapshot("both", SnapshotOptions{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(v.Root(), "automations.yaml")))
	id, err := v.Snapshot("deleted one", SnapshotOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, id, "deletion is a change")
}

func TestRollbackRoundTrip(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "state A\n")

	idA, err := v.Snapshot("A", SnapshotOptions{})
	require.NoError(t, err)

	write(t, v, "configuration.yaml", "state B\n")
	write(t, v, "extra.yaml", "only in B\n")
	_, err = v.Snapshot("B", SnapshotOptions{})
	require.NoError(t, err)

	idC, err := v.Rollback(idA)
	require.NoError(t, err)
	require.NotEmpty(t, idC)

	assert.Equal(t, "state A\n", read(t, v, "configuration.yaml"))
	_, err = os.Stat(filepath.Join(v.Root(), "extra.yaml"))
	assert.True(t, os.IsNotExist(err), "file not in A must be gone")

	// the rollback revision's content equals A's
	diff, err := v.Diff(idA, idC)
	require.NoError(t, err)
	assert.Empty(t, diff)

	// pre-rollback state is itself recoverable: A, B, C plus nothing lost
	history, err := v.History(0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "B", history[1].Label)
}

func TestRollbackUnknownRevision(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "x\n")
	_, err := v.Snapshot("only", SnapshotOptions{})
	require.NoError(t, err)

	_, err = v.Rollback("feedfacefeedface")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevisionPrefixResolution(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "x\n")
	id, err := v.Snapshot("only", SnapshotOptions{})
	require.NoError(t, err)

	rev, err := v.findRevision(id[:8])
	require.NoError(t, err)
	assert.Equal(t, id, rev.ID)

	_, err = v.findRevision(id[:4])
	assert.ErrorIs(t, err, ErrNotFound, "too-short references are rejected")
}

func TestRestoreSelectedPaths(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "good config\n")
	write(t, v, "automations.yaml", "good automations\n")

	id, err := v.Snapshot("good", SnapshotOptions{})
	require.NoError(t, err)

	write(t, v, "configuration.yaml", "bad config\n")
	write(t, v, "automations.yaml", "bad automations\n")

	restored, err := v.Restore(id, []string{"automations.yaml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"automations.yaml"}, restored)
	assert.Equal(t, "good automations\n", read(t, v, "automations.yaml"))
	assert.Equal(t, "bad config\n", read(t, v, "configuration.yaml"))

	// head did not move
	history, err := v.History(0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = v.Restore(id, []string{"*.json"})
	assert.ErrorIs(t, err, ErrNotFound, "no pattern match is NotFound")
}

func TestRestoreDefaultsToHead(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "committed\n")
	_, err := v.Snapshot("head", SnapshotOptions{})
	require.NoError(t, err)

	write(t, v, "configuration.yaml", "scribbled\n")
	restored, err := v.Restore("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"configuration.yaml"}, restored)
	assert.Equal(t, "committed\n", read(t, v, "configuration.yaml"))
}

func TestCheckpointSuppression(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "start\n")

	cp, err := v.BeginCheckpoint("install climate control")
	require.NoError(t, err)
	assert.NotEmpty(t, cp.Revision)
	assert.Contains(t, cp.Tag, "checkpoint_")

	// the many small writes of one agent operation
	for i, content := range []string{"step 1\n", "step 2\n", "step 3\n"} {
		write(t, v, "configuration.yaml", content)
		id, err := v.Snapshot("auto", SnapshotOptions{SkipIfSuspended: true})
		require.NoError(t, err)
		assert.Empty(t, id, "auto snapshot %d must be suppressed", i)
	}

	// an explicit commit still lands while the checkpoint is open
	id, err := v.Snapshot("Applied climate control", SnapshotOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	v.EndCheckpoint()
	v.EndCheckpoint() // idempotent

	write(t, v, "configuration.yaml", "after\n")
	id, err = v.Snapshot("auto again", SnapshotOptions{SkipIfSuspended: true})
	require.NoError(t, err)
	assert.NotEmpty(t, id, "suppression must end with the checkpoint")
}

func TestCheckpointReentryFails(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "x\n")

	_, err := v.BeginCheckpoint("first")
	require.NoError(t, err)

	_, err = v.BeginCheckpoint("second")
	assert.ErrorIs(t, err, ErrCheckpointOpen)

	v.EndCheckpoint()
	_, err = v.BeginCheckpoint("third")
	assert.NoError(t, err)
	v.EndCheckpoint()
}

func TestCheckpointAnchorsOnHeadWhenClean(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "x\n")
	id, err := v.Snapshot("committed", SnapshotOptions{})
	require.NoError(t, err)

	cp, err := v.BeginCheckpoint("nothing dirty")
	require.NoError(t, err)
	assert.Equal(t, id, cp.Revision, "clean tree anchors the checkpoint on head")
	v.EndCheckpoint()

	cps, err := v.Checkpoints()
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, "nothing dirty", cps[0].Description)
}

func TestReconcileUntracksWithoutDeleting(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "x\n")
	write(t, v, "huge.draft", "pretend this is 3 GB\n")

	_, err := v.Snapshot("tracked the draft too", SnapshotOptions{})
	require.NoError(t, err)

	// the rule arrives after the file was tracked
	require.NoError(t, os.WriteFile(filepath.Join(v.Root(), ".agentignore"), []byte("*.draft\n"), 0o644))
	reopened, err := Open(v.Root(), Options{Enabled: true, MaxRevisions: 1000, RetainRevisions: 500})
	require.NoError(t, err)

	removed, err := reopened.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, []string{"huge.draft"}, removed)

	// still on disk, and history is untouched
	_, err = os.Stat(filepath.Join(v.Root(), "huge.draft"))
	assert.NoError(t, err)
	history, err := reopened.History(0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// no phantom "deleted" revision on the next snapshot
	id, err := reopened.Snapshot("after reconcile", SnapshotOptions{})
	require.NoError(t, err)
	assert.Empty(t, id)

	again, err := reopened.Reconcile()
	require.NoError(t, err)
	assert.Nil(t, again, "second reconcile has nothing to do")
}

func TestIgnoredFileNeverEntersHistory(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "x\n")
	write(t, v, "secrets.yaml", "api_key: hunter2\n")

	id, err := v.Snapshot("initial", SnapshotOptions{})
	require.NoError(t, err)

	diff, err := v.Diff(id, "")
	require.NoError(t, err)
	assert.NotContains(t, diff, "hunter2")

	contents, err := v.revisionContents(id)
	require.NoError(t, err)
	_, tracked := contents["secrets.yaml"]
	assert.False(t, tracked)
}

func TestDiffAgainstWorkingTree(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "line one\n")

	id, err := v.Snapshot("base", SnapshotOptions{})
	require.NoError(t, err)

	diff, err := v.Diff(id, "")
	require.NoError(t, err)
	assert.Empty(t, diff, "clean tree diffs empty")

	write(t, v, "configuration.yaml", "line two\n")
	write(t, v, "new.yaml", "fresh\n")
	diff, err = v.Diff(id, "")
	require.NoError(t, err)
	assert.Contains(t, diff, "configuration.yaml")
	assert.Contains(t, diff, "new.yaml")
}

func TestDisabledVaultIsNoop(t *testing.T) {
	v, err := Open(t.TempDir(), Options{Enabled: false})
	require.NoError(t, err)
	assert.False(t, v.Enabled())

	id, err := v.Snapshot("anything", SnapshotOptions{})
	require.NoError(t, err)
	assert.Empty(t, id)

	_, err = v.History(0)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = v.Rollback("abc")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = v.BeginCheckpoint("x")
	assert.ErrorIs(t, err, ErrDisabled)
	v.EndCheckpoint() // must not panic

	// no vault directory materializes
	_, err = os.Stat(filepath.Join(v.Root(), ".agent-vault"))
	assert.True(t, os.IsNotExist(err))
}

func TestSnapshotNeverMutatesWorkingTree(t *testing.T) {
	v := openTestVault(t, Options{})
	write(t, v, "configuration.yaml", "precious\n")
	write(t, v, "themes/dark.yaml", "dark:\n")

	_, err := v.Snapshot("capture", SnapshotOptions{})
	require.NoError(t, err)

	assert.Equal(t, "precious\n", read(t, v, "configuration.yaml"))
	assert.Equal(t, "dark:\n", read(t, v, "themes/dark.yaml"))
}
