package meta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	mc, err := NewContext(config.NewLayout(t.TempDir()))
	require.NoError(t, err)
	return mc
}

func TestHeadUnbornIsEmpty(t *testing.T) {
	mc := newTestContext(t)
	head, err := mc.Head()
	require.NoError(t, err)
	assert.Empty(t, head)
}

func TestHeadRoundTrip(t *testing.T) {
	mc := newTestContext(t)
	require.NoError(t, mc.SetHead("abc123"))
	head, err := mc.Head()
	require.NoError(t, err)
	assert.Equal(t, "abc123", head)

	require.NoError(t, mc.SetHead("def456"))
	head, err = mc.Head()
	require.NoError(t, err)
	assert.Equal(t, "def456", head)
}

func TestRevisionRoundTrip(t *testing.T) {
	mc := newTestContext(t)

	now := time.Now().UTC().Truncate(time.Second)
	rev := &Revision{
		ID:        NewRevisionID("", "fs1", "initial", now),
		Label:     "initial",
		Author:    config.Author,
		CreatedAt: now,
		FilesetID: "fs1",
	}
	require.NoError(t, mc.WriteRevision(rev))

	got, err := mc.ReadRevision(rev.ID)
	require.NoError(t, err)
	assert.Equal(t, rev.Label, got.Label)
	assert.Equal(t, rev.FilesetID, got.FilesetID)
	assert.True(t, got.CreatedAt.Equal(now))
	assert.Empty(t, got.Parent)
}

func TestNewRevisionIDDependsOnParent(t *testing.T) {
	at := time.Now()
	a := NewRevisionID("", "fs", "label", at)
	b := NewRevisionID("parent", "fs", "label", at)
	assert.NotEqual(t, a, b, "same content at different chain positions must get distinct IDs")
	assert.Equal(t, a, NewRevisionID("", "fs", "label", at), "derivation must be stable")
}

func TestChainWalk(t *testing.T) {
	mc := newTestContext(t)

	var parent string
	var ids []string
	for i := 0; i < 5; i++ {
		now := time.Now()
		rev := &Revision{
			ID:        NewRevisionID(parent, "fs", "rev", now.Add(time.Duration(i))),
			Parent:    parent,
			Label:     "rev",
			CreatedAt: now,
			FilesetID: "fs",
		}
		require.NoError(t, mc.WriteRevision(rev))
		parent = rev.ID
		ids = append(ids, rev.ID)
	}

	chain, err := mc.Chain(parent, 0)
	require.NoError(t, err)
	require.Len(t, chain, 5)
	assert.Equal(t, ids[4], chain[0].ID, "chain is newest first")
	assert.Equal(t, ids[0], chain[4].ID)
	assert.Empty(t, chain[4].Parent)

	limited, err := mc.Chain(parent, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	empty, err := mc.Chain("", 0)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestChainCycleGuard(t *testing.T) {
	mc := newTestContext(t)

	// two revisions pointing at each other; corrupt, but the walk must stop
	a := &Revision{ID: "aaaa", Parent: "bbbb", FilesetID: "fs"}
	b := &Revision{ID: "bbbb", Parent: "aaaa", FilesetID: "fs"}
	require.NoError(t, mc.WriteRevision(a))
	require.NoError(t, mc.WriteRevision(b))

	chain, err := mc.Chain("aaaa", 0)
	require.NoError(t, err)
	assert.Len(t, chain, 2)
}

func TestRemoveRevision(t *testing.T) {
	mc := newTestContext(t)

	rev := &Revision{ID: "gone", FilesetID: "fs"}
	require.NoError(t, mc.WriteRevision(rev))
	require.NoError(t, mc.RemoveRevision("gone"))
	require.NoError(t, mc.RemoveRevision("gone"), "removing twice is fine")

	_, err := mc.ReadRevision("gone")
	assert.Error(t, err)
}

func TestCheckpointRoundTrip(t *testing.T) {
	mc := newTestContext(t)

	now := time.Now()
	cp := &Checkpoint{
		Tag:         NewCheckpointTag(now),
		Revision:    "abc123",
		Description: "Create nice_dark theme",
		CreatedAt:   now,
	}
	require.NoError(t, mc.WriteCheckpoint(cp))

	got, err := mc.ReadCheckpoint(cp.Tag)
	require.NoError(t, err)
	assert.Equal(t, cp.Revision, got.Revision)
	assert.Equal(t, cp.Description, got.Description)

	later := &Checkpoint{
		Tag:       NewCheckpointTag(now.Add(time.Minute)),
		Revision:  "def456",
		CreatedAt: now.Add(time.Minute),
	}
	require.NoError(t, mc.WriteCheckpoint(later))

	all, err := mc.ListCheckpoints()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, later.Tag, all[0].Tag, "newest first")
}
