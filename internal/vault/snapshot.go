package vault

import (
	"time"

	"go.uber.org/zap"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/meta"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/snapshot"
)

// SnapshotOptions modifies snapshot behavior.
type SnapshotOptions struct {
	// SkipIfSuspended suppresses the snapshot while a checkpoint is open, so
	// the many small writes of one agent operation collapse into a single
	// logical unit.
	SkipIfSuspended bool
}

// Snapshot captures the working tree as a new revision and advances head.
// Returns the new revision ID, or an empty ID when there is nothing to
// capture (no change, suspension, or versioning disabled) — that is a no-op,
// not an error. Working tree content is never modified.
func (v *Vault) Snapshot(label string, opts SnapshotOptions) (string, error) {
	if !v.enabled {
		return "", nil
	}
	if opts.SkipIfSuspended && v.processing.Load() {
		v.log.Debug("snapshot suppressed, checkpoint open", zap.String("label", label))
		return "", nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	id, err := v.snapshotLocked(label)
	if err != nil {
		return "", err
	}
	if id != "" {
		v.maybePruneAsync()
	}
	return id, nil
}

// snapshotLocked does the actual capture. Caller holds v.mu.
func (v *Vault) snapshotLocked(label string) (string, error) {
	fs, err := v.snaps.BuildFromWorkingTree()
	if err != nil {
		return "", err
	}

	indexed, err := v.snaps.LoadIndex()
	if err != nil {
		return "", err
	}
	if snapshot.HashEntries(indexed) == fs.ID {
		v.log.Debug("no changes to snapshot", zap.String("label", label))
		return "", nil
	}

	head, err := v.meta.Head()
	if err != nil {
		return "", err
	}

	if label == "" {
		label = "Auto-snapshot at " + time.Now().Format(time.RFC3339)
	}

	if err := v.snaps.Save(fs); err != nil {
		return "", err
	}

	now := time.Now()
	rev := &meta.Revision{
		ID:        meta.NewRevisionID(head, fs.ID, label, now),
		Parent:    head,
		Label:     label,
		Author:    config.Author,
		CreatedAt: now,
		FilesetID: fs.ID,
	}
	if err := v.meta.WriteRevision(rev); err != nil {
		return "", err
	}
	if err := v.meta.SetHead(rev.ID); err != nil {
		return "", err
	}
	if err := v.snaps.SaveIndex(fs.Files); err != nil {
		return "", err
	}

	v.log.Info("snapshot created",
		zap.String("revision", rev.ID[:8]),
		zap.String("label", label),
		zap.Int("files", len(fs.Files)))
	return rev.ID, nil
}
