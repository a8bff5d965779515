package vault

import (
	"time"

	"go.uber.org/zap"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/meta"
)

// BeginCheckpoint snapshots the current state, records a checkpoint marker
// on it and suspends skip-if-suspended snapshots until EndCheckpoint. A
// second begin while one is open fails with ErrCheckpointOpen rather than
// silently losing the first checkpoint's grouping.
func (v *Vault) BeginCheckpoint(description string) (*meta.Checkpoint, error) {
	if !v.enabled {
		return nil, ErrDisabled
	}

	v.cpMu.Lock()
	defer v.cpMu.Unlock()
	if v.processing.Load() {
		return nil, ErrCheckpointOpen
	}

	v.mu.Lock()
	id, err := v.snapshotLocked("Checkpoint before: " + description)
	if err == nil && id == "" {
		// nothing changed; anchor the checkpoint on the current head
		id, err = v.meta.Head()
	}
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cp := &meta.Checkpoint{
		Tag:         meta.NewCheckpointTag(now),
		Revision:    id,
		Description: description,
		CreatedAt:   now,
	}
	if err := v.meta.WriteCheckpoint(cp); err != nil {
		return nil, err
	}

	v.processing.Store(true)
	v.log.Info("checkpoint opened",
		zap.String("tag", cp.Tag),
		zap.String("description", description))
	return cp, nil
}

// EndCheckpoint re-enables automatic snapshots. Idempotent: ending while
// already idle is a no-op. Callers must invoke it on both success and
// failure paths or the vault stays suspended.
func (v *Vault) EndCheckpoint() {
	if !v.enabled {
		return
	}
	v.cpMu.Lock()
	defer v.cpMu.Unlock()
	if v.processing.Swap(false) {
		v.log.Info("checkpoint closed")
	}
}

// CheckpointOpen reports whether a checkpoint is currently open.
func (v *Vault) CheckpointOpen() bool {
	return v.processing.Load()
}
