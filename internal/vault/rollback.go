package vault

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/ignore"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/meta"
)

func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if ignore.MatchPattern(p, path) {
			return true
		}
	}
	return false
}

// Rollback rewrites the working tree to match the target revision. The
// pre-rollback state is snapshotted first so it stays recoverable, and head
// advances to a new revision recording the rollback. Returns the new head
// revision ID.
func (v *Vault) Rollback(target string) (string, error) {
	if !v.enabled {
		return "", ErrDisabled
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	rev, err := v.findRevision(target)
	if err != nil {
		return "", err
	}

	// Capture current state before touching anything; a failed rollback must
	// still be recoverable.
	if _, err := v.snapshotLocked("Before rollback to " + rev.ID[:8]); err != nil {
		return "", fmt.Errorf("pre-rollback snapshot: %w", err)
	}

	fs, err := v.snaps.Load(rev.FilesetID)
	if err != nil {
		return "", err
	}
	if _, err := v.snaps.Restore(fs.Files, true); err != nil {
		return "", fmt.Errorf("rollback to %q: %w", rev.ID, err)
	}

	head, err := v.meta.Head()
	if err != nil {
		return "", err
	}
	now := time.Now()
	label := "Rollback to " + rev.ID[:8]
	rolled := &meta.Revision{
		ID:        meta.NewRevisionID(head, fs.ID, label, now),
		Parent:    head,
		Label:     label,
		Author:    config.Author,
		CreatedAt: now,
		FilesetID: fs.ID,
	}
	if err := v.meta.WriteRevision(rolled); err != nil {
		return "", err
	}
	if err := v.meta.SetHead(rolled.ID); err != nil {
		return "", err
	}
	if err := v.snaps.SaveIndex(fs.Files); err != nil {
		return "", err
	}

	v.log.Warn("rolled back",
		zap.String("target", rev.ID[:8]),
		zap.String("revision", rolled.ID[:8]))
	return rolled.ID, nil
}

// Restore copies matching paths from a revision into the working tree
// without moving head. An empty target means head; empty patterns mean all
// tracked paths. Returns the restored paths; no pattern matching anything is
// ErrNotFound.
func (v *Vault) Restore(target string, patterns []string) ([]string, error) {
	if !v.enabled {
		return nil, ErrDisabled
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	var rev *meta.Revision
	if target == "" {
		head, err := v.meta.Head()
		if err != nil {
			return nil, err
		}
		if head == "" {
			return nil, fmt.Errorf("no revisions yet: %w", ErrNotFound)
		}
		if rev, err = v.meta.ReadRevision(head); err != nil {
			return nil, err
		}
	} else {
		var err error
		if rev, err = v.findRevision(target); err != nil {
			return nil, err
		}
	}

	fs, err := v.snaps.Load(rev.FilesetID)
	if err != nil {
		return nil, err
	}

	selected := fs.Files
	if len(patterns) > 0 {
		selected = selected[:0:0]
		for _, e := range fs.Files {
			if matchesAny(e.Path, patterns) {
				selected = append(selected, e)
			}
		}
		if len(selected) == 0 {
			return nil, fmt.Errorf("no tracked paths match %v in revision %q: %w", patterns, rev.ID, ErrNotFound)
		}
	}

	restored, err := v.snaps.Restore(selected, false)
	if err != nil {
		return restored, err
	}

	v.log.Warn("restored paths from revision",
		zap.String("revision", rev.ID[:8]),
		zap.Int("count", len(restored)))
	return restored, nil
}
