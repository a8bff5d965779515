package vault

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/meta"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/snapshot"
)

// PruneResult reports what a prune run did.
type PruneResult struct {
	Before  int `json:"revisions_before"`
	After   int `json:"revisions_after"`
	Swept   int `json:"objects_swept"`
	Skipped int `json:"revisions_skipped"` // retained revisions whose snapshot could not be replayed
}

// verifyTree is the post-swap verification; overridable in tests to exercise
// the failure-restoration path.
var verifyTree = func(sc *snapshot.Context, fs snapshot.Fileset) (bool, error) {
	return sc.TreeMatches(fs)
}

// Prune truncates history to the retention window now, synchronously. The
// working tree is byte-identical before and after; on any failure the chain
// is left exactly as it was.
func (v *Vault) Prune(ctx context.Context) (PruneResult, error) {
	if !v.enabled {
		return PruneResult{}, ErrDisabled
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pruneLocked(ctx)
}

// maybePruneAsync schedules a background prune when the chain has grown past
// the threshold. At most one prune runs at a time. Caller holds v.mu.
func (v *Vault) maybePruneAsync() {
	head, err := v.meta.Head()
	if err != nil {
		return
	}
	chain, err := v.meta.Chain(head, 0)
	if err != nil || len(chain) < v.maxRevs {
		return
	}
	if !v.pruneRunning.CompareAndSwap(false, true) {
		return
	}

	done := make(chan struct{})
	v.pruneDone = done
	go func() {
		defer close(done)
		defer v.pruneRunning.Store(false)

		v.mu.Lock()
		defer v.mu.Unlock()
		if _, err := v.pruneLocked(context.Background()); err != nil {
			v.log.Error("background prune failed", zap.Error(err))
		}
	}()
}

// pruneLocked implements the replay-plus-reconcile truncation. Caller holds
// v.mu.
//
// The old chain stays intact on disk until the new one is swapped in via the
// head pointer and verified against the working tree, so every failure path
// before reclaim restores the previous state by restoring one file.
func (v *Vault) pruneLocked(ctx context.Context) (PruneResult, error) {
	head, err := v.meta.Head()
	if err != nil {
		return PruneResult{}, err
	}
	chain, err := v.meta.Chain(head, 0)
	if err != nil {
		return PruneResult{}, err
	}
	res := PruneResult{Before: len(chain), After: len(chain)}
	if len(chain) <= v.retain {
		return res, nil
	}

	// Uncommitted working-tree changes must not be silently dropped; capture
	// them as a real revision first.
	if id, err := v.snapshotLocked("Snapshot before history prune"); err != nil {
		return res, fmt.Errorf("pre-prune snapshot: %w", err)
	} else if id != "" {
		head = id
		if chain, err = v.meta.Chain(head, 0); err != nil {
			return res, err
		}
		res.Before = len(chain)
	}

	// Cancellation is honored only up to this point; once chain construction
	// starts the operation runs to success or full rollback.
	if err := ctx.Err(); err != nil {
		return res, err
	}

	// retained is newest first; the last element is the new history floor.
	retained := chain
	if len(retained) > v.retain {
		retained = retained[:v.retain]
	}
	base := retained[len(retained)-1]

	baseFS, err := v.snaps.Load(base.FilesetID)
	if err != nil {
		return res, fmt.Errorf("load prune base snapshot: %w", err)
	}

	// Build the replacement chain root: content-identical to the base, but
	// parentless. New IDs are derived from new parent pointers, so the new
	// chain coexists with the old one until reclaim.
	root := &meta.Revision{
		ID:        meta.NewRevisionID("", baseFS.ID, base.Label, base.CreatedAt),
		Label:     base.Label,
		Author:    base.Author,
		CreatedAt: base.CreatedAt,
		FilesetID: baseFS.ID,
	}
	newChain := []*meta.Revision{root}
	if err := v.meta.WriteRevision(root); err != nil {
		return res, err
	}

	// Replay the remaining retained revisions, oldest to newest, preserving
	// labels and timestamps. A revision whose snapshot cannot be loaded is
	// skipped: the reconciling snapshot below guarantees final correctness,
	// so a skipped mid-point costs history fidelity only.
	for i := len(retained) - 2; i >= 0; i-- {
		old := retained[i]
		if _, err := v.snaps.Load(old.FilesetID); err != nil {
			v.log.Warn("skipping unreplayable revision during prune",
				zap.String("revision", old.ID[:8]),
				zap.Error(err))
			res.Skipped++
			continue
		}
		prev := newChain[len(newChain)-1]
		rev := &meta.Revision{
			ID:        meta.NewRevisionID(prev.ID, old.FilesetID, old.Label, old.CreatedAt),
			Parent:    prev.ID,
			Label:     old.Label,
			Author:    old.Author,
			CreatedAt: old.CreatedAt,
			FilesetID: old.FilesetID,
		}
		if err := v.meta.WriteRevision(rev); err != nil {
			v.discardChain(newChain)
			return res, err
		}
		newChain = append(newChain, rev)
	}

	// Safety net: force the new tip to match the real working tree exactly,
	// whatever the replay produced.
	treeFS, err := v.snaps.BuildFromWorkingTree()
	if err != nil {
		v.discardChain(newChain)
		return res, fmt.Errorf("reconcile snapshot: %w", err)
	}
	tip := newChain[len(newChain)-1]
	if treeFS.ID != tip.FilesetID {
		if err := v.snaps.Save(treeFS); err != nil {
			v.discardChain(newChain)
			return res, err
		}
		prev := tip
		reconcile := &meta.Revision{
			ID:        meta.NewRevisionID(prev.ID, treeFS.ID, "Reconcile after history prune", prev.CreatedAt),
			Parent:    prev.ID,
			Label:     "Reconcile after history prune",
			Author:    config.Author,
			CreatedAt: prev.CreatedAt,
			FilesetID: treeFS.ID,
		}
		if err := v.meta.WriteRevision(reconcile); err != nil {
			v.discardChain(newChain)
			return res, err
		}
		newChain = append(newChain, reconcile)
		tip = reconcile
	}

	// Swap. The old head value is the disposable safety copy.
	oldHead := head
	if err := v.meta.SetHead(tip.ID); err != nil {
		v.discardChain(newChain)
		return res, err
	}

	tipFS, err := v.snaps.Load(tip.FilesetID)
	if err == nil {
		var ok bool
		ok, err = verifyTree(v.snaps, tipFS)
		if err == nil && !ok {
			err = fmt.Errorf("head snapshot does not match working tree")
		}
	}
	if err != nil {
		ierr := &IntegrityError{Op: "prune", Detail: "post-swap verification failed", Err: err}
		if rerr := v.meta.SetHead(oldHead); rerr != nil {
			// The safety copy could not be restored. Manual intervention
			// territory: report as loudly as possible and give the operator
			// both failures.
			ierr.Detail = fmt.Sprintf("post-swap verification failed AND restoring previous head %q failed: %v", oldHead, rerr)
			v.log.Error("prune left the store in an inconsistent state", zap.Error(ierr))
			return res, ierr
		}
		v.discardChain(newChain)
		v.log.Error("prune aborted, previous state restored", zap.Error(ierr))
		return res, ierr
	}

	if err := v.snaps.SaveIndex(tipFS.Files); err != nil {
		v.log.Warn("index refresh after prune failed", zap.Error(err))
	}

	// Verified: reclaim the discarded old chain. Failures here are logged,
	// not fatal; the next prune sweeps again.
	res.Swept = v.reclaim(newChain)
	res.After = len(newChain)
	v.log.Info("history pruned",
		zap.Int("before", res.Before),
		zap.Int("after", res.After),
		zap.Int("objects_swept", res.Swept))
	return res, nil
}

// discardChain removes the partially built replacement chain. Best effort;
// orphan records are invisible (unreachable from head) and reclaimed by the
// next successful prune.
func (v *Vault) discardChain(chain []*meta.Revision) {
	for _, r := range chain {
		_ = v.meta.RemoveRevision(r.ID)
	}
}

// reclaim deletes revision records outside the live chain, filesets no live
// revision references, and content objects no remaining fileset references.
// Returns the number of objects swept.
func (v *Vault) reclaim(live []*meta.Revision) int {
	liveRevs := make(map[string]struct{}, len(live))
	liveSets := make(map[string]struct{}, len(live))
	for _, r := range live {
		liveRevs[r.ID] = struct{}{}
		liveSets[r.FilesetID] = struct{}{}
	}

	if ids, err := v.meta.ListRevisionIDs(); err == nil {
		for _, id := range ids {
			if _, ok := liveRevs[id]; !ok {
				_ = v.meta.RemoveRevision(id)
			}
		}
	}

	liveObjects := make(map[string]struct{})
	if ids, err := v.snaps.ListIDs(); err == nil {
		for _, id := range ids {
			if _, ok := liveSets[id]; !ok {
				_ = v.snaps.Remove(id)
				continue
			}
			fs, err := v.snaps.Load(id)
			if err != nil {
				continue
			}
			for _, e := range fs.Files {
				liveObjects[e.Object.Hash] = struct{}{}
			}
		}
	}

	swept, err := v.objects.Sweep(liveObjects)
	if err != nil {
		v.log.Warn("object sweep failed", zap.Error(err))
	}
	return swept
}
