// Package vault is the versioned configuration store: every mutation of the
// working tree can be captured as an immutable revision, multi-step
// operations are bounded by checkpoints, and history is periodically pruned
// to a bounded window without ever touching live file content.
package vault

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/ignore"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/meta"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/object"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/snapshot"
)

// Options configures a vault.
type Options struct {
	// Enabled false constructs a no-op vault: Snapshot silently does
	// nothing, every other operation returns ErrDisabled.
	Enabled bool

	// MaxRevisions is the chain length that triggers automatic pruning.
	MaxRevisions int

	// RetainRevisions is the chain length pruning cuts back to. Must be
	// below MaxRevisions to leave headroom before the next trigger.
	RetainRevisions int

	Logger *zap.Logger
}

// Vault owns the versioning state of exactly one working tree. The root is
// fixed at construction; no operation ever resolves paths against anything
// else.
type Vault struct {
	layout config.Layout
	log    *zap.Logger

	meta    *meta.Context
	objects *object.Store
	snaps   *snapshot.Context
	rules   *ignore.Rules

	enabled bool
	maxRevs int
	retain  int

	// mu serializes mutating operations and stable-head reads.
	mu sync.Mutex

	// processing suppresses skip-if-suspended snapshots while a checkpoint
	// is open; cpMu makes begin/end transitions exclusive.
	cpMu       sync.Mutex
	processing atomic.Bool

	pruneRunning atomic.Bool
	pruneDone    chan struct{} // closed when a background prune finishes; tests wait on it
}

// Open initializes or opens the vault co-located with the working tree at
// root.
func Open(root string, opts Options) (*Vault, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxRevisions <= 0 {
		opts.MaxRevisions = 50
	}
	if opts.RetainRevisions <= 0 || opts.RetainRevisions >= opts.MaxRevisions {
		opts.RetainRevisions = opts.MaxRevisions * 3 / 5
	}

	layout := config.NewLayout(root)
	v := &Vault{
		layout:  layout,
		log:     opts.Logger,
		enabled: opts.Enabled,
		maxRevs: opts.MaxRevisions,
		retain:  opts.RetainRevisions,
	}
	if !opts.Enabled {
		return v, nil
	}

	mc, err := meta.NewContext(layout)
	if err != nil {
		return nil, fmt.Errorf("open vault at %q: %w", root, err)
	}
	v.meta = mc
	v.objects = object.NewStore(layout.ObjectsPath())
	v.rules = ignore.Load(layout.IgnorePath())
	v.snaps = snapshot.NewContext(layout, v.objects, v.rules)
	return v, nil
}

// Enabled reports whether the vault is live or in no-op mode.
func (v *Vault) Enabled() bool { return v.enabled }

// Root returns the working tree root this vault versions.
func (v *Vault) Root() string { return v.layout.Root }

// Rules exposes the ignore rule set consulted at snapshot time.
func (v *Vault) Rules() *ignore.Rules { return v.rules }

// Reconcile retroactively untracks indexed paths matching ignore rules. It
// never deletes matched files from disk and never rewrites existing
// revisions; exclusion is forward-only. Returns the removed paths.
func (v *Vault) Reconcile() ([]string, error) {
	if !v.enabled {
		return nil, ErrDisabled
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := v.snaps.LoadIndex()
	if err != nil {
		return nil, err
	}

	kept := entries[:0]
	var removed []string
	for _, e := range entries {
		if v.rules.Match(e.Path) {
			removed = append(removed, e.Path)
			continue
		}
		kept = append(kept, e)
	}
	if len(removed) == 0 {
		return nil, nil
	}

	if err := v.snaps.SaveIndex(kept); err != nil {
		return nil, err
	}
	v.log.Info("untracked ignored paths", zap.Int("count", len(removed)))
	return removed, nil
}

// Checkpoints lists all checkpoint records, newest first. References are
// advisory; a checkpoint may point at a revision pruning has dropped.
func (v *Vault) Checkpoints() ([]*meta.Checkpoint, error) {
	if !v.enabled {
		return nil, ErrDisabled
	}
	return v.meta.ListCheckpoints()
}

// findRevision resolves a full ID or an unambiguous prefix (8 chars or more)
// against the chain reachable from head.
func (v *Vault) findRevision(ref string) (*meta.Revision, error) {
	if len(ref) < 8 {
		return nil, fmt.Errorf("revision reference %q too short: %w", ref, ErrNotFound)
	}
	head, err := v.meta.Head()
	if err != nil {
		return nil, err
	}
	chain, err := v.meta.Chain(head, 0)
	if err != nil {
		return nil, err
	}

	var found *meta.Revision
	for _, r := range chain {
		if r.ID == ref {
			return r, nil
		}
		if strings.HasPrefix(r.ID, ref) {
			if found != nil {
				return nil, fmt.Errorf("revision reference %q: %w", ref, ErrConflict)
			}
			found = r
		}
	}
	if found == nil {
		return nil, fmt.Errorf("revision %q: %w", ref, ErrNotFound)
	}
	return found, nil
}
