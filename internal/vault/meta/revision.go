package meta

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/util"
)

// Revision is an immutable snapshot record. Parent is empty only for a chain
// root.
type Revision struct {
	ID        string    `json:"id"`
	Parent    string    `json:"parent,omitempty"`
	Label     string    `json:"label"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	FilesetID string    `json:"fileset_id"`
}

// NewRevisionID derives a content-based identity. The parent pointer is part
// of the input, so identical tree states at different chain positions get
// distinct IDs.
func NewRevisionID(parent, filesetID, label string, at time.Time) string {
	data := strings.Join([]string{parent, filesetID, label, at.UTC().Format(time.RFC3339Nano)}, "\x00")
	h := xxh3.Hash128([]byte(data)).Bytes()
	return hex.EncodeToString(h[:])
}

func (mc *Context) revisionPath(id string) string {
	return filepath.Join(mc.Layout.RevisionsPath(), id+".json")
}

// ReadRevision reads a revision by ID.
func (mc *Context) ReadRevision(id string) (*Revision, error) {
	var r Revision
	if err := util.ReadJSON(mc.revisionPath(id), &r); err != nil {
		return nil, fmt.Errorf("read revision %q: %w", id, err)
	}
	return &r, nil
}

// WriteRevision persists a revision record.
func (mc *Context) WriteRevision(r *Revision) error {
	if r.ID == "" {
		return fmt.Errorf("revision has no ID")
	}
	if err := util.WriteJSON(mc.revisionPath(r.ID), r); err != nil {
		return fmt.Errorf("write revision %q: %w", r.ID, err)
	}
	return nil
}

// RemoveRevision deletes a revision record. Missing records are fine.
func (mc *Context) RemoveRevision(id string) error {
	err := os.Remove(mc.revisionPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove revision %q: %w", id, err)
	}
	return nil
}

// ListRevisionIDs returns the IDs of every persisted revision record,
// whether or not it is reachable from head.
func (mc *Context) ListRevisionIDs() ([]string, error) {
	entries, err := os.ReadDir(mc.Layout.RevisionsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if id, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Chain walks parent pointers from the given revision, newest first, up to
// limit entries (limit <= 0 means the whole chain). A repeated ID stops the
// walk; the chain is linear by construction and a cycle would otherwise spin
// forever.
func (mc *Context) Chain(from string, limit int) ([]*Revision, error) {
	if from == "" {
		return nil, nil
	}
	var chain []*Revision
	seen := map[string]bool{}
	for id := from; id != ""; {
		if seen[id] {
			break
		}
		seen[id] = true

		r, err := mc.ReadRevision(id)
		if err != nil {
			return nil, err
		}
		chain = append(chain, r)
		if limit > 0 && len(chain) >= limit {
			break
		}
		id = r.Parent
	}
	return chain, nil
}
