package meta

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/util"
)

// Checkpoint marks the revision a logical multi-step operation started from.
// Checkpoints are advisory: pruning may drop the revision a checkpoint
// points at, and the record then dangles until cleaned up.
type Checkpoint struct {
	Tag         string    `json:"tag"`
	Revision    string    `json:"revision"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewCheckpointTag builds the conventional checkpoint tag for a timestamp.
func NewCheckpointTag(at time.Time) string {
	return "checkpoint_" + at.Format("20060102_150405")
}

func (mc *Context) checkpointPath(tag string) string {
	return filepath.Join(mc.Layout.CheckpointsPath(), tag+".json")
}

// WriteCheckpoint persists a checkpoint record.
func (mc *Context) WriteCheckpoint(cp *Checkpoint) error {
	if cp.Tag == "" {
		return fmt.Errorf("checkpoint has no tag")
	}
	if err := util.WriteJSON(mc.checkpointPath(cp.Tag), cp); err != nil {
		return fmt.Errorf("write checkpoint %q: %w", cp.Tag, err)
	}
	return nil
}

// ReadCheckpoint reads a checkpoint by tag.
func (mc *Context) ReadCheckpoint(tag string) (*Checkpoint, error) {
	var cp Checkpoint
	if err := util.ReadJSON(mc.checkpointPath(tag), &cp); err != nil {
		return nil, fmt.Errorf("read checkpoint %q: %w", tag, err)
	}
	return &cp, nil
}

// ListCheckpoints returns all checkpoint records, newest first.
func (mc *Context) ListCheckpoints() ([]*Checkpoint, error) {
	entries, err := os.ReadDir(mc.Layout.CheckpointsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	var cps []*Checkpoint
	for _, e := range entries {
		tag, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok {
			continue
		}
		cp, err := mc.ReadCheckpoint(tag)
		if err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i].CreatedAt.After(cps[j].CreatedAt) })
	return cps, nil
}

// RemoveCheckpoint deletes a checkpoint record.
func (mc *Context) RemoveCheckpoint(tag string) error {
	err := os.Remove(mc.checkpointPath(tag))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint %q: %w", tag, err)
	}
	return nil
}
