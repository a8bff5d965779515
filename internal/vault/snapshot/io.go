package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/util"
)

// Save persists a fileset JSON to disk. Saving an existing fileset again is
// a no-op; filesets are content-addressed and immutable.
func (sc *Context) Save(fs Fileset) error {
	if fs.ID == "" {
		return fmt.Errorf("invalid fileset: missing ID")
	}
	dir := sc.Layout.FilesetsPath()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create filesets dir: %w", err)
	}
	path := filepath.Join(dir, fs.ID+".json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return util.WriteJSON(path, fs)
}

// Load retrieves a fileset by its ID from disk.
func (sc *Context) Load(id string) (Fileset, error) {
	var fs Fileset
	path := filepath.Join(sc.Layout.FilesetsPath(), id+".json")
	if err := util.ReadJSON(path, &fs); err != nil {
		return Fileset{}, fmt.Errorf("read fileset %q: %w", id, err)
	}
	return fs, nil
}

// ListIDs returns the IDs of all persisted filesets.
func (sc *Context) ListIDs() ([]string, error) {
	entries, err := os.ReadDir(sc.Layout.FilesetsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list filesets: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if id, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Remove deletes a fileset record.
func (sc *Context) Remove(id string) error {
	err := os.Remove(filepath.Join(sc.Layout.FilesetsPath(), id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SaveIndex overwrites the tracked-path index: the entries captured by the
// most recent snapshot. Change detection and retroactive untracking work
// against this set.
func (sc *Context) SaveIndex(entries []Entry) error {
	return util.WriteJSON(sc.Layout.IndexPath(), entries)
}

// LoadIndex loads the tracked-path index. A missing index is an empty one.
func (sc *Context) LoadIndex() ([]Entry, error) {
	var entries []Entry
	if err := util.ReadJSON(sc.Layout.IndexPath(), &entries); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	return entries, nil
}
