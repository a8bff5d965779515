package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/util"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/object"
)

// BuildFromWorkingTree captures the current working tree as a fileset,
// storing the content of every non-ignored file.
func (sc *Context) BuildFromWorkingTree() (Fileset, error) {
	paths, err := sc.Scan()
	if err != nil {
		return Fileset{}, fmt.Errorf("scan working tree: %w", err)
	}

	var mu sync.Mutex
	entries := make([]Entry, 0, len(paths))

	err = util.Parallel(paths, util.WorkerCount(), func(rel string) error {
		data, err := os.ReadFile(filepath.Join(sc.Layout.Root, filepath.FromSlash(rel)))
		if err != nil {
			if os.IsNotExist(err) {
				// deleted between scan and read; the next snapshot sees it
				return nil
			}
			return fmt.Errorf("read %q: %w", rel, err)
		}
		ref, err := sc.Objects.Put(data)
		if err != nil {
			return fmt.Errorf("store %q: %w", rel, err)
		}
		mu.Lock()
		entries = append(entries, Entry{Path: rel, Object: ref})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return Fileset{}, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return Fileset{ID: HashEntries(entries), Files: entries}, nil
}

// TreeMatches reports whether the working tree's current non-ignored content
// is byte-identical to the fileset. Nothing is written to the object store.
func (sc *Context) TreeMatches(fs Fileset) (bool, error) {
	paths, err := sc.Scan()
	if err != nil {
		return false, fmt.Errorf("scan working tree: %w", err)
	}

	entries := make([]Entry, 0, len(paths))
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(sc.Layout.Root, filepath.FromSlash(rel)))
		if err != nil {
			return false, fmt.Errorf("read %q: %w", rel, err)
		}
		entries = append(entries, Entry{
			Path:   rel,
			Object: object.Ref{Hash: object.Hash(data), Size: int64(len(data))},
		})
	}
	return HashEntries(entries) == fs.ID, nil
}
