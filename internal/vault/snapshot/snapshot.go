// Package snapshot builds and restores filesets: point-in-time captures of
// the non-ignored files in a working tree, with content held in the object
// store.
package snapshot

import (
	"encoding/hex"
	"path/filepath"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/ignore"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/object"
)

// Entry represents one tracked file and its content object. Paths are
// slash-separated and relative to the working tree root.
type Entry struct {
	Path   string     `json:"path"`
	Object object.Ref `json:"object"`
}

// Equal compares two entries by content.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Path == other.Path &&
		e.Object.Hash == other.Object.Hash &&
		e.Object.Size == other.Object.Size
}

// Fileset is a snapshot of tracked files and their content objects.
type Fileset struct {
	ID    string  `json:"id"`
	Files []Entry `json:"files"`
}

// Lookup returns the entry for path, if present.
func (fs *Fileset) Lookup(path string) (Entry, bool) {
	for _, e := range fs.Files {
		if e.Path == path {
			return e, true
		}
	}
	return Entry{}, false
}

// Context handles fileset operations for one working tree.
type Context struct {
	Layout  config.Layout
	Objects *object.Store
	Rules   *ignore.Rules
}

func NewContext(layout config.Layout, objects *object.Store, rules *ignore.Rules) *Context {
	return &Context{Layout: layout, Objects: objects, Rules: rules}
}

// HashEntries generates a stable identity for a set of entries.
func HashEntries(entries []Entry) string {
	paths := make([]string, 0, len(entries))
	index := make(map[string]Entry, len(entries))
	for _, e := range entries {
		clean := filepath.ToSlash(filepath.Clean(e.Path))
		paths = append(paths, clean)
		index[clean] = e
	}
	sort.Strings(paths)

	data := make([]byte, 0, len(paths)*64)
	for _, p := range paths {
		data = append(data, []byte(p+"\x00"+index[p].Object.Hash+"\n")...)
	}

	h := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(h[:])
}
