package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/util"
)

// Restore writes the given entries back into the working tree. When full is
// true the tree is forced to match the fileset exactly: tracked files not in
// the entries are removed (ignored paths are left alone). Returns the paths
// written.
func (sc *Context) Restore(entries []Entry, full bool) ([]string, error) {
	restored := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := sc.restoreFile(e); err != nil {
			return restored, err
		}
		restored = append(restored, e.Path)
	}

	if full {
		if err := sc.removeUntracked(entries); err != nil {
			return restored, err
		}
	}
	return restored, nil
}

func (sc *Context) restoreFile(e Entry) error {
	data, err := sc.Objects.Get(e.Object.Hash)
	if err != nil {
		return fmt.Errorf("restore %q: %w", e.Path, err)
	}
	abs := filepath.Join(sc.Layout.Root, filepath.FromSlash(e.Path))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("restore %q: %w", e.Path, err)
	}
	if err := util.WriteFileAtomic(abs, data, 0o644); err != nil {
		return fmt.Errorf("restore %q: %w", e.Path, err)
	}
	return nil
}

// removeUntracked deletes non-ignored files absent from the target entries,
// then prunes directories left empty, deepest first.
func (sc *Context) removeUntracked(entries []Entry) error {
	valid := make(map[string]bool, len(entries))
	for _, e := range entries {
		valid[e.Path] = true
	}

	current, err := sc.Scan()
	if err != nil {
		return err
	}

	var dirs []string
	seen := map[string]bool{}
	for _, rel := range current {
		if valid[rel] {
			continue
		}
		abs := filepath.Join(sc.Layout.Root, filepath.FromSlash(rel))
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove untracked %q: %w", rel, err)
		}
		for d := filepath.Dir(abs); d != sc.Layout.Root && !seen[d]; d = filepath.Dir(d) {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		if filepath.Base(d) == config.VaultDir {
			continue
		}
		if children, err := os.ReadDir(d); err == nil && len(children) == 0 {
			_ = os.Remove(d)
		}
	}
	return nil
}
