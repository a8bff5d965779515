package snapshot

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
)

// Scan returns the relative paths of all non-ignored files in the working
// tree, sorted. The vault directory itself is never tracked.
func (sc *Context) Scan() ([]string, error) {
	var paths []string
	root := sc.Layout.Root

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if d.Name() == config.VaultDir || sc.Rules.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if sc.Rules.Match(rel) {
			return nil
		}

		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}
