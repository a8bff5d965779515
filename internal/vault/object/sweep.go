package object

import (
	"os"
	"path/filepath"
	"strings"
)

// Sweep removes every object whose hash is not in live, plus any orphaned
// temp files. Returns the number of objects removed. Individual removal
// failures are skipped; the next sweep gets another chance.
func (s *Store) Sweep(live map[string]struct{}) (int, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".tmp-") {
			_ = os.Remove(filepath.Join(s.Dir, name))
			continue
		}
		hash, ok := strings.CutSuffix(name, objectExt)
		if !ok {
			continue
		}
		if _, alive := live[hash]; alive {
			continue
		}
		if os.Remove(filepath.Join(s.Dir, name)) == nil {
			removed++
		}
	}
	return removed, nil
}
