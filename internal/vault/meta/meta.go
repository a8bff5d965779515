// Package meta persists revision metadata: the revision chain, the head
// pointer and checkpoint markers. Every record is one JSON file under the
// vault directory.
package meta

import (
	"fmt"
	"os"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
)

// Context gives access to the metadata of one vault.
type Context struct {
	Layout config.Layout
}

// NewContext ensures the metadata layout exists at the given root.
func NewContext(layout config.Layout) (*Context, error) {
	dirs := []string{
		layout.VaultRoot(),
		layout.RevisionsPath(),
		layout.FilesetsPath(),
		layout.ObjectsPath(),
		layout.CheckpointsPath(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create vault dir %q: %w", d, err)
		}
	}
	return &Context{Layout: layout}, nil
}
