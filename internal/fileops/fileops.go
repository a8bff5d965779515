// Package fileops mediates every read and write the agent performs on the
// configuration tree. All paths are resolved relative to a fixed root and
// mutations are captured by the versioning store automatically.
package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/util"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault"
)

// ErrOutsideRoot is returned for any path that escapes the config root.
var ErrOutsideRoot = errors.New("path escapes the configuration root")

// Snapshotter captures the tree after a mutation. *vault.Vault satisfies it.
type Snapshotter interface {
	Snapshot(label string, opts vault.SnapshotOptions) (string, error)
}

// Entry describes one item in a directory listing.
type Entry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// Manager performs file operations under a single root.
type Manager struct {
	root  string
	store Snapshotter
	log   *zap.Logger
}

// NewManager returns a manager rooted at root. Mutations are snapshotted
// through store.
func NewManager(root string, store Snapshotter, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{root: filepath.Clean(root), store: store, log: log}
}

// Root returns the configuration root.
func (m *Manager) Root() string { return m.root }

// resolve turns a client-supplied relative path into an absolute one,
// rejecting anything that would land outside the root or inside the
// versioning store's own directory.
func (m *Manager) resolve(rel string) (string, error) {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
	abs := filepath.Join(m.root, filepath.FromSlash(rel))
	if abs != m.root && !strings.HasPrefix(abs, m.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q: %w", rel, ErrOutsideRoot)
	}
	inner, err := filepath.Rel(m.root, abs)
	if err != nil {
		return "", fmt.Errorf("path %q: %w", rel, ErrOutsideRoot)
	}
	if inner == config.VaultDir || strings.HasPrefix(filepath.ToSlash(inner), config.VaultDir+"/") {
		return "", fmt.Errorf("path %q: %w", rel, ErrOutsideRoot)
	}
	return abs, nil
}

// List returns the entries of a directory, directories first, sorted by name.
func (m *Manager) List(rel string) ([]Entry, error) {
	abs, err := m.resolve(rel)
	if err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", rel, err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		if d.Name() == config.VaultDir {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		childRel := filepath.ToSlash(filepath.Join(strings.TrimPrefix(filepath.ToSlash(rel), "/"), d.Name()))
		entries = append(entries, Entry{
			Name:  d.Name(),
			Path:  childRel,
			IsDir: d.IsDir(),
			Size:  info.Size(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Read returns the content of a file.
func (m *Manager) Read(rel string) ([]byte, error) {
	abs, err := m.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", rel, err)
	}
	return data, nil
}

// Write replaces a file's content, creating parent directories as needed, and
// snapshots the tree.
func (m *Manager) Write(rel string, content []byte) error {
	abs, err := m.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("write %q: %w", rel, err)
	}
	if err := util.WriteFileAtomic(abs, content, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", rel, err)
	}
	m.log.Info("file written", zap.String("path", rel), zap.Int("bytes", len(content)))
	m.autoSnapshot("Update " + cleanLabel(rel))
	return nil
}

// Append adds content to the end of a file, creating it if absent, and
// snapshots the tree.
func (m *Manager) Append(rel string, content []byte) error {
	abs, err := m.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("append %q: %w", rel, err)
	}
	f, err := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append %q: %w", rel, err)
	}
	_, werr := f.Write(content)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("append %q: %w", rel, werr)
	}
	if cerr != nil {
		return fmt.Errorf("append %q: %w", rel, cerr)
	}
	m.autoSnapshot("Append to " + cleanLabel(rel))
	return nil
}

// Delete removes a file and snapshots the tree. Deleting a missing file is an
// error; deleting a directory is refused.
func (m *Manager) Delete(rel string) error {
	abs, err := m.resolve(rel)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("delete %q: %w", rel, err)
	}
	if info.IsDir() {
		return fmt.Errorf("delete %q: is a directory", rel)
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("delete %q: %w", rel, err)
	}
	m.log.Info("file deleted", zap.String("path", rel))
	m.autoSnapshot("Delete " + cleanLabel(rel))
	return nil
}

// autoSnapshot records the mutation. Failures are logged, not returned: the
// file operation itself succeeded.
func (m *Manager) autoSnapshot(label string) {
	if m.store == nil {
		return
	}
	if _, err := m.store.Snapshot(label, vault.SnapshotOptions{SkipIfSuspended: true}); err != nil {
		m.log.Error("auto-snapshot failed", zap.String("label", label), zap.Error(err))
	}
}

func cleanLabel(rel string) string {
	return strings.TrimPrefix(filepath.ToSlash(rel), "/")
}
