package config

import "path/filepath"

const (
	// VaultDir is the dot-directory holding all versioning state. It lives
	// inside the working tree so relocating the tree relocates its history.
	VaultDir = ".agent-vault"

	RevisionsDir   = "revisions"
	FilesetsDir    = "filesets"
	ObjectsDir     = "objects"
	CheckpointsDir = "checkpoints"
	HeadFile       = "HEAD"

	// IgnoreFile holds user-declared ignore patterns, one per line.
	IgnoreFile = ".agentignore"
)

// Author is the fixed identity recorded on every revision.
const Author = "HA Vibecode Agent"

// Layout resolves vault paths under a configuration root.
type Layout struct {
	Root string // the working tree (the Home Assistant config directory)
}

func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

func (l Layout) VaultRoot() string       { return filepath.Join(l.Root, VaultDir) }
func (l Layout) RevisionsPath() string   { return filepath.Join(l.VaultRoot(), RevisionsDir) }
func (l Layout) FilesetsPath() string    { return filepath.Join(l.VaultRoot(), FilesetsDir) }
func (l Layout) ObjectsPath() string     { return filepath.Join(l.VaultRoot(), ObjectsDir) }
func (l Layout) CheckpointsPath() string { return filepath.Join(l.VaultRoot(), CheckpointsDir) }
func (l Layout) HeadPath() string        { return filepath.Join(l.VaultRoot(), HeadFile) }
func (l Layout) IndexPath() string       { return filepath.Join(l.VaultRoot(), "index.json") }
func (l Layout) IgnorePath() string      { return filepath.Join(l.Root, IgnoreFile) }
