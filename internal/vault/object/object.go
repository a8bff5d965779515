// Package object stores immutable, content-addressed file blobs. Objects are
// keyed by the xxh3-128 hash of their raw content and held zstd-compressed
// on disk; configuration files are small, so whole-file objects are used
// rather than chunking.
package object

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"
)

const objectExt = ".zst"

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Ref describes one stored object.
type Ref struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Store handles all object-level storage operations.
type Store struct {
	Dir string // objects root directory
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Hash returns the content address for data.
func Hash(data []byte) string {
	h := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(h[:])
}

// Put stores data, returning its ref. Writing an object that already exists
// is a no-op.
func (s *Store) Put(data []byte) (Ref, error) {
	ref := Ref{Hash: Hash(data), Size: int64(len(data))}

	dst := filepath.Join(s.Dir, ref.Hash+objectExt)
	if _, err := os.Stat(dst); err == nil {
		return ref, nil
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Ref{}, fmt.Errorf("create objects dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".tmp-*")
	if err != nil {
		return Ref{}, fmt.Errorf("create temp object: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(encoder.EncodeAll(data, nil)); err != nil {
		tmp.Close()
		return Ref{}, fmt.Errorf("write object %q: %w", ref.Hash, err)
	}
	if err := tmp.Close(); err != nil {
		return Ref{}, fmt.Errorf("close temp object: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return Ref{}, fmt.Errorf("rename object %q: %w", ref.Hash, err)
	}
	return ref, nil
}

// Get retrieves an object by its hash.
func (s *Store) Get(hash string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, hash+objectExt))
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", hash, err)
	}
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress object %q: %w", hash, err)
	}
	if Hash(raw) != hash {
		return nil, fmt.Errorf("object %q content does not match its hash", hash)
	}
	return raw, nil
}

// Has reports whether an object exists.
func (s *Store) Has(hash string) bool {
	_, err := os.Stat(filepath.Join(s.Dir, hash+objectExt))
	return err == nil
}
