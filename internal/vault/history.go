package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault/meta"
)

// History returns up to limit revisions, newest first, walking parent
// pointers from head. Re-querying after concurrent changes gives a fresh
// result.
func (v *Vault) History(limit int) ([]*meta.Revision, error) {
	if !v.enabled {
		return nil, ErrDisabled
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	head, err := v.meta.Head()
	if err != nil {
		return nil, err
	}
	return v.meta.Chain(head, limit)
}

// Diff renders the textual difference between revision a and revision b, or
// between a and the working tree when b is empty.
func (v *Vault) Diff(a, b string) (string, error) {
	if !v.enabled {
		return "", ErrDisabled
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	left, err := v.revisionContents(a)
	if err != nil {
		return "", err
	}

	var right map[string]string
	if b == "" {
		right, err = v.workingTreeContents()
	} else {
		right, err = v.revisionContents(b)
	}
	if err != nil {
		return "", err
	}

	return renderDiff(left, right), nil
}

func (v *Vault) revisionContents(ref string) (map[string]string, error) {
	rev, err := v.findRevision(ref)
	if err != nil {
		return nil, err
	}
	fs, err := v.snaps.Load(rev.FilesetID)
	if err != nil {
		return nil, err
	}
	files := make(map[string]string, len(fs.Files))
	for _, e := range fs.Files {
		data, err := v.objects.Get(e.Object.Hash)
		if err != nil {
			return nil, fmt.Errorf("load %q from revision %q: %w", e.Path, rev.ID, err)
		}
		files[e.Path] = string(data)
	}
	return files, nil
}

func (v *Vault) workingTreeContents() (map[string]string, error) {
	paths, err := v.snaps.Scan()
	if err != nil {
		return nil, err
	}
	files := make(map[string]string, len(paths))
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(v.layout.Root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", rel, err)
		}
		files[rel] = string(data)
	}
	return files, nil
}

// renderDiff produces a patch-style text diff of two file maps.
func renderDiff(left, right map[string]string) string {
	union := make(map[string]bool, len(left)+len(right))
	for p := range left {
		union[p] = true
	}
	for p := range right {
		union[p] = true
	}
	paths := make([]string, 0, len(union))
	for p := range union {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	dmp := diffmatchpatch.New()
	var sb strings.Builder
	for _, p := range paths {
		before, beforeOK := left[p]
		after, afterOK := right[p]
		if beforeOK && afterOK && before == after {
			continue
		}

		switch {
		case !beforeOK:
			fmt.Fprintf(&sb, "--- /dev/null\n+++ b/%s\n", p)
		case !afterOK:
			fmt.Fprintf(&sb, "--- a/%s\n+++ /dev/null\n", p)
		default:
			fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", p, p)
		}

		patches := dmp.PatchMake(before, dmp.DiffMain(before, after, false))
		sb.WriteString(dmp.PatchToText(patches))
	}
	return sb.String()
}
