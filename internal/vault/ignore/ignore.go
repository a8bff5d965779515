// Package ignore decides which working-tree paths are excluded from
// snapshots: volatile databases, logs, media, secrets and editor artifacts.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Reason categorizes why a path is excluded.
type Reason string

const (
	Volatile Reason = "volatile" // state the platform rewrites constantly
	Large    Reason = "large"    // media and databases, too big to snapshot
	Secret   Reason = "secret"   // credentials that must not enter history
	Artifact Reason = "artifact" // editor/OS litter
	Custom   Reason = "custom"   // user-declared pattern
)

// Rule is a path-glob pattern plus the reason it exists.
type Rule struct {
	Pattern string
	Reason  Reason
}

// Rules is a fixed default set plus any user-declared patterns.
type Rules struct {
	rules []Rule
}

// Load builds the rule set: defaults plus patterns from the ignore file at
// path (missing file is fine).
func Load(path string) *Rules {
	r := &Rules{rules: append([]Rule(nil), Defaults...)}

	f, err := os.Open(path)
	if err != nil {
		return r
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r.rules = append(r.rules, Rule{Pattern: line, Reason: Custom})
	}
	return r
}

// Match reports whether the slash-separated relative path is ignored.
func (r *Rules) Match(path string) bool {
	_, ok := r.MatchRule(path)
	return ok
}

// MatchRule returns the first rule matching path.
func (r *Rules) MatchRule(path string) (Rule, bool) {
	clean := filepath.ToSlash(filepath.Clean(path))
	for _, rule := range r.rules {
		if matchPattern(rule.Pattern, clean) {
			return rule, true
		}
	}
	return Rule{}, false
}

// MatchPattern reports whether a single pattern matches the slash-separated
// relative path, with the same semantics used for ignore rules.
func MatchPattern(pattern, path string) bool {
	return matchPattern(pattern, filepath.ToSlash(filepath.Clean(path)))
}

// matchPattern handles *, ? and ** like Git. A pattern without a slash
// matches any path segment, so "*.db" ignores databases at every depth and
// "node_modules" ignores the directory wherever it appears.
func matchPattern(pattern, path string) bool {
	pattern = filepath.ToSlash(pattern)
	path = strings.TrimPrefix(path, "/")

	if !strings.Contains(strings.TrimSuffix(pattern, "/"), "/") {
		pat := strings.TrimSuffix(pattern, "/")
		for _, seg := range strings.Split(path, "/") {
			if ok, _ := filepath.Match(pat, seg); ok {
				return true
			}
		}
		return false
	}

	pattern = strings.TrimPrefix(pattern, "/")
	return matchSegments(strings.Split(pattern, "/"), strings.Split(path, "/"))
}

// matchSegments matches pattern segments recursively.
func matchSegments(pats, parts []string) bool {
	for len(pats) > 0 {
		p := pats[0]
		pats = pats[1:]

		// trailing empty segment from a "dir/" pattern matches the subtree
		if p == "" && len(pats) == 0 {
			return true
		}

		if p == "**" {
			if len(pats) == 0 {
				return true
			}
			for i := 0; i <= len(parts); i++ {
				if matchSegments(pats, parts[i:]) {
					return true
				}
			}
			return false
		}

		if len(parts) == 0 {
			return false
		}

		ok, _ := filepath.Match(p, parts[0])
		if !ok {
			return false
		}

		parts = parts[1:]
	}

	return len(parts) == 0
}
