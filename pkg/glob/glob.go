// SPDX-License-Identifier: MPL-2.0

// Package glob compiles include/ignore pattern lists into a Matcher that
// both watch backends share, so inclusion decisions are identical regardless
// of which backend surfaced the path.
package glob

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"globwatch/pkg/entrymodel"
)

// TypePolicy captures the resolved onlyFiles/onlyDirectories decision after
// WatchOptions' override rule has been applied (see ResolveTypePolicy).
type TypePolicy struct {
	OnlyFiles       bool
	OnlyDirectories bool
}

// ResolveTypePolicy applies the WatchOptions override rule: onlyFiles
// defaults true, onlyDirectories defaults false; setting onlyDirectories
// without touching onlyFiles implicitly turns onlyFiles off; if a caller
// explicitly sets both true, onlyFiles wins. onlyFilesSet/onlyDirSet report
// whether the caller supplied an explicit value for the respective option.
func ResolveTypePolicy(onlyFiles, onlyFilesSet, onlyDirectories, onlyDirSet bool) TypePolicy {
	resolvedFiles := true
	resolvedDirs := false
	if onlyDirSet {
		resolvedDirs = onlyDirectories
	}
	if onlyFilesSet {
		resolvedFiles = onlyFiles
	} else if resolvedDirs {
		resolvedFiles = false
	}
	if resolvedFiles && resolvedDirs {
		resolvedDirs = false
	}
	return TypePolicy{OnlyFiles: resolvedFiles, OnlyDirectories: resolvedDirs}
}

// Allows reports whether an entry of the given type passes the type policy.
// Callers must resolve the entry's type (via stat) before calling this; an
// unknown type is never passed here.
func (p TypePolicy) Allows(t entrymodel.EntryType) bool {
	if p.OnlyFiles && t == entrymodel.TypeDir {
		return false
	}
	if p.OnlyDirectories && t == entrymodel.TypeFile {
		return false
	}
	return true
}

// Matcher is the compiled representation of an include pattern list, an
// ignore pattern list, and the dot-file policy — the Pattern Set of a watch
// session. It is immutable once built and safe for concurrent use.
type Matcher struct {
	patterns []string
	ignore   []string
	dot      bool
}

// Compile validates and binds patterns, ignore patterns, and the dot policy
// into a Matcher. Invalid glob syntax in either list is rejected eagerly so
// a session fails at construction time rather than silently never matching.
func Compile(patterns, ignore []string, dot bool) (*Matcher, error) {
	if err := validate(patterns, "pattern"); err != nil {
		return nil, err
	}
	if err := validate(ignore, "ignore pattern"); err != nil {
		return nil, err
	}
	m := &Matcher{
		patterns: append([]string(nil), patterns...),
		ignore:   append([]string(nil), ignore...),
		dot:      dot,
	}
	return m, nil
}

func validate(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("glob: invalid %s %q", label, pat)
		}
	}
	return nil
}

// IncludesPath reports whether rel — a root-relative, forward-slash path —
// is selected by the Pattern Set: at least one include pattern matches, no
// ignore pattern matches, and the dot policy allows it. Type policy is
// applied separately via TypePolicy.Allows once the caller knows the type.
func (m *Matcher) IncludesPath(rel string) bool {
	normalized := normalize(rel)
	if !m.dot && hasDotSegment(normalized) {
		return false
	}
	if matchesAny(m.ignore, normalized) {
		return false
	}
	return matchesAny(m.patterns, normalized)
}

// IsIgnored reports whether rel matches any ignore pattern, independent of
// the include list or dot policy. Used by the native watcher to decide
// whether to descend into a directory at all.
func (m *Matcher) IsIgnored(rel string) bool {
	normalized := normalize(rel)
	return matchesAny(m.ignore, normalized) || matchesAny(m.ignore, normalized+"/")
}

// Dot reports the matcher's dot-file policy.
func (m *Matcher) Dot() bool { return m.dot }

func normalize(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = strings.TrimPrefix(rel, "./")
	return path.Clean(rel)
}

func hasDotSegment(normalized string) bool {
	if normalized == "." {
		return false
	}
	for _, seg := range strings.Split(normalized, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}

func matchesAny(patterns []string, normalized string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, normalized); ok {
			return true
		}
	}
	return false
}
