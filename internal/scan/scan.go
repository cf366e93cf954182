// SPDX-License-Identifier: MPL-2.0

// Package scan implements the Initial Scanner (C2): a one-shot recursive
// directory walk producing the matched-entry set a session seeds its Entry
// Index from.
//
// Grounded on the teacher's internal/watch.addDirectories walk (skip
// inaccessible paths rather than aborting, log and continue) and on the
// obsidian-cli cache service's two-phase crawl (collect directory entries
// during the walk, decide inclusion and stat lazily).
package scan

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"globwatch/pkg/entrymodel"
	"globwatch/pkg/glob"
)

// Options configures a scan.
type Options struct {
	// Cwd is the absolute root directory to walk.
	Cwd string
	// Matcher selects which relative paths are included.
	Matcher *glob.Matcher
	// TypePolicy resolves the onlyFiles/onlyDirectories decision.
	TypePolicy glob.TypePolicy
	// Fields lists which optional EntryInfo attributes to populate.
	Fields map[entrymodel.Field]bool
	// Absolute, when true, reports entries by absolute path instead of
	// root-relative path.
	Absolute bool
	// Logger receives per-entry failure diagnostics. A nil Logger discards
	// them.
	Logger *log.Logger
}

// Walk performs the recursive scan described in spec.md §4.2. It never
// follows symlinks and never aborts on a single per-entry stat failure —
// individual failures are logged and the entry is skipped. Only a failure
// to read the root (opts.Cwd) itself is returned as an error. The returned
// slice order is unspecified.
func Walk(opts Options) ([]entrymodel.EntryInfo, error) {
	var out []entrymodel.EntryInfo

	err := filepath.WalkDir(opts.Cwd, func(absPath string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if absPath == opts.Cwd {
				// The root itself cannot be read: a scanner-level error,
				// returned to the caller rather than skipped.
				return walkErr
			}
			logWarn(opts.Logger, "scan: skipping inaccessible path", absPath, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(opts.Cwd, absPath)
		if relErr != nil {
			logWarn(opts.Logger, "scan: cannot make path relative", absPath, relErr)
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logWarn(opts.Logger, "scan: stat failed", absPath, err)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		entryType := classify(info)

		// Symlinks are never followed: they are reported (if matched) but
		// never descended into.
		if entryType == entrymodel.TypeSymlink {
			if included := opts.Matcher.IncludesPath(rel) && opts.TypePolicy.Allows(entryType); included {
				out = append(out, buildEntry(opts, rel, absPath, entryType, info))
			}
			return nil
		}

		if entryType == entrymodel.TypeDir {
			if opts.Matcher.IsIgnored(rel) {
				return filepath.SkipDir
			}
			if opts.Matcher.IncludesPath(rel) && opts.TypePolicy.Allows(entryType) {
				out = append(out, buildEntry(opts, rel, absPath, entryType, info))
			}
			return nil
		}

		if !opts.Matcher.IncludesPath(rel) || !opts.TypePolicy.Allows(entryType) {
			return nil
		}
		out = append(out, buildEntry(opts, rel, absPath, entryType, info))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func classify(info os.FileInfo) entrymodel.EntryType {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return entrymodel.TypeSymlink
	case info.IsDir():
		return entrymodel.TypeDir
	default:
		return entrymodel.TypeFile
	}
}

func buildEntry(opts Options, rel, absPath string, t entrymodel.EntryType, info os.FileInfo) entrymodel.EntryInfo {
	reportPath := rel
	if opts.Absolute {
		reportPath = filepath.ToSlash(absPath)
	}

	entry := entrymodel.EntryInfo{
		Name:   filepath.Base(rel),
		Path:   reportPath,
		Exists: entrymodel.BoolPtr(true),
	}
	if opts.Fields[entrymodel.FieldType] {
		entry.Type = t
	}
	if opts.Fields[entrymodel.FieldSize] {
		entry.Size = entrymodel.Int64Ptr(info.Size())
	}
	if opts.Fields[entrymodel.FieldMTime] {
		entry.MTimeMillis = entrymodel.Int64Ptr(info.ModTime().UnixMilli())
	}
	return entry
}

func logWarn(logger *log.Logger, msg, path string, err error) {
	if logger == nil {
		return
	}
	logger.Warn(msg, "path", path, "err", err)
}
