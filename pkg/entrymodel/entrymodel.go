// SPDX-License-Identifier: MPL-2.0

// Package entrymodel defines the data model shared by every watch backend:
// EntryInfo, FileChanges, and the small enums (EntryType, Field, Mode) that
// describe what a watch session observed and what it was asked to observe.
//
// This package is a leaf dependency: it imports only the standard library.
// Both the public pkg/watch API and every internal backend import it; it
// never imports them back.
package entrymodel

// EntryType classifies a filesystem entry. The zero value means "unknown" —
// callers that have not stat'd the entry yet must not assume it is a file.
type EntryType string

const (
	// TypeUnknown means the entry's type has not been determined.
	TypeUnknown EntryType = ""
	// TypeFile is a regular file.
	TypeFile EntryType = "f"
	// TypeDir is a directory.
	TypeDir EntryType = "d"
	// TypeSymlink is a symbolic link.
	TypeSymlink EntryType = "l"
)

// Field names an optional EntryInfo attribute a caller can request be
// populated. Requesting a field costs an extra stat per entry on the
// backends that do not get it for free.
type Field string

const (
	FieldType  Field = "type"
	FieldSize  Field = "size"
	FieldMTime Field = "mtime"
)

// Mode selects which backend a watch session uses.
type Mode string

const (
	ModeExternal Mode = "external"
	ModeNative   Mode = "native"
	ModeOneshot  Mode = "oneshot"
)

// EntryInfo describes one filesystem entry as last observed by a watch
// session. Optional fields are pointers so "not requested" is distinguishable
// from the zero value; whether a pointer is populated is purely a function of
// the session's requested Field set, never of the entry's type.
type EntryInfo struct {
	// Name is the entry's basename.
	Name string
	// Path is the entry's root-relative path (or absolute path, when the
	// session was configured with Absolute=true), using forward slashes.
	Path string
	// Exists records the entry's last observed existence. Nil only before
	// the first observation; every entry delivered through a FileChanges
	// batch has this populated.
	Exists *bool
	// Type is one of TypeFile, TypeDir, TypeSymlink, or TypeUnknown when the
	// Type field was not requested.
	Type EntryType
	// Size is the entry's size in bytes from the most recent stat, or nil
	// when the Size field was not requested.
	Size *int64
	// MTimeMillis is the entry's modification time in milliseconds since
	// epoch from the most recent stat, or nil when the MTime field was not
	// requested.
	MTimeMillis *int64
}

// FileChanges is the canonical batch delivered to a watch callback: three
// pairwise-disjoint keyed sets describing what was added, changed, and
// deleted since the previous batch.
type FileChanges struct {
	Added   map[string]EntryInfo
	Changed map[string]EntryInfo
	Deleted map[string]EntryInfo
}

// NewFileChanges returns an empty, fully initialized FileChanges value.
func NewFileChanges() FileChanges {
	return FileChanges{
		Added:   make(map[string]EntryInfo),
		Changed: make(map[string]EntryInfo),
		Deleted: make(map[string]EntryInfo),
	}
}

// Empty reports whether all three sets are empty.
func (fc FileChanges) Empty() bool {
	return len(fc.Added) == 0 && len(fc.Changed) == 0 && len(fc.Deleted) == 0
}

// BoolPtr returns a pointer to v. Convenience for constructing EntryInfo
// literals in tests and backend adapters.
func BoolPtr(v bool) *bool { return &v }

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }
