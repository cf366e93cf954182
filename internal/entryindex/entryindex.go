// SPDX-License-Identifier: MPL-2.0

// Package entryindex implements the Entry Index (C3) and Change Diff Engine
// (C7): the session-local path -> EntryInfo map and the single place that
// mutates it, translating raw per-path observations from either backend into
// the canonical added/changed/deleted classification.
//
// Grounded on the teacher's cache.Service dirty-marker collapsing
// (markDirty's "prefer removal markers" rule): both designs resolve several
// observations of the same path within one batch down to a single net
// effect before touching the source of truth.
package entryindex

import (
	"sync"

	"globwatch/pkg/entrymodel"
)

// Observation is one raw (path, existence, info) triple reported by a
// backend for a single event or initial-scan entry.
type Observation struct {
	Path   string
	Exists bool
	Info   entrymodel.EntryInfo // meaningful only when Exists is true
}

// Index is the process-local path -> EntryInfo map owned exclusively by one
// watch session. It is the sole mutator of that map; callers never write to
// it directly.
type Index struct {
	mu      sync.Mutex
	entries map[string]entrymodel.EntryInfo
}

// New returns an empty Index.
func New() *Index {
	return &Index{entries: make(map[string]entrymodel.EntryInfo)}
}

// Seed populates the index from a one-shot scan's result set and returns the
// mandatory initial FileChanges batch: every entry in Added, Changed and
// Deleted empty. Seed always returns a non-suppressed batch, even if entries
// is empty, per the "exactly one initial batch, may be empty" invariant.
func (idx *Index) Seed(entries []entrymodel.EntryInfo) entrymodel.FileChanges {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	batch := entrymodel.NewFileChanges()
	for _, e := range entries {
		idx.entries[e.Path] = e
		batch.Added[e.Path] = e
	}
	return batch
}

// Apply classifies a batch of observations against the current index,
// mutating the index atomically, and reports whether the resulting
// FileChanges is non-empty and should be delivered to the user callback.
// Multiple observations for the same path within one call collapse to the
// last one before classification, matching the "last write wins" rule a
// single dirty-marker merge would apply.
func (idx *Index) Apply(observations []Observation) (entrymodel.FileChanges, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	collapsed := make(map[string]Observation, len(observations))
	order := make([]string, 0, len(observations))
	for _, obs := range observations {
		if _, seen := collapsed[obs.Path]; !seen {
			order = append(order, obs.Path)
		}
		collapsed[obs.Path] = obs
	}

	batch := entrymodel.NewFileChanges()
	for _, p := range order {
		obs := collapsed[p]
		prev, hadPrev := idx.entries[p]
		switch {
		case !hadPrev && obs.Exists:
			idx.entries[p] = obs.Info
			batch.Added[p] = obs.Info
		case !hadPrev && !obs.Exists:
			// No prior record and it still doesn't exist: nothing happened.
		case hadPrev && !obs.Exists:
			delete(idx.entries, p)
			batch.Deleted[p] = prev
		case hadPrev && obs.Exists:
			idx.entries[p] = obs.Info
			batch.Changed[p] = obs.Info
		}
	}

	return batch, !batch.Empty()
}

// RemoveTree deletes every entry whose path equals prefix or is nested under
// it (prefix + "/"), returning the removed entries. Used when a watched
// directory itself disappears, so all of its previously-indexed descendants
// are reported deleted in one batch.
func (idx *Index) RemoveTree(prefix string) map[string]entrymodel.EntryInfo {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := make(map[string]entrymodel.EntryInfo)
	nestedPrefix := prefix + "/"
	for p, info := range idx.entries {
		if p == prefix || (prefix != "" && len(p) > len(nestedPrefix) && p[:len(nestedPrefix)] == nestedPrefix) {
			removed[p] = info
			delete(idx.entries, p)
		}
	}
	return removed
}

// Snapshot returns a shallow copy of every currently indexed path -> info
// pair.
func (idx *Index) Snapshot() map[string]entrymodel.EntryInfo {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	out := make(map[string]entrymodel.EntryInfo, len(idx.entries))
	for p, info := range idx.entries {
		out[p] = info
	}
	return out
}

// Clear empties the index. Called during session teardown.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[string]entrymodel.EntryInfo)
}
