// SPDX-License-Identifier: MPL-2.0

package fixtures

import (
	"sync"
	"testing"
	"time"

	"globwatch/pkg/entrymodel"
)

// Tracker collects the FileChanges batches delivered to a watch callback
// and lets a test block until a given count has arrived, replacing the
// mutex-plus-buffered-channel pair most watch session tests would otherwise
// hand-roll individually.
type Tracker struct {
	mu      sync.Mutex
	batches []entrymodel.FileChanges
	notify  chan struct{}
}

// NewTracker returns a ready-to-use Tracker.
func NewTracker() *Tracker {
	return &Tracker{notify: make(chan struct{}, 64)}
}

// Record is a pkg/watch.Callback (and fits backend.Options.OnBatch just as
// well): pass it directly as the callback under test.
func (tr *Tracker) Record(fc entrymodel.FileChanges) {
	tr.mu.Lock()
	tr.batches = append(tr.batches, fc)
	tr.mu.Unlock()

	select {
	case tr.notify <- struct{}{}:
	default:
	}
}

// WaitForCount blocks until at least n batches have been recorded, failing
// the test if timeout elapses first.
func (tr *Tracker) WaitForCount(t testing.TB, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if tr.Count() >= n {
			return
		}
		select {
		case <-tr.notify:
		case <-deadline:
			t.Fatalf("fixtures: timed out waiting for %d batch(es), got %d", n, tr.Count())
		}
	}
}

// Count returns the number of batches recorded so far.
func (tr *Tracker) Count() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.batches)
}

// Batches returns a snapshot copy of every batch recorded so far.
func (tr *Tracker) Batches() []entrymodel.FileChanges {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]entrymodel.FileChanges, len(tr.batches))
	copy(out, tr.batches)
	return out
}
