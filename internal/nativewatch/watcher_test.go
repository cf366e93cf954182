// SPDX-License-Identifier: MPL-2.0

package nativewatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"globwatch/pkg/glob"
	"globwatch/tests/fixtures"
)

func mustMatcher(t *testing.T, patterns, ignore []string) *glob.Matcher {
	t.Helper()
	m, err := glob.Compile(patterns, ignore, false)
	if err != nil {
		t.Fatalf("glob.Compile: %v", err)
	}
	return m
}

func TestNewEmitsMandatoryInitialBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := fixtures.NewTracker()
	m := mustMatcher(t, []string{"**/*"}, nil)
	w, err := New(Config{
		Cwd:        dir,
		Matcher:    m,
		TypePolicy: glob.ResolveTypePolicy(false, false, false, false),
		OnBatch:    tr.Record,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.Close()

	if tr.Count() != 1 {
		t.Fatalf("expected exactly 1 initial batch, got %d", tr.Count())
	}
	if _, ok := tr.Batches()[0].Added["a.txt"]; !ok {
		t.Errorf("expected a.txt in initial Added set, got %v", tr.Batches()[0].Added)
	}
}

func TestRunDetectsCreatedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tr := fixtures.NewTracker()
	m := mustMatcher(t, []string{"**/*"}, nil)
	w, err := New(Config{
		Cwd:        dir,
		Matcher:    m,
		TypePolicy: glob.ResolveTypePolicy(false, false, false, false),
		OnBatch:    tr.Record,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr.WaitForCount(t, 2, 5*time.Second)
	batches := tr.Batches()
	if _, ok := batches[1].Added["new.txt"]; !ok {
		t.Errorf("expected new.txt in Added set of second batch, got %+v", batches[1])
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRunDetectsDeletedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := fixtures.NewTracker()
	m := mustMatcher(t, []string{"**/*"}, nil)
	w, err := New(Config{
		Cwd:        dir,
		Matcher:    m,
		TypePolicy: glob.ResolveTypePolicy(false, false, false, false),
		OnBatch:    tr.Record,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	if err := os.Remove(target); err != nil {
		t.Fatal(err)
	}

	tr.WaitForCount(t, 2, 5*time.Second)
	batches := tr.Batches()
	if _, ok := batches[1].Deleted["gone.txt"]; !ok {
		t.Errorf("expected gone.txt in Deleted set of second batch, got %+v", batches[1])
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRunIgnoresPatternedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tr := fixtures.NewTracker()
	m := mustMatcher(t, []string{"**/*.txt"}, []string{"**/*.log"})
	w, err := New(Config{
		Cwd:        dir,
		Matcher:    m,
		TypePolicy: glob.ResolveTypePolicy(false, false, false, false),
		OnBatch:    tr.Record,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	if err := os.WriteFile(filepath.Join(dir, "ignored.log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "kept.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr.WaitForCount(t, 2, 5*time.Second)
	batches := tr.Batches()
	if _, ok := batches[1].Added["kept.txt"]; !ok {
		t.Errorf("expected kept.txt in Added set, got %+v", batches[1])
	}
	if _, ok := batches[1].Added["ignored.log"]; ok {
		t.Errorf("ignored.log must never reach the callback, got %+v", batches[1])
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRunWatchesNewlyCreatedDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tr := fixtures.NewTracker()
	m := mustMatcher(t, []string{"**/*"}, nil)
	w, err := New(Config{
		Cwd:        dir,
		Matcher:    m,
		TypePolicy: glob.ResolveTypePolicy(false, false, false, false),
		OnBatch:    tr.Record,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to register the new subdirectory before a
	// file is created inside it.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	found := false
	for time.Now().Before(deadline) && !found {
		for _, b := range tr.Batches() {
			if _, ok := b.Added["sub/inner.txt"]; ok {
				found = true
			}
		}
		if !found {
			time.Sleep(20 * time.Millisecond)
		}
	}
	if !found {
		t.Fatal("expected sub/inner.txt to be reported added after its directory appeared")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tr := fixtures.NewTracker()
	m := mustMatcher(t, []string{"**/*"}, nil)
	w, err := New(Config{
		Cwd:        dir,
		Matcher:    m,
		TypePolicy: glob.ResolveTypePolicy(false, false, false, false),
		OnBatch:    tr.Record,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("first Close() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}
