// SPDX-License-Identifier: MPL-2.0

package watchman

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"globwatch/pkg/entrymodel"
	"globwatch/pkg/glob"
	"globwatch/tests/fixtures"
)

// fakeDaemon is a minimal stand-in for a Watchman-style daemon: it answers
// the setup sequence (capabilityCheck, watch-project, subscribe) and then
// lets the test push arbitrary subscription responses.
type fakeDaemon struct {
	t    *testing.T
	ln   net.Listener
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
	subscriptionName string
}

func startFakeDaemon(t *testing.T) (*fakeDaemon, string) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "daemon.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	fd := &fakeDaemon{t: t, ln: ln}
	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		fd.conn = conn
		fd.enc = json.NewEncoder(conn)
		fd.dec = json.NewDecoder(conn)
		close(accepted)
		fd.serveSetup()
	}()

	t.Cleanup(func() {
		ln.Close()
		if fd.conn != nil {
			fd.conn.Close()
		}
	})

	_ = accepted
	return fd, sockPath
}

func (fd *fakeDaemon) serveSetup() {
	// capabilityCheck
	var req1 []json.RawMessage
	if err := fd.dec.Decode(&req1); err != nil {
		return
	}
	fd.enc.Encode(commandResponse{})

	// watch-project
	var req2 []json.RawMessage
	if err := fd.dec.Decode(&req2); err != nil {
		return
	}
	fd.enc.Encode(commandResponse{Watch: "/root", RelativePath: ""})

	// subscribe
	var req3 []json.RawMessage
	if err := fd.dec.Decode(&req3); err != nil {
		return
	}
	var name string
	json.Unmarshal(req3[2], &name)
	fd.subscriptionName = name
	fd.enc.Encode(commandResponse{Subscribe: name})
}

func (fd *fakeDaemon) push(files []wireEntry) {
	fd.enc.Encode(pushResponse{Subscription: fd.subscriptionName, Files: files})
}

func mustMatcher(t *testing.T, patterns, ignore []string) *glob.Matcher {
	t.Helper()
	m, err := glob.Compile(patterns, ignore, false)
	if err != nil {
		t.Fatalf("glob.Compile: %v", err)
	}
	return m
}

func TestOpenPerformsSetupSequence(t *testing.T) {
	t.Parallel()

	fd, sockPath := startFakeDaemon(t)
	tr := fixtures.NewTracker()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sess, err := Open(ctx, Config{
		SocketPath: sockPath,
		Cwd:        "/root",
		Matcher:    mustMatcher(t, []string{"**/*"}, nil),
		TypePolicy: glob.ResolveTypePolicy(false, false, false, false),
		Patterns:   []string{"**/*"},
		OnBatch:    tr.Record,
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer sess.Close()

	if sess.watchRoot != "/root" {
		t.Errorf("watchRoot = %q, want /root", sess.watchRoot)
	}
	if fd.subscriptionName == "" {
		t.Error("expected daemon to observe a non-empty subscription name")
	}
}

func TestFirstPushSeedsIndex(t *testing.T) {
	t.Parallel()

	fd, sockPath := startFakeDaemon(t)
	tr := fixtures.NewTracker()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := Open(ctx, Config{
		SocketPath: sockPath,
		Cwd:        "/root",
		Matcher:    mustMatcher(t, []string{"**/*"}, nil),
		TypePolicy: glob.ResolveTypePolicy(false, false, false, false),
		Patterns:   []string{"**/*"},
		OnBatch:    tr.Record,
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer sess.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	fd.push([]wireEntry{{Name: "a.txt", Exists: true}, {Name: "b.txt", Exists: true}})

	tr.WaitForCount(t, 1, 2*time.Second)
	batches := tr.Batches()
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if _, ok := batches[0].Added["a.txt"]; !ok {
		t.Errorf("expected a.txt in initial Added set, got %+v", batches[0])
	}
	if _, ok := batches[0].Added["b.txt"]; !ok {
		t.Errorf("expected b.txt in initial Added set, got %+v", batches[0])
	}
}

func TestSubsequentPushGoesThroughDiffEngine(t *testing.T) {
	t.Parallel()

	fd, sockPath := startFakeDaemon(t)
	tr := fixtures.NewTracker()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := Open(ctx, Config{
		SocketPath: sockPath,
		Cwd:        "/root",
		Matcher:    mustMatcher(t, []string{"**/*"}, nil),
		TypePolicy: glob.ResolveTypePolicy(false, false, false, false),
		Patterns:   []string{"**/*"},
		OnBatch:    tr.Record,
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer sess.Close()

	go func() { sess.Run(ctx) }()

	fd.push([]wireEntry{{Name: "a.txt", Exists: true}})
	tr.WaitForCount(t, 1, 2*time.Second)

	fd.push([]wireEntry{{Name: "a.txt", Exists: false}})
	tr.WaitForCount(t, 2, 2*time.Second)

	batches := tr.Batches()
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if _, ok := batches[1].Deleted["a.txt"]; !ok {
		t.Errorf("expected a.txt in second batch's Deleted set, got %+v", batches[1])
	}
}

func TestOpenFailsWhenDaemonUnreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := Open(ctx, Config{
		SocketPath: filepath.Join(t.TempDir(), "no-such.sock"),
		Cwd:        "/root",
		Matcher:    mustMatcher(t, []string{"**/*"}, nil),
		TypePolicy: glob.ResolveTypePolicy(false, false, false, false),
		Patterns:   []string{"**/*"},
		OnBatch:    func(entrymodel.FileChanges) {},
	})
	if err == nil {
		t.Fatal("expected an error connecting to a nonexistent daemon socket")
	}
}
