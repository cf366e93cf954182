// SPDX-License-Identifier: MPL-2.0

// Package watchman implements the External Watcher Adapter (C5): a client
// for a Watchman-style daemon reached over a local bidirectional socket,
// translating a pattern set into the daemon's expression grammar and its
// pushed subscription responses into canonical FileChanges batches.
//
// No teacher file covers a daemon client; the session shape (dial, a
// sequence of request/response round trips during setup, then a read loop
// dispatching asynchronous pushes) is grounded on the request/response-over-
// local-socket pattern in internal/sshserver and internal/tuiserver. The
// wire codec uses encoding/json directly rather than a third-party
// client library: no such library exists anywhere in the retrieval pack for
// this wire format, which is this module's one sanctioned stdlib-only
// component (see DESIGN.md).
package watchman

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"globwatch/internal/appcontext"
	"globwatch/internal/entryindex"
	"globwatch/pkg/entrymodel"
	"globwatch/pkg/glob"
)

// requiredCapabilities lists the daemon capabilities a session demands at
// connect time (spec.md §6: "verify the daemon advertises the relative_root
// capability").
var requiredCapabilities = []string{"relative_root"}

var subscriptionCounter atomic.Uint64

// Config configures an external watch session.
type Config struct {
	SocketPath     string
	ConnectTimeout time.Duration
	Cwd            string
	Matcher        *glob.Matcher
	TypePolicy     glob.TypePolicy
	Patterns       []string
	Fields         map[entrymodel.Field]bool
	Absolute       bool
	Logger         *log.Logger
	// OnBatch is invoked from the Run goroutine: once for the mandatory
	// initial batch, built from the first subscription response, and then
	// for every non-empty incremental batch. Open itself never invokes it.
	// Must not be nil.
	OnBatch func(entrymodel.FileChanges)
}

// Session is a live subscription against a Watchman-style daemon.
type Session struct {
	cfg    Config
	conn   net.Conn
	enc    *json.Encoder
	dec    *json.Decoder
	idx    *entryindex.Index
	logger *log.Logger

	watchRoot        string
	relativePath     string
	subscriptionName string

	seeded atomic.Bool
	closed atomic.Bool
}

// commandResponse is the shape of every synchronous reply during session
// setup: capabilityCheck, watch-project, and the subscribe acknowledgment.
type commandResponse struct {
	Error        string `json:"error,omitempty"`
	Watch        string `json:"watch,omitempty"`
	RelativePath string `json:"relative_path,omitempty"`
	Subscribe    string `json:"subscribe,omitempty"`
}

// pushResponse is one asynchronously delivered subscription notification.
type pushResponse struct {
	Subscription string      `json:"subscription,omitempty"`
	Files        []wireEntry `json:"files,omitempty"`
}

type wireEntry struct {
	Name    string `json:"name"`
	Exists  bool   `json:"exists"`
	Type    string `json:"type,omitempty"`
	Size    *int64 `json:"size,omitempty"`
	MTimeMs *int64 `json:"mtime_ms,omitempty"`
}

// Open dials the daemon and performs the full setup sequence described in
// spec.md §4.5/§6: capability check, watch-project, then subscribe. It
// returns once the subscribe acknowledgment has been read; Run must be
// called afterward to begin delivering pushed batches. Any failure here —
// connect, missing capability, or a daemon-reported error — is the signal
// the Backend Selector (C6) falls back to the native backend on.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.OnBatch == nil {
		return nil, errors.New("watchman: OnBatch is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = appcontext.NewLogger("watchman")
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("watchman: connect to daemon at %s: %w", cfg.SocketPath, err)
	}
	// The connect timeout bounds the whole setup sequence, not only the dial.
	_ = conn.SetDeadline(time.Now().Add(timeout))

	s := &Session{
		cfg:    cfg,
		conn:   conn,
		enc:    json.NewEncoder(conn),
		dec:    json.NewDecoder(conn),
		idx:    entryindex.New(),
		logger: logger,
	}

	if err := s.capabilityCheck(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.watchProject(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.subscribe(); err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return s, nil
}

func (s *Session) sendCommand(args ...interface{}) error {
	return s.enc.Encode(args)
}

func (s *Session) readCommandResponse() (commandResponse, error) {
	var resp commandResponse
	if err := s.dec.Decode(&resp); err != nil {
		return resp, fmt.Errorf("watchman: read response: %w", err)
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("watchman: daemon error: %s", resp.Error)
	}
	return resp, nil
}

func (s *Session) capabilityCheck() error {
	if err := s.sendCommand("capabilityCheck", map[string]interface{}{
		"required": requiredCapabilities,
	}); err != nil {
		return fmt.Errorf("watchman: send capabilityCheck: %w", err)
	}
	if _, err := s.readCommandResponse(); err != nil {
		return err
	}
	return nil
}

func (s *Session) watchProject() error {
	if err := s.sendCommand("watch-project", s.cfg.Cwd); err != nil {
		return fmt.Errorf("watchman: send watch-project: %w", err)
	}
	resp, err := s.readCommandResponse()
	if err != nil {
		return err
	}
	if resp.Watch == "" {
		return errors.New("watchman: watch-project response missing watch root")
	}
	s.watchRoot = resp.Watch
	s.relativePath = resp.RelativePath
	return nil
}

func (s *Session) subscribe() error {
	s.subscriptionName = fmt.Sprintf("globwatch-%d", subscriptionCounter.Add(1))

	config := map[string]interface{}{
		"expression":    buildExpression(s.cfg),
		"fields":        wireFields(s.cfg.Fields),
		"relative_root": s.relativePath,
	}
	if err := s.sendCommand("subscribe", s.watchRoot, s.subscriptionName, config); err != nil {
		return fmt.Errorf("watchman: send subscribe: %w", err)
	}
	resp, err := s.readCommandResponse()
	if err != nil {
		return err
	}
	if resp.Subscribe == "" {
		return errors.New("watchman: subscribe response missing acknowledgment")
	}
	return nil
}

// buildExpression composes ALLOF(typeFilter?, ANYOF(match(p, "wholename",
// {includedotfiles: dot}) for p in patterns)) per spec.md §4.5 step 3.
func buildExpression(cfg Config) []interface{} {
	var anyOf []interface{}
	anyOf = append(anyOf, "anyof")
	for _, p := range cfg.Patterns {
		anyOf = append(anyOf, []interface{}{
			"match", p, "wholename",
			map[string]interface{}{"includedotfiles": cfg.Matcher.Dot()},
		})
	}

	allOf := []interface{}{"allof", anyOf}
	if typeFilter := typeFilterTerm(cfg.TypePolicy); typeFilter != nil {
		allOf = append(allOf, typeFilter)
	}
	return allOf
}

func typeFilterTerm(policy glob.TypePolicy) []interface{} {
	switch {
	case policy.OnlyDirectories:
		return []interface{}{"type", "d"}
	case policy.OnlyFiles:
		return []interface{}{"type", "f"}
	default:
		return nil
	}
}

func wireFields(fields map[entrymodel.Field]bool) []string {
	// type is always requested so handleResponse can apply the type policy;
	// it is copied into EntryInfo only when FieldType was asked for.
	out := []string{"name", "exists", "type"}
	if fields[entrymodel.FieldSize] {
		out = append(out, "size")
	}
	if fields[entrymodel.FieldMTime] {
		out = append(out, "mtime_ms")
	}
	return out
}

// Run reads pushed subscription responses until ctx is cancelled or the
// connection fails. The first response seeds the Entry Index and delivers
// the mandatory initial (added-only) batch; every subsequent response flows
// through the Diff Engine exactly as the native path does.
func (s *Session) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	for {
		var resp pushResponse
		if err := s.dec.Decode(&resp); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watchman: daemon connection lost: %w", err)
		}
		if resp.Subscription != s.subscriptionName {
			continue
		}
		if s.closed.Load() {
			continue
		}
		s.handleResponse(resp)
	}
}

func (s *Session) handleResponse(resp pushResponse) {
	var observations []entryindex.Observation
	var seedEntries []entrymodel.EntryInfo

	first := s.seeded.CompareAndSwap(false, true)

	for _, f := range resp.Files {
		rel := f.Name

		info := entrymodel.EntryInfo{Name: baseName(rel), Path: rel, Exists: entrymodel.BoolPtr(f.Exists)}
		entryType := wireType(f.Type)
		if s.cfg.Fields[entrymodel.FieldType] {
			info.Type = entryType
		}
		if s.cfg.Fields[entrymodel.FieldSize] {
			info.Size = f.Size
		}
		if s.cfg.Fields[entrymodel.FieldMTime] {
			info.MTimeMillis = f.MTimeMs
		}

		if f.Exists {
			if !s.cfg.Matcher.IncludesPath(rel) || !s.cfg.TypePolicy.Allows(entryType) {
				continue
			}
		}

		reportPath := rel
		if s.cfg.Absolute {
			reportPath = s.cfg.Cwd + "/" + rel
		}
		info.Path = reportPath

		if first {
			if f.Exists {
				seedEntries = append(seedEntries, info)
			}
			continue
		}
		observations = append(observations, entryindex.Observation{Path: reportPath, Exists: f.Exists, Info: info})
	}

	if first {
		batch := s.idx.Seed(seedEntries)
		s.cfg.OnBatch(batch)
		return
	}

	if len(observations) == 0 {
		return
	}
	batch, emit := s.idx.Apply(observations)
	if emit {
		s.cfg.OnBatch(batch)
	}
}

func wireType(t string) entrymodel.EntryType {
	switch t {
	case "f":
		return entrymodel.TypeFile
	case "d":
		return entrymodel.TypeDir
	case "l":
		return entrymodel.TypeSymlink
	default:
		return entrymodel.TypeUnknown
	}
}

func baseName(rel string) string {
	for i := len(rel) - 1; i >= 0; i-- {
		if rel[i] == '/' {
			return rel[i+1:]
		}
	}
	return rel
}

// Close ends the subscription and closes the underlying connection.
// Idempotent.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.idx.Clear()
	return s.conn.Close()
}
