// SPDX-License-Identifier: MPL-2.0

// Package backend implements the Backend Selector / Fallback (C6): it
// resolves a requested Mode into a concrete running backend, and on
// connection or capability failure of the external daemon, falls back to the
// native backend exactly once per session.
//
// Grounded on the teacher's dependency-injection seam for swappable infra —
// the same shape as a factory-backed Options struct that lets a caller swap
// in a different concrete implementation behind one interface, generalized
// here to an outcome decided at runtime (daemon reachable or not) rather
// than at construction time.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"globwatch/internal/appcontext"
	"globwatch/internal/nativewatch"
	"globwatch/internal/scan"
	"globwatch/internal/watchman"
	"globwatch/pkg/entrymodel"
	"globwatch/pkg/glob"
)

// Runner is the uniform shape every backend exposes once started: a
// blocking event loop and an idempotent teardown. Both *nativewatch.Watcher
// and *watchman.Session satisfy it.
type Runner interface {
	Run(ctx context.Context) error
	Close() error
}

// Options configures a watch session independent of which backend ends up
// serving it.
type Options struct {
	Mode entrymodel.Mode

	Cwd      string
	Patterns []string
	Ignore   []string
	Dot      bool

	OnlyFiles       bool
	OnlyFilesSet    bool
	OnlyDirectories bool
	OnlyDirSet      bool

	Fields   map[entrymodel.Field]bool
	Absolute bool

	SocketPath     string
	ConnectTimeout time.Duration

	Logger  *log.Logger
	OnBatch func(entrymodel.FileChanges)
}

// Start resolves opts.Mode into a running backend. For Mode == ModeExternal
// (the default), a daemon session is attempted first; any failure to open
// it — connect failure, missing capability, timeout — is logged and the
// call is retried as native, preserving the same callback and options. The
// fallback happens exactly once; a running session never reattaches to the
// daemon later.
func Start(ctx context.Context, opts Options) (Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = appcontext.NewLogger("backend")
	}

	matcher, err := glob.Compile(opts.Patterns, opts.Ignore, opts.Dot)
	if err != nil {
		return nil, fmt.Errorf("backend: compile pattern set: %w", err)
	}
	typePolicy := glob.ResolveTypePolicy(opts.OnlyFiles, opts.OnlyFilesSet, opts.OnlyDirectories, opts.OnlyDirSet)

	switch opts.Mode {
	case entrymodel.ModeOneshot:
		return startOneshot(opts, matcher, typePolicy, logger)

	case entrymodel.ModeNative:
		return nativewatch.New(nativewatch.Config{
			Cwd:        opts.Cwd,
			Matcher:    matcher,
			TypePolicy: typePolicy,
			Fields:     opts.Fields,
			Absolute:   opts.Absolute,
			Logger:     logger,
			OnBatch:    opts.OnBatch,
		})

	case entrymodel.ModeExternal, "":
		return startExternalWithFallback(ctx, opts, matcher, typePolicy, logger)

	default:
		return nil, fmt.Errorf("backend: unknown mode %q", opts.Mode)
	}
}

func startExternalWithFallback(ctx context.Context, opts Options, matcher *glob.Matcher, typePolicy glob.TypePolicy, logger *log.Logger) (Runner, error) {
	sess, err := watchman.Open(ctx, watchman.Config{
		SocketPath:     opts.SocketPath,
		ConnectTimeout: opts.ConnectTimeout,
		Cwd:            opts.Cwd,
		Matcher:        matcher,
		TypePolicy:     typePolicy,
		Patterns:       opts.Patterns,
		Fields:         opts.Fields,
		Absolute:       opts.Absolute,
		Logger:         logger,
		OnBatch:        opts.OnBatch,
	})
	if err == nil {
		return sess, nil
	}

	logger.Warn("external watcher unavailable, falling back to native", "err", err)
	return nativewatch.New(nativewatch.Config{
		Cwd:        opts.Cwd,
		Matcher:    matcher,
		TypePolicy: typePolicy,
		Fields:     opts.Fields,
		Absolute:   opts.Absolute,
		Logger:     logger,
		OnBatch:    opts.OnBatch,
	})
}

// oneshotRunner wraps a single scan as a Runner: Run returns immediately
// since there is nothing further to watch, and Close is a no-op.
type oneshotRunner struct{}

func (oneshotRunner) Run(ctx context.Context) error { return nil }
func (oneshotRunner) Close() error                  { return nil }

func startOneshot(opts Options, matcher *glob.Matcher, typePolicy glob.TypePolicy, logger *log.Logger) (Runner, error) {
	entries, err := scan.Walk(scan.Options{
		Cwd:        opts.Cwd,
		Matcher:    matcher,
		TypePolicy: typePolicy,
		Fields:     opts.Fields,
		Absolute:   opts.Absolute,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("backend: oneshot scan: %w", err)
	}

	batch := entrymodel.NewFileChanges()
	for _, e := range entries {
		batch.Added[e.Path] = e
	}
	opts.OnBatch(batch)

	return oneshotRunner{}, nil
}
