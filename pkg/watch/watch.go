// SPDX-License-Identifier: MPL-2.0

// Package watch is the public entry point: Watch streams added/changed/
// deleted events for a glob pattern set under a root, and FindFiles performs
// the equivalent one-shot scan. Everything else in this module exists to
// serve these two calls.
package watch

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"globwatch/internal/appcontext"
	"globwatch/internal/backend"
	"globwatch/internal/config"
	"globwatch/pkg/entrymodel"
)

// Re-exported so callers never need to import the data-model leaf package
// directly.
type (
	Mode        = entrymodel.Mode
	Field       = entrymodel.Field
	EntryInfo   = entrymodel.EntryInfo
	FileChanges = entrymodel.FileChanges
)

const (
	ModeExternal = entrymodel.ModeExternal
	ModeNative   = entrymodel.ModeNative
	ModeOneshot  = entrymodel.ModeOneshot

	FieldType  = entrymodel.FieldType
	FieldSize  = entrymodel.FieldSize
	FieldMTime = entrymodel.FieldMTime
)

// Callback receives one FileChanges batch. The first invocation for a given
// session is always the mandatory initial batch (may be empty); every
// subsequent invocation carries a non-empty batch.
type Callback func(FileChanges)

// Options is WatchOptions (spec.md §3). OnlyFiles and OnlyDirectories are
// pointers so a call can distinguish "not set" from "explicitly set to
// false": when OnlyDirectories is set true and OnlyFiles is left unset,
// OnlyFiles is implicitly false; if both are explicitly set true, OnlyFiles
// wins.
type Options struct {
	Mode            Mode
	Fields          []Field
	Absolute        bool
	Cwd             string
	OnlyDirectories *bool
	OnlyFiles       *bool
	Dot             bool
	Ignore          []string

	// SocketPath and ConnectTimeout configure the external watcher adapter.
	// Zero values fall back to the layered configuration in internal/config.
	SocketPath     string
	ConnectTimeout time.Duration

	Logger *log.Logger
}

type normalized struct {
	mode   Mode
	cwd    string
	fields map[entrymodel.Field]bool

	onlyFiles, onlyFilesSet     bool
	onlyDirectories, onlyDirSet bool

	socketPath     string
	connectTimeout time.Duration
	logger         *log.Logger
}

func (o Options) normalize() (normalized, error) {
	cfg := config.Get()

	n := normalized{
		mode: o.Mode,
		cwd:  o.Cwd,
	}
	if n.mode == "" {
		n.mode = Mode(cfg.DefaultMode)
	}
	if n.cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return normalized{}, err
		}
		n.cwd = wd
	}

	n.fields = make(map[entrymodel.Field]bool, len(o.Fields))
	for _, f := range o.Fields {
		n.fields[f] = true
	}

	if o.OnlyFiles != nil {
		n.onlyFiles, n.onlyFilesSet = *o.OnlyFiles, true
	}
	if o.OnlyDirectories != nil {
		n.onlyDirectories, n.onlyDirSet = *o.OnlyDirectories, true
	}

	n.socketPath = o.SocketPath
	if n.socketPath == "" {
		n.socketPath = cfg.DaemonSocketPath
	}
	n.connectTimeout = o.ConnectTimeout
	if n.connectTimeout <= 0 {
		n.connectTimeout = cfg.DaemonConnectTimeout
	}

	n.logger = o.Logger
	if n.logger == nil {
		n.logger = appcontext.NewLogger("watch")
	}

	return n, nil
}

// Watch opens a watch session for patterns under opts.Cwd (or the current
// working directory) and streams FileChanges batches to callback until the
// returned destroy function is called. destroy is idempotent and safe to
// call from any goroutine.
func Watch(patterns []string, callback Callback, opts Options) (destroy func() error, err error) {
	n, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	ignore := append([]string(nil), opts.Ignore...)
	ignore = append(ignore, config.Get().DefaultIgnore...)

	ctx, cancel := context.WithCancel(context.Background())

	runner, err := backend.Start(ctx, backend.Options{
		Mode:            n.mode,
		Cwd:             n.cwd,
		Patterns:        patterns,
		Ignore:          ignore,
		Dot:             opts.Dot,
		OnlyFiles:       n.onlyFiles,
		OnlyFilesSet:    n.onlyFilesSet,
		OnlyDirectories: n.onlyDirectories,
		OnlyDirSet:      n.onlyDirSet,
		Fields:          n.fields,
		Absolute:        opts.Absolute,
		SocketPath:      n.socketPath,
		ConnectTimeout:  n.connectTimeout,
		Logger:          n.logger,
		OnBatch:         func(fc entrymodel.FileChanges) { callback(fc) },
	})
	if err != nil {
		cancel()
		return nil, err
	}

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- runner.Run(ctx) }()

	var once sync.Once
	destroy = func() error {
		var closeErr error
		once.Do(func() {
			cancel()
			closeErr = runner.Close()
			<-runErrCh
		})
		return closeErr
	}
	return destroy, nil
}

// FindFiles performs a single scan for patterns under opts.Cwd and returns
// the matched, root-relative (or absolute, per opts.Absolute) paths in
// sorted order. It is implemented strictly as mode=oneshot over Watch.
func FindFiles(patterns []string, opts Options) ([]string, error) {
	opts.Mode = ModeOneshot

	var result []string
	destroy, err := Watch(patterns, func(fc FileChanges) {
		for p := range fc.Added {
			result = append(result, p)
		}
	}, opts)
	if err != nil {
		return nil, err
	}
	if err := destroy(); err != nil {
		return nil, err
	}

	sort.Strings(result)
	return result, nil
}
