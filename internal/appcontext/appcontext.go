// SPDX-License-Identifier: MPL-2.0

// Package appcontext holds the shared logging wiring every component falls
// back to when a caller does not inject a logger of its own: one
// github.com/charmbracelet/log instance per subsystem, writing to stderr,
// exactly as the teacher's internal/sshserver constructs its per-session
// logger.
package appcontext

import (
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger returns a subsystem-prefixed logger writing to stderr. Every
// component that accepts an optional *log.Logger via its Config calls this
// when none was supplied, so the whole module shares one logging
// convention instead of each package hand-rolling its own default.
func NewLogger(subsystem string) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Prefix: subsystem})
}
