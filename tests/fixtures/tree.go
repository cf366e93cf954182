// SPDX-License-Identifier: MPL-2.0

// Package fixtures provides small, shared test helpers used across this
// module's test suites — a tree-string fixture builder and a callback
// tracker — in the teacher's internal/testutil style: plain .go files
// (not _test.go) so they can be imported from any package's tests, each
// function taking testing.TB and failing the test directly rather than
// returning an error for the caller to check.
package fixtures

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// BuildTree materializes spec under a fresh t.TempDir() and returns its
// path. spec is one entry per line: a trailing "/" creates an empty
// directory (and any missing parents); anything else creates a file,
// creating parent directories as needed. Blank lines and lines starting
// with "#" are skipped. A line may carry explicit content after a ":"
// separator ("name.txt:hello"); without one, the file's own name is used
// as its content, which is enough for tests that only care a path exists.
func BuildTree(t testing.TB, spec string) string {
	t.Helper()
	root := t.TempDir()
	for _, line := range strings.Split(spec, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasSuffix(line, "/") {
			if err := os.MkdirAll(filepath.Join(root, line), 0o755); err != nil {
				t.Fatalf("fixtures: mkdir %q: %v", line, err)
			}
			continue
		}

		name, content, hasContent := strings.Cut(line, ":")
		if !hasContent {
			content = name
		}
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("fixtures: mkdir parent of %q: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("fixtures: write %q: %v", name, err)
		}
	}
	return root
}
