// SPDX-License-Identifier: MPL-2.0

package glob

import (
	"testing"

	"globwatch/pkg/entrymodel"
)

func TestResolveTypePolicyDefaults(t *testing.T) {
	p := ResolveTypePolicy(false, false, false, false)
	if !p.OnlyFiles || p.OnlyDirectories {
		t.Errorf("ResolveTypePolicy defaults = %+v, want onlyFiles=true onlyDirectories=false", p)
	}
}

func TestResolveTypePolicyOnlyDirectoriesImplicitlyDisablesOnlyFiles(t *testing.T) {
	p := ResolveTypePolicy(false, false, true, true)
	if p.OnlyFiles {
		t.Errorf("expected onlyFiles to be implicitly false, got %+v", p)
	}
	if !p.OnlyDirectories {
		t.Errorf("expected onlyDirectories true, got %+v", p)
	}
}

func TestResolveTypePolicyExplicitOnlyFilesWins(t *testing.T) {
	p := ResolveTypePolicy(true, true, true, true)
	if !p.OnlyFiles {
		t.Errorf("expected explicit onlyFiles=true to win, got %+v", p)
	}
	if p.OnlyDirectories {
		t.Errorf("expected onlyDirectories forced off when onlyFiles wins, got %+v", p)
	}
}

func TestTypePolicyAllows(t *testing.T) {
	tests := []struct {
		name   string
		policy TypePolicy
		typ    entrymodel.EntryType
		want   bool
	}{
		{"onlyFiles rejects dir", TypePolicy{OnlyFiles: true}, entrymodel.TypeDir, false},
		{"onlyFiles allows file", TypePolicy{OnlyFiles: true}, entrymodel.TypeFile, true},
		{"onlyDirectories rejects file", TypePolicy{OnlyDirectories: true}, entrymodel.TypeFile, false},
		{"onlyDirectories allows dir", TypePolicy{OnlyDirectories: true}, entrymodel.TypeDir, true},
		{"neither set allows both", TypePolicy{}, entrymodel.TypeFile, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Allows(tt.typ); got != tt.want {
				t.Errorf("Allows(%v) = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}

func TestCompileRejectsInvalidPattern(t *testing.T) {
	if _, err := Compile([]string{"["}, nil, false); err == nil {
		t.Errorf("expected an error for an invalid glob pattern")
	}
	if _, err := Compile(nil, []string{"["}, false); err == nil {
		t.Errorf("expected an error for an invalid ignore pattern")
	}
}

func TestMatcherIncludesPath(t *testing.T) {
	m, err := Compile([]string{"**/*.go"}, []string{"**/vendor/**"}, false)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"main.go", true},
		{"pkg/glob/glob.go", true},
		{"README.md", false},
		{"vendor/lib/thing.go", false},
		{".hidden/main.go", false},
	}
	for _, tt := range tests {
		if got := m.IncludesPath(tt.path); got != tt.want {
			t.Errorf("IncludesPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMatcherIncludesPathDotPolicy(t *testing.T) {
	m, err := Compile([]string{"**/*"}, nil, true)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if !m.IncludesPath(".env") {
		t.Errorf("expected dot=true to include dotfiles")
	}
	if !m.Dot() {
		t.Errorf("Dot() = false, want true")
	}
}

func TestMatcherIsIgnored(t *testing.T) {
	m, err := Compile([]string{"**/*"}, []string{"**/node_modules/**"}, false)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if !m.IsIgnored("node_modules/pkg/index.js") {
		t.Errorf("expected nested path under an ignored directory to be ignored")
	}
	if !m.IsIgnored("node_modules") {
		t.Errorf("expected the ignored directory itself to be ignored")
	}
	if m.IsIgnored("src/index.js") {
		t.Errorf("expected an unrelated path not to be ignored")
	}
}
