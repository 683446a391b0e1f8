package ignore

import "testing"

func TestShouldIgnoreDefaults(t *testing.T) {
	m := New(DefaultConfig())

	cases := []struct {
		path string
		want bool
	}{
		{".git", true},
		{".git/config", true},
		{"node_modules", true},
		{"node_modules/pkg/index.js", true},
		{"app.py", false},
		{"src/app.py", false},
		{"build.log", true},
		{"debug.log", true},
		{"src/debug.log", true},
		{".env", true},
	}

	for _, tc := range cases {
		if got := m.ShouldIgnore(tc.path); got != tc.want {
			t.Errorf("ShouldIgnore(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestForceIncludeOverridesPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Patterns = append(cfg.Patterns, "*.env")
	m := New(cfg)

	if m.ShouldIgnore(".env.example") {
		t.Errorf("ShouldIgnore(.env.example) = true, want false (force_include should win)")
	}
	if !m.ShouldIgnore("secrets.env") {
		t.Errorf("ShouldIgnore(secrets.env) = false, want true")
	}
}

func TestAdditionalIgnores(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdditionalIgnores = []string{"*.bin"}
	m := New(cfg)

	if !m.ShouldIgnore("artifact.bin") {
		t.Errorf("expected artifact.bin to be ignored via additional_ignores")
	}
	if m.ShouldIgnore("artifact.txt") {
		t.Errorf("did not expect artifact.txt to be ignored")
	}
}

func TestPathComponentMatch(t *testing.T) {
	m := New(DefaultConfig())

	// __pycache__ nested deep in the tree should still match via the
	// per-component check, not just a prefix/suffix match.
	if !m.ShouldIgnore("a/b/__pycache__/c/d.pyc") {
		t.Errorf("expected nested __pycache__ path to be ignored")
	}
}

func TestGlobCrossesSlash(t *testing.T) {
	// fnmatch-style '*' crosses '/', unlike filepath.Match.
	cfg := Config{Patterns: []string{"a*z"}}
	m := New(cfg)
	if !m.ShouldIgnore("a/b/c/z") {
		t.Errorf("expected 'a*z' to match across slashes, fnmatch-style")
	}
}

func TestCharacterClass(t *testing.T) {
	cfg := Config{Patterns: []string{"file.[oa]"}}
	m := New(cfg)
	if !m.ShouldIgnore("file.o") || !m.ShouldIgnore("file.a") {
		t.Errorf("expected character class pattern to match file.o and file.a")
	}
	if m.ShouldIgnore("file.c") {
		t.Errorf("did not expect file.c to match file.[oa]")
	}
}
