package gitsource

import (
	"path/filepath"
	"testing"
)

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		url      string
		expected string
	}{
		{"https://github.com/acme/sat-decks.git", filepath.Join("repos", "github.com", "acme", "sat-decks")},
		{"https://gitlab.com/acme/decks", filepath.Join("repos", "gitlab.com", "acme", "decks")},
		{"git@github.com:acme/sat-decks.git", filepath.Join("repos", "github.com", "acme", "sat-decks")},
	}
	for _, tc := range testCases {
		got, err := LocalPath("repos", tc.url)
		if err != nil {
			t.Fatalf("LocalPath(%q) returned an unexpected error: %v", tc.url, err)
		}
		if got != tc.expected {
			t.Errorf("LocalPath(%q) = %q, want %q", tc.url, got, tc.expected)
		}
	}

	for _, bad := range []string{"not a url", "ftp://x/y", "git@:"} {
		if _, err := LocalPath("repos", bad); err == nil {
			t.Errorf("Expected an error for %q", bad)
		}
	}
}

func TestLocalPathStaysUnderBaseDir(t *testing.T) {
	base := filepath.Join("var", "lib", "satprep", "repos")
	for _, u := range []string{
		"https://evil.example/../../../../tmp/owned.git",
		"https://evil.example/acme/%2e%2e/%2e%2e/%2e%2e/etc.git",
		"https://evil.example/acme/./decks.git",
		"https://../decks.git",
		"git@evil.example:../../tmp/owned.git",
		"git@evil.example:acme/../../../owned.git",
		"git@..:acme/decks.git",
	} {
		if got, err := LocalPath(base, u); err == nil {
			t.Errorf("LocalPath(%q) = %q, want an error", u, got)
		}
	}
}

func TestIsGitURL(t *testing.T) {
	for path, want := range map[string]bool{
		"https://github.com/acme/decks": true,
		"git@github.com:acme/decks.git": true,
		"/srv/decks.git":                true,
		"./decks":                       false,
	} {
		if got := IsGitURL(path); got != want {
			t.Errorf("IsGitURL(%q) = %v, want %v", path, got, want)
		}
	}
}
