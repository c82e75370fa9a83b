package gitsource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog"
)

// IsGitURL reports whether a source path names a remote repository rather
// than a local directory.
func IsGitURL(path string) bool {
	return strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") || strings.HasPrefix(path, "https://")
}

// Sync makes localPath a shallow, up-to-date checkout of repoURL: it clones
// when the path does not exist and pulls otherwise.
func Sync(ctx context.Context, repoURL, localPath string) error {
	log := zerolog.Ctx(ctx)

	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		log.Info().Str("url", repoURL).Str("path", localPath).Msg("git-clone")
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:   repoURL,
			Depth: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
	case err == nil:
		log.Info().Str("path", localPath).Msg("git-pull")
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}

		err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin", Depth: 1})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	return nil
}

// LocalPath maps a repository URL to a checkout directory under baseDir,
// e.g. https://github.com/acme/sat-decks.git -> baseDir/github.com/acme/sat-decks.
// URLs whose host or path would leave baseDir are rejected.
func LocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err == nil && (parsedURL.Scheme == "https" || parsedURL.Scheme == "http") && parsedURL.Host != "" {
		sanitizedPath := strings.TrimSuffix(strings.Trim(parsedURL.Path, "/"), ".git")
		return within(baseDir, parsedURL.Host, sanitizedPath)
	}

	// scp-like syntax: git@host:owner/repo.git
	userHost, repoPath, ok := strings.Cut(repoURL, ":")
	if ok && strings.Contains(userHost, "@") {
		_, host, _ := strings.Cut(userHost, "@")
		repoPath = strings.TrimSuffix(repoPath, ".git")
		if host != "" && repoPath != "" {
			return within(baseDir, host, repoPath)
		}
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}

// within joins host and repoPath under baseDir, refusing ".." segments and
// any result outside baseDir.
func within(baseDir, host, repoPath string) (string, error) {
	segments := append([]string{host}, strings.FieldsFunc(repoPath, func(r rune) bool {
		return r == '/' || r == '\\'
	})...)
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("git URL path segment %q not allowed", seg)
		}
	}
	p := filepath.Join(append([]string{baseDir}, segments...)...)
	rel, err := filepath.Rel(baseDir, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("checkout path for %s/%s escapes %s", host, repoPath, baseDir)
	}
	return p, nil
}
