// Package git provides branch detection for tenant scoping.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const commandTimeout = 5 * time.Second

// CurrentBranch returns the checked-out branch for the repository
// containing path. A detached HEAD reports "HEAD"; callers should fall
// back to a configured branch name in that case.
func CurrentBranch(path string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "-C", path, "rev-parse", "--abbrev-ref", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("not a git repository or git command failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("failed to execute git command (is git installed?): %w", err)
	}

	branch := strings.TrimSpace(string(output))
	if branch == "" {
		return "", fmt.Errorf("git returned an empty branch name")
	}
	return branch, nil
}

// IsGitRepo returns true if the given path is within a git repository.
// Returns false on any error (git not installed, not a repo, etc.).
func IsGitRepo(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "-C", path, "rev-parse", "--git-dir")
	err := cmd.Run()
	return err == nil
}

// BranchOrDefault resolves the tenant branch: the live git branch when
// path is a repository, otherwise fallback.
func BranchOrDefault(path, fallback string) string {
	branch, err := CurrentBranch(path)
	if err != nil || branch == "HEAD" {
		return fallback
	}
	return branch
}
