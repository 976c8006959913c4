package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// setupGitRepo initializes a git repo in the given directory with an empty commit.
func setupGitRepo(t *testing.T, path string) {
	t.Helper()

	// Check if git is available
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	// Initialize repo
	cmd := exec.Command("git", "init", "-b", "main", path)
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	// Configure user
	configEmail := exec.Command("git", "-C", path, "config", "user.email", "test@test.com")
	if err := configEmail.Run(); err != nil {
		t.Fatalf("failed to set git user.email: %v", err)
	}

	configName := exec.Command("git", "-C", path, "config", "user.name", "Test")
	if err := configName.Run(); err != nil {
		t.Fatalf("failed to set git user.name: %v", err)
	}

	// Create empty commit
	commit := exec.Command("git", "-C", path, "commit", "--allow-empty", "-m", "init")
	if err := commit.Run(); err != nil {
		t.Fatalf("failed to create initial commit: %v", err)
	}
}

func TestCurrentBranch(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repoPath := t.TempDir()
	setupGitRepo(t, repoPath)

	branch, err := CurrentBranch(repoPath)
	if err != nil {
		t.Fatalf("CurrentBranch failed: %v", err)
	}
	if branch != "main" {
		t.Errorf("branch = %q, want main", branch)
	}

	// Switch to a new branch and re-detect
	checkout := exec.Command("git", "-C", repoPath, "checkout", "-b", "feature")
	if err := checkout.Run(); err != nil {
		t.Fatalf("failed to checkout branch: %v", err)
	}

	branch, err = CurrentBranch(repoPath)
	if err != nil {
		t.Fatalf("CurrentBranch failed: %v", err)
	}
	if branch != "feature" {
		t.Errorf("branch = %q, want feature", branch)
	}
}

func TestCurrentBranch_NotGitRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	notARepo := t.TempDir()
	if _, err := CurrentBranch(notARepo); err == nil {
		t.Fatal("CurrentBranch should fail on non-git directory")
	}
}

func TestBranchOrDefault(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repoPath := t.TempDir()
	setupGitRepo(t, repoPath)

	if got := BranchOrDefault(repoPath, "fallback"); got != "main" {
		t.Errorf("BranchOrDefault in repo = %q, want main", got)
	}

	notARepo := t.TempDir()
	if got := BranchOrDefault(notARepo, "fallback"); got != "fallback" {
		t.Errorf("BranchOrDefault outside repo = %q, want fallback", got)
	}
}

func TestIsGitRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	// Positive case: actual git repo
	repoPath := t.TempDir()
	setupGitRepo(t, repoPath)

	if !IsGitRepo(repoPath) {
		t.Error("IsGitRepo returned false for actual git repo")
	}

	// Negative case: not a git repo
	notARepo := t.TempDir()
	if IsGitRepo(notARepo) {
		t.Error("IsGitRepo returned true for non-git directory")
	}
}

func TestIsGitRepo_InvalidPath(t *testing.T) {
	// Test with a path that definitely doesn't exist
	nonExistentPath := filepath.Join(os.TempDir(), "this-path-does-not-exist-12345")

	// Should return false, not panic
	if IsGitRepo(nonExistentPath) {
		t.Error("IsGitRepo returned true for non-existent path")
	}
}
