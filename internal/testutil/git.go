package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// RequireGit skips the test when no git binary is on PATH.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// Git runs git with args and fails the test on error. It returns trimmed stdout.
func Git(t *testing.T, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@test.com",
	)
	out, err := cmd.Output()
	if err != nil {
		stderr := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		t.Fatalf("git %s: %v: %s", strings.Join(args, " "), err, stderr)
	}
	return strings.TrimSpace(string(out))
}

// InitRepo creates a repository at dir whose initial branch is branch.
func InitRepo(t *testing.T, dir, branch string) {
	t.Helper()
	Git(t, "init", "-b", branch, dir)
	Git(t, "-C", dir, "config", "user.email", "test@test.com")
	Git(t, "-C", dir, "config", "user.name", "Test")
}

// CommitFile writes content to name in repoDir, commits it and returns the
// new HEAD hash.
func CommitFile(t *testing.T, repoDir, name, content, msg string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(repoDir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	Git(t, "-C", repoDir, "add", name)
	Git(t, "-C", repoDir, "commit", "-m", msg)
	return Git(t, "-C", repoDir, "rev-parse", "HEAD")
}
