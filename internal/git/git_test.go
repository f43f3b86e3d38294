package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schaermu/gitshelf/internal/testutil"
)

func TestClone_CreatesWorkingCopy(t *testing.T) {
	testutil.RequireGit(t)
	ctx := context.Background()

	remoteDir := t.TempDir()
	testutil.InitRepo(t, remoteDir, "main")
	want := testutil.CommitFile(t, remoteDir, "README", "hello\n", "Initial commit")

	// Parent directories of the destination do not exist yet.
	cloneDir := filepath.Join(t.TempDir(), "libs", "nested", "foo")
	client := NewShellClient("", "")
	if err := client.Clone(ctx, remoteDir, cloneDir); err != nil {
		t.Fatalf("clone: %v", err)
	}

	got, err := client.HeadCommit(ctx, cloneDir)
	if err != nil {
		t.Fatalf("head commit: %v", err)
	}
	if got != want {
		t.Errorf("HeadCommit() = %q, want %q", got, want)
	}

	desc, err := client.Describe(ctx, cloneDir)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if !strings.Contains(desc, "main") {
		t.Errorf("Describe() = %q, expected it to name main", desc)
	}

	remotes, err := client.Remotes(ctx, cloneDir)
	if err != nil {
		t.Fatalf("remotes: %v", err)
	}
	if len(remotes) != 1 || remotes[0].Name != "origin" || remotes[0].URL != remoteDir {
		t.Errorf("Remotes() = %+v, want single origin at %s", remotes, remoteDir)
	}

	status, err := client.Status(ctx, cloneDir)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.HasPrefix(status, "## main") {
		t.Errorf("Status() = %q, expected branch header for main", status)
	}
}

func TestHeadRefs(t *testing.T) {
	testutil.RequireGit(t)
	ctx := context.Background()

	remoteDir := t.TempDir()
	testutil.InitRepo(t, remoteDir, "main")
	testutil.CommitFile(t, remoteDir, "README", "v1\n", "Tagged commit")
	testutil.Git(t, "-C", remoteDir, "tag", "-a", "-m", "release", "v1.0")

	cloneDir := filepath.Join(t.TempDir(), "repo")
	client := NewShellClient("", "")
	if err := client.Clone(ctx, remoteDir, cloneDir); err != nil {
		t.Fatalf("clone: %v", err)
	}

	refs, err := client.HeadRefs(ctx, cloneDir)
	if err != nil {
		t.Fatalf("head refs: %v", err)
	}
	for _, want := range []string{"refs/heads/main", "refs/remotes/origin/main", "refs/tags/v1.0"} {
		found := false
		for _, ref := range refs {
			if ref == want {
				found = true
			}
		}
		if !found {
			t.Errorf("HeadRefs() = %v, missing %s", refs, want)
		}
	}

	testutil.CommitFile(t, cloneDir, "LOCAL", "x\n", "Local commit")
	refs, err = client.HeadRefs(ctx, cloneDir)
	if err != nil {
		t.Fatalf("head refs after commit: %v", err)
	}
	if len(refs) != 1 || refs[0] != "refs/heads/main" {
		t.Errorf("HeadRefs() after local commit = %v, want [refs/heads/main]", refs)
	}
}

func TestFetchAndCheckout(t *testing.T) {
	testutil.RequireGit(t)
	ctx := context.Background()

	remoteDir := t.TempDir()
	testutil.InitRepo(t, remoteDir, "main")
	tagged := testutil.CommitFile(t, remoteDir, "README", "v1\n", "Tagged commit")
	testutil.Git(t, "-C", remoteDir, "tag", "v1.0")
	testutil.CommitFile(t, remoteDir, "README", "v2\n", "Post-tag commit")

	cloneDir := filepath.Join(t.TempDir(), "repo")
	client := NewShellClient("", "")
	if err := client.Clone(ctx, remoteDir, cloneDir); err != nil {
		t.Fatalf("clone: %v", err)
	}

	if err := client.Checkout(ctx, cloneDir, "v1.0"); err != nil {
		t.Fatalf("checkout tag: %v", err)
	}
	head, err := client.HeadCommit(ctx, cloneDir)
	if err != nil {
		t.Fatal(err)
	}
	if head != tagged {
		t.Errorf("after tag checkout HEAD = %q, want %q", head, tagged)
	}
	desc, err := client.Describe(ctx, cloneDir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(desc, "v1.0") {
		t.Errorf("Describe() = %q, expected it to name v1.0", desc)
	}

	// A commit that only exists upstream needs a fetch before checkout.
	latest := testutil.CommitFile(t, remoteDir, "README", "v3\n", "Upstream commit")
	if err := client.Checkout(ctx, cloneDir, latest); err == nil {
		t.Fatal("expected checkout of unfetched commit to fail")
	}
	if err := client.Fetch(ctx, cloneDir); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := client.Checkout(ctx, cloneDir, latest); err != nil {
		t.Fatalf("checkout after fetch: %v", err)
	}
	head, err = client.HeadCommit(ctx, cloneDir)
	if err != nil {
		t.Fatal(err)
	}
	if head != latest {
		t.Errorf("after fetch HEAD = %q, want %q", head, latest)
	}
}

func TestClone_MissingRemote(t *testing.T) {
	testutil.RequireGit(t)

	missing := filepath.Join(t.TempDir(), "does-not-exist")
	client := NewShellClient("", "")
	err := client.Clone(context.Background(), missing, filepath.Join(t.TempDir(), "repo"))
	if err == nil {
		t.Fatal("expected clone of missing remote to fail")
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %T", err)
	}
	if cmdErr.Output == "" {
		t.Error("expected git diagnostic output in CommandError")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Errorf("expected CommandError to unwrap to *exec.ExitError, got %v", cmdErr.Err)
	}
}

func TestCommandError_Error(t *testing.T) {
	base := errors.New("exit status 128")
	tests := []struct {
		name string
		err  *CommandError
		want string
	}{
		{
			name: "with output",
			err:  &CommandError{Args: []string{"-C", "/r", "fetch"}, Output: "fatal: no remote\n", Err: base},
			want: "git -C /r fetch: exit status 128: fatal: no remote",
		},
		{
			name: "without output",
			err:  &CommandError{Args: []string{"rev-parse", "HEAD"}, Err: base},
			want: "git rev-parse HEAD: exit status 128",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRemotes(t *testing.T) {
	out := "origin\tgit@example.test:org/foo.git (fetch)\n" +
		"origin\tgit@example.test:org/foo.git (push)\n" +
		"mirror\thttps://mirror.test/foo (fetch)\n" +
		"mirror\thttps://push.mirror.test/foo (push)\n" +
		"\n"

	got := parseRemotes(out)
	want := []Remote{
		{Name: "origin", URL: "git@example.test:org/foo.git"},
		{Name: "mirror", URL: "https://mirror.test/foo"},
		{Name: "mirror", URL: "https://push.mirror.test/foo"},
	}
	if len(got) != len(want) {
		t.Fatalf("parseRemotes() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("parseRemotes()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if got := parseRemotes(""); len(got) != 0 {
		t.Errorf("parseRemotes(\"\") = %+v, want empty", got)
	}
}

func TestConfigureAuth(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("s3cret\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("ssh key for scp-style url", func(t *testing.T) {
		c := NewShellClient("/keys/id", "")
		cmd := exec.Command("git", "clone", "git@example.test:org/foo.git", "dest")
		if err := c.configureAuth(cmd, "git@example.test:org/foo.git"); err != nil {
			t.Fatal(err)
		}
		if !hasEnv(cmd.Env, "GIT_SSH_COMMAND=ssh -i '/keys/id'") {
			t.Errorf("GIT_SSH_COMMAND not set, env tail: %v", tail(cmd.Env))
		}
	})

	t.Run("https token", func(t *testing.T) {
		c := NewShellClient("", tokenFile)
		cmd := exec.Command("git", "-C", "/repo", "fetch", "--all")
		if err := c.configureAuth(cmd, "https://example.test/foo.git"); err != nil {
			t.Fatal(err)
		}
		if !hasEnv(cmd.Env, "GITSHELF_GIT_TOKEN=s3cret") {
			t.Errorf("token not exported, env tail: %v", tail(cmd.Env))
		}
		if cmd.Args[1] != "-c" || !strings.HasPrefix(cmd.Args[2], "credential.helper=") {
			t.Errorf("credential helper not inserted: %v", cmd.Args)
		}
	})

	t.Run("scheme mismatch leaves command untouched", func(t *testing.T) {
		c := NewShellClient("", tokenFile)
		cmd := exec.Command("git", "clone", "git@example.test:org/foo.git", "dest")
		if err := c.configureAuth(cmd, "git@example.test:org/foo.git"); err != nil {
			t.Fatal(err)
		}
		if len(cmd.Args) != 4 {
			t.Errorf("expected args unchanged, got %v", cmd.Args)
		}
	})

	t.Run("missing token file", func(t *testing.T) {
		c := NewShellClient("", filepath.Join(t.TempDir(), "missing"))
		cmd := exec.Command("git", "clone", "https://example.test/foo.git", "dest")
		if err := c.configureAuth(cmd, "https://example.test/foo.git"); err == nil {
			t.Error("expected error for unreadable token file")
		}
	})
}

func hasEnv(env []string, prefix string) bool {
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}
	return false
}

func tail(env []string) []string {
	if len(env) > 3 {
		return env[len(env)-3:]
	}
	return env
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple path", input: "/home/user/.ssh/key", want: "'/home/user/.ssh/key'"},
		{name: "path with spaces", input: "/home/my user/key", want: "'/home/my user/key'"},
		{name: "path with single quote", input: "/home/user's/key", want: "'/home/user'\\''s/key'"},
		{name: "empty string", input: "", want: "''"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shellQuote(tt.input)
			if got != tt.want {
				t.Errorf("shellQuote(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestInsertGitFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		flags []string
		want  []string
	}{
		{
			name:  "insert before subcommand",
			args:  []string{"git", "clone", "url", "dest"},
			flags: []string{"-c", "key=value"},
			want:  []string{"git", "-c", "key=value", "clone", "url", "dest"},
		},
		{
			name:  "insert before repo scope",
			args:  []string{"git", "-C", "/dir", "fetch", "--all"},
			flags: []string{"-c", "cred=helper"},
			want:  []string{"git", "-c", "cred=helper", "-C", "/dir", "fetch", "--all"},
		},
		{
			name:  "empty args",
			args:  []string{},
			flags: []string{"-c", "key=value"},
			want:  []string{"-c", "key=value"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := insertGitFlags(tt.args, tt.flags...)
			if len(got) != len(tt.want) {
				t.Fatalf("insertGitFlags() length = %d, want %d\ngot:  %v\nwant: %v", len(got), len(tt.want), got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("insertGitFlags()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
