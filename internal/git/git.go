package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Remote is one configured remote of a working copy.
type Remote struct {
	Name string
	URL  string
}

// CommandError reports a failed git invocation together with the
// diagnostic text git printed.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.Args, " "), e.Err, out)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ShellClient runs git operations by shelling out to the git command.
// Every operation on an existing working copy is scoped with "git -C <repo>".
type ShellClient struct {
	sshKeyFile     string
	httpsTokenFile string
}

// NewShellClient creates a new git client that uses the git command
func NewShellClient(sshKeyFile, httpsTokenFile string) *ShellClient {
	return &ShellClient{
		sshKeyFile:     sshKeyFile,
		httpsTokenFile: httpsTokenFile,
	}
}

// Clone clones remote into dest, creating dest's parent directory first.
func (c *ShellClient) Clone(ctx context.Context, remote, dest string) error {
	if err := os.MkdirAll(filepath.Dir(filepath.Clean(dest)), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "clone", remote, dest)
	if err := c.configureAuth(cmd, remote); err != nil {
		return err
	}
	_, err := c.run(cmd)
	return err
}

// Fetch fetches all remotes of the working copy at repo.
func (c *ShellClient) Fetch(ctx context.Context, repo string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", repo, "fetch", "--all", "--tags")
	if err := c.configureAuth(cmd, c.originURL(ctx, repo)); err != nil {
		return err
	}
	_, err := c.run(cmd)
	return err
}

// Checkout checks out revision in the working copy at repo. A branch that
// only exists on a remote is picked up by git's own tracking-branch guess.
func (c *ShellClient) Checkout(ctx context.Context, repo, revision string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", repo, "checkout", revision)
	_, err := c.run(cmd)
	return err
}

// Describe returns the symbolic name HEAD is reachable from, as printed by
// "git describe --all --contains".
func (c *ShellClient) Describe(ctx context.Context, repo string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repo, "describe", "--all", "--contains", "--abbrev=4", "HEAD")
	return c.output(cmd)
}

// HeadRefs returns the full names of the branches, remote-tracking
// branches and tags that point at HEAD. Annotated tags are matched by the
// commit they peel to.
func (c *ShellClient) HeadRefs(ctx context.Context, repo string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repo, "for-each-ref", "--points-at", "HEAD",
		"--format=%(refname)", "refs/heads", "refs/remotes", "refs/tags")
	out, err := c.output(cmd)
	if err != nil || out == "" {
		return nil, err
	}
	return strings.Split(out, "\n"), nil
}

// HeadCommit returns the full hash of HEAD.
func (c *ShellClient) HeadCommit(ctx context.Context, repo string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repo, "rev-parse", "HEAD")
	return c.output(cmd)
}

// Remotes lists the configured remotes of the working copy at repo.
func (c *ShellClient) Remotes(ctx context.Context, repo string) ([]Remote, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repo, "remote", "-v")
	out, err := c.output(cmd)
	if err != nil {
		return nil, err
	}
	return parseRemotes(out), nil
}

// Status returns the short status summary of the working copy, including
// the ahead/behind line for the current branch.
func (c *ShellClient) Status(ctx context.Context, repo string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repo, "status", "--short", "--branch")
	return c.output(cmd)
}

// parseRemotes turns "git remote -v" output into one Remote per name.
// The fetch and push lines of the same remote collapse into one entry
// unless their URLs differ.
func parseRemotes(out string) []Remote {
	var remotes []Remote
	seen := make(map[Remote]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		r := Remote{Name: fields[0], URL: fields[1]}
		if seen[r] {
			continue
		}
		seen[r] = true
		remotes = append(remotes, r)
	}
	return remotes
}

// originURL is used only to pick the auth method for fetches; lookup
// failures leave auth unconfigured.
func (c *ShellClient) originURL(ctx context.Context, repo string) string {
	if c.sshKeyFile == "" && c.httpsTokenFile == "" {
		return ""
	}
	cmd := exec.CommandContext(ctx, "git", "-C", repo, "remote", "get-url", "origin")
	url, err := c.output(cmd)
	if err != nil {
		return ""
	}
	return url
}

// configureAuth sets up authentication for git operations
func (c *ShellClient) configureAuth(cmd *exec.Cmd, url string) error {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}

	// SSH authentication
	if c.sshKeyFile != "" && (strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://")) {
		// The path is shell-quoted to prevent injection via crafted filenames.
		sshCmd := fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=accept-new -F /dev/null", shellQuote(c.sshKeyFile))
		cmd.Env = append(cmd.Env, "GIT_SSH_COMMAND="+sshCmd)
		return nil
	}

	// HTTPS authentication with token
	if c.httpsTokenFile != "" && strings.HasPrefix(url, "https://") {
		token, err := os.ReadFile(c.httpsTokenFile)
		if err != nil {
			return fmt.Errorf("failed to read HTTPS token file: %w", err)
		}

		tokenStr := strings.TrimSpace(string(token))

		// The token travels in the environment and is read back by an
		// inline credential helper, never through the command line.
		cmd.Env = append(cmd.Env, "GIT_TERMINAL_PROMPT=0")
		cmd.Env = append(cmd.Env, "GITSHELF_GIT_TOKEN="+tokenStr)
		cmd.Args = insertGitFlags(cmd.Args,
			"-c", `credential.helper=!f() { echo "username=x-access-token"; echo "password=$GITSHELF_GIT_TOKEN"; }; f`,
		)

		return nil
	}

	return nil
}

// insertGitFlags inserts flags immediately after the "git" command name,
// before any "-C <dir>" and the subcommand.
func insertGitFlags(args []string, flags ...string) []string {
	if len(args) == 0 {
		return flags
	}
	result := make([]string, 0, len(args)+len(flags))
	result = append(result, args[0])
	result = append(result, flags...)
	result = append(result, args[1:]...)
	return result
}

// shellQuote wraps s in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// run executes cmd and returns its standard output. Failures are wrapped
// in a CommandError carrying what git printed on standard error.
func (c *ShellClient) run(cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &CommandError{Args: cmd.Args[1:], Output: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// output is run with surrounding whitespace trimmed.
func (c *ShellClient) output(cmd *exec.Cmd) (string, error) {
	out, err := c.run(cmd)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
