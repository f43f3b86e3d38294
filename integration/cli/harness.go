//go:build integration

package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schaermu/gitshelf/internal/testutil"
)

// Harness builds the gitshelf binary once and runs it against a scratch
// workspace.
type Harness struct {
	t         *testing.T
	bin       string
	workspace string
}

// NewHarness builds the binary into a temporary directory.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	projectRoot, err := testutil.FindProjectRoot()
	if err != nil {
		t.Fatalf("get project root: %v", err)
	}

	bin := filepath.Join(t.TempDir(), "gitshelf")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/gitshelf")
	cmd.Dir = projectRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, out)
	}

	return &Harness{t: t, bin: bin, workspace: t.TempDir()}
}

// WriteManifest writes content as the workspace's gitshelf.yml.
func (h *Harness) WriteManifest(content string) {
	h.t.Helper()
	if err := os.WriteFile(filepath.Join(h.workspace, "gitshelf.yml"), []byte(content), 0o644); err != nil {
		h.t.Fatalf("write manifest: %v", err)
	}
}

// Path returns p inside the workspace.
func (h *Harness) Path(p string) string {
	return filepath.Join(h.workspace, p)
}

// Run executes the binary inside the workspace with JSON logging and
// returns the parsed log lines and the exit code.
func (h *Harness) Run(ctx context.Context, args ...string) ([]LogEntry, int) {
	h.t.Helper()

	full := append([]string{"--log-format", "json", "--log-level", "debug"}, args...)
	cmd := exec.CommandContext(ctx, h.bin, full...)
	cmd.Dir = h.workspace
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			h.t.Fatalf("run gitshelf %v: %v", args, err)
		}
		exitCode = exitErr.ExitCode()
	}
	h.t.Logf("gitshelf %s exited %d\n%s%s", strings.Join(args, " "), exitCode, stdout.String(), stderr.String())

	entries, err := parseLog(stdout.Bytes())
	if err != nil {
		h.t.Fatalf("parse log: %v", err)
	}
	return entries, exitCode
}

// LogEntry is one JSON log line written by gitshelf.
type LogEntry map[string]any

// Msg returns the log message.
func (e LogEntry) Msg() string {
	s, _ := e["msg"].(string)
	return s
}

// Str returns the string attribute key.
func (e LogEntry) Str(key string) string {
	s, _ := e[key].(string)
	return s
}

func parseLog(out []byte) ([]LogEntry, error) {
	var entries []LogEntry
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("%w: %s", err, line)
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// Outcomes maps each book path to the outcome logged for it.
func Outcomes(entries []LogEntry) map[string]string {
	out := make(map[string]string)
	for _, e := range entries {
		if e.Msg() == "book done" || e.Msg() == "book failed" {
			out[e.Str("book")] = e.Str("outcome")
		}
	}
	return out
}

// Count returns how many entries carry msg.
func Count(entries []LogEntry, msg string) int {
	n := 0
	for _, e := range entries {
		if e.Msg() == msg {
			n++
		}
	}
	return n
}
