package book

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/schaermu/gitshelf/internal/remote"
)

// Reconcile brings the book's on-disk state into agreement with its
// declaration. A missing checkout is cloned; an existing checkout that is
// not at the declared revision is fetched and checked out. A missing link is
// created; an existing link is left alone even when it points elsewhere.
func (b *Book) Reconcile(ctx context.Context, env Env) (Result, error) {
	log := env.logger().With("book", b.path)

	switch src := b.source.(type) {
	case GitSource:
		return b.reconcileGit(ctx, env, src, log)
	case LinkSource:
		return b.reconcileLink(env, src, log)
	default:
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("unknown book source %T", src)
	}
}

// Status reports how the book's on-disk state compares with its
// declaration. It never modifies the filesystem or the working copy.
func (b *Book) Status(ctx context.Context, env Env) (Result, error) {
	log := env.logger().With("book", b.path)

	switch src := b.source.(type) {
	case GitSource:
		return b.statusGit(ctx, env, src, log)
	case LinkSource:
		return b.statusLink(env, src, log)
	default:
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("unknown book source %T", src)
	}
}

func (b *Book) reconcileGit(ctx context.Context, env Env, src GitSource, log *slog.Logger) (Result, error) {
	var res Result

	exists, err := env.FS.Exists(b.path)
	if err != nil {
		return res.failed(), &FilesystemError{Op: "stat", Path: b.path, Err: err}
	}

	if !exists {
		log.Info("creating book", "remote", src.Remote, "revision", src.Revision)
		if err := env.VCS.Clone(ctx, src.Remote, b.path); err != nil {
			return res.failed(), fmt.Errorf("git clone failed: %w", err)
		}
		res.Outcome = OutcomeCreated
	} else {
		if err := b.requireWorkingCopy(env); err != nil {
			return res.failed(), err
		}
		log.Info("book already exists")
		res.Outcome = OutcomeUnchanged
		if !src.SkipRemoteCheck {
			res.Warnings = append(res.Warnings, b.checkRemotes(ctx, env, src, log)...)
		}
	}

	pos, err := b.position(ctx, env, log)
	if err != nil {
		return res.failed(), err
	}
	if pos.matches(src.Revision) {
		log.Debug("book is at declared revision", "revision", src.Revision, "commit", pos.commit)
		return res, nil
	}

	log.Info("switching book to revision", "from", pos.String(), "revision", src.Revision)
	if err := env.VCS.Fetch(ctx, b.path); err != nil {
		return res.failed(), fmt.Errorf("git fetch failed: %w", err)
	}
	if err := env.VCS.Checkout(ctx, b.path, src.Revision); err != nil {
		return res.failed(), fmt.Errorf("git checkout failed for revision %q: %w", src.Revision, err)
	}
	if res.Outcome == OutcomeUnchanged {
		res.Outcome = OutcomeUpdated
	}
	return res, nil
}

func (b *Book) statusGit(ctx context.Context, env Env, src GitSource, log *slog.Logger) (Result, error) {
	var res Result

	exists, err := env.FS.Exists(b.path)
	if err != nil {
		return res.failed(), &FilesystemError{Op: "stat", Path: b.path, Err: err}
	}
	if !exists {
		log.Warn("book does not exist", "remote", src.Remote)
		res.Outcome = OutcomeMissing
		return res, nil
	}
	if err := b.requireWorkingCopy(env); err != nil {
		return res.failed(), err
	}

	if !src.SkipRemoteCheck {
		res.Warnings = append(res.Warnings, b.checkRemotes(ctx, env, src, log)...)
	}

	pos, err := b.position(ctx, env, log)
	if err != nil {
		return res.failed(), err
	}
	if pos.matches(src.Revision) {
		res.Outcome = OutcomeMatched
	} else {
		res.Outcome = OutcomeDiverged
		msg := fmt.Sprintf("%s is at %s, declared revision is %s", b.path, pos.String(), src.Revision)
		log.Warn("book is not at declared revision", "current", pos.String(), "revision", src.Revision)
		res.Warnings = append(res.Warnings, msg)
	}

	status, err := env.VCS.Status(ctx, b.path)
	if err != nil {
		return res.failed(), fmt.Errorf("git status failed: %w", err)
	}
	res.Detail = status
	log.Info("book status", "status", status)
	return res, nil
}

// requireWorkingCopy fails unless the book path holds its own .git entry.
// Without it every "git -C" call would act on an enclosing repository.
func (b *Book) requireWorkingCopy(env Env) error {
	gitDir := filepath.Join(b.path, ".git")
	ok, err := env.FS.Exists(gitDir)
	if err != nil {
		return &FilesystemError{Op: "stat", Path: gitDir, Err: err}
	}
	if !ok {
		return &FilesystemError{Op: "open", Path: b.path, Err: errNotWorkingCopy}
	}
	return nil
}

// checkRemotes compares the working copy's remotes with the declared one.
// The result is advisory only and never stops reconciliation.
func (b *Book) checkRemotes(ctx context.Context, env Env, src GitSource, log *slog.Logger) []string {
	remotes, err := env.VCS.Remotes(ctx, b.path)
	if err != nil {
		log.Warn("could not list remotes", "error", err)
		return []string{fmt.Sprintf("could not list remotes of %s: %v", b.path, err)}
	}
	for _, r := range remotes {
		if remote.Equivalent(r.URL, src.Remote) {
			log.Debug("found declared remote", "remote", r.Name, "url", r.URL)
			return nil
		}
	}
	log.Warn("declared remote not found in working copy", "remote", src.Remote)
	return []string{fmt.Sprintf("%s was not found in the list of remotes for %s", src.Remote, b.path)}
}

// position is where a working copy's HEAD currently is. refs holds the
// full names of every ref pointing at HEAD.
type position struct {
	describe string
	commit   string
	refs     []string
}

func (p position) String() string {
	if p.describe != "" {
		return p.describe
	}
	return p.commit
}

// matches accepts a revision naming the exact commit, any ref pointing at
// HEAD, or the symbolic description.
func (p position) matches(revision string) bool {
	if revision == p.commit {
		return true
	}
	for _, ref := range p.refs {
		if symbolicName(ref) == revision {
			return true
		}
	}
	return p.describe != "" && (p.describe == revision || symbolicName(p.describe) == revision)
}

func (b *Book) position(ctx context.Context, env Env, log *slog.Logger) (position, error) {
	var pos position

	commit, err := env.VCS.HeadCommit(ctx, b.path)
	if err != nil {
		return pos, fmt.Errorf("git rev-parse failed: %w", err)
	}
	pos.commit = commit

	// HEAD may not be reachable from any ref; the commit alone still works.
	desc, err := env.VCS.Describe(ctx, b.path)
	if err != nil {
		log.Debug("could not describe HEAD", "error", err)
		desc = ""
	}
	pos.describe = desc

	refs, err := env.VCS.HeadRefs(ctx, b.path)
	if err != nil {
		log.Debug("could not list refs at HEAD", "error", err)
		refs = nil
	}
	pos.refs = refs

	log.Debug("current position", "describe", pos.describe, "commit", pos.commit, "refs", pos.refs)
	return pos, nil
}

// symbolicName reduces a full ref name or a "git describe --all --contains"
// result to the plain branch or tag name: "heads/main" and "remotes/origin/main" become
// "main", "tags/v1.0^0" becomes "v1.0". Names relative to a ref, such as
// "main~2", are returned unchanged and so never match a revision.
func symbolicName(desc string) string {
	name := strings.TrimSuffix(desc, "^0")
	name = strings.TrimPrefix(name, "refs/")
	switch {
	case strings.HasPrefix(name, "heads/"):
		return strings.TrimPrefix(name, "heads/")
	case strings.HasPrefix(name, "tags/"):
		return strings.TrimPrefix(name, "tags/")
	case strings.HasPrefix(name, "remotes/"):
		rest := strings.TrimPrefix(name, "remotes/")
		if i := strings.Index(rest, "/"); i >= 0 {
			return rest[i+1:]
		}
		return rest
	}
	return name
}

func (b *Book) reconcileLink(env Env, src LinkSource, log *slog.Logger) (Result, error) {
	var res Result
	linkPath := filepath.Clean(b.path)

	isLink, err := env.FS.IsSymlink(linkPath)
	if err != nil {
		return res.failed(), &FilesystemError{Op: "lstat", Path: linkPath, Err: err}
	}
	if isLink {
		target, err := env.FS.Readlink(linkPath)
		if err != nil {
			return res.failed(), &FilesystemError{Op: "readlink", Path: linkPath, Err: err}
		}
		log.Info("book already exists", "target", target)
		res.Outcome = OutcomeUnchanged
		res.Detail = target
		return res, nil
	}

	log.Info("creating book via a link", "target", src.Target)
	parent := filepath.Dir(linkPath)
	if err := env.FS.MkdirAll(parent); err != nil {
		return res.failed(), &FilesystemError{Op: "mkdir", Path: parent, Err: err}
	}
	if err := env.FS.Symlink(src.Target, linkPath); err != nil {
		return res.failed(), &FilesystemError{Op: "symlink", Path: linkPath, Err: err}
	}
	res.Outcome = OutcomeCreated
	res.Detail = src.Target
	return res, nil
}

func (b *Book) statusLink(env Env, src LinkSource, log *slog.Logger) (Result, error) {
	var res Result
	linkPath := filepath.Clean(b.path)

	isLink, err := env.FS.IsSymlink(linkPath)
	if err != nil {
		return res.failed(), &FilesystemError{Op: "lstat", Path: linkPath, Err: err}
	}
	if !isLink {
		exists, err := env.FS.Exists(linkPath)
		if err != nil {
			return res.failed(), &FilesystemError{Op: "stat", Path: linkPath, Err: err}
		}
		if exists {
			return res.failed(), &FilesystemError{Op: "readlink", Path: linkPath, Err: errNotSymlink}
		}
		log.Warn("book does not exist", "target", src.Target)
		res.Outcome = OutcomeMissing
		return res, nil
	}

	target, err := env.FS.Readlink(linkPath)
	if err != nil {
		return res.failed(), &FilesystemError{Op: "readlink", Path: linkPath, Err: err}
	}
	res.Detail = target
	log.Debug("checking link target", "want", src.Target, "got", target)

	if target == src.Target {
		log.Info("book correctly points to target", "target", target)
		res.Outcome = OutcomeMatched
		return res, nil
	}

	log.Warn("book points to the wrong target", "want", src.Target, "got", target)
	res.Outcome = OutcomeDiverged
	res.Warnings = append(res.Warnings, fmt.Sprintf("%s should point to %s, it points to %s", b.path, src.Target, target))
	return res, nil
}
