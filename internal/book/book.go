// Package book models a single shelf entry and reconciles it against the
// filesystem.
//
// A book is either a git checkout or a symbolic link. The variant is carried
// by the sealed Source interface, so code that needs to act on a book does so
// with one type switch over GitSource and LinkSource. Reconcile creates what
// is missing and moves a checkout to its declared revision; Status reports
// without touching anything.
//
// Books never change the process working directory. Every version-control
// call receives the repository path explicitly, which keeps books safe to
// process concurrently.
package book

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/schaermu/gitshelf/internal/git"
)

// DefaultRevision is checked out when a git book declares no branch.
const DefaultRevision = "master"

// Kind identifies which variant a book is.
type Kind int

const (
	GitCheckout Kind = iota
	SymbolicLink
)

func (k Kind) String() string {
	switch k {
	case GitCheckout:
		return "git"
	case SymbolicLink:
		return "link"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Source is the desired state of a book. It is implemented only by
// GitSource and LinkSource.
type Source interface {
	kind() Kind
}

// GitSource describes a book backed by a git working copy.
type GitSource struct {
	Remote   string
	Revision string // branch, tag or full commit hash
	// SkipRemoteCheck trusts the remotes already configured in the
	// working copy instead of comparing them with Remote.
	SkipRemoteCheck bool
}

func (GitSource) kind() Kind { return GitCheckout }

// LinkSource describes a book that is a symbolic link.
type LinkSource struct {
	Target string
}

func (LinkSource) kind() Kind { return SymbolicLink }

// Declaration is one shelf entry as written in the manifest.
type Declaration struct {
	Path             string
	Git              string
	Link             string
	Branch           string
	SkipRepoURLCheck bool
}

// Book is one declared entry of a shelf, bound to its on-disk location.
type Book struct {
	declaredPath string
	path         string
	source       Source
}

// New builds a Book from a declaration. root, when non-empty, rebases the
// declared path underneath it (see EffectivePath). Declarations that set
// both or neither of git and link fail with a *ConfigurationError.
func New(d Declaration, root string) (*Book, error) {
	if strings.TrimSpace(d.Path) == "" {
		return nil, &ConfigurationError{Path: d.Path, Reason: "path is required"}
	}

	var src Source
	switch {
	case d.Git != "" && d.Link != "":
		return nil, &ConfigurationError{Path: d.Path, Reason: "both git and link are set"}
	case d.Git != "":
		rev := d.Branch
		if rev == "" {
			rev = DefaultRevision
		}
		src = GitSource{Remote: d.Git, Revision: rev, SkipRemoteCheck: d.SkipRepoURLCheck}
	case d.Link != "":
		src = LinkSource{Target: d.Link}
	default:
		return nil, &ConfigurationError{Path: d.Path, Reason: "book is neither git nor link"}
	}

	return &Book{
		declaredPath: d.Path,
		path:         EffectivePath(d.Path, root),
		source:       src,
	}, nil
}

// Path returns the effective on-disk location of the book.
func (b *Book) Path() string { return b.path }

// DeclaredPath returns the path as written in the manifest.
func (b *Book) DeclaredPath() string { return b.declaredPath }

// Kind returns the book's variant.
func (b *Book) Kind() Kind { return b.source.kind() }

// Source returns the book's desired state.
func (b *Book) Source() Source { return b.source }

// VCS is the version-control capability books are reconciled with.
// git.ShellClient implements it.
type VCS interface {
	Clone(ctx context.Context, remote, dest string) error
	Fetch(ctx context.Context, repo string) error
	Checkout(ctx context.Context, repo, revision string) error
	Describe(ctx context.Context, repo string) (string, error)
	HeadRefs(ctx context.Context, repo string) ([]string, error)
	HeadCommit(ctx context.Context, repo string) (string, error)
	Remotes(ctx context.Context, repo string) ([]git.Remote, error)
	Status(ctx context.Context, repo string) (string, error)
}

// Filesystem is the filesystem capability books are reconciled with.
// fsys.OS implements it.
type Filesystem interface {
	Exists(path string) (bool, error)
	IsSymlink(path string) (bool, error)
	MkdirAll(path string) error
	Symlink(target, path string) error
	Readlink(path string) (string, error)
}

// Env bundles the collaborators a book operation runs against.
type Env struct {
	VCS    VCS
	FS     Filesystem
	Logger *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Outcome summarizes what an operation found or did to a book.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeMatched   Outcome = "matched"
	OutcomeDiverged  Outcome = "diverged"
	OutcomeMissing   Outcome = "missing"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Result is the report for one book operation. Warnings are advisory and
// never imply failure.
type Result struct {
	Outcome  Outcome
	Detail   string
	Warnings []string
}

func (r Result) failed() Result {
	r.Outcome = OutcomeFailed
	return r
}
