// Package shelf drives reconcile or status over every book of a manifest and
// collects one result per book, in manifest order.
package shelf

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/schaermu/gitshelf/internal/book"
	"github.com/schaermu/gitshelf/internal/config"
)

// Mode selects the operation run on each book.
type Mode string

const (
	ModeReconcile Mode = "reconcile"
	ModeStatus    Mode = "status"
)

// Options tune a shelf run.
type Options struct {
	// Root rebases every book path underneath it.
	Root string
	// DryRun builds and reports books without reconciling them.
	DryRun bool
	// Jobs bounds how many books are processed at once. Values below 2
	// process books one after another.
	Jobs int
}

// Reconciler runs one operation across a shelf of books
type Reconciler struct {
	env  book.Env
	opts Options
}

// New creates a reconciler that operates through vcs and fs and reports
// every book outcome to logger.
func New(vcs book.VCS, fs book.Filesystem, logger *slog.Logger, opts Options) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		env:  book.Env{VCS: vcs, FS: fs, Logger: logger},
		opts: opts,
	}
}

// Run executes mode on every entry. A failing book is recorded in the
// report and never stops the remaining books.
func (r *Reconciler) Run(ctx context.Context, entries []config.Entry, mode Mode) *Report {
	log := r.env.Logger
	log.Info("starting shelf run",
		"mode", mode,
		"books", len(entries),
		"root", r.opts.Root,
		"dry_run", r.opts.DryRun,
		"jobs", r.opts.Jobs)

	report := &Report{Mode: mode, Results: make([]Result, len(entries))}

	if r.opts.Jobs < 2 {
		for i, entry := range entries {
			report.Results[i] = r.runOne(ctx, i, entry, mode)
			r.logResult(report.Results[i])
		}
	} else {
		// Each goroutine owns one slot of Results. Per-book lines are
		// logged after Wait so they come out in manifest order.
		g := new(errgroup.Group)
		g.SetLimit(r.opts.Jobs)
		for i, entry := range entries {
			g.Go(func() error {
				report.Results[i] = r.runOne(ctx, i, entry, mode)
				return nil
			})
		}
		_ = g.Wait()
		for _, res := range report.Results {
			r.logResult(res)
		}
	}

	counts := report.Counts()
	attrs := make([]any, 0, 2*len(counts)+2)
	attrs = append(attrs, "mode", mode)
	for _, outcome := range outcomeOrder {
		if n := counts[outcome]; n > 0 {
			attrs = append(attrs, string(outcome), n)
		}
	}
	if report.Failed() > 0 {
		log.Error("shelf run finished with failures", attrs...)
	} else {
		log.Info("shelf run finished", attrs...)
	}
	return report
}

func (r *Reconciler) runOne(ctx context.Context, i int, entry config.Entry, mode Mode) Result {
	res := Result{Index: i, Path: entry.Path}

	if err := ctx.Err(); err != nil {
		res.Outcome = book.OutcomeFailed
		res.Err = err
		return res
	}

	b, err := book.New(declaration(entry), r.opts.Root)
	if err != nil {
		res.Outcome = book.OutcomeFailed
		res.Err = err
		return res
	}
	res.Path = b.Path()
	res.Kind = b.Kind().String()

	var out book.Result
	switch mode {
	case ModeReconcile:
		if r.opts.DryRun {
			r.env.Logger.Info("[dry-run] would reconcile", "book", b.Path(), "kind", res.Kind)
			out = book.Result{Outcome: book.OutcomeSkipped}
			break
		}
		out, err = b.Reconcile(ctx, r.env)
	case ModeStatus:
		out, err = b.Status(ctx, r.env)
	default:
		out, err = book.Result{Outcome: book.OutcomeFailed}, fmt.Errorf("unknown mode %q", mode)
	}

	res.Outcome = out.Outcome
	res.Detail = out.Detail
	res.Warnings = out.Warnings
	res.Err = err
	if err != nil {
		res.Outcome = book.OutcomeFailed
	}
	return res
}

func (r *Reconciler) logResult(res Result) {
	attrs := []any{"book", res.Path, "outcome", res.Outcome}
	if res.Kind != "" {
		attrs = append(attrs, "kind", res.Kind)
	}
	if res.Err != nil {
		r.env.Logger.Error("book failed", append(attrs, "error", res.Err)...)
		return
	}
	for _, w := range res.Warnings {
		r.env.Logger.Warn("book warning", "book", res.Path, "warning", w)
	}
	r.env.Logger.Info("book done", attrs...)
}

func declaration(e config.Entry) book.Declaration {
	return book.Declaration{
		Path:             e.Path,
		Git:              e.Git,
		Link:             e.Link,
		Branch:           e.Branch,
		SkipRepoURLCheck: e.SkipRepoURLCheck,
	}
}
