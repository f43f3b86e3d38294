package shelf

import (
	"fmt"

	"github.com/schaermu/gitshelf/internal/book"
)

// Result is the outcome of one book in a shelf run.
type Result struct {
	Index    int // position in the manifest
	Path     string
	Kind     string // empty when the book could not be built
	Outcome  book.Outcome
	Detail   string
	Warnings []string
	Err      error
}

// Report collects the results of a shelf run in manifest order.
type Report struct {
	Mode    Mode
	Results []Result
}

var outcomeOrder = []book.Outcome{
	book.OutcomeCreated,
	book.OutcomeUpdated,
	book.OutcomeUnchanged,
	book.OutcomeMatched,
	book.OutcomeDiverged,
	book.OutcomeMissing,
	book.OutcomeSkipped,
	book.OutcomeFailed,
}

// Counts returns how many books ended in each outcome.
func (r *Report) Counts() map[book.Outcome]int {
	counts := make(map[book.Outcome]int)
	for _, res := range r.Results {
		counts[res.Outcome]++
	}
	return counts
}

// Failed returns the number of books that failed.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == book.OutcomeFailed {
			n++
		}
	}
	return n
}

// Warnings returns the number of advisory warnings across all books.
func (r *Report) Warnings() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Warnings)
	}
	return n
}

// Err returns a non-nil error when at least one book failed.
func (r *Report) Err() error {
	if failed := r.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d books failed", failed, len(r.Results))
	}
	return nil
}
