// Package evaluate runs a pool of candidate (filter, bit depth, color type)
// trial compressions concurrently and deterministically picks the winner,
// per spec.md's Main Optimizer evaluation step.
package evaluate

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/XC-Zero/pngshrink/internal/filter"
	"github.com/XC-Zero/pngshrink/internal/pngimage"
)

// Candidate is one trial's result: the filtered+compressed output plus
// enough metadata to compare it against every other trial.
type Candidate struct {
	Filter    filter.RowFilter
	BitDepth  uint8
	ColorType string

	IDATLen int
	RawLen  int

	// Nth is this trial's position in deterministic submission order; it
	// breaks ties between two trials that otherwise compare equal, so the
	// winner never depends on goroutine scheduling.
	Nth int

	IDAT  []byte
	Image *pngimage.PngImage
}

// Less implements the lexicographic ordering spec.md's evaluator uses:
// smaller compressed size wins; ties broken by raw (pre-compression) size,
// then bit depth, then filter enum value, then submission order.
func (c Candidate) Less(o Candidate) bool {
	if c.IDATLen != o.IDATLen {
		return c.IDATLen < o.IDATLen
	}
	if c.RawLen != o.RawLen {
		return c.RawLen < o.RawLen
	}
	if c.BitDepth != o.BitDepth {
		return c.BitDepth < o.BitDepth
	}
	if c.Filter != o.Filter {
		return c.Filter < o.Filter
	}
	return c.Nth < o.Nth
}

// Trial produces one Candidate, or (Candidate{}, false) if it was aborted
// (e.g. the running best bound made it unwinnable, or a deadline fired).
type Trial func(ctx context.Context, bound *AtomicMin, nth int) (Candidate, bool)

// Run executes trials concurrently, bounded by workers (0 means
// runtime.GOMAXPROCS(0)), and returns the winning Candidate. It returns
// ok=false only if every trial was aborted.
func Run(ctx context.Context, trials []Trial, workers int) (Candidate, bool) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	sem := semaphore.NewWeighted(int64(workers))
	bound := NewAtomicMin(maxCandidateSize)

	// Results are fanned in through a small bounded channel: trials never
	// block on each other, only briefly on this channel having room, which
	// keeps memory bounded even with a large trial set.
	results := make(chan Candidate, 4)
	winner := make(chan finalState, 1)

	go func() {
		var best Candidate
		haveBest := false
		for c := range results {
			if !haveBest || c.Less(best) {
				best, haveBest = c, true
			}
		}
		winner <- finalState{best, haveBest}
	}()

	for i, trial := range trials {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		i, trial := i, trial
		go func() {
			defer sem.Release(1)
			if c, ok := trial(ctx, bound, i); ok {
				bound.Update(int64(c.IDATLen))
				results <- c
			}
		}()
	}

	// Wait for every trial's goroutine to have released the semaphore,
	// i.e. for all workers to be idle, before closing results.
	// This uses a background context: a cancelled ctx would make Acquire
	// return at once, while trials may still be sending on results.
	_ = sem.Acquire(context.Background(), int64(workers))
	close(results)
	final := <-winner

	return final.candidate, final.ok
}

// maxCandidateSize seeds the running bound before any trial has completed;
// trials still compute their own size and only consult the bound to
// short-circuit a Fast deflate early (see internal/deflate.Backend).
const maxCandidateSize = int64(1) << 40

type finalState struct {
	candidate Candidate
	ok        bool
}
