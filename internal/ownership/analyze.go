package ownership

import (
	"fmt"
	"time"

	"rill/internal/diag"
	"rill/internal/observ"
	"rill/internal/tir"
)

// DefaultMaxDiagnostics caps the per-function diagnostic batch.
const DefaultMaxDiagnostics = 100

// Options tunes one analysis run.
type Options struct {
	// MaxDiagnostics caps the bag; 0 means DefaultMaxDiagnostics.
	MaxDiagnostics int
	// Timer, when non-nil, accumulates per-phase durations. It may be
	// shared across concurrently analyzed functions.
	Timer *observ.Timer
}

// CleanupStep is one teardown directive: release the binding's storage.
// Steps inside a region's list run in reverse declaration order, and a
// region's list runs only after all of its child regions are done.
type CleanupStep struct {
	Binding tir.BindingID
	Name    string
}

// MemoryAnalysis is the proof artifact handed to code generation: the
// final ownership assignment per binding, the region tree, and per-region
// cleanup instructions in teardown order. It proves validity only - the
// generator still chooses stack allocation, pointer passing, or anything
// else it likes.
type MemoryAnalysis struct {
	Func      string
	Ownership []Ownership
	Patterns  []Pattern
	Regions   []Region
	Cleanup   [][]CleanupStep
	Edges     []Edge
}

// Analyze runs the full inference pipeline over one typed function:
// usage classification, ownership graph construction, region allocation,
// and borrow checking. It is a pure function of fn; identical input yields
// an identical analysis and an identically ordered bag. The analysis is
// nil when the bag contains errors.
func Analyze(fn *tir.Func, opts Options) (*MemoryAnalysis, *diag.Bag) {
	maxDiags := opts.MaxDiagnostics
	if maxDiags <= 0 {
		maxDiags = DefaultMaxDiagnostics
	}
	bag := diag.NewBag(maxDiags)

	// Trees built through FuncBuilder are well-formed by construction, but
	// snapshots decoded from disk are not; refuse them instead of indexing
	// out of range mid-pass.
	if err := fn.Validate(); err != nil {
		bag.Add(diag.NewError(diag.MemInternalInvalid, fn.Span,
			fmt.Sprintf("internal: malformed typed tree: %v", err)))
		return nil, bag
	}

	mark := time.Now()
	phase := func(name string) {
		if opts.Timer != nil {
			opts.Timer.Observe(name, time.Since(mark))
		}
		mark = time.Now()
	}

	pt := assignPoints(fn)
	u := AnalyzeUsage(fn, pt)
	phase("usage patterns")
	t := BuildRegions(fn, pt)
	phase("region allocation")
	g := BuildGraph(fn, u, t, pt, diag.BagReporter{Bag: bag})
	phase("ownership graph")
	analysis := Check(fn, u, t, g, bag)
	phase("borrow check")

	bag.Sort()
	bag.Dedup()
	return analysis, bag
}

func assemble(fn *tir.Func, u *Usage, t *Tree, g *Graph) *MemoryAnalysis {
	cleanup := make([][]CleanupStep, len(t.Regions))
	for r := 1; r < len(t.Regions); r++ {
		order := t.Cleanup(RegionID(r))
		steps := make([]CleanupStep, len(order))
		for i, b := range order {
			steps[i] = CleanupStep{Binding: b, Name: fn.Binding(b).Name}
		}
		cleanup[r] = steps
	}
	return &MemoryAnalysis{
		Func:      fn.Name,
		Ownership: g.Ownership,
		Patterns:  u.Patterns,
		Regions:   t.Regions,
		Cleanup:   cleanup,
		Edges:     g.Edges,
	}
}
