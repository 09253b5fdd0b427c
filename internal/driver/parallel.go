package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"rill/internal/diag"
	"rill/internal/observ"
	"rill/internal/ownership"
	"rill/internal/project"
	"rill/internal/tir"
)

// FuncResult is the analyzer output for one function.
type FuncResult struct {
	Name     string
	Analysis *ownership.MemoryAnalysis // nil when the function has violations
	Bag      *diag.Bag
	Cached   bool
}

// ModuleResult aggregates per-function results in declaration order plus a
// merged, sorted diagnostic bag for rendering.
type ModuleResult struct {
	Module  string
	Results []FuncResult
	Bag     *diag.Bag
}

// Options tunes a module analysis run.
type Options struct {
	// MaxDiagnostics caps each function's bag; 0 means the analyzer default.
	MaxDiagnostics int
	// Jobs bounds parallelism; 0 means one worker per CPU.
	Jobs int
	// Cache, when non-nil, short-circuits unchanged functions.
	Cache *DiskCache
	// Timer, when non-nil, accumulates per-phase durations across all
	// analyzed functions.
	Timer *observ.Timer
}

// AnalyzeModule analyzes every function of the module, fanning out across
// workers. Functions are independent, so results land in an indexed slice
// and no ordering is lost: the merged bag is identical for any jobs count.
func AnalyzeModule(ctx context.Context, mod *tir.Module, opts Options) (*ModuleResult, error) {
	maxDiags := opts.MaxDiagnostics
	if maxDiags <= 0 {
		maxDiags = ownership.DefaultMaxDiagnostics
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]FuncResult, len(mod.Funcs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, max(len(mod.Funcs), 1)))

	for i := range mod.Funcs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			// Index i is unique per goroutine, no mutex needed.
			results[i] = analyzeFunc(&mod.Funcs[i], maxDiags, opts.Cache, opts.Timer)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := diag.NewBag(maxDiags)
	for i := range results {
		merged.Merge(results[i].Bag)
	}
	merged.Sort()

	return &ModuleResult{
		Module:  mod.Name,
		Results: results,
		Bag:     merged,
	}, nil
}

func analyzeFunc(fn *tir.Func, maxDiags int, cache *DiskCache, timer *observ.Timer) FuncResult {
	res := FuncResult{Name: fn.Name}

	var key project.Digest
	var content project.Digest
	haveKey := false
	corrupt := false
	if cache != nil {
		if digest, err := FuncDigest(fn); err == nil {
			content = digest
			key = cacheKey(content, maxDiags)
			haveKey = true

			var payload CachePayload
			ok, err := cache.Get(key, &payload)
			switch {
			case ok && payload.ContentHash == content:
				bag := diag.NewBag(maxDiags)
				for _, d := range payload.Diags {
					bag.Add(d)
				}
				res.Analysis = payload.Analysis
				res.Bag = bag
				res.Cached = true
				return res
			case err != nil && !errors.Is(err, errCacheSchema):
				// Genuinely broken entry: recompute, overwrite, and say so.
				// A stale schema is a silent miss.
				corrupt = true
			}
		}
	}

	analysis, bag := ownership.Analyze(fn, ownership.Options{MaxDiagnostics: maxDiags, Timer: timer})
	res.Analysis = analysis
	res.Bag = bag

	if haveKey {
		payload := &CachePayload{
			Schema:      cacheSchemaVersion,
			Func:        fn.Name,
			ContentHash: content,
			Analysis:    analysis,
			Diags:       append([]diag.Diagnostic(nil), bag.Items()...),
		}
		// Best effort: a failed write only costs the next run a recompute.
		_ = cache.Put(key, payload)
	}
	if corrupt {
		// After Put, so the fresh entry replays without this notice.
		bag.Add(diag.New(diag.SevInfo, diag.IOCacheCorrupt, fn.Span,
			fmt.Sprintf("cached analysis for '%s' was corrupt and has been recomputed", fn.Name)))
		bag.Sort()
	}
	return res
}
