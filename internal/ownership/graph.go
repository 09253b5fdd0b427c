package ownership

import (
	"fmt"
	"sort"

	"rill/internal/diag"
	"rill/internal/source"
	"rill/internal/tir"
)

// EdgeKind is the closed set of ownership-edge variants. Plain reads and
// writes become point-sized shared/mutable borrow edges, so the checker's
// interval sweep sees every access to a binding uniformly.
type EdgeKind uint8

const (
	EdgeBorrow EdgeKind = iota
	EdgeMutBorrow
	EdgeMove
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeBorrow:
		return "borrow"
	case EdgeMutBorrow:
		return "mut_borrow"
	case EdgeMove:
		return "move"
	default:
		return "?"
	}
}

// Exclusive reports whether the edge demands sole access to its binding
// for the duration of its interval.
func (k EdgeKind) Exclusive() bool {
	return k == EdgeMutBorrow || k == EdgeMove
}

// Edge is a directed move/borrow relation from a binding to a use-site.
type Edge struct {
	Binding  tir.BindingID
	Node     tir.NodeID
	Kind     EdgeKind
	Span     source.Span
	Interval Interval
	// Dest is the binding storing a taken borrow; invalid for plain
	// accesses, moves, and borrows consumed immediately (call arguments).
	Dest     tir.BindingID
	Returned bool
	// Spawn is the task whose timeline the access runs in, NoNodeID for the
	// spawner's own. Ownership transfers fire at the spawn point, so their
	// edges carry the context containing the spawn, not the task itself.
	Spawn tir.NodeID
}

// Violation is a candidate use-after-move materialized by the builder and
// confirmed by the checker.
type Violation struct {
	Binding  tir.BindingID
	Span     source.Span // offending use
	MoveSpan source.Span // the move point it cites
}

// Graph is the per-function ownership graph: final state per binding plus
// one edge per use-site, ordered by program point.
type Graph struct {
	Ownership []Ownership
	// Ambiguous marks Complex bindings whose conservative fallback was not
	// settled by an explicit marker; the checker scrutinizes and reports
	// these as warnings.
	Ambiguous  []bool
	Edges      []Edge
	Candidates []Violation
}

// BuildGraph maps usage patterns to ownership assignments, applies
// explicit markers, and materializes edges and move points. Skipped
// bindings are surfaced through rep.
func BuildGraph(fn *tir.Func, u *Usage, t *Tree, pt *pointTable, rep diag.Reporter) *Graph {
	n := len(fn.Bindings)
	g := &Graph{
		Ownership: make([]Ownership, n),
		Ambiguous: make([]bool, n),
	}

	for i := 1; i < n; i++ {
		b := tir.BindingID(i)
		bind := fn.Binding(b)
		if !bind.Type.IsValid() {
			// Unresolved type (interactive context): skip the binding
			// instead of failing the whole pass.
			rep.Report(diag.MemUnresolvedType, diag.SevInfo, bind.Span,
				fmt.Sprintf("type of '%s' is unresolved; memory analysis skips it", bindingName(bind)), nil)
			continue
		}
		g.Ownership[i] = inferOwnership(bind, u, b)
		g.Ambiguous[i] = u.Patterns[i] == PatternComplex && !g.Ownership[i].Explicit()
		g.buildEdges(fn, u, t, pt, b)
	}

	g.spawnTransfers(fn, pt)
	g.transferCandidates(fn, u)
	g.loopCandidates(fn, u)

	sort.SliceStable(g.Edges, func(i, j int) bool {
		if g.Edges[i].Interval.Start != g.Edges[j].Interval.Start {
			return g.Edges[i].Interval.Start < g.Edges[j].Interval.Start
		}
		return g.Edges[i].Binding < g.Edges[j].Binding
	})
	return g
}

func bindingName(b *tir.Binding) string {
	if b.Name != "" {
		return b.Name
	}
	return "_"
}

// inferOwnership picks the binding-level state: an explicit marker always
// wins, otherwise the usage pattern decides, with Complex falling back to
// mutable borrow only when a write exists.
func inferOwnership(bind *tir.Binding, u *Usage, b tir.BindingID) Ownership {
	if bind.IsParam && bind.Param != tir.MarkerNone {
		return explicitFor(bind.Param)
	}
	if m := strongestMarker(u.Sites[b]); m != tir.MarkerNone {
		return explicitFor(m)
	}
	switch u.Patterns[b] {
	case PatternReadOnly:
		return OwnershipAutoBorrowed
	case PatternMutating:
		return OwnershipAutoMutBorrowed
	case PatternConsuming:
		return OwnershipAutoOwned
	default: // PatternComplex
		if u.HasWrite(b) {
			return OwnershipAutoMutBorrowed
		}
		return OwnershipAutoBorrowed
	}
}

func explicitFor(m tir.Marker) Ownership {
	switch m {
	case tir.MarkerMove:
		return OwnershipExplicitMove
	case tir.MarkerBorrow:
		return OwnershipExplicitBorrow
	case tir.MarkerBorrowMut:
		return OwnershipExplicitMutBorrow
	case tir.MarkerInout:
		return OwnershipExplicitInout
	default:
		return OwnershipUnknown
	}
}

func strongestMarker(sites []Site) tir.Marker {
	order := func(m tir.Marker) int {
		switch m {
		case tir.MarkerMove:
			return 4
		case tir.MarkerInout:
			return 3
		case tir.MarkerBorrowMut:
			return 2
		case tir.MarkerBorrow:
			return 1
		default:
			return 0
		}
	}
	best := tir.MarkerNone
	for _, s := range sites {
		if order(s.Marker) > order(best) {
			best = s.Marker
		}
	}
	return best
}

func (g *Graph) buildEdges(fn *tir.Func, u *Usage, t *Tree, pt *pointTable, b tir.BindingID) {
	for _, site := range u.Sites[b] {
		kind := edgeKindFor(site)
		e := Edge{
			Binding:  b,
			Node:     site.Node,
			Kind:     kind,
			Span:     site.Span,
			Interval: Interval{Start: site.Point, End: site.Point},
			Dest:     site.Dest,
			Returned: site.Returned,
			Spawn:    site.Spawn,
		}
		if kind != EdgeMove {
			switch {
			case site.Returned:
				// The borrow lives into the caller.
				e.Interval.End = pt.max()
			case site.Dest.IsValid() && t.Of[site.Dest].IsValid():
				// A stored borrow stays alive to the end of the region
				// that owns the reference binding.
				e.Interval.End = t.Region(t.Of[site.Dest]).Last
			}
		}
		if e.Interval.End < e.Interval.Start {
			e.Interval.End = e.Interval.Start
		}
		g.Edges = append(g.Edges, e)

		if site.AfterMove {
			g.Candidates = append(g.Candidates, Violation{
				Binding:  b,
				Span:     site.Span,
				MoveSpan: site.MovedAt,
			})
		}
	}
}

// edgeKindFor resolves the effective edge for a use-site: an explicit
// marker overrides the inferred default for that site.
func edgeKindFor(site Site) EdgeKind {
	switch site.Marker {
	case tir.MarkerMove:
		return EdgeMove
	case tir.MarkerBorrow:
		return EdgeBorrow
	case tir.MarkerBorrowMut, tir.MarkerInout:
		return EdgeMutBorrow
	}
	switch site.Kind {
	case tir.UseMove:
		return EdgeMove
	case tir.UseBorrowMut, tir.UseWrite:
		return EdgeMutBorrow
	default: // UseRead, UseBorrow
		return EdgeBorrow
	}
}

// spawnTransfers emits one ownership-transfer edge per binding moved into
// a spawned task, anchored at the spawn point. The transfer executes on the
// spawner's side of the boundary, so the edge sweeps against the spawner's
// borrows: moving a value into a task while it is borrowed conflicts the
// same way a plain move does.
func (g *Graph) spawnTransfers(fn *tir.Func, pt *pointTable) {
	ctx := enclosingSpawns(fn)
	for id := 1; id < len(fn.Nodes); id++ {
		n := &fn.Nodes[id]
		if n.Kind != tir.NodeSpawn || len(n.Moves) == 0 {
			continue
		}
		p := pt.at(tir.NodeID(id))
		for _, b := range n.Moves {
			if !b.IsValid() || !fn.Binding(b).Type.IsValid() {
				continue
			}
			g.Edges = append(g.Edges, Edge{
				Binding:  b,
				Node:     tir.NodeID(id),
				Kind:     EdgeMove,
				Span:     n.Span,
				Interval: Interval{Start: p, End: p},
				Spawn:    ctx[tir.NodeID(id)],
			})
		}
	}
}

// enclosingSpawns maps each spawn node to the spawn whose body contains it,
// NoNodeID for spawns in the function's own timeline.
func enclosingSpawns(fn *tir.Func) map[tir.NodeID]tir.NodeID {
	ctx := make(map[tir.NodeID]tir.NodeID)
	var walk func(id, cur tir.NodeID)
	walk = func(id, cur tir.NodeID) {
		if !id.IsValid() {
			return
		}
		n := fn.Node(id)
		if n.Kind == tir.NodeSpawn {
			ctx[id] = cur
			cur = id
		}
		for _, kid := range n.Kids {
			walk(kid, cur)
		}
	}
	walk(fn.Body, tir.NoNodeID)
	return ctx
}

// transferCandidates confirms spawn transfers of values already moved on a
// path reaching the spawn: the transfer consumes dead storage.
func (g *Graph) transferCandidates(fn *tir.Func, u *Usage) {
	for _, tm := range u.TransferMoves {
		if !fn.Binding(tm.Binding).Type.IsValid() {
			continue
		}
		g.Candidates = append(g.Candidates, Violation{
			Binding:  tm.Binding,
			Span:     tm.Span,
			MoveSpan: tm.MovedAt,
		})
	}
}

// loopCandidates turns moves that repeat across loop iterations into
// use-after-move candidates citing the move against itself.
func (g *Graph) loopCandidates(fn *tir.Func, u *Usage) {
	for _, lm := range u.LoopMoves {
		if !fn.Binding(lm.Binding).Type.IsValid() {
			continue
		}
		g.Candidates = append(g.Candidates, Violation{
			Binding:  lm.Binding,
			Span:     lm.Span,
			MoveSpan: lm.Span,
		})
	}
}
