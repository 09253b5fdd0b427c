package ownership

import (
	"fmt"
	"sort"

	"rill/internal/diag"
	"rill/internal/source"
	"rill/internal/tir"
)

// checker validates the ownership graph against the region tree. It always
// completes a full pass, emitting every violation through its reporter;
// fatality is the caller's call via bag.HasErrors.
type checker struct {
	fn  *tir.Func
	u   *Usage
	t   *Tree
	g   *Graph
	bag *diag.Bag
	rep diag.Reporter
}

// Check runs the borrow checker sweeps and, when the function is clean,
// assembles its MemoryAnalysis. On violations the analysis is withheld and
// only the diagnostic batch stands.
func Check(fn *tir.Func, u *Usage, t *Tree, g *Graph, bag *diag.Bag) *MemoryAnalysis {
	c := &checker{fn: fn, u: u, t: t, g: g, bag: bag, rep: diag.BagReporter{Bag: bag}}
	c.confirmMoveCandidates()
	c.sweepConflicts()
	c.checkEscapes()
	c.checkSpawnCaptures()
	c.reportAmbiguities()
	c.checkTeardown()

	if bag.HasErrors() {
		return nil
	}
	return assemble(fn, u, t, g)
}

func (c *checker) error(code diag.Code, span source.Span, msg string, notes ...diag.Note) {
	c.rep.Report(code, diag.SevError, span, msg, notes)
}

func (c *checker) warning(code diag.Code, span source.Span, msg string) {
	c.rep.Report(code, diag.SevWarning, span, msg, nil)
}

func (c *checker) name(b tir.BindingID) string {
	if !b.IsValid() || int(b) >= len(c.fn.Bindings) {
		return "_"
	}
	if n := c.fn.Binding(b).Name; n != "" {
		return n
	}
	return "_"
}

// confirmMoveCandidates turns the builder's use-after-move candidates into
// diagnostics. The flow walk already proved path reachability, so every
// candidate is a real violation.
func (c *checker) confirmMoveCandidates() {
	for _, v := range c.g.Candidates {
		name := c.name(v.Binding)
		if v.Span == v.MoveSpan {
			c.error(diag.MemUseAfterMove, v.Span,
				fmt.Sprintf("value '%s' is moved again on the next loop iteration", name),
				diag.Note{Span: v.MoveSpan, Msg: "moved here"})
			continue
		}
		c.error(diag.MemUseAfterMove, v.Span,
			fmt.Sprintf("use of moved value '%s'", name),
			diag.Note{Span: v.MoveSpan, Msg: fmt.Sprintf("value '%s' moved here", name)})
	}
}

// sweepConflicts runs the interval sweep per binding: intervals sorted by
// start point, active set pruned as the sweep advances, and any overlap
// involving an exclusive access is a conflict. Edges on opposite sides of
// a spawn boundary are excluded here; checkSpawnCaptures owns those. Spawn
// ownership transfers carry the spawner's timeline, so they sweep normally.
func (c *checker) sweepConflicts() {
	perBinding := make(map[tir.BindingID][]Edge)
	for _, e := range c.g.Edges {
		perBinding[e.Binding] = append(perBinding[e.Binding], e)
	}

	ids := make([]tir.BindingID, 0, len(perBinding))
	for b := range perBinding {
		ids = append(ids, b)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, b := range ids {
		edges := perBinding[b]
		sort.SliceStable(edges, func(i, j int) bool {
			return edges[i].Interval.Start < edges[j].Interval.Start
		})
		var active []Edge
		for _, e := range edges {
			// Prune intervals the sweep has passed.
			kept := active[:0]
			for _, a := range active {
				if a.Interval.End >= e.Interval.Start {
					kept = append(kept, a)
				}
			}
			active = kept

			for _, a := range active {
				if !a.Interval.Overlaps(e.Interval) {
					continue
				}
				if !a.Kind.Exclusive() && !e.Kind.Exclusive() {
					continue
				}
				if a.Spawn != e.Spawn {
					continue
				}
				c.reportConflict(b, a, e)
				break
			}
			active = append(active, e)
		}
	}
}

func (c *checker) reportConflict(b tir.BindingID, first, second Edge) {
	name := c.name(b)
	var msg string
	switch {
	case second.Kind == EdgeMove:
		msg = fmt.Sprintf("cannot move '%s' while it is borrowed", name)
	case second.Kind == EdgeMutBorrow && first.Kind == EdgeMutBorrow:
		msg = fmt.Sprintf("cannot take a second mutable borrow of '%s'", name)
	case second.Kind == EdgeMutBorrow:
		msg = fmt.Sprintf("cannot mutably access '%s' while it is borrowed", name)
	default:
		msg = fmt.Sprintf("cannot access '%s' while it is mutably borrowed", name)
	}
	note := fmt.Sprintf("conflicting access over points [%d, %d] starts here",
		first.Interval.Start, first.Interval.End)
	c.error(diag.MemConflictingBorrow, second.Span, msg,
		diag.Note{Span: first.Span, Msg: note})
}

// checkEscapes verifies every borrow's containing region is the same as or
// a descendant of the owner's region: the owner must outlive the borrow.
func (c *checker) checkEscapes() {
	for _, e := range c.g.Edges {
		if e.Kind == EdgeMove {
			continue
		}
		owner := c.t.Of[e.Binding]
		if !owner.IsValid() {
			continue
		}
		var containing RegionID
		switch {
		case e.Returned:
			containing = CallerRegionID
		case e.Dest.IsValid():
			containing = c.t.Of[e.Dest]
		default:
			// Transient borrow, dies at its own point; contained trivially.
			continue
		}
		if !containing.IsValid() || c.t.IsAncestorOrSelf(owner, containing) {
			continue
		}
		name := c.name(e.Binding)
		if e.Returned {
			c.error(diag.MemDanglingReference, e.Span,
				fmt.Sprintf("returned borrow outlives '%s'", name),
				diag.Note{Span: c.fn.Binding(e.Binding).Span,
					Msg: fmt.Sprintf("'%s' is destroyed when its region tears down", name)})
			continue
		}
		c.error(diag.MemRegionEscape, e.Span,
			fmt.Sprintf("borrow of '%s' escapes its region", name),
			diag.Note{Span: c.fn.Binding(e.Dest).Span,
				Msg: fmt.Sprintf("stored in '%s', which lives longer than '%s'", c.name(e.Dest), name)})
	}
}

// checkSpawnCaptures flags mutable borrows captured into a spawned task
// while the binding stays reachable from the spawner. A full ownership
// transfer (listed in the spawn's move set) legalizes the capture.
func (c *checker) checkSpawnCaptures() {
	for _, e := range c.g.Edges {
		if e.Kind != EdgeMutBorrow || !e.Spawn.IsValid() {
			continue
		}
		taskRegion, ok := c.t.SpawnRegion[e.Spawn]
		if !ok {
			continue
		}
		owner := c.t.Of[e.Binding]
		if !owner.IsValid() || c.t.IsAncestorOrSelf(taskRegion, owner) {
			// Declared inside the task: no sharing with the spawner.
			continue
		}
		if c.movedIntoSpawn(e.Spawn, e.Binding) {
			continue
		}
		name := c.name(e.Binding)
		c.error(diag.MemPossibleDataRace, e.Span,
			fmt.Sprintf("mutable borrow of '%s' crosses a spawn boundary while '%s' remains accessible to the spawner", name, name),
			diag.Note{Span: c.fn.Node(e.Spawn).Span,
				Msg: fmt.Sprintf("task spawned here; move '%s' into the task to transfer ownership", name)})
	}
}

func (c *checker) movedIntoSpawn(spawn tir.NodeID, b tir.BindingID) bool {
	for _, m := range c.fn.Node(spawn).Moves {
		if m == b {
			return true
		}
	}
	return false
}

// reportAmbiguities surfaces Complex bindings whose conservative fallback
// was not settled by an explicit marker. Warnings, not errors: the
// inference stays sound, just possibly over-restrictive.
func (c *checker) reportAmbiguities() {
	for i := 1; i < len(c.fn.Bindings); i++ {
		if !c.g.Ambiguous[i] {
			continue
		}
		b := tir.BindingID(i)
		name := c.name(b)
		c.warning(diag.MemAmbiguousUsage, c.fn.Binding(b).Span,
			fmt.Sprintf("usage of '%s' differs across branches; inferred %s conservatively",
				name, c.g.Ownership[i]))
	}
}

// checkTeardown asserts the allocator's own invariant: every binding sits
// in exactly one region, so teardown releases everything exactly once. A
// failure here is a bug in the allocator, not in the analyzed program.
func (c *checker) checkTeardown() {
	for _, b := range c.t.Unassigned() {
		c.error(diag.MemInternalLeak, c.fn.Binding(b).Span,
			fmt.Sprintf("internal: binding '%s' is not owned by any region", c.name(b)))
	}
}
