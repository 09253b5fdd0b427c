package ownership

import (
	"rill/internal/source"
	"rill/internal/tir"
)

// Site is one use of a binding, in control-flow order.
type Site struct {
	Node     tir.NodeID
	Point    Point
	Kind     tir.UseKind
	Marker   tir.Marker
	Span     source.Span
	Dest     tir.BindingID
	Returned bool
	// Spawn is the innermost enclosing spawn node, NoNodeID outside tasks.
	Spawn tir.NodeID
	// AfterMove marks a use reachable after a move of the same binding on
	// the same path with no intervening re-initialization; MovedAt is that
	// move's location.
	AfterMove bool
	MovedAt   source.Span
}

// Consumes reports whether the site takes ownership: either the use-site
// tag says so or an explicit move marker overrides it.
func (s Site) Consumes() bool {
	return s.Kind == tir.UseMove || s.Marker == tir.MarkerMove
}

// Usage is the analyzer output: a pattern per binding plus the ordered
// use-site lists. All slices are indexed by BindingID (slot 0 unused).
type Usage struct {
	Patterns []Pattern
	Sites    [][]Site
	// Conflicted marks bindings whose branches disagreed (moved on one
	// path, used on another); these are the Complex ones.
	Conflicted []bool
	// LoopMoves records moves, inside a loop body, of bindings declared
	// outside the loop: the move conflicts with itself on the next
	// iteration.
	LoopMoves []LoopMove
	// TransferMoves records spawn transfers of bindings already moved on a
	// path reaching the spawn.
	TransferMoves []TransferMove
	writes        []bool
	moves         []bool
}

// LoopMove is a move that repeats across loop iterations.
type LoopMove struct {
	Binding tir.BindingID
	Span    source.Span
}

// TransferMove is an ownership transfer into a task of a value whose
// storage is already dead at the spawn point.
type TransferMove struct {
	Binding tir.BindingID
	Span    source.Span // the spawn
	MovedAt source.Span // the earlier move
}

// flowState is the path-sensitive move state threaded through the walk.
// movedSome holds bindings moved on at least one path reaching the current
// program point, movedAll those moved on every such path.
type flowState struct {
	movedSome map[tir.BindingID]source.Span
	movedAll  map[tir.BindingID]source.Span
}

func newFlowState() *flowState {
	return &flowState{
		movedSome: make(map[tir.BindingID]source.Span),
		movedAll:  make(map[tir.BindingID]source.Span),
	}
}

func (st *flowState) clone() *flowState {
	out := newFlowState()
	for k, v := range st.movedSome {
		out.movedSome[k] = v
	}
	for k, v := range st.movedAll {
		out.movedAll[k] = v
	}
	return out
}

func (st *flowState) markMoved(b tir.BindingID, span source.Span) {
	if _, ok := st.movedSome[b]; !ok {
		st.movedSome[b] = span
	}
	if _, ok := st.movedAll[b]; !ok {
		st.movedAll[b] = span
	}
}

func (st *flowState) clearMoved(b tir.BindingID) {
	delete(st.movedSome, b)
	delete(st.movedAll, b)
}

// subtree summarizes what happened inside one walked subtree, for branch
// and loop joins.
type subtree struct {
	moved map[tir.BindingID]source.Span
	used  map[tir.BindingID]struct{}
	decl  map[tir.BindingID]struct{}
}

func newSubtree() subtree {
	return subtree{
		moved: make(map[tir.BindingID]source.Span),
		used:  make(map[tir.BindingID]struct{}),
		decl:  make(map[tir.BindingID]struct{}),
	}
}

func (s *subtree) absorb(o subtree) {
	for k, v := range o.moved {
		if _, ok := s.moved[k]; !ok {
			s.moved[k] = v
		}
	}
	for k := range o.used {
		s.used[k] = struct{}{}
	}
	for k := range o.decl {
		s.decl[k] = struct{}{}
	}
}

type usageAnalyzer struct {
	fn         *tir.Func
	pt         *pointTable
	usage      *Usage
	spawnStack []tir.NodeID
}

// AnalyzeUsage classifies every binding of fn from its use-sites, walking
// branches as alternative paths and loop bodies as potentially repeated.
func AnalyzeUsage(fn *tir.Func, pt *pointTable) *Usage {
	n := len(fn.Bindings)
	ua := &usageAnalyzer{
		fn: fn,
		pt: pt,
		usage: &Usage{
			Patterns:   make([]Pattern, n),
			Sites:      make([][]Site, n),
			Conflicted: make([]bool, n),
			writes:     make([]bool, n),
			moves:      make([]bool, n),
		},
	}
	ua.walk(fn.Body, newFlowState())
	ua.classify()
	return ua.usage
}

func (ua *usageAnalyzer) currentSpawn() tir.NodeID {
	if len(ua.spawnStack) == 0 {
		return tir.NoNodeID
	}
	return ua.spawnStack[len(ua.spawnStack)-1]
}

func (ua *usageAnalyzer) walk(id tir.NodeID, st *flowState) subtree {
	sum := newSubtree()
	if !id.IsValid() {
		return sum
	}
	n := ua.fn.Node(id)
	switch n.Kind {
	case tir.NodeDecl:
		// Re-declaration re-initializes: later uses are valid again.
		st.clearMoved(n.Binding)
		sum.decl[n.Binding] = struct{}{}

	case tir.NodeUse:
		ua.visitUse(id, n, st, &sum)

	case tir.NodeBlock, tir.NodeRegion:
		for _, kid := range n.Kids {
			sum.absorb(ua.walk(kid, st))
		}

	case tir.NodeBranch:
		ua.visitBranch(n, st, &sum)

	case tir.NodeLoop:
		ua.visitLoop(n, st, &sum)

	case tir.NodeSpawn:
		ua.visitSpawn(id, n, st, &sum)
	}
	return sum
}

func (ua *usageAnalyzer) visitUse(id tir.NodeID, n *tir.Node, st *flowState, sum *subtree) {
	b := n.Binding
	site := Site{
		Node:     id,
		Point:    ua.pt.at(id),
		Kind:     n.Use,
		Marker:   n.Marker,
		Span:     n.Span,
		Dest:     n.Dest,
		Returned: n.Returned,
		Spawn:    ua.currentSpawn(),
	}
	ua.usage.Sites[b] = append(ua.usage.Sites[b], site)

	// A use on a path where the value was moved on some but not all
	// predecessors is a cross-branch requirement conflict.
	if movedAt, some := st.movedSome[b]; some {
		if _, all := st.movedAll[b]; !all {
			ua.usage.Conflicted[b] = true
		}
		// Anything but a full reassignment touches dead storage here.
		if n.Use != tir.UseWrite {
			site.AfterMove = true
			site.MovedAt = movedAt
			last := len(ua.usage.Sites[b]) - 1
			ua.usage.Sites[b][last] = site
		}
	}

	if site.Consumes() {
		ua.usage.moves[b] = true
		st.markMoved(b, n.Span)
		sum.moved[b] = n.Span
		return
	}
	sum.used[b] = struct{}{}
	switch n.Use {
	case tir.UseWrite:
		ua.usage.writes[b] = true
		// A full reassignment re-initializes the storage.
		st.clearMoved(b)
	case tir.UseBorrowMut:
		ua.usage.writes[b] = true
	}
}

func (ua *usageAnalyzer) visitBranch(n *tir.Node, st *flowState, sum *subtree) {
	type armResult struct {
		st  *flowState
		sum subtree
	}
	arms := make([]armResult, 0, len(n.Kids))
	for _, arm := range n.Kids {
		armSt := st.clone()
		armSum := ua.walk(arm, armSt)
		arms = append(arms, armResult{st: armSt, sum: armSum})
	}

	// Moved in one arm, used in a sibling arm: conflicting requirements.
	for i := range arms {
		for b := range arms[i].sum.moved {
			for j := range arms {
				if i == j {
					continue
				}
				if _, used := arms[j].sum.used[b]; used {
					ua.usage.Conflicted[b] = true
				}
			}
		}
	}

	// Join: movedSome is the union, movedAll the intersection across arms
	// (an empty branch list leaves the state untouched).
	if len(arms) == 0 {
		return
	}
	joinedSome := make(map[tir.BindingID]source.Span)
	joinedAll := make(map[tir.BindingID]source.Span)
	for i := range arms {
		for b, sp := range arms[i].st.movedSome {
			if _, ok := joinedSome[b]; !ok {
				joinedSome[b] = sp
			}
		}
	}
	for b, sp := range arms[0].st.movedAll {
		inAll := true
		for i := 1; i < len(arms); i++ {
			if _, ok := arms[i].st.movedAll[b]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			joinedAll[b] = sp
		}
	}
	st.movedSome = joinedSome
	st.movedAll = joinedAll
	for i := range arms {
		sum.absorb(arms[i].sum)
	}
}

func (ua *usageAnalyzer) visitLoop(n *tir.Node, st *flowState, sum *subtree) {
	// The body may run zero times, so movedAll cannot grow, and it may run
	// repeatedly, so a move of a binding declared outside the loop
	// conflicts with the next iteration.
	before := st.clone()
	bodySum := newSubtree()
	for _, kid := range n.Kids {
		bodySum.absorb(ua.walk(kid, st))
	}
	// Iterate by binding index so LoopMoves order is deterministic.
	for i := 1; i < len(ua.fn.Bindings); i++ {
		b := tir.BindingID(i)
		sp, moved := bodySum.moved[b]
		if !moved {
			continue
		}
		if _, declaredInside := bodySum.decl[b]; declaredInside {
			continue
		}
		ua.usage.Conflicted[b] = true
		ua.usage.LoopMoves = append(ua.usage.LoopMoves, LoopMove{Binding: b, Span: sp})
		if _, ok := st.movedSome[b]; !ok {
			st.movedSome[b] = sp
		}
	}
	// Restore movedAll to the zero-iteration state, keep the union side.
	st.movedAll = before.movedAll
	for b, sp := range before.movedSome {
		if _, ok := st.movedSome[b]; !ok {
			st.movedSome[b] = sp
		}
	}
	sum.absorb(bodySum)
}

func (ua *usageAnalyzer) visitSpawn(id tir.NodeID, n *tir.Node, st *flowState, sum *subtree) {
	// Ownership of n.Moves transfers into the task at the spawn point:
	// inside the body those bindings start fresh, on the continuation they
	// are moved.
	bodySt := st.clone()
	for _, b := range n.Moves {
		bodySt.clearMoved(b)
	}
	ua.spawnStack = append(ua.spawnStack, id)
	bodySum := newSubtree()
	for _, kid := range n.Kids {
		bodySum.absorb(ua.walk(kid, bodySt))
	}
	ua.spawnStack = ua.spawnStack[:len(ua.spawnStack)-1]

	for _, b := range n.Moves {
		// The transfer is itself a consuming use: moving a value that some
		// path already moved touches dead storage.
		if movedAt, some := st.movedSome[b]; some {
			if _, all := st.movedAll[b]; !all {
				ua.usage.Conflicted[b] = true
			}
			ua.usage.TransferMoves = append(ua.usage.TransferMoves,
				TransferMove{Binding: b, Span: n.Span, MovedAt: movedAt})
		}
		ua.usage.moves[b] = true
		st.markMoved(b, n.Span)
		sum.moved[b] = n.Span
	}
	sum.absorb(bodySum)
}

func (ua *usageAnalyzer) classify() {
	u := ua.usage
	for b := 1; b < len(ua.fn.Bindings); b++ {
		switch {
		case u.Conflicted[b]:
			u.Patterns[b] = PatternComplex
		case u.moves[b]:
			u.Patterns[b] = PatternConsuming
		case u.writes[b]:
			u.Patterns[b] = PatternMutating
		default:
			u.Patterns[b] = PatternReadOnly
		}
	}
}

// HasWrite reports whether any use-site writes to or mutably borrows the
// binding; the Complex fallback keys off this.
func (u *Usage) HasWrite(b tir.BindingID) bool {
	return u.writes[int(b)]
}
