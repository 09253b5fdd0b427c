package ownership

import (
	"fmt"

	"fortio.org/safecast"

	"rill/internal/source"
	"rill/internal/tir"
)

// RegionID identifies a region in a function's lifetime tree.
type RegionID uint32

const (
	NoRegionID RegionID = 0
	// CallerRegionID is the pseudo-region that outlives the function: it
	// owns borrow/inout parameters and is where returned borrows land.
	CallerRegionID RegionID = 1
	// RootRegionID is the function body region.
	RootRegionID RegionID = 2
)

func (id RegionID) IsValid() bool { return id != NoRegionID }

// Region is one node of the lifetime hierarchy. Bindings are stored in
// declaration order; teardown is exactly the reverse, and child regions
// fully tear down before their parent begins.
type Region struct {
	ID       RegionID
	Parent   RegionID
	Kids     []RegionID
	Bindings []tir.BindingID
	Span     source.Span
	// First/Last bound the program points inside the region; Last is the
	// endpoint of every borrow stored in one of its bindings.
	First Point
	Last  Point
}

// Tree is the per-function region hierarchy. Regions is indexed by
// RegionID (slot 0 is a dummy); Of maps BindingID to its declaring region.
// Parent and Of links are plain indexes used for traversal only; ownership
// and teardown always follow the Kids/Bindings lists, which keeps the
// structure acyclic by construction.
type Tree struct {
	Regions []Region
	Of      []RegionID
	// SpawnRegion maps each spawn node to its task body region, for the
	// checker's capture containment test.
	SpawnRegion map[tir.NodeID]RegionID
}

// BuildRegions partitions fn into nested regions: the caller pseudo-region,
// the function body, and one region per lexical block, loop body, branch
// arm, spawn body, and explicit region construct.
func BuildRegions(fn *tir.Func, pt *pointTable) *Tree {
	t := &Tree{
		Regions:     []Region{{}},
		Of:          make([]RegionID, len(fn.Bindings)),
		SpawnRegion: make(map[tir.NodeID]RegionID),
	}
	caller := t.newRegion(NoRegionID, fn.Span)
	root := t.newRegion(caller, fn.Span)

	for i := 1; i < len(fn.Bindings); i++ {
		b := &fn.Bindings[i]
		if !b.IsParam {
			continue
		}
		id := tir.BindingID(i)
		switch b.Param {
		case tir.MarkerBorrow, tir.MarkerBorrowMut, tir.MarkerInout:
			t.assign(id, caller)
		default:
			t.assign(id, root)
		}
	}

	rb := &regionBuilder{fn: fn, pt: pt, tree: t}
	// The root node's own block is the body region, not a nested one.
	rb.walkInto(fn.Body, root)
	return t
}

type regionBuilder struct {
	fn   *tir.Func
	pt   *pointTable
	tree *Tree
}

// walkInto walks a structural node's children inside an already-open
// region (used for the body root).
func (rb *regionBuilder) walkInto(id tir.NodeID, region RegionID) {
	if !id.IsValid() {
		return
	}
	n := rb.fn.Node(id)
	rb.cover(region, rb.pt.at(id))
	for _, kid := range n.Kids {
		rb.walk(kid, region)
	}
}

func (rb *regionBuilder) walk(id tir.NodeID, region RegionID) {
	if !id.IsValid() {
		return
	}
	n := rb.fn.Node(id)
	switch n.Kind {
	case tir.NodeBlock, tir.NodeRegion, tir.NodeLoop, tir.NodeSpawn:
		inner := rb.tree.newRegion(region, n.Span)
		if n.Kind == tir.NodeSpawn {
			rb.tree.SpawnRegion[id] = inner
		}
		rb.walkInto(id, inner)

	case tir.NodeBranch:
		// The branch itself is not a scope; each arm opens its own region.
		for _, arm := range n.Kids {
			rb.walk(arm, region)
		}

	case tir.NodeDecl:
		rb.tree.assign(n.Binding, region)
		rb.cover(region, rb.pt.at(id))

	case tir.NodeUse:
		rb.cover(region, rb.pt.at(id))
	}
}

// cover extends the region's point extent (and its ancestors') to p.
func (rb *regionBuilder) cover(region RegionID, p Point) {
	if !p.IsValid() {
		return
	}
	for id := region; id.IsValid(); id = rb.tree.Regions[id].Parent {
		r := &rb.tree.Regions[id]
		if !r.First.IsValid() || p < r.First {
			r.First = p
		}
		if p > r.Last {
			r.Last = p
		}
	}
}

func (t *Tree) newRegion(parent RegionID, span source.Span) RegionID {
	idx, err := safecast.Conv[uint32](len(t.Regions))
	if err != nil {
		panic(fmt.Errorf("region arena overflow: %w", err))
	}
	id := RegionID(idx)
	t.Regions = append(t.Regions, Region{ID: id, Parent: parent, Span: span})
	if parent.IsValid() {
		t.Regions[parent].Kids = append(t.Regions[parent].Kids, id)
	}
	return id
}

func (t *Tree) assign(b tir.BindingID, region RegionID) {
	if !b.IsValid() || int(b) >= len(t.Of) {
		return
	}
	if t.Of[b].IsValid() {
		// Re-declaration of the same storage stays in its first region.
		return
	}
	t.Of[b] = region
	t.Regions[region].Bindings = append(t.Regions[region].Bindings, b)
}

// Region returns the region entry for id.
func (t *Tree) Region(id RegionID) *Region {
	return &t.Regions[id]
}

// IsAncestorOrSelf reports whether a is the same as, or an ancestor of, b.
func (t *Tree) IsAncestorOrSelf(a, b RegionID) bool {
	for id := b; id.IsValid(); id = t.Regions[id].Parent {
		if id == a {
			return true
		}
	}
	return false
}

// Cleanup returns the region's teardown list: the exact reverse of its
// declaration order.
func (t *Tree) Cleanup(id RegionID) []tir.BindingID {
	decls := t.Regions[id].Bindings
	out := make([]tir.BindingID, len(decls))
	for i, b := range decls {
		out[len(decls)-1-i] = b
	}
	return out
}

// Unassigned returns bindings that never got a region. The allocator
// assigns every declared binding, so a non-empty result means the typed
// tree declared storage without a declaration node - an internal
// invariant failure, not a user diagnostic.
func (t *Tree) Unassigned() []tir.BindingID {
	var out []tir.BindingID
	for i := 1; i < len(t.Of); i++ {
		if !t.Of[i].IsValid() {
			out = append(out, tir.BindingID(i))
		}
	}
	return out
}
