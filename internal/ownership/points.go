package ownership

import "rill/internal/tir"

// pointTable numbers program points in control-flow pre-order. Decl, Use
// and Spawn nodes get points (a spawn point is where its transfer edges
// fire, before the task body); structural nodes do not.
type pointTable struct {
	of   []Point // indexed by NodeID
	last Point
}

func assignPoints(fn *tir.Func) *pointTable {
	pt := &pointTable{of: make([]Point, len(fn.Nodes))}
	pt.walk(fn, fn.Body)
	return pt
}

func (pt *pointTable) walk(fn *tir.Func, id tir.NodeID) {
	if !id.IsValid() {
		return
	}
	n := fn.Node(id)
	switch n.Kind {
	case tir.NodeDecl, tir.NodeUse, tir.NodeSpawn:
		pt.last++
		pt.of[id] = pt.last
	}
	for _, kid := range n.Kids {
		pt.walk(fn, kid)
	}
}

// at returns the program point of a node, NoPoint for structural nodes.
func (pt *pointTable) at(id tir.NodeID) Point {
	return pt.of[id]
}

// max returns the highest assigned point.
func (pt *pointTable) max() Point {
	return pt.last
}
