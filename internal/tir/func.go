package tir

import (
	"fmt"

	"rill/internal/source"
)

// Binding is a declared storage location.
type Binding struct {
	Name    string
	Type    TypeRef
	Mutable bool
	Span    source.Span
	// Param carries the parameter marker when the binding is a parameter;
	// MarkerNone for locals. Borrow/inout parameters live in the caller
	// pseudo-region, everything else in the function body region.
	Param   Marker
	IsParam bool
}

// Func is one analyzed function: a binding table, a node arena, and the
// root body node. Slot 0 of both arenas is a zero dummy so IDs index
// directly.
type Func struct {
	Name     string
	Span     source.Span
	Bindings []Binding
	Nodes    []Node
	Body     NodeID
}

// Node returns the arena entry for id. The zero ID yields the dummy node.
func (f *Func) Node(id NodeID) *Node {
	return &f.Nodes[id]
}

// Binding returns the table entry for id.
func (f *Func) Binding(id BindingID) *Binding {
	return &f.Bindings[id]
}

// NumBindings returns the number of real bindings (dummy excluded).
func (f *Func) NumBindings() int {
	return len(f.Bindings) - 1
}

// Validate checks every arena cross-reference. The builder produces
// well-formed trees, but decoded snapshots carry whatever was on disk.
func (f *Func) Validate() error {
	if len(f.Bindings) == 0 || len(f.Nodes) == 0 {
		return fmt.Errorf("function '%s': empty arenas", f.Name)
	}
	if int(f.Body) >= len(f.Nodes) {
		return fmt.Errorf("function '%s': body node %d out of range", f.Name, f.Body)
	}
	for i := 1; i < len(f.Nodes); i++ {
		n := &f.Nodes[i]
		if int(n.Binding) >= len(f.Bindings) {
			return fmt.Errorf("function '%s': node %d references binding %d out of range", f.Name, i, n.Binding)
		}
		if int(n.Dest) >= len(f.Bindings) {
			return fmt.Errorf("function '%s': node %d references destination %d out of range", f.Name, i, n.Dest)
		}
		for _, kid := range n.Kids {
			if !kid.IsValid() || int(kid) >= len(f.Nodes) {
				return fmt.Errorf("function '%s': node %d references child %d out of range", f.Name, i, kid)
			}
		}
		for _, m := range n.Moves {
			if !m.IsValid() || int(m) >= len(f.Bindings) {
				return fmt.Errorf("function '%s': node %d moves binding %d out of range", f.Name, i, m)
			}
		}
	}
	return nil
}

// Module is a compilation unit: an ordered list of functions, analyzed
// independently (closures arrive as their own Funcs, lowered upstream).
type Module struct {
	Name  string
	Funcs []Func
}
