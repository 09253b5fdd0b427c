package tir

import (
	"fmt"

	"fortio.org/safecast"

	"rill/internal/source"
)

// FuncBuilder assembles a Func arena incrementally. The type checker uses
// it while lowering its checked AST; tests use it to construct trees
// directly.
type FuncBuilder struct {
	fn Func
}

// NewFunc starts a builder for a function with the given name.
func NewFunc(name string, span source.Span) *FuncBuilder {
	b := &FuncBuilder{}
	b.fn.Name = name
	b.fn.Span = span
	b.fn.Bindings = []Binding{{}}
	b.fn.Nodes = []Node{{}}
	return b
}

func (b *FuncBuilder) newNode(n Node) NodeID {
	id, err := safecast.Conv[uint32](len(b.fn.Nodes))
	if err != nil {
		panic(fmt.Errorf("node arena overflow: %w", err))
	}
	b.fn.Nodes = append(b.fn.Nodes, n)
	return NodeID(id)
}

// Bind declares a local binding and returns its ID.
func (b *FuncBuilder) Bind(name string, typ TypeRef, mutable bool, span source.Span) BindingID {
	id, err := safecast.Conv[uint32](len(b.fn.Bindings))
	if err != nil {
		panic(fmt.Errorf("binding table overflow: %w", err))
	}
	b.fn.Bindings = append(b.fn.Bindings, Binding{
		Name:    name,
		Type:    typ,
		Mutable: mutable,
		Span:    span,
	})
	return BindingID(id)
}

// Param declares a parameter binding with its explicit marker
// (MarkerNone means the parameter is passed by value and owned).
func (b *FuncBuilder) Param(name string, typ TypeRef, marker Marker, span source.Span) BindingID {
	id := b.Bind(name, typ, marker == MarkerInout || marker == MarkerBorrowMut, span)
	bind := &b.fn.Bindings[id]
	bind.Param = marker
	bind.IsParam = true
	return id
}

// Decl emits a declaration node for an existing binding.
func (b *FuncBuilder) Decl(bind BindingID, span source.Span) NodeID {
	return b.newNode(Node{Kind: NodeDecl, Span: span, Binding: bind})
}

// Use emits a plain use-site.
func (b *FuncBuilder) Use(bind BindingID, kind UseKind, span source.Span) NodeID {
	return b.newNode(Node{Kind: NodeUse, Span: span, Binding: bind, Use: kind})
}

// MarkedUse emits a use-site carrying an explicit ownership marker.
func (b *FuncBuilder) MarkedUse(bind BindingID, kind UseKind, marker Marker, span source.Span) NodeID {
	return b.newNode(Node{Kind: NodeUse, Span: span, Binding: bind, Use: kind, Marker: marker})
}

// BorrowInto emits a borrow use whose result is stored in dest.
func (b *FuncBuilder) BorrowInto(bind BindingID, kind UseKind, dest BindingID, span source.Span) NodeID {
	return b.newNode(Node{Kind: NodeUse, Span: span, Binding: bind, Use: kind, Dest: dest})
}

// ReturnedUse emits a use-site whose value feeds the function result.
func (b *FuncBuilder) ReturnedUse(bind BindingID, kind UseKind, span source.Span) NodeID {
	return b.newNode(Node{Kind: NodeUse, Span: span, Binding: bind, Use: kind, Returned: true})
}

// Block groups kids into a lexical block region.
func (b *FuncBuilder) Block(span source.Span, kids ...NodeID) NodeID {
	return b.newNode(Node{Kind: NodeBlock, Span: span, Kids: kids})
}

// Region groups kids into an explicit region construct.
func (b *FuncBuilder) Region(span source.Span, kids ...NodeID) NodeID {
	return b.newNode(Node{Kind: NodeRegion, Span: span, Kids: kids})
}

// Loop wraps kids into a loop body region.
func (b *FuncBuilder) Loop(span source.Span, kids ...NodeID) NodeID {
	return b.newNode(Node{Kind: NodeLoop, Span: span, Kids: kids})
}

// Branch groups alternative arms; each arm should be a Block.
func (b *FuncBuilder) Branch(span source.Span, arms ...NodeID) NodeID {
	return b.newNode(Node{Kind: NodeBranch, Span: span, Kids: arms})
}

// Spawn creates a spawned task node. moves lists the bindings whose
// ownership transfers into the task at the spawn point.
func (b *FuncBuilder) Spawn(span source.Span, moves []BindingID, kids ...NodeID) NodeID {
	return b.newNode(Node{Kind: NodeSpawn, Span: span, Kids: kids, Moves: moves})
}

// Finish seals the builder and returns the function with body as root.
func (b *FuncBuilder) Finish(body NodeID) *Func {
	b.fn.Body = body
	return &b.fn
}
