package tir

import "rill/internal/source"

// NodeKind enumerates the structural and leaf nodes of the typed tree.
type NodeKind uint8

const (
	NodeInvalid NodeKind = iota
	// NodeBlock is a lexical block; it opens a region.
	NodeBlock
	// NodeRegion is the explicit `region { ... }` construct. It behaves
	// exactly like a block region but exists independent of block scoping.
	NodeRegion
	// NodeLoop is a loop body, treated as potentially repeated.
	NodeLoop
	// NodeBranch holds alternative paths (if/else, match arms) as its kids.
	NodeBranch
	// NodeSpawn is a concurrently spawned unit of work. Bindings listed in
	// Moves are ownership-transferred into the task at the spawn point.
	NodeSpawn
	// NodeDecl declares (or re-declares) a binding.
	NodeDecl
	// NodeUse references a binding at one program point.
	NodeUse
)

func (k NodeKind) String() string {
	switch k {
	case NodeBlock:
		return "block"
	case NodeRegion:
		return "region"
	case NodeLoop:
		return "loop"
	case NodeBranch:
		return "branch"
	case NodeSpawn:
		return "spawn"
	case NodeDecl:
		return "decl"
	case NodeUse:
		return "use"
	default:
		return "invalid"
	}
}

// UseKind tags how a use-site touches its binding.
type UseKind uint8

const (
	UseRead UseKind = iota
	UseWrite
	// UseMove consumes the value (passed by value expecting ownership,
	// or returned by value).
	UseMove
	// UseBorrow takes a shared borrow.
	UseBorrow
	// UseBorrowMut takes a mutable borrow.
	UseBorrowMut
)

func (k UseKind) String() string {
	switch k {
	case UseRead:
		return "read"
	case UseWrite:
		return "write"
	case UseMove:
		return "move"
	case UseBorrow:
		return "borrow"
	case UseBorrowMut:
		return "borrow_mut"
	default:
		return "?"
	}
}

// Marker is an explicit ownership annotation from the source. It always
// overrides automatic inference for the use-site it is attached to.
type Marker uint8

const (
	MarkerNone Marker = iota
	MarkerMove
	MarkerBorrow
	MarkerBorrowMut
	MarkerInout
)

func (m Marker) String() string {
	switch m {
	case MarkerMove:
		return "move"
	case MarkerBorrow:
		return "borrow"
	case MarkerBorrowMut:
		return "borrow_mut"
	case MarkerInout:
		return "inout"
	default:
		return ""
	}
}

// Node is one arena entry. Which fields are meaningful depends on Kind:
// structural nodes use Kids (and Moves for spawns), Decl/Use use Binding,
// and Use additionally carries the access tag, optional marker, optional
// destination binding for taken borrows, and the Returned flag when the
// use feeds the function result.
type Node struct {
	Kind NodeKind
	Span source.Span

	Kids  []NodeID
	Moves []BindingID // NodeSpawn: bindings moved into the task

	Binding  BindingID
	Use      UseKind
	Marker   Marker
	Dest     BindingID // borrow uses: binding that stores the reference
	Returned bool
}
