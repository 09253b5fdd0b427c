// Package tir holds the typed input tree the memory analyzer consumes.
//
// TIR is produced by the type checker: every binding carries a resolved
// type reference and mutability flag, and explicit ownership markers from
// the source (move / borrow / mutable borrow / inout) arrive as node
// attributes, never as keyword text. The tree keeps only what ownership
// inference needs: binding declarations, tagged use-sites, and the
// block / branch / loop / spawn / region structure between them.
//
// All IDs are dense uint32 indexes into per-function arenas with zero as
// the invalid sentinel; arena slot 0 is a dummy so ID equals index.
package tir

// FuncID identifies a function within a Module.
type FuncID uint32

// BindingID identifies a declared storage location within a function.
type BindingID uint32

// NodeID identifies a node within a function's arena.
type NodeID uint32

// TypeRef references a type in the upstream type checker's table.
// Zero means the type failed to resolve; such bindings are skipped by the
// analyzer instead of failing the pass.
type TypeRef uint32

const (
	NoFuncID    FuncID    = 0
	NoBindingID BindingID = 0
	NoNodeID    NodeID    = 0
	NoTypeRef   TypeRef   = 0
)

func (id FuncID) IsValid() bool    { return id != NoFuncID }
func (id BindingID) IsValid() bool { return id != NoBindingID }
func (id NodeID) IsValid() bool    { return id != NoNodeID }
func (t TypeRef) IsValid() bool    { return t != NoTypeRef }
