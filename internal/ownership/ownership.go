// Package ownership implements automatic ownership, borrow and lifetime
// inference for typed Rill functions.
//
// The pipeline runs four components in order: the usage pattern analyzer
// classifies every binding from its use-sites, the graph builder turns
// classifications and explicit markers into ownership assignments and
// move/borrow edges, the region allocator partitions the function into a
// nested lifetime hierarchy with deterministic teardown, and the borrow
// checker validates the graph against the regions. The result is either a
// MemoryAnalysis for code generation or a batch of diagnostics; the pass
// is pure, synchronous, and idempotent over its input.
package ownership

// Pattern classifies how a binding is used across its scope.
type Pattern uint8

const (
	// PatternReadOnly: every use-site reads.
	PatternReadOnly Pattern = iota
	// PatternMutating: reassigned or mutated through.
	PatternMutating
	// PatternConsuming: the terminal use consumes the value.
	PatternConsuming
	// PatternComplex: conflicting requirements across branches.
	PatternComplex
)

func (p Pattern) String() string {
	switch p {
	case PatternReadOnly:
		return "read_only"
	case PatternMutating:
		return "mutating"
	case PatternConsuming:
		return "consuming"
	case PatternComplex:
		return "complex"
	default:
		return "?"
	}
}

// Join merges classifications from alternative control-flow paths using
// the lattice order ReadOnly < Mutating < Consuming; Consuming dominates
// and Complex absorbs everything. The analyzer feeds Complex in directly
// when a binding is moved on one path but used on a sibling path.
func (p Pattern) Join(other Pattern) Pattern {
	if p == PatternComplex || other == PatternComplex {
		return PatternComplex
	}
	if other > p {
		return other
	}
	return p
}

// Ownership is the closed set of per-binding ownership states. Auto states
// come from inference, explicit states from source markers, which always
// win for their binding.
type Ownership uint8

const (
	// OwnershipUnknown marks bindings skipped over unresolved types.
	OwnershipUnknown Ownership = iota
	OwnershipAutoBorrowed
	OwnershipAutoMutBorrowed
	// OwnershipAutoOwned: owned, then moved at the terminal use.
	OwnershipAutoOwned
	OwnershipExplicitMove
	OwnershipExplicitBorrow
	OwnershipExplicitMutBorrow
	OwnershipExplicitInout
)

func (o Ownership) String() string {
	switch o {
	case OwnershipAutoBorrowed:
		return "auto_borrowed"
	case OwnershipAutoMutBorrowed:
		return "auto_mut_borrowed"
	case OwnershipAutoOwned:
		return "auto_owned"
	case OwnershipExplicitMove:
		return "explicit_move"
	case OwnershipExplicitBorrow:
		return "explicit_borrow"
	case OwnershipExplicitMutBorrow:
		return "explicit_mut_borrow"
	case OwnershipExplicitInout:
		return "explicit_inout"
	default:
		return "unknown"
	}
}

// Explicit reports whether the state came from a source marker.
func (o Ownership) Explicit() bool {
	return o >= OwnershipExplicitMove
}

// Point is a program point: use-sites are numbered in control-flow
// pre-order starting at 1. Zero is the invalid sentinel.
type Point uint32

const NoPoint Point = 0

func (p Point) IsValid() bool { return p != NoPoint }

// Interval is an inclusive range of program points during which a borrow
// is alive.
type Interval struct {
	Start Point
	End   Point
}

// Overlaps reports whether two intervals share at least one point.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start <= other.End && other.Start <= iv.End
}
