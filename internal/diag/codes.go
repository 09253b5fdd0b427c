package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Memory analysis violations (user-facing, always fatal for the unit).
	MemUseAfterMove      Code = 1001
	MemConflictingBorrow Code = 1002
	MemDanglingReference Code = 1003
	MemRegionEscape      Code = 1004
	MemPossibleDataRace  Code = 1005
	MemAmbiguousUsage    Code = 1006

	// Internal invariant failures. A leak cannot be produced by user code:
	// the region model tears down deterministically by construction, so
	// seeing one means the allocator itself is broken.
	MemInternalLeak    Code = 1900
	MemInternalInvalid Code = 1901
	MemUnresolvedType  Code = 1902

	// I/O, snapshot and cache problems.
	IOLoadFileError  Code = 4001
	IOSnapshotDecode Code = 4002
	IOSnapshotSchema Code = 4003
	IOCacheCorrupt   Code = 4004

	// Project configuration.
	PrjManifestParse   Code = 5001
	PrjManifestInvalid Code = 5002
)

var codeDescription = map[Code]string{
	UnknownCode:          "Unknown error",
	MemUseAfterMove:      "Use of moved value",
	MemConflictingBorrow: "Conflicting borrow",
	MemDanglingReference: "Borrow outlives the borrowed value",
	MemRegionEscape:      "Borrow escapes its region",
	MemPossibleDataRace:  "Possible data race across spawn boundary",
	MemAmbiguousUsage:    "Ambiguous usage across branches",
	MemInternalLeak:      "Internal: region teardown missed a binding",
	MemInternalInvalid:   "Internal: malformed typed tree",
	MemUnresolvedType:    "Binding skipped: unresolved type",
	IOLoadFileError:      "Failed to load file",
	IOSnapshotDecode:     "Failed to decode typed-tree snapshot",
	IOSnapshotSchema:     "Snapshot schema version mismatch",
	IOCacheCorrupt:       "Analysis cache entry corrupt",
	PrjManifestParse:     "Failed to parse rill.toml",
	PrjManifestInvalid:   "Invalid [memory] configuration",
}

// ID returns the short machine-readable form, e.g. "MEM1001".
func (c Code) ID() string {
	ic := int(c)
	switch {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("MEM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("PRJ%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

// Internal reports whether the code marks an invariant failure in the
// analyzer itself rather than a problem in the analyzed program.
func (c Code) Internal() bool {
	return c >= MemInternalLeak && c < 2000
}
