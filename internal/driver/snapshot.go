package driver

import (
	"rill/internal/source"
	"rill/internal/tir"
)

// LoadSnapshot reads a typed-tree snapshot from disk and builds the FileSet
// its spans index into.
func LoadSnapshot(path string) (*tir.Snapshot, *source.FileSet, error) {
	snap, err := tir.ReadSnapshotFile(path)
	if err != nil {
		return nil, nil, err
	}
	return snap, BuildFileSet(snap), nil
}

// BuildFileSet registers the snapshot's files in order, so span FileIDs
// line up with their slice indexes.
func BuildFileSet(snap *tir.Snapshot) *source.FileSet {
	fs := source.NewFileSet()
	for _, f := range snap.Files {
		fs.AddVirtual(f.Path, f.Content)
	}
	return fs
}
