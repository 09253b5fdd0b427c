package tir

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the snapshot format changes.
const SnapshotSchemaVersion uint16 = 1

// ErrSnapshotSchema is returned when a snapshot was written by an
// incompatible type-checker build.
var ErrSnapshotSchema = errors.New("snapshot schema version mismatch")

// ErrSnapshotDecode wraps codec failures, so callers can tell a broken
// file from a missing one.
var ErrSnapshotDecode = errors.New("snapshot decode failed")

// SnapshotFile carries one source file referenced by the module. Content
// may be empty when the type checker chose not to embed source text;
// diagnostics then render without preview lines.
type SnapshotFile struct {
	Path    string
	Content []byte
}

// Snapshot is the serialized hand-off from the type checker: a typed
// module plus the sources its spans point into. FileIDs inside spans index
// the Files slice in order.
type Snapshot struct {
	Schema uint16
	Module Module
	Files  []SnapshotFile
}

// NewSnapshot wraps a module with the current schema version.
func NewSnapshot(mod Module, files []SnapshotFile) *Snapshot {
	return &Snapshot{Schema: SnapshotSchemaVersion, Module: mod, Files: files}
}

// Encode writes the snapshot in msgpack form.
func (s *Snapshot) Encode(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(s)
}

// DecodeSnapshot reads a snapshot and validates its schema version.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	dec := msgpack.NewDecoder(r)
	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotDecode, err)
	}
	if s.Schema != SnapshotSchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSnapshotSchema, s.Schema, SnapshotSchemaVersion)
	}
	return &s, nil
}

// WriteSnapshotFile writes the snapshot atomically (temp file + rename).
func WriteSnapshotFile(path string, s *Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()

	if err := s.Encode(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// ReadSnapshotFile loads and decodes a snapshot from disk.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	// #nosec G304 -- path is provided by the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return DecodeSnapshot(f)
}
