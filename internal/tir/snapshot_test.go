package tir

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func sampleModule() Module {
	b := NewFunc("main", span(0, 60))
	x := b.Bind("x", 1, false, span(4, 5))
	fn := b.Finish(b.Block(span(0, 60),
		b.Decl(x, span(4, 5)),
		b.Use(x, UseRead, span(10, 11)),
	))
	return Module{Name: "demo", Funcs: []Func{*fn}}
}

func TestSnapshotRoundtrip(t *testing.T) {
	snap := NewSnapshot(sampleModule(), []SnapshotFile{
		{Path: "demo.rl", Content: []byte("let x = 1\nread(x)\n")},
	})

	var buf bytes.Buffer
	if err := snap.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeSnapshot(&buf)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}

	if got.Schema != SnapshotSchemaVersion {
		t.Fatalf("schema = %d", got.Schema)
	}
	if got.Module.Name != "demo" || len(got.Module.Funcs) != 1 {
		t.Fatalf("module not restored: %+v", got.Module)
	}
	fn := &got.Module.Funcs[0]
	if fn.Name != "main" || fn.NumBindings() != 1 {
		t.Fatalf("function not restored: %+v", fn)
	}
	if fn.Binding(1).Name != "x" {
		t.Fatalf("binding not restored: %+v", fn.Binding(1))
	}
	if len(got.Files) != 1 || got.Files[0].Path != "demo.rl" {
		t.Fatalf("files not restored: %+v", got.Files)
	}
}

func TestDecodeRejectsWrongSchema(t *testing.T) {
	snap := NewSnapshot(sampleModule(), nil)
	snap.Schema = SnapshotSchemaVersion + 1

	var buf bytes.Buffer
	if err := snap.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, err := DecodeSnapshot(&buf)
	if !errors.Is(err, ErrSnapshotSchema) {
		t.Fatalf("err = %v, want ErrSnapshotSchema", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeSnapshot(bytes.NewReader([]byte("this is not a snapshot")))
	if !errors.Is(err, ErrSnapshotDecode) {
		t.Fatalf("err = %v, want ErrSnapshotDecode", err)
	}
}

func TestWriteSnapshotFileIsAtomicReplacement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "demo.rsn")

	if err := WriteSnapshotFile(path, NewSnapshot(sampleModule(), nil)); err != nil {
		t.Fatalf("first write: %v", err)
	}

	second := sampleModule()
	second.Name = "demo2"
	if err := WriteSnapshotFile(path, NewSnapshot(second, nil)); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("ReadSnapshotFile: %v", err)
	}
	if got.Module.Name != "demo2" {
		t.Fatalf("module = %q, want the replacing write", got.Module.Name)
	}
}
