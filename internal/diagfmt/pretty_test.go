package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"rill/internal/diag"
	"rill/internal/source"
)

func TestPathModes(t *testing.T) {
	fs := source.NewFileSet()
	content := []byte("let y = consume(x)\nread(x)\n")
	fileID := fs.AddVirtual("/home/user/project/src/main.rl", content)
	fs.SetBaseDir("/home/user/project")

	bag := diag.NewBag(10)
	bag.Add(diag.New(
		diag.SevError,
		diag.MemUseAfterMove,
		source.Span{File: fileID, Start: 24, End: 25},
		"use of moved value 'x'",
	))

	tests := []struct {
		name     string
		mode     PathMode
		contains string
	}{
		{name: "Absolute path", mode: PathModeAbsolute, contains: "/home/user/project/src/main.rl"},
		{name: "Relative path", mode: PathModeRelative, contains: "src/main.rl"},
		{name: "Basename only", mode: PathModeBasename, contains: "main.rl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Pretty(&buf, bag, fs, PrettyOpts{PathMode: tt.mode})
			output := buf.String()

			if !strings.Contains(output, tt.contains) {
				t.Errorf("expected output to contain %q, got:\n%s", tt.contains, output)
			}
			if !strings.Contains(output, "ERROR") {
				t.Error("expected ERROR in output")
			}
			if !strings.Contains(output, "MEM1001") {
				t.Error("expected MEM1001 code in output")
			}
			if !strings.Contains(output, "use of moved value") {
				t.Error("expected message in output")
			}
		})
	}
}

func TestPrettyUnderlineAndNotes(t *testing.T) {
	fs := source.NewFileSet()
	content := []byte("let y = consume(x)\nread(x)\n")
	fileID := fs.AddVirtual("main.rl", content)

	bag := diag.NewBag(10)
	bag.Add(diag.NewError(
		diag.MemUseAfterMove,
		source.Span{File: fileID, Start: 24, End: 25},
		"use of moved value 'x'",
	).WithNote(source.Span{File: fileID, Start: 16, End: 17}, "value 'x' moved here"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{ShowNotes: true})
	output := buf.String()

	if !strings.Contains(output, "main.rl:2:6") {
		t.Errorf("expected primary position 2:6, got:\n%s", output)
	}
	if !strings.Contains(output, "read(x)") {
		t.Errorf("expected source preview, got:\n%s", output)
	}
	if !strings.Contains(output, "^") {
		t.Errorf("expected underline, got:\n%s", output)
	}
	if !strings.Contains(output, "note: value 'x' moved here") {
		t.Errorf("expected note, got:\n%s", output)
	}
	if !strings.Contains(output, "main.rl:1:17") {
		t.Errorf("expected note position 1:17, got:\n%s", output)
	}
}

func TestPrettyWithoutContentSkipsPreview(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("ghost.rl", nil)

	bag := diag.NewBag(10)
	bag.Add(diag.NewError(
		diag.MemConflictingBorrow,
		source.Span{File: fileID, Start: 5, End: 9},
		"cannot take a second mutable borrow of 'x'",
	))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})
	output := buf.String()

	if !strings.Contains(output, "MEM1002") {
		t.Errorf("expected header, got:\n%s", output)
	}
	if strings.Contains(output, "|") {
		t.Errorf("no preview gutter expected for empty content, got:\n%s", output)
	}
}
