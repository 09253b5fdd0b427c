package diagfmt

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"rill/internal/diag"
	"rill/internal/source"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	infoColor = color.New(color.FgCyan, color.Bold)
	noteColor = color.New(color.FgBlue)
	lineColor = color.New(color.Faint)
)

// Pretty renders diagnostics in human-readable form, one entry per
// diagnostic: a path:line:col header, the offending source line with an
// underline, then notes. Expects the bag to be sorted already.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := prettyPrinter{w: w, fs: fs, opts: opts}
	for _, d := range bag.Items() {
		p.diagnostic(d)
	}
}

type prettyPrinter struct {
	w    io.Writer
	fs   *source.FileSet
	opts PrettyOpts
}

func (p *prettyPrinter) diagnostic(d diag.Diagnostic) {
	start, _ := p.fs.Resolve(d.Primary)
	fmt.Fprintf(p.w, "%s:%d:%d: %s %s: %s\n",
		p.path(d.Primary.File), start.Line, start.Col,
		p.severity(d.Severity), d.Code.ID(), d.Message)
	p.preview(d.Primary, start)

	if !p.opts.ShowNotes {
		return
	}
	for _, n := range d.Notes {
		nStart, _ := p.fs.Resolve(n.Span)
		fmt.Fprintf(p.w, "  %s: %s\n", p.colorize(noteColor, "note"), n.Msg)
		fmt.Fprintf(p.w, "  --> %s:%d:%d\n", p.path(n.Span.File), nStart.Line, nStart.Col)
		p.preview(n.Span, nStart)
	}
}

// preview prints the source line the span starts on, with a ^~~~ underline.
// Files without embedded content render header-only.
func (p *prettyPrinter) preview(span source.Span, start source.LineCol) {
	f := p.fs.Get(span.File)
	line := f.GetLine(start.Line)
	if line == "" {
		return
	}
	gutter := fmt.Sprintf("%5d | ", start.Line)
	fmt.Fprintf(p.w, "%s%s\n", p.colorize(lineColor, gutter), line)

	col := int(start.Col) - 1
	if col > len(line) {
		col = len(line)
	}
	pad := runewidth.StringWidth(line[:col])
	width := int(span.Len())
	if rest := len(line) - col; width > rest {
		width = rest
	}
	underline := "^"
	if width > 1 {
		underline += strings.Repeat("~", runewidth.StringWidth(line[col:col+width])-1)
	}
	fmt.Fprintf(p.w, "%s%s%s\n",
		p.colorize(lineColor, strings.Repeat(" ", len(gutter)-2)+"| "),
		strings.Repeat(" ", pad),
		p.colorize(errColor, underline))
}

func (p *prettyPrinter) severity(s diag.Severity) string {
	switch s {
	case diag.SevError:
		return p.colorize(errColor, s.String())
	case diag.SevWarning:
		return p.colorize(warnColor, s.String())
	default:
		return p.colorize(infoColor, s.String())
	}
}

func (p *prettyPrinter) colorize(c *color.Color, s string) string {
	if !p.opts.Color {
		return s
	}
	return c.Sprint(s)
}

func (p *prettyPrinter) path(id source.FileID) string {
	return displayPath(p.fs, id, p.opts.PathMode)
}

func displayPath(fs *source.FileSet, id source.FileID, mode PathMode) string {
	stored := fs.Get(id).Path
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(stored); err == nil {
			return abs
		}
	case PathModeRelative:
		if base := fs.BaseDir(); base != "" {
			if rel, err := filepath.Rel(base, stored); err == nil {
				return filepath.ToSlash(rel)
			}
		}
	case PathModeBasename:
		return filepath.Base(stored)
	}
	return stored
}
