package ownership

import (
	"testing"

	"rill/internal/diag"
	"rill/internal/source"
	"rill/internal/tir"
)

const testType tir.TypeRef = 1

func sp(start, end uint32) source.Span {
	return source.Span{Start: start, End: end}
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func diagCodes(bag *diag.Bag) []diag.Code {
	out := make([]diag.Code, 0, bag.Len())
	for _, d := range bag.Items() {
		out = append(out, d.Code)
	}
	return out
}

func countCode(bag *diag.Bag, code diag.Code) int {
	n := 0
	for _, d := range bag.Items() {
		if d.Code == code {
			n++
		}
	}
	return n
}

func mustAnalyze(t *testing.T, fn *tir.Func) (*MemoryAnalysis, *diag.Bag) {
	t.Helper()
	analysis, bag := Analyze(fn, Options{})
	if analysis == nil && !bag.HasErrors() {
		t.Fatalf("analysis withheld without errors, codes %v", diagCodes(bag))
	}
	return analysis, bag
}
