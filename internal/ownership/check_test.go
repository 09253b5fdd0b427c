package ownership

import (
	"testing"

	"rill/internal/diag"
	"rill/internal/tir"
)

func TestUseAfterMoveCitesBothLocations(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	x := b.Bind("x", testType, false, sp(4, 5))
	moveSpan := sp(50, 51)
	readSpan := sp(70, 71)
	body := b.Block(sp(0, 100),
		b.Decl(x, sp(4, 5)),
		b.Use(x, tir.UseMove, moveSpan),
		b.Use(x, tir.UseRead, readSpan),
	)
	fn := b.Finish(body)

	analysis, bag := Analyze(fn, Options{})
	if analysis != nil {
		t.Fatal("expected analysis to be withheld on errors")
	}
	if countCode(bag, diag.MemUseAfterMove) != 1 {
		t.Fatalf("expected exactly one MemUseAfterMove, got %v", diagCodes(bag))
	}
	var found bool
	for _, d := range bag.Items() {
		if d.Code != diag.MemUseAfterMove {
			continue
		}
		found = true
		if d.Primary != readSpan {
			t.Errorf("primary span = %v, want %v", d.Primary, readSpan)
		}
		if len(d.Notes) != 1 || d.Notes[0].Span != moveSpan {
			t.Errorf("note should cite the move at %v, got %+v", moveSpan, d.Notes)
		}
	}
	if !found {
		t.Fatal("missing MemUseAfterMove diagnostic")
	}
}

func TestSecondMutableBorrowConflicts(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	x := b.Bind("x", testType, true, sp(4, 5))
	r1 := b.Bind("r1", testType, false, sp(14, 16))
	r2 := b.Bind("r2", testType, false, sp(34, 36))
	firstSpan := sp(20, 22)
	secondSpan := sp(40, 42)
	body := b.Block(sp(0, 100),
		b.Decl(x, sp(4, 5)),
		b.Decl(r1, sp(14, 16)),
		b.BorrowInto(x, tir.UseBorrowMut, r1, firstSpan),
		b.Decl(r2, sp(34, 36)),
		b.BorrowInto(x, tir.UseBorrowMut, r2, secondSpan),
	)
	fn := b.Finish(body)

	_, bag := Analyze(fn, Options{})
	if countCode(bag, diag.MemConflictingBorrow) != 1 {
		t.Fatalf("expected one MemConflictingBorrow, got %v", diagCodes(bag))
	}
	for _, d := range bag.Items() {
		if d.Code != diag.MemConflictingBorrow {
			continue
		}
		if d.Primary != secondSpan {
			t.Errorf("primary span = %v, want second borrow %v", d.Primary, secondSpan)
		}
		if len(d.Notes) != 1 || d.Notes[0].Span != firstSpan {
			t.Errorf("note should cite first borrow %v, got %+v", firstSpan, d.Notes)
		}
	}
}

func TestOverlappingSharedBorrowsAreFine(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	x := b.Bind("x", testType, false, sp(4, 5))
	r1 := b.Bind("r1", testType, false, sp(14, 16))
	r2 := b.Bind("r2", testType, false, sp(34, 36))
	body := b.Block(sp(0, 100),
		b.Decl(x, sp(4, 5)),
		b.Decl(r1, sp(14, 16)),
		b.BorrowInto(x, tir.UseBorrow, r1, sp(20, 22)),
		b.Decl(r2, sp(34, 36)),
		b.BorrowInto(x, tir.UseBorrow, r2, sp(40, 42)),
		b.Use(x, tir.UseRead, sp(50, 51)),
	)
	fn := b.Finish(body)

	_, bag := Analyze(fn, Options{})
	if bag.Len() != 0 {
		t.Fatalf("shared borrows may overlap, got %v", diagCodes(bag))
	}
}

func TestReadWhileMutablyBorrowedConflicts(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	x := b.Bind("x", testType, true, sp(4, 5))
	r := b.Bind("r", testType, false, sp(14, 15))
	body := b.Block(sp(0, 100),
		b.Decl(x, sp(4, 5)),
		b.Decl(r, sp(14, 15)),
		b.BorrowInto(x, tir.UseBorrowMut, r, sp(20, 22)),
		b.Use(x, tir.UseRead, sp(30, 31)),
	)
	fn := b.Finish(body)

	_, bag := Analyze(fn, Options{})
	if !hasCode(bag, diag.MemConflictingBorrow) {
		t.Fatalf("expected MemConflictingBorrow, got %v", diagCodes(bag))
	}
}

func TestMoveWhileBorrowedConflicts(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	x := b.Bind("x", testType, false, sp(4, 5))
	r := b.Bind("r", testType, false, sp(14, 15))
	body := b.Block(sp(0, 100),
		b.Decl(x, sp(4, 5)),
		b.Decl(r, sp(14, 15)),
		b.BorrowInto(x, tir.UseBorrow, r, sp(20, 22)),
		b.Use(x, tir.UseMove, sp(30, 31)),
	)
	fn := b.Finish(body)

	_, bag := Analyze(fn, Options{})
	if !hasCode(bag, diag.MemConflictingBorrow) {
		t.Fatalf("expected MemConflictingBorrow, got %v", diagCodes(bag))
	}
}

func TestReturnedBorrowOfLocalDangles(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	y := b.Bind("y", testType, false, sp(24, 25))
	inner := b.Block(sp(20, 60),
		b.Decl(y, sp(24, 25)),
		b.ReturnedUse(y, tir.UseBorrow, sp(40, 42)),
	)
	body := b.Block(sp(0, 100), inner)
	fn := b.Finish(body)

	analysis, bag := Analyze(fn, Options{})
	if analysis != nil {
		t.Fatal("expected analysis to be withheld")
	}
	if countCode(bag, diag.MemDanglingReference) != 1 {
		t.Fatalf("expected one MemDanglingReference, got %v", diagCodes(bag))
	}
}

func TestReturnedBorrowOfReferenceParameterIsFine(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	p := b.Param("p", testType, tir.MarkerBorrow, sp(2, 3))
	body := b.Block(sp(0, 100),
		b.ReturnedUse(p, tir.UseBorrow, sp(40, 42)),
	)
	fn := b.Finish(body)

	analysis, bag := Analyze(fn, Options{})
	if bag.HasErrors() {
		t.Fatalf("borrow threaded through a reference parameter is valid, got %v", diagCodes(bag))
	}
	if analysis == nil {
		t.Fatal("expected analysis")
	}
	if got := analysis.Ownership[p]; got != OwnershipExplicitBorrow {
		t.Fatalf("ownership = %v, want %v", got, OwnershipExplicitBorrow)
	}
}

func TestBorrowStoredOutsideOwnerRegionEscapes(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	r := b.Bind("r", testType, true, sp(4, 5))
	y := b.Bind("y", testType, false, sp(24, 25))
	inner := b.Block(sp(20, 60),
		b.Decl(y, sp(24, 25)),
		b.BorrowInto(y, tir.UseBorrow, r, sp(40, 42)),
	)
	body := b.Block(sp(0, 100),
		b.Decl(r, sp(4, 5)),
		inner,
	)
	fn := b.Finish(body)

	_, bag := Analyze(fn, Options{})
	if !hasCode(bag, diag.MemRegionEscape) {
		t.Fatalf("expected MemRegionEscape, got %v", diagCodes(bag))
	}
}

func TestMutableCaptureIntoSpawnRaces(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	x := b.Bind("x", testType, true, sp(4, 5))
	task := b.Spawn(sp(20, 60), nil,
		b.Use(x, tir.UseBorrowMut, sp(30, 32)),
	)
	body := b.Block(sp(0, 100),
		b.Decl(x, sp(4, 5)),
		task,
		b.Use(x, tir.UseRead, sp(70, 71)),
	)
	fn := b.Finish(body)

	_, bag := Analyze(fn, Options{})
	if countCode(bag, diag.MemPossibleDataRace) != 1 {
		t.Fatalf("expected one MemPossibleDataRace, got %v", diagCodes(bag))
	}
}

func TestMovedIntoSpawnDoesNotRace(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	x := b.Bind("x", testType, true, sp(4, 5))
	task := b.Spawn(sp(20, 60), []tir.BindingID{x},
		b.Use(x, tir.UseBorrowMut, sp(30, 32)),
	)
	body := b.Block(sp(0, 100),
		b.Decl(x, sp(4, 5)),
		task,
	)
	fn := b.Finish(body)

	_, bag := Analyze(fn, Options{})
	if hasCode(bag, diag.MemPossibleDataRace) {
		t.Fatalf("ownership transferred into the task, got %v", diagCodes(bag))
	}
}

func TestUseAfterSpawnTransferIsUseAfterMove(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	x := b.Bind("x", testType, false, sp(4, 5))
	task := b.Spawn(sp(20, 60), []tir.BindingID{x},
		b.Use(x, tir.UseRead, sp(30, 32)),
	)
	body := b.Block(sp(0, 100),
		b.Decl(x, sp(4, 5)),
		task,
		b.Use(x, tir.UseRead, sp(70, 71)),
	)
	fn := b.Finish(body)

	_, bag := Analyze(fn, Options{})
	if !hasCode(bag, diag.MemUseAfterMove) {
		t.Fatalf("expected MemUseAfterMove after spawn transfer, got %v", diagCodes(bag))
	}
}

func TestMoveIntoSpawnWhileBorrowedConflicts(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	x := b.Bind("x", testType, false, sp(4, 5))
	r := b.Bind("r", testType, false, sp(14, 15))
	borrowSpan := sp(20, 22)
	spawnSpan := sp(40, 80)
	task := b.Spawn(spawnSpan, []tir.BindingID{x},
		b.Use(x, tir.UseRead, sp(50, 52)),
	)
	body := b.Block(sp(0, 100),
		b.Decl(x, sp(4, 5)),
		b.Decl(r, sp(14, 15)),
		b.BorrowInto(x, tir.UseBorrow, r, borrowSpan),
		task,
		b.Use(r, tir.UseRead, sp(90, 91)),
	)
	fn := b.Finish(body)

	_, bag := Analyze(fn, Options{})
	if countCode(bag, diag.MemConflictingBorrow) != 1 {
		t.Fatalf("expected one MemConflictingBorrow, got %v", diagCodes(bag))
	}
	for _, d := range bag.Items() {
		if d.Code != diag.MemConflictingBorrow {
			continue
		}
		if d.Primary != spawnSpan {
			t.Errorf("primary span = %v, want the spawn at %v", d.Primary, spawnSpan)
		}
		if len(d.Notes) != 1 || d.Notes[0].Span != borrowSpan {
			t.Errorf("note should cite the borrow at %v, got %+v", borrowSpan, d.Notes)
		}
	}
}

func TestRepeatedSpawnTransferIsUseAfterMove(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	x := b.Bind("x", testType, false, sp(4, 5))
	firstSpan := sp(20, 40)
	secondSpan := sp(50, 70)
	first := b.Spawn(firstSpan, []tir.BindingID{x},
		b.Use(x, tir.UseRead, sp(25, 26)),
	)
	second := b.Spawn(secondSpan, []tir.BindingID{x},
		b.Use(x, tir.UseRead, sp(55, 56)),
	)
	fn := b.Finish(b.Block(sp(0, 100),
		b.Decl(x, sp(4, 5)),
		first,
		second,
	))

	analysis, bag := Analyze(fn, Options{})
	if analysis != nil {
		t.Fatal("expected analysis to be withheld")
	}
	if countCode(bag, diag.MemUseAfterMove) != 1 {
		t.Fatalf("expected one MemUseAfterMove, got %v", diagCodes(bag))
	}
	for _, d := range bag.Items() {
		if d.Code != diag.MemUseAfterMove {
			continue
		}
		if d.Primary != secondSpan {
			t.Errorf("primary span = %v, want second spawn %v", d.Primary, secondSpan)
		}
		if len(d.Notes) != 1 || d.Notes[0].Span != firstSpan {
			t.Errorf("note should cite the first transfer %v, got %+v", firstSpan, d.Notes)
		}
	}
}

func TestExplicitMoveMarkerSuppressesAmbiguityWarning(t *testing.T) {
	build := func(marker tir.Marker) *tir.Func {
		b := tir.NewFunc("f", sp(0, 100))
		x := b.Bind("x", testType, false, sp(4, 5))
		armMove := b.Block(sp(10, 30), b.MarkedUse(x, tir.UseMove, marker, sp(12, 13)))
		armRead := b.Block(sp(40, 60), b.Use(x, tir.UseRead, sp(42, 43)))
		return b.Finish(b.Block(sp(0, 100),
			b.Decl(x, sp(4, 5)),
			b.Branch(sp(10, 60), armMove, armRead),
		))
	}

	_, plain := Analyze(build(tir.MarkerNone), Options{})
	if !hasCode(plain, diag.MemAmbiguousUsage) {
		t.Fatalf("expected ambiguity warning without marker, got %v", diagCodes(plain))
	}

	analysis, marked := Analyze(build(tir.MarkerMove), Options{})
	if hasCode(marked, diag.MemAmbiguousUsage) {
		t.Fatalf("explicit marker must suppress the warning, got %v", diagCodes(marked))
	}
	if analysis == nil {
		t.Fatal("expected analysis")
	}
	if got := analysis.Ownership[1]; got != OwnershipExplicitMove {
		t.Fatalf("ownership = %v, want %v", got, OwnershipExplicitMove)
	}
}

func TestInoutParameterKeepsExplicitState(t *testing.T) {
	b := tir.NewFunc("f", sp(0, 100))
	p := b.Param("p", testType, tir.MarkerInout, sp(2, 3))
	body := b.Block(sp(0, 100),
		b.Use(p, tir.UseWrite, sp(10, 11)),
		b.Use(p, tir.UseRead, sp(20, 21)),
	)
	fn := b.Finish(body)

	analysis, bag := mustAnalyze(t, fn)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", diagCodes(bag))
	}
	if got := analysis.Ownership[p]; got != OwnershipExplicitInout {
		t.Fatalf("ownership = %v, want %v", got, OwnershipExplicitInout)
	}
}
