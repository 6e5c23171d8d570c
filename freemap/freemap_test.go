package freemap

import "testing"

func TestNewMarksRootAndFreeMap(t *testing.T) {
	fm, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	set, err := fm.Bitmap().IsSet(int(RootInumber))
	if err != nil || !set {
		t.Fatalf("expected root inumber marked in-use, set=%v err=%v", set, err)
	}
	set, err = fm.Bitmap().IsSet(int(FreeMapInumber))
	if err != nil || !set {
		t.Fatalf("expected free-map inumber marked in-use, set=%v err=%v", set, err)
	}
}

func TestAllocateReturnsDistinctFreeBlocks(t *testing.T) {
	fm, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := fm.Allocate(3)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(got))
	}
	seen := map[uint32]bool{}
	for _, b := range got {
		if b == RootInumber || b == FreeMapInumber {
			t.Fatalf("allocator handed out reserved block %d", b)
		}
		if seen[b] {
			t.Fatalf("allocator handed out duplicate block %d", b)
		}
		seen[b] = true
	}
}

func TestAllocateRollsBackOnShortfall(t *testing.T) {
	fm, err := New(4) // 2 reserved, 2 free
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := fm.FreeCount()

	_, err = fm.Allocate(10)
	if err == nil {
		t.Fatalf("expected shortfall error")
	}

	after := fm.FreeCount()
	if before != after {
		t.Fatalf("allocate left partial claims behind: before=%d after=%d", before, after)
	}

	// The allocator must still be fully usable after a rolled-back shortfall.
	got, err := fm.Allocate(2)
	if err != nil || len(got) != 2 {
		t.Fatalf("allocate after rollback: got=%v err=%v", got, err)
	}
}

func TestReleaseFreesBlock(t *testing.T) {
	fm, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := fm.Allocate(1)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	blk := got[0]

	if err := fm.Release(blk); err != nil {
		t.Fatalf("Release: %v", err)
	}
	set, err := fm.Bitmap().IsSet(int(blk))
	if err != nil || set {
		t.Fatalf("expected block %d free after release, set=%v err=%v", blk, set, err)
	}
}
