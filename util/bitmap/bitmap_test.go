package bitmap

import "testing"

func TestTestAndMarkTransitionsOnce(t *testing.T) {
	bm := NewBits(16)

	transitioned, err := bm.TestAndMark(3)
	if err != nil || !transitioned {
		t.Fatalf("expected first TestAndMark to transition, got %v, %v", transitioned, err)
	}

	transitioned, err = bm.TestAndMark(3)
	if err != nil || transitioned {
		t.Fatalf("expected second TestAndMark on the same bit to report no transition, got %v, %v", transitioned, err)
	}

	set, err := bm.IsSet(3)
	if err != nil || !set {
		t.Fatalf("expected bit 3 set, got %v, %v", set, err)
	}
}

func TestSetValue(t *testing.T) {
	bm := NewBits(8)
	if err := bm.SetValue(5, true); err != nil {
		t.Fatalf("SetValue(true): %v", err)
	}
	set, _ := bm.IsSet(5)
	if !set {
		t.Fatalf("expected bit 5 set after SetValue(true)")
	}
	if err := bm.SetValue(5, false); err != nil {
		t.Fatalf("SetValue(false): %v", err)
	}
	set, _ = bm.IsSet(5)
	if set {
		t.Fatalf("expected bit 5 clear after SetValue(false)")
	}
}

func TestCount(t *testing.T) {
	bm := NewBits(20)
	if got := bm.Count(); got != 24 { // rounds up to whole bytes
		t.Fatalf("expected Count 24, got %d", got)
	}
}
