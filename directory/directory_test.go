package directory

import (
	"errors"
	"testing"

	"github.com/PriyanshC/virtual-file-system/block"
	"github.com/PriyanshC/virtual-file-system/freemap"
	"github.com/PriyanshC/virtual-file-system/inode"
)

type memDevice struct {
	blocks []block.Block
}

func newMemDevice(count uint32) *memDevice {
	return &memDevice{blocks: make([]block.Block, count)}
}

func (d *memDevice) ReadBlock(buf *block.Block, pos uint32) error {
	if pos >= uint32(len(d.blocks)) {
		return block.ErrDeviceFault
	}
	*buf = d.blocks[pos]
	return nil
}

func (d *memDevice) WriteBlock(buf *block.Block, pos uint32) error {
	if pos >= uint32(len(d.blocks)) {
		return block.ErrDeviceFault
	}
	d.blocks[pos] = *buf
	return nil
}

func (d *memDevice) Flush() error       { return nil }
func (d *memDevice) BlockCount() uint32 { return uint32(len(d.blocks)) }

var _ block.Device = (*memDevice)(nil)

func setup(t *testing.T) (*memDevice, *freemap.FreeMap, *inode.Manager, *Directory) {
	t.Helper()
	dev := newMemDevice(256)
	fm, err := freemap.New(256)
	if err != nil {
		t.Fatalf("freemap.New: %v", err)
	}
	mgr := inode.NewManager(dev)

	rootIn, err := mgr.CreateAt(freemap.RootInumber)
	if err != nil {
		t.Fatalf("create root inode: %v", err)
	}
	return dev, fm, mgr, Open(rootIn)
}

func TestAddAndLookup(t *testing.T) {
	dev, fm, mgr, dir := setup(t)

	fileIn, err := mgr.Create(fm)
	if err != nil {
		t.Fatalf("create file inode: %v", err)
	}
	if err := dir.Add("hello.txt", fileIn.Inumber(), fm, dev); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, found, err := dir.Lookup("hello.txt", dev)
	if err != nil || !found {
		t.Fatalf("Lookup: got=%d found=%v err=%v", got, found, err)
	}
	if got != fileIn.Inumber() {
		t.Fatalf("expected inumber %d, got %d", fileIn.Inumber(), got)
	}

	_, found, err = dir.Lookup("missing.txt", dev)
	if err != nil || found {
		t.Fatalf("expected miss for missing.txt, found=%v err=%v", found, err)
	}
}

func TestAddRejectsDuplicateAndInvalidNames(t *testing.T) {
	dev, fm, mgr, dir := setup(t)

	fileIn, err := mgr.Create(fm)
	if err != nil {
		t.Fatalf("create file inode: %v", err)
	}
	if err := dir.Add("dup", fileIn.Inumber(), fm, dev); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := dir.Add("dup", fileIn.Inumber(), fm, dev); !errors.Is(err, ErrNameExists) {
		t.Fatalf("expected ErrNameExists, got %v", err)
	}
	if err := dir.Add("", fileIn.Inumber(), fm, dev); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName for empty name, got %v", err)
	}
	if err := dir.Add("this-name-is-way-too-long", fileIn.Inumber(), fm, dev); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName for overlong name, got %v", err)
	}
}

func TestAddReusesFreedSlot(t *testing.T) {
	dev, fm, mgr, dir := setup(t)

	a, _ := mgr.Create(fm)
	b, _ := mgr.Create(fm)
	if err := dir.Add("a", a.Inumber(), fm, dev); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	lengthAfterOne := dir.in.Length()

	// Mark "a"'s slot free by hand (simulating a remove) and confirm
	// Add reuses it instead of growing the directory.
	raw := [entrySize]byte{}
	if _, err := dir.in.WriteAt(raw[:], 0, dev); err != nil {
		t.Fatalf("clear slot: %v", err)
	}

	if err := dir.Add("b", b.Inumber(), fm, dev); err != nil {
		t.Fatalf("Add b: %v", err)
	}
	if dir.in.Length() != lengthAfterOne {
		t.Fatalf("expected Add to reuse the freed slot without growing, length was %d now %d", lengthAfterOne, dir.in.Length())
	}

	got, found, err := dir.Lookup("b", dev)
	if err != nil || !found || got != b.Inumber() {
		t.Fatalf("Lookup b: got=%d found=%v err=%v", got, found, err)
	}
}

func TestAddAppendsAtByteLengthNotEntryCount(t *testing.T) {
	// Directly exercises the fixed append-offset defect: the second Add
	// grows a one-entry directory and must write at byte offset
	// entrySize (the old length), not at the entry count, so both
	// entries still list afterwards.
	dev, fm, mgr, dir := setup(t)

	a, _ := mgr.Create(fm)
	if err := dir.Add("a", a.Inumber(), fm, dev); err != nil {
		t.Fatalf("Add a: %v", err)
	}

	b, _ := mgr.Create(fm)
	if err := dir.Add("b", b.Inumber(), fm, dev); err != nil {
		t.Fatalf("Add b: %v", err)
	}

	names, err := dir.List(dev)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
}

func TestList(t *testing.T) {
	dev, fm, mgr, dir := setup(t)

	names := []string{"one", "two", "three"}
	for _, n := range names {
		in, err := mgr.Create(fm)
		if err != nil {
			t.Fatalf("create inode: %v", err)
		}
		if err := dir.Add(n, in.Inumber(), fm, dev); err != nil {
			t.Fatalf("Add %q: %v", n, err)
		}
	}

	got, err := dir.List(dev)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != len(names) {
		t.Fatalf("expected %d names, got %v", len(names), got)
	}
	for i, n := range names {
		if got[i] != n {
			t.Fatalf("expected names[%d]=%q, got %q", i, n, got[i])
		}
	}
}
