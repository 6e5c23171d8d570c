package inode

import (
	"bytes"
	"testing"

	"github.com/PriyanshC/virtual-file-system/block"
	"github.com/PriyanshC/virtual-file-system/freemap"
)

// memDevice is a trivial in-memory block.Device for exercising the
// inode package without a host file backing it.
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

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	data := OnDisk{
		Direct:         [NDirect]uint32{10, 11, 12, 13},
		Indirect:       [NIndirect]uint32{20},
		DoublyIndirect: [NDoublyIndirect]uint32{30},
		Magic:          Magic,
		Len:            4096,
	}
	raw := MarshalBlock(&data)
	got := UnmarshalBlock(&raw)
	if got != data {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, data)
	}
}

func TestCreateOpenClose(t *testing.T) {
	dev := newMemDevice(64)
	fm, err := freemap.New(64)
	if err != nil {
		t.Fatalf("freemap.New: %v", err)
	}
	mgr := NewManager(dev)

	in, err := mgr.Create(fm)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if mgr.OpenCount(in.Inumber()) != 1 {
		t.Fatalf("expected open count 1 after create")
	}

	reopened, err := mgr.Open(in.Inumber())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened != in {
		t.Fatalf("expected Open to return the same in-memory inode")
	}
	if mgr.OpenCount(in.Inumber()) != 2 {
		t.Fatalf("expected open count 2 after second open")
	}

	if err := mgr.Close(in); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if mgr.OpenCount(in.Inumber()) != 1 {
		t.Fatalf("expected open count 1 after one close")
	}
	if err := mgr.Close(in); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if mgr.OpenCount(in.Inumber()) != 0 {
		t.Fatalf("expected open count 0 after final close")
	}
}

func TestSetLenWriteReadDirectOnly(t *testing.T) {
	dev := newMemDevice(64)
	fm, err := freemap.New(64)
	if err != nil {
		t.Fatalf("freemap.New: %v", err)
	}
	mgr := NewManager(dev)

	in, err := mgr.Create(fm)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	payload := bytes.Repeat([]byte{0xAB}, block.Size*2+10)
	if err := in.SetLen(uint32(len(payload)), fm, dev); err != nil {
		t.Fatalf("SetLen: %v", err)
	}
	if in.Length() != uint32(len(payload)) {
		t.Fatalf("expected length %d, got %d", len(payload), in.Length())
	}

	n, err := in.WriteAt(payload, 0, dev)
	if err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if n != uint32(len(payload)) {
		t.Fatalf("expected to write %d bytes, wrote %d", len(payload), n)
	}

	got := make([]byte, len(payload))
	n, err = in.ReadAt(got, 0, dev)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != uint32(len(payload)) {
		t.Fatalf("expected to read %d bytes, read %d", len(payload), n)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("read back mismatch")
	}
}

func TestSetLenGrowsThroughIndirectBlocks(t *testing.T) {
	// NDirect*Size bytes exhausts direct coverage; the three further
	// blocks must be satisfied through the indirect pointer, exercising
	// the previously-buggy growth path.
	dev := newMemDevice(4096)
	fm, err := freemap.New(4096)
	if err != nil {
		t.Fatalf("freemap.New: %v", err)
	}
	mgr := NewManager(dev)

	in, err := mgr.Create(fm)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newLen := uint32((NDirect + 3) * block.Size)
	if err := in.SetLen(newLen, fm, dev); err != nil {
		t.Fatalf("SetLen: %v", err)
	}
	if in.data.Indirect[0] == 0 {
		t.Fatalf("expected indirect pointer to be populated, got 0")
	}

	payload := bytes.Repeat([]byte{0xCD}, int(newLen))
	if _, err := in.WriteAt(payload, 0, dev); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, len(payload))
	if _, err := in.ReadAt(got, 0, dev); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("read back mismatch across indirect boundary")
	}
}

func TestSetLenNoOpWhenNoNewBlocksNeeded(t *testing.T) {
	dev := newMemDevice(64)
	fm, err := freemap.New(64)
	if err != nil {
		t.Fatalf("freemap.New: %v", err)
	}
	mgr := NewManager(dev)

	in, err := mgr.Create(fm)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := in.SetLen(block.Size, fm, dev); err != nil {
		t.Fatalf("SetLen grow: %v", err)
	}
	before := in.data.Direct

	if err := in.SetLen(10, fm, dev); err != nil {
		t.Fatalf("SetLen shrink: %v", err)
	}
	if in.Length() != 10 {
		t.Fatalf("expected length 10, got %d", in.Length())
	}
	if in.data.Direct != before {
		t.Fatalf("shrinking SetLen should not touch allocated blocks")
	}
}
