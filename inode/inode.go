// Package inode implements the on-disk inode format, the open-inode
// table, and the three-tier (direct/indirect/doubly-indirect) block
// index that every file and directory in the filesystem is built on.
package inode

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/PriyanshC/virtual-file-system/block"
	"github.com/PriyanshC/virtual-file-system/freemap"
)

const (
	// Magic is the well-known constant stamped into every on-disk
	// inode, used to sanity-check a block before trusting it as an
	// inode record.
	Magic uint32 = 0x8BCEFADC

	// NDirect is the number of direct block pointers an inode carries.
	NDirect = 4
	// NIndirect is the number of singly-indirect block pointers.
	NIndirect = 1
	// NDoublyIndirect is the number of doubly-indirect block pointers.
	NDoublyIndirect = 1

	// onDiskHeaderSize is the byte length of the fixed fields before
	// the zero-padded tail: NDirect+NIndirect+NDoublyIndirect pointers
	// (4 bytes each) plus magic and len (4 bytes each).
	onDiskHeaderSize = (NDirect+NIndirect+NDoublyIndirect+2)*block.PointerSize
)

// MaxFileSize is the largest logical length representable by the
// three-tier block index: NDirect direct blocks, plus NIndirect
// indirection blocks of PointersPerBlock entries each, plus
// NDoublyIndirect blocks of PointersPerBlock indirect blocks.
const MaxFileSize = (NDirect + NIndirect*block.PointersPerBlock + NDoublyIndirect*block.PointersPerBlock*block.PointersPerBlock) * block.Size

// Errors returned for invariant violations: a block that does not carry
// the expected magic, or an operation against an inode that is not (or
// no longer) open.
var (
	ErrBadMagic     = errors.New("inode: bad magic, block is not a valid inode")
	ErrInodeNotOpen = errors.New("inode: inode is not open")
)

// OnDisk is the inode record as it is laid out on disk: exactly
// block.Size bytes, little-endian, position-stable.
type OnDisk struct {
	Direct         [NDirect]uint32
	Indirect       [NIndirect]uint32
	DoublyIndirect [NDoublyIndirect]uint32
	Magic          uint32
	Len            uint32
}

// MarshalBlock serializes data into a full block, little-endian, with
// the unused tail zero-padded.
func MarshalBlock(data *OnDisk) block.Block {
	var b block.Block
	off := 0
	putU32s := func(vals []uint32) {
		for _, v := range vals {
			binary.LittleEndian.PutUint32(b[off:], v)
			off += block.PointerSize
		}
	}
	putU32s(data.Direct[:])
	putU32s(data.Indirect[:])
	putU32s(data.DoublyIndirect[:])
	binary.LittleEndian.PutUint32(b[off:], data.Magic)
	off += block.PointerSize
	binary.LittleEndian.PutUint32(b[off:], data.Len)
	// remaining bytes of b are already zero (unused padding)
	return b
}

// UnmarshalBlock deserializes a full block into an OnDisk record.
func UnmarshalBlock(b *block.Block) OnDisk {
	var data OnDisk
	off := 0
	getU32s := func(dst []uint32) {
		for i := range dst {
			dst[i] = binary.LittleEndian.Uint32(b[off:])
			off += block.PointerSize
		}
	}
	getU32s(data.Direct[:])
	getU32s(data.Indirect[:])
	getU32s(data.DoublyIndirect[:])
	data.Magic = binary.LittleEndian.Uint32(b[off:])
	off += block.PointerSize
	data.Len = binary.LittleEndian.Uint32(b[off:])
	return data
}

func newOnDisk() OnDisk {
	return OnDisk{Magic: Magic}
}

// Inode is the in-memory handle around an open on-disk inode: its
// current record, its inumber (the block it lives at), and how many
// outstanding handles reference it.
type Inode struct {
	block     uint32
	data      OnDisk
	openCount int
}

// Inumber returns the block number this inode's on-disk record lives
// at, which also serves as its identifier.
func (i *Inode) Inumber() uint32 {
	return i.block
}

// Length returns the inode's current logical length in bytes.
func (i *Inode) Length() uint32 {
	return i.data.Len
}

func (i *Inode) writeBack(dev block.Device) error {
	b := MarshalBlock(&i.data)
	return dev.WriteBlock(&b, i.block)
}

// fillDirect consumes as many blocks from the iterator as dst has room
// for, skipping the first *skip slots, same bookkeeping as the block
// index's read-side walk uses.
func fillDirect(skip *int, dst []uint32, blocks *[]uint32) {
	for idx := range dst {
		if *skip > 0 {
			*skip--
			continue
		}
		if len(*blocks) == 0 {
			return
		}
		dst[idx] = (*blocks)[0]
		*blocks = (*blocks)[1:]
	}
}

// fillIndirect allocates one indirection block per used slot in dst,
// writing it to disk once its direct pointers have been filled.
func fillIndirect(skip *int, dst []uint32, blocks *[]uint32, dev block.Device) error {
	for idx := range dst {
		if len(*blocks) == 0 {
			return nil
		}
		indirectBlockNum := (*blocks)[0]
		*blocks = (*blocks)[1:]
		dst[idx] = indirectBlockNum

		var ptrs [block.PointersPerBlock]uint32
		fillDirect(skip, ptrs[:], blocks)

		raw := marshalPointerBlock(&ptrs)
		if err := dev.WriteBlock(&raw, indirectBlockNum); err != nil {
			return err
		}
	}
	return nil
}

// fillDoublyIndirect allocates one pointer-to-indirect block per used
// slot in dst, recursively filling and writing its indirect children.
func fillDoublyIndirect(skip *int, dst []uint32, blocks *[]uint32, dev block.Device) error {
	for idx := range dst {
		if len(*blocks) == 0 {
			return nil
		}
		doublyBlockNum := (*blocks)[0]
		*blocks = (*blocks)[1:]
		dst[idx] = doublyBlockNum

		var ptrs [block.PointersPerBlock]uint32
		if err := fillIndirect(skip, ptrs[:], blocks, dev); err != nil {
			return err
		}

		raw := marshalPointerBlock(&ptrs)
		if err := dev.WriteBlock(&raw, doublyBlockNum); err != nil {
			return err
		}
	}
	return nil
}

func marshalPointerBlock(ptrs *[block.PointersPerBlock]uint32) block.Block {
	var b block.Block
	for i, v := range ptrs {
		binary.LittleEndian.PutUint32(b[i*block.PointerSize:], v)
	}
	return b
}

func unmarshalPointerBlock(b *block.Block) [block.PointersPerBlock]uint32 {
	var ptrs [block.PointersPerBlock]uint32
	for i := range ptrs {
		ptrs[i] = binary.LittleEndian.Uint32(b[i*block.PointerSize:])
	}
	return ptrs
}

// directRange appends up to count data block numbers from direct,
// skipping the first skip entries, returning the remaining skip/count.
func directRange(skip int, count int, direct []uint32, blocks *[]uint32) (int, int) {
	for _, d := range direct {
		if count <= 0 {
			break
		}
		if skip > 0 {
			skip--
			continue
		}
		*blocks = append(*blocks, d)
		count--
	}
	return skip, count
}

// indirectRange walks each used indirect pointer's indirection block,
// delegating to directRange over its contents.
func indirectRange(skip, count int, indirect []uint32, blocks *[]uint32, dev block.Device) (int, int, error) {
	for _, indBlockNum := range indirect {
		if count <= 0 {
			break
		}
		var raw block.Block
		if err := dev.ReadBlock(&raw, indBlockNum); err != nil {
			return skip, count, err
		}
		ptrs := unmarshalPointerBlock(&raw)
		skip, count = directRange(skip, count, ptrs[:], blocks)
	}
	return skip, count, nil
}

// doublyIndirectRange walks each used doubly-indirect pointer's block
// of indirect pointers, delegating to indirectRange over its contents.
func doublyIndirectRange(skip, count int, doubly []uint32, blocks *[]uint32, dev block.Device) (int, int, error) {
	for _, doublyBlockNum := range doubly {
		if count <= 0 {
			break
		}
		var raw block.Block
		if err := dev.ReadBlock(&raw, doublyBlockNum); err != nil {
			return skip, count, err
		}
		ptrs := unmarshalPointerBlock(&raw)
		var err error
		skip, count, err = indirectRange(skip, count, ptrs[:], blocks, dev)
		if err != nil {
			return skip, count, err
		}
	}
	return skip, count, nil
}

// blockRange produces the ordered list of data block numbers covering
// the byte range [offset, offset+bufLen) of this inode's content.
func (i *Inode) blockRange(bufLen, offset uint32, dev block.Device) ([]uint32, error) {
	skip := int(offset / block.Size)
	count := int((bufLen + block.Size - 1) / block.Size)

	var blocks []uint32
	skip, count = directRange(skip, count, i.data.Direct[:], &blocks)

	var err error
	if count > 0 {
		skip, count, err = indirectRange(skip, count, i.data.Indirect[:], &blocks, dev)
		if err != nil {
			return nil, err
		}
	}
	if count > 0 {
		_, _, err = doublyIndirectRange(skip, count, i.data.DoublyIndirect[:], &blocks, dev)
		if err != nil {
			return nil, err
		}
	}
	return blocks, nil
}

// ReadAt reads up to len(buf) bytes starting at offset into buf,
// stopping early at the inode's logical length. It returns the number
// of bytes actually transferred. Each block is staged through a
// full-block bounce buffer: the device interface is strictly
// block-granular, so a sub-block read is always satisfied by reading
// the whole block and copying out the slice that was asked for.
func (i *Inode) ReadAt(buf []byte, offset uint32, dev block.Device) (uint32, error) {
	blocks, err := i.blockRange(uint32(len(buf)), offset, dev)
	if err != nil {
		return 0, err
	}

	var transferred uint32
	size := uint32(len(buf))
	ofs := offset
	blockIdx := 0

	for size > 0 {
		if blockIdx >= len(blocks) {
			return transferred, fmt.Errorf("inode %d: block index exhausted reading at offset %d", i.block, ofs)
		}
		blockOfs := ofs % block.Size
		blockNum := blocks[blockIdx]
		blockIdx++

		inodeLeft := int64(i.data.Len) - int64(ofs)
		blockLeft := int64(block.Size) - int64(blockOfs)
		minLeft := inodeLeft
		if blockLeft < minLeft {
			minLeft = blockLeft
		}
		chunk := int64(size)
		if minLeft < chunk {
			chunk = minLeft
		}
		if chunk <= 0 {
			break
		}

		var bounce block.Block
		if err := dev.ReadBlock(&bounce, blockNum); err != nil {
			return transferred, err
		}
		copy(buf[transferred:uint32(int64(transferred)+chunk)], bounce[blockOfs:uint32(int64(blockOfs)+chunk)])

		transferred += uint32(chunk)
		size -= uint32(chunk)
		ofs += uint32(chunk)
	}

	return transferred, nil
}

// WriteAt writes len(buf) bytes starting at offset, read-modify-write
// through the same bounce buffer ReadAt uses, stopping early at the
// inode's logical length (WriteAt never grows the inode; callers must
// SetLen first).
func (i *Inode) WriteAt(buf []byte, offset uint32, dev block.Device) (uint32, error) {
	blocks, err := i.blockRange(uint32(len(buf)), offset, dev)
	if err != nil {
		return 0, err
	}

	var transferred uint32
	size := uint32(len(buf))
	ofs := offset
	blockIdx := 0

	for size > 0 {
		if blockIdx >= len(blocks) {
			return transferred, fmt.Errorf("inode %d: block index exhausted writing at offset %d", i.block, ofs)
		}
		blockOfs := ofs % block.Size
		blockNum := blocks[blockIdx]
		blockIdx++

		inodeLeft := int64(i.data.Len) - int64(ofs)
		blockLeft := int64(block.Size) - int64(blockOfs)
		minLeft := inodeLeft
		if blockLeft < minLeft {
			minLeft = blockLeft
		}
		chunk := int64(size)
		if minLeft < chunk {
			chunk = minLeft
		}
		if chunk <= 0 {
			break
		}

		var bounce block.Block
		if err := dev.ReadBlock(&bounce, blockNum); err != nil {
			return transferred, err
		}
		copy(bounce[blockOfs:uint32(int64(blockOfs)+chunk)], buf[transferred:uint32(int64(transferred)+chunk)])
		if err := dev.WriteBlock(&bounce, blockNum); err != nil {
			return transferred, err
		}

		transferred += uint32(chunk)
		size -= uint32(chunk)
		ofs += uint32(chunk)
	}

	return transferred, nil
}

// SetLen grows the inode's allocation, if needed, to cover newLen bytes
// and updates its logical length. If the already-allocated blocks
// already cover newLen, only the in-memory length changes — already
// allocated blocks beyond the new length are never truncated.
//
// The fix for a previously known defect: the append targets here are
// the inode's own Indirect/DoublyIndirect arrays, not Direct.
func (i *Inode) SetLen(newLen uint32, fm *freemap.FreeMap, dev block.Device) error {
	curBlockCount := blockCeil(i.data.Len)
	reqBlockCount := blockCeil(newLen)

	if curBlockCount >= reqBlockCount {
		i.data.Len = newLen
		return nil
	}

	delta := reqBlockCount - curBlockCount
	allocated, err := fm.Allocate(int(delta))
	if err != nil {
		return err
	}
	blocks := allocated

	skip := int(curBlockCount)
	fillDirect(&skip, i.data.Direct[:], &blocks)
	if err := fillIndirect(&skip, i.data.Indirect[:], &blocks, dev); err != nil {
		return err
	}
	if err := fillDoublyIndirect(&skip, i.data.DoublyIndirect[:], &blocks, dev); err != nil {
		return err
	}

	i.data.Len = newLen
	return i.writeBack(dev)
}

func blockCeil(length uint32) uint32 {
	return (length + block.Size - 1) / block.Size
}
