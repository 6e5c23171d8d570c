// Package block provides the block-device abstraction that every higher
// layer of the filesystem (inodes, free map, directories) reads and
// writes through: fixed-size block I/O, a named-device registry, and an
// adaptive-replacement cache that can be interposed in front of any
// device.
package block

import "errors"

// Size is the fixed length, in bytes, of every block transferred to or
// from a Device. All device I/O is in whole blocks.
const Size = 1024

// Block is a single fixed-size unit of device I/O.
type Block [Size]byte

// PointerSize is the serialized width of a block number.
const PointerSize = 4

// PointersPerBlock is how many block numbers fit in one indirection block.
const PointersPerBlock = Size / PointerSize

// ErrDeviceFault indicates a failure at the host-file layer. Per the
// design's propagation policy, device faults are not retried; callers
// should treat them as fatal.
var ErrDeviceFault = errors.New("block: device fault")

// Device is the contract every block-granular storage layer implements:
// the raw VDisk, the ARC cache that wraps it, and the counting wrapper
// the Manager installs around a registered device.
type Device interface {
	// ReadBlock reads the block at position pos into buf.
	ReadBlock(buf *Block, pos uint32) error
	// WriteBlock writes buf to the block at position pos.
	WriteBlock(buf *Block, pos uint32) error
	// Flush persists any buffered state to stable storage.
	Flush() error
	// BlockCount reports the device's total addressable block count.
	BlockCount() uint32
}
