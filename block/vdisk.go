package block

import (
	"fmt"

	"github.com/PriyanshC/virtual-file-system/backend"
	backendfile "github.com/PriyanshC/virtual-file-system/backend/file"
)

// VDisk is a block device backed by an ordinary host file. Byte range
// [n*Size, (n+1)*Size) of the host file holds block n. There is no
// on-disk header; the block count is either supplied at creation time
// or derived from the host file's size at identify time.
type VDisk struct {
	storage    backend.Storage
	blockCount uint32
}

// NewVDisk creates a new host file at hostPath, pre-sized to
// blockCount*Size bytes, and returns a VDisk backed by it. The host
// file must not already exist.
func NewVDisk(hostPath string, blockCount uint32) (*VDisk, error) {
	if blockCount == 0 {
		return nil, fmt.Errorf("block: disk block count must be positive")
	}
	storage, err := backendfile.CreateFromPath(hostPath, int64(blockCount)*Size)
	if err != nil {
		return nil, fmt.Errorf("%w: creating host file %s: %v", ErrDeviceFault, hostPath, err)
	}
	return &VDisk{storage: storage, blockCount: blockCount}, nil
}

// IdentifyVDisk opens an existing host file at hostPath and derives its
// block count from its size, which must be an exact multiple of Size.
func IdentifyVDisk(hostPath string) (*VDisk, uint32, error) {
	storage, err := backendfile.OpenFromPath(hostPath, false)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: opening host file %s: %v", ErrDeviceFault, hostPath, err)
	}
	info, err := storage.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: stat host file %s: %v", ErrDeviceFault, hostPath, err)
	}
	size := info.Size()
	if size%Size != 0 {
		return nil, 0, fmt.Errorf("block: host file %s size %d is not a multiple of block size %d", hostPath, size, Size)
	}
	blockCount := uint32(size / Size)
	return &VDisk{storage: storage, blockCount: blockCount}, blockCount, nil
}

// ReadBlock transfers exactly Size bytes from block pos into buf.
func (d *VDisk) ReadBlock(buf *Block, pos uint32) error {
	if pos >= d.blockCount {
		return fmt.Errorf("block: read position %d out of range (block count %d)", pos, d.blockCount)
	}
	n, err := d.storage.ReadAt(buf[:], int64(pos)*Size)
	if err != nil || n != Size {
		return fmt.Errorf("%w: reading block %d: %v", ErrDeviceFault, pos, err)
	}
	return nil
}

// WriteBlock transfers exactly Size bytes from buf to block pos.
func (d *VDisk) WriteBlock(buf *Block, pos uint32) error {
	if pos >= d.blockCount {
		return fmt.Errorf("block: write position %d out of range (block count %d)", pos, d.blockCount)
	}
	writable, err := d.storage.Writable()
	if err != nil {
		return fmt.Errorf("%w: disk not writable: %v", ErrDeviceFault, err)
	}
	n, err := writable.WriteAt(buf[:], int64(pos)*Size)
	if err != nil || n != Size {
		return fmt.Errorf("%w: writing block %d: %v", ErrDeviceFault, pos, err)
	}
	return nil
}

// Flush durably persists every write issued so far. Durability is
// best-effort: there is no journal, so a crash mid-write can still
// leave a torn block.
func (d *VDisk) Flush() error {
	if err := fsync(d.storage); err != nil {
		return fmt.Errorf("%w: flushing host file: %v", ErrDeviceFault, err)
	}
	return nil
}

// BlockCount reports the disk's total addressable block count.
func (d *VDisk) BlockCount() uint32 {
	return d.blockCount
}

// Close releases the underlying host file.
func (d *VDisk) Close() error {
	return d.storage.Close()
}

var _ Device = (*VDisk)(nil)
