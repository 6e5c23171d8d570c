// Package vfilesys is the external contract of the virtual filesystem:
// a thin facade that wires together the block, inode, free-map,
// directory, and vfile layers behind a handful of file and directory
// operations. It mirrors how the teacher's own top-level package
// exposes disk.Disk as the one type applications construct directly,
// with everything underneath it reached only through that type's
// methods.
package vfilesys

import (
	"errors"
	"fmt"

	"github.com/PriyanshC/virtual-file-system/block"
	"github.com/PriyanshC/virtual-file-system/directory"
	"github.com/PriyanshC/virtual-file-system/freemap"
	"github.com/PriyanshC/virtual-file-system/inode"
	"github.com/PriyanshC/virtual-file-system/vfile"
	"github.com/PriyanshC/virtual-file-system/vlog"
	"github.com/sirupsen/logrus"
)

// ErrNotImplemented is returned by operations the original design left
// as an open TODO: reopening a previously-created disk and removing a
// file. Both require on-disk persistence of the free map that this
// implementation does not carry (see DESIGN.md).
var ErrNotImplemented = errors.New("vfilesys: not implemented")

// ErrFreeMapNotInitialized is returned by any operation that allocates
// blocks before InitFreeMap has been called.
var ErrFreeMapNotInitialized = errors.New("vfilesys: free map not initialized")

// CacheStrategy selects whether a disk's block device is wrapped in an
// ARC cache, and with what capacity.
type CacheStrategy struct {
	arc      bool
	capacity int
}

// CacheNone disables caching: every block read/write reaches the host
// file directly.
func CacheNone() CacheStrategy {
	return CacheStrategy{}
}

// CacheArc wraps the disk in an ARC cache holding up to capacity
// resident blocks.
func CacheArc(capacity int) CacheStrategy {
	return CacheStrategy{arc: true, capacity: capacity}
}

// Filesystem is the single type applications construct and operate
// through. It owns the device registry, the open-inode table, and
// (once InitFreeMap has run) the free-space allocator.
type Filesystem struct {
	devices *block.Manager
	inodes  *inode.Manager
	disk    block.Device
	freeMap *freemap.FreeMap
	log     *logrus.Logger
}

// New returns an empty Filesystem with no disk registered yet.
func New() *Filesystem {
	return &Filesystem{
		devices: block.NewManager(),
		log:     vlog.New(),
	}
}

func (fs *Filesystem) device() (block.Device, error) {
	if fs.disk == nil {
		return nil, fmt.Errorf("vfilesys: no disk registered")
	}
	return fs.disk, nil
}

// NewDisk creates a fresh host file at hostPath sized blockCount
// blocks, registers it as the active disk, and wraps it in strategy's
// cache (if any).
func (fs *Filesystem) NewDisk(hostPath string, blockCount uint32, strategy CacheStrategy) error {
	vdisk, err := block.NewVDisk(hostPath, blockCount)
	if err != nil {
		return fmt.Errorf("vfilesys: new disk: %w", err)
	}

	var dev block.Device = vdisk
	if strategy.arc {
		cached, err := block.NewArcCacheDisk(vdisk, strategy.capacity)
		if err != nil {
			return fmt.Errorf("vfilesys: new disk: %w", err)
		}
		dev = cached
	}

	if err := fs.devices.Register("DISK", blockCount, dev, block.RoleDisk); err != nil {
		return fmt.Errorf("vfilesys: new disk: %w", err)
	}
	fs.disk, err = fs.devices.Get(block.RoleDisk)
	if err != nil {
		return err
	}
	fs.inodes = inode.NewManager(fs.disk)

	fs.log.WithFields(logrus.Fields{
		"host_path":   hostPath,
		"block_count": blockCount,
		"cache":       strategy.arc,
	}).Info("created disk")
	return nil
}

// LoadDisk is meant to reopen a previously-created disk, reading its
// persisted free map back from the host file. The original design
// left this as an open TODO ("ensure free map reads from disk"); this
// implementation carries the same gap rather than inventing an
// on-disk free-map format the spec never defines (see DESIGN.md).
func (fs *Filesystem) LoadDisk(hostPath string) error {
	return fmt.Errorf("vfilesys: load disk: %w", ErrNotImplemented)
}

// InitFreeMap builds an in-memory free-space bitmap sized to the
// registered disk and creates the reserved root-directory inode at
// freemap.RootInumber. It must be called once, after NewDisk, before
// any file operation.
func (fs *Filesystem) InitFreeMap() error {
	dev, err := fs.device()
	if err != nil {
		return err
	}

	fm, err := freemap.New(dev.BlockCount())
	if err != nil {
		return fmt.Errorf("vfilesys: init free map: %w", err)
	}
	fs.freeMap = fm

	// The root inode stays open for the filesystem's lifetime: a directory
	// Add that fits in already-allocated blocks changes the root's length
	// in memory only (see inode.Inode.SetLen), so the in-memory record
	// must outlive each operation's open/close of the root.
	if _, err := fs.inodes.CreateAt(freemap.RootInumber); err != nil {
		return fmt.Errorf("vfilesys: init free map: %w", err)
	}

	fs.log.WithField("block_count", dev.BlockCount()).Info("initialized free map")
	return nil
}

// CreateFile allocates a new file of the given length and adds it to
// the (flat) directory namespace under path.
func (fs *Filesystem) CreateFile(path string, length uint32) error {
	dev, err := fs.device()
	if err != nil {
		return err
	}
	if fs.freeMap == nil {
		return ErrFreeMapNotInitialized
	}

	in, err := fs.inodes.Create(fs.freeMap)
	if err != nil {
		return fmt.Errorf("vfilesys: create file %q: %w", path, err)
	}
	inumber := in.Inumber()

	if err := in.SetLen(length, fs.freeMap, dev); err != nil {
		_ = fs.inodes.Close(in)
		_ = fs.freeMap.Release(inumber)
		return fmt.Errorf("vfilesys: create file %q: %w", path, err)
	}
	if err := fs.inodes.Close(in); err != nil {
		return err
	}

	dir, err := directory.OpenPath(path, fs.inodes)
	if err != nil {
		return fmt.Errorf("vfilesys: create file %q: %w", path, err)
	}
	defer fs.inodes.Close(dir.Inode())

	if err := dir.Add(path, inumber, fs.freeMap, dev); err != nil {
		return fmt.Errorf("vfilesys: create file %q: %w", path, err)
	}

	fs.log.WithFields(logrus.Fields{"path": path, "length": length}).Info("created file")
	return nil
}

// OpenFile resolves path and returns a positioned handle over it. The
// caller is responsible for closing the returned File.
func (fs *Filesystem) OpenFile(path string) (*vfile.File, error) {
	dev, err := fs.device()
	if err != nil {
		return nil, err
	}

	dir, err := directory.OpenPath(path, fs.inodes)
	if err != nil {
		return nil, fmt.Errorf("vfilesys: open file %q: %w", path, err)
	}
	defer fs.inodes.Close(dir.Inode())

	inumber, found, err := dir.Lookup(path, dev)
	if err != nil {
		return nil, fmt.Errorf("vfilesys: open file %q: %w", path, err)
	}
	if !found {
		return nil, fmt.Errorf("vfilesys: open file %q: %w", path, directory.ErrNotFound)
	}

	in, err := fs.inodes.Open(inumber)
	if err != nil {
		return nil, fmt.Errorf("vfilesys: open file %q: %w", path, err)
	}
	return vfile.Open(in), nil
}

// CloseFile releases f's reference to its inode.
func (fs *Filesystem) CloseFile(f *vfile.File) error {
	return f.Close(fs.inodes)
}

// FileRead reads into buf at offset bytes into f's current position,
// the same contract vfile.File.Read exposes directly.
func (fs *Filesystem) FileRead(f *vfile.File, buf []byte, offset uint32) (uint32, error) {
	dev, err := fs.device()
	if err != nil {
		return 0, err
	}
	return f.Read(buf, offset, dev)
}

// FileWrite writes buf at offset bytes into f's current position. The
// inode must already be long enough; callers that are extending a file
// should grow it first via f.Inode().SetLen.
func (fs *Filesystem) FileWrite(f *vfile.File, buf []byte, offset uint32) (uint32, error) {
	dev, err := fs.device()
	if err != nil {
		return 0, err
	}
	return f.Write(buf, offset, dev)
}

// RemoveFile is not implemented: the original design left it as an
// open TODO, and implementing it correctly requires deciding how a
// removed file's blocks and directory slot interact with files still
// open on it, which spec.md does not specify (see DESIGN.md).
func (fs *Filesystem) RemoveFile(path string) error {
	return fmt.Errorf("vfilesys: remove file %q: %w", path, ErrNotImplemented)
}

// List returns the names of every file in the (flat) directory
// namespace under path.
func (fs *Filesystem) List(path string) ([]string, error) {
	dev, err := fs.device()
	if err != nil {
		return nil, err
	}
	dir, err := directory.OpenPath(path, fs.inodes)
	if err != nil {
		return nil, fmt.Errorf("vfilesys: list %q: %w", path, err)
	}
	defer fs.inodes.Close(dir.Inode())
	return dir.List(dev)
}

// DisplayDiskStats logs the registered disk's name, instance id, and
// read/write counters.
func (fs *Filesystem) DisplayDiskStats() error {
	name, instanceID, reads, writes, err := fs.devices.Stats(block.RoleDisk)
	if err != nil {
		return err
	}
	fs.log.WithFields(logrus.Fields{
		"name":        name,
		"instance_id": instanceID,
		"reads":       reads,
		"writes":      writes,
	}).Info("disk stats")
	return nil
}
