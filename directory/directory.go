// Package directory implements the fixed-record flat directory: a
// single inode whose content is a packed array of name/block/in_use
// entries, scanned linearly for lookup, add, and listing.
package directory

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/PriyanshC/virtual-file-system/block"
	"github.com/PriyanshC/virtual-file-system/freemap"
	"github.com/PriyanshC/virtual-file-system/inode"
)

// NameMax is the longest name a directory entry can hold, not counting
// the trailing NUL the on-disk layout reserves.
const NameMax = 15

// entrySize is the exact on-disk width of one directory entry:
// NameMax+1 name bytes, a 4-byte little-endian block number, and a
// single in-use byte.
const entrySize = NameMax + 1 + block.PointerSize + 1

// Errors a caller can distinguish by identity.
var (
	ErrInvalidName = errors.New("directory: invalid name")
	ErrNameExists  = errors.New("directory: name already exists")
	ErrNotFound    = errors.New("directory: name not found")
)

// Entry is one directory record: a name, the inumber it names, and
// whether the slot is currently occupied.
type Entry struct {
	Name  [NameMax + 1]byte
	Block uint32
	InUse bool
}

func marshalEntry(e *Entry) [entrySize]byte {
	var raw [entrySize]byte
	copy(raw[:NameMax+1], e.Name[:])
	binary.LittleEndian.PutUint32(raw[NameMax+1:], e.Block)
	if e.InUse {
		raw[entrySize-1] = 1
	}
	return raw
}

func unmarshalEntry(raw []byte) Entry {
	var e Entry
	copy(e.Name[:], raw[:NameMax+1])
	e.Block = binary.LittleEndian.Uint32(raw[NameMax+1:])
	e.InUse = raw[entrySize-1] != 0
	return e
}

// validateName rejects the empty name, names longer than NameMax,
// names containing a non-ASCII byte, and names containing a NUL (which
// would be indistinguishable on disk from the trimmed end of a shorter
// name).
func validateName(name string) error {
	if len(name) == 0 || len(name) > NameMax {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == 0 {
			return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidName, name)
		}
		if name[i] > 0x7f {
			return fmt.Errorf("%w: %q contains a non-ASCII byte", ErrInvalidName, name)
		}
	}
	return nil
}

func encodeName(name string) [NameMax + 1]byte {
	var b [NameMax + 1]byte
	copy(b[:], name)
	return b
}

func decodeName(b [NameMax + 1]byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b[:])
}

// Directory wraps an inode whose content is a packed Entry array.
type Directory struct {
	in *inode.Inode
}

// Open wraps an already-open inode as a Directory. Callers are
// responsible for opening/closing the underlying inode through an
// inode.Manager.
func Open(in *inode.Inode) *Directory {
	return &Directory{in: in}
}

// Lookup scans the directory for name and returns its block number.
// The bool result is false, with a nil error, when no matching in-use
// entry exists.
func (d *Directory) Lookup(name string, dev block.Device) (uint32, bool, error) {
	if err := validateName(name); err != nil {
		return 0, false, err
	}

	length := d.in.Length()
	buf := make([]byte, entrySize)
	for off := uint32(0); off+entrySize <= length; off += entrySize {
		n, err := d.in.ReadAt(buf, off, dev)
		if err != nil {
			return 0, false, err
		}
		if n != entrySize {
			return 0, false, fmt.Errorf("directory: short read at offset %d", off)
		}
		e := unmarshalEntry(buf)
		if e.InUse && decodeName(e.Name) == name {
			return e.Block, true, nil
		}
	}
	return 0, false, nil
}

// Add inserts a new entry mapping name to inumber. It fails with
// ErrInvalidName or ErrNameExists without modifying the directory. If
// an unused slot exists it is reused; otherwise the directory grows by
// exactly one entry.
//
// The new entry is appended at the directory's current length in
// bytes. A previously known defect computed this append position as
// ceil(old_len / entrySize) — a block-count-shaped quantity being used
// as a byte offset — which is the right offset only when old_len is 0,
// so it corrupted the directory as soon as it held an entry. Appending
// at old_len avoids that entirely.
func (d *Directory) Add(name string, inumber uint32, fm *freemap.FreeMap, dev block.Device) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, found, err := d.Lookup(name, dev); err != nil {
		return err
	} else if found {
		return fmt.Errorf("%w: %q", ErrNameExists, name)
	}

	entry := Entry{Name: encodeName(name), Block: inumber, InUse: true}
	raw := marshalEntry(&entry)

	length := d.in.Length()
	buf := make([]byte, entrySize)
	for off := uint32(0); off+entrySize <= length; off += entrySize {
		n, err := d.in.ReadAt(buf, off, dev)
		if err != nil {
			return err
		}
		if n != entrySize {
			return fmt.Errorf("directory: short read at offset %d", off)
		}
		existing := unmarshalEntry(buf)
		if !existing.InUse {
			_, err := d.in.WriteAt(raw[:], off, dev)
			return err
		}
	}

	oldLen := length
	if err := d.in.SetLen(oldLen+entrySize, fm, dev); err != nil {
		return err
	}
	_, err := d.in.WriteAt(raw[:], oldLen, dev)
	return err
}

// List returns the names of every in-use entry, in on-disk order.
func (d *Directory) List(dev block.Device) ([]string, error) {
	length := d.in.Length()
	buf := make([]byte, entrySize)
	var names []string
	for off := uint32(0); off+entrySize <= length; off += entrySize {
		n, err := d.in.ReadAt(buf, off, dev)
		if err != nil {
			return nil, err
		}
		if n != entrySize {
			return nil, fmt.Errorf("directory: short read at offset %d", off)
		}
		e := unmarshalEntry(buf)
		if e.InUse {
			names = append(names, decodeName(e.Name))
		}
	}
	return names, nil
}

// OpenRoot opens the root directory's inode (inode.Manager always
// keys it at freemap.RootInumber) and wraps it as a Directory.
func OpenRoot(mgr *inode.Manager) (*Directory, error) {
	in, err := mgr.Open(freemap.RootInumber)
	if err != nil {
		return nil, fmt.Errorf("directory: open root: %w", err)
	}
	return Open(in), nil
}

// OpenPath resolves path to a Directory. This implementation treats
// every path as naming the root directory: nested directories are a
// declared non-goal, so any string passed here yields the same result
// as OpenRoot.
func OpenPath(path string, mgr *inode.Manager) (*Directory, error) {
	return OpenRoot(mgr)
}

// Inode exposes the underlying inode, e.g. so a caller can Close it
// through the same inode.Manager that opened it.
func (d *Directory) Inode() *inode.Inode {
	return d.in
}
