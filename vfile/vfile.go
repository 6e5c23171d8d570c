// Package vfile implements a positioned read/write handle over an
// open inode, the file-descriptor-shaped object the facade hands back
// from CreateFile/OpenFile.
package vfile

import (
	"fmt"

	"github.com/PriyanshC/virtual-file-system/block"
	"github.com/PriyanshC/virtual-file-system/inode"
)

// File is a cursor over an inode's content: reads and writes happen at
// the current position and advance it by the number of bytes
// transferred, the same contract an *os.File gives its caller.
type File struct {
	pos uint32
	in  *inode.Inode
}

// Open wraps an already-open inode as a File, positioned at the start.
func Open(in *inode.Inode) *File {
	return &File{in: in}
}

// Read transfers up to len(buf) bytes starting at pos+offset, stopping
// at the inode's logical length, and advances pos by the amount
// transferred.
func (f *File) Read(buf []byte, offset uint32, dev block.Device) (uint32, error) {
	n, err := f.in.ReadAt(buf, f.pos+offset, dev)
	f.pos += n
	return n, err
}

// Write transfers len(buf) bytes starting at pos+offset and advances
// pos by the amount transferred. The caller is responsible for
// growing the inode first (via Inode().SetLen) if the write would
// extend past the current length.
func (f *File) Write(buf []byte, offset uint32, dev block.Device) (uint32, error) {
	n, err := f.in.WriteAt(buf, f.pos+offset, dev)
	f.pos += n
	return n, err
}

// SeekStart resets the position to the beginning of the file.
func (f *File) SeekStart() {
	f.pos = 0
}

// Seek advances the position by delta bytes, which may be negative. It
// refuses to move before the start of the file.
func (f *File) Seek(delta int64) error {
	next := int64(f.pos) + delta
	if next < 0 {
		return fmt.Errorf("vfile: seek before start of file (pos=%d delta=%d)", f.pos, delta)
	}
	f.pos = uint32(next)
	return nil
}

// Tell reports the current position.
func (f *File) Tell() uint32 {
	return f.pos
}

// Length reports the file's current logical length.
func (f *File) Length() uint32 {
	return f.in.Length()
}

// Inumber reports the inode number backing this file.
func (f *File) Inumber() uint32 {
	return f.in.Inumber()
}

// Inode exposes the underlying inode, e.g. to grow it via SetLen
// before a Write, or to Close it through an inode.Manager.
func (f *File) Inode() *inode.Inode {
	return f.in
}

// Compare reports whether two File handles refer to the same inode.
func (f *File) Compare(other *File) bool {
	if other == nil {
		return false
	}
	return f.in.Inumber() == other.in.Inumber()
}

// Close releases this handle's reference to its inode through mgr.
func (f *File) Close(mgr *inode.Manager) error {
	return mgr.Close(f.in)
}
