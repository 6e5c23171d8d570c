// Package freemap implements the free-space bitmap allocator: one bit
// per block on the device, kept in memory only.
package freemap

import (
	"errors"
	"fmt"

	"github.com/PriyanshC/virtual-file-system/util/bitmap"
)

// ErrOutOfSpace is returned by Allocate when the device does not have
// enough free blocks to satisfy the request.
var ErrOutOfSpace = errors.New("freemap: out of space")

// Well-known inumbers: the root directory's inode always lives at
// block 0, and the free map's own inode lives at block 1. Both are
// marked in-use by New so a fresh allocator never hands them out.
const (
	RootInumber    uint32 = 0
	FreeMapInumber uint32 = 1
	firstDataBlock uint32 = 2
)

// FreeMap tracks which blocks on the device are currently allocated.
type FreeMap struct {
	bm    *bitmap.Bitmap
	count int
}

// New builds a FreeMap covering blockCount blocks, with the root and
// free-map inumbers pre-marked in-use.
func New(blockCount uint32) (*FreeMap, error) {
	bm := bitmap.NewBits(int(blockCount))
	fm := &FreeMap{bm: bm, count: int(blockCount)}
	if _, err := fm.bm.TestAndMark(int(RootInumber)); err != nil {
		return nil, err
	}
	if _, err := fm.bm.TestAndMark(int(FreeMapInumber)); err != nil {
		return nil, err
	}
	return fm, nil
}

// FromBitmap wraps an already-populated bitmap; the map then covers
// every bit the bitmap addresses.
func FromBitmap(bm *bitmap.Bitmap) *FreeMap {
	return &FreeMap{bm: bm, count: bm.Count()}
}

// Bitmap exposes the underlying bitmap, for persistence by the caller.
func (fm *FreeMap) Bitmap() *bitmap.Bitmap {
	return fm.bm
}

// Allocate marks k previously-free blocks in-use and returns their
// block numbers. If fewer than k free blocks are available, Allocate
// rolls back every bit it had already marked before returning the
// error, leaving the map exactly as it found it.
//
// This rollback is a fix over a previously known defect: a shortfall
// partway through used to leave the blocks already marked stuck
// allocated with no owner.
func (fm *FreeMap) Allocate(k int) ([]uint32, error) {
	if k == 0 {
		return nil, nil
	}
	if k < 0 {
		return nil, fmt.Errorf("freemap: cannot allocate negative count %d", k)
	}

	allocated := make([]uint32, 0, k)
	for loc := 0; loc < fm.count && len(allocated) < k; loc++ {
		claimed, err := fm.bm.TestAndMark(loc)
		if err != nil {
			fm.rollback(allocated)
			return nil, err
		}
		if claimed {
			allocated = append(allocated, uint32(loc))
		}
	}

	if len(allocated) < k {
		fm.rollback(allocated)
		return nil, fmt.Errorf("%w: need %d blocks, found %d", ErrOutOfSpace, k, len(allocated))
	}

	return allocated, nil
}

func (fm *FreeMap) rollback(allocated []uint32) {
	for _, loc := range allocated {
		_ = fm.bm.SetValue(int(loc), false)
	}
}

// Release marks block n free again.
func (fm *FreeMap) Release(n uint32) error {
	return fm.bm.SetValue(int(n), false)
}

// FreeCount returns the number of currently unallocated blocks.
func (fm *FreeMap) FreeCount() int {
	free := 0
	for loc := 0; loc < fm.count; loc++ {
		if v, err := fm.bm.IsSet(loc); err == nil && !v {
			free++
		}
	}
	return free
}
