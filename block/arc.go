package block

import "fmt"

// listID names which of the four ARC lists a block number currently
// occupies: T1/T2 hold resident data, B1/B2 are ghost entries recording
// recently evicted block numbers.
type listID int

const (
	listT1 listID = iota
	listT2
	listB1
	listB2
)

// cacheEntry is a resident ARC page: a full block buffer plus its dirty
// bit.
type cacheEntry struct {
	buf   Block
	dirty bool
}

// fifo is a simple FIFO queue of block numbers, the Go-shaped
// equivalent of the reference design's VecDeque-backed lists. A plain
// slice is adequate here: this is a single-threaded, educational cache
// with no concurrent access to the queues.
type fifo struct {
	items []uint32
}

func (q *fifo) pushBack(v uint32) {
	q.items = append(q.items, v)
}

func (q *fifo) popFront() (uint32, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

func (q *fifo) remove(v uint32) {
	for i, item := range q.items {
		if item == v {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

func (q *fifo) len() int {
	return len(q.items)
}

// ArcCacheDisk interposes an adaptive replacement cache (ARC) in front
// of an underlying Device. It maintains four lists (T1/T2 resident,
// B1/B2 ghost) and an adaptive target p for the size of T1, exactly as
// described by Megiddo & Modha's ARC algorithm.
type ArcCacheDisk struct {
	underlying Device
	capacity   int
	p          int

	t1, t2, b1, b2 fifo
	dataStore      map[uint32]*cacheEntry
	pageLocation   map[uint32]listID
}

// NewArcCacheDisk wraps underlying in an ARC cache holding up to
// capacity resident blocks. capacity must be at least 1.
func NewArcCacheDisk(underlying Device, capacity int) (*ArcCacheDisk, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("block: ARC cache capacity must be at least 1, got %d", capacity)
	}
	return &ArcCacheDisk{
		underlying:   underlying,
		capacity:     capacity,
		dataStore:    make(map[uint32]*cacheEntry, capacity),
		pageLocation: make(map[uint32]listID, capacity*2),
	}, nil
}

func (c *ArcCacheDisk) listOf(id listID) *fifo {
	switch id {
	case listT1:
		return &c.t1
	case listT2:
		return &c.t2
	case listB1:
		return &c.b1
	case listB2:
		return &c.b2
	default:
		panic(fmt.Sprintf("block: invalid ARC list id %d", id))
	}
}

func (c *ArcCacheDisk) removeFrom(pos uint32, from listID) {
	c.listOf(from).remove(pos)
}

func (c *ArcCacheDisk) addToMRU(pos uint32, to listID) {
	if to != listT1 && to != listT2 {
		panic("block: ARC attempted to add to MRU of a ghost list")
	}
	c.listOf(to).pushBack(pos)
	c.pageLocation[pos] = to
}

func (c *ArcCacheDisk) movePage(pos uint32, from, to listID) {
	c.removeFrom(pos, from)
	c.addToMRU(pos, to)
}

// evict makes room for one more resident block, writing back a dirty
// victim before dropping it, and records the victim in its ghost list.
// After recording it, the ghost lists are trimmed from their LRU ends
// so that |T1|+|B1| <= capacity and |B1|+|B2| <= capacity: unlike the
// design this cache is modeled on, ghost lists here never grow without
// bound.
func (c *ArcCacheDisk) evict() error {
	if c.t1.len() == 0 && c.t2.len() == 0 {
		return fmt.Errorf("block: ARC evict called with no resident blocks")
	}

	evictFromT1 := c.t1.len() > 0 && (c.t1.len() > c.p || c.t2.len() == 0)

	var evictedPos uint32
	var ghostList listID
	if evictFromT1 {
		evictedPos, _ = c.t1.popFront()
		ghostList = listB1
	} else {
		evictedPos, _ = c.t2.popFront()
		ghostList = listB2
	}

	if entry, ok := c.dataStore[evictedPos]; ok {
		if entry.dirty {
			if err := c.underlying.WriteBlock(&entry.buf, evictedPos); err != nil {
				return err
			}
		}
	}

	delete(c.dataStore, evictedPos)
	c.pageLocation[evictedPos] = ghostList
	c.listOf(ghostList).pushBack(evictedPos)

	c.trimGhostLists()
	return nil
}

// trimGhostLists enforces |T1|+|B1| <= capacity and |B1|+|B2| <= capacity
// by dropping the LRU end of B1, then B2, until both hold. Without this,
// the ghost lists grow without bound.
func (c *ArcCacheDisk) trimGhostLists() {
	for c.t1.len()+c.b1.len() > c.capacity {
		pos, ok := c.b1.popFront()
		if !ok {
			break
		}
		delete(c.pageLocation, pos)
	}
	for c.b1.len()+c.b2.len() > c.capacity {
		pos, ok := c.b2.popFront()
		if !ok {
			break
		}
		delete(c.pageLocation, pos)
	}
}

// adaptOnGhostHit updates p following a hit in the named ghost list and
// removes pos from it, per the ARC adaptation rule.
func (c *ArcCacheDisk) adaptOnGhostHit(pos uint32, hit listID) {
	switch hit {
	case listB1:
		delta := 1
		if c.b1.len() >= c.b2.len() && c.b2.len() > 0 {
			delta = max(1, c.b2.len()/c.b1.len())
		}
		c.p = min(c.p+delta, c.capacity)
	case listB2:
		delta := 1
		if c.b2.len() >= c.b1.len() && c.b1.len() > 0 {
			delta = max(1, c.b1.len()/c.b2.len())
		}
		c.p = max(c.p-delta, 0)
	}
	c.removeFrom(pos, hit)
}

// prepareSlot performs the ghost-hit adaptation (if any) and evicts a
// resident block if the cache is full, in preparation for installing
// pos as a newly resident block. It returns the list the new entry
// should be placed in: T2 for a ghost hit (the block has shown up
// before and is now "frequent"), T1 for a genuinely cold miss.
func (c *ArcCacheDisk) prepareSlot(pos uint32) (listID, error) {
	location, wasGhost := c.pageLocation[pos]

	switch {
	case wasGhost && location == listB1:
		c.adaptOnGhostHit(pos, listB1)
		if err := c.evict(); err != nil {
			return 0, err
		}
	case wasGhost && location == listB2:
		c.adaptOnGhostHit(pos, listB2)
		if err := c.evict(); err != nil {
			return 0, err
		}
	default:
		wasGhost = false
		if c.t1.len()+c.t2.len() >= c.capacity {
			if err := c.evict(); err != nil {
				return 0, err
			}
		}
	}

	if wasGhost {
		return listT2, nil
	}
	return listT1, nil
}

// ReadBlock satisfies a block read from cache when resident, else
// demand-loads it from the underlying device.
func (c *ArcCacheDisk) ReadBlock(buf *Block, pos uint32) error {
	if loc, ok := c.pageLocation[pos]; ok && (loc == listT1 || loc == listT2) {
		c.movePage(pos, loc, listT2)
		*buf = c.dataStore[pos].buf
		return nil
	}

	target, err := c.prepareSlot(pos)
	if err != nil {
		return err
	}

	if err := c.underlying.ReadBlock(buf, pos); err != nil {
		return err
	}

	c.addToMRU(pos, target)
	c.dataStore[pos] = &cacheEntry{buf: *buf, dirty: false}
	return nil
}

// WriteBlock installs buf as block pos's resident, dirty contents,
// without reading the prior contents from the underlying device.
func (c *ArcCacheDisk) WriteBlock(buf *Block, pos uint32) error {
	if entry, ok := c.dataStore[pos]; ok {
		entry.buf = *buf
		entry.dirty = true
		loc := c.pageLocation[pos]
		c.movePage(pos, loc, listT2)
		return nil
	}

	target, err := c.prepareSlot(pos)
	if err != nil {
		return err
	}

	c.addToMRU(pos, target)
	c.dataStore[pos] = &cacheEntry{buf: *buf, dirty: true}
	return nil
}

// Flush writes back every dirty resident block, then flushes the
// underlying device.
func (c *ArcCacheDisk) Flush() error {
	for pos, entry := range c.dataStore {
		if entry.dirty {
			if err := c.underlying.WriteBlock(&entry.buf, pos); err != nil {
				return err
			}
			entry.dirty = false
		}
	}
	return c.underlying.Flush()
}

// BlockCount delegates to the underlying device: the cache does not
// change the disk's addressable size.
func (c *ArcCacheDisk) BlockCount() uint32 {
	return c.underlying.BlockCount()
}

// Stats reports the cache's current list sizes and adaptive target, for
// display and testing.
type Stats struct {
	Capacity    int
	Target      int
	T1, T2      int
	B1, B2      int
	Resident    int
	DirtyBlocks int
}

// Stats snapshots the cache's current bookkeeping.
func (c *ArcCacheDisk) Stats() Stats {
	dirty := 0
	for _, entry := range c.dataStore {
		if entry.dirty {
			dirty++
		}
	}
	return Stats{
		Capacity:    c.capacity,
		Target:      c.p,
		T1:          c.t1.len(),
		T2:          c.t2.len(),
		B1:          c.b1.len(),
		B2:          c.b2.len(),
		Resident:    len(c.dataStore),
		DirtyBlocks: dirty,
	}
}

var _ Device = (*ArcCacheDisk)(nil)
