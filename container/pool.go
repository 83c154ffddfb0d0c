package container

import (
	"github.com/cockroachdb/errors"
	"github.com/shenjiangwei/tilerAllocator/reserve"
)

// PoolStats represents buffer pool statistics. A hit is a buffer served
// from, or returned to, a reserved area; a miss one placed directly.
type PoolStats struct {
	TotalAllocations uint64
	PoolHits         uint64
	PoolMisses       uint64
	TotalFrees       uint64
	PoolFreeHits     uint64
	PoolFreeMisses   uint64
}

// Buffer is a 2D buffer placed in the container
type Buffer struct {
	Format reserve.Format
	X, Y   int // slots
	Width  int // slots
	Height int // slots

	key   groupKey
	area  *reserve.Area // nil if placed outside the group's reservations
	index int
}

// Pooled reports whether the buffer was served from a reserved area
func (b *Buffer) Pooled() bool {
	return b.area != nil
}

// NV12Buffer is a luma buffer and its chroma buffer
type NV12Buffer struct {
	Luma   *Buffer
	Chroma *Buffer
}

// Alloc places a buffer for group gid of pid. It is served from the group's
// reserved areas if one of them has a free block of the same geometry and
// placed directly otherwise.
func (c *Container) Alloc(pid reserve.ProcessID, gid uint32, f reserve.Format, width, height, align, offs int) (*Buffer, error) {
	b, err := c.Analyze(f, width, height, align, offs)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.lookup(groupKey{pid, gid})
	if g == nil {
		return nil, errors.Wrapf(ErrTooManyGroups, "process %d group %d", pid, gid)
	}
	c.stats.TotalAllocations++

	if buf := c.take2D(g, f, b); buf != nil {
		c.stats.PoolHits++
		return buf, nil
	}

	c.stats.PoolMisses++
	buf, err := c.placeDirect(g, f, b)
	if err != nil {
		c.prune(g)
		return nil, err
	}
	return buf, nil
}

// AllocNV12 places an NV12 buffer: co-located from a shared area, from a
// luma and a chroma area reserved separately, or directly, in that order.
func (c *Container) AllocNV12(pid reserve.ProcessID, gid uint32, width, height, align, offs int) (NV12Buffer, error) {
	// same alignment the reserver uses for nv12 areas
	band8 := c.cfg.PageSize / geometries[reserve.Format8Bit].SlotWidth
	g16 := geometries[reserve.Format16Bit]
	band16 := c.cfg.PageSize / g16.SlotWidth / g16.BytesPerPixel
	align = max(2*c.cfg.PageSize/band8, c.cfg.PageSize/min(band8, band16), align)

	b, err := c.Analyze(reserve.Format8Bit, width, height, align, offs)
	if err != nil {
		return NV12Buffer{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.lookup(groupKey{pid, gid})
	if g == nil {
		return NV12Buffer{}, errors.Wrapf(ErrTooManyGroups, "process %d group %d", pid, gid)
	}
	c.stats.TotalAllocations++

	if nb, ok := c.takeNV12(g, b); ok {
		c.stats.PoolHits++
		return nb, nil
	}
	if luma := c.take2D(g, reserve.Format8Bit, b); luma != nil {
		if chroma := c.take2D(g, reserve.Format16Bit, b.Chroma()); chroma != nil {
			c.stats.PoolHits++
			return NV12Buffer{Luma: luma, Chroma: chroma}, nil
		}
		c.unclaim(luma)
	}

	c.stats.PoolMisses++
	luma, err := c.placeDirect(g, reserve.Format8Bit, b)
	if err != nil {
		c.prune(g)
		return NV12Buffer{}, err
	}
	chroma, err := c.placeDirect(g, reserve.Format16Bit, b.Chroma())
	if err != nil {
		c.dropDirect(g, luma)
		c.prune(g)
		return NV12Buffer{}, err
	}
	return NV12Buffer{Luma: luma, Chroma: chroma}, nil
}

// Free returns a buffer to its reserved area or frees its slots
func (c *Container) Free(buf *Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalFrees++
	return c.release(buf)
}

// FreeNV12 frees both planes of an NV12 buffer
func (c *Container) FreeNV12(nb NV12Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalFrees++
	err := c.release(nb.Luma)
	// co-located planes share one position
	shared := nb.Luma != nil && nb.Chroma != nil && nb.Chroma.area != nil && nb.Chroma.area == nb.Luma.area
	if !shared {
		err = errors.CombineErrors(err, c.release(nb.Chroma))
	}
	return err
}

// PoolStats returns a snapshot of the pool counters
func (c *Container) PoolStats() PoolStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Container) take2D(g *Group, f reserve.Format, b reserve.Block) *Buffer {
	for _, a := range g.reserved {
		if a.Pairs != nil || a.Format != f || a.Block != b {
			continue
		}
		if i := c.claim(a); i >= 0 {
			return &Buffer{
				Format: f,
				X:      a.X + b.Offset + i*alignUp(b.Width, b.Align),
				Y:      a.Y,
				Width:  b.Width,
				Height: b.Height,
				key:    g.key,
				area:   a,
				index:  i,
			}
		}
	}
	return nil
}

func (c *Container) takeNV12(g *Group, b reserve.Block) (NV12Buffer, bool) {
	for _, a := range g.reserved {
		if a.Pairs == nil || a.Block.Width != b.Width || a.Block.Height != b.Height {
			continue
		}
		if i := c.claim(a); i >= 0 {
			p := a.Pairs[i]
			return NV12Buffer{
				Luma: &Buffer{
					Format: reserve.Format8Bit,
					X:      a.X + p.Luma,
					Y:      a.Y,
					Width:  b.Width,
					Height: b.Height,
					key:    g.key,
					area:   a,
					index:  i,
				},
				Chroma: &Buffer{
					Format: reserve.Format16Bit,
					X:      a.X + p.Chroma,
					Y:      a.Y,
					Width:  (b.Width + 1) / 2,
					Height: b.Height,
					key:    g.key,
					area:   a,
					index:  i,
				},
			}, true
		}
	}
	return NV12Buffer{}, false
}

// claim marks the first free position of a reserved area taken and returns
// its index, or -1 if the area is full
func (c *Container) claim(a *reserve.Area) int {
	slots, ok := c.taken[a]
	if !ok {
		slots = make([]bool, a.Count)
		c.taken[a] = slots
	}
	for i, t := range slots {
		if !t {
			slots[i] = true
			a.Used++
			return i
		}
	}
	return -1
}

func (c *Container) unclaim(buf *Buffer) {
	c.taken[buf.area][buf.index] = false
	buf.area.Used--
}

func (c *Container) placeDirect(g *Group, f reserve.Format, b reserve.Block) (*Buffer, error) {
	x, y, err := c.place(b.Width, b.Height, b.Offset, b.Align)
	if err != nil {
		return nil, errors.Wrapf(err, "%s buffer of %dx%d slots", f, b.Width, b.Height)
	}
	buf := &Buffer{
		Format: f,
		X:      x,
		Y:      y,
		Width:  b.Width,
		Height: b.Height,
		key:    g.key,
	}
	g.direct[buf] = struct{}{}
	reserve.Debug("Placed %s buffer at (%d,%d) outside of reservations", f, x, y)
	return buf, nil
}

func (c *Container) dropDirect(g *Group, buf *Buffer) {
	delete(g.direct, buf)
	c.mark(buf.X, buf.Y, buf.Width, buf.Height, false)
}

// release frees one buffer. Callers hold c.mu.
func (c *Container) release(buf *Buffer) error {
	if buf == nil {
		return errors.Wrap(ErrNotAllocated, "nil buffer")
	}
	if buf.area != nil {
		slots := c.taken[buf.area]
		if buf.index >= len(slots) || !slots[buf.index] {
			return errors.Wrapf(ErrNotAllocated, "%s buffer at (%d,%d)", buf.Format, buf.X, buf.Y)
		}
		c.unclaim(buf)
		c.stats.PoolFreeHits++
		return nil
	}

	g := c.groups[buf.key]
	if g == nil {
		return errors.Wrapf(ErrNotAllocated, "%s buffer at (%d,%d)", buf.Format, buf.X, buf.Y)
	}
	if _, ok := g.direct[buf]; !ok {
		return errors.Wrapf(ErrNotAllocated, "%s buffer at (%d,%d)", buf.Format, buf.X, buf.Y)
	}
	c.dropDirect(g, buf)
	c.stats.PoolFreeMisses++
	c.prune(g)
	return nil
}
