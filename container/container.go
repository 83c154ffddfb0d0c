// Package container provides an in-memory tiler container: a grid of slots
// that 2D and NV12 buffers are placed into, with per-process groups holding
// reserved regions.
package container

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/shenjiangwei/tilerAllocator/reserve"
)

const (
	// Container constants of the reference tiler
	DefaultWidth       = 256 // slots
	DefaultHeight      = 128 // slots
	DefaultGranularity = 128 // bytes
)

// geometries are the slot constants of each 2D view
var geometries = map[reserve.Format]reserve.Geometry{
	reserve.Format8Bit:  {SlotWidth: 64, SlotHeight: 64, BytesPerPixel: 1},
	reserve.Format16Bit: {SlotWidth: 32, SlotHeight: 64, BytesPerPixel: 2},
	reserve.Format32Bit: {SlotWidth: 32, SlotHeight: 32, BytesPerPixel: 4},
}

// Config holds the container settings
type Config struct {
	Width       int // slots
	Height      int // slots
	PageSize    int // bytes
	Granularity int // minimum alignment in bytes
	MaxGroups   int // 0 means unlimited
}

// DefaultConfig returns the configuration of the reference tiler
func DefaultConfig() Config {
	return Config{
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		PageSize:    reserve.DefaultPageSize,
		Granularity: DefaultGranularity,
	}
}

// Container is a slot grid implementing reserve.Ops
type Container struct {
	cfg Config

	mu     sync.Mutex
	used   []bool // Width*Height, row major
	groups map[groupKey]*Group
	taken  map[*reserve.Area][]bool
	stats  PoolStats
}

// New creates an empty container
func New(cfg Config) (*Container, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.PageSize <= 0 || cfg.Granularity < 0 || cfg.MaxGroups < 0 {
		return nil, errors.Newf("container: bad config %+v", cfg)
	}
	reserve.Debug("Creating %dx%d container", cfg.Width, cfg.Height)
	return &Container{
		cfg:    cfg,
		used:   make([]bool, cfg.Width*cfg.Height),
		groups: make(map[groupKey]*Group),
		taken:  make(map[*reserve.Area][]bool),
	}, nil
}

// Width returns the container width in slots
func (c *Container) Width() int { return c.cfg.Width }

// Height returns the container height in slots
func (c *Container) Height() int { return c.cfg.Height }

// Geometry returns the slot constants of a format
func (c *Container) Geometry(f reserve.Format) reserve.Geometry {
	return geometries[f]
}

// Analyze maps a buffer of width x height pixels, aligned to align bytes at
// offs bytes past the alignment, to slot geometry. Alignment is raised to a
// multiple of the larger of one slot row and the granularity; an offset that
// is not a multiple of it is folded into the width.
func (c *Container) Analyze(f reserve.Format, width, height, align, offs int) (reserve.Block, error) {
	g, ok := geometries[f]
	if !ok {
		return reserve.Block{}, errors.Wrapf(ErrBadFormat, "format %d", f)
	}
	if width <= 0 || height <= 0 {
		return reserve.Block{}, errors.Wrapf(ErrBadSize, "%dx%d", width, height)
	}

	slotRow := g.SlotWidth * g.BytesPerPixel
	minAlign := max(slotRow, c.cfg.Granularity)
	if align <= 0 {
		align = minAlign
	}
	align = alignUp(align, minAlign)
	if align > c.cfg.PageSize {
		return reserve.Block{}, errors.Wrapf(ErrBadAlign, "alignment %d above page size %d", align, c.cfg.PageSize)
	}
	if offs < 0 || offs >= align || offs%g.BytesPerPixel != 0 {
		return reserve.Block{}, errors.Wrapf(ErrBadOffset, "offset %d, alignment %d", offs, align)
	}

	width += (offs % minAlign) / g.BytesPerPixel
	offs -= offs % minAlign
	width = alignUp(width, minAlign/g.BytesPerPixel)

	b := reserve.Block{
		Width:  ceilDiv(width, g.SlotWidth),
		Height: ceilDiv(height, g.SlotHeight),
		Band:   c.cfg.PageSize / slotRow,
		Align:  align / slotRow,
		Offset: offs / slotRow,
	}
	if b.Width > c.cfg.Width || b.Height > c.cfg.Height {
		return reserve.Block{}, errors.Wrapf(ErrBadSize, "%dx%d slots exceed the container", b.Width, b.Height)
	}
	return b, nil
}

// Lay2D reserves one area for n blocks of b, each alignUp(b.Width, b.Align)
// slots after the previous one, and appends it to dst.
func (c *Container) Lay2D(f reserve.Format, n int, b reserve.Block, g reserve.Group, dst *reserve.AreaList) (int, error) {
	if n <= 0 || b.Band <= 0 || b.Align <= 0 {
		return 0, errors.Wrapf(ErrBadSize, "%d blocks of %+v", n, b)
	}
	w := alignUp(b.Offset+(n-1)*alignUp(b.Width, b.Align)+b.Width, b.Band)

	c.mu.Lock()
	defer c.mu.Unlock()

	x, y, err := c.place(w, b.Height, 0, b.Band)
	if err != nil {
		return 0, errors.Wrapf(err, "%d %s blocks in %dx%d", n, f, w, b.Height)
	}
	*dst = append(*dst, &reserve.Area{
		Format: f,
		X:      x,
		Y:      y,
		Width:  w,
		Height: b.Height,
		Block:  b,
		Count:  n,
	})
	reserve.Debug("Laid %d %s blocks at (%d,%d) %dx%d", n, f, x, y, w, b.Height)
	return n, nil
}

// LayNV12 reserves an area slots wide for n co-located NV12 buffers of w x h
// slots and adds it to the group.
func (c *Container) LayNV12(n, area, w, h int, g reserve.Group, packing []reserve.Pair) (int, error) {
	if n <= 0 || n > len(packing) {
		return 0, errors.Wrapf(ErrBadSize, "%d buffers for %d positions", n, len(packing))
	}
	grp := g.(*Group)
	band := c.cfg.PageSize / geometries[reserve.Format8Bit].SlotWidth

	c.mu.Lock()
	defer c.mu.Unlock()

	x, y, err := c.place(area, h, 0, band)
	if err != nil {
		return 0, errors.Wrapf(err, "%d nv12 buffers in %dx%d", n, area, h)
	}
	grp.reserved = append(grp.reserved, &reserve.Area{
		Format: reserve.Format8Bit,
		X:      x,
		Y:      y,
		Width:  area,
		Height: h,
		Block:  reserve.Block{Width: w, Height: h, Band: band},
		Count:  n,
		Pairs:  append([]reserve.Pair(nil), packing[:n]...),
	})
	reserve.Debug("Laid %d nv12 buffers at (%d,%d) %dx%d", n, x, y, area, h)
	return n, nil
}

// Release frees every area of the list and empties it. Buffers still handed
// out of those areas are dropped with them.
func (c *Container) Release(list *reserve.AreaList) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range *list {
		c.mark(a.X, a.Y, a.Width, a.Height, false)
		delete(c.taken, a)
	}
	*list = nil
}

// Used returns the number of occupied slots
func (c *Container) Used() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, u := range c.used {
		if u {
			n++
		}
	}
	return n
}

// place finds the first free w x h rectangle, scanning rows top down, whose
// left edge is x0 plus a multiple of step, and marks it used.
func (c *Container) place(w, h, x0, step int) (int, int, error) {
	if w <= 0 || h <= 0 || step <= 0 {
		return 0, 0, errors.Wrapf(ErrBadSize, "%dx%d", w, h)
	}
	for y := 0; y+h <= c.cfg.Height; y++ {
		for x := x0; x+w <= c.cfg.Width; x += step {
			if c.free(x, y, w, h) {
				c.mark(x, y, w, h, true)
				return x, y, nil
			}
		}
	}
	return 0, 0, ErrNoSpace
}

func (c *Container) free(x, y, w, h int) bool {
	for j := y; j < y+h; j++ {
		row := c.used[j*c.cfg.Width:]
		for i := x; i < x+w; i++ {
			if row[i] {
				return false
			}
		}
	}
	return true
}

func (c *Container) mark(x, y, w, h int, v bool) {
	for j := y; j < y+h; j++ {
		row := c.used[j*c.cfg.Width:]
		for i := x; i < x+w; i++ {
			row[i] = v
		}
	}
}

func alignUp(x, a int) int {
	return (x + a - 1) / a * a
}

func ceilDiv(x, d int) int {
	return (x + d - 1) / d
}
