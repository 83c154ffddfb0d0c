// Package reserve decides how batches of same-sized buffers are packed into a tiler container
package reserve

import "sync/atomic"

const (
	// DefaultPageSize is the size of one container page (mapping window) in bytes
	DefaultPageSize = 4096

	// rankBase offsets the coarse rank term so scores stay positive
	rankBase = 0x10000000
)

// Format is the bit depth of a container view
type Format int

const (
	// Format8Bit is the luma view, one byte per pixel
	Format8Bit Format = iota
	// Format16Bit is the chroma view, two bytes per pixel
	Format16Bit
	// Format32Bit is the four byte per pixel view
	Format32Bit
)

var formatNames = map[Format]string{
	Format8Bit:  "8bit",
	Format16Bit: "16bit",
	Format32Bit: "32bit",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "invalid"
}

// Valid reports whether f is one of the 2D formats
func (f Format) Valid() bool {
	return f >= Format8Bit && f <= Format32Bit
}

// Geometry holds the static per-format slot constants
type Geometry struct {
	SlotWidth     int // pixels
	SlotHeight    int // pixels
	BytesPerPixel int
}

// Block is the slot geometry of one buffer as computed by Ops.Analyze
type Block struct {
	Width  int // slots
	Height int // slots
	Band   int // row period in slots
	Align  int // slots
	Offset int // slots, 0 <= Offset < Align
}

// Chroma returns the geometry of the half-resolution 16-bit plane of an NV12 block
func (b Block) Chroma() Block {
	return Block{
		Width:  (b.Width + 1) / 2,
		Height: b.Height,
		Band:   b.Band / 2,
		Align:  b.Align / 2,
		Offset: b.Offset / 2,
	}
}

// Pair is the position of one co-located NV12 buffer inside a shared area
type Pair struct {
	Luma   int
	Chroma int
}

// Pattern identifies the layout that produced a Packing
type Pattern uint8

const (
	// PatternNone means nothing was packed
	PatternNone Pattern = iota
	// PatternProgressive interleaves lumas with chromas moving right
	PatternProgressive
	// PatternRegressive is the progressive pattern laid from the right
	PatternRegressive
	// PatternSimple puts each chroma at half the offset of its luma
	PatternSimple
	// PatternButterfly alternates blocks from both ends of the band
	PatternButterfly
	// PatternLarge holds a single buffer wider than a band
	PatternLarge
	// PatternTable is an entry of the precomputed packing table
	PatternTable
)

var patternNames = map[Pattern]string{
	PatternNone:        "None",
	PatternProgressive: "Progressive",
	PatternRegressive:  "Regressive",
	PatternSimple:      "Simple",
	PatternButterfly:   "Butterfly",
	PatternLarge:       "Large",
	PatternTable:       "Table",
}

func (p Pattern) String() string {
	if s, ok := patternNames[p]; ok {
		return s
	}
	return "invalid"
}

// Packing is a candidate co-located layout, not yet committed
type Packing struct {
	Pattern Pattern
	Area    int // slots
	Pairs   []Pair
}

// Count returns the number of buffers the packing holds
func (p Packing) Count() int {
	return len(p.Pairs)
}

// Area is a committed container region
type Area struct {
	Format Format
	X, Y   int // slots
	Width  int // slots
	Height int // slots
	Block  Block
	Count  int    // buffers the area was laid out for
	Used   int    // buffers handed out of the area
	Pairs  []Pair // co-located NV12 positions, nil for 2D areas
}

// AreaList is a list of committed regions
type AreaList []*Area

// ProcessID identifies the process owning a group
type ProcessID uint32

// Group is the per-process, per-id bookkeeping for reserved regions
type Group interface {
	Reserved() *AreaList
}

// Ops is the set of container primitives the reserver is built on.
// Calls on one group must be serialized by the caller.
type Ops interface {
	// Width and Height return the container size in slots
	Width() int
	Height() int

	// Geometry returns the slot constants of a format
	Geometry(f Format) Geometry

	// Analyze maps a pixel request to slot geometry
	Analyze(f Format, width, height, align, offs int) (Block, error)

	// Group resolves or creates the group context. It returns nil if none
	// can be provided.
	Group(pid ProcessID, gid uint32) Group

	// Lay2D commits n blocks in one area and appends it to dst
	Lay2D(f Format, n int, b Block, g Group, dst *AreaList) (int, error)

	// LayNV12 commits n co-located NV12 buffers into an area of the given width
	LayNV12(n, area, w, h int, g Group, packing []Pair) (int, error)

	// AddReserved moves a pending list into the group's reserved list
	AddReserved(list *AreaList, g Group)

	// Release frees every region of the list and empties it
	Release(list *AreaList)

	// ReleaseGroup drops the reference taken by Group
	ReleaseGroup(g Group)
}

// Config holds the reserver settings
type Config struct {
	PageSize int // bytes
}

// DefaultConfig returns the configuration of the reference tiler
func DefaultConfig() Config {
	return Config{PageSize: DefaultPageSize}
}

// Request describes a batch of identical buffers to reserve
type Request struct {
	Count    int
	Format   Format // ignored by ReserveNV12
	Width    int    // pixels
	Height   int    // pixels
	Align    int    // bytes
	Offset   int    // bytes
	Group    uint32
	Process  ProcessID
	Together bool // allow co-located NV12 packing
}

// Result reports how much of a request was reserved
type Result struct {
	Requested int
	Reserved  int
}

// Shortfall returns the number of buffers that could not be reserved
func (r Result) Shortfall() int {
	return r.Requested - r.Reserved
}

// Stats represents reserver statistics
type Stats struct {
	Requests        uint64
	Rejected        uint64
	Declined        uint64
	Rounds          uint64
	SeparateCommits uint64
	TogetherCommits uint64
	BlockCommits    uint64
	Rollbacks       uint64
	Shrinks         uint64
	Unreserves      uint64
}

type counters struct {
	requests        atomic.Uint64
	rejected        atomic.Uint64
	declined        atomic.Uint64
	rounds          atomic.Uint64
	separateCommits atomic.Uint64
	togetherCommits atomic.Uint64
	blockCommits    atomic.Uint64
	rollbacks       atomic.Uint64
	shrinks         atomic.Uint64
	unreserves      atomic.Uint64
}
