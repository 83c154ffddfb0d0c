package reserve

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGroup struct {
	reserved AreaList
}

func (g *fakeGroup) Reserved() *AreaList {
	return &g.reserved
}

// opCall records one primitive invoked by the reserver
type opCall struct {
	op     string
	format Format
	n      int
	area   int
	block  Block
	pairs  []Pair
	align  int
}

// fakeOps is a scripted container. Lay calls succeed with the requested
// count unless lay2D or layNV12 say otherwise.
type fakeOps struct {
	width, height int
	geom          map[Format]Geometry
	block         Block
	analyzeErr    error
	noGroup       bool
	group         *fakeGroup
	refs          int

	lay2D   func(f Format, n int) (int, error)
	layNV12 func(n int) (int, error)

	calls []opCall
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		width:  256,
		height: 128,
		geom: map[Format]Geometry{
			Format8Bit:  {SlotWidth: 64, SlotHeight: 64, BytesPerPixel: 1},
			Format16Bit: {SlotWidth: 32, SlotHeight: 64, BytesPerPixel: 2},
			Format32Bit: {SlotWidth: 32, SlotHeight: 32, BytesPerPixel: 4},
		},
		group: &fakeGroup{},
	}
}

func (f *fakeOps) Width() int  { return f.width }
func (f *fakeOps) Height() int { return f.height }

func (f *fakeOps) Geometry(ft Format) Geometry {
	return f.geom[ft]
}

func (f *fakeOps) Analyze(ft Format, width, height, align, offs int) (Block, error) {
	f.calls = append(f.calls, opCall{op: "analyze", format: ft, align: align})
	if f.analyzeErr != nil {
		return Block{}, f.analyzeErr
	}
	return f.block, nil
}

func (f *fakeOps) Group(pid ProcessID, gid uint32) Group {
	if f.noGroup {
		return nil
	}
	f.refs++
	return f.group
}

func (f *fakeOps) Lay2D(ft Format, n int, b Block, g Group, dst *AreaList) (int, error) {
	f.calls = append(f.calls, opCall{op: "lay2d", format: ft, n: n, block: b})
	got := n
	if f.lay2D != nil {
		var err error
		if got, err = f.lay2D(ft, n); err != nil {
			return 0, err
		}
	}
	*dst = append(*dst, &Area{Format: ft, Block: b, Count: got})
	return got, nil
}

func (f *fakeOps) LayNV12(n, area, w, h int, g Group, packing []Pair) (int, error) {
	f.calls = append(f.calls, opCall{op: "laynv12", n: n, area: area, pairs: append([]Pair(nil), packing...)})
	got := n
	if f.layNV12 != nil {
		var err error
		if got, err = f.layNV12(n); err != nil {
			return 0, err
		}
	}
	fg := g.(*fakeGroup)
	fg.reserved = append(fg.reserved, &Area{Format: Format8Bit, Width: area, Count: got})
	return got, nil
}

func (f *fakeOps) AddReserved(list *AreaList, g Group) {
	f.calls = append(f.calls, opCall{op: "add", n: len(*list)})
	fg := g.(*fakeGroup)
	fg.reserved = append(fg.reserved, *list...)
	*list = nil
}

func (f *fakeOps) Release(list *AreaList) {
	f.calls = append(f.calls, opCall{op: "release", n: len(*list)})
	*list = nil
}

func (f *fakeOps) ReleaseGroup(g Group) {
	f.refs--
}

// ops returns the names of the recorded calls in order
func (f *fakeOps) ops() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

func newTestReserver(t *testing.T, ops *fakeOps) *Reserver {
	t.Helper()
	r, err := NewReserver(ops, DefaultConfig())
	require.NoError(t, err)
	return r
}

// testLayout is the reference tiler: 256x128 slots, 64 slot bands
func testLayout() Layout {
	return Layout{Width: 256, Height: 128, Band8: 64, Band16: 64, PageSize: DefaultPageSize}
}

// assertPairsFit checks that no luma or chroma span leaves the area or
// overlaps another one
func assertPairsFit(t *testing.T, p Packing, w int, msgAndArgs ...interface{}) {
	t.Helper()
	w1 := (w + 1) / 2
	type span struct{ start, width int }
	var spans []span
	for _, pr := range p.Pairs {
		spans = append(spans, span{pr.Luma, w}, span{pr.Chroma, w1})
	}
	for i, s := range spans {
		require.GreaterOrEqual(t, s.start, 0, msgAndArgs...)
		require.LessOrEqual(t, s.start+s.width, p.Area, msgAndArgs...)
		for _, o := range spans[i+1:] {
			require.False(t, overlaps(s.start, s.width, o.start, o.width), msgAndArgs...)
		}
	}
}

// assertIs checks err against a sentinel, following marks as well as wraps
func assertIs(t *testing.T, err, target error) {
	t.Helper()
	assert.True(t, errors.Is(err, target), "expected %v, got %v", target, err)
}
