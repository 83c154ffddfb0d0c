package container

import (
	"testing"

	"github.com/shenjiangwei/tilerAllocator/reserve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	c := newTestContainer(t)
	assert.Equal(t, 256, c.Width())
	assert.Equal(t, 128, c.Height())
	assert.Zero(t, c.Used())
	assert.Equal(t, reserve.Geometry{SlotWidth: 32, SlotHeight: 64, BytesPerPixel: 2}, c.Geometry(reserve.Format16Bit))

	for _, cfg := range []Config{
		{Width: 0, Height: 128, PageSize: 4096},
		{Width: 256, Height: 128, PageSize: 0},
		{Width: 256, Height: 128, PageSize: 4096, MaxGroups: -1},
	} {
		_, err := New(cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}

func TestAnalyze(t *testing.T) {
	c := newTestContainer(t)

	tests := []struct {
		name          string
		format        reserve.Format
		width, height int
		align, offs   int
		want          reserve.Block
	}{
		{"nv12 luma", reserve.Format8Bit, 256, 128, 256, 128, reserve.Block{Width: 4, Height: 2, Band: 64, Align: 4, Offset: 2}},
		{"default alignment", reserve.Format8Bit, 100, 64, 0, 0, reserve.Block{Width: 2, Height: 1, Band: 64, Align: 2, Offset: 0}},
		{"offset folded into width", reserve.Format8Bit, 100, 64, 256, 64, reserve.Block{Width: 4, Height: 1, Band: 64, Align: 4, Offset: 0}},
		{"16-bit", reserve.Format16Bit, 64, 64, 256, 128, reserve.Block{Width: 2, Height: 1, Band: 64, Align: 4, Offset: 2}},
		{"32-bit", reserve.Format32Bit, 32, 32, 0, 0, reserve.Block{Width: 1, Height: 1, Band: 32, Align: 1, Offset: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := c.Analyze(tt.format, tt.width, tt.height, tt.align, tt.offs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b)
		})
	}
}

func TestAnalyze_Errors(t *testing.T) {
	c := newTestContainer(t)

	tests := []struct {
		name          string
		format        reserve.Format
		width, height int
		align, offs   int
		want          error
	}{
		{"unknown format", reserve.Format(9), 64, 64, 0, 0, ErrBadFormat},
		{"empty", reserve.Format8Bit, 0, 64, 0, 0, ErrBadSize},
		{"alignment above a page", reserve.Format8Bit, 64, 64, 8192, 0, ErrBadAlign},
		{"offset not below alignment", reserve.Format8Bit, 64, 64, 256, 256, ErrBadOffset},
		{"offset inside a pixel", reserve.Format16Bit, 64, 64, 128, 3, ErrBadOffset},
		{"wider than the container", reserve.Format8Bit, 64 * 257, 64, 0, 0, ErrBadSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Analyze(tt.format, tt.width, tt.height, tt.align, tt.offs)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLay2D(t *testing.T) {
	c := newTestContainer(t)
	g := c.Group(1, 1)
	require.NotNil(t, g)
	b := reserve.Block{Width: 4, Height: 1, Band: 64, Align: 4, Offset: 0}

	var list reserve.AreaList
	n, err := c.Lay2D(reserve.Format8Bit, 10, b, g, &list)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	require.Len(t, list, 1)
	assert.Equal(t, reserve.Area{Format: reserve.Format8Bit, X: 0, Y: 0, Width: 64, Height: 1, Block: b, Count: 10}, *list[0])
	assert.Equal(t, 64, c.Used())

	// the next area starts on the next band
	_, err = c.Lay2D(reserve.Format8Bit, 16, b, g, &list)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 64, list[1].X)
	assert.Equal(t, 128, c.Used())

	_, err = c.Lay2D(reserve.Format8Bit, 70, b, g, &list)
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.Len(t, list, 2)

	c.Release(&list)
	assert.Nil(t, list)
	assert.Zero(t, c.Used())
	c.ReleaseGroup(g)
}

func TestLay2D_FillsRows(t *testing.T) {
	c := newTestContainer(t)
	g := c.Group(1, 1)
	b := reserve.Block{Width: 64, Height: 64, Band: 64, Align: 64, Offset: 0}

	var list reserve.AreaList
	for i := 0; i < 8; i++ {
		_, err := c.Lay2D(reserve.Format8Bit, 1, b, g, &list)
		require.NoError(t, err)
	}
	assert.Equal(t, 256*128, c.Used())
	assert.Equal(t, 192, list[3].X)
	assert.Equal(t, 64, list[4].Y)

	_, err := c.Lay2D(reserve.Format8Bit, 1, b, g, &list)
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestLayNV12(t *testing.T) {
	c := newTestContainer(t)
	g := c.Group(1, 1)
	pairs := []reserve.Pair{{Luma: 0, Chroma: 32}, {Luma: 12, Chroma: 38}, {Luma: 48, Chroma: 24}}

	n, err := c.LayNV12(3, 64, 12, 2, g, pairs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	reserved := *g.Reserved()
	require.Len(t, reserved, 1)
	a := reserved[0]
	assert.Equal(t, 64, a.Width)
	assert.Equal(t, 2, a.Height)
	assert.Equal(t, pairs, a.Pairs)
	assert.Equal(t, 128, c.Used())

	pairs[0] = reserve.Pair{}
	assert.Equal(t, reserve.Pair{Luma: 0, Chroma: 32}, a.Pairs[0], "positions must be copied")

	_, err = c.LayNV12(4, 64, 12, 2, g, pairs)
	assert.ErrorIs(t, err, ErrBadSize)
}

func TestGroups(t *testing.T) {
	c := newTestContainer(t)

	g1 := c.Group(1, 1)
	assert.Same(t, g1, c.Group(1, 1))
	g2 := c.Group(2, 1)
	assert.NotSame(t, g1, g2)
	assert.Equal(t, 2, c.Groups())

	c.ReleaseGroup(g1)
	assert.Equal(t, 2, c.Groups(), "a referenced group stays")
	c.ReleaseGroup(g1)
	c.ReleaseGroup(g2)
	assert.Zero(t, c.Groups())
}

func TestGroups_KeptWhileReserved(t *testing.T) {
	c := newTestContainer(t)
	g := c.Group(1, 1)

	var list reserve.AreaList
	_, err := c.Lay2D(reserve.Format8Bit, 2, reserve.Block{Width: 4, Height: 1, Band: 64, Align: 4}, g, &list)
	require.NoError(t, err)
	c.AddReserved(&list, g)
	assert.Nil(t, list)
	assert.Len(t, *g.Reserved(), 1)

	c.ReleaseGroup(g)
	assert.Equal(t, 1, c.Groups())

	g = c.Group(1, 1)
	c.Release(g.Reserved())
	c.ReleaseGroup(g)
	assert.Zero(t, c.Groups())
}

func TestGroups_Limit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxGroups = 1
	c, err := New(cfg)
	require.NoError(t, err)

	g := c.Group(1, 1)
	require.NotNil(t, g)
	assert.Nil(t, c.Group(1, 2))

	c.ReleaseGroup(g)
	assert.NotNil(t, c.Group(1, 2), "a removed group frees its place")
}
