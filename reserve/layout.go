package reserve

// Layout is the container geometry the packers work against. NewReserver
// computes it once; it is never modified afterwards.
type Layout struct {
	Width    int // container width in slots
	Height   int // container height in slots
	Band8    int // row period of 8-bit blocks in slots
	Band16   int // row period of 16-bit blocks in slots
	PageSize int // bytes
}

// NewLayout derives the band constants from the container geometry
func NewLayout(ops Ops, pageSize int) (Layout, error) {
	g8, g16 := ops.Geometry(Format8Bit), ops.Geometry(Format16Bit)
	if pageSize <= 0 || g8.SlotWidth <= 0 || g16.SlotWidth <= 0 || g16.BytesPerPixel <= 0 {
		return Layout{}, invalidf("bad container geometry: page %d, 8bit %+v, 16bit %+v", pageSize, g8, g16)
	}
	l := Layout{
		Width:    ops.Width(),
		Height:   ops.Height(),
		Band8:    pageSize / g8.SlotWidth,
		Band16:   pageSize / g16.SlotWidth / g16.BytesPerPixel,
		PageSize: pageSize,
	}
	if l.Width <= 0 || l.Height <= 0 || l.Band8 <= 0 || l.Band16 <= 0 {
		return Layout{}, invalidf("bad container geometry: %+v", l)
	}
	return l, nil
}

// alignUp rounds x up to a multiple of a (a > 0). Negative x round towards zero.
func alignUp(x, a int) int {
	if x < 0 {
		return -(-x / a * a)
	}
	return (x + a - 1) / a * a
}

// BestFit returns how many blocks of width w, repeated every e slots from
// offset o, can share a single stride of band b, up to max blocks. It picks
// the count with the best efficiency (1024 = no waste), the first one found
// on ties, and returns that efficiency with the count and area achieving it.
// n is zero if not even one block fits.
func (l Layout) BestFit(o, w, e, b, max int) (eff, n, area int) {
	stride := alignUp(o+w, b)
	ar := stride

	// blocks must fit in the container and share the stride of the first block
	for m := 0; m < max && o+m*e+w <= l.Width && stride == alignUp(ar-o-m*e, b); {
		m++
		if cur := m * w * 1024 / ar; cur > eff {
			eff, n, area = cur, m, ar
		}
		ar = alignUp(o+m*e+w, b)
	}
	return eff, n, area
}
