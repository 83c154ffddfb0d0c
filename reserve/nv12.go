package reserve

// An 8-bit (w x h) area is twice as wide as the 16-bit (w/2 x h/2) area of
// its chroma plane, so luma/chroma pairs can either be packed separately as
// two 2D requests or co-located in one shared area.

// PackSeparate packs luma and chroma planes into separate areas. It returns
// the number of buffers both planes fit and the combined area in luma units.
func (l Layout) PackSeparate(o, w, a, n int) (int, int) {
	e := alignUp(w, a)
	_, n, lumaArea := l.BestFit(o, w, e, l.Band8, n)
	if n == 0 {
		return 0, 0
	}
	_, n, chromaArea := l.BestFit(o/2, (w+1)/2, e/2, l.Band16, n)
	if n == 0 {
		return 0, 0
	}
	return n, 3 * (lumaArea + chromaArea)
}

// Co-located patterns pack into one Band8 wide area, so all blocks share a
// single stride. In the comments upper case letters are luma blocks and
// lower case letters the matching chroma blocks.

// progressive packs AAAAaaaaBBbbCc: luma blocks up to the midpoint of the
// remaining window, their chroma after them, then again in what is left.
func (l Layout) progressive(o, w, a, n int) Packing {
	p := Packing{Pattern: PatternProgressive, Area: l.Band8}
	x := o
	for x+w < p.Area && len(p.Pairs) < n {
		// current luma upper bound is where the chroma blocks start
		u := (p.Area + x) >> 1
		c := u

		for x+w <= u && len(p.Pairs) < n {
			p.Pairs = append(p.Pairs, Pair{Luma: x, Chroma: c})
			c = (p.Area + x + w + 1) >> 1
			x = alignUp(x+w-o, a) + o
		}
		x = alignUp(c-o, a) + o
	}
	p.Pairs = fitPairs(p.Pairs, w, p.Area)
	return p
}

// mirror reflects a packing about the end of its area
func mirror(pairs []Pair, w, area int) []Pair {
	if len(pairs) == 0 {
		return pairs
	}
	out := make([]Pair, len(pairs))
	for i, pr := range pairs {
		out[i] = Pair{
			Luma:   area - pr.Luma - w,
			Chroma: area - pr.Chroma - (w+1)>>1,
		}
	}
	return out
}

// regressive packs cCbbBBaaaaAAAA, the progressive layout mirrored
func (l Layout) regressive(o, w, a, n int) Packing {
	p := l.progressive((a-(o+w)%a)%a, w, a, n)
	p.Pattern = PatternRegressive
	p.Pairs = mirror(p.Pairs, w, p.Area)
	return p
}

// simple interleaves aAbcBdeCfgDhEFGH when the half offsets of a block land
// clear of its luma within one alignment period.
func (l Layout) simple(o, w, a, n int) Packing {
	p := Packing{Pattern: PatternSimple, Area: l.Band8}
	e := (o + w) % a             // end offset
	e1 := ((o + w + 1) >> 1) % a // half end offset
	o2 := (o>>1)%a + (a >> 2)    // 2nd half offset
	e2 := e1 + (a >> 2)          // 2nd half end offset

	// no wrap around the alignment, the half block must be before the block
	// and the 2nd half either before or after it
	if w >= a || o >= e || e1 > o || (e2 > o && o2 < e) {
		return p
	}
	for x := o; x+w <= p.Area && len(p.Pairs) < n; x += a {
		p.Pairs = append(p.Pairs, Pair{Luma: x, Chroma: x >> 1})
	}
	p.Pairs = fitPairs(p.Pairs, w, p.Area)
	return p
}

// butterfly packs AAbbaaBB: blocks alternate from the low end and from the
// last aligned position at the high end.
func (l Layout) butterfly(o, w, a, n int) Packing {
	p := Packing{Pattern: PatternButterfly, Area: l.Band8}
	e := alignUp(w, a)
	end := p.Area - (a-(o+w)%a)%a // end of last possible block

	m := (min(end-2*o, 2*end-o-p.Area)/3-w)/e + 1
	for i := 0; i < m && len(p.Pairs) < n; i++ {
		lo := o + i*e
		p.Pairs = append(p.Pairs, Pair{Luma: lo, Chroma: (lo + p.Area) >> 1})
		if len(p.Pairs) < n {
			hi := end - i*e - w
			p.Pairs = append(p.Pairs, Pair{Luma: hi, Chroma: hi >> 1})
		}
	}
	p.Pairs = fitPairs(p.Pairs, w, p.Area)
	return p
}

// large places a single buffer too wide for the other patterns: aA or Aa
func (l Layout) large(o, w, a, n int) Packing {
	p := Packing{Pattern: PatternLarge, Area: alignUp(o+w, l.Band8)}
	w1 := (w + 1) >> 1

	for d := 0; n > 0 && d+o+w <= p.Area; d += a {
		// chroma before luma
		c := ((o + d) % l.Band8) >> 1
		if c+w1 <= o+d {
			p.Pairs = []Pair{{Luma: o + d, Chroma: c}}
			return p
		}

		// chroma after luma
		c += alignUp(d+o+w-c, l.Band16)
		if c+w1 <= p.Area {
			p.Pairs = []Pair{{Luma: o, Chroma: c}}
			return p
		}
	}
	return p
}

// fitPairs cuts pairs at the first one that leaves the area or overlaps a
// span placed before it.
func fitPairs(pairs []Pair, w, area int) []Pair {
	w1 := (w + 1) >> 1
	for i, p := range pairs {
		if p.Luma < 0 || p.Chroma < 0 || p.Luma+w > area || p.Chroma+w1 > area ||
			overlaps(p.Luma, w, p.Chroma, w1) {
			return pairs[:i]
		}
		for _, q := range pairs[:i] {
			if overlaps(p.Luma, w, q.Luma, w) || overlaps(p.Luma, w, q.Chroma, w1) ||
				overlaps(p.Chroma, w1, q.Luma, w) || overlaps(p.Chroma, w1, q.Chroma, w1) {
				return pairs[:i]
			}
		}
	}
	return pairs
}

func overlaps(x, xw, y, yw int) bool {
	return x < y+yw && y < x+xw
}

// PackTogether finds the best co-located packing of up to n NV12 buffers
func (l Layout) PackTogether(o, w, a, n int) Packing {
	// smallest area patterns first, stop once everything fits
	best := l.progressive(o, w, a, n)
	for _, next := range []func(o, w, a, n int) Packing{l.regressive, l.simple, l.butterfly} {
		if best.Count() >= n {
			break
		}
		if p := next(o, w, a, n); p.Count() > best.Count() {
			best = p
		}
	}

	// special packings are sorted by decreasing count
	for _, sp := range specialPackings {
		if sp.count < best.Count() {
			break
		}
		if sp.align >= a && o+w+alignUp(sp.offset-o, a) <= sp.offset+sp.width {
			k := min(sp.count, n)
			best = Packing{
				Pattern: PatternTable,
				Area:    sp.area,
				Pairs:   append([]Pair(nil), sp.pairs[:k]...),
			}
			break
		}
	}

	if best.Count() == 0 {
		best = l.large(o, w, a, n)
	}
	return best
}
