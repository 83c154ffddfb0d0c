package reserve

// specialPacking is a precomputed co-located layout for a given request shape
type specialPacking struct {
	count  int
	offset int
	width  int
	align  int
	area   int
	pairs  []Pair
}

// Hand-tuned packings, sorted by increasing area and then decreasing count.
// Each record is: count, offset, width, align, area, then count luma/chroma
// offset pairs. A zero count ends the table.
var rawSpecialPackings = []byte{
	// n=9, o=2, w=4, a=4, area=64
	9, 2, 4, 4, 64,
	2, 33, 6, 35, 10, 37, 14, 39, 18, 41,
	46, 23, 50, 25, 54, 27, 58, 29,
	// n=3, o=0, w=12, a=4, area=64
	3, 0, 12, 4, 64,
	0, 32, 12, 38, 48, 24,
	0,
}

var specialPackings = decodeSpecialPackings(rawSpecialPackings)

func decodeSpecialPackings(raw []byte) []specialPacking {
	var out []specialPacking
	for i := 0; i < len(raw) && raw[i] != 0; {
		sp := specialPacking{
			count:  int(raw[i]),
			offset: int(raw[i+1]),
			width:  int(raw[i+2]),
			align:  int(raw[i+3]),
			area:   int(raw[i+4]),
		}
		i += 5
		for k := 0; k < sp.count; k++ {
			sp.pairs = append(sp.pairs, Pair{Luma: int(raw[i]), Chroma: int(raw[i+1])})
			i += 2
		}
		out = append(out, sp)
	}
	return out
}
