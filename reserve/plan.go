package reserve

// Plan is the packing decision of one NV12 round before anything is
// committed
type Plan struct {
	Block Block
	Need  int

	SeparateCount int
	SeparateArea  int
	SeparateRank  int64

	Together     Packing
	TogetherRank int64

	// Separate is set if separate packing is tried first. Together is
	// tried if it is not set or the separate commit fails.
	Separate bool
}

// PlanNV12 returns the decision the first round of ReserveNV12 would take
// for req. It only analyzes the request; no group is looked up.
func (r *Reserver) PlanNV12(req Request) (Plan, error) {
	if err := r.checkNV12(req); err != nil {
		return Plan{}, err
	}
	b, err := r.analyze(Format8Bit, req, r.nv12Align(req.Align), 2)
	if err != nil {
		return Plan{}, err
	}
	return r.plan(b, req.Count, req.Together), nil
}

// nv12Align raises align to two 8-bit slots, so the chroma plane keeps at
// least one slot of alignment, and to the widest slot row of either plane
func (r *Reserver) nv12Align(align int) int {
	l := r.layout
	return max(2*l.PageSize/l.Band8, l.PageSize/min(l.Band8, l.Band16), align)
}

func (r *Reserver) plan(b Block, need int, together bool) Plan {
	p := Plan{Block: b, Need: need}
	p.SeparateCount, p.SeparateArea = r.layout.PackSeparate(b.Offset, b.Width, b.Align, need)
	if together {
		p.Together = r.layout.PackTogether(b.Offset, b.Width, b.Align, need)
	}

	var okS, okT bool
	p.SeparateRank, okS = Rank(p.SeparateCount, b.Width, p.SeparateArea, need)
	p.TogetherRank, okT = Rank(p.Together.Count(), b.Width, p.Together.Area, need)
	p.Separate = okS && (!together || !okT || p.SeparateRank > p.TogetherRank)
	return p
}
