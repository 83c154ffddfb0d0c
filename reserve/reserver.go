package reserve

import (
	"github.com/cockroachdb/errors"
)

// Reserver reserves container areas for batches of buffers so later
// allocations of the group pack tighter than one-by-one placement would.
type Reserver struct {
	ops    Ops
	layout Layout
	stats  counters
}

// NewReserver creates a reserver on top of the container primitives
func NewReserver(ops Ops, cfg Config) (*Reserver, error) {
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	layout, err := NewLayout(ops, cfg.PageSize)
	if err != nil {
		return nil, err
	}
	Info("Reserver ready: %dx%d slots, band8 %d, band16 %d", layout.Width, layout.Height, layout.Band8, layout.Band16)
	return &Reserver{ops: ops, layout: layout}, nil
}

// Layout returns the geometry the reserver packs against
func (r *Reserver) Layout() Layout {
	return r.layout
}

// ReserveNV12 reserves areas for req.Count NV12 buffers. Luma and chroma are
// packed separately or, if req.Together is set, co-located, whichever ranks
// better in each round. Rounds that were committed are kept even if a later
// round fails; the result reports the shortfall.
func (r *Reserver) ReserveNV12(req Request) (Result, error) {
	r.stats.requests.Add(1)
	res := Result{Requested: req.Count}

	if err := r.checkNV12(req); err != nil {
		r.stats.rejected.Add(1)
		Debug("Rejected nv12 request %+v: %v", req, err)
		return res, err
	}

	b, err := r.analyze(Format8Bit, req, r.nv12Align(req.Align), 2)
	if err != nil {
		r.stats.rejected.Add(1)
		return res, err
	}

	g := r.ops.Group(req.Process, req.Group)
	if g == nil {
		return res, errors.Wrapf(ErrNoGroup, "process %d group %d", req.Process, req.Group)
	}
	defer r.ops.ReleaseGroup(g)

	for res.Reserved < req.Count {
		n := r.nv12Round(g, b, req.Count-res.Reserved, req.Together)
		if n <= 0 {
			break
		}
		res.Reserved += n
	}
	if res.Shortfall() > 0 {
		Debug("Reserved %d of %d nv12 buffers for group %d", res.Reserved, res.Requested, req.Group)
	}
	return res, nil
}

func (r *Reserver) checkNV12(req Request) error {
	switch {
	case req.Width <= 0 || req.Height <= 0 || req.Count <= 0:
		return invalidf("empty request: %dx%d, count %d", req.Width, req.Height, req.Count)
	case req.Offset < 0 || req.Offset >= req.Align:
		return invalidf("offset %d not below alignment %d", req.Offset, req.Align)
	case req.Offset&1 != 0:
		return invalidf("odd offset %d", req.Offset)
	case req.Align >= r.layout.PageSize:
		return invalidf("alignment %d not below page size %d", req.Align, r.layout.PageSize)
	case req.Count > r.layout.Width*r.layout.Height/2:
		return invalidf("count %d exceeds container capacity", req.Count)
	}
	return nil
}

// nv12Round reserves one batch of at most need buffers and returns how many
// were committed
func (r *Reserver) nv12Round(g Group, b Block, need int, together bool) int {
	r.stats.rounds.Add(1)

	p := r.plan(b, need, together)
	t := p.Together
	Debug("nv12 round: need %d, separate %d/%d (%d), together %s %d/%d (%d)",
		need, p.SeparateCount, p.SeparateArea, p.SeparateRank, t.Pattern, t.Count(), t.Area, p.TogetherRank)

	if p.Separate {
		n, err := r.laySeparate(g, b, p.SeparateCount)
		if err == nil {
			r.stats.separateCommits.Add(1)
			return n
		}
		Debug("Separate nv12 packing failed: %v", err)
	}

	// still try to pack together if separate packing failed
	if t.Count() > 0 {
		n, err := r.ops.LayNV12(t.Count(), t.Area, b.Width, b.Height, g, t.Pairs)
		if err != nil {
			Debug("Co-located nv12 packing failed: %v", err)
			return 0
		}
		r.stats.togetherCommits.Add(1)
		return n
	}
	return 0
}

// laySeparate commits luma and chroma as two 2D reservations. Both go to a
// pending list that is released unless both planes commit the same count.
func (r *Reserver) laySeparate(g Group, b Block, n int) (int, error) {
	var pending AreaList

	// chroma is only laid after luma succeeded, as it is matched against
	// the already reserved luma area
	luma, err := r.ops.Lay2D(Format8Bit, n, b, g, &pending)
	if err == nil {
		var chroma int
		chroma, err = r.ops.Lay2D(Format16Bit, n, b.Chroma(), g, &pending)
		if err == nil && chroma != luma {
			err = errors.Wrapf(ErrMismatch, "luma %d, chroma %d", luma, chroma)
		}
	}
	if err != nil {
		r.ops.Release(&pending)
		r.stats.rollbacks.Add(1)
		return 0, err
	}
	r.ops.AddReserved(&pending, g)
	return luma, nil
}

// Reserve reserves areas for req.Count 2D buffers of req.Format. Buffers
// at least half a page wide are left to the generic allocator and Reserve
// returns without reserving.
func (r *Reserver) Reserve(req Request) (Result, error) {
	r.stats.requests.Add(1)
	res := Result{Requested: req.Count}

	if err := r.checkBlocks(req); err != nil {
		r.stats.rejected.Add(1)
		Debug("Rejected %s request %+v: %v", req.Format, req, err)
		return res, err
	}

	geom := r.ops.Geometry(req.Format)
	if req.Width*geom.BytesPerPixel*2 >= r.layout.PageSize {
		r.stats.declined.Add(1)
		Debug("Declined %s request of width %d", req.Format, req.Width)
		return res, nil
	}

	b, err := r.analyze(req.Format, req, req.Align, 1)
	if err != nil {
		r.stats.rejected.Add(1)
		return res, err
	}

	g := r.ops.Group(req.Process, req.Group)
	if g == nil {
		return res, errors.Wrapf(ErrNoGroup, "process %d group %d", req.Process, req.Group)
	}
	defer r.ops.ReleaseGroup(g)

	// effective width of a buffer
	e := alignUp(b.Width, b.Align)

	for res.Reserved < req.Count {
		n := r.blocksRound(req.Format, g, b, e, req.Count-res.Reserved)
		if n <= 0 {
			break
		}
		res.Reserved += n
	}
	return res, nil
}

// analyze maps req to slots and rejects blocks the packers cannot step
// through. Band and Align must be at least minSlots.
func (r *Reserver) analyze(f Format, req Request, align, minSlots int) (Block, error) {
	b, err := r.ops.Analyze(f, req.Width, req.Height, align, req.Offset)
	if err == nil && (b.Width <= 0 || b.Height <= 0 || b.Band < minSlots || b.Align < minSlots ||
		b.Offset < 0 || b.Offset >= b.Align) {
		err = errors.Newf("unusable block %+v", b)
	}
	if err != nil {
		return Block{}, errors.Mark(errors.Wrapf(err, "%s %dx%d", f, req.Width, req.Height), ErrGeometry)
	}
	return b, nil
}

func (r *Reserver) checkBlocks(req Request) error {
	switch {
	case req.Width <= 0 || req.Height <= 0 || req.Count <= 0:
		return invalidf("empty request: %dx%d, count %d", req.Width, req.Height, req.Count)
	case req.Align > r.layout.PageSize:
		return invalidf("alignment %d above page size %d", req.Align, r.layout.PageSize)
	case req.Offset < 0 || req.Offset >= req.Align:
		return invalidf("offset %d not below alignment %d", req.Offset, req.Align)
	case !req.Format.Valid():
		return invalidf("format %d", req.Format)
	}
	return nil
}

// blocksRound commits as many buffers as fit in one area, retrying with one
// buffer less after each failure. A single buffer is never reserved.
func (r *Reserver) blocksRound(f Format, g Group, b Block, e, need int) int {
	r.stats.rounds.Add(1)

	_, try, _ := r.layout.BestFit(b.Offset, b.Width, e, b.Band, min(need, r.layout.Width))
	for ; try > 1; try-- {
		n, err := r.ops.Lay2D(f, try, b, g, g.Reserved())
		if err == nil {
			r.stats.blockCommits.Add(1)
			return n
		}
		r.stats.shrinks.Add(1)
		Debug("Could not lay %d %s blocks: %v", try, f, err)
	}
	return 0
}

// Unreserve releases every area reserved for the group. A group that does
// not exist is ignored.
func (r *Reserver) Unreserve(pid ProcessID, gid uint32) {
	g := r.ops.Group(pid, gid)
	if g == nil {
		return
	}
	r.stats.unreserves.Add(1)
	r.ops.Release(g.Reserved())
	r.ops.ReleaseGroup(g)
}

// Stats returns a snapshot of the reserver counters
func (r *Reserver) Stats() Stats {
	return Stats{
		Requests:        r.stats.requests.Load(),
		Rejected:        r.stats.rejected.Load(),
		Declined:        r.stats.declined.Load(),
		Rounds:          r.stats.rounds.Load(),
		SeparateCommits: r.stats.separateCommits.Load(),
		TogetherCommits: r.stats.togetherCommits.Load(),
		BlockCommits:    r.stats.blockCommits.Load(),
		Rollbacks:       r.stats.rollbacks.Load(),
		Shrinks:         r.stats.shrinks.Load(),
		Unreserves:      r.stats.unreserves.Load(),
	}
}
