package copier

import (
	"fmt"

	"github.com/vk/boxmotion/internal/geom"
	"github.com/vk/boxmotion/internal/layout"
)

// Reverse swaps the direction of every item in place: sources become
// destinations, outgoing items become incoming ones and vice versa.
func (c *Copier) Reverse() {
	c.reverse()
	c.invalidate()
}

func (c *Copier) reverse() {
	for i := range c.items {
		c.items[i] = c.items[i].Reversed()
	}
	c.src, c.dst = c.dst, c.src
	c.out, c.in = c.in, c.out
	c.reversed = !c.reversed
	c.sortLists()
}

// Trim removes items that write only into corner ghost cells, the cells
// outside the destination box in more than one direction at once. Stencils
// that never read diagonal neighbors do not need them.
func (c *Copier) Trim() {
	keep := func(m MotionItem) bool {
		// The ghost halo belongs to the side the copier was built to write.
		region, owner, pos := m.ToRegion, c.dst, m.To.Pos()
		if c.reversed {
			region, owner, pos = m.FromRegion, c.src, m.From.Pos()
		}
		b := owner.BoxAt(pos)
		if region.Intersects(b) {
			return true
		}
		for d := 0; d < b.Dim(); d++ {
			if region.Intersects(b.GrowDir(d, c.opts.Ghost[d])) {
				return true
			}
		}
		return false
	}
	filter := func(ids []int32) []int32 {
		out := ids[:0]
		for _, id := range ids {
			if keep(c.items[id]) {
				out = append(out, id)
			}
		}
		return out
	}
	c.local = filter(c.local)
	c.out = filter(c.out)
	c.in = filter(c.in)
	c.invalidate()
}

// CanCoarsen reports why the copier cannot be coarsened by ratio, or nil.
func (c *Copier) CanCoarsen(ratio int) error {
	dim := c.src.Dim()
	switch {
	case ratio < 1:
		return fmt.Errorf("%w: ratio %d", ErrUnsafeCoarsen, ratio)
	case c.opts.Domain.AnyPeriodic():
		return fmt.Errorf("%w: periodic domain %s", ErrUnsafeCoarsen, c.opts.Domain)
	case c.opts.Ghost.Max(dim) > 1 || c.srcGhost.Max(dim) > 1:
		return fmt.Errorf("%w: ghost width %s exceeds one cell", ErrUnsafeCoarsen, c.opts.Ghost.Format(dim))
	case !c.src.CoarsenableBy(ratio):
		return fmt.Errorf("%w: source %s not coarsenable by %d", ErrUnsafeCoarsen, c.src, ratio)
	case !c.dst.CoarsenableBy(ratio):
		return fmt.Errorf("%w: destination %s not coarsenable by %d", ErrUnsafeCoarsen, c.dst, ratio)
	}
	for d := 0; d < dim; d++ {
		if c.opts.Shift[d]%ratio != 0 {
			return fmt.Errorf("%w: shift %s not a multiple of %d", ErrUnsafeCoarsen, c.opts.Shift.Format(dim), ratio)
		}
	}
	return nil
}

// Coarsen rewrites the copier in place for the layouts coarsened by ratio.
// Every region is coarsened and every index is re-issued by the coarsened
// layout at the same position. Only non-periodic copiers with ghost width at
// most one over coarsenable layouts qualify; anything else panics with
// ErrUnsafeCoarsen.
func (c *Copier) Coarsen(ratio int) {
	if err := c.CanCoarsen(ratio); err != nil {
		panic(err)
	}
	src, dst := c.src.Coarsen(ratio), c.dst.Coarsen(ratio)
	if c.src.SameAs(c.dst) {
		dst = src
	}
	restamp := func(l *layout.Layout, idx layout.Index) layout.Index {
		return l.IndexAt(idx.Pos())
	}
	for i, m := range c.items {
		c.items[i] = MotionItem{
			From:       restamp(src, m.From),
			To:         restamp(dst, m.To),
			FromRegion: m.FromRegion.Coarsen(ratio),
			ToRegion:   m.ToRegion.Coarsen(ratio),
			FromProc:   m.FromProc,
			ToProc:     m.ToProc,
		}
	}
	c.src, c.dst = src, dst
	var shift geom.IntVect
	for d := 0; d < src.Dim(); d++ {
		shift[d] = c.opts.Shift[d] / ratio
	}
	c.opts.Shift = shift
	c.sortLists()
	c.invalidate()
}
