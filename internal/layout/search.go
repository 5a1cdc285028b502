package layout

import (
	"sort"

	"github.com/vk/boxmotion/internal/geom"
)

// The global order sorts boxes by lower corner, direction 0 first, so the
// boxes that can reach a region along direction 0 form one contiguous window:
// lower corners in [region.lo0 - maxExt + 1, region.hi0]. Exact intersection
// tests run only inside that window.

// ForEachIntersecting calls fn with the global position of every box that
// intersects region, in global order, until fn returns false.
func (l *Layout) ForEachIntersecting(region geom.Box, fn func(pos int) bool) {
	if region.IsEmpty() || len(l.boxes) == 0 {
		return
	}
	from := region.Lo()[0] - l.maxExt + 1
	to := region.Hi()[0]
	start := sort.Search(len(l.boxes), func(i int) bool {
		return l.boxes[i].Lo()[0] >= from
	})
	for pos := start; pos < len(l.boxes); pos++ {
		b := l.boxes[pos]
		if b.Lo()[0] > to {
			return
		}
		if b.Intersects(region) && !fn(pos) {
			return
		}
	}
}

// Intersecting returns the indices of all boxes that intersect region.
func (l *Layout) Intersecting(region geom.Box) []Index {
	var out []Index
	l.ForEachIntersecting(region, func(pos int) bool {
		out = append(out, Index{pos: int32(pos), layout: l.id})
		return true
	})
	return out
}

func (l *Layout) firstOverlap() (int, int, bool) {
	for a, box := range l.boxes {
		other := -1
		l.ForEachIntersecting(box, func(pos int) bool {
			if pos != a {
				other = pos
				return false
			}
			return true
		})
		if other >= 0 {
			return a, other, true
		}
	}
	return 0, 0, false
}

// Neighbor is a box whose periodic image reaches into another box's halo.
type Neighbor struct {
	Index Index
	// Shift is the periodic image offset applied to the neighbor's box.
	Shift geom.IntVect
	// Overlap is the part of the halo the shifted neighbor covers.
	Overlap geom.Box
}

// Neighbors returns the boxes whose valid region, possibly shifted by a
// periodic image of domain, intersects the box at idx grown by ghost. The box
// itself is excluded at zero shift but included at non-zero shifts. domain may
// be nil.
func (l *Layout) Neighbors(idx Index, ghost geom.IntVect, domain *geom.ProblemDomain) []Neighbor {
	self := l.check(idx)
	halo := l.boxes[self].Grow(ghost)
	var out []Neighbor
	for _, shift := range domain.Images(ghost) {
		l.ForEachIntersecting(halo.Shift(shift.Neg()), func(pos int) bool {
			if pos == self && shift.IsZero() {
				return true
			}
			out = append(out, Neighbor{
				Index:   Index{pos: int32(pos), layout: l.id},
				Shift:   shift,
				Overlap: l.boxes[pos].Shift(shift).Intersect(halo),
			})
			return true
		})
	}
	return out
}
