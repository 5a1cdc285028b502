package geom

import (
	"fmt"
	"strings"
)

// Box is an immutable axis-aligned integer rectangle with inclusive corners.
// A box is empty when Hi < Lo in any direction. The zero Box is empty and has
// dimension zero.
type Box struct {
	lo, hi IntVect
	dim    int
}

// NewBox builds a box from inclusive corners. Both corners must have the same
// number of components, between 1 and MaxDim.
func NewBox(lo, hi []int) Box {
	if len(lo) != len(hi) || len(lo) == 0 || len(lo) > MaxDim {
		panic(fmt.Sprintf("geom: bad box corners %v %v", lo, hi))
	}
	return Box{lo: IV(lo...), hi: IV(hi...), dim: len(lo)}
}

// BoxFromCorners builds a dim-dimensional box from IntVect corners.
func BoxFromCorners(lo, hi IntVect, dim int) Box {
	if dim < 1 || dim > MaxDim {
		panic(fmt.Sprintf("geom: bad dimension %d", dim))
	}
	return Box{lo: clip(lo, dim), hi: clip(hi, dim), dim: dim}
}

// EmptyBox returns the canonical empty box of the given dimension.
func EmptyBox(dim int) Box {
	var hi IntVect
	for i := 0; i < dim; i++ {
		hi[i] = -1
	}
	return Box{hi: hi, dim: dim}
}

func clip(v IntVect, dim int) IntVect {
	for i := dim; i < MaxDim; i++ {
		v[i] = 0
	}
	return v
}

func (b Box) Dim() int    { return b.dim }
func (b Box) Lo() IntVect { return b.lo }
func (b Box) Hi() IntVect { return b.hi }

// IsEmpty reports whether the box contains no cells.
func (b Box) IsEmpty() bool {
	if b.dim == 0 {
		return true
	}
	for i := 0; i < b.dim; i++ {
		if b.hi[i] < b.lo[i] {
			return true
		}
	}
	return false
}

// Size returns the number of cells along direction d.
func (b Box) Size(d int) int {
	if n := b.hi[d] - b.lo[d] + 1; n > 0 {
		return n
	}
	return 0
}

// Shape returns the per-direction cell counts.
func (b Box) Shape() IntVect {
	var s IntVect
	for i := 0; i < b.dim; i++ {
		s[i] = b.Size(i)
	}
	return s
}

// NumPts returns the number of cells in the box.
func (b Box) NumPts() int {
	if b.IsEmpty() {
		return 0
	}
	n := 1
	for i := 0; i < b.dim; i++ {
		n *= b.Size(i)
	}
	return n
}

// SameShape reports whether two boxes have equal extents in every direction.
func (b Box) SameShape(o Box) bool {
	return b.dim == o.dim && b.Shape() == o.Shape()
}

// ContainsPoint reports whether p lies inside the box.
func (b Box) ContainsPoint(p IntVect) bool {
	if b.dim == 0 {
		return false
	}
	for i := 0; i < b.dim; i++ {
		if p[i] < b.lo[i] || p[i] > b.hi[i] {
			return false
		}
	}
	return true
}

// Contains reports whether o lies entirely inside b. An empty o is contained
// in every box.
func (b Box) Contains(o Box) bool {
	if o.IsEmpty() {
		return true
	}
	if b.IsEmpty() {
		return false
	}
	return b.ContainsPoint(o.lo) && b.ContainsPoint(o.hi)
}

// Intersects reports whether the two boxes share at least one cell.
func (b Box) Intersects(o Box) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	for i := 0; i < b.dim; i++ {
		if b.lo[i] > o.hi[i] || o.lo[i] > b.hi[i] {
			return false
		}
	}
	return true
}

// Intersect returns the common cells of both boxes, or an empty box.
func (b Box) Intersect(o Box) Box {
	if !b.Intersects(o) {
		return EmptyBox(b.dim)
	}
	r := b
	for i := 0; i < b.dim; i++ {
		r.lo[i] = max(b.lo[i], o.lo[i])
		r.hi[i] = min(b.hi[i], o.hi[i])
	}
	return r
}

// Grow enlarges the box by g[d] cells on both sides of every direction d.
// Negative entries shrink it.
func (b Box) Grow(g IntVect) Box {
	for i := 0; i < b.dim; i++ {
		b.lo[i] -= g[i]
		b.hi[i] += g[i]
	}
	return b
}

// GrowN grows by n cells in every direction.
func (b Box) GrowN(n int) Box {
	return b.Grow(Uniform(n))
}

// GrowDir grows by n cells on both sides of direction d only.
func (b Box) GrowDir(d, n int) Box {
	b.lo[d] -= n
	b.hi[d] += n
	return b
}

// Shift translates the box by v.
func (b Box) Shift(v IntVect) Box {
	for i := 0; i < b.dim; i++ {
		b.lo[i] += v[i]
		b.hi[i] += v[i]
	}
	return b
}

// ShiftDir translates the box by n cells along direction d.
func (b Box) ShiftDir(d, n int) Box {
	b.lo[d] += n
	b.hi[d] += n
	return b
}

// Coarsen maps the box onto the index space coarser by ratio, rounding
// toward negative infinity.
func (b Box) Coarsen(ratio int) Box {
	if ratio < 1 {
		panic(fmt.Sprintf("geom: coarsening ratio %d", ratio))
	}
	for i := 0; i < b.dim; i++ {
		b.lo[i] = floorDiv(b.lo[i], ratio)
		b.hi[i] = floorDiv(b.hi[i], ratio)
	}
	return b
}

// Refine maps the box onto the index space finer by ratio.
func (b Box) Refine(ratio int) Box {
	if ratio < 1 {
		panic(fmt.Sprintf("geom: refinement ratio %d", ratio))
	}
	for i := 0; i < b.dim; i++ {
		b.lo[i] *= ratio
		b.hi[i] = (b.hi[i]+1)*ratio - 1
	}
	return b
}

// CoarsenableBy reports whether coarsening then refining reproduces the box.
func (b Box) CoarsenableBy(ratio int) bool {
	return b.Coarsen(ratio).Refine(ratio).Equal(b)
}

// Equal reports cell-wise equality. All empty boxes of one dimension are equal.
func (b Box) Equal(o Box) bool {
	if b.dim != o.dim {
		return false
	}
	if b.IsEmpty() || o.IsEmpty() {
		return b.IsEmpty() && o.IsEmpty()
	}
	return b.lo == o.lo && b.hi == o.hi
}

// Compare is the total corner order used for deterministic sorting: lower
// corners lexicographically, then upper corners.
func (b Box) Compare(o Box) int {
	if c := b.lo.Compare(o.lo, max(b.dim, o.dim)); c != 0 {
		return c
	}
	return b.hi.Compare(o.hi, max(b.dim, o.dim))
}

// Less reports b.Compare(o) < 0.
func (b Box) Less(o Box) bool {
	return b.Compare(o) < 0
}

func (b Box) String() string {
	if b.dim == 0 {
		return "[]"
	}
	return "[" + b.lo.Format(b.dim) + ".." + b.hi.Format(b.dim) + "]"
}

// Subtract returns disjoint boxes covering exactly the cells of b that are
// not in o.
func (b Box) Subtract(o Box) []Box {
	if !b.Intersects(o) {
		if b.IsEmpty() {
			return nil
		}
		return []Box{b}
	}
	var out []Box
	cur := b
	for d := 0; d < b.dim; d++ {
		if cur.lo[d] < o.lo[d] {
			piece := cur
			piece.hi[d] = o.lo[d] - 1
			out = append(out, piece)
			cur.lo[d] = o.lo[d]
		}
		if cur.hi[d] > o.hi[d] {
			piece := cur
			piece.lo[d] = o.hi[d] + 1
			out = append(out, piece)
			cur.hi[d] = o.hi[d]
		}
	}
	return out
}

// Halo returns disjoint slabs covering b.Grow(g) minus b. Slabs in direction d
// span the already grown extent of directions before d, so corner cells belong
// to the slab of the highest direction they stick out of.
func (b Box) Halo(g IntVect) []Box {
	var out []Box
	cur := b
	for d := 0; d < b.dim; d++ {
		if g[d] <= 0 {
			continue
		}
		lo := cur
		lo.hi[d] = cur.lo[d] - 1
		lo.lo[d] = cur.lo[d] - g[d]
		hi := cur
		hi.lo[d] = cur.hi[d] + 1
		hi.hi[d] = cur.hi[d] + g[d]
		out = append(out, lo, hi)
		cur = cur.GrowDir(d, g[d])
	}
	return out
}

// ForEachRow calls fn once per row of cells along direction 0, with the row's
// first cell and its length. Rows are visited with direction 1 varying fastest.
func (b Box) ForEachRow(fn func(start IntVect, n int)) {
	if b.IsEmpty() {
		return
	}
	n := b.Size(0)
	p := b.lo
	for {
		fn(p, n)
		d := 1
		for ; d < b.dim; d++ {
			p[d]++
			if p[d] <= b.hi[d] {
				break
			}
			p[d] = b.lo[d]
		}
		if d >= b.dim {
			return
		}
	}
}

// ForEach calls fn for every cell, direction 0 fastest.
func (b Box) ForEach(fn func(p IntVect)) {
	b.ForEachRow(func(start IntVect, n int) {
		p := start
		for i := 0; i < n; i++ {
			p[0] = start[0] + i
			fn(p)
		}
	})
}

// FormatBoxes renders a list of boxes, for logs and test failures.
func FormatBoxes(bs []Box) string {
	parts := make([]string, len(bs))
	for i, b := range bs {
		parts[i] = b.String()
	}
	return strings.Join(parts, " ")
}
