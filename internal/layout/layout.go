// Package layout describes how a spatial domain is decomposed into boxes and
// which rank owns each box.
//
// A Layout is closed and immutable once built: boxes are sorted into a stable
// global order, disjointness is verified, and the layout receives an identity
// that distinguishes it from every other layout in the process. Derived
// layouts (coarsened, refined) are new layouts with new identities.
package layout

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync/atomic"

	"github.com/vk/boxmotion/internal/geom"
)

// Programming errors. They are raised by panicking with an error that wraps
// one of these values.
var (
	ErrOverlap        = errors.New("layout boxes overlap")
	ErrNotClosed      = errors.New("layout is not closed")
	ErrDimension      = errors.New("dimension mismatch")
	ErrNotCoarsenable = errors.New("layout is not coarsenable")
	ErrForeignIndex   = errors.New("index belongs to another layout")
	ErrBadProc        = errors.New("invalid owning rank")
)

var nextID atomic.Uint64

// Index is a process-independent handle to one box of a layout: every rank
// computes the same Index for the same box.
type Index struct {
	pos    int32
	layout uint64
}

// Pos returns the box's position in the layout's global order.
func (i Index) Pos() int { return int(i.pos) }

// LayoutID returns the identity of the layout the index was issued by.
func (i Index) LayoutID() uint64 { return i.layout }

// IsValid reports whether the index was issued by a layout.
func (i Index) IsValid() bool { return i.layout != 0 }

func (i Index) String() string { return fmt.Sprintf("#%d", i.pos) }

// DataIndex is an Index restricted to boxes owned by one rank. Local is the
// slot of the box in that rank's local storage.
type DataIndex struct {
	Index
	local int32
}

// Local returns the slot of the box in its owner's local storage.
func (d DataIndex) Local() int { return int(d.local) }

// Layout is a closed, ordered collection of (box, owning rank) pairs.
type Layout struct {
	id       uint64
	dim      int
	boxes    []geom.Box
	procs    []int
	slots    []int32   // position -> slot in the owner's local list
	local    [][]int32 // rank -> positions in global order
	maxExt   int       // largest extent along direction 0
	disjoint bool
}

// Builder accumulates boxes until Close turns them into a Layout.
type Builder struct {
	dim   int
	boxes []geom.Box
	procs []int
}

// NewBuilder starts an empty layout of the given dimension.
func NewBuilder(dim int) *Builder {
	if dim < 1 || dim > geom.MaxDim {
		panic(fmt.Errorf("%w: layout dimension %d", ErrDimension, dim))
	}
	return &Builder{dim: dim}
}

// Add appends a box owned by proc.
func (b *Builder) Add(box geom.Box, proc int) *Builder {
	if box.Dim() != b.dim {
		panic(fmt.Errorf("%w: %d-d box %s in %d-d layout", ErrDimension, box.Dim(), box, b.dim))
	}
	if box.IsEmpty() {
		panic(fmt.Errorf("layout: empty box %s", box))
	}
	if proc < 0 {
		panic(fmt.Errorf("%w: %d for box %s", ErrBadProc, proc, box))
	}
	b.boxes = append(b.boxes, box)
	b.procs = append(b.procs, proc)
	return b
}

// Len returns the number of boxes added so far.
func (b *Builder) Len() int { return len(b.boxes) }

// Close sorts the boxes, verifies that they are pairwise disjoint and returns
// the closed layout. Overlapping boxes are a programming error.
func (b *Builder) Close() *Layout {
	l := b.close()
	if a, c, ok := l.firstOverlap(); ok {
		panic(fmt.Errorf("%w: %s and %s", ErrOverlap, l.boxes[a], l.boxes[c]))
	}
	l.disjoint = true
	return l
}

// CloseOverlapping closes the layout without requiring disjointness. Such
// layouts can be transfer destinations but never sources.
func (b *Builder) CloseOverlapping() *Layout {
	l := b.close()
	_, _, overlap := l.firstOverlap()
	l.disjoint = !overlap
	return l
}

func (b *Builder) close() *Layout {
	order := make([]int, len(b.boxes))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return b.boxes[x].Compare(b.boxes[y])
	})

	l := &Layout{
		id:    nextID.Add(1),
		dim:   b.dim,
		boxes: make([]geom.Box, len(order)),
		procs: make([]int, len(order)),
		slots: make([]int32, len(order)),
	}
	nprocs := 0
	for pos, src := range order {
		l.boxes[pos] = b.boxes[src]
		l.procs[pos] = b.procs[src]
		nprocs = max(nprocs, b.procs[src]+1)
		l.maxExt = max(l.maxExt, b.boxes[src].Size(0))
	}
	l.local = make([][]int32, nprocs)
	for pos, p := range l.procs {
		l.slots[pos] = int32(len(l.local[p]))
		l.local[p] = append(l.local[p], int32(pos))
	}
	return l
}

// New builds and closes a disjoint layout from parallel box and owner lists.
func New(boxes []geom.Box, procs []int) *Layout {
	if len(boxes) != len(procs) {
		panic(fmt.Errorf("layout: %d boxes but %d owners", len(boxes), len(procs)))
	}
	if len(boxes) == 0 {
		panic(errors.New("layout: no boxes"))
	}
	b := NewBuilder(boxes[0].Dim())
	for i := range boxes {
		b.Add(boxes[i], procs[i])
	}
	return b.Close()
}

// NewTiled covers region with tiles of the given size, the last tile in each
// direction truncated to fit, and deals them out round-robin over nprocs
// ranks in generation order.
func NewTiled(region geom.Box, tile geom.IntVect, nprocs int) *Layout {
	if nprocs < 1 {
		panic(fmt.Errorf("%w: %d ranks", ErrBadProc, nprocs))
	}
	dim := region.Dim()
	for d := 0; d < dim; d++ {
		if tile[d] < 1 {
			panic(fmt.Errorf("layout: tile size %s", tile.Format(dim)))
		}
	}
	b := NewBuilder(dim)
	k := 0
	lo := region.Lo()
	for {
		hi := lo
		for d := 0; d < dim; d++ {
			hi[d] = min(lo[d]+tile[d]-1, region.Hi()[d])
		}
		b.Add(geom.BoxFromCorners(lo, hi, dim), k%nprocs)
		k++

		d := 0
		for ; d < dim; d++ {
			lo[d] += tile[d]
			if lo[d] <= region.Hi()[d] {
				break
			}
			lo[d] = region.Lo()[d]
		}
		if d == dim {
			break
		}
	}
	return b.Close()
}

// ID returns the layout's identity.
func (l *Layout) ID() uint64 { return l.id }

// Dim returns the spatial dimension.
func (l *Layout) Dim() int { return l.dim }

// Len returns the number of boxes.
func (l *Layout) Len() int { return len(l.boxes) }

// NumProcs returns one more than the highest owning rank.
func (l *Layout) NumProcs() int { return len(l.local) }

// IsClosed reports whether l is a usable layout. Nil and zero layouts are not.
func (l *Layout) IsClosed() bool { return l != nil && l.id != 0 }

// IsDisjoint reports whether the boxes are pairwise non-overlapping.
func (l *Layout) IsDisjoint() bool { return l.IsClosed() && l.disjoint }

// MustBeClosed panics unless l is closed; what names the caller's use of it.
func (l *Layout) MustBeClosed(what string) {
	if !l.IsClosed() {
		panic(fmt.Errorf("%w: %s", ErrNotClosed, what))
	}
}

// SameAs reports whether both values are the same layout.
func (l *Layout) SameAs(o *Layout) bool {
	return l.IsClosed() && o.IsClosed() && l.id == o.id
}

// Compatible reports whether both layouts hold equal boxes with equal owners
// in the same order, regardless of identity.
func (l *Layout) Compatible(o *Layout) bool {
	if l.SameAs(o) {
		return true
	}
	if !l.IsClosed() || !o.IsClosed() || l.dim != o.dim || len(l.boxes) != len(o.boxes) {
		return false
	}
	for i := range l.boxes {
		if !l.boxes[i].Equal(o.boxes[i]) || l.procs[i] != o.procs[i] {
			return false
		}
	}
	return true
}

// IndexAt returns the index of the box at position pos.
func (l *Layout) IndexAt(pos int) Index {
	if pos < 0 || pos >= len(l.boxes) {
		panic(fmt.Errorf("layout: position %d out of range [0,%d)", pos, len(l.boxes)))
	}
	return Index{pos: int32(pos), layout: l.id}
}

func (l *Layout) check(idx Index) int {
	if idx.layout != l.id {
		panic(fmt.Errorf("%w: %s", ErrForeignIndex, idx))
	}
	return int(idx.pos)
}

// Box returns the region of the indexed box.
func (l *Layout) Box(idx Index) geom.Box { return l.boxes[l.check(idx)] }

// Proc returns the owning rank of the indexed box.
func (l *Layout) Proc(idx Index) int { return l.procs[l.check(idx)] }

// BoxAt and ProcAt address boxes by global position.
func (l *Layout) BoxAt(pos int) geom.Box { return l.boxes[pos] }
func (l *Layout) ProcAt(pos int) int     { return l.procs[pos] }

// Boxes returns a copy of all boxes in global order.
func (l *Layout) Boxes() []geom.Box { return slices.Clone(l.boxes) }

// Indices returns every index in global order.
func (l *Layout) Indices() []Index {
	out := make([]Index, len(l.boxes))
	for i := range out {
		out[i] = Index{pos: int32(i), layout: l.id}
	}
	return out
}

// All iterates over (index, box) pairs in global order.
func (l *Layout) All() iter.Seq2[Index, geom.Box] {
	return func(yield func(Index, geom.Box) bool) {
		for i, b := range l.boxes {
			if !yield(Index{pos: int32(i), layout: l.id}, b) {
				return
			}
		}
	}
}

// NumLocal returns how many boxes rank owns.
func (l *Layout) NumLocal(rank int) int {
	if rank < 0 || rank >= len(l.local) {
		return 0
	}
	return len(l.local[rank])
}

// DataIndices returns the boxes owned by rank, in global order.
func (l *Layout) DataIndices(rank int) []DataIndex {
	if rank < 0 || rank >= len(l.local) {
		return nil
	}
	out := make([]DataIndex, len(l.local[rank]))
	for slot, pos := range l.local[rank] {
		out[slot] = DataIndex{Index: Index{pos: pos, layout: l.id}, local: int32(slot)}
	}
	return out
}

// Local converts idx into a DataIndex for rank. The second result is false
// when rank does not own the box.
func (l *Layout) Local(rank int, idx Index) (DataIndex, bool) {
	pos := l.check(idx)
	if l.procs[pos] != rank {
		return DataIndex{}, false
	}
	return DataIndex{Index: idx, local: l.slots[pos]}, true
}

// SlotAt returns the local storage slot of the box at pos within its owner.
func (l *Layout) SlotAt(pos int) int { return int(l.slots[pos]) }

// ProcOf returns the owner of the first box, in global order, that contains
// region, or -1 when no single box contains it.
func (l *Layout) ProcOf(region geom.Box) int {
	owner := -1
	l.ForEachIntersecting(region, func(pos int) bool {
		if l.boxes[pos].Contains(region) {
			owner = l.procs[pos]
			return false
		}
		return true
	})
	return owner
}

// CoarsenableBy reports whether every box survives coarsening by ratio
// without losing cells.
func (l *Layout) CoarsenableBy(ratio int) bool {
	if ratio < 1 {
		return false
	}
	for _, b := range l.boxes {
		if !b.CoarsenableBy(ratio) {
			return false
		}
	}
	return true
}

// Coarsen returns a new layout with every box coarsened by ratio and the same
// ownership. Global order is preserved.
func (l *Layout) Coarsen(ratio int) *Layout {
	l.MustBeClosed("coarsen")
	if !l.CoarsenableBy(ratio) {
		panic(fmt.Errorf("%w: ratio %d", ErrNotCoarsenable, ratio))
	}
	return l.derive(func(b geom.Box) geom.Box { return b.Coarsen(ratio) })
}

// Refine returns a new layout with every box refined by ratio and the same
// ownership. Global order is preserved.
func (l *Layout) Refine(ratio int) *Layout {
	l.MustBeClosed("refine")
	if ratio < 1 {
		panic(fmt.Errorf("layout: refinement ratio %d", ratio))
	}
	return l.derive(func(b geom.Box) geom.Box { return b.Refine(ratio) })
}

func (l *Layout) derive(fn func(geom.Box) geom.Box) *Layout {
	b := NewBuilder(l.dim)
	for i, box := range l.boxes {
		b.Add(fn(box), l.procs[i])
	}
	if l.disjoint {
		return b.Close()
	}
	return b.CloseOverlapping()
}

func (l *Layout) String() string {
	if !l.IsClosed() {
		return "layout<undefined>"
	}
	return fmt.Sprintf("layout#%d{%d boxes, %d ranks, dim %d}", l.id, len(l.boxes), len(l.local), l.dim)
}
