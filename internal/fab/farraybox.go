// Package fab provides FArrayBox, a multi-component array of float64 values
// over a box. Storage is direction 0 fastest and component slowest.
package fab

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/vk/boxmotion/internal/geom"
)

var order = binary.LittleEndian

// FArrayBox holds ncomp float64 values per cell of a box.
type FArrayBox struct {
	box    geom.Box
	ncomp  int
	stride geom.IntVect // elements between neighbours along each direction
	plane  int          // elements per component
	data   []float64
}

// New allocates a zeroed array over box.
func New(box geom.Box, ncomp int) *FArrayBox {
	if box.IsEmpty() || ncomp < 1 {
		panic(fmt.Sprintf("fab: cannot allocate %d components over %s", ncomp, box))
	}
	return NewAlias(box, ncomp, make([]float64, box.NumPts()*ncomp))
}

// NewAlias wraps caller-owned storage, which must hold exactly
// box.NumPts()*ncomp values.
func NewAlias(box geom.Box, ncomp int, data []float64) *FArrayBox {
	if len(data) != box.NumPts()*ncomp {
		panic(fmt.Sprintf("fab: %d values for %d components over %s", len(data), ncomp, box))
	}
	f := &FArrayBox{box: box, ncomp: ncomp, data: data, plane: box.NumPts()}
	s := 1
	for d := 0; d < box.Dim(); d++ {
		f.stride[d] = s
		s *= box.Size(d)
	}
	return f
}

func (f *FArrayBox) Box() geom.Box { return f.box }
func (f *FArrayBox) NComp() int    { return f.ncomp }

// Data returns the backing storage.
func (f *FArrayBox) Data() []float64 { return f.data }

func (f *FArrayBox) offset(p geom.IntVect, comp int) int {
	off := comp * f.plane
	for d := 0; d < f.box.Dim(); d++ {
		off += (p[d] - f.box.Lo()[d]) * f.stride[d]
	}
	return off
}

func (f *FArrayBox) checkPoint(p geom.IntVect, comp int) {
	if !f.box.ContainsPoint(p) || comp < 0 || comp >= f.ncomp {
		panic(fmt.Sprintf("fab: cell %s component %d outside %s x %d", p.Format(f.box.Dim()), comp, f.box, f.ncomp))
	}
}

// Get returns the value of component comp at cell p.
func (f *FArrayBox) Get(p geom.IntVect, comp int) float64 {
	f.checkPoint(p, comp)
	return f.data[f.offset(p, comp)]
}

// Set stores v in component comp at cell p.
func (f *FArrayBox) Set(p geom.IntVect, comp int, v float64) {
	f.checkPoint(p, comp)
	f.data[f.offset(p, comp)] = v
}

// SetVal sets every component of every cell in region to v.
func (f *FArrayBox) SetVal(v float64, region geom.Box) {
	f.checkRegion(region, geom.Comps(f.ncomp))
	for c := 0; c < f.ncomp; c++ {
		region.ForEachRow(func(start geom.IntVect, n int) {
			off := f.offset(start, c)
			row := f.data[off : off+n]
			for i := range row {
				row[i] = v
			}
		})
	}
}

// Fill calls fn for every cell and component of region and stores the result.
func (f *FArrayBox) Fill(region geom.Box, fn func(p geom.IntVect, comp int) float64) {
	f.checkRegion(region, geom.Comps(f.ncomp))
	for c := 0; c < f.ncomp; c++ {
		region.ForEach(func(p geom.IntVect) {
			f.data[f.offset(p, c)] = fn(p, c)
		})
	}
}

func (f *FArrayBox) checkRegion(region geom.Box, comps geom.Interval) {
	if !f.box.Contains(region) {
		panic(fmt.Sprintf("fab: region %s outside %s", region, f.box))
	}
	if !comps.Within(f.ncomp) {
		panic(fmt.Sprintf("fab: components %s outside [0,%d)", comps, f.ncomp))
	}
}

// CopyFrom copies srcComps of src over srcRegion into dstComps of f over
// dstRegion. Regions must have the same shape and component ranges the same
// size.
func (f *FArrayBox) CopyFrom(src *FArrayBox, srcRegion geom.Box, srcComps geom.Interval, dstRegion geom.Box, dstComps geom.Interval) {
	if !srcRegion.SameShape(dstRegion) || srcComps.Size() != dstComps.Size() {
		panic(fmt.Sprintf("fab: copy %s%s into %s%s", srcRegion, srcComps, dstRegion, dstComps))
	}
	src.checkRegion(srcRegion, srcComps)
	f.checkRegion(dstRegion, dstComps)
	shift := srcRegion.Lo().Sub(dstRegion.Lo())
	for i := 0; i < srcComps.Size(); i++ {
		sc, dc := srcComps.Begin+i, dstComps.Begin+i
		dstRegion.ForEachRow(func(start geom.IntVect, n int) {
			d := f.offset(start, dc)
			s := src.offset(start.Add(shift), sc)
			copy(f.data[d:d+n], src.data[s:s+n])
		})
	}
}

// Size returns the number of bytes LinearOut writes for region and comps.
func (f *FArrayBox) Size(region geom.Box, comps geom.Interval) int {
	return region.NumPts() * comps.Size() * 8
}

// LinearOut serializes region and comps into buf as little-endian float64
// values, component slowest.
func (f *FArrayBox) LinearOut(buf []byte, region geom.Box, comps geom.Interval) {
	f.checkRegion(region, comps)
	at := 0
	for c := comps.Begin; c <= comps.End; c++ {
		region.ForEachRow(func(start geom.IntVect, n int) {
			off := f.offset(start, c)
			for _, v := range f.data[off : off+n] {
				order.PutUint64(buf[at:], math.Float64bits(v))
				at += 8
			}
		})
	}
}

// LinearIn is the inverse of LinearOut.
func (f *FArrayBox) LinearIn(buf []byte, region geom.Box, comps geom.Interval) {
	f.checkRegion(region, comps)
	at := 0
	for c := comps.Begin; c <= comps.End; c++ {
		region.ForEachRow(func(start geom.IntVect, n int) {
			off := f.offset(start, c)
			row := f.data[off : off+n]
			for i := range row {
				row[i] = math.Float64frombits(order.Uint64(buf[at:]))
				at += 8
			}
		})
	}
}

// ThreadSafe reports that writes to disjoint regions may run concurrently.
func (f *FArrayBox) ThreadSafe() bool { return true }

func (f *FArrayBox) String() string {
	return fmt.Sprintf("fab{%s x %d}", f.box, f.ncomp)
}
