package geom

import "fmt"

// ProblemDomain is the index box of the whole computational domain together
// with the directions in which it wraps around.
type ProblemDomain struct {
	box      Box
	periodic [MaxDim]bool
}

// NewProblemDomain builds a domain. periodic lists one flag per direction;
// missing flags mean non-periodic.
func NewProblemDomain(b Box, periodic ...bool) *ProblemDomain {
	if b.IsEmpty() {
		panic("geom: empty problem domain")
	}
	if len(periodic) > b.Dim() {
		panic(fmt.Sprintf("geom: %d periodic flags for a %d-d domain", len(periodic), b.Dim()))
	}
	pd := &ProblemDomain{box: b}
	copy(pd.periodic[:], periodic)
	return pd
}

func (pd *ProblemDomain) Box() Box { return pd.box }
func (pd *ProblemDomain) Dim() int { return pd.box.Dim() }

// IsPeriodic reports whether direction d wraps.
func (pd *ProblemDomain) IsPeriodic(d int) bool {
	return pd != nil && pd.periodic[d]
}

// AnyPeriodic reports whether at least one direction wraps.
func (pd *ProblemDomain) AnyPeriodic() bool {
	if pd == nil {
		return false
	}
	for d := 0; d < pd.box.Dim(); d++ {
		if pd.periodic[d] {
			return true
		}
	}
	return false
}

// Period returns the domain length along direction d.
func (pd *ProblemDomain) Period(d int) int {
	return pd.box.Size(d)
}

// Images returns the periodic shift lattice needed to reach reach[d] cells
// beyond the domain in every periodic direction. The zero shift is always
// first; the rest follow in lexicographic order. A nil domain yields only the
// zero shift.
func (pd *ProblemDomain) Images(reach IntVect) []IntVect {
	out := []IntVect{{}}
	if !pd.AnyPeriodic() {
		return out
	}
	dim := pd.box.Dim()
	var lim IntVect
	for d := 0; d < dim; d++ {
		if !pd.periodic[d] || reach[d] <= 0 {
			continue
		}
		l := pd.Period(d)
		lim[d] = (reach[d] + l - 1) / l
	}
	var k IntVect
	for d := 0; d < dim; d++ {
		k[d] = -lim[d]
	}
	for {
		if !k.IsZero() {
			var s IntVect
			for d := 0; d < dim; d++ {
				s[d] = k[d] * pd.Period(d)
			}
			out = append(out, s)
		}
		d := dim - 1
		for ; d >= 0; d-- {
			k[d]++
			if k[d] <= lim[d] {
				break
			}
			k[d] = -lim[d]
		}
		if d < 0 {
			return out
		}
	}
}

// Canonical folds p into the domain along periodic directions. The second
// result is false when p lies outside the domain along a non-periodic
// direction.
func (pd *ProblemDomain) Canonical(p IntVect) (IntVect, bool) {
	for d := 0; d < pd.box.Dim(); d++ {
		lo, hi := pd.box.lo[d], pd.box.hi[d]
		if pd.periodic[d] {
			l := hi - lo + 1
			p[d] = lo + ((p[d]-lo)%l+l)%l
			continue
		}
		if p[d] < lo || p[d] > hi {
			return p, false
		}
	}
	return p, true
}

// Coarsen returns the domain on the index space coarser by ratio.
func (pd *ProblemDomain) Coarsen(ratio int) *ProblemDomain {
	return &ProblemDomain{box: pd.box.Coarsen(ratio), periodic: pd.periodic}
}

// Refine returns the domain on the index space finer by ratio.
func (pd *ProblemDomain) Refine(ratio int) *ProblemDomain {
	return &ProblemDomain{box: pd.box.Refine(ratio), periodic: pd.periodic}
}

func (pd *ProblemDomain) String() string {
	if pd == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s periodic=%v", pd.box, pd.periodic[:pd.box.Dim()])
}
