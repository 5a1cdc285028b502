package geom

import "fmt"

// Interval is an inclusive range of component indices [Begin, End].
type Interval struct {
	Begin, End int
}

// Comps returns the interval covering components [0, n).
func Comps(n int) Interval {
	return Interval{Begin: 0, End: n - 1}
}

// CompRange returns the interval of n components starting at begin.
func CompRange(begin, n int) Interval {
	return Interval{Begin: begin, End: begin + n - 1}
}

// Size returns the number of components in the interval.
func (iv Interval) Size() int {
	if iv.End < iv.Begin {
		return 0
	}
	return iv.End - iv.Begin + 1
}

// Within reports whether the interval lies inside [0, ncomp).
func (iv Interval) Within(ncomp int) bool {
	return iv.Begin >= 0 && iv.End < ncomp && iv.Size() > 0
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d,%d]", iv.Begin, iv.End)
}
