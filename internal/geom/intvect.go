// Package geom holds the integer geometry the data-motion engine is built on:
// points, boxes, component intervals and periodic problem domains.
package geom

import (
	"fmt"
	"strings"
)

// MaxDim is the largest supported spatial dimension.
const MaxDim = 3

// IntVect is an integer point or offset. Only the first Dim() entries of the
// owning box are meaningful; the rest are kept at zero.
type IntVect [MaxDim]int

// IV builds an IntVect from up to MaxDim components.
func IV(v ...int) IntVect {
	if len(v) > MaxDim {
		panic(fmt.Sprintf("geom: %d components exceed MaxDim %d", len(v), MaxDim))
	}
	var iv IntVect
	copy(iv[:], v)
	return iv
}

// Uniform returns an IntVect with every component set to n.
func Uniform(n int) IntVect {
	var iv IntVect
	for i := range iv {
		iv[i] = n
	}
	return iv
}

func (v IntVect) Add(o IntVect) IntVect {
	for i := range v {
		v[i] += o[i]
	}
	return v
}

func (v IntVect) Sub(o IntVect) IntVect {
	for i := range v {
		v[i] -= o[i]
	}
	return v
}

func (v IntVect) Neg() IntVect {
	for i := range v {
		v[i] = -v[i]
	}
	return v
}

// Scale multiplies every component by k.
func (v IntVect) Scale(k int) IntVect {
	for i := range v {
		v[i] *= k
	}
	return v
}

// IsZero reports whether every component is zero.
func (v IntVect) IsZero() bool {
	return v == IntVect{}
}

// Max returns the largest component among the first dim entries.
func (v IntVect) Max(dim int) int {
	m := v[0]
	for i := 1; i < dim; i++ {
		if v[i] > m {
			m = v[i]
		}
	}
	return m
}

// Min returns the smallest component among the first dim entries.
func (v IntVect) Min(dim int) int {
	m := v[0]
	for i := 1; i < dim; i++ {
		if v[i] < m {
			m = v[i]
		}
	}
	return m
}

// Abs returns the component-wise absolute value.
func (v IntVect) Abs() IntVect {
	for i := range v {
		if v[i] < 0 {
			v[i] = -v[i]
		}
	}
	return v
}

// Compare orders two points lexicographically, direction 0 first, over the
// first dim entries.
func (v IntVect) Compare(o IntVect, dim int) int {
	for i := 0; i < dim; i++ {
		switch {
		case v[i] < o[i]:
			return -1
		case v[i] > o[i]:
			return 1
		}
	}
	return 0
}

// Format renders the first dim components as "(a,b,c)".
func (v IntVect) Format(dim int) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i := 0; i < dim; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", v[i])
	}
	sb.WriteByte(')')
	return sb.String()
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
