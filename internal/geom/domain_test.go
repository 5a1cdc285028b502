package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProblemDomain_Images(t *testing.T) {
	testCases := []struct {
		name     string
		domain   *ProblemDomain
		reach    IntVect
		expected []IntVect
	}{
		{
			name:     "nil domain has only the identity",
			domain:   nil,
			reach:    IV(3),
			expected: []IntVect{{}},
		},
		{
			name:     "one periodic direction within one period",
			domain:   NewProblemDomain(NewBox([]int{0}, []int{7}), true),
			reach:    IV(1),
			expected: []IntVect{IV(0), IV(-8), IV(8)},
		},
		{
			name:     "reach beyond one period needs two images per side",
			domain:   NewProblemDomain(NewBox([]int{0}, []int{3}), true),
			reach:    IV(5),
			expected: []IntVect{IV(0), IV(-8), IV(-4), IV(4), IV(8)},
		},
		{
			name:   "mixed periodicity in 2-d",
			domain: NewProblemDomain(NewBox([]int{0, 0}, []int{7, 3}), true, false),
			reach:  IV(1, 1),
			expected: []IntVect{
				IV(0, 0), IV(-8, 0), IV(8, 0),
			},
		},
		{
			name:   "fully periodic 2-d",
			domain: NewProblemDomain(NewBox([]int{0, 0}, []int{3, 3}), true, true),
			reach:  IV(1, 1),
			expected: []IntVect{
				IV(0, 0),
				IV(-4, -4), IV(-4, 0), IV(-4, 4),
				IV(0, -4), IV(0, 4),
				IV(4, -4), IV(4, 0), IV(4, 4),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.domain.Images(tc.reach))
		})
	}
}

func TestProblemDomain_Canonical(t *testing.T) {
	pd := NewProblemDomain(NewBox([]int{0, 0}, []int{7, 7}), true, false)

	p, ok := pd.Canonical(IV(-1, 3))
	assert.True(t, ok)
	assert.Equal(t, IV(7, 3), p)

	p, ok = pd.Canonical(IV(8, 0))
	assert.True(t, ok)
	assert.Equal(t, IV(0, 0), p)

	_, ok = pd.Canonical(IV(0, 8))
	assert.False(t, ok)
}

func TestInterval(t *testing.T) {
	assert.Equal(t, 3, Comps(3).Size())
	assert.Equal(t, Interval{Begin: 2, End: 4}, CompRange(2, 3))
	assert.True(t, CompRange(1, 2).Within(3))
	assert.False(t, CompRange(2, 2).Within(3))
	assert.Equal(t, 0, Interval{Begin: 1, End: 0}.Size())
}
