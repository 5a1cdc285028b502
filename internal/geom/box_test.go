package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_Basics(t *testing.T) {
	b := NewBox([]int{0, 2}, []int{3, 5})

	assert.Equal(t, 2, b.Dim())
	assert.Equal(t, 16, b.NumPts())
	assert.Equal(t, IV(4, 4), b.Shape())
	assert.False(t, b.IsEmpty())
	assert.True(t, Box{}.IsEmpty())
	assert.True(t, EmptyBox(2).IsEmpty())
	assert.Equal(t, "[(0,2)..(3,5)]", b.String())
}

func TestBox_Intersect(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     Box
		expected Box
	}{
		{
			name:     "overlapping",
			a:        NewBox([]int{0, 0}, []int{3, 3}),
			b:        NewBox([]int{2, 1}, []int{5, 2}),
			expected: NewBox([]int{2, 1}, []int{3, 2}),
		},
		{
			name:     "touching corners share one cell",
			a:        NewBox([]int{0, 0}, []int{3, 3}),
			b:        NewBox([]int{3, 3}, []int{4, 4}),
			expected: NewBox([]int{3, 3}, []int{3, 3}),
		},
		{
			name:     "adjacent but disjoint",
			a:        NewBox([]int{0, 0}, []int{3, 3}),
			b:        NewBox([]int{4, 0}, []int{7, 3}),
			expected: EmptyBox(2),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.a.Intersect(tc.b)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
			assert.Equal(t, !tc.expected.IsEmpty(), tc.a.Intersects(tc.b))
		})
	}
}

func TestBox_GrowShiftContains(t *testing.T) {
	b := NewBox([]int{0, 0}, []int{3, 3})

	g := b.Grow(IV(1, 2))
	assert.Equal(t, IV(-1, -2), g.Lo())
	assert.Equal(t, IV(4, 5), g.Hi())
	assert.True(t, g.Contains(b))
	assert.False(t, b.Contains(g))
	assert.True(t, b.Contains(EmptyBox(2)))

	s := b.Shift(IV(8, -1))
	assert.Equal(t, IV(8, -1), s.Lo())
	assert.Equal(t, IV(11, 2), s.Hi())
	assert.True(t, s.SameShape(b))
}

func TestBox_CoarsenRefine(t *testing.T) {
	t.Run("round trip on aligned box", func(t *testing.T) {
		b := NewBox([]int{-4, 8}, []int{3, 15})
		require.True(t, b.CoarsenableBy(2))
		c := b.Coarsen(2)
		assert.Equal(t, IV(-2, 4), c.Lo())
		assert.Equal(t, IV(1, 7), c.Hi())
		assert.True(t, c.Refine(2).Equal(b))
	})

	t.Run("negative corners round toward negative infinity", func(t *testing.T) {
		b := NewBox([]int{-3}, []int{-1})
		c := b.Coarsen(2)
		assert.Equal(t, -2, c.Lo()[0])
		assert.Equal(t, -1, c.Hi()[0])
		assert.False(t, b.CoarsenableBy(2))
	})
}

func TestBox_Subtract(t *testing.T) {
	b := NewBox([]int{0, 0}, []int{5, 5})
	hole := NewBox([]int{2, 2}, []int{3, 3})

	pieces := b.Subtract(hole)

	total := 0
	for i, p := range pieces {
		assert.False(t, p.Intersects(hole), "piece %s overlaps the hole", p)
		for j := i + 1; j < len(pieces); j++ {
			assert.False(t, p.Intersects(pieces[j]), "pieces %s and %s overlap", p, pieces[j])
		}
		total += p.NumPts()
	}
	assert.Equal(t, b.NumPts()-hole.NumPts(), total)

	assert.Equal(t, []Box{b}, b.Subtract(NewBox([]int{9, 9}, []int{10, 10})))
	assert.Empty(t, hole.Subtract(b))
}

func TestBox_Halo(t *testing.T) {
	b := NewBox([]int{0, 0}, []int{3, 3})
	g := IV(1, 2)

	slabs := b.Halo(g)
	require.Len(t, slabs, 4)

	covered := map[IntVect]int{}
	for _, s := range slabs {
		s.ForEach(func(p IntVect) { covered[p]++ })
	}
	grown := b.Grow(g)
	assert.Len(t, covered, grown.NumPts()-b.NumPts())
	for p, n := range covered {
		assert.Equal(t, 1, n, "cell %v covered %d times", p, n)
		assert.False(t, b.ContainsPoint(p))
		assert.True(t, grown.ContainsPoint(p))
	}

	assert.Empty(t, b.Halo(IntVect{}))
}

func TestBox_ForEachRow(t *testing.T) {
	b := NewBox([]int{1, 0, 5}, []int{3, 1, 6})

	var starts []IntVect
	b.ForEachRow(func(start IntVect, n int) {
		assert.Equal(t, 3, n)
		starts = append(starts, start)
	})

	assert.Equal(t, []IntVect{
		IV(1, 0, 5), IV(1, 1, 5), IV(1, 0, 6), IV(1, 1, 6),
	}, starts)
}

func TestBox_Compare(t *testing.T) {
	a := NewBox([]int{0, 4}, []int{3, 7})
	b := NewBox([]int{0, 8}, []int{3, 9})
	c := NewBox([]int{1, 0}, []int{2, 2})

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.Equal(t, 0, a.Compare(a))
}
