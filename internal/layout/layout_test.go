package layout

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/boxmotion/internal/geom"
)

func box2(lx, ly, hx, hy int) geom.Box {
	return geom.NewBox([]int{lx, ly}, []int{hx, hy})
}

// recoverErr runs fn and returns the error it panicked with, or nil.
func recoverErr(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				e = fmt.Errorf("%v", r)
			}
			err = e
		}
	}()
	fn()
	return nil
}

func TestBuilder_CloseSortsAndIndexes(t *testing.T) {
	// --- Arrange ---
	b := NewBuilder(2).
		Add(box2(4, 0, 7, 3), 1).
		Add(box2(0, 4, 3, 7), 0).
		Add(box2(0, 0, 3, 3), 1).
		Add(box2(4, 4, 7, 7), 0)

	// --- Act ---
	l := b.Close()

	// --- Assert ---
	require.True(t, l.IsClosed())
	assert.True(t, l.IsDisjoint())
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, 2, l.NumProcs())
	assert.Equal(t, []geom.Box{
		box2(0, 0, 3, 3), box2(0, 4, 3, 7), box2(4, 0, 7, 3), box2(4, 4, 7, 7),
	}, l.Boxes())
	assert.Equal(t, []int{1, 0, 1, 0}, []int{l.ProcAt(0), l.ProcAt(1), l.ProcAt(2), l.ProcAt(3)})

	local0 := l.DataIndices(0)
	require.Len(t, local0, 2)
	assert.Equal(t, 1, local0[0].Pos())
	assert.Equal(t, 0, local0[0].Local())
	assert.Equal(t, 3, local0[1].Pos())
	assert.Equal(t, 1, local0[1].Local())

	di, ok := l.Local(1, l.IndexAt(2))
	require.True(t, ok)
	assert.Equal(t, 1, di.Local())
	_, ok = l.Local(0, l.IndexAt(2))
	assert.False(t, ok)

	assert.Nil(t, l.DataIndices(7))
	assert.Equal(t, 0, l.NumLocal(7))
}

func TestBuilder_OverlapIsFatal(t *testing.T) {
	b := NewBuilder(2).
		Add(box2(0, 0, 3, 3), 0).
		Add(box2(3, 3, 5, 5), 1)

	err := recoverErr(func() { b.Close() })

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverlap), "unexpected error: %v", err)

	overlapping := b.CloseOverlapping()
	assert.True(t, overlapping.IsClosed())
	assert.False(t, overlapping.IsDisjoint())
}

func TestBuilder_InvalidInput(t *testing.T) {
	testCases := []struct {
		name   string
		fn     func()
		target error
	}{
		{
			name:   "dimension mismatch",
			fn:     func() { NewBuilder(2).Add(geom.NewBox([]int{0}, []int{3}), 0) },
			target: ErrDimension,
		},
		{
			name:   "negative rank",
			fn:     func() { NewBuilder(1).Add(geom.NewBox([]int{0}, []int{3}), -1) },
			target: ErrBadProc,
		},
		{
			name:   "undefined layout",
			fn:     func() { (*Layout)(nil).MustBeClosed("test") },
			target: ErrNotClosed,
		},
		{
			name: "index from another layout",
			fn: func() {
				a := New([]geom.Box{geom.NewBox([]int{0}, []int{3})}, []int{0})
				b := New([]geom.Box{geom.NewBox([]int{0}, []int{3})}, []int{0})
				a.Box(b.IndexAt(0))
			},
			target: ErrForeignIndex,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := recoverErr(tc.fn)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
		})
	}
}

func TestNewTiled(t *testing.T) {
	region := box2(0, 0, 9, 7)

	l := NewTiled(region, geom.IV(4, 4), 3)

	// 3 tiles along x (4, 4, 2 cells) and 2 along y.
	require.Equal(t, 6, l.Len())
	total := 0
	for _, b := range l.Boxes() {
		assert.True(t, region.Contains(b))
		total += b.NumPts()
	}
	assert.Equal(t, region.NumPts(), total)
	assert.Equal(t, 3, l.NumProcs())
	for r := 0; r < 3; r++ {
		assert.Equal(t, 2, l.NumLocal(r))
	}
}

func TestLayout_IntersectingMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := NewTiled(box2(0, 0, 63, 63), geom.IV(5, 7), 4)

	for trial := 0; trial < 200; trial++ {
		lx, ly := rng.Intn(70)-3, rng.Intn(70)-3
		q := box2(lx, ly, lx+rng.Intn(12), ly+rng.Intn(12))

		var brute []Index
		for idx, b := range l.All() {
			if b.Intersects(q) {
				brute = append(brute, idx)
			}
		}

		assert.Equal(t, brute, l.Intersecting(q), "query %s", q)
	}
}

func TestLayout_ProcOf(t *testing.T) {
	l := New(
		[]geom.Box{box2(0, 0, 3, 3), box2(4, 0, 7, 3)},
		[]int{0, 1},
	)

	assert.Equal(t, 0, l.ProcOf(box2(1, 1, 2, 2)))
	assert.Equal(t, 1, l.ProcOf(box2(4, 0, 4, 0)))
	assert.Equal(t, -1, l.ProcOf(box2(3, 0, 4, 0)), "region straddling two boxes has no single owner")
	assert.Equal(t, -1, l.ProcOf(box2(9, 9, 9, 9)))
}

func TestLayout_CoarsenRefine(t *testing.T) {
	l := NewTiled(box2(0, 0, 15, 15), geom.IV(8, 4), 2)

	require.True(t, l.CoarsenableBy(4))
	assert.False(t, l.CoarsenableBy(8))

	c := l.Coarsen(4)
	assert.False(t, c.SameAs(l))
	assert.Equal(t, l.Len(), c.Len())
	for i := 0; i < l.Len(); i++ {
		assert.True(t, l.BoxAt(i).Coarsen(4).Equal(c.BoxAt(i)))
		assert.Equal(t, l.ProcAt(i), c.ProcAt(i))
	}

	r := c.Refine(4)
	assert.True(t, r.Compatible(l))
	assert.False(t, r.SameAs(l))

	err := recoverErr(func() { l.Coarsen(8) })
	assert.ErrorIs(t, err, ErrNotCoarsenable)
}

func TestLayout_Neighbors(t *testing.T) {
	t.Run("periodic wrap in 1-d", func(t *testing.T) {
		domain := geom.NewProblemDomain(geom.NewBox([]int{0}, []int{7}), true)
		l := New(
			[]geom.Box{geom.NewBox([]int{0}, []int{3}), geom.NewBox([]int{4}, []int{7})},
			[]int{0, 1},
		)

		nbrs := l.Neighbors(l.IndexAt(0), geom.IV(1), domain)

		require.Len(t, nbrs, 2)
		assert.Equal(t, 1, nbrs[0].Index.Pos())
		assert.True(t, nbrs[0].Shift.IsZero())
		assert.True(t, nbrs[0].Overlap.Equal(geom.NewBox([]int{4}, []int{4})))
		assert.Equal(t, 1, nbrs[1].Index.Pos())
		assert.Equal(t, geom.IV(-8), nbrs[1].Shift)
		assert.True(t, nbrs[1].Overlap.Equal(geom.NewBox([]int{-1}, []int{-1})))
	})

	t.Run("single box sees itself through the periodic boundary", func(t *testing.T) {
		domain := geom.NewProblemDomain(geom.NewBox([]int{0}, []int{7}), true)
		l := New([]geom.Box{geom.NewBox([]int{0}, []int{7})}, []int{0})

		nbrs := l.Neighbors(l.IndexAt(0), geom.IV(1), domain)

		require.Len(t, nbrs, 2)
		assert.Equal(t, geom.IV(-8), nbrs[0].Shift)
		assert.Equal(t, geom.IV(8), nbrs[1].Shift)
	})
}
