package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolling_EmptyMeanFallsBackToLatest(t *testing.T) {
	t.Parallel()

	w := New(DefaultSize)
	assert.Equal(t, 0, w.Len())
	assert.InDelta(t, 0.0, w.Mean(), 0)
}

func TestRolling_Mean(t *testing.T) {
	t.Parallel()

	w := New(DefaultSize)
	for _, v := range []int{-3, 40, 5, 6} {
		w.Push(v)
	}
	assert.InDelta(t, 12.0, w.Mean(), 1e-9)
	assert.Equal(t, 6, w.Latest())
	assert.Equal(t, []int{-3, 40, 5, 6}, w.Values())
}

func TestRolling_NeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	w := New(DefaultSize)
	for i := range 500 {
		w.Push(i)
		assert.LessOrEqual(t, w.Len(), DefaultSize)
	}
	assert.Equal(t, DefaultSize, w.Len())
	assert.Equal(t, 380, w.Values()[0])
	assert.Equal(t, 499, w.Values()[DefaultSize-1])
}

func TestRolling_EvictsOldestFirst(t *testing.T) {
	t.Parallel()

	w := New(DefaultSize)
	w.Push(1000)
	for range DefaultSize {
		w.Push(5)
	}
	assert.Equal(t, DefaultSize, w.Len())
	assert.InDelta(t, 5.0, w.Mean(), 1e-9, "first value should no longer be represented")
}

func TestRolling_121FivesThenDistinct(t *testing.T) {
	t.Parallel()

	w := New(DefaultSize)
	for range 121 {
		w.Push(5)
	}
	w.Push(125)

	assert.Equal(t, DefaultSize, w.Len())
	assert.InDelta(t, (119*5.0+125)/120, w.Mean(), 1e-9)
}

func TestRolling_SmallWindow(t *testing.T) {
	t.Parallel()

	w := New(3)
	for _, v := range []int{1, 2, 3, 4, 5} {
		w.Push(v)
	}
	assert.Equal(t, []int{3, 4, 5}, w.Values())
	assert.InDelta(t, 4.0, w.Mean(), 1e-9)
	assert.Equal(t, 3, w.Cap())
}

func TestNew_NonPositiveSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultSize, New(0).Cap())
	assert.Equal(t, DefaultSize, New(-1).Cap())
}
