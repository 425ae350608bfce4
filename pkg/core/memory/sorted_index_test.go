package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedIndexPutGetDelete(t *testing.T) {
	si := NewSortedIndex(4)
	_, replaced := si.Put(Point{ID: 1, X: 1, Y: 2})
	assert.False(t, replaced)

	old, replaced := si.Put(Point{ID: 2, X: 1, Y: 2})
	require.True(t, replaced)
	assert.Equal(t, 1, old.ID)
	assert.Equal(t, 1, si.Count())

	p, ok := si.Get(1, 2)
	require.True(t, ok)
	assert.Equal(t, 2, p.ID)

	_, ok = si.Delete(1, 2)
	assert.True(t, ok)
	_, ok = si.Get(1, 2)
	assert.False(t, ok)
}

func TestSortedIndexRangeAndNearest(t *testing.T) {
	si := NewSortedIndex(8)
	for i := 0; i < 10; i++ {
		si.Put(Point{ID: i, X: float64(i), Y: float64(i % 3)})
	}

	got := si.Range([2]float64{2, 1}, [2]float64{6, 2})
	var ids []int
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int{2, 4, 5}, ids)

	nn, ok := si.Nearest([2]float64{7.2, 1.1})
	require.True(t, ok)
	assert.Equal(t, 7, nn.ID)

	n := 0
	si.Iterator(func(Point) bool { n++; return true })
	assert.Equal(t, 10, n)

	si.Clear()
	_, ok = si.Nearest([2]float64{0, 0})
	assert.False(t, ok)
}
