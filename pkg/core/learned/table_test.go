package learned

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurogeo/pkg/common"
)

func TestBucketSpillsPastInlineSize(t *testing.T) {
	var b bucket[float64]
	for i := 0; i < inlineBucketSize; i++ {
		b.insertSorted(common.NewPoint(i, float64(10-i), 0), common.AxisX)
	}
	assert.False(t, b.spilled())
	assert.Equal(t, inlineBucketSize, b.len())

	b.insertSorted(common.NewPoint(99, 0.0, 0.0), common.AxisX)
	require.True(t, b.spilled())
	assert.Equal(t, inlineBucketSize+1, b.len())

	xs := common.ExtractX(b.items())
	assert.Equal(t, []float64{0, 5, 6, 7, 8, 9, 10}, xs)
}

func TestBucketSwapRemove(t *testing.T) {
	var b bucket[float64]
	for i := 0; i < 3; i++ {
		b.insert(i, common.NewPoint(i, float64(i), 0))
	}

	p := b.swapRemove(0)
	assert.Equal(t, 0, p.ID)
	assert.Equal(t, 2, b.len())
	assert.Equal(t, 2, b.items()[0].ID)
}

func TestTableRehashClampsOutlyingHashes(t *testing.T) {
	tbl := newTable[float64](2)
	tbl.bucketAt(0).insert(0, common.NewPoint(1, 1.0, 0.0))
	tbl.bucketAt(1).insert(0, common.NewPoint(2, 9.0, 0.0))

	tbl.rehash(4, func(p common.Point[float64]) int { return int(p.X) }, common.AxisX)
	assert.Equal(t, 4, tbl.capacity())
	assert.Equal(t, 2, tbl.occupied())
	assert.Equal(t, 3, tbl.slot(9))
	assert.Equal(t, 2, tbl.bucketAt(3).items()[0].ID)
	assert.Same(t, tbl.bucketAt(3), tbl.bucketAt(1<<20))

	removed, ok := tbl.removeEntry(9, common.NewPoint(-1, 9.0, 0.0))
	require.True(t, ok)
	assert.Equal(t, 2, removed.ID)
	assert.Equal(t, 1, tbl.occupied())
}
