package core

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurogeo/pkg/common"
	"neurogeo/pkg/config"
	"neurogeo/pkg/model"
	"neurogeo/pkg/query"
	"neurogeo/pkg/storage"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Storage.Path = t.TempDir()
	cfg.Index.RetrainThreshold = 0
	return cfg
}

func openStore(t *testing.T, cfg *config.Config) *SpatialStore {
	t.Helper()
	s, err := NewSpatialStore(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func randomPoints(n int, seed int64) []Point {
	rng := rand.New(rand.NewSource(seed))
	ps := make([]Point, n)
	for i := range ps {
		ps[i] = common.NewPoint(1000+i, rng.Float64()*100, rng.Float64()*100)
	}
	return ps
}

func TestStoreInsertGetRemove(t *testing.T) {
	s := openStore(t, testConfig(t))

	_, replaced, err := s.Insert(common.NewPoint(7, 1.5, 2.5))
	require.NoError(t, err)
	assert.False(t, replaced)

	old, replaced, err := s.Insert(common.NewPoint(8, 1.5, 2.5))
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, 7, old.ID)

	p, ok := s.Get(1.5, 2.5)
	require.True(t, ok)
	assert.Equal(t, 8, p.ID)
	_, ok = s.Get(2.5, 1.5)
	assert.False(t, ok)

	removed, ok, err := s.Remove(1.5, 2.5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 8, removed.ID)
	assert.Equal(t, 0, s.Len())

	_, ok, err = s.Remove(1.5, 2.5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreBatchQueries(t *testing.T) {
	s := openStore(t, testConfig(t))
	ps := randomPoints(500, 1)
	require.NoError(t, s.BatchInsert(ps))
	assert.Equal(t, 500, s.Len())

	// caller IDs survive training
	p, ok := s.Get(ps[10].X, ps[10].Y)
	require.True(t, ok)
	assert.Equal(t, 1010, p.ID)

	var want []Point
	for _, p := range ps {
		if p.X >= 20 && p.X <= 40 && p.Y >= 10 && p.Y <= 60 {
			want = append(want, p)
		}
	}
	assert.ElementsMatch(t, want, s.Range([2]float64{20, 10}, [2]float64{40, 60}))

	q := [2]float64{50, 50}
	best := ps[0]
	for _, p := range ps {
		if common.PointDistance(common.NewPoint(0, q[0], q[1]), p) < common.PointDistance(common.NewPoint(0, q[0], q[1]), best) {
			best = p
		}
	}
	nn, ok := s.Nearest(q)
	require.True(t, ok)
	assert.Equal(t, best, nn)
	// second lookup comes from the cache
	nn, ok = s.Nearest(q)
	require.True(t, ok)
	assert.Equal(t, best, nn)
	assert.Equal(t, 1, s.Stats()["cached_nearest"])

	knn := s.KNearest(q, 5)
	require.Len(t, knn, 5)
	assert.Equal(t, best, knn[0])

	for _, p := range s.Radius(q, 10) {
		assert.LessOrEqual(t, common.Euclidean(q[0], q[1], p.X, p.Y), 10.0)
	}

	assert.ErrorIs(t, s.BatchInsert(nil), model.ErrEmptyInput)
}

func TestStoreWriteInvalidatesNearestCache(t *testing.T) {
	s := openStore(t, testConfig(t))
	require.NoError(t, s.BatchInsert([]Point{{ID: 1, X: 0, Y: 0}, {ID: 2, X: 10, Y: 10}}))

	nn, ok := s.Nearest([2]float64{4, 4})
	require.True(t, ok)
	assert.Equal(t, 1, nn.ID)

	_, _, err := s.Insert(Point{ID: 3, X: 4, Y: 5})
	require.NoError(t, err)
	nn, ok = s.Nearest([2]float64{4, 4})
	require.True(t, ok)
	assert.Equal(t, 3, nn.ID)
}

func TestStoreRecoversAfterRestart(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewSpatialStore(cfg)
	require.NoError(t, err)

	ps := randomPoints(200, 2)
	require.NoError(t, s.BatchInsert(ps))
	_, _, err = s.Insert(common.NewPoint(1, 500.0, 500.0))
	require.NoError(t, err)
	_, ok, err := s.Remove(ps[0].X, ps[0].Y)
	require.NoError(t, err)
	require.True(t, ok)
	s.Close()

	_, _, err = s.Insert(common.NewPoint(2, 1.0, 1.0))
	assert.ErrorIs(t, err, ErrClosed)

	reopened := openStore(t, cfg)
	assert.Equal(t, 200, reopened.Len())
	_, ok = reopened.Get(ps[0].X, ps[0].Y)
	assert.False(t, ok)
	p, ok := reopened.Get(500, 500)
	require.True(t, ok)
	assert.Equal(t, 1, p.ID)
	p, ok = reopened.Get(ps[5].X, ps[5].Y)
	require.True(t, ok)
	assert.Equal(t, ps[5].ID, p.ID)
}

func TestStoreReplaysWALTail(t *testing.T) {
	cfg := testConfig(t)

	// a log left behind by a process that never checkpointed
	wal, err := storage.OpenWAL(filepath.Join(cfg.Storage.Path, "points.wal"))
	require.NoError(t, err)
	require.NoError(t, wal.Append(storage.OpInsert, Point{ID: 1, X: 1, Y: 1}))
	require.NoError(t, wal.Append(storage.OpInsert, Point{ID: 2, X: 2, Y: 5}))
	require.NoError(t, wal.Append(storage.OpInsert, Point{ID: 3, X: 3, Y: 2}))
	require.NoError(t, wal.Append(storage.OpRemove, Point{ID: 2, X: 2, Y: 5}))
	require.NoError(t, wal.Close())

	s := openStore(t, cfg)
	assert.Equal(t, 2, s.Len())
	_, ok := s.Get(2, 5)
	assert.False(t, ok)

	assert.Equal(t, "0 B", s.Stats()["wal_size"])
}

func TestStoreAutoRetrain(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.RetrainThreshold = 50
	s := openStore(t, cfg)

	for _, p := range randomPoints(49, 3) {
		_, _, err := s.Insert(p)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, s.Stats()["occupied"])

	_, _, err := s.Insert(common.NewPoint(0, 99.0, 99.0))
	require.NoError(t, err)
	assert.Greater(t, s.Stats()["occupied"].(int), 1)
}

func TestStoreExecute(t *testing.T) {
	s := openStore(t, testConfig(t))
	require.NoError(t, s.BatchInsert([]Point{
		{ID: 1, X: 1, Y: 1}, {ID: 2, X: 3, Y: 1}, {ID: 3, X: 2, Y: 1}, {ID: 4, X: 3, Y: 2}, {ID: 5, X: 5, Y: 1},
	}))

	run := func(q string) []Point {
		stmt, err := query.Parse(q)
		require.NoError(t, err)
		ps, err := s.Execute(stmt)
		require.NoError(t, err)
		return ps
	}

	assert.Len(t, run("SELECT * FROM points"), 5)
	assert.Len(t, run("SELECT * FROM points WHERE id > 2 LIMIT 2"), 2)
	assert.Equal(t, []Point{{ID: 4, X: 3, Y: 2}}, run("SELECT * FROM points WHERE x = 3 AND y = 2"))
	assert.Empty(t, run("SELECT * FROM points WHERE x = 50 AND y = 10"))
	assert.Len(t, run("SELECT * FROM points WHERE WITHIN(3.5, 3, 1, 1)"), 4)
	assert.Len(t, run("SELECT * FROM points WHERE DISTANCE(3, 1) <= 1"), 3)
	assert.Equal(t, 1, run("SELECT * FROM points NEAREST(0, 0)")[0].ID)
	assert.Len(t, run("SELECT * FROM points NEAREST(0, 0) LIMIT 3"), 3)

	_, err := s.ExecuteString("SELECT * FROM nowhere")
	assert.Error(t, err)
}

func TestStoreResetAndRetrain(t *testing.T) {
	s := openStore(t, testConfig(t))
	assert.ErrorIs(t, s.Retrain(), model.ErrEmptyInput)

	require.NoError(t, s.BatchInsert(randomPoints(100, 4)))
	require.NoError(t, s.Retrain())
	require.NoError(t, s.Checkpoint())
	assert.NotEmpty(t, s.ExportDiagnostics())

	res, err := s.BenchmarkAlgo(100)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Points)
	assert.Greater(t, res.LearnedGetNs, 0.0)

	require.NoError(t, s.Reset())
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Points())
	_, err = s.BenchmarkAlgo(10)
	assert.Error(t, err)
}
