package core

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"neurogeo/pkg/common"
	"neurogeo/pkg/config"
	"neurogeo/pkg/core/learned"
	"neurogeo/pkg/core/structure"
	"neurogeo/pkg/model"
	"neurogeo/pkg/monitor"
	"neurogeo/pkg/storage"
)

type Point = common.Point[float64]

// Map is the learned index the store wraps. The model is picked at runtime.
type Map = learned.LearnedHashMap[float64, model.Model[float64]]

var ErrClosed = errors.New("store: closed")

// SpatialStore makes the learned map durable and safe for concurrent use.
// Every mutation is logged to the WAL first and copied to SQLite in the
// background.
type SpatialStore struct {
	mu    sync.RWMutex
	index *Map
	bloom *structure.BloomFilter
	cache *lru.Cache[[2]float64, Point]

	wal     *storage.WAL
	backend storage.Backend
	stats   *monitor.WorkloadStats

	writeCh chan storage.Record
	flushCh chan chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup

	conf       *config.Config
	sinceTrain int
	closed     bool
}

func NewSpatialStore(cfg *config.Config) (*SpatialStore, error) {
	if err := os.MkdirAll(cfg.Storage.Path, 0755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}

	backend, err := storage.NewSQLiteBackend(filepath.Join(cfg.Storage.Path, "points.db"))
	if err != nil {
		return nil, err
	}
	wal, err := storage.OpenWAL(filepath.Join(cfg.Storage.Path, "points.wal"))
	if err != nil {
		backend.Close()
		return nil, err
	}
	index, err := newIndex(cfg)
	if err != nil {
		backend.Close()
		wal.Close()
		return nil, err
	}
	cache, err := lru.New[[2]float64, Point](cfg.Index.CacheSize)
	if err != nil {
		backend.Close()
		wal.Close()
		return nil, errors.Wrap(err, "create nearest cache")
	}

	s := &SpatialStore{
		index:   index,
		bloom:   structure.NewBloomFilter(cfg.Index.BloomSize, cfg.Index.BloomFalseProb),
		cache:   cache,
		wal:     wal,
		backend: backend,
		stats:   monitor.NewWorkloadStats(),
		writeCh: make(chan storage.Record, cfg.Storage.WalBufferSize),
		flushCh: make(chan chan struct{}),
		closeCh: make(chan struct{}),
		conf:    cfg,
	}

	if err := s.recover(); err != nil {
		backend.Close()
		wal.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.backgroundPersist()

	return s, nil
}

func newIndex(cfg *config.Config) (*Map, error) {
	m, err := model.New[float64](cfg.Index.Model, cfg.Index.Segments)
	if err != nil {
		return nil, err
	}
	return learned.WithModel[float64](m), nil
}

// recover rebuilds the index from SQLite plus the WAL tail, then writes the
// merged state back and empties the WAL.
func (s *SpatialStore) recover() error {
	log.Println("[NeuroGeo] Loading points from SQLite...")
	persisted, err := s.backend.LoadAll()
	if err != nil {
		return err
	}

	state := make(map[[2]float64]Point, len(persisted))
	for _, p := range persisted {
		state[[2]float64{p.X, p.Y}] = p
	}

	log.Println("[WAL] Replaying log...")
	it, err := s.wal.NewIterator()
	if err != nil {
		return err
	}
	replayed := 0
	for {
		rec, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("[WAL] Stopping replay after %d records: %v", replayed, err)
			break
		}
		key := [2]float64{rec.Point.X, rec.Point.Y}
		switch rec.Op {
		case storage.OpInsert:
			state[key] = rec.Point
		case storage.OpRemove:
			delete(state, key)
		}
		replayed++
	}
	it.Close()

	ps := make([]Point, 0, len(state))
	for _, p := range state {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})

	if len(ps) > 0 {
		if err := s.index.Train(append([]Point(nil), ps...)); err != nil {
			log.Printf("[Store] Training on recovered points failed, inserting untrained: %v", err)
		}
		for _, p := range ps {
			s.index.Insert(p)
			s.bloom.Add(p.X, p.Y)
		}
	}

	if replayed > 0 {
		if err := s.backend.Truncate(); err != nil {
			return err
		}
		if err := s.backend.BatchWrite(ps); err != nil {
			return err
		}
		if err := s.wal.Truncate(); err != nil {
			return err
		}
	}

	s.stats.SetShape(s.index.Len(), s.index.Capacity())
	log.Printf("[NeuroGeo] Recovered %d points (%d from WAL).", len(ps), replayed)
	return nil
}

func (s *SpatialStore) backgroundPersist() {
	defer s.wg.Done()
	batchSize := s.conf.Storage.WalBatchSize
	buffer := make([]storage.Record, 0, batchSize)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		if err := s.backend.Apply(buffer); err != nil {
			log.Printf("[Store] Batch write error: %v", err)
		}
		buffer = buffer[:0]
	}
	drain := func() {
		for {
			select {
			case rec := <-s.writeCh:
				buffer = append(buffer, rec)
			default:
				return
			}
		}
	}

	for {
		select {
		case rec := <-s.writeCh:
			buffer = append(buffer, rec)
			if len(buffer) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case done := <-s.flushCh:
			drain()
			flush()
			close(done)
		case <-s.closeCh:
			drain()
			flush()
			return
		}
	}
}

// sync blocks until every queued record reached SQLite. Callers hold mu.
func (s *SpatialStore) sync() {
	done := make(chan struct{})
	s.flushCh <- done
	<-done
}

// logMutation must be called with mu held.
func (s *SpatialStore) logMutation(op storage.Op, p Point) error {
	if err := s.wal.Append(op, p); err != nil {
		return err
	}
	s.writeCh <- storage.Record{Op: op, Point: p, Timestamp: time.Now().UnixNano()}
	return nil
}

// Insert stores p, replacing any point at the same coordinates.
func (s *SpatialStore) Insert(p Point) (Point, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Point{}, false, ErrClosed
	}

	if err := s.logMutation(storage.OpInsert, p); err != nil {
		return Point{}, false, err
	}
	old, replaced := s.index.Insert(p)
	s.bloom.Add(p.X, p.Y)
	s.cache.Purge()
	s.stats.RecordWrite()

	s.sinceTrain++
	if t := s.conf.Index.RetrainThreshold; t > 0 && s.sinceTrain >= t {
		s.retrainLocked()
	}
	s.stats.SetShape(s.index.Len(), s.index.Capacity())
	return old, replaced, nil
}

// BatchInsert trains the model on ps and stores them. Unlike the bare map
// it keeps the callers' IDs.
func (s *SpatialStore) BatchInsert(ps []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(ps) == 0 {
		return model.ErrEmptyInput
	}

	// A non-monotonic fit has already replaced the model, so the batch still
	// goes in and the error is reported afterwards.
	trainErr := s.index.Train(append([]Point(nil), ps...))
	if trainErr != nil && !errors.Is(trainErr, model.ErrNotMonotonic) {
		return errors.Wrap(trainErr, "train batch")
	}
	s.stats.RecordRetrain()
	s.sinceTrain = 0

	for _, p := range ps {
		if err := s.logMutation(storage.OpInsert, p); err != nil {
			return err
		}
		s.index.Insert(p)
		s.bloom.Add(p.X, p.Y)
	}
	s.cache.Purge()
	s.stats.RecordWrites(len(ps))
	s.stats.SetShape(s.index.Len(), s.index.Capacity())
	log.Printf("[Store] Batch of %d points trained on axis %s, %d buckets.", len(ps), s.index.Axis(), s.index.Capacity())
	return errors.Wrap(trainErr, "train batch")
}

func (s *SpatialStore) Get(x, y float64) (Point, bool) {
	s.stats.RecordRead()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.bloom.Contains(x, y) {
		return Point{}, false
	}
	p, ok := s.index.Get(x, y)
	if ok {
		s.stats.RecordHit()
	}
	return p, ok
}

func (s *SpatialStore) Remove(x, y float64) (Point, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Point{}, false, ErrClosed
	}

	old, ok := s.index.Get(x, y)
	if !ok {
		return Point{}, false, nil
	}
	if err := s.logMutation(storage.OpRemove, old); err != nil {
		return Point{}, false, err
	}
	s.index.Remove(old)
	s.cache.Purge()
	s.stats.RecordRemove()
	s.stats.SetShape(s.index.Len(), s.index.Capacity())
	return old, true, nil
}

// Range returns the points inside the box with corners bl and tr.
func (s *SpatialStore) Range(bl, tr [2]float64) []Point {
	defer s.track("range", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, _ := s.index.RangeSearch(bl, tr)
	return ps
}

// Radius returns the points within Euclidean distance r of c.
func (s *SpatialStore) Radius(c [2]float64, r float64) []Point {
	defer s.track("radius", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, _ := s.index.RadiusRange(c, r)
	return ps
}

func (s *SpatialStore) Nearest(q [2]float64) (Point, bool) {
	defer s.track("nearest", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.cache.Get(q); ok {
		return p, true
	}
	p, ok := s.index.NearestNeighbor(q)
	if ok {
		s.cache.Add(q, p)
	}
	return p, ok
}

func (s *SpatialStore) KNearest(q [2]float64, k int) []Point {
	defer s.track("knn", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.KNearest(q, k)
}

func (s *SpatialStore) track(kind string, start time.Time) {
	s.stats.RecordQuery(kind, time.Since(start))
}

// Points returns every stored point ordered by (X, Y).
func (s *SpatialStore) Points() []Point {
	s.mu.RLock()
	ps := s.index.Points()
	s.mu.RUnlock()

	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})
	return ps
}

func (s *SpatialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Retrain refits the model on the stored points.
func (s *SpatialStore) Retrain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index.IsEmpty() {
		return model.ErrEmptyInput
	}
	return s.retrainLocked()
}

func (s *SpatialStore) retrainLocked() error {
	s.sinceTrain = 0
	start := time.Now()
	if err := s.index.Retrain(); err != nil {
		log.Printf("[Store] Retrain failed: %v", err)
		return err
	}
	s.cache.Purge()
	s.stats.RecordRetrain()
	s.stats.SetShape(s.index.Len(), s.index.Capacity())
	log.Printf("[Store] Retrained %s model on %d points in %v.", s.index.Model().Name(), s.index.Len(), time.Since(start))
	return nil
}

// Checkpoint waits for pending writes to reach SQLite and empties the WAL.
func (s *SpatialStore) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.sync()
	return s.wal.Truncate()
}

// Reset drops every point, on disk and in memory, and starts from an
// untrained model.
func (s *SpatialStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	index, err := newIndex(s.conf)
	if err != nil {
		return err
	}
	s.sync()
	if err := s.backend.Truncate(); err != nil {
		return err
	}
	if err := s.wal.Truncate(); err != nil {
		return err
	}

	s.index = index
	s.bloom.Reset()
	s.cache.Purge()
	s.sinceTrain = 0
	s.stats.SetShape(0, 0)
	log.Println("[Store] Reset complete.")
	return nil
}

func (s *SpatialStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	close(s.closeCh)
	s.wg.Wait()
	if err := s.wal.Truncate(); err != nil {
		log.Printf("[WAL] Truncate on close failed: %v", err)
	}
	s.wal.Close()
	s.backend.Close()
}

func (s *SpatialStore) Metrics() *monitor.WorkloadStats {
	return s.stats
}

func (s *SpatialStore) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	walSize, _ := s.wal.Size()
	return map[string]interface{}{
		"items":          s.index.Len(),
		"buckets":        s.index.Capacity(),
		"occupied":       s.index.Occupied(),
		"axis":           s.index.Axis().String(),
		"model":          s.index.Model().Name(),
		"pending_writes": len(s.writeCh),
		"wal_size":       humanize.Bytes(uint64(walSize)),
		"rw_ratio":       s.stats.GetReadWriteRatio(),
		"hit_rate":       s.stats.GetHitRate(),
		"cached_nearest": s.cache.Len(),
		"bloom":          s.bloom.Stats(),
		"mode":           "Learned Spatial Hash",
	}
}

// ExportDiagnostics returns the model's per-point rank error.
func (s *SpatialStore) ExportDiagnostics() []learned.DiagnosticPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Diagnostics()
}
