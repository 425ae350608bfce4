package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurogeo/pkg/config"
	"neurogeo/pkg/core"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Path = t.TempDir()
	cfg.Index.RetrainThreshold = 0

	store, err := core.NewSpatialStore(cfg)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return NewServer(store)
}

func do(t *testing.T, s *Server, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, s *Server) {
	t.Helper()
	ps := make([]pointJSON, 0, 100)
	for i := 0; i < 100; i++ {
		ps = append(ps, pointJSON{ID: i, X: float64(i), Y: float64(i % 10)})
	}
	rec := do(t, s, http.MethodPost, "/api/batch", map[string]interface{}{"points": ps})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHandleMetricsExposesPrometheusFormat(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)
	do(t, s, http.MethodGet, "/api/get?x=3&y=3", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handleMetrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"neurogeo_reads_total", "neurogeo_writes_total", "neurogeo_items"} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics output missing %s:\n%s", name, body)
		}
	}
}

func TestInsertGetRemove(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/insert", pointJSON{ID: 1, X: 2.5, Y: -1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"replaced":false}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/insert", pointJSON{ID: 2, X: 2.5, Y: -1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"replaced":true,"old":{"id":1,"x":2.5,"y":-1}}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/get?x=2.5&y=-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Point pointJSON `json:"point"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Point.ID)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/get?x=9&y=9", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/get?x=abc&y=1", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodGet, "/api/insert", nil).Code)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodDelete, "/api/remove?x=2.5&y=-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/api/remove?x=2.5&y=-1", nil).Code)
}

func TestSpatialQueries(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	var res struct {
		Count  int         `json:"count"`
		Points []pointJSON `json:"points"`
	}

	rec := do(t, s, http.MethodGet, "/api/range?x1=10&y1=0&x2=19&y2=9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 10, res.Count)

	rec = do(t, s, http.MethodGet, "/api/radius?x=50&y=0&r=0.5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Points, 1)
	assert.Equal(t, 50, res.Points[0].ID)

	rec = do(t, s, http.MethodGet, "/api/nearest?x=42.1&y=2.2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var nn struct {
		Point pointJSON `json:"point"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nn))
	assert.Equal(t, 42, nn.Point.ID)

	rec = do(t, s, http.MethodGet, "/api/nearest?x=42.1&y=2.2&k=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Points, 3)
	assert.Equal(t, 42, res.Points[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/nearest?x=1&y=1&k=0", nil).Code)
}

func TestHandleQuery(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodPost, "/api/query", map[string]string{
		"query": "SELECT * FROM points WHERE WITHIN(0, 0, 4, 9)",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Kind  string `json:"kind"`
		Count int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 5, res.Count)

	rec = do(t, s, http.MethodPost, "/api/query", map[string]string{"query": "DROP TABLE points"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExport(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, "ID,Coord,Rank,Predicted,Bucket,Error", lines[0])
	assert.Len(t, lines, 101)
}

func TestBackupRestoreAndReset(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/api/backup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var b backup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, 100, b.PointCount)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/reset", nil).Code)
	assert.Equal(t, 0, s.store.Len())

	rec = do(t, s, http.MethodPost, "/api/restore", b)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 100, s.store.Len())

	for _, id := range []int{0, 57, 99} {
		p, ok := s.store.Get(float64(id), float64(id%10))
		require.True(t, ok, fmt.Sprintf("point %d", id))
		assert.Equal(t, id, p.ID)
	}
}

func TestStatsRetrainBenchmark(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 100, stats["items"])

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/retrain", nil).Code)

	rec = do(t, s, http.MethodGet, "/api/benchmark?n=200", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "winner")
}
