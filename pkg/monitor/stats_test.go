package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkloadStatsCounters(t *testing.T) {
	ws := NewWorkloadStats()
	assert.Equal(t, 0.0, ws.GetReadWriteRatio())

	ws.RecordRead()
	assert.Equal(t, 100.0, ws.GetReadWriteRatio())

	ws.RecordRead()
	ws.RecordHit()
	ws.RecordWrites(4)
	ws.RecordRemove()
	ws.RecordRetrain()
	ws.RecordQuery("nearest", time.Millisecond)
	ws.SetShape(4, 8)

	assert.Equal(t, 0.5, ws.GetReadWriteRatio())
	assert.Equal(t, 0.5, ws.GetHitRate())
	assert.Equal(t, 2.0, testutil.ToFloat64(ws.reads))
	assert.Equal(t, 4.0, testutil.ToFloat64(ws.writes))
	assert.Equal(t, 1.0, testutil.ToFloat64(ws.queries.WithLabelValues("nearest")))
	assert.Equal(t, 8.0, testutil.ToFloat64(ws.buckets))
}

func TestWorkloadStatsHandler(t *testing.T) {
	ws := NewWorkloadStats()
	ws.RecordWrite()

	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "neurogeo_writes_total 1"))
	assert.True(t, strings.Contains(body, "neurogeo_items 0"))

	// separate stores do not share metrics
	other := NewWorkloadStats()
	assert.Equal(t, 0.0, testutil.ToFloat64(other.writes))
}
