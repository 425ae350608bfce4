package api

import (
	"encoding/csv"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"neurogeo/pkg/common"
	"neurogeo/pkg/core"
	"neurogeo/pkg/query"
)

type Server struct {
	store *core.SpatialStore
	mux   *http.ServeMux
}

type pointJSON struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func toJSON(p core.Point) pointJSON {
	return pointJSON{ID: p.ID, X: p.X, Y: p.Y}
}

func toJSONs(ps []core.Point) []pointJSON {
	out := make([]pointJSON, len(ps))
	for i, p := range ps {
		out[i] = toJSON(p)
	}
	return out
}

func fromJSONs(ps []pointJSON) []core.Point {
	out := make([]core.Point, len(ps))
	for i, p := range ps {
		out[i] = common.NewPoint(p.ID, p.X, p.Y)
	}
	return out
}

func NewServer(store *core.SpatialStore) *Server {
	s := &Server{store: store, mux: http.NewServeMux()}

	s.mux.HandleFunc("/api/insert", s.handleInsert)
	s.mux.HandleFunc("/api/batch", s.handleBatch)
	s.mux.HandleFunc("/api/get", s.handleGet)
	s.mux.HandleFunc("/api/remove", s.handleRemove)
	s.mux.HandleFunc("/api/range", s.handleRange)
	s.mux.HandleFunc("/api/radius", s.handleRadius)
	s.mux.HandleFunc("/api/nearest", s.handleNearest)
	s.mux.HandleFunc("/api/query", s.handleQuery)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/export", s.handleExport)
	s.mux.HandleFunc("/api/benchmark", s.handleBenchmark)
	s.mux.HandleFunc("/api/retrain", s.handleRetrain)
	s.mux.HandleFunc("/api/reset", s.handleReset)
	s.mux.HandleFunc("/api/backup", s.handleBackup)
	s.mux.HandleFunc("/api/restore", s.handleRestore)
	s.mux.HandleFunc("/metrics", s.handleMetrics)

	fs := http.FileServer(http.Dir("./static"))
	s.mux.Handle("/", fs)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start(addr string) error {
	log.Printf("[API] Server listening on %s (Web Dashboard available)...", addr)
	return http.ListenAndServe(addr, s.mux)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Encode response: %v", err)
	}
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// floatParams reads the named query parameters as floats.
func floatParams(r *http.Request, names ...string) ([]float64, error) {
	vals := make([]float64, len(names))
	for i, name := range names {
		v, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
		if err != nil {
			return nil, errors.Errorf("invalid %s", name)
		}
		vals[i] = v
	}
	return vals, nil
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req pointJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	old, replaced, err := s.store.Insert(common.NewPoint(req.ID, req.X, req.Y))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := map[string]interface{}{"replaced": replaced}
	if replaced {
		resp["old"] = toJSON(old)
	}
	writeJSON(w, resp)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Points []pointJSON `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	if err := s.store.BatchInsert(fromJSONs(req.Points)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{
		"count":      len(req.Points),
		"latency_ms": time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := floatParams(r, "x", "y")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	p, found := s.store.Get(c[0], c[1])
	duration := time.Since(start)

	if !found {
		http.Error(w, "Point not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{
		"point":      toJSON(p),
		"found":      true,
		"latency_ns": duration.Nanoseconds(),
	})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, err := floatParams(r, "x", "y")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	old, ok, err := s.store.Remove(c[0], c[1])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Point not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"removed": toJSON(old)})
}

func writePoints(w http.ResponseWriter, ps []core.Point, start time.Time) {
	writeJSON(w, map[string]interface{}{
		"count":      len(ps),
		"points":     toJSONs(ps),
		"latency_ns": time.Since(start).Nanoseconds(),
	})
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	c, err := floatParams(r, "x1", "y1", "x2", "y2")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := time.Now()
	writePoints(w, s.store.Range([2]float64{c[0], c[1]}, [2]float64{c[2], c[3]}), start)
}

func (s *Server) handleRadius(w http.ResponseWriter, r *http.Request) {
	c, err := floatParams(r, "x", "y", "r")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := time.Now()
	writePoints(w, s.store.Radius([2]float64{c[0], c[1]}, c[2]), start)
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	c, err := floatParams(r, "x", "y")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := [2]float64{c[0], c[1]}
	start := time.Now()

	if kStr := r.URL.Query().Get("k"); kStr != "" {
		k, err := strconv.Atoi(kStr)
		if err != nil || k < 1 {
			http.Error(w, "invalid k", http.StatusBadRequest)
			return
		}
		writePoints(w, s.store.KNearest(q, k), start)
		return
	}

	p, ok := s.store.Nearest(q)
	if !ok {
		http.Error(w, "Store is empty", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{
		"point":      toJSON(p),
		"distance":   common.Euclidean(q[0], q[1], p.X, p.Y),
		"latency_ns": time.Since(start).Nanoseconds(),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	stmt, err := query.Parse(req.Query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := s.store.Execute(stmt)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{
		"kind":  stmt.Kind.String(),
		"count": len(rows),
		"rows":  toJSONs(rows),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Stats())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment;filename=neurogeo_model_fit.csv")

	cw := csv.NewWriter(w)
	cw.Write([]string{"ID", "Coord", "Rank", "Predicted", "Bucket", "Error"})
	for _, p := range s.store.ExportDiagnostics() {
		cw.Write([]string{
			strconv.Itoa(p.ID),
			strconv.FormatFloat(p.Coord, 'g', -1, 64),
			strconv.Itoa(p.Rank),
			strconv.FormatFloat(p.Predicted, 'f', 3, 64),
			strconv.Itoa(p.Bucket),
			strconv.FormatFloat(p.Error, 'f', 3, 64),
		})
	}
	cw.Flush()
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	iterations := 50000
	if n, err := strconv.Atoi(r.URL.Query().Get("n")); err == nil && n > 0 {
		iterations = n
	}

	res, err := s.store.BenchmarkAlgo(iterations)
	if err != nil {
		writeJSON(w, map[string]string{"error": err.Error()})
		return
	}

	winner := "B-Tree"
	if res.LearnedNearestNs < res.BTreeNearestNs {
		winner = "NeuroGeo (Learned)"
	}
	writeJSON(w, map[string]interface{}{
		"result":          res,
		"get_speedup":     speedup(res.BTreeGetNs, res.LearnedGetNs),
		"nearest_speedup": speedup(res.BTreeNearestNs, res.LearnedNearestNs),
		"winner":          winner,
	})
}

// speedup reports 0 instead of +Inf, which encoding/json rejects.
func speedup(baseline, learned float64) float64 {
	if learned <= 0 {
		return 0
	}
	return baseline / learned
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	start := time.Now()
	if err := s.store.Retrain(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status":     "ok",
		"latency_ms": time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if err := s.store.Reset(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Database Reset Successful"))
}

type backup struct {
	PointCount int         `json:"point_count"`
	Points     []pointJSON `json:"points"`
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	ps := s.store.Points()
	writeJSON(w, backup{PointCount: len(ps), Points: toJSONs(ps)})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req backup
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	if len(req.Points) == 0 {
		http.Error(w, "Backup holds no points", http.StatusBadRequest)
		return
	}

	if err := s.store.BatchInsert(fromJSONs(req.Points)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"restored": len(req.Points)})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.store.Metrics().Handler().ServeHTTP(w, r)
}
