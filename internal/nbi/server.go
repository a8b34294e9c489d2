// Package nbi exposes the read-only aggregator surface over HTTP: the
// latest-summary map, the detection log, travel times, congestion ratios,
// and the metadata snapshot. There are no mutation endpoints; the tick loop
// is the only writer of simulation state.
package nbi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aleksihamalainen/congestion-sim/core"
	"github.com/aleksihamalainen/congestion-sim/internal/logging"
	"github.com/aleksihamalainen/congestion-sim/internal/pipe"
	"github.com/aleksihamalainen/congestion-sim/timectrl"
)

// Server serves the aggregator API.
type Server struct {
	summaries  *pipe.SummaryPipe
	detections *pipe.DetectionLog
	store      *core.WorldStore
	analytics  *core.Analytics
	clock      timectrl.Clock
	scenario   *core.Scenario
	metrics    http.Handler

	log logging.Logger
}

// NewServer wires the read-only views the API serves from.
func NewServer(summaries *pipe.SummaryPipe, detections *pipe.DetectionLog,
	store *core.WorldStore, analytics *core.Analytics, clock timectrl.Clock,
	scenario *core.Scenario, metrics http.Handler, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{
		summaries:  summaries,
		detections: detections,
		store:      store,
		analytics:  analytics,
		clock:      clock,
		scenario:   scenario,
		metrics:    metrics,
		log:        log,
	}
}

// ServeMux returns the routing table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/summaries", s.listSummaries)
	mux.HandleFunc("GET /api/summaries/{node}", s.getSummary)
	mux.HandleFunc("GET /api/detections", s.listDetections)
	mux.HandleFunc("GET /api/travel-times", s.listTravelTimes)
	mux.HandleFunc("GET /api/congestion", s.listCongestion)
	mux.HandleFunc("GET /api/metadata", s.getMetadata)
	mux.HandleFunc("GET /healthz", s.health)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn(r.Context(), "response encode failed",
			logging.String("path", r.URL.Path), logging.Err(err))
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, map[string]any{
		"status": "ok",
		"tick":   s.clock.CurrentTick(),
	})
}

// listSummaries returns every node's latest summary plus the current tick,
// so clients can spot stale entries themselves.
func (s *Server) listSummaries(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, map[string]any{
		"tick":      s.clock.CurrentTick(),
		"summaries": s.summaries.Snapshot(),
	})
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("node")
	summary, ok := s.summaries.Latest(nodeID)
	if !ok {
		http.Error(w, "no summary published for node "+nodeID, http.StatusNotFound)
		return
	}
	s.writeJSON(w, r, map[string]any{
		"tick":    s.clock.CurrentTick(),
		"stale":   summary.Tick < s.clock.CurrentTick(),
		"summary": summary,
	})
}

// listDetections returns the detection log, optionally from ?since_tick=N.
func (s *Server) listDetections(w http.ResponseWriter, r *http.Request) {
	records := s.detections.All()
	if raw := r.URL.Query().Get("since_tick"); raw != "" {
		since, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid since_tick", http.StatusBadRequest)
			return
		}
		records = s.detections.Since(since)
	}
	s.writeJSON(w, r, map[string]any{
		"count":      len(records),
		"detections": records,
	})
}

func (s *Server) listTravelTimes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, map[string]any{
		"travel_times_seconds": s.store.TravelTimes(),
	})
}

// listCongestion reports per-intersection counters and ratios over elapsed
// ticks. Before the first tick the ratio is reported as zero.
func (s *Server) listCongestion(w http.ResponseWriter, r *http.Request) {
	elapsed := s.clock.CurrentTick()
	type entry struct {
		ID              string  `json:"id"`
		CongestionTicks uint64  `json:"congestion_ticks"`
		Ratio           float64 `json:"congestion_ratio"`
	}

	var entries []entry
	for _, in := range s.store.Intersections() {
		e := entry{ID: in.ID, CongestionTicks: in.CongestionTicks}
		if elapsed > 0 {
			if ratio, err := s.analytics.CongestionRatio(in.ID, elapsed); err == nil {
				e.Ratio = ratio
			}
		}
		entries = append(entries, e)
	}
	s.writeJSON(w, r, map[string]any{
		"elapsed_ticks": elapsed,
		"intersections": entries,
	})
}

func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, core.BuildMetadata(s.store, s.scenario))
}
