package observability

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewSimCollectorRegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	c.TicksTotal.Inc()
	c.SummariesPublished.Inc()
	c.DetectionsLogged.Add(3)
	c.DetectionsDropped.Inc()
	c.RecordNodeFailure("vehicle_1", "reading")
	c.SetCongestionTicks("intersection_1", 7)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	got := make(map[string]bool, len(families))
	for _, f := range families {
		got[f.GetName()] = true
	}
	for _, name := range []string{
		"sim_ticks_total",
		"sim_node_tick_failures_total",
		"sim_summaries_published_total",
		"sim_detections_logged_total",
		"sim_detection_rows_dropped_total",
		"sim_congestion_ticks",
	} {
		if !got[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestNewSimCollectorReusesExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	// Both handles feed the same underlying counters.
	first.TicksTotal.Inc()
	second.TicksTotal.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "sim_ticks_total" {
			if v := f.GetMetric()[0].GetCounter().GetValue(); v != 2 {
				t.Errorf("sim_ticks_total = %v, want 2", v)
			}
			return
		}
	}
	t.Fatal("sim_ticks_total not found")
}

func TestHandlerServesScrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	c.TicksTotal.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sim_ticks_total 1") {
		t.Errorf("scrape output missing counter:\n%s", rec.Body.String())
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *SimCollector
	c.RecordNodeFailure("vehicle_1", "reading")
	c.SetCongestionTicks("intersection_1", 1)
}
