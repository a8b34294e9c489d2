package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the simulation loop and
// exposes a ready-to-use /metrics handler.
type SimCollector struct {
	gatherer prometheus.Gatherer

	TicksTotal         prometheus.Counter
	NodeTickFailures   *prometheus.CounterVec
	SummariesPublished prometheus.Counter
	DetectionsLogged   prometheus.Counter
	DetectionsDropped  prometheus.Counter
	CongestionTicks    *prometheus.GaugeVec
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_total",
		Help: "Total number of completed simulation ticks.",
	}), "sim_ticks_total")
	if err != nil {
		return nil, err
	}

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_node_tick_failures_total",
		Help: "Node ticks skipped due to errors, labeled by node and phase.",
	}, []string{"node", "phase"})
	failures, err = registerCounterVec(reg, failures, "sim_node_tick_failures_total")
	if err != nil {
		return nil, err
	}

	published, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_summaries_published_total",
		Help: "Total output summaries published into the latest-summary map.",
	}), "sim_summaries_published_total")
	if err != nil {
		return nil, err
	}

	logged, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_detections_logged_total",
		Help: "Total detection records appended to the detection log.",
	}), "sim_detections_logged_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_detection_rows_dropped_total",
		Help: "Malformed raw detection rows skipped by the reducer.",
	}), "sim_detection_rows_dropped_total")
	if err != nil {
		return nil, err
	}

	congestion := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_congestion_ticks",
		Help: "Current congestion-tick counter per intersection.",
	}, []string{"intersection"})
	congestion, err = registerGaugeVec(reg, congestion, "sim_congestion_ticks")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:           gatherer,
		TicksTotal:         ticks,
		NodeTickFailures:   failures,
		SummariesPublished: published,
		DetectionsLogged:   logged,
		DetectionsDropped:  dropped,
		CongestionTicks:    congestion,
	}, nil
}

// Handler exposes the Prometheus scrape endpoint.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordNodeFailure counts one skipped node tick. Nil-safe so node code can
// run without a collector in tests.
func (c *SimCollector) RecordNodeFailure(node, phase string) {
	if c == nil || c.NodeTickFailures == nil {
		return
	}
	c.NodeTickFailures.WithLabelValues(node, phase).Inc()
}

// SetCongestionTicks mirrors an intersection's counter into the gauge.
func (c *SimCollector) SetCongestionTicks(intersection string, ticks uint64) {
	if c == nil || c.CongestionTicks == nil {
		return
	}
	c.CongestionTicks.WithLabelValues(intersection).Set(float64(ticks))
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
