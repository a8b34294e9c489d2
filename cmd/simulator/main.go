package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aleksihamalainen/congestion-sim/core"
	"github.com/aleksihamalainen/congestion-sim/internal/logging"
	"github.com/aleksihamalainen/congestion-sim/internal/nbi"
	"github.com/aleksihamalainen/congestion-sim/internal/node"
	"github.com/aleksihamalainen/congestion-sim/internal/observability"
	"github.com/aleksihamalainen/congestion-sim/internal/perception"
	"github.com/aleksihamalainen/congestion-sim/internal/pipe"
	"github.com/aleksihamalainen/congestion-sim/internal/sim"
	"github.com/aleksihamalainen/congestion-sim/internal/storage/sqlite"
	"github.com/aleksihamalainen/congestion-sim/timectrl"
)

func main() {
	scenarioPath := flag.String("scenario", "configs/scenario.json", "path to the JSON scenario")
	ticks := flag.Uint64("ticks", 0, "total ticks to run (0 = scenario n_frames)")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	parallel := flag.Bool("parallel", true, "run node ticks in parallel")
	listenAddr := flag.String("listen", ":8080", "aggregator API listen address (empty to disable)")
	dbPath := flag.String("db", "", "sqlite run database path (empty to disable persistence)")
	speedLimit := flag.Float64("speed-limit", core.DefaultSpeedLimitKmh, "congestion speed limit in km/h")
	detectorKind := flag.String("detector", "null", "per-node detector: null or demo (looping scripted tables)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	metrics, err := observability.NewSimCollector(nil)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.Err(err))
		os.Exit(1)
	}

	// ==== Scenario + world setup ====

	raw, err := os.ReadFile(*scenarioPath)
	if err != nil {
		log.Error(ctx, "read scenario failed", logging.String("path", *scenarioPath), logging.Err(err))
		os.Exit(1)
	}
	// The store needs the tick rate before the loader runs, so peek at it.
	var peek struct {
		FPS int `json:"fps"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		log.Error(ctx, "parse scenario failed", logging.Err(err))
		os.Exit(1)
	}
	store := core.NewWorldStore(peek.FPS)
	scenario, err := core.LoadScenario(store, bytes.NewReader(raw))
	if err != nil {
		log.Error(ctx, "load scenario failed", logging.Err(err))
		os.Exit(1)
	}
	log.Info(ctx, "scenario loaded",
		logging.String("map", scenario.MapName),
		logging.Int("vehicles", len(scenario.VehicleIDs)),
		logging.Int("rsus", len(scenario.RSUIDs)),
		logging.Int("intersections", len(scenario.IntersectionIDs)),
	)

	world := sim.NewSyntheticWorld(store, scenario.ImageWidth, scenario.ImageHeight)
	analytics := core.NewAnalytics(store, world, log)
	analytics.SpeedLimitKmh = *speedLimit

	summaries := pipe.NewSummaryPipe()
	detlog := pipe.NewDetectionLog()
	reducer := perception.NewReducer(log)

	newDetector, err := detectorFactory(*detectorKind, scenario.ImageWidth, scenario.ImageHeight)
	if err != nil {
		log.Error(ctx, "detector setup failed", logging.Err(err))
		os.Exit(1)
	}

	var nodes []*node.Node
	for nodeID, cameraID := range scenario.NodeCameras {
		nodes = append(nodes, node.New(nodeID, cameraID, world, newDetector(), reducer,
			summaries, detlog, log, metrics))
	}
	pool := node.NewPool(nodes, *parallel, log)

	// ==== Tick wiring: positions, then nodes, then aggregate passes ====

	tickLen := time.Second / time.Duration(store.TicksPerSecond)
	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTickController(time.Now().UTC(), tickLen, mode)

	tc.AddListener(func(ctx context.Context, tick uint64) {
		world.AdvanceTick()
	})
	tc.AddListener(func(ctx context.Context, tick uint64) {
		pool.RunTick(ctx, tick)
	})
	tc.AddListener(func(ctx context.Context, tick uint64) {
		store.AdvanceTravelAccounting()
		analytics.UpdateCongestion(ctx)
		metrics.TicksTotal.Inc()
		for _, in := range store.Intersections() {
			metrics.SetCongestionTicks(in.ID, in.CongestionTicks)
		}
	})

	// ==== Aggregator API ====

	if *listenAddr != "" {
		server := nbi.NewServer(summaries, detlog, store, analytics, tc, scenario, metrics.Handler(), log)
		httpSrv := &http.Server{Addr: *listenAddr, Handler: server.ServeMux()}
		go func() {
			log.Info(ctx, "aggregator API listening", logging.String("addr", *listenAddr))
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error(ctx, "api server failed", logging.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()
	}

	// ==== Run ====

	totalTicks := *ticks
	if totalTicks == 0 {
		totalTicks = uint64(scenario.TotalTicks)
	}
	log.Info(ctx, "starting simulation",
		logging.Uint64("ticks", totalTicks),
		logging.Any("tick_len", tickLen),
		logging.Int("nodes", len(nodes)),
	)
	last := tc.Run(ctx, totalTicks)
	pool.Stop()
	log.Info(ctx, "simulation complete", logging.Uint64("last_tick", last))

	// ==== Persist + teardown ====

	metadata := core.BuildMetadata(store, scenario)
	if *dbPath != "" {
		if err := persistRun(store, scenario, detlog, metadata, *dbPath); err != nil {
			log.Warn(ctx, "run persistence failed", logging.Err(err))
		}
	}

	if err := core.ReleaseAll(context.Background(), store, world, log); err != nil {
		log.Warn(ctx, "teardown incomplete", logging.Err(err))
	}

	for id, seconds := range store.TravelTimes() {
		fmt.Printf("%s: travel time %.2fs (arrived=%v)\n", id, seconds, store.ReachedDestination(id))
	}
	for _, in := range store.Intersections() {
		ratio := 0.0
		if last > 0 {
			ratio = float64(in.CongestionTicks) / float64(last)
		}
		fmt.Printf("%s: congested %d/%d ticks (%.1f%%)\n", in.ID, in.CongestionTicks, last, ratio*100)
	}
}

// detectorFactory returns a constructor for per-node detectors. "null"
// publishes empty tables (load-shaping runs); "demo" cycles scripted tables
// sized to the scenario's frame so the reducer and detection log see real
// traffic without an external model.
func detectorFactory(kind string, imgWidth, imgHeight int) (func() perception.Detector, error) {
	switch kind {
	case "null":
		return func() perception.Detector { return perception.NullDetector{} }, nil
	case "demo":
		tables := demoDetections(float64(imgWidth), float64(imgHeight))
		return func() perception.Detector {
			return &perception.ScriptedDetector{Tables: tables, Loop: true}
		}, nil
	default:
		return nil, fmt.Errorf("unknown detector kind %q", kind)
	}
}

// demoDetections scripts a short cycle of plausible boxes: oncoming traffic,
// a pedestrian crossing, a quiet frame, and an ego-hood box the reducer
// suppresses for vehicle nodes.
func demoDetections(w, h float64) [][]perception.RawDetection {
	return [][]perception.RawDetection{
		{
			{Label: "vehicle", Confidence: 0.91, XMin: 0.10 * w, YMin: 0.40 * h, XMax: 0.35 * w, YMax: 0.60 * h},
			{Label: "vehicle", Confidence: 0.84, XMin: 0.55 * w, YMin: 0.42 * h, XMax: 0.78 * w, YMax: 0.58 * h},
		},
		{
			{Label: "person", Confidence: 0.88, XMin: 0.46 * w, YMin: 0.35 * h, XMax: 0.52 * w, YMax: 0.62 * h},
			{Label: "vehicle", Confidence: 0.79, XMin: 0.12 * w, YMin: 0.70 * h, XMax: 0.80 * w, YMax: 0.95 * h},
		},
		nil,
	}
}

func persistRun(store *core.WorldStore, scenario *core.Scenario, detlog *pipe.DetectionLog, metadata core.Metadata, path string) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	runID, err := db.CreateRun(scenario.MapName, scenario.FPS, scenario.ImageWidth, scenario.ImageHeight)
	if err != nil {
		return err
	}
	if err := db.AppendDetections(runID, detlog.All()); err != nil {
		return err
	}
	congestion := make(map[string]uint64)
	for _, in := range store.Intersections() {
		congestion[in.ID] = in.CongestionTicks
	}
	return db.FinishRun(runID, congestion, store.TravelTimes(), metadata)
}
