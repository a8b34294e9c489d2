// Package sqlite persists the audit trail of a simulation run: the
// append-only detection log, final congestion counters, and travel times,
// keyed by a run id. It backs offline visualization and analysis; nothing
// in the tick loop reads from it.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aleksihamalainen/congestion-sim/model"
)

// Store wraps the run database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run database at path. Use ":memory:"
// for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id       TEXT PRIMARY KEY,
			map          TEXT,
			fps          INTEGER,
			img_width    INTEGER,
			img_height   INTEGER,
			started_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			finished_at  TIMESTAMP,
			metadata     TEXT
		);
		CREATE TABLE IF NOT EXISTS detections (
			run_id       TEXT NOT NULL,
			parent_id    TEXT NOT NULL,
			detection_id INTEGER NOT NULL,
			class        TEXT NOT NULL,
			xmin         DOUBLE,
			ymin         DOUBLE,
			xmax         DOUBLE,
			ymax         DOUBLE,
			tick         BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_detections_run_tick ON detections(run_id, tick);
		CREATE TABLE IF NOT EXISTS congestion (
			run_id           TEXT NOT NULL,
			intersection_id  TEXT NOT NULL,
			congestion_ticks BIGINT NOT NULL,
			PRIMARY KEY (run_id, intersection_id)
		);
		CREATE TABLE IF NOT EXISTS travel_times (
			run_id      TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			seconds     DOUBLE NOT NULL,
			PRIMARY KEY (run_id, entity_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// CreateRun registers a new run and returns its id.
func (s *Store) CreateRun(mapName string, fps, imgWidth, imgHeight int) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, map, fps, img_width, img_height) VALUES (?, ?, ?, ?, ?)`,
		runID, mapName, fps, imgWidth, imgHeight,
	)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return runID, nil
}

// AppendDetections writes a batch of detection records in one transaction.
func (s *Store) AppendDetections(runID string, records []model.DetectionRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO detections (run_id, parent_id, detection_id, class, xmin, ymin, xmax, ymax, tick)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(runID, r.ParentID, r.Index, string(r.Class), r.XMin, r.YMin, r.XMax, r.YMax, r.Tick); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert detection: %w", err)
		}
	}
	return tx.Commit()
}

// FinishRun stores the final counters and metadata snapshot and stamps the
// run finished.
func (s *Store) FinishRun(runID string, congestion map[string]uint64, travelTimes map[string]float64, metadata any) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for id, ticks := range congestion {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO congestion (run_id, intersection_id, congestion_ticks) VALUES (?, ?, ?)`,
			runID, id, ticks,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert congestion: %w", err)
		}
	}
	for id, seconds := range travelTimes {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO travel_times (run_id, entity_id, seconds) VALUES (?, ?, ?)`,
			runID, id, seconds,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert travel time: %w", err)
		}
	}

	var metaJSON []byte
	if metadata != nil {
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}
	if _, err := tx.Exec(
		`UPDATE runs SET finished_at = ?, metadata = ? WHERE run_id = ?`,
		time.Now().UTC(), string(metaJSON), runID,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("finish run: %w", err)
	}
	return tx.Commit()
}

// DetectionCount returns the number of persisted detections for a run.
func (s *Store) DetectionCount(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM detections WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// Detections returns a run's persisted detections in insertion order.
func (s *Store) Detections(runID string) ([]model.DetectionRecord, error) {
	rows, err := s.db.Query(
		`SELECT parent_id, detection_id, class, xmin, ymin, xmax, ymax, tick
		 FROM detections WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DetectionRecord
	for rows.Next() {
		var r model.DetectionRecord
		var class string
		if err := rows.Scan(&r.ParentID, &r.Index, &class, &r.XMin, &r.YMin, &r.XMax, &r.YMax, &r.Tick); err != nil {
			return nil, err
		}
		r.Class = model.Class(class)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CongestionTicks returns a run's persisted per-intersection counters.
func (s *Store) CongestionTicks(runID string) (map[string]uint64, error) {
	rows, err := s.db.Query(`SELECT intersection_id, congestion_ticks FROM congestion WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var id string
		var ticks uint64
		if err := rows.Scan(&id, &ticks); err != nil {
			return nil, err
		}
		out[id] = ticks
	}
	return out, rows.Err()
}

// TravelTimes returns a run's persisted travel times in seconds.
func (s *Store) TravelTimes(runID string) (map[string]float64, error) {
	rows, err := s.db.Query(`SELECT entity_id, seconds FROM travel_times WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var id string
		var seconds float64
		if err := rows.Scan(&id, &seconds); err != nil {
			return nil, err
		}
		out[id] = seconds
	}
	return out, rows.Err()
}
