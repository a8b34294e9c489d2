// Package pipe holds the two shared mutable collections nodes publish into:
// the latest-summary map and the append-only detection log. They replace the
// ambient dictionaries of earlier designs with owned collections behind a
// synchronization boundary: each node writes only its own summary slot, and
// the log accepts appends only.
package pipe

import (
	"sync"

	"github.com/aleksihamalainen/congestion-sim/model"
)

// SummaryPipe keeps exactly one live OutputSummary per node id: the most
// recent tick's output. A node that failed to publish leaves its previous
// entry in place, which consumers detect by comparing the entry's Tick
// against the clock.
type SummaryPipe struct {
	mu     sync.RWMutex
	latest map[string]model.OutputSummary
}

// NewSummaryPipe constructs an empty pipe.
func NewSummaryPipe() *SummaryPipe {
	return &SummaryPipe{latest: make(map[string]model.OutputSummary)}
}

// Publish overwrites the node's slot atomically. The node id is taken from
// the summary itself; no node ever writes another node's slot.
func (p *SummaryPipe) Publish(s model.OutputSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest[s.NodeID] = s
}

// Latest returns the most recent summary for a node. ok is false when the
// node has never published.
func (p *SummaryPipe) Latest(nodeID string) (model.OutputSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.latest[nodeID]
	return s, ok
}

// Snapshot returns a copy of every node's latest summary.
func (p *SummaryPipe) Snapshot() map[string]model.OutputSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]model.OutputSummary, len(p.latest))
	for id, s := range p.latest {
		out[id] = s
	}
	return out
}

// DetectionLog is the append-only historical record of every published
// detection, kept for audit and visualization rather than simulation logic.
// Entries are never mutated or removed during a run.
type DetectionLog struct {
	mu      sync.RWMutex
	records []model.DetectionRecord
}

// NewDetectionLog constructs an empty log.
func NewDetectionLog() *DetectionLog {
	return &DetectionLog{}
}

// Append adds this tick's records in order. The append is atomic with
// respect to concurrent appends and reads.
func (l *DetectionLog) Append(records ...model.DetectionRecord) {
	if len(records) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, records...)
}

// Len returns the number of records logged so far.
func (l *DetectionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// All returns a copy of the full log in append order.
func (l *DetectionLog) All() []model.DetectionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.DetectionRecord(nil), l.records...)
}

// Since returns a copy of the records appended at or after the given tick.
// Useful for incremental persistence flushes.
func (l *DetectionLog) Since(tick uint64) []model.DetectionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []model.DetectionRecord
	for _, r := range l.records {
		if r.Tick >= tick {
			out = append(out, r)
		}
	}
	return out
}
