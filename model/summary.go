package model

// OutputSummary is the compact result a node publishes once per tick. Each
// node overwrites its own previous summary; the latest-summary map holds
// exactly one live entry per node id. Consumers compare Tick against the
// clock to detect a node that failed to publish this tick.
type OutputSummary struct {
	NodeID     string            `json:"node_id"`
	IsRSU      bool              `json:"is_rsu"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Heading    float64           `json:"heading"`
	Speed      float64           `json:"speed"`
	Tick       uint64            `json:"tick"`
	Detections []DetectionRecord `json:"detections"`
}
