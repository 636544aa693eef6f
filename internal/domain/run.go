package domain

import "time"

// Run is one recorded optimization: the request sent, the Pareto endpoints
// returned and the network they were computed for
type Run struct {
	ID                 string          `json:"id"`
	CreatedAt          time.Time       `json:"created_at"`
	NetworkFingerprint string          `json:"network_fingerprint,omitempty"`
	Request            OptimizeRequest `json:"request"`
	Response           ParetoResponse  `json:"response"`
}

// RunSummary is a run listing entry without the scored edges
type RunSummary struct {
	ID                 string          `json:"id"`
	CreatedAt          time.Time       `json:"created_at"`
	NetworkFingerprint string          `json:"network_fingerprint,omitempty"`
	Request            OptimizeRequest `json:"request"`
	Edges              int             `json:"edges"`
}
