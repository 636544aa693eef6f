package domain

import (
	"fmt"
	"math"
)

// Mode selects which Pareto endpoint is active
type Mode string

const (
	ModeDelay      Mode = "delay"
	ModeCongestion Mode = "congestion"
)

// ParseMode parses a mode string, defaulting to ModeDelay
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDelay, "":
		return ModeDelay, nil
	case ModeCongestion:
		return ModeCongestion, nil
	default:
		return "", fmt.Errorf("invalid mode %q, must be 'delay' or 'congestion'", s)
	}
}

// ScoredEdge is one edge of an optimization solution
type ScoredEdge struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Length     float64 `json:"length"`
	Capacity   float64 `json:"capacity"`
	Flow       float64 `json:"flow"`
	Congestion float64 `json:"congestion"`
	Delay      float64 `json:"delay"`
}

// Weights is the objective weighting between congestion and delay
type Weights struct {
	Congestion float64 `json:"congestion"`
	Delay      float64 `json:"delay"`
}

// NormalizeWeights clamps both weights at 0 and scales them to sum to 1.
// When both are zero the weighting is balanced.
func NormalizeWeights(congestion, delay float64) Weights {
	c := math.Max(0, congestion)
	d := math.Max(0, delay)
	s := c + d
	if s <= 0 {
		return Weights{Congestion: 0.5, Delay: 0.5}
	}
	return Weights{Congestion: c / s, Delay: d / s}
}

// Solution is one scored assignment for a given weighting
type Solution struct {
	CapacityScale float64      `json:"capacity_scale"`
	Congestion    float64      `json:"congestion"`
	Delay         float64      `json:"delay"`
	Objective     float64      `json:"objective"`
	Weights       Weights      `json:"weights"`
	Edges         []ScoredEdge `json:"edges"`
}

// ParetoResponse holds the two Pareto endpoints returned by the optimizer
type ParetoResponse struct {
	CongestionOptimal Solution `json:"congestion_optimal"`
	DelayOptimal      Solution `json:"delay_optimal"`
}

// Solution returns the solution for the given mode
func (p *ParetoResponse) Solution(mode Mode) *Solution {
	if p == nil {
		return nil
	}
	if mode == ModeCongestion {
		return &p.CongestionOptimal
	}
	return &p.DelayOptimal
}

// Cases returns the solutions keyed by their case name, as used for export
func (p *ParetoResponse) Cases() map[string]Solution {
	if p == nil {
		return nil
	}
	return map[string]Solution{
		"congestion_optimal": p.CongestionOptimal,
		"delay_optimal":      p.DelayOptimal,
	}
}

// DemandMode describes how demand scaling is interpreted
type DemandMode string

const (
	DemandRelative DemandMode = "relative"
	DemandAbsolute DemandMode = "absolute"
)

// Scenario labels the operating scenario sent to the optimizer
type Scenario string

const (
	ScenarioNormal   Scenario = "Normal"
	ScenarioPeak     Scenario = "Peak"
	ScenarioIncident Scenario = "Incident"
)

// OptimizeRequest is the request body sent to the optimization provider
type OptimizeRequest struct {
	Weights       Weights    `json:"weights"`
	CapacityScale float64    `json:"capacity_scale"`
	DemandScale   float64    `json:"demand_scale"`
	DemandMode    DemandMode `json:"demand_mode"`
	Scenario      Scenario   `json:"scenario"`
}

// DefaultOptimizeRequest returns the balanced request used when no settings were applied
func DefaultOptimizeRequest() OptimizeRequest {
	return OptimizeRequest{
		Weights:       Weights{Congestion: 0.5, Delay: 0.5},
		CapacityScale: 2.0,
		DemandScale:   1.0,
		DemandMode:    DemandRelative,
		Scenario:      ScenarioNormal,
	}
}

// Validate checks the request before it is sent
func (r OptimizeRequest) Validate() error {
	if r.Weights.Congestion < 0 || r.Weights.Delay < 0 {
		return fmt.Errorf("weights must be non-negative")
	}
	if sum := r.Weights.Congestion + r.Weights.Delay; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1, got %.4f", sum)
	}
	if r.CapacityScale <= 0 {
		return fmt.Errorf("capacity_scale must be positive")
	}
	if r.DemandScale <= 0 {
		return fmt.Errorf("demand_scale must be positive")
	}
	switch r.DemandMode {
	case DemandRelative, DemandAbsolute:
	default:
		return fmt.Errorf("invalid demand_mode %q", r.DemandMode)
	}
	switch r.Scenario {
	case ScenarioNormal, ScenarioPeak, ScenarioIncident:
	default:
		return fmt.Errorf("invalid scenario %q", r.Scenario)
	}
	return nil
}
