package overlay

import (
	"math"
	"sort"
	"sync"

	"opsmap/internal/domain"
)

// Level is the utilization band of an edge
type Level string

const (
	LevelNone     Level = "none" // No metric for this link
	LevelNominal  Level = "nominal"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Palette holds the colors used for each level
type Palette struct {
	Neutral  string `json:"neutral" yaml:"neutral"`
	Nominal  string `json:"nominal" yaml:"nominal"`
	Warning  string `json:"warning" yaml:"warning"`
	Critical string `json:"critical" yaml:"critical"`
}

// DefaultPalette returns the slate/amber/red palette
func DefaultPalette() Palette {
	return Palette{
		Neutral:  "#cbd5e1",
		Nominal:  "#94a3b8",
		Warning:  "#f59e0b",
		Critical: "#dc2626",
	}
}

// Color returns the palette color for a level
func (p Palette) Color(level Level) string {
	switch level {
	case LevelCritical:
		return p.Critical
	case LevelWarning:
		return p.Warning
	case LevelNominal:
		return p.Nominal
	default:
		return p.Neutral
	}
}

// Thresholds are utilization percentages, inclusive at the boundary
type Thresholds struct {
	Warning  float64 `json:"warning" yaml:"warning"`
	Critical float64 `json:"critical" yaml:"critical"`
}

// DefaultThresholds returns warning at 80% and critical at 100%
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 80, Critical: 100}
}

// Classify maps a utilization percentage to a level
func (t Thresholds) Classify(utilization float64) Level {
	switch {
	case utilization >= t.Critical:
		return LevelCritical
	case utilization >= t.Warning:
		return LevelWarning
	default:
		return LevelNominal
	}
}

// Utilization returns flow/capacity as a percentage.
// A zero or NaN capacity yields 0.
func Utilization(e domain.ScoredEdge) float64 {
	if e.Capacity == 0 || math.IsNaN(e.Capacity) {
		return 0
	}
	return e.Flow / e.Capacity * 100
}

// Summary aggregates a solution's scored edges
type Summary struct {
	MaxUtilization  float64 `json:"max_utilization"`
	TotalFlow       float64 `json:"total_flow"`
	TotalCongestion float64 `json:"total_congestion"`
	TotalDelay      float64 `json:"total_delay"`
}

// Summarize computes the aggregates. MaxUtilization is floored at 0.
func Summarize(edges []domain.ScoredEdge) Summary {
	var s Summary
	for _, e := range edges {
		s.MaxUtilization = math.Max(s.MaxUtilization, Utilization(e))
		s.TotalFlow += e.Flow
		s.TotalCongestion += e.Congestion
		s.TotalDelay += e.Delay
	}
	return s
}

// SolutionSummary is the prediction summary shown beside the operations map
type SolutionSummary struct {
	Summary
	CapacityScale float64 `json:"capacity_scale"`
	Objective     float64 `json:"objective"`
	Delay         float64 `json:"delay"`
	Congestion    float64 `json:"congestion"`
	MaxLevel      Level   `json:"max_level"`
}

// EdgeRow is one row of the dispatch table
type EdgeRow struct {
	domain.ScoredEdge
	Key         EdgeKey `json:"key"`
	Utilization float64 `json:"utilization"`
	Level       Level   `json:"level"`
}

// Link is anything that exposes its two endpoints
type Link interface {
	Endpoints() (source, target any)
}

// Overlay colors links by the utilization of the active solution
type Overlay struct {
	mu         sync.RWMutex
	palette    Palette
	thresholds Thresholds
	solution   *domain.Solution
	index      *Index
	summary    Summary
}

// Option configures an Overlay
type Option func(*Overlay)

// WithPalette overrides the default palette
func WithPalette(p Palette) Option {
	return func(o *Overlay) { o.palette = p }
}

// WithThresholds overrides the default thresholds
func WithThresholds(t Thresholds) Option {
	return func(o *Overlay) { o.thresholds = t }
}

// New creates an overlay for a solution. A nil solution colors every link neutral.
func New(sol *domain.Solution, opts ...Option) *Overlay {
	o := &Overlay{
		palette:    DefaultPalette(),
		thresholds: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.SetSolution(sol)
	return o
}

// SetSolution replaces the active solution and rebuilds the index and summary
func (o *Overlay) SetSolution(sol *domain.Solution) {
	var edges []domain.ScoredEdge
	if sol != nil {
		edges = sol.Edges
	}
	index := BuildIndex(edges)
	summary := Summarize(edges)

	o.mu.Lock()
	o.solution = sol
	o.index = index
	o.summary = summary
	o.mu.Unlock()
}

// Solution returns the active solution, nil when none
func (o *Overlay) Solution() *domain.Solution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.solution
}

// Palette returns the overlay palette
func (o *Overlay) Palette() Palette {
	return o.palette
}

// Metric resolves the scored edge for a link
func (o *Overlay) Metric(link Link) (domain.ScoredEdge, bool) {
	if link == nil {
		return domain.ScoredEdge{}, false
	}
	source, target := link.Endpoints()
	o.mu.RLock()
	idx := o.index
	o.mu.RUnlock()
	return idx.Lookup(source, target)
}

// LevelFor returns the utilization level of a link, LevelNone without data
func (o *Overlay) LevelFor(link Link) Level {
	e, ok := o.Metric(link)
	if !ok {
		return LevelNone
	}
	return o.thresholds.Classify(Utilization(e))
}

// ColorFor returns the link color; links without metric data are neutral
func (o *Overlay) ColorFor(link Link) string {
	return o.palette.Color(o.LevelFor(link))
}

// Summary returns the aggregates of the active solution
func (o *Overlay) Summary() Summary {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.summary
}

// Describe returns the prediction summary, false when no solution is active
func (o *Overlay) Describe() (SolutionSummary, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.solution == nil {
		return SolutionSummary{}, false
	}
	return SolutionSummary{
		Summary:       o.summary,
		CapacityScale: o.solution.CapacityScale,
		Objective:     o.solution.Objective,
		Delay:         o.solution.Delay,
		Congestion:    o.solution.Congestion,
		MaxLevel:      o.thresholds.Classify(o.summary.MaxUtilization),
	}, true
}

// Ranked returns the active solution's edges sorted by utilization, highest first
func (o *Overlay) Ranked() []EdgeRow {
	o.mu.RLock()
	sol := o.solution
	o.mu.RUnlock()
	if sol == nil {
		return []EdgeRow{}
	}

	rows := make([]EdgeRow, 0, len(sol.Edges))
	for _, e := range sol.Edges {
		u := Utilization(e)
		rows = append(rows, EdgeRow{
			ScoredEdge:  e,
			Key:         Key(e.Source, e.Target),
			Utilization: u,
			Level:       o.thresholds.Classify(u),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Utilization > rows[j].Utilization
	})
	return rows
}
