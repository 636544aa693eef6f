package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"opsmap/internal/domain"
	"opsmap/internal/repository"
	"opsmap/internal/view"
)

// settingsKey is the metadata key the settings are persisted under
const settingsKey = "settings"

// DefaultDebounce is the auto-recompute delay after the last change
const DefaultDebounce = 450 * time.Millisecond

// Settings are the optimization controls. Weights hold the raw slider
// values; Request normalizes them.
type Settings struct {
	Weights       domain.Weights    `json:"weights"`
	CapacityScale float64           `json:"capacity_scale"`
	DemandScale   float64           `json:"demand_scale"`
	DemandMode    domain.DemandMode `json:"demand_mode"`
	Scenario      domain.Scenario   `json:"scenario"`
	AutoRecompute bool              `json:"auto_recompute"`
}

// DefaultSettings returns balanced weights, capacity x2 and the normal
// scenario
func DefaultSettings() Settings {
	req := domain.DefaultOptimizeRequest()
	return Settings{
		Weights:       req.Weights,
		CapacityScale: req.CapacityScale,
		DemandScale:   req.DemandScale,
		DemandMode:    req.DemandMode,
		Scenario:      req.Scenario,
	}
}

// Request returns the optimizer request for these settings
func (s Settings) Request() domain.OptimizeRequest {
	return domain.OptimizeRequest{
		Weights:       domain.NormalizeWeights(s.Weights.Congestion, s.Weights.Delay),
		CapacityScale: s.CapacityScale,
		DemandScale:   s.DemandScale,
		DemandMode:    s.DemandMode,
		Scenario:      s.Scenario,
	}
}

// Validate checks the settings
func (s Settings) Validate() error {
	if s.Weights.Congestion < 0 || s.Weights.Delay < 0 {
		return fmt.Errorf("weights must be non-negative")
	}
	return s.Request().Validate()
}

// Preset names a weighting shortcut
type Preset string

const (
	PresetBalanced      Preset = "balanced"
	PresetMinDelay      Preset = "min_delay"
	PresetMinCongestion Preset = "min_congestion"
)

// Weights returns the weighting of the preset
func (p Preset) Weights() (domain.Weights, error) {
	switch p {
	case PresetBalanced:
		return domain.Weights{Congestion: 0.5, Delay: 0.5}, nil
	case PresetMinDelay:
		return domain.Weights{Congestion: 0, Delay: 1}, nil
	case PresetMinCongestion:
		return domain.Weights{Congestion: 1, Delay: 0}, nil
	default:
		return domain.Weights{}, fmt.Errorf("unknown preset %q", p)
	}
}

// ActiveMode picks the Pareto endpoint matching the larger weight.
// Ties favor delay.
func ActiveMode(w domain.Weights) domain.Mode {
	n := domain.NormalizeWeights(w.Congestion, w.Delay)
	if n.Delay >= n.Congestion {
		return domain.ModeDelay
	}
	return domain.ModeCongestion
}

// SettingsService holds the optimization settings and drives
// auto-recompute
type SettingsService struct {
	ops      *OperationsService
	repo     repository.Repository
	eventBus *EventBus
	sched    view.Scheduler
	debounce time.Duration

	mu       sync.Mutex
	defaults Settings
	settings Settings
	timer    view.Timer
	gen      uint64
	closed   bool
}

// NewSettingsService creates the service. A nil scheduler uses the runtime
// timer; a non-positive debounce uses DefaultDebounce.
func NewSettingsService(ops *OperationsService, repo repository.Repository, eventBus *EventBus, debounce time.Duration, sched view.Scheduler) *SettingsService {
	if sched == nil {
		sched = view.RealScheduler
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &SettingsService{
		ops:      ops,
		repo:     repo,
		eventBus: eventBus,
		sched:    sched,
		debounce: debounce,
		defaults: DefaultSettings(),
		settings: DefaultSettings(),
	}
}

// SetDefaults replaces the settings Reset returns to and makes them
// current. Call it before Restore so persisted settings win.
func (s *SettingsService) SetDefaults(d Settings) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = d
	s.settings = d
	return nil
}

// Restore loads persisted settings. Missing settings keep the defaults.
func (s *SettingsService) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	var stored Settings
	if err := s.repo.GetMetadata(ctx, settingsKey, &stored); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := stored.Validate(); err != nil {
		log.Printf("Ignoring stored settings: %v", err)
		return nil
	}

	s.mu.Lock()
	s.settings = stored
	s.mu.Unlock()
	return nil
}

// Get returns the current settings
func (s *SettingsService) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Update replaces the settings and, with auto-recompute on, schedules a
// recompute after the debounce
func (s *SettingsService) Update(ctx context.Context, next Settings) (Settings, error) {
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	s.apply(ctx, next)
	return next, nil
}

// ApplyPreset sets the weights of a preset, leaving the other settings
func (s *SettingsService) ApplyPreset(ctx context.Context, p Preset) (Settings, error) {
	w, err := p.Weights()
	if err != nil {
		return Settings{}, err
	}
	next := s.Get()
	next.Weights = w
	s.apply(ctx, next)
	return next, nil
}

// Reset restores the defaults and cancels any pending recompute
func (s *SettingsService) Reset(ctx context.Context) Settings {
	s.mu.Lock()
	def := s.defaults
	s.mu.Unlock()
	s.apply(ctx, def)
	return def
}

func (s *SettingsService) apply(ctx context.Context, next Settings) {
	s.mu.Lock()
	s.settings = next
	s.cancelLocked()
	if next.AutoRecompute && !s.closed {
		gen := s.gen
		s.timer = s.sched.AfterFunc(s.debounce, func() { s.fire(gen) })
	}
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SetMetadata(ctx, settingsKey, next); err != nil {
			log.Printf("Failed to persist settings: %v", err)
		}
	}
	s.eventBus.Publish(Event{Type: EventSettingsChanged, Payload: next})
}

// cancelLocked stops the pending timer and invalidates its callback
func (s *SettingsService) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *SettingsService) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	req := s.settings.Request()
	s.mu.Unlock()

	_, err := s.ops.Recompute(context.Background(), req)
	switch {
	case errors.Is(err, ErrBusy):
		// Another run is in flight; retry so the latest settings still get sent
		s.mu.Lock()
		if gen == s.gen && !s.closed && s.timer == nil {
			s.timer = s.sched.AfterFunc(s.debounce, func() { s.fire(gen) })
		}
		s.mu.Unlock()
	case err != nil:
		log.Printf("Auto-recompute failed: %v", err)
	}
}

// Recompute runs the optimizer now with the current settings
func (s *SettingsService) Recompute(ctx context.Context) (*domain.ParetoResponse, error) {
	s.mu.Lock()
	s.cancelLocked()
	req := s.settings.Request()
	s.mu.Unlock()

	return s.ops.Recompute(ctx, req)
}

// ActiveMode returns the mode matching the current weights
func (s *SettingsService) ActiveMode() domain.Mode {
	return ActiveMode(s.Get().Weights)
}

// ActiveSolution returns the solution matching the current weights, nil
// before any run
func (s *SettingsService) ActiveSolution() *domain.Solution {
	return s.ops.Solutions().Solution(s.ActiveMode())
}

// Close cancels any pending recompute
func (s *SettingsService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelLocked()
}
