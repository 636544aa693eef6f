package view

import (
	"errors"
	"log"
	"sync"
	"time"
)

// Phase is the fit state of the current dataset
type Phase string

const (
	PhaseUnsettled Phase = "unsettled"
	PhaseFitted    Phase = "fitted"
)

// Fitter performs the recenter-then-fit camera action
type Fitter interface {
	CenterAndFit(d time.Duration) error
}

// StabilizerConfig holds the fit protocol timings
type StabilizerConfig struct {
	FitDuration time.Duration
	RefitDelay  time.Duration
}

// DefaultStabilizerConfig fits over 700ms with a single refit 300ms later
func DefaultStabilizerConfig() StabilizerConfig {
	return StabilizerConfig{
		FitDuration: 700 * time.Millisecond,
		RefitDelay:  300 * time.Millisecond,
	}
}

// Stabilizer issues one authoritative fit per dataset.
//
// A dataset is identified by its node and edge counts. A change in either
// count returns the stabilizer to PhaseUnsettled. The first settle signal
// after that fits the camera, moves to PhaseFitted and schedules one
// corrective refit. Later settle signals for the same dataset are ignored.
type Stabilizer struct {
	mu     sync.Mutex
	fitter Fitter
	sched  Scheduler
	cfg    StabilizerConfig

	phase    Phase
	observed bool
	nodes    int
	edges    int
	gen      uint64
	refit    Timer
	stopped  bool
	// missed is set when the settle fit found no viewport to fit into
	missed bool
}

// NewStabilizer creates a stabilizer in PhaseUnsettled
func NewStabilizer(fitter Fitter, sched Scheduler, cfg StabilizerConfig) *Stabilizer {
	if sched == nil {
		sched = RealScheduler
	}
	return &Stabilizer{
		fitter: fitter,
		sched:  sched,
		cfg:    cfg,
		phase:  PhaseUnsettled,
	}
}

// Observe records the counts of a freshly set dataset. It returns true when
// the dataset is new, in which case the stabilizer is back in
// PhaseUnsettled and any pending refit is cancelled.
func (s *Stabilizer) Observe(nodes, edges int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.observed && s.nodes == nodes && s.edges == edges {
		return false
	}
	s.observed = true
	s.nodes = nodes
	s.edges = edges
	s.phase = PhaseUnsettled
	s.missed = false
	s.gen++
	s.cancelRefitLocked()
	return true
}

// Settle handles the engine's cooldown signal. It reports whether this call
// performed the transition to PhaseFitted.
func (s *Stabilizer) Settle() bool {
	s.mu.Lock()
	if s.stopped || s.phase == PhaseFitted {
		s.mu.Unlock()
		return false
	}
	s.phase = PhaseFitted
	gen := s.gen
	s.cancelRefitLocked()
	s.refit = s.sched.AfterFunc(s.cfg.RefitDelay, func() {
		s.mu.Lock()
		current := !s.stopped && s.gen == gen
		s.mu.Unlock()
		if current {
			s.markFit(gen, s.fit(s.cfg.FitDuration))
		}
	})
	s.mu.Unlock()

	s.markFit(gen, s.fit(s.cfg.FitDuration))
	return true
}

// Resume runs the settle fit that was skipped for want of a viewport. It
// reports whether a fit was attempted.
func (s *Stabilizer) Resume() bool {
	s.mu.Lock()
	if s.stopped || s.phase != PhaseFitted || !s.missed {
		s.mu.Unlock()
		return false
	}
	s.missed = false
	gen := s.gen
	s.mu.Unlock()

	s.markFit(gen, s.fit(s.cfg.FitDuration))
	return true
}

func (s *Stabilizer) markFit(gen uint64, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.missed = !ready
	}
}

// PreRender runs before each frame. While unsettled, with data and a known
// viewport width, it snaps the camera onto the graph so warm-up frames are
// never drawn off screen. It does not change the phase.
func (s *Stabilizer) PreRender(hasNodes bool, width float64) bool {
	s.mu.Lock()
	active := !s.stopped && s.phase == PhaseUnsettled && hasNodes && width > 0
	s.mu.Unlock()
	if !active {
		return false
	}
	s.fit(0)
	return true
}

// Phase returns the current phase
func (s *Stabilizer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Fitted reports whether the current dataset has been fitted once
func (s *Stabilizer) Fitted() bool {
	return s.Phase() == PhaseFitted
}

// Stop cancels the pending refit and ignores all further signals
func (s *Stabilizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelRefitLocked()
}

func (s *Stabilizer) cancelRefitLocked() {
	if s.refit != nil {
		s.refit.Stop()
		s.refit = nil
	}
}

// fit reports false only when the engine was not ready to fit
func (s *Stabilizer) fit(d time.Duration) bool {
	err := safeCamera(func() error { return s.fitter.CenterAndFit(d) })
	if errors.Is(err, ErrNotReady) {
		return false
	}
	if err != nil {
		log.Printf("Fit skipped: %v", err)
	}
	return true
}
