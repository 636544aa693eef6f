package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"opsmap/internal/codec"
	"opsmap/internal/domain"
	"opsmap/internal/overlay"
	"opsmap/internal/provider"
	"opsmap/internal/repository"
)

var (
	// ErrBusy is returned while another optimizer request is in flight
	ErrBusy = errors.New("optimization already running")
	// ErrNoSolution is returned when results are requested before any run
	ErrNoSolution = errors.New("no optimization results available")
	// ErrUploadUnsupported is returned when the network provider cannot
	// accept uploads
	ErrUploadUnsupported = errors.New("network provider does not accept uploads")
	// ErrInvalidRequest wraps optimizer request validation failures
	ErrInvalidRequest = errors.New("invalid request")
)

// Status is the load state shown beside the operations map
type Status struct {
	Loading     bool        `json:"loading"`
	Computing   bool        `json:"computing"`
	Error       string      `json:"error,omitempty"`
	Mode        domain.Mode `json:"mode"`
	Fingerprint string      `json:"fingerprint,omitempty"`
	LoadedAt    time.Time   `json:"loaded_at,omitempty"`
	HasNetwork  bool        `json:"has_network"`
	HasSolution bool        `json:"has_solution"`
}

// OperationsService owns the network snapshot, the optimizer results and
// the overlay for the selected mode
type OperationsService struct {
	network   provider.NetworkProvider
	optimizer provider.Optimizer
	repo      repository.Repository
	eventBus  *EventBus
	overlay   *overlay.Overlay
	now       func() time.Time

	mu       sync.RWMutex
	snapshot *domain.Network
	graph    domain.RenderGraph
	pareto   *domain.ParetoResponse
	request  domain.OptimizeRequest
	mode     domain.Mode
	loading  bool
	lastErr  string
	loadedAt time.Time

	busy atomic.Bool
}

// NewOperationsService creates the service. repo may be nil, in which case
// runs are not recorded.
func NewOperationsService(network provider.NetworkProvider, optimizer provider.Optimizer, repo repository.Repository, eventBus *EventBus, opts ...overlay.Option) *OperationsService {
	return &OperationsService{
		network:   network,
		optimizer: optimizer,
		repo:      repo,
		eventBus:  eventBus,
		overlay:   overlay.New(nil, opts...),
		now:       time.Now,
		graph:     domain.NormalizeNetwork(nil),
		request:   domain.DefaultOptimizeRequest(),
		mode:      domain.ModeDelay,
	}
}

// Load fetches the network and the optimizer results together.
//
// On failure the previous network and results are kept and the error
// message is recorded in Status.
func (s *OperationsService) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	req := s.request
	s.mu.Unlock()

	network, pareto, err := provider.FetchAll(ctx, s.network, s.optimizer, req)
	if err != nil {
		s.fail(err, EventLoadFailed)
		return err
	}

	s.mu.Lock()
	s.loading = false
	s.setNetworkLocked(network)
	s.pareto = pareto
	s.overlay.SetSolution(pareto.Solution(s.mode))
	s.mu.Unlock()

	s.record(ctx, req, pareto, network.Fingerprint())

	log.Printf("Loaded network %s: %d nodes, %d edges", network.Fingerprint(), len(network.Nodes), len(network.Edges))
	s.eventBus.Publish(Event{
		Type:    EventNetworkLoaded,
		Payload: network.Summary(),
	})
	return nil
}

// ReloadNetwork refetches only the network, keeping the current results
func (s *OperationsService) ReloadNetwork(ctx context.Context) error {
	network, err := s.network.FetchNetwork(ctx)
	if err != nil {
		s.fail(err, EventLoadFailed)
		return err
	}

	s.mu.Lock()
	changed := s.snapshot == nil || s.snapshot.Fingerprint() != network.Fingerprint()
	s.lastErr = ""
	s.setNetworkLocked(network)
	s.mu.Unlock()

	if !changed {
		return nil
	}
	log.Printf("Reloaded network %s", network.Fingerprint())
	s.eventBus.Publish(Event{
		Type:    EventNetworkLoaded,
		Payload: network.Summary(),
	})
	return nil
}

func (s *OperationsService) setNetworkLocked(network *domain.Network) {
	s.snapshot = network
	s.graph = domain.NormalizeNetwork(network)
	s.loadedAt = s.now()
}

func (s *OperationsService) fail(err error, event EventType) {
	msg := err.Error()
	s.mu.Lock()
	s.loading = false
	s.lastErr = msg
	s.mu.Unlock()

	log.Printf("Failed to load operations data: %v", err)
	s.eventBus.Publish(Event{
		Type:    event,
		Payload: map[string]string{"error": msg},
	})
}

// Status returns the current load state
func (s *OperationsService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Loading:     s.loading,
		Computing:   s.busy.Load(),
		Error:       s.lastErr,
		Mode:        s.mode,
		LoadedAt:    s.loadedAt,
		HasNetwork:  s.snapshot != nil,
		HasSolution: s.pareto != nil,
	}
	if s.snapshot != nil {
		st.Fingerprint = s.snapshot.Fingerprint()
	}
	return st
}

// Network returns the loaded snapshot, nil before the first load
func (s *OperationsService) Network() *domain.Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Graph returns the renderer input for the loaded network
func (s *OperationsService) Graph() domain.RenderGraph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// Topology returns the structural summary, restricted to the given node
// types when types is non-empty
func (s *OperationsService) Topology(types map[domain.NodeType]bool) domain.TopologySummary {
	s.mu.RLock()
	network := s.snapshot
	s.mu.RUnlock()
	if network == nil {
		return domain.TopologySummary{}
	}
	if len(types) == 0 {
		return network.Summary()
	}
	return network.Filter(types).Summary()
}

// Solutions returns both Pareto endpoints, nil before the first run
func (s *OperationsService) Solutions() *domain.ParetoResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pareto
}

// Mode returns the selected solution
func (s *OperationsService) Mode() domain.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode selects which Pareto endpoint the overlay shows
func (s *OperationsService) SetMode(mode domain.Mode) error {
	if _, err := domain.ParseMode(string(mode)); err != nil {
		return err
	}

	s.mu.Lock()
	s.mode = mode
	s.overlay.SetSolution(s.pareto.Solution(mode))
	s.mu.Unlock()

	s.eventBus.Publish(Event{
		Type:    EventModeChanged,
		Payload: map[string]string{"mode": string(mode)},
	})
	return nil
}

// Overlay returns the metric overlay of the selected solution
func (s *OperationsService) Overlay() *overlay.Overlay {
	return s.overlay
}

// Summary returns the prediction summary of the selected solution
func (s *OperationsService) Summary() (overlay.SolutionSummary, bool) {
	return s.overlay.Describe()
}

// Links returns the dispatch table, busiest links first
func (s *OperationsService) Links() []overlay.EdgeRow {
	return s.overlay.Ranked()
}

// Recompute asks the optimizer for new results. Only one request runs at a
// time; a second caller gets ErrBusy.
func (s *OperationsService) Recompute(ctx context.Context, req domain.OptimizeRequest) (*domain.ParetoResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	s.eventBus.Publish(Event{Type: EventRecomputeStarted, Payload: req})

	pareto, err := s.optimizer.Pareto(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		log.Printf("Failed to recompute: %v", err)
		s.eventBus.Publish(Event{
			Type:    EventRecomputeFailed,
			Payload: map[string]string{"error": err.Error()},
		})
		return nil, err
	}

	s.mu.Lock()
	s.lastErr = ""
	s.request = req
	s.pareto = pareto
	s.overlay.SetSolution(pareto.Solution(s.mode))
	fingerprint := ""
	if s.snapshot != nil {
		fingerprint = s.snapshot.Fingerprint()
	}
	s.mu.Unlock()

	s.record(ctx, req, pareto, fingerprint)

	s.eventBus.Publish(Event{Type: EventRecomputeFinished, Payload: req})
	return pareto, nil
}

// record stores a run; failures are logged and never fail the caller
func (s *OperationsService) record(ctx context.Context, req domain.OptimizeRequest, pareto *domain.ParetoResponse, fingerprint string) {
	if s.repo == nil || pareto == nil {
		return
	}
	run := &domain.Run{
		CreatedAt:          s.now().UTC(),
		NetworkFingerprint: fingerprint,
		Request:            req,
		Response:           *pareto,
	}
	if err := s.repo.SaveRun(ctx, run); err != nil {
		log.Printf("Failed to record run: %v", err)
	}
}

// Runs lists recorded runs, newest first
func (s *OperationsService) Runs(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if s.repo == nil {
		return []domain.RunSummary{}, nil
	}
	return s.repo.ListRuns(ctx, limit)
}

// Upload hands a network file to the provider and reloads the network
func (s *OperationsService) Upload(ctx context.Context, filename string, r io.Reader) (*provider.UploadResult, error) {
	up, ok := s.network.(provider.Uploader)
	if !ok {
		return nil, ErrUploadUnsupported
	}
	res, err := up.UploadNetwork(ctx, filename, r)
	if err != nil {
		return nil, err
	}
	if err := s.ReloadNetwork(ctx); err != nil {
		return res, fmt.Errorf("uploaded but failed to reload: %w", err)
	}
	return res, nil
}

// ExportResults writes the current results as CSV and returns the download
// filename. Without results in memory the latest recorded run is used.
func (s *OperationsService) ExportResults(ctx context.Context, w io.Writer) (string, error) {
	pareto := s.Solutions()
	if pareto == nil && s.repo != nil {
		run, err := s.repo.LatestRun(ctx)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
		if run != nil {
			pareto = &run.Response
		}
	}
	if pareto == nil {
		return "", ErrNoSolution
	}
	if err := codec.ExportResults(pareto, w); err != nil {
		return "", err
	}
	return codec.ResultsFilename(s.now()), nil
}

// ExportNetwork writes the loaded network in the given codec format
func (s *OperationsService) ExportNetwork(format string, w io.Writer) error {
	network := s.Network()
	if network == nil {
		network = domain.NewNetwork()
	}
	c, err := codec.ForFormat(format)
	if err != nil {
		return err
	}
	return c.Export(network, w)
}
