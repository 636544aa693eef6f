package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"opsmap/internal/layout"
	"opsmap/internal/render"
	"opsmap/internal/view"
)

// ErrViewNotFound is returned for unknown or closed view ids
var ErrViewNotFound = errors.New("view not found")

// ViewInfo describes an open view
type ViewInfo struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Snapshot  view.Snapshot `json:"snapshot"`
}

type viewSession struct {
	id         string
	seq        uint64
	created    time.Time
	controller *view.Controller
	cancel     context.CancelFunc
}

// ViewService hosts the interactive map views
type ViewService struct {
	ops       *OperationsService
	eventBus  *EventBus
	viewCfg   view.Config
	layoutCfg layout.Config
	viewOpts  []view.Option

	mu    sync.RWMutex
	views map[string]*viewSession
	seq   uint64
}

// NewViewService creates the service. Extra options are applied to every
// controller it creates.
func NewViewService(ops *OperationsService, eventBus *EventBus, viewCfg view.Config, layoutCfg layout.Config, opts ...view.Option) *ViewService {
	return &ViewService{
		ops:       ops,
		eventBus:  eventBus,
		viewCfg:   viewCfg,
		layoutCfg: layoutCfg,
		viewOpts:  opts,
		views:     make(map[string]*viewSession),
	}
}

// Open creates a view showing the current network. The layout runs until
// the view is closed or ctx is cancelled.
func (s *ViewService) Open(ctx context.Context) (string, *view.Controller) {
	engine := layout.New(s.layoutCfg)

	opts := []view.Option{
		view.WithNodeColor(render.TypeColor),
		view.WithLinkColor(s.ops.Overlay().ColorFor),
	}
	opts = append(opts, s.viewOpts...)
	ctrl := view.NewController(engine, s.viewCfg, opts...)
	ctrl.SetGraph(s.ops.Graph())

	runCtx, cancel := context.WithCancel(ctx)
	sess := &viewSession{
		id:         uuid.NewString(),
		created:    time.Now(),
		controller: ctrl,
		cancel:     cancel,
	}
	go engine.Run(runCtx)

	s.mu.Lock()
	s.seq++
	sess.seq = s.seq
	s.views[sess.id] = sess
	s.mu.Unlock()

	s.eventBus.Publish(Event{
		Type:    EventViewOpened,
		Payload: map[string]string{"view_id": sess.id},
	})
	return sess.id, ctrl
}

// Get returns the controller of an open view
func (s *ViewService) Get(id string) (*view.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	return sess.controller, nil
}

// Info describes an open view
func (s *ViewService) Info(id string) (ViewInfo, error) {
	s.mu.RLock()
	sess, ok := s.views[id]
	s.mu.RUnlock()
	if !ok {
		return ViewInfo{}, ErrViewNotFound
	}
	return ViewInfo{
		ID:        sess.id,
		CreatedAt: sess.created,
		Snapshot:  sess.controller.Snapshot(),
	}, nil
}

// List returns the ids of open views, oldest first
func (s *ViewService) List() []string {
	s.mu.RLock()
	sessions := make([]*viewSession, 0, len(s.views))
	for _, sess := range s.views {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].seq < sessions[j].seq
	})
	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.id
	}
	return ids
}

// Close tears a view down. Refreshes still in flight for it are dropped.
func (s *ViewService) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.views[id]
	delete(s.views, id)
	s.mu.Unlock()
	if !ok {
		return ErrViewNotFound
	}

	sess.cancel()
	sess.controller.Close()
	s.eventBus.Publish(Event{
		Type:    EventViewClosed,
		Payload: map[string]string{"view_id": id},
	})
	return nil
}

// CloseAll tears every view down
func (s *ViewService) CloseAll() {
	for _, id := range s.List() {
		_ = s.Close(id)
	}
}

// Refresh pushes the current network to every open view and returns how
// many views accepted it
func (s *ViewService) Refresh() int {
	graph := s.ops.Graph()

	s.mu.RLock()
	controllers := make([]*view.Controller, 0, len(s.views))
	for _, sess := range s.views {
		controllers = append(controllers, sess.controller)
	}
	s.mu.RUnlock()

	n := 0
	for _, c := range controllers {
		// A view closed since the snapshot above discards the data
		if c.SetGraph(graph) {
			n++
		}
	}
	return n
}

// Run refreshes views whenever a network is loaded. It blocks until ctx is
// cancelled.
func (s *ViewService) Run(ctx context.Context) {
	events := make(chan Event, 16)
	s.eventBus.Subscribe(events)
	defer s.eventBus.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Type != EventNetworkLoaded {
				continue
			}
			if n := s.Refresh(); n > 0 {
				log.Printf("Pushed network to %d views", n)
			}
		}
	}
}
