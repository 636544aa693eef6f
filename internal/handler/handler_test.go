package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsmap/internal/domain"
	"opsmap/internal/layout"
	"opsmap/internal/repository/sqlite"
	"opsmap/internal/service"
	"opsmap/internal/view"
)

type stubNetwork struct {
	network *domain.Network
	err     error
}

func (s *stubNetwork) FetchNetwork(ctx context.Context) (*domain.Network, error) {
	return s.network, s.err
}

type stubOptimizer struct {
	mu    sync.Mutex
	resp  *domain.ParetoResponse
	err   error
	calls int
}

func (s *stubOptimizer) Pareto(ctx context.Context, req domain.OptimizeRequest) (*domain.ParetoResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.resp, s.err
}

func stations() *domain.Network {
	net := domain.NewNetwork()
	net.AddNode(*domain.NewNode("Depot_West", domain.NodeTypeSource).WithDemand(-300))
	net.AddNode(*domain.NewNode("Kamppi", domain.NodeTypeSink).WithDemand(200))
	net.AddNode(*domain.NewNode("Pasila", domain.NodeTypeSink).WithDemand(100))
	net.AddEdge(*domain.NewEdge("Depot_West", "Kamppi").WithCapacity(100))
	net.AddEdge(*domain.NewEdge("Kamppi", "Pasila").WithCapacity(100))
	return net
}

func pareto() *domain.ParetoResponse {
	return &domain.ParetoResponse{
		CongestionOptimal: domain.Solution{
			Objective: 1,
			Edges: []domain.ScoredEdge{
				{Source: "Depot_West", Target: "Kamppi", Flow: 50, Capacity: 100},
				{Source: "Kamppi", Target: "Pasila", Flow: 60, Capacity: 100},
			},
		},
		DelayOptimal: domain.Solution{
			Objective: 2,
			Edges: []domain.ScoredEdge{
				{Source: "Depot_West", Target: "Kamppi", Flow: 120, Capacity: 100},
				{Source: "Kamppi", Target: "Pasila", Flow: 85, Capacity: 100},
			},
		},
	}
}

type testServer struct {
	ops       *service.OperationsService
	settings  *service.SettingsService
	views     *service.ViewService
	optimizer *stubOptimizer
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)

	bus := service.NewEventBus()
	opt := &stubOptimizer{resp: pareto()}
	ops := service.NewOperationsService(&stubNetwork{network: stations()}, opt, repo, bus)
	settings := service.NewSettingsService(ops, repo, bus, 0, nil)
	views := service.NewViewService(ops, bus, view.DefaultConfig(), layout.DefaultConfig())
	t.Cleanup(func() {
		views.CloseAll()
		settings.Close()
		repo.Close()
	})

	mux := http.NewServeMux()
	NewOperationsHandler(ops).Register(mux)
	NewSettingsHandler(settings).Register(mux)
	NewViewHandler(views).Register(mux)

	return &testServer{
		ops:       ops,
		settings:  settings,
		views:     views,
		optimizer: opt,
		handler:   Chain(mux, Recover, CORS),
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// ============================================================================
// Operations
// ============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestEmptyStateBeforeLoad(t *testing.T) {
	s := newTestServer(t)

	st := decode[service.Status](t, s.do(t, "GET", "/api/status", ""))
	assert.False(t, st.HasNetwork)
	assert.False(t, st.HasSolution)

	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/solution", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/summary", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/download", "").Code)

	w := s.do(t, "GET", "/api/network", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("ETag"))
}

func TestReloadAndNetworkETag(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "POST", "/api/network/reload", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st := decode[service.Status](t, w)
	assert.True(t, st.HasNetwork)
	assert.True(t, st.HasSolution)

	w = s.do(t, "GET", "/api/network", "")
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	r := httptest.NewRequest("GET", "/api/network", nil)
	r.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestTopologySummaryFilter(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ops.Load(context.Background()))

	all := decode[domain.TopologySummary](t, s.do(t, "GET", "/api/topology/summary", ""))
	sinks := decode[domain.TopologySummary](t, s.do(t, "GET", "/api/topology/summary?types=sink", ""))
	assert.Greater(t, all.TotalNodes, sinks.TotalNodes)
	assert.Equal(t, 2, sinks.TotalNodes)
}

func TestPostPareto(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "POST", "/api/pareto", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[domain.ParetoResponse](t, w)
	assert.Equal(t, 2.0, resp.DelayOptimal.Objective)

	w = s.do(t, "POST", "/api/pareto", `{"capacity_scale": -1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, "POST", "/api/pareto", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, s.optimizer.calls)
}

func TestModeSwitch(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ops.Load(context.Background()))

	w := s.do(t, "PUT", "/api/mode", `{"mode": "congestion"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.ModeCongestion, decode[ModeRequest](t, w).Mode)
	assert.Equal(t, domain.ModeCongestion, decode[ModeRequest](t, s.do(t, "GET", "/api/mode", "")).Mode)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "PUT", "/api/mode", `{"mode": "fastest"}`).Code)
}

func TestDownloadCSV(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ops.Load(context.Background()))

	w := s.do(t, "GET", "/api/download", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=")
	assert.True(t, strings.HasPrefix(w.Body.String(), "case,source,target"))
}

func TestExportNetworkFormats(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ops.Load(context.Background()))

	w := s.do(t, "GET", "/api/network/export?format=yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Kamppi")
	assert.Equal(t, "attachment; filename=network.yaml", w.Header().Get("Content-Disposition"))

	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/network/export?format=toml", "").Code)
}

func TestUploadUnsupported(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "network.json")
	require.NoError(t, err)
	part.Write([]byte(`{"nodes": [], "edges": []}`))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest("POST", "/api/upload-network", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/upload-network", "").Code)
}

func TestListRuns(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ops.Load(context.Background()))
	s.do(t, "POST", "/api/pareto", "")

	runs := decode[[]domain.RunSummary](t, s.do(t, "GET", "/api/runs?limit=1", ""))
	assert.Len(t, runs, 1)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/runs?limit=x", "").Code)
}

// ============================================================================
// Settings
// ============================================================================

func TestSettingsEndpoints(t *testing.T) {
	s := newTestServer(t)

	got := decode[service.Settings](t, s.do(t, "GET", "/api/settings", ""))
	assert.Equal(t, service.DefaultSettings(), got)

	w := s.do(t, "PUT", "/api/settings", `{"scenario": "peak"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got = decode[service.Settings](t, w)
	assert.Equal(t, domain.ScenarioPeak, got.Scenario)
	assert.Equal(t, 2.0, got.CapacityScale)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "PUT", "/api/settings", `{"demand_scale": 0}`).Code)

	w = s.do(t, "POST", "/api/settings/preset/min_congestion", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.Weights{Congestion: 1}, decode[service.Settings](t, w).Weights)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/settings/preset/fastest", "").Code)

	active := decode[ActiveResponse](t, s.do(t, "GET", "/api/settings/active", ""))
	assert.Equal(t, domain.ModeCongestion, active.Mode)
	assert.Nil(t, active.Solution)

	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/settings/recompute", "").Code)
	active = decode[ActiveResponse](t, s.do(t, "GET", "/api/settings/active", ""))
	require.NotNil(t, active.Solution)
	assert.Equal(t, 1.0, active.Solution.Objective)

	got = decode[service.Settings](t, s.do(t, "POST", "/api/settings/reset", ""))
	assert.Equal(t, service.DefaultSettings(), got)
}

// ============================================================================
// Views
// ============================================================================

func openView(t *testing.T, s *testServer) service.ViewInfo {
	t.Helper()
	w := s.do(t, "POST", "/api/views", `{"width": 320, "height": 240}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[service.ViewInfo](t, w)
}

func TestViewLifecycle(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ops.Load(context.Background()))

	info := openView(t, s)
	assert.Equal(t, 3, info.Snapshot.Nodes)
	assert.Equal(t, 320.0, info.Snapshot.View.Width)

	ids := decode[[]string](t, s.do(t, "GET", "/api/views", ""))
	assert.Equal(t, []string{info.ID}, ids)

	assert.Equal(t, http.StatusNoContent, s.do(t, "DELETE", "/api/views/"+info.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/views/"+info.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "DELETE", "/api/views/"+info.ID, "").Code)
}

func TestViewCommands(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ops.Load(context.Background()))
	info := openView(t, s)
	base := "/api/views/" + info.ID

	reply := decode[ViewReply](t, s.do(t, "POST", base+"/query", `{"query": "  KAM "}`))
	assert.Equal(t, []string{"Kamppi"}, reply.Matches)
	require.NotNil(t, reply.Snapshot)

	reply = decode[ViewReply](t, s.do(t, "POST", base+"/key", `{"key": "Enter"}`))
	assert.Equal(t, "Kamppi", reply.Selected)

	reply = decode[ViewReply](t, s.do(t, "POST", base+"/pick", `{"id": "Nowhere"}`))
	assert.False(t, reply.Picked)

	reply = decode[ViewReply](t, s.do(t, "POST", base+"/reset", ""))
	assert.Empty(t, reply.Snapshot.Search.Selected)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", base+"/resize", `{"width": 0}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", base+"/teleport", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "POST", "/api/views/missing/query", "").Code)
}

func TestViewFrame(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ops.Load(context.Background()))

	// Without a viewport there is nothing to draw
	w := s.do(t, "POST", "/api/views", "")
	require.Equal(t, http.StatusCreated, w.Code)
	bare := decode[service.ViewInfo](t, w)
	assert.Equal(t, http.StatusConflict, s.do(t, "GET", "/api/views/"+bare.ID+"/frame.png", "").Code)

	info := openView(t, s)
	w = s.do(t, "GET", "/api/views/"+info.ID+"/frame.png", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())
}

func TestViewWebsocket(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.ops.Load(context.Background()))
	info := openView(t, s)

	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/views/" + info.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ViewCommand{Type: "query", Query: "pas"}))
	reply := readReply(t, conn, "query")
	assert.Equal(t, []string{"Pasila"}, reply.Matches)

	require.NoError(t, conn.WriteJSON(ViewCommand{Type: "bogus"}))
	reply = readReply(t, conn, "error")
	assert.Contains(t, reply.Error, "unknown command")

	require.NoError(t, conn.WriteJSON(ViewCommand{Type: "ping"}))
	readReply(t, conn, "pong")
}

func TestViewWebsocketReadDeadline(t *testing.T) {
	defer func(d time.Duration) { pongWait = d }(pongWait)
	pongWait = 200 * time.Millisecond

	s := newTestServer(t)
	require.NoError(t, s.ops.Load(context.Background()))
	info := openView(t, s)
	srv := httptest.NewServer(s.handler)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/views/" + info.ID + "/ws"

	t.Run("pongs keep the socket open", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		for i := 0; i < 6; i++ {
			time.Sleep(100 * time.Millisecond)
			require.NoError(t, conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second)))
		}
		require.NoError(t, conn.WriteJSON(ViewCommand{Type: "ping"}))
		readReply(t, conn, "pong")
	})

	t.Run("silent peer is dropped", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				var netErr interface{ Timeout() bool }
				if errors.As(err, &netErr) {
					assert.False(t, netErr.Timeout(), "server should close first")
				}
				return
			}
		}
	})
}

// readReply skips periodic snapshots until a reply of the wanted type
func readReply(t *testing.T, conn *websocket.Conn, typ string) ViewReply {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var reply ViewReply
		require.NoError(t, conn.ReadJSON(&reply))
		if reply.Type == typ {
			return reply
		}
	}
}

func TestViewWebsocketUnknownView(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/views/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
