package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"opsmap/internal/codec"
	"opsmap/internal/domain"
	"opsmap/internal/service"
)

// maxUploadSize caps uploaded network files
const maxUploadSize = 32 << 20

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// OperationsHandler serves the network, the optimizer results and the
// overlay derived from them
type OperationsHandler struct {
	svc *service.OperationsService
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(svc *service.OperationsService) *OperationsHandler {
	return &OperationsHandler{svc: svc}
}

// Register adds the operations routes to mux
func (h *OperationsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/status", h.GetStatus)
	mux.HandleFunc("GET /api/network", h.GetNetwork)
	mux.HandleFunc("GET /api/network/export", h.ExportNetwork)
	mux.HandleFunc("POST /api/network/reload", h.Reload)
	mux.HandleFunc("GET /api/topology/summary", h.GetTopologySummary)
	mux.HandleFunc("POST /api/pareto", h.PostPareto)
	mux.HandleFunc("GET /api/solution", h.GetSolution)
	mux.HandleFunc("GET /api/mode", h.GetMode)
	mux.HandleFunc("PUT /api/mode", h.SetMode)
	mux.HandleFunc("GET /api/summary", h.GetSummary)
	mux.HandleFunc("GET /api/links", h.GetLinks)
	mux.HandleFunc("GET /api/runs", h.ListRuns)
	mux.HandleFunc("POST /api/upload-network", h.UploadNetwork)
	mux.HandleFunc("GET /api/download", h.Download)
}

// Health reports liveness
func (h *OperationsHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// GetStatus returns the load state
func (h *OperationsHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Status(), http.StatusOK)
}

// GetNetwork returns the loaded snapshot. The fingerprint doubles as ETag.
func (h *OperationsHandler) GetNetwork(w http.ResponseWriter, r *http.Request) {
	network := h.svc.Network()
	if network == nil {
		writeJSON(w, domain.NewNetwork(), http.StatusOK)
		return
	}

	etag := `"` + network.Fingerprint() + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, network, http.StatusOK)
}

// ExportNetwork downloads the snapshot as json, yaml or xlsx
func (h *OperationsHandler) ExportNetwork(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	var buf bytes.Buffer
	if err := h.svc.ExportNetwork(format, &buf); err != nil {
		if errors.Is(err, codec.ErrUnsupportedFormat) {
			writeError(w, "Unsupported format", err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Failed to export network: %v", err)
		writeError(w, "Failed to export network", err.Error(), http.StatusInternalServerError)
		return
	}

	ext := strings.ToLower(format)
	contentType := "application/json"
	switch ext {
	case "yaml", "yml":
		contentType = "application/x-yaml"
	case "xlsx", "excel":
		ext = "xlsx"
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=network."+ext)
	w.Write(buf.Bytes())
}

// Reload fetches the network and results again
func (h *OperationsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Load(r.Context()); err != nil {
		writeError(w, "Failed to load operations data", err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, h.svc.Status(), http.StatusOK)
}

// GetTopologySummary returns counts for the topology view. The optional
// types parameter is a comma separated list of node types to keep.
func (h *OperationsHandler) GetTopologySummary(w http.ResponseWriter, r *http.Request) {
	var types map[domain.NodeType]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		types = make(map[domain.NodeType]bool)
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types[domain.NodeType(t)] = true
			}
		}
	}
	writeJSON(w, h.svc.Topology(types), http.StatusOK)
}

// PostPareto runs the optimizer. An empty body uses the default request.
func (h *OperationsHandler) PostPareto(w http.ResponseWriter, r *http.Request) {
	req := domain.DefaultOptimizeRequest()
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.svc.Recompute(r.Context(), req)
	if err != nil {
		writeServiceError(w, "Failed to compute solutions", err)
		return
	}
	writeJSON(w, resp, http.StatusOK)
}

// GetSolution returns both Pareto endpoints
func (h *OperationsHandler) GetSolution(w http.ResponseWriter, r *http.Request) {
	resp := h.svc.Solutions()
	if resp == nil {
		writeError(w, "Not found", service.ErrNoSolution.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, resp, http.StatusOK)
}

// ModeRequest selects the displayed solution
type ModeRequest struct {
	Mode domain.Mode `json:"mode"`
}

// GetMode returns the displayed solution
func (h *OperationsHandler) GetMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ModeRequest{Mode: h.svc.Mode()}, http.StatusOK)
}

// SetMode switches between the delay and congestion optimal solutions
func (h *OperationsHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.svc.SetMode(req.Mode); err != nil {
		writeError(w, "Invalid mode", err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, ModeRequest{Mode: h.svc.Mode()}, http.StatusOK)
}

// GetSummary returns the prediction summary of the displayed solution
func (h *OperationsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.svc.Summary()
	if !ok {
		writeError(w, "Not found", service.ErrNoSolution.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, sum, http.StatusOK)
}

// GetLinks returns the dispatch table, busiest first
func (h *OperationsHandler) GetLinks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Links(), http.StatusOK)
}

// ListRuns returns the recorded optimizer runs
func (h *OperationsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, "Invalid limit", err.Error(), http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to list runs: %v", err)
		writeError(w, "Failed to list runs", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs, http.StatusOK)
}

// UploadNetwork accepts a network file as multipart field "file"
func (h *OperationsHandler) UploadNetwork(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "Invalid upload", err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	res, err := h.svc.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeServiceError(w, "Failed to upload network", err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

// Download returns the results of both solutions as CSV
func (h *OperationsHandler) Download(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	name, err := h.svc.ExportResults(r.Context(), &buf)
	if err != nil {
		writeServiceError(w, "Failed to export results", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	w.Write(buf.Bytes())
}

// Helper functions

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, error, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}

// writeServiceError maps service errors to status codes
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrBusy):
		writeError(w, msg, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrNoSolution), errors.Is(err, service.ErrViewNotFound):
		writeError(w, msg, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrUploadUnsupported):
		writeError(w, msg, err.Error(), http.StatusNotImplemented)
	case errors.Is(err, codec.ErrUnsupportedFormat), errors.Is(err, service.ErrInvalidRequest):
		writeError(w, msg, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("%s: %v", msg, err)
		writeError(w, msg, err.Error(), http.StatusBadGateway)
	}
}

// decodeOptional decodes a JSON body into v, leaving v untouched when the
// body is empty
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
