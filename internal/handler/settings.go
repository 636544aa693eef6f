package handler

import (
	"encoding/json"
	"net/http"

	"opsmap/internal/domain"
	"opsmap/internal/service"
)

// SettingsHandler serves the optimization controls
type SettingsHandler struct {
	svc *service.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(svc *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// Register adds the settings routes to mux
func (h *SettingsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/settings", h.UpdateSettings)
	mux.HandleFunc("POST /api/settings/preset/{name}", h.ApplyPreset)
	mux.HandleFunc("POST /api/settings/reset", h.Reset)
	mux.HandleFunc("POST /api/settings/recompute", h.Recompute)
	mux.HandleFunc("GET /api/settings/active", h.GetActive)
}

// GetSettings returns the current settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Get(), http.StatusOK)
}

// UpdateSettings replaces the settings. Fields missing from the body keep
// their current values.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	next := h.svc.Get()
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	s, err := h.svc.Update(r.Context(), next)
	if err != nil {
		writeError(w, "Invalid settings", err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s, http.StatusOK)
}

// ApplyPreset sets the weights of a named preset
func (h *SettingsHandler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.ApplyPreset(r.Context(), service.Preset(r.PathValue("name")))
	if err != nil {
		writeError(w, "Unknown preset", err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s, http.StatusOK)
}

// Reset restores the default settings
func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Reset(r.Context()), http.StatusOK)
}

// Recompute runs the optimizer with the current settings
func (h *SettingsHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Recompute(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to compute solutions", err)
		return
	}
	writeJSON(w, resp, http.StatusOK)
}

// ActiveResponse is the solution matching the current weights
type ActiveResponse struct {
	Mode     domain.Mode      `json:"mode"`
	Solution *domain.Solution `json:"solution,omitempty"`
}

// GetActive returns the mode and solution picked by the current weights
func (h *SettingsHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ActiveResponse{
		Mode:     h.svc.ActiveMode(),
		Solution: h.svc.ActiveSolution(),
	}, http.StatusOK)
}
