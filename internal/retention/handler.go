package retention

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/salonbase/noshow-engine/internal/intervention"
	"github.com/salonbase/noshow-engine/internal/risk"
	"github.com/salonbase/noshow-engine/pkg/logging"
)

// Handler exposes the retention pipeline over HTTP.
type Handler struct {
	service   *Service
	profiles  ProfileStore
	snapshots SnapshotSource
	engine    *intervention.Engine
	logger    *logging.Logger
}

// NewHandler creates the retention HTTP handler.
func NewHandler(service *Service, profiles ProfileStore, snapshots SnapshotSource, engine *intervention.Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, profiles: profiles, snapshots: snapshots, engine: engine, logger: logger}
}

// Routes returns a chi router with the v1 retention routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/appointments/{appointmentID}/evaluate", h.EvaluateAppointment)
	r.Get("/clients/lookup", h.LookupClient)
	r.Get("/clients/{clientID}/profile", h.GetProfile)
	r.Post("/clients/{clientID}/events", h.RecordEvent)
	r.Post("/interventions/{executionID}/effectiveness", h.MarkEffectiveness)
	r.Get("/rules", h.ListRules)
	r.Put("/rules/{ruleID}", h.UpdateRule)
	return r
}

// EvaluateAppointment runs the pipeline for one appointment.
// POST /v1/appointments/{appointmentID}/evaluate?execute=true
func (h *Handler) EvaluateAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, `{"error": "invalid appointment id"}`, http.StatusBadRequest)
		return
	}

	opts := EvaluateOptions{Execute: r.URL.Query().Get("execute") == "true"}
	result, err := h.service.Evaluate(r.Context(), appointmentID, opts)
	if err != nil {
		h.logger.Error("evaluate appointment failed", "appointment_id", appointmentID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// LookupClient resolves a client by phone number.
// GET /v1/clients/lookup?phone=+15551230000
func (h *Handler) LookupClient(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		http.Error(w, `{"error": "phone query parameter required"}`, http.StatusBadRequest)
		return
	}

	client, err := h.snapshots.FindClientByPhone(r.Context(), phone)
	if err != nil {
		h.logger.Error("client lookup failed", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if client == nil {
		http.Error(w, `{"error": "client not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, client)
}

// GetProfile returns a client's risk profile.
// GET /v1/clients/{clientID}/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "clientID"))
	if err != nil {
		http.Error(w, `{"error": "invalid client id"}`, http.StatusBadRequest)
		return
	}

	profile, err := h.profiles.Get(r.Context(), clientID)
	if err != nil {
		h.logger.Error("get profile failed", "client_id", clientID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if profile == nil {
		http.Error(w, `{"error": "profile not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, profile)
}

// RecordEventRequest is the body for applying a score lifecycle event.
type RecordEventRequest struct {
	Event risk.EventKind `json:"event"`
}

// RecordEvent applies a lifecycle event to a client's score.
// POST /v1/clients/{clientID}/events
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "clientID"))
	if err != nil {
		http.Error(w, `{"error": "invalid client id"}`, http.StatusBadRequest)
		return
	}

	var req RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Event == "" {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	change, err := h.service.RecordEvent(r.Context(), clientID, req.Event)
	if err != nil {
		h.logger.Error("record event failed", "client_id", clientID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, change)
}

// MarkEffectivenessRequest is the body for annotating an execution.
type MarkEffectivenessRequest struct {
	Score float64 `json:"score"`
}

// MarkEffectiveness records how well an intervention worked.
// POST /v1/interventions/{executionID}/effectiveness
func (h *Handler) MarkEffectiveness(w http.ResponseWriter, r *http.Request) {
	executionID, err := uuid.Parse(chi.URLParam(r, "executionID"))
	if err != nil {
		http.Error(w, `{"error": "invalid execution id"}`, http.StatusBadRequest)
		return
	}

	var req MarkEffectivenessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	if err := h.service.MarkEffectiveness(r.Context(), executionID, req.Score); err != nil {
		h.logger.Error("mark effectiveness failed", "execution_id", executionID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRules returns the active rule catalog.
// GET /v1/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.engine.Rules())
}

// UpdateRule replaces one rule wholesale.
// PUT /v1/rules/{ruleID}
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleID")

	var rule intervention.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	rule.ID = ruleID

	if !h.engine.UpdateRule(rule) {
		http.Error(w, `{"error": "rule not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, rule)
}

func writeJSON(w http.ResponseWriter, logger *logging.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
