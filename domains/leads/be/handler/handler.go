package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/domains/leads/be/service"
	"github.com/brickline/brickline-saas/platform/go/logging"
	"github.com/brickline/brickline-saas/platform/go/problem"
)

// Handler exposes the leads HTTP API.
type Handler struct {
	svc *service.Service
}

// New constructs a Handler instance.
func New(svc *service.Service) *Handler {
	if svc == nil {
		panic("leads service is required")
	}
	return &Handler{svc: svc}
}

// Routes mounts the leads endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/properties/{propertyID}/leads", h.Create)
	r.Get("/agents/{agentID}/leads", h.ListForAgent)
}

type createRequest struct {
	Message string  `json:"message"`
	BuyerID *string `json:"buyerId"`
}

type leadResponse struct {
	ID            string    `json:"id"`
	PropertyID    string    `json:"propertyId"`
	AssignedAgent string    `json:"assignedAgent"`
	Message       string    `json:"message"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Create implements POST /properties/{propertyID}/leads.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	propertyID, err := uuid.Parse(chi.URLParam(r, "propertyID"))
	if err != nil {
		problem.Validation(w, r, map[string][]string{"propertyID": {"propertyID must be a UUID"}})
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Validation(w, r, map[string][]string{"body": {"request body must be valid JSON"}})
		return
	}
	if req.Message == "" {
		problem.Validation(w, r, map[string][]string{"message": {"message is required"}})
		return
	}

	var buyerID *uuid.UUID
	if req.BuyerID != nil {
		id, err := uuid.Parse(*req.BuyerID)
		if err != nil {
			problem.Validation(w, r, map[string][]string{"buyerId": {"buyerId must be a UUID"}})
			return
		}
		buyerID = &id
	}

	lead, err := h.svc.Create(r.Context(), service.CreateInput{
		PropertyID: propertyID,
		BuyerID:    buyerID,
		Message:    req.Message,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeadResponse(lead))
}

// ListForAgent implements GET /agents/{agentID}/leads.
func (h *Handler) ListForAgent(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		problem.Validation(w, r, map[string][]string{"agentID": {"agentID must be a UUID"}})
		return
	}

	leads, err := h.svc.ListForAgent(r.Context(), agentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]leadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, toLeadResponse(lead))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrPropertyNotFound):
		problem.NotFound(w, r, "property not found")
	default:
		logging.FromRequest(r).Error("leads handler error", zap.Error(err))
		problem.Internal(w, r)
	}
}

func toLeadResponse(lead service.Lead) leadResponse {
	resp := leadResponse{
		ID:         lead.ID.String(),
		PropertyID: lead.PropertyID.String(),
		Message:    lead.Message,
		Status:     lead.Status,
		CreatedAt:  lead.CreatedAt,
	}
	if lead.AssignedAgent != nil {
		resp.AssignedAgent = lead.AssignedAgent.String()
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
