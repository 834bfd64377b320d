package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/domains/assistant/be/service"
	"github.com/brickline/brickline-saas/platform/go/logging"
	"github.com/brickline/brickline-saas/platform/go/problem"
)

// Handler exposes the assistant HTTP API.
type Handler struct {
	svc *service.Service
}

// New constructs a Handler instance.
func New(svc *service.Service) *Handler {
	if svc == nil {
		panic("assistant service is required")
	}
	return &Handler{svc: svc}
}

// Routes mounts the assistant endpoints under a property subtree.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/properties/{propertyID}/document", h.Ingest)
	r.Post("/properties/{propertyID}/chat", h.Chat)
}

type ingestRequest struct {
	Document string `json:"document"`
}

// Ingest implements POST /properties/{propertyID}/document.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	propertyID, err := uuid.Parse(chi.URLParam(r, "propertyID"))
	if err != nil {
		problem.Validation(w, r, map[string][]string{"propertyID": {"propertyID must be a UUID"}})
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Validation(w, r, map[string][]string{"body": {"request body must be valid JSON"}})
		return
	}

	count, err := h.svc.Ingest(r.Context(), propertyID, req.Document)
	if err != nil {
		// An empty document on ingest is a request problem, not missing state.
		if errors.Is(err, service.ErrNoDocument) {
			problem.Validation(w, r, map[string][]string{"document": {"document is empty"}})
			return
		}
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]int{"chunks": count})
}

type chatRequest struct {
	Question  string  `json:"question"`
	AccountID *string `json:"accountId"`
}

// Chat implements POST /properties/{propertyID}/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	propertyID, err := uuid.Parse(chi.URLParam(r, "propertyID"))
	if err != nil {
		problem.Validation(w, r, map[string][]string{"propertyID": {"propertyID must be a UUID"}})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Validation(w, r, map[string][]string{"body": {"request body must be valid JSON"}})
		return
	}
	if req.Question == "" {
		problem.Validation(w, r, map[string][]string{"question": {"question is required"}})
		return
	}

	var accountID *uuid.UUID
	if req.AccountID != nil {
		id, err := uuid.Parse(*req.AccountID)
		if err != nil {
			problem.Validation(w, r, map[string][]string{"accountId": {"accountId must be a UUID"}})
			return
		}
		accountID = &id
	}

	answer, err := h.svc.Answer(r.Context(), propertyID, accountID, req.Question)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"answer": answer})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrPropertyNotFound):
		problem.NotFound(w, r, "property not found")
	case errors.Is(err, service.ErrNoDocument):
		problem.NotFound(w, r, "no document ingested for this property")
	case errors.Is(err, service.ErrEmbeddingFailed):
		logging.FromRequest(r).Error("question embedding failed", zap.Error(err))
		problem.Internal(w, r)
	default:
		logging.FromRequest(r).Error("assistant handler error", zap.Error(err))
		problem.Internal(w, r)
	}
}
