package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/domains/subscriptions/be/service"
	"github.com/brickline/brickline-saas/platform/go/logging"
	"github.com/brickline/brickline-saas/platform/go/problem"
)

// verifHashHeader carries the processor's shared-secret hash.
const verifHashHeader = "verif-hash"

// maxWebhookBody caps how much of a webhook delivery is read.
const maxWebhookBody = 1 << 20

// Handler exposes the billing HTTP API.
type Handler struct {
	svc *service.Service
}

// New constructs a Handler instance.
func New(svc *service.Service) *Handler {
	if svc == nil {
		panic("subscriptions service is required")
	}
	return &Handler{svc: svc}
}

// Routes mounts the billing endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/plans", h.CreatePlan)
	r.Post("/subscriptions/checkout", h.InitiateCheckout)
	r.Post("/webhooks/flutterwave", h.Webhook)
}

type createPlanRequest struct {
	Name           string `json:"name"`
	Amount         int64  `json:"amount"`
	Interval       string `json:"interval"`
	DurationCycles int    `json:"durationCycles"`
}

// CreatePlan implements POST /plans.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Validation(w, r, map[string][]string{"body": {"request body must be valid JSON"}})
		return
	}

	plan, err := h.svc.CreatePlan(r.Context(), service.CreatePlanInput{
		Name:           req.Name,
		Amount:         req.Amount,
		Interval:       req.Interval,
		DurationCycles: req.DurationCycles,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":       plan.ID.String(),
		"name":     plan.Name,
		"interval": plan.Interval,
	})
}

type checkoutRequest struct {
	AccountID string `json:"accountId"`
	PlanID    string `json:"planId"`
	Email     string `json:"email"`
}

// InitiateCheckout implements POST /subscriptions/checkout.
func (h *Handler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Validation(w, r, map[string][]string{"body": {"request body must be valid JSON"}})
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		problem.Validation(w, r, map[string][]string{"accountId": {"accountId must be a UUID"}})
		return
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		problem.Validation(w, r, map[string][]string{"planId": {"planId must be a UUID"}})
		return
	}

	link, err := h.svc.InitiateCheckout(r.Context(), accountID, planID, req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkoutLink": link})
}

// Webhook implements POST /webhooks/flutterwave. The body is passed to the
// service raw; signature verification happens before parsing.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		problem.Internal(w, r)
		return
	}

	if err := h.svc.HandleWebhook(r.Context(), r.Header.Get(verifHashHeader), body); err != nil {
		if errors.Is(err, service.ErrWebhookRejected) || errors.Is(err, service.ErrBadTxRef) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		logging.FromRequest(r).Error("webhook processing failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrPlanNotFound):
		problem.NotFound(w, r, "plan not found")
	default:
		logging.FromRequest(r).Error("subscriptions handler error", zap.Error(err))
		problem.Internal(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
