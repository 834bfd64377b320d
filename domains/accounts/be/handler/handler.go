package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/domains/accounts/be/service"
	"github.com/brickline/brickline-saas/platform/go/logging"
	"github.com/brickline/brickline-saas/platform/go/problem"
)

// Handler exposes the accounts HTTP API.
type Handler struct {
	svc *service.Service
}

// New constructs a Handler instance.
func New(svc *service.Service) *Handler {
	if svc == nil {
		panic("accounts service is required")
	}
	return &Handler{svc: svc}
}

// Routes mounts the accounts endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/signup", h.SignupStandard)
	r.Post("/signup/agent", h.SignupAgent)
	r.Post("/activate", h.ActivateWithCode)
	r.Get("/activate", h.ActivateWithToken)
	r.Post("/resend-verification", h.ResendVerification)
	r.Post("/password-reset", h.RequestPasswordReset)
	r.Post("/password-reset/confirm", h.ResetPassword)
}

type signupRequest struct {
	Email          string `json:"email"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	WhatsappNumber string `json:"whatsappNumber"`
}

type agentSignupRequest struct {
	signupRequest
	AgencyName  string `json:"agencyName"`
	ContactInfo string `json:"contactInfo"`
}

type accountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsAgent   bool   `json:"isAgent"`
	Active    bool   `json:"active"`
}

type signupResponse struct {
	accountResponse
	Warning string `json:"warning,omitempty"`
}

type activationResponse struct {
	Account   accountResponse    `json:"account"`
	Workspace *workspaceResponse `json:"workspace,omitempty"`
}

type workspaceResponse struct {
	TenantID   string `json:"tenantId"`
	Slug       string `json:"slug"`
	Domain     string `json:"domain"`
	AgencyName string `json:"agencyName"`
}

// SignupStandard implements POST /signup.
func (h *Handler) SignupStandard(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Validation(w, r, map[string][]string{"body": {"request body must be valid JSON"}})
		return
	}

	account, err := h.svc.SignupStandard(r.Context(), toSignupInput(req))
	h.writeSignup(w, r, account, err)
}

// SignupAgent implements POST /signup/agent.
func (h *Handler) SignupAgent(w http.ResponseWriter, r *http.Request) {
	var req agentSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Validation(w, r, map[string][]string{"body": {"request body must be valid JSON"}})
		return
	}

	account, err := h.svc.SignupAgent(r.Context(), service.AgentSignupInput{
		SignupInput: toSignupInput(req.signupRequest),
		AgencyName:  req.AgencyName,
		ContactInfo: req.ContactInfo,
	})
	h.writeSignup(w, r, account, err)
}

// writeSignup reports the created account. A failed notification enqueue is
// still a created account; the response carries a warning instead of an
// error so the user knows to use the resend endpoint.
func (h *Handler) writeSignup(w http.ResponseWriter, r *http.Request, account service.Account, err error) {
	if errors.Is(err, service.ErrNotificationFailed) {
		writeJSON(w, http.StatusCreated, signupResponse{
			accountResponse: toAccountResponse(account),
			Warning:         "verification message could not be queued, request a resend",
		})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signupResponse{accountResponse: toAccountResponse(account)})
}

type activateRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ActivateWithCode implements POST /activate.
func (h *Handler) ActivateWithCode(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Validation(w, r, map[string][]string{"body": {"request body must be valid JSON"}})
		return
	}

	result, err := h.svc.ActivateWithCode(r.Context(), req.Email, req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivationResponse(result))
}

// ActivateWithToken implements GET /activate?token=...
func (h *Handler) ActivateWithToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		problem.Validation(w, r, map[string][]string{"token": {"token is required"}})
		return
	}

	result, err := h.svc.ActivateWithToken(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivationResponse(result))
}

type emailRequest struct {
	Email string `json:"email"`
}

// ResendVerification implements POST /resend-verification.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Validation(w, r, map[string][]string{"body": {"request body must be valid JSON"}})
		return
	}

	if err := h.svc.ResendVerification(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "verification sent"})
}

// RequestPasswordReset implements POST /password-reset.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Validation(w, r, map[string][]string{"body": {"request body must be valid JSON"}})
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	// Same response whether or not the account exists.
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset code sent if the account exists"})
}

type resetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

// ResetPassword implements POST /password-reset/confirm.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Validation(w, r, map[string][]string{"body": {"request body must be valid JSON"}})
		return
	}

	if err := h.svc.ResetPasswordWithCode(r.Context(), req.Email, req.Code, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		problem.Validation(w, r, validationErr.Fields)
	case errors.Is(err, service.ErrDuplicateAccount):
		problem.Conflict(w, r, "an account with this email or username already exists")
	case errors.Is(err, service.ErrDomainConflict):
		problem.Conflict(w, r, "agency domain is already taken")
	case errors.Is(err, service.ErrAlreadyActive):
		problem.Conflict(w, r, "account is already verified")
	case errors.Is(err, service.ErrVerificationExpired):
		problem.Expired(w, r, "verification expired or not found")
	case errors.Is(err, service.ErrPendingMissing):
		problem.Expired(w, r, "signup details no longer available, sign up again")
	case errors.Is(err, service.ErrCodeMismatch):
		problem.Write(w, r, problem.Details{
			Type:   problem.TypeValidation,
			Title:  "Invalid code",
			Status: http.StatusUnprocessableEntity,
			Detail: "verification code does not match",
		})
	case errors.Is(err, service.ErrInvalidToken):
		problem.Write(w, r, problem.Details{
			Type:   problem.TypeValidation,
			Title:  "Invalid token",
			Status: http.StatusUnprocessableEntity,
			Detail: "activation token is invalid",
		})
	case errors.Is(err, service.ErrNotFound):
		problem.NotFound(w, r, "account not found")
	case errors.Is(err, service.ErrNotificationFailed):
		problem.Write(w, r, problem.Details{
			Type:   problem.TypeInternal,
			Title:  "Notification failed",
			Status: http.StatusServiceUnavailable,
			Detail: "verification message could not be queued, try again",
		})
	default:
		logging.FromRequest(r).Error("accounts handler error", zap.Error(err))
		problem.Internal(w, r)
	}
}

func toSignupInput(req signupRequest) service.SignupInput {
	return service.SignupInput{
		Email:          req.Email,
		Username:       req.Username,
		Password:       req.Password,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		WhatsappNumber: req.WhatsappNumber,
	}
}

func toAccountResponse(a service.Account) accountResponse {
	return accountResponse{
		ID:        a.ID.String(),
		Email:     a.Email,
		Username:  a.Username,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		IsAgent:   a.IsAgent,
		Active:    a.Active,
	}
}

func toActivationResponse(result service.ActivationResult) activationResponse {
	resp := activationResponse{Account: toAccountResponse(result.Account)}
	if result.Workspace != nil {
		resp.Workspace = &workspaceResponse{
			TenantID:   result.Workspace.Tenant.ID.String(),
			Slug:       result.Workspace.Tenant.Slug,
			Domain:     result.Workspace.Domain,
			AgencyName: result.Workspace.Profile.AgencyName,
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
