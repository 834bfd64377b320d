// Package problem renders RFC 7807 problem+json responses.
package problem

import (
	"encoding/json"
	"net/http"
)

// Details is the wire shape of an error response.
type Details struct {
	Type     string              `json:"type"`
	Title    string              `json:"title"`
	Status   int                 `json:"status"`
	Detail   string              `json:"detail,omitempty"`
	Instance string              `json:"instance,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

// Problem type URIs.
const (
	TypeValidation = "https://brickline.app/problems/validation-error"
	TypeNotFound   = "https://brickline.app/problems/not-found"
	TypeConflict   = "https://brickline.app/problems/conflict"
	TypeExpired    = "https://brickline.app/problems/expired"
	TypeInternal   = "https://brickline.app/problems/internal-error"
)

// Write serializes the problem to the response with the right content type.
func Write(w http.ResponseWriter, r *http.Request, p Details) {
	if p.Instance == "" && r != nil {
		p.Instance = r.URL.Path
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// Validation renders a 400 with per-field errors.
func Validation(w http.ResponseWriter, r *http.Request, fields map[string][]string) {
	Write(w, r, Details{
		Type:   TypeValidation,
		Title:  "Invalid request",
		Status: http.StatusBadRequest,
		Errors: fields,
	})
}

// NotFound renders a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Write(w, r, Details{
		Type:   TypeNotFound,
		Title:  "Not found",
		Status: http.StatusNotFound,
		Detail: detail,
	})
}

// Conflict renders a 409.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Write(w, r, Details{
		Type:   TypeConflict,
		Title:  "Conflict",
		Status: http.StatusConflict,
		Detail: detail,
	})
}

// Expired renders a 410 for verification state that no longer exists.
func Expired(w http.ResponseWriter, r *http.Request, detail string) {
	Write(w, r, Details{
		Type:   TypeExpired,
		Title:  "Expired",
		Status: http.StatusGone,
		Detail: detail,
	})
}

// Internal renders a 500 without leaking the underlying error.
func Internal(w http.ResponseWriter, r *http.Request) {
	Write(w, r, Details{
		Type:   TypeInternal,
		Title:  "Internal server error",
		Status: http.StatusInternalServerError,
	})
}
