// Package httpapi is the HTTP adapter that drives ports.AuthCore: a
// gorilla/mux router plus RFC 7807 Problem Details error responses.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pnwatin/auth-server/internal/domain"
)

// problem is the application/problem+json body (RFC 7807). Type, Title
// and Status are fixed per error kind; Detail carries the domain error's
// message for client-facing (non-500) kinds and is omitted otherwise.
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// problemKind pairs the fixed (type, title, status) triple a domain
// error maps to in HTTP responses.
type problemKind struct {
	typ    string
	title  string
	status int
}

var problemKinds = map[error]problemKind{
	domain.ErrInvalidInput:       {"about:blank#invalid-input", "Invalid Input", http.StatusUnprocessableEntity},
	domain.ErrInvalidCredentials: {"about:blank#invalid-credentials", "Invalid Credentials", http.StatusUnauthorized},
	domain.ErrInvalidToken:       {"about:blank#invalid-token", "Invalid Token", http.StatusUnauthorized},
	domain.ErrEmailTaken:         {"about:blank#email-taken", "Email Already Registered", http.StatusConflict},
	domain.ErrStorage:            {"about:blank#internal-error", "Internal Server Error", http.StatusInternalServerError},
}

var defaultKind = problemKind{"about:blank#internal-error", "Internal Server Error", http.StatusInternalServerError}

// writeProblem maps a domain error to its RFC 7807 body and writes it.
// Unrecognized errors collapse to a 500 with no detail leaked.
func writeProblem(w http.ResponseWriter, log *slog.Logger, err error) {
	kind := defaultKind
	detail := ""
	for sentinel, k := range problemKinds {
		if errors.Is(err, sentinel) {
			kind = k
			if k.status != http.StatusInternalServerError {
				detail = sentinel.Error()
			}
			break
		}
	}
	if kind.status == http.StatusInternalServerError {
		log.Error("httpapi: unhandled error", "error", err)
	}
	writeProblemResponse(w, kind.status, problem{
		Type:   kind.typ,
		Title:  kind.title,
		Status: kind.status,
		Detail: detail,
	})
}

func writeProblemResponse(w http.ResponseWriter, status int, p problem) {
	w.Header().Set("Content-Type", "application/problem+json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
