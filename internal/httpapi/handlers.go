package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pnwatin/auth-server/internal/domain"
	"github.com/pnwatin/auth-server/internal/ports"
)

// Handlers holds the dependencies the route functions close over: the
// core they drive and the logger they report unexpected failures to.
type Handlers struct {
	core ports.AuthCore
	log  *slog.Logger
	ping func(context.Context) error
}

// NewHandlers builds the handler set for server.go to register. ping
// may be nil, in which case /_health-check reports Ok without touching
// the database (used by tests that have no pool to ping).
func NewHandlers(core ports.AuthCore, log *slog.Logger, ping func(context.Context) error) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{core: core, log: log, ping: ping}
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp handles POST /auth/sign-up.
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, h.log, r, &req) {
		return
	}

	_, err := h.core.SignUp(r.Context(), ports.SignUpCmd{Email: req.Email, Password: req.Password})
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SignIn handles POST /auth/sign-in.
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, h.log, r, &req) {
		return
	}

	pair, err := h.core.SignIn(r.Context(), ports.SignInCmd{
		Email:    req.Email,
		Password: req.Password,
		Metadata: requestMetadata(r),
	})
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokens handles POST /auth/tokens/refresh.
func (h *Handlers) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, h.log, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeProblem(w, h.log, domain.ErrInvalidInput)
		return
	}

	pair, err := h.core.RefreshTokens(r.Context(), ports.RefreshCmd{
		RefreshToken: req.RefreshToken,
		Metadata:     requestMetadata(r),
	})
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

type signOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignOut handles POST /auth/sign-out.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	var req signOutRequest
	if !decodeJSON(w, h.log, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeProblem(w, h.log, domain.ErrInvalidInput)
		return
	}

	if err := h.core.SignOut(r.Context(), ports.SignOutCmd{RefreshToken: req.RefreshToken}); err != nil {
		writeProblem(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type healthResponse struct {
	Status string `json:"status"`
}

// HealthCheck handles GET /_health-check, pinging the database pool
// when one is configured.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			writeProblem(w, h.log, domain.ErrStorage)
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// decodeJSON decodes the request body into dst, writing a 422 problem
// and returning false on any malformed-payload failure — the
// InvalidInput kind covers schema failures as well as semantic ones.
func decodeJSON(w http.ResponseWriter, log *slog.Logger, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, log, domain.ErrInvalidInput)
		return false
	}
	return true
}
