package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pnwatin/auth-server/internal/ports"
)

// Server wraps an http.Server bound to the auth routes. The router is
// gorilla/mux, wrapped with otelhttp.NewHandler for request tracing.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer builds the router, registers every route, and wraps it for
// tracing. ping is called by /_health-check; pass nil to skip the
// database round-trip (tests with no pool).
func NewServer(addr string, core ports.AuthCore, log *slog.Logger, ping func(context.Context) error) *Server {
	if log == nil {
		log = slog.Default()
	}
	h := NewHandlers(core, log, ping)

	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	r.HandleFunc("/auth/sign-up", h.SignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/sign-in", h.SignIn).Methods(http.MethodPost)
	r.HandleFunc("/auth/tokens/refresh", h.RefreshTokens).Methods(http.MethodPost)
	r.HandleFunc("/auth/sign-out", h.SignOut).Methods(http.MethodPost)
	r.HandleFunc("/_health-check", h.HealthCheck).Methods(http.MethodGet)

	traced := otelhttp.NewHandler(loggingMiddleware(log, r), "authserver")

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           traced,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Serve accepts connections on ln until ctx is canceled, then drains
// in-flight requests and returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Addr reports the server's configured bind address.
func (s *Server) Addr() string { return s.httpServer.Addr }

func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
