// Package queryapi serves the read side of the state partitions over HTTP.
// Every handler is read-only; state only changes through the replay driver.
package queryapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

// Server answers state queries.
type Server struct {
	state    *state.ProcessingState
	gatherer prometheus.Gatherer
}

// New creates a Server over ps. Metrics are served from gatherer, or from
// the default gatherer when it is nil.
func New(ps *state.ProcessingState, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{state: ps, gatherer: gatherer}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", s.stateInfo)
		r.Get("/forms/{formKey}", s.formByKey)
		r.Get("/forms/by-id/{formID}", s.formByID)
		r.Get("/user-tasks/{key}", s.userTask)
		r.Get("/element-instances/{key}", s.elementInstance)
		r.Get("/jobs/{key}", s.job)
		r.Get("/incidents/{key}", s.incident)
		r.Get("/roles/{roleID}", s.role)
		r.Get("/mapping-rules/{mappingRuleID}", s.mappingRule)
		r.Get("/usage-metrics/active", s.activeUsageBucket)
		r.Get("/global-listeners/current", s.currentGlobalListeners)
	})
	return r
}

// ListenAndServe serves Handler on addr until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("query api listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("query",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type apiError struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg, RequestID: middleware.GetReqID(r.Context())})
}

// respond writes v, a 404 when found is false, or a 500 for err.
func respond(w http.ResponseWriter, r *http.Request, v any, found bool, err error) {
	switch {
	case err != nil:
		slog.Error("query failed", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	case !found:
		writeError(w, r, http.StatusNotFound, "not found")
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

// keyParam parses the named URL parameter as an entity key. It writes a
// 400 and returns false when the parameter is not a number.
func keyParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	key, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return key, true
}

func tenantParam(r *http.Request) string {
	if t := r.URL.Query().Get("tenant_id"); t != "" {
		return t
	}
	return protocol.DefaultTenantID
}
