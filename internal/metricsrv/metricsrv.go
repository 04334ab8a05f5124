// Package metricsrv serves hub metrics and introspection over HTTP.
//
// Routes:
//
//	GET /healthz               always 200
//	GET /readyz                200 while the hub is running, else 503
//	GET /metrics               Prometheus exposition
//	GET /extensions            registered extensions as JSON
//	GET /state/{owner}?kind=   latest shared state of owner as JSON
package metricsrv

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dshills/eventhub/internal/hub"
	"github.com/dshills/eventhub/internal/sharedstate"
)

// Hub is the part of the hub the server reads.
type Hub interface {
	Running() bool
	Extensions() []hub.ExtensionInfo
	LatestSharedState(kind sharedstate.Kind, name string) *sharedstate.SharedState
}

type stateResponse struct {
	Owner   string         `json:"owner"`
	Kind    string         `json:"kind"`
	Status  string         `json:"status"`
	Version int64          `json:"version"`
	Data    map[string]any `json:"data,omitempty"`
}

// NewRouter returns the HTTP handler for h. Metrics are gathered from g.
func NewRouter(h Hub, g prometheus.Gatherer, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if h.Running() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("stopped"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	r.Get("/extensions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.Extensions())
	})

	r.Get("/state/{owner}", func(w http.ResponseWriter, r *http.Request) {
		kindName := r.URL.Query().Get("kind")
		if kindName == "" {
			kindName = sharedstate.KindStandard.String()
		}
		kind, ok := sharedstate.ParseKind(kindName)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "unknown kind")
			return
		}

		owner := chi.URLParam(r, "owner")
		state := h.LatestSharedState(kind, owner)
		if state == nil {
			writeJSONError(w, http.StatusNotFound, "no shared state")
			return
		}
		writeJSON(w, http.StatusOK, stateResponse{
			Owner:   owner,
			Kind:    kind.String(),
			Status:  state.Status.String(),
			Version: state.Version,
			Data:    state.Data,
		})
	})

	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
		"code":  status,
	})
}

// Serve runs handler on addr until ctx is cancelled, then shuts the server
// down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, handler, logger)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("metrics server listening")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

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
