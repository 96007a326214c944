// ABOUTME: HTTP server struct, constructor, and route wiring for the automation service.
// ABOUTME: Holds the store and rule engine used by handlers.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/numzhq/automation/internal/config"
	"github.com/numzhq/automation/internal/engine"
	"github.com/numzhq/automation/internal/store"
)

// Server holds the dependencies for the HTTP layer.
type Server struct {
	store       *store.Store
	engine      *engine.Engine
	cfg         *config.Config
	rateLimiter *ipRateLimiter
	log         *slog.Logger
}

// NewServer creates a Server wired to the given store and engine.
func NewServer(s *store.Store, eng *engine.Engine, cfg *config.Config, log *slog.Logger) *Server {
	evictTTL := cfg.RateLimitEvictTTL
	if evictTTL == 0 {
		evictTTL = 15 * time.Minute
	}
	// 60 events per minute per IP, burst of 30. Rule firings are driven by
	// upstream billing events, not end users, so the limit is generous.
	rl := newIPRateLimiter(rate.Limit(1), 30, evictTTL)
	if log == nil {
		log = slog.Default()
	}
	return &Server{store: s, engine: eng, cfg: cfg, rateLimiter: rl, log: log}
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	var db *pgxpool.Pool
	if srv.store != nil {
		db = srv.store.Pool()
	}
	r := chi.NewRouter()

	// ── Security headers ──────────────────────────────────────────────────────
	// Must be first so they appear on every response including errors.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	})

	// ── Standard chi middleware ───────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// 1 MB global body limit — trigger payloads are small JSON objects.
	r.Use(middleware.RequestSize(1 << 20))
	r.Use(middleware.Recoverer)

	// ── Infrastructure endpoints ──────────────────────────────────────────────
	r.Get("/healthz", healthzHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {
		r.With(srv.eventRateLimit()).Post("/events", srv.fireEventHandler)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", srv.listRulesHandler)
			r.Post("/bulk-active", srv.bulkActiveHandler)
			r.Route("/{rule_id}", func(r chi.Router) {
				r.Get("/", srv.getRuleHandler)
				r.Post("/test", srv.testRuleHandler)
				r.Get("/executions", srv.listExecutionsHandler)
			})
		})

		r.Get("/vocabulary", srv.vocabularyHandler)
		r.Get("/statistics", srv.statisticsHandler)
	})

	return r
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON: encode failed", "error", err)
	}
}

// healthResponse is the JSON body for /healthz.
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

// healthzHandler returns 200 {"status":"ok"} when the DB is reachable,
// or 503 {"status":"degraded","db":"unavailable"} when it is not.
func healthzHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		statusCode := http.StatusOK

		if db == nil {
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		} else if err := db.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "healthz: db ping failed", "error", err)
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, resp)
	}
}
