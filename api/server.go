// Package api provides the HTTP REST API server for CreditPulse.
//
// Portfolios are uploaded once into a session and every analysis endpoint
// reads from that session: aggregate and sector statistics, bond analytics,
// the contagion graph, stress scenarios, spread alerts, macro data,
// insights and the rendered risk report. Alert decisions are streamed over
// WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/seenimoa/creditpulse/internal/alert"
	"github.com/seenimoa/creditpulse/internal/config"
	"github.com/seenimoa/creditpulse/internal/infra"
	"github.com/seenimoa/creditpulse/internal/insight"
	"github.com/seenimoa/creditpulse/internal/logging"
	"github.com/seenimoa/creditpulse/internal/metrics"
	"github.com/seenimoa/creditpulse/internal/notify"
	"github.com/seenimoa/creditpulse/internal/provider"
	"github.com/seenimoa/creditpulse/internal/scenario"
	"github.com/seenimoa/creditpulse/pkg/models"
)

// Deps are the collaborators a Server is built from. Nil fields get
// working defaults, except Macro, whose absence disables /macro.
type Deps struct {
	Logger   *zap.Logger
	Metrics  *metrics.Collectors
	Catalog  *scenario.Catalog
	Notifier notify.Notifier
	Insights *insight.Generator
	Macro    *provider.Registry
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	cfgMu    sync.RWMutex
	log      *zap.Logger
	metrics  *metrics.Collectors
	sessions *infra.Cache
	catalog  *scenario.Catalog
	detector *alert.Detector
	insights *insight.Generator
	macro    *provider.Registry
	stream   *AlertStream
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("api: nil config")
	}
	log := logging.OrNop(deps.Logger).Named("api")

	catalog := deps.Catalog
	if catalog == nil {
		var err error
		if catalog, err = scenario.FromConfig(cfg.Scenarios); err != nil {
			return nil, fmt.Errorf("scenario catalog: %w", err)
		}
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	gen := deps.Insights
	if gen == nil {
		gen = &insight.Generator{KB: insight.DefaultKnowledgeBase(), Logger: log}
	}

	ttl := cfg.API.SessionTTL()
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	srv := &Server{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		sessions: infra.NewCache(ttl),
		catalog:  catalog,
		insights: gen,
		macro:    deps.Macro,
		stream:   NewAlertStream(log.Named("stream")),
	}

	det := alert.NewDetector(deps.Notifier, log.Named("alert"))
	det.Threshold = cfg.Alerts.Threshold
	det.Channel = cfg.Alerts.Channel
	det.Metrics = m
	det.OnDecision = srv.broadcastAlert
	srv.detector = det

	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Stream returns the WebSocket alert stream.
func (s *Server) Stream() *AlertStream { return s.stream }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	bgCtx, stopBg := context.WithCancel(ctx)
	defer stopBg()
	go s.stream.Run(bgCtx)
	go s.sessions.RunJanitor(bgCtx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket stays outside the timeout middleware.
		r.Get("/ws", s.handleWebSocket)
		r.Get("/ws/alerts", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// Portfolio sessions
			r.Post("/portfolios", s.handleUpload)
			r.Route("/portfolios/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPortfolio)
				r.Delete("/", s.handleDeletePortfolio)

				r.Get("/summary", s.handleSummary)
				r.Get("/sectors", s.handleSectors)
				r.Get("/concentration", s.handleConcentration)
				r.Get("/liquidity", s.handleLiquidity)
				r.Get("/analytics", s.handleAnalytics)

				r.Get("/graph", s.handleGraph)
				r.Get("/contagion/propagate", s.handlePropagate)
				r.Get("/contagion/paths", s.handlePaths)
				r.Get("/contagion/impact", s.handleImpact)
				r.Get("/contagion/connected", s.handleConnected)
				r.Get("/contagion/shortest", s.handleShortestPath)

				r.Post("/stress", s.handleStress)
				r.Post("/alerts/evaluate", s.handleEvaluatePortfolio)
				r.Get("/breaches", s.handleBreaches)
				r.Get("/report", s.handleReport)
			})

			// Scenarios
			r.Get("/scenarios", s.handleScenarios)

			// Single bonds
			r.Post("/bonds/analytics", s.handleBondAnalytics)

			// Alerts
			r.Post("/alerts/evaluate", s.handleEvaluate)

			// Macro data
			r.Get("/macro/series/{series}", s.handleMacroSeries)
			r.Get("/macro/search", s.handleMacroSearch)
			r.Get("/macro/curve", s.handleMacroCurve)
			r.Get("/macro/spreads/{rating}", s.handleMacroSpreads)

			// Insights
			r.Get("/insights/{bond}", s.handleInsights)

			// Configuration
			r.Get("/config", s.handleGetConfig)
			r.Put("/config", s.handleUpdateConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)
		})
	})

	return r
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// broadcastAlert forwards abnormal alert decisions to WebSocket clients.
func (s *Server) broadcastAlert(ev models.AlertEvent) {
	s.stream.Publish(ev)
}

// ============================================================
// Response helpers
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// validBody writes a 400 naming the missing fields when v fails its
// validate tags.
func validBody(w http.ResponseWriter, v any) bool {
	missing, err := models.MissingFields(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]interface{}{
		"status":     "ok",
		"sessions":   s.sessions.Len(),
		"ws_clients": s.stream.Subscribers(),
		"macro":      s.macro != nil,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}
