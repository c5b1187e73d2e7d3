package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/shipping/internal/graphql"
	"github.com/tournevent/shipping/pkg/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP server for the shipping service.
type Server struct {
	cfg      Config
	service  *shipping.Service
	logger   *otelzap.Logger
	gatherer prometheus.Gatherer
	resolver *graphql.Resolver
}

// Config holds server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// New creates a new server instance. gatherer backs the /metrics endpoint.
func New(cfg Config, svc *shipping.Service, gatherer prometheus.Gatherer, logger *otelzap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		service:  svc,
		logger:   logger,
		gatherer: gatherer,
		resolver: graphql.NewResolver(svc, logger),
	}
}

// Handler returns the fully routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.HandleFunc("/graphql", s.handleGraphQL)

	r.Route("/api/shipping", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/provinces", s.handleProvinces)
		r.Get("/communes", s.handleCommunes)
		r.Get("/pickup-centers", s.handlePickupCenters)
		r.Post("/fees", s.handleFees)
		r.Post("/shipments", s.handleCreateShipments)
		r.Get("/shipments", s.handleListShipments)
		r.Get("/shipments/stats", s.handleStats)
		r.Get("/shipment/{tracking}", s.handleGetShipment)
		r.Patch("/shipment/{tracking}", s.handleUpdateShipment)
		r.Delete("/shipment/{tracking}", s.handleDeleteShipment)
		r.Get("/tracking/{tracking}", s.handleTracking)
	})

	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type graphQLError struct {
	Message string `json:"message"`
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"errors": []graphQLError{{Message: "Method not allowed, use POST"}},
		})
		return
	}

	var req graphql.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []graphQLError{{Message: "Invalid JSON: " + err.Error()}},
		})
		return
	}

	writeJSON(w, http.StatusOK, s.resolver.Execute(r.Context(), req))
}
