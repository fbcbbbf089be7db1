// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/models"
	"github.com/treasury-tracker/internal/service"
	"github.com/treasury-tracker/internal/storage"
	"github.com/treasury-tracker/internal/types"
)

// Service interfaces for dependency injection and testing

// CaptureServiceInterface defines the interface for capture operations
type CaptureServiceInterface interface {
	CaptureAsset(ctx context.Context, assetID types.AssetID) (*models.Snapshot, error)
	CaptureAll(ctx context.Context) (*service.CaptureResult, error)
	CaptureMerged(ctx context.Context) (*models.Snapshot, error)
}

// DashboardServiceInterface defines the interface for dashboard queries
type DashboardServiceInterface interface {
	ListSnapshots(ctx context.Context) ([]*service.SnapshotSummary, error)
	LatestSnapshot(ctx context.Context, coin types.CoinTag) (*service.SnapshotView, error)
	GetDashboard(ctx context.Context, coin types.CoinTag, topN int) (*service.Dashboard, error)
	GetProjection(ctx context.Context, coin types.CoinTag, factor float64) (*service.Projection, error)
	GetHistory(ctx context.Context, coin types.CoinTag, from, to time.Time) ([]storage.HoldingPoint, error)
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	captureService   CaptureServiceInterface
	dashboardService DashboardServiceInterface
	config           *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	captureService CaptureServiceInterface,
	dashboardService DashboardServiceInterface,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		captureService:   captureService,
		dashboardService: dashboardService,
		config:           config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Snapshot endpoints
	api.HandleFunc("/snapshots/capture", s.handleCapture).Methods("POST")
	api.HandleFunc("/snapshots", s.handleListSnapshots).Methods("GET")
	api.HandleFunc("/snapshots/latest", s.handleLatestSnapshot).Methods("GET")

	// Asset endpoints
	api.HandleFunc("/assets/{asset}/dashboard", s.handleDashboard).Methods("GET")
	api.HandleFunc("/assets/{asset}/projection", s.handleProjection).Methods("GET")
	api.HandleFunc("/assets/{asset}/history", s.handleHistory).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "treasury-tracker",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for tests
func (s *Server) Router() *mux.Router {
	return s.router
}
