package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/logging"
	"github.com/smazurov/lightnode/internal/nats"
	"github.com/smazurov/lightnode/internal/systemd"
	"github.com/smazurov/lightnode/internal/version"
)

// shutdownTimeout bounds graceful shutdown; open SSE streams are cut after it.
const shutdownTimeout = 3 * time.Second

// Publisher puts commands on the NATS subjects the daemon listens to.
type Publisher interface {
	Subjects() nats.Subjects
	PublishLight(ctx context.Context, m nats.LightMessage) error
	PublishTone(ctx context.Context, m nats.ToneMessage) error
}

// ServiceStatus reads systemd unit state.
type ServiceStatus interface {
	Status(ctx context.Context, unit string) (systemd.UnitStatus, error)
}

// Options configures the API server.
type Options struct {
	Publisher    Publisher
	EventBus     *events.Bus
	Capabilities models.Capabilities
	// Connected reports whether the daemon's NATS link is up. Nil means unknown.
	Connected func() bool
	// Service enables /api/service/status when set.
	Service ServiceStatus
	// Unit is the unit reported when the request names none.
	Unit string
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// Server is the huma v2 HTTP API.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("Lightnode API", version.Version)
	config.Info.Description = "Publishes light and buzzer commands and streams effect events"
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	if opts.Unit == "" {
		opts.Unit = systemd.DefaultUnit
	}

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	server.registerRoutes()

	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("Starting API server", "addr", l.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+l.Addr().String()+"/docs")

	err := s.httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown stops accepting requests and waits briefly for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		// SSE handlers hold connections open; force them closed.
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health and the NATS link",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		data := models.HealthData{Status: "ok", Message: "API is healthy", NATS: "unknown"}
		if s.options.Connected != nil {
			if s.options.Connected() {
				data.NATS = "connected"
			} else {
				data.NATS = "disconnected"
				data.Status = "degraded"
				data.Message = "NATS connection is down"
			}
		}
		return &models.HealthResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerLEDRoutes()
	s.registerBuzzerRoutes()
	s.registerLogRoutes()
	s.registerSystemdRoutes()
	s.registerSSERoutes()
}
