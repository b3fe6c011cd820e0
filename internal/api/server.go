package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/sidecar/internal/api/models"
	"github.com/smazurov/sidecar/internal/events"
	"github.com/smazurov/sidecar/internal/logging"
	"github.com/smazurov/sidecar/internal/notifier"
	"github.com/smazurov/sidecar/internal/query"
	"github.com/smazurov/sidecar/internal/supervisor"
	"github.com/smazurov/sidecar/internal/version"
	"github.com/smazurov/sidecar/ui"
)

// StateSource reports the supervised instance to the bridge.
type StateSource interface {
	ID() string
	State() supervisor.State
}

// Options configures the bridge server.
type Options struct {
	EventBus       *events.Bus
	Query          *query.Endpoint
	Supervisor     StateSource
	Notifier       *notifier.Notifier // attached while event stream clients are connected
	MetricsHandler http.Handler       // optional Prometheus handler
	ServeUI        bool
}

// Server is the loopback HTTP bridge between the shell's UI and the supervisor.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	eventBus   *events.Bus
	query      *query.Endpoint
	supervisor StateSource
	notifier   *notifier.Notifier
	logger     *slog.Logger

	clientsMu sync.Mutex
	clients   int
}

// NewServer creates the bridge with Huma v2 on Go's native router.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("Sidecar Bridge", version.String())
	config.Info.Description = "Backend readiness and port discovery for the desktop shell"
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)
	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	s := newServer(api, mux, opts)

	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	s.registerRoutes()

	if opts.ServeUI {
		if uiHandler, err := ui.Handler(); err == nil {
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				if strings.HasPrefix(r.URL.Path, "/api") {
					http.NotFound(w, r)
					return
				}
				uiHandler.ServeHTTP(w, r)
			})
		} else {
			s.logger.Warn("Bootstrap page unavailable", "error", err)
		}
	}

	return s
}

func newServer(api huma.API, mux *http.ServeMux, opts *Options) *Server {
	bus := opts.EventBus
	if bus == nil {
		bus = events.New()
	}
	return &Server{
		api:        api,
		mux:        mux,
		eventBus:   bus,
		query:      opts.Query,
		supervisor: opts.Supervisor,
		notifier:   opts.Notifier,
		logger:     logging.GetLogger("api"),
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve serves the bridge on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	addr := ln.Addr().String()
	s.logger.Info("Starting bridge server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	srv := &http.Server{Handler: s.mux}
	s.clientsMu.Lock()
	s.httpServer = srv
	s.clientsMu.Unlock()

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the server. Event streams are long lived, so connections are
// closed rather than drained.
func (s *Server) Stop() error {
	s.logger.Info("Stopping bridge server")

	s.clientsMu.Lock()
	srv := s.httpServer
	s.clientsMu.Unlock()

	if srv != nil {
		return srv.Close()
	}
	return nil
}

// clientConnected attaches the UI target when the first event client arrives.
func (s *Server) clientConnected() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	s.clients++
	if s.clients == 1 && s.notifier != nil {
		s.notifier.Attach(notifier.NewBusTarget(s.eventBus))
		s.logger.Debug("UI attached")
	}
}

// clientDisconnected detaches the UI target when the last event client leaves.
func (s *Server) clientDisconnected() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	s.clients--
	if s.clients == 0 && s.notifier != nil {
		s.notifier.Detach()
		s.logger.Debug("UI detached")
	}
}

func (s *Server) clientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return s.clients
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check bridge health status",
		Tags:        []string{"health"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "Bridge is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-server-port",
		Method:      http.MethodGet,
		Path:        "/api/port",
		Summary:     "Backend port",
		Description: "Get the port the backend announced. Returns 503 until the backend is ready.",
		Tags:        []string{"server"},
		Errors:      []int{http.StatusServiceUnavailable},
	}, func(_ context.Context, _ *struct{}) (*models.PortResponse, error) {
		if s.query == nil {
			return nil, huma.Error503ServiceUnavailable("Server not ready")
		}
		port, err := s.query.GetPort()
		if errors.Is(err, query.ErrNotReady) {
			return nil, huma.Error503ServiceUnavailable("Server not ready")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to read port", err)
		}
		return &models.PortResponse{
			Body: models.PortData{Port: port, URL: notifier.URL(port)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-server-state",
		Method:      http.MethodGet,
		Path:        "/api/state",
		Summary:     "Supervisor state",
		Description: "Get the supervisor state, the port once known and UI attachment",
		Tags:        []string{"server"},
	}, func(_ context.Context, _ *struct{}) (*models.StateResponse, error) {
		return &models.StateResponse{Body: s.stateData()}, nil
	})

	s.registerEventRoutes()
	s.registerLogRoutes()
}

func (s *Server) stateData() models.StateData {
	data := models.StateData{Clients: s.clientCount()}
	if s.supervisor != nil {
		data.InstanceID = s.supervisor.ID()
		data.State = string(s.supervisor.State())
	}
	if s.query != nil {
		if port, err := s.query.GetPort(); err == nil {
			data.Port = &port
		}
	}
	if s.notifier != nil {
		data.NotifierAttached = s.notifier.Attached()
		data.NavigationSent = s.notifier.Fired()
		data.SettleDelayMs = s.notifier.Delay().Milliseconds()
	}
	return data
}
