package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ftpshare/ftpshare/internal/config"
	"github.com/ftpshare/ftpshare/internal/metrics"
	"github.com/ftpshare/ftpshare/internal/middleware"
	"github.com/ftpshare/ftpshare/internal/remote"
	"github.com/ftpshare/ftpshare/internal/token"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server wires the token manager, the remote file collaborators and the HTTP
// surface together.
type Server struct {
	config        *config.Config
	httpServer    *http.Server
	tokenManager  token.Manager
	sweeper       *token.Sweeper
	directory     *remote.Directory
	fileSource    remote.FileSource
	metrics       *metrics.Metrics
	systemTracker *metrics.SystemTracker
}

// New creates a new share server
func New(cfg *config.Config) (*Server, error) {
	// Build the server directory from configuration
	servers := make([]remote.Server, 0, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		servers = append(servers, remote.Server{
			ID:             sc.ID,
			Name:           sc.Name,
			Host:           sc.Host,
			Port:           sc.Port,
			Username:       sc.Username,
			Password:       sc.Password,
			PrivateKeyFile: sc.PrivateKeyFile,
		})
	}
	directory, err := remote.NewDirectory(servers)
	if err != nil {
		return nil, fmt.Errorf("failed to build server directory: %w", err)
	}
	fileSource := remote.NewSFTPSource(directory)

	// Initialize the token manager with the configured store backend
	var tokenManager *token.TokenManager
	switch cfg.Share.StoreBackend {
	case "sqlite":
		tokenManager, err = token.NewManagerWithDB(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create token manager: %w", err)
		}
	default:
		tokenManager = token.NewManager(token.NewMemoryStore(), token.SystemClock{})
	}

	if cfg.Share.VerifyExists {
		tokenManager.SetExistenceChecker(fileSource)
	}

	httpServer := &http.Server{
		Addr:         cfg.Listen,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // downloads stream remote bytes
		IdleTimeout:  60 * time.Second,
	}

	server := &Server{
		config:        cfg,
		httpServer:    httpServer,
		tokenManager:  tokenManager,
		sweeper:       token.NewSweeper(tokenManager),
		directory:     directory,
		fileSource:    fileSource,
		metrics:       metrics.New(),
		systemTracker: metrics.NewSystemTracker(),
	}

	server.setupRoutes()
	return server, nil
}

// Start starts the share server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"address":       s.config.Listen,
		"store_backend": s.config.Share.StoreBackend,
		"servers":       len(s.config.Servers),
	}).Info("Starting share server")

	s.sweeper.Start(ctx, s.config.Share.SweepInterval)

	go func() {
		if err := s.listenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("HTTP server error")
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	return s.shutdown()
}

func (s *Server) listenAndServe() error {
	if s.config.EnableTLS {
		return s.httpServer.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) shutdown() error {
	logrus.Info("Shutting down share server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Failed to shutdown HTTP server")
	}

	s.sweeper.Stop()
	return nil
}

func (s *Server) setupRoutes() {
	router := mux.NewRouter()

	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logging())
	if s.config.Metrics.Enable {
		router.Use(middleware.Observe(s.metrics))
		router.Handle(s.config.Metrics.Path, s.metrics.Handler()).Methods("GET")
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/servers", s.handleListServers).Methods("GET")
	api.HandleFunc("/browse/{serverID}", s.handleBrowse).Methods("GET")
	api.HandleFunc("/shares", s.handleCreateShare).Methods("POST")
	api.HandleFunc("/shares/scheduled", s.handleCreateScheduledShare).Methods("POST")
	api.HandleFunc("/shares", s.handleListShares).Methods("GET")
	api.HandleFunc("/shares/{id}", s.handleDeleteShare).Methods("DELETE")
	api.HandleFunc("/shares/{id}/qr", s.handleShareQR).Methods("GET")
	api.HandleFunc("/download/{id}", s.handleDownload).Methods("GET")

	s.httpServer.Handler = handlers.RecoveryHandler()(router)
}
