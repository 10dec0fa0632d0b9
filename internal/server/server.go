// Package server provides the HTTP server setup, routing configuration, and
// the lifecycle of the headless viewer behind it.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/vigil/internal/api"
	"github.com/stwalsh4118/vigil/internal/authoring"
	"github.com/stwalsh4118/vigil/internal/config"
	"github.com/stwalsh4118/vigil/internal/convergence"
	"github.com/stwalsh4118/vigil/internal/db"
	"github.com/stwalsh4118/vigil/internal/logger"
	"github.com/stwalsh4118/vigil/internal/metrics"
	"github.com/stwalsh4118/vigil/internal/middleware"
	"github.com/stwalsh4118/vigil/internal/mirror"
	"github.com/stwalsh4118/vigil/internal/models"
	"github.com/stwalsh4118/vigil/internal/playback"
	"github.com/stwalsh4118/vigil/internal/render"
	"github.com/stwalsh4118/vigil/internal/store"
)

const orderReadTimeout = 2 * time.Second

// Server represents the HTTP server and the viewer it controls
type Server struct {
	config   *config.Config
	db       *db.DB
	mirror   mirror.Mirror
	state    *store.State
	service  *authoring.Service
	engine   *playback.Engine
	renderer *render.Simulated
	loop     *convergence.Loop
	watcher  *convergence.StoreWatcher
	metrics  *metrics.Metrics
	router   *gin.Engine
	server   *http.Server
	cancel   context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) (*Server, error) {
	repos := db.NewRepositories(database)
	m := newMirror(cfg.Mirror)
	state := store.NewState(store.NewSQLite(repos.State), m)

	met := metrics.New()
	met.WatchMirror(m)

	engineOpts := playback.DefaultOptions()
	engineOpts.AutoFallback = cfg.Playback.AutoFallback
	engineOpts.MaxRetries = cfg.Playback.ReconnectAttempts
	engineOpts.ReconnectDelay = cfg.Playback.ReconnectDelay
	engineOpts.SkipDelay = cfg.Playback.SkipDelay
	engineOpts.LoadRetryDelay = cfg.Playback.LoadRetryDelay
	engineOpts.SeekTolerance = cfg.Convergence.SeekTolerance
	engineOpts.ClockSkewGrace = cfg.Convergence.ClockSkewGrace
	engineOpts.LiveCeiling = cfg.Convergence.LiveCeiling
	engineOpts.Seeds = cfg.Channel.SeedPlaylist
	engineOpts.Order = func() models.PlaybackOrder {
		ctx, cancel := context.WithTimeout(context.Background(), orderReadTimeout)
		defer cancel()
		return state.PlaybackOrder(ctx)
	}
	engineOpts.Reporter = playback.NewMirrorReporter(m)
	engineOpts.Listener = met.ObserveEngineEvent

	// the renderer reports back through the engine's queue
	var engine *playback.Engine
	renderer := render.NewSimulated(func(cmd playback.Command) bool {
		return engine.Submit(cmd)
	}, render.StateDurations(state))
	engine = playback.NewEngine(renderer, engineOpts)
	met.WatchEngine(engine.Snapshot)

	loopOpts := convergence.Options{
		ContentInterval:   cfg.Convergence.ContentInterval,
		ScheduleInterval:  cfg.Convergence.ScheduleInterval,
		ForcePlayInterval: cfg.Convergence.ForcePlayInterval,
		ClockSkewGrace:    cfg.Convergence.ClockSkewGrace,
		LiveCeiling:       cfg.Convergence.LiveCeiling,
		Seeds:             cfg.Channel.SeedPlaylist,
		OnCheck:           met.ObserveCheck,
	}
	loop, err := convergence.NewLoop(state, engine, loopOpts)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("failed to create convergence loop: %w", err)
	}

	s := &Server{
		config:   cfg,
		db:       database,
		mirror:   m,
		state:    state,
		service:  authoring.NewService(state),
		engine:   engine,
		renderer: renderer,
		loop:     loop,
		metrics:  met,
	}

	if cfg.Convergence.WatchStore {
		watcher, err := convergence.NewStoreWatcher(database.Path(), cfg.Convergence.ContentInterval, s.onStoreChange)
		if err != nil {
			state.Close()
			return nil, fmt.Errorf("failed to create store watcher: %w", err)
		}
		s.watcher = watcher
	}

	return s, nil
}

func newMirror(cfg config.MirrorConfig) mirror.Mirror {
	if !cfg.Enabled {
		return mirror.NewDisabled()
	}
	return mirror.NewRedis(mirror.RedisConfig{
		Addr:             cfg.Addr,
		Password:         cfg.Password,
		DB:               cfg.DB,
		Namespace:        cfg.Namespace,
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
		OpTimeout:        cfg.OpTimeout,
	})
}

// onStoreChange runs when another process writes the local store file
func (s *Server) onStoreChange() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.loop.Nudge(ctx)
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestLogger())
	s.router.Use(middleware.RequestMetrics(s.metrics))
	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default())

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.mirror)
	api.SetupPlaylistRoutes(apiGroup, s.service)
	api.SetupScheduleRoutes(apiGroup, s.service)
	api.SetupPlayerRoutes(apiGroup, s.engine, s.loop, s.config.Channel.Live.Source)
	apiGroup.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// startViewer connects the mirror and starts playback, the convergence polls,
// and the store watcher
func (s *Server) startViewer() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	initCtx, initCancel := context.WithTimeout(ctx, s.config.Mirror.OpTimeout+time.Second)
	// an unreachable mirror leaves playback on local state
	_ = s.mirror.Init(initCtx)
	s.loop.Bootstrap(initCtx)
	initCancel()

	go s.engine.Run(ctx)
	go s.renderer.Run(ctx)

	if err := s.loop.Start(ctx); err != nil {
		return fmt.Errorf("failed to start convergence loop: %w", err)
	}

	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			return fmt.Errorf("failed to start store watcher: %w", err)
		}
	}

	if live := s.config.Channel.Live; live.Enabled {
		s.engine.Apply(playback.SwitchToLive{Source: live.Source})
	}

	return nil
}

// Start starts the viewer and the HTTP server
func (s *Server) Start() error {
	s.setupRouter()

	if err := s.startViewer(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	var shutdownErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
	}

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to stop store watcher")
		}
	}

	s.loop.Stop()
	if s.cancel != nil {
		s.cancel()
	}

	// drains queued mirror pushes before the connection closes
	s.state.Close()
	if err := s.mirror.Close(); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to close remote mirror")
	}

	if shutdownErr != nil {
		return shutdownErr
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
