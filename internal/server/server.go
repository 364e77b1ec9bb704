// Package server wires the shell kernel together and exposes it over HTTP.
package server

import (
	"context"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/glasspane/webdesk/internal/api/middleware"
	"github.com/glasspane/webdesk/internal/apps"
	"github.com/glasspane/webdesk/internal/apps/builtin"
	"github.com/glasspane/webdesk/internal/config"
	"github.com/glasspane/webdesk/internal/events"
	shellhttp "github.com/glasspane/webdesk/internal/http"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/monitoring"
	"github.com/glasspane/webdesk/internal/popout"
	"github.com/glasspane/webdesk/internal/render"
	"github.com/glasspane/webdesk/internal/session"
	"github.com/glasspane/webdesk/internal/shared/types"
	"github.com/glasspane/webdesk/internal/windows"
	"github.com/glasspane/webdesk/internal/ws"
)

// Server owns the kernel object graph and the HTTP surface over it.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	bus     *events.Bus
	metrics *monitoring.Metrics
	promReg *prometheus.Registry

	wm       *windows.Manager
	loader   *apps.Loader
	registry *apps.Registry
	sessions *session.Manager
	popouts  *popout.Synchronizer
	stream   *ws.Handler

	router *gin.Engine
	http   *nethttp.Server

	unsubLaunch events.UnsubscribeFunc
}

// Option overrides a default dependency.
type Option func(*options)

type options struct {
	renderer render.Renderer
	opener   popout.Opener
}

// WithRenderer substitutes the rendering adapter.
func WithRenderer(r render.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithOpener substitutes the pop-out window opener.
func WithOpener(op popout.Opener) Option {
	return func(o *options) { o.opener = op }
}

// New builds the full kernel: event bus, window manager, loader, registry,
// session manager and pop-out synchronizer, then the REST and WebSocket
// surface over them.
func New(cfg *config.Config, log *logging.Logger, opts ...Option) (*Server, error) {
	o := &options{
		renderer: render.NewHeadless(),
		opener:   popout.NewPageOpener(),
	}
	for _, opt := range opts {
		opt(o)
	}

	promReg := prometheus.NewRegistry()
	metrics := monitoring.NewWith(promReg)

	bus := events.NewBus(log,
		events.WithHistorySize(cfg.Shell.EventHistorySize),
		events.WithMetrics(metrics),
	)

	wm := windows.NewManager(log, bus, o.renderer, cfg.Shell).WithMetrics(metrics)
	loader := apps.NewLoader(builtin.Table(wm), cfg.Loader, log).WithMetrics(metrics)
	registry := apps.NewRegistry(log, bus).WithMetrics(metrics)

	s := &Server{
		cfg:      cfg,
		log:      log.Named("server"),
		bus:      bus,
		metrics:  metrics,
		promReg:  promReg,
		wm:       wm,
		loader:   loader,
		registry: registry,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	loader.PreloadApps(ctx, builtin.CriticalApps())
	s.registerCatalogue(ctx)
	s.seedCatalogue()

	store, err := session.NewFileStore(cfg.Session.Dir)
	if err != nil {
		return nil, err
	}
	s.sessions = session.NewManager(store, wm, registry, bus, log).WithMetrics(metrics)
	s.popouts = popout.NewSynchronizer(log, bus, o.opener, wm, cfg.Popout).WithMetrics(metrics)
	s.stream = ws.NewHandler(bus, wm, s.popouts, log).WithMetrics(metrics)

	// Components that must not call the registry directly ask for launches
	// over the bus; the server is the one integrator that answers.
	s.unsubLaunch = bus.Subscribe(events.AppLaunchRequested, func(p events.Payload) {
		req, ok := p.Data.(types.LaunchRequest)
		if !ok {
			return
		}
		if _, ok := registry.LaunchApp(req.AppID, req.TeamID); !ok {
			s.log.Warn("requested launch failed", zap.String("app", req.AppID))
		}
	})

	s.router = s.buildRouter()
	return s, nil
}

// registerCatalogue registers every loadable app with the registry, backed
// by loader-resolved constructors so registry launches share the loader's
// cache and in-flight de-duplication.
func (s *Server) registerCatalogue(ctx context.Context) {
	for _, appID := range s.loader.AvailableApps() {
		appID := appID
		probe, err := s.loader.LoadApp(ctx, appID)
		if err != nil {
			s.log.Warn("skipping unloadable app", zap.String("app", appID), zap.Error(err))
			continue
		}
		meta := probe.Meta()

		ctor := func() apps.App {
			instance, err := s.loader.LoadApp(context.Background(), appID)
			if err != nil {
				s.log.Error("constructor load failed", zap.String("app", appID), zap.Error(err))
				return nil
			}
			return instance
		}
		s.registry.Register(appID, ctor, apps.RegisterOptions{Singleton: meta.Singleton})

		if meta.Pinned {
			s.wm.Taskbar().Pin(appID, meta.Icon)
		}
	}
}

// seedCatalogue applies the on-disk manifest catalogue on top of the
// registered apps: install state and taskbar pins.
func (s *Server) seedCatalogue() {
	seeder := apps.NewSeeder(s.registry, s.loader, s.cfg.Apps.CatalogueDir, s.log)
	err := seeder.Seed(func(m apps.Manifest) bool {
		if _, ok := s.registry.Get(m.ID); !ok {
			return false
		}
		if m.Installed {
			s.registry.Install(m.ID)
		}
		if m.Pinned {
			s.wm.Taskbar().Pin(m.ID, m.Icon)
		}
		return true
	})
	if err != nil {
		s.log.Warn("catalogue seeding failed", zap.Error(err))
	}
}

func (s *Server) buildRouter() *gin.Engine {
	if !s.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(s.cfg.RateLimit))
	}
	router.Use(monitoring.Middleware(s.metrics))

	h := shellhttp.NewHandlers(s.registry, s.loader, s.wm, s.sessions, s.popouts, s.bus, s.metrics)

	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{})))

	// App catalogue and lifecycle
	router.GET("/apps", h.ListApps)
	router.GET("/apps/available", h.ListAvailable)
	router.GET("/apps/categories", h.ListCategories)
	router.GET("/apps/:id", h.GetApp)
	router.POST("/apps/:id/launch", h.LaunchApp)
	router.POST("/apps/:id/install", h.InstallApp)
	router.POST("/apps/:id/uninstall", h.UninstallApp)
	router.DELETE("/apps/:id", h.CloseApp)

	// Window management
	router.GET("/windows", h.ListWindows)
	router.GET("/windows/:id", h.GetWindow)
	router.DELETE("/windows/:id", h.CloseWindow)
	router.POST("/windows/:id/focus", h.FocusWindow)
	router.POST("/windows/:id/minimize", h.MinimizeWindow)
	router.POST("/windows/:id/restore", h.RestoreWindow)
	router.POST("/windows/:id/maximize", h.MaximizeWindow)
	router.POST("/windows/:id/unmaximize", h.UnmaximizeWindow)
	router.PATCH("/windows/:id/geometry", h.MoveWindow)
	router.POST("/windows/:id/popout", h.PopoutWindow)
	router.POST("/popouts/:handle/closed", h.PopoutClosed)
	router.POST("/viewport", h.SetViewport)

	// Sessions
	router.POST("/sessions/save", h.SaveSession)
	router.GET("/sessions", h.ListSessions)
	router.GET("/sessions/:id", h.GetSession)
	router.POST("/sessions/:id/restore", h.RestoreSession)
	router.DELETE("/sessions/:id", h.DeleteSession)

	// Shell
	router.GET("/events/history", h.EventHistory)
	router.POST("/logout", h.Logout)
	router.GET("/stream", s.stream.HandleConnection)

	return router
}

// Router exposes the gin engine, used by tests to drive the surface
// without a listening socket.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run(addr string) error {
	s.http = &nethttp.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("listening", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Close tears down kernel components.
func (s *Server) Close() {
	if s.unsubLaunch != nil {
		s.unsubLaunch()
	}
	s.popouts.Close()
	s.stream.Close()
}
