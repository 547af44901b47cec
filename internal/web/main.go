// Package web provides the HTTP surface of the authorization engine.
package web

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/authz"
	"github.com/evalforge/evalforge/internal/config"
	"github.com/evalforge/evalforge/internal/identity"
	fiberlogger "github.com/evalforge/evalforge/internal/logger/adapter/fiber"
	"github.com/evalforge/evalforge/internal/web/handler"
	"github.com/evalforge/evalforge/internal/web/handler/roleperm"
	"github.com/evalforge/evalforge/internal/web/handler/visibility"
	authmw "github.com/evalforge/evalforge/internal/web/middleware/auth"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	engine       *authz.Service
}

// Start runs the web service until an interrupt or termination signal
// arrives, then shuts it down gracefully.
func (s *Service) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Webserver.Port)
	doneFiber := make(chan bool)

	s.alive.Store(true)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	s.WaitShutdown()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB, engine *authz.Service, verifier identity.Verifier) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize:        8192,
			AppName:               cfg.Title,
			CaseSensitive:         true,
			Prefork:               false,
			Immutable:             true,
			DisableStartupMessage: !cfg.DevMode,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(fiberrecover.New())
	}

	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: "/checkalive",
	}))

	service := &Service{
		cfg:    cfg,
		App:    app,
		db:     db,
		engine: engine,
	}

	app.Get("/checkalive", service.checkAlive)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// everything under /api requires a resolved AuthContext
	app.Use(handler.APIPath, authmw.New(verifier, engine))

	// init handlers (they register their own routes with permission checks)
	roleperm.Handler.Init(app, engine)
	visibility.Handler.Init(app, engine)

	return service
}

// checkAlive reports readiness; during graceful shutdown it flips to 503
// so load balancers drain this instance.
func (s *Service) checkAlive(c *fiber.Ctx) error {
	if !s.alive.Load() {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	return c.SendStatus(fiber.StatusOK)
}
