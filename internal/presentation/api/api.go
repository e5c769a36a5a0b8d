package api

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/whisperroom/internal/infrastructure/configs"
	"github.com/hilthontt/whisperroom/internal/infrastructure/logging"
	"github.com/hilthontt/whisperroom/internal/infrastructure/ratelimiter"
	audioHandler "github.com/hilthontt/whisperroom/internal/presentation/handler/audio"
	healthHandler "github.com/hilthontt/whisperroom/internal/presentation/handler/health"
	roomHandler "github.com/hilthontt/whisperroom/internal/presentation/handler/rooms"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Application struct {
	config        *configs.Config
	roomHandler   *roomHandler.Handler
	audioHandler  *audioHandler.Handler
	healthHandler *healthHandler.Handler
	logger        logging.Logger
	ratelimiter   ratelimiter.Limiter
}

func NewApplication(
	config *configs.Config,
	roomHandler *roomHandler.Handler,
	audioHandler *audioHandler.Handler,
	healthHandler *healthHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:        config,
		roomHandler:   roomHandler,
		audioHandler:  audioHandler,
		healthHandler: healthHandler,
		logger:        logger,
		ratelimiter:   ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(app.loggerMiddleware)
		r.Use(app.rateLimiterMiddleware)
		r.Use(app.enableCors)

		r.Route("/api", func(r chi.Router) {
			r.Route("/rooms", func(r chi.Router) {
				r.Get("/create", app.roomHandler.CreateRoomHandler)
				r.Get("/join", app.roomHandler.JoinRoomHandler)
			})

			r.Post("/audio", app.audioHandler.SubmitAudioHandler)

			r.Get("/health", app.healthHandler.GetHealth)
		})

		r.Get("/healthz", app.healthHandler.GetHealth)
	})

	// The websocket endpoint lives outside the timeout middleware so
	// long-lived subscriber connections are never cut by it.
	r.Get("/ws", app.roomHandler.AttachHandler)

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/debug/vars", expvar.Handler())

	return r
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
