package main

import (
	"context"
	"expvar"
	"log"
	"runtime"
	"time"

	"github.com/hilthontt/whisperroom/internal/domain"
	"github.com/hilthontt/whisperroom/internal/infrastructure/configs"
	"github.com/hilthontt/whisperroom/internal/infrastructure/logging"
	"github.com/hilthontt/whisperroom/internal/infrastructure/metrics"
	"github.com/hilthontt/whisperroom/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/whisperroom/internal/infrastructure/repository"
	"github.com/hilthontt/whisperroom/internal/infrastructure/tracing"
	"github.com/hilthontt/whisperroom/internal/infrastructure/transcriber"
	"github.com/hilthontt/whisperroom/internal/infrastructure/ws"
	"github.com/hilthontt/whisperroom/internal/presentation/api"
	"github.com/hilthontt/whisperroom/internal/presentation/handler/audio"
	"github.com/hilthontt/whisperroom/internal/presentation/handler/health"
	"github.com/hilthontt/whisperroom/internal/presentation/handler/rooms"
)

const (
	serviceName = "whisperroom-api"
)

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	logger := logging.NewLogger(logging.NewDefaultConfig())
	logger.Init()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	roomRepository := repository.NewRoomRepository(cfg.RoomStore.Capacity, cfg.RoomStore.IdleExpiry)

	hub := ws.NewHub(cfg.WS.SendBuffer, cfg.HTTP.AllowedOrigins)
	wsCore := ws.NewCore(hub, logger)
	go wsCore.Run()

	go sweepIdleRooms(ctx, cfg.RoomStore.SweepInterval, roomRepository, hub, wsCore, logger)

	whisper := transcriber.NewWhisperClient(transcriber.Config{
		Endpoint: cfg.Transcriber.Endpoint,
		Timeout:  cfg.Transcriber.Timeout,
	}, logger)

	roomHandler := rooms.NewHandler(roomRepository, hub, wsCore, logger)
	audioHandler := audio.NewHandler(roomRepository, whisper, wsCore, cfg.Ingest.MaxAudioBytes, logger)
	healthHandler := health.NewHandler()

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	app := api.NewApplication(cfg, roomHandler, audioHandler, healthHandler, logger, rl)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("rooms", expvar.Func(func() any {
		return roomRepository.Len()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

// sweepIdleRooms periodically evicts rooms that have gone quiet and have
// no one listening. Subscribers of an evicted room would have already
// detached, but a closing notice is still broadcast in case the publisher
// holds a dangling code.
func sweepIdleRooms(
	ctx context.Context,
	interval time.Duration,
	repo domain.RoomRepository,
	hub *ws.Hub,
	core *ws.Core,
	logger logging.Logger,
) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := repo.ExpireIdle(ctx, hub.SubscriberCount)
			if len(evicted) == 0 {
				metrics.SetRoomsActive(repo.Len())
				continue
			}

			for _, room := range evicted {
				core.Broadcast() <- ws.NewRoomClosed(room.Code)
				logger.Info(logging.Internal, logging.RoomLifecycle, "idle room expired", map[logging.ExtraKey]any{
					logging.RoomCode: room.Code,
				})
			}

			metrics.AddRoomsExpired(len(evicted))
			metrics.SetRoomsActive(repo.Len())
		}
	}
}
