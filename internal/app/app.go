package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/syncroom/internal/controller"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/connection/inmemory"
	"github.com/sharetube/syncroom/internal/repository/room"
	roomBuntdb "github.com/sharetube/syncroom/internal/repository/room/buntdb"
	roomRedis "github.com/sharetube/syncroom/internal/repository/room/redis"
	wssender "github.com/sharetube/syncroom/internal/repository/ws-sender"
	"github.com/sharetube/syncroom/internal/service/admission"
	roomService "github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/ctxlogger"
	"github.com/sharetube/syncroom/pkg/redisclient"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type AppConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	LogLevel      string        `json:"log_level"`
	Store         string        `json:"store"`
	StorePath     string        `json:"store_path"`
	RoomTTL       time.Duration `json:"room_ttl"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	RateLimit     float64       `json:"rate_limit"`
	RateBurst     int           `json:"rate_burst"`
	RateKeys      int           `json:"rate_keys"`
	RedisPort     int           `json:"redis_port"`
	RedisHost     string        `json:"redis_host"`
	RedisPassword string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&cfg.LogLevel, validation.By(func(value any) error {
			var level slog.Level
			return level.UnmarshalText([]byte(strings.ToUpper(value.(string))))
		})),
		validation.Field(&cfg.Store, validation.Required, validation.In(StoreRedis, StoreMemory)),
		validation.Field(&cfg.StorePath, validation.When(cfg.Store == StoreMemory, validation.Required)),
		validation.Field(&cfg.RoomTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&cfg.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&cfg.RateLimit, validation.Min(0.0)),
		validation.Field(&cfg.RateBurst, validation.When(cfg.RateLimit > 0, validation.Required, validation.Min(1))),
		validation.Field(&cfg.RateKeys, validation.Required, validation.Min(1)),
		validation.Field(&cfg.RedisHost, validation.When(cfg.Store == StoreRedis, validation.Required)),
		validation.Field(&cfg.RedisPort, validation.When(cfg.Store == StoreRedis, validation.Required, validation.Max(65535))),
	)
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		log.Fatal(err)
	}

	return slog.New(ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}),
	})
}

type roomRepo interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (domain.Room, error)
	GetRoom(context.Context, string) (domain.Room, error)
	AddParticipant(context.Context, *room.AddParticipantParams) (domain.Room, error)
	RemoveParticipant(context.Context, *room.RemoveParticipantParams) (domain.Room, error)
	UpdateVideoState(context.Context, *room.UpdateVideoStateParams) (domain.VideoState, error)
	UpdatePermissions(context.Context, *room.UpdatePermissionsParams) (domain.Room, error)
	DeleteRoom(context.Context, string) (bool, error)
}

func newRoomRepo(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (roomRepo, func() error, error) {
	switch cfg.Store {
	case StoreRedis:
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
		}

		return roomRedis.NewRepo(rc, logger, cfg.RoomTTL), rc.Close, nil
	case StoreMemory:
		repo, err := roomBuntdb.NewRepo(cfg.StorePath, logger, cfg.RoomTTL)
		if err != nil {
			return nil, nil, err
		}

		return repo, repo.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// newHandler wires the registry, services and controller. close releases the
// registry backend.
func newHandler(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (http.Handler, func() error, error) {
	repo, closeRepo, err := newRoomRepo(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	limiter, err := admission.NewLimiter(&admission.Config{
		Limit: cfg.RateLimit,
		Burst: cfg.RateBurst,
		Size:  cfg.RateKeys,
	})
	if err != nil {
		closeRepo()
		return nil, nil, err
	}

	connectionRepo := inmemory.NewRepo(logger)
	service := roomService.NewService(repo, connectionRepo, logger)
	controller := controller.NewController(service, wssender.NewRepo(cfg.WriteTimeout), limiter, logger)

	return controller.GetMux(), closeRepo, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	handler, closeRepo, err := newHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr, "store", cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
