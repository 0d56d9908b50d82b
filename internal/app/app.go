package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sharetube/syncroom/internal/controller"
	"github.com/sharetube/syncroom/internal/metrics"
	"github.com/sharetube/syncroom/internal/repository/catalog"
	catalogSqlite "github.com/sharetube/syncroom/internal/repository/catalog/sqlite"
	"github.com/sharetube/syncroom/internal/repository/connection/inmemory"
	roomRepo "github.com/sharetube/syncroom/internal/repository/room"
	roomInmemory "github.com/sharetube/syncroom/internal/repository/room/inmemory"
	roomRedis "github.com/sharetube/syncroom/internal/repository/room/redis"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/ctxlogger"
	"github.com/sharetube/syncroom/pkg/redisclient"
	"github.com/sharetube/syncroom/pkg/wsconn"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type AppConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	LogLevel          string        `json:"log_level"`
	MembersLimit      int           `json:"members_limit"`
	Storage           string        `json:"storage"`
	RedisHost         string        `json:"redis_host"`
	RedisPort         int           `json:"redis_port"`
	RedisPassword     string        `json:"-"`
	GracePeriod       time.Duration `json:"grace_period"`
	EmptyRoomTTL      time.Duration `json:"empty_room_ttl"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	SendQueueSize     int           `json:"send_queue_size"`
	DropPolicy        string        `json:"drop_policy"`
	ChatHistoryLimit  int           `json:"chat_history_limit"`
	CatalogPath       string        `json:"catalog_path"`
	CatalogSeed       string        `json:"catalog_seed"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.Storage != StorageMemory && cfg.Storage != StorageRedis {
		return fmt.Errorf("storage must be %q or %q", StorageMemory, StorageRedis)
	}
	if cfg.GracePeriod <= 0 {
		return fmt.Errorf("grace period must be positive")
	}
	if cfg.EmptyRoomTTL < 0 {
		return fmt.Errorf("empty room ttl must not be negative")
	}
	if cfg.SendQueueSize < 1 {
		return fmt.Errorf("send queue size must be greater than 0")
	}
	if p := wsconn.DropPolicy(cfg.DropPolicy); p != wsconn.DropOldest && p != wsconn.Disconnect {
		return fmt.Errorf("drop policy must be %q or %q", wsconn.DropOldest, wsconn.Disconnect)
	}
	if cfg.ChatHistoryLimit < 1 {
		return fmt.Errorf("chat history limit must be greater than 0")
	}
	if cfg.CatalogSeed != "" && cfg.CatalogPath == "" {
		return fmt.Errorf("catalog seed requires a catalog path")
	}
	if err := new(slog.Level).UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	return nil
}

type iMovieCatalog interface {
	Movie(ctx context.Context, slug string) (catalog.Movie, error)
}

type iController interface {
	GetMux() http.Handler
	RunHeartbeat(ctx context.Context, interval time.Duration)
}

type App struct {
	cfg        *AppConfig
	logger     *slog.Logger
	controller iController
	closers    []func() error
}

func NewLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		logLevel = slog.LevelInfo
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h)
}

// New wires storage, services and the controller. Close releases what it opened.
func New(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	repo, err := a.newRoomRepo(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	movies, err := a.newCatalog(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	m := metrics.New()
	roomService := room.NewService(repo, inmemory.NewRepo(logger), movies, m, logger, room.Config{
		MembersLimit:     cfg.MembersLimit,
		GracePeriod:      cfg.GracePeriod,
		EmptyRoomTTL:     cfg.EmptyRoomTTL,
		ChatHistoryLimit: cfg.ChatHistoryLimit,
	})
	a.closers = append(a.closers, func() error {
		roomService.Close()
		return nil
	})

	a.controller = controller.NewController(roomService, m, logger, controller.Config{
		SendQueueSize: cfg.SendQueueSize,
		DropPolicy:    wsconn.DropPolicy(cfg.DropPolicy),
		WriteTimeout:  10 * time.Second,
		PingInterval:  30 * time.Second,
		PongTimeout:   60 * time.Second,
	})

	return a, nil
}

func (a *App) newRoomRepo(ctx context.Context) (roomRepo.Repository, error) {
	if a.cfg.Storage != StorageRedis {
		return roomInmemory.NewRepo(a.logger), nil
	}

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	a.closers = append(a.closers, rc.Close)

	repo, err := roomRedis.NewRepo(ctx, rc, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create room repository: %w", err)
	}

	return repo, nil
}

func (a *App) newCatalog(ctx context.Context) (iMovieCatalog, error) {
	if a.cfg.CatalogPath == "" {
		return catalog.Passthrough{}, nil
	}

	c, err := catalogSqlite.Open(a.cfg.CatalogPath, catalogSqlite.Options{BusyTimeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, c.Close)

	if a.cfg.CatalogSeed != "" {
		if err := seedCatalog(ctx, c, a.cfg.CatalogSeed); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// seedCatalog upserts the movies listed in the JSON file at path.
func seedCatalog(ctx context.Context, c *catalogSqlite.Catalog, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog seed: %w", err)
	}

	var movies []catalog.Movie
	if err := json.Unmarshal(data, &movies); err != nil {
		return fmt.Errorf("failed to parse catalog seed: %w", err)
	}

	for _, m := range movies {
		if err := c.PutMovie(ctx, m); err != nil {
			return fmt.Errorf("failed to put movie %q: %w", m.Slug, err)
		}
	}

	return nil
}

func (a *App) Handler() http.Handler {
	return a.controller.GetMux()
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	return errors.Join(errs...)
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger := NewLogger(cfg.LogLevel)

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: a.Handler()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	go a.controller.RunHeartbeat(serverCtx, cfg.HeartbeatInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		select {
		case <-sig:
		case <-serverCtx.Done():
			return
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(shutdownCtx, "graceful shutdown failed", "error", err)
			server.Close()
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
