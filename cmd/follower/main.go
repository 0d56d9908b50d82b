package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/syncroom/internal/app"
	"github.com/sharetube/syncroom/internal/client"
	"github.com/sharetube/syncroom/internal/drift"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	serverURL = configVar[string]{
		envKey:       "FOLLOWER_SERVER_URL",
		flagKey:      "server-url",
		defaultValue: "ws://localhost:80/api/v1/ws",
		usage:        "Websocket endpoint of the server",
	}
	roomId = configVar[string]{
		envKey:       "FOLLOWER_ROOM_ID",
		flagKey:      "room-id",
		defaultValue: "",
		usage:        "Room to join, empty to create one",
	}
	roomName = configVar[string]{
		envKey:       "FOLLOWER_ROOM_NAME",
		flagKey:      "room-name",
		defaultValue: "follower room",
		usage:        "Name of the created room",
	}
	movie = configVar[string]{
		envKey:       "FOLLOWER_MOVIE",
		flagKey:      "movie",
		defaultValue: "",
		usage:        "Movie slug to start when hosting",
	}
	userId = configVar[string]{
		envKey:       "FOLLOWER_USER_ID",
		flagKey:      "user-id",
		defaultValue: "",
		usage:        "Participant id, empty for a random one",
	}
	name = configVar[string]{
		envKey:       "FOLLOWER_NAME",
		flagKey:      "name",
		defaultValue: "follower",
		usage:        "Display name",
	}
	logLevel = configVar[string]{
		envKey:       "FOLLOWER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	correctionThreshold = configVar[time.Duration]{
		envKey:       "FOLLOWER_CORRECTION_THRESHOLD",
		flagKey:      "correction-threshold",
		defaultValue: drift.DefaultConfig().CorrectionThreshold,
		usage:        "Drift above which the player is seeked",
	}
	behindThreshold = configVar[time.Duration]{
		envKey:       "FOLLOWER_BEHIND_THRESHOLD",
		flagKey:      "behind-threshold",
		defaultValue: drift.DefaultConfig().BehindThreshold,
		usage:        "Drift above which the follower reports being behind live",
	}
	tickInterval = configVar[time.Duration]{
		envKey:       "FOLLOWER_TICK_INTERVAL",
		flagKey:      "tick-interval",
		defaultValue: time.Second,
		usage:        "How often drift is recomputed",
	}
	syncTimeout = configVar[time.Duration]{
		envKey:       "FOLLOWER_SYNC_TIMEOUT",
		flagKey:      "sync-timeout",
		defaultValue: 5 * time.Second,
		usage:        "How long a sync request waits for the host",
	}
	syncRetries = configVar[int]{
		envKey:       "FOLLOWER_SYNC_RETRIES",
		flagKey:      "sync-retries",
		defaultValue: 2,
		usage:        "Sync requests sent again before giving up",
	}
	heartbeatInterval = configVar[time.Duration]{
		envKey:       "FOLLOWER_HEARTBEAT_INTERVAL",
		flagKey:      "heartbeat-interval",
		defaultValue: 5 * time.Second,
		usage:        "How often the state is re-emitted while hosting, 0 to disable",
	}
	duration = configVar[time.Duration]{
		envKey:       "FOLLOWER_DURATION",
		flagKey:      "duration",
		defaultValue: 0,
		usage:        "Stop after this long, 0 to run until interrupted",
	}
)

type followerConfig struct {
	client   client.Config
	roomId   string
	roomName string
	movie    string
	logLevel string
	duration time.Duration
}

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadFollowerConfig() *followerConfig {
	pflag.String(serverURL.flagKey, serverURL.defaultValue, serverURL.usage)
	pflag.String(roomId.flagKey, roomId.defaultValue, roomId.usage)
	pflag.String(roomName.flagKey, roomName.defaultValue, roomName.usage)
	pflag.String(movie.flagKey, movie.defaultValue, movie.usage)
	pflag.String(userId.flagKey, userId.defaultValue, userId.usage)
	pflag.String(name.flagKey, name.defaultValue, name.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.Duration(correctionThreshold.flagKey, correctionThreshold.defaultValue, correctionThreshold.usage)
	pflag.Duration(behindThreshold.flagKey, behindThreshold.defaultValue, behindThreshold.usage)
	pflag.Duration(tickInterval.flagKey, tickInterval.defaultValue, tickInterval.usage)
	pflag.Duration(syncTimeout.flagKey, syncTimeout.defaultValue, syncTimeout.usage)
	pflag.Int(syncRetries.flagKey, syncRetries.defaultValue, syncRetries.usage)
	pflag.Duration(heartbeatInterval.flagKey, heartbeatInterval.defaultValue, heartbeatInterval.usage)
	pflag.Duration(duration.flagKey, duration.defaultValue, duration.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(serverURL)
	bind(roomId)
	bind(roomName)
	bind(movie)
	bind(userId)
	bind(name)
	bind(logLevel)
	bind(correctionThreshold)
	bind(behindThreshold)
	bind(tickInterval)
	bind(syncTimeout)
	bind(syncRetries)
	bind(heartbeatInterval)
	bind(duration)

	id := viper.GetString(userId.flagKey)
	if id == "" {
		id = uuid.NewString()
	}

	return &followerConfig{
		client: client.Config{
			ServerURL: viper.GetString(serverURL.flagKey),
			UserId:    id,
			Name:      viper.GetString(name.flagKey),
			Drift: drift.Config{
				CorrectionThreshold: viper.GetDuration(correctionThreshold.flagKey),
				BehindThreshold:     viper.GetDuration(behindThreshold.flagKey),
			},
			TickInterval:      viper.GetDuration(tickInterval.flagKey),
			SyncTimeout:       viper.GetDuration(syncTimeout.flagKey),
			SyncRetries:       viper.GetInt(syncRetries.flagKey),
			HeartbeatInterval: viper.GetDuration(heartbeatInterval.flagKey),
		},
		roomId:   viper.GetString(roomId.flagKey),
		roomName: viper.GetString(roomName.flagKey),
		movie:    viper.GetString(movie.flagKey),
		logLevel: viper.GetString(logLevel.flagKey),
		duration: viper.GetDuration(duration.flagKey),
	}
}

func run(ctx context.Context, cfg *followerConfig, logger *slog.Logger) error {
	f, err := client.Dial(ctx, cfg.client, client.NewSimPlayer(0), logger)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		errc <- f.Run(ctx)
	}()

	if err := enter(ctx, f, cfg, logger); err != nil {
		f.Close()
		<-errc
		return err
	}

	return <-errc
}

func enter(ctx context.Context, f *client.Follower, cfg *followerConfig, logger *slog.Logger) error {
	id := cfg.roomId
	if id == "" {
		var err error
		if id, err = f.CreateRoom(ctx, cfg.roomName, true); err != nil {
			return err
		}
	}

	if err := f.Join(ctx, id); err != nil {
		return err
	}
	logger.InfoContext(ctx, "joined room", "room_id", id, "is_host", f.IsHost())

	if f.IsHost() {
		if cfg.movie == "" {
			return nil
		}
		if err := f.ChangeMovie(ctx, cfg.movie, ""); err != nil {
			return err
		}
		return f.Play(ctx)
	}

	if err := f.RequestSync(ctx); err != nil {
		if !errors.Is(err, client.ErrWaitingForHost) {
			return err
		}
		logger.WarnContext(ctx, "host did not answer, following the cached state")
	}

	return nil
}

func main() {
	cfg := loadFollowerConfig()
	logger := app.NewLogger(cfg.logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.duration)
		defer cancel()
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("follower stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("follower stopped")
}
