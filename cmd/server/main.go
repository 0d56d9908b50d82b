package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/syncroom/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 9,
		usage:        "Maximum number of members in the room",
	}
	storage = configVar[string]{
		envKey:       "SERVER_STORAGE",
		flagKey:      "storage",
		defaultValue: app.StorageMemory,
		usage:        "Room storage: memory or redis",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
	gracePeriod = configVar[time.Duration]{
		envKey:       "SERVER_GRACE_PERIOD",
		flagKey:      "grace-period",
		defaultValue: 30 * time.Second,
		usage:        "How long a disconnected member keeps its seat",
	}
	emptyRoomTTL = configVar[time.Duration]{
		envKey:       "SERVER_EMPTY_ROOM_TTL",
		flagKey:      "empty-room-ttl",
		defaultValue: 10 * time.Minute,
		usage:        "How long a room nobody joined is kept, 0 to keep forever",
	}
	heartbeatInterval = configVar[time.Duration]{
		envKey:       "SERVER_HEARTBEAT_INTERVAL",
		flagKey:      "heartbeat-interval",
		defaultValue: 5 * time.Second,
		usage:        "How often hosts of playing rooms are asked to re-emit their state, 0 to disable",
	}
	sendQueueSize = configVar[int]{
		envKey:       "SERVER_SEND_QUEUE_SIZE",
		flagKey:      "send-queue-size",
		defaultValue: 64,
		usage:        "Outbound frames buffered per connection",
	}
	dropPolicy = configVar[string]{
		envKey:       "SERVER_DROP_POLICY",
		flagKey:      "drop-policy",
		defaultValue: "drop-oldest",
		usage:        "What to do when a send queue is full: drop-oldest or disconnect",
	}
	chatHistoryLimit = configVar[int]{
		envKey:       "SERVER_CHAT_HISTORY_LIMIT",
		flagKey:      "chat-history-limit",
		defaultValue: 100,
		usage:        "Chat messages kept per room",
	}
	catalogPath = configVar[string]{
		envKey:       "SERVER_CATALOG_PATH",
		flagKey:      "catalog-path",
		defaultValue: "",
		usage:        "SQLite movie catalog, empty to accept any movie slug",
	}
	catalogSeed = configVar[string]{
		envKey:       "SERVER_CATALOG_SEED",
		flagKey:      "catalog-seed",
		defaultValue: "",
		usage:        "JSON file of movies loaded into the catalog at startup",
	}
)

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, membersLimit.usage)
	pflag.String(storage.flagKey, storage.defaultValue, storage.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.Duration(gracePeriod.flagKey, gracePeriod.defaultValue, gracePeriod.usage)
	pflag.Duration(emptyRoomTTL.flagKey, emptyRoomTTL.defaultValue, emptyRoomTTL.usage)
	pflag.Duration(heartbeatInterval.flagKey, heartbeatInterval.defaultValue, heartbeatInterval.usage)
	pflag.Int(sendQueueSize.flagKey, sendQueueSize.defaultValue, sendQueueSize.usage)
	pflag.String(dropPolicy.flagKey, dropPolicy.defaultValue, dropPolicy.usage)
	pflag.Int(chatHistoryLimit.flagKey, chatHistoryLimit.defaultValue, chatHistoryLimit.usage)
	pflag.String(catalogPath.flagKey, catalogPath.defaultValue, catalogPath.usage)
	pflag.String(catalogSeed.flagKey, catalogSeed.defaultValue, catalogSeed.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(port)
	bind(host)
	bind(logLevel)
	bind(membersLimit)
	bind(storage)
	bind(redisPort)
	bind(redisHost)
	bind(redisPassword)
	bind(gracePeriod)
	bind(emptyRoomTTL)
	bind(heartbeatInterval)
	bind(sendQueueSize)
	bind(dropPolicy)
	bind(chatHistoryLimit)
	bind(catalogPath)
	bind(catalogSeed)

	return &app.AppConfig{
		Host:              viper.GetString(host.flagKey),
		Port:              viper.GetInt(port.flagKey),
		LogLevel:          viper.GetString(logLevel.flagKey),
		MembersLimit:      viper.GetInt(membersLimit.flagKey),
		Storage:           viper.GetString(storage.flagKey),
		RedisHost:         viper.GetString(redisHost.flagKey),
		RedisPort:         viper.GetInt(redisPort.flagKey),
		RedisPassword:     viper.GetString(redisPassword.flagKey),
		GracePeriod:       viper.GetDuration(gracePeriod.flagKey),
		EmptyRoomTTL:      viper.GetDuration(emptyRoomTTL.flagKey),
		HeartbeatInterval: viper.GetDuration(heartbeatInterval.flagKey),
		SendQueueSize:     viper.GetInt(sendQueueSize.flagKey),
		DropPolicy:        viper.GetString(dropPolicy.flagKey),
		ChatHistoryLimit:  viper.GetInt(chatHistoryLimit.flagKey),
		CatalogPath:       viper.GetString(catalogPath.flagKey),
		CatalogSeed:       viper.GetString(catalogSeed.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := appConfig.Validate(); err != nil {
		log.Fatal(err)
	}

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
