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
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	store = configVar[string]{
		envKey:       "SERVER_STORE",
		flagKey:      "store",
		defaultValue: app.StoreRedis,
	}
	storePath = configVar[string]{
		envKey:       "SERVER_STORE_PATH",
		flagKey:      "store-path",
		defaultValue: ":memory:",
	}
	roomTTL = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_TTL",
		flagKey:      "room-ttl",
		defaultValue: 24 * time.Hour,
	}
	writeTimeout = configVar[time.Duration]{
		envKey:       "SERVER_WRITE_TIMEOUT",
		flagKey:      "write-timeout",
		defaultValue: 10 * time.Second,
	}
	rateLimit = configVar[float64]{
		envKey:       "SERVER_RATE_LIMIT",
		flagKey:      "rate-limit",
		defaultValue: 20,
	}
	rateBurst = configVar[int]{
		envKey:       "SERVER_RATE_BURST",
		flagKey:      "rate-burst",
		defaultValue: 40,
	}
	rateKeys = configVar[int]{
		envKey:       "SERVER_RATE_KEYS",
		flagKey:      "rate-keys",
		defaultValue: 4096,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(store.flagKey, store.defaultValue, "Room store: redis or memory")
	pflag.String(storePath.flagKey, storePath.defaultValue, "Buntdb file for the memory store")
	pflag.Duration(roomTTL.flagKey, roomTTL.defaultValue, "Idle time after which a room expires")
	pflag.Duration(writeTimeout.flagKey, writeTimeout.defaultValue, "Websocket write timeout")
	pflag.Float64(rateLimit.flagKey, rateLimit.defaultValue, "Events per second allowed per client, 0 disables the limit")
	pflag.Int(rateBurst.flagKey, rateBurst.defaultValue, "Burst of events allowed per client")
	pflag.Int(rateKeys.flagKey, rateKeys.defaultValue, "Maximum number of tracked clients")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(store.flagKey, store.envKey)
	viper.BindEnv(storePath.flagKey, storePath.envKey)
	viper.BindEnv(roomTTL.flagKey, roomTTL.envKey)
	viper.BindEnv(writeTimeout.flagKey, writeTimeout.envKey)
	viper.BindEnv(rateLimit.flagKey, rateLimit.envKey)
	viper.BindEnv(rateBurst.flagKey, rateBurst.envKey)
	viper.BindEnv(rateKeys.flagKey, rateKeys.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(store.flagKey, store.defaultValue)
	viper.SetDefault(storePath.flagKey, storePath.defaultValue)
	viper.SetDefault(roomTTL.flagKey, roomTTL.defaultValue)
	viper.SetDefault(writeTimeout.flagKey, writeTimeout.defaultValue)
	viper.SetDefault(rateLimit.flagKey, rateLimit.defaultValue)
	viper.SetDefault(rateBurst.flagKey, rateBurst.defaultValue)
	viper.SetDefault(rateKeys.flagKey, rateKeys.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Host:          viper.GetString(host.flagKey),
		Port:          viper.GetInt(port.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
		Store:         viper.GetString(store.flagKey),
		StorePath:     viper.GetString(storePath.flagKey),
		RoomTTL:       viper.GetDuration(roomTTL.flagKey),
		WriteTimeout:  viper.GetDuration(writeTimeout.flagKey),
		RateLimit:     viper.GetFloat64(rateLimit.flagKey),
		RateBurst:     viper.GetInt(rateBurst.flagKey),
		RateKeys:      viper.GetInt(rateKeys.flagKey),
		RedisPort:     viper.GetInt(redisPort.flagKey),
		RedisHost:     viper.GetString(redisHost.flagKey),
		RedisPassword: viper.GetString(redisPassword.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
