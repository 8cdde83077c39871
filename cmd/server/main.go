package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/storyscout/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	maxParticipants = configVar[int]{
		envKey:       "SERVER_MAX_PARTICIPANTS",
		flagKey:      "max-participants",
		defaultValue: 10,
	}
	chatMessageMaxLen = configVar[int]{
		envKey:       "SERVER_CHAT_MESSAGE_MAX_LEN",
		flagKey:      "chat-message-max-len",
		defaultValue: 200,
	}
	chatFetchLimit = configVar[int]{
		envKey:       "SERVER_CHAT_FETCH_LIMIT",
		flagKey:      "chat-fetch-limit",
		defaultValue: 50,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(maxParticipants.flagKey, maxParticipants.defaultValue, "Maximum number of participants in a party")
	pflag.Int(chatMessageMaxLen.flagKey, chatMessageMaxLen.defaultValue, "Maximum chat message length in characters")
	pflag.Int(chatFetchLimit.flagKey, chatFetchLimit.defaultValue, "Default number of chat messages returned per fetch")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(maxParticipants.flagKey, maxParticipants.envKey)
	viper.BindEnv(chatMessageMaxLen.flagKey, chatMessageMaxLen.envKey)
	viper.BindEnv(chatFetchLimit.flagKey, chatFetchLimit.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(maxParticipants.flagKey, maxParticipants.defaultValue)
	viper.SetDefault(chatMessageMaxLen.flagKey, chatMessageMaxLen.defaultValue)
	viper.SetDefault(chatFetchLimit.flagKey, chatFetchLimit.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	return &app.AppConfig{
		Host:              viper.GetString(host.flagKey),
		Port:              viper.GetInt(port.flagKey),
		LogLevel:          viper.GetString(logLevel.flagKey),
		MaxParticipants:   viper.GetInt(maxParticipants.flagKey),
		ChatMessageMaxLen: viper.GetInt(chatMessageMaxLen.flagKey),
		ChatFetchLimit:    viper.GetInt(chatFetchLimit.flagKey),
		RedisHost:         viper.GetString(redisHost.flagKey),
		RedisPort:         viper.GetInt(redisPort.flagKey),
		RedisPassword:     viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
