package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/storyscout/server/internal/client"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	serverURL = configVar[string]{
		envKey:       "CLIENT_SERVER_URL",
		flagKey:      "server-url",
		defaultValue: "http://localhost:80",
	}
	code = configVar[string]{
		envKey:       "CLIENT_CODE",
		flagKey:      "code",
		defaultValue: "",
	}
	userId = configVar[string]{
		envKey:       "CLIENT_USER_ID",
		flagKey:      "user-id",
		defaultValue: "",
	}
	displayName = configVar[string]{
		envKey:       "CLIENT_DISPLAY_NAME",
		flagKey:      "display-name",
		defaultValue: "",
	}
	contentId = configVar[string]{
		envKey:       "CLIENT_CONTENT_ID",
		flagKey:      "content-id",
		defaultValue: "",
	}
	contentTitle = configVar[string]{
		envKey:       "CLIENT_CONTENT_TITLE",
		flagKey:      "content-title",
		defaultValue: "",
	}
	videoURL = configVar[string]{
		envKey:       "CLIENT_VIDEO_URL",
		flagKey:      "video-url",
		defaultValue: "",
	}
)

func loadClientConfig() *client.Config {
	pflag.String(serverURL.flagKey, serverURL.defaultValue, "Base URL of the party server")
	pflag.String(code.flagKey, code.defaultValue, "Join code of an existing party; empty creates a new one")
	pflag.String(userId.flagKey, userId.defaultValue, "User id; empty generates one")
	pflag.String(displayName.flagKey, displayName.defaultValue, "Display name shown to other participants")
	pflag.String(contentId.flagKey, contentId.defaultValue, "Content id when creating a party")
	pflag.String(contentTitle.flagKey, contentTitle.defaultValue, "Content title when creating a party")
	pflag.String(videoURL.flagKey, videoURL.defaultValue, "Video URL when creating a party")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(serverURL.flagKey, serverURL.envKey)
	viper.BindEnv(code.flagKey, code.envKey)
	viper.BindEnv(userId.flagKey, userId.envKey)
	viper.BindEnv(displayName.flagKey, displayName.envKey)
	viper.BindEnv(contentId.flagKey, contentId.envKey)
	viper.BindEnv(contentTitle.flagKey, contentTitle.envKey)
	viper.BindEnv(videoURL.flagKey, videoURL.envKey)

	return &client.Config{
		ServerURL:    viper.GetString(serverURL.flagKey),
		Code:         viper.GetString(code.flagKey),
		UserId:       viper.GetString(userId.flagKey),
		DisplayName:  viper.GetString(displayName.flagKey),
		Platform:     "desktop",
		ContentId:    viper.GetString(contentId.flagKey),
		ContentTitle: viper.GetString(contentTitle.flagKey),
		VideoURL:     viper.GetString(videoURL.flagKey),
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := loadClientConfig()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := client.Run(ctx, cfg, logger); err != nil {
		log.Fatal(err)
	}
}
