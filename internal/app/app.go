package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/storyscout/server/internal/controller"
	partyRedis "github.com/storyscout/server/internal/repository/party/redis"
	"github.com/storyscout/server/internal/service/party"
	"github.com/storyscout/server/pkg/ctxlogger"
	"github.com/storyscout/server/pkg/redisclient"
)

type AppConfig struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	LogLevel          string `json:"log_level"`
	MaxParticipants   int    `json:"max_participants"`
	ChatMessageMaxLen int    `json:"chat_message_max_len"`
	ChatFetchLimit    int    `json:"chat_fetch_limit"`
	RedisHost         string `json:"redis_host"`
	RedisPort         int    `json:"redis_port"`
	RedisPassword     string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.MaxParticipants < 2 {
		return fmt.Errorf("max participants must be at least 2")
	}
	if cfg.ChatMessageMaxLen < 1 {
		return fmt.Errorf("chat message max length must be greater than 0")
	}
	if cfg.ChatFetchLimit < 1 {
		return fmt.Errorf("chat fetch limit must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	// Ended parties stay readable for a day so late clients see the final
	// state instead of a 404.
	partyRepo := partyRedis.NewRepo(rc, logger, 24*time.Hour)
	partyService := party.NewService(partyRepo, &party.Config{
		MaxParticipants:   cfg.MaxParticipants,
		ChatMessageMaxLen: cfg.ChatMessageMaxLen,
		ChatFetchLimit:    cfg.ChatFetchLimit,
	}, logger)
	controller := controller.NewController(partyService, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

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

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
