package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nightcrane/satori-go/internal/config"
	"github.com/nightcrane/satori-go/internal/ops"
	"github.com/nightcrane/satori-go/pkg/satori"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if env := os.Getenv("SATORI_ENVIRONMENT"); env == "" || env == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	endpoints, err := cfg.Endpoints()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve endpoints")
	}
	if len(endpoints) == 0 {
		logger.Fatal().Msg("no endpoints configured, set SATORI_HOST or SATORI_CONFIG_FILE")
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("endpoints", len(endpoints)).
		Str("ops_addr", cfg.OpsAddr).
		Msg("starting satorid")

	// The daemon ships with a handler that logs every delivered event.
	// Embedders of pkg/satori supply their own.
	handler := satori.HandlerFunc(func(_ context.Context, bot *satori.Bot, ev *satori.Event) {
		entry := logger.Info().
			Str("type", ev.Type).
			Str("login", bot.Identity()).
			Int64("sn", ev.SN)
		if ev.Content != nil {
			entry = entry.Str("content", ev.Content.String())
		}
		entry.Msg("event")
	})

	client, err := satori.New(satori.Config{
		Endpoints:      endpoints,
		Handler:        handler,
		QueueSize:      cfg.QueueSize,
		ReconnectBase:  cfg.ReconnectBase,
		ReconnectMax:   cfg.ReconnectMax,
		MinUptime:      cfg.MinUptime,
		LoginGrace:     cfg.LoginGrace,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build client")
	}

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := client.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("client error")
		}
	}()

	var opsServer *ops.Server
	if cfg.OpsAddr != "" {
		opsServer = ops.NewServer(cfg.OpsAddr, client, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := opsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("ops server error")
			}
		}()
	}

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	cancel()

	if opsServer != nil {
		if err := opsServer.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("ops server shutdown error")
		}
	}

	// Wait for in-flight work to complete
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("satorid stopped")
}
