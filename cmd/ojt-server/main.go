// Command ojt-server serves the chat assistant and performance predictions
// over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/jrmsu/ojtinsight/chat"
	"github.com/jrmsu/ojtinsight/insight"
	"github.com/jrmsu/ojtinsight/internal/config"
	"github.com/jrmsu/ojtinsight/internal/metrics"
	"github.com/jrmsu/ojtinsight/internal/server"
	"github.com/jrmsu/ojtinsight/internal/store"
	"github.com/jrmsu/ojtinsight/pkg/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ojt-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("ojt-server", pflag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	fs.String("models-dir", "models", "directory holding the model artifacts")
	fs.Int("port", 5000, "listen port")
	fs.String("log-level", "info", "debug, info, warn or error")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, config.WithDotEnv(".env"), config.WithFlags(fs, map[string]string{
		"models.dir":   "models-dir",
		"server.port":  "port",
		"logger.level": "log-level",
	}))
	if err != nil {
		return err
	}

	if cfg.App.Environment == "production" {
		log.SetupLogger(cfg.Logger.Level)
	} else {
		log.SetGlobalProvider(log.NewConsoleProvider(log.ToLogLevel(cfg.Logger.Level)))
	}
	logger := log.GetLoggerWithName("ojt-server")
	logger.Info("Starting OJT insight server", "app", cfg.App.Name, "env", cfg.App.Environment)

	// Serving without models is allowed: chat works and prediction answers 503.
	model, err := insight.Load(cfg.Models.Dir)
	if err != nil {
		logger.Warn("Models not loaded, prediction disabled", log.ErrorKey, err, "dir", cfg.Models.Dir)
	}

	botOpts := []chat.Option{}
	if model != nil {
		botOpts = append(botOpts, chat.WithPredictor(model))
	}
	bot, err := chat.New(botOpts...)
	if err != nil {
		return err
	}

	var history *store.Store
	if cfg.Store.Path != "" {
		history, err = store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer history.Close()
	}

	srv, err := server.New(server.Dependencies{
		Config:   *cfg,
		Model:    model,
		Bot:      bot,
		History:  history,
		Metrics:  metrics.New(),
		Gatherer: prometheus.DefaultGatherer,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
