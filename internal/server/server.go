// Package server exposes the chat assistant and the performance predictor
// over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jrmsu/ojtinsight/chat"
	"github.com/jrmsu/ojtinsight/insight"
	"github.com/jrmsu/ojtinsight/internal/config"
	"github.com/jrmsu/ojtinsight/internal/metrics"
	"github.com/jrmsu/ojtinsight/internal/store"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
)

// Dependencies are the collaborators of a Server. Model and History may be
// nil: prediction then answers 503 and history is not recorded.
type Dependencies struct {
	Config  config.Config
	Model   *insight.TrainedEnsemble
	Bot     *chat.Bot
	History *store.Store
	Metrics *metrics.Metrics
	// Gatherer serves /metrics. It defaults to a registry private to the
	// server when Metrics is nil too.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP API.
type Server struct {
	cfg      config.Config
	model    *insight.TrainedEnsemble
	bot      *chat.Bot
	history  *store.Store
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   log.Logger
}

// New builds a Server.
func New(deps Dependencies) (*Server, error) {
	s := &Server{
		cfg:      deps.Config,
		model:    deps.Model,
		bot:      deps.Bot,
		history:  deps.History,
		metrics:  deps.Metrics,
		gatherer: deps.Gatherer,
		logger:   log.GetLoggerWithName("server"),
	}
	if s.bot == nil {
		opts := []chat.Option{}
		if s.model != nil {
			opts = append(opts, chat.WithPredictor(s.model))
		}
		bot, err := chat.New(opts...)
		if err != nil {
			return nil, err
		}
		s.bot = bot
	}
	if s.metrics == nil {
		reg := prometheus.NewRegistry()
		s.metrics = metrics.NewWithRegistry(reg)
		if s.gatherer == nil {
			s.gatherer = reg
		}
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	if s.model != nil {
		s.metrics.ModelsLoaded.Set(1)
	} else {
		s.metrics.ModelsLoaded.Set(0)
	}
	return s, nil
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Server listening", "addr", srv.Addr, "models_loaded", s.model != nil)
		if err := srv.ListenAndServe(); err != nil && !ojtErrors.Is(err, http.ErrServerClosed) {
			return ojtErrors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.logger.Info("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
