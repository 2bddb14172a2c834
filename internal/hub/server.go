package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"climatebox.dev/climate-hub/pkg/mailer"
	"climatebox.dev/climate-hub/pkg/metrics"
	"climatebox.dev/climate-hub/pkg/mq"
)

// Server wires the hub core to its infrastructure: database, readout
// queue, mail queue, periodic sweeps, and the metrics endpoint.
type Server struct {
	logger     *slog.Logger
	db         *gorm.DB
	hub        *Hub
	consumer   *Consumer
	mailClient *mq.Client
	metricsSrv *http.Server
	config     *ServerConfig
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// Database configuration
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPort     int

	// RabbitMQ configuration
	RabbitMQURL  string
	ReadoutQueue string
	MailQueue    string

	// MetricsPort serves Prometheus metrics; 0 disables the endpoint.
	MetricsPort int

	// Sweep cadences.
	LivenessInterval    time.Duration
	AggregationInterval time.Duration
	PruneInterval       time.Duration

	// Hub overrides the core thresholds; defaults to DefaultConfig.
	Hub *Config
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.ReadoutQueue == "" {
		return nil, errors.New("readout queue name cannot be empty")
	}

	if cfg.MailQueue == "" {
		return nil, errors.New("mail queue name cannot be empty")
	}

	if cfg.DBHost == "" {
		return nil, errors.New("database host cannot be empty")
	}

	if cfg.DBPort <= 0 {
		return nil, errors.New("database port must be positive")
	}

	if cfg.DBUser == "" {
		return nil, errors.New("database user cannot be empty")
	}

	if cfg.DBName == "" {
		return nil, errors.New("database name cannot be empty")
	}

	if cfg.LivenessInterval <= 0 {
		return nil, errors.New("liveness interval must be positive")
	}

	if cfg.AggregationInterval <= 0 {
		return nil, errors.New("aggregation interval must be positive")
	}

	if cfg.PruneInterval <= 0 {
		return nil, errors.New("prune interval must be positive")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the hub server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting hub server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Initialize database
	db, err := NewDB(&DBConfig{
		Host:     s.config.DBHost,
		Port:     s.config.DBPort,
		User:     s.config.DBUser,
		Password: s.config.DBPassword,
		DBName:   s.config.DBName,
		SSLMode:  s.config.DBSSLMode,
		Logger:   s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	store, err := NewGormStore(db)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	s.logger.Info("database initialized successfully")

	// Mail dispatch goes through its own queue.
	s.mailClient = mq.New(s.config.MailQueue, s.config.RabbitMQURL, s.logger)
	s.mailClient.SetMetrics(metrics.NewMQMetrics("climate_hub"))
	dispatcher, err := mailer.NewMQDispatcher(s.mailClient, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mail dispatcher: %w", err)
	}

	hubMetrics := metrics.NewHubMetrics("climate_hub")

	hub, err := New(&HubConfig{
		Logger:     s.logger,
		Store:      store,
		Dispatcher: dispatcher,
		Config:     s.config.Hub,
		Metrics:    hubMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize hub: %w", err)
	}
	s.hub = hub

	consumer, err := NewConsumer(&ConsumerConfig{
		Logger:      s.logger,
		Hub:         hub,
		RabbitMQURL: s.config.RabbitMQURL,
		QueueName:   s.config.ReadoutQueue,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize consumer: %w", err)
	}
	s.consumer = consumer

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	s.startSweeps(ctx)

	metricsErr := make(chan error, 1)
	if s.config.MetricsPort > 0 {
		metricsErr = s.startMetricsServer()
	}

	s.logger.Info("hub server started successfully")

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-metricsErr:
		if err != nil {
			s.logger.Error("metrics server error", "error", err)
			cancel()
			return err
		}
	}

	return s.Shutdown()
}

// startSweeps launches the periodic background work: the liveness sweep,
// daily aggregation, and stale-alert pruning. Each runs on its own ticker
// until the context ends; per-run failures are logged and do not stop the
// ticker.
func (s *Server) startSweeps(ctx context.Context) {
	run := func(name string, interval time.Duration, fn func(context.Context) error) {
		ticker := time.NewTicker(interval)
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := fn(ctx); err != nil {
						s.logger.Error("periodic task failed", "task", name, "error", err)
					}
				}
			}
		}()
	}

	run("liveness", s.config.LivenessInterval, s.hub.RunLivenessSweep)
	run("aggregation", s.config.AggregationInterval, s.hub.RunDailyAggregation)
	run("prune_alerts", s.config.PruneInterval, func(ctx context.Context) error {
		_, err := s.hub.PruneStaleAlerts(ctx, s.hub.cfg.AlertRetention)
		return err
	})
}

// startMetricsServer serves the Prometheus endpoint in a goroutine.
func (s *Server) startMetricsServer() chan error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	s.metricsSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting metrics server", "address", s.metricsSrv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down hub server")

	var shutdownErr error

	if s.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metricsSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to stop metrics server", "error", err)
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
		}
		cancel()
	}

	if s.consumer != nil {
		s.logger.Info("stopping consumer")
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; consumer shutdown error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("consumer shutdown error: %w", err)
			}
		}
	}

	if s.mailClient != nil {
		s.logger.Info("closing mail queue client")
		if err := s.mailClient.Close(); err != nil {
			s.logger.Error("failed to close mail queue client", "error", err)
		}
	}

	if s.db != nil {
		if err := CloseDB(s.db, s.logger); err != nil {
			s.logger.Error("failed to close database", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; database close error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("database close error: %w", err)
			}
		}
	}

	if shutdownErr != nil {
		s.logger.Error("hub server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("hub server shutdown completed successfully")
	return nil
}
