package simulator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"climatebox.dev/climate-hub/pkg/metrics"
	"climatebox.dev/climate-hub/pkg/mq"
)

// ServerConfig holds the configuration for the simulator server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// RabbitMQURL is the connection string for RabbitMQ
	RabbitMQURL string
	// QueueName is the readout queue to publish to
	QueueName string
	// Interval is the time between readouts per worker
	Interval time.Duration
	// DeviceCount is the number of simulated devices (hub device IDs
	// 1..DeviceCount)
	DeviceCount int
	// WorkerCount is the number of concurrent publishers; the device
	// fleet is split between them
	WorkerCount int
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.SimulatorMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations
	MQMetrics *metrics.MQMetrics
}

// Server manages the simulated fleet across multiple publisher workers.
type Server struct {
	logger  *slog.Logger
	config  *ServerConfig
	fleets  []*Fleet
	clients []*mq.Client
	wg      sync.WaitGroup
	metrics *metrics.SimulatorMetrics
}

var (
	errInvalidDeviceCount = errors.New("device count must be greater than 0")
	errInvalidWorkerCount = errors.New("worker count must be greater than 0")
	errInvalidInterval    = errors.New("interval must be greater than 0")
	errLoggerRequired     = errors.New("logger is required")
)

// NewServer creates a new simulator server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.DeviceCount <= 0 {
		return nil, errInvalidDeviceCount
	}

	if cfg.WorkerCount <= 0 {
		return nil, errInvalidWorkerCount
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	s := &Server{
		config:  cfg,
		fleets:  make([]*Fleet, 0, cfg.WorkerCount),
		clients: make([]*mq.Client, 0, cfg.WorkerCount),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	// Split the device IDs round-robin between the workers; each worker
	// gets its own MQ client.
	ids := make([][]uint, cfg.WorkerCount)
	for id := uint(1); id <= uint(cfg.DeviceCount); id++ {
		w := int(id-1) % cfg.WorkerCount
		ids[w] = append(ids[w], id)
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		if len(ids[i]) == 0 {
			continue
		}

		client := mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger.With(
			slog.String("component", "mq-client"),
			slog.Int("worker_id", i),
		))
		if cfg.MQMetrics != nil {
			client.SetMetrics(cfg.MQMetrics)
		}

		fleet := NewFleet(client, ids[i])
		if cfg.Metrics != nil {
			fleet.SetMetrics(cfg.Metrics)
		}

		s.clients = append(s.clients, client)
		s.fleets = append(s.fleets, fleet)

		s.logger.Info("created fleet worker",
			"worker_id", i,
			"queue", cfg.QueueName,
			"device_count", len(fleet.Devices),
		)
	}

	return s, nil
}

// Run starts all workers and blocks until a shutdown signal is received.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	for i, fleet := range s.fleets {
		s.wg.Add(1)
		go s.runWorker(ctx, i, fleet)
	}

	s.logger.Info("simulator started",
		"worker_count", len(s.fleets),
		"device_count", s.config.DeviceCount,
		"interval", s.config.Interval,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	s.logger.Info("waiting for workers to shut down...")
	s.wg.Wait()

	s.logger.Info("closing MQ clients...")
	s.closeClients()

	s.logger.Info("simulator stopped")
	return nil
}

// runWorker publishes readouts from one fleet at the configured interval.
func (s *Server) runWorker(ctx context.Context, id int, fleet *Fleet) {
	defer s.wg.Done()

	if s.metrics != nil {
		s.metrics.ActiveDevices.Add(float64(len(fleet.Devices)))
		defer s.metrics.ActiveDevices.Sub(float64(len(fleet.Devices)))
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	workerLogger := s.logger.With(slog.Int("worker_id", id))
	workerLogger.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			workerLogger.Info("worker shutting down")
			return

		case <-ticker.C:
			if err := fleet.PublishReadout(ctx); err != nil {
				workerLogger.Error("failed to publish readout", "error", err)
				// Continue on error - don't stop the worker
				continue
			}

			workerLogger.Debug("readout published")
		}
	}
}

// closeClients closes all MQ clients gracefully.
func (s *Server) closeClients() {
	var wg sync.WaitGroup

	for i, client := range s.clients {
		wg.Add(1)
		go func(id int, c *mq.Client) {
			defer wg.Done()

			if err := c.Close(); err != nil {
				s.logger.Error("failed to close MQ client",
					"worker_id", id,
					"error", err,
				)
				return
			}

			s.logger.Info("MQ client closed", "worker_id", id)
		}(i, client)
	}

	wg.Wait()
}

// Shutdown initiates a graceful shutdown without an OS signal.
func (s *Server) Shutdown() error {
	s.logger.Info("shutdown requested")
	s.closeClients()
	return nil
}
