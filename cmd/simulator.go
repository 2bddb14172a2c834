package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"climatebox.dev/climate-hub/internal/simulator"
	"climatebox.dev/climate-hub/pkg/metrics"
)

var simulatorCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Run the fleet simulator",
	Long: `Run the fleet simulator that:
- Generates synthetic climate readouts for a simulated device fleet
- Publishes readouts to the hub's RabbitMQ readout queue
- Supports multiple concurrent publisher workers`,
	RunE: runSimulator,
}

func init() {
	rootCmd.AddCommand(simulatorCmd)

	// Simulator-specific flags
	simulatorCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	simulatorCmd.Flags().String("readout-queue", "readouts", "RabbitMQ queue name for device readouts")
	simulatorCmd.Flags().Int("device-count", 10, "Number of simulated devices")
	simulatorCmd.Flags().Int("worker-count", 2, "Number of concurrent publisher workers")
	simulatorCmd.Flags().Duration("interval", 5*time.Second, "Interval between readouts per worker")

	// Bind flags to viper
	_ = viper.BindPFlag("simulator.rabbitmq.url", simulatorCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("simulator.rabbitmq.readout_queue", simulatorCmd.Flags().Lookup("readout-queue"))
	_ = viper.BindPFlag("simulator.device_count", simulatorCmd.Flags().Lookup("device-count"))
	_ = viper.BindPFlag("simulator.worker_count", simulatorCmd.Flags().Lookup("worker-count"))
	_ = viper.BindPFlag("simulator.interval", simulatorCmd.Flags().Lookup("interval"))
}

func runSimulator(_ *cobra.Command, _ []string) error {
	logger := GetLogger("simulator")
	logger.Info("starting simulator service")

	config := &simulator.ServerConfig{
		Logger:      logger,
		RabbitMQURL: viper.GetString("simulator.rabbitmq.url"),
		QueueName:   viper.GetString("simulator.rabbitmq.readout_queue"),
		DeviceCount: viper.GetInt("simulator.device_count"),
		WorkerCount: viper.GetInt("simulator.worker_count"),
		Interval:    viper.GetDuration("simulator.interval"),
		Metrics:     metrics.NewSimulatorMetrics("climate_simulator"),
		MQMetrics:   metrics.NewMQMetrics("climate_simulator"),
	}

	server, err := simulator.NewServer(config)
	if err != nil {
		logger.Error("failed to create simulator server", "error", err)
		return err
	}

	logger.Info("simulator server configuration",
		"rabbitmq_url", config.RabbitMQURL,
		"readout_queue", config.QueueName,
		"device_count", config.DeviceCount,
		"worker_count", config.WorkerCount,
		"interval", config.Interval,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("simulator server error", "error", err)
		return err
	}

	logger.Info("simulator server stopped")
	return nil
}
