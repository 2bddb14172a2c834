package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"climatebox.dev/climate-hub/internal/hub"
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Run the hub server",
	Long: `Run the hub server that:
- Consumes device readouts from RabbitMQ
- Detects climate anomalies and manages the alert lifecycle
- Dispatches alert notifications to the mail queue
- Runs the liveness sweep, daily aggregation, and alert pruning
- Serves Prometheus metrics`,
	RunE: runHub,
}

func init() {
	rootCmd.AddCommand(hubCmd)

	// Hub-specific flags
	hubCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	hubCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	hubCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	hubCmd.Flags().String("db-password", "", "PostgreSQL password")
	hubCmd.Flags().String("db-name", "climatebox", "PostgreSQL database name")
	hubCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	hubCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	hubCmd.Flags().String("readout-queue", "readouts", "RabbitMQ queue name for device readouts")
	hubCmd.Flags().String("mail-queue", "mail-jobs", "RabbitMQ queue name for alert mail jobs")
	hubCmd.Flags().Int("metrics-port", 9091, "Prometheus metrics port (0 disables)")
	hubCmd.Flags().Duration("liveness-interval", 5*time.Minute, "Interval between device liveness sweeps")
	hubCmd.Flags().Duration("aggregation-interval", time.Hour, "Interval between daily aggregation runs")
	hubCmd.Flags().Duration("prune-interval", time.Hour, "Interval between stale alert pruning runs")
	hubCmd.Flags().Duration("alert-retention", 24*time.Hour, "Age after which an inactive alert is pruned")

	// Bind flags to viper
	_ = viper.BindPFlag("hub.db.host", hubCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("hub.db.port", hubCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("hub.db.user", hubCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("hub.db.password", hubCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("hub.db.name", hubCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("hub.db.sslmode", hubCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("hub.rabbitmq.url", hubCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("hub.rabbitmq.readout_queue", hubCmd.Flags().Lookup("readout-queue"))
	_ = viper.BindPFlag("hub.rabbitmq.mail_queue", hubCmd.Flags().Lookup("mail-queue"))
	_ = viper.BindPFlag("hub.metrics.port", hubCmd.Flags().Lookup("metrics-port"))
	_ = viper.BindPFlag("hub.liveness_interval", hubCmd.Flags().Lookup("liveness-interval"))
	_ = viper.BindPFlag("hub.aggregation_interval", hubCmd.Flags().Lookup("aggregation-interval"))
	_ = viper.BindPFlag("hub.prune_interval", hubCmd.Flags().Lookup("prune-interval"))
	_ = viper.BindPFlag("hub.alert_retention", hubCmd.Flags().Lookup("alert-retention"))
}

func runHub(_ *cobra.Command, _ []string) error {
	logger := GetLogger("hub")
	logger.Info("starting hub service")

	hubConfig := hub.DefaultConfig()
	hubConfig.AlertRetention = viper.GetDuration("hub.alert_retention")

	config := &hub.ServerConfig{
		Logger:              logger,
		DBHost:              viper.GetString("hub.db.host"),
		DBPort:              viper.GetInt("hub.db.port"),
		DBUser:              viper.GetString("hub.db.user"),
		DBPassword:          viper.GetString("hub.db.password"),
		DBName:              viper.GetString("hub.db.name"),
		DBSSLMode:           viper.GetString("hub.db.sslmode"),
		RabbitMQURL:         viper.GetString("hub.rabbitmq.url"),
		ReadoutQueue:        viper.GetString("hub.rabbitmq.readout_queue"),
		MailQueue:           viper.GetString("hub.rabbitmq.mail_queue"),
		MetricsPort:         viper.GetInt("hub.metrics.port"),
		LivenessInterval:    viper.GetDuration("hub.liveness_interval"),
		AggregationInterval: viper.GetDuration("hub.aggregation_interval"),
		PruneInterval:       viper.GetDuration("hub.prune_interval"),
		Hub:                 hubConfig,
	}

	server, err := hub.NewServer(config)
	if err != nil {
		logger.Error("failed to create hub server", "error", err)
		return err
	}

	logger.Info("hub server configuration",
		"db_host", config.DBHost,
		"db_port", config.DBPort,
		"db_name", config.DBName,
		"rabbitmq_url", config.RabbitMQURL,
		"readout_queue", config.ReadoutQueue,
		"mail_queue", config.MailQueue,
		"metrics_port", config.MetricsPort,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("hub server error", "error", err)
		return err
	}

	logger.Info("hub server stopped")
	return nil
}
