package simulator_test

import (
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"climatebox.dev/climate-hub/internal/simulator"
)

var _ = Describe("Server", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("NewServer", func() {
		Context("with valid configuration", func() {
			It("should create a server with one fleet per worker", func() {
				server, err := simulator.NewServer(&simulator.ServerConfig{
					Logger:      logger,
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "readouts",
					Interval:    time.Second,
					DeviceCount: 10,
					WorkerCount: 2,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(server).NotTo(BeNil())
				Expect(server.Shutdown()).To(Succeed())
			})

			It("should skip workers left without devices", func() {
				// 2 devices over 5 workers leaves 3 workers idle.
				server, err := simulator.NewServer(&simulator.ServerConfig{
					Logger:      logger,
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "readouts",
					Interval:    time.Second,
					DeviceCount: 2,
					WorkerCount: 5,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(server).NotTo(BeNil())
				Expect(server.Shutdown()).To(Succeed())
			})
		})

		Context("with invalid configuration", func() {
			It("should return error for zero device count", func() {
				server, err := simulator.NewServer(&simulator.ServerConfig{
					Logger:      logger,
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "readouts",
					Interval:    time.Second,
					WorkerCount: 1,
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("device count must be greater than 0"))
				Expect(server).To(BeNil())
			})

			It("should return error for zero worker count", func() {
				server, err := simulator.NewServer(&simulator.ServerConfig{
					Logger:      logger,
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "readouts",
					Interval:    time.Second,
					DeviceCount: 10,
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("worker count must be greater than 0"))
				Expect(server).To(BeNil())
			})

			It("should return error for zero interval", func() {
				server, err := simulator.NewServer(&simulator.ServerConfig{
					Logger:      logger,
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "readouts",
					DeviceCount: 10,
					WorkerCount: 1,
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("interval must be greater than 0"))
				Expect(server).To(BeNil())
			})

			It("should return error for missing logger", func() {
				server, err := simulator.NewServer(&simulator.ServerConfig{
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "readouts",
					Interval:    time.Second,
					DeviceCount: 10,
					WorkerCount: 1,
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("logger is required"))
				Expect(server).To(BeNil())
			})
		})
	})
})
