package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"climatebox.dev/climate-hub/pkg/mq"
)

// Consumer consumes readout payloads from RabbitMQ and feeds them to the
// hub core.
type Consumer struct {
	logger   *slog.Logger
	hub      *Hub
	mqClient mq.ClientInterface
	done     chan struct{}
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger      *slog.Logger
	Hub         *Hub
	RabbitMQURL string
	QueueName   string

	// Client overrides the RabbitMQ client; used by tests. When nil a
	// client is created from RabbitMQURL and QueueName.
	Client mq.ClientInterface
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Hub == nil {
		return nil, errors.New("hub cannot be nil")
	}

	client := cfg.Client
	if client == nil {
		if cfg.RabbitMQURL == "" {
			return nil, errors.New("rabbitmq URL cannot be empty")
		}
		if cfg.QueueName == "" {
			return nil, errors.New("queue name cannot be empty")
		}
		client = mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger)
	}

	return &Consumer{
		logger:   cfg.Logger,
		hub:      cfg.Hub,
		mqClient: client,
		done:     make(chan struct{}),
	}, nil
}

// Start begins consuming readouts from RabbitMQ.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting readout consumer")

	// Wait for MQ client to be ready
	time.Sleep(2 * time.Second)

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("readout consumer started, waiting for messages")

	go c.processMessages(ctx, deliveries)

	return nil
}

// processMessages processes incoming messages from the deliveries channel.
func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping message processing")
			close(c.done)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				close(c.done)
				return
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery processes a single readout delivery. Malformed and
// rejected payloads are acked so they never come back; only infrastructure
// failures requeue.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var payload ReadoutPayload
	if err := json.Unmarshal(delivery.Body, &payload); err != nil {
		c.logger.Error("failed to unmarshal readout payload", "error", err)
		c.ack(delivery)
		return
	}

	readout, interval, err := c.hub.SubmitReadout(ctx, &payload)
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrUntrusted) {
			// Poison message: resubmitting cannot make it valid.
			c.logger.Warn("readout rejected",
				"device_id", payload.DeviceID,
				"error", err,
			)
			c.ack(delivery)
			return
		}

		c.logger.Error("failed to process readout",
			"device_id", payload.DeviceID,
			"error", err,
		)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	c.ack(delivery)

	c.logger.Debug("readout processed",
		"device_id", payload.DeviceID,
		"readout_id", readout.ID,
		"next_interval_ms", interval,
	)
}

func (c *Consumer) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
	}
}

// Stop stops the consumer and closes the MQ client.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping readout consumer")

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	// Wait for message processing to complete
	<-c.done

	c.logger.Info("readout consumer stopped")
	return nil
}
