package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ClientInterface is the queue contract the hub and simulator depend on.
// Keeping it narrow lets tests substitute a fake without a broker.
type ClientInterface interface {
	// Push publishes data and blocks until the broker confirms it.
	Push(ctx context.Context, data []byte) error

	// UnsafePush publishes without waiting for a confirmation.
	UnsafePush(ctx context.Context, data []byte) error

	// Consume starts delivering queue items on the returned channel. Each
	// delivery must be Acked once processed, or Nacked on failure.
	Consume() (<-chan amqp.Delivery, error)

	// Close cleanly shuts down the channel and connection.
	Close() error
}

// Ensure Client implements ClientInterface.
var _ ClientInterface = (*Client)(nil)
