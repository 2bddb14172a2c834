// Package mq provides a RabbitMQ client with automatic reconnection,
// publisher confirms, and backoff retries.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"climatebox.dev/climate-hub/pkg/metrics"
)

// Client manages one connection and channel to a single queue. It
// reconnects on its own after connection or channel failures; publishers
// see an outage as backoff retries rather than hard errors.
type Client struct {
	mu              sync.Mutex
	log             *slog.Logger
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan bool
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	queueName       string
	isReady         bool
	metrics         *metrics.MQMetrics // optional
}

const (
	// When reconnecting to the server after connection failure.
	reconnectDelay = 5 * time.Second

	// When setting up the channel after a channel exception.
	reInitDelay = 2 * time.Second

	// Push retry backoff parameters.
	initialBackoff    = 100 * time.Millisecond
	maxBackoff        = 10 * time.Second
	backoffMultiplier = 2
	maxRetryAttempts  = 5
)

var (
	errNotConnected       = errors.New("not connected to a server")
	errAlreadyClosed      = errors.New("already closed: not connected to the server")
	errShutdown           = errors.New("client is shutting down")
	errMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// New creates a client for the named queue and starts connecting in the
// background.
func New(queueName, addr string, l *slog.Logger) *Client {
	client := Client{
		log:       l,
		queueName: queueName,
		done:      make(chan bool),
	}
	go client.handleReconnect(addr)
	return &client
}

// SetMetrics sets the metrics collector for this client. Call before the
// client starts processing messages.
func (client *Client) SetMetrics(m *metrics.MQMetrics) {
	client.metrics = m
}

// handleReconnect loops until shutdown, re-establishing the connection
// whenever it drops.
func (client *Client) handleReconnect(addr string) {
	for {
		client.setReady(false)
		client.log.Info("attempting to connect")

		if client.metrics != nil {
			client.metrics.ReconnectAttempts.Inc()
		}

		conn, err := client.connect(addr)
		if err != nil {
			client.log.Error("failed to connect, retrying", "error", err)

			select {
			case <-client.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := client.handleReInit(conn); done {
			break
		}
	}
}

func (client *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		if client.metrics != nil {
			client.metrics.ConnectionStatus.Set(0)
		}
		return nil, err
	}

	client.connection = conn
	client.notifyConnClose = make(chan *amqp.Error, 1)
	client.connection.NotifyClose(client.notifyConnClose)

	client.log.Info("connected")
	if client.metrics != nil {
		client.metrics.ConnectionStatus.Set(1)
	}
	return conn, nil
}

// handleReInit re-creates the channel after channel-level exceptions until
// the connection itself drops or the client shuts down.
func (client *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		client.setReady(false)

		if err := client.init(conn); err != nil {
			client.log.Error("failed to initialize channel, retrying", "error", err)

			select {
			case <-client.done:
				return true
			case <-client.notifyConnClose:
				client.log.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-client.done:
			return true
		case <-client.notifyConnClose:
			client.log.Info("connection closed, reconnecting")
			return false
		case <-client.notifyChanClose:
			client.log.Info("channel closed, re-running init")
		}
	}
}

// init opens a confirm-mode channel and declares the queue.
func (client *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(
		client.queueName,
		false, // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return err
	}

	client.channel = ch
	client.notifyChanClose = make(chan *amqp.Error, 1)
	client.notifyConfirm = make(chan amqp.Confirmation, 1)
	client.channel.NotifyClose(client.notifyChanClose)
	client.channel.NotifyPublish(client.notifyConfirm)

	client.setReady(true)
	client.log.Info("client init done")
	return nil
}

func (client *Client) setReady(ready bool) {
	client.mu.Lock()
	client.isReady = ready
	client.mu.Unlock()
}

func (client *Client) ready() bool {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.isReady
}

// Push publishes data and waits for the broker confirmation, retrying
// with exponential backoff while the client reconnects. After
// maxRetryAttempts failed attempts it gives up with an error.
func (client *Client) Push(ctx context.Context, data []byte) error {
	var timer *prometheus.Timer
	if client.metrics != nil {
		timer = prometheus.NewTimer(client.metrics.PushDuration.WithLabelValues(client.queueName))
		defer timer.ObserveDuration()
	}

	backoff := initialBackoff
	retries := 0

	// backoffWait sleeps for the current backoff and bumps it, unless the
	// context or the client shuts down first.
	backoffWait := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-client.done:
			return errShutdown
		case <-time.After(backoff):
			backoff *= backoffMultiplier
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			retries++
			return nil
		}
	}

	for {
		if retries >= maxRetryAttempts {
			client.log.Error("maximum retry attempts exceeded", "retries", retries)
			if client.metrics != nil {
				client.metrics.PushFailures.WithLabelValues(client.queueName, "max_retries_exceeded").Inc()
			}
			return errMaxRetriesExceeded
		}

		if !client.ready() {
			client.log.Info("not connected, waiting for reconnection",
				"backoff", backoff,
				"retries", retries,
			)
			if err := backoffWait(); err != nil {
				return err
			}
			continue
		}

		if err := client.UnsafePush(ctx, data); err != nil {
			client.log.Error("push failed, retrying with backoff",
				"error", err,
				"backoff", backoff,
				"retries", retries,
			)
			if err := backoffWait(); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			if client.metrics != nil {
				client.metrics.PushFailures.WithLabelValues(client.queueName, "context_canceled").Inc()
			}
			return ctx.Err()
		case confirm := <-client.notifyConfirm:
			if confirm.Ack {
				if client.metrics != nil {
					client.metrics.MessagesPushed.WithLabelValues(client.queueName).Inc()
				}
				client.log.Info("push confirmed", "delivery_tag", confirm.DeliveryTag, "retries", retries)
				return nil
			}
			client.log.Warn("push not acknowledged, retrying",
				"delivery_tag", confirm.DeliveryTag,
				"backoff", backoff,
			)
			if err := backoffWait(); err != nil {
				return err
			}
		}
	}
}

// UnsafePush publishes without waiting for a confirmation. No delivery
// guarantee beyond the write itself.
func (client *Client) UnsafePush(ctx context.Context, data []byte) error {
	if !client.ready() {
		return errNotConnected
	}

	return client.channel.PublishWithContext(
		ctx,
		"",               // exchange
		client.queueName, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        data,
		},
	)
}

// Consume starts delivering queue items on the returned channel. The
// consumer must Ack each delivery once processed, or Nack it on failure;
// ignoring this builds data up on the server.
func (client *Client) Consume() (<-chan amqp.Delivery, error) {
	if !client.ready() {
		return nil, errNotConnected
	}

	if err := client.channel.Qos(
		1,     // prefetchCount
		0,     // prefetchSize
		false, // global
	); err != nil {
		return nil, err
	}

	return client.channel.Consume(
		client.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
}

// Close cleanly shuts down the channel and connection.
func (client *Client) Close() error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if !client.isReady {
		return errAlreadyClosed
	}
	close(client.done)
	if err := client.channel.Close(); err != nil {
		return err
	}
	if err := client.connection.Close(); err != nil {
		return err
	}

	client.isReady = false
	if client.metrics != nil {
		client.metrics.ConnectionStatus.Set(0)
	}
	return nil
}
