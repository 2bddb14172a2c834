// Package mailer defines the alert notification dispatch contract and its
// RabbitMQ-backed implementation. The hub core only depends on the
// Dispatcher interface; actually delivering an email is the mail worker's
// business, on the far side of the queue.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"climatebox.dev/climate-hub/pkg/mq"
)

// Dispatcher hands an alert notification off for delivery. Implementations
// must be safe for concurrent use; the hub calls Dispatch from background
// goroutines and treats any returned error as a forfeited notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, title, body string, alertID, senderID uint) error
}

// Job is the mail-queue payload consumed by the mail worker.
type Job struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	AlertID  uint   `json:"alert_id"`
	SenderID uint   `json:"sender_id"`
}

// MQDispatcher publishes mail jobs to a RabbitMQ queue.
type MQDispatcher struct {
	logger *slog.Logger
	client mq.ClientInterface
}

// NewMQDispatcher creates a dispatcher publishing to the given client's queue.
func NewMQDispatcher(client mq.ClientInterface, logger *slog.Logger) (*MQDispatcher, error) {
	if client == nil {
		return nil, errors.New("mq client cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &MQDispatcher{logger: logger, client: client}, nil
}

// Dispatch publishes one mail job and waits for the broker confirmation.
func (d *MQDispatcher) Dispatch(ctx context.Context, title, body string, alertID, senderID uint) error {
	data, err := json.Marshal(Job{
		Title:    title,
		Body:     body,
		AlertID:  alertID,
		SenderID: senderID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal mail job: %w", err)
	}

	if err := d.client.Push(ctx, data); err != nil {
		return fmt.Errorf("failed to publish mail job: %w", err)
	}

	d.logger.Info("mail job published", "alert_id", alertID, "sender_id", senderID)
	return nil
}

// Discard is a Dispatcher that drops every notification. Used in tests and
// when no mail queue is configured.
type Discard struct{}

// Dispatch implements Dispatcher.
func (Discard) Dispatch(context.Context, string, string, uint, uint) error {
	return nil
}
