package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// systemSenderID attributes automatically dispatched alert emails.
const systemSenderID uint = 1

const emailDispatchTimeout = 30 * time.Second

// alertKey identifies the lock domain of the alert lifecycle: all
// mutations of the open alert for one (location, type) pair serialize on
// the same mutex. Different locations never contend.
type alertKey struct {
	typ      AlertType
	location uint
}

type lockTable struct {
	mu    sync.Mutex
	locks map[alertKey]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[alertKey]*sync.Mutex)}
}

// acquire locks the key and returns the matching unlock.
func (t *lockTable) acquire(location uint, typ AlertType) func() {
	key := alertKey{typ: typ, location: location}
	t.mu.Lock()
	m, ok := t.locks[key]
	if !ok {
		m = &sync.Mutex{}
		t.locks[key] = m
	}
	t.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// raiseAlert drives the alert state machine for one violation: it either
// opens a new alert or updates the existing one (counter, escalation,
// de-escalation, send-once email gate). Returns whether the alert was just
// created.
func (h *Hub) raiseAlert(ctx context.Context, locationID uint, typ AlertType, critical bool, message string, readoutID *uint, now time.Time) (bool, error) {
	unlock := h.alertLocks.acquire(locationID, typ)
	defer unlock()

	alert, created, err := h.store.FindOrCreateAlert(ctx, locationID, typ, critical)
	if err != nil {
		return false, err
	}

	transition := "created"
	if !created {
		alert.Counter++
		switch {
		case critical && alert.Critical:
			transition = "repeated"
			if !alert.EmailSent {
				// Send-once gate: latched before the asynchronous
				// dispatch so a failed send forfeits this alert's email.
				alert.EmailSent = true
				h.dispatchAlertEmail(locationID, typ, alert.ID, message, systemSenderID)
			}
		case critical && !alert.Critical:
			transition = "escalated"
			alert.Critical = true
		case !critical && alert.Critical:
			transition = "deescalated"
			alert.Critical = false
		default:
			transition = "repeated"
		}
	}

	alert.Message = message
	alert.Timestamp = now
	alert.ReadoutID = readoutID

	if err := h.store.SaveAlert(ctx, alert); err != nil {
		return false, err
	}

	h.countAlertTransition(typ, transition)
	return created, nil
}

// resolveAlerts deletes the open alerts of the given types for a location.
// Only battery and out_of_sync alerts resolve this way; temperature and
// service alerts wait for external intervention.
func (h *Hub) resolveAlerts(ctx context.Context, locationID uint, types ...AlertType) error {
	for _, typ := range types {
		unlock := h.alertLocks.acquire(locationID, typ)
		err := h.store.DeleteAlerts(ctx, locationID, typ)
		unlock()
		if err != nil {
			return err
		}
		h.countAlertTransition(typ, "resolved")
	}
	return nil
}

// SendAlertEmail is the manual dispatch entry point. It fails with
// ErrNotFound for an unknown alert, ErrAlreadySent when the alert's email
// was already dispatched, and ErrUnsupportedType for non-temperature
// alerts. The dispatch itself is asynchronous.
func (h *Hub) SendAlertEmail(ctx context.Context, alertID, senderID uint) error {
	alert, err := h.store.AlertByID(ctx, alertID)
	if err != nil {
		return err
	}

	var locationID uint
	if alert.LocationID != nil {
		locationID = *alert.LocationID
	}
	unlock := h.alertLocks.acquire(locationID, alert.Type)
	defer unlock()

	// Re-read under the lock so a concurrent dispatch cannot slip past
	// the send-once gate.
	alert, err = h.store.AlertByID(ctx, alertID)
	if err != nil {
		return err
	}
	if alert.EmailSent {
		return ErrAlreadySent
	}
	if alert.Type != AlertTemperature {
		return ErrUnsupportedType
	}

	alert.EmailSent = true
	if err := h.store.SaveAlert(ctx, alert); err != nil {
		return err
	}

	h.dispatchAlertEmail(locationID, alert.Type, alert.ID, alert.Message, senderID)
	return nil
}

// dispatchAlertEmail hands an alert to the notification dispatcher without
// blocking the caller. On completion it stamps the alert with the delivery
// time and sender; on failure the email is forfeited and the failure is
// logged and audited, never retried. The stamp is a read-modify-write, so
// it runs under the alert's key lock like every other lifecycle mutation.
func (h *Hub) dispatchAlertEmail(locationID uint, typ AlertType, alertID uint, body string, senderID uint) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emailDispatchTimeout)
		defer cancel()

		h.audit(ctx, LogNotification, "send_alert_email",
			fmt.Sprintf("dispatching email for alert %d: %s", alertID, body))

		if err := h.dispatcher.Dispatch(ctx, "climate-hub alert", body, alertID, senderID); err != nil {
			h.logger.Error("alert email dispatch failed", "alert_id", alertID, "error", err)
			h.audit(ctx, LogError, "send_alert_email",
				fmt.Sprintf("dispatch failed for alert %d: %v", alertID, err))
			h.countEmail("failed")
			return
		}

		now := h.now()
		unlock := h.alertLocks.acquire(locationID, typ)
		defer unlock()

		alert, err := h.store.AlertByID(ctx, alertID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				h.logger.Error("failed to stamp emailed alert", "alert_id", alertID, "error", err)
			}
			// The alert resolved while the email was in flight; nothing
			// left to stamp.
			return
		}
		sender := senderID
		alert.EmailTimestamp = &now
		alert.EmailSenderID = &sender
		if err := h.store.SaveAlert(ctx, alert); err != nil {
			h.logger.Error("failed to stamp emailed alert", "alert_id", alertID, "error", err)
			return
		}
		h.countEmail("sent")
	}()
}

func (h *Hub) countAlertTransition(typ AlertType, transition string) {
	if h.metrics != nil {
		h.metrics.AlertTransitionsTotal.WithLabelValues(string(typ), transition).Inc()
	}
}

func (h *Hub) countEmail(status string) {
	if h.metrics != nil {
		h.metrics.EmailDispatchesTotal.WithLabelValues(status).Inc()
	}
}
