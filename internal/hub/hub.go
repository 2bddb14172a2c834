package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"climatebox.dev/climate-hub/pkg/mailer"
	"climatebox.dev/climate-hub/pkg/metrics"
)

// Config carries the tunable thresholds of the core.
type Config struct {
	// AlertRetention is how long an alert may go without updates before
	// PruneStaleAlerts removes it.
	AlertRetention time.Duration

	// BatteryCriticalLevel is the battery level, in percent of capacity,
	// at or below which a critical battery alert opens. The default of
	// 0.1 means a tenth of a percent: the device is about to die.
	BatteryCriticalLevel float64

	// StaleFactor scales a device's sleep period into its liveness
	// staleness threshold.
	StaleFactor float64

	DayIntervalMs      int
	NightIntervalMs    int
	CriticalIntervalMs int
}

// DefaultConfig returns the thresholds used in production.
func DefaultConfig() *Config {
	return &Config{
		AlertRetention:       24 * time.Hour,
		BatteryCriticalLevel: 0.1,
		StaleFactor:          2.5,
		DayIntervalMs:        DefaultDayIntervalMs,
		NightIntervalMs:      DefaultNightIntervalMs,
		CriticalIntervalMs:   DefaultCriticalIntervalMs,
	}
}

// HubConfig holds the dependencies of a Hub.
type HubConfig struct {
	Logger *slog.Logger
	Store  Store

	// Dispatcher delivers alert emails. Optional; defaults to a no-op
	// dispatcher when nil.
	Dispatcher mailer.Dispatcher

	// Config defaults to DefaultConfig when nil.
	Config *Config

	// Metrics is the optional Prometheus collector.
	Metrics *metrics.HubMetrics

	// Clock overrides the time source; used by tests. Defaults to
	// time.Now in UTC.
	Clock func() time.Time
}

// Hub is the core service: it owns readout ingestion, the alert
// lifecycle, the liveness sweep, daily aggregation, and the audit trail.
type Hub struct {
	logger     *slog.Logger
	store      Store
	dispatcher mailer.Dispatcher
	cfg        *Config
	metrics    *metrics.HubMetrics
	now        func() time.Time
	alertLocks *lockTable
	keyring    *Keyring
}

// New creates a Hub instance.
func New(cfg *HubConfig) (*Hub, error) {
	if cfg == nil {
		return nil, errors.New("hub config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = mailer.Discard{}
	}

	conf := cfg.Config
	if conf == nil {
		conf = DefaultConfig()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	keyring, err := NewKeyring(registrationKeyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyring: %w", err)
	}

	return &Hub{
		logger:     cfg.Logger,
		store:      cfg.Store,
		dispatcher: dispatcher,
		cfg:        conf,
		metrics:    cfg.Metrics,
		now:        clock,
		alertLocks: newLockTable(),
		keyring:    keyring,
	}, nil
}

// SubmitReadout validates and persists one telemetry sample, runs anomaly
// detection and the alert lifecycle, and returns the persisted readout
// together with the next reporting interval for the device. A rejected
// readout leaves all device state untouched.
func (h *Hub) SubmitReadout(ctx context.Context, payload *ReadoutPayload) (*Readout, int, error) {
	now := h.now()

	device, err := h.store.DeviceByID(ctx, payload.DeviceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.countReadout("rejected")
			return nil, 0, fmt.Errorf("%w: unknown device %d", ErrValidation, payload.DeviceID)
		}
		return nil, 0, err
	}

	if err := validateReadout(payload, device, now); err != nil {
		if errors.Is(err, ErrUntrusted) {
			h.countReadout("untrusted")
			h.logger.Warn("untrusted readout rejected", "device_id", device.ID, "error", err)
			h.audit(ctx, LogWarning, "submit_readout",
				fmt.Sprintf("untrusted behavior from device %d (%s): %v", device.ID, device.MAC, err))
		} else {
			h.countReadout("rejected")
		}
		return nil, 0, err
	}

	timestamp := now
	if payload.Timestamp != nil {
		timestamp = payload.Timestamp.UTC()
	}

	readout := &Readout{
		Timestamp:  timestamp,
		DeviceID:   &device.ID,
		LocationID: *device.LocationID,
		Charge:     payload.Charge,
		Temp:       payload.Temp,
		CO2:        payload.CO2,
		Humidity:   payload.Humidity,
		Motion:     payload.Motion,
	}
	if err := h.store.CreateReadout(ctx, readout); err != nil {
		return nil, 0, err
	}

	device.LastConnection = &now
	device.Charge = &payload.Charge
	device.LastReadoutID = &readout.ID

	interval, err := h.processReadout(ctx, readout, device, now)
	if err != nil {
		return nil, 0, err
	}

	device.SleepPeriodMs = interval
	if err := h.store.SaveDevice(ctx, device); err != nil {
		return nil, 0, err
	}

	h.countReadout("accepted")
	h.logger.Debug("readout accepted",
		"device_id", device.ID,
		"location_id", readout.LocationID,
		"next_interval_ms", interval,
	)
	return readout, interval, nil
}

// processReadout runs the detector verdicts through the alert lifecycle
// and computes the next reporting interval. Only a brand-new critical
// alert forces the short follow-up interval.
func (h *Hub) processReadout(ctx context.Context, readout *Readout, device *Device, now time.Time) (int, error) {
	loc := device.Location
	createdCritical := false

	verdict := EvaluateTemperature(readout, loc, now)
	if verdict.Severity != SeverityOK {
		critical := verdict.Severity == SeverityCritical
		created, err := h.raiseAlert(ctx, loc.ID, AlertTemperature, critical, verdict.Message, &readout.ID, now)
		if err != nil {
			return 0, err
		}
		if created && critical {
			createdCritical = true
		}
		if critical {
			device.WarningLevel = WarningCritical
		} else {
			device.WarningLevel = WarningModerate
		}
		h.audit(ctx, LogWarning, "process_readout", "alert: "+verdict.Message)
	}

	if BatteryCritical(device, h.cfg.BatteryCriticalLevel) {
		message := fmt.Sprintf("battery of the device in [%s] is depleted (%.2f%%)",
			loc.Name(), device.BatteryLevel())
		created, err := h.raiseAlert(ctx, loc.ID, AlertBattery, true, message, &readout.ID, now)
		if err != nil {
			return 0, err
		}
		if created {
			createdCritical = true
		}
		h.audit(ctx, LogWarning, "process_readout", "battery alert: "+message)
	} else if err := h.resolveAlerts(ctx, loc.ID, AlertBattery); err != nil {
		return 0, err
	}

	// A valid readout proves liveness.
	if err := h.resolveAlerts(ctx, loc.ID, AlertOutOfSync); err != nil {
		return 0, err
	}

	return h.NextInterval(now.Hour(), createdCritical), nil
}

// audit appends one row to the write-only audit trail. Audit failures are
// logged and swallowed; the trail never blocks the core.
func (h *Hub) audit(ctx context.Context, typ LogType, tag, message string) {
	if err := h.store.AppendLog(ctx, typ, tag, message); err != nil {
		h.logger.Error("failed to append audit log", "tag", tag, "error", err)
	}
}

func (h *Hub) countReadout(status string) {
	if h.metrics != nil {
		h.metrics.ReadoutsTotal.WithLabelValues(status).Inc()
	}
}
