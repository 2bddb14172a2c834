package hub

import (
	"context"
	"fmt"
	"time"
)

// RunLivenessSweep scans every located device for missed check-ins. A
// device whose last connection is at least StaleFactor sleep periods in
// the past gets a critical out_of_sync alert for its location and warning
// level 2. The sweep never clears out_of_sync alerts; the next valid
// readout from the location does that. Idempotent and safe to run
// concurrently with itself. One device failing does not abort the rest.
func (h *Hub) RunLivenessSweep(ctx context.Context) error {
	start := h.now()
	h.logger.Info("starting liveness sweep")
	h.audit(ctx, LogNotification, "liveness_sweep", "searching for out-of-sync devices")

	devices, err := h.store.LocatedDevices(ctx)
	if err != nil {
		return fmt.Errorf("liveness sweep failed to list devices: %w", err)
	}

	failed := 0
	for i := range devices {
		if err := h.checkDeviceLiveness(ctx, &devices[i], start); err != nil {
			failed++
			h.logger.Error("liveness check failed",
				"device_id", devices[i].ID,
				"error", err,
			)
		}
	}

	h.observeSweep("liveness", start, len(devices), failed)
	h.logger.Info("liveness sweep completed", "devices", len(devices), "failed", failed)
	return nil
}

func (h *Hub) checkDeviceLiveness(ctx context.Context, device *Device, now time.Time) error {
	// A device that never connected has nothing to measure staleness
	// against.
	if device.LastConnection == nil || device.Location == nil {
		return nil
	}

	threshold := time.Duration(float64(device.SleepPeriodMs)*h.cfg.StaleFactor) * time.Millisecond
	elapsed := now.Sub(*device.LastConnection)
	if elapsed < threshold {
		return nil
	}

	message := fmt.Sprintf(
		"device in [%s] missed more than two check-ins; last sync %s, last known battery level %.1f%%",
		device.Location.Name(),
		device.LastConnection.Format("02.01.2006 15:04:05"),
		device.BatteryLevel(),
	)

	if _, err := h.raiseAlert(ctx, device.Location.ID, AlertOutOfSync, true, message, nil, now); err != nil {
		return err
	}
	h.audit(ctx, LogWarning, "liveness_sweep", message)

	device.WarningLevel = WarningCritical
	return h.store.SaveDevice(ctx, device)
}

func (h *Hub) observeSweep(sweep string, start time.Time, devices, failed int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SweepDuration.WithLabelValues(sweep).Observe(h.now().Sub(start).Seconds())
	h.metrics.SweepDevicesTotal.WithLabelValues(sweep).Add(float64(devices))
	if failed > 0 {
		h.metrics.SweepFailuresTotal.WithLabelValues(sweep).Add(float64(failed))
	}
}
