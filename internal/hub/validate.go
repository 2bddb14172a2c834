package hub

import (
	"fmt"
	"math"
	"time"
)

// ReadoutPayload is a candidate telemetry sample as submitted by a device,
// before validation. Optional sensor fields stay nil when the device lacks
// the hardware.
type ReadoutPayload struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Temp      *float64   `json:"temp,omitempty"`
	CO2       *float64   `json:"co2,omitempty"`
	Humidity  *float64   `json:"humidity,omitempty"`
	Charge    float64    `json:"charge"`
	DeviceID  uint       `json:"device_id"`
	Motion    bool       `json:"motion"`
}

// validateReadout checks a candidate payload against its target device.
// Pure check: the caller persists the readout and mutates the device only
// after it passes.
func validateReadout(payload *ReadoutPayload, device *Device, now time.Time) error {
	if device.LocationID == nil || device.Location == nil {
		return fmt.Errorf("%w: no location set for device %d", ErrValidation, device.ID)
	}

	if !wellFormed(payload.Charge) {
		return fmt.Errorf("%w: charge must be a number", ErrValidation)
	}
	if payload.Temp != nil && !wellFormed(*payload.Temp) {
		return fmt.Errorf("%w: temperature must be a number", ErrValidation)
	}
	if payload.CO2 != nil && !wellFormed(*payload.CO2) {
		return fmt.Errorf("%w: co2 level must be a number", ErrValidation)
	}
	if payload.Humidity != nil && !wellFormed(*payload.Humidity) {
		return fmt.Errorf("%w: humidity must be a number", ErrValidation)
	}

	// Anti-flood / clock-skew check. A device reporting faster than its
	// assigned interval is rejected unless explicitly allowed; the first
	// ever readout always passes.
	if !device.AllowUntrusted && device.LastConnection != nil {
		last := *device.LastConnection
		if last.After(now) {
			return fmt.Errorf("%w: last connection is in the future", ErrUntrusted)
		}
		if now.Sub(last) < time.Duration(device.SleepPeriodMs)*time.Millisecond {
			return fmt.Errorf("%w: reporting faster than the assigned interval", ErrUntrusted)
		}
	}

	return nil
}

func wellFormed(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
