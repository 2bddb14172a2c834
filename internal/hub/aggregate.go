package hub

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RunDailyAggregation computes daily per-device averages, walking backward
// from today one calendar day at a time. The walk stops at the first day
// that already has an aggregate (idempotent boundary) or has no
// temperature-bearing readouts left to fill. Days are UTC. One device
// failing does not abort the rest.
func (h *Hub) RunDailyAggregation(ctx context.Context) error {
	start := h.now()
	h.logger.Info("starting daily aggregation")
	h.audit(ctx, LogNotification, "daily_aggregation", "calculating daily averages")

	devices, err := h.store.LocatedDevices(ctx)
	if err != nil {
		return fmt.Errorf("aggregation failed to list devices: %w", err)
	}

	failed := 0
	for i := range devices {
		if err := h.aggregateDevice(ctx, &devices[i], start); err != nil {
			failed++
			h.logger.Error("device aggregation failed",
				"device_id", devices[i].ID,
				"error", err,
			)
		}
	}

	h.observeSweep("aggregation", start, len(devices), failed)
	h.logger.Info("daily aggregation completed", "devices", len(devices), "failed", failed)
	return nil
}

// aggregateDevice backfills aggregates for one device. The backward walk
// is inherently sequential: each day's stop condition depends on the
// previous day's existence check.
func (h *Hub) aggregateDevice(ctx context.Context, device *Device, now time.Time) error {
	day := now.UTC().Truncate(24 * time.Hour)

	for {
		exists, err := h.store.HasAverageReadout(ctx, device.ID, day)
		if err != nil {
			return err
		}
		if exists {
			// Everything older was aggregated by a previous run.
			return nil
		}

		readouts, err := h.store.ReadoutsForDay(ctx, device.ID, day)
		if err != nil {
			return err
		}
		if len(readouts) == 0 {
			// No more data to backfill.
			return nil
		}

		if err := h.store.CreateAverageReadout(ctx, buildAverage(device, day, readouts)); err != nil {
			return err
		}
		if h.metrics != nil {
			h.metrics.AggregatedDaysTotal.Inc()
		}

		day = day.Add(-24 * time.Hour)
	}
}

// buildAverage computes the per-field means over one day's readouts,
// rounded to one decimal. Fields are independent: a device lacking
// humidity hardware still gets temperature and charge averages, with the
// missing field left null.
func buildAverage(device *Device, day time.Time, readouts []Readout) *AverageReadout {
	avg := &AverageReadout{
		DeviceID:   device.ID,
		LocationID: device.LocationID,
		Timestamp:  day,
	}

	var temps, co2s, humids, charges []float64
	for i := range readouts {
		r := &readouts[i]
		if r.Temp != nil {
			temps = append(temps, *r.Temp)
		}
		if r.CO2 != nil {
			co2s = append(co2s, *r.CO2)
		}
		if r.Humidity != nil {
			humids = append(humids, *r.Humidity)
		}
		charges = append(charges, r.Charge)
	}

	avg.Temp = roundedMean(temps)
	avg.CO2 = roundedMean(co2s)
	avg.Humidity = roundedMean(humids)
	avg.Charge = roundedMean(charges)
	return avg
}

// roundedMean returns the arithmetic mean rounded to one decimal, or nil
// for an empty sample.
func roundedMean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := math.Round(sum/float64(len(values))*10) / 10
	return &mean
}
