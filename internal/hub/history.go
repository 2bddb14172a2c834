package hub

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// periodDays maps the query-period names exposed to clients onto day
// windows.
var periodDays = map[string]int{
	"today": 1,
	"week":  7,
	"month": 30,
	"year":  365,
}

// historyRawLimit is the point count above which a history query is served
// from daily aggregates instead of raw readouts.
const historyRawLimit = 600

// HistoryPoint is one sample of a long-range query, either a raw readout
// or a daily aggregate.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Temp      *float64  `json:"temp,omitempty"`
	CO2       *float64  `json:"co2,omitempty"`
	Humidity  *float64  `json:"humidity,omitempty"`
	Charge    *float64  `json:"charge,omitempty"`
}

// ReadingHistory returns the climate history of a location. An empty
// period returns just the latest temperature-bearing readout. Windows
// larger than historyRawLimit raw points are served from daily aggregates.
func (h *Hub) ReadingHistory(ctx context.Context, locationID uint, period string) ([]HistoryPoint, error) {
	if period == "" {
		latest, err := h.store.LatestReadout(ctx, locationID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []HistoryPoint{readoutPoint(latest)}, nil
	}

	from, to, err := h.periodWindow(period)
	if err != nil {
		return nil, err
	}

	count, err := h.store.CountReadoutsByLocation(ctx, locationID, from, to)
	if err != nil {
		return nil, err
	}
	if count > historyRawLimit {
		averages, err := h.store.AveragesByLocation(ctx, locationID, from, to)
		if err != nil {
			return nil, err
		}
		points := make([]HistoryPoint, len(averages))
		for i := range averages {
			points[i] = averagePoint(&averages[i])
		}
		return points, nil
	}

	readouts, err := h.store.ReadoutsByLocation(ctx, locationID, from, to)
	if err != nil {
		return nil, err
	}
	points := make([]HistoryPoint, len(readouts))
	for i := range readouts {
		points[i] = readoutPoint(&readouts[i])
	}
	return points, nil
}

// BatteryHistory returns the charge history of a device; an empty period
// means today. Large windows fall back to daily aggregates like
// ReadingHistory.
func (h *Hub) BatteryHistory(ctx context.Context, deviceID uint, period string) ([]HistoryPoint, error) {
	if period == "" {
		period = "today"
	}
	from, to, err := h.periodWindow(period)
	if err != nil {
		return nil, err
	}

	count, err := h.store.CountReadoutsByDevice(ctx, deviceID, from, to)
	if err != nil {
		return nil, err
	}
	if count > historyRawLimit {
		averages, err := h.store.AveragesByDevice(ctx, deviceID, from, to)
		if err != nil {
			return nil, err
		}
		points := make([]HistoryPoint, len(averages))
		for i := range averages {
			avg := &averages[i]
			points[i] = HistoryPoint{Timestamp: avg.Timestamp, Charge: avg.Charge}
		}
		return points, nil
	}

	readouts, err := h.store.ReadoutsByDevice(ctx, deviceID, from, to)
	if err != nil {
		return nil, err
	}
	points := make([]HistoryPoint, len(readouts))
	for i := range readouts {
		charge := readouts[i].Charge
		points[i] = HistoryPoint{Timestamp: readouts[i].Timestamp, Charge: &charge}
	}
	return points, nil
}

// PruneStaleAlerts deletes alerts that went without updates for longer
// than the retention window and reports how many were removed.
func (h *Hub) PruneStaleAlerts(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := h.now().Add(-olderThan)
	h.audit(ctx, LogNotification, "prune_alerts", "searching for stale alerts")

	removed, err := h.store.DeleteAlertsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		h.audit(ctx, LogNotification, "prune_alerts", fmt.Sprintf("removed %d stale alerts", removed))
		h.logger.Info("pruned stale alerts", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

func (h *Hub) periodWindow(period string) (from, to time.Time, err error) {
	days, ok := periodDays[period]
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown period %q", ErrValidation, period)
	}
	to = h.now()
	return to.AddDate(0, 0, -days), to, nil
}

func readoutPoint(r *Readout) HistoryPoint {
	charge := r.Charge
	return HistoryPoint{
		Timestamp: r.Timestamp,
		Temp:      r.Temp,
		CO2:       r.CO2,
		Humidity:  r.Humidity,
		Charge:    &charge,
	}
}

func averagePoint(avg *AverageReadout) HistoryPoint {
	return HistoryPoint{
		Timestamp: avg.Timestamp,
		Temp:      avg.Temp,
		CO2:       avg.CO2,
		Humidity:  avg.Humidity,
		Charge:    avg.Charge,
	}
}
