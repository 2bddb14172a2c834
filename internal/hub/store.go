package hub

import (
	"context"
	"time"
)

// Store is the storage-repository contract the core depends on. The
// PostgreSQL implementation lives in gorm_store.go; tests substitute an
// in-memory fake.
//
// Lookups return ErrNotFound (possibly wrapped) when no row matches.
type Store interface {
	// Devices.
	DeviceByID(ctx context.Context, id uint) (*Device, error)
	DeviceByMAC(ctx context.Context, mac string) (*Device, error)
	CreateDevice(ctx context.Context, device *Device) error
	SaveDevice(ctx context.Context, device *Device) error
	// LocatedDevices returns every device with a location assigned, with
	// the Location association populated.
	LocatedDevices(ctx context.Context) ([]Device, error)

	// Readouts.
	CreateReadout(ctx context.Context, readout *Readout) error
	// LatestReadout returns the newest readout for a location that carries
	// a temperature sample.
	LatestReadout(ctx context.Context, locationID uint) (*Readout, error)
	// ReadoutsForDay returns readouts with a non-null temperature for one
	// device within [dayStart, dayStart+24h), oldest first.
	ReadoutsForDay(ctx context.Context, deviceID uint, dayStart time.Time) ([]Readout, error)
	ReadoutsByLocation(ctx context.Context, locationID uint, from, to time.Time) ([]Readout, error)
	ReadoutsByDevice(ctx context.Context, deviceID uint, from, to time.Time) ([]Readout, error)
	CountReadoutsByLocation(ctx context.Context, locationID uint, from, to time.Time) (int64, error)
	CountReadoutsByDevice(ctx context.Context, deviceID uint, from, to time.Time) (int64, error)

	// Alerts. FindOrCreateAlert is the atomic find-or-create on the
	// (location, type) key: it reports whether the returned alert was just
	// created so the caller can branch without a race window.
	FindOrCreateAlert(ctx context.Context, locationID uint, typ AlertType, critical bool) (alert *Alert, created bool, err error)
	SaveAlert(ctx context.Context, alert *Alert) error
	AlertByID(ctx context.Context, id uint) (*Alert, error)
	DeleteAlerts(ctx context.Context, locationID uint, types ...AlertType) error
	// DeleteAlertsBefore removes alerts last updated before the cutoff and
	// reports how many rows went away.
	DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Daily aggregates.
	HasAverageReadout(ctx context.Context, deviceID uint, dayStart time.Time) (bool, error)
	CreateAverageReadout(ctx context.Context, avg *AverageReadout) error
	AveragesByLocation(ctx context.Context, locationID uint, from, to time.Time) ([]AverageReadout, error)
	AveragesByDevice(ctx context.Context, deviceID uint, from, to time.Time) ([]AverageReadout, error)

	// Audit sink: fire-and-forget append, never read back by the core.
	AppendLog(ctx context.Context, typ LogType, tag, message string) error
}
