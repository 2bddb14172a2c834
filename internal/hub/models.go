// Package hub implements the climate-hub core: telemetry validation,
// seasonal anomaly detection, the alert lifecycle, device liveness
// monitoring, adaptive sleep scheduling, and daily aggregation.
package hub

import (
	"fmt"
	"time"
)

// WarningLevel values stored on a Device.
const (
	WarningNone     = 0
	WarningModerate = 1
	WarningCritical = 2
)

// AlertType identifies the condition an Alert tracks. At most one open
// alert exists per (location, type) pair; the unique index on the alerts
// table enforces this.
type AlertType string

const (
	AlertTemperature AlertType = "temperature"
	AlertCO2         AlertType = "co2"
	AlertHumidity    AlertType = "humidity"
	AlertBattery     AlertType = "battery"
	AlertOutOfSync   AlertType = "out_of_sync"
	AlertService     AlertType = "service"
)

// LogType classifies audit-trail entries.
type LogType string

const (
	LogNotification LogType = "notification"
	LogWarning      LogType = "warning"
	LogError        LogType = "error"
)

// Location is a physical zone with its own seasonal temperature norms.
// Reference data, edited out-of-band; the core only reads it.
type Location struct {
	Building             string    `gorm:"not null"`
	Description          string
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
	WarmSeasonNormalTemp float64   `gorm:"not null;default:24"`
	ColdSeasonNormalTemp float64   `gorm:"not null;default:22"`
	MaxTempDeviation     float64   `gorm:"not null;default:2"`
	Floor                int
	Room                 *int
	ID                   uint `gorm:"primaryKey"`
}

// TableName specifies the table name for the Location model.
func (Location) TableName() string {
	return "locations"
}

// Name renders a human-readable zone identifier for alert messages.
func (l *Location) Name() string {
	name := fmt.Sprintf("%s %d", l.Building, l.Floor)
	if l.Room != nil {
		name = fmt.Sprintf("%s-%d", name, *l.Room)
	}
	if l.Description != "" {
		name = name + " - " + l.Description
	}
	return name
}

// Device is a battery-powered field sensor unit reporting into one Location.
type Device struct {
	MAC              string     `gorm:"uniqueIndex;not null"`
	LastConnection   *time.Time
	CreatedAt        time.Time  `gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime"`
	Location         *Location
	LocationID       *uint      `gorm:"index"`
	Charge           *float64
	BatteryCapacity  *float64
	LastReadoutID    *uint
	SleepPeriodMs    int  `gorm:"not null"`
	WarningLevel     int  `gorm:"not null;default:0"`
	HasTempSensor    bool `gorm:"not null;default:true"`
	HasCO2Sensor     bool `gorm:"not null;default:false"`
	HasHumiditySensor bool `gorm:"not null;default:false"`
	HasMotionSensor  bool `gorm:"not null;default:false"`
	AllowUntrusted   bool `gorm:"not null;default:false"`
	ID               uint `gorm:"primaryKey"`
}

// TableName specifies the table name for the Device model.
func (Device) TableName() string {
	return "devices"
}

// BatteryLevel returns the remaining charge as a percentage of capacity,
// or -1 when charge or capacity is unknown.
func (d *Device) BatteryLevel() float64 {
	if d.Charge == nil || d.BatteryCapacity == nil || *d.BatteryCapacity == 0 {
		return -1
	}
	return *d.Charge / *d.BatteryCapacity * 100
}

// Readout is one immutable telemetry sample. The location is copied from
// the device at ingest time so the sample survives device relocation.
type Readout struct {
	Timestamp  time.Time `gorm:"index:idx_readouts_device_ts;index:idx_readouts_location_ts;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	DeviceID   *uint     `gorm:"index:idx_readouts_device_ts"`
	LocationID uint      `gorm:"index:idx_readouts_location_ts;not null"`
	Temp       *float64
	CO2        *float64
	Humidity   *float64
	Charge     float64 `gorm:"not null"`
	Motion     bool    `gorm:"not null;default:false"`
	ID         uint    `gorm:"primaryKey"`
}

// TableName specifies the table name for the Readout model.
func (Readout) TableName() string {
	return "readouts"
}

// Alert is a deduplicated, escalating record of an ongoing abnormal
// condition at a location. Open alerts are deleted on resolution; there is
// no resolved history.
type Alert struct {
	Timestamp      time.Time `gorm:"index;not null"`
	EmailTimestamp *time.Time
	Message        string
	Type           AlertType `gorm:"uniqueIndex:idx_alerts_location_type;not null"`
	LocationID     *uint     `gorm:"uniqueIndex:idx_alerts_location_type"`
	ReadoutID      *uint
	EmailSenderID  *uint
	Counter        int  `gorm:"not null;default:1"`
	Critical       bool `gorm:"not null;default:false"`
	EmailSent      bool `gorm:"not null;default:false"`
	ID             uint `gorm:"primaryKey"`
}

// TableName specifies the table name for the Alert model.
func (Alert) TableName() string {
	return "alerts"
}

// AverageReadout is the daily per-device aggregate; Timestamp is the UTC
// start of the aggregated day. One row per (device, day).
type AverageReadout struct {
	Timestamp  time.Time `gorm:"uniqueIndex:idx_averages_device_day;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	DeviceID   uint      `gorm:"uniqueIndex:idx_averages_device_day;not null"`
	LocationID *uint     `gorm:"index"`
	Temp       *float64
	CO2        *float64
	Humidity   *float64
	Charge     *float64
	ID         uint `gorm:"primaryKey"`
}

// TableName specifies the table name for the AverageReadout model.
func (AverageReadout) TableName() string {
	return "average_readouts"
}

// LogEntry is one append-only audit-trail row. The core writes these and
// never reads them back.
type LogEntry struct {
	Timestamp time.Time `gorm:"autoCreateTime;index"`
	Type      LogType   `gorm:"not null;default:notification"`
	Tag       string    `gorm:"not null"`
	Message   string
	ID        uint `gorm:"primaryKey"`
}

// TableName specifies the table name for the LogEntry model.
func (LogEntry) TableName() string {
	return "logs"
}
