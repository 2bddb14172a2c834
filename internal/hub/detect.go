package hub

import (
	"fmt"
	"time"
)

// Severity is the verdict tier produced by the anomaly detector.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "ok"
	}
}

// TempVerdict is the outcome of evaluating one temperature sample against
// a location's seasonal thresholds.
type TempVerdict struct {
	Message   string
	Deviation float64
	Severity  Severity
}

// coldSeason reports whether the month selects the cold-season norm.
// October through March are cold; the rest are warm.
func coldSeason(now time.Time) bool {
	switch now.Month() {
	case time.January, time.February, time.March, time.October, time.November, time.December:
		return true
	default:
		return false
	}
}

// NormalTemp returns the seasonal reference temperature for a location.
func NormalTemp(loc *Location, now time.Time) float64 {
	if coldSeason(now) {
		return loc.ColdSeasonNormalTemp
	}
	return loc.WarmSeasonNormalTemp
}

// EvaluateTemperature grades one readout against the location thresholds.
// A readout without a temperature sample is always ok. Deviations within
// maxTempDeviation are ok, within three times it are a warning, and at or
// beyond three times it are critical.
func EvaluateTemperature(readout *Readout, loc *Location, now time.Time) TempVerdict {
	if readout.Temp == nil {
		return TempVerdict{Severity: SeverityOK}
	}

	deviation := *readout.Temp - NormalTemp(loc, now)
	verdict := TempVerdict{Deviation: deviation}

	abs := deviation
	if abs < 0 {
		abs = -abs
	}
	if abs <= loc.MaxTempDeviation {
		return verdict
	}

	direction := "high"
	if deviation < 0 {
		direction = "low"
	}
	if abs >= loc.MaxTempDeviation*3 {
		verdict.Severity = SeverityCritical
		verdict.Message = fmt.Sprintf("[%s] critically %s temperature in [%s]: %.1f°C",
			readout.Timestamp.Format("Mon, 02 Jan 2006 15:04:05"), direction, loc.Name(), *readout.Temp)
	} else {
		verdict.Severity = SeverityWarning
		verdict.Message = fmt.Sprintf("[%s] too %s temperature in [%s]: %.1f°C",
			readout.Timestamp.Format("Mon, 02 Jan 2006 15:04:05"), direction, loc.Name(), *readout.Temp)
	}
	return verdict
}

// BatteryCritical reports whether a device's battery level is at or below
// the critical threshold (percent of capacity). Devices with unknown
// charge or capacity report -1 and are never critical.
func BatteryCritical(device *Device, threshold float64) bool {
	level := device.BatteryLevel()
	return level >= 0 && level <= threshold
}
