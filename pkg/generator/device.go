// Package generator produces synthetic climate telemetry for the fleet
// simulator.
package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"climatebox.dev/climate-hub/internal/hub"
)

// SimDevice describes one simulated field device.
type SimDevice struct {
	DeviceID   uint
	MacAddress string `fake:"{macaddress}"`
	Firmware   string `fake:"{appversion}"`
}

// NewSimDevice creates a simulated device with fake hardware identity.
func NewSimDevice(deviceID uint) *SimDevice {
	var device SimDevice
	if err := gofakeit.Struct(&device); err != nil {
		return nil
	}
	device.DeviceID = deviceID
	return &device
}

// ClimateGenerator produces correlated indoor climate readings for one
// device: a daily temperature cycle, CO2 tracking working hours, humidity
// inversely tracking temperature, and a slowly draining battery.
type ClimateGenerator struct {
	deviceID         uint
	baselineTemp     float64
	baselineCO2      float64
	baselineHumidity float64
	noise            float64
	charge           float64
}

// NewClimateGenerator seeds a generator with randomized room baselines.
func NewClimateGenerator(deviceID uint) *ClimateGenerator {
	return &ClimateGenerator{
		deviceID:         deviceID,
		baselineTemp:     19.0 + rand.Float64()*5,   // 19-24°C
		baselineCO2:      420.0 + rand.Float64()*80, // 420-500 ppm
		baselineHumidity: 35.0 + rand.Float64()*20,  // 35-55%
		noise:            rand.Float64() * 1.5,
		charge:           0.7 + rand.Float64()*0.3, // start at 70-100%
	}
}

// GenerateTemperature follows a daily cycle peaking mid-afternoon, with
// occasional anomaly spikes large enough to trip the detector.
func (g *ClimateGenerator) GenerateTemperature(t time.Time) float64 {
	hour := float64(t.Hour())

	// Daily cycle (peak around 2-3 PM)
	dailyCycle := 2.5 * math.Sin((hour-6)*math.Pi/12)

	noise := (rand.Float64() - 0.5) * g.noise

	// Occasional anomalies (3% chance): a window left open or a heater
	// stuck on, large enough to exceed the usual deviation limits.
	anomaly := 0.0
	if rand.Float64() < 0.03 {
		anomaly = (rand.Float64() - 0.5) * 16 // up to ±8°C
	}

	return g.baselineTemp + dailyCycle + noise + anomaly
}

// GenerateCO2 tracks office occupancy: elevated during working hours,
// near baseline overnight.
func (g *ClimateGenerator) GenerateCO2(t time.Time) float64 {
	hour := t.Hour()

	occupancy := 0.0
	if hour >= 8 && hour < 18 {
		// Rises through the morning, drops after lunch, rises again.
		occupancy = 400 * math.Sin(float64(hour-8)*math.Pi/10)
	}

	noise := (rand.Float64() - 0.5) * 40

	co2 := g.baselineCO2 + occupancy + noise
	return math.Max(400, co2)
}

// GenerateHumidity correlates inversely with temperature.
func (g *ClimateGenerator) GenerateHumidity(t time.Time, temperature float64) float64 {
	hour := float64(t.Hour())

	dailyCycle := -2 * math.Sin((hour-6)*math.Pi/12)
	tempEffect := -(temperature - g.baselineTemp) * 1.2
	noise := (rand.Float64() - 0.5) * g.noise

	humidity := g.baselineHumidity + dailyCycle + tempEffect + noise

	// Clamp between realistic indoor bounds
	return math.Max(15, math.Min(90, humidity))
}

// GenerateCharge drains the battery by a small random step per reading.
func (g *ClimateGenerator) GenerateCharge() float64 {
	g.charge -= rand.Float64() * 0.0005
	if g.charge < 0 {
		g.charge = 0
	}
	return g.charge
}

// GenerateReadout produces one correlated readout payload.
func (g *ClimateGenerator) GenerateReadout(t time.Time) *hub.ReadoutPayload {
	temperature := round2(g.GenerateTemperature(t))
	co2 := round2(g.GenerateCO2(t))
	humidity := round2(g.GenerateHumidity(t, temperature))
	charge := g.GenerateCharge()
	timestamp := t.UTC()

	return &hub.ReadoutPayload{
		DeviceID:  g.deviceID,
		Timestamp: &timestamp,
		Temp:      &temperature,
		CO2:       &co2,
		Humidity:  &humidity,
		Charge:    math.Round(charge*1000) / 1000,
		Motion:    rand.Float64() < occupancyChance(t),
	}
}

// occupancyChance is the probability of motion being detected at t.
func occupancyChance(t time.Time) float64 {
	hour := t.Hour()
	if hour >= 8 && hour < 18 {
		return 0.6
	}
	return 0.05
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
