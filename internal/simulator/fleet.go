// Package simulator publishes synthetic climate telemetry for a fleet of
// field devices, for load and demo environments.
package simulator

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"climatebox.dev/climate-hub/pkg/generator"
	"climatebox.dev/climate-hub/pkg/metrics"
	"climatebox.dev/climate-hub/pkg/mq"
)

// Fleet owns a group of simulated devices and publishes their readouts to
// the readout queue.
type Fleet struct {
	MQClient   mq.ClientInterface
	Devices    []*generator.SimDevice
	generators map[uint]*generator.ClimateGenerator
	metrics    *metrics.SimulatorMetrics // optional
}

// NewFleet creates a fleet for the given device IDs. The IDs must match
// devices registered on the hub, or every readout will be rejected as
// unknown. Each device keeps its own generator so its battery drains and
// its room baseline stays stable across readouts.
func NewFleet(mqClient mq.ClientInterface, deviceIDs []uint) *Fleet {
	devices := make([]*generator.SimDevice, 0, len(deviceIDs))
	generators := make(map[uint]*generator.ClimateGenerator, len(deviceIDs))
	for _, id := range deviceIDs {
		devices = append(devices, generator.NewSimDevice(id))
		generators[id] = generator.NewClimateGenerator(id)
	}

	return &Fleet{
		MQClient:   mqClient,
		Devices:    devices,
		generators: generators,
	}
}

// SetMetrics sets the metrics collector for this fleet. Call before
// publishing starts.
func (f *Fleet) SetMetrics(m *metrics.SimulatorMetrics) {
	f.metrics = m
}

// PublishReadout generates one readout from a random device in the fleet
// and publishes it.
func (f *Fleet) PublishReadout(ctx context.Context) error {
	device := f.Devices[rand.Intn(len(f.Devices))] // #nosec G404 - weak random is acceptable for simulation

	payload := f.generators[device.DeviceID].GenerateReadout(time.Now())

	message, err := json.Marshal(payload)
	if err != nil {
		if f.metrics != nil {
			f.metrics.GenerationFailures.WithLabelValues("marshal_error").Inc()
			f.metrics.ReadoutsGenerated.WithLabelValues("failed").Inc()
		}
		return err
	}

	if err := f.MQClient.Push(ctx, message); err != nil {
		if f.metrics != nil {
			f.metrics.GenerationFailures.WithLabelValues("push_error").Inc()
			f.metrics.ReadoutsGenerated.WithLabelValues("failed").Inc()
		}
		return err
	}

	if f.metrics != nil {
		f.metrics.ReadoutsGenerated.WithLabelValues("published").Inc()
	}

	return nil
}
