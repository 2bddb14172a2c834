package hub_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"climatebox.dev/climate-hub/internal/hub"
)

var _ = Describe("Models", func() {
	Describe("table names", func() {
		It("should map every model to its table", func() {
			Expect(hub.Location{}.TableName()).To(Equal("locations"))
			Expect(hub.Device{}.TableName()).To(Equal("devices"))
			Expect(hub.Readout{}.TableName()).To(Equal("readouts"))
			Expect(hub.Alert{}.TableName()).To(Equal("alerts"))
			Expect(hub.AverageReadout{}.TableName()).To(Equal("average_readouts"))
			Expect(hub.LogEntry{}.TableName()).To(Equal("logs"))
		})
	})

	Describe("Location", func() {
		Describe("Name", func() {
			It("should combine building and floor", func() {
				loc := &hub.Location{Building: "HQ", Floor: 3}
				Expect(loc.Name()).To(Equal("HQ 3"))
			})

			It("should append the room when set", func() {
				room := 12
				loc := &hub.Location{Building: "HQ", Floor: 3, Room: &room}
				Expect(loc.Name()).To(Equal("HQ 3-12"))
			})

			It("should append the description when set", func() {
				room := 12
				loc := &hub.Location{Building: "HQ", Floor: 3, Room: &room, Description: "server room"}
				Expect(loc.Name()).To(Equal("HQ 3-12 - server room"))
			})
		})
	})

	Describe("Device", func() {
		Describe("BatteryLevel", func() {
			It("should report the charge as a percentage of capacity", func() {
				device := &hub.Device{Charge: fp(0.45), BatteryCapacity: fp(0.9)}
				Expect(device.BatteryLevel()).To(BeNumerically("~", 50.0, 1e-9))
			})

			It("should report -1 when charge is unknown", func() {
				device := &hub.Device{BatteryCapacity: fp(1)}
				Expect(device.BatteryLevel()).To(Equal(-1.0))
			})

			It("should report -1 when capacity is unknown or zero", func() {
				device := &hub.Device{Charge: fp(0.5)}
				Expect(device.BatteryLevel()).To(Equal(-1.0))

				device = &hub.Device{Charge: fp(0.5), BatteryCapacity: fp(0)}
				Expect(device.BatteryLevel()).To(Equal(-1.0))
			})
		})
	})
})
