package hub_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"climatebox.dev/climate-hub/internal/hub"
)

var _ = Describe("Detect", func() {
	var (
		loc      *hub.Location
		warmNoon time.Time
		coldNoon time.Time
	)

	BeforeEach(func() {
		loc = &hub.Location{
			ID:                   1,
			Building:             "HQ",
			Floor:                2,
			WarmSeasonNormalTemp: 24,
			ColdSeasonNormalTemp: 22,
			MaxTempDeviation:     2,
		}
		warmNoon = time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)
		coldNoon = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
	})

	Describe("NormalTemp", func() {
		DescribeTable("should pick the seasonal norm by month",
			func(month time.Month, expected float64) {
				now := time.Date(2025, month, 15, 12, 0, 0, 0, time.UTC)
				Expect(hub.NormalTemp(loc, now)).To(Equal(expected))
			},
			Entry("January is cold", time.January, 22.0),
			Entry("February is cold", time.February, 22.0),
			Entry("March is cold", time.March, 22.0),
			Entry("April is warm", time.April, 24.0),
			Entry("July is warm", time.July, 24.0),
			Entry("September is warm", time.September, 24.0),
			Entry("October is cold", time.October, 22.0),
			Entry("December is cold", time.December, 22.0),
		)
	})

	Describe("EvaluateTemperature", func() {
		newReadout := func(temp float64, ts time.Time) *hub.Readout {
			return &hub.Readout{Temp: &temp, Timestamp: ts, LocationID: loc.ID}
		}

		It("should pass a readout without a temperature sample", func() {
			verdict := hub.EvaluateTemperature(&hub.Readout{Timestamp: warmNoon}, loc, warmNoon)
			Expect(verdict.Severity).To(Equal(hub.SeverityOK))
		})

		It("should accept a deviation exactly at the limit", func() {
			verdict := hub.EvaluateTemperature(newReadout(26, warmNoon), loc, warmNoon)
			Expect(verdict.Severity).To(Equal(hub.SeverityOK))
			Expect(verdict.Deviation).To(Equal(2.0))
		})

		It("should warn above the limit", func() {
			verdict := hub.EvaluateTemperature(newReadout(27, warmNoon), loc, warmNoon)
			Expect(verdict.Severity).To(Equal(hub.SeverityWarning))
			Expect(verdict.Message).To(ContainSubstring("too high temperature"))
		})

		It("should warn below the limit", func() {
			verdict := hub.EvaluateTemperature(newReadout(21, warmNoon), loc, warmNoon)
			Expect(verdict.Severity).To(Equal(hub.SeverityWarning))
			Expect(verdict.Message).To(ContainSubstring("too low temperature"))
		})

		It("should go critical at exactly three times the limit", func() {
			// 30°C against a 24°C norm: deviation 6 = 3 × 2.
			verdict := hub.EvaluateTemperature(newReadout(30, warmNoon), loc, warmNoon)
			Expect(verdict.Severity).To(Equal(hub.SeverityCritical))
			Expect(verdict.Message).To(ContainSubstring("critically high temperature"))
		})

		It("should go critical beyond three times the limit, low side", func() {
			verdict := hub.EvaluateTemperature(newReadout(14, warmNoon), loc, warmNoon)
			Expect(verdict.Severity).To(Equal(hub.SeverityCritical))
			Expect(verdict.Message).To(ContainSubstring("critically low temperature"))
		})

		It("should judge against the cold-season norm in winter", func() {
			// 26°C is fine against the 24°C summer norm but warns against 22°C.
			verdict := hub.EvaluateTemperature(newReadout(26, coldNoon), loc, coldNoon)
			Expect(verdict.Severity).To(Equal(hub.SeverityWarning))
		})

		It("should include the zone name in the message", func() {
			verdict := hub.EvaluateTemperature(newReadout(30, warmNoon), loc, warmNoon)
			Expect(verdict.Message).To(ContainSubstring("HQ 2"))
		})
	})

	Describe("BatteryCritical", func() {
		newDevice := func(charge, capacity float64) *hub.Device {
			return &hub.Device{ID: 1, Charge: &charge, BatteryCapacity: &capacity}
		}

		It("should be critical at or below the threshold", func() {
			// Charge 0.0005 of capacity 1 is a 0.05% level.
			Expect(hub.BatteryCritical(newDevice(0.0005, 1), 0.1)).To(BeTrue())
			Expect(hub.BatteryCritical(newDevice(0.001, 1), 0.1)).To(BeTrue())
		})

		It("should not be critical above the threshold", func() {
			// A 5% level is low but still above the 0.1% line.
			Expect(hub.BatteryCritical(newDevice(0.05, 1), 0.1)).To(BeFalse())
			Expect(hub.BatteryCritical(newDevice(0.5, 1), 0.1)).To(BeFalse())
		})

		It("should never be critical when the level is unknown", func() {
			device := &hub.Device{ID: 1}
			Expect(hub.BatteryCritical(device, 0.1)).To(BeFalse())

			charge := 0.5
			device = &hub.Device{ID: 1, Charge: &charge}
			Expect(hub.BatteryCritical(device, 0.1)).To(BeFalse())
		})
	})
})
