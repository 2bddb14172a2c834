package generator_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"climatebox.dev/climate-hub/pkg/generator"
)

var _ = Describe("Generator", func() {
	noon := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	midnight := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	Describe("NewSimDevice", func() {
		It("should create a device with fake hardware identity", func() {
			device := generator.NewSimDevice(3)
			Expect(device).NotTo(BeNil())
			Expect(device.DeviceID).To(Equal(uint(3)))
			Expect(device.MacAddress).NotTo(BeEmpty())
			Expect(device.Firmware).NotTo(BeEmpty())
		})
	})

	Describe("ClimateGenerator", func() {
		var gen *generator.ClimateGenerator

		BeforeEach(func() {
			gen = generator.NewClimateGenerator(1)
		})

		Describe("GenerateTemperature", func() {
			It("should stay within plausible indoor bounds", func() {
				for range 200 {
					temp := gen.GenerateTemperature(noon)
					// Baseline 19-24 plus daily cycle, noise and the ±8°C
					// anomaly window.
					Expect(temp).To(BeNumerically(">", 5.0))
					Expect(temp).To(BeNumerically("<", 40.0))
				}
			})

			It("should run warmer at midday than at midnight on average", func() {
				var daySum, nightSum float64
				for range 500 {
					daySum += gen.GenerateTemperature(noon)
					nightSum += gen.GenerateTemperature(midnight)
				}
				Expect(daySum / 500).To(BeNumerically(">", nightSum/500))
			})
		})

		Describe("GenerateCO2", func() {
			It("should never drop below outdoor ambient", func() {
				for range 200 {
					Expect(gen.GenerateCO2(midnight)).To(BeNumerically(">=", 400.0))
				}
			})

			It("should run higher during working hours", func() {
				working := time.Date(2025, 7, 15, 13, 0, 0, 0, time.UTC)
				var daySum, nightSum float64
				for range 500 {
					daySum += gen.GenerateCO2(working)
					nightSum += gen.GenerateCO2(midnight)
				}
				Expect(daySum / 500).To(BeNumerically(">", nightSum/500))
			})
		})

		Describe("GenerateHumidity", func() {
			It("should clamp to realistic indoor bounds", func() {
				for _, temp := range []float64{-20, 10, 22, 45, 90} {
					humidity := gen.GenerateHumidity(noon, temp)
					Expect(humidity).To(BeNumerically(">=", 15.0))
					Expect(humidity).To(BeNumerically("<=", 90.0))
				}
			})
		})

		Describe("GenerateCharge", func() {
			It("should drain monotonically and never go negative", func() {
				prev := gen.GenerateCharge()
				for range 1000 {
					charge := gen.GenerateCharge()
					Expect(charge).To(BeNumerically("<=", prev))
					Expect(charge).To(BeNumerically(">=", 0.0))
					prev = charge
				}
			})
		})

		Describe("GenerateReadout", func() {
			It("should produce a complete payload", func() {
				payload := gen.GenerateReadout(noon)
				Expect(payload).NotTo(BeNil())
				Expect(payload.DeviceID).To(Equal(uint(1)))
				Expect(payload.Timestamp).NotTo(BeNil())
				Expect(payload.Timestamp.Location()).To(Equal(time.UTC))
				Expect(payload.Temp).NotTo(BeNil())
				Expect(payload.CO2).NotTo(BeNil())
				Expect(payload.Humidity).NotTo(BeNil())
				Expect(payload.Charge).To(BeNumerically(">", 0.0))
				Expect(payload.Charge).To(BeNumerically("<=", 1.0))
			})
		})
	})
})
