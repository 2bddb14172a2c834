package hub_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"climatebox.dev/climate-hub/internal/hub"
)

var _ = Describe("History", func() {
	var (
		ctx    context.Context
		store  *fakeStore
		clock  *testClock
		h      *hub.Hub
		loc    *hub.Location
		device *hub.Device
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newFakeStore()
		clock = newTestClock(warmSeasonNoon())
		h = newTestHub(store, &fakeDispatcher{}, clock)
		loc = testLocation(1)
		device = testDevice(store, loc)
	})

	addReadoutAt := func(ts time.Time, temp float64) {
		store.addReadout(hub.Readout{
			Timestamp:  ts,
			DeviceID:   &device.ID,
			LocationID: loc.ID,
			Temp:       &temp,
			Charge:     0.8,
		})
	}

	Describe("ReadingHistory", func() {
		It("should reject an unknown period", func() {
			_, err := h.ReadingHistory(ctx, loc.ID, "decade")
			Expect(err).To(MatchError(hub.ErrValidation))
		})

		Context("with an empty period", func() {
			It("should return just the latest reading", func() {
				addReadoutAt(clock.Now().Add(-2*time.Hour), 21)
				addReadoutAt(clock.Now().Add(-time.Hour), 23)

				points, err := h.ReadingHistory(ctx, loc.ID, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(points).To(HaveLen(1))
				Expect(points[0].Temp).To(HaveValue(Equal(23.0)))
			})

			It("should return nothing for a location without readings", func() {
				points, err := h.ReadingHistory(ctx, loc.ID, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(points).To(BeEmpty())
			})
		})

		Context("with a small window", func() {
			It("should serve raw readouts", func() {
				addReadoutAt(clock.Now().Add(-3*time.Hour), 21)
				addReadoutAt(clock.Now().Add(-2*time.Hour), 22)
				addReadoutAt(clock.Now().Add(-time.Hour), 23)

				points, err := h.ReadingHistory(ctx, loc.ID, "today")
				Expect(err).NotTo(HaveOccurred())
				Expect(points).To(HaveLen(3))
				Expect(points[0].Charge).To(HaveValue(Equal(0.8)))
			})

			It("should exclude readouts outside the window", func() {
				addReadoutAt(clock.Now().Add(-2*time.Hour), 22)
				addReadoutAt(clock.Now().Add(-48*time.Hour), 19)

				points, err := h.ReadingHistory(ctx, loc.ID, "today")
				Expect(err).NotTo(HaveOccurred())
				Expect(points).To(HaveLen(1))
			})
		})

		Context("with a large window", func() {
			BeforeEach(func() {
				// More raw points than the fallback limit.
				for i := range 601 {
					addReadoutAt(clock.Now().Add(-time.Duration(i)*time.Minute), 22)
				}
				day := clock.Now().UTC().Truncate(24 * time.Hour)
				store.addAverage(hub.AverageReadout{
					DeviceID:   device.ID,
					LocationID: &loc.ID,
					Timestamp:  day,
					Temp:       fp(22),
					Charge:     fp(0.8),
				})
			})

			It("should fall back to daily aggregates", func() {
				points, err := h.ReadingHistory(ctx, loc.ID, "today")
				Expect(err).NotTo(HaveOccurred())
				Expect(points).To(HaveLen(1))
				Expect(points[0].Temp).To(HaveValue(Equal(22.0)))
			})

			It("should skip aggregates that carry no temperature", func() {
				// A sibling device without a temp sensor aggregates to
				// charge-only rows.
				day := clock.Now().UTC().Truncate(24 * time.Hour)
				store.addAverage(hub.AverageReadout{
					DeviceID:   device.ID + 1,
					LocationID: &loc.ID,
					Timestamp:  day,
					Charge:     fp(0.7),
				})

				points, err := h.ReadingHistory(ctx, loc.ID, "today")
				Expect(err).NotTo(HaveOccurred())
				Expect(points).To(HaveLen(1))
				Expect(points[0].Temp).NotTo(BeNil())
			})
		})
	})

	Describe("BatteryHistory", func() {
		It("should default to today and carry only charge", func() {
			addReadoutAt(clock.Now().Add(-time.Hour), 22)

			points, err := h.BatteryHistory(ctx, device.ID, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(points).To(HaveLen(1))
			Expect(points[0].Charge).To(HaveValue(Equal(0.8)))
			Expect(points[0].Temp).To(BeNil())
		})

		It("should reject an unknown period", func() {
			_, err := h.BatteryHistory(ctx, device.ID, "fortnight")
			Expect(err).To(MatchError(hub.ErrValidation))
		})

		It("should include temperature-less readouts", func() {
			store.addReadout(hub.Readout{
				Timestamp:  clock.Now().Add(-time.Hour),
				DeviceID:   &device.ID,
				LocationID: loc.ID,
				Charge:     0.4,
			})

			points, err := h.BatteryHistory(ctx, device.ID, "today")
			Expect(err).NotTo(HaveOccurred())
			Expect(points).To(HaveLen(1))
			Expect(points[0].Charge).To(HaveValue(Equal(0.4)))
		})
	})

	Describe("PruneStaleAlerts", func() {
		It("should remove alerts older than the retention window", func() {
			alert, _, err := store.FindOrCreateAlert(ctx, loc.ID, hub.AlertTemperature, false)
			Expect(err).NotTo(HaveOccurred())
			alert.Timestamp = clock.Now().Add(-48 * time.Hour)
			Expect(store.SaveAlert(ctx, alert)).To(Succeed())

			removed, err := h.PruneStaleAlerts(ctx, 24*time.Hour)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(int64(1)))
			Expect(store.alertCount()).To(BeZero())
		})

		It("should keep recently updated alerts", func() {
			alert, _, err := store.FindOrCreateAlert(ctx, loc.ID, hub.AlertTemperature, false)
			Expect(err).NotTo(HaveOccurred())
			alert.Timestamp = clock.Now().Add(-time.Hour)
			Expect(store.SaveAlert(ctx, alert)).To(Succeed())

			removed, err := h.PruneStaleAlerts(ctx, 24*time.Hour)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeZero())
			Expect(store.alertCount()).To(Equal(1))
		})
	})
})
