package hub

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"climatebox.dev/climate-hub/internal/hub"
)

var _ = Describe("Readout Consumer E2E", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	publish := func(payload *hub.ReadoutPayload) {
		body, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(publisher.Push(ctx, body)).To(Succeed())
	}

	readoutCount := func(deviceID uint) func() int64 {
		return func() int64 {
			count, err := testStore.CountReadoutsByDevice(ctx, deviceID,
				time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(time.Hour))
			if err != nil {
				return -1
			}
			return count
		}
	}

	It("should ingest a normal readout end to end", func() {
		loc := seedLocation("Consumer-A")
		device := seedDevice("BB:CC:DD:00:00:01", loc)

		publish(&hub.ReadoutPayload{
			DeviceID: device.ID,
			Charge:   0.85,
			Temp:     fp(22.0),
		})

		Eventually(readoutCount(device.ID), 15*time.Second, 500*time.Millisecond).Should(Equal(int64(1)))

		fetched, err := testStore.DeviceByID(ctx, device.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(fetched.LastConnection).NotTo(BeNil())
		Expect(fetched.Charge).To(HaveValue(Equal(0.85)))
		Expect(fetched.WarningLevel).To(Equal(hub.WarningNone))
		Expect(fetched.SleepPeriodMs).To(SatisfyAny(
			Equal(hub.DefaultDayIntervalMs),
			Equal(hub.DefaultNightIntervalMs),
		))
	})

	It("should open a critical alert for an extreme temperature", func() {
		loc := seedLocation("Consumer-B")
		device := seedDevice("BB:CC:DD:00:00:02", loc)

		// 40°C against a 22°C norm with ±2°C allowed.
		publish(&hub.ReadoutPayload{
			DeviceID: device.ID,
			Charge:   0.85,
			Temp:     fp(40.0),
		})

		Eventually(readoutCount(device.ID), 15*time.Second, 500*time.Millisecond).Should(Equal(int64(1)))

		alert, created, err := testStore.FindOrCreateAlert(ctx, loc.ID, hub.AlertTemperature, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeFalse(), "the consumer should have opened the alert already")
		Expect(alert.Critical).To(BeTrue())
		Expect(alert.Message).To(ContainSubstring("Consumer-B"))

		fetched, err := testStore.DeviceByID(ctx, device.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(fetched.WarningLevel).To(Equal(hub.WarningCritical))
		Expect(fetched.SleepPeriodMs).To(Equal(hub.DefaultCriticalIntervalMs))
	})

	It("should survive malformed payloads and keep consuming", func() {
		loc := seedLocation("Consumer-C")
		device := seedDevice("BB:CC:DD:00:00:03", loc)

		Expect(publisher.Push(ctx, []byte("this is not json"))).To(Succeed())

		publish(&hub.ReadoutPayload{
			DeviceID: device.ID,
			Charge:   0.8,
			Temp:     fp(21.5),
		})

		Eventually(readoutCount(device.ID), 15*time.Second, 500*time.Millisecond).Should(Equal(int64(1)))
	})

	It("should drop readouts from unknown devices without requeue loops", func() {
		loc := seedLocation("Consumer-D")
		device := seedDevice("BB:CC:DD:00:00:04", loc)

		publish(&hub.ReadoutPayload{DeviceID: 999999, Charge: 0.5})
		publish(&hub.ReadoutPayload{
			DeviceID: device.ID,
			Charge:   0.8,
			Temp:     fp(22.0),
		})

		// The valid readout lands; the unknown one is acked away.
		Eventually(readoutCount(device.ID), 15*time.Second, 500*time.Millisecond).Should(Equal(int64(1)))
		Consistently(readoutCount(device.ID), 3*time.Second, 500*time.Millisecond).Should(Equal(int64(1)))
	})
})
