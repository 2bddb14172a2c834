package mailer_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"climatebox.dev/climate-hub/pkg/mailer"
	"climatebox.dev/climate-hub/pkg/mq/mock"
)

var _ = Describe("Mailer", func() {
	var (
		logger *slog.Logger
		client *mock.MockClient
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		client = mock.NewMockClient()
	})

	Describe("NewMQDispatcher", func() {
		It("should create a dispatcher", func() {
			d, err := mailer.NewMQDispatcher(client, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).NotTo(BeNil())
		})

		It("should return error when the client is nil", func() {
			d, err := mailer.NewMQDispatcher(nil, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("mq client cannot be nil"))
			Expect(d).To(BeNil())
		})

		It("should return error when the logger is nil", func() {
			d, err := mailer.NewMQDispatcher(client, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger cannot be nil"))
			Expect(d).To(BeNil())
		})
	})

	Describe("Dispatch", func() {
		It("should publish the mail job as JSON", func() {
			d, err := mailer.NewMQDispatcher(client, logger)
			Expect(err).NotTo(HaveOccurred())

			err = d.Dispatch(context.Background(), "ALERT", "critically high temperature in HQ 2", 7, 1)
			Expect(err).NotTo(HaveOccurred())

			pushed := client.Pushed()
			Expect(pushed).To(HaveLen(1))

			var job mailer.Job
			Expect(json.Unmarshal(pushed[0], &job)).To(Succeed())
			Expect(job.Title).To(Equal("ALERT"))
			Expect(job.Body).To(Equal("critically high temperature in HQ 2"))
			Expect(job.AlertID).To(Equal(uint(7)))
			Expect(job.SenderID).To(Equal(uint(1)))
		})

		It("should surface publish failures", func() {
			client.PushError = errors.New("broker unavailable")
			d, err := mailer.NewMQDispatcher(client, logger)
			Expect(err).NotTo(HaveOccurred())

			err = d.Dispatch(context.Background(), "ALERT", "body", 1, 1)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to publish mail job"))
		})
	})

	Describe("Discard", func() {
		It("should drop every notification without error", func() {
			var d mailer.Discard
			Expect(d.Dispatch(context.Background(), "ALERT", "body", 1, 1)).To(Succeed())
		})
	})
})
