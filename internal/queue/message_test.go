package queue_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"basegraph.app/advflag/internal/queue"
)

var _ = Describe("ParseMessage", func() {
	It("reads the fields written by the producer", func() {
		msg, err := queue.ParseMessage(redis.XMessage{
			ID: "1700000000000-0",
			Values: map[string]any{
				"url":         "https://stackoverflow.com/posts/1/vote/10",
				"status_code": "200",
				"body":        "{}",
				"trace_id":    "abc",
				"observed_at": "1714564800000",
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.ID).To(Equal("1700000000000-0"))
		Expect(msg.URL).To(Equal("https://stackoverflow.com/posts/1/vote/10"))
		Expect(msg.StatusCode).To(Equal(200))
		Expect(msg.Body).To(Equal("{}"))
		Expect(msg.TraceID).To(Equal("abc"))
		Expect(msg.ObservedAt).To(Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	})

	DescribeTable("rejects incomplete messages",
		func(values map[string]any) {
			_, err := queue.ParseMessage(redis.XMessage{ID: "1-0", Values: values})
			Expect(err).To(HaveOccurred())
		},
		Entry("missing url", map[string]any{"status_code": "200"}),
		Entry("empty url", map[string]any{"url": "", "status_code": "200"}),
		Entry("missing status", map[string]any{"url": "https://x/1"}),
		Entry("bad status", map[string]any{"url": "https://x/1", "status_code": "ok"}),
		Entry("bad timestamp", map[string]any{"url": "https://x/1", "status_code": "200", "observed_at": "soon"}),
	)
})
