package netevent_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/advflag/internal/eventbus"
	"basegraph.app/advflag/internal/model"
	"basegraph.app/advflag/internal/netevent"
)

const reviewHTML = `
<div class="question">
  <div class="post-signature owner">
    <div class="user-info">
      <div class="user-action-time">asked <span title="2024-01-10 08:00:00Z" class="relativetime">Jan 10</span></div>
    </div>
  </div>
</div>
<div class="answer">
  <div class="post-signature">
    <div class="user-info">
      <div class="user-action-time">answered <span title="2024-04-30 09:30:00Z, License: CC BY-SA 4.0" class="relativetime">yesterday</span></div>
    </div>
  </div>
</div>`

func reviewBody(postID int64, content string) string {
	b, err := json.Marshal(map[string]any{"postId": postID, "content": content})
	Expect(err).NotTo(HaveOccurred())
	return string(b)
}

var _ = Describe("Classify", func() {
	It("ignores non-200 responses", func() {
		ev, err := netevent.Classify(netevent.Raw{URL: "https://stackoverflow.com/posts/5/vote/10", StatusCode: 409})
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(BeNil())
	})

	It("ignores unrelated URLs", func() {
		ev, err := netevent.Classify(netevent.Raw{URL: "https://stackoverflow.com/questions/1", StatusCode: 200})
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(BeNil())
	})

	DescribeTable("delete votes",
		func(url string, want int64) {
			ev, err := netevent.Classify(netevent.Raw{URL: url, StatusCode: 200})
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(Equal(eventbus.VoteCast{PostID: want}))
		},
		Entry("delete vote", "https://stackoverflow.com/posts/123/vote/10", int64(123)),
		Entry("recommend deletion", "https://stackoverflow.com/review/low-quality-posts/456/recommend-delete", int64(456)),
	)

	It("does not treat other vote types as deletion", func() {
		ev, err := netevent.Classify(netevent.Raw{URL: "https://stackoverflow.com/posts/123/vote/2", StatusCode: 200})
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(BeNil())
	})

	It("recognises flags raised through the page", func() {
		ev, err := netevent.Classify(netevent.Raw{URL: "https://stackoverflow.com/flags/posts/77/add/PostSpam", StatusCode: 200})
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(Equal(eventbus.FlagSubmitted{PostID: 77, ReportKind: model.ReportSpam}))
	})

	It("ignores flag kinds outside the catalog", func() {
		ev, err := netevent.Classify(netevent.Raw{URL: "https://stackoverflow.com/flags/posts/77/add/PostTooManyComments", StatusCode: 200})
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(BeNil())
	})

	It("extracts review timestamps", func() {
		ev, err := netevent.Classify(netevent.Raw{
			URL:        "https://stackoverflow.com/review/next-task/999",
			StatusCode: 200,
			Body:       reviewBody(42, reviewHTML),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(Equal(eventbus.ReviewTaskFetched{
			PostID:       42,
			OriginTime:   time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC),
			ResponseTime: time.Date(2024, 4, 30, 9, 30, 0, 0, time.UTC),
		}))
	})

	It("skips review items missing a timestamp", func() {
		ev, err := netevent.Classify(netevent.Raw{
			URL:        "https://stackoverflow.com/review/task-reviewed/1",
			StatusCode: 200,
			Body:       reviewBody(42, `<div class="user-info"></div>`),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(BeNil())
	})

	It("reports unparseable review bodies", func() {
		_, err := netevent.Classify(netevent.Raw{
			URL:        "https://stackoverflow.com/review/next-task",
			StatusCode: 200,
			Body:       "not json",
		})
		Expect(err).To(MatchError(netevent.ErrMalformed))
	})
})

var _ = Describe("ReviewTimes", func() {
	It("never uses the owner's timestamp as the response time", func() {
		content := `<div class="post-signature owner"><div class="user-info"><div class="user-action-time"><span title="2024-01-10 08:00:00Z"></span></div></div></div>`
		origin, response, err := netevent.ReviewTimes(content)
		Expect(err).NotTo(HaveOccurred())
		Expect(origin).NotTo(BeZero())
		Expect(response).To(BeZero())
	})
})
