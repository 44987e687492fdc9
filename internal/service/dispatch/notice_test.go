package dispatch_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/advflag/internal/service/dispatch"
)

var _ = Describe("SelfFlags", func() {
	var (
		now   time.Time
		flags *dispatch.SelfFlags
	)

	BeforeEach(func() {
		now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		flags = dispatch.NewSelfFlagsWithClock(time.Minute, func() time.Time { return now })
	})

	It("holds a mark within the window", func() {
		flags.Mark(1)
		now = now.Add(30 * time.Second)
		Expect(flags.Has(1)).To(BeTrue())
		Expect(flags.Has(2)).To(BeFalse())
	})

	It("lets marks lapse after the window", func() {
		flags.Mark(1)
		now = now.Add(2 * time.Minute)
		Expect(flags.Has(1)).To(BeFalse())
	})

	It("refreshes a mark when the post is flagged again", func() {
		flags.Mark(1)
		now = now.Add(50 * time.Second)
		flags.Mark(1)
		now = now.Add(50 * time.Second)
		Expect(flags.Has(1)).To(BeTrue())
	})

	It("forgets cleared marks", func() {
		flags.Mark(1)
		flags.Clear(1)
		Expect(flags.Has(1)).To(BeFalse())
	})
})
