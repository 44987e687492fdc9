package eventbus_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/advflag/internal/eventbus"
	"basegraph.app/advflag/internal/model"
)

var _ = Describe("Bus", func() {
	var (
		bus   *eventbus.Bus
		calls []string
		ctx   context.Context
	)

	record := func(name string, types ...eventbus.EventType) eventbus.HandlerFunc {
		return eventbus.HandlerFunc{
			Name:  name,
			Types: types,
			Fn: func(_ context.Context, e eventbus.Event) error {
				calls = append(calls, name)
				return nil
			},
		}
	}

	BeforeEach(func() {
		bus = eventbus.New()
		calls = nil
		ctx = context.Background()
	})

	It("delivers only to handlers of the event type, in registration order", func() {
		bus.Register(record("flags", eventbus.EventFlagSubmitted))
		bus.Register(record("votes-a", eventbus.EventVoteCast))
		bus.Register(record("both", eventbus.EventVoteCast, eventbus.EventFlagSubmitted))
		bus.Register(record("votes-b", eventbus.EventVoteCast))

		Expect(bus.Publish(ctx, eventbus.VoteCast{PostID: 1})).To(Succeed())
		Expect(calls).To(Equal([]string{"votes-a", "both", "votes-b"}))
	})

	It("keeps going after a handler fails", func() {
		bus.Register(eventbus.HandlerFunc{
			Name:  "broken",
			Types: []eventbus.EventType{eventbus.EventFlagSubmitted},
			Fn: func(context.Context, eventbus.Event) error {
				calls = append(calls, "broken")
				return errors.New("boom")
			},
		})
		bus.Register(record("after", eventbus.EventFlagSubmitted))

		err := bus.Publish(ctx, eventbus.FlagSubmitted{PostID: 2, ReportKind: model.ReportSpam})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal([]string{"broken", "after"}))
	})

	It("passes the concrete event through", func() {
		var got eventbus.Event
		bus.Register(eventbus.HandlerFunc{
			Name:  "capture",
			Types: []eventbus.EventType{eventbus.EventFlagSubmitted},
			Fn: func(_ context.Context, e eventbus.Event) error {
				got = e
				return nil
			},
		})

		Expect(bus.Publish(ctx, eventbus.FlagSubmitted{PostID: 3, ReportKind: model.ReportOffensive})).To(Succeed())
		flag, ok := got.(eventbus.FlagSubmitted)
		Expect(ok).To(BeTrue())
		Expect(flag.ReportKind).To(Equal(model.ReportOffensive))
		Expect(got.Post()).To(Equal(int64(3)))
	})

	It("rejects nil events", func() {
		Expect(bus.Publish(ctx, nil)).To(HaveOccurred())
	})

	It("stops when the context is cancelled", func() {
		bus.Register(record("never", eventbus.EventVoteCast))
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		Expect(bus.Publish(cancelled, eventbus.VoteCast{PostID: 1})).To(MatchError(context.Canceled))
		Expect(calls).To(BeEmpty())
	})

	It("lists registered handlers", func() {
		bus.Register(record("a", eventbus.EventVoteCast))
		Expect(bus.Handlers()).To(HaveLen(1))
		Expect(bus.Handlers()[0].ID()).To(Equal("a"))
	})
})
