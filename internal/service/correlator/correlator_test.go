package correlator_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/advflag/internal/catalog"
	"basegraph.app/advflag/internal/eventbus"
	"basegraph.app/advflag/internal/model"
	"basegraph.app/advflag/internal/service/correlator"
	"basegraph.app/advflag/internal/service/dispatch"
	"basegraph.app/advflag/internal/service/reporter"
	"basegraph.app/advflag/internal/settings"
)

var _ = Describe("Correlator", func() {
	var (
		ctx    context.Context
		fanout *mockFanout
		c      *correlator.Correlator
		bus    *eventbus.Bus
		origin time.Time
		answer time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		fanout = &mockFanout{}
		c = correlator.NewCorrelator(catalog.Default(), mockNatty{}, fanout, toggles{settings.KeyWatchQueues: true}, true)
		bus = eventbus.New()
		bus.Register(c)
		origin = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		answer = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	})

	It("does nothing for a vote without a prior review item", func() {
		Expect(bus.Publish(ctx, eventbus.VoteCast{PostID: 5})).To(Succeed())
		Expect(fanout.calls).To(BeEmpty())
	})

	It("sends not-an-answer feedback with the buffered dates", func() {
		Expect(bus.Publish(ctx, eventbus.ReviewTaskFetched{PostID: 5, OriginTime: origin, ResponseTime: answer})).To(Succeed())
		Expect(c.Pending()).To(Equal(1))
		Expect(bus.Publish(ctx, eventbus.VoteCast{PostID: 5})).To(Succeed())

		Expect(fanout.calls).To(HaveLen(1))
		call := fanout.calls[0]
		Expect(call.flagType.ReportKind).To(Equal(model.ReportNotAnAnswer))
		Expect(call.reporters).To(HaveLen(1))
		natty := call.reporters[0].(*stubReporter)
		Expect(natty.answerID).To(Equal(int64(5)))
		Expect(natty.dates.Reference).To(Equal(origin))
		Expect(natty.dates.Created).To(Equal(answer))
	})

	It("keeps only the latest review item per post", func() {
		later := answer.Add(time.Hour)
		Expect(bus.Publish(ctx, eventbus.ReviewTaskFetched{PostID: 5, OriginTime: origin, ResponseTime: answer})).To(Succeed())
		Expect(bus.Publish(ctx, eventbus.ReviewTaskFetched{PostID: 5, OriginTime: origin, ResponseTime: later})).To(Succeed())
		Expect(bus.Publish(ctx, eventbus.VoteCast{PostID: 5})).To(Succeed())

		Expect(fanout.calls[0].reporters[0].(*stubReporter).dates.Created).To(Equal(later))
	})

	It("consumes the entry so a second vote does nothing", func() {
		Expect(bus.Publish(ctx, eventbus.ReviewTaskFetched{PostID: 5, OriginTime: origin, ResponseTime: answer})).To(Succeed())
		Expect(bus.Publish(ctx, eventbus.VoteCast{PostID: 5})).To(Succeed())
		Expect(bus.Publish(ctx, eventbus.VoteCast{PostID: 5})).To(Succeed())

		Expect(fanout.calls).To(HaveLen(1))
		Expect(c.Pending()).To(BeZero())
	})

	It("never matches a vote against a review item that arrives afterwards", func() {
		Expect(bus.Publish(ctx, eventbus.VoteCast{PostID: 5})).To(Succeed())
		Expect(bus.Publish(ctx, eventbus.ReviewTaskFetched{PostID: 5, OriginTime: origin, ResponseTime: answer})).To(Succeed())

		Expect(fanout.calls).To(BeEmpty())
		Expect(c.Pending()).To(Equal(1))
	})

	It("is inert when queue watching is off", func() {
		off := correlator.NewCorrelator(catalog.Default(), mockNatty{}, fanout, toggles{}, true)
		Expect(off.Handle(ctx, eventbus.ReviewTaskFetched{PostID: 5, OriginTime: origin, ResponseTime: answer})).To(Succeed())
		Expect(off.Handle(ctx, eventbus.VoteCast{PostID: 5})).To(Succeed())
		Expect(off.Pending()).To(BeZero())
		Expect(fanout.calls).To(BeEmpty())
	})

	It("stays out of review queues on other sites", func() {
		other := correlator.NewCorrelator(catalog.Default(), mockNatty{}, fanout, toggles{settings.KeyWatchQueues: true}, false)
		Expect(other.Handle(ctx, eventbus.ReviewTaskFetched{PostID: 5, OriginTime: origin, ResponseTime: answer})).To(Succeed())
		Expect(other.Handle(ctx, eventbus.VoteCast{PostID: 5})).To(Succeed())
		Expect(other.Pending()).To(BeZero())
		Expect(fanout.calls).To(BeEmpty())
	})

	It("sends nothing when natty is disabled", func() {
		nattyOff := settings.ReporterDisabledKey(reporter.NattyName)
		disabled := correlator.NewCorrelator(catalog.Default(), mockNatty{}, fanout, toggles{settings.KeyWatchQueues: true, nattyOff: true}, true)
		Expect(disabled.Handle(ctx, eventbus.ReviewTaskFetched{PostID: 5, OriginTime: origin, ResponseTime: answer})).To(Succeed())
		Expect(disabled.Handle(ctx, eventbus.VoteCast{PostID: 5})).To(Succeed())
		Expect(fanout.calls).To(BeEmpty())
	})

	It("returns fan-out failures", func() {
		fanout.err = errors.New("natty down")
		Expect(c.Handle(ctx, eventbus.ReviewTaskFetched{PostID: 5, OriginTime: origin, ResponseTime: answer})).To(Succeed())
		Expect(c.Handle(ctx, eventbus.VoteCast{PostID: 5})).To(MatchError(ContainSubstring("natty down")))
	})
})

var _ = Describe("FlagWatcher", func() {
	var (
		ctx       context.Context
		fanout    *mockFanout
		dir       *mockDirectory
		selfFlags *dispatch.SelfFlags
		notifier  *mockNotifier
		watcher   *correlator.FlagWatcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		fanout = &mockFanout{}
		dir = newDirectory(model.Post{ID: 9, Type: model.PostTypeAnswer})
		selfFlags = dispatch.NewSelfFlags()
		notifier = &mockNotifier{}
		watcher = correlator.NewFlagWatcher(correlator.WatcherParams{
			Catalog:   catalog.Default(),
			Directory: dir,
			SelfFlags: selfFlags,
			Fanout:    fanout,
			Toggles:   toggles{settings.KeyWatchFlags: true},
			Notifier:  notifier,
		})
	})

	It("reconciles a flag raised through the page", func() {
		Expect(watcher.Handle(ctx, eventbus.FlagSubmitted{PostID: 9, ReportKind: model.ReportSpam})).To(Succeed())

		Expect(dir.recorded).To(HaveKeyWithValue(int64(9), model.ReportSpam))
		Expect(notifier.notices).To(ContainElement(dispatch.Notice{Level: dispatch.LevelSuccess, Message: "Flagged as spam"}))
		Expect(fanout.calls).To(HaveLen(1))
		Expect(fanout.calls[0].flagType.ID).To(Equal(1))
		Expect(fanout.calls[0].reporters).To(HaveLen(1))
	})

	It("uses the first catalog type of the kind", func() {
		Expect(watcher.Handle(ctx, eventbus.FlagSubmitted{PostID: 9, ReportKind: model.ReportLowQuality})).To(Succeed())
		Expect(fanout.calls[0].flagType.ID).To(Equal(6))
	})

	It("ignores the echo of its own flag", func() {
		selfFlags.Mark(9)
		Expect(watcher.Handle(ctx, eventbus.FlagSubmitted{PostID: 9, ReportKind: model.ReportSpam})).To(Succeed())
		Expect(fanout.calls).To(BeEmpty())
		Expect(dir.recorded).To(BeEmpty())
	})

	It("reconciles later flags once its own mark has lapsed", func() {
		at := time.Now()
		lapsing := dispatch.NewSelfFlagsWithClock(time.Minute, func() time.Time { return at })
		w := correlator.NewFlagWatcher(correlator.WatcherParams{
			Catalog:   catalog.Default(),
			Directory: dir,
			SelfFlags: lapsing,
			Fanout:    fanout,
			Toggles:   toggles{settings.KeyWatchFlags: true},
			Notifier:  notifier,
		})
		lapsing.Mark(9)
		at = at.Add(5 * time.Minute)

		Expect(w.Handle(ctx, eventbus.FlagSubmitted{PostID: 9, ReportKind: model.ReportSpam})).To(Succeed())
		Expect(fanout.calls).To(HaveLen(1))
	})

	It("ignores posts that were never discovered", func() {
		Expect(watcher.Handle(ctx, eventbus.FlagSubmitted{PostID: 10, ReportKind: model.ReportSpam})).To(Succeed())
		Expect(fanout.calls).To(BeEmpty())
	})

	It("is inert when flag watching is off", func() {
		off := correlator.NewFlagWatcher(correlator.WatcherParams{
			Catalog:   catalog.Default(),
			Directory: dir,
			SelfFlags: selfFlags,
			Fanout:    fanout,
			Toggles:   toggles{},
		})
		Expect(off.Handle(ctx, eventbus.FlagSubmitted{PostID: 9, ReportKind: model.ReportSpam})).To(Succeed())
		Expect(fanout.calls).To(BeEmpty())
	})
})
