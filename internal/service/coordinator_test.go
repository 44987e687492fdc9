package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/advflag/common/id"
	"basegraph.app/advflag/internal/catalog"
	"basegraph.app/advflag/internal/eligibility"
	"basegraph.app/advflag/internal/model"
	"basegraph.app/advflag/internal/service"
	"basegraph.app/advflag/internal/service/dispatch"
	"basegraph.app/advflag/internal/service/reporter"
	"basegraph.app/advflag/internal/settings"
)

var _ = Describe("CoordinatorService", func() {
	var (
		ctx        context.Context
		cat        *catalog.Catalog
		st         *settings.Settings
		natty      *mockNatty
		origin     *mockOrigin
		external   *mockExternal
		dispatcher *mockDispatcher
		params     service.CoordinatorParams
		svc        service.CoordinatorService

		question model.Post
		answer   model.Post
	)

	const siteURL = "https://stackoverflow.com"

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		cat = catalog.Default()
		st = settings.New(settings.NewMemoryStore(), cat.AllIDs())
		natty = newMockNatty()
		origin = newMockOrigin()
		external = newMockExternal()
		dispatcher = &mockDispatcher{}
		params = service.CoordinatorParams{
			Catalog:    cat,
			Settings:   st,
			Dispatcher: dispatcher,
			Policy:     eligibility.DefaultLowQualityPolicy(),
			IsMainSite: true,
			Natty:      natty,
			CopyPastor: origin,
			MetaSmoke:  external,
			GenericBot: mockTracker{},
		}
		svc = service.NewCoordinatorService(params, siteURL)

		now := time.Now().UTC()
		question = model.Post{ID: 100, Type: model.PostTypeQuestion, CreationDate: now.Add(-48 * time.Hour), AuthorReputation: 10}
		answer = model.Post{
			ID:                   200,
			Type:                 model.PostTypeAnswer,
			CreationDate:         now.Add(-time.Hour),
			QuestionCreationDate: now.Add(-48 * time.Hour),
			AuthorReputation:     1,
			AuthorName:           "newbie",
		}
	})

	Describe("Discover", func() {
		It("keeps the first snapshot of a post", func() {
			res, err := svc.Discover(ctx, []model.Post{answer})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Stored).To(Equal(1))

			changed := answer
			changed.Score = 99
			res, err = svc.Discover(ctx, []model.Post{changed})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Stored).To(BeZero())

			stored, ok := svc.Post(answer.ID)
			Expect(ok).To(BeTrue())
			Expect(stored.Score).To(BeZero())
		})

		It("fills the caches from every lookup and tolerates failures", func() {
			var seen []string
			origin.lookupFn = func(_ context.Context, urls []string) (map[int64]model.ExternalRecord, error) {
				seen = urls
				return map[int64]model.ExternalRecord{200: {ExternalID: 7, IsRepost: true, TargetURL: siteURL + "/a/1"}}, nil
			}
			external.lookupFn = func(context.Context, []string) (map[int64]model.ExternalRecord, error) {
				return nil, errors.New("metasmoke down")
			}

			res, err := svc.Discover(ctx, []model.Post{question, answer})
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(ConsistOf(siteURL+"/questions/100", siteURL+"/a/200"))
			Expect(res.Lookups).To(HaveKeyWithValue(reporter.CopyPastorName, 1))
			Expect(res.Lookups).To(HaveKeyWithValue(reporter.MetaSmokeName, 0))
			Expect(origin.Record(200).ExternalID).To(Equal(int64(7)))
		})

		It("starts watching answers", func() {
			_, err := svc.Discover(ctx, []model.Post{question, answer})
			Expect(err).NotTo(HaveOccurred())
			Expect(natty.watched).To(Equal([]int64{200}))
		})

		It("skips disabled services", func() {
			Expect(st.Put(ctx, settings.ReporterDisabledKey(reporter.CopyPastorName), true, 0)).To(Succeed())
			called := false
			origin.lookupFn = func(context.Context, []string) (map[int64]model.ExternalRecord, error) {
				called = true
				return nil, nil
			}
			res, err := svc.Discover(ctx, []model.Post{answer})
			Expect(err).NotTo(HaveOccurred())
			Expect(called).To(BeFalse())
			Expect(res.Lookups).NotTo(HaveKey(reporter.CopyPastorName))
		})

		It("rejects invalid posts", func() {
			_, err := svc.Discover(ctx, []model.Post{{ID: 1, Type: "Comment"}})
			Expect(err).To(MatchError(service.ErrInvalidPost))
		})
	})

	Describe("Options", func() {
		It("fails for unknown posts", func() {
			_, err := svc.Options(ctx, 1)
			Expect(err).To(MatchError(service.ErrPostNotFound))
		})

		It("lists reporters in contact order", func() {
			_, err := svc.Discover(ctx, []model.Post{question, answer})
			Expect(err).NotTo(HaveOccurred())

			opts, err := svc.Options(ctx, answer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.Reporters).To(Equal([]string{
				reporter.NattyName, reporter.GenericBotName, reporter.CopyPastorName, reporter.MetaSmokeName,
			}))

			opts, err = svc.Options(ctx, question.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.Reporters).To(Equal([]string{reporter.MetaSmokeName}))
		})

		It("carries the metasmoke id once known", func() {
			_, err := svc.Discover(ctx, []model.Post{question, answer})
			Expect(err).NotTo(HaveOccurred())
			external.cache.Put(answer.ID, model.ExternalRecord{ExternalID: 4242})

			opts, err := svc.Options(ctx, answer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.SmokeyID).To(Equal(int64(4242)))

			opts, err = svc.Options(ctx, question.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.SmokeyID).To(BeZero())
		})

		It("computes the checkbox defaults", func() {
			commented := answer
			commented.ID = 201
			commented.Comments = []string{"hello"}
			_, err := svc.Discover(ctx, []model.Post{answer, commented})
			Expect(err).NotTo(HaveOccurred())

			opts, err := svc.Options(ctx, answer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.DefaultComment).To(BeTrue())
			Expect(opts.DefaultFlag).To(BeTrue())
			Expect(opts.QualifiesLowQuality).To(BeTrue())

			opts, err = svc.Options(ctx, commented.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.DefaultComment).To(BeFalse())

			Expect(st.Put(ctx, settings.KeyDefaultNoFlag, true, 0)).To(Succeed())
			opts, err = svc.Options(ctx, answer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.DefaultFlag).To(BeFalse())
		})

		It("never defaults to commenting off the main site", func() {
			params.IsMainSite = false
			svc = service.NewCoordinatorService(params, siteURL)
			_, err := svc.Discover(ctx, []model.Post{answer})
			Expect(err).NotTo(HaveOccurred())

			opts, err := svc.Options(ctx, answer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.DefaultComment).To(BeFalse())
			Expect(opts.Reporters).To(Equal([]string{reporter.MetaSmokeName}))
		})

		It("renders comment previews for the author", func() {
			_, err := svc.Discover(ctx, []model.Post{answer})
			Expect(err).NotTo(HaveOccurred())

			opts, err := svc.Options(ctx, answer.ID)
			Expect(err).NotTo(HaveOccurred())
			var naa *service.FlagOption
			for _, c := range opts.Categories {
				for i := range c.FlagTypes {
					if c.FlagTypes[i].ID == 7 {
						naa = &c.FlagTypes[i]
					}
				}
			}
			Expect(naa).NotTo(BeNil())
			Expect(naa.Comment).To(HavePrefix("This does not provide an answer"))
		})

		It("offers origin flags only once a record is known", func() {
			_, err := svc.Discover(ctx, []model.Post{answer})
			Expect(err).NotTo(HaveOccurred())
			opts, err := svc.Options(ctx, answer.ID)
			Expect(err).NotTo(HaveOccurred())
			for _, c := range opts.Categories {
				Expect(c.Name).NotTo(Equal("Guttenberg mod-flags"))
			}

			origin.cache.Put(answer.ID, model.ExternalRecord{ExternalID: 3, IsRepost: true, TargetURL: siteURL + "/a/1"})
			opts, err = svc.Options(ctx, answer.ID)
			Expect(err).NotTo(HaveOccurred())
			var names []string
			for _, c := range opts.Categories {
				names = append(names, c.Name)
			}
			Expect(names).To(ContainElement("Guttenberg mod-flags"))
		})
	})

	Describe("Act", func() {
		BeforeEach(func() {
			_, err := svc.Discover(ctx, []model.Post{question, answer})
			Expect(err).NotTo(HaveOccurred())
		})

		It("fails for unknown posts and flag types", func() {
			_, err := svc.Act(ctx, 1, 7, dispatch.Options{})
			Expect(err).To(MatchError(service.ErrPostNotFound))

			_, err = svc.Act(ctx, answer.ID, 999, dispatch.Options{})
			Expect(err).To(MatchError(catalog.ErrFlagTypeNotFound))
		})

		It("refuses flag types that are not offered", func() {
			Expect(st.Put(ctx, settings.KeyEnabledFlags, []int{1}, 0)).To(Succeed())
			_, err := svc.Act(ctx, answer.ID, 7, dispatch.Options{Flag: true})
			Expect(err).To(MatchError(service.ErrFlagTypeNotOffered))

			_, err = svc.Act(ctx, question.ID, 7, dispatch.Options{Flag: true})
			Expect(err).To(MatchError(service.ErrFlagTypeNotOffered))
		})

		It("dispatches with the post's reporters and origin record", func() {
			origin.cache.Put(answer.ID, model.ExternalRecord{ExternalID: 3, TargetURL: siteURL + "/a/1"})
			dispatcher.executeFn = func(_ context.Context, req dispatch.Request) dispatch.Result {
				return dispatch.Result{Flagged: true, FlaggedAs: model.ReportNotAnAnswer}
			}

			res, err := svc.Act(ctx, answer.ID, 7, dispatch.Options{Flag: true, Comment: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ActionID).NotTo(BeZero())
			Expect(res.Flagged).To(BeTrue())

			Expect(dispatcher.requests).To(HaveLen(1))
			req := dispatcher.requests[0]
			Expect(req.FlagType.ID).To(Equal(7))
			Expect(req.Options).To(Equal(dispatch.Options{Flag: true, Comment: true}))
			Expect(req.Origin.ExternalID).To(Equal(int64(3)))

			var names []string
			for _, r := range req.Reporters {
				names = append(names, r.Name())
			}
			Expect(names).To(Equal([]string{
				reporter.NattyName, reporter.GenericBotName, reporter.CopyPastorName, reporter.MetaSmokeName,
			}))
			Expect(natty.dates[answer.ID].Reference).To(Equal(answer.QuestionCreationDate))
			Expect(natty.dates[answer.ID].Created).To(Equal(answer.CreationDate))

			opts, err := svc.Options(ctx, answer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.FlaggedAs).To(Equal(model.ReportNotAnAnswer))
		})

		It("leaves out reporters the user disabled", func() {
			Expect(st.Put(ctx, settings.ReporterDisabledKey(reporter.NattyName), true, 0)).To(Succeed())
			_, err := svc.Act(ctx, answer.ID, 7, dispatch.Options{})
			Expect(err).NotTo(HaveOccurred())

			var names []string
			for _, r := range dispatcher.requests[0].Reporters {
				names = append(names, r.Name())
			}
			Expect(names).NotTo(ContainElement(reporter.NattyName))
		})
	})
})
