package reporter_test

import (
	"context"
	"errors"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/advflag/common/httpclient"
	"basegraph.app/advflag/core/config"
	"basegraph.app/advflag/internal/model"
	"basegraph.app/advflag/internal/service/reporter"
)

var _ = Describe("ExternalIDCache", func() {
	It("never overwrites an entry", func() {
		cache := reporter.NewExternalIDCache()
		Expect(cache.Put(1, model.ExternalRecord{ExternalID: 10})).To(BeTrue())
		Expect(cache.Put(1, model.ExternalRecord{ExternalID: 20})).To(BeFalse())

		rec, ok := cache.Get(1)
		Expect(ok).To(BeTrue())
		Expect(rec.ExternalID).To(Equal(int64(10)))

		added := cache.Fill(map[int64]model.ExternalRecord{1: {ExternalID: 30}, 2: {ExternalID: 40}})
		Expect(added).To(Equal(1))
		Expect(cache.Len()).To(Equal(2))
	})
})

var _ = Describe("CopyPastor", func() {
	var (
		ctx context.Context
		api *apiMock
		cp  *reporter.CopyPastor
	)

	BeforeEach(func() {
		ctx = context.Background()
		api = newAPIMock()
		cp = reporter.NewCopyPastor(config.CopyPastorConfig{ServerURL: api.server.URL, Key: "k"}, "alice", "https://chat.stackoverflow.com/users/5", httpclient.New())
	})

	AfterEach(func() {
		api.close()
	})

	It("looks up records keyed by the checked post", func() {
		api.on("/posts/findTarget", http.StatusOK, `{"status":"success","posts":[
			{"post_id":"901","target_url":"https://stackoverflow.com/a/11","original_url":"https://stackoverflow.com/a/22","repost":true},
			{"post_id":"bad","target_url":"x","original_url":"https://stackoverflow.com/a/23","repost":false}
		]}`)

		records, err := cp.LookupIDs(ctx, []string{"https://stackoverflow.com/a/22", "https://stackoverflow.com/a/23"})
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[22]).To(Equal(model.ExternalRecord{ExternalID: 901, IsRepost: true, TargetURL: "https://stackoverflow.com/a/11"}))

		call := api.calls("/posts/findTarget")[0]
		Expect(strings.Split(call.query.Get("url"), ",")).To(HaveLen(2))
	})

	It("fails the lookup on a failure status", func() {
		api.on("/posts/findTarget", http.StatusOK, `{"status":"failure","message":"bad key"}`)
		_, err := cp.LookupIDs(ctx, []string{"https://stackoverflow.com/a/1"})
		Expect(err).To(MatchError(ContainSubstring("bad key")))
	})

	It("sends feedback for known posts", func() {
		api.on("/feedback/create", http.StatusOK, "")
		cp.Cache().Put(22, model.ExternalRecord{ExternalID: 901})

		msg, err := cp.ForPost(22).SendFeedback(ctx, "tp")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).To(Equal("Feedback tp sent to Guttenberg"))

		form := api.calls("/feedback/create")[0].form
		Expect(form.Get("post_id")).To(Equal("901"))
		Expect(form.Get("feedback_type")).To(Equal("tp"))
		Expect(form.Get("username")).To(Equal("alice"))
		Expect(form.Get("link")).To(Equal("https://chat.stackoverflow.com/users/5"))
		Expect(form.Get("key")).To(Equal("k"))
	})

	It("is a no-op for unknown posts", func() {
		msg, err := cp.ForPost(99).SendFeedback(ctx, "tp")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).To(BeEmpty())
		Expect(api.calls("/feedback/create")).To(BeEmpty())
	})

	It("reports rejected feedback", func() {
		api.on("/feedback/create", http.StatusForbidden, "nope")
		cp.Cache().Put(22, model.ExternalRecord{ExternalID: 901})

		_, err := cp.ForPost(22).SendFeedback(ctx, "fp")
		var rerr *model.ReporterError
		Expect(errors.As(err, &rerr)).To(BeTrue())
		Expect(rerr.Error()).To(Equal("Failed to send feedback fp to Guttenberg"))
	})

	It("exposes eligibility signals", func() {
		cp.Cache().Put(22, model.ExternalRecord{ExternalID: 901, IsRepost: true})
		Expect(cp.Signals(22)).To(Equal(model.Signals{IsRepost: true, ExternalID: 901}))
		Expect(cp.Signals(1)).To(Equal(model.Signals{}))
	})
})

var _ = Describe("MetaSmoke", func() {
	var (
		ctx    context.Context
		api    *apiMock
		tokens *mockTokens
		ms     *reporter.MetaSmoke
		answer model.Post
	)

	BeforeEach(func() {
		ctx = context.Background()
		api = newAPIMock()
		tokens = &mockTokens{token: "tok"}
		ms = reporter.NewMetaSmoke(config.MetaSmokeConfig{BaseURL: api.server.URL, AppKey: "app", Filter: "f"}, "https://stackoverflow.com", tokens, httpclient.New())
		answer = model.Post{ID: 55, Type: model.PostTypeAnswer}
	})

	AfterEach(func() {
		api.close()
	})

	It("maps looked-up links to post ids", func() {
		api.on("/api/v2.0/posts/urls", http.StatusOK, `{"items":[{"id":300,"link":"//stackoverflow.com/a/55"},{"id":301,"link":"//stackoverflow.com/questions/56"}]}`)

		records, err := ms.LookupIDs(ctx, []string{"//stackoverflow.com/a/55", "//stackoverflow.com/questions/56"})
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveKeyWithValue(int64(55), model.ExternalRecord{ExternalID: 300}))
		Expect(records).To(HaveKeyWithValue(int64(56), model.ExternalRecord{ExternalID: 301}))

		q := api.calls("/api/v2.0/posts/urls")[0].query
		Expect(q.Get("key")).To(Equal("app"))
		Expect(q.Get("per_page")).To(Equal("1000"))
		Expect(q.Get("filter")).To(Equal("f"))
	})

	It("sends feedback for known posts", func() {
		api.on("/api/w/post/300/feedback", http.StatusOK, `{}`)
		ms.Cache().Put(55, model.ExternalRecord{ExternalID: 300})

		msg, err := ms.ForPost(answer).SendFeedback(ctx, "naa-")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).To(Equal("Feedback naa- sent to Smokey"))
		form := api.calls("/api/w/post/300/feedback")[0].form
		Expect(form.Get("type")).To(Equal("naa-"))
		Expect(form.Get("token")).To(Equal("tok"))
	})

	It("reports unknown live posts on tpu-", func() {
		api.on("/api/w/post/report", http.StatusOK, "OK")

		msg, err := ms.ForPost(answer).SendFeedback(ctx, "tpu-")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).To(Equal("Post reported to Smokey"))
		Expect(api.calls("/api/w/post/report")[0].form.Get("post_link")).To(Equal("https://stackoverflow.com/a/55"))
	})

	It("does not report deleted posts", func() {
		answer.Deleted = true
		msg, err := ms.ForPost(answer).SendFeedback(ctx, "tpu-")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).To(BeEmpty())
		Expect(api.calls("/api/w/post/report")).To(BeEmpty())
	})

	It("fails when the report is not acknowledged", func() {
		api.on("/api/w/post/report", http.StatusOK, "Duplicate")
		_, err := ms.ForPost(answer).SendFeedback(ctx, "tpu-")
		Expect(err).To(MatchError("Failed to report post to Smokey"))
	})

	It("is a no-op without a token", func() {
		tokens.token = ""
		ms.Cache().Put(55, model.ExternalRecord{ExternalID: 300})
		msg, err := ms.ForPost(answer).SendFeedback(ctx, "fp-")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).To(BeEmpty())
		Expect(api.calls("/api/w/post/300/feedback")).To(BeEmpty())
	})

	It("is a no-op for unknown posts on other feedback", func() {
		msg, err := ms.ForPost(answer).SendFeedback(ctx, "fp-")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).To(BeEmpty())
	})
})

var _ = Describe("GenericBot", func() {
	It("tracks posts and ignores other feedback", func() {
		api := newAPIMock()
		defer api.close()
		api.on("/api/trackpost.php", http.StatusOK, "")
		bot := reporter.NewGenericBot(config.GenericBotConfig{URL: api.server.URL + "/api/trackpost.php"}, "alice", httpclient.New())

		msg, err := bot.ForPost(8).SendFeedback(context.Background(), "track")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).To(Equal("Post tracked with Generic Bot"))
		form := api.calls("/api/trackpost.php")[0].form
		Expect(form.Get("action")).To(Equal("track"))
		Expect(form.Get("post_id")).To(Equal("8"))
		Expect(form.Get("username")).To(Equal("alice"))

		msg, err = bot.ForPost(8).SendFeedback(context.Background(), "fp")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).To(BeEmpty())
		Expect(api.calls("/api/trackpost.php")).To(HaveLen(1))
	})
})
