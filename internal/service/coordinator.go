package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"basegraph.app/advflag/common/id"
	"basegraph.app/advflag/common/logger"
	"basegraph.app/advflag/internal/catalog"
	"basegraph.app/advflag/internal/eligibility"
	"basegraph.app/advflag/internal/model"
	"basegraph.app/advflag/internal/service/dispatch"
	"basegraph.app/advflag/internal/service/reporter"
	"basegraph.app/advflag/internal/settings"
	"basegraph.app/advflag/internal/status"
)

var (
	ErrPostNotFound       = errors.New("post not found")
	ErrFlagTypeNotOffered = errors.New("flag type not offered for post")
	ErrInvalidPost        = errors.New("invalid post")
)

// NattyService is the age-heuristic reporter.
type NattyService interface {
	Watch(ctx context.Context, answerID int64) *status.Future
	ForPost(answerID int64, dates status.Dates) reporter.Reporter
}

// OriginService is the content-origin reporter.
type OriginService interface {
	reporter.Lookup
	Cache() *reporter.ExternalIDCache
	Record(postID int64) model.ExternalRecord
	Signals(postID int64) model.Signals
	ForPost(postID int64) reporter.Reporter
}

// ExternalIDService is the spam-detection reporter.
type ExternalIDService interface {
	reporter.Lookup
	Cache() *reporter.ExternalIDCache
	ForPost(post model.Post) reporter.Reporter
}

// TrackerService is the generic automation reporter.
type TrackerService interface {
	ForPost(postID int64) reporter.Reporter
}

// Dispatcher runs one decided action.
type Dispatcher interface {
	Execute(ctx context.Context, req dispatch.Request) dispatch.Result
}

type FlagOption struct {
	ID          int              `json:"id"`
	Name        string           `json:"name"`
	ReportKind  model.ReportKind `json:"report_kind"`
	Comment     string           `json:"comment,omitempty"`
	HasFlagText bool             `json:"has_flag_text"`
}

type CategoryOptions struct {
	Name      string       `json:"name"`
	Dangerous bool         `json:"dangerous"`
	FlagTypes []FlagOption `json:"flag_types"`
}

// PostOptions is everything the page agent needs to render the action menu.
type PostOptions struct {
	Post                model.Post        `json:"post"`
	Categories          []CategoryOptions `json:"categories"`
	DefaultComment      bool              `json:"default_comment"`
	DefaultFlag         bool              `json:"default_flag"`
	QualifiesLowQuality bool              `json:"qualifies_low_quality"`
	FlaggedAs           model.ReportKind  `json:"flagged_as,omitempty"`
	Reporters           []string          `json:"reporters"`
	LinkDisabled        bool              `json:"link_disabled"`
	SmokeyID            int64             `json:"smokey_id,omitempty"`
}

type DiscoverResult struct {
	Stored  int            `json:"stored"`
	Lookups map[string]int `json:"lookups"`
}

type ActionResult struct {
	ActionID int64
	dispatch.Result
}

type CoordinatorService interface {
	Discover(ctx context.Context, posts []model.Post) (*DiscoverResult, error)
	Options(ctx context.Context, postID int64) (*PostOptions, error)
	Act(ctx context.Context, postID int64, flagTypeID int, opts dispatch.Options) (*ActionResult, error)

	Post(postID int64) (model.Post, bool)
	Reporters(ctx context.Context, post model.Post) []reporter.Reporter
	RecordFlag(postID int64, kind model.ReportKind)
}

type CoordinatorParams struct {
	Catalog    *catalog.Catalog
	Settings   *settings.Settings
	Dispatcher Dispatcher
	Policy     eligibility.LowQualityPolicy
	IsMainSite bool

	// Any of the services may be nil when not configured.
	Natty      NattyService
	CopyPastor OriginService
	MetaSmoke  ExternalIDService
	GenericBot TrackerService
}

type coordinator struct {
	catalog    *catalog.Catalog
	settings   *settings.Settings
	dispatcher Dispatcher
	policy     eligibility.LowQualityPolicy
	isMainSite bool
	natty      NattyService
	copyPastor OriginService
	metaSmoke  ExternalIDService
	genericBot TrackerService
	directory  *postDirectory
	siteURL    string
	now        func() time.Time
}

func NewCoordinatorService(p CoordinatorParams, siteURL string) CoordinatorService {
	return &coordinator{
		catalog:    p.Catalog,
		settings:   p.Settings,
		dispatcher: p.Dispatcher,
		policy:     p.Policy,
		isMainSite: p.IsMainSite,
		natty:      p.Natty,
		copyPastor: p.CopyPastor,
		metaSmoke:  p.MetaSmoke,
		genericBot: p.GenericBot,
		directory:  newPostDirectory(),
		siteURL:    siteURL,
		now:        time.Now,
	}
}

func (c *coordinator) Discover(ctx context.Context, posts []model.Post) (*DiscoverResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "advflag.coordinator"})

	for _, p := range posts {
		if p.ID <= 0 || !p.Type.Valid() {
			return nil, fmt.Errorf("%w: id=%d type=%q", ErrInvalidPost, p.ID, p.Type)
		}
	}

	res := &DiscoverResult{Lookups: make(map[string]int)}
	var urls []string
	var answers []int64
	for _, p := range posts {
		if c.directory.put(p) {
			res.Stored++
		}
		urls = append(urls, c.siteURL+p.Path())
		if p.Type == model.PostTypeAnswer {
			answers = append(answers, p.ID)
		}
	}

	type lookupTarget struct {
		svc   reporter.Lookup
		cache *reporter.ExternalIDCache
	}
	var targets []lookupTarget
	if c.copyPastor != nil && c.isMainSite && c.reporterEnabled(ctx, c.copyPastor.Name()) {
		targets = append(targets, lookupTarget{svc: c.copyPastor, cache: c.copyPastor.Cache()})
	}
	if c.metaSmoke != nil && c.reporterEnabled(ctx, c.metaSmoke.Name()) {
		targets = append(targets, lookupTarget{svc: c.metaSmoke, cache: c.metaSmoke.Cache()})
	}

	counts := make([]int, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			records, err := t.svc.LookupIDs(ctx, urls)
			if err != nil {
				slog.WarnContext(ctx, "batch lookup failed", "reporter", t.svc.Name(), "posts", len(urls), "error", err)
				return nil
			}
			counts[i] = t.cache.Fill(records)
			return nil
		})
	}
	_ = g.Wait()
	for i, t := range targets {
		res.Lookups[t.svc.Name()] = counts[i]
	}

	if c.natty != nil && c.isMainSite && c.reporterEnabled(ctx, reporter.NattyName) {
		for _, answerID := range answers {
			c.natty.Watch(ctx, answerID)
		}
	}

	slog.InfoContext(ctx, "posts discovered", "received", len(posts), "stored", res.Stored, "lookups", res.Lookups)
	return res, nil
}

func (c *coordinator) Options(ctx context.Context, postID int64) (*PostOptions, error) {
	post, ok := c.directory.get(postID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPostNotFound, postID)
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{PostID: logger.Ptr(postID), Component: "advflag.coordinator"})

	choices := eligibility.Evaluate(post, c.catalog, c.settings.EnabledFlags(ctx), c.signalSource(post))

	opts := &PostOptions{
		Post:                post,
		DefaultComment:      !c.settings.Bool(ctx, settings.KeyDefaultNoComment) && len(post.Comments) == 0 && c.isMainSite,
		DefaultFlag:         !c.settings.Bool(ctx, settings.KeyDefaultNoFlag),
		QualifiesLowQuality: c.policy.Qualifies(post, c.now()),
		FlaggedAs:           c.directory.flaggedAs(postID),
		LinkDisabled:        c.settings.Bool(ctx, settings.KeyLinkDisabled),
	}
	for _, r := range c.Reporters(ctx, post) {
		opts.Reporters = append(opts.Reporters, r.Name())
	}
	if c.metaSmoke != nil {
		if rec, ok := c.metaSmoke.Cache().Get(postID); ok {
			opts.SmokeyID = rec.ExternalID
		}
	}

	for _, ch := range choices {
		cat := CategoryOptions{Name: ch.Category.Name, Dangerous: ch.Category.IsDangerous}
		for _, ft := range ch.FlagTypes {
			comment, err := eligibility.CommentFor(c.catalog, ft, post)
			if err != nil {
				slog.WarnContext(ctx, "comment preview failed", "flag_type_id", ft.ID, "error", err)
			}
			cat.FlagTypes = append(cat.FlagTypes, FlagOption{
				ID:          ft.ID,
				Name:        ft.DisplayName,
				ReportKind:  ft.ReportKind,
				Comment:     comment,
				HasFlagText: ft.FlagText != "",
			})
		}
		opts.Categories = append(opts.Categories, cat)
	}

	return opts, nil
}

func (c *coordinator) Act(ctx context.Context, postID int64, flagTypeID int, opts dispatch.Options) (*ActionResult, error) {
	post, ok := c.directory.get(postID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPostNotFound, postID)
	}
	ft, err := c.catalog.Find(flagTypeID)
	if err != nil {
		return nil, err
	}
	if !c.offered(ctx, post, ft.ID) {
		return nil, fmt.Errorf("%w: flag type %d, post %d", ErrFlagTypeNotOffered, ft.ID, postID)
	}

	actionID := id.New()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ActionID:   logger.Ptr(actionID),
		PostID:     logger.Ptr(postID),
		FlagTypeID: logger.Ptr(ft.ID),
		Component:  "advflag.coordinator",
	})
	sc := logger.StartSpan(ctx, "coordinator.act",
		attribute.Int64("action.id", actionID),
		attribute.Int64("post.id", postID),
		attribute.Int("flag_type.id", ft.ID))
	defer sc.End()
	ctx = sc.Context()

	req := dispatch.Request{
		Post:      post,
		FlagType:  ft,
		Options:   opts,
		Reporters: c.Reporters(ctx, post),
	}
	if c.copyPastor != nil {
		req.Origin = c.copyPastor.Record(postID)
	}

	res := c.dispatcher.Execute(ctx, req)
	if res.Flagged {
		c.directory.recordFlag(postID, res.FlaggedAs)
	}
	if res.FeedbackError != nil {
		sc.RecordError(res.FeedbackError)
	}

	return &ActionResult{ActionID: actionID, Result: res}, nil
}

func (c *coordinator) offered(ctx context.Context, post model.Post, flagTypeID int) bool {
	for _, ch := range eligibility.Evaluate(post, c.catalog, c.settings.EnabledFlags(ctx), c.signalSource(post)) {
		for _, ft := range ch.FlagTypes {
			if ft.ID == flagTypeID {
				return true
			}
		}
	}
	return false
}

func (c *coordinator) signalSource(post model.Post) eligibility.SignalSource {
	if c.copyPastor == nil {
		return nil
	}
	signals := c.copyPastor.Signals(post.ID)
	return func(model.FlagType) model.Signals { return signals }
}

func (c *coordinator) Post(postID int64) (model.Post, bool) {
	return c.directory.get(postID)
}

func (c *coordinator) RecordFlag(postID int64, kind model.ReportKind) {
	c.directory.recordFlag(postID, kind)
}

// Reporters returns the services that take feedback for post, in the order they
// are contacted.
func (c *coordinator) Reporters(ctx context.Context, post model.Post) []reporter.Reporter {
	var out []reporter.Reporter
	if post.Type == model.PostTypeAnswer && c.isMainSite {
		if c.natty != nil && c.reporterEnabled(ctx, reporter.NattyName) {
			question, answer := post.ReferenceDates()
			out = append(out, c.natty.ForPost(post.ID, status.Dates{Reference: question, Created: answer}))
		}
		if c.genericBot != nil && c.reporterEnabled(ctx, reporter.GenericBotName) {
			out = append(out, c.genericBot.ForPost(post.ID))
		}
		if c.copyPastor != nil && c.reporterEnabled(ctx, c.copyPastor.Name()) {
			out = append(out, c.copyPastor.ForPost(post.ID))
		}
	}
	if c.metaSmoke != nil && c.reporterEnabled(ctx, c.metaSmoke.Name()) {
		out = append(out, c.metaSmoke.ForPost(post))
	}
	return out
}

func (c *coordinator) reporterEnabled(ctx context.Context, name string) bool {
	return !c.settings.ReporterDisabled(ctx, name)
}
