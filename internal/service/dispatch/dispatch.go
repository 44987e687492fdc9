package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/advflag/common"
	"basegraph.app/advflag/common/logger"
	"basegraph.app/advflag/internal/catalog"
	"basegraph.app/advflag/internal/eligibility"
	"basegraph.app/advflag/internal/model"
	"basegraph.app/advflag/internal/service/reporter"
)

// Platform is the host site: comments and flags.
type Platform interface {
	Comment(ctx context.Context, postID int64, text string) (string, error)
	Flag(ctx context.Context, postID int64, kind model.ReportKind, otherText string) (*model.FlagResponse, error)
}

type Options struct {
	Comment bool `json:"comment"`
	Flag    bool `json:"flag"`
}

type Request struct {
	Post      model.Post
	FlagType  model.FlagType
	Options   Options
	Reporters []reporter.Reporter
	// Origin is the content origin record used for custom flag text.
	Origin model.ExternalRecord
}

type Result struct {
	Notices []Notice

	Commented     bool
	CommentMarkup string
	// MatchingComments are indexes of existing comments equal to the canned
	// comment that was not posted; the page agent upvotes them instead.
	MatchingComments []int

	Flagged     bool
	FlaggedAs   model.ReportKind
	FlagFailure *model.LogicalFailure

	FeedbackMessages []string
	FeedbackError    error
}

// Performed reports whether every reporter accepted the feedback.
func (r Result) Performed() bool {
	return r.FeedbackError == nil
}

type Dispatcher struct {
	platform  Platform
	catalog   *catalog.Catalog
	policy    eligibility.LowQualityPolicy
	selfFlags *SelfFlags
	notifier  Notifier
	now       func() time.Time
}

type Params struct {
	Platform  Platform
	Catalog   *catalog.Catalog
	Policy    eligibility.LowQualityPolicy
	SelfFlags *SelfFlags
	Notifier  Notifier
}

func New(p Params) *Dispatcher {
	if p.Notifier == nil {
		p.Notifier = LogNotifier()
	}
	if p.SelfFlags == nil {
		p.SelfFlags = NewSelfFlags()
	}
	return &Dispatcher{
		platform:  p.Platform,
		catalog:   p.Catalog,
		policy:    p.Policy,
		selfFlags: p.SelfFlags,
		notifier:  p.Notifier,
		now:       time.Now,
	}
}

func (d *Dispatcher) SelfFlags() *SelfFlags {
	return d.selfFlags
}

// Execute runs comment, flag and feedback for one decision. A failing comment
// does not stop the flag, and neither stops the feedback.
func (d *Dispatcher) Execute(ctx context.Context, req Request) Result {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		PostID:     logger.Ptr(req.Post.ID),
		FlagTypeID: logger.Ptr(req.FlagType.ID),
		Component:  "advflag.dispatch",
	})
	sc := logger.StartSpan(ctx, "dispatch.execute",
		attribute.Int64("post.id", req.Post.ID),
		attribute.Int("flag_type.id", req.FlagType.ID))
	defer sc.End()
	ctx = sc.Context()

	res := &Result{}

	if !req.Post.Deleted {
		d.comment(ctx, req, res)
		if req.Options.Flag && req.FlagType.ReportKind != model.ReportNoFlag {
			d.flag(ctx, req, res)
		}
	}

	msgs, err := d.feedback(ctx, req.FlagType, req.Reporters, res)
	res.FeedbackMessages = msgs
	res.FeedbackError = err
	if err != nil {
		sc.RecordError(err)
	}

	slog.InfoContext(ctx, "action dispatched",
		"flag_type", req.FlagType.DisplayName,
		"commented", res.Commented,
		"flagged", res.Flagged,
		"feedback_sent", len(msgs),
		"performed", res.Performed())
	return *res
}

func (d *Dispatcher) comment(ctx context.Context, req Request, res *Result) {
	text, err := eligibility.CommentFor(d.catalog, req.FlagType, req.Post)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render comment", "error", err)
		d.notify(ctx, res, LevelError, "Failed to comment on post")
		return
	}
	if text == "" {
		return
	}

	if !req.Options.Comment {
		stripped := common.StripMarkdown(text)
		for i, existing := range req.Post.Comments {
			if existing == stripped {
				res.MatchingComments = append(res.MatchingComments, i)
			}
		}
		return
	}

	markup, err := d.platform.Comment(ctx, req.Post.ID, text)
	if err != nil {
		slog.ErrorContext(ctx, "failed to comment on post", "error", err)
		d.notify(ctx, res, LevelError, "Failed to comment on post")
		return
	}
	res.Commented = true
	res.CommentMarkup = markup
}

func (d *Dispatcher) flag(ctx context.Context, req Request, res *Result) {
	kind := d.policy.ResolveReportKind(req.FlagType.ReportKind, req.Post, d.now())

	var otherText string
	if req.FlagType.ReportKind == model.ReportOther {
		text, err := eligibility.FlagTextFor(d.catalog, req.FlagType, req.Origin)
		if err != nil {
			slog.ErrorContext(ctx, "failed to render flag text", "error", err)
		}
		otherText = text
	}

	d.selfFlags.Mark(req.Post.ID)
	_, err := d.platform.Flag(ctx, req.Post.ID, kind, otherText)
	if err != nil {
		d.selfFlags.Clear(req.Post.ID)
		var failure *model.LogicalFailure
		if errors.As(err, &failure) {
			res.FlagFailure = failure
			d.notify(ctx, res, LevelError, failure.Error())
			return
		}
		slog.ErrorContext(ctx, "failed to flag post", "kind", kind, "error", err)
		d.notify(ctx, res, LevelError, "Failed to flag post")
		return
	}

	res.Flagged = true
	res.FlaggedAs = kind
	d.notify(ctx, res, LevelSuccess, FlaggedMessage(kind))
}

// FlaggedMessage is the success text for a flag of the given kind.
func FlaggedMessage(kind model.ReportKind) string {
	return "Flagged " + kind.Human()
}

// Feedback sends the flag type's feedback to each reporter in order. It stops at
// the first failure; messages from reporters that already succeeded are kept.
func (d *Dispatcher) Feedback(ctx context.Context, ft model.FlagType, reporters []reporter.Reporter) ([]string, error) {
	return d.feedback(ctx, ft, reporters, &Result{})
}

func (d *Dispatcher) feedback(ctx context.Context, ft model.FlagType, reporters []reporter.Reporter, res *Result) ([]string, error) {
	var msgs []string
	for _, r := range reporters {
		rctx := logger.WithLogFields(ctx, logger.LogFields{Reporter: r.Name()})
		msg, err := r.SendFeedback(rctx, ft.Feedback(r.Kind()))
		if err != nil {
			if model.IsSilent(err) {
				continue
			}
			slog.WarnContext(rctx, "feedback failed", "error", err)
			d.notify(rctx, res, LevelError, userMessage(err))
			return msgs, fmt.Errorf("feedback to %s: %w", r.Name(), err)
		}
		if msg == "" {
			continue
		}
		msgs = append(msgs, msg)
		d.notify(rctx, res, LevelSuccess, msg)
	}
	return msgs, nil
}

func userMessage(err error) string {
	var rerr *model.ReporterError
	if errors.As(err, &rerr) {
		return rerr.Message
	}
	return err.Error()
}

func (d *Dispatcher) notify(ctx context.Context, res *Result, level Level, message string) {
	n := Notice{Level: level, Message: message}
	res.Notices = append(res.Notices, n)
	d.notifier.Notify(ctx, n)
}
