package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/advflag/common/httpclient"
	"basegraph.app/advflag/core/config"
	"basegraph.app/advflag/internal/model"
	"basegraph.app/advflag/internal/status"
)

const (
	NattyName = "Natty"

	FeedbackNotAnAnswer = "naa"
)

type nattyReport struct {
	Items []json.RawMessage `json:"items"`
}

// Natty watches for late answers that are not answers. It learns about prior
// reports by probing its feedback API and talks through chat.
type Natty struct {
	http        *httpclient.Client
	chat        ChatSender
	statuses    *status.Registry
	feedbackURL string
	siteURL     string
	roomID      int
	window      status.Window
	now         func() time.Time
}

type NattyParams struct {
	Config   config.NattyConfig
	Policy   config.PolicyConfig
	SiteURL  string
	RoomID   int
	HTTP     *httpclient.Client
	Chat     ChatSender
	Statuses *status.Registry
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewNatty(p NattyParams) *Natty {
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Natty{
		http:        p.HTTP,
		chat:        p.Chat,
		statuses:    p.Statuses,
		feedbackURL: strings.TrimRight(p.Config.FeedbackURL, "/"),
		siteURL:     strings.TrimRight(p.SiteURL, "/"),
		roomID:      p.RoomID,
		window: status.Window{
			MaxAge:            p.Policy.NattyMaxAnswerAge,
			MinAfterReference: p.Policy.NattyMinAfterQ,
		},
		now: p.Now,
	}
}

// Cell returns the report status cell of an answer.
func (n *Natty) Cell(answerID int64) *status.Cell {
	return n.statuses.Cell(answerID, model.ReporterAge, n.probe(answerID))
}

// Watch starts probing an answer's report status in the background.
func (n *Natty) Watch(ctx context.Context, answerID int64) *status.Future {
	return n.Cell(answerID).Watch(ctx)
}

func (n *Natty) probe(answerID int64) status.ProbeFunc {
	return func(ctx context.Context) (bool, error) {
		var report nattyReport
		if err := n.http.GetJSON(ctx, fmt.Sprintf("%s/%d", n.feedbackURL, answerID), &report); err != nil {
			return false, fmt.Errorf("failed to retrieve natty report: %w", err)
		}
		return len(report.Items) > 0 && string(report.Items[0]) != "null", nil
	}
}

// ForPost binds the service to an answer. dates are the question and answer
// creation times used for the report window.
func (n *Natty) ForPost(answerID int64, dates status.Dates) Reporter {
	return &nattyReporter{svc: n, answerID: answerID, dates: dates}
}

func (n *Natty) answerURL(answerID int64) string {
	return fmt.Sprintf("%s/a/%d", n.siteURL, answerID)
}

func (n *Natty) say(text string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return n.chat.SendMessage(ctx, n.roomID, text)
	}
}

type nattyReporter struct {
	svc      *Natty
	answerID int64
	dates    status.Dates
}

func (r *nattyReporter) Kind() model.ReporterKind { return model.ReporterAge }
func (r *nattyReporter) Name() string             { return NattyName }

func (r *nattyReporter) SendFeedback(ctx context.Context, feedback string) (string, error) {
	if feedback == "" {
		return "", nil
	}
	cell := r.svc.Cell(r.answerID)
	link := r.svc.answerURL(r.answerID)

	// naa may create a new report; every other kind only adds to an existing one
	if feedback == FeedbackNotAnAnswer {
		feedback = "tp"
		outcome, err := cell.ReportNew(ctx, status.Channel{
			Reaffirm: r.svc.say(fmt.Sprintf("@Natty feedback %s tp", link)),
			Report:   r.svc.say(fmt.Sprintf("@Natty report %s", link)),
		}, r.dates, r.svc.window, r.svc.now())
		if err != nil {
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				return "", &model.ReporterError{Reporter: NattyName, Message: ve.Error(), Err: err}
			}
			slog.ErrorContext(ctx, "natty report failed", "answer_id", r.answerID, "error", err)
			return "", failure(NattyName, feedback, err)
		}
		if outcome == status.OutcomeNotEligible {
			return "", nil
		}
		return sentMessage(feedback, NattyName), nil
	}

	reported, err := cell.Watch(ctx).Await(ctx)
	if err != nil {
		return "", failure(NattyName, feedback, err)
	}
	if !reported {
		return "", nil
	}
	if err := r.svc.say(fmt.Sprintf("@Natty feedback %s %s", link, feedback))(ctx); err != nil {
		slog.ErrorContext(ctx, "natty feedback failed", "answer_id", r.answerID, "error", err)
		return "", failure(NattyName, feedback, err)
	}
	return sentMessage(feedback, NattyName), nil
}
