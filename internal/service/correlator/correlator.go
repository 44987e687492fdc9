// Package correlator reacts to network events observed on the page: delete votes
// in review queues and flags raised outside the coordinator.
package correlator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"basegraph.app/advflag/common/logger"
	"basegraph.app/advflag/internal/catalog"
	"basegraph.app/advflag/internal/eventbus"
	"basegraph.app/advflag/internal/model"
	"basegraph.app/advflag/internal/service/reporter"
	"basegraph.app/advflag/internal/settings"
	"basegraph.app/advflag/internal/status"
)

// Fanout sends a flag type's feedback to reporters in order.
type Fanout interface {
	Feedback(ctx context.Context, ft model.FlagType, reporters []reporter.Reporter) ([]string, error)
}

// NattySource binds the age-heuristic service to an answer.
type NattySource interface {
	ForPost(answerID int64, dates status.Dates) reporter.Reporter
}

// Toggles reads boolean user settings.
type Toggles interface {
	Bool(ctx context.Context, key string) bool
}

type reviewTimes struct {
	origin   time.Time
	response time.Time
}

// Correlator remembers the timestamps of review items and, when a delete vote
// on one of them follows, sends not-an-answer feedback to the age heuristic.
// The age heuristic only covers answers on the main site.
type Correlator struct {
	catalog    *catalog.Catalog
	natty      NattySource
	fanout     Fanout
	toggles    Toggles
	isMainSite bool

	mu      sync.Mutex
	pending map[int64]reviewTimes
}

func NewCorrelator(c *catalog.Catalog, natty NattySource, fanout Fanout, toggles Toggles, isMainSite bool) *Correlator {
	return &Correlator{
		catalog:    c,
		natty:      natty,
		fanout:     fanout,
		toggles:    toggles,
		isMainSite: isMainSite,
		pending:    make(map[int64]reviewTimes),
	}
}

func (c *Correlator) ID() string { return "review-correlator" }

func (c *Correlator) Handles() []eventbus.EventType {
	return []eventbus.EventType{eventbus.EventReviewTaskFetched, eventbus.EventVoteCast}
}

func (c *Correlator) Handle(ctx context.Context, event eventbus.Event) error {
	if !c.active(ctx) {
		return nil
	}

	switch e := event.(type) {
	case eventbus.ReviewTaskFetched:
		c.remember(e)
		return nil
	case eventbus.VoteCast:
		return c.onVote(ctx, e)
	}
	return nil
}

func (c *Correlator) active(ctx context.Context) bool {
	if !c.isMainSite || !c.toggles.Bool(ctx, settings.KeyWatchQueues) {
		return false
	}
	return !c.toggles.Bool(ctx, settings.ReporterDisabledKey(reporter.NattyName))
}

func (c *Correlator) remember(e eventbus.ReviewTaskFetched) {
	c.mu.Lock()
	c.pending[e.PostID] = reviewTimes{origin: e.OriginTime, response: e.ResponseTime}
	c.mu.Unlock()
}

func (c *Correlator) take(postID int64) (reviewTimes, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.pending[postID]
	if ok {
		delete(c.pending, postID)
	}
	return t, ok
}

// Pending is the number of review items waiting for a vote.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) onVote(ctx context.Context, e eventbus.VoteCast) error {
	times, ok := c.take(e.PostID)
	if !ok {
		return nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		PostID:    logger.Ptr(e.PostID),
		EventKind: logger.Ptr(string(e.Type())),
		Component: "advflag.correlator",
	})

	ft, err := c.catalog.NotAnAnswer()
	if err != nil {
		return fmt.Errorf("resolving not-an-answer type: %w", err)
	}

	nattyReporter := c.natty.ForPost(e.PostID, status.Dates{Reference: times.origin, Created: times.response})
	msgs, err := c.fanout.Feedback(ctx, ft, []reporter.Reporter{nattyReporter})
	if err != nil {
		return fmt.Errorf("review vote feedback: %w", err)
	}

	slog.InfoContext(ctx, "review vote correlated", "messages", len(msgs))
	return nil
}
