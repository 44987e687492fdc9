package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/advflag/common/logger"
	"basegraph.app/advflag/internal/model"
)

const DefaultAttempts = 3

type State int

const (
	StateUnresolved State = iota
	StateProbing
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateProbing:
		return "probing"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ProbeFunc asks the external service whether the post was already reported.
// Returning backoff.Permanent(err) stops the retry loop early.
type ProbeFunc func(ctx context.Context) (bool, error)

// Snapshot is a point-in-time view of a cell.
type Snapshot struct {
	State    State
	Attempt  int
	Reported bool
	Err      error
}

// Cell holds the prior-report status of one post at one service. It moves
// Unresolved -> Probing -> Resolved|Failed and never goes back.
type Cell struct {
	name     string
	probe    ProbeFunc
	attempts int

	mu       sync.Mutex
	state    State
	attempt  int
	reported bool
	err      error
	done     chan struct{}

	// serializes ReportNew so a cell produces at most one new report
	reportMu sync.Mutex
}

func NewCell(name string, probe ProbeFunc, attempts int) *Cell {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	return &Cell{
		name:     name,
		probe:    probe,
		attempts: attempts,
		done:     make(chan struct{}),
	}
}

// Watch starts the probe on first call and returns a handle to its result.
// Later calls return a handle to the same result without probing again.
func (c *Cell) Watch(ctx context.Context) *Future {
	c.mu.Lock()
	if c.state == StateUnresolved {
		c.state = StateProbing
		go c.run(context.WithoutCancel(ctx))
	}
	c.mu.Unlock()
	return &Future{cell: c}
}

func (c *Cell) run(ctx context.Context) {
	sc := logger.StartSpan(ctx, "status.probe", attribute.String("status.cell", c.name))
	defer sc.End()
	ctx = sc.Context()

	var reported bool
	op := func() error {
		c.mu.Lock()
		c.attempt++
		attempt := c.attempt
		c.mu.Unlock()

		r, err := c.probe(ctx)
		if err != nil {
			slog.WarnContext(ctx, "status probe attempt failed",
				"cell", c.name, "attempt", attempt, "max_attempts", c.attempts, "error", err)
			return err
		}
		reported = r
		return nil
	}

	policy := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(c.attempts-1))
	err := backoff.Retry(op, backoff.WithContext(policy, ctx))

	c.mu.Lock()
	if err != nil {
		c.state = StateFailed
		c.err = &model.TransientNetworkError{Op: "probing " + c.name, Err: err}
		sc.RecordError(err)
	} else {
		c.state = StateResolved
		c.reported = reported
	}
	close(c.done)
	c.mu.Unlock()

	slog.DebugContext(ctx, "status probe finished", "cell", c.name, "state", c.State().State.String())
}

func (c *Cell) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Attempt: c.attempt, Reported: c.reported, Err: c.err}
}

// Future is a subscriber handle. Every Future of a cell observes the same value.
type Future struct {
	cell *Cell
}

// Await blocks until the cell is terminal or ctx is done.
func (f *Future) Await(ctx context.Context) (bool, error) {
	select {
	case <-f.cell.done:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	f.cell.mu.Lock()
	defer f.cell.mu.Unlock()
	return f.cell.reported, f.cell.err
}

// Done is closed once the cell is terminal.
func (f *Future) Done() <-chan struct{} {
	return f.cell.done
}

type Outcome int

const (
	OutcomeNotEligible Outcome = iota
	OutcomeReaffirmed
	OutcomeReported
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReaffirmed:
		return "reaffirmed"
	case OutcomeReported:
		return "reported"
	default:
		return "not_eligible"
	}
}

// Channel is the service's messaging side: Reaffirm confirms an existing
// report, Report submits a new one.
type Channel struct {
	Reaffirm func(ctx context.Context) error
	Report   func(ctx context.Context) error
}

// Dates are the reference event time (question creation) and the item's own
// creation time.
type Dates struct {
	Reference time.Time
	Created   time.Time
}

// Window bounds when a new report is accepted: the item must be at most MaxAge
// old and created at least MinAfterReference after the reference event.
type Window struct {
	MaxAge            time.Duration
	MinAfterReference time.Duration
}

func (w Window) validate(d Dates) error {
	if d.Reference.IsZero() {
		return &model.ValidationError{Field: "reference date", Reason: "missing"}
	}
	if d.Created.IsZero() {
		return &model.ValidationError{Field: "creation date", Reason: "missing"}
	}
	if d.Created.Before(d.Reference) {
		return &model.ValidationError{Field: "creation date", Reason: "must not precede the reference date"}
	}
	return nil
}

func (w Window) contains(d Dates, now time.Time) bool {
	if now.Sub(d.Created) > w.MaxAge {
		return false
	}
	return d.Created.Sub(d.Reference) >= w.MinAfterReference
}

// ReportNew reaffirms an existing report or, when none exists and the dates fall
// inside the window, submits a new one. A cell submits at most one new report.
func (c *Cell) ReportNew(ctx context.Context, ch Channel, dates Dates, window Window, now time.Time) (Outcome, error) {
	if _, err := c.Watch(ctx).Await(ctx); err != nil {
		return OutcomeNotEligible, err
	}

	c.reportMu.Lock()
	defer c.reportMu.Unlock()

	c.mu.Lock()
	reported := c.reported
	c.mu.Unlock()

	if reported {
		if err := ch.Reaffirm(ctx); err != nil {
			return OutcomeNotEligible, fmt.Errorf("reaffirming report: %w", err)
		}
		return OutcomeReaffirmed, nil
	}

	if err := window.validate(dates); err != nil {
		return OutcomeNotEligible, err
	}
	if !window.contains(dates, now) {
		return OutcomeNotEligible, nil
	}

	if err := ch.Report(ctx); err != nil {
		return OutcomeNotEligible, fmt.Errorf("submitting report: %w", err)
	}

	c.mu.Lock()
	c.reported = true
	c.mu.Unlock()
	return OutcomeReported, nil
}

// IsValidation reports whether err came from date validation.
func IsValidation(err error) bool {
	var ve *model.ValidationError
	return errors.As(err, &ve)
}
