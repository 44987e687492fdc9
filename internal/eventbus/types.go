package eventbus

import (
	"time"

	"basegraph.app/advflag/internal/model"
)

// EventType identifies an event flowing through the bus.
type EventType string

const (
	EventReviewTaskFetched EventType = "review_task_fetched"
	EventVoteCast          EventType = "vote_cast"
	EventFlagSubmitted     EventType = "flag_submitted"
)

// Event is one typed observation of the page's network traffic.
type Event interface {
	Type() EventType
	Post() int64
}

// ReviewTaskFetched carries the timestamps of a review item: when its question
// was asked (origin) and when the reviewed answer was posted (response).
type ReviewTaskFetched struct {
	PostID       int64
	OriginTime   time.Time
	ResponseTime time.Time
}

func (e ReviewTaskFetched) Type() EventType { return EventReviewTaskFetched }
func (e ReviewTaskFetched) Post() int64     { return e.PostID }

// VoteCast is a delete or recommend-deletion vote.
type VoteCast struct {
	PostID int64
}

func (e VoteCast) Type() EventType { return EventVoteCast }
func (e VoteCast) Post() int64     { return e.PostID }

// FlagSubmitted is a flag raised through the platform's own UI.
type FlagSubmitted struct {
	PostID     int64
	ReportKind model.ReportKind
}

func (e FlagSubmitted) Type() EventType { return EventFlagSubmitted }
func (e FlagSubmitted) Post() int64     { return e.PostID }
