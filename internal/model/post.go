package model

import (
	"fmt"
	"time"
)

type PostType string

const (
	PostTypeQuestion PostType = "Question"
	PostTypeAnswer   PostType = "Answer"
)

func (t PostType) Valid() bool {
	return t == PostTypeQuestion || t == PostTypeAnswer
}

// Post is the snapshot of a post taken when the page agent discovered it.
// It is never mutated once registered.
type Post struct {
	ID                   int64     `json:"id"`
	Type                 PostType  `json:"type"`
	Score                int       `json:"score"`
	CreationDate         time.Time `json:"creation_date"`
	QuestionCreationDate time.Time `json:"question_creation_date,omitempty"` // answers only
	AuthorReputation     int       `json:"author_reputation"`
	AuthorName           string    `json:"author_name"`
	Deleted              bool      `json:"deleted"`
	Comments             []string  `json:"comments,omitempty"`
}

// Path is the site-relative link the external services key their records by.
func (p Post) Path() string {
	if p.Type == PostTypeAnswer {
		return fmt.Sprintf("/a/%d", p.ID)
	}
	return fmt.Sprintf("/questions/%d", p.ID)
}

// ReferenceDates returns (question time, answer time) for answers and
// (creation time, zero) for questions.
func (p Post) ReferenceDates() (time.Time, time.Time) {
	if p.Type == PostTypeAnswer {
		return p.QuestionCreationDate, p.CreationDate
	}
	return p.CreationDate, time.Time{}
}
