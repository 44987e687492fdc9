// Package netevent turns raw network events forwarded by the page agent into
// typed bus events.
package netevent

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"basegraph.app/advflag/internal/eventbus"
	"basegraph.app/advflag/internal/model"
)

var ErrMalformed = errors.New("malformed network event")

var (
	reviewItemRe = regexp.MustCompile(`/review/(next-task|task-reviewed)`)
	deleteVoteRe = regexp.MustCompile(`/posts/(\d+)/vote/10|/(\d+)/recommend-delete`)
	flagRe       = regexp.MustCompile(`/flags/posts/(\d+)/add/(\w+)`)
)

// Raw is a completed request observed by the page agent.
type Raw struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

type reviewResponse struct {
	PostID  int64  `json:"postId"`
	Content string `json:"content"`
}

// Classify maps a raw event to a bus event. It returns nil, nil for events that
// carry nothing of interest.
func Classify(raw Raw) (eventbus.Event, error) {
	if raw.StatusCode != 200 {
		return nil, nil
	}

	path := raw.URL
	if u, err := url.Parse(raw.URL); err == nil && u.Path != "" {
		path = u.Path
	}

	if reviewItemRe.MatchString(path) {
		return classifyReview(raw.Body)
	}

	if m := deleteVoteRe.FindStringSubmatch(path); m != nil {
		idStr := m[1]
		if idStr == "" {
			idStr = m[2]
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: vote post id %q: %w", ErrMalformed, idStr, err)
		}
		return eventbus.VoteCast{PostID: id}, nil
	}

	if m := flagRe.FindStringSubmatch(path); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: flag post id %q: %w", ErrMalformed, m[1], err)
		}
		kind := model.ReportKind(m[2])
		if !kind.Valid() || kind == model.ReportNoFlag {
			return nil, nil
		}
		return eventbus.FlagSubmitted{PostID: id, ReportKind: kind}, nil
	}

	return nil, nil
}

func classifyReview(body string) (eventbus.Event, error) {
	var review reviewResponse
	if err := json.Unmarshal([]byte(body), &review); err != nil {
		return nil, fmt.Errorf("%w: review body: %w", ErrMalformed, err)
	}
	if review.PostID == 0 {
		return nil, nil
	}

	origin, response, err := ReviewTimes(review.Content)
	if err != nil {
		return nil, err
	}
	if origin.IsZero() || response.IsZero() {
		return nil, nil
	}

	return eventbus.ReviewTaskFetched{
		PostID:       review.PostID,
		OriginTime:   origin,
		ResponseTime: response,
	}, nil
}
