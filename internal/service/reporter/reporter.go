package reporter

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"basegraph.app/advflag/internal/model"
)

// Reporter is one external moderation service, bound to one post.
//
// SendFeedback returns the message to show on success. An empty message with a
// nil error means the service had nothing to do. Rejections are returned as
// *model.ReporterError.
type Reporter interface {
	Kind() model.ReporterKind
	Name() string
	SendFeedback(ctx context.Context, feedback string) (string, error)
}

// Lookup fetches a service's records for many posts at once.
type Lookup interface {
	Name() string
	LookupIDs(ctx context.Context, postURLs []string) (map[int64]model.ExternalRecord, error)
}

// ChatSender is the chat transport used by chat-driven services.
type ChatSender interface {
	SendMessage(ctx context.Context, roomID int, text string) error
}

func sentMessage(feedback, name string) string {
	return fmt.Sprintf("Feedback %s sent to %s", feedback, name)
}

func failure(name, feedback string, err error) error {
	return &model.ReporterError{
		Reporter: name,
		Message:  fmt.Sprintf("Failed to send feedback %s to %s", feedback, name),
		Err:      err,
	}
}

var trailingID = regexp.MustCompile(`(\d+)/?$`)

// postIDFromURL extracts the post id a service keys its records by.
func postIDFromURL(link string) int64 {
	m := trailingID.FindStringSubmatch(link)
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}
