package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"basegraph.app/advflag/common/httpclient"
	"basegraph.app/advflag/core/config"
	"basegraph.app/advflag/internal/model"
)

var (
	alreadyFlaggedRe = regexp.MustCompile(`already flagged`)
	limitReachedRe   = regexp.MustCompile(`limit reached`)
	rateLimitedRe    = regexp.MustCompile(`You may only flag a post every \d+ seconds?`)
)

// Client talks to the host Q&A site on behalf of the signed-in user.
type Client struct {
	http    *httpclient.Client
	siteURL string
	fkey    string
}

func NewClient(cfg config.PlatformConfig, hc *httpclient.Client) *Client {
	return &Client{
		http:    hc,
		siteURL: strings.TrimRight(cfg.SiteURL, "/"),
		fkey:    cfg.FKey,
	}
}

func (c *Client) SiteURL() string {
	return c.siteURL
}

// Comment posts text under the post and returns the refreshed comment markup.
func (c *Client) Comment(ctx context.Context, postID int64, text string) (string, error) {
	endpoint := fmt.Sprintf("%s/posts/%d/comments", c.siteURL, postID)
	body, err := c.http.PostForm(ctx, endpoint, url.Values{
		"fkey":    {c.fkey},
		"comment": {text},
	})
	if err != nil {
		return "", classifyTransport(ctx, "commenting", err)
	}
	return string(body), nil
}

// Flag submits a flag of the given kind. A response that decodes but reports
// Success=false is returned together with a *model.LogicalFailure.
func (c *Client) Flag(ctx context.Context, postID int64, kind model.ReportKind, otherText string) (*model.FlagResponse, error) {
	endpoint := fmt.Sprintf("%s/flags/posts/%d/add/%s", c.siteURL, postID, kind)
	body, err := c.http.PostForm(ctx, endpoint, url.Values{
		"fkey":      {c.fkey},
		"otherText": {otherText},
	})
	if err != nil {
		return nil, classifyTransport(ctx, "flagging", err)
	}

	var resp model.FlagResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		slog.ErrorContext(ctx, "undecodable flag response", "post_id", postID, "body", string(body), "error", err)
		return nil, fmt.Errorf("decoding flag response: %w", err)
	}

	// ResultChangedState is informational only.
	slog.DebugContext(ctx, "flag response",
		"post_id", postID,
		"kind", kind,
		"success", resp.Success,
		"outcome", resp.Outcome,
		"result_changed_state", resp.ResultChangedState)

	if !resp.Success {
		slog.WarnContext(ctx, "flag not applied",
			"post_id", postID,
			"detail", fmt.Sprintf("Failed to flag the post with outcome %d: %s.", resp.Outcome, resp.Message))
		return &resp, ClassifyFailure(&resp)
	}
	return &resp, nil
}

// ClassifyFailure maps a failed flag response to one of the known failure kinds.
func ClassifyFailure(resp *model.FlagResponse) *model.LogicalFailure {
	switch {
	case alreadyFlaggedRe.MatchString(resp.Message):
		return &model.LogicalFailure{Kind: model.FailureAlreadyFlagged, Message: resp.Message}
	case limitReachedRe.MatchString(resp.Message):
		return &model.LogicalFailure{Kind: model.FailureLimitReached, Message: resp.Message}
	}
	serialized, err := json.Marshal(resp)
	if err == nil && rateLimitedRe.Match(serialized) {
		return &model.LogicalFailure{Kind: model.FailureRateLimited, Message: resp.Message}
	}
	return &model.LogicalFailure{Kind: model.FailureOther, Message: resp.Message}
}

// ChatClient sends messages to a chat room. It stands in for the external chat
// transport.
type ChatClient struct {
	http    *httpclient.Client
	baseURL string
	fkey    string
	userID  int64
}

func NewChatClient(cfg config.ChatConfig, hc *httpclient.Client) *ChatClient {
	return &ChatClient{
		http:    hc,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fkey:    cfg.FKey,
		userID:  cfg.UserID,
	}
}

func (c *ChatClient) SendMessage(ctx context.Context, roomID int, text string) error {
	endpoint := c.baseURL + "/chats/" + strconv.Itoa(roomID) + "/messages/new"
	if _, err := c.http.PostForm(ctx, endpoint, url.Values{
		"text": {text},
		"fkey": {c.fkey},
	}); err != nil {
		return classifyTransport(ctx, "sending chat message", err)
	}
	slog.InfoContext(ctx, "chat message sent", "room_id", roomID, "text", text)
	return nil
}

// UserLink is the chat profile of the signed-in user.
func (c *ChatClient) UserLink() string {
	return fmt.Sprintf("%s/users/%d", c.baseURL, c.userID)
}

func classifyTransport(ctx context.Context, op string, err error) error {
	var transport *httpclient.TransportError
	if errors.As(err, &transport) {
		return &model.TransientNetworkError{Op: op, Err: err}
	}
	var status *httpclient.StatusError
	if errors.As(err, &status) {
		slog.WarnContext(ctx, "unexpected response", "op", op, "status", status.StatusCode, "body", status.Body)
	}
	return fmt.Errorf("%s: %w", op, err)
}
