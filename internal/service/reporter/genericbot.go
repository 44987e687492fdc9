package reporter

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"basegraph.app/advflag/common/httpclient"
	"basegraph.app/advflag/core/config"
	"basegraph.app/advflag/internal/model"
)

const (
	GenericBotName = "Generic Bot"

	genericBotTracked = "Post tracked with Generic Bot"
	genericBotFailed  = "Server refused to track the post"
)

// GenericBot only understands "track".
type GenericBot struct {
	http     *httpclient.Client
	url      string
	username string
}

func NewGenericBot(cfg config.GenericBotConfig, username string, hc *httpclient.Client) *GenericBot {
	return &GenericBot{http: hc, url: cfg.URL, username: username}
}

func (g *GenericBot) ForPost(postID int64) Reporter {
	return &genericBotReporter{svc: g, postID: postID}
}

type genericBotReporter struct {
	svc    *GenericBot
	postID int64
}

func (r *genericBotReporter) Kind() model.ReporterKind { return model.ReporterGeneric }
func (r *genericBotReporter) Name() string             { return GenericBotName }

func (r *genericBotReporter) SendFeedback(ctx context.Context, feedback string) (string, error) {
	if feedback != "track" {
		return "", nil
	}
	_, err := r.svc.http.PostForm(ctx, r.svc.url, url.Values{
		"action":   {"track"},
		"post_id":  {strconv.FormatInt(r.postID, 10)},
		"username": {r.svc.username},
	})
	if err != nil {
		slog.ErrorContext(ctx, "generic bot tracking failed", "post_id", r.postID, "error", err)
		return "", &model.ReporterError{Reporter: GenericBotName, Message: genericBotFailed, Err: err}
	}
	return genericBotTracked, nil
}
