package reporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"basegraph.app/advflag/common/httpclient"
	"basegraph.app/advflag/core/config"
	"basegraph.app/advflag/internal/model"
)

const (
	MetaSmokeName = "Smokey"

	metaSmokeReported     = "Post reported to Smokey"
	metaSmokeReportFailed = "Failed to report post to Smokey"
)

// TokenSource supplies the user's write token. "" means writes are disabled.
type TokenSource interface {
	MetaSmokeToken(ctx context.Context) string
}

type metaSmokeURLsResponse struct {
	Items []struct {
		ID   int64  `json:"id"`
		Link string `json:"link"`
	} `json:"items"`
}

// MetaSmoke is the spam detection service. It tracks both questions and answers.
type MetaSmoke struct {
	http    *httpclient.Client
	cache   *ExternalIDCache
	tokens  TokenSource
	baseURL string
	appKey  string
	filter  string
	siteURL string
}

func NewMetaSmoke(cfg config.MetaSmokeConfig, siteURL string, tokens TokenSource, hc *httpclient.Client) *MetaSmoke {
	return &MetaSmoke{
		http:    hc,
		cache:   NewExternalIDCache(),
		tokens:  tokens,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		appKey:  cfg.AppKey,
		filter:  cfg.Filter,
		siteURL: strings.TrimRight(siteURL, "/"),
	}
}

func (m *MetaSmoke) Name() string { return MetaSmokeName }

func (m *MetaSmoke) Cache() *ExternalIDCache { return m.cache }

func (m *MetaSmoke) LookupIDs(ctx context.Context, postURLs []string) (map[int64]model.ExternalRecord, error) {
	records := make(map[int64]model.ExternalRecord)
	if len(postURLs) == 0 {
		return records, nil
	}

	params := url.Values{
		"urls":     {strings.Join(postURLs, ",")},
		"key":      {m.appKey},
		"per_page": {"1000"},
		"filter":   {m.filter},
	}
	var resp metaSmokeURLsResponse
	if err := m.http.GetJSON(ctx, m.baseURL+"/api/v2.0/posts/urls?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("metasmoke lookup: %w", err)
	}
	for _, item := range resp.Items {
		postID := postIDFromURL(item.Link)
		if postID == 0 {
			continue
		}
		records[postID] = model.ExternalRecord{ExternalID: item.ID}
	}
	return records, nil
}

func (m *MetaSmoke) ForPost(post model.Post) Reporter {
	return &metaSmokeReporter{svc: m, post: post}
}

type metaSmokeReporter struct {
	svc  *MetaSmoke
	post model.Post
}

func (r *metaSmokeReporter) Kind() model.ReporterKind { return model.ReporterExternalID }
func (r *metaSmokeReporter) Name() string             { return MetaSmokeName }

func (r *metaSmokeReporter) SendFeedback(ctx context.Context, feedback string) (string, error) {
	if feedback == "" {
		return "", nil
	}
	token := r.svc.tokens.MetaSmokeToken(ctx)
	if token == "" {
		return "", nil
	}

	rec, _ := r.svc.cache.Get(r.post.ID)
	if rec.ExternalID == 0 {
		// unknown to metasmoke: a true positive on a live post is reported instead
		if feedback == "tpu-" && !r.post.Deleted {
			return r.report(ctx, token)
		}
		return "", nil
	}

	endpoint := fmt.Sprintf("%s/api/w/post/%d/feedback", r.svc.baseURL, rec.ExternalID)
	body, err := r.svc.http.PostForm(ctx, endpoint, url.Values{
		"type":  {feedback},
		"key":   {r.svc.appKey},
		"token": {token},
	})
	if err != nil {
		slog.ErrorContext(ctx, "metasmoke feedback failed", "smokey_id", rec.ExternalID, "body", string(body), "error", err)
		return "", failure(MetaSmokeName, feedback, err)
	}
	return sentMessage(feedback, MetaSmokeName), nil
}

func (r *metaSmokeReporter) report(ctx context.Context, token string) (string, error) {
	body, err := r.svc.http.PostForm(ctx, r.svc.baseURL+"/api/w/post/report", url.Values{
		"post_link": {r.svc.siteURL + r.post.Path()},
		"key":       {r.svc.appKey},
		"token":     {token},
	})
	if err == nil && string(body) != "OK" {
		err = errors.New("unexpected report response")
	}
	if err != nil {
		slog.ErrorContext(ctx, "metasmoke report failed", "post_id", r.post.ID, "body", string(body), "error", err)
		return "", &model.ReporterError{Reporter: MetaSmokeName, Message: metaSmokeReportFailed, Err: err}
	}
	return metaSmokeReported, nil
}

