package reporter

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"basegraph.app/advflag/common/httpclient"
	"basegraph.app/advflag/core/config"
	"basegraph.app/advflag/internal/model"
)

const CopyPastorName = "Guttenberg"

type findTargetResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Posts   []struct {
		PostID      string `json:"post_id"`
		TargetURL   string `json:"target_url"`
		OriginalURL string `json:"original_url"`
		Repost      bool   `json:"repost"`
	} `json:"posts"`
}

// CopyPastor knows which answers were copied from elsewhere and from where.
type CopyPastor struct {
	http      *httpclient.Client
	cache     *ExternalIDCache
	serverURL string
	key       string
	username  string
	chatLink  string
}

func NewCopyPastor(cfg config.CopyPastorConfig, username, chatLink string, hc *httpclient.Client) *CopyPastor {
	return &CopyPastor{
		http:      hc,
		cache:     NewExternalIDCache(),
		serverURL: strings.TrimRight(cfg.ServerURL, "/"),
		key:       cfg.Key,
		username:  username,
		chatLink:  chatLink,
	}
}

func (c *CopyPastor) Name() string { return CopyPastorName }

func (c *CopyPastor) Cache() *ExternalIDCache { return c.cache }

// Record returns what is known about a post, or a zero record.
func (c *CopyPastor) Record(postID int64) model.ExternalRecord {
	rec, _ := c.cache.Get(postID)
	return rec
}

// Signals exposes the record in the form eligibility rules consume.
func (c *CopyPastor) Signals(postID int64) model.Signals {
	rec := c.Record(postID)
	return model.Signals{IsRepost: rec.IsRepost, ExternalID: rec.ExternalID}
}

func (c *CopyPastor) LookupIDs(ctx context.Context, postURLs []string) (map[int64]model.ExternalRecord, error) {
	records := make(map[int64]model.ExternalRecord)
	if len(postURLs) == 0 {
		return records, nil
	}

	endpoint := c.serverURL + "/posts/findTarget?" + url.Values{"url": {strings.Join(postURLs, ",")}}.Encode()
	var resp findTargetResponse
	if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("copypastor lookup: %w", err)
	}
	if resp.Status == "failure" {
		return nil, fmt.Errorf("copypastor lookup: %s", resp.Message)
	}

	for _, p := range resp.Posts {
		externalID, err := strconv.ParseInt(p.PostID, 10, 64)
		if err != nil {
			slog.WarnContext(ctx, "skipping copypastor record with bad id", "post_id", p.PostID)
			continue
		}
		postID := postIDFromURL(p.OriginalURL)
		if postID == 0 {
			continue
		}
		records[postID] = model.ExternalRecord{
			ExternalID: externalID,
			IsRepost:   p.Repost,
			TargetURL:  p.TargetURL,
		}
	}
	return records, nil
}

func (c *CopyPastor) ForPost(postID int64) Reporter {
	return &copyPastorReporter{svc: c, postID: postID}
}

type copyPastorReporter struct {
	svc    *CopyPastor
	postID int64
}

func (r *copyPastorReporter) Kind() model.ReporterKind { return model.ReporterOrigin }
func (r *copyPastorReporter) Name() string             { return CopyPastorName }

func (r *copyPastorReporter) SendFeedback(ctx context.Context, feedback string) (string, error) {
	rec, ok := r.svc.cache.Get(r.postID)
	if feedback == "" || !ok || rec.ExternalID == 0 {
		return "", nil
	}

	_, err := r.svc.http.PostForm(ctx, r.svc.serverURL+"/feedback/create", url.Values{
		"post_id":       {strconv.FormatInt(rec.ExternalID, 10)},
		"feedback_type": {feedback},
		"username":      {r.svc.username},
		"link":          {r.svc.chatLink},
		"key":           {r.svc.key},
	})
	if err != nil {
		slog.ErrorContext(ctx, "copypastor feedback failed", "copypastor_id", rec.ExternalID, "error", err)
		return "", failure(CopyPastorName, feedback, err)
	}
	return sentMessage(feedback, CopyPastorName), nil
}
