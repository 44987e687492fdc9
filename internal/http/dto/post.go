package dto

import (
	"time"

	"basegraph.app/advflag/internal/model"
	"basegraph.app/advflag/internal/service"
	"basegraph.app/advflag/internal/service/dispatch"
)

type PostRequest struct {
	ID                   int64      `json:"id" binding:"required,min=1"`
	Type                 string     `json:"type" binding:"required,oneof=Question Answer"`
	Score                int        `json:"score"`
	CreationDate         time.Time  `json:"creation_date" binding:"required"`
	QuestionCreationDate *time.Time `json:"question_creation_date,omitempty"`
	AuthorReputation     int        `json:"author_reputation" binding:"min=0"`
	AuthorName           string     `json:"author_name" binding:"max=255"`
	Deleted              bool       `json:"deleted"`
	Comments             []string   `json:"comments,omitempty"`
}

type DiscoverPostsRequest struct {
	Posts []PostRequest `json:"posts" binding:"required,min=1,max=200,dive"`
}

type DiscoverPostsResponse struct {
	Stored  int            `json:"stored"`
	Lookups map[string]int `json:"lookups"`
}

func (r PostRequest) ToModel() model.Post {
	p := model.Post{
		ID:               r.ID,
		Type:             model.PostType(r.Type),
		Score:            r.Score,
		CreationDate:     r.CreationDate,
		AuthorReputation: r.AuthorReputation,
		AuthorName:       r.AuthorName,
		Deleted:          r.Deleted,
		Comments:         r.Comments,
	}
	if r.QuestionCreationDate != nil {
		p.QuestionCreationDate = *r.QuestionCreationDate
	}
	return p
}

type ActionRequest struct {
	FlagTypeID int  `json:"flag_type_id" binding:"required,min=1"`
	Comment    bool `json:"comment"`
	Flag       bool `json:"flag"`
}

type NoticeResponse struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type ActionResponse struct {
	ActionID         int64            `json:"action_id,string"`
	Notices          []NoticeResponse `json:"notices"`
	Commented        bool             `json:"commented"`
	CommentMarkup    string           `json:"comment_markup,omitempty"`
	MatchingComments []int            `json:"matching_comments,omitempty"`
	Flagged          bool             `json:"flagged"`
	FlaggedAs        model.ReportKind `json:"flagged_as,omitempty"`
	FlagFailure      string           `json:"flag_failure,omitempty"`
	Feedback         []string         `json:"feedback"`
	Performed        bool             `json:"performed"`
}

func (r ActionRequest) Options() dispatch.Options {
	return dispatch.Options{Comment: r.Comment, Flag: r.Flag}
}

func ToActionResponse(res *service.ActionResult) *ActionResponse {
	out := &ActionResponse{
		ActionID:         res.ActionID,
		Notices:          make([]NoticeResponse, 0, len(res.Notices)),
		Commented:        res.Commented,
		CommentMarkup:    res.CommentMarkup,
		MatchingComments: res.MatchingComments,
		Flagged:          res.Flagged,
		FlaggedAs:        res.FlaggedAs,
		Feedback:         res.FeedbackMessages,
		Performed:        res.Performed(),
	}
	for _, n := range res.Notices {
		out.Notices = append(out.Notices, NoticeResponse{Level: string(n.Level), Message: n.Message})
	}
	if res.FlagFailure != nil {
		out.FlagFailure = string(res.FlagFailure.Kind)
	}
	if out.Feedback == nil {
		out.Feedback = []string{}
	}
	return out
}
