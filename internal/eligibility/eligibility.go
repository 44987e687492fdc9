package eligibility

import (
	"fmt"
	"time"

	"basegraph.app/advflag/internal/catalog"
	"basegraph.app/advflag/internal/model"
)

// Choice is one category of the options menu with the types that survived filtering.
type Choice struct {
	Category  model.FlagCategory
	FlagTypes []model.FlagType
}

// SignalSource supplies the per-type auxiliary signals, usually from the content
// origin service's lookup. A nil source means no signals are known.
type SignalSource func(model.FlagType) model.Signals

// Evaluate returns the applicable categories in catalog order. A category is
// present only when at least one of its types passes every filter.
func Evaluate(post model.Post, c *catalog.Catalog, enabled map[int]bool, signals SignalSource) []Choice {
	var choices []Choice
	for _, category := range c.Categories() {
		if !category.Applies(post.Type) {
			continue
		}

		var types []model.FlagType
		for _, ft := range category.FlagTypes {
			if !enabled[ft.ID] {
				continue
			}
			var s model.Signals
			if signals != nil {
				s = signals(ft)
			}
			if !ft.Rule.Allows(s) {
				continue
			}
			types = append(types, ft)
		}
		if len(types) == 0 {
			continue
		}
		choices = append(choices, Choice{Category: category, FlagTypes: types})
	}
	return choices
}

// LowQualityPolicy decides whether a low-value post is flagged as low quality or
// as not an answer.
type LowQualityPolicy struct {
	MaxScore int
	MaxAge   time.Duration
}

func DefaultLowQualityPolicy() LowQualityPolicy {
	return LowQualityPolicy{MaxScore: 0, MaxAge: 24 * time.Hour}
}

func (p LowQualityPolicy) Qualifies(post model.Post, now time.Time) bool {
	if post.Score > p.MaxScore {
		return false
	}
	created := post.CreationDate
	if created.IsZero() {
		created = now
	}
	return now.Sub(created) < p.MaxAge
}

// ResolveReportKind returns the kind actually submitted. Low quality is replaced
// by exactly one of low quality or not an answer; other kinds pass through.
func (p LowQualityPolicy) ResolveReportKind(kind model.ReportKind, post model.Post, now time.Time) model.ReportKind {
	if kind != model.ReportLowQuality {
		return kind
	}
	if p.Qualifies(post, now) {
		return model.ReportLowQuality
	}
	return model.ReportNotAnAnswer
}

// CommentFor renders the comment a flag type leaves on the post.
func CommentFor(c *catalog.Catalog, ft model.FlagType, post model.Post) (string, error) {
	text, err := c.RenderComment(ft.ID, post.AuthorReputation, post.AuthorName)
	if err != nil {
		return "", fmt.Errorf("comment for flag type %d: %w", ft.ID, err)
	}
	return text, nil
}

// FlagTextFor renders the custom flag text. Types without one, and posts with no
// known origin record, get "".
func FlagTextFor(c *catalog.Catalog, ft model.FlagType, record model.ExternalRecord) (string, error) {
	if ft.FlagText == "" || record.ExternalID == 0 || record.TargetURL == "" {
		return "", nil
	}
	text, err := c.RenderFlagText(ft.ID, record.TargetURL, record.ExternalID)
	if err != nil {
		return "", fmt.Errorf("flag text for flag type %d: %w", ft.ID, err)
	}
	return text, nil
}
