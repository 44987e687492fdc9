package model

import "slices"

// ReportKind is the canonical flag/feedback category. Values are the platform's
// own flag names so they can be placed in the flag URL as-is.
type ReportKind string

const (
	ReportNoFlag      ReportKind = "NoFlag"
	ReportLowQuality  ReportKind = "PostLowQuality"
	ReportNotAnAnswer ReportKind = "AnswerNotAnAnswer"
	ReportOffensive   ReportKind = "PostOffensive"
	ReportSpam        ReportKind = "PostSpam"
	ReportOther       ReportKind = "PostOther"
)

var reportKinds = []ReportKind{
	ReportNoFlag, ReportLowQuality, ReportNotAnAnswer, ReportOffensive, ReportSpam, ReportOther,
}

func (k ReportKind) Valid() bool {
	return slices.Contains(reportKinds, k)
}

// Human is the short label shown after "Flagged ...".
func (k ReportKind) Human() string {
	switch k {
	case ReportNotAnAnswer:
		return "as NAA"
	case ReportOffensive:
		return "as R/A"
	case ReportSpam:
		return "as spam"
	case ReportOther:
		return "for moderator attention"
	case ReportLowQuality:
		return "as VLQ"
	default:
		return ""
	}
}

// EligibilityRule gates whether a flag type is offered for a post.
type EligibilityRule string

const (
	RuleAlways             EligibilityRule = "always"
	RuleRequiresRepost     EligibilityRule = "requires_repost"
	RuleRequiresOriginal   EligibilityRule = "requires_original"
	RuleRequiresExternalID EligibilityRule = "requires_external_id"
)

func (r EligibilityRule) Valid() bool {
	switch r {
	case "", RuleAlways, RuleRequiresRepost, RuleRequiresOriginal, RuleRequiresExternalID:
		return true
	}
	return false
}

// Signals are the per-post facts a rule is evaluated against. They come from the
// content origin service's lookup for the post.
type Signals struct {
	IsRepost   bool
	ExternalID int64
}

// Allows evaluates the rule. An empty rule behaves like RuleAlways.
func (r EligibilityRule) Allows(s Signals) bool {
	switch r {
	case RuleRequiresRepost:
		return s.IsRepost && s.ExternalID > 0
	case RuleRequiresOriginal:
		return !s.IsRepost && s.ExternalID > 0
	case RuleRequiresExternalID:
		return s.ExternalID > 0
	default:
		return true
	}
}

// CommentTemplates holds the canned comment for a flag type. LowRep is used for
// authors under the catalog's reputation threshold, HighRep otherwise.
type CommentTemplates struct {
	LowRep  string `yaml:"low_rep" json:"low_rep,omitempty"`
	HighRep string `yaml:"high_rep" json:"high_rep,omitempty"`
}

func (c CommentTemplates) Empty() bool {
	return c.LowRep == "" && c.HighRep == ""
}

type FlagType struct {
	ID          int
	DisplayName string
	ReportKind  ReportKind
	Rule        EligibilityRule
	Comments    CommentTemplates
	FlagText    string
	Feedbacks   map[ReporterKind]string
}

// Feedback returns the feedback kind sent to a reporter, or "" when the flag type
// has nothing to tell that service.
func (f FlagType) Feedback(kind ReporterKind) string {
	return f.Feedbacks[kind]
}

type FlagCategory struct {
	Name        string
	AppliesTo   []PostType
	IsDangerous bool
	FlagTypes   []FlagType
}

func (c FlagCategory) Applies(t PostType) bool {
	return slices.Contains(c.AppliesTo, t)
}
