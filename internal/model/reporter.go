package model

// ReporterKind tags the capability family of an external reporting service.
type ReporterKind string

const (
	ReporterExternalID ReporterKind = "external_id"       // metasmoke
	ReporterOrigin     ReporterKind = "content_origin"    // copypastor
	ReporterAge        ReporterKind = "age_heuristic"     // natty
	ReporterGeneric    ReporterKind = "generic_automation" // generic bot
)

func (k ReporterKind) Valid() bool {
	switch k {
	case ReporterExternalID, ReporterOrigin, ReporterAge, ReporterGeneric:
		return true
	}
	return false
}

// ExternalRecord is what a service's batch lookup knows about a post.
type ExternalRecord struct {
	ExternalID int64  `json:"external_id"`
	IsRepost   bool   `json:"is_repost,omitempty"`
	TargetURL  string `json:"target_url,omitempty"`
}

// FlagResponse mirrors the platform's flag endpoint JSON.
type FlagResponse struct {
	FlagType           int    `json:"FlagType"`
	Message            string `json:"Message"`
	Outcome            int    `json:"Outcome"`
	ResultChangedState bool   `json:"ResultChangedState"`
	Success            bool   `json:"Success"`
}
