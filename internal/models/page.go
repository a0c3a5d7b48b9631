package models

import "time"

// PageContent is the raw material produced by one fetch: extracted body text,
// title and outbound links. It is immutable and discarded once the artifact
// for the page has been built.
type PageContent struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Links []Link `json:"links"`
}

// Link is an outbound hyperlink discovered on a page. Links are de-duplicated
// by URL within a single page.
type Link struct {
	URL        string `json:"url"`
	AnchorText string `json:"anchor_text"`
}

// LinkKind categorizes a recommended link.
type LinkKind string

const (
	LinkKindNavigation  LinkKind = "navigation"
	LinkKindContent     LinkKind = "content"
	LinkKindApplication LinkKind = "application"
	LinkKindResource    LinkKind = "resource"
	LinkKindOther       LinkKind = "other"
)

// ParseLinkKind maps a classifier-provided kind string onto a LinkKind.
// Unknown values fold into LinkKindOther.
func ParseLinkKind(s string) LinkKind {
	switch LinkKind(s) {
	case LinkKindNavigation, LinkKindContent, LinkKindApplication, LinkKindResource:
		return LinkKind(s)
	default:
		return LinkKindOther
	}
}

// RecommendedLink is a link the classifier suggests following, with an
// expected-value priority in [0,1].
type RecommendedLink struct {
	URL      string   `json:"url"`
	Priority float64  `json:"priority"`
	Kind     LinkKind `json:"kind"`
}

// Assessment is the classifier's structured judgment of one page. Scores are
// conventionally 0.0-1.0 but the classifier imposes no hard clamp; consumers
// must tolerate out-of-range values.
type Assessment struct {
	ImportanceScore  float64           `json:"importance_score"`
	Tags             []string          `json:"tags"`
	Abstract         string            `json:"abstract"`
	RecommendedLinks []RecommendedLink `json:"recommended_links"`
	RelatedTopics    []string          `json:"related_topics"`
}

// ZeroAssessment is the non-fatal substitute used when classification fails
// or returns unusable data. The page is treated as unimportant and contributes
// no links.
func ZeroAssessment() Assessment {
	return Assessment{
		Tags:             []string{},
		RecommendedLinks: []RecommendedLink{},
		RelatedTopics:    []string{},
	}
}

// PageArtifact is the durable per-page record written for every kept page,
// keyed by a stable digest of the URL.
type PageArtifact struct {
	URL              string            `json:"url"`
	Title            string            `json:"title"`
	Tags             []string          `json:"tags"`
	Abstract         string            `json:"abstract"`
	Content          string            `json:"content"`
	RelatedTopics    []string          `json:"related_topics"`
	ImportanceScore  float64           `json:"importance_score"`
	RecommendedLinks []RecommendedLink `json:"recommended_links"`
	Timestamp        time.Time         `json:"timestamp"`
}
