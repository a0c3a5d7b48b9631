package models

import "time"

// AnalysisSection is one structured slice of a ranked page's content.
type AnalysisSection struct {
	Text    string `json:"text"`
	Type    string `json:"type"`
	Context string `json:"context"`
}

// PageAnalysis is the deep-analysis result for one ranked page: the page's
// content reorganized into typed sections plus the extracted program facts.
type PageAnalysis struct {
	Sections     []AnalysisSection `json:"sections"`
	KeyPoints    []string          `json:"key_points"`
	Requirements []string          `json:"requirements"`
}

// AnalysisArtifact is the durable per-page analysis record, keyed by the same
// URL digest as the page artifact.
type AnalysisArtifact struct {
	URL       string       `json:"url"`
	Title     string       `json:"title"`
	Analysis  PageAnalysis `json:"analysis"`
	Timestamp time.Time    `json:"timestamp"`
}
