package models

import "time"

// RankingEntry is one kept page's position in the final importance ranking.
// Entries are immutable once recorded.
type RankingEntry struct {
	URL             string   `json:"url"`
	Tags            []string `json:"tags"`
	ImportanceScore float64  `json:"importance_score"`
	RelatedTopics   []string `json:"related_topics"`
	SemanticContext []string `json:"semantic_context"`
}

// RankingMetadata summarizes one exploration run.
type RankingMetadata struct {
	TotalPages           int       `json:"total_pages"`
	ExplorationTimestamp time.Time `json:"exploration_timestamp"`
	BaseDomain           string    `json:"base_domain"`
	TopicOverview        []string  `json:"topic_overview"`
}

// RankingDocument is the final artifact of a crawl run: kept pages sorted by
// importance score descending, earlier-discovered pages first on ties.
type RankingDocument struct {
	Ranking  []RankingEntry  `json:"ranking"`
	Metadata RankingMetadata `json:"metadata"`
}
