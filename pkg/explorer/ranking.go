package explorer

import (
	"sort"
	"strings"
	"time"

	"github.com/amosWeiskopf/sitescout/internal/models"
)

const topicOverviewSize = 10

// RankingAccumulator collects per-URL assessment summaries in discovery order
// and produces the final sorted ranking. It exclusively owns the growing
// entry list until serialization.
type RankingAccumulator struct {
	entries    []rankedPage
	coreTopics map[string]bool
}

type rankedPage struct {
	url    string
	tags   []string
	score  float64
	topics []string
}

// NewRankingAccumulator creates an accumulator. coreTopics is the configured
// set of topic keywords used for semantic-context overlap.
func NewRankingAccumulator(coreTopics []string) *RankingAccumulator {
	core := make(map[string]bool, len(coreTopics))
	for _, t := range coreTopics {
		core[strings.ToLower(t)] = true
	}
	return &RankingAccumulator{coreTopics: core}
}

// Record appends a kept page. Entries are immutable once recorded; the input
// slices are copied so later mutation by the caller cannot reach them.
func (r *RankingAccumulator) Record(url string, assessment models.Assessment) {
	r.entries = append(r.entries, rankedPage{
		url:    url,
		tags:   append([]string(nil), assessment.Tags...),
		score:  assessment.ImportanceScore,
		topics: append([]string(nil), assessment.RelatedTopics...),
	})
}

// Len reports the number of recorded pages.
func (r *RankingAccumulator) Len() int {
	return len(r.entries)
}

// Finalize produces the ranking document: entries sorted by importance score
// descending, earlier-discovered pages first on ties, with semantic context
// cross-referenced over all kept pages. It is idempotent and may be called
// repeatedly for checkpointing; recorded entries are never mutated.
func (r *RankingAccumulator) Finalize(baseDomain string, now time.Time) models.RankingDocument {
	tagFreq := make(map[string]int)
	for _, e := range r.entries {
		for _, tag := range e.tags {
			tagFreq[strings.ToLower(tag)]++
		}
	}

	ranking := make([]models.RankingEntry, len(r.entries))
	for i, e := range r.entries {
		ranking[i] = models.RankingEntry{
			URL:             e.url,
			Tags:            append([]string(nil), e.tags...),
			ImportanceScore: e.score,
			RelatedTopics:   append([]string(nil), e.topics...),
			SemanticContext: r.semanticContext(e, tagFreq),
		}
	}

	// Sort order is the sole source of output order; insertion timing only
	// matters for breaking score ties.
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].ImportanceScore > ranking[j].ImportanceScore
	})

	return models.RankingDocument{
		Ranking: ranking,
		Metadata: models.RankingMetadata{
			TotalPages:           len(ranking),
			ExplorationTimestamp: now,
			BaseDomain:           baseDomain,
			TopicOverview:        topicOverview(tagFreq),
		},
	}
}

// semanticContext derives a page's cross-page context: tags shared with at
// least one other kept page, plus related topics overlapping the configured
// core topic set.
func (r *RankingAccumulator) semanticContext(e rankedPage, tagFreq map[string]int) []string {
	seen := make(map[string]bool)
	context := []string{}
	for _, tag := range e.tags {
		key := strings.ToLower(tag)
		if tagFreq[key] > 1 && !seen[key] {
			seen[key] = true
			context = append(context, "shared-tag:"+key)
		}
	}
	for _, topic := range e.topics {
		key := strings.ToLower(topic)
		if r.coreTopics[key] && !seen[key] {
			seen[key] = true
			context = append(context, "core-topic:"+key)
		}
	}
	sort.Strings(context)
	return context
}

// topicOverview ranks tags by how many kept pages carry them.
func topicOverview(tagFreq map[string]int) []string {
	type tagCount struct {
		tag   string
		count int
	}
	counts := make([]tagCount, 0, len(tagFreq))
	for tag, n := range tagFreq {
		counts = append(counts, tagCount{tag, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count == counts[j].count {
			return counts[i].tag < counts[j].tag
		}
		return counts[i].count > counts[j].count
	})

	overview := []string{}
	for i, c := range counts {
		if i >= topicOverviewSize {
			break
		}
		overview = append(overview, c.tag)
	}
	return overview
}
