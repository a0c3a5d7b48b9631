// Package explorer implements the prioritized crawl engine: it drives the
// frontier, assesses pages through the fetch/classify pipeline, and persists
// per-page artifacts plus the final importance ranking.
package explorer

import (
	"context"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"github.com/amosWeiskopf/sitescout/internal/models"
	"github.com/amosWeiskopf/sitescout/pkg/frontier"
	"github.com/amosWeiskopf/sitescout/pkg/ratebudget"
	"github.com/amosWeiskopf/sitescout/pkg/scope"
	"github.com/amosWeiskopf/sitescout/pkg/utils"
)

// Options configures one exploration run.
type Options struct {
	StartURL        string
	MaxPages        int
	KeepThreshold   float64
	ScopeMode       scope.Mode
	FrontierOrder   frontier.Order
	CheckpointEvery int
	CoreTopics      []string
}

// Summary reports what one run did.
type Summary struct {
	PagesExplored       int
	PagesKept           int
	FetchFailures       int
	ClassifyFailures    int
	PersistenceFailures int
	TokensUsed          int
	Duration            time.Duration
}

// Explorer is the crawl driver. It exclusively owns its Frontier and
// RankingAccumulator; one Explorer runs one crawl.
type Explorer struct {
	opts     Options
	scope    *scope.Scope
	frontier *frontier.Frontier
	pipe     pipeline
	budget   *ratebudget.Budget
	store    ArtifactStore
	acc      *RankingAccumulator
	logger   *log.Logger
}

// New builds an Explorer. The start URL must parse; everything downstream
// relies on its host and path prefix. The scope and the frontier seed are
// both anchored on the normalized form so they agree on URL identity.
func New(opts Options, f Fetcher, c Classifier, budget *ratebudget.Budget, store ArtifactStore, logger *log.Logger) (*Explorer, error) {
	opts.StartURL = utils.NormalizeURL(opts.StartURL)
	sc, err := scope.New(opts.StartURL, opts.ScopeMode)
	if err != nil {
		return nil, err
	}
	lg := logger.With("component", "explorer")
	return &Explorer{
		opts:     opts,
		scope:    sc,
		frontier: frontier.New(opts.FrontierOrder),
		pipe: pipeline{
			fetcher:    f,
			classifier: c,
			budget:     budget,
			scope:      sc,
			logger:     lg,
		},
		budget: budget,
		store:  store,
		acc:    NewRankingAccumulator(opts.CoreTopics),
		logger: lg,
	}, nil
}

// Explore runs the crawl to completion: Seeded, then Running until the
// frontier empties, the page cap trips or ctx is cancelled, then Draining
// (the ranking document is always written, even for a fully failed run).
// Cancellation is honored between URLs, never mid-assessment.
func (e *Explorer) Explore(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	e.frontier.Seed(e.opts.StartURL)
	e.logger.Info("exploration started", "start_url", e.opts.StartURL, "max_pages", e.opts.MaxPages, "order", e.opts.FrontierOrder, "scope", e.scope.Mode())

	for summary.PagesExplored < e.opts.MaxPages {
		if ctx.Err() != nil {
			e.logger.Warn("exploration cancelled, draining", "explored", summary.PagesExplored)
			break
		}

		entry, ok := e.frontier.PopNext()
		if !ok {
			break
		}
		// The frontier invariant already guarantees pending never holds a
		// visited URL; the check stays as a guard.
		if e.frontier.Visited(entry.URL) {
			continue
		}
		e.frontier.MarkVisited(entry.URL)
		summary.PagesExplored++

		e.logger.Info("exploring", "url", entry.URL, "priority", entry.Priority, "pending", e.frontier.Size())

		outcome, err := e.pipe.assess(ctx, entry.URL)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			summary.FetchFailures++
			e.logger.Warn("fetch failed", "url", entry.URL, "error", err)
			continue
		}
		if outcome.degraded {
			summary.ClassifyFailures++
		}

		if outcome.result.ImportanceScore > e.opts.KeepThreshold {
			e.keep(entry.URL, outcome, &summary)
		}
	}

	summary.TokensUsed = e.budget.TotalConsumed()
	summary.Duration = time.Since(start)

	doc := e.acc.Finalize(e.baseDomain(), time.Now().UTC())
	if err := e.store.WriteRanking(doc); err != nil {
		return summary, err
	}

	e.logger.Info("exploration complete",
		"explored", summary.PagesExplored,
		"kept", summary.PagesKept,
		"fetch_failures", summary.FetchFailures,
		"classify_failures", summary.ClassifyFailures,
		"tokens", summary.TokensUsed,
		"duration", summary.Duration)
	return summary, nil
}

// keep persists a kept page, records it in the ranking and enqueues its
// validated links. A persistence failure is surfaced and counted but does not
// stop the crawl.
func (e *Explorer) keep(url string, outcome *assessment, summary *Summary) {
	artifact := models.PageArtifact{
		URL:              url,
		Title:            outcome.page.Title,
		Tags:             outcome.result.Tags,
		Abstract:         outcome.result.Abstract,
		Content:          outcome.page.Text,
		RelatedTopics:    outcome.result.RelatedTopics,
		ImportanceScore:  outcome.result.ImportanceScore,
		RecommendedLinks: outcome.result.RecommendedLinks,
		Timestamp:        time.Now().UTC(),
	}
	if err := e.store.WritePage(artifact); err != nil {
		summary.PersistenceFailures++
		e.logger.Error("page artifact write failed", "url", url, "error", err)
	}

	e.acc.Record(url, outcome.result)
	summary.PagesKept++

	for _, link := range outcome.candidates {
		e.frontier.Push(link.URL, link.Priority)
	}

	if e.opts.CheckpointEvery > 0 && e.acc.Len()%e.opts.CheckpointEvery == 0 {
		doc := e.acc.Finalize(e.baseDomain(), time.Now().UTC())
		if err := e.store.WriteRanking(doc); err != nil {
			e.logger.Error("ranking checkpoint failed", "error", err)
		}
	}
}

func (e *Explorer) baseDomain() string {
	u, err := url.Parse(e.opts.StartURL)
	if err != nil {
		return ""
	}
	return u.Host
}
