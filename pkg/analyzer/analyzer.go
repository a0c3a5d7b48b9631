// Package analyzer implements the deep-analysis pass: it reads a completed
// exploration's ranking document, re-captures each ranked page and extracts a
// structured breakdown of its content to a per-page analysis artifact.
package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/amosWeiskopf/sitescout/internal/models"
	"github.com/amosWeiskopf/sitescout/pkg/classifier"
	"github.com/amosWeiskopf/sitescout/pkg/ratebudget"
)

// Fetcher retrieves one page's content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.PageContent, error)
}

// PageAnalyzer produces a structured content breakdown for one page.
type PageAnalyzer interface {
	Analyze(ctx context.Context, url, title, content string) (classifier.AnalysisResult, error)
}

// Store supplies the ranking to analyze and persists the results.
type Store interface {
	ReadRanking() (models.RankingDocument, error)
	WriteAnalysis(models.AnalysisArtifact) error
}

// Options configures one analysis run.
type Options struct {
	// MinScore skips ranked pages at or below this importance score. Zero
	// analyzes every ranked page.
	MinScore float64
}

// Summary reports what one analysis run did.
type Summary struct {
	PagesAnalyzed       int
	FetchFailures       int
	AnalysisFailures    int
	PersistenceFailures int
	TokensUsed          int
	Duration            time.Duration
}

// Runner walks the ranking in order, best pages first, analyzing one page at
// a time. Per-page failures skip that page and never abort the run.
type Runner struct {
	opts     Options
	fetcher  Fetcher
	analyzer PageAnalyzer
	budget   *ratebudget.Budget
	store    Store
	logger   *log.Logger
}

// New builds a Runner.
func New(opts Options, f Fetcher, a PageAnalyzer, budget *ratebudget.Budget, store Store, logger *log.Logger) *Runner {
	return &Runner{
		opts:     opts,
		fetcher:  f,
		analyzer: a,
		budget:   budget,
		store:    store,
		logger:   logger.With("component", "analyzer"),
	}
}

// Run analyzes every ranked page above the score floor. Cancellation is
// honored between pages; the in-flight page is always finished.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	doc, err := r.store.ReadRanking()
	if err != nil {
		return summary, err
	}
	r.logger.Info("analysis started", "ranked_pages", len(doc.Ranking), "min_score", r.opts.MinScore)

	for _, entry := range doc.Ranking {
		if ctx.Err() != nil {
			r.logger.Warn("analysis cancelled", "analyzed", summary.PagesAnalyzed)
			break
		}
		if r.opts.MinScore > 0 && entry.ImportanceScore <= r.opts.MinScore {
			continue
		}
		r.analyzePage(ctx, entry.URL, &summary)
	}

	summary.TokensUsed = r.budget.TotalConsumed()
	summary.Duration = time.Since(start)
	r.logger.Info("analysis complete",
		"analyzed", summary.PagesAnalyzed,
		"fetch_failures", summary.FetchFailures,
		"analysis_failures", summary.AnalysisFailures,
		"tokens", summary.TokensUsed,
		"duration", summary.Duration)
	return summary, nil
}

func (r *Runner) analyzePage(ctx context.Context, url string, summary *Summary) {
	page, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		summary.FetchFailures++
		r.logger.Warn("fetch failed", "url", url, "error", err)
		return
	}

	if err := r.budget.Wait(ctx); err != nil {
		return
	}

	res, err := r.analyzer.Analyze(ctx, page.URL, page.Title, page.Text)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		summary.AnalysisFailures++
		r.logger.Warn("analysis failed", "url", url, "error", err)
		return
	}
	r.budget.RecordConsumption(res.TokensUsed)

	if !res.Structured {
		summary.AnalysisFailures++
		return
	}

	artifact := models.AnalysisArtifact{
		URL:       url,
		Title:     page.Title,
		Analysis:  res.Analysis,
		Timestamp: time.Now().UTC(),
	}
	if err := r.store.WriteAnalysis(artifact); err != nil {
		summary.PersistenceFailures++
		r.logger.Error("analysis artifact write failed", "url", url, "error", err)
		return
	}
	summary.PagesAnalyzed++
	r.logger.Info("page analyzed", "url", url, "sections", len(res.Analysis.Sections))
}
