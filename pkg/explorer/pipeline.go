package explorer

import (
	"context"
	"errors"
	"net/url"

	"github.com/charmbracelet/log"

	"github.com/amosWeiskopf/sitescout/internal/models"
	"github.com/amosWeiskopf/sitescout/pkg/classifier"
	"github.com/amosWeiskopf/sitescout/pkg/ratebudget"
	"github.com/amosWeiskopf/sitescout/pkg/scope"
	"github.com/amosWeiskopf/sitescout/pkg/utils"
)

// Fetcher retrieves one page's content, title and outbound links.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.PageContent, error)
}

// Classifier assesses one page's importance. The call is metered; its cost is
// reported in the result.
type Classifier interface {
	Classify(ctx context.Context, url, title, content string) (classifier.Result, error)
}

// ArtifactStore persists per-page artifacts and the ranking document.
type ArtifactStore interface {
	WritePage(models.PageArtifact) error
	WriteRanking(models.RankingDocument) error
}

// assessment is the pipeline's outcome for one URL: the fetched content, the
// (possibly zero) assessment, and the recommended links that passed scope.
type assessment struct {
	page       *models.PageContent
	result     models.Assessment
	degraded   bool
	candidates []models.RecommendedLink
}

// pipeline orchestrates fetch, rate-budgeted classification and link
// validation for one URL at a time.
type pipeline struct {
	fetcher    Fetcher
	classifier Classifier
	budget     *ratebudget.Budget
	scope      *scope.Scope
	logger     *log.Logger
}

// assess runs the full pipeline for one URL. A fetch failure or context
// cancellation is returned as an error; classification failures degrade to
// the zero assessment and are not errors — a single bad response must not
// stall a multi-hundred-page crawl.
func (p *pipeline) assess(ctx context.Context, url string) (*assessment, error) {
	page, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	// The budget wait is the loop's only suspension point; it honors ctx so
	// a stuck crawl can be aborted.
	if err := p.budget.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := p.classifier.Classify(ctx, page.URL, page.Title, page.Text)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		p.logger.Warn("classification failed, using zero assessment", "url", url, "error", err)
		return &assessment{page: page, result: models.ZeroAssessment(), degraded: true}, nil
	}

	p.budget.RecordConsumption(res.TokensUsed)

	if !res.Structured {
		return &assessment{page: page, result: models.ZeroAssessment(), degraded: true}, nil
	}

	out := &assessment{page: page, result: res.Assessment}
	for _, link := range res.Assessment.RecommendedLinks {
		// The model frequently recommends site-relative paths; resolve them
		// against the page before the scope check.
		link.URL = resolveLink(page.URL, link.URL)
		// Out-of-scope links are expected and silently dropped.
		if !p.scope.InScope(link.URL) {
			continue
		}
		link.URL = utils.NormalizeURL(link.URL)
		out.candidates = append(out.candidates, link)
	}
	return out, nil
}

func resolveLink(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
