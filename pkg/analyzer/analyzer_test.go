package analyzer

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/sitescout/internal/models"
	"github.com/amosWeiskopf/sitescout/pkg/classifier"
	"github.com/amosWeiskopf/sitescout/pkg/ratebudget"
)

type fakeFetcher struct {
	pages   map[string]*models.PageContent
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*models.PageContent, error) {
	f.fetched = append(f.fetched, url)
	page, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: connection refused", url)
	}
	return page, nil
}

type fakeAnalyzer struct {
	results map[string]classifier.AnalysisResult
	errs    map[string]error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, url, _, _ string) (classifier.AnalysisResult, error) {
	if err, ok := a.errs[url]; ok {
		return classifier.AnalysisResult{}, err
	}
	if res, ok := a.results[url]; ok {
		return res, nil
	}
	return classifier.AnalysisResult{Raw: "no json here", TokensUsed: 10}, nil
}

type fakeStore struct {
	ranking   models.RankingDocument
	rankErr   error
	artifacts map[string]models.AnalysisArtifact
	writeErr  error
}

func newFakeStore(entries ...models.RankingEntry) *fakeStore {
	return &fakeStore{
		ranking:   models.RankingDocument{Ranking: entries},
		artifacts: make(map[string]models.AnalysisArtifact),
	}
}

func (s *fakeStore) ReadRanking() (models.RankingDocument, error) {
	return s.ranking, s.rankErr
}

func (s *fakeStore) WriteAnalysis(a models.AnalysisArtifact) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.artifacts[a.URL] = a
	return nil
}

func page(url, title string) *models.PageContent {
	return &models.PageContent{URL: url, Title: title, Text: "body text for " + url}
}

func structured(sections ...string) classifier.AnalysisResult {
	var a models.PageAnalysis
	for _, s := range sections {
		a.Sections = append(a.Sections, models.AnalysisSection{Text: s, Type: "content"})
	}
	return classifier.AnalysisResult{Structured: true, Analysis: a, TokensUsed: 200}
}

func newTestRunner(opts Options, f Fetcher, a PageAnalyzer, s Store) *Runner {
	return New(opts, f, a, ratebudget.New(1_000_000), s, log.New(io.Discard))
}

func TestRunAnalyzesRankedPagesInOrder(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*models.PageContent{
		"https://s.test/a": page("https://s.test/a", "A"),
		"https://s.test/b": page("https://s.test/b", "B"),
	}}
	an := &fakeAnalyzer{results: map[string]classifier.AnalysisResult{
		"https://s.test/a": structured("admissions overview"),
		"https://s.test/b": structured("deadlines"),
	}}
	store := newFakeStore(
		models.RankingEntry{URL: "https://s.test/a", ImportanceScore: 0.9},
		models.RankingEntry{URL: "https://s.test/b", ImportanceScore: 0.5},
	)
	r := newTestRunner(Options{}, fetcher, an, store)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.PagesAnalyzed)
	assert.Equal(t, []string{"https://s.test/a", "https://s.test/b"}, fetcher.fetched)
	assert.Equal(t, 400, summary.TokensUsed)

	artifact, ok := store.artifacts["https://s.test/a"]
	require.True(t, ok)
	assert.Equal(t, "A", artifact.Title)
	require.Len(t, artifact.Analysis.Sections, 1)
	assert.Equal(t, "admissions overview", artifact.Analysis.Sections[0].Text)
}

func TestRunSkipsBelowScoreFloor(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*models.PageContent{
		"https://s.test/a": page("https://s.test/a", "A"),
	}}
	an := &fakeAnalyzer{results: map[string]classifier.AnalysisResult{
		"https://s.test/a": structured("overview"),
	}}
	store := newFakeStore(
		models.RankingEntry{URL: "https://s.test/a", ImportanceScore: 0.9},
		models.RankingEntry{URL: "https://s.test/low", ImportanceScore: 0.4},
	)
	r := newTestRunner(Options{MinScore: 0.5}, fetcher, an, store)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PagesAnalyzed)
	assert.NotContains(t, fetcher.fetched, "https://s.test/low")
}

func TestRunPerPageFailuresAreIsolated(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*models.PageContent{
		"https://s.test/bad": page("https://s.test/bad", "Bad"),
		"https://s.test/ok":  page("https://s.test/ok", "OK"),
	}}
	an := &fakeAnalyzer{
		results: map[string]classifier.AnalysisResult{
			// Unstructured: the model returned prose instead of sections.
			"https://s.test/bad": {Raw: "cannot analyze", TokensUsed: 30},
			"https://s.test/ok":  structured("content"),
		},
	}
	store := newFakeStore(
		models.RankingEntry{URL: "https://s.test/gone", ImportanceScore: 0.9},
		models.RankingEntry{URL: "https://s.test/bad", ImportanceScore: 0.8},
		models.RankingEntry{URL: "https://s.test/ok", ImportanceScore: 0.7},
	)
	r := newTestRunner(Options{}, fetcher, an, store)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FetchFailures)
	assert.Equal(t, 1, summary.AnalysisFailures)
	assert.Equal(t, 1, summary.PagesAnalyzed)
	_, ok := store.artifacts["https://s.test/ok"]
	assert.True(t, ok)
}

func TestRunFailsWithoutRanking(t *testing.T) {
	store := newFakeStore()
	store.rankErr = fmt.Errorf("read ranking: no such file")
	r := newTestRunner(Options{}, &fakeFetcher{}, &fakeAnalyzer{}, store)

	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestRunPersistenceFailureCounted(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*models.PageContent{
		"https://s.test/a": page("https://s.test/a", "A"),
	}}
	an := &fakeAnalyzer{results: map[string]classifier.AnalysisResult{
		"https://s.test/a": structured("content"),
	}}
	store := newFakeStore(models.RankingEntry{URL: "https://s.test/a", ImportanceScore: 0.9})
	store.writeErr = fmt.Errorf("disk full")
	r := newTestRunner(Options{}, fetcher, an, store)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PersistenceFailures)
	assert.Equal(t, 0, summary.PagesAnalyzed)
}

func TestRunHonorsCancellation(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*models.PageContent{}}
	store := newFakeStore(models.RankingEntry{URL: "https://s.test/a", ImportanceScore: 0.9})
	r := newTestRunner(Options{}, fetcher, &fakeAnalyzer{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.PagesAnalyzed)
	assert.Empty(t, fetcher.fetched)
}
