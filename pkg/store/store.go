// Package store persists exploration artifacts: one JSON document per kept
// page keyed by a digest of its URL, plus the run's ranking document.
package store

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/amosWeiskopf/sitescout/internal/models"
)

const rankingFilename = "page_importance_ranking.json"

// Store writes artifacts under <root>/<site>. Page artifacts for distinct
// URLs never collide, so concurrent writers targeting distinct URLs are safe.
type Store struct {
	dir string
}

// New creates the site's artifact directories.
func New(root, site string) (*Store, error) {
	dir := filepath.Join(root, site)
	for _, sub := range []string{"pages", "analysis"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
	}
	return &Store{dir: dir}, nil
}

// PagePath returns the artifact path for a URL: pages/<md5(url)>.json.
// The digest keys the artifact stably across runs.
func (s *Store) PagePath(url string) string {
	sum := md5.Sum([]byte(url))
	return filepath.Join(s.dir, "pages", hex.EncodeToString(sum[:])+".json")
}

// WritePage persists one kept page's artifact. Write errors must surface to
// the operator; a silently lost artifact corrupts the output set.
func (s *Store) WritePage(artifact models.PageArtifact) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal page artifact %s: %w", artifact.URL, err)
	}
	if err := os.WriteFile(s.PagePath(artifact.URL), data, 0o644); err != nil {
		return fmt.Errorf("write page artifact %s: %w", artifact.URL, err)
	}
	return nil
}

// AnalysisPath returns the deep-analysis artifact path for a URL, keyed by
// the same digest as the page artifact.
func (s *Store) AnalysisPath(url string) string {
	sum := md5.Sum([]byte(url))
	return filepath.Join(s.dir, "analysis", hex.EncodeToString(sum[:])+".json")
}

// WriteAnalysis persists one ranked page's deep-analysis artifact.
func (s *Store) WriteAnalysis(artifact models.AnalysisArtifact) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis artifact %s: %w", artifact.URL, err)
	}
	if err := os.WriteFile(s.AnalysisPath(artifact.URL), data, 0o644); err != nil {
		return fmt.Errorf("write analysis artifact %s: %w", artifact.URL, err)
	}
	return nil
}

// RankingPath returns the ranking document's path.
func (s *Store) RankingPath() string {
	return filepath.Join(s.dir, rankingFilename)
}

// WriteRanking persists the ranking document.
func (s *Store) WriteRanking(doc models.RankingDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ranking: %w", err)
	}
	if err := os.WriteFile(s.RankingPath(), data, 0o644); err != nil {
		return fmt.Errorf("write ranking: %w", err)
	}
	return nil
}

// ReadRanking loads a previously written ranking document.
func (s *Store) ReadRanking() (models.RankingDocument, error) {
	var doc models.RankingDocument
	data, err := os.ReadFile(s.RankingPath())
	if err != nil {
		return doc, fmt.Errorf("read ranking: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode ranking: %w", err)
	}
	return doc, nil
}
