package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/amosWeiskopf/sitescout/internal/config"
	"github.com/amosWeiskopf/sitescout/pkg/analyzer"
	"github.com/amosWeiskopf/sitescout/pkg/classifier"
	"github.com/amosWeiskopf/sitescout/pkg/explorer"
	"github.com/amosWeiskopf/sitescout/pkg/fetcher"
	"github.com/amosWeiskopf/sitescout/pkg/frontier"
	"github.com/amosWeiskopf/sitescout/pkg/ratebudget"
	"github.com/amosWeiskopf/sitescout/pkg/scope"
	"github.com/amosWeiskopf/sitescout/pkg/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sitescout",
	Short: "SiteScout - Prioritized website exploration",
	Long: `SiteScout crawls a website starting from one URL, uses an LLM to score
each page's importance to a configured audience, and persists a ranked,
content-annotated record of the pages that matter.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var exploreCmd = &cobra.Command{
	Use:   "explore [URL]",
	Short: "Explore a website and rank its pages by importance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		startURL := args[0]
		site, _ := cmd.Flags().GetString("site")
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyFlagOverrides(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if cfg.Classifier.APIKey == "" {
			return fmt.Errorf("classifier API key not set (set OPENAI_API_KEY or classifier.api_key)")
		}

		logger := newLogger(cfg.Logging)
		logger.Info("starting exploration", "site", site, "url", startURL)

		st, err := store.New(cfg.Storage.Path, site)
		if err != nil {
			return fmt.Errorf("failed to create artifact store: %w", err)
		}

		budget := ratebudget.New(cfg.Classifier.TokensPerMinute)
		f := fetcher.New(fetcher.Options{
			Timeout:           cfg.Fetcher.Timeout,
			RequestsPerSecond: cfg.Fetcher.RequestsPerSecond,
			RespectRobots:     cfg.Fetcher.RespectRobots,
		}, logger)
		c := classifier.New(classifierOptions(cfg), logger)

		e, err := explorer.New(explorer.Options{
			StartURL:        startURL,
			MaxPages:        cfg.Explorer.MaxPages,
			KeepThreshold:   cfg.Explorer.KeepThreshold,
			ScopeMode:       scope.Mode(cfg.Explorer.ScopeMode),
			FrontierOrder:   frontier.Order(cfg.Explorer.FrontierOrder),
			CheckpointEvery: cfg.Explorer.CheckpointEvery,
			CoreTopics:      cfg.Explorer.CoreTopics,
		}, f, c, budget, st, logger)
		if err != nil {
			return fmt.Errorf("failed to create explorer: %w", err)
		}

		// SIGINT finishes the in-flight page, then drains and writes the
		// ranking before exit.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := e.Explore(ctx)
		if err != nil {
			return fmt.Errorf("exploration failed: %w", err)
		}

		fmt.Printf("Explored %d pages (%d kept, %d fetch failures, %d classify failures) in %s\n",
			summary.PagesExplored, summary.PagesKept, summary.FetchFailures,
			summary.ClassifyFailures, summary.Duration.Round(time.Second))
		fmt.Printf("Ranking written to %s\n", st.RankingPath())
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Deep-analyze the pages ranked by a completed exploration",
	RunE: func(cmd *cobra.Command, args []string) error {
		site, _ := cmd.Flags().GetString("site")
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("min-score") {
			cfg.Analyzer.MinScore, _ = cmd.Flags().GetFloat64("min-score")
		}
		if cmd.Flags().Changed("output") {
			cfg.Storage.Path, _ = cmd.Flags().GetString("output")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if cfg.Classifier.APIKey == "" {
			return fmt.Errorf("classifier API key not set (set OPENAI_API_KEY or classifier.api_key)")
		}

		logger := newLogger(cfg.Logging)
		logger.Info("starting analysis", "site", site)

		st, err := store.New(cfg.Storage.Path, site)
		if err != nil {
			return fmt.Errorf("failed to create artifact store: %w", err)
		}

		budget := ratebudget.New(cfg.Classifier.TokensPerMinute)
		f := fetcher.New(fetcher.Options{
			Timeout:           cfg.Fetcher.Timeout,
			RequestsPerSecond: cfg.Fetcher.RequestsPerSecond,
			RespectRobots:     cfg.Fetcher.RespectRobots,
		}, logger)
		c := classifier.New(classifierOptions(cfg), logger)

		r := analyzer.New(analyzer.Options{
			MinScore: cfg.Analyzer.MinScore,
		}, f, c, budget, st, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := r.Run(ctx)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		fmt.Printf("Analyzed %d pages (%d fetch failures, %d analysis failures) in %s\n",
			summary.PagesAnalyzed, summary.FetchFailures,
			summary.AnalysisFailures, summary.Duration.Round(time.Second))
		return nil
	},
}

func classifierOptions(cfg *config.Config) classifier.Options {
	return classifier.Options{
		APIKey:             cfg.Classifier.APIKey,
		BaseURL:            cfg.Classifier.BaseURL,
		Model:              cfg.Classifier.Model,
		Temperature:        cfg.Classifier.Temperature,
		MaxRetries:         cfg.Classifier.MaxRetries,
		ContentCharBudget:  cfg.Classifier.ContentCharBudget,
		AnalysisCharBudget: cfg.Classifier.AnalysisCharBudget,
	}
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("max-pages") {
		cfg.Explorer.MaxPages, _ = cmd.Flags().GetInt("max-pages")
	}
	if cmd.Flags().Changed("keep-threshold") {
		cfg.Explorer.KeepThreshold, _ = cmd.Flags().GetFloat64("keep-threshold")
	}
	if cmd.Flags().Changed("scope-mode") {
		cfg.Explorer.ScopeMode, _ = cmd.Flags().GetString("scope-mode")
	}
	if cmd.Flags().Changed("order") {
		cfg.Explorer.FrontierOrder, _ = cmd.Flags().GetString("order")
	}
	if cmd.Flags().Changed("output") {
		cfg.Storage.Path, _ = cmd.Flags().GetString("output")
	}
}

func newLogger(cfg config.LoggingConfig) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if cfg.Format == "json" {
		logger.SetFormatter(log.JSONFormatter)
	}
	if level, err := log.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

func init() {
	exploreCmd.Flags().String("site", "", "Site identifier used for the artifact directory")
	exploreCmd.Flags().Int("max-pages", 500, "Maximum number of pages to assess")
	exploreCmd.Flags().Float64("keep-threshold", 0.3, "Importance score a page must exceed to be kept")
	exploreCmd.Flags().String("scope-mode", "path", "Crawl scope: path (host + path prefix) or host")
	exploreCmd.Flags().String("order", "priority", "Frontier order: priority or fifo")
	exploreCmd.Flags().String("output", "", "Artifact output directory")
	exploreCmd.MarkFlagRequired("site")

	analyzeCmd.Flags().String("site", "", "Site identifier used for the artifact directory")
	analyzeCmd.Flags().Float64("min-score", 0, "Skip ranked pages at or below this importance score")
	analyzeCmd.Flags().String("output", "", "Artifact output directory")
	analyzeCmd.MarkFlagRequired("site")

	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(analyzeCmd)

	rootCmd.PersistentFlags().String("config", "", "Config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
