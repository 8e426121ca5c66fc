package commands

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pricewatch/pricewatch/internal/capture"
	"github.com/pricewatch/pricewatch/internal/crawler"
	"github.com/pricewatch/pricewatch/internal/logger"
	"github.com/pricewatch/pricewatch/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find competitor listings across marketplaces and crawl them",
	Long: `Search the supported platforms for a product, extract candidate
listings from the rendered results pages, and crawl each candidate like a
regular target.

Examples:
  # All platforms
  pricewatch search "iphone 15 pro case"

  # Shopee only, top 3 results
  pricewatch search "iphone 15 pro case" --platforms shopee --max-results 3`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	flags := searchCmd.Flags()

	flags.StringSlice("platforms", nil, "platforms to search: google, shopee, lazada (default: all)")
	flags.Int("max-results", 5, "max candidates crawled per platform")

	// Vision settings shared with crawl
	flags.StringP("provider", "p", "anthropic", "vision provider: anthropic, openai")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	// Capture settings
	flags.String("artifacts-dir", "screenshots", "directory for screenshot artifacts")
	flags.Duration("pacing", 3*time.Second, "pause between candidate crawls")
}

func runSearch(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("json_logs"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	query := args[0]
	platforms, _ := cmd.Flags().GetStringSlice("platforms")
	for _, p := range platforms {
		if !validPlatform(p) {
			logError("unknown platform %q (use: %s)", p, strings.Join(search.Platforms(), ", "))
			return cmd.Help()
		}
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	artifactsDir, _ := cmd.Flags().GetString("artifacts-dir")
	pacing, _ := cmd.Flags().GetDuration("pacing")

	// flags shared with crawl are bound there
	if key, _ := cmd.Flags().GetString("api-key"); key != "" {
		viper.Set("api_key", key)
	}
	if p, _ := cmd.Flags().GetString("provider"); p != "" {
		viper.Set("provider", p)
	}
	if m, _ := cmd.Flags().GetString("model"); m != "" {
		viper.Set("model", m)
	}

	engine := capture.NewEngine(capture.Config{ArtifactsDir: artifactsDir})

	client, err := buildVisionClient()
	if err != nil {
		logError("%v", err)
		return err
	}

	runner := crawler.NewRunner(engine, client, nil)
	searcher := crawler.NewSearcher(engine, runner, crawler.SearcherConfig{
		Pacing:     pacing,
		MaxResults: maxResults,
		Fallback:   capture.NewStaticFetcher("", 0),
	})

	writer, closeWriter, err := openWriter(cmd)
	if err != nil {
		return err
	}
	defer closeWriter()

	results, err := searcher.SearchAndCrawl(ctx, query, platforms)
	if err != nil {
		logger.Error("search crawl failed", "error", err)
		return err
	}

	errorCount := 0
	for _, result := range results {
		if result.Err != nil {
			errorCount++
			continue
		}
		if err := writer.Write(result); err != nil {
			logger.Error("failed to write output", "error", err)
			return err
		}
	}

	logger.Info("search complete", "query", query, "results", len(results), "errors", errorCount)
	return nil
}

func validPlatform(name string) bool {
	for _, p := range search.Platforms() {
		if p == name {
			return true
		}
	}
	return false
}
