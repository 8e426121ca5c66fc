package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pricewatch/pricewatch/internal/capture"
	"github.com/pricewatch/pricewatch/internal/crawler"
	"github.com/pricewatch/pricewatch/internal/logger"
	"github.com/pricewatch/pricewatch/internal/output"
	"github.com/pricewatch/pricewatch/internal/vision"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl competitor product pages and extract prices",
	Long: `Crawl one or more product URLs: each page is rendered in a headless
browser, screenshotted, and read by the vision model. Pages are visited
one at a time with a pause between them.

Examples:
  # Single page
  pricewatch crawl -u "https://shopee.vn/product/123"

  # Several pages, YAML output to a file
  pricewatch crawl -u "https://a.example/p/1" -u "https://b.example/p/2" \
      --format yaml -o records.yaml`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	flags := crawlCmd.Flags()

	flags.StringSliceP("url", "u", nil, "product URL(s) to crawl (can be repeated)")

	// Vision settings
	flags.StringP("provider", "p", "anthropic", "vision provider: anthropic, openai")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.String("base-url", "", "custom API base URL")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	// Capture settings
	flags.String("artifacts-dir", "screenshots", "directory for screenshot artifacts")
	flags.Duration("timeout", 60*time.Second, "per-page navigation timeout")
	flags.Duration("pacing", 3*time.Second, "pause between consecutive pages")

	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
}

func runCrawl(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("json_logs"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	urls, _ := cmd.Flags().GetStringSlice("url")
	if len(urls) == 0 {
		return cmd.Help()
	}

	artifactsDir, _ := cmd.Flags().GetString("artifacts-dir")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	pacing, _ := cmd.Flags().GetDuration("pacing")

	engine := capture.NewEngine(capture.Config{
		ArtifactsDir:   artifactsDir,
		ProductTimeout: timeout,
	})

	client, err := buildVisionClient()
	if err != nil {
		logError("%v", err)
		return err
	}

	runner := crawler.NewRunner(engine, client, nil)
	coord := crawler.NewCoordinator(runner, nil, nil, crawler.CoordinatorConfig{Pacing: pacing})

	writer, closeWriter, err := openWriter(cmd)
	if err != nil {
		return err
	}
	defer closeWriter()

	targets := make([]crawler.Target, len(urls))
	for i, u := range urls {
		targets[i] = crawler.Target{ID: fmt.Sprintf("cli-%d", i+1), URL: u}
	}

	errorCount := 0
	for outcome := range coord.RunBatch(ctx, targets) {
		if outcome.Err != nil {
			errorCount++
			logger.Error("crawl failed", "url", outcome.Target.URL, "error", outcome.Err)
			continue
		}
		if err := writer.Write(outcome.Record); err != nil {
			logger.Error("failed to write output", "error", err)
			return err
		}
	}

	logger.Info("crawl complete", "urls", len(urls), "errors", errorCount)
	return nil
}

// buildVisionClient creates the extraction client from viper settings.
func buildVisionClient() (*vision.Client, error) {
	name := viper.GetString("provider")
	cfg := vision.DefaultProviderConfig()
	cfg.APIKey = viper.GetString("api_key")
	cfg.Model = viper.GetString("model")
	cfg.BaseURL = viper.GetString("base_url")

	if cfg.APIKey == "" {
		switch name {
		case "anthropic":
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key for provider %s - set one via --api-key or env", name)
	}

	provider, err := vision.NewProvider(name, cfg)
	if err != nil {
		return nil, err
	}
	return vision.NewClient(provider, vision.ClientConfig{Timeout: cfg.Timeout}), nil
}

// openWriter sets up the output writer from command flags.
func openWriter(cmd *cobra.Command) (output.Writer, func(), error) {
	outFile := os.Stdout
	cleanup := func() {}
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logError("failed to create output file %s: %v", outPath, err)
			return nil, nil, err
		}
		outFile = f
		cleanup = func() { _ = f.Close() }
	}

	formatStr, _ := cmd.Flags().GetString("format")
	writer, err := output.NewWriter(outFile, output.Format(formatStr))
	if err != nil {
		cleanup()
		logError("%v", err)
		return nil, nil, err
	}

	closeAll := func() {
		_ = writer.Close()
		cleanup()
	}
	return writer, closeAll, nil
}
