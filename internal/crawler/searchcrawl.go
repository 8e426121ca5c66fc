package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pricewatch/pricewatch/internal/capture"
	"github.com/pricewatch/pricewatch/internal/logger"
	"github.com/pricewatch/pricewatch/internal/search"
)

// SearchResult is one competitor listing discovered and crawled from a
// search query.
type SearchResult struct {
	Query          string           `json:"query"`
	Platform       string           `json:"platform"`
	Candidate      search.Candidate `json:"candidate"`
	Record         *Record          `json:"record,omitempty"`
	Err            error            `json:"-"`
	DiscoveredAt   time.Time        `json:"discovered_at"`
	SearchShotPath string           `json:"search_screenshot,omitempty"`
}

// StaticFetcher retrieves a search page over plain HTTP when browser
// rendering fails. The result carries HTML but no screenshot.
type StaticFetcher interface {
	FetchSearch(ctx context.Context, searchURL string) (capture.Page, error)
}

// Searcher runs discovery crawls: search each platform for a query, pick
// product candidates off the results page, then crawl each candidate as a
// regular job.
type Searcher struct {
	capturer   Capturer
	fallback   StaticFetcher
	runner     *Runner
	pacing     time.Duration
	maxResults int
}

// SearcherConfig holds discovery settings.
type SearcherConfig struct {
	Pacing     time.Duration // pause between candidate crawls
	MaxResults int           // candidates kept per platform
	Fallback   StaticFetcher // optional plain-HTTP fallback for search pages
}

// NewSearcher creates a discovery crawler.
func NewSearcher(capturer Capturer, runner *Runner, cfg SearcherConfig) *Searcher {
	if cfg.Pacing == 0 {
		cfg.Pacing = DefaultPacing
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &Searcher{
		capturer:   capturer,
		fallback:   cfg.Fallback,
		runner:     runner,
		pacing:     cfg.Pacing,
		maxResults: cfg.MaxResults,
	}
}

// SearchAndCrawl searches each platform for query, extracts product
// candidates from the rendered results, and crawls every candidate.
// Platform failures are logged and skipped; candidate crawl failures
// surface as per-result errors. Passing no platforms searches all of them.
func (s *Searcher) SearchAndCrawl(ctx context.Context, query string, platforms []string) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if len(platforms) == 0 {
		platforms = search.Platforms()
	}

	logger.Info("starting search crawl", "query", query, "platforms", platforms)

	var results []SearchResult
	for _, platform := range platforms {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		platformResults, err := s.searchPlatform(ctx, query, platform)
		if err != nil {
			logger.Warn("platform search failed, continuing", "platform", platform, "error", err)
			continue
		}
		results = append(results, platformResults...)
	}

	logger.Info("search crawl finished", "query", query, "results", len(results))
	return results, nil
}

func (s *Searcher) searchPlatform(ctx context.Context, query, platform string) ([]SearchResult, error) {
	pageURL, err := search.PageURL(platform, query)
	if err != nil {
		return nil, err
	}

	page, err := s.capturer.CaptureSearch(ctx, pageURL, fmt.Sprintf("search_%s", platform))
	if err != nil {
		if s.fallback == nil {
			return nil, err
		}
		logger.Warn("browser search capture failed, retrying statically", "platform", platform, "error", err)
		page, err = s.fallback.FetchSearch(ctx, pageURL)
		if err != nil {
			return nil, err
		}
	}

	candidates := search.ExtractCandidates(page.HTML, platform, s.maxResults, query)
	logger.Info("search page processed", "platform", platform, "title", page.Title, "candidates", len(candidates))

	var results []SearchResult
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := SearchResult{
			Query:          query,
			Platform:       platform,
			Candidate:      candidate,
			DiscoveredAt:   page.CapturedAt,
			SearchShotPath: page.ScreenshotPath,
		}

		record, err := s.runner.Run(ctx, Target{
			ID:         uuid.NewString(),
			URL:        candidate.URL,
			Competitor: candidate.Platform,
		})
		if err != nil {
			result.Err = err
		} else {
			result.Record = &record
		}
		results = append(results, result)

		if i < len(candidates)-1 {
			select {
			case <-time.After(s.pacing):
			case <-ctx.Done():
			}
		}
	}
	return results, nil
}
