package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/pricewatch/pricewatch/internal/logger"
)

// StaticFetcher retrieves search pages over plain HTTP, for environments
// without a usable browser. No screenshot is produced, so pages fetched
// this way can feed candidate extraction but not vision extraction.
type StaticFetcher struct {
	userAgent string
	timeout   time.Duration
}

// NewStaticFetcher creates a static fetcher.
func NewStaticFetcher(userAgent string, timeout time.Duration) *StaticFetcher {
	def := DefaultConfig()
	if userAgent == "" {
		userAgent = def.UserAgent
	}
	if timeout == 0 {
		timeout = def.SearchTimeout
	}
	return &StaticFetcher{userAgent: userAgent, timeout: timeout}
}

// FetchSearch retrieves a search results page without rendering it.
func (f *StaticFetcher) FetchSearch(ctx context.Context, searchURL string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, &Error{URL: searchURL, Err: err}
	}

	result := Page{URL: searchURL, CapturedAt: time.Now()}

	c := colly.NewCollector(colly.UserAgent(f.userAgent))
	c.SetRequestTimeout(f.timeout)

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result.HTML = string(r.Body)
	})

	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(searchURL); err != nil {
		return Page{}, &Error{URL: searchURL, Err: err}
	}
	if fetchErr != nil {
		return Page{}, &Error{URL: searchURL, Err: fetchErr}
	}
	if result.HTML == "" {
		return Page{}, &Error{URL: searchURL, Err: fmt.Errorf("empty response body")}
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.HTML)); err == nil {
		result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	logger.Debug("fetched search page statically", "url", searchURL, "html_size", len(result.HTML))
	return result, nil
}
