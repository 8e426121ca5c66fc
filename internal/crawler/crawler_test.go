package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/pricewatch/internal/capture"
	"github.com/pricewatch/pricewatch/internal/vision"
)

// fakeCapturer serves canned artifacts and fails for configured URLs.
type fakeCapturer struct {
	dir        string
	failURLs   map[string]error
	launchErr  error
	searchHTML string
	searchErr  error

	productCalls []string
	searchCalls  []string
}

func (f *fakeCapturer) CaptureProduct(_ context.Context, targetURL, label string) (capture.Artifact, error) {
	f.productCalls = append(f.productCalls, targetURL)
	if f.launchErr != nil {
		return capture.Artifact{}, fmt.Errorf("launching browser session: %w", f.launchErr)
	}
	if err, ok := f.failURLs[targetURL]; ok {
		return capture.Artifact{}, &capture.Error{URL: targetURL, Err: err}
	}
	path := filepath.Join(f.dir, label+".png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		return capture.Artifact{}, err
	}
	return capture.Artifact{URL: targetURL, Path: path, CapturedAt: time.Now()}, nil
}

func (f *fakeCapturer) CaptureSearch(_ context.Context, searchURL, label string) (capture.Page, error) {
	f.searchCalls = append(f.searchCalls, searchURL)
	if f.searchErr != nil {
		return capture.Page{}, &capture.Error{URL: searchURL, Err: f.searchErr}
	}
	return capture.Page{
		URL:        searchURL,
		Title:      "results",
		HTML:       f.searchHTML,
		CapturedAt: time.Now(),
	}, nil
}

// fakeExtractor returns a fixed product regardless of the screenshot.
type fakeExtractor struct {
	product vision.Product
	calls   int
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) vision.Product {
	f.calls++
	return f.product
}

// fakeProvider backs a real vision.Client for the end-to-end test.
type fakeProvider struct{ reply string }

func (p *fakeProvider) Describe(_ context.Context, _ string, _ []byte) (string, error) {
	return p.reply, nil
}

func (p *fakeProvider) Name() string { return "fake" }

// fakeStaticFetcher serves canned HTML over the plain-HTTP path.
type fakeStaticFetcher struct {
	html  string
	calls int
}

func (f *fakeStaticFetcher) FetchSearch(_ context.Context, searchURL string) (capture.Page, error) {
	f.calls++
	return capture.Page{URL: searchURL, HTML: f.html, CapturedAt: time.Now()}, nil
}

// fakeCooldown remembers marked URLs in-process.
type fakeCooldown struct {
	recent map[string]bool
	marked []string
	err    error
}

func (f *fakeCooldown) RecentlyCrawled(_ context.Context, url string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.recent[url], nil
}

func (f *fakeCooldown) MarkCrawled(_ context.Context, url string) error {
	f.marked = append(f.marked, url)
	return nil
}

func targetsN(n int) []Target {
	out := make([]Target, n)
	for i := range out {
		out[i] = Target{
			ID:         fmt.Sprintf("t%d", i),
			ProductID:  "p1",
			URL:        fmt.Sprintf("https://shop.example/item/%d", i),
			Competitor: "example",
		}
	}
	return out
}

func collect(ch <-chan Outcome) []Outcome {
	var out []Outcome
	for o := range ch {
		out = append(out, o)
	}
	return out
}

func TestRunner_Run_Success(t *testing.T) {
	cap := &fakeCapturer{dir: t.TempDir()}
	ext := &fakeExtractor{product: vision.Product{Name: "Widget", Price: 100, Currency: "VND"}}
	runner := NewRunner(cap, ext, nil)

	record, err := runner.Run(context.Background(), targetsN(1)[0])
	require.NoError(t, err)

	assert.Equal(t, "t0", record.TargetID)
	assert.Equal(t, "Widget", record.Product.Name)
	assert.NotEmpty(t, record.ScreenshotPath)
	assert.False(t, record.CrawledAt.IsZero())
	assert.Equal(t, 1, ext.calls)
}

func TestRunner_Run_CaptureFailureFailsJob(t *testing.T) {
	boom := errors.New("net::ERR_TIMED_OUT")
	cap := &fakeCapturer{
		dir:      t.TempDir(),
		failURLs: map[string]error{"https://shop.example/item/0": boom},
	}
	ext := &fakeExtractor{}
	runner := NewRunner(cap, ext, nil)

	_, err := runner.Run(context.Background(), targetsN(1)[0])
	require.Error(t, err)

	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "t0", jobErr.Target.ID)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, ext.calls, "extraction must not run without a screenshot")
}

func TestRunner_Run_AssignsMissingID(t *testing.T) {
	cap := &fakeCapturer{dir: t.TempDir()}
	runner := NewRunner(cap, &fakeExtractor{}, nil)

	record, err := runner.Run(context.Background(), Target{URL: "https://shop.example/x"})
	require.NoError(t, err)
	assert.NotEmpty(t, record.TargetID)
}

func TestRunBatch_OneOutcomePerTargetWithFailures(t *testing.T) {
	targets := targetsN(4)
	boom := errors.New("navigation timeout")
	cap := &fakeCapturer{
		dir:      t.TempDir(),
		failURLs: map[string]error{targets[2].URL: boom},
	}
	runner := NewRunner(cap, &fakeExtractor{product: vision.Product{Name: "Widget", Price: 5}}, nil)
	coord := NewCoordinator(runner, nil, nil, CoordinatorConfig{Pacing: time.Millisecond})

	outcomes := collect(coord.RunBatch(context.Background(), targets))
	require.Len(t, outcomes, len(targets))

	for i, o := range outcomes {
		assert.Equal(t, targets[i].ID, o.Target.ID, "outcomes must preserve batch order")
		if i == 2 {
			require.Error(t, o.Err)
			assert.ErrorIs(t, o.Err, boom)
			assert.Nil(t, o.Record)
		} else {
			require.NoError(t, o.Err)
			require.NotNil(t, o.Record)
			assert.Equal(t, "Widget", o.Record.Product.Name)
		}
	}
}

func TestRunBatch_SequentialPacing(t *testing.T) {
	targets := targetsN(3)
	pacing := 30 * time.Millisecond
	cap := &fakeCapturer{dir: t.TempDir()}
	runner := NewRunner(cap, &fakeExtractor{}, nil)
	coord := NewCoordinator(runner, nil, nil, CoordinatorConfig{Pacing: pacing})

	start := time.Now()
	outcomes := collect(coord.RunBatch(context.Background(), targets))
	elapsed := time.Since(start)

	require.Len(t, outcomes, len(targets))
	assert.GreaterOrEqual(t, elapsed, time.Duration(len(targets)-1)*pacing,
		"batch must pause between consecutive jobs")
}

func TestRunBatch_CooldownSkips(t *testing.T) {
	targets := targetsN(3)
	cooldown := &fakeCooldown{recent: map[string]bool{targets[1].URL: true}}
	cap := &fakeCapturer{dir: t.TempDir()}
	runner := NewRunner(cap, &fakeExtractor{}, nil)
	coord := NewCoordinator(runner, cooldown, nil, CoordinatorConfig{Pacing: time.Millisecond})

	outcomes := collect(coord.RunBatch(context.Background(), targets))
	require.Len(t, outcomes, 3)

	assert.True(t, outcomes[1].Skipped)
	assert.Nil(t, outcomes[1].Record)
	assert.NoError(t, outcomes[1].Err)
	assert.Len(t, cap.productCalls, 2, "skipped targets must not reach the browser")
	assert.ElementsMatch(t, []string{targets[0].URL, targets[2].URL}, cooldown.marked)
}

func TestRunBatch_CooldownLookupFailureCrawlsAnyway(t *testing.T) {
	targets := targetsN(1)
	cooldown := &fakeCooldown{err: errors.New("redis down")}
	cap := &fakeCapturer{dir: t.TempDir()}
	runner := NewRunner(cap, &fakeExtractor{}, nil)
	coord := NewCoordinator(runner, cooldown, nil, CoordinatorConfig{Pacing: time.Millisecond})

	outcomes := collect(coord.RunBatch(context.Background(), targets))
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Skipped)
	require.NotNil(t, outcomes[0].Record)
}

func TestRunBatch_LaunchFaultAbortsBatch(t *testing.T) {
	targets := targetsN(3)
	cap := &fakeCapturer{dir: t.TempDir(), launchErr: errors.New("no chrome binary")}
	runner := NewRunner(cap, &fakeExtractor{}, nil)
	coord := NewCoordinator(runner, nil, nil, CoordinatorConfig{Pacing: time.Millisecond})

	outcomes := collect(coord.RunBatch(context.Background(), targets))
	require.Len(t, outcomes, len(targets), "aborted batches still emit one outcome per target")
	for _, o := range outcomes {
		require.Error(t, o.Err)
	}
	assert.Len(t, cap.productCalls, 1, "no new jobs after the browser proves unavailable")
}

func TestRunBatch_CancelledContextDrainsRemaining(t *testing.T) {
	targets := targetsN(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cap := &fakeCapturer{dir: t.TempDir()}
	runner := NewRunner(cap, &fakeExtractor{}, nil)
	coord := NewCoordinator(runner, nil, nil, CoordinatorConfig{Pacing: time.Millisecond})

	outcomes := collect(coord.RunBatch(ctx, targets))
	require.Len(t, outcomes, len(targets), "every target still gets an outcome")
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
	assert.Empty(t, cap.productCalls)
}

// End to end through the real vision client: a fenced model reply with a
// dotted-thousands price comes out of the pipeline normalized.
func TestPipeline_EndToEnd_PriceNormalized(t *testing.T) {
	cap := &fakeCapturer{dir: t.TempDir()}
	client := vision.NewClient(&fakeProvider{
		reply: "```json\n{\"name\":\"Widget\",\"price\":\"299.000\",\"sku\":\"W1\"}\n```",
	}, vision.ClientConfig{})
	runner := NewRunner(cap, client, nil)

	record, err := runner.Run(context.Background(), targetsN(1)[0])
	require.NoError(t, err)

	assert.Equal(t, "Widget", record.Product.Name)
	assert.Equal(t, "W1", record.Product.SKU)
	assert.Equal(t, float64(299000), record.Product.Price)
	assert.Equal(t, "VND", record.Product.Currency)
}

const searchResultsHTML = `<html><body><div id="search">
<div class="g"><a href="https://shopee.vn/product/123"><h3>Widget on Shopee</h3></a></div>
<div class="g"><a href="https://www.lazada.vn/products/widget-456.html"><h3>Widget on Lazada</h3></a></div>
</div></body></html>`

func TestSearchAndCrawl_DiscoversAndCrawlsCandidates(t *testing.T) {
	cap := &fakeCapturer{dir: t.TempDir(), searchHTML: searchResultsHTML}
	runner := NewRunner(cap, &fakeExtractor{product: vision.Product{Name: "Widget", Price: 100}}, nil)
	searcher := NewSearcher(cap, runner, SearcherConfig{Pacing: time.Millisecond})

	results, err := searcher.SearchAndCrawl(context.Background(), "widget", []string{"google"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Len(t, cap.searchCalls, 1)
	assert.Contains(t, cap.searchCalls[0], "google.com/search")

	for _, r := range results {
		assert.Equal(t, "widget", r.Query)
		assert.Equal(t, "google", r.Platform)
		require.NotNil(t, r.Record)
		assert.Equal(t, "Widget", r.Record.Product.Name)
	}
	assert.Equal(t, "shopee", results[0].Candidate.Platform)
	assert.Equal(t, "lazada", results[1].Candidate.Platform)
}

func TestSearchAndCrawl_StaticFallbackOnCaptureFailure(t *testing.T) {
	cap := &fakeCapturer{dir: t.TempDir(), searchErr: errors.New("browser gone")}
	fallback := &fakeStaticFetcher{html: searchResultsHTML}
	runner := NewRunner(cap, &fakeExtractor{product: vision.Product{Name: "Widget", Price: 100}}, nil)
	searcher := NewSearcher(cap, runner, SearcherConfig{Pacing: time.Millisecond, Fallback: fallback})

	results, err := searcher.SearchAndCrawl(context.Background(), "widget", []string{"google"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, fallback.calls)
}

func TestSearchAndCrawl_PlatformFailureSkipped(t *testing.T) {
	cap := &fakeCapturer{dir: t.TempDir(), searchErr: errors.New("blocked")}
	runner := NewRunner(cap, &fakeExtractor{}, nil)
	searcher := NewSearcher(cap, runner, SearcherConfig{Pacing: time.Millisecond})

	results, err := searcher.SearchAndCrawl(context.Background(), "widget", []string{"google", "shopee"})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Len(t, cap.searchCalls, 2, "one platform failing must not stop the others")
}

func TestSearchAndCrawl_EmptyQueryRejected(t *testing.T) {
	searcher := NewSearcher(&fakeCapturer{dir: t.TempDir()}, NewRunner(&fakeCapturer{dir: t.TempDir()}, &fakeExtractor{}, nil), SearcherConfig{})
	_, err := searcher.SearchAndCrawl(context.Background(), "", nil)
	require.Error(t, err)
}

func TestSearchAndCrawl_CandidateFailureSurfacesPerResult(t *testing.T) {
	boom := errors.New("timeout")
	cap := &fakeCapturer{
		dir:        t.TempDir(),
		searchHTML: searchResultsHTML,
		failURLs:   map[string]error{"https://shopee.vn/product/123": boom},
	}
	runner := NewRunner(cap, &fakeExtractor{}, nil)
	searcher := NewSearcher(cap, runner, SearcherConfig{Pacing: time.Millisecond})

	results, err := searcher.SearchAndCrawl(context.Background(), "widget", []string{"google"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Error(t, results[0].Err)
	assert.True(t, strings.Contains(results[0].Err.Error(), "timeout"))
	assert.Nil(t, results[0].Record)
	require.NotNil(t, results[1].Record)
}
