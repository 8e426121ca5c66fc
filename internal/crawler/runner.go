// Package crawler coordinates the capture-then-extract pipeline: it turns
// crawl targets into price records and search queries into discovered
// competitor listings.
package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pricewatch/pricewatch/internal/capture"
	"github.com/pricewatch/pricewatch/internal/logger"
	"github.com/pricewatch/pricewatch/internal/monitoring"
	"github.com/pricewatch/pricewatch/internal/vision"
)

// Capturer renders pages and produces screenshot artifacts.
type Capturer interface {
	CaptureProduct(ctx context.Context, targetURL, label string) (capture.Artifact, error)
	CaptureSearch(ctx context.Context, searchURL, label string) (capture.Page, error)
}

// Extractor turns a screenshot into structured product facts. It never
// fails: degraded extractions come back as products with zeroed price.
type Extractor interface {
	Extract(ctx context.Context, screenshotPath string) vision.Product
}

// Target is one competitor page to crawl.
type Target struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	URL        string `json:"url"`
	Competitor string `json:"competitor"`
}

// Record is the outcome of one successful crawl job: the extracted product
// facts plus the screenshot they came from.
type Record struct {
	TargetID       string         `json:"target_id"`
	Product        vision.Product `json:"product"`
	ScreenshotPath string         `json:"screenshot_path"`
	CrawledAt      time.Time      `json:"crawled_at"`
}

// JobError wraps a job failure with the target that caused it.
type JobError struct {
	Target Target
	Err    error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("crawl job for %s failed: %v", e.Target.URL, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// Job states, logged as each target moves through the pipeline.
const (
	stateNavigating  = "navigating"
	stateCapturing   = "capturing"
	stateExtracting  = "extracting"
	stateNormalizing = "normalizing"
	stateCompleted   = "completed"
	stateFailed      = "failed"
)

// Runner executes single crawl jobs.
type Runner struct {
	capturer  Capturer
	extractor Extractor
	metrics   *monitoring.Metrics
}

// NewRunner creates a job runner. metrics may be nil.
func NewRunner(capturer Capturer, extractor Extractor, metrics *monitoring.Metrics) *Runner {
	return &Runner{capturer: capturer, extractor: extractor, metrics: metrics}
}

// Run crawls one target: capture the page, extract product facts from the
// screenshot, stamp the record. Capture failures fail the job; extraction
// never does, a misbehaving model only degrades the record's fields.
func (r *Runner) Run(ctx context.Context, target Target) (Record, error) {
	if target.ID == "" {
		target.ID = uuid.NewString()
	}

	log := logger.With("target", target.ID, "url", target.URL, "competitor", target.Competitor)
	log.Debug("job state", "state", stateNavigating)

	captureStart := time.Now()
	log.Debug("job state", "state", stateCapturing)
	artifact, err := r.capturer.CaptureProduct(ctx, target.URL, captureLabel(target))
	if err != nil {
		r.metrics.JobOutcome("failed")
		log.Error("job state", "state", stateFailed, "error", err)
		return Record{}, &JobError{Target: target, Err: err}
	}
	r.metrics.ObserveCapture(time.Since(captureStart))

	extractStart := time.Now()
	log.Debug("job state", "state", stateExtracting, "screenshot", artifact.Path)
	product := r.extractor.Extract(ctx, artifact.Path)
	r.metrics.ObserveExtraction(time.Since(extractStart))

	log.Debug("job state", "state", stateNormalizing, "price", product.Price)
	outcome := "succeeded"
	if product.Price == 0 {
		outcome = "degraded"
	}
	r.metrics.JobOutcome(outcome)

	log.Info("job state", "state", stateCompleted,
		"name", product.Name,
		"price", product.Price,
		"currency", product.Currency)

	return Record{
		TargetID:       target.ID,
		Product:        product,
		ScreenshotPath: artifact.Path,
		CrawledAt:      artifact.CapturedAt,
	}, nil
}

// captureLabel builds a filesystem-safe artifact label for a target.
func captureLabel(target Target) string {
	if target.Competitor != "" {
		return fmt.Sprintf("%s_%s", target.Competitor, target.ID)
	}
	return target.ID
}
