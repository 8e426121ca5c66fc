package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/pricewatch/pricewatch/internal/capture"
	"github.com/pricewatch/pricewatch/internal/logger"
	"github.com/pricewatch/pricewatch/internal/monitoring"
)

// Outcome is the per-target result of a batch run. Exactly one of Record
// and Err is set, except for skipped targets where both are nil.
type Outcome struct {
	Target  Target  `json:"target"`
	Record  *Record `json:"record,omitempty"`
	Err     error   `json:"-"`
	Skipped bool    `json:"skipped,omitempty"`
}

// Cooldown suppresses repeat crawls of recently-visited URLs. Optional on
// the coordinator; a nil Cooldown disables suppression.
type Cooldown interface {
	RecentlyCrawled(ctx context.Context, url string) (bool, error)
	MarkCrawled(ctx context.Context, url string) error
}

// Coordinator runs batches of crawl jobs strictly one at a time with a
// pause between jobs. Sequencing is deliberate: a burst of parallel
// headless-browser sessions against the same marketplace reads as bot
// traffic and draws blocks.
type Coordinator struct {
	runner   *Runner
	cooldown Cooldown
	pacing   time.Duration
	metrics  *monitoring.Metrics
}

// CoordinatorConfig holds batch settings.
type CoordinatorConfig struct {
	Pacing time.Duration // pause between consecutive jobs
}

// DefaultPacing is the pause between consecutive crawl jobs.
const DefaultPacing = 3 * time.Second

// NewCoordinator creates a batch coordinator. cooldown and metrics may be
// nil.
func NewCoordinator(runner *Runner, cooldown Cooldown, metrics *monitoring.Metrics, cfg CoordinatorConfig) *Coordinator {
	if cfg.Pacing == 0 {
		cfg.Pacing = DefaultPacing
	}
	return &Coordinator{runner: runner, cooldown: cooldown, pacing: cfg.Pacing, metrics: metrics}
}

// RunBatch crawls the targets sequentially, pausing between jobs, and
// streams one Outcome per target. A failed job never stops the batch. The
// channel closes after the last outcome; cancelling ctx stops the batch
// early, emitting failed outcomes for the targets not reached.
func (c *Coordinator) RunBatch(ctx context.Context, targets []Target) <-chan Outcome {
	out := make(chan Outcome, len(targets))

	c.metrics.SetBatchSize(len(targets))
	logger.Info("starting crawl batch", "targets", len(targets), "pacing", c.pacing)

	go func() {
		defer close(out)

		for i, target := range targets {
			if err := ctx.Err(); err != nil {
				out <- Outcome{Target: target, Err: &JobError{Target: target, Err: err}}
				continue
			}

			if c.skip(ctx, target) {
				c.metrics.JobOutcome("skipped")
				logger.Debug("target on cooldown, skipping", "url", target.URL)
				out <- Outcome{Target: target, Skipped: true}
				continue
			}

			record, err := c.runner.Run(ctx, target)
			if err != nil {
				out <- Outcome{Target: target, Err: err}

				// A per-target capture failure stays per-target, but a
				// browser that cannot launch at all will fail every
				// remaining job too. Stop starting new ones.
				if isInfrastructureFault(err) {
					logger.Error("browser unavailable, aborting batch", "error", err)
					for _, rest := range targets[i+1:] {
						out <- Outcome{Target: rest, Err: &JobError{Target: rest, Err: err}}
					}
					return
				}
			} else {
				c.mark(ctx, target)
				out <- Outcome{Target: target, Record: &record}
			}

			if i < len(targets)-1 {
				select {
				case <-time.After(c.pacing):
				case <-ctx.Done():
				}
			}
		}

		logger.Info("crawl batch finished", "targets", len(targets))
	}()

	return out
}

// isInfrastructureFault reports whether a job error is a session-launch
// fault rather than a page-level capture failure or cancellation.
func isInfrastructureFault(err error) bool {
	var capErr *capture.Error
	if errors.As(err, &capErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Coordinator) skip(ctx context.Context, target Target) bool {
	if c.cooldown == nil {
		return false
	}
	recent, err := c.cooldown.RecentlyCrawled(ctx, target.URL)
	if err != nil {
		logger.Warn("cooldown lookup failed, crawling anyway", "url", target.URL, "error", err)
		return false
	}
	return recent
}

func (c *Coordinator) mark(ctx context.Context, target Target) {
	if c.cooldown == nil {
		return
	}
	if err := c.cooldown.MarkCrawled(ctx, target.URL); err != nil {
		logger.Warn("cooldown mark failed", "url", target.URL, "error", err)
	}
}
