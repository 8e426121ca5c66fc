// Package capture renders pages in a headless browser and produces
// screenshot artifacts.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/dustin/go-humanize"

	"github.com/pricewatch/pricewatch/internal/logger"
)

// Artifact is one rendered page screenshot, persisted as a file.
type Artifact struct {
	URL        string    `json:"url"`
	Path       string    `json:"path"`
	CapturedAt time.Time `json:"captured_at"`
}

// Page is a rendered search page: its DOM snapshot plus a full-page
// screenshot artifact.
type Page struct {
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	HTML           string    `json:"-"`
	ScreenshotPath string    `json:"screenshot_path,omitempty"`
	CapturedAt     time.Time `json:"captured_at"`
}

// Error wraps any navigation, render, or screenshot failure with the URL
// that caused it.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture failed for %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config holds capture engine settings.
type Config struct {
	UserAgent      string
	ArtifactsDir   string
	ProductTimeout time.Duration // navigation timeout for product pages
	SearchTimeout  time.Duration // navigation timeout for search pages
	SettleDelay    time.Duration // extra wait after load for lazy content
	ProductWidth   int
	ProductHeight  int
	SearchWidth    int
	SearchHeight   int
	BlockResources bool // block stylesheets/images on search captures
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ArtifactsDir:   "screenshots",
		ProductTimeout: 60 * time.Second,
		SearchTimeout:  30 * time.Second,
		SettleDelay:    5 * time.Second,
		ProductWidth:   1280,
		ProductHeight:  800,
		SearchWidth:    1366,
		SearchHeight:   768,
		BlockResources: true,
	}
}

// blockedPatterns covers the sub-resources skipped on search captures. Only
// an optimization: search extraction reads the DOM, not the pixels.
var blockedPatterns = []string{"*.css", "*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.woff", "*.woff2"}

// Engine renders URLs in isolated browser sessions. Every call launches its
// own session and releases it on all exit paths; sessions are never shared
// or reused, so competitor sites cannot correlate crawler requests.
type Engine struct {
	cfg        Config
	newSession sessionFactory
}

// NewEngine creates a capture engine.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = def.ArtifactsDir
	}
	if cfg.ProductTimeout == 0 {
		cfg.ProductTimeout = def.ProductTimeout
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = def.SettleDelay
	}
	if cfg.ProductWidth == 0 || cfg.ProductHeight == 0 {
		cfg.ProductWidth, cfg.ProductHeight = def.ProductWidth, def.ProductHeight
	}
	if cfg.SearchWidth == 0 || cfg.SearchHeight == 0 {
		cfg.SearchWidth, cfg.SearchHeight = def.SearchWidth, def.SearchHeight
	}
	return &Engine{cfg: cfg, newSession: newChromedpSession}
}

// CaptureProduct navigates to a product URL, waits for the page to settle,
// and writes a viewport screenshot named after label.
func (e *Engine) CaptureProduct(ctx context.Context, targetURL, label string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, &Error{URL: targetURL, Err: err}
	}

	logger.Debug("capturing product page", "url", targetURL, "timeout", e.cfg.ProductTimeout)

	sess, err := e.newSession(e.cfg.UserAgent, e.cfg.ProductWidth, e.cfg.ProductHeight)
	if err != nil {
		return Artifact{}, fmt.Errorf("launching browser session: %w", err)
	}
	defer sess.Close()

	var shot []byte
	err = sess.Run(e.cfg.ProductTimeout,
		chromedp.Navigate(targetURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Sleep(e.cfg.SettleDelay),
		chromedp.CaptureScreenshot(&shot),
	)
	if err != nil {
		return Artifact{}, &Error{URL: targetURL, Err: err}
	}

	path, capturedAt, err := e.writeArtifact(label, shot)
	if err != nil {
		return Artifact{}, &Error{URL: targetURL, Err: err}
	}

	logger.Info("captured product page",
		"url", targetURL,
		"screenshot", path,
		"size", humanize.Bytes(uint64(len(shot))))

	return Artifact{URL: targetURL, Path: path, CapturedAt: capturedAt}, nil
}

// CaptureSearch navigates to a search results URL, waits for the DOM plus a
// settle delay (results often lazy-load via script), and returns the
// rendered HTML along with a full-page screenshot. Stylesheets and images
// are blocked when configured; blocking failures are tolerated.
func (e *Engine) CaptureSearch(ctx context.Context, searchURL, label string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, &Error{URL: searchURL, Err: err}
	}

	logger.Debug("capturing search page", "url", searchURL, "timeout", e.cfg.SearchTimeout)

	sess, err := e.newSession(e.cfg.UserAgent, e.cfg.SearchWidth, e.cfg.SearchHeight)
	if err != nil {
		return Page{}, fmt.Errorf("launching browser session: %w", err)
	}
	defer sess.Close()

	actions := []chromedp.Action{}
	if e.cfg.BlockResources {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := network.Enable().Do(ctx); err != nil {
				logger.Warn("network domain unavailable, not blocking sub-resources", "error", err)
				return nil
			}
			if err := network.SetBlockedURLs(blockedPatterns).Do(ctx); err != nil {
				logger.Warn("sub-resource blocking unsupported", "error", err)
			}
			return nil
		}))
	}

	var html, title string
	var shot []byte
	actions = append(actions,
		chromedp.Navigate(searchURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(e.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.FullScreenshot(&shot, 80),
	)

	if err := sess.Run(e.cfg.SearchTimeout, actions...); err != nil {
		return Page{}, &Error{URL: searchURL, Err: err}
	}

	path, capturedAt, err := e.writeArtifact(label, shot)
	if err != nil {
		return Page{}, &Error{URL: searchURL, Err: err}
	}

	logger.Info("captured search page",
		"url", searchURL,
		"title", title,
		"html_size", humanize.Bytes(uint64(len(html))),
		"screenshot", path)

	return Page{URL: searchURL, Title: title, HTML: html, ScreenshotPath: path, CapturedAt: capturedAt}, nil
}

// writeArtifact persists a screenshot under the artifacts directory,
// creating it on demand. Filenames carry the label plus a millisecond
// timestamp so concurrent batches never collide.
func (e *Engine) writeArtifact(label string, shot []byte) (string, time.Time, error) {
	if err := os.MkdirAll(e.cfg.ArtifactsDir, 0o755); err != nil {
		return "", time.Time{}, fmt.Errorf("creating artifacts dir: %w", err)
	}
	now := time.Now()
	path := filepath.Join(e.cfg.ArtifactsDir, fmt.Sprintf("%s_%d.png", label, now.UnixMilli()))
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		return "", time.Time{}, fmt.Errorf("writing screenshot: %w", err)
	}
	return path, now, nil
}
