package capture

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

// session is one isolated browser lifetime. Close must be safe to call on
// every exit path; a leaked session is a resource bug.
type session interface {
	Run(timeout time.Duration, actions ...chromedp.Action) error
	Close()
}

type sessionFactory func(userAgent string, width, height int) (session, error)

// chromedpSession owns a dedicated exec allocator and browser context.
// Nothing is shared between sessions.
type chromedpSession struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func newChromedpSession(userAgent string, width, height int) (session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(width, height),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	return &chromedpSession{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

func (s *chromedpSession) Run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (s *chromedpSession) Close() {
	s.cancelBrowser()
	s.cancelAlloc()
}
