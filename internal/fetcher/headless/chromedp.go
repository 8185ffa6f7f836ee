// Package headless provides a page fetcher that renders JavaScript via
// headless Chrome.
package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel int
	UserAgent   string
	NavTimeout  time.Duration
}

// Fetcher implements scraper.PageFetcher using chromedp. One browser process
// is shared; each session is an isolated tab.
type Fetcher struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a headless fetcher backed by chromedp.
func New(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, tearing down the browser.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// NewSession opens a browser tab, waiting for a parallelism slot if a limit
// is configured.
func (f *Fetcher) NewSession(ctx context.Context) (scraper.Session, error) {
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(f.allocator)
	return &session{
		fetcher: f,
		ctx:     tabCtx,
		cancel:  tabCancel,
	}, nil
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

type session struct {
	fetcher *Fetcher
	ctx     context.Context
	cancel  context.CancelFunc
}

// Navigate loads url in the tab and waits for the body to become ready.
func (s *session) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.opContext(ctx, s.fetcher.cfg.NavTimeout)
	defer cancel()

	actions := []chromedp.Action{
		s.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until selector is visible or the timeout elapses.
func (s *session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	runCtx, cancel := s.opContext(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// HTML returns the fully rendered DOM.
func (s *session) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := s.opContext(ctx, s.fetcher.cfg.NavTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read rendered html: %w", err)
	}
	return html, nil
}

// ClickFirstVisible tries each selector under a short deadline; a selector
// that is absent or hidden simply times out and the next one is tried. After
// a successful click the session waits for the new document to become ready.
func (s *session) ClickFirstVisible(ctx context.Context, selectors []string) (bool, error) {
	for _, selector := range selectors {
		clickCtx, cancel := s.opContext(ctx, 3*time.Second)
		err := chromedp.Run(clickCtx,
			chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		)
		cancel()
		if err != nil {
			continue
		}

		loadCtx, loadCancel := s.opContext(ctx, s.fetcher.cfg.NavTimeout)
		err = chromedp.Run(loadCtx, chromedp.WaitReady("body", chromedp.ByQuery))
		loadCancel()
		if err != nil {
			return true, fmt.Errorf("wait for next page: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// Close releases the tab and its parallelism slot.
func (s *session) Close() error {
	s.cancel()
	s.fetcher.release()
	return nil
}

// opContext bounds one chromedp operation by both the caller's context and a
// per-wait timeout. chromedp actions must run on a context derived from the
// tab context, so the caller's cancellation is bridged manually.
func (s *session) opContext(caller context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(caller, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *session) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if ua := s.fetcher.cfg.UserAgent; ua != "" {
			if err := emulation.SetUserAgentOverride(ua).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}
