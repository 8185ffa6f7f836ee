// Package crawl drives a page-fetcher session across consecutive result pages.
package crawl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jobradar/seek-crawler/internal/extract"
	"github.com/jobradar/seek-crawler/internal/scraper"
)

// NextPageSelectors locate the next-page control, tried in order; the first
// visible match is clicked.
var NextPageSelectors = []string{
	`a[data-automation="page-next"]`,
	`a[aria-label="Next"]`,
	`a.next`,
	`[rel="next"]`,
}

// Config bounds a crawl run.
type Config struct {
	ListingSelector string
	NextSelectors   []string
	WaitTimeout     time.Duration
	SettleDelay     time.Duration
	PagesPerSecond  float64
}

// Crawler accumulates accepted listings across pages of one session.
type Crawler struct {
	extractor *extract.Extractor
	archive   scraper.BlobStore
	hasher    scraper.Hasher
	clock     scraper.Clock
	limiter   *rate.Limiter
	cfg       Config
	logger    *zap.Logger
}

// Result summarizes one run.
type Result struct {
	Accepted []scraper.Listing
	Pages    int
}

// New constructs a Crawler. archive may be nil to disable snapshots.
func New(
	extractor *extract.Extractor,
	archive scraper.BlobStore,
	hasher scraper.Hasher,
	clock scraper.Clock,
	cfg Config,
	logger *zap.Logger,
) *Crawler {
	if cfg.ListingSelector == "" {
		cfg.ListingSelector = extract.CardSelector
	}
	if len(cfg.NextSelectors) == 0 {
		cfg.NextSelectors = NextPageSelectors
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.PagesPerSecond > 0 {
		limit = rate.Limit(cfg.PagesPerSecond)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		extractor: extractor,
		archive:   archive,
		hasher:    hasher,
		clock:     clock,
		limiter:   rate.NewLimiter(limit, 1),
		cfg:       cfg,
		logger:    logger,
	}
}

// Run navigates to searchURL and walks result pages until maxPages is
// reached, no next-page control is found, or the listings container fails to
// appear. A wait timeout ends the run with whatever was accumulated; it is
// not an error.
func (c *Crawler) Run(
	ctx context.Context,
	session scraper.Session,
	jobID string,
	searchURL string,
	maxPages int,
) (Result, error) {
	result := Result{}

	if err := session.Navigate(ctx, searchURL); err != nil {
		return result, fmt.Errorf("navigate to search page: %w", err)
	}
	c.pause(ctx, c.cfg.SettleDelay)

	for page := 1; page <= maxPages; page++ {
		if err := session.WaitVisible(ctx, c.cfg.ListingSelector, c.cfg.WaitTimeout); err != nil {
			c.logger.Warn("timeout waiting for listings, ending run",
				zap.String("job_id", jobID), zap.Int("page", page), zap.Error(err))
			return result, nil
		}

		html, err := session.HTML(ctx)
		if err != nil {
			return result, fmt.Errorf("read page %d: %w", page, err)
		}
		result.Pages++

		c.archiveSnapshot(ctx, jobID, page, html)

		accepted, found := c.extractPage(html, page)
		result.Accepted = append(result.Accepted, accepted...)
		c.logger.Info("page scraped",
			zap.String("job_id", jobID),
			zap.Int("page", page),
			zap.Int("found", found),
			zap.Int("accepted", len(accepted)))

		if page == maxPages {
			break
		}

		clicked, err := session.ClickFirstVisible(ctx, c.cfg.NextSelectors)
		if err != nil {
			c.logger.Warn("next-page navigation failed, ending run",
				zap.String("job_id", jobID), zap.Int("page", page), zap.Error(err))
			break
		}
		if !clicked {
			c.logger.Info("no next-page control, ending run",
				zap.String("job_id", jobID), zap.Int("page", page))
			break
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("politeness wait: %w", err)
		}
		c.pause(ctx, c.cfg.SettleDelay)
	}

	return result, nil
}

func (c *Crawler) extractPage(html string, page int) (accepted []scraper.Listing, found int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.logger.Error("parse page failed", zap.Int("page", page), zap.Error(err))
		return nil, 0
	}
	candidates := c.extractor.Extract(doc, c.clock.Now())
	for _, listing := range candidates {
		if c.extractor.ShouldInclude(listing) {
			accepted = append(accepted, listing)
		} else {
			c.logger.Debug("listing excluded",
				zap.String("title", listing.Title), zap.String("subcategory", listing.Subcategory))
		}
	}
	return accepted, len(candidates)
}

// archiveSnapshot is best-effort; an archival failure never degrades the run.
func (c *Crawler) archiveSnapshot(ctx context.Context, jobID string, page int, html string) {
	if c.archive == nil {
		return
	}
	digest := ""
	if c.hasher != nil {
		if h, err := c.hasher.Hash([]byte(html)); err == nil {
			digest = h
		}
	}
	path := fmt.Sprintf("%s/page-%d-%s.html", jobID, page, digest)
	uri, err := c.archive.PutObject(ctx, path, "text/html; charset=utf-8", []byte(html))
	if err != nil {
		c.logger.Warn("snapshot archive failed",
			zap.String("job_id", jobID), zap.Int("page", page), zap.Error(err))
		return
	}
	c.logger.Debug("snapshot archived", zap.String("uri", uri))
}

func (c *Crawler) pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
