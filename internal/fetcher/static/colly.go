// Package static implements a page fetcher over plain HTTP using Colly. It
// serves listing pages that render server-side; sites that require JavaScript
// need the headless fetcher instead.
package static

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements scraper.PageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// NewSession returns an independent session backed by a cloned collector.
func (f *Fetcher) NewSession(_ context.Context) (scraper.Session, error) {
	return &session{collector: f.baseCollector.Clone()}, nil
}

// session holds the most recently fetched document. Static pages arrive
// fully rendered, so waits are membership checks and "clicking" a control
// means following its href.
type session struct {
	collector *colly.Collector

	mu      sync.Mutex
	doc     *goquery.Document
	html    string
	current *url.URL
}

func (s *session) Navigate(_ context.Context, rawURL string) error {
	var (
		body     []byte
		fetchErr error
	)
	c := s.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(rawURL); err != nil {
		return fmt.Errorf("visit %s: %w", rawURL, err)
	}
	c.Wait()
	if fetchErr != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("parse %s: %w", rawURL, err)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url %s: %w", rawURL, err)
	}

	s.mu.Lock()
	s.doc = doc
	s.html = string(body)
	s.current = parsed
	s.mu.Unlock()
	return nil
}

func (s *session) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return fmt.Errorf("no document loaded")
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("selector %s not present", selector)
	}
	return nil
}

func (s *session) HTML(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return "", fmt.Errorf("no document loaded")
	}
	return s.html, nil
}

func (s *session) ClickFirstVisible(ctx context.Context, selectors []string) (bool, error) {
	s.mu.Lock()
	doc := s.doc
	current := s.current
	s.mu.Unlock()
	if doc == nil {
		return false, fmt.Errorf("no document loaded")
	}

	for _, selector := range selectors {
		elem := doc.Find(selector).First()
		if elem.Length() == 0 {
			continue
		}
		href, ok := elem.Attr("href")
		if !ok || href == "" {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		next := current.ResolveReference(ref).String()
		if err := s.Navigate(ctx, next); err != nil {
			return false, fmt.Errorf("follow next-page link: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func (s *session) Close() error {
	return nil
}
