package crawl

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobradar/seek-crawler/internal/extract"
)

type fakeSession struct {
	pages       []string
	current     int
	hasNext     bool
	waitErr     error
	navErr      error
	clickErr    error
	clicks      int
	navigations []string
	closed      bool
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigations = append(s.navigations, url)
	return s.navErr
}

func (s *fakeSession) WaitVisible(context.Context, string, time.Duration) error {
	return s.waitErr
}

func (s *fakeSession) HTML(context.Context) (string, error) {
	if s.current >= len(s.pages) {
		return "<html></html>", nil
	}
	return s.pages[s.current], nil
}

func (s *fakeSession) ClickFirstVisible(context.Context, []string) (bool, error) {
	if s.clickErr != nil {
		return false, s.clickErr
	}
	if !s.hasNext {
		return false, nil
	}
	s.clicks++
	s.current++
	return true, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func cardHTML(id int) string {
	return fmt.Sprintf(`<div data-search-sol-meta="%d">
	  <a data-automation="jobTitle" href="/job/%d">Listing %d</a>
	  <span data-automation="jobCompany">Acme</span>
	</div>`, id, id, id)
}

func newTestCrawler(t *testing.T, cfg Config) *Crawler {
	t.Helper()
	e, err := extract.New(extract.Config{
		BaseURL:        "https://www.seek.com.au",
		Classification: "Human Resources & Recruitment",
	}, zap.NewNop())
	require.NoError(t, err)
	return New(e, nil, nil, fixedClock{now: time.Unix(1000, 0)}, cfg, zap.NewNop())
}

func TestRun_TerminatesAfterOnePageWithoutNextControl(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		pages:   []string{"<html><body>" + cardHTML(1) + cardHTML(2) + "</body></html>"},
		hasNext: false,
	}
	c := newTestCrawler(t, Config{})

	result, err := c.Run(context.Background(), session, "job-1", "https://www.seek.com.au/jobs", 10)
	require.NoError(t, err)
	require.Equal(t, 1, result.Pages)
	require.Len(t, result.Accepted, 2)
	require.Zero(t, session.clicks)
}

func TestRun_StopsExactlyAtMaxPages(t *testing.T) {
	t.Parallel()

	pages := make([]string, 10)
	for i := range pages {
		pages[i] = "<html><body>" + cardHTML(i) + "</body></html>"
	}
	session := &fakeSession{pages: pages, hasNext: true}
	c := newTestCrawler(t, Config{})

	result, err := c.Run(context.Background(), session, "job-2", "https://www.seek.com.au/jobs", 3)
	require.NoError(t, err)
	require.Equal(t, 3, result.Pages)
	require.Len(t, result.Accepted, 3)
	// maxPages reached, so the control is never activated on the last page.
	require.Equal(t, 2, session.clicks)
}

func TestRun_WaitTimeoutEndsRunWithoutError(t *testing.T) {
	t.Parallel()

	session := &fakeSession{waitErr: errors.New("wait timed out")}
	c := newTestCrawler(t, Config{})

	result, err := c.Run(context.Background(), session, "job-3", "https://www.seek.com.au/jobs", 5)
	require.NoError(t, err)
	require.Zero(t, result.Pages)
	require.Empty(t, result.Accepted)
}

func TestRun_NavigateFailurePropagates(t *testing.T) {
	t.Parallel()

	session := &fakeSession{navErr: errors.New("browser gone")}
	c := newTestCrawler(t, Config{})

	_, err := c.Run(context.Background(), session, "job-4", "https://www.seek.com.au/jobs", 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "navigate")
}

func TestRun_NextClickFailureEndsRunNormally(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		pages:    []string{"<html><body>" + cardHTML(1) + "</body></html>"},
		clickErr: errors.New("stale element"),
	}
	c := newTestCrawler(t, Config{})

	result, err := c.Run(context.Background(), session, "job-5", "https://www.seek.com.au/jobs", 5)
	require.NoError(t, err)
	require.Equal(t, 1, result.Pages)
	require.Len(t, result.Accepted, 1)
}

func TestRun_ExcludedListingsNotAccumulated(t *testing.T) {
	t.Parallel()

	page := `<html><body>
	<div data-search-sol-meta="1">
	  <a data-automation="jobTitle" href="/job/1">Recruiter</a>
	  <span data-automation="jobCompany">Big Recruitment Agency</span>
	</div>
	<div data-search-sol-meta="2">
	  <a data-automation="jobTitle" href="/job/2">HR Advisor</a>
	  <span data-automation="jobCompany">Acme</span>
	</div>
	</body></html>`
	session := &fakeSession{pages: []string{page}}
	c := newTestCrawler(t, Config{})

	result, err := c.Run(context.Background(), session, "job-6", "https://www.seek.com.au/jobs", 1)
	require.NoError(t, err)
	require.Len(t, result.Accepted, 1)
	require.Equal(t, "HR Advisor", result.Accepted[0].Title)
}
