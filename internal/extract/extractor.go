// Package extract parses listing search-result pages into candidate records.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

// CardSelector matches one listing card in a search-result page.
const CardSelector = `[data-search-sol-meta]`

// Per-field lookup strategies, tried in order; the first selector yielding a
// non-empty result wins. The markup drifts between site releases, so each
// field carries the shapes observed so far.
var (
	titleSelectors = []string{
		`a[data-job-id]`,
		`a[data-automation="jobTitle"]`,
		`a[href*="/job/"]`,
		`h3 a`,
		`article a`,
	}
	companySelectors = []string{
		`[data-automation="jobCompany"]`,
		`[data-automation="advertiser-name"]`,
		`span[data-automation*="company"]`,
		`span[data-automation*="advertiser"]`,
	}
	locationSelectors = []string{
		`[data-automation="jobLocation"]`,
		`[data-automation="job-location"]`,
		`span[data-automation*="location"]`,
	}
	salarySelectors = []string{
		`[data-automation="jobSalary"]`,
		`[data-automation="job-salary"]`,
		`span[data-automation*="salary"]`,
	}
	subcategorySelectors = []string{
		`[data-automation="jobClassification"]`,
		`[data-automation="job-classification"]`,
		`span[data-automation*="classification"]`,
	}
	postedDateSelectors = []string{
		`[data-automation="jobListingDate"]`,
		`[data-automation="job-listing-date"]`,
		`span[data-automation*="date"]`,
		`time`,
	}
	descriptionSelectors = []string{
		`[data-automation="jobShortDescription"]`,
		`[data-automation="job-short-description"]`,
		`p[data-automation*="description"]`,
		`div[data-automation*="snippet"]`,
	}
)

// Fallbacks for fields that tolerate absence.
const (
	fallbackUnknown  = "Unknown"
	fallbackRecently = "Recently"
)

// Config parameterizes extraction and filtering.
type Config struct {
	BaseURL               string
	Classification        string
	ExcludedSubcategories []string
	ExcludedCompanies     []string
}

// Extractor turns a rendered search-result document into candidate listings.
type Extractor struct {
	cfg    Config
	base   *url.URL
	logger *zap.Logger
}

// New builds an Extractor. The base URL must parse; it anchors relative hrefs.
func New(cfg Config, logger *zap.Logger) (*Extractor, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, base: base, logger: logger}, nil
}

// Extract returns one candidate Listing per parseable card in doc. Cards with
// no title link are skipped with a logged reason; a bad card never aborts the
// page.
func (e *Extractor) Extract(doc *goquery.Document, now time.Time) []scraper.Listing {
	var listings []scraper.Listing
	doc.Find(CardSelector).Each(func(i int, card *goquery.Selection) {
		listing, ok := e.extractCard(card, now)
		if !ok {
			return
		}
		listings = append(listings, listing)
	})
	return listings
}

func (e *Extractor) extractCard(card *goquery.Selection, now time.Time) (scraper.Listing, bool) {
	titleElem := firstMatch(card, titleSelectors)
	if titleElem == nil {
		e.logger.Debug("no title element in card, skipping")
		return scraper.Listing{}, false
	}
	title := strings.TrimSpace(titleElem.Text())
	href, _ := titleElem.Attr("href")
	if title == "" || href == "" {
		e.logger.Debug("card missing title text or href, skipping", zap.String("title", title))
		return scraper.Listing{}, false
	}

	return scraper.Listing{
		Title:          title,
		Company:        textOrFallback(card, companySelectors, fallbackUnknown),
		Location:       textOrFallback(card, locationSelectors, fallbackUnknown),
		Classification: e.cfg.Classification,
		Subcategory:    textOrFallback(card, subcategorySelectors, fallbackUnknown),
		URL:            e.resolveURL(href),
		PostedDate:     textOrFallback(card, postedDateSelectors, fallbackRecently),
		Salary:         textOrFallback(card, salarySelectors, ""),
		Description:    textOrFallback(card, descriptionSelectors, ""),
		ScrapedAt:      now,
	}, true
}

// ShouldInclude applies the exclusion rules in order; the first match rejects.
func (e *Extractor) ShouldInclude(l scraper.Listing) bool {
	sub := strings.ToLower(l.Subcategory)
	for _, excluded := range e.cfg.ExcludedSubcategories {
		if strings.Contains(sub, strings.ToLower(excluded)) {
			e.logger.Debug("excluded by subcategory",
				zap.String("subcategory", excluded), zap.String("title", l.Title))
			return false
		}
	}

	company := strings.ToLower(l.Company)
	if strings.Contains(company, "recruitment") && strings.Contains(company, "agency") {
		e.logger.Debug("excluded by recruitment+agency keywords",
			zap.String("title", l.Title), zap.String("company", l.Company))
		return false
	}

	for _, excluded := range e.cfg.ExcludedCompanies {
		if strings.Contains(company, strings.ToLower(excluded)) {
			e.logger.Debug("excluded by company",
				zap.String("company", excluded), zap.String("title", l.Title))
			return false
		}
	}

	return true
}

func (e *Extractor) resolveURL(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return e.base.ResolveReference(ref).String()
}

func firstMatch(card *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := card.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func textOrFallback(card *goquery.Selection, selectors []string, fallback string) string {
	for _, sel := range selectors {
		if found := card.Find(sel).First(); found.Length() > 0 {
			if text := strings.TrimSpace(found.Text()); text != "" {
				return text
			}
		}
	}
	return fallback
}
