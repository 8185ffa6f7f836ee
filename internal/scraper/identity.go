package scraper

import "strings"

// Identity returns the dedup key for a listing: its canonical URL.
func (l Listing) Identity() string {
	return l.URL
}

// ShortID derives a compact identifier from the canonical URL. Seek listing
// URLs end in /job/{id}; when that shape is absent the full URL is returned.
func (l Listing) ShortID() string {
	const marker = "/job/"
	idx := strings.LastIndex(l.URL, marker)
	if idx < 0 {
		return l.URL
	}
	id := l.URL[idx+len(marker):]
	if q := strings.IndexByte(id, '?'); q >= 0 {
		id = id[:q]
	}
	return id
}
