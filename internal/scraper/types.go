// Package scraper defines core types shared across subsystems.
package scraper

import "time"

// JobStatus represents the lifecycle state of a scrape job.
type JobStatus string

// Job status values tracked by the orchestrator.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Listing is one captured job advertisement. Identity is the canonical URL:
// two listings with the same URL are the same entity regardless of other
// field differences.
type Listing struct {
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Location       string    `json:"location"`
	Classification string    `json:"classification"`
	Subcategory    string    `json:"subcategory"`
	URL            string    `json:"job_url"`
	PostedDate     string    `json:"posted_date,omitempty"`
	Salary         string    `json:"salary,omitempty"`
	JobType        string    `json:"job_type,omitempty"`
	Description    string    `json:"description,omitempty"`
	ScrapedAt      time.Time `json:"scraped_at"`
}

// ScrapeParameters captures per-run configuration knobs requested by the client.
type ScrapeParameters struct {
	SearchURL string `json:"search_url,omitempty"`
	MaxPages  int    `json:"max_pages,omitempty"`
	Headless  bool   `json:"headless"`
}

// ScrapeJob represents the metadata for one orchestration run.
type ScrapeJob struct {
	ID          string           `json:"job_id"`
	Status      JobStatus        `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	JobsFound   int              `json:"jobs_found"`
	JobsNew     int              `json:"jobs_new"`
	ErrorText   string           `json:"error,omitempty"`
	Parameters  ScrapeParameters `json:"parameters"`
	Results     []Listing        `json:"results,omitempty"`
}

// WebhookSubscription is a registered notification target.
type WebhookSubscription struct {
	ID          string    `json:"webhook_id"`
	URL         string    `json:"webhook_url"`
	Events      []string  `json:"events"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Webhook event names.
const (
	EventScrapeCompleted = "scrape.completed"
	EventScrapeFailed    = "scrape.failed"
)

// RunSummary is the payload delivered to notifiers when a run finishes.
type RunSummary struct {
	Event       string    `json:"event"`
	JobID       string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	JobsFound   int       `json:"jobs_found"`
	JobsNew     int       `json:"jobs_new"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// QueueItem wraps a scrape job ready to run.
type QueueItem struct {
	JobID     string
	Params    ScrapeParameters
	Submitted int64
}
