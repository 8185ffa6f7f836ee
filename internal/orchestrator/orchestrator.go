// Package orchestrator coordinates scrape jobs from submission to completion.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobradar/seek-crawler/internal/crawl"
	"github.com/jobradar/seek-crawler/internal/metrics"
	"github.com/jobradar/seek-crawler/internal/scraper"
)

// Config controls orchestrator behavior.
type Config struct {
	// DefaultSearchURL is used when a submission carries no search URL.
	DefaultSearchURL string
	// DefaultMaxPages caps pagination when a submission carries no limit.
	DefaultMaxPages int
}

// Orchestrator owns the scrape job lifecycle: it accepts submissions, moves
// each job through pending, running and a terminal state exactly once, and
// persists results with identity-based dedup against the seen store.
type Orchestrator struct {
	jobs      scraper.JobStore
	records   scraper.RecordStore
	seen      scraper.SeenStore
	queue     scraper.Queue
	crawler   *crawl.Crawler
	headless  scraper.PageFetcher
	static    scraper.PageFetcher
	notifiers []scraper.Notifier
	ids       scraper.IDGenerator
	clock     scraper.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(
	jobs scraper.JobStore,
	records scraper.RecordStore,
	seen scraper.SeenStore,
	queue scraper.Queue,
	crawler *crawl.Crawler,
	headless scraper.PageFetcher,
	static scraper.PageFetcher,
	notifiers []scraper.Notifier,
	ids scraper.IDGenerator,
	clock scraper.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.DefaultMaxPages <= 0 {
		cfg.DefaultMaxPages = 20
	}
	return &Orchestrator{
		jobs:      jobs,
		records:   records,
		seen:      seen,
		queue:     queue,
		crawler:   crawler,
		headless:  headless,
		static:    static,
		notifiers: notifiers,
		ids:       ids,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreateJob registers a pending job and enqueues it for a worker.
func (o *Orchestrator) CreateJob(ctx context.Context, params scraper.ScrapeParameters) (scraper.ScrapeJob, error) {
	if params.SearchURL == "" {
		params.SearchURL = o.cfg.DefaultSearchURL
	}
	if params.MaxPages <= 0 {
		params.MaxPages = o.cfg.DefaultMaxPages
	}

	id, err := o.ids.NewID()
	if err != nil {
		return scraper.ScrapeJob{}, fmt.Errorf("assign job id: %w", err)
	}
	job := scraper.ScrapeJob{
		ID:         id,
		Status:     scraper.JobStatusPending,
		CreatedAt:  o.clock.Now(),
		Parameters: params,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return scraper.ScrapeJob{}, fmt.Errorf("create job record: %w", err)
	}

	item := scraper.QueueItem{
		JobID:     job.ID,
		Params:    params,
		Submitted: job.CreatedAt.UnixNano(),
	}
	if err := o.queue.Enqueue(ctx, item); err != nil {
		o.failJob(ctx, job, fmt.Sprintf("enqueue failed: %v", err))
		return scraper.ScrapeJob{}, fmt.Errorf("enqueue job: %w", err)
	}

	o.logger.Info("scrape job accepted",
		zap.String("job_id", job.ID),
		zap.String("search_url", params.SearchURL),
		zap.Int("max_pages", params.MaxPages),
	)
	return job, nil
}

// GetJob returns one job by ID.
func (o *Orchestrator) GetJob(ctx context.Context, jobID string) (scraper.ScrapeJob, error) {
	return o.jobs.Get(ctx, jobID)
}

// ListJobs returns recent jobs, optionally filtered by status.
func (o *Orchestrator) ListJobs(ctx context.Context, status scraper.JobStatus, limit int) ([]scraper.ScrapeJob, error) {
	return o.jobs.List(ctx, status, limit)
}

// Run blocks, consuming queue items until the context finishes.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		item, err := o.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		o.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		o.processItem(ctx, item)
	}
}

// RunOnce creates a job and executes it synchronously, bypassing the queue.
func (o *Orchestrator) RunOnce(ctx context.Context, params scraper.ScrapeParameters) (scraper.ScrapeJob, error) {
	if params.SearchURL == "" {
		params.SearchURL = o.cfg.DefaultSearchURL
	}
	if params.MaxPages <= 0 {
		params.MaxPages = o.cfg.DefaultMaxPages
	}

	id, err := o.ids.NewID()
	if err != nil {
		return scraper.ScrapeJob{}, fmt.Errorf("assign job id: %w", err)
	}
	job := scraper.ScrapeJob{
		ID:         id,
		Status:     scraper.JobStatusPending,
		CreatedAt:  o.clock.Now(),
		Parameters: params,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return scraper.ScrapeJob{}, fmt.Errorf("create job record: %w", err)
	}

	o.processItem(ctx, scraper.QueueItem{JobID: job.ID, Params: params, Submitted: job.CreatedAt.UnixNano()})
	return o.jobs.Get(ctx, job.ID)
}

func (o *Orchestrator) processItem(ctx context.Context, item scraper.QueueItem) {
	job, err := o.jobs.Get(ctx, item.JobID)
	if err != nil {
		o.logger.Error("dequeued unknown job", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}
	if job.Status != scraper.JobStatusPending {
		o.logger.Warn("skipping job not in pending state",
			zap.String("job_id", job.ID),
			zap.String("status", string(job.Status)),
		)
		return
	}

	startedAt := o.clock.Now()
	job.Status = scraper.JobStatusRunning
	job.StartedAt = &startedAt
	if err := o.jobs.Update(ctx, job); err != nil {
		o.logger.Error("job status update failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	result, runErr := o.executeRun(ctx, job)
	if runErr != nil {
		o.failJob(ctx, job, runErr.Error())
		return
	}
	o.completeJob(ctx, job, result)
}

type runResult struct {
	accepted []scraper.Listing
	fresh    []scraper.Listing
	pages    int
}

func (o *Orchestrator) executeRun(ctx context.Context, job scraper.ScrapeJob) (runResult, error) {
	fetcher := o.pickFetcher(job.Parameters)
	if fetcher == nil {
		return runResult{}, fmt.Errorf("no page fetcher configured")
	}

	session, err := fetcher.NewSession(ctx)
	if err != nil {
		return runResult{}, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			o.logger.Warn("session close failed", zap.String("job_id", job.ID), zap.Error(closeErr))
		}
	}()

	crawled, err := o.crawler.Run(ctx, session, job.ID, job.Parameters.SearchURL, job.Parameters.MaxPages)
	if err != nil {
		return runResult{}, err
	}

	// Collapse duplicate URLs within the run, then split out listings not
	// seen within the retention window.
	inRun := make(map[string]struct{}, len(crawled.Accepted))
	accepted := make([]scraper.Listing, 0, len(crawled.Accepted))
	fresh := make([]scraper.Listing, 0, len(crawled.Accepted))
	for _, listing := range crawled.Accepted {
		identity := listing.Identity()
		if _, dup := inRun[identity]; dup {
			continue
		}
		inRun[identity] = struct{}{}
		accepted = append(accepted, listing)

		seen, err := o.seen.IsSeen(ctx, identity)
		if err != nil {
			return runResult{}, fmt.Errorf("seen lookup: %w", err)
		}
		if !seen {
			fresh = append(fresh, listing)
		}
	}

	// Every accepted listing is appended. The seen store only decides
	// what counts as new; it does not gate persistence.
	if len(accepted) > 0 {
		if err := o.records.Append(ctx, accepted); err != nil {
			return runResult{}, fmt.Errorf("persist listings: %w", err)
		}
	}
	if len(fresh) > 0 {
		identities := make([]string, len(fresh))
		for i, listing := range fresh {
			identities[i] = listing.Identity()
		}
		if err := o.seen.MarkSeen(ctx, identities, o.clock.Now()); err != nil {
			return runResult{}, fmt.Errorf("mark seen: %w", err)
		}
	}

	return runResult{accepted: accepted, fresh: fresh, pages: crawled.Pages}, nil
}

func (o *Orchestrator) pickFetcher(params scraper.ScrapeParameters) scraper.PageFetcher {
	if params.Headless {
		if o.headless != nil {
			return o.headless
		}
		return o.static
	}
	if o.static != nil {
		return o.static
	}
	return o.headless
}

func (o *Orchestrator) completeJob(ctx context.Context, job scraper.ScrapeJob, result runResult) {
	completedAt := o.clock.Now()
	job.Status = scraper.JobStatusCompleted
	job.CompletedAt = &completedAt
	job.JobsFound = len(result.accepted)
	job.JobsNew = len(result.fresh)
	job.Results = result.accepted
	if err := o.jobs.Update(ctx, job); err != nil {
		o.logger.Error("final job status update failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	metrics.ObserveJob(string(scraper.JobStatusCompleted))
	metrics.ObserveRun(result.pages, job.JobsFound, job.JobsNew)
	o.logger.Info("scrape job completed",
		zap.String("job_id", job.ID),
		zap.Int("pages", result.pages),
		zap.Int("jobs_found", job.JobsFound),
		zap.Int("jobs_new", job.JobsNew),
	)

	o.notify(ctx, scraper.RunSummary{
		Event:       scraper.EventScrapeCompleted,
		JobID:       job.ID,
		Status:      job.Status,
		JobsFound:   job.JobsFound,
		JobsNew:     job.JobsNew,
		CompletedAt: completedAt,
	})
}

func (o *Orchestrator) failJob(ctx context.Context, job scraper.ScrapeJob, errText string) {
	completedAt := o.clock.Now()
	job.Status = scraper.JobStatusFailed
	job.CompletedAt = &completedAt
	job.ErrorText = errText
	if err := o.jobs.Update(ctx, job); err != nil {
		o.logger.Error("final job status update failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	metrics.ObserveJob(string(scraper.JobStatusFailed))
	o.logger.Warn("scrape job failed",
		zap.String("job_id", job.ID),
		zap.String("error", errText),
	)

	o.notify(ctx, scraper.RunSummary{
		Event:       scraper.EventScrapeFailed,
		JobID:       job.ID,
		Status:      job.Status,
		Error:       errText,
		CompletedAt: completedAt,
	})
}

// notify delivers the summary to every notifier. Failures are logged and
// never affect the job outcome. Delivery is detached from the run context,
// which may already be canceled once the job reached a terminal state.
func (o *Orchestrator) notify(ctx context.Context, summary scraper.RunSummary) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	for _, n := range o.notifiers {
		if err := n.Notify(notifyCtx, summary); err != nil {
			o.logger.Warn("notifier delivery failed",
				zap.String("job_id", summary.JobID),
				zap.String("event", summary.Event),
				zap.Error(err),
			)
		}
	}
}
