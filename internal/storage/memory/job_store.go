// Package memory provides in-memory store implementations for development
// and testing. The job table is memory-only in every deployment: jobs do not
// survive a restart.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

// JobStore holds scrape job metadata guarded by one lock.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]scraper.ScrapeJob
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]scraper.ScrapeJob)}
}

// Create stores a new job.
func (s *JobStore) Create(_ context.Context, job scraper.ScrapeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// Update replaces the stored job.
func (s *JobStore) Update(_ context.Context, job scraper.ScrapeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return scraper.ErrJobNotFound
	}
	s.jobs[job.ID] = job
	return nil
}

// Get fetches a job by ID.
func (s *JobStore) Get(_ context.Context, jobID string) (scraper.ScrapeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scraper.ScrapeJob{}, scraper.ErrJobNotFound
	}
	return job, nil
}

// List returns jobs most-recent-first, optionally filtered by status, capped
// at limit (<= 0 means no cap).
func (s *JobStore) List(_ context.Context, status scraper.JobStatus, limit int) ([]scraper.ScrapeJob, error) {
	s.mu.RLock()
	jobs := make([]scraper.ScrapeJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if status != "" && job.Status != status {
			continue
		}
		jobs = append(jobs, job)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}
