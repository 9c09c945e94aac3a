package testutil

import (
	"context"
	"fmt"
	"sync"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/jobs"
)

// FakeJobsProvider is a controllable double for jobs.Provider. It has no
// listing method, matching the real boundary — the
// reconciliation loop cannot use it to enumerate jobs.
type FakeJobsProvider struct {
	mu   sync.Mutex
	jobs map[string]*jobs.Job
}

func NewFakeJobsProvider() *FakeJobsProvider {
	return &FakeJobsProvider{jobs: make(map[string]*jobs.Job)}
}

func (f *FakeJobsProvider) Seed(job *jobs.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
}

func (f *FakeJobsProvider) GetJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, ierr.Wrap(ierr.ErrNotFound, "JOB_NOT_FOUND", "job not found: "+jobID)
	}
	return j, nil
}

func (f *FakeJobsProvider) SetJobStatus(ctx context.Context, jobID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return fmt.Errorf("jobs: job not found: %s", jobID)
	}
	j.Status = status
	return nil
}

func (f *FakeJobsProvider) EnsurePlaceholder(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[jobID]; ok {
		return nil
	}
	f.jobs[jobID] = &jobs.Job{ID: jobID, Status: jobs.StatusQueued}
	return nil
}

func (f *FakeJobsProvider) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = make(map[string]*jobs.Job)
}
