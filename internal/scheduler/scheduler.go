package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"billtool/internal/domain"
)

// Job is a tool call on a cron schedule.
type Job struct {
	ID        string          // Unique identifier for the job
	Name      string          // Human-readable name (optional)
	CronExpr  string          // Cron expression (e.g. "0 9 * * 1-5")
	Tool      string          // Tool to call
	Arguments json.RawMessage // Tool arguments; empty means {}
}

func (j Job) equal(o Job) bool {
	return j.ID == o.ID && j.Name == o.Name && j.CronExpr == o.CronExpr &&
		j.Tool == o.Tool && bytes.Equal(j.Arguments, o.Arguments)
}

// RunFunc is called when a job fires.
type RunFunc func(ctx context.Context, job Job) error

// CronEngine abstracts the cron scheduler for testability.
// The real implementation wraps robfig/cron/v3.
type CronEngine interface {
	AddFunc(spec string, cmd func()) (int, error)
	Remove(id int)
	Start()
	Stop()
}

// Option is a functional option for configuring a Scheduler.
type Option func(*Scheduler)

// WithLogger sets a structured logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRunTimeout bounds each run. Zero disables the bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// Sentinel errors for validation.
var (
	ErrEmptyJobID   = errors.New("scheduler: job ID must not be empty")
	ErrEmptyCron    = errors.New("scheduler: cron expression must not be empty")
	ErrEmptyTool    = errors.New("scheduler: tool must not be empty")
	ErrDuplicateJob = errors.New("scheduler: job with this ID already exists")
	ErrJobNotFound  = errors.New("scheduler: job not found")
)

const defaultRunTimeout = 5 * time.Minute

type jobEntry struct {
	job     Job
	entryID int
}

// Scheduler manages cron-based tool calls.
type Scheduler struct {
	engine  CronEngine
	run     RunFunc
	logger  *slog.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]jobEntry
}

// NewScheduler creates a new Scheduler. Both engine and run must not be nil.
func NewScheduler(engine CronEngine, run RunFunc, opts ...Option) *Scheduler {
	if engine == nil {
		panic("scheduler: engine must not be nil")
	}
	if run == nil {
		panic("scheduler: run func must not be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		engine:  engine,
		run:     run,
		timeout: defaultRunTimeout,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]jobEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func validate(job Job) error {
	if job.ID == "" {
		return ErrEmptyJobID
	}
	if job.CronExpr == "" {
		return ErrEmptyCron
	}
	if job.Tool == "" {
		return fmt.Errorf("%w (job %s)", ErrEmptyTool, job.ID)
	}
	if len(job.Arguments) > 0 && !json.Valid(job.Arguments) {
		return fmt.Errorf("scheduler: job %s: arguments are not valid JSON", job.ID)
	}
	_, err := ParseSpec(job.CronExpr)
	return err
}

// AddJob validates and registers job.
func (s *Scheduler) AddJob(job Job) error {
	if err := validate(job); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	return s.addLocked(job)
}

func (s *Scheduler) addLocked(job Job) error {
	captured := job
	entryID, err := s.engine.AddFunc(job.CronExpr, func() { s.fire(captured) })
	if err != nil {
		return fmt.Errorf("scheduler: failed to register cron job %q: %w", job.ID, err)
	}
	s.jobs[job.ID] = jobEntry{job: job, entryID: entryID}
	s.log().Info("job registered", "job_id", job.ID, "tool", job.Tool, "cron_expr", job.CronExpr)
	return nil
}

func (s *Scheduler) fire(job Job) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.log().Info("job fired", "job_id", job.ID, "job_name", job.Name, "tool", job.Tool)
	if err := s.run(ctx, job); err != nil {
		s.log().Warn("job run failed", "job_id", job.ID, "tool", job.Tool, "error", err)
	}
}

// RunJob runs a registered job immediately, outside its schedule.
func (s *Scheduler) RunJob(ctx context.Context, id string) error {
	job, ok := s.GetJob(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return s.run(ctx, job)
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.engine.Start()
}

// Stop halts the cron scheduler and cancels runs in progress.
func (s *Scheduler) Stop() {
	s.cancel()
	s.engine.Stop()
}

// RemoveJob unregisters a job by ID.
func (s *Scheduler) RemoveJob(id string) error {
	if id == "" {
		return ErrEmptyJobID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[id]; !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	s.removeLocked(id)
	return nil
}

func (s *Scheduler) removeLocked(id string) {
	s.engine.Remove(s.jobs[id].entryID)
	delete(s.jobs, id)
	s.log().Info("job removed", "job_id", id)
}

// SyncResult reports what Sync changed.
type SyncResult struct {
	Added, Updated, Removed []string
}

// Sync makes the registered set equal to jobs: new IDs are added, changed
// jobs re-registered and missing ones removed. Invalid jobs are skipped and
// reported in the joined error; the rest still apply.
func (s *Scheduler) Sync(jobs []Job) (SyncResult, error) {
	var res SyncResult
	var errs []error

	want := make(map[string]Job, len(jobs))
	for _, j := range jobs {
		if err := validate(j); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := want[j.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateJob, j.ID))
			continue
		}
		want[j.ID] = j
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.jobs {
		j, keep := want[id]
		if !keep {
			s.removeLocked(id)
			res.Removed = append(res.Removed, id)
			continue
		}
		if !entry.job.equal(j) {
			s.removeLocked(id)
			if err := s.addLocked(j); err != nil {
				errs = append(errs, err)
				continue
			}
			res.Updated = append(res.Updated, id)
		}
	}
	for id, j := range want {
		if _, exists := s.jobs[id]; exists {
			continue
		}
		if err := s.addLocked(j); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Added = append(res.Added, id)
	}
	sort.Strings(res.Added)
	sort.Strings(res.Updated)
	sort.Strings(res.Removed)
	return res, errors.Join(errs...)
}

// ListJobs returns the registered jobs sorted by ID. Never nil.
func (s *Scheduler) ListJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, entry := range s.jobs {
		jobs = append(jobs, entry.job)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID < jobs[k].ID })
	return jobs
}

// GetJob returns the job with the given ID, or false if not found.
func (s *Scheduler) GetJob(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.jobs[id]
	return entry.job, ok
}

// =============================================================================
// Config conversion
// =============================================================================

// JobsFromConfig converts configured jobs. YAML arguments are re-encoded as
// JSON; explicit JSON arguments win when both are present.
func JobsFromConfig(cfgs []domain.JobConfig) ([]Job, error) {
	jobs := make([]Job, 0, len(cfgs))
	for _, c := range cfgs {
		args := c.Arguments
		if len(args) == 0 && len(c.ArgumentsYAML) > 0 {
			raw, err := json.Marshal(c.ArgumentsYAML)
			if err != nil {
				return nil, fmt.Errorf("job %s arguments: %w", c.ID, err)
			}
			args = raw
		}
		jobs = append(jobs, Job{ID: c.ID, Name: c.Name, CronExpr: c.Cron, Tool: c.Tool, Arguments: args})
	}
	return jobs, nil
}
