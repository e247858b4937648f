package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"billtool/internal/domain"
)

// =============================================================================
// Mock CronEngine for testing (avoids real cron dependency)
// =============================================================================

type mockCronEngine struct {
	mu      sync.Mutex
	funcs   map[int]func()
	specs   map[int]string
	nextID  int
	started bool
	stopped bool
	addErr  error
	removed []int
}

func newMockCronEngine() *mockCronEngine {
	return &mockCronEngine{funcs: make(map[int]func()), specs: make(map[int]string), nextID: 1}
}

func (m *mockCronEngine) AddFunc(spec string, cmd func()) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return 0, m.addErr
	}
	id := m.nextID
	m.nextID++
	m.funcs[id] = cmd
	m.specs[id] = spec
	return id, nil
}

func (m *mockCronEngine) Remove(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	delete(m.funcs, id)
	delete(m.specs, id)
}

func (m *mockCronEngine) Start() { m.mu.Lock(); m.started = true; m.mu.Unlock() }
func (m *mockCronEngine) Stop()  { m.mu.Lock(); m.stopped = true; m.mu.Unlock() }

func (m *mockCronEngine) fireAll() {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.funcs))
	for _, fn := range m.funcs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type recordingRun struct {
	mu   sync.Mutex
	jobs []Job
	ctxs []context.Context
	err  error
}

func (r *recordingRun) run(ctx context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	r.ctxs = append(r.ctxs, ctx)
	return r.err
}

func agingJob() Job {
	return Job{
		ID:        "aging",
		Name:      "Weekly aging report",
		CronExpr:  "0 8 * * 1",
		Tool:      "create_report",
		Arguments: json.RawMessage(`{"type":"aging"}`),
	}
}

// =============================================================================
// NewScheduler Tests
// =============================================================================

func TestNewScheduler_WhenNilArguments_ShouldPanic(t *testing.T) {
	for name, fn := range map[string]func(){
		"engine": func() { NewScheduler(nil, func(context.Context, Job) error { return nil }) },
		"run":    func() { NewScheduler(newMockCronEngine(), nil) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			fn()
		})
	}
}

// =============================================================================
// AddJob Tests
// =============================================================================

func TestScheduler_AddJob_WhenInvalid_ShouldReturnError(t *testing.T) {
	s := NewScheduler(newMockCronEngine(), (&recordingRun{}).run)
	tests := []struct {
		name string
		mut  func(*Job)
		want error
	}{
		{"empty id", func(j *Job) { j.ID = "" }, ErrEmptyJobID},
		{"empty cron", func(j *Job) { j.CronExpr = "" }, ErrEmptyCron},
		{"empty tool", func(j *Job) { j.Tool = "" }, ErrEmptyTool},
		{"bad cron", func(j *Job) { j.CronExpr = "every monday" }, nil},
		{"bad args", func(j *Job) { j.Arguments = json.RawMessage(`{`) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := agingJob()
			tt.mut(&j)
			err := s.AddJob(j)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("want %v, got %v", tt.want, err)
			}
		})
	}
	if len(s.ListJobs()) != 0 {
		t.Error("no invalid job should be registered")
	}
}

func TestScheduler_AddJob_WhenDuplicateID_ShouldReturnError(t *testing.T) {
	s := NewScheduler(newMockCronEngine(), (&recordingRun{}).run)
	if err := s.AddJob(agingJob()); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob(agingJob()); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("want ErrDuplicateJob, got %v", err)
	}
}

func TestScheduler_AddJob_WhenEngineFails_ShouldWrapError(t *testing.T) {
	engine := newMockCronEngine()
	engine.addErr = errors.New("engine down")
	s := NewScheduler(engine, (&recordingRun{}).run)
	err := s.AddJob(agingJob())
	if err == nil || !strings.Contains(err.Error(), "engine down") {
		t.Errorf("expected wrapped engine error, got %v", err)
	}
}

// =============================================================================
// Firing
// =============================================================================

func TestScheduler_WhenJobFires_ShouldRunWithTimeoutContext(t *testing.T) {
	engine := newMockCronEngine()
	rr := &recordingRun{}
	s := NewScheduler(engine, rr.run, WithRunTimeout(time.Minute))
	if err := s.AddJob(agingJob()); err != nil {
		t.Fatal(err)
	}

	engine.fireAll()

	if len(rr.jobs) != 1 || rr.jobs[0].Tool != "create_report" {
		t.Fatalf("unexpected runs: %+v", rr.jobs)
	}
	if _, ok := rr.ctxs[0].Deadline(); !ok {
		t.Error("run context should carry the timeout")
	}
}

func TestScheduler_WhenRunFails_ShouldLogWarning(t *testing.T) {
	var buf bytes.Buffer
	engine := newMockCronEngine()
	rr := &recordingRun{err: errors.New("billing api: 503")}
	s := NewScheduler(engine, rr.run, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	_ = s.AddJob(agingJob())

	engine.fireAll()

	out := buf.String()
	if !strings.Contains(out, "job run failed") || !strings.Contains(out, "billing api: 503") {
		t.Errorf("expected failure log, got %q", out)
	}
}

func TestScheduler_Stop_ShouldCancelRunContext(t *testing.T) {
	engine := newMockCronEngine()
	rr := &recordingRun{}
	s := NewScheduler(engine, rr.run, WithRunTimeout(0))
	_ = s.AddJob(agingJob())
	s.Start()
	engine.fireAll()
	s.Stop()

	if !engine.started || !engine.stopped {
		t.Error("engine should have been started and stopped")
	}
	if rr.ctxs[0].Err() == nil {
		t.Error("Stop should cancel the scheduler context")
	}
}

func TestScheduler_RunJob_ShouldRunImmediately(t *testing.T) {
	rr := &recordingRun{}
	s := NewScheduler(newMockCronEngine(), rr.run)
	_ = s.AddJob(agingJob())

	if err := s.RunJob(context.Background(), "aging"); err != nil {
		t.Fatal(err)
	}
	if len(rr.jobs) != 1 {
		t.Errorf("expected one run, got %d", len(rr.jobs))
	}
	if err := s.RunJob(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("want ErrJobNotFound, got %v", err)
	}
}

// =============================================================================
// RemoveJob / Sync
// =============================================================================

func TestScheduler_RemoveJob(t *testing.T) {
	engine := newMockCronEngine()
	s := NewScheduler(engine, (&recordingRun{}).run)
	_ = s.AddJob(agingJob())

	if err := s.RemoveJob(""); !errors.Is(err, ErrEmptyJobID) {
		t.Errorf("want ErrEmptyJobID, got %v", err)
	}
	if err := s.RemoveJob("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("want ErrJobNotFound, got %v", err)
	}
	if err := s.RemoveJob("aging"); err != nil {
		t.Fatal(err)
	}
	if len(engine.removed) != 1 || len(s.ListJobs()) != 0 {
		t.Errorf("job not removed: removed=%v jobs=%v", engine.removed, s.ListJobs())
	}
}

func TestScheduler_Sync_ShouldAddUpdateAndRemove(t *testing.T) {
	engine := newMockCronEngine()
	s := NewScheduler(engine, (&recordingRun{}).run)
	stale := Job{ID: "stale", CronExpr: "@daily", Tool: "list_tasks"}
	changed := Job{ID: "reminders", CronExpr: "@daily", Tool: "list_invoices"}
	_ = s.AddJob(stale)
	_ = s.AddJob(changed)
	_ = s.AddJob(agingJob())

	changed.CronExpr = "@hourly"
	res, err := s.Sync([]Job{
		agingJob(),
		changed,
		{ID: "new", CronExpr: "@weekly", Tool: "list_events"},
		{ID: "broken", CronExpr: "nope", Tool: "list_events"},
	})

	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("expected error for the broken job, got %v", err)
	}
	if strings.Join(res.Added, ",") != "new" || strings.Join(res.Updated, ",") != "reminders" || strings.Join(res.Removed, ",") != "stale" {
		t.Errorf("unexpected sync result %+v", res)
	}
	got, _ := s.GetJob("reminders")
	if got.CronExpr != "@hourly" {
		t.Errorf("reminders not updated: %+v", got)
	}
	ids := []string{}
	for _, j := range s.ListJobs() {
		ids = append(ids, j.ID)
	}
	if strings.Join(ids, ",") != "aging,new,reminders" {
		t.Errorf("ListJobs = %v", ids)
	}
}

// =============================================================================
// JobsFromConfig
// =============================================================================

func TestJobsFromConfig_ShouldPreferJSONAndEncodeYAML(t *testing.T) {
	jobs, err := JobsFromConfig([]domain.JobConfig{
		{ID: "a", Cron: "@daily", Tool: "list_invoices", Arguments: json.RawMessage(`{"page":1}`), ArgumentsYAML: map[string]any{"page": 9}},
		{ID: "b", Cron: "@daily", Tool: "list_invoices", ArgumentsYAML: map[string]any{"filter": map[string]any{"status": "past_due"}}},
		{ID: "c", Cron: "@daily", Tool: "list_events"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(jobs[0].Arguments) != `{"page":1}` {
		t.Errorf("explicit JSON should win, got %s", jobs[0].Arguments)
	}
	if string(jobs[1].Arguments) != `{"filter":{"status":"past_due"}}` {
		t.Errorf("YAML args not encoded: %s", jobs[1].Arguments)
	}
	if jobs[2].Arguments != nil || jobs[2].CronExpr != "@daily" {
		t.Errorf("unexpected job %+v", jobs[2])
	}
}
