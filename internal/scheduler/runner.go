package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"unicode/utf8"

	"billtool/internal/domain"
	"billtool/internal/metrics"
	"billtool/internal/queue"
	"billtool/internal/tooling"
)

// Caller dispatches one tool call. *dispatch.Dispatcher satisfies it.
type Caller interface {
	HandleToolCall(ctx context.Context, name string, client tooling.Client, args json.RawMessage) (domain.Response, error)
}

// ToolRunner runs jobs through a Caller, one run per job at a time.
type ToolRunner struct {
	caller  Caller
	client  tooling.Client
	lanes   *queue.LaneQueue
	metrics *metrics.Collector
	logger  *slog.Logger
}

// RunnerOption configures a ToolRunner.
type RunnerOption func(*ToolRunner)

func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *ToolRunner) { r.logger = l }
}

func WithRunnerMetrics(c *metrics.Collector) RunnerOption {
	return func(r *ToolRunner) { r.metrics = c }
}

// WithLanes shares a lane queue, e.g. with another runner.
func WithLanes(q *queue.LaneQueue) RunnerOption {
	return func(r *ToolRunner) { r.lanes = q }
}

// NewToolRunner creates a runner. Panics if caller is nil.
func NewToolRunner(caller Caller, client tooling.Client, opts ...RunnerOption) *ToolRunner {
	if caller == nil {
		panic("scheduler: caller must not be nil")
	}
	r := &ToolRunner{caller: caller, client: client}
	for _, o := range opts {
		o(r)
	}
	if r.lanes == nil {
		r.lanes = queue.NewLaneQueue()
	}
	return r
}

func (r *ToolRunner) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

const previewLen = 200

// preview caps text at previewLen runes.
func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLen {
		return text
	}
	return string([]rune(text)[:previewLen]) + "..."
}

// Run is a RunFunc. A run that fires while the previous run of the same job
// is still going is skipped with queue.ErrLaneBusy.
func (r *ToolRunner) Run(ctx context.Context, job Job) error {
	err := r.lanes.TryDo(ctx, job.ID, func(ctx context.Context) error {
		resp, err := r.caller.HandleToolCall(ctx, job.Tool, r.client, job.Arguments)
		if err != nil {
			return err
		}
		r.log().Info("job result", "job_id", job.ID, "tool", job.Tool, "preview", preview(resp.Text()))
		return nil
	})
	if errors.Is(err, queue.ErrLaneBusy) {
		r.log().Warn("previous run still in progress; skipping", "job_id", job.ID)
	}
	if r.metrics != nil {
		r.metrics.RecordJobRun(job.ID, err)
	}
	return err
}

// Close stops the runner's lanes.
func (r *ToolRunner) Close() { r.lanes.Close() }
