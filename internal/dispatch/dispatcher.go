// Package dispatch routes a named tool call through the registry and turns
// the handler result into the response envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"billtool/internal/billing"
	"billtool/internal/domain"
	"billtool/internal/injection"
	"billtool/internal/metrics"
	"billtool/internal/tooling"
)

// now is the clock used for journal timestamps; tests replace it.
var now = time.Now

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Nil falls back to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics counts calls, truncations and injection warnings.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = c }
}

// WithRecorder journals every call. Recorder failures are logged only.
func WithRecorder(r domain.CallRecorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithResponseBudget truncates response text beyond maxTokens. A nil
// tokenizer or maxTokens <= 0 leaves responses untouched.
func WithResponseBudget(t domain.Tokenizer, maxTokens int) Option {
	return func(d *Dispatcher) {
		d.tokenizer = t
		d.maxTokens = maxTokens
	}
}

// WithInjectionScan warns about prompt-injection phrases in responses. No
// patterns means injection.DefaultPatterns.
func WithInjectionScan(patterns ...string) Option {
	return func(d *Dispatcher) { d.scanner = injection.NewScanner(patterns...) }
}

// WithFileRoot lets tools read local files under dir. Without it path
// arguments are refused.
func WithFileRoot(dir string) Option {
	return func(d *Dispatcher) { d.fileRoot = dir }
}

// Dispatcher is stateless per call and safe for concurrent use.
type Dispatcher struct {
	registry  *tooling.Registry
	logger    *slog.Logger
	metrics   *metrics.Collector
	recorder  domain.CallRecorder
	tokenizer domain.Tokenizer
	maxTokens int
	scanner   *injection.Scanner
	fileRoot  string
}

// New creates a dispatcher backed by the given registry.
// Panics if registry is nil.
func New(registry *tooling.Registry, opts ...Option) *Dispatcher {
	if registry == nil {
		panic("dispatch: registry must not be nil")
	}
	d := &Dispatcher{registry: registry}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}

// Registry returns the registry calls are resolved against.
func (d *Dispatcher) Registry() *tooling.Registry { return d.registry }

// Definitions returns every tool definition, sorted by name.
func (d *Dispatcher) Definitions() []domain.ToolDefinition {
	return d.registry.Definitions()
}

// HandleToolCall looks the tool up, lets it validate and decode args, runs
// the handler and normalises its result. Errors from the registry, argument
// validation, the handler or the client are returned as-is.
func (d *Dispatcher) HandleToolCall(ctx context.Context, name string, client tooling.Client, args json.RawMessage) (domain.Response, error) {
	start := now()
	resp, err := d.call(ctx, name, client, args)
	d.finish(ctx, name, start, resp, err)
	if err != nil {
		return domain.Response{}, err
	}
	return resp, nil
}

func (d *Dispatcher) call(ctx context.Context, name string, client tooling.Client, args json.RawMessage) (domain.Response, error) {
	tool, err := d.registry.Get(name)
	if err != nil {
		return domain.Response{}, err
	}
	if client == nil {
		return domain.Response{}, fmt.Errorf("dispatch %s: no billing client", name)
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	d.log().Debug("tool call", "tool", name, "args_bytes", len(args))
	res, err := tool.Call(ctx, tooling.Env{Client: client, Log: d.log().With("tool", name), FileRoot: d.fileRoot}, args)
	if err != nil {
		return domain.Response{}, err
	}
	resp, err := tooling.Normalize(res)
	if err != nil {
		return domain.Response{}, fmt.Errorf("dispatch %s: %w", name, err)
	}
	resp = d.applyBudget(name, resp)
	d.scan(name, resp)
	return resp, nil
}

// =============================================================================
// Response guards
// =============================================================================

const truncationNotice = "\n\n[response truncated to %d tokens; narrow the request with page, per_page or filter]"

func (d *Dispatcher) applyBudget(name string, resp domain.Response) domain.Response {
	if d.tokenizer == nil || d.maxTokens <= 0 {
		return resp
	}
	out := domain.Response{Content: make([]domain.ContentBlock, len(resp.Content))}
	cut := false
	for i, b := range resp.Content {
		text, truncated, err := d.tokenizer.Truncate(b.Text, d.maxTokens)
		if err != nil {
			d.log().Warn("response budget skipped", "tool", name, "error", err)
			return resp
		}
		if truncated {
			text += fmt.Sprintf(truncationNotice, d.maxTokens)
			cut = true
		}
		out.Content[i] = domain.ContentBlock{Type: b.Type, Text: text}
	}
	if !cut {
		return resp
	}
	d.log().Info("response truncated", "tool", name, "max_tokens", d.maxTokens)
	if d.metrics != nil {
		d.metrics.RecordTruncation(name)
	}
	return out
}

func (d *Dispatcher) scan(name string, resp domain.Response) {
	if d.scanner == nil {
		return
	}
	if res := d.scanner.LogIfDetected(name, resp, d.log()); res.Detected && d.metrics != nil {
		d.metrics.RecordInjectionWarning(name)
	}
}

// =============================================================================
// Outcome reporting
// =============================================================================

// Classify maps a call error to its journal outcome.
func Classify(err error) domain.Outcome {
	var argErr *tooling.ArgumentError
	var apiErr *billing.APIError
	switch {
	case err == nil:
		return domain.OutcomeOK
	case errors.Is(err, tooling.ErrToolNotFound):
		return domain.OutcomeNotFound
	case errors.As(err, &argErr):
		return domain.OutcomeInvalidArgs
	case errors.As(err, &apiErr):
		return domain.OutcomeUpstreamError
	default:
		return domain.OutcomeError
	}
}

// unknownToolLabel stands in for names that did not resolve, so callers
// cannot grow the tool label set.
const unknownToolLabel = "unknown"

func metricToolLabel(name string, outcome domain.Outcome) string {
	if outcome == domain.OutcomeNotFound {
		return unknownToolLabel
	}
	return name
}

func (d *Dispatcher) finish(ctx context.Context, name string, start time.Time, resp domain.Response, err error) {
	elapsed := now().Sub(start)
	outcome := Classify(err)

	if err != nil {
		d.log().Debug("tool call failed", "tool", name, "outcome", outcome, "duration", elapsed, "error", err)
	} else {
		d.log().Debug("tool call done", "tool", name, "duration", elapsed, "blocks", len(resp.Content))
	}
	if d.metrics != nil {
		d.metrics.RecordToolCall(metricToolLabel(name, outcome), string(outcome), elapsed)
	}
	if d.recorder == nil {
		return
	}
	rec := domain.CallRecord{
		Tool:       name,
		StartedAt:  start.UTC(),
		DurationMS: elapsed.Milliseconds(),
		Outcome:    outcome,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	// Journal writes survive caller cancellation.
	if rerr := d.recorder.Record(context.WithoutCancel(ctx), rec); rerr != nil {
		d.log().Warn("journal record failed", "tool", name, "error", rerr)
	}
}
