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
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtool/internal/domain"
	"billtool/internal/metrics"
	"billtool/internal/queue"
	"billtool/internal/tooling"
)

type fakeCaller struct {
	mu    sync.Mutex
	names []string
	args  []string
	resp  domain.Response
	err   error
	block chan struct{}
}

func (f *fakeCaller) HandleToolCall(ctx context.Context, name string, _ tooling.Client, args json.RawMessage) (domain.Response, error) {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.args = append(f.args, string(args))
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.resp, f.err
}

func TestToolRunner_Run_ShouldDispatchJobTool(t *testing.T) {
	var buf bytes.Buffer
	fc := &fakeCaller{resp: domain.TextResponse(strings.Repeat("x", 500))}
	r := NewToolRunner(fc, nil, WithRunnerLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	defer r.Close()

	require.NoError(t, r.Run(context.Background(), agingJob()))
	assert.Equal(t, []string{"create_report"}, fc.names)
	assert.Equal(t, []string{`{"type":"aging"}`}, fc.args)
	assert.Contains(t, buf.String(), "job result")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 201), "preview should be capped")
}

func TestPreview_WhenTextIsMultibyte_ShouldCutOnRuneBoundary(t *testing.T) {
	got := preview(strings.Repeat("é", 500))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", previewLen)+"...", got)

	short := strings.Repeat("€", previewLen)
	assert.Equal(t, short, preview(short))
}

func TestToolRunner_Run_WhenResultIsMultibyte_ShouldLogValidUTF8(t *testing.T) {
	var buf bytes.Buffer
	// One ASCII byte shifts every 3-byte rune off the 200 byte mark.
	fc := &fakeCaller{resp: domain.TextResponse("a" + strings.Repeat("€", 300))}
	r := NewToolRunner(fc, nil, WithRunnerLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	defer r.Close()

	require.NoError(t, r.Run(context.Background(), agingJob()))
	var entry struct {
		Msg     string `json:"msg"`
		Preview string `json:"preview"`
	}
	dec := json.NewDecoder(&buf)
	for entry.Msg != "job result" {
		require.NoError(t, dec.Decode(&entry))
	}
	assert.True(t, utf8.ValidString(entry.Preview))
	assert.NotContains(t, entry.Preview, string(utf8.RuneError))
	assert.Equal(t, "a"+strings.Repeat("€", previewLen-1)+"...", entry.Preview)
}

func TestToolRunner_Run_ShouldReturnCallerErrorAndCount(t *testing.T) {
	m := metrics.NewCollector("")
	boom := errors.New("upstream down")
	r := NewToolRunner(&fakeCaller{err: boom}, nil, WithRunnerMetrics(m))
	defer r.Close()

	err := r.Run(context.Background(), agingJob())
	assert.ErrorIs(t, err, boom)
	n, gerr := testutil.GatherAndCount(m.Registry(), "billtool_scheduler_runs_total")
	require.NoError(t, gerr)
	assert.Equal(t, 1, n)
}

func TestToolRunner_Run_WhenPreviousRunActive_ShouldSkip(t *testing.T) {
	fc := &fakeCaller{block: make(chan struct{})}
	lanes := queue.NewLaneQueue()
	r := NewToolRunner(fc, nil, WithLanes(lanes))
	defer r.Close()

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), agingJob()) }()
	for lanes.Pending("aging") == 0 {
		time.Sleep(time.Millisecond)
	}

	err := r.Run(context.Background(), agingJob())
	assert.ErrorIs(t, err, queue.ErrLaneBusy)
	close(fc.block)
	require.NoError(t, <-done)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Len(t, fc.names, 1)
}

func TestNewToolRunner_WhenCallerNil_ShouldPanic(t *testing.T) {
	assert.Panics(t, func() { NewToolRunner(nil, nil) })
}
