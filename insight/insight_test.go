package insight_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	customerrors "queue-twin/errors"
	"queue-twin/insight"
	"queue-twin/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var snapshot = models.QueueSnapshot{
	Timestamp:                  time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC),
	QueueLength:                180,
	AgentCount:                 8,
	ArrivalRate:                26,
	ProjectedBreachProbability: 75,
	ActiveCases:                []models.Case{},
	CompletedCount:             12,
	BreachCount:                3,
}

// geminiReply wraps model text the way generateContent returns it.
func geminiReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	})
	return string(b)
}

func newGemini(t *testing.T, srv *httptest.Server) *insight.GeminiClient {
	t.Helper()
	c, err := insight.NewGeminiClient(context.Background(), insight.GeminiConfig{
		Endpoint:   srv.URL,
		Model:      "test-model",
		APIKey:     "secret",
		HTTPClient: srv.Client(),
		Now:        func() time.Time { return time.Date(2026, 3, 4, 9, 31, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return c
}

func TestNewGeminiClient_Validation(t *testing.T) {
	tests := map[string]insight.GeminiConfig{
		"MissingEndpoint": {Model: "m", APIKey: "k"},
		"MissingModel":    {Endpoint: "http://x", APIKey: "k"},
		"MissingKey":      {Endpoint: "http://x", Model: "m"},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := insight.NewGeminiClient(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}

func TestGeminiClient_Summarize(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = io.WriteString(w, geminiReply(`{"summary":"Queue is growing","riskLevel":"high","recommendations":["a","b","c"]}`))
	}))
	defer srv.Close()

	got, err := newGemini(t, srv).Summarize(context.Background(), snapshot)
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/test-model:generateContent", gotPath)
	assert.Equal(t, "secret", gotKey)
	gen, ok := gotBody["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", gen["responseMimeType"])
	assert.NotNil(t, gen["responseSchema"])

	assert.Equal(t, "Queue is growing", got.Summary)
	assert.Equal(t, "high", got.RiskLevel)
	assert.Equal(t, []string{"a", "b", "c"}, got.Recommendations)
	assert.Equal(t, snapshot.Timestamp, got.SnapshotAt)
}

func TestGeminiClient_Evaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, geminiReply(`{"breachReduction":12.5,"waitTimeChange":-4,"recommendation":"Do it"}`))
	}))
	defer srv.Close()

	got, err := newGemini(t, srv).Evaluate(context.Background(), snapshot, models.Scenario{Name: "Add 4 Agents", TargetAgents: 12, AgentAdjustment: 4})
	require.NoError(t, err)
	assert.Equal(t, models.ScenarioResult{BreachReduction: 12.5, WaitTimeChange: -4, Recommendation: "Do it"}, got)
}

func TestGeminiClient_Failures(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
		want   error
	}{
		"ServerError":    {status: http.StatusInternalServerError, body: `{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`, want: customerrors.ErrInsightUnavailable},
		"RateLimited":    {status: http.StatusTooManyRequests, body: `{"error":{"code":429,"message":"slow down","status":"RESOURCE_EXHAUSTED"}}`, want: customerrors.ErrInsightUnavailable},
		"Unauthorized":   {status: http.StatusForbidden, body: "denied", want: customerrors.ErrInsightUnavailable},
		"NoCandidates":   {status: http.StatusOK, body: `{"candidates":[]}`, want: customerrors.ErrMalformedResponse},
		"TextNotJSON":    {status: http.StatusOK, body: geminiReply("sure, here you go"), want: customerrors.ErrMalformedResponse},
		"MissingSummary": {status: http.StatusOK, body: geminiReply(`{"riskLevel":"low","recommendations":[]}`), want: customerrors.ErrMalformedResponse},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newGemini(t, srv).Summarize(context.Background(), snapshot)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var ie *customerrors.InsightError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, insight.OpSummarize, ie.Op)
		})
	}
}

func TestGeminiClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newGemini(t, srv).Summarize(ctx, snapshot)
	assert.True(t, errors.Is(err, customerrors.ErrInsightUnavailable), "got %v", err)
}

// fakeProvider returns scripted results and can block until released.
type fakeProvider struct {
	mu       sync.Mutex
	insights []models.Insight
	errs     []error
	result   models.ScenarioResult
	evalErr  error
	calls    atomic.Int32
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeProvider) Summarize(ctx context.Context, s models.QueueSnapshot) (models.Insight, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return models.Insight{}, &customerrors.InsightError{Op: insight.OpSummarize, Err: ctx.Err()}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var ins models.Insight
	var err error
	if len(f.insights) > 0 {
		ins, f.insights = f.insights[0], f.insights[1:]
	}
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	return ins, err
}

func (f *fakeProvider) Evaluate(context.Context, models.QueueSnapshot, models.Scenario) (models.ScenarioResult, error) {
	return f.result, f.evalErr
}

func TestService_FailureKeepsPreviousInsight(t *testing.T) {
	unavailable := &customerrors.InsightError{Op: insight.OpSummarize, Err: customerrors.ErrInsightUnavailable}
	p := &fakeProvider{
		insights: []models.Insight{{Summary: "first", RiskLevel: "medium"}, {}},
		errs:     []error{nil, unavailable},
	}
	svc := insight.NewService(p, time.Second, zerolog.Nop())

	_, ok := svc.Latest()
	assert.False(t, ok)

	require.NoError(t, svc.Refresh(context.Background(), snapshot))
	got, ok := svc.Latest()
	require.True(t, ok)
	assert.Equal(t, "first", got.Summary)
	assert.Equal(t, snapshot.Timestamp, got.SnapshotAt)
	assert.NoError(t, svc.LastError())

	err := svc.Refresh(context.Background(), snapshot)
	assert.True(t, errors.Is(err, customerrors.ErrInsightUnavailable))
	assert.Error(t, svc.LastError())

	got, ok = svc.Latest()
	require.True(t, ok)
	assert.Equal(t, "first", got.Summary)
}

func TestService_AtMostOneRefreshInFlight(t *testing.T) {
	p := &fakeProvider{
		insights: []models.Insight{{Summary: "done"}},
		block:    make(chan struct{}),
		started:  make(chan struct{}, 1),
	}
	svc := insight.NewService(p, time.Second, zerolog.Nop())

	require.True(t, svc.TriggerRefresh(snapshot))
	<-p.started
	assert.True(t, svc.InFlight())

	assert.False(t, svc.TriggerRefresh(snapshot))
	err := svc.Refresh(context.Background(), snapshot)
	assert.True(t, errors.Is(err, customerrors.ErrRefreshInProgress))
	assert.Equal(t, int32(1), p.calls.Load())

	close(p.block)
	require.Eventually(t, func() bool { return !svc.InFlight() }, time.Second, 5*time.Millisecond)

	got, ok := svc.Latest()
	require.True(t, ok)
	assert.Equal(t, "done", got.Summary)
}

func TestService_Timeout(t *testing.T) {
	p := &fakeProvider{block: make(chan struct{})}
	defer close(p.block)
	svc := insight.NewService(p, 10*time.Millisecond, zerolog.Nop())

	err := svc.Refresh(context.Background(), snapshot)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	_, ok := svc.Latest()
	assert.False(t, ok)
	assert.False(t, svc.InFlight())
}

func TestService_Evaluate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		p := &fakeProvider{result: models.ScenarioResult{BreachReduction: 20, WaitTimeChange: -3, Recommendation: "ok"}}
		svc := insight.NewService(p, time.Second, zerolog.Nop())

		got, err := svc.Evaluate(context.Background(), snapshot, models.Scenario{Name: "Add 2 Agents"})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 20.0, got.BreachReduction)
	})

	t.Run("FailureIsAbsent", func(t *testing.T) {
		p := &fakeProvider{evalErr: &customerrors.InsightError{Op: insight.OpEvaluate, Err: customerrors.ErrMalformedResponse}}
		svc := insight.NewService(p, time.Second, zerolog.Nop())

		got, err := svc.Evaluate(context.Background(), snapshot, models.Scenario{})
		assert.Nil(t, got)
		assert.True(t, errors.Is(err, customerrors.ErrMalformedResponse))
	})
}

func TestService_Disabled(t *testing.T) {
	svc := insight.NewService(nil, time.Second, zerolog.Nop())

	err := svc.Refresh(context.Background(), snapshot)
	assert.True(t, errors.Is(err, customerrors.ErrInsightDisabled))

	res, err := svc.Evaluate(context.Background(), snapshot, models.Scenario{})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, customerrors.ErrInsightDisabled))
}

func TestService_RunRefreshesImmediatelyAndPeriodically(t *testing.T) {
	p := &fakeProvider{
		insights: []models.Insight{{Summary: "1"}, {Summary: "2"}, {Summary: "3"}},
	}
	svc := insight.NewService(p, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx, 10*time.Millisecond, func() (models.QueueSnapshot, bool) { return snapshot, true })
	}()

	require.Eventually(t, func() bool { return p.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)

	_, ok := svc.Latest()
	assert.True(t, ok)
}

func TestService_TriggeredRefreshEndsWithRun(t *testing.T) {
	p := &fakeProvider{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	defer close(p.block)
	svc := insight.NewService(p, time.Minute, zerolog.Nop())

	ready := make(chan struct{})
	var once sync.Once
	current := func() (models.QueueSnapshot, bool) {
		once.Do(func() { close(ready) })
		return models.QueueSnapshot{}, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, time.Hour, current) }()
	<-ready

	require.True(t, svc.TriggerRefresh(snapshot))
	<-p.started
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, svc.InFlight())
	assert.True(t, errors.Is(svc.LastError(), context.Canceled), "got %v", svc.LastError())

	assert.False(t, svc.TriggerRefresh(snapshot))
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestService_RunSkipsWithoutSnapshot(t *testing.T) {
	p := &fakeProvider{}
	svc := insight.NewService(p, time.Second, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := svc.Run(ctx, 5*time.Millisecond, func() (models.QueueSnapshot, bool) { return models.QueueSnapshot{}, false })
	assert.NoError(t, err)
	assert.Equal(t, int32(0), p.calls.Load())
}
