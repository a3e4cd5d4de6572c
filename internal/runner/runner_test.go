package runner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/metrics"
)

type captureAlerter struct {
	mu     sync.Mutex
	alerts []Alert
}

func (c *captureAlerter) Alert(_ context.Context, a Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
}

func (c *captureAlerter) all() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

func TestRunDisabledIsExactPassthrough(t *testing.T) {
	t.Parallel()

	alerter := &captureAlerter{}
	r := New(Policy{Enabled: false, MaxRetries: 3, AlertOnFinalFailure: true}, alerter, zap.NewNop())

	taskErr := errors.New("upstream exploded")
	calls := 0
	err := r.Run(context.Background(), "papers", func(context.Context) error {
		calls++
		return taskErr
	})
	require.Equal(t, 1, calls, "disabled policy runs the task exactly once")
	require.Same(t, taskErr, err, "error comes back untouched")
	require.Empty(t, alerter.all(), "no alert without retry policy")
}

func TestRunRetriesWithBackoffSchedule(t *testing.T) {
	t.Parallel()

	r := New(Policy{
		Enabled:       true,
		MaxRetries:    3,
		RetryDelay:    time.Second,
		BackoffFactor: 2,
	}, nil, zap.NewNop())

	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	calls := 0
	err := r.Run(context.Background(), "papers", func(context.Context) error {
		calls++
		if calls < 4 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 4, calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestRunAlertsOnFinalFailure(t *testing.T) {
	t.Parallel()

	alerter := &captureAlerter{}
	failedAt := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	r := New(Policy{
		Enabled:             true,
		MaxRetries:          2,
		RetryDelay:          time.Millisecond,
		BackoffFactor:       2,
		AlertOnFinalFailure: true,
	}, alerter, zap.NewNop())
	r.now = func() time.Time { return failedAt }

	err := r.Run(context.Background(), "news", func(context.Context) error {
		return errors.New("still broken")
	})
	require.Error(t, err)

	alerts := alerter.all()
	require.Len(t, alerts, 1)
	require.Equal(t, "news", alerts[0].Task)
	require.Equal(t, failedAt, alerts[0].FailedAt)
	require.Equal(t, 2, alerts[0].Retries)
	require.Equal(t, "still broken", alerts[0].Reason)
}

func TestRunTruncatesLongAlertReasons(t *testing.T) {
	t.Parallel()

	alerter := &captureAlerter{}
	r := New(Policy{
		Enabled:             true,
		MaxRetries:          0,
		RetryDelay:          time.Millisecond,
		AlertOnFinalFailure: true,
	}, alerter, zap.NewNop())

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	_ = r.Run(context.Background(), "jobs", func(context.Context) error {
		return errors.New(string(long))
	})

	alerts := alerter.all()
	require.Len(t, alerts, 1)
	require.Len(t, alerts[0].Reason, 500)
}

func TestRunAbortsWhenContextCancelledDuringWait(t *testing.T) {
	t.Parallel()

	r := New(Policy{Enabled: true, MaxRetries: 3, RetryDelay: time.Hour}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := r.Run(ctx, "datasets", func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls, "no further attempts after cancellation")
}

func TestDispatcherPostsFeishuWebhook(t *testing.T) {
	t.Parallel()

	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(DispatcherConfig{FeishuWebhook: srv.URL}, zap.NewNop())
	d.Alert(context.Background(), Alert{
		Task:     "papers",
		FailedAt: time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC),
		Retries:  3,
		Reason:   "rate limited",
	})

	var payload struct {
		MsgType string `json:"msg_type"`
		Content struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Equal(t, "text", payload.MsgType)
	require.Contains(t, payload.Content.Text, "papers")
	require.Contains(t, payload.Content.Text, "3 retries")
	require.Contains(t, payload.Content.Text, "rate limited")
}

func TestDispatcherSendsEmail(t *testing.T) {
	t.Parallel()

	var (
		gotAddr string
		gotTo   []string
		gotMsg  []byte
	)
	d := NewDispatcher(DispatcherConfig{
		EmailEnabled: true,
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
		SMTPUser:     "alerts@example.com",
		SMTPPassword: "secret",
		EmailTo:      "ops@example.com, oncall@example.com",
	}, zap.NewNop())
	d.sendMail = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotMsg = msg
		return nil
	}

	d.Alert(context.Background(), Alert{Task: "news", Retries: 1, Reason: "boom"})

	require.Equal(t, "smtp.example.com:587", gotAddr)
	require.Equal(t, []string{"ops@example.com", "oncall@example.com"}, gotTo)
	require.Contains(t, string(gotMsg), "Subject: [embodiedpulse] task news failed")
}

func TestDispatcherSwallowsTransportFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(DispatcherConfig{FeishuWebhook: srv.URL}, zap.NewNop())
	// Must not panic or propagate anything.
	d.Alert(context.Background(), Alert{Task: "papers", Reason: "boom"})
}

func TestDispatcherCountsDispatchedAlerts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(DispatcherConfig{FeishuWebhook: srv.URL}, zap.NewNop())
	d.Alert(context.Background(), Alert{Task: "papers", Reason: "boom"})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rec.Body.String(), `pulse_alerts_dispatched_total{transport="feishu"}`)
}
