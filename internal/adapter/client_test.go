package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

func TestClientRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 3, zap.NewNop())
	c.backoff = time.Millisecond

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.GetJSON(context.Background(), srv.URL, nil, &out)
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryAuthFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(time.Second, 3, zap.NewNop())
	c.backoff = time.Millisecond

	_, err := c.GetRaw(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, pulse.IsKind(err, pulse.KindAuthRequired))
	require.Equal(t, int32(1), calls.Load())
}

func TestClientExhaustsRetriesOnRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(time.Second, 2, zap.NewNop())
	c.backoff = time.Millisecond

	_, err := c.GetRaw(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, pulse.IsKind(err, pulse.KindRateLimited))
	require.Equal(t, int32(3), calls.Load())
}

func TestClientClassifiesMalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 0, zap.NewNop())
	var out map[string]any
	err := c.GetJSON(context.Background(), srv.URL, nil, &out)
	require.Error(t, err)
	require.True(t, pulse.IsKind(err, pulse.KindMalformedResponse))
}

func TestWindowContains(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	w := Window{From: from, To: to}

	require.True(t, w.Contains(from), "window is closed at From")
	require.False(t, w.Contains(to), "window is open at To")
	require.True(t, w.Contains(from.Add(time.Hour)))
	require.False(t, w.Contains(from.Add(-time.Second)))
	require.True(t, Window{}.Contains(time.Now()), "zero window is unbounded")
}

func TestOptionsNormalize(t *testing.T) {
	t.Parallel()

	o := Options{}.Normalize()
	require.Equal(t, 500, o.MaxResults)
	require.Equal(t, 100, o.PageSize)
	require.Equal(t, 15*time.Second, o.PerRequestTimeout)

	o = Options{MaxResults: 10, PageSize: 50}.Normalize()
	require.Equal(t, 10, o.PageSize, "page size is capped by max results")
}
