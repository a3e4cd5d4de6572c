package jobs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter"
)

func TestFetchPaginatesEmployer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/postings", r.URL.Path)
		require.Equal(t, "Unitree", r.URL.Query().Get("employer"))
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"has_more":true,"postings":[
				{"role":"Robotics Engineer","location":"Hangzhou","seniority":"Senior","url":"https://jobs.example/1","posted_at":"2026-08-20"},
				{"role":"","url":"https://jobs.example/2","posted_at":"2026-08-20"}
			]}`)
		default:
			fmt.Fprint(w, `{"has_more":false,"postings":[
				{"employer":"Unitree Robotics","role":"Perception Lead","location":"Remote","url":"https://jobs.example/3","posted_at":"2026-08-22T10:00:00Z"}
			]}`)
		}
	}))
	defer srv.Close()

	a := New(adapter.NewClient(time.Second, 0, zap.NewNop()), srv.URL, []string{"Unitree"}, zap.NewNop())
	jobs, err := a.Fetch(context.Background(), adapter.Window{}, adapter.Options{PageSize: 2, MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	require.Equal(t, "Unitree", jobs[0].Employer)
	require.Equal(t, "Robotics Engineer", jobs[0].Role)
	require.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), jobs[0].PostedAt)
	require.Equal(t, "Unitree|Robotics Engineer|2026-08-20", jobs[0].Identity())

	// The upstream employer name wins when present.
	require.Equal(t, "Unitree Robotics", jobs[1].Employer)
	require.Equal(t, time.Date(2026, 8, 22, 10, 0, 0, 0, time.UTC), jobs[1].PostedAt)
}

func TestFetchAppliesWindow(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"has_more":false,"postings":[
			{"role":"Old Role","url":"https://jobs.example/old","posted_at":"2020-01-01"},
			{"role":"New Role","url":"https://jobs.example/new","posted_at":"2026-08-25"}
		]}`)
	}))
	defer srv.Close()

	a := New(adapter.NewClient(time.Second, 0, zap.NewNop()), srv.URL, []string{"Acme"}, zap.NewNop())
	window := adapter.Window{From: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
	jobs, err := a.Fetch(context.Background(), window, adapter.Options{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "New Role", jobs[0].Role)
}
