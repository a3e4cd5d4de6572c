// Package jobs fetches recruiting posts from the job-board API, one
// employer at a time.
package jobs

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

// Adapter paginates employer posting lists.
type Adapter struct {
	client    *adapter.Client
	baseURL   string
	employers []string
	logger    *zap.Logger
}

// New constructs an Adapter for the configured employers.
func New(client *adapter.Client, baseURL string, employers []string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, baseURL: baseURL, employers: employers, logger: logger}
}

// Fetch walks every employer's posting list. Pagination within an
// employer is sequential; the context is observed between pages.
func (a *Adapter) Fetch(ctx context.Context, window adapter.Window, opts adapter.Options) ([]pulse.Job, error) {
	opts = opts.Normalize()

	var out []pulse.Job
	for _, employer := range a.employers {
		posts, err := a.fetchEmployer(ctx, employer, window, opts)
		if err != nil {
			return out, fmt.Errorf("employer %s: %w", employer, err)
		}
		out = append(out, posts...)
	}
	return out, nil
}

func (a *Adapter) fetchEmployer(ctx context.Context, employer string, window adapter.Window, opts adapter.Options) ([]pulse.Job, error) {
	var out []pulse.Job
	for page := 1; len(out) < opts.MaxResults; page++ {
		if err := ctx.Err(); err != nil {
			return out, pulse.NewError(pulse.KindTransientNetwork, err)
		}
		q := url.Values{}
		q.Set("employer", employer)
		q.Set("page", fmt.Sprint(page))
		q.Set("per_page", fmt.Sprint(opts.PageSize))

		var resp postingsPage
		if err := a.client.GetJSON(ctx, a.baseURL+"/api/postings?"+q.Encode(), nil, &resp); err != nil {
			return out, err
		}
		for _, p := range resp.Postings {
			job, ok := a.toJob(employer, p)
			if !ok {
				continue
			}
			if !window.Contains(job.PostedAt) {
				continue
			}
			out = append(out, job)
		}
		if !resp.HasMore || len(resp.Postings) == 0 {
			break
		}
	}
	return out, nil
}

func (a *Adapter) toJob(employer string, p postingPayload) (pulse.Job, bool) {
	role := strings.TrimSpace(p.Role)
	if role == "" {
		a.logger.Warn("dropping posting without role", zap.String("employer", employer))
		return pulse.Job{}, false
	}
	postedAt, err := time.Parse("2006-01-02", p.PostedAt)
	if err != nil {
		if postedAt, err = time.Parse(time.RFC3339, p.PostedAt); err != nil {
			a.logger.Warn("dropping posting with bad date",
				zap.String("employer", employer), zap.String("posted_at", p.PostedAt))
			return pulse.Job{}, false
		}
	}
	return pulse.Job{
		Employer:  strings.TrimSpace(firstNonEmpty(p.Employer, employer)),
		Role:      role,
		Location:  strings.TrimSpace(p.Location),
		Seniority: strings.TrimSpace(p.Seniority),
		Link:      p.URL,
		PostedAt:  postedAt.UTC(),
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type postingsPage struct {
	Postings []postingPayload `json:"postings"`
	HasMore  bool             `json:"has_more"`
}

type postingPayload struct {
	Employer  string `json:"employer"`
	Role      string `json:"role"`
	Location  string `json:"location"`
	Seniority string `json:"seniority"`
	URL       string `json:"url"`
	PostedAt  string `json:"posted_at"`
}
