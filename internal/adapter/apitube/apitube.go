// Package apitube fetches industry news from the APITube news API
// and flattens each story to a normalized news record.
package apitube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

const defaultBaseURL = "https://api.apitube.io/v1/news"

// Adapter queries the news provider.
type Adapter struct {
	client  *adapter.Client
	baseURL string
	apiKey  string
	title   string
	lang    string
	logger  *zap.Logger
}

// New constructs an Adapter. The API key may be empty for providers
// that allow anonymous access in development.
func New(client *adapter.Client, baseURL, apiKey, titleQuery, language string, logger *zap.Logger) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if language == "" {
		language = "en"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		title:   titleQuery,
		lang:    language,
		logger:  logger,
	}
}

// Fetch returns stories published inside the window, newest first.
func (a *Adapter) Fetch(ctx context.Context, window adapter.Window, opts adapter.Options) ([]pulse.News, error) {
	opts = opts.Normalize()

	var out []pulse.News
	for page := 1; len(out) < opts.MaxResults; page++ {
		if err := ctx.Err(); err != nil {
			return out, pulse.NewError(pulse.KindTransientNetwork, err)
		}
		items, err := a.fetchPage(ctx, window, opts, page)
		if err != nil {
			return out, err
		}
		out = append(out, items...)
		if len(items) < opts.PageSize {
			break
		}
	}
	if len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out, nil
}

func (a *Adapter) fetchPage(ctx context.Context, window adapter.Window, opts adapter.Options, page int) ([]pulse.News, error) {
	q := url.Values{}
	title := a.title
	if len(opts.QueryTerms) > 0 {
		title = strings.Join(opts.QueryTerms, " OR ")
	}
	if title != "" {
		q.Set("title", title)
	}
	q.Set("language.code", a.lang)
	q.Set("per_page", fmt.Sprint(opts.PageSize))
	q.Set("page", fmt.Sprint(page))
	q.Set("sort.by", "published_at")
	q.Set("sort.order", "desc")
	if !window.From.IsZero() {
		q.Set("published_at.from", window.From.UTC().Format(time.RFC3339))
	}
	if !window.To.IsZero() {
		q.Set("published_at.to", window.To.UTC().Format(time.RFC3339))
	}

	header := http.Header{}
	if a.apiKey != "" {
		header.Set("X-API-Key", a.apiKey)
	}

	var resp apiResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/everything?"+q.Encode(), header, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "" && resp.Status != "ok" && resp.Status != "success" {
		return nil, pulse.Errorf(pulse.KindUpstreamUnavailable, "news provider status %q", resp.Status)
	}

	items := make([]pulse.News, 0, len(resp.Results))
	for _, story := range resp.Results {
		rec, ok := a.toNews(story)
		if !ok {
			continue
		}
		items = append(items, rec)
	}
	return items, nil
}

func (a *Adapter) toNews(story storyPayload) (pulse.News, bool) {
	link := canonicalURL(story.Href)
	if link == "" || strings.TrimSpace(story.Title) == "" {
		a.logger.Warn("dropping news story without url or title", zap.String("href", story.Href))
		return pulse.News{}, false
	}
	publishedAt, err := time.Parse(time.RFC3339, story.PublishedAt)
	if err != nil {
		a.logger.Warn("dropping news story with bad timestamp",
			zap.String("url", link), zap.String("published_at", story.PublishedAt))
		return pulse.News{}, false
	}
	return pulse.News{
		URL:         link,
		Title:       strings.TrimSpace(story.Title),
		Source:      story.Source.Name,
		Language:    story.Language.Code,
		PublishedAt: publishedAt.UTC(),
		Summary:     strings.TrimSpace(story.Description),
	}, true
}

// canonicalURL lowercases the host, strips fragments and common
// tracking parameters, and drops trailing slashes so that the same
// story syndicated with different decorations dedups to one identity.
func canonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") || param == "ref" || param == "fbclid" {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

type apiResponse struct {
	Status  string         `json:"status"`
	Results []storyPayload `json:"results"`
}

type storyPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Href        string `json:"href"`
	PublishedAt string `json:"published_at"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
}
