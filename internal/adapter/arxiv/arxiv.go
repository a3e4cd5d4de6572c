// Package arxiv fetches preprints from the arXiv export API and maps
// each hit to a normalized paper record. The record's primary date is
// the submission date, not the first-published date: the dashboard
// shows what is new on the index today.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

const defaultBaseURL = "https://export.arxiv.org/api/query"

// submittedDate filter granularity used by the export API.
const windowStamp = "200601021504"

// Adapter queries the arXiv Atom API.
type Adapter struct {
	client  *adapter.Client
	baseURL string
	logger  *zap.Logger
}

// New constructs an Adapter. baseURL falls back to the public export
// endpoint when empty.
func New(client *adapter.Client, baseURL string, logger *zap.Logger) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, baseURL: baseURL, logger: logger}
}

// Fetch returns papers submitted inside the window, newest first.
// Paging is sequential; the context is observed between pages.
func (a *Adapter) Fetch(ctx context.Context, window adapter.Window, opts adapter.Options) ([]pulse.Paper, error) {
	opts = opts.Normalize()

	var out []pulse.Paper
	for start := 0; start < opts.MaxResults; start += opts.PageSize {
		if err := ctx.Err(); err != nil {
			return out, pulse.NewError(pulse.KindTransientNetwork, err)
		}
		page, err := a.fetchPage(ctx, window, opts, start)
		if err != nil {
			return out, err
		}
		out = append(out, page...)
		if len(page) < opts.PageSize {
			break
		}
	}
	if len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out, nil
}

func (a *Adapter) fetchPage(ctx context.Context, window adapter.Window, opts adapter.Options, start int) ([]pulse.Paper, error) {
	q := url.Values{}
	q.Set("search_query", buildQuery(opts.QueryTerms, window))
	q.Set("start", fmt.Sprint(start))
	q.Set("max_results", fmt.Sprint(opts.PageSize))
	q.Set("sortBy", sortField(opts.Sort))
	q.Set("sortOrder", "descending")

	body, err := a.client.GetRaw(ctx, a.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, pulse.Errorf(pulse.KindMalformedResponse, "decode atom feed: %w", err)
	}

	papers := make([]pulse.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		paper, ok := a.toPaper(entry)
		if !ok {
			continue
		}
		papers = append(papers, paper)
	}
	return papers, nil
}

// buildQuery ORs the free-text terms and ANDs the submittedDate
// window filter, matching the export API's query dialect.
func buildQuery(terms []string, window adapter.Window) string {
	var parts []string
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("all:%q", term))
	}
	query := strings.Join(parts, " OR ")
	if query != "" {
		query = "(" + query + ")"
	}
	if !window.From.IsZero() && !window.To.IsZero() {
		filter := fmt.Sprintf("submittedDate:[%s TO %s]",
			window.From.UTC().Format(windowStamp),
			window.To.UTC().Format(windowStamp),
		)
		if query == "" {
			return filter
		}
		query += " AND " + filter
	}
	return query
}

func sortField(s adapter.Sort) string {
	switch s {
	case adapter.SortUpdatedDesc:
		return "lastUpdatedDate"
	default:
		return "submittedDate"
	}
}

func (a *Adapter) toPaper(entry atomEntry) (pulse.Paper, bool) {
	id := shortID(entry.ID)
	title := strings.Join(strings.Fields(entry.Title), " ")
	if id == "" || title == "" {
		a.logger.Warn("dropping arxiv entry without id or title", zap.String("raw_id", entry.ID))
		return pulse.Paper{}, false
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, au := range entry.Authors {
		if name := strings.TrimSpace(au.Name); name != "" {
			authors = append(authors, name)
		}
	}
	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			categories = append(categories, cat.Term)
		}
	}

	submitted := entry.Published.UTC()
	firstPublished := submitted
	if !entry.Announced.IsZero() {
		firstPublished = entry.Announced.UTC()
	}

	return pulse.Paper{
		ID:             id,
		Title:          title,
		Authors:        authors,
		Abstract:       strings.TrimSpace(entry.Summary),
		Submitted:      submitted,
		FirstPublished: firstPublished,
		Updated:        entry.Updated.UTC(),
		URL:            entry.AbsURL(),
		RawCategories:  categories,
	}, true
}

// shortID strips the API id URL and any version suffix:
// "http://arxiv.org/abs/2512.01234v2" -> "2512.01234".
func shortID(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.LastIndex(raw, "/abs/"); idx >= 0 {
		raw = raw[idx+len("/abs/"):]
	}
	if idx := strings.LastIndex(raw, "v"); idx > 0 {
		if version := raw[idx+1:]; version != "" && strings.IndexFunc(version, notDigit) < 0 {
			raw = raw[:idx]
		}
	}
	return raw
}

func notDigit(r rune) bool { return r < '0' || r > '9' }

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  time.Time      `xml:"published"`
	Updated    time.Time      `xml:"updated"`
	Announced  time.Time      `xml:"announced"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Links      []atomLink     `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// AbsURL picks the canonical abstract page link.
func (e atomEntry) AbsURL() string {
	for _, l := range e.Links {
		if l.Rel == "alternate" && l.Href != "" {
			return l.Href
		}
	}
	if id := shortID(e.ID); id != "" {
		return "https://arxiv.org/abs/" + id
	}
	return e.ID
}
