// Package store defines the persistence gateway between the refresh
// pipelines and the read API, with an in-memory implementation used
// by default and a Postgres implementation for durable deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

// ErrNotFound is returned by lookups that miss.
var ErrNotFound = errors.New("store: not found")

// Filter narrows a stream query. Zero fields match everything. Query
// is matched case-insensitively against titles (and abstracts, for
// papers). From/To bound the stream's primary timestamp, closed-open.
type Filter struct {
	Category string
	Source   string
	Query    string
	From     time.Time
	To       time.Time
}

// Page is offset pagination. Limit 0 falls back to DefaultPageLimit.
type Page struct {
	Offset int
	Limit  int
}

// DefaultPageLimit caps unpaginated queries.
const DefaultPageLimit = 50

func (p Page) normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	return p
}

// Stats holds the per-stream record counts served by the stats
// endpoint.
type Stats struct {
	Papers   int `json:"papers"`
	News     int `json:"news"`
	Jobs     int `json:"jobs"`
	Datasets int `json:"datasets"`
	Creators int `json:"creators"`
}

// SearchResults groups cross-stream free-text matches.
type SearchResults struct {
	Papers   []pulse.Paper   `json:"papers"`
	News     []pulse.News    `json:"news"`
	Jobs     []pulse.Job     `json:"jobs"`
	Datasets []pulse.Dataset `json:"datasets"`
}

// Gateway is the persistence contract. Upserts are idempotent and
// keyed by each record's identity; re-upserting preserves the
// original creation timestamp. Queries return the matching page plus
// the total match count before pagination.
type Gateway interface {
	UpsertPapers(ctx context.Context, papers []pulse.Paper) (int, error)
	QueryPapers(ctx context.Context, f Filter, p Page) ([]pulse.Paper, int, error)

	UpsertNews(ctx context.Context, items []pulse.News) (int, error)
	QueryNews(ctx context.Context, f Filter, p Page) ([]pulse.News, int, error)

	UpsertJobs(ctx context.Context, jobs []pulse.Job) (int, error)
	QueryJobs(ctx context.Context, f Filter, p Page) ([]pulse.Job, int, error)

	UpsertDatasets(ctx context.Context, datasets []pulse.Dataset) (int, error)
	QueryDatasets(ctx context.Context, f Filter, p Page) ([]pulse.Dataset, int, error)

	// ReplaceCreatorCards swaps the full creator card set; cards are a
	// point-in-time snapshot, not an accumulating stream.
	ReplaceCreatorCards(ctx context.Context, cards []pulse.CreatorCard) error
	CreatorCards(ctx context.Context) ([]pulse.CreatorCard, error)

	Stats(ctx context.Context) (Stats, error)
	Search(ctx context.Context, query string, p Page) (SearchResults, error)

	Close()
}
