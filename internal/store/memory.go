package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

// Memory is the in-process Gateway used by default and in tests.
// Reads return copies, never internal state.
type Memory struct {
	mu       sync.RWMutex
	papers   map[string]pulse.Paper
	news     map[string]pulse.News
	jobs     map[string]pulse.Job
	datasets map[string]pulse.Dataset
	// datasetOrder preserves first-seen (curated) ordering of links.
	datasetOrder []string
	creators     []pulse.CreatorCard
	now          func() time.Time
}

// NewMemory constructs an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		papers:   make(map[string]pulse.Paper),
		news:     make(map[string]pulse.News),
		jobs:     make(map[string]pulse.Job),
		datasets: make(map[string]pulse.Dataset),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UpsertPapers inserts or updates papers keyed by id. The creation
// timestamp of an existing row survives the update.
func (m *Memory) UpsertPapers(_ context.Context, papers []pulse.Paper) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range papers {
		if prev, ok := m.papers[p.ID]; ok {
			p.CreatedAt = prev.CreatedAt
		} else {
			p.CreatedAt = m.now()
		}
		m.papers[p.ID] = p
	}
	return len(papers), nil
}

// QueryPapers returns papers newest-submitted first.
func (m *Memory) QueryPapers(_ context.Context, f Filter, p Page) ([]pulse.Paper, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]pulse.Paper, 0, len(m.papers))
	for _, paper := range m.papers {
		if !paperMatches(paper, f) {
			continue
		}
		matched = append(matched, paper)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Submitted.Equal(matched[j].Submitted) {
			return matched[i].Submitted.After(matched[j].Submitted)
		}
		return matched[i].ID < matched[j].ID
	})
	total := len(matched)
	return pageSlice(matched, p), total, nil
}

func paperMatches(paper pulse.Paper, f Filter) bool {
	if f.Category != "" && paper.Category != f.Category {
		return false
	}
	if !inRange(paper.Submitted, f.From, f.To) {
		return false
	}
	if f.Query != "" && !containsFold(paper.Title, f.Query) && !containsFold(paper.Abstract, f.Query) {
		return false
	}
	return true
}

// UpsertNews inserts or updates news keyed by canonical URL.
func (m *Memory) UpsertNews(_ context.Context, items []pulse.News) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if prev, ok := m.news[item.URL]; ok {
			item.CreatedAt = prev.CreatedAt
		} else {
			item.CreatedAt = m.now()
		}
		m.news[item.URL] = item
	}
	return len(items), nil
}

// QueryNews returns news newest-published first.
func (m *Memory) QueryNews(_ context.Context, f Filter, p Page) ([]pulse.News, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]pulse.News, 0, len(m.news))
	for _, item := range m.news {
		if f.Source != "" && !strings.EqualFold(item.Source, f.Source) {
			continue
		}
		if !inRange(item.PublishedAt, f.From, f.To) {
			continue
		}
		if f.Query != "" && !containsFold(item.Title, f.Query) {
			continue
		}
		matched = append(matched, item)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].PublishedAt.Equal(matched[j].PublishedAt) {
			return matched[i].PublishedAt.After(matched[j].PublishedAt)
		}
		return matched[i].URL < matched[j].URL
	})
	total := len(matched)
	return pageSlice(matched, p), total, nil
}

// UpsertJobs inserts or updates jobs keyed by the identity tuple.
func (m *Memory) UpsertJobs(_ context.Context, jobs []pulse.Job) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range jobs {
		key := j.Identity()
		if prev, ok := m.jobs[key]; ok {
			j.CreatedAt = prev.CreatedAt
		} else {
			j.CreatedAt = m.now()
		}
		m.jobs[key] = j
	}
	return len(jobs), nil
}

// QueryJobs returns jobs newest-posted first.
func (m *Memory) QueryJobs(_ context.Context, f Filter, p Page) ([]pulse.Job, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]pulse.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if f.Source != "" && !strings.EqualFold(j.Employer, f.Source) {
			continue
		}
		if !inRange(j.PostedAt, f.From, f.To) {
			continue
		}
		if f.Query != "" && !containsFold(j.Role, f.Query) && !containsFold(j.Employer, f.Query) {
			continue
		}
		matched = append(matched, j)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].PostedAt.Equal(matched[j].PostedAt) {
			return matched[i].PostedAt.After(matched[j].PostedAt)
		}
		return matched[i].Identity() < matched[j].Identity()
	})
	total := len(matched)
	return pageSlice(matched, p), total, nil
}

// UpsertDatasets inserts or updates datasets keyed by link.
func (m *Memory) UpsertDatasets(_ context.Context, datasets []pulse.Dataset) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range datasets {
		if prev, ok := m.datasets[d.Link]; ok {
			d.CreatedAt = prev.CreatedAt
		} else {
			d.CreatedAt = m.now()
			m.datasetOrder = append(m.datasetOrder, d.Link)
		}
		m.datasets[d.Link] = d
	}
	return len(datasets), nil
}

// QueryDatasets returns datasets in curated order, the order the
// catalog first listed them.
func (m *Memory) QueryDatasets(_ context.Context, f Filter, p Page) ([]pulse.Dataset, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]pulse.Dataset, 0, len(m.datasets))
	for _, link := range m.datasetOrder {
		d := m.datasets[link]
		if f.Category != "" && d.Category != f.Category {
			continue
		}
		if f.Query != "" && !containsFold(d.Name, f.Query) && !containsFold(d.Description, f.Query) {
			continue
		}
		matched = append(matched, d)
	}
	total := len(matched)
	return pageSlice(matched, p), total, nil
}

// ReplaceCreatorCards swaps the whole card snapshot.
func (m *Memory) ReplaceCreatorCards(_ context.Context, cards []pulse.CreatorCard) error {
	copied := make([]pulse.CreatorCard, len(cards))
	copy(copied, cards)
	m.mu.Lock()
	m.creators = copied
	m.mu.Unlock()
	return nil
}

// CreatorCards returns the current card snapshot.
func (m *Memory) CreatorCards(_ context.Context) ([]pulse.CreatorCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]pulse.CreatorCard, len(m.creators))
	copy(out, m.creators)
	return out, nil
}

// Stats reports the per-stream record counts.
func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Papers:   len(m.papers),
		News:     len(m.news),
		Jobs:     len(m.jobs),
		Datasets: len(m.datasets),
		Creators: len(m.creators),
	}, nil
}

// Search runs the free-text filter over every stream with one shared
// page size.
func (m *Memory) Search(ctx context.Context, query string, p Page) (SearchResults, error) {
	var out SearchResults
	var err error
	f := Filter{Query: query}
	if out.Papers, _, err = m.QueryPapers(ctx, f, p); err != nil {
		return SearchResults{}, err
	}
	if out.News, _, err = m.QueryNews(ctx, f, p); err != nil {
		return SearchResults{}, err
	}
	if out.Jobs, _, err = m.QueryJobs(ctx, f, p); err != nil {
		return SearchResults{}, err
	}
	if out.Datasets, _, err = m.QueryDatasets(ctx, f, p); err != nil {
		return SearchResults{}, err
	}
	return out, nil
}

// Close is a no-op for the in-memory gateway.
func (m *Memory) Close() {}

func pageSlice[T any](in []T, p Page) []T {
	p = p.normalize()
	if p.Offset >= len(in) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if end > len(in) {
		end = len(in)
	}
	out := make([]T, end-p.Offset)
	copy(out, in[p.Offset:end])
	return out
}

func inRange(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && !ts.Before(to) {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
