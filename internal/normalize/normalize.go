// Package normalize turns freshly fetched records into store-ready
// batches: taxonomy resolution, identity checks, and in-batch
// deduplication. Running a batch through the normalizer twice yields
// the same batch.
package normalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/taxonomy"
)

// Normalizer cleans per-stream batches. It never mutates its input
// slices in place.
type Normalizer struct {
	taxonomy *taxonomy.Table
	logger   *zap.Logger
}

// New builds a Normalizer over the given taxonomy table. A nil table
// falls back to the default one.
func New(table *taxonomy.Table, logger *zap.Logger) *Normalizer {
	if table == nil {
		table = taxonomy.Default
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{taxonomy: table, logger: logger}
}

// Papers normalizes a paper batch: records without an id or title are
// dropped with a warning, raw upstream categories are resolved to one
// canonical taxonomy key, and later duplicates of the same id are
// discarded. The served date is always Submitted.
func (n *Normalizer) Papers(in []pulse.Paper) []pulse.Paper {
	out := make([]pulse.Paper, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, p := range in {
		p.ID = strings.TrimSpace(p.ID)
		p.Title = collapseSpace(p.Title)
		if p.ID == "" || p.Title == "" {
			n.logger.Warn("dropping paper without identity",
				zap.String("id", p.ID),
				zap.String("title", p.Title),
			)
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}

		p.Category = n.resolveCategory(p.Category, p.RawCategories, p.Title, p.Abstract)
		if p.FirstPublished.IsZero() {
			p.FirstPublished = p.Submitted
		}
		if p.Updated.IsZero() {
			p.Updated = p.Submitted
		}
		out = append(out, p)
	}
	return out
}

// resolveCategory picks the canonical taxonomy key for a paper: an
// already-resolved category wins, then each raw upstream category in
// order, then keyword containment over title and abstract.
func (n *Normalizer) resolveCategory(current string, raw []string, title, abstract string) string {
	if key := n.taxonomy.Normalize(current); key != taxonomy.Uncategorized {
		return key
	}
	for _, rc := range raw {
		if key := n.taxonomy.Normalize(rc); key != taxonomy.Uncategorized {
			return key
		}
	}
	if key := n.taxonomy.Normalize(title + " " + abstract); key != taxonomy.Uncategorized {
		return key
	}
	return taxonomy.Uncategorized
}

// News normalizes a news batch. Identity is the canonical URL; records
// without one, or without a title, are dropped with a warning.
func (n *Normalizer) News(in []pulse.News) []pulse.News {
	out := make([]pulse.News, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, item := range in {
		item.URL = strings.TrimSpace(item.URL)
		item.Title = collapseSpace(item.Title)
		if item.URL == "" || item.Title == "" {
			n.logger.Warn("dropping news item without identity",
				zap.String("url", item.URL),
			)
			continue
		}
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Jobs normalizes a job batch, deduplicating on the
// (employer, role, posted-date) identity tuple.
func (n *Normalizer) Jobs(in []pulse.Job) []pulse.Job {
	out := make([]pulse.Job, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, j := range in {
		j.Employer = strings.TrimSpace(j.Employer)
		j.Role = collapseSpace(j.Role)
		if j.Employer == "" || j.Role == "" || j.PostedAt.IsZero() {
			n.logger.Warn("dropping job without identity",
				zap.String("employer", j.Employer),
				zap.String("role", j.Role),
			)
			continue
		}
		key := j.Identity()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, j)
	}
	return out
}

// Datasets normalizes a dataset batch keyed by link. Free-text
// categories from the curated article resolve through the taxonomy so
// stored keys are always canonical.
func (n *Normalizer) Datasets(in []pulse.Dataset) []pulse.Dataset {
	out := make([]pulse.Dataset, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, d := range in {
		d.Link = strings.TrimSpace(d.Link)
		d.Name = collapseSpace(d.Name)
		if d.Link == "" || d.Name == "" {
			n.logger.Warn("dropping dataset without identity",
				zap.String("link", d.Link),
			)
			continue
		}
		d.Category = n.taxonomy.Normalize(d.Category)
		if _, dup := seen[d.Link]; dup {
			continue
		}
		seen[d.Link] = struct{}{}
		out = append(out, d)
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
