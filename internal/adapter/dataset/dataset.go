// Package dataset extracts curated dataset entries from a published
// article page. When automatic extraction fails the adapter falls
// back to the manually curated in-process list so the stream never
// silently empties.
package dataset

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

// Adapter reads the curated article and parses dataset items.
type Adapter struct {
	client     *adapter.Client
	articleURL string
	logger     *zap.Logger
}

// New constructs an Adapter. An empty articleURL means the curated
// fallback list is always used.
func New(client *adapter.Client, articleURL string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, articleURL: articleURL, logger: logger}
}

// Fetch returns the curated dataset entries in curated order.
func (a *Adapter) Fetch(ctx context.Context, _ adapter.Window, _ adapter.Options) ([]pulse.Dataset, error) {
	if a.articleURL == "" {
		a.logger.Warn("dataset article url not configured, serving curated fallback")
		return curatedFallback(), nil
	}
	body, err := a.client.GetRaw(ctx, a.articleURL)
	if err != nil {
		a.logger.Warn("dataset article fetch failed, serving curated fallback", zap.Error(err))
		return curatedFallback(), nil
	}
	items, err := parseArticle(body)
	if err != nil || len(items) == 0 {
		a.logger.Warn("dataset article parse failed, serving curated fallback", zap.Error(err))
		return curatedFallback(), nil
	}
	return items, nil
}

// parseArticle expects the curated article's table layout: each row
// holds name, description, category, and links.
func parseArticle(body []byte) ([]pulse.Dataset, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var items []pulse.Dataset
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		name := strings.TrimSpace(cells.Eq(0).Text())
		link, _ := cells.Eq(0).Find("a").First().Attr("href")
		description := strings.TrimSpace(cells.Eq(1).Text())
		category := strings.TrimSpace(cells.Eq(2).Text())
		if name == "" || link == "" {
			return
		}
		item := pulse.Dataset{
			Link:        link,
			Name:        name,
			Description: description,
			Category:    category,
		}
		if cells.Length() > 3 {
			if paper, ok := cells.Eq(3).Find("a").First().Attr("href"); ok {
				item.PaperURL = paper
			}
		}
		items = append(items, item)
	})
	return items, nil
}

// curatedFallback is maintained by the data owners; entries here are
// placeholders until the curated article parses again.
func curatedFallback() []pulse.Dataset {
	return []pulse.Dataset{
		{
			Link:        "https://github.com/google-deepmind/open_x_embodiment",
			Name:        "Open X-Embodiment",
			Description: "Cross-embodiment robot learning dataset aggregating trajectories from many labs.",
			Category:    "Operation/Manipulation",
			PaperURL:    "https://arxiv.org/abs/2310.08864",
			SourceURL:   "https://robotics-transformer-x.github.io/",
			Tags:        []string{"manipulation", "imitation learning"},
		},
		{
			Link:        "https://github.com/droid-dataset/droid",
			Name:        "DROID",
			Description: "Large-scale in-the-wild robot manipulation dataset collected across hundreds of scenes.",
			Category:    "Operation/Manipulation",
			PaperURL:    "https://arxiv.org/abs/2403.12945",
			SourceURL:   "https://droid-dataset.github.io/",
			Tags:        []string{"manipulation", "teleoperation"},
		},
		{
			Link:        "https://github.com/facebookresearch/habitat-sim",
			Name:        "Habitat",
			Description: "Simulation platform and scene datasets for embodied navigation research.",
			Category:    "Benchmark/Simulators",
			SourceURL:   "https://aihabitat.org/",
			Tags:        []string{"navigation", "simulator"},
		},
	}
}
