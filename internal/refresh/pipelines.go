package refresh

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter/bilibili"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/normalize"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/store"
)

// Fetcher interfaces keep the pipelines testable without real
// upstreams.
type (
	// PaperFetcher fetches papers for a window.
	PaperFetcher interface {
		Fetch(ctx context.Context, window adapter.Window, opts adapter.Options) ([]pulse.Paper, error)
	}
	// NewsFetcher fetches news for a window.
	NewsFetcher interface {
		Fetch(ctx context.Context, window adapter.Window, opts adapter.Options) ([]pulse.News, error)
	}
	// JobFetcher fetches job postings for a window.
	JobFetcher interface {
		Fetch(ctx context.Context, window adapter.Window, opts adapter.Options) ([]pulse.Job, error)
	}
	// DatasetFetcher fetches the curated dataset list.
	DatasetFetcher interface {
		Fetch(ctx context.Context, window adapter.Window, opts adapter.Options) ([]pulse.Dataset, error)
	}
	// CreatorFetcher fetches creator cards for a set of mids.
	CreatorFetcher interface {
		Fetch(ctx context.Context, mids []int64, opts adapter.Options) ([]pulse.CreatorCard, []bilibili.Warning, error)
	}
)

// PipelineConfig carries the fetch knobs shared by the stream tasks.
type PipelineConfig struct {
	Options adapter.Options
	// WindowDays is how far back windowed streams look; defaults to 7.
	WindowDays int
	// Creators is the mid list for the creator-card pass.
	Creators []int64
}

func (c PipelineConfig) window(now time.Time) adapter.Window {
	days := c.WindowDays
	if days <= 0 {
		days = 7
	}
	return adapter.Window{From: now.AddDate(0, 0, -days), To: now}
}

// PaperTask builds the papers pipeline: fetch, normalize, upsert.
func PaperTask(f PaperFetcher, n *normalize.Normalizer, g store.Gateway, cfg PipelineConfig) Task {
	return Task{
		Stream: pulse.StreamPapers,
		Run: func(ctx context.Context) (int, error) {
			papers, err := f.Fetch(ctx, cfg.window(time.Now().UTC()), cfg.Options)
			if err != nil {
				return 0, err
			}
			return g.UpsertPapers(ctx, n.Papers(papers))
		},
	}
}

// NewsTask builds the news pipeline.
func NewsTask(f NewsFetcher, n *normalize.Normalizer, g store.Gateway, cfg PipelineConfig) Task {
	return Task{
		Stream: pulse.StreamNews,
		Run: func(ctx context.Context) (int, error) {
			items, err := f.Fetch(ctx, cfg.window(time.Now().UTC()), cfg.Options)
			if err != nil {
				return 0, err
			}
			return g.UpsertNews(ctx, n.News(items))
		},
	}
}

// JobTask builds the jobs pipeline.
func JobTask(f JobFetcher, n *normalize.Normalizer, g store.Gateway, cfg PipelineConfig) Task {
	return Task{
		Stream: pulse.StreamJobs,
		Run: func(ctx context.Context) (int, error) {
			jobs, err := f.Fetch(ctx, cfg.window(time.Now().UTC()), cfg.Options)
			if err != nil {
				return 0, err
			}
			return g.UpsertJobs(ctx, n.Jobs(jobs))
		},
	}
}

// DatasetTask builds the datasets pipeline.
func DatasetTask(f DatasetFetcher, n *normalize.Normalizer, g store.Gateway, cfg PipelineConfig) Task {
	return Task{
		Stream: pulse.StreamDatasets,
		Run: func(ctx context.Context) (int, error) {
			datasets, err := f.Fetch(ctx, adapter.Window{}, cfg.Options)
			if err != nil {
				return 0, err
			}
			return g.UpsertDatasets(ctx, n.Datasets(datasets))
		},
	}
}

// CreatorTask builds the creator-card pipeline. Structural warnings
// ride along inside the cards; the snapshot is replaced wholesale.
func CreatorTask(f CreatorFetcher, g store.Gateway, cfg PipelineConfig, logger *zap.Logger) Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Task{
		Stream: pulse.StreamCreators,
		Run: func(ctx context.Context) (int, error) {
			cards, warnings, err := f.Fetch(ctx, cfg.Creators, cfg.Options)
			if err != nil {
				return 0, err
			}
			for _, w := range warnings {
				logger.Warn("creator card incomplete",
					zap.Int64("mid", w.MID),
					zap.String("missing", w.Missing),
				)
			}
			if err := g.ReplaceCreatorCards(ctx, cards); err != nil {
				return 0, err
			}
			return len(cards), nil
		},
	}
}
