package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

func TestPostgresUpsertPapersWritesRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresWithPool(mock)
	require.NoError(t, err)

	submitted := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	paper := pulse.Paper{
		ID:             "2512.01234",
		Title:          "Grasp synthesis at scale",
		Authors:        []string{"A. Author"},
		Abstract:       "We study grasping.",
		Submitted:      submitted,
		FirstPublished: submitted,
		Updated:        submitted,
		URL:            "https://arxiv.org/abs/2512.01234",
		RawCategories:  []string{"cs.RO"},
		Category:       "Operation/Grasping",
	}

	mock.ExpectExec("INSERT INTO papers").
		WithArgs(
			paper.ID, paper.Title, paper.Authors, paper.Abstract, paper.Venues,
			paper.Submitted, paper.FirstPublished, paper.Updated,
			paper.URL, paper.RawCategories, paper.Category,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := s.UpsertPapers(context.Background(), []pulse.Paper{paper})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryPapersFiltersByCategory(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresWithPool(mock)
	require.NoError(t, err)

	submitted := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	created := submitted.Add(time.Hour)

	mock.ExpectQuery(`SELECT count\(\*\) FROM papers`).
		WithArgs("Operation/Grasping").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(`SELECT id, title, authors`).
		WithArgs("Operation/Grasping").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "authors", "abstract", "venues",
			"submitted", "first_published", "updated",
			"url", "raw_categories", "category", "created_at",
		}).AddRow(
			"2512.01234", "Grasp synthesis", []string{"A. Author"}, "abs", []string{},
			submitted, submitted, submitted,
			"https://arxiv.org/abs/2512.01234", []string{"cs.RO"}, "Operation/Grasping", created,
		))

	papers, total, err := s.QueryPapers(context.Background(), Filter{Category: "Operation/Grasping"}, Page{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, papers, 1)
	require.Equal(t, "2512.01234", papers[0].ID)
	require.Equal(t, submitted, papers[0].Submitted)
	require.Equal(t, created, papers[0].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceCreatorCardsRunsInTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresWithPool(mock)
	require.NoError(t, err)

	card := pulse.CreatorCard{
		Profile:  pulse.CreatorProfile{MID: 1172054289, Name: "robot lab"},
		UserStat: pulse.CreatorStats{Views: 100, Videos: 5, Followers: 42},
		Videos:   []pulse.VideoItem{{BVID: "BV1xx411c7mD", Title: "demo"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM creator_cards").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO creator_cards").
		WithArgs(card.Profile.MID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = s.ReplaceCreatorCards(context.Background(), []pulse.CreatorCard{card})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStats(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows([]string{"papers", "news", "jobs", "datasets", "creators"}).
			AddRow(10, 20, 3, 4, 2))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, Stats{Papers: 10, News: 20, Jobs: 3, Datasets: 4, Creators: 2}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDatasetsCarryTagsAndCuratedOrder(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresWithPool(mock)
	require.NoError(t, err)

	first := pulse.Dataset{
		Link:        "https://example.com/open-x",
		Name:        "Open X-Embodiment",
		Description: "cross-embodiment demonstrations",
		Category:    "Benchmark/Datasets",
		Tags:        []string{"manipulation", "multi-robot"},
	}
	second := pulse.Dataset{
		Link:     "https://example.com/droid",
		Name:     "DROID",
		Category: "Benchmark/Datasets",
		Tags:     []string{"teleop"},
	}

	mock.ExpectExec("INSERT INTO datasets").
		WithArgs(first.Link, first.Name, first.Description, first.Category,
			first.PaperURL, first.SourceURL, first.Tags, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO datasets").
		WithArgs(second.Link, second.Name, second.Description, second.Category,
			second.PaperURL, second.SourceURL, second.Tags, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := s.UpsertDatasets(context.Background(), []pulse.Dataset{first, second})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	created := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT count\(\*\) FROM datasets`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT link, name, description, category, paper_url, source_url, tags, created_at FROM datasets ORDER BY ordinal ASC`).
		WillReturnRows(pgxmock.NewRows([]string{
			"link", "name", "description", "category", "paper_url", "source_url", "tags", "created_at",
		}).AddRow(
			first.Link, first.Name, first.Description, first.Category, "", "", first.Tags, created,
		).AddRow(
			second.Link, second.Name, second.Description, second.Category, "", "", second.Tags, created,
		))

	out, total, err := s.QueryDatasets(context.Background(), Filter{}, Page{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, out, 2)
	require.Equal(t, "Open X-Embodiment", out[0].Name)
	require.Equal(t, []string{"manipulation", "multi-robot"}, out[0].Tags)
	require.Equal(t, "DROID", out[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
