package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/taxonomy"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPapersResolvesCategories(t *testing.T) {
	t.Parallel()

	n := New(nil, nil)
	out := n.Papers([]pulse.Paper{
		{ID: "2512.00001", Title: "A", Category: "Operation/Grasping"},
		{ID: "2512.00002", Title: "B", RawCategories: []string{"cs.CV", "cs.RO"}},
		{ID: "2512.00003", Title: "Policy gradient methods at scale", Abstract: "We study sample efficiency."},
		{ID: "2512.00004", Title: "D", RawCategories: []string{"math.CO"}},
	})
	require.Len(t, out, 4)
	require.Equal(t, "Operation/Grasping", out[0].Category)
	require.Equal(t, "Operation/Manipulation", out[1].Category, "first resolvable raw category wins")
	require.Equal(t, "Learning/Reinforcement Learning", out[2].Category)
	require.Equal(t, taxonomy.Uncategorized, out[3].Category)
}

func TestPapersDropsRecordsWithoutIdentity(t *testing.T) {
	t.Parallel()

	n := New(nil, nil)
	out := n.Papers([]pulse.Paper{
		{ID: "", Title: "orphan"},
		{ID: "2512.00001", Title: "   "},
		{ID: "2512.00002", Title: "kept"},
	})
	require.Len(t, out, 1)
	require.Equal(t, "2512.00002", out[0].ID)
}

func TestPapersDedupsWithinBatch(t *testing.T) {
	t.Parallel()

	n := New(nil, nil)
	out := n.Papers([]pulse.Paper{
		{ID: "2512.00001", Title: "first occurrence"},
		{ID: "2512.00001", Title: "second occurrence"},
	})
	require.Len(t, out, 1)
	require.Equal(t, "first occurrence", out[0].Title)
}

func TestPapersKeepSubmittedAsServedDate(t *testing.T) {
	t.Parallel()

	// A cross-listed record can carry a first-published date years
	// before the submission that put it on the index.
	n := New(nil, nil)
	out := n.Papers([]pulse.Paper{{
		ID:             "2512.01234",
		Title:          "Cross-listed survey",
		Submitted:      date(2025, time.December, 17),
		FirstPublished: date(2024, time.August, 1),
	}})
	require.Len(t, out, 1)
	require.Equal(t, date(2025, time.December, 17), out[0].Submitted)
	require.Equal(t, date(2024, time.August, 1), out[0].FirstPublished)
}

func TestPapersBackfillsMissingDates(t *testing.T) {
	t.Parallel()

	n := New(nil, nil)
	out := n.Papers([]pulse.Paper{{
		ID:        "2512.00001",
		Title:     "only submitted",
		Submitted: date(2026, time.January, 5),
	}})
	require.Equal(t, date(2026, time.January, 5), out[0].FirstPublished)
	require.Equal(t, date(2026, time.January, 5), out[0].Updated)
}

func TestPapersIdempotent(t *testing.T) {
	t.Parallel()

	n := New(nil, nil)
	in := []pulse.Paper{
		{ID: "2512.00001", Title: "  spaced   title ", RawCategories: []string{"robotic grasping"}},
		{ID: "2512.00002", Title: "plain"},
	}
	once := n.Papers(in)
	twice := n.Papers(once)
	require.Equal(t, once, twice)
}

func TestNewsDedupsByURL(t *testing.T) {
	t.Parallel()

	n := New(nil, nil)
	out := n.News([]pulse.News{
		{URL: "https://example.com/a", Title: "A"},
		{URL: "https://example.com/a", Title: "A again"},
		{URL: "", Title: "no url"},
		{URL: "https://example.com/b", Title: "B"},
	})
	require.Len(t, out, 2)
	require.Equal(t, "https://example.com/a", out[0].URL)
	require.Equal(t, "https://example.com/b", out[1].URL)
}

func TestJobsDedupOnIdentityTuple(t *testing.T) {
	t.Parallel()

	posted := date(2026, time.August, 20)
	n := New(nil, nil)
	out := n.Jobs([]pulse.Job{
		{Employer: "Unitree", Role: "Robotics Engineer", PostedAt: posted, Location: "Hangzhou"},
		{Employer: " Unitree ", Role: "Robotics  Engineer", PostedAt: posted, Location: "Shenzhen"},
		{Employer: "Unitree", Role: "Robotics Engineer", PostedAt: posted.AddDate(0, 0, 1)},
		{Employer: "Unitree", Role: "", PostedAt: posted},
	})
	require.Len(t, out, 2)
	require.Equal(t, "Hangzhou", out[0].Location, "first occurrence wins")
}

func TestDatasetsDropAndDedup(t *testing.T) {
	t.Parallel()

	n := New(nil, nil)
	out := n.Datasets([]pulse.Dataset{
		{Link: "https://example.com/droid", Name: "DROID"},
		{Link: "https://example.com/droid", Name: "DROID dup"},
		{Link: "", Name: "nameless link"},
	})
	require.Len(t, out, 1)
	require.Equal(t, "DROID", out[0].Name)
}

func TestDatasetsResolveCategories(t *testing.T) {
	t.Parallel()

	n := New(nil, nil)
	out := n.Datasets([]pulse.Dataset{
		{Link: "https://example.com/graspnet", Name: "GraspNet", Category: "robotic grasping"},
		{Link: "https://example.com/misc", Name: "Misc", Category: "assorted oddities"},
	})
	require.Len(t, out, 2)
	require.Equal(t, "Operation/Grasping", out[0].Category)
	require.Equal(t, taxonomy.Uncategorized, out[1].Category)
	for _, d := range out {
		require.True(t, taxonomy.Default.Contains(d.Category))
	}
}
