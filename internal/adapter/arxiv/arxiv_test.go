package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

const feedPage = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2512.01234v2</id>
    <title>Dexterous  Manipulation
      with Tactile Feedback</title>
    <summary> We study in-hand manipulation. </summary>
    <published>2025-12-17T09:30:00Z</published>
    <updated>2025-12-20T10:00:00Z</updated>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <category term="cs.RO"/>
    <category term="cs.LG"/>
    <link rel="alternate" type="text/html" href="http://arxiv.org/abs/2512.01234v2"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2512.09999v1</id>
    <title></title>
    <published>2025-12-16T00:00:00Z</published>
    <updated>2025-12-16T00:00:00Z</updated>
  </entry>
</feed>`

func TestFetchParsesEntries(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(feedPage))
	}))
	defer srv.Close()

	a := New(adapter.NewClient(time.Second, 0, zap.NewNop()), srv.URL, zap.NewNop())
	window := adapter.Window{
		From: time.Date(2025, 12, 16, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 12, 18, 0, 0, 0, 0, time.UTC),
	}
	papers, err := a.Fetch(context.Background(), window, adapter.Options{
		QueryTerms: []string{"robot manipulation"},
		PageSize:   10,
		MaxResults: 10,
	})
	require.NoError(t, err)
	// The titleless entry is dropped.
	require.Len(t, papers, 1)

	p := papers[0]
	require.Equal(t, "2512.01234", p.ID)
	require.Equal(t, "Dexterous Manipulation with Tactile Feedback", p.Title)
	require.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, p.Authors)
	require.Equal(t, "We study in-hand manipulation.", p.Abstract)
	require.Equal(t, []string{"cs.RO", "cs.LG"}, p.RawCategories)
	require.Equal(t, time.Date(2025, 12, 17, 9, 30, 0, 0, time.UTC), p.Submitted)
	require.Equal(t, time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC), p.Updated)
	require.Equal(t, "http://arxiv.org/abs/2512.01234v2", p.URL)

	require.Contains(t, gotQuery, `all:"robot manipulation"`)
	require.Contains(t, gotQuery, "submittedDate:[202512160000 TO 202512180000]")
}

func TestFetchPaginatesUntilShortPage(t *testing.T) {
	t.Parallel()

	var starts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		starts = append(starts, r.URL.Query().Get("start"))
		if r.URL.Query().Get("start") == "0" {
			// Full first page of one entry when page size is one.
			_, _ = w.Write([]byte(feedPageSingle("2512.00001")))
			return
		}
		_, _ = w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer srv.Close()

	a := New(adapter.NewClient(time.Second, 0, zap.NewNop()), srv.URL, zap.NewNop())
	papers, err := a.Fetch(context.Background(), adapter.Window{}, adapter.Options{PageSize: 1, MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	require.Equal(t, []string{"0", "1"}, starts)
}

func TestFetchClassifiesRateLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := New(adapter.NewClient(time.Second, 0, zap.NewNop()), srv.URL, zap.NewNop())
	_, err := a.Fetch(context.Background(), adapter.Window{}, adapter.Options{PageSize: 5, MaxResults: 5})
	require.Error(t, err)
	require.True(t, pulse.IsKind(err, pulse.KindRateLimited))
}

func TestShortID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"http://arxiv.org/abs/2512.01234v2": "2512.01234",
		"http://arxiv.org/abs/2512.01234":   "2512.01234",
		"2401.99999v11":                     "2401.99999",
		"hep-th/9901001":                    "hep-th/9901001",
	}
	for in, want := range cases {
		require.Equal(t, want, shortID(in), "input %q", in)
	}
}

func feedPageSingle(id string) string {
	return `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/` + id + `v1</id>
    <title>Some Paper</title>
    <published>2025-12-01T00:00:00Z</published>
    <updated>2025-12-01T00:00:00Z</updated>
  </entry>
</feed>`
}
