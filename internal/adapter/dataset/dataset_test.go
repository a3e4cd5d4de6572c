package dataset

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter"
)

const articleHTML = `<html><body>
<table><tbody>
<tr>
  <td><a href="https://data.example/alpha">AlphaSet</a></td>
  <td>Grasping episodes from a fleet of arms.</td>
  <td>Operation/Grasping</td>
  <td><a href="https://arxiv.org/abs/2500.00001">paper</a></td>
</tr>
<tr>
  <td><a href="https://data.example/beta">BetaSim</a></td>
  <td>Simulated kitchens.</td>
  <td>Benchmark/Simulators</td>
</tr>
<tr><td>malformed</td></tr>
</tbody></table>
</body></html>`

func newAdapter(url string) *Adapter {
	return New(adapter.NewClient(time.Second, 0, zap.NewNop()), url, zap.NewNop())
}

func TestFetchParsesArticle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	items, err := newAdapter(srv.URL).Fetch(context.Background(), adapter.Window{}, adapter.Options{})
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Equal(t, "AlphaSet", items[0].Name)
	require.Equal(t, "https://data.example/alpha", items[0].Link)
	require.Equal(t, "Operation/Grasping", items[0].Category)
	require.Equal(t, "https://arxiv.org/abs/2500.00001", items[0].PaperURL)
	require.Equal(t, "BetaSim", items[1].Name)
}

func TestFetchFallsBackOnParseFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body><p>no tables here</p></body></html>")
	}))
	defer srv.Close()

	items, err := newAdapter(srv.URL).Fetch(context.Background(), adapter.Window{}, adapter.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, items, "fallback list must never be empty")
	require.Equal(t, "Open X-Embodiment", items[0].Name)
}

func TestFetchFallsBackOnFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	items, err := newAdapter(srv.URL).Fetch(context.Background(), adapter.Window{}, adapter.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, items)
}

func TestFetchWithoutURLServesFallback(t *testing.T) {
	t.Parallel()

	items, err := newAdapter("").Fetch(context.Background(), adapter.Window{}, adapter.Options{})
	require.NoError(t, err)
	require.Len(t, items, 3)
}
