package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveIngest(t *testing.T) {
	Init()
	ObserveIngest("papers", 12)
	ObserveIngest("papers", 0)
	if val := testutil.ToFloat64(recordsIngestedTotal.WithLabelValues("papers")); val != 12 {
		t.Errorf("expected 12 ingested records, got %f", val)
	}
}

func TestObserveRefresh(t *testing.T) {
	Init()
	ObserveRefresh("news", "success", 2*time.Second)
	ObserveRefresh("news", "error", time.Second)
	if val := testutil.ToFloat64(refreshTotal.WithLabelValues("news", "success")); val != 1 {
		t.Errorf("expected 1 successful refresh, got %f", val)
	}
	if val := testutil.ToFloat64(refreshTotal.WithLabelValues("news", "error")); val != 1 {
		t.Errorf("expected 1 failed refresh, got %f", val)
	}
}

func TestObserveCache(t *testing.T) {
	Init()
	ObserveCache("papers", "hit")
	ObserveCache("papers", "hit")
	ObserveCache("papers", "miss")
	if val := testutil.ToFloat64(cacheRequestsTotal.WithLabelValues("papers", "hit")); val != 2 {
		t.Errorf("expected 2 cache hits, got %f", val)
	}
}

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/notfound", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if errInner := resp.Body.Close(); errInner != nil {
			t.Log(errInner)
		}
	}()

	resp, err = http.Get(ts.URL + "/notfound")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if errInner := resp.Body.Close(); errInner != nil {
			t.Log(errInner)
		}
	}()

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")); val != 1 {
		t.Errorf("expected httpRequestsTotal for GET /test to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404")); val != 1 {
		t.Errorf("expected httpRequestsTotal for GET /notfound to be 1, got %f", val)
	}
	if val := testutil.CollectAndCount(httpRequestDurationSeconds); val <= 0 {
		t.Errorf("expected httpRequestDurationSeconds to be observed, got %d", val)
	}
}
