package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/metrics"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/readcache"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/store"
)

// listQuery is the parsed form of the shared list parameters.
type listQuery struct {
	filter store.Filter
	page   store.Page
	force  bool
}

func (q listQuery) cacheKey(stream string) string {
	return readcache.Key(stream,
		"category="+q.filter.Category,
		"source="+q.filter.Source,
		"q="+strings.ToLower(q.filter.Query),
		"from="+stamp(q.filter.From),
		"to="+stamp(q.filter.To),
		"limit="+strconv.Itoa(q.page.Limit),
		"offset="+strconv.Itoa(q.page.Offset),
	)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseListQuery reads limit/offset/q/from/to plus the stream-specific
// category or source parameter. sourceParam is the query name mapped
// onto Filter.Source ("" disables it).
func parseListQuery(r *http.Request, sourceParam string) (listQuery, error) {
	var out listQuery
	q := r.URL.Query()

	out.filter.Query = strings.TrimSpace(q.Get("q"))
	out.filter.Category = strings.TrimSpace(q.Get("category"))
	if sourceParam != "" {
		out.filter.Source = strings.TrimSpace(q.Get(sourceParam))
	}
	out.force = q.Get("force") == "1"

	var err error
	if out.page.Limit, err = intParam(q.Get("limit"), store.DefaultPageLimit); err != nil {
		return out, fmt.Errorf("limit: %w", err)
	}
	if out.page.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		return out, fmt.Errorf("offset: %w", err)
	}
	if out.filter.From, err = dateParam(q.Get("from")); err != nil {
		return out, fmt.Errorf("from: %w", err)
	}
	if out.filter.To, err = dateParam(q.Get("to")); err != nil {
		return out, fmt.Errorf("to: %w", err)
	}
	return out, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}

func dateParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be YYYY-MM-DD or RFC3339")
	}
	return t.UTC(), nil
}

// serveCached renders one list endpoint through the read cache.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, stream, key string, force bool, fill readcache.FillFunc) {
	payload, hit, err := s.cache.GetOrFill(r.Context(), key, force, fill)
	if err != nil {
		s.logger.Error("list query failed",
			zap.String("stream", stream),
			zap.Error(err),
		)
		writeError(s.logger, w, http.StatusInternalServerError, "internal")
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.ObserveCache(stream, result)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		s.logger.Error("write cached payload failed", zap.Error(err))
	}
}

func (s *Server) papers(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r, "")
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "validation_failed")
		return
	}
	s.serveCached(w, r, "papers", q.cacheKey("papers"), q.force, func(ctx context.Context) ([]byte, error) {
		items, total, err := s.store.QueryPapers(ctx, q.filter, q.page)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"success": true, "papers": items, "total": total})
	})
}

func (s *Server) news(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r, "source")
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "validation_failed")
		return
	}
	s.serveCached(w, r, "news", q.cacheKey("news"), q.force, func(ctx context.Context) ([]byte, error) {
		items, total, err := s.store.QueryNews(ctx, q.filter, q.page)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"success": true, "news": items, "total": total})
	})
}

func (s *Server) jobs(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r, "employer")
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "validation_failed")
		return
	}
	s.serveCached(w, r, "jobs", q.cacheKey("jobs"), q.force, func(ctx context.Context) ([]byte, error) {
		items, total, err := s.store.QueryJobs(ctx, q.filter, q.page)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"success": true, "jobs": items, "total": total})
	})
}

func (s *Server) datasets(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r, "")
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "validation_failed")
		return
	}
	s.serveCached(w, r, "datasets", q.cacheKey("datasets"), q.force, func(ctx context.Context) ([]byte, error) {
		items, total, err := s.store.QueryDatasets(ctx, q.filter, q.page)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"success": true, "datasets": items, "total": total})
	})
}

func (s *Server) bilibili(w http.ResponseWriter, r *http.Request) {
	if !s.bilibiliConfigured {
		writeError(s.logger, w, http.StatusServiceUnavailable, "config_missing")
		return
	}
	force := r.URL.Query().Get("force") == "1"
	s.serveCached(w, r, "creators", readcache.Key("creators"), force, func(ctx context.Context) ([]byte, error) {
		cards, err := s.store.CreatorCards(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"success": true, "data": cards, "total": len(cards)})
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"success": true, "stats": st})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(s.logger, w, http.StatusBadRequest, "validation_failed")
		return
	}
	page := store.Page{Limit: store.DefaultPageLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := intParam(raw, store.DefaultPageLimit)
		if err != nil {
			writeError(s.logger, w, http.StatusBadRequest, "validation_failed")
			return
		}
		page.Limit = n
	}
	results, err := s.store.Search(r.Context(), query, page)
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"success": true, "results": results})
}

func (s *Server) categories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"success": true,
		"meta":    s.taxonomy.Meta(),
		"tree":    s.taxonomy.Tree(),
	})
}

func (s *Server) refreshAll(w http.ResponseWriter, _ *http.Request) {
	if s.coord.TriggerAll(s.baseCtx) {
		writeJSON(s.logger, w, http.StatusAccepted, map[string]any{"success": true, "ok": true})
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"success": true, "ok": false, "reason": "busy"})
}

func (s *Server) refreshStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.coord.Status()
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"success": true,
		"running": st.Running,
		"papers":  st.Papers,
		"jobs":    st.Jobs,
		"news":    st.News,
	})
}
