// Package bilibili fetches creator cards from the video platform. A
// card merges the creator profile, aggregate statistics, and the
// recent-video list; it is emitted only when all three sub-fetches
// succeed and the video list is non-empty.
package bilibili

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/logging"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

const defaultBaseURL = "https://api.bilibili.com"

// Credentials is the session material required by the platform API.
type Credentials struct {
	SESSDATA   string
	JCT        string
	BUVID3     string
	DedeUserID string
	// Cookie is the composite fallback used when the individual
	// values are not set.
	Cookie string
}

// resolve extracts SESSDATA/JCT from the composite cookie if needed.
func (c Credentials) resolve() Credentials {
	if c.SESSDATA != "" && c.JCT != "" {
		return c
	}
	for _, part := range strings.Split(c.Cookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch name {
		case "SESSDATA":
			if c.SESSDATA == "" {
				c.SESSDATA = value
			}
		case "bili_jct":
			if c.JCT == "" {
				c.JCT = value
			}
		case "buvid3":
			if c.BUVID3 == "" {
				c.BUVID3 = value
			}
		case "DedeUserID":
			if c.DedeUserID == "" {
				c.DedeUserID = value
			}
		}
	}
	return c
}

// Warning is a structural problem with one creator's card. It is
// surfaced as data, never as an adapter failure.
type Warning struct {
	MID     int64
	Missing string
}

func (w Warning) String() string {
	return fmt.Sprintf("creator %d: missing %s", w.MID, w.Missing)
}

// Adapter fetches creator cards. Construction fails with a
// config_missing error when the required credentials are absent; only
// this adapter is affected.
type Adapter struct {
	client  *adapter.Client
	baseURL string
	creds   Credentials
	logger  *zap.Logger
}

// New validates credentials and constructs an Adapter.
func New(client *adapter.Client, baseURL string, creds Credentials, logger *zap.Logger) (*Adapter, error) {
	creds = creds.resolve()
	if creds.SESSDATA == "" {
		return nil, pulse.Errorf(pulse.KindConfigMissing, "BILI_SESSDATA is required")
	}
	if creds.JCT == "" {
		return nil, pulse.Errorf(pulse.KindConfigMissing, "BILI_JCT is required")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("bilibili adapter ready",
		zap.String("sessdata", logging.SecretPreview(creds.SESSDATA)),
	)
	return &Adapter{client: client, baseURL: baseURL, creds: creds, logger: logger}, nil
}

// Fetch builds one card per creator id. Per-creator structural
// problems become warnings; the error return is reserved for the
// whole pass being impossible (e.g. rate limited on every call).
func (a *Adapter) Fetch(ctx context.Context, mids []int64, opts adapter.Options) ([]pulse.CreatorCard, []Warning, error) {
	opts = opts.Normalize()

	cards := make([]pulse.CreatorCard, 0, len(mids))
	var warnings []Warning
	var lastErr error
	for _, mid := range mids {
		if err := ctx.Err(); err != nil {
			return cards, warnings, pulse.NewError(pulse.KindTransientNetwork, err)
		}
		card, warn, err := a.fetchCard(ctx, mid, opts)
		if err != nil {
			lastErr = err
			a.logger.Warn("creator fetch failed", zap.Int64("mid", mid), zap.Error(err))
			continue
		}
		if warn != nil {
			warnings = append(warnings, *warn)
			continue
		}
		cards = append(cards, card)
	}
	if len(cards) == 0 && len(warnings) == 0 && lastErr != nil {
		return nil, nil, lastErr
	}
	return cards, warnings, nil
}

func (a *Adapter) fetchCard(ctx context.Context, mid int64, opts adapter.Options) (pulse.CreatorCard, *Warning, error) {
	profile, err := a.fetchProfile(ctx, mid)
	if err != nil {
		warn, cerr := a.classify(mid, "profile", err)
		return pulse.CreatorCard{}, warn, cerr
	}
	stats, err := a.fetchStats(ctx, mid)
	if err != nil {
		warn, cerr := a.classify(mid, "user_stat", err)
		return pulse.CreatorCard{}, warn, cerr
	}
	videos, err := a.fetchVideos(ctx, mid, opts.PageSize)
	if err != nil {
		warn, cerr := a.classify(mid, "videos", err)
		return pulse.CreatorCard{}, warn, cerr
	}

	card := pulse.CreatorCard{Profile: profile, UserStat: stats, Videos: videos}
	if !card.Valid() {
		return pulse.CreatorCard{}, &Warning{MID: mid, Missing: "videos"}, nil
	}
	return card, nil, nil
}

// classify turns a sub-fetch failure into either a per-creator
// structural warning or a pass-level error. Credential problems abort
// the pass since they affect every creator equally.
func (a *Adapter) classify(mid int64, resource string, err error) (*Warning, error) {
	kind := pulse.KindOf(err)
	if kind == pulse.KindAuthRequired || kind.Retryable() {
		return nil, err
	}
	return &Warning{MID: mid, Missing: resource}, nil
}

func (a *Adapter) header() http.Header {
	cookie := fmt.Sprintf("SESSDATA=%s; bili_jct=%s", a.creds.SESSDATA, a.creds.JCT)
	if a.creds.BUVID3 != "" {
		cookie += "; buvid3=" + a.creds.BUVID3
	}
	if a.creds.DedeUserID != "" {
		cookie += "; DedeUserID=" + a.creds.DedeUserID
	}
	h := http.Header{}
	h.Set("Cookie", cookie)
	h.Set("Referer", "https://www.bilibili.com")
	h.Set("User-Agent", "Mozilla/5.0 (compatible; EmbodiedPulse/1.0)")
	return h
}

func (a *Adapter) fetchProfile(ctx context.Context, mid int64) (pulse.CreatorProfile, error) {
	var resp apiResponse[accInfo]
	url := fmt.Sprintf("%s/x/space/acc/info?mid=%d", a.baseURL, mid)
	if err := a.client.GetJSON(ctx, url, a.header(), &resp); err != nil {
		return pulse.CreatorProfile{}, err
	}
	if err := adapter.ClassifyBilibiliCode(resp.Code, resp.Message); err != nil {
		return pulse.CreatorProfile{}, err
	}
	return pulse.CreatorProfile{
		MID:    resp.Data.MID,
		Name:   resp.Data.Name,
		Avatar: resp.Data.Face,
		Sign:   resp.Data.Sign,
	}, nil
}

func (a *Adapter) fetchStats(ctx context.Context, mid int64) (pulse.CreatorStats, error) {
	var up apiResponse[upStat]
	url := fmt.Sprintf("%s/x/space/upstat?mid=%d", a.baseURL, mid)
	if err := a.client.GetJSON(ctx, url, a.header(), &up); err != nil {
		return pulse.CreatorStats{}, err
	}
	if err := adapter.ClassifyBilibiliCode(up.Code, up.Message); err != nil {
		return pulse.CreatorStats{}, err
	}

	var rel apiResponse[relationStat]
	url = fmt.Sprintf("%s/x/relation/stat?vmid=%d", a.baseURL, mid)
	if err := a.client.GetJSON(ctx, url, a.header(), &rel); err != nil {
		return pulse.CreatorStats{}, err
	}
	if err := adapter.ClassifyBilibiliCode(rel.Code, rel.Message); err != nil {
		return pulse.CreatorStats{}, err
	}

	return pulse.CreatorStats{
		Views:     up.Data.Archive.View,
		Videos:    up.Data.Archive.Count,
		Followers: rel.Data.Follower,
	}, nil
}

func (a *Adapter) fetchVideos(ctx context.Context, mid int64, pageSize int) ([]pulse.VideoItem, error) {
	if pageSize <= 0 || pageSize > 50 {
		pageSize = 30
	}
	var resp apiResponse[arcSearch]
	url := fmt.Sprintf("%s/x/space/arc/search?mid=%d&ps=%d&pn=1&order=pubdate", a.baseURL, mid, pageSize)
	if err := a.client.GetJSON(ctx, url, a.header(), &resp); err != nil {
		return nil, err
	}
	if err := adapter.ClassifyBilibiliCode(resp.Code, resp.Message); err != nil {
		return nil, err
	}

	items := make([]pulse.VideoItem, 0, len(resp.Data.List.Vlist))
	for _, v := range resp.Data.List.Vlist {
		items = append(items, pulse.VideoItem{
			BVID:        v.BVID,
			Title:       v.Title,
			Thumbnail:   v.Pic,
			PublishedAt: time.Unix(v.Created, 0).UTC(),
			Plays:       v.Play,
			Comments:    v.Comment,
		})
	}
	return items, nil
}

// Wire shapes. The platform wraps every payload in {code, message, data}.
type apiResponse[T any] struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type accInfo struct {
	MID  int64  `json:"mid"`
	Name string `json:"name"`
	Face string `json:"face"`
	Sign string `json:"sign"`
}

type upStat struct {
	Archive struct {
		View  int64 `json:"view"`
		Count int64 `json:"count"`
	} `json:"archive"`
}

type relationStat struct {
	Follower int64 `json:"follower"`
}

type arcSearch struct {
	List struct {
		Vlist []struct {
			BVID    string `json:"bvid"`
			Title   string `json:"title"`
			Pic     string `json:"pic"`
			Created int64  `json:"created"`
			Play    int64  `json:"play"`
			Comment int64  `json:"comment"`
		} `json:"vlist"`
	} `json:"list"`
}
