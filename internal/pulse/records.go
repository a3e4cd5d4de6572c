// Package pulse defines the normalized records shared across the
// ingestion pipeline, the store gateway, and the read API.
package pulse

import (
	"strings"
	"time"
)

// Stream identifies one of the content domains served by the API.
type Stream string

// Supported streams. Creators is structurally a stream even though it
// is fetched per-creator rather than per-window.
const (
	StreamPapers   Stream = "papers"
	StreamNews     Stream = "news"
	StreamJobs     Stream = "jobs"
	StreamDatasets Stream = "datasets"
	StreamCreators Stream = "creators"
)

// Paper is a normalized preprint record. Identity is the short-form
// upstream id (e.g. "2512.01234"). The date exposed to consumers is
// Submitted, not FirstPublished: "new on the index today".
type Paper struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Authors        []string  `json:"authors"`
	Abstract       string    `json:"abstract"`
	Venues         []string  `json:"venues,omitempty"`
	Submitted      time.Time `json:"date"`
	FirstPublished time.Time `json:"first_published"`
	Updated        time.Time `json:"updated"`
	URL            string    `json:"url"`
	RawCategories  []string  `json:"raw_categories,omitempty"`
	Category       string    `json:"category"`
	CreatedAt      time.Time `json:"-"`
}

// News is a normalized news record keyed by canonicalized URL.
type News struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	Language    string    `json:"language"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	CreatedAt   time.Time `json:"-"`
}

// Job is a recruiting post. Identity is the trimmed
// (employer, role, posted-date) tuple.
type Job struct {
	Employer  string    `json:"employer"`
	Role      string    `json:"role"`
	Location  string    `json:"location"`
	Seniority string    `json:"seniority,omitempty"`
	Link      string    `json:"link"`
	PostedAt  time.Time `json:"posted_at"`
	CreatedAt time.Time `json:"-"`
}

// Identity returns the dedup key for a job posting.
func (j Job) Identity() string {
	return strings.TrimSpace(j.Employer) + "|" + strings.TrimSpace(j.Role) + "|" + j.PostedAt.UTC().Format("2006-01-02")
}

// Dataset is a curated dataset entry keyed by its link.
type Dataset struct {
	Link        string    `json:"link"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	PaperURL    string    `json:"paper_url,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"-"`
}

// CreatorProfile is the identity half of a creator card.
type CreatorProfile struct {
	MID    int64  `json:"mid"`
	Name   string `json:"name"`
	Avatar string `json:"face"`
	Sign   string `json:"sign"`
}

// CreatorStats are the aggregate counters shown on a creator card.
type CreatorStats struct {
	Views     int64 `json:"views"`
	Videos    int64 `json:"videos"`
	Followers int64 `json:"follower"`
}

// VideoItem is one entry in a creator card's recent-video list.
type VideoItem struct {
	BVID        string    `json:"bvid"`
	Title       string    `json:"title"`
	Thumbnail   string    `json:"pic"`
	PublishedAt time.Time `json:"created"`
	Plays       int64     `json:"play"`
	Comments    int64     `json:"comment"`
}

// CreatorCard composes a creator profile, aggregate stats, and the
// creator's recent videos. A card is structurally valid only when the
// video list is non-empty and the aggregate stats are populated.
type CreatorCard struct {
	Profile  CreatorProfile `json:"profile"`
	UserStat CreatorStats   `json:"user_stat"`
	Videos   []VideoItem    `json:"videos"`
	Warning  string         `json:"warning,omitempty"`
}

// Valid reports whether the card satisfies the structural invariant.
func (c CreatorCard) Valid() bool {
	return len(c.Videos) > 0 && c.UserStat.Videos > 0
}
