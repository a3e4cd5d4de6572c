package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

// PgxPool is the subset of pgxpool.Pool the gateway needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresConfig controls the connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Postgres is the durable Gateway implementation.
type Postgres struct {
	pool PgxPool
}

// NewPostgres connects a pool and returns the gateway.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresWithPool constructs a gateway from an existing pool,
// primarily for testing.
func NewPostgresWithPool(pool PgxPool) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Postgres{pool: pool}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS papers (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	authors TEXT[] NOT NULL DEFAULT '{}',
	abstract TEXT NOT NULL DEFAULT '',
	venues TEXT[] NOT NULL DEFAULT '{}',
	submitted TIMESTAMPTZ NOT NULL,
	first_published TIMESTAMPTZ NOT NULL,
	updated TIMESTAMPTZ NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	raw_categories TEXT[] NOT NULL DEFAULT '{}',
	category TEXT NOT NULL DEFAULT 'Uncategorized',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS news (
	url TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS jobs (
	identity TEXT PRIMARY KEY,
	employer TEXT NOT NULL,
	role TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	seniority TEXT NOT NULL DEFAULT '',
	link TEXT NOT NULL DEFAULT '',
	posted_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS datasets (
	link TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	paper_url TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	tags TEXT[] NOT NULL DEFAULT '{}',
	ordinal INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS creator_cards (
	mid BIGINT PRIMARY KEY,
	card JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables when they do not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertPaperSQL = `
INSERT INTO papers (
	id, title, authors, abstract, venues,
	submitted, first_published, updated, url, raw_categories, category
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	authors = EXCLUDED.authors,
	abstract = EXCLUDED.abstract,
	venues = EXCLUDED.venues,
	submitted = EXCLUDED.submitted,
	first_published = EXCLUDED.first_published,
	updated = EXCLUDED.updated,
	url = EXCLUDED.url,
	raw_categories = EXCLUDED.raw_categories,
	category = EXCLUDED.category`

// UpsertPapers writes papers row by row; created_at never changes on
// conflict.
func (s *Postgres) UpsertPapers(ctx context.Context, papers []pulse.Paper) (int, error) {
	for _, p := range papers {
		_, err := s.pool.Exec(ctx, upsertPaperSQL,
			p.ID, p.Title, p.Authors, p.Abstract, p.Venues,
			p.Submitted, p.FirstPublished, p.Updated, p.URL, p.RawCategories, p.Category,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert paper %s: %w", p.ID, err)
		}
	}
	return len(papers), nil
}

// QueryPapers returns papers newest-submitted first.
func (s *Postgres) QueryPapers(ctx context.Context, f Filter, p Page) ([]pulse.Paper, int, error) {
	q := newQueryBuilder()
	if f.Category != "" {
		q.where("category = "+q.arg(f.Category))
	}
	if f.Query != "" {
		pattern := "%" + f.Query + "%"
		q.where("(title ILIKE "+q.arg(pattern)+" OR abstract ILIKE "+q.arg(pattern)+")")
	}
	q.timeRange("submitted", f.From, f.To)

	total, err := s.count(ctx, "papers", q)
	if err != nil {
		return nil, 0, err
	}

	sql := `SELECT id, title, authors, abstract, venues, submitted, first_published, updated,
	url, raw_categories, category, created_at FROM papers` +
		q.clause() + " ORDER BY submitted DESC, id ASC" + q.paginate(p)
	rows, err := s.pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query papers: %w", err)
	}
	defer rows.Close()

	var out []pulse.Paper
	for rows.Next() {
		var paper pulse.Paper
		if err := rows.Scan(
			&paper.ID, &paper.Title, &paper.Authors, &paper.Abstract, &paper.Venues,
			&paper.Submitted, &paper.FirstPublished, &paper.Updated,
			&paper.URL, &paper.RawCategories, &paper.Category, &paper.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, paper)
	}
	return out, total, rows.Err()
}

const upsertNewsSQL = `
INSERT INTO news (url, title, source, language, published_at, summary)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (url) DO UPDATE SET
	title = EXCLUDED.title,
	source = EXCLUDED.source,
	language = EXCLUDED.language,
	published_at = EXCLUDED.published_at,
	summary = EXCLUDED.summary`

// UpsertNews writes news rows keyed by canonical URL.
func (s *Postgres) UpsertNews(ctx context.Context, items []pulse.News) (int, error) {
	for _, n := range items {
		_, err := s.pool.Exec(ctx, upsertNewsSQL,
			n.URL, n.Title, n.Source, n.Language, n.PublishedAt, n.Summary,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert news %s: %w", n.URL, err)
		}
	}
	return len(items), nil
}

// QueryNews returns news newest-published first.
func (s *Postgres) QueryNews(ctx context.Context, f Filter, p Page) ([]pulse.News, int, error) {
	q := newQueryBuilder()
	if f.Source != "" {
		q.where("source ILIKE "+q.arg(f.Source))
	}
	if f.Query != "" {
		q.where("title ILIKE "+q.arg("%"+f.Query+"%"))
	}
	q.timeRange("published_at", f.From, f.To)

	total, err := s.count(ctx, "news", q)
	if err != nil {
		return nil, 0, err
	}

	sql := `SELECT url, title, source, language, published_at, summary, created_at FROM news` +
		q.clause() + " ORDER BY published_at DESC, url ASC" + q.paginate(p)
	rows, err := s.pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query news: %w", err)
	}
	defer rows.Close()

	var out []pulse.News
	for rows.Next() {
		var n pulse.News
		if err := rows.Scan(&n.URL, &n.Title, &n.Source, &n.Language, &n.PublishedAt, &n.Summary, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan news: %w", err)
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

const upsertJobSQL = `
INSERT INTO jobs (identity, employer, role, location, seniority, link, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (identity) DO UPDATE SET
	location = EXCLUDED.location,
	seniority = EXCLUDED.seniority,
	link = EXCLUDED.link`

// UpsertJobs writes jobs keyed by the identity tuple.
func (s *Postgres) UpsertJobs(ctx context.Context, jobs []pulse.Job) (int, error) {
	for _, j := range jobs {
		_, err := s.pool.Exec(ctx, upsertJobSQL,
			j.Identity(), j.Employer, j.Role, j.Location, j.Seniority, j.Link, j.PostedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert job %s: %w", j.Identity(), err)
		}
	}
	return len(jobs), nil
}

// QueryJobs returns jobs newest-posted first.
func (s *Postgres) QueryJobs(ctx context.Context, f Filter, p Page) ([]pulse.Job, int, error) {
	q := newQueryBuilder()
	if f.Source != "" {
		q.where("employer ILIKE "+q.arg(f.Source))
	}
	if f.Query != "" {
		pattern := "%" + f.Query + "%"
		q.where("(role ILIKE "+q.arg(pattern)+" OR employer ILIKE "+q.arg(pattern)+")")
	}
	q.timeRange("posted_at", f.From, f.To)

	total, err := s.count(ctx, "jobs", q)
	if err != nil {
		return nil, 0, err
	}

	sql := `SELECT employer, role, location, seniority, link, posted_at, created_at FROM jobs` +
		q.clause() + " ORDER BY posted_at DESC, identity ASC" + q.paginate(p)
	rows, err := s.pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []pulse.Job
	for rows.Next() {
		var j pulse.Job
		if err := rows.Scan(&j.Employer, &j.Role, &j.Location, &j.Seniority, &j.Link, &j.PostedAt, &j.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, total, rows.Err()
}

const upsertDatasetSQL = `
INSERT INTO datasets (link, name, description, category, paper_url, source_url, tags, ordinal)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (link) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	category = EXCLUDED.category,
	paper_url = EXCLUDED.paper_url,
	source_url = EXCLUDED.source_url,
	tags = EXCLUDED.tags,
	ordinal = EXCLUDED.ordinal`

// UpsertDatasets writes datasets keyed by link. The batch index
// becomes the row's ordinal so reads come back in curated order.
func (s *Postgres) UpsertDatasets(ctx context.Context, datasets []pulse.Dataset) (int, error) {
	for i, d := range datasets {
		_, err := s.pool.Exec(ctx, upsertDatasetSQL,
			d.Link, d.Name, d.Description, d.Category, d.PaperURL, d.SourceURL, d.Tags, i,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert dataset %s: %w", d.Link, err)
		}
	}
	return len(datasets), nil
}

// QueryDatasets returns datasets in curated order.
func (s *Postgres) QueryDatasets(ctx context.Context, f Filter, p Page) ([]pulse.Dataset, int, error) {
	q := newQueryBuilder()
	if f.Category != "" {
		q.where("category = "+q.arg(f.Category))
	}
	if f.Query != "" {
		pattern := "%" + f.Query + "%"
		q.where("(name ILIKE "+q.arg(pattern)+" OR description ILIKE "+q.arg(pattern)+")")
	}

	total, err := s.count(ctx, "datasets", q)
	if err != nil {
		return nil, 0, err
	}

	sql := `SELECT link, name, description, category, paper_url, source_url, tags, created_at FROM datasets` +
		q.clause() + " ORDER BY ordinal ASC" + q.paginate(p)
	rows, err := s.pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var out []pulse.Dataset
	for rows.Next() {
		var d pulse.Dataset
		if err := rows.Scan(&d.Link, &d.Name, &d.Description, &d.Category, &d.PaperURL, &d.SourceURL, &d.Tags, &d.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// ReplaceCreatorCards swaps the card snapshot inside one transaction.
func (s *Postgres) ReplaceCreatorCards(ctx context.Context, cards []pulse.CreatorCard) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace cards: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM creator_cards`); err != nil {
		return fmt.Errorf("clear creator cards: %w", err)
	}
	for _, card := range cards {
		payload, err := json.Marshal(card)
		if err != nil {
			return fmt.Errorf("marshal card %d: %w", card.Profile.MID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO creator_cards (mid, card) VALUES ($1,$2)`,
			card.Profile.MID, payload,
		); err != nil {
			return fmt.Errorf("insert card %d: %w", card.Profile.MID, err)
		}
	}
	return tx.Commit(ctx)
}

// CreatorCards returns the stored card snapshot in mid order.
func (s *Postgres) CreatorCards(ctx context.Context) ([]pulse.CreatorCard, error) {
	rows, err := s.pool.Query(ctx, `SELECT card FROM creator_cards ORDER BY mid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query creator cards: %w", err)
	}
	defer rows.Close()

	var out []pulse.CreatorCard
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		var card pulse.CreatorCard
		if err := json.Unmarshal(payload, &card); err != nil {
			return nil, fmt.Errorf("decode card: %w", err)
		}
		out = append(out, card)
	}
	return out, rows.Err()
}

// Stats counts rows per stream in one round trip.
func (s *Postgres) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.pool.QueryRow(ctx, `SELECT
	(SELECT count(*) FROM papers),
	(SELECT count(*) FROM news),
	(SELECT count(*) FROM jobs),
	(SELECT count(*) FROM datasets),
	(SELECT count(*) FROM creator_cards)`)
	if err := row.Scan(&st.Papers, &st.News, &st.Jobs, &st.Datasets, &st.Creators); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// Search runs the cross-stream free-text query.
func (s *Postgres) Search(ctx context.Context, query string, p Page) (SearchResults, error) {
	var out SearchResults
	var err error
	f := Filter{Query: query}
	if out.Papers, _, err = s.QueryPapers(ctx, f, p); err != nil {
		return SearchResults{}, err
	}
	if out.News, _, err = s.QueryNews(ctx, f, p); err != nil {
		return SearchResults{}, err
	}
	if out.Jobs, _, err = s.QueryJobs(ctx, f, p); err != nil {
		return SearchResults{}, err
	}
	if out.Datasets, _, err = s.QueryDatasets(ctx, f, p); err != nil {
		return SearchResults{}, err
	}
	return out, nil
}

// queryBuilder accumulates WHERE conditions with positional args.
type queryBuilder struct {
	conds []string
	args  []any
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{}
}

func (q *queryBuilder) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *queryBuilder) where(cond string) {
	q.conds = append(q.conds, cond)
}

func (q *queryBuilder) timeRange(column string, from, to time.Time) {
	if !from.IsZero() {
		q.conds = append(q.conds, column+" >= "+q.arg(from))
	}
	if !to.IsZero() {
		q.conds = append(q.conds, column+" < "+q.arg(to))
	}
}

func (q *queryBuilder) clause() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

func (q *queryBuilder) paginate(p Page) string {
	p = p.normalize()
	return fmt.Sprintf(" LIMIT %d OFFSET %d", p.Limit, p.Offset)
}

func (s *Postgres) count(ctx context.Context, table string, q *queryBuilder) (int, error) {
	var total int
	row := s.pool.QueryRow(ctx, "SELECT count(*) FROM "+table+q.clause(), q.args...)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}
