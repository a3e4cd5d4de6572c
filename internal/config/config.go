// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerts    AlertConfig     `mapstructure:"alerts"`
	Bilibili  BilibiliConfig  `mapstructure:"bilibili"`
	Feishu    FeishuConfig    `mapstructure:"feishu"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Taxonomy  TaxonomyConfig  `mapstructure:"taxonomy"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SchedulerConfig governs the retry wrapper applied to scheduled
// tasks and the periodic refresh cadence. RetryEnabled defaults to
// false: with retries disabled a wrapped task behaves exactly as the
// bare task, including failure propagation on the first attempt.
type SchedulerConfig struct {
	RetryEnabled     bool   `mapstructure:"retry_enabled"`
	MaxRetries       int    `mapstructure:"max_retries"`
	RetryDelay       int    `mapstructure:"retry_delay"`
	BackoffFactor    int    `mapstructure:"backoff_factor"`
	AlertOnFinalFail bool   `mapstructure:"alert_on_final_failure"`
	CronSpec         string `mapstructure:"cron"`
}

// AlertConfig selects the transports for final-failure alerts.
type AlertConfig struct {
	FeishuWebhook string `mapstructure:"feishu_webhook"`
	EmailEnabled  bool   `mapstructure:"email_enabled"`
	SMTPHost      string `mapstructure:"smtp_host"`
	SMTPPort      int    `mapstructure:"smtp_port"`
	SMTPUser      string `mapstructure:"smtp_user"`
	SMTPPassword  string `mapstructure:"smtp_password"`
	EmailTo       string `mapstructure:"email_to"`
}

// BilibiliConfig holds the credential material for the video-platform
// adapter. SESSDATA and JCT are required for that adapter to
// initialize; absence is a fatal init error for the adapter only.
type BilibiliConfig struct {
	SESSDATA   string  `mapstructure:"sessdata"`
	JCT        string  `mapstructure:"jct"`
	BUVID3     string  `mapstructure:"buvid3"`
	DedeUserID string  `mapstructure:"dedeuserid"`
	Cookie     string  `mapstructure:"cookie"`
	Creators   []int64 `mapstructure:"creators"`
}

// Configured reports whether the required credentials are present,
// either directly or through the composite cookie fallback.
func (b BilibiliConfig) Configured() bool {
	if b.SESSDATA != "" && b.JCT != "" {
		return true
	}
	return strings.Contains(b.Cookie, "SESSDATA=") && strings.Contains(b.Cookie, "bili_jct=")
}

// FeishuConfig is the OAuth identity material consumed by the
// out-of-process auth collaborator; the startup checker validates it.
type FeishuConfig struct {
	AppID       string `mapstructure:"app_id"`
	AppSecret   string `mapstructure:"app_secret"`
	RedirectURI string `mapstructure:"redirect_uri"`
	JWTSecret   string `mapstructure:"jwt_secret"`
}

// FetchConfig bundles per-adapter fetch knobs.
type FetchConfig struct {
	PerRequestTimeoutSeconds int      `mapstructure:"per_request_timeout_seconds"`
	Retries                  int      `mapstructure:"retries"`
	PageSize                 int      `mapstructure:"page_size"`
	MaxResults               int      `mapstructure:"max_results"`
	ArxivBaseURL             string   `mapstructure:"arxiv_base_url"`
	ArxivQueryTerms          []string `mapstructure:"arxiv_query_terms"`
	NewsBaseURL              string   `mapstructure:"news_base_url"`
	NewsAPIKey               string   `mapstructure:"news_api_key"`
	NewsTitleQuery           string   `mapstructure:"news_title_query"`
	NewsLanguage             string   `mapstructure:"news_language"`
	JobsBaseURL              string   `mapstructure:"jobs_base_url"`
	JobsEmployers            []string `mapstructure:"jobs_employers"`
	DatasetArticleURL        string   `mapstructure:"dataset_article_url"`
	BilibiliBaseURL          string   `mapstructure:"bilibili_base_url"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// CacheConfig controls the short-lived read cache.
type CacheConfig struct {
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	RedisAddr  string `mapstructure:"redis_addr"`
}

// RefreshConfig bounds a coordinator pass.
type RefreshConfig struct {
	BudgetSeconds int `mapstructure:"budget_seconds"`
}

// TaxonomyConfig toggles legacy key acceptance.
type TaxonomyConfig struct {
	AcceptLegacy bool `mapstructure:"accept_legacy"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindOperationalEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindOperationalEnv maps the historically significant, unprefixed
// environment names onto config keys so existing deployments keep
// working without the PULSE_ prefix.
func bindOperationalEnv(v *viper.Viper) {
	pairs := map[string]string{
		"scheduler.retry_enabled":  "SCHEDULER_RETRY_ENABLED",
		"scheduler.max_retries":    "SCHEDULER_MAX_RETRIES",
		"scheduler.retry_delay":    "SCHEDULER_RETRY_DELAY",
		"scheduler.backoff_factor": "SCHEDULER_BACKOFF_FACTOR",
		"alerts.feishu_webhook":    "FEISHU_ALERT_WEBHOOK",
		"alerts.email_enabled":     "EMAIL_ALERT_ENABLED",
		"alerts.smtp_host":         "SMTP_HOST",
		"alerts.smtp_port":         "SMTP_PORT",
		"alerts.smtp_user":         "SMTP_USER",
		"alerts.smtp_password":     "SMTP_PASSWORD",
		"alerts.email_to":          "ALERT_EMAIL_TO",
		"bilibili.sessdata":        "BILI_SESSDATA",
		"bilibili.jct":             "BILI_JCT",
		"bilibili.buvid3":          "BILI_BUVID3",
		"bilibili.dedeuserid":      "BILI_DEDEUSERID",
		"bilibili.cookie":          "BILI_COOKIE",
		"feishu.app_id":            "FEISHU_APP_ID",
		"feishu.app_secret":        "FEISHU_APP_SECRET",
		"feishu.redirect_uri":      "FEISHU_REDIRECT_URI",
		"feishu.jwt_secret":        "JWT_SECRET",
	}
	for key, env := range pairs {
		// BindEnv only errors on empty input.
		_ = v.BindEnv(key, env)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("scheduler.retry_enabled", false)
	v.SetDefault("scheduler.max_retries", 3)
	v.SetDefault("scheduler.retry_delay", 60)
	v.SetDefault("scheduler.backoff_factor", 2)
	v.SetDefault("scheduler.alert_on_final_failure", true)
	v.SetDefault("scheduler.cron", "@every 30m")
	v.SetDefault("alerts.smtp_port", 587)
	v.SetDefault("fetch.per_request_timeout_seconds", 15)
	v.SetDefault("fetch.retries", 2)
	v.SetDefault("fetch.page_size", 100)
	v.SetDefault("fetch.max_results", 500)
	v.SetDefault("fetch.arxiv_base_url", "https://export.arxiv.org/api/query")
	v.SetDefault("fetch.arxiv_query_terms", []string{"embodied AI", "robot manipulation", "robot learning"})
	v.SetDefault("fetch.news_base_url", "https://api.apitube.io/v1/news")
	v.SetDefault("fetch.news_language", "en")
	v.SetDefault("fetch.bilibili_base_url", "https://api.bilibili.com")
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.max_conns", 8)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("refresh.budget_seconds", 600)
	v.SetDefault("taxonomy.accept_legacy", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scheduler.RetryEnabled {
		if c.Scheduler.MaxRetries < 0 {
			return fmt.Errorf("scheduler.max_retries must be >= 0")
		}
		if c.Scheduler.RetryDelay <= 0 {
			return fmt.Errorf("scheduler.retry_delay must be > 0")
		}
		if c.Scheduler.BackoffFactor < 1 {
			return fmt.Errorf("scheduler.backoff_factor must be >= 1")
		}
	}
	if c.Alerts.EmailEnabled {
		if c.Alerts.SMTPHost == "" || c.Alerts.EmailTo == "" {
			return fmt.Errorf("alerts.smtp_host and alerts.email_to must be set when email alerting is enabled")
		}
	}
	if c.Store.Provider != "memory" && c.Store.Provider != "postgres" {
		return fmt.Errorf("unknown store provider %q", c.Store.Provider)
	}
	if c.Store.Provider == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for the postgres provider")
	}
	if c.Fetch.PerRequestTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.per_request_timeout_seconds must be > 0")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	return nil
}

// PerRequestTimeout converts the fetch timeout config into a duration.
func (c Config) PerRequestTimeout() time.Duration {
	return time.Duration(c.Fetch.PerRequestTimeoutSeconds) * time.Second
}

// RefreshBudget converts the refresh budget config into a duration.
func (c Config) RefreshBudget() time.Duration {
	return time.Duration(c.Refresh.BudgetSeconds) * time.Second
}
