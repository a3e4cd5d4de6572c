// Command checkconfig loads the service configuration and reports
// which subsystems are usable, without starting the service. Secrets
// are only ever printed as short prefixes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/config"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/logging"
)

type check struct {
	name   string
	ok     bool
	detail string
}

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL load config: %v\n", err)
		os.Exit(1)
	}

	checks := runChecks(cfg)

	failed := 0
	for _, c := range checks {
		status := "ok"
		if !c.ok {
			status = "FAIL"
			failed++
		}
		fmt.Printf("%-4s %-20s %s\n", status, c.name, c.detail)
	}

	if failed > 0 {
		fmt.Printf("\n%d of %d checks failed\n", failed, len(checks))
		os.Exit(1)
	}
	fmt.Printf("\nall %d checks passed\n", len(checks))
}

func runChecks(cfg config.Config) []check {
	var checks []check

	checks = append(checks, check{
		name:   "scheduler",
		ok:     cfg.Scheduler.MaxRetries >= 0 && cfg.Scheduler.RetryDelay > 0 && cfg.Scheduler.BackoffFactor >= 1,
		detail: fmt.Sprintf("retries=%d delay=%ds backoff=%d cron=%q", cfg.Scheduler.MaxRetries, cfg.Scheduler.RetryDelay, cfg.Scheduler.BackoffFactor, cfg.Scheduler.CronSpec),
	})

	checks = append(checks, alertCheck(cfg.Alerts))
	checks = append(checks, bilibiliCheck(cfg.Bilibili))
	checks = append(checks, feishuCheck(cfg.Feishu))

	checks = append(checks, check{
		name:   "store",
		ok:     cfg.Store.Provider != "postgres" || cfg.Store.DSN != "",
		detail: fmt.Sprintf("provider=%s", cfg.Store.Provider),
	})

	newsOK := cfg.Fetch.NewsAPIKey != ""
	newsDetail := "news api key missing, news stream will fail"
	if newsOK {
		newsDetail = fmt.Sprintf("news api key %s", logging.SecretPreview(cfg.Fetch.NewsAPIKey))
	}
	checks = append(checks, check{name: "fetch", ok: newsOK, detail: newsDetail})

	return checks
}

func alertCheck(a config.AlertConfig) check {
	if a.FeishuWebhook == "" && !a.EmailEnabled {
		return check{name: "alerts", ok: true, detail: "no transports configured, alerts log only"}
	}
	if a.EmailEnabled && (a.SMTPHost == "" || a.EmailTo == "") {
		return check{name: "alerts", ok: false, detail: "email enabled but smtp host or recipients missing"}
	}
	detail := ""
	if a.FeishuWebhook != "" {
		detail = "feishu webhook set"
	}
	if a.EmailEnabled {
		if detail != "" {
			detail += ", "
		}
		detail += fmt.Sprintf("email via %s:%d", a.SMTPHost, a.SMTPPort)
	}
	return check{name: "alerts", ok: true, detail: detail}
}

func bilibiliCheck(b config.BilibiliConfig) check {
	if !b.Configured() {
		return check{name: "bilibili", ok: true, detail: "credentials missing, creator stream disabled"}
	}
	preview := logging.SecretPreview(b.SESSDATA)
	if b.SESSDATA == "" {
		preview = "via composite cookie"
	} else {
		preview = "SESSDATA " + preview
	}
	return check{name: "bilibili", ok: true, detail: fmt.Sprintf("%s, %d creators", preview, len(b.Creators))}
}

func feishuCheck(f config.FeishuConfig) check {
	missing := []string{}
	if f.AppID == "" {
		missing = append(missing, "app_id")
	}
	if f.AppSecret == "" {
		missing = append(missing, "app_secret")
	}
	if f.RedirectURI == "" {
		missing = append(missing, "redirect_uri")
	}
	if f.JWTSecret == "" {
		missing = append(missing, "jwt_secret")
	}
	if len(missing) == 4 {
		return check{name: "feishu", ok: true, detail: "oauth not configured"}
	}
	if len(missing) > 0 {
		return check{name: "feishu", ok: false, detail: fmt.Sprintf("partial oauth config, missing %v", missing)}
	}
	return check{name: "feishu", ok: true, detail: fmt.Sprintf("app %s", logging.SecretPreview(f.AppID))}
}
