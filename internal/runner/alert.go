package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/metrics"
)

// DispatcherConfig selects the alert transports. An empty webhook URL
// disables the Feishu transport; EmailEnabled gates SMTP.
type DispatcherConfig struct {
	FeishuWebhook string
	EmailEnabled  bool
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	EmailTo       string
}

// Dispatcher fans one alert out to every configured transport. A
// transport failure is logged and swallowed; alerting must never
// break the task path.
type Dispatcher struct {
	cfg      DispatcherConfig
	http     *http.Client
	logger   *zap.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Dispatcher{
		cfg:      cfg,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// Alert sends the final-failure notification through each configured
// transport and always writes the structured error line.
func (d *Dispatcher) Alert(ctx context.Context, a Alert) {
	d.logger.Error("scheduled task failed permanently",
		zap.String("task", a.Task),
		zap.Time("failed_at", a.FailedAt),
		zap.Int("retries", a.Retries),
		zap.String("reason", a.Reason),
	)
	if d.cfg.FeishuWebhook != "" {
		if err := d.sendFeishu(ctx, a); err != nil {
			d.logger.Warn("feishu alert dispatch failed", zap.Error(err))
		} else {
			metrics.ObserveAlert("feishu")
		}
	}
	if d.cfg.EmailEnabled {
		if err := d.sendEmail(a); err != nil {
			d.logger.Warn("email alert dispatch failed", zap.Error(err))
		} else {
			metrics.ObserveAlert("email")
		}
	}
}

func (d *Dispatcher) sendFeishu(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(map[string]any{
		"msg_type": "text",
		"content": map[string]string{
			"text": alertText(a),
		},
	})
	if err != nil {
		return fmt.Errorf("marshal feishu payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.FeishuWebhook, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build feishu request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("post feishu webhook: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 300 {
		return fmt.Errorf("feishu webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) sendEmail(a Alert) error {
	addr := fmt.Sprintf("%s:%d", d.cfg.SMTPHost, d.cfg.SMTPPort)
	var auth smtp.Auth
	if d.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", d.cfg.SMTPUser, d.cfg.SMTPPassword, d.cfg.SMTPHost)
	}
	to := strings.Split(d.cfg.EmailTo, ",")
	for i := range to {
		to[i] = strings.TrimSpace(to[i])
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: [embodiedpulse] task %s failed\r\n\r\n%s\r\n",
		d.cfg.SMTPUser, d.cfg.EmailTo, a.Task, alertText(a))
	return d.sendMail(addr, auth, d.cfg.SMTPUser, to, []byte(msg))
}

func alertText(a Alert) string {
	return fmt.Sprintf("task %s failed at %s after %d retries: %s",
		a.Task, a.FailedAt.Format(time.RFC3339), a.Retries, a.Reason)
}
