// Package notify はアラート用Webhook（Slack Incoming Webhook）の検証とテスト送信を提供する。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

const (
	// DefaultPrefix はWebhook URLに要求するプロバイダーのプレフィックス。
	DefaultPrefix = "https://hooks.slack.com/services/"
	// DefaultTimeout はテスト送信のタイムアウト。
	DefaultTimeout = 5 * time.Second
)

// ValidateWebhookURL はURLがプロバイダーのWebhookプレフィックスに一致するかを検証する。
// スキームとホストはプレフィックスと完全一致し、パスはプレフィックスのパスで始まり
// その後ろに続きを持つ必要がある。ネットワークアクセスは行わない。
func ValidateWebhookURL(raw, prefix string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.NewInvalidWebhookURLError("URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return model.NewInvalidWebhookURLError("malformed URL")
	}
	if u.User != nil {
		return model.NewInvalidWebhookURLError("credentials are not allowed in the URL")
	}

	p, err := url.Parse(prefix)
	if err != nil {
		return fmt.Errorf("invalid webhook prefix %q: %w", prefix, err)
	}
	if !strings.EqualFold(u.Scheme, p.Scheme) || !strings.EqualFold(u.Host, p.Host) {
		return model.NewInvalidWebhookURLError(fmt.Sprintf("URL must start with %s", prefix))
	}
	if !strings.HasPrefix(u.Path, p.Path) || len(u.Path) <= len(p.Path) {
		return model.NewInvalidWebhookURLError(fmt.Sprintf("URL must start with %s", prefix))
	}
	// u.Pathはデコード済みなので%2e%2eもここで弾かれる
	if hasDotSegment(u.Path) {
		return model.NewInvalidWebhookURLError("dot segments are not allowed in the path")
	}
	return nil
}

// hasDotSegment はパスに"."または".."のセグメントが含まれるか判定する。
func hasDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// Recorder はテスト送信の結果を記録するメトリクスのインターフェース。
type Recorder interface {
	RecordWebhookTest(outcome string)
}

// Tester はWebhookへ固定のテストメッセージを送信する。
type Tester struct {
	client  *http.Client
	prefix  string
	timeout time.Duration
	metrics Recorder
}

// NewTester はTesterを生成する。
// 本番ではSSRFガード付きのクライアントを渡す。prefixとtimeoutは空ならデフォルト値を使う。
func NewTester(client *http.Client, prefix string, timeout time.Duration, metrics Recorder) *Tester {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tester{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		metrics: metrics,
	}
}

// Prefix は検証に使うプレフィックスを返す。
func (t *Tester) Prefix() string {
	return t.prefix
}

// testPayload はSlack形式のテストメッセージ。
type testPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func newTestPayload() testPayload {
	const text = "Portfolio Intelligence: test notification"
	return testPayload{
		Text: text,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: "Webhook connected"}},
			{Type: "section", Text: &slackText{
				Type: "mrkdwn",
				Text: "This channel will receive alerts for events detected on your watchlist.",
			}},
		},
	}
}

// Test はURLを検証した上でテストメッセージを送信する。
// 形式不正はINVALID_WEBHOOK_URL、タイムアウトと接続失敗はWEBHOOK_TIMEOUT、
// 2xx以外の応答はWEBHOOK_REJECTEDを返す。
func (t *Tester) Test(ctx context.Context, webhookURL string) error {
	if err := ValidateWebhookURL(webhookURL, t.prefix); err != nil {
		t.record("invalid_url")
		return err
	}

	body, err := json.Marshal(newTestPayload())
	if err != nil {
		return fmt.Errorf("failed to encode test payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(webhookURL), bytes.NewReader(body))
	if err != nil {
		t.record("invalid_url")
		return model.NewInvalidWebhookURLError("malformed URL")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.record("timeout")
		slog.WarnContext(ctx, "Webhookテスト送信に失敗しました",
			slog.Bool("timeout", model.IsTimeout(err)),
			slog.String("error", err.Error()),
		)
		return model.NewWebhookTimeoutError()
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.record("rejected")
		slog.WarnContext(ctx, "WebhookプロバイダーがテストメッセージをRejectしました",
			slog.Int("status", resp.StatusCode),
		)
		return model.NewWebhookRejectedError(resp.StatusCode)
	}

	t.record("success")
	slog.InfoContext(ctx, "Webhookテスト送信が完了しました",
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (t *Tester) record(outcome string) {
	if t.metrics != nil {
		t.metrics.RecordWebhookTest(outcome)
	}
}
