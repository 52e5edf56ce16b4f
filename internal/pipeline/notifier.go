package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// LogNotifier はシグナルを構造化ログに出力するだけのNotifier。
// パイプラインとの連携先がない開発環境向け。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify はシグナルをINFOログに出力する。
func (n *LogNotifier) Notify(ctx context.Context, signal Signal) error {
	n.logger.InfoContext(ctx, "銘柄登録シグナル",
		slog.String("user_id", signal.UserID),
		slog.Any("added", signal.Added),
		slog.Any("removed", signal.Removed),
	)
	return nil
}

// HTTPNotifier はシグナルをJSONでパイプラインのエンドポイントへPOSTする。
// 送信先は運用者が設定する内部URLのため、SSRFガード付きクライアントは使わない。
type HTTPNotifier struct {
	url    string
	client *http.Client
}

// NewHTTPNotifier はHTTPNotifierを生成する。
func NewHTTPNotifier(url string, client *http.Client) *HTTPNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPNotifier{url: url, client: client}
}

// Notify はシグナルをPOSTし、2xx以外をエラーとして返す。
func (n *HTTPNotifier) Notify(ctx context.Context, signal Signal) error {
	body, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to encode signal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post signal: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pipeline responded with status %d", resp.StatusCode)
	}
	return nil
}

// Publisher はRedisのPUBLISHを抽象化する。*redis.Client が満たす。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier はシグナルをRedisチャネルへPUBLISHする。
type RedisNotifier struct {
	rdb     Publisher
	channel string
}

// NewRedisNotifier はRedisNotifierを生成する。
func NewRedisNotifier(rdb Publisher, channel string) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, channel: channel}
}

// Notify はシグナルをJSONにしてPUBLISHする。購読者がいなくてもエラーにしない。
func (n *RedisNotifier) Notify(ctx context.Context, signal Signal) error {
	body, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to encode signal: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish signal: %w", err)
	}
	return nil
}

var (
	_ Notifier  = (*LogNotifier)(nil)
	_ Notifier  = (*HTTPNotifier)(nil)
	_ Notifier  = (*RedisNotifier)(nil)
	_ Publisher = (*redis.Client)(nil)
)
