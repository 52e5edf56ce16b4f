// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッションの有効期限は絶対時刻のため、期限を過ぎた行は参照されることがない。
// ストアに溜まり続けないよう一定間隔で削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// defaultInterval はIntervalが未設定の場合の実行間隔。
const defaultInterval = time.Hour

// SessionExpirer は期限切れセッションを削除するストアのインターフェース。
// repository.SessionRepositoryの部分集合。
type SessionExpirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Recorder は削除件数を記録するメトリクスのインターフェース。
type Recorder interface {
	RecordSessionsCleaned(count int64)
}

// CleanupJob は期限切れセッションの削除ジョブ。
// 削除は冪等であり、対象がなくてもエラーにはならない。
type CleanupJob struct {
	store    SessionExpirer
	logger   *slog.Logger
	metrics  Recorder
	Interval time.Duration // 実行間隔（デフォルト: 1時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。metricsはnilでもよい。
func NewCleanupJob(store SessionExpirer, logger *slog.Logger, metrics Recorder) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		store:    store,
		logger:   logger,
		metrics:  metrics,
		Interval: defaultInterval,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.store.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("delete expired sessions: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsCleaned(deleted)
	}

	j.logger.Info("期限切れセッションを削除しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はInterval間隔でRunを繰り返す。起動直後に1回実行する。
// コンテキストがキャンセルされるまで戻らない。
func (j *CleanupJob) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップを開始しました",
		slog.Duration("interval", interval),
	)

	// 失敗はRun内でログ済み。次のティックで再試行する
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
