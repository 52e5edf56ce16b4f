package repository

import (
	"context"
	"time"
)

const (
	// initialBackoff は未処理キー再試行の初回遅延。
	initialBackoff = 50 * time.Millisecond
	// maxBackoff は未処理キー再試行の最大遅延。
	maxBackoff = 2 * time.Second
)

// CalculateBackoff は再試行回数に基づいて指数バックオフ遅延を計算する。
// 初回50ミリ秒、2倍ずつ増加、最大2秒。
func CalculateBackoff(attempt int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// sleepContext は指定時間待機する。ctxがキャンセルされた場合は即座に戻る。
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
