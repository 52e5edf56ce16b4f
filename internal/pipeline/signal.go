// Package pipeline は外部の検出パイプラインへの銘柄登録シグナル送信を提供する。
//
// シグナルはベストエフォートで送信する。送信失敗はログとメトリクスに残すのみで、
// 呼び出し元（ウォッチリスト更新）には伝播しない。
package pipeline

import (
	"context"
	"time"
)

// Signal はウォッチリスト更新時に検出パイプラインへ送る銘柄登録シグナル。
type Signal struct {
	UserID      string    `json:"user_id"`
	Added       []string  `json:"added"`
	Removed     []string  `json:"removed"`
	RequestedAt time.Time `json:"requested_at"`
}

// Notifier はシグナルを1件送信する。
type Notifier interface {
	Notify(ctx context.Context, signal Signal) error
}

// SignalDispatcher はシグナルを非同期に送信するインターフェース。
// ウォッチリストサービスから利用する。
type SignalDispatcher interface {
	Dispatch(signal Signal)
}
