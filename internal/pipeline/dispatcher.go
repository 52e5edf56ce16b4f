package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

// DefaultTimeout は1件のシグナル送信に許す時間。
const DefaultTimeout = 10 * time.Second

// ErrDispatcherClosed はClose後にDispatchされたことを示す。
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// Recorder はシグナル送信結果を記録するメトリクスのインターフェース。
type Recorder interface {
	RecordSignalDispatched(notifier string)
	RecordSignalFailure(notifier string, reason string)
}

// Dispatcher はシグナルをリクエストから切り離したゴルーチンで送信する。
// 各送信はリクエストのコンテキストを引き継がず、独自のタイムアウトを持つ。
type Dispatcher struct {
	notifier Notifier
	name     string
	timeout  time.Duration
	logger   *slog.Logger
	metrics  Recorder

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher はDispatcherを生成する。
// nameはメトリクスのnotifierラベルに使う。timeoutが0以下ならDefaultTimeoutを使う。
func NewDispatcher(notifier Notifier, name string, timeout time.Duration, logger *slog.Logger, metrics Recorder) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		notifier: notifier,
		name:     name,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Dispatch はシグナルの送信を開始し、完了を待たずに戻る。
func (d *Dispatcher) Dispatch(signal Signal) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("停止中のためシグナルを破棄しました",
			slog.String("user_id", signal.UserID),
			slog.String("error", ErrDispatcherClosed.Error()),
		)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.send(signal)
	}()
}

func (d *Dispatcher) send(signal Signal) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err := d.notifySafely(ctx, signal)
	if err != nil {
		reason := "error"
		if model.IsTimeout(err) {
			reason = "timeout"
		}
		d.record(func(m Recorder) { m.RecordSignalFailure(d.name, reason) })
		d.logger.Error("銘柄登録シグナルの送信に失敗しました",
			slog.String("user_id", signal.UserID),
			slog.String("notifier", d.name),
			slog.Int("added_count", len(signal.Added)),
			slog.Int("removed_count", len(signal.Removed)),
			slog.String("error", err.Error()),
		)
		return
	}

	d.record(func(m Recorder) { m.RecordSignalDispatched(d.name) })
	d.logger.Info("銘柄登録シグナルを送信しました",
		slog.String("user_id", signal.UserID),
		slog.String("notifier", d.name),
		slog.Int("added_count", len(signal.Added)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// notifySafely はNotifierのpanicをエラーに変換する。
func (d *Dispatcher) notifySafely(ctx context.Context, signal Signal) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("notifier panicked: %v", rec)
		}
	}()
	return d.notifier.Notify(ctx, signal)
}

func (d *Dispatcher) record(fn func(Recorder)) {
	if d.metrics != nil {
		fn(d.metrics)
	}
}

// Wait は送信中のシグナルがすべて完了するまで待つ。
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close は新規のDispatchを止め、送信中のシグナルの完了をctxの期限まで待つ。
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight signals: %w", ctx.Err())
	}
}

var _ SignalDispatcher = (*Dispatcher)(nil)
