// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(route string, statusCode int, duration time.Duration)
	RecordSignalDispatched(notifier string)
	RecordSignalFailure(notifier string, reason string)
	RecordWebhookTest(outcome string)
	RecordBatchGetRetry()
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	signalSent      *prometheus.CounterVec
	signalFail      *prometheus.CounterVec
	webhookTests    *prometheus.CounterVec
	batchGetRetry   prometheus.Counter
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portfolio_http_request_duration_seconds",
			Help:    "ルート別のリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		signalSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_interest_signal_sent_total",
			Help: "パイプラインへ送信した銘柄登録シグナルの合計数",
		}, []string{"notifier"}),
		signalFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_interest_signal_fail_total",
			Help: "銘柄登録シグナル送信失敗の合計数",
		}, []string{"notifier", "reason"}),
		webhookTests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_webhook_test_total",
			Help: "Webhookテスト送信の結果別合計数",
		}, []string{"outcome"}),
		batchGetRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_dynamodb_batch_get_retry_total",
			Help: "BatchGetItemの未処理キー再試行回数",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.signalSent,
		c.signalFail,
		c.webhookTests,
		c.batchGetRetry,
		c.sessionsCleaned,
	)

	return c
}

// RecordHTTPRequest はHTTPレスポンスのステータスと処理時間を記録する。
// routeにはchiのルートパターンを渡し、ラベルの濃度を抑える。
func (c *Collector) RecordHTTPRequest(route string, statusCode int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordSignalDispatched はシグナル送信成功を記録する。
func (c *Collector) RecordSignalDispatched(notifier string) {
	c.signalSent.WithLabelValues(notifier).Inc()
}

// RecordSignalFailure はシグナル送信失敗を記録する。
func (c *Collector) RecordSignalFailure(notifier string, reason string) {
	c.signalFail.WithLabelValues(notifier, reason).Inc()
}

// RecordWebhookTest はWebhookテストの結果を記録する。
func (c *Collector) RecordWebhookTest(outcome string) {
	c.webhookTests.WithLabelValues(outcome).Inc()
}

// RecordBatchGetRetry は未処理キーの再試行を記録する。
func (c *Collector) RecordBatchGetRetry() {
	c.batchGetRetry.Inc()
}

// RecordSessionsCleaned は削除したセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordHTTPRequest(string, int, time.Duration) {}
func (Nop) RecordSignalDispatched(string)                {}
func (Nop) RecordSignalFailure(string, string)           {}
func (Nop) RecordWebhookTest(string)                     {}
func (Nop) RecordBatchGetRetry()                         {}
func (Nop) RecordSessionsCleaned(int64)                  {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
