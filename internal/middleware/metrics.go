package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RequestRecorder はHTTPリクエストのメトリクスを記録するインターフェース。
type RequestRecorder interface {
	RecordHTTPRequest(route string, statusCode int, duration time.Duration)
}

// NewMetricsMiddleware はレスポンスのステータスと処理時間を記録するミドルウェアを返す。
// パスではなくchiのルートパターンをラベルに使う。
func NewMetricsMiddleware(recorder RequestRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			recorder.RecordHTTPRequest(route, rec.statusCode, time.Since(start))
		})
	}
}
