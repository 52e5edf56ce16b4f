package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout は各依存先への疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// Pinger は依存先への到達性を確認するインターフェース。
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck は名前付きの疎通確認対象。
type HealthCheck struct {
	Name   string
	Target Pinger
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	checks []HealthCheck
	now    func() time.Time
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		now:    time.Now,
	}
}

// Health はバックエンドストアの疎通を確認する。
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	for _, check := range h.checks {
		if err := check.Target.Ping(ctx); err != nil {
			slog.Error("health check failed",
				slog.String("dependency", check.Name),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"success": false,
				"status":  "unhealthy",
				"error":   check.Name + " is unreachable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}
