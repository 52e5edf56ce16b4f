package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/portfolio-intel/internal/portfolio"
)

// PortfolioServiceInterface はポートフォリオハンドラーが必要とするサービスインターフェース。
type PortfolioServiceInterface interface {
	// Metrics はユーザーが閲覧可能な全イベントの集計結果を返す。
	Metrics(ctx context.Context, userID string) (*portfolio.Metrics, error)
}

// PortfolioHandler はポートフォリオ集計のHTTPハンドラー。
type PortfolioHandler struct {
	service PortfolioServiceInterface
}

// NewPortfolioHandler はPortfolioHandlerを生成する。
func NewPortfolioHandler(service PortfolioServiceInterface) *PortfolioHandler {
	return &PortfolioHandler{service: service}
}

// GetPortfolio はポートフォリオの集計メトリクスを返す。
// GET /api/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	metrics, err := h.service.Metrics(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"metrics": metrics,
	})
}
