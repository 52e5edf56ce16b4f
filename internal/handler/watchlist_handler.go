package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/portfolio-intel/internal/model"
	"github.com/hitoshi/portfolio-intel/internal/watchlist"
)

// WatchlistServiceInterface はウォッチリストハンドラーが必要とするサービスインターフェース。
type WatchlistServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.Watchlist, error)
	Replace(ctx context.Context, userID string, in watchlist.ReplaceInput) (*model.Watchlist, error)
}

// WebhookTester は通知Webhookの疎通確認インターフェース。
type WebhookTester interface {
	Test(ctx context.Context, webhookURL string) error
}

// WatchlistHandler はウォッチリスト管理のHTTPハンドラー。
type WatchlistHandler struct {
	service WatchlistServiceInterface
	tester  WebhookTester
}

// NewWatchlistHandler はWatchlistHandlerを生成する。
func NewWatchlistHandler(service WatchlistServiceInterface, tester WebhookTester) *WatchlistHandler {
	return &WatchlistHandler{
		service: service,
		tester:  tester,
	}
}

// replaceWatchlistRequest はウォッチリスト全置換のリクエストボディ。
// tickersの省略とnullは不正な入力として扱う。
type replaceWatchlistRequest struct {
	Tickers    *[]watchlist.TickerInput `json:"tickers"`
	WebhookURL watchlist.OptionalString `json:"webhook_url"`
}

// testWebhookRequest はWebhookテストのリクエストボディ。
type testWebhookRequest struct {
	WebhookURL string `json:"webhook_url"`
}

// GetWatchlist はウォッチリストを返す。未作成の場合は空のプレースホルダーを返す。
// GET /api/watchlist
func (h *WatchlistHandler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	wl, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"watchlist": wl,
	})
}

// ReplaceWatchlist はウォッチリストを全置換する。
// PUT /api/watchlist
func (h *WatchlistHandler) ReplaceWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req replaceWatchlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Tickers == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Tickers must be an array"))
		return
	}

	wl, err := h.service.Replace(r.Context(), userID, watchlist.ReplaceInput{
		Tickers:    *req.Tickers,
		WebhookURL: req.WebhookURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"watchlist": wl,
	})
}

// TestWebhook はWebhook URLにテストメッセージを送信する。
// POST /api/watchlist/test-webhook
func (h *WatchlistHandler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req testWebhookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.tester.Test(r.Context(), req.WebhookURL); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Test notification sent",
	})
}
