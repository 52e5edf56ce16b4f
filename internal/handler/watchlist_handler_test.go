package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/portfolio-intel/internal/model"
	"github.com/hitoshi/portfolio-intel/internal/watchlist"
)

// mockWatchlistService はWatchlistServiceInterfaceのモック実装。
type mockWatchlistService struct {
	getFn     func(ctx context.Context, userID string) (*model.Watchlist, error)
	replaceFn func(ctx context.Context, userID string, in watchlist.ReplaceInput) (*model.Watchlist, error)
}

func (m *mockWatchlistService) Get(ctx context.Context, userID string) (*model.Watchlist, error) {
	return m.getFn(ctx, userID)
}

func (m *mockWatchlistService) Replace(ctx context.Context, userID string, in watchlist.ReplaceInput) (*model.Watchlist, error) {
	return m.replaceFn(ctx, userID, in)
}

// mockWebhookTester はWebhookTesterのモック実装。
type mockWebhookTester struct {
	testFn func(ctx context.Context, webhookURL string) error
}

func (m *mockWebhookTester) Test(ctx context.Context, webhookURL string) error {
	return m.testFn(ctx, webhookURL)
}

func TestWatchlistHandler_Get_EmptyPlaceholder(t *testing.T) {
	svc := &mockWatchlistService{
		getFn: func(ctx context.Context, userID string) (*model.Watchlist, error) {
			return model.EmptyWatchlist(userID), nil
		},
	}
	h := NewWatchlistHandler(svc, nil)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/watchlist", nil), "user-1")
	w := httptest.NewRecorder()
	h.GetWatchlist(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	wl, _ := body["watchlist"].(map[string]interface{})
	if wl["user_id"] != "user-1" {
		t.Errorf("user_id = %v", wl["user_id"])
	}
	tickers, ok := wl["tickers"].([]interface{})
	if !ok || len(tickers) != 0 {
		t.Errorf("tickers = %v, want []", wl["tickers"])
	}
	for _, key := range []string{"webhook_url", "created_at", "updated_at"} {
		v, present := wl[key]
		if !present || v != nil {
			t.Errorf("%s = %v (present=%v), want null", key, v, present)
		}
	}
}

func TestWatchlistHandler_Replace_AcceptsObjectAndStringTickers(t *testing.T) {
	var got watchlist.ReplaceInput
	svc := &mockWatchlistService{
		replaceFn: func(ctx context.Context, userID string, in watchlist.ReplaceInput) (*model.Watchlist, error) {
			got = in
			now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
			return &model.Watchlist{
				UserID:    userID,
				Tickers:   []model.WatchlistTicker{{Symbol: "AMD", Name: "AMD", Status: model.TickerStatusActive}},
				CreatedAt: &now,
				UpdatedAt: &now,
			}, nil
		},
	}
	h := NewWatchlistHandler(svc, nil)

	payload := `{"tickers":[{"symbol":"NVDA","name":"NVIDIA","status":"Inactive"},"AMD"]}`
	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/watchlist", strings.NewReader(payload)), "user-1")
	w := httptest.NewRecorder()
	h.ReplaceWatchlist(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	if len(got.Tickers) != 2 {
		t.Fatalf("tickers len = %d, want 2", len(got.Tickers))
	}
	if got.Tickers[0].Symbol != "NVDA" || got.Tickers[0].Status != "Inactive" {
		t.Errorf("tickers[0] = %+v", got.Tickers[0])
	}
	if got.Tickers[1].Symbol != "AMD" {
		t.Errorf("tickers[1] = %+v, want string form AMD", got.Tickers[1])
	}
	if got.WebhookURL.Set {
		t.Error("absent webhook_url should not be marked as set")
	}
}

func TestWatchlistHandler_Replace_WebhookNullIsSet(t *testing.T) {
	var got watchlist.ReplaceInput
	svc := &mockWatchlistService{
		replaceFn: func(ctx context.Context, userID string, in watchlist.ReplaceInput) (*model.Watchlist, error) {
			got = in
			return model.EmptyWatchlist(userID), nil
		},
	}
	h := NewWatchlistHandler(svc, nil)

	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/watchlist", strings.NewReader(`{"tickers":[],"webhook_url":null}`)), "user-1")
	w := httptest.NewRecorder()
	h.ReplaceWatchlist(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !got.WebhookURL.Set || got.WebhookURL.Value != nil {
		t.Errorf("webhook = %+v, want set to null", got.WebhookURL)
	}
}

func TestWatchlistHandler_Replace_MissingTickers_Returns400(t *testing.T) {
	for _, payload := range []string{`{}`, `{"tickers":null}`, `{"tickers":"AMD"}`} {
		t.Run(payload, func(t *testing.T) {
			svc := &mockWatchlistService{
				replaceFn: func(ctx context.Context, userID string, in watchlist.ReplaceInput) (*model.Watchlist, error) {
					t.Fatal("service should not be called")
					return nil, nil
				},
			}
			h := NewWatchlistHandler(svc, nil)

			req := withUserID(httptest.NewRequest(http.MethodPut, "/api/watchlist", strings.NewReader(payload)), "user-1")
			w := httptest.NewRecorder()
			h.ReplaceWatchlist(w, req)

			assertErrorBody(t, w, http.StatusBadRequest, model.ErrCodeValidation)
		})
	}
}

func TestWatchlistHandler_Replace_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"duplicate symbol", model.NewValidationError("Duplicate ticker symbol: AMD"), http.StatusBadRequest, model.ErrCodeValidation},
		{"bad webhook", model.NewInvalidWebhookURLError("must start with provider prefix"), http.StatusBadRequest, model.ErrCodeInvalidWebhookURL},
		{"conflict", model.NewWatchlistConflictError(), http.StatusConflict, model.ErrCodeWatchlistConflict},
		{"store down", model.NewServiceUnavailableError(), http.StatusServiceUnavailable, model.ErrCodeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWatchlistService{
				replaceFn: func(ctx context.Context, userID string, in watchlist.ReplaceInput) (*model.Watchlist, error) {
					return nil, tt.err
				},
			}
			h := NewWatchlistHandler(svc, nil)

			req := withUserID(httptest.NewRequest(http.MethodPut, "/api/watchlist", strings.NewReader(`{"tickers":["AMD","AMD"]}`)), "user-1")
			w := httptest.NewRecorder()
			h.ReplaceWatchlist(w, req)

			assertErrorBody(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestWatchlistHandler_TestWebhook(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"delivered", nil, http.StatusOK, ""},
		{"invalid url", model.NewInvalidWebhookURLError("must start with provider prefix"), http.StatusBadRequest, model.ErrCodeInvalidWebhookURL},
		{"timeout", model.NewWebhookTimeoutError(), http.StatusRequestTimeout, model.ErrCodeWebhookTimeout},
		{"rejected", model.NewWebhookRejectedError(404), http.StatusBadGateway, model.ErrCodeWebhookRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotURL string
			tester := &mockWebhookTester{
				testFn: func(ctx context.Context, webhookURL string) error {
					gotURL = webhookURL
					return tt.err
				},
			}
			h := NewWatchlistHandler(&mockWatchlistService{}, tester)

			payload := `{"webhook_url":"https://hooks.slack.com/services/T000/B000/XXX"}`
			req := withUserID(httptest.NewRequest(http.MethodPost, "/api/watchlist/test-webhook", strings.NewReader(payload)), "user-1")
			w := httptest.NewRecorder()
			h.TestWebhook(w, req)

			if gotURL != "https://hooks.slack.com/services/T000/B000/XXX" {
				t.Errorf("url = %q", gotURL)
			}
			if tt.err != nil {
				assertErrorBody(t, w, tt.wantStatus, tt.wantCode)
				return
			}
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if body := decodeBody(t, w); body["success"] != true {
				t.Errorf("success = %v", body["success"])
			}
		})
	}
}
