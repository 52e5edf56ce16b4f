package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/portfolio-intel/internal/middleware"
	"github.com/hitoshi/portfolio-intel/internal/model"
)

// withUserID はセッションミドルウェアを通過した状態のリクエストを作る。
func withUserID(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

// withIdentity はユーザー名付きで認証済みのリクエストを作る。
func withIdentity(req *http.Request, userID, username string) *http.Request {
	ctx := middleware.ContextWithIdentity(req.Context(), &model.Identity{UserID: userID, Username: username})
	return req.WithContext(ctx)
}

// decodeBody はレスポンスボディをmapとしてデコードする。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}

// assertErrorBody はエラーレスポンスのステータスとコードを検証する。
func assertErrorBody(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, wantStatus, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Error("error message should not be empty")
	}
	if body["code"] != wantCode {
		t.Errorf("code = %v, want %s", body["code"], wantCode)
	}
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
