package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/portfolio-intel/internal/middleware"
	"github.com/hitoshi/portfolio-intel/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, username, password string) (*model.User, *model.Session, error)
	Login(ctx context.Context, username, password string) (*model.User, *model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はユーザー名・パスワード認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// credentialsRequest はサインアップ・ログインのリクエストボディ。
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Signup はユーザーを作成しセッションを開始する。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, session, err := h.service.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, r, session)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    identityOf(user),
	})
}

// Login は資格情報を検証しセッションを開始する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, session, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, r, session)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    identityOf(user),
	})
}

// Logout はセッションを破棄する。セッションが無くても成功を返す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.SessionIDFromRequest(r); sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			// 削除に失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	clearSessionCookie(w, r, h.config)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    identity,
	})
}

// setSessionCookie はセッションCookie（HTTP Only）を設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, session *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを失効させる。退会時にも使う。
func clearSessionCookie(w http.ResponseWriter, r *http.Request, config AuthHandlerConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.CookieSecure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func identityOf(user *model.User) model.Identity {
	return model.Identity{UserID: user.ID, Username: user.Username}
}
