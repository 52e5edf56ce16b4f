package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetByID は指定IDのユーザーを返す。存在しない場合はnilを返す。
	GetByID(ctx context.Context, id string) (*model.User, error)
	// ListAll はパスワードハッシュを含まないユーザー一覧を返す。
	ListAll(ctx context.Context) ([]model.PublicUser, error)
	// Withdraw はユーザーの退会処理を実行する。
	// watchlist、sessions、userを削除する。イベントは共有データとして残す。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	cookie  AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
// cookieは退会時にセッションCookieを失効させるために使う。
func NewUserHandler(service UserServiceInterface, cookie AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		cookie:  cookie,
	}
}

// ListUsers はユーザー一覧を返す。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	users, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if users == nil {
		users = []model.PublicUser{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"users":   users,
	})
}

// CurrentUser はログイン中のユーザーをディレクトリから取得して返す。
// GET /api/users/current
func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		handleServiceError(w, model.NewUserNotFoundError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user.Public(),
	})
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	clearSessionCookie(w, r, h.cookie)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
