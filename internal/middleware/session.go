// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var identityContextKey = contextKey("identity")

// SessionResolver はセッションIDから認証済みユーザーを解決するインターフェース。
// 期限切れや未知のIDはnilを返す。
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (*model.Identity, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーをリクエストコンテキストに注入する。
// 未認証リクエストには401、セッションストア障害には503を返す。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := SessionIDFromRequest(r)
			if sessionID == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			identity, err := resolver.Resolve(r.Context(), sessionID)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusServiceUnavailable, model.FromStoreError(err))
				return
			}
			if identity == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromRequest はCookieからセッションIDを取り出す。無ければ空文字列を返す。
func SessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// IdentityFromContext はリクエストコンテキストから認証済みユーザーを取得する。
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	return identity, ok && identity != nil && identity.UserID != ""
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("user ID not found in context")
	}
	return identity.UserID, nil
}

// ContextWithIdentity はコンテキストに認証済みユーザーを注入する。
// リクエストログ用にユーザーIDも記録する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	setRequestUser(ctx, identity.UserID)
	return context.WithValue(ctx, identityContextKey, identity)
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithIdentity(ctx, &model.Identity{UserID: userID})
}
