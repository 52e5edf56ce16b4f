package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

const (
	// csrfCookieName はダブルサブミット用トークンのCookie名。
	// フロントエンドが読み取ってヘッダーに載せるためHttpOnlyにしない。
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"

	csrfTokenBytes = 32
	csrfCookieTTL  = 24 * 60 * 60
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// csrfTokenResponse はGET /api/csrf-tokenのレスポンス。
type csrfTokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// NewCSRFMiddleware はダブルサブミットCookie方式のCSRF検証ミドルウェアを返す。
// 読み取り系メソッドはトークンを配るだけで通し、それ以外はCookieと
// X-CSRF-Tokenヘッダーの一致を要求する。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if cookieToken(r) == "" {
					if _, err := issueCSRFToken(w, config); err != nil {
						slog.Error("CSRFトークンの生成に失敗しました", slog.String("error", err.Error()))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if reason := verifyCSRF(r); reason != "" {
				slog.Warn("CSRF検証に失敗しました",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFTokenInvalidError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はGET /api/csrf-tokenのハンドラーを返す。
// Cookieにトークンがあればそれを返し、なければ発行する。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := cookieToken(r)
		if token == "" {
			var err error
			if token, err = issueCSRFToken(w, config); err != nil {
				slog.Error("CSRFトークンの生成に失敗しました", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}
		writeJSON(w, http.StatusOK, csrfTokenResponse{Success: true, Token: token})
	})
}

// verifyCSRF はCookieとヘッダーのトークンを照合し、失敗理由を返す。
// 一致すれば空文字列。
func verifyCSRF(r *http.Request) string {
	fromCookie := cookieToken(r)
	if fromCookie == "" {
		return "missing cookie token"
	}
	fromHeader := r.Header.Get(csrfHeaderName)
	if fromHeader == "" {
		return "missing header token"
	}
	if subtle.ConstantTimeCompare([]byte(fromCookie), []byte(fromHeader)) != 1 {
		return "token mismatch"
	}
	return ""
}

func cookieToken(r *http.Request) string {
	c, err := r.Cookie(csrfCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// issueCSRFToken は新しいトークンを生成してCookieに載せる。
func issueCSRFToken(w http.ResponseWriter, config CSRFConfig) (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieTTL,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
