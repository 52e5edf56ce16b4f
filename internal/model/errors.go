// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはレスポンスのerrorフィールドにそのまま載るため、利用者向けの文言にする。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, event, watchlist, webhook, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeCSRFTokenInvalid   = "CSRF_TOKEN_INVALID"
	ErrCodeEventNotFound      = "EVENT_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeWatchlistConflict  = "WATCHLIST_CONFLICT"
	ErrCodeInvalidWebhookURL  = "INVALID_WEBHOOK_URL"
	ErrCodeWebhookTimeout     = "WEBHOOK_TIMEOUT"
	ErrCodeWebhookRejected    = "WEBHOOK_REJECTED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeStoreTimeout       = "STORE_TIMEOUT"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー不在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid username or password",
		Category: "auth",
		Action:   "ユーザー名とパスワードを確認してください。",
	}
}

// NewForbiddenError は認可されていないリソースへのアクセスエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You do not have access to this event",
		Category: "auth",
		Action:   "ウォッチリストに登録した銘柄のイベントのみ閲覧できます。",
	}
}

// NewCSRFTokenInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewEventNotFoundError はイベント未検出エラーを生成する。
func NewEventNotFoundError(eventID string) *APIError {
	return &APIError{
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("Event not found: %s", eventID),
		Category: "event",
		Action:   "イベントIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  "Username already taken",
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewWatchlistConflictError は同時更新の再試行上限に達した場合のエラーを生成する。
func NewWatchlistConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeWatchlistConflict,
		Message:  "Watchlist was modified concurrently, please retry",
		Category: "watchlist",
		Action:   "画面を再読み込みしてから再度保存してください。",
	}
}

// NewInvalidWebhookURLError はWebhook URLの形式エラーを生成する。
func NewInvalidWebhookURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWebhookURL,
		Message:  fmt.Sprintf("Invalid webhook URL: %s", reason),
		Category: "webhook",
		Action:   "SlackのIncoming Webhook URLを入力してください。",
	}
}

// NewWebhookTimeoutError はWebhook送信のタイムアウト・接続失敗エラーを生成する。
func NewWebhookTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeWebhookTimeout,
		Message:  "Webhook request timed out or could not connect",
		Category: "webhook",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewWebhookRejectedError は通知プロバイダーが非2xxを返した場合のエラーを生成する。
func NewWebhookRejectedError(statusCode int) *APIError {
	return &APIError{
		Code:     ErrCodeWebhookRejected,
		Message:  fmt.Sprintf("Webhook provider rejected the request with status %d", statusCode),
		Category: "webhook",
		Action:   "Webhook URLが有効か確認してください。",
	}
}

// NewServiceUnavailableError はバックエンドストア到達不能エラーを生成する。
func NewServiceUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeServiceUnavailable,
		Message:  "Service temporarily unavailable",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStoreTimeoutError はバックエンドストアのタイムアウトエラーを生成する。
func NewStoreTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreTimeout,
		Message:  "Backing store timed out",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
