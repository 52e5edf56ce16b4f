// Package model はドメインモデルを定義する。
package model

import "time"

// User はダッシュボードの利用ユーザーを表す。
// PasswordHashはUser Directoryの外へ出してはならない。
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser はクライアントへ返却可能なユーザー情報を表す。
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Public はパスワードハッシュを除いたユーザー情報を返す。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	Username  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Identity はセッションから解決された認証済みユーザーを表す。
type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}
