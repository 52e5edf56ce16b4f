// Package auth はパスワード認証とセッション管理を提供する。
package auth

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

const (
	// BcryptCost はパスワードハッシュのワークファクター。
	BcryptCost = 12

	minUsernameLength = 3
	maxUsernameLength = 50
	minPasswordLength = 6
	// maxPasswordBytes はbcryptが扱える入力長の上限。
	maxPasswordBytes = 72
)

// HashPassword はパスワードをbcryptでハッシュ化する。
// ソルトは呼び出しごとにランダムに生成されるため、同じ入力でも異なるハッシュになる。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword はパスワードとハッシュが一致するかを返す。
// ハッシュが不正な形式の場合もfalseを返す。
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateCredentials はサインアップ・ログインの入力を検証する。
func ValidateCredentials(username, password string) *model.APIError {
	switch n := utf8.RuneCountInString(username); {
	case n < minUsernameLength:
		return model.NewValidationError("Username must be at least 3 characters")
	case n > maxUsernameLength:
		return model.NewValidationError("Username must be at most 50 characters")
	}

	switch {
	case utf8.RuneCountInString(password) < minPasswordLength:
		return model.NewValidationError("Password must be at least 6 characters")
	case len(password) > maxPasswordBytes:
		return model.NewValidationError("Password must be at most 72 bytes")
	}
	return nil
}
