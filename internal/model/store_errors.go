package model

import (
	"context"
	"errors"
	"net"
)

// FromStoreError はバックエンドストアのエラーを利用者向けのAPIErrorに変換する。
// 既にAPIErrorであればそのまま返す。タイムアウトはSTORE_TIMEOUT、それ以外はSERVICE_UNAVAILABLEとなる。
func FromStoreError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if IsTimeout(err) {
		return NewStoreTimeoutError()
	}
	return NewServiceUnavailableError()
}

// IsTimeout はエラーがタイムアウトに起因するかを判定する。
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
