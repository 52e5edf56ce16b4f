package watchlist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

const (
	// MaxTickers はウォッチリストに登録できる銘柄数の上限。
	MaxTickers = 100
	// MaxSymbolLength はティッカーシンボルの最大文字数。
	MaxSymbolLength = 16
	// MaxNameLength は銘柄名の最大文字数。
	MaxNameLength = 200
)

// TickerInput はクライアントから受け取る銘柄1件。
// 旧形式の文字列 "AMD" とオブジェクト形式の両方を受け付ける。
type TickerInput struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// UnmarshalJSON は文字列形式をシンボルのみの入力として解釈する。
func (t *TickerInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var symbol string
		if err := json.Unmarshal(b, &symbol); err != nil {
			return err
		}
		*t = TickerInput{Symbol: symbol}
		return nil
	}
	type plain TickerInput
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = TickerInput(p)
	return nil
}

// OptionalString はJSONでフィールドが省略されたのか、nullや値が指定されたのかを区別する。
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON はフィールドが存在すればSetをtrueにする。
func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(bytes.TrimSpace(b)) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// Present はnullでも空文字列でもない値が指定されたかを返す。
func (o OptionalString) Present() bool {
	return o.Set && o.Value != nil && strings.TrimSpace(*o.Value) != ""
}

// ReplaceInput はウォッチリスト全置換の入力。
type ReplaceInput struct {
	Tickers    []TickerInput  `json:"tickers"`
	WebhookURL OptionalString `json:"webhook_url"`
}

// NormalizeTickers は入力を検証し、保存用の銘柄リストに変換する。
// 名前の既定値はシンボル、ステータスの既定値はActive。シンボルの重複は許さない。
func NormalizeTickers(in []TickerInput) ([]model.WatchlistTicker, error) {
	if len(in) > MaxTickers {
		return nil, model.NewValidationError(fmt.Sprintf("A watchlist can contain at most %d tickers", MaxTickers))
	}

	out := make([]model.WatchlistTicker, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		symbol := strings.TrimSpace(t.Symbol)
		if symbol == "" {
			return nil, model.NewValidationError("Ticker symbol is required")
		}
		if utf8.RuneCountInString(symbol) > MaxSymbolLength {
			return nil, model.NewValidationError(fmt.Sprintf("Ticker symbol must be at most %d characters: %s", MaxSymbolLength, symbol))
		}
		if _, dup := seen[symbol]; dup {
			return nil, model.NewValidationError(fmt.Sprintf("Duplicate ticker symbol: %s", symbol))
		}
		seen[symbol] = struct{}{}

		name := strings.TrimSpace(t.Name)
		if name == "" {
			name = symbol
		}
		if utf8.RuneCountInString(name) > MaxNameLength {
			return nil, model.NewValidationError(fmt.Sprintf("Ticker name must be at most %d characters", MaxNameLength))
		}

		status := model.TickerStatus(strings.TrimSpace(t.Status))
		switch status {
		case "":
			status = model.TickerStatusActive
		case model.TickerStatusActive, model.TickerStatusInactive:
		default:
			return nil, model.NewValidationError(fmt.Sprintf("Invalid ticker status: %s", t.Status))
		}

		out = append(out, model.WatchlistTicker{Symbol: symbol, Name: name, Status: status})
	}
	return out, nil
}
