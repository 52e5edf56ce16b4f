package model

import "time"

// TickerStatus はウォッチリスト銘柄の監視状態を表す。
type TickerStatus string

const (
	TickerStatusActive   TickerStatus = "Active"
	TickerStatusInactive TickerStatus = "Inactive"
)

// WatchlistTicker はウォッチリストの1銘柄を表す。
type WatchlistTicker struct {
	Symbol string       `json:"symbol"`
	Name   string       `json:"name"`
	Status TickerStatus `json:"status"`
}

// Watchlist はユーザーごとの監視銘柄リストとアラート用Webhookを表す。
// CreatedAt/UpdatedAtがnilの場合は未保存のプレースホルダーを意味する。
type Watchlist struct {
	UserID     string            `json:"user_id"`
	Tickers    []WatchlistTicker `json:"tickers"`
	WebhookURL *string           `json:"webhook_url"`
	CreatedAt  *time.Time        `json:"created_at"`
	UpdatedAt  *time.Time        `json:"updated_at"`

	// Revision は保存済みupdated_atの生の値。条件付き書き込みに使用する。
	Revision string `json:"-"`
	// Stored は永続化済みレコードが存在するかを示す。
	Stored bool `json:"-"`
}

// EmptyWatchlist は未作成ユーザー向けのプレースホルダーを返す。
func EmptyWatchlist(userID string) *Watchlist {
	return &Watchlist{
		UserID:  userID,
		Tickers: []WatchlistTicker{},
	}
}

// Symbols はウォッチリストのシンボルをリスト順で返す。
func (w *Watchlist) Symbols() []string {
	symbols := make([]string, len(w.Tickers))
	for i, t := range w.Tickers {
		symbols[i] = t.Symbol
	}
	return symbols
}
