// Package portfolio はユーザーのイベント一覧からダッシュボード用の集計値を計算する。
package portfolio

import (
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

const (
	// sentimentThreshold を超えるスコアはpositive、負側を下回るとnegativeに分類する。
	sentimentThreshold = 0.2
	// topTickerCount はtop_tickersの最大件数。
	topTickerCount = 10
	// activityDays はrecent_activityの日数。
	activityDays = 7

	dateLayout = "2006-01-02"
)

// Metrics はポートフォリオの集計結果。
type Metrics struct {
	TotalEvents           int                   `json:"total_events"`
	EventsByType          EventsByType          `json:"events_by_type"`
	EventsByStatus        EventsByStatus        `json:"events_by_status"`
	SentimentDistribution SentimentDistribution `json:"sentiment_distribution"`
	TopTickers            []TickerCount         `json:"top_tickers"`
	RecentActivity        []DailyCount          `json:"recent_activity"`
}

// EventsByType はevent_type別の件数。
type EventsByType struct {
	News      int `json:"NEWS"`
	SECFiling int `json:"SEC_FILING"`
}

// EventsByStatus はstatus別の件数。
type EventsByStatus struct {
	PendingAnalysis int `json:"PENDING_ANALYSIS"`
	Analyzed        int `json:"ANALYZED"`
	Failed          int `json:"FAILED"`
}

// SentimentDistribution はセンチメントスコアの分布。スコアのないイベントは含まない。
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// TickerCount は銘柄ごとのイベント件数。
type TickerCount struct {
	Ticker string `json:"ticker"`
	Count  int    `json:"count"`
}

// DailyCount は日付ごとのイベント件数。
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Aggregate はユーザーに認可済みのイベント一覧から集計値を計算する。
// 副作用を持たず、nowを基準にrecent_activityの7日間（UTC）を決める。
func Aggregate(events []*model.Event, now time.Time) Metrics {
	m := Metrics{
		TopTickers:     []TickerCount{},
		RecentActivity: recentDays(now),
	}

	dayIndex := make(map[string]int, len(m.RecentActivity))
	for i, d := range m.RecentActivity {
		dayIndex[d.Date] = i
	}

	tickerIndex := make(map[string]int)
	var tickers []TickerCount

	for _, e := range events {
		if e == nil {
			continue
		}
		m.TotalEvents++

		switch e.EventType {
		case model.EventTypeNews:
			m.EventsByType.News++
		case model.EventTypeSECFiling:
			m.EventsByType.SECFiling++
		}

		switch e.Status {
		case model.EventStatusPendingAnalysis:
			m.EventsByStatus.PendingAnalysis++
		case model.EventStatusAnalyzed:
			m.EventsByStatus.Analyzed++
		case model.EventStatusFailed:
			m.EventsByStatus.Failed++
		}

		if s := e.SentimentScore; s != nil {
			switch {
			case *s > sentimentThreshold:
				m.SentimentDistribution.Positive++
			case *s < -sentimentThreshold:
				m.SentimentDistribution.Negative++
			default:
				m.SentimentDistribution.Neutral++
			}
		}

		if e.Ticker != "" {
			if i, ok := tickerIndex[e.Ticker]; ok {
				tickers[i].Count++
			} else {
				tickerIndex[e.Ticker] = len(tickers)
				tickers = append(tickers, TickerCount{Ticker: e.Ticker, Count: 1})
			}
		}

		if i, ok := dayIndex[datePortion(e.Timestamp)]; ok {
			m.RecentActivity[i].Count++
		}
	}

	// 同数の場合は初出順を保つ
	sort.SliceStable(tickers, func(i, j int) bool {
		return tickers[i].Count > tickers[j].Count
	})
	if len(tickers) > topTickerCount {
		tickers = tickers[:topTickerCount]
	}
	if tickers != nil {
		m.TopTickers = tickers
	}

	return m
}

// recentDays はnowを含む直近7日間（UTC）を昇順で返す。
func recentDays(now time.Time) []DailyCount {
	today := now.UTC()
	days := make([]DailyCount, activityDays)
	for i := 0; i < activityDays; i++ {
		d := today.AddDate(0, 0, i-(activityDays-1))
		days[i] = DailyCount{Date: d.Format(dateLayout)}
	}
	return days
}

// datePortion はISO 8601タイムスタンプの日付部分を返す。タイムゾーン変換は行わない。
func datePortion(ts string) string {
	date, _, _ := strings.Cut(ts, "T")
	return date
}
