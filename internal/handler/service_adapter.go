package handler

import (
	"context"
	"time"

	"github.com/hitoshi/portfolio-intel/internal/auth"
	"github.com/hitoshi/portfolio-intel/internal/event"
	"github.com/hitoshi/portfolio-intel/internal/model"
	"github.com/hitoshi/portfolio-intel/internal/notify"
	"github.com/hitoshi/portfolio-intel/internal/portfolio"
	"github.com/hitoshi/portfolio-intel/internal/user"
	"github.com/hitoshi/portfolio-intel/internal/watchlist"
)

// EventSource はポートフォリオ集計の入力となるイベントの取得インターフェース。
type EventSource interface {
	AllForUser(ctx context.Context, userID string) ([]*model.Event, error)
}

// PortfolioServiceAdapter はイベント取得と集計を組み合わせて PortfolioServiceInterface に適合させるアダプタ。
type PortfolioServiceAdapter struct {
	events EventSource
	now    func() time.Time
}

// NewPortfolioServiceAdapter はPortfolioServiceAdapterを生成する。
func NewPortfolioServiceAdapter(events EventSource) *PortfolioServiceAdapter {
	return &PortfolioServiceAdapter{events: events, now: time.Now}
}

// Metrics はユーザーの全イベントを取得し、現在時刻を基準に集計する。
func (a *PortfolioServiceAdapter) Metrics(ctx context.Context, userID string) (*portfolio.Metrics, error) {
	events, err := a.events.AllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	m := portfolio.Aggregate(events, a.now())
	return &m, nil
}

// --- compile-time interface checks ---

var _ AuthServiceInterface = (*auth.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
var _ EventServiceInterface = (*event.Service)(nil)
var _ EventSource = (*event.Service)(nil)
var _ WatchlistServiceInterface = (*watchlist.Service)(nil)
var _ WebhookTester = (*notify.Tester)(nil)
var _ PortfolioServiceInterface = (*PortfolioServiceAdapter)(nil)
