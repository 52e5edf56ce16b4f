// Package watchlist はウォッチリストのドメインロジックを提供する。
//
// 書き込みは直前に読んだupdated_atを条件とする条件付き書き込みで行い、
// 競合した場合は読み直して再試行する。
package watchlist

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/portfolio-intel/internal/model"
	"github.com/hitoshi/portfolio-intel/internal/notify"
	"github.com/hitoshi/portfolio-intel/internal/pipeline"
	"github.com/hitoshi/portfolio-intel/internal/repository"
)

// DefaultMaxAttempts は条件付き書き込みの最大試行回数。
const DefaultMaxAttempts = 3

// Service はウォッチリストのサービス層。
type Service struct {
	repo          repository.WatchlistRepository
	dispatcher    pipeline.SignalDispatcher
	webhookPrefix string
	maxAttempts   int
	now           func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// webhookPrefixが空の場合はSlackのプレフィックスを使う。
func NewService(
	repo repository.WatchlistRepository,
	dispatcher pipeline.SignalDispatcher,
	webhookPrefix string,
) *Service {
	if webhookPrefix == "" {
		webhookPrefix = notify.DefaultPrefix
	}
	return &Service{
		repo:          repo,
		dispatcher:    dispatcher,
		webhookPrefix: webhookPrefix,
		maxAttempts:   DefaultMaxAttempts,
		now:           time.Now,
	}
}

// Get はユーザーのウォッチリストを返す。
// 未作成の場合は空のプレースホルダー（created_at/updated_atはnull）を返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.Watchlist, error) {
	wl, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, storeFailure(ctx, "get_watchlist", userID, err)
	}
	if wl == nil {
		return model.EmptyWatchlist(userID), nil
	}
	return wl, nil
}

// Replace はウォッチリストの銘柄リストを全置換する。
// webhook_urlは省略時に現在値を保持し、nullまたは空文字列で削除する。
// 追加された銘柄があれば検出パイプラインへ銘柄登録シグナルを非同期に送る。
func (s *Service) Replace(ctx context.Context, userID string, in ReplaceInput) (*model.Watchlist, error) {
	tickers, err := NormalizeTickers(in.Tickers)
	if err != nil {
		return nil, err
	}
	if in.WebhookURL.Present() {
		if err := notify.ValidateWebhookURL(*in.WebhookURL.Value, s.webhookPrefix); err != nil {
			return nil, err
		}
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		prev, err := s.repo.FindByUserID(ctx, userID)
		if err != nil {
			return nil, storeFailure(ctx, "get_watchlist", userID, err)
		}

		next := s.build(userID, tickers, in.WebhookURL, prev)
		err = s.repo.Save(ctx, next, prev)
		if errors.Is(err, repository.ErrWatchlistConflict) {
			slog.WarnContext(ctx, "ウォッチリストの同時更新を検出しました。再試行します",
				slog.String("user_id", userID),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, storeFailure(ctx, "save_watchlist", userID, err)
		}

		next.Stored = true
		next.Revision = next.UpdatedAt.UTC().Format(repository.WatchlistTimeLayout)

		var oldSymbols []string
		if prev != nil {
			oldSymbols = prev.Symbols()
		}
		added, removed := Diff(oldSymbols, next.Symbols())
		slog.InfoContext(ctx, "ウォッチリストを更新しました",
			slog.String("user_id", userID),
			slog.Int("ticker_count", len(next.Tickers)),
			slog.Int("added_count", len(added)),
			slog.Int("removed_count", len(removed)),
		)
		if len(added) > 0 && s.dispatcher != nil {
			s.dispatcher.Dispatch(pipeline.Signal{
				UserID:      userID,
				Added:       added,
				Removed:     removed,
				RequestedAt: *next.UpdatedAt,
			})
		}
		return next, nil
	}

	slog.ErrorContext(ctx, "ウォッチリストの同時更新が解消しませんでした",
		slog.String("user_id", userID),
		slog.Int("attempts", s.maxAttempts),
	)
	return nil, model.NewWatchlistConflictError()
}

// build は直前の状態から次に保存するウォッチリストを組み立てる。
// created_atは保持し、updated_atは直前の値より必ず後になるようにする。
func (s *Service) build(userID string, tickers []model.WatchlistTicker, webhook OptionalString, prev *model.Watchlist) *model.Watchlist {
	now := s.now().UTC().Truncate(time.Millisecond)
	if prev != nil && prev.UpdatedAt != nil && !now.After(*prev.UpdatedAt) {
		now = prev.UpdatedAt.Add(time.Millisecond)
	}

	next := &model.Watchlist{
		UserID:  userID,
		Tickers: tickers,
	}
	createdAt := now
	if prev != nil {
		if prev.CreatedAt != nil {
			createdAt = *prev.CreatedAt
		}
		next.WebhookURL = prev.WebhookURL
	}
	next.CreatedAt = &createdAt
	next.UpdatedAt = &now

	if webhook.Set {
		next.WebhookURL = nil
		if webhook.Present() {
			v := strings.TrimSpace(*webhook.Value)
			next.WebhookURL = &v
		}
	}
	return next
}

// Initialize はサインアップ時に空のウォッチリストを作成する。
// 既に存在する場合は何もしない。
func (s *Service) Initialize(ctx context.Context, userID string) error {
	now := s.now().UTC().Truncate(time.Millisecond)
	wl := &model.Watchlist{
		UserID:    userID,
		Tickers:   []model.WatchlistTicker{},
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	err := s.repo.Save(ctx, wl, nil)
	if errors.Is(err, repository.ErrWatchlistConflict) {
		return nil
	}
	if err != nil {
		return storeFailure(ctx, "initialize_watchlist", userID, err)
	}
	return nil
}

// Delete はユーザーのウォッチリストを削除する。退会処理から呼ばれる。
func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		return storeFailure(ctx, "delete_watchlist", userID, err)
	}
	return nil
}

// storeFailure はストアエラーをログに残し、利用者向けのAPIErrorに変換する。
func storeFailure(ctx context.Context, op, userID string, err error) error {
	slog.ErrorContext(ctx, "watchlist store operation failed",
		slog.String("operation", op),
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
	return model.FromStoreError(err)
}
