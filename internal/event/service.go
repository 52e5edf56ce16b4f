// Package event はイベント閲覧のドメインロジックを提供する。
//
// イベントの閲覧可否はUserEventジャンクションのみで判定する。
// 認可判定やイベント本文はリクエストをまたいでキャッシュしない。
package event

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/portfolio-intel/internal/model"
	"github.com/hitoshi/portfolio-intel/internal/repository"
)

const (
	// DefaultLimit はlimit未指定時の最大返却件数。
	DefaultLimit = 100
	// MaxLimit はlimitに指定できる上限。
	MaxLimit = 1000
)

// Sanitizer はブラウザへ返す前にイベントのテキストを無害化する。
type Sanitizer interface {
	SanitizeEvent(e *model.Event)
}

// Service はイベントリポジトリのサービス層。
type Service struct {
	events     repository.EventRepository
	userEvents repository.UserEventRepository
	sanitizer  Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	events repository.EventRepository,
	userEvents repository.UserEventRepository,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		events:     events,
		userEvents: userEvents,
		sanitizer:  sanitizer,
	}
}

// ParseLimit はクエリパラメータのlimitを解釈する。
// 空文字列はDefaultLimit、整数でない値や1〜MaxLimitの範囲外はバリデーションエラーとなる。
func ParseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewValidationError("limit must be an integer")
	}
	if err := validateLimit(n); err != nil {
		return 0, err
	}
	return n, nil
}

func validateLimit(n int) error {
	if n < 1 || n > MaxLimit {
		return model.NewValidationError(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	return nil
}

// GetByID はユーザーが閲覧権限を持つイベントを返す。
// ジャンクションに行がなければイベントの有無に関わらずFORBIDDEN、
// 行があってイベント本文がなければEVENT_NOT_FOUNDを返す。
func (s *Service) GetByID(ctx context.Context, userID, eventID string) (*model.Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, model.NewValidationError("event id is required")
	}

	allowed, err := s.userEvents.Exists(ctx, userID, eventID)
	if err != nil {
		return nil, storeFailure(ctx, "check_user_event", userID, err)
	}
	if !allowed {
		return nil, model.NewForbiddenError()
	}

	e, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, storeFailure(ctx, "get_event", userID, err)
	}
	if e == nil {
		slog.WarnContext(ctx, "user event references missing event",
			slog.String("user_id", userID),
			slog.String("event_id", eventID),
		)
		return nil, model.NewEventNotFoundError(eventID)
	}

	s.sanitize(e)
	return e, nil
}

// ListForUser はユーザーが閲覧権限を持つイベントをtimestamp降順で最大limit件返す。
// 同時刻のイベントはジャンクションの並び順を保つ。
func (s *Service) ListForUser(ctx context.Context, userID string, filter model.EventFilter, limit int) ([]*model.Event, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	events, err := s.collect(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// AllForUser はユーザーが閲覧権限を持つ全イベントを返す。ポートフォリオ集計に使う。
func (s *Service) AllForUser(ctx context.Context, userID string) ([]*model.Event, error) {
	return s.collect(ctx, userID, model.EventFilter{})
}

// collect はジャンクション検索、一括取得、ステータス絞り込み、並べ替えを行う。
func (s *Service) collect(ctx context.Context, userID string, filter model.EventFilter) ([]*model.Event, error) {
	if filter.Status != "" && !model.ValidEventStatus(string(filter.Status)) {
		return nil, model.NewValidationError(fmt.Sprintf("Invalid status: %s", filter.Status))
	}

	ids, err := s.userEvents.ListEventIDs(ctx, userID, strings.TrimSpace(filter.Ticker))
	if err != nil {
		return nil, storeFailure(ctx, "list_user_events", userID, err)
	}
	if len(ids) == 0 {
		return []*model.Event{}, nil
	}

	fetched, err := s.events.BatchFindByIDs(ctx, ids)
	if err != nil {
		return nil, storeFailure(ctx, "batch_get_events", userID, err)
	}

	position := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, ok := position[id]; !ok {
			position[id] = i
		}
	}

	events := make([]*model.Event, 0, len(fetched))
	for _, e := range fetched {
		if e == nil {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		events = append(events, e)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if c := compareTimestamps(events[i].Timestamp, events[j].Timestamp); c != 0 {
			return c > 0
		}
		return position[events[i].EventID] < position[events[j].EventID]
	})

	for _, e := range events {
		s.sanitize(e)
	}
	return events, nil
}

func (s *Service) sanitize(e *model.Event) {
	if s.sanitizer != nil {
		s.sanitizer.SanitizeEvent(e)
	}
}

// compareTimestamps はISO 8601のタイムスタンプを比較する。
// どちらかが解釈できない場合は文字列として比較する。
func compareTimestamps(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return ta.Compare(tb)
}

// storeFailure はストアエラーをログに残し、利用者向けのAPIErrorに変換する。
func storeFailure(ctx context.Context, op, userID string, err error) error {
	slog.ErrorContext(ctx, "event store operation failed",
		slog.String("operation", op),
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
	return model.FromStoreError(err)
}
