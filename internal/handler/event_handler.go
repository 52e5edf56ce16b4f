package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/portfolio-intel/internal/event"
	"github.com/hitoshi/portfolio-intel/internal/model"
)

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	// ListForUser はユーザーが閲覧可能なイベントを新しい順に返す。
	ListForUser(ctx context.Context, userID string, filter model.EventFilter, limit int) ([]*model.Event, error)
	// GetByID は閲覧権限を確認したうえでイベントを返す。
	GetByID(ctx context.Context, userID, eventID string) (*model.Event, error)
}

// EventHandler はイベント閲覧のHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface) *EventHandler {
	return &EventHandler{service: service}
}

// ListEvents はイベント一覧を返す。
// GET /api/events?ticker=XXX&status=ANALYZED&limit=100
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, err := event.ParseLimit(q.Get("limit"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filter := model.EventFilter{
		Ticker: strings.TrimSpace(q.Get("ticker")),
		Status: model.EventStatus(strings.TrimSpace(q.Get("status"))),
	}

	events, err := h.service.ListForUser(r.Context(), userID, filter, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if events == nil {
		events = []*model.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(events),
		"events":  events,
	})
}

// GetEvent はイベント詳細を返す。
// GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	e, err := h.service.GetByID(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"event":   e,
	})
}
