package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

// MemorySessionRepo はプロセス内マップを使用するセッションリポジトリ。
// 単一インスタンス運用専用で、プロセス終了とともに全セッションが失われる。
type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	now      func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]model.Session),
		now:      time.Now,
	}
}

// Create はセッションを保存する。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合は削除してnilを返す。
func (r *MemorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	if s.Expired(r.now()) {
		delete(r.sessions, id)
		return nil, nil
	}
	return &s, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *MemorySessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除する。
func (r *MemorySessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// Ping は常に成功する。
func (r *MemorySessionRepo) Ping(_ context.Context) error {
	return nil
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)
