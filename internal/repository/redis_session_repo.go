package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// セッション本体はTTL付きのキーに保存し、ユーザー単位の一括削除のため
// ユーザーごとのセッションID集合を併せて保持する。
type RedisSessionRepo struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(rdb *redis.Client) *RedisSessionRepo {
	return &RedisSessionRepo{rdb: rdb, now: time.Now}
}

type redisSession struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Create はセッションを保存する。TTLは有効期限までの残り時間とする。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("failed to create session: already expired")
	}

	payload, err := json.Marshal(redisSession{
		UserID:    session.UserID,
		Username:  session.Username,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	userKey := userSessionKeyPrefix + session.UserID
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKeyPrefix+session.ID, payload, ttl)
		pipe.SAdd(ctx, userKey, session.ID)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れまたは存在しない場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	raw, err := r.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var stored redisSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		// 壊れたレコードは改ざんと同様に未ログイン扱いとする
		return nil, nil
	}

	session := &model.Session{
		ID:        id,
		UserID:    stored.UserID,
		Username:  stored.Username,
		ExpiresAt: stored.ExpiresAt,
		CreatedAt: stored.CreatedAt,
	}
	if session.Expired(r.now()) {
		return nil, nil
	}
	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKeyPrefix+id)
		if session != nil {
			pipe.SRem(ctx, userSessionKeyPrefix+session.UserID, id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *RedisSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	userKey := userSessionKeyPrefix + userID
	ids, err := r.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}
	keys = append(keys, userKey)

	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired はRedisのTTLに任せるため何もしない。
func (r *RedisSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// Ping はRedisへの到達性を確認する。
func (r *RedisSessionRepo) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("session store unreachable: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
