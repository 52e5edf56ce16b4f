package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient はRedisクライアントを生成し、接続を確認する。
// 到達できない場合はクライアントを閉じてエラーを返す。
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis not reachable at %s: %w", addr, err)
	}
	return rdb, nil
}
