// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

// ErrDuplicateUsername はユーザー名の一意制約に違反した場合に返される。
var ErrDuplicateUsername = errors.New("username already exists")

// ErrWatchlistConflict はウォッチリストの条件付き書き込みが
// 他の書き込みと競合した場合に返される。
var ErrWatchlistConflict = errors.New("watchlist was modified concurrently")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error

	// ListAll は全ユーザーを作成日時の昇順で返す。
	ListAll(ctx context.Context) ([]*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// sessionsテーブルの関連レコードはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
	// Ping はストアへの到達性を確認する。
	Ping(ctx context.Context) error
}

// EventRepository はイベント本体の読み取りインターフェース。
type EventRepository interface {
	// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, eventID string) (*model.Event, error)

	// BatchFindByIDs は複数IDのイベントをまとめて取得する。
	// 存在しないIDは結果に含まれない。取得できなかったキーが残った場合はエラーを返す。
	BatchFindByIDs(ctx context.Context, eventIDs []string) ([]*model.Event, error)

	// Ping はテーブルへの到達性を確認する。
	Ping(ctx context.Context) error
}

// UserEventRepository はユーザーとイベントの認可ジャンクションの読み取りインターフェース。
type UserEventRepository interface {
	// Exists はユーザーがイベントの閲覧権限を持つかを返す。
	Exists(ctx context.Context, userID, eventID string) (bool, error)

	// ListEventIDs はユーザーが閲覧可能なイベントIDをジャンクションの格納順で返す。
	// tickerが空でない場合はその銘柄に絞り込む。
	ListEventIDs(ctx context.Context, userID, ticker string) ([]string, error)
}

// WatchlistRepository はウォッチリストの永続化インターフェース。
type WatchlistRepository interface {
	// FindByUserID は指定ユーザーのウォッチリストを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Watchlist, error)

	// Save はウォッチリストを書き込む。prevは直前に読み取った状態（未作成ならnil）で、
	// 書き込み時点の保存内容がprevと異なる場合はErrWatchlistConflictを返す。
	Save(ctx context.Context, watchlist *model.Watchlist, prev *model.Watchlist) error

	// DeleteByUserID は指定ユーザーのウォッチリストを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// DynamoAPI はリポジトリが使用するDynamoDBクライアントの操作を抽象化する。
// *dynamodb.Client が満たす。
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)
