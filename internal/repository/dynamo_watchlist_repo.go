package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

// WatchlistTimeLayout はウォッチリストのタイムスタンプ保存形式（UTC、ミリ秒精度）。
const WatchlistTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// DynamoWatchlistRepo はDynamoDBのwatchlistsテーブルを使用するリポジトリ。
// パーティションキーはuser_id。
type DynamoWatchlistRepo struct {
	client DynamoAPI
	table  string
}

// NewDynamoWatchlistRepo はDynamoWatchlistRepoを生成する。
func NewDynamoWatchlistRepo(client DynamoAPI, table string) *DynamoWatchlistRepo {
	return &DynamoWatchlistRepo{client: client, table: table}
}

type watchlistItem struct {
	UserID     string         `dynamodbav:"user_id"`
	Tickers    []storedTicker `dynamodbav:"tickers"`
	WebhookURL *string        `dynamodbav:"webhook_url,omitempty"`
	CreatedAt  string         `dynamodbav:"created_at,omitempty"`
	UpdatedAt  string         `dynamodbav:"updated_at,omitempty"`
}

// storedTicker はtickers要素の保存形式。
// 旧形式の文字列要素も読み取り時にオブジェクト形式へ正規化する。
type storedTicker struct {
	Symbol string `dynamodbav:"symbol"`
	Name   string `dynamodbav:"name"`
	Status string `dynamodbav:"status"`
}

// UnmarshalDynamoDBAttributeValue は文字列形式とマップ形式の両方を受け付ける。
func (t *storedTicker) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		t.Symbol = v.Value
		t.Name = v.Value
		t.Status = string(model.TickerStatusActive)
		return nil
	case *types.AttributeValueMemberM:
		var raw struct {
			Symbol string `dynamodbav:"symbol"`
			Name   string `dynamodbav:"name"`
			Status string `dynamodbav:"status"`
		}
		if err := attributevalue.UnmarshalMap(v.Value, &raw); err != nil {
			return err
		}
		t.Symbol = raw.Symbol
		t.Name = raw.Name
		if t.Name == "" {
			t.Name = raw.Symbol
		}
		t.Status = raw.Status
		if t.Status == "" {
			t.Status = string(model.TickerStatusActive)
		}
		return nil
	default:
		return fmt.Errorf("unsupported ticker attribute type %T", av)
	}
}

// FindByUserID は指定ユーザーのウォッチリストを取得する。見つからない場合はnilを返す。
func (r *DynamoWatchlistRepo) FindByUserID(ctx context.Context, userID string) (*model.Watchlist, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            watchlistKey(userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item watchlistItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to decode watchlist: %w", err)
	}
	return item.toModel(), nil
}

// Save はウォッチリストを条件付きで書き込む。
// prevのupdated_atと保存内容が一致しない場合はErrWatchlistConflictを返す。
func (r *DynamoWatchlistRepo) Save(ctx context.Context, watchlist *model.Watchlist, prev *model.Watchlist) error {
	av, err := attributevalue.MarshalMap(fromModel(watchlist))
	if err != nil {
		return fmt.Errorf("failed to encode watchlist: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      av,
	}
	switch {
	case prev == nil || !prev.Stored:
		input.ConditionExpression = aws.String("attribute_not_exists(user_id)")
	case prev.Revision != "":
		input.ConditionExpression = aws.String("updated_at = :prev")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberS{Value: prev.Revision},
		}
	default:
		input.ConditionExpression = aws.String("attribute_exists(user_id) AND attribute_not_exists(updated_at)")
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrWatchlistConflict
		}
		return fmt.Errorf("failed to put watchlist: %w", err)
	}
	return nil
}

// Ping はwatchlistsテーブルの到達性を確認する。
func (r *DynamoWatchlistRepo) Ping(ctx context.Context) error {
	return pingTable(ctx, r.client, r.table)
}

// DeleteByUserID は指定ユーザーのウォッチリストを削除する。
func (r *DynamoWatchlistRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       watchlistKey(userID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete watchlist: %w", err)
	}
	return nil
}

func (item *watchlistItem) toModel() *model.Watchlist {
	wl := &model.Watchlist{
		UserID:     item.UserID,
		Tickers:    make([]model.WatchlistTicker, len(item.Tickers)),
		WebhookURL: item.WebhookURL,
		CreatedAt:  parseWatchlistTime(item.CreatedAt),
		UpdatedAt:  parseWatchlistTime(item.UpdatedAt),
		Revision:   item.UpdatedAt,
		Stored:     true,
	}
	for i, t := range item.Tickers {
		wl.Tickers[i] = model.WatchlistTicker{
			Symbol: t.Symbol,
			Name:   t.Name,
			Status: model.TickerStatus(t.Status),
		}
	}
	if wl.WebhookURL != nil && *wl.WebhookURL == "" {
		wl.WebhookURL = nil
	}
	return wl
}

func fromModel(wl *model.Watchlist) *watchlistItem {
	item := &watchlistItem{
		UserID:     wl.UserID,
		Tickers:    make([]storedTicker, len(wl.Tickers)),
		WebhookURL: wl.WebhookURL,
		CreatedAt:  formatWatchlistTime(wl.CreatedAt),
		UpdatedAt:  formatWatchlistTime(wl.UpdatedAt),
	}
	for i, t := range wl.Tickers {
		item.Tickers[i] = storedTicker{Symbol: t.Symbol, Name: t.Name, Status: string(t.Status)}
	}
	return item
}

func parseWatchlistTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func formatWatchlistTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(WatchlistTimeLayout)
}

func watchlistKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

// compile-time interface check
var _ WatchlistRepository = (*DynamoWatchlistRepo)(nil)
