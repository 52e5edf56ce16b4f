package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

// DynamoUserEventRepo はDynamoDBのuser-eventsジャンクションテーブルを使用するリポジトリ。
// パーティションキーはuser_id、ソートキーはevent_id。
type DynamoUserEventRepo struct {
	client DynamoAPI
	table  string
}

// NewDynamoUserEventRepo はDynamoUserEventRepoを生成する。
func NewDynamoUserEventRepo(client DynamoAPI, table string) *DynamoUserEventRepo {
	return &DynamoUserEventRepo{client: client, table: table}
}

// Ping はuser-eventsテーブルの到達性を確認する。
func (r *DynamoUserEventRepo) Ping(ctx context.Context) error {
	return pingTable(ctx, r.client, r.table)
}

// Exists はジャンクションレコードの有無を返す。
func (r *DynamoUserEventRepo) Exists(ctx context.Context, userID, eventID string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"user_id":  &types.AttributeValueMemberS{Value: userID},
			"event_id": &types.AttributeValueMemberS{Value: eventID},
		},
		ProjectionExpression: aws.String("event_id"),
	})
	if err != nil {
		return false, fmt.Errorf("failed to get user event: %w", err)
	}
	return out.Item != nil, nil
}

// ListEventIDs はユーザーが閲覧可能なイベントIDを全ページ分取得する。
func (r *DynamoUserEventRepo) ListEventIDs(ctx context.Context, userID, ticker string) ([]string, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	}
	if ticker != "" {
		input.FilterExpression = aws.String("ticker = :ticker")
		input.ExpressionAttributeValues[":ticker"] = &types.AttributeValueMemberS{Value: ticker}
	}

	ids := []string{}
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query user events: %w", err)
		}

		var rows []model.UserEvent
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode user events: %w", err)
		}
		for _, row := range rows {
			ids = append(ids, row.EventID)
		}
	}
	return ids, nil
}

// compile-time interface check
var _ UserEventRepository = (*DynamoUserEventRepo)(nil)
