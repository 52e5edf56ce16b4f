package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

const (
	// batchGetLimit はBatchGetItem 1回あたりのキー上限。
	batchGetLimit = 100
	// defaultBatchConcurrency はBatchGetItemの同時実行数。
	defaultBatchConcurrency = 4
	// defaultUnprocessedRetries は未処理キーの最大再試行回数。
	defaultUnprocessedRetries = 5
)

// DynamoEventRepo はDynamoDBのeventsテーブルを使用するイベントリポジトリ。
type DynamoEventRepo struct {
	client DynamoAPI
	table  string

	// Concurrency はBatchGetItemチャンクの同時実行数。
	Concurrency int
	// MaxRetries はUnprocessedKeysの最大再試行回数。
	MaxRetries int
	// Backoff は再試行前の待機時間を返す。
	Backoff func(attempt int) time.Duration
	// OnRetry は未処理キーを再試行する直前に呼ばれる。nilでもよい。
	OnRetry func()
}

// NewDynamoEventRepo はDynamoEventRepoを生成する。
func NewDynamoEventRepo(client DynamoAPI, table string) *DynamoEventRepo {
	return &DynamoEventRepo{
		client:      client,
		table:       table,
		Concurrency: defaultBatchConcurrency,
		MaxRetries:  defaultUnprocessedRetries,
		Backoff:     CalculateBackoff,
	}
}

// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
func (r *DynamoEventRepo) FindByID(ctx context.Context, eventID string) (*model.Event, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       eventKey(eventID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var event model.Event
	if err := attributevalue.UnmarshalMap(out.Item, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return &event, nil
}

// BatchFindByIDs は複数IDのイベントを100件単位のチャンクに分けて並行取得する。
// 重複IDは1回だけ取得する。結果の順序は保証しない。
// いずれかのチャンクが失敗した場合、部分的な結果は返さずエラーを返す。
func (r *DynamoEventRepo) BatchFindByIDs(ctx context.Context, eventIDs []string) ([]*model.Event, error) {
	ids := uniqueStrings(eventIDs)
	if len(ids) == 0 {
		return []*model.Event{}, nil
	}

	chunks := chunkStrings(ids, batchGetLimit)
	results := make([][]*model.Event, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Concurrency, 1))
	for i, chunk := range chunks {
		g.Go(func() error {
			events, err := r.batchGetChunk(gctx, chunk)
			if err != nil {
				return err
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]*model.Event, 0, len(ids))
	for _, events := range results {
		merged = append(merged, events...)
	}
	return merged, nil
}

// batchGetChunk は100件以下のキーを取得する。
// UnprocessedKeysは指数バックオフで再試行し、上限を超えて残った場合はエラーとする。
func (r *DynamoEventRepo) batchGetChunk(ctx context.Context, ids []string) ([]*model.Event, error) {
	keys := make([]map[string]types.AttributeValue, len(ids))
	for i, id := range ids {
		keys[i] = eventKey(id)
	}
	request := map[string]types.KeysAndAttributes{
		r.table: {Keys: keys},
	}

	var events []*model.Event
	for attempt := 0; ; attempt++ {
		out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return nil, fmt.Errorf("failed to batch get events: %w", err)
		}

		var page []model.Event
		if err := attributevalue.UnmarshalListOfMaps(out.Responses[r.table], &page); err != nil {
			return nil, fmt.Errorf("failed to decode events: %w", err)
		}
		for i := range page {
			events = append(events, &page[i])
		}

		pending, ok := out.UnprocessedKeys[r.table]
		if !ok || len(pending.Keys) == 0 {
			return events, nil
		}
		if attempt >= r.MaxRetries {
			return nil, fmt.Errorf("failed to batch get events: %d keys left unprocessed after %d retries", len(pending.Keys), attempt)
		}
		if r.OnRetry != nil {
			r.OnRetry()
		}
		if err := sleepContext(ctx, r.Backoff(attempt)); err != nil {
			return nil, fmt.Errorf("failed to batch get events: %w", err)
		}
		request = map[string]types.KeysAndAttributes{r.table: pending}
	}
}

// Ping はeventsテーブルの到達性を確認する。
func (r *DynamoEventRepo) Ping(ctx context.Context) error {
	return pingTable(ctx, r.client, r.table)
}

// pingTable はテーブルに1件だけScanして到達性を確認する。
func pingTable(ctx context.Context, client DynamoAPI, table string) error {
	_, err := client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(table),
		Limit:     aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("table %s unreachable: %w", table, err)
	}
	return nil
}

func eventKey(eventID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"event_id": &types.AttributeValueMemberS{Value: eventID},
	}
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func chunkStrings(in []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(in); start += size {
		end := min(start+size, len(in))
		chunks = append(chunks, in[start:end])
	}
	return chunks
}

// compile-time interface check
var _ EventRepository = (*DynamoEventRepo)(nil)
