package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// fakeDynamo はDynamoAPIのモック実装。未設定の操作はエラーを返す。
type fakeDynamo struct {
	mu    sync.Mutex
	calls map[string]int

	getItemFn      func(ctx context.Context, in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItemFn      func(ctx context.Context, in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	deleteItemFn   func(ctx context.Context, in *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	queryFn        func(ctx context.Context, in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	batchGetItemFn func(ctx context.Context, in *dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error)
	scanFn         func(ctx context.Context, in *dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
}

var errNotConfigured = errors.New("fake: operation not configured")

func (f *fakeDynamo) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

func (f *fakeDynamo) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.record("GetItem")
	if f.getItemFn == nil {
		return nil, errNotConfigured
	}
	return f.getItemFn(ctx, in)
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.record("PutItem")
	if f.putItemFn == nil {
		return nil, errNotConfigured
	}
	return f.putItemFn(ctx, in)
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.record("DeleteItem")
	if f.deleteItemFn == nil {
		return nil, errNotConfigured
	}
	return f.deleteItemFn(ctx, in)
}

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.record("Query")
	if f.queryFn == nil {
		return nil, errNotConfigured
	}
	return f.queryFn(ctx, in)
}

func (f *fakeDynamo) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.record("BatchGetItem")
	if f.batchGetItemFn == nil {
		return nil, errNotConfigured
	}
	return f.batchGetItemFn(ctx, in)
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.record("Scan")
	if f.scanFn == nil {
		return nil, errNotConfigured
	}
	return f.scanFn(ctx, in)
}

var _ DynamoAPI = (*fakeDynamo)(nil)
