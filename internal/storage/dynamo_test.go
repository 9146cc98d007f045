package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in a map keyed by the "key" attribute.
type fakeDynamo struct {
	mu     sync.Mutex
	items  map[string]map[string]types.AttributeValue
	puts   []*dynamodb.PutItemInput
	getErr error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(key map[string]types.AttributeValue) string {
	if s, ok := key["key"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoStore(t *testing.T) {
	store, err := NewDynamoStore(newFakeDynamo(), "sessions", 0)
	require.NoError(t, err)
	exerciseKV(t, store)
}

func TestDynamoStore_TTL(t *testing.T) {
	fake := newFakeDynamo()
	store, err := NewDynamoStore(fake, "sessions", time.Hour)
	require.NoError(t, err)
	now := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", "v"))
	exp, ok := fake.puts[0].Item["expiresAt"].(*types.AttributeValueMemberN)
	require.True(t, ok, "expected numeric expiresAt")
	assert.NotEmpty(t, exp.Value)

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(2 * time.Hour)
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "expired items are treated as absent")
}

func TestDynamoStore_Errors(t *testing.T) {
	_, err := NewDynamoStore(nil, "sessions", 0)
	assert.Error(t, err)
	_, err = NewDynamoStore(newFakeDynamo(), "", 0)
	assert.Error(t, err)

	fake := newFakeDynamo()
	fake.getErr = errors.New("throttled")
	store, err := NewDynamoStore(fake, "sessions", 0)
	require.NoError(t, err)
	_, _, err = store.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "throttled")
}
