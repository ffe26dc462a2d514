package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"golang.org/x/sync/errgroup"
)

// PutItem inserts or replaces a document-style item.
func (s *Service) PutItem(ctx context.Context, tableName string, item Item) error {
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	_, err = s.api.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put item into %v: %w", tableName, err)
	}
	return nil
}

// PutItemNative inserts or replaces an item already expressed in the wire
// attribute-value format, bypassing document conversion.
func (s *Service) PutItemNative(ctx context.Context, tableName string, item map[string]*dynamodb.AttributeValue) error {
	_, err := s.api.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put native item into %v: %w", tableName, err)
	}
	return nil
}

// UpdateItem applies an update expression to the item with the given key and
// returns the item's new state.
func (s *Service) UpdateItem(ctx context.Context, tableName string, key Item, updateExpression string, names map[string]string, values Item) (Item, error) {
	keyAV, err := dynamodbattribute.MarshalMap(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key: %w", err)
	}
	valuesAV, err := marshalValues(values)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       keyAV,
		UpdateExpression:          aws.String(updateExpression),
		ExpressionAttributeValues: valuesAV,
		ReturnValues:              aws.String(dynamodb.ReturnValueAllNew),
	}
	if len(names) > 0 {
		input.ExpressionAttributeNames = aws.StringMap(names)
	}

	resp, err := s.api.UpdateItemWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to update item in %v: %w", tableName, err)
	}

	var updated Item
	if err := dynamodbattribute.UnmarshalMap(resp.Attributes, &updated); err != nil {
		return nil, fmt.Errorf("failed to decode updated item: %w", err)
	}
	return updated, nil
}

// DeleteItem removes the item with the given key and returns its prior state,
// if any.
func (s *Service) DeleteItem(ctx context.Context, tableName string, key Item) (Item, error) {
	keyAV, err := dynamodbattribute.MarshalMap(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key: %w", err)
	}

	resp, err := s.api.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(tableName),
		Key:          keyAV,
		ReturnValues: aws.String(dynamodb.ReturnValueAllOld),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete item from %v: %w", tableName, err)
	}

	if len(resp.Attributes) == 0 {
		return nil, nil
	}
	var old Item
	if err := dynamodbattribute.UnmarshalMap(resp.Attributes, &old); err != nil {
		return nil, fmt.Errorf("failed to decode deleted item: %w", err)
	}
	return old, nil
}

// batchGetChunkSize is the store's per-request ceiling for BatchGetItem keys.
const batchGetChunkSize = 100

// BatchGetItems fetches the items for the given keys, chunking to the store's
// per-request ceiling and fetching chunks concurrently. Result order is not
// guaranteed.
func (s *Service) BatchGetItems(ctx context.Context, tableName string, keys []Item) ([]Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		items []Item
	)

	group, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(keys); start += batchGetChunkSize {
		end := start + batchGetChunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		group.Go(func() error {
			got, err := s.batchGetChunk(ctx, tableName, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			items = append(items, got...)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) batchGetChunk(ctx context.Context, tableName string, keys []Item) ([]Item, error) {
	keysAV := make([]map[string]*dynamodb.AttributeValue, 0, len(keys))
	for _, key := range keys {
		av, err := dynamodbattribute.MarshalMap(key)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key: %w", err)
		}
		keysAV = append(keysAV, av)
	}

	var items []Item
	pending := map[string]*dynamodb.KeysAndAttributes{
		tableName: {Keys: keysAV},
	}

	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := s.api.BatchGetItemWithContext(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to batch get from %v: %w", tableName, err)
		}

		got, err := unmarshalItems(resp.Responses[tableName])
		if err != nil {
			return nil, err
		}
		items = append(items, got...)

		unprocessed, ok := resp.UnprocessedKeys[tableName]
		if !ok || len(unprocessed.Keys) == 0 {
			return items, nil
		}
		pending = resp.UnprocessedKeys

		backoff := time.Duration(1<<attempt) * 100 * time.Millisecond
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("batch get interrupted: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("failed to batch get from %v: unprocessed keys remained after %d attempts", tableName, maxAttempts)
}
