package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
)

// Page is the uniform result of one scan or query page. Absence of NextCursor
// is the sole signal that pagination is complete; a page can be smaller than
// the limit while more pages remain.
type Page struct {
	Items        []Item `json:"items"`
	NextCursor   Item   `json:"nextCursor,omitempty"`
	Count        int64  `json:"count"`
	ScannedCount int64  `json:"scannedCount,omitempty"`
}

// ScanParams configures one scan page. Cursor carries the NextCursor of the
// previous page; nil starts from the beginning.
type ScanParams struct {
	Table            string
	Filter           string
	AttributeNames   map[string]string
	AttributeValues  Item
	Projection       string
	Limit            int64
	Cursor           Item
}

// QueryParams configures one query page.
type QueryParams struct {
	Table           string
	KeyCondition    string
	Filter          string
	AttributeNames  map[string]string
	AttributeValues Item
	IndexName       string
	Limit           int64
	Cursor          Item
	// Forward controls index order; nil keeps the store default (ascending).
	Forward *bool
}

func marshalCursor(cursor Item) (map[string]*dynamodb.AttributeValue, error) {
	if len(cursor) == 0 {
		return nil, nil
	}
	key, err := dynamodbattribute.MarshalMap(cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cursor: %w", err)
	}
	return key, nil
}

func unmarshalCursor(key map[string]*dynamodb.AttributeValue) (Item, error) {
	if len(key) == 0 {
		return nil, nil
	}
	var cursor Item
	if err := dynamodbattribute.UnmarshalMap(key, &cursor); err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}
	return cursor, nil
}

func unmarshalItems(raw []map[string]*dynamodb.AttributeValue) ([]Item, error) {
	items := make([]Item, 0, len(raw))
	for _, av := range raw {
		var item Item
		if err := dynamodbattribute.UnmarshalMap(av, &item); err != nil {
			return nil, fmt.Errorf("failed to decode item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func marshalValues(values Item) (map[string]*dynamodb.AttributeValue, error) {
	if len(values) == 0 {
		return nil, nil
	}
	av, err := dynamodbattribute.MarshalMap(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode expression values: %w", err)
	}
	return av, nil
}

// Scan fetches one page of a table scan.
func (s *Service) Scan(ctx context.Context, params ScanParams) (*Page, error) {
	startKey, err := marshalCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	values, err := marshalValues(params.AttributeValues)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(params.Table),
		ExclusiveStartKey:         startKey,
		ExpressionAttributeValues: values,
	}
	if params.Filter != "" {
		input.FilterExpression = aws.String(params.Filter)
	}
	if len(params.AttributeNames) > 0 {
		input.ExpressionAttributeNames = aws.StringMap(params.AttributeNames)
	}
	if params.Projection != "" {
		input.ProjectionExpression = aws.String(params.Projection)
	}
	if params.Limit > 0 {
		input.Limit = aws.Int64(params.Limit)
	}

	resp, err := s.api.ScanWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to scan table %v: %w", params.Table, err)
	}

	items, err := unmarshalItems(resp.Items)
	if err != nil {
		return nil, err
	}
	cursor, err := unmarshalCursor(resp.LastEvaluatedKey)
	if err != nil {
		return nil, err
	}

	return &Page{
		Items:        items,
		NextCursor:   cursor,
		Count:        aws.Int64Value(resp.Count),
		ScannedCount: aws.Int64Value(resp.ScannedCount),
	}, nil
}

// Query fetches one page of a key-condition query.
func (s *Service) Query(ctx context.Context, params QueryParams) (*Page, error) {
	if params.KeyCondition == "" {
		return nil, fmt.Errorf("key condition is required")
	}

	startKey, err := marshalCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	values, err := marshalValues(params.AttributeValues)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(params.Table),
		KeyConditionExpression:    aws.String(params.KeyCondition),
		ExclusiveStartKey:         startKey,
		ExpressionAttributeValues: values,
	}
	if params.Filter != "" {
		input.FilterExpression = aws.String(params.Filter)
	}
	if len(params.AttributeNames) > 0 {
		input.ExpressionAttributeNames = aws.StringMap(params.AttributeNames)
	}
	if params.IndexName != "" {
		input.IndexName = aws.String(params.IndexName)
	}
	if params.Limit > 0 {
		input.Limit = aws.Int64(params.Limit)
	}
	if params.Forward != nil {
		input.ScanIndexForward = params.Forward
	}

	resp, err := s.api.QueryWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %v: %w", params.Table, err)
	}

	items, err := unmarshalItems(resp.Items)
	if err != nil {
		return nil, err
	}
	cursor, err := unmarshalCursor(resp.LastEvaluatedKey)
	if err != nil {
		return nil, err
	}

	return &Page{
		Items:      items,
		NextCursor: cursor,
		Count:      aws.Int64Value(resp.Count),
	}, nil
}
