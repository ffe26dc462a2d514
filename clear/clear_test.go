package clear

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/rs/zerolog"
	assert "github.com/stretchr/testify/require"

	"github.com/tabledock/tabledock/conn"
	"github.com/tabledock/tabledock/registry"
	"github.com/tabledock/tabledock/store"
)

type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI

	mu sync.Mutex

	desc        *dynamodb.TableDescription
	describeErr error

	pages     []*dynamodb.ScanOutput
	scanCalls []*dynamodb.ScanInput

	deleteErr func(key map[string]*dynamodb.AttributeValue) error
	deleted   []map[string]*dynamodb.AttributeValue
}

func (f *fakeDynamo) DescribeTableWithContext(_ aws.Context, input *dynamodb.DescribeTableInput, _ ...request.Option) (*dynamodb.DescribeTableOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &dynamodb.DescribeTableOutput{Table: f.desc}, nil
}

func (f *fakeDynamo) ScanWithContext(_ aws.Context, input *dynamodb.ScanInput, _ ...request.Option) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scanCalls = append(f.scanCalls, input)
	if len(f.scanCalls) > len(f.pages) {
		return &dynamodb.ScanOutput{Count: aws.Int64(0)}, nil
	}
	return f.pages[len(f.scanCalls)-1], nil
}

func (f *fakeDynamo) DeleteItemWithContext(_ aws.Context, input *dynamodb.DeleteItemInput, _ ...request.Option) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		if err := f.deleteErr(input.Key); err != nil {
			return nil, err
		}
	}
	f.deleted = append(f.deleted, input.Key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func hashOnlyDesc() *dynamodb.TableDescription {
	return &dynamodb.TableDescription{
		TableName: aws.String("users"),
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: aws.String(dynamodb.KeyTypeHash)},
		},
	}
}

func compositeDesc() *dynamodb.TableDescription {
	return &dynamodb.TableDescription{
		TableName: aws.String("events"),
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: aws.String(dynamodb.KeyTypeHash)},
			{AttributeName: aws.String("sk"), KeyType: aws.String(dynamodb.KeyTypeRange)},
		},
	}
}

func scanPage(ids []string, more bool) *dynamodb.ScanOutput {
	out := &dynamodb.ScanOutput{
		Count:        aws.Int64(int64(len(ids))),
		ScannedCount: aws.Int64(int64(len(ids))),
	}
	for _, id := range ids {
		out.Items = append(out.Items, map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(id)},
		})
	}
	if more && len(ids) > 0 {
		out.LastEvaluatedKey = map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(ids[len(ids)-1])},
		}
	}
	return out
}

func ids(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("item-%d", i))
	}
	return out
}

func newTestEngine(t *testing.T, fake *fakeDynamo) (*Engine, *registry.Registry) {
	t.Helper()

	reg := registry.New(zerolog.Nop(), time.Hour, time.Hour)
	t.Cleanup(reg.Stop)
	reg.Register("conn-1", conn.Connection{ID: "conn-1", Name: "local", Region: "us-east-1"})

	e := New(reg, func(c conn.Connection) (*store.Service, error) {
		return store.NewWithAPI(fake, c), nil
	})
	e.pause = 0
	return e, reg
}

func TestRunClearsSinglePage(t *testing.T) {
	fake := &fakeDynamo{
		desc:  hashOnlyDesc(),
		pages: []*dynamodb.ScanOutput{scanPage(ids(30), false)},
	}
	e, _ := newTestEngine(t, fake)

	report, err := e.Run(context.Background(), "conn-1", "users")
	assert.NoError(t, err)
	assert.Equal(t, 30, report.DeletedCount)
	assert.Equal(t, 30, report.TotalScanned)
	assert.Empty(t, report.Errors)
	assert.Equal(t, "deleted 30 of 30 records from table users", report.Message)
	assert.Len(t, fake.deleted, 30)

	// key-only projection, sized to the page
	assert.Equal(t, "id", aws.StringValue(fake.scanCalls[0].ProjectionExpression))
	assert.EqualValues(t, 100, aws.Int64Value(fake.scanCalls[0].Limit))
}

func TestRunFollowsCursorAcrossPages(t *testing.T) {
	fake := &fakeDynamo{
		desc: hashOnlyDesc(),
		pages: []*dynamodb.ScanOutput{
			scanPage([]string{"a", "b"}, true),
			scanPage([]string{"c", "d"}, true),
			scanPage([]string{"e"}, false),
		},
	}
	e, _ := newTestEngine(t, fake)

	report, err := e.Run(context.Background(), "conn-1", "users")
	assert.NoError(t, err)
	assert.Equal(t, 5, report.DeletedCount)
	assert.Equal(t, 5, report.TotalScanned)

	// absence of the cursor, not page size, ends the loop
	assert.Len(t, fake.scanCalls, 3)
	assert.Nil(t, fake.scanCalls[0].ExclusiveStartKey)
	assert.Equal(t, "b", aws.StringValue(fake.scanCalls[1].ExclusiveStartKey["id"].S))
	assert.Equal(t, "d", aws.StringValue(fake.scanCalls[2].ExclusiveStartKey["id"].S))
}

func TestRunEmptyTable(t *testing.T) {
	fake := &fakeDynamo{
		desc:  hashOnlyDesc(),
		pages: []*dynamodb.ScanOutput{scanPage(nil, false)},
	}
	e, _ := newTestEngine(t, fake)

	report, err := e.Run(context.Background(), "conn-1", "users")
	assert.NoError(t, err)
	assert.Equal(t, 0, report.DeletedCount)
	assert.Equal(t, 0, report.TotalScanned)
	assert.Equal(t, "deleted 0 of 0 records from table users", report.Message)
	assert.Len(t, fake.scanCalls, 1)
	assert.Empty(t, fake.deleted)
}

func TestRunAggregatesItemFailures(t *testing.T) {
	fake := &fakeDynamo{
		desc:  hashOnlyDesc(),
		pages: []*dynamodb.ScanOutput{scanPage(ids(30), false)},
	}
	fake.deleteErr = func(key map[string]*dynamodb.AttributeValue) error {
		if aws.StringValue(key["id"].S) == "item-7" {
			return awserr.New("ConditionalCheckFailedException", "item vanished", nil)
		}
		return nil
	}
	e, _ := newTestEngine(t, fake)

	report, err := e.Run(context.Background(), "conn-1", "users")
	assert.NoError(t, err)
	assert.Equal(t, 29, report.DeletedCount)
	assert.Equal(t, 30, report.TotalScanned)
	assert.Len(t, report.Errors, 1)
	assert.Equal(t, "item-7", report.Errors[0].Key)
	assert.Contains(t, report.Errors[0].Error, "item vanished")
	assert.Equal(t, "deleted 29 of 30 records from table users", report.Message)
}

func TestRunCompositeKey(t *testing.T) {
	fake := &fakeDynamo{
		desc: compositeDesc(),
		pages: []*dynamodb.ScanOutput{
			{
				Count: aws.Int64(1),
				Items: []map[string]*dynamodb.AttributeValue{
					{"pk": {S: aws.String("order-1")}, "sk": {S: aws.String("line-2")}},
				},
			},
		},
	}
	fake.deleteErr = func(map[string]*dynamodb.AttributeValue) error {
		return awserr.New("InternalServerError", "boom", nil)
	}
	e, _ := newTestEngine(t, fake)

	report, err := e.Run(context.Background(), "conn-1", "events")
	assert.NoError(t, err)
	assert.Equal(t, 0, report.DeletedCount)
	assert.Len(t, report.Errors, 1)

	// failures on composite tables are keyed by hash#range
	assert.Equal(t, "order-1#line-2", report.Errors[0].Key)
	assert.Equal(t, "pk, sk", aws.StringValue(fake.scanCalls[0].ProjectionExpression))
}

func TestRunCompositeKeySendsBothAttributes(t *testing.T) {
	fake := &fakeDynamo{
		desc: compositeDesc(),
		pages: []*dynamodb.ScanOutput{
			{
				Count: aws.Int64(1),
				Items: []map[string]*dynamodb.AttributeValue{
					{"pk": {S: aws.String("order-1")}, "sk": {S: aws.String("line-2")}},
				},
			},
		},
	}
	e, _ := newTestEngine(t, fake)

	_, err := e.Run(context.Background(), "conn-1", "events")
	assert.NoError(t, err)
	assert.Len(t, fake.deleted, 1)
	assert.Equal(t, "order-1", aws.StringValue(fake.deleted[0]["pk"].S))
	assert.Equal(t, "line-2", aws.StringValue(fake.deleted[0]["sk"].S))
}

func TestRunValidation(t *testing.T) {
	fake := &fakeDynamo{desc: hashOnlyDesc()}
	e, _ := newTestEngine(t, fake)

	t.Run("missing connection id", func(t *testing.T) {
		_, err := e.Run(context.Background(), "", "users")
		assert.ErrorIs(t, err, ErrMissingParameter)
	})

	t.Run("missing table name", func(t *testing.T) {
		_, err := e.Run(context.Background(), "conn-1", "")
		assert.ErrorIs(t, err, ErrMissingParameter)
	})

	t.Run("unknown connection", func(t *testing.T) {
		_, err := e.Run(context.Background(), "conn-missing", "users")
		assert.ErrorIs(t, err, ErrConnectionNotFound)
	})
}

func TestRunStoreFailures(t *testing.T) {
	t.Run("table not found", func(t *testing.T) {
		fake := &fakeDynamo{
			describeErr: awserr.New(dynamodb.ErrCodeResourceNotFoundException, "no such table", nil),
		}
		e, _ := newTestEngine(t, fake)

		_, err := e.Run(context.Background(), "conn-1", "users")
		assert.ErrorIs(t, err, ErrTableNotFound)
	})

	t.Run("bad credentials", func(t *testing.T) {
		fake := &fakeDynamo{
			describeErr: awserr.New("UnrecognizedClientException", "security token invalid", nil),
		}
		e, _ := newTestEngine(t, fake)

		_, err := e.Run(context.Background(), "conn-1", "users")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("schema unavailable", func(t *testing.T) {
		fake := &fakeDynamo{
			desc: &dynamodb.TableDescription{TableName: aws.String("users")},
		}
		e, _ := newTestEngine(t, fake)

		_, err := e.Run(context.Background(), "conn-1", "users")
		assert.ErrorIs(t, err, ErrSchemaUnavailable)
	})
}
