// Package store wraps the DynamoDB API for one connection: client
// construction from per-connection credentials, table metadata, the uniform
// paginated scan/query contract, and item mutation. Every Service is owned by
// a single request-scoped operation and must be closed before that operation
// returns.
package store

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/tabledock/tabledock/conn"
)

// Item is a document-style DynamoDB record, the analog of the JS document
// client's plain-object items.
type Item = map[string]interface{}

// Service is a DynamoDB client bound to one connection's credentials.
type Service struct {
	api        dynamodbiface.DynamoDBAPI
	connection conn.Connection
	httpClient *http.Client
}

// New builds a Service from the connection's static credentials, honoring an
// endpoint override for local development stores.
func New(c conn.Connection) (*Service, error) {
	httpClient := &http.Client{}

	cfg := aws.NewConfig().
		WithRegion(c.Region).
		WithCredentials(credentials.NewStaticCredentials(
			c.Credentials.AccessKeyID,
			c.Credentials.SecretAccessKey,
			c.Credentials.SessionToken,
		)).
		WithHTTPClient(httpClient)
	if c.Endpoint != "" {
		cfg = cfg.WithEndpoint(c.Endpoint)
	}

	s, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build aws session: %w", err)
	}

	return &Service{
		api:        dynamodb.New(s),
		connection: c,
		httpClient: httpClient,
	}, nil
}

// NewWithAPI builds a Service around an existing DynamoDB API handle. Used by
// tests to substitute a fake.
func NewWithAPI(api dynamodbiface.DynamoDBAPI, c conn.Connection) *Service {
	return &Service{api: api, connection: c}
}

// Connection returns the connection this service was built from.
func (s *Service) Connection() conn.Connection {
	return s.connection
}

// Close releases the client's network resources. It must be called on every
// exit path of the owning operation.
func (s *Service) Close() {
	if s.httpClient != nil {
		s.httpClient.CloseIdleConnections()
	}
}

// ListTables returns every table name visible to the connection.
func (s *Service) ListTables(ctx context.Context) ([]string, error) {
	var out []string
	var start *string

	for {
		resp, err := s.api.ListTablesWithContext(ctx, &dynamodb.ListTablesInput{
			ExclusiveStartTableName: start,
			Limit:                   aws.Int64(100),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
		out = append(out, aws.StringValueSlice(resp.TableNames)...)

		if resp.LastEvaluatedTableName == nil || *resp.LastEvaluatedTableName == "" {
			break
		}
		start = resp.LastEvaluatedTableName
	}
	return out, nil
}

// DescribeTable returns the full table description, including the key schema.
func (s *Service) DescribeTable(ctx context.Context, tableName string) (*dynamodb.TableDescription, error) {
	resp, err := s.api.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %v: %w", tableName, err)
	}
	return resp.Table, nil
}

// KeySchema extracts the hash and range key attribute names from a table
// description. The range key may be empty.
func KeySchema(desc *dynamodb.TableDescription) (hashKey, rangeKey string) {
	if desc == nil {
		return "", ""
	}
	for _, el := range desc.KeySchema {
		switch aws.StringValue(el.KeyType) {
		case dynamodb.KeyTypeHash:
			hashKey = aws.StringValue(el.AttributeName)
		case dynamodb.KeyTypeRange:
			rangeKey = aws.StringValue(el.AttributeName)
		}
	}
	return hashKey, rangeKey
}

// DeleteTableResult describes the outcome of a table deletion.
type DeleteTableResult struct {
	TableName string `json:"tableName"`
	Status    string `json:"status"`
}

// DeleteTable removes the whole table.
func (s *Service) DeleteTable(ctx context.Context, tableName string) (DeleteTableResult, error) {
	resp, err := s.api.DeleteTableWithContext(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return DeleteTableResult{}, err
	}

	var result DeleteTableResult
	if desc := resp.TableDescription; desc != nil {
		result.TableName = aws.StringValue(desc.TableName)
		result.Status = aws.StringValue(desc.TableStatus)
	}
	return result, nil
}

// Test probes the connection by listing tables.
func (s *Service) Test(ctx context.Context) error {
	if _, err := s.ListTables(ctx); err != nil {
		return err
	}
	return nil
}

// IsLocalEndpoint reports whether the connection points at a local
// development store.
func (s *Service) IsLocalEndpoint() bool {
	return strings.Contains(s.connection.Endpoint, "localhost") ||
		strings.Contains(s.connection.Endpoint, "127.0.0.1")
}
