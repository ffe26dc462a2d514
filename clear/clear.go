// Package clear deletes every record in a table through repeated paginated
// key-only scans and individual deletes, without requiring the caller to
// drive pagination and without letting one bad item abort the rest.
package clear

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tabledock/tabledock/conn"
	"github.com/tabledock/tabledock/registry"
	"github.com/tabledock/tabledock/store"
)

var (
	// ErrMissingParameter indicates the connection id or table name is absent.
	ErrMissingParameter = errors.New("connection id and table name are required")
	// ErrConnectionNotFound indicates the session id is not registered.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrSchemaUnavailable indicates the table's hash key could not be determined.
	ErrSchemaUnavailable = errors.New("could not determine the table's key schema")
	// ErrTableNotFound indicates the table does not exist.
	ErrTableNotFound = errors.New("table not found")
	// ErrUnauthorized indicates the store rejected the credentials.
	ErrUnauthorized = errors.New("invalid credentials")
)

const (
	// pageSize is how many key-only items each scan page requests.
	pageSize = 100
	// batchSize is the store's batch ceiling, used to chunk bookkeeping.
	batchSize = 25
	// defaultPause separates consecutive scan pages.
	defaultPause = 100 * time.Millisecond
)

// ItemError records one failed per-item delete, keyed by the item's hash (and
// range, when present) value.
type ItemError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Report is the single completion report of one clear invocation.
type Report struct {
	DeletedCount int         `json:"deletedCount"`
	TotalScanned int         `json:"totalScanned"`
	Errors       []ItemError `json:"errors,omitempty"`
	Message      string      `json:"message"`
}

// Engine orchestrates describe → scan-all-pages → chunked sequential delete →
// error aggregation → rate-limited pacing.
type Engine struct {
	registry *registry.Registry
	newStore func(conn.Connection) (*store.Service, error)
	pause    time.Duration
}

// New builds an engine resolving connections from reg. The newStore hook may
// be nil, in which case real store clients are built per run.
func New(reg *registry.Registry, newStore func(conn.Connection) (*store.Service, error)) *Engine {
	if newStore == nil {
		newStore = store.New
	}
	return &Engine{
		registry: reg,
		newStore: newStore,
		pause:    defaultPause,
	}
}

// Run clears the named table for the registered connection. Per-item delete
// failures are aggregated into the report; everything else fails the run. The
// store client is closed on every exit path. A started run is not cancellable
// mid-flight.
func (e *Engine) Run(ctx context.Context, connectionID, tableName string) (*Report, error) {
	if connectionID == "" || tableName == "" {
		return nil, ErrMissingParameter
	}

	c, err := e.registry.Lookup(connectionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionNotFound, connectionID)
	}

	svc, err := e.newStore(c)
	if err != nil {
		return nil, fmt.Errorf("failed to open store client: %w", err)
	}
	defer svc.Close()

	desc, err := svc.DescribeTable(ctx, tableName)
	if err != nil {
		return nil, storeFailure(tableName, err)
	}
	hashKey, rangeKey := store.KeySchema(desc)
	if hashKey == "" {
		return nil, ErrSchemaUnavailable
	}

	projection := hashKey
	if rangeKey != "" {
		projection = hashKey + ", " + rangeKey
	}

	report := &Report{}
	var cursor store.Item

	for {
		page, err := svc.Scan(ctx, store.ScanParams{
			Table:      tableName,
			Projection: projection,
			Limit:      pageSize,
			Cursor:     cursor,
		})
		if err != nil {
			return nil, storeFailure(tableName, err)
		}

		report.TotalScanned += len(page.Items)
		if len(page.Items) == 0 {
			break
		}

		for start := 0; start < len(page.Items); start += batchSize {
			end := start + batchSize
			if end > len(page.Items) {
				end = len(page.Items)
			}
			for _, item := range page.Items[start:end] {
				e.deleteOne(ctx, svc, tableName, hashKey, rangeKey, item, report)
			}
		}

		if page.NextCursor == nil {
			break
		}
		cursor = page.NextCursor

		// Breathe between pages so the store isn't overwhelmed.
		time.Sleep(e.pause)
	}

	report.Message = fmt.Sprintf("deleted %d of %d records from table %v",
		report.DeletedCount, report.TotalScanned, tableName)

	zerolog.Ctx(ctx).Info().
		Str("table", tableName).
		Int("deleted", report.DeletedCount).
		Int("scanned", report.TotalScanned).
		Int("failures", len(report.Errors)).
		Msg("cleared table")

	return report, nil
}

func (e *Engine) deleteOne(ctx context.Context, svc *store.Service, tableName, hashKey, rangeKey string, item store.Item, report *Report) {
	key := store.Item{hashKey: item[hashKey]}
	itemKey := fmt.Sprintf("%v", item[hashKey])
	if rangeKey != "" {
		if rv, ok := item[rangeKey]; ok && rv != nil {
			key[rangeKey] = rv
		}
		itemKey = fmt.Sprintf("%v#%v", item[hashKey], item[rangeKey])
	}

	if _, err := svc.DeleteItem(ctx, tableName, key); err != nil {
		report.Errors = append(report.Errors, ItemError{Key: itemKey, Error: store.Message(err)})
		return
	}
	report.DeletedCount++
}

func storeFailure(tableName string, err error) error {
	switch store.Classify(err) {
	case store.KindNotFound:
		return fmt.Errorf("%w: %v", ErrTableNotFound, tableName)
	case store.KindUnauthorized:
		return fmt.Errorf("%w: %v", ErrUnauthorized, store.Message(err))
	default:
		return err
	}
}
