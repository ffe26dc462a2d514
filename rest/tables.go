package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/go-chi/chi/v5"

	"github.com/tabledock/tabledock/clear"
	"github.com/tabledock/tabledock/store"
)

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	c, status, message := s.resolveConnection(r, "")
	if status != 0 {
		fail(w, r, status, message)
		return
	}

	svc, err := s.NewStore(c)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	defer svc.Close()

	tables, err := svc.ListTables(r.Context())
	if err != nil {
		failStore(w, r, err)
		return
	}
	ok(w, tables)
}

func (s *Server) describeTable(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	c, status, message := s.resolveConnection(r, "")
	if status != 0 {
		fail(w, r, status, message)
		return
	}

	svc, err := s.NewStore(c)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	defer svc.Close()

	desc, err := svc.DescribeTable(r.Context(), tableName)
	if err != nil {
		failStore(w, r, err)
		return
	}
	ok(w, desc)
}

type scanRequest struct {
	ConnectionID    string            `json:"connectionId"`
	Filter          string            `json:"filterExpression"`
	AttributeNames  map[string]string `json:"expressionAttributeNames"`
	AttributeValues store.Item        `json:"expressionAttributeValues"`
	Projection      string            `json:"projectionExpression"`
	Limit           int64             `json:"limit"`
	Cursor          store.Item        `json:"cursor"`
}

func (s *Server) scanTable(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	c, status, message := s.resolveConnection(r, req.ConnectionID)
	if status != 0 {
		fail(w, r, status, message)
		return
	}

	svc, err := s.NewStore(c)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	defer svc.Close()

	page, err := svc.Scan(r.Context(), store.ScanParams{
		Table:           tableName,
		Filter:          req.Filter,
		AttributeNames:  req.AttributeNames,
		AttributeValues: req.AttributeValues,
		Projection:      req.Projection,
		Limit:           req.Limit,
		Cursor:          req.Cursor,
	})
	if err != nil {
		failStore(w, r, err)
		return
	}
	ok(w, page)
}

type queryRequest struct {
	ConnectionID    string            `json:"connectionId"`
	KeyCondition    string            `json:"keyCondition"`
	Filter          string            `json:"filterExpression"`
	AttributeNames  map[string]string `json:"expressionAttributeNames"`
	AttributeValues store.Item        `json:"expressionAttributeValues"`
	IndexName       string            `json:"indexName"`
	Limit           int64             `json:"limit"`
	Cursor          store.Item        `json:"cursor"`
	Forward         *bool             `json:"scanIndexForward"`
}

func (s *Server) queryTable(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.KeyCondition == "" {
		fail(w, r, http.StatusBadRequest, "keyCondition is required")
		return
	}

	c, status, message := s.resolveConnection(r, req.ConnectionID)
	if status != 0 {
		fail(w, r, status, message)
		return
	}

	svc, err := s.NewStore(c)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	defer svc.Close()

	page, err := svc.Query(r.Context(), store.QueryParams{
		Table:           tableName,
		KeyCondition:    req.KeyCondition,
		Filter:          req.Filter,
		AttributeNames:  req.AttributeNames,
		AttributeValues: req.AttributeValues,
		IndexName:       req.IndexName,
		Limit:           req.Limit,
		Cursor:          req.Cursor,
		Forward:         req.Forward,
	})
	if err != nil {
		failStore(w, r, err)
		return
	}
	ok(w, page)
}

// putItem inserts or replaces an item. A body of the form
// {"__native": true, "item": {...}} carries the item in the store's wire
// attribute format and bypasses document conversion.
func (s *Server) putItem(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	connectionID, _ := body["connectionId"].(string)
	delete(body, "connectionId")

	c, status, message := s.resolveConnection(r, connectionID)
	if status != 0 {
		fail(w, r, status, message)
		return
	}

	svc, err := s.NewStore(c)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	defer svc.Close()

	if native, _ := body["__native"].(bool); native {
		raw, ok := body["item"].(map[string]interface{})
		if !ok {
			fail(w, r, http.StatusBadRequest, "native mode requires an item object")
			return
		}
		item, err := decodeNativeItem(raw)
		if err != nil {
			fail(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := svc.PutItemNative(r.Context(), tableName, item); err != nil {
			failStore(w, r, err)
			return
		}
		okMessage(w, "item saved")
		return
	}

	if err := svc.PutItem(r.Context(), tableName, body); err != nil {
		failStore(w, r, err)
		return
	}
	okMessage(w, "item saved")
}

func decodeNativeItem(raw map[string]interface{}) (map[string]*dynamodb.AttributeValue, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.New("invalid native item")
	}
	var item map[string]*dynamodb.AttributeValue
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, errors.New("invalid native item")
	}
	return item, nil
}

// updateItem replaces an item with the full updated record sent by the
// client.
func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	connectionID, _ := body["connectionId"].(string)
	delete(body, "connectionId")

	c, status, message := s.resolveConnection(r, connectionID)
	if status != 0 {
		fail(w, r, status, message)
		return
	}

	svc, err := s.NewStore(c)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	defer svc.Close()

	if err := svc.PutItem(r.Context(), tableName, body); err != nil {
		failStore(w, r, err)
		return
	}
	okMessage(w, "item updated")
}

type deleteItemRequest struct {
	ConnectionID string     `json:"connectionId"`
	Key          store.Item `json:"key"`
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	var req deleteItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Key) == 0 {
		fail(w, r, http.StatusBadRequest, "item key is required")
		return
	}

	c, status, message := s.resolveConnection(r, req.ConnectionID)
	if status != 0 {
		fail(w, r, status, message)
		return
	}

	svc, err := s.NewStore(c)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	defer svc.Close()

	old, err := svc.DeleteItem(r.Context(), tableName, req.Key)
	if err != nil {
		failStore(w, r, err)
		return
	}
	ok(w, old)
}

type batchGetRequest struct {
	ConnectionID string       `json:"connectionId"`
	Keys         []store.Item `json:"keys"`
}

func (s *Server) batchGetItems(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	var req batchGetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Keys) == 0 {
		fail(w, r, http.StatusBadRequest, "keys are required")
		return
	}

	c, status, message := s.resolveConnection(r, req.ConnectionID)
	if status != 0 {
		fail(w, r, status, message)
		return
	}

	svc, err := s.NewStore(c)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	defer svc.Close()

	items, err := svc.BatchGetItems(r.Context(), tableName, req.Keys)
	if err != nil {
		failStore(w, r, err)
		return
	}
	ok(w, items)
}

// clearTable deletes every record in the table for the connection named by
// the connectionId query parameter.
func (s *Server) clearTable(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")
	connectionID := r.URL.Query().Get("connectionId")

	report, err := s.Clear.Run(r.Context(), connectionID, tableName)
	if err != nil {
		switch {
		case errors.Is(err, clear.ErrMissingParameter):
			fail(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, clear.ErrConnectionNotFound), errors.Is(err, clear.ErrTableNotFound):
			fail(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, clear.ErrUnauthorized):
			fail(w, r, http.StatusUnauthorized, err.Error())
		default:
			fail(w, r, http.StatusInternalServerError, err.Error())
		}
		return
	}
	ok(w, report)
}

type deleteTableRequest struct {
	ConnectionID string `json:"connectionId"`
}

func (s *Server) deleteTable(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	var req deleteTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	c, status, message := s.resolveConnection(r, req.ConnectionID)
	if status != 0 {
		fail(w, r, status, message)
		return
	}

	svc, err := s.NewStore(c)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	defer svc.Close()

	result, err := svc.DeleteTable(r.Context(), tableName)
	if err != nil {
		switch store.Classify(err) {
		case store.KindNotFound:
			fail(w, r, http.StatusNotFound, "table "+tableName+" does not exist")
		case store.KindConflict:
			fail(w, r, http.StatusConflict, "table "+tableName+" is in use or the operation limit was reached")
		default:
			failStore(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "table " + tableName + " deleted",
		Data:    result,
	})
}
