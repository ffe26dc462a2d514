package rest

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/tabledock/tabledock/conn"
)

const (
	// HeaderConnectionID carries the session id on GET endpoints.
	HeaderConnectionID = "x-connection-id"
	// currentConnectionCookie is the fallback session blob set by clients.
	currentConnectionCookie = "current_connection"
)

// resolveConnection resolves the connection for a data endpoint. Resolution
// order: explicit id (body field, header, query param) → registry lookup →
// cookie blob. A known id that is not registered is a 404; no id and no
// cookie is a 401.
func (s *Server) resolveConnection(r *http.Request, explicitID string) (conn.Connection, int, string) {
	id := explicitID
	if id == "" {
		id = r.Header.Get(HeaderConnectionID)
	}
	if id == "" {
		id = r.URL.Query().Get("connectionId")
	}

	if id != "" {
		c, err := s.Registry.Lookup(id)
		if err != nil {
			return conn.Connection{}, http.StatusNotFound, "connection " + id + " not found"
		}
		return c, 0, ""
	}

	cookie, err := r.Cookie(currentConnectionCookie)
	if err != nil {
		return conn.Connection{}, http.StatusUnauthorized, "no active connection"
	}
	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return conn.Connection{}, http.StatusUnauthorized, "no active connection"
	}
	var c conn.Connection
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return conn.Connection{}, http.StatusUnauthorized, "no active connection"
	}
	return c, 0, ""
}
