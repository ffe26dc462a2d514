package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tabledock/tabledock/conn"
	"github.com/tabledock/tabledock/store"
)

type testConnectionRequest struct {
	Name        string           `json:"name"`
	Region      string           `json:"region"`
	Credentials conn.Credentials `json:"credentials"`
	Endpoint    string           `json:"endpoint,omitempty"`
}

// testConnection validates credentials by listing tables with a throwaway
// client.
func (s *Server) testConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Region == "" || req.Credentials.AccessKeyID == "" || req.Credentials.SecretAccessKey == "" {
		fail(w, r, http.StatusBadRequest, "incomplete connection data")
		return
	}

	now := time.Now()
	probe := conn.Connection{
		ID:          "test",
		Name:        req.Name,
		Region:      req.Region,
		Credentials: req.Credentials,
		Endpoint:    req.Endpoint,
		CreatedAt:   now,
		LastUsed:    now,
	}

	svc, err := s.NewStore(probe)
	if err != nil {
		fail(w, r, http.StatusBadRequest, err.Error())
		return
	}
	defer svc.Close()

	if err := svc.Test(r.Context()); err != nil {
		message := store.Message(err)
		if store.Classify(err) == store.KindUnauthorized {
			message = "invalid credentials. check access key and secret key"
		}
		fail(w, r, http.StatusBadRequest, message)
		return
	}

	okMessage(w, "connection successful")
}

type registerConnectionRequest struct {
	ConnectionID string           `json:"connectionId"`
	Connection   *conn.Connection `json:"connection"`
}

func (s *Server) registerConnection(w http.ResponseWriter, r *http.Request) {
	var req registerConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConnectionID == "" || req.Connection == nil {
		fail(w, r, http.StatusBadRequest, "connectionId and connection are required")
		return
	}

	s.Registry.Register(req.ConnectionID, *req.Connection)
	okMessage(w, "connection "+req.ConnectionID+" registered")
}

type connectionListing struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Region       string                 `json:"region"`
	Credentials  conn.MaskedCredentials `json:"credentials"`
	Endpoint     string                 `json:"endpoint,omitempty"`
	RegisteredAt time.Time              `json:"registeredAt"`
	LastUsed     time.Time              `json:"lastUsed"`
}

// listConnections lists the registered sessions with masked credentials.
func (s *Server) listConnections(w http.ResponseWriter, r *http.Request) {
	listings := s.Registry.List()
	out := make([]connectionListing, 0, len(listings))
	for _, l := range listings {
		out = append(out, connectionListing{
			ID:           l.ID,
			Name:         l.Connection.Name,
			Region:       l.Connection.Region,
			Credentials:  l.Connection.Credentials.Mask(),
			Endpoint:     l.Connection.Endpoint,
			RegisteredAt: l.RegisteredAt,
			LastUsed:     l.LastUsed,
		})
	}
	ok(w, out)
}

func (s *Server) unregisterConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Registry.Unregister(id) {
		fail(w, r, http.StatusNotFound, "connection "+id+" not found")
		return
	}
	okMessage(w, "connection "+id+" unregistered")
}
