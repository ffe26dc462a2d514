package rest

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tabledock/tabledock/store"
)

// envelope is the uniform response shape of every endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func okMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message})
}

func fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	zerolog.Ctx(r.Context()).Warn().Int("status", status).Str("error", message).Msg("request failed")
	writeJSON(w, status, envelope{Success: false, Error: message})
}

// failStore surfaces a remote-store error with the status its category maps
// to, passing the store's own message through verbatim.
func failStore(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch store.Classify(err) {
	case store.KindNotFound:
		status = http.StatusNotFound
	case store.KindUnauthorized:
		status = http.StatusUnauthorized
	case store.KindConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	fail(w, r, status, store.Message(err))
}
