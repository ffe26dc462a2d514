// Package conn defines DynamoDB connection identities: credentials, endpoint
// metadata, identifier generation, validation, and the saved-connection store
// backed by durable client storage.
package conn

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlaceholderCredential is accepted in place of real credentials when pointing
// at a local development endpoint (e.g. dynamodb-local).
const PlaceholderCredential = "dummy"

// Credentials holds the static AWS credentials for one connection.
type Credentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken,omitempty"`
}

// Connection identifies one remote DynamoDB endpoint. ID is immutable once
// created; only LastUsed is mutated afterwards.
type Connection struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Region      string      `json:"region"`
	Credentials Credentials `json:"credentials"`
	Endpoint    string      `json:"endpoint,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	LastUsed    time.Time   `json:"lastUsed"`
}

// NewID generates a globally unique connection identifier from the current
// timestamp plus a random suffix.
func NewID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("conn_%d_%s", time.Now().UnixMilli(), suffix)
}

// New builds a Connection with a fresh ID and timestamps.
func New(name, region string, creds Credentials, endpoint string) Connection {
	now := time.Now()
	return Connection{
		ID:          NewID(),
		Name:        name,
		Region:      region,
		Credentials: creds,
		Endpoint:    endpoint,
		CreatedAt:   now,
		LastUsed:    now,
	}
}

// MaskedCredentials is a display-safe rendering of Credentials.
type MaskedCredentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken,omitempty"`
}

// Mask hides all but the edges of the credentials so they can be listed safely.
func (c Credentials) Mask() MaskedCredentials {
	var m MaskedCredentials
	if ak := c.AccessKeyID; len(ak) >= 8 {
		m.AccessKeyID = ak[:4] + strings.Repeat("*", 12) + ak[len(ak)-4:]
	} else if ak != "" {
		m.AccessKeyID = strings.Repeat("*", len(ak))
	}
	if c.SecretAccessKey != "" {
		tail := c.SecretAccessKey
		if len(tail) > 4 {
			tail = tail[len(tail)-4:]
		}
		m.SecretAccessKey = strings.Repeat("*", 36) + tail
	}
	if c.SessionToken != "" {
		m.SessionToken = "***"
	}
	return m
}
