package model

import "time"

// APIKey is an authentication credential for the HTTP API. Only the hash of
// the raw key is stored; the raw value is shown once at creation.
type APIKey struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	KeyPrefix string     `json:"key_prefix"`
	Scopes    []string   `json:"scopes"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}
