package request

// CreateAPIKey is the request body for creating an API key.
type CreateAPIKey struct {
	Name   string   `json:"name" validate:"required"`
	Scopes []string `json:"scopes"`
}
