package request

// CreateTarget is the request body for registering a database target.
type CreateTarget struct {
	Name      string `json:"name" validate:"required,slug"`
	Engine    string `json:"engine" validate:"required"`
	Host      string `json:"host"`
	Port      int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Database  string `json:"database" validate:"required"`
	Username  string `json:"username"`
	SecretRef string `json:"secret_ref"`
}

// UpdateTarget is the request body for updating a target. Engine is absent:
// it is immutable after creation.
type UpdateTarget struct {
	Name      *string `json:"name" validate:"omitempty,slug"`
	Host      *string `json:"host"`
	Port      *int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Database  *string `json:"database"`
	Username  *string `json:"username"`
	SecretRef *string `json:"secret_ref"`
	Active    *bool   `json:"active"`
}
