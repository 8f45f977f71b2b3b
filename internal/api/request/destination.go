package request

// CreateDestination is the request body for registering a storage
// destination.
type CreateDestination struct {
	Name      string `json:"name" validate:"required,slug"`
	Kind      string `json:"kind" validate:"required,oneof=local sftp s3"`
	Host      string `json:"host"`
	Port      int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Path      string `json:"path"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Username  string `json:"username"`
	SecretRef string `json:"secret_ref"`
}

// UpdateDestination is the request body for updating a destination.
type UpdateDestination struct {
	Name      *string `json:"name" validate:"omitempty,slug"`
	Host      *string `json:"host"`
	Port      *int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Path      *string `json:"path"`
	Bucket    *string `json:"bucket"`
	Region    *string `json:"region"`
	Endpoint  *string `json:"endpoint"`
	Username  *string `json:"username"`
	SecretRef *string `json:"secret_ref"`
	Active    *bool   `json:"active"`
}
