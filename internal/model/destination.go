package model

import "time"

const (
	DestinationLocal = "local"
	DestinationSFTP  = "sftp"
	DestinationS3    = "s3"
)

// ValidDestinationKind reports whether kind is a supported destination kind.
func ValidDestinationKind(kind string) bool {
	return kind == DestinationLocal || kind == DestinationSFTP || kind == DestinationS3
}

// Destination is a configured storage location for backup artifacts. The
// local filesystem destination is always implicitly available even with zero
// configured destinations.
type Destination struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Host      string    `json:"host,omitempty"`
	Port      int       `json:"port,omitempty"`
	Path      string    `json:"path,omitempty"`
	Bucket    string    `json:"bucket,omitempty"`
	Region    string    `json:"region,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Username  string    `json:"username,omitempty"`
	SecretRef string    `json:"secret_ref,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocalDestinationID identifies the implicit local destination used as a
// default fallback and as the safety-backup area.
const LocalDestinationID = "local"

// LocalDestination returns the implicit local destination rooted at dir.
func LocalDestination(dir string) *Destination {
	return &Destination{
		ID:     LocalDestinationID,
		Name:   "local",
		Kind:   DestinationLocal,
		Path:   dir,
		Active: true,
	}
}
