// Package destination delivers backup artifacts to storage locations and
// retrieves them for restore. The local filesystem store is always
// implicitly available; remote stores wrap a transfer mechanism and surface
// partial-transfer failures distinctly from authentication failures.
package destination

import (
	"context"
	"io"
	"time"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

// ArtifactInfo describes a stored artifact.
type ArtifactInfo struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// Store is the destination contract. Put is never retried: a failed upload
// may have left a partial object, and silently retrying would risk an
// ambiguous artifact. Get and List are idempotent and may be retried.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context) ([]ArtifactInfo, error)
	Delete(ctx context.Context, name string) error
}

// Open builds a Store for a configured destination. The secret is resolved
// by the caller; it never lands in logs.
func Open(dest *model.Destination, secret string) (Store, error) {
	switch dest.Kind {
	case model.DestinationLocal:
		return NewLocalStore(dest.Path), nil
	case model.DestinationSFTP:
		return NewSFTPStore(dest, secret), nil
	case model.DestinationS3:
		return NewS3Store(dest, secret), nil
	default:
		return nil, backuperr.Newf(backuperr.KindConfig, "unknown destination kind %q", dest.Kind)
	}
}

const (
	retryAttempts = 2
	retryBaseWait = time.Second
)

// withRetry retries an idempotent read operation a small fixed number of
// times with doubling backoff. Config failures are not retried.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	wait := retryBaseWait
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || attempt >= retryAttempts {
			return err
		}
		if backuperr.Is(err, backuperr.KindConfig) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
		wait *= 2
	}
}
