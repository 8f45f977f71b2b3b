package destination

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
)

// LocalStore keeps artifacts in a directory on the local filesystem. It is
// the implicit default destination and the safety-backup area.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Put writes to a temporary file and renames it into place so a partial
// write never looks like a finished artifact.
func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return backuperr.Wrap(backuperr.KindDestination, "create artifact directory", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return backuperr.Wrap(backuperr.KindDestination, "create temporary artifact", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return backuperr.Wrap(backuperr.KindDestination, "write artifact", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return backuperr.Wrap(backuperr.KindDestination, "sync artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return backuperr.Wrap(backuperr.KindDestination, "close artifact", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return backuperr.Wrap(backuperr.KindDestination, "finalize artifact", err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil, backuperr.Newf(backuperr.KindDestination, "artifact %s not found", name)
	}
	if err != nil {
		return nil, backuperr.Wrap(backuperr.KindDestination, "open artifact", err)
	}
	return f, nil
}

func (s *LocalStore) List(ctx context.Context) ([]ArtifactInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, backuperr.Wrap(backuperr.KindDestination, "destination unavailable", err)
	}

	var artifacts []ArtifactInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, ArtifactInfo{
			Name:      entry.Name(),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
	}
	return artifacts, nil
}

func (s *LocalStore) Delete(ctx context.Context, name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return backuperr.Newf(backuperr.KindDestination, "artifact %s not found", name)
	}
	if err != nil {
		return backuperr.Wrap(backuperr.KindDestination, "delete artifact", err)
	}
	return nil
}
