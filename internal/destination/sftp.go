package destination

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

// SFTPStore keeps artifacts on a remote host over SFTP. Each operation
// opens a fresh session; a backup daemon has no business holding idle SSH
// connections between runs.
type SFTPStore struct {
	host     string
	port     int
	username string
	password string
	dir      string
}

func NewSFTPStore(dest *model.Destination, secret string) *SFTPStore {
	port := dest.Port
	if port == 0 {
		port = 22
	}
	return &SFTPStore{
		host:     dest.Host,
		port:     port,
		username: dest.Username,
		password: secret,
		dir:      dest.Path,
	}
}

func (s *SFTPStore) connect(ctx context.Context) (*ssh.Client, *sftp.Client, error) {
	cfg := &ssh.ClientConfig{
		User:            s.username,
		Auth:            []ssh.AuthMethod{ssh.Password(s.password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < cfg.Timeout {
			cfg.Timeout = remaining
		}
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	sshClient, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, nil, backuperr.Wrap(backuperr.KindDestination, "auth: sftp rejected credentials", err)
		}
		return nil, nil, backuperr.Wrap(backuperr.KindDestination, "network: sftp host unreachable", err)
	}

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, nil, backuperr.Wrap(backuperr.KindDestination, "open sftp session", err)
	}
	return sshClient, client, nil
}

// Put uploads to a temporary name and renames, mirroring the local store, so
// a dropped connection mid-transfer surfaces as a partial-transfer failure
// and never as a finished artifact.
func (s *SFTPStore) Put(ctx context.Context, name string, r io.Reader) error {
	sshClient, client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer sshClient.Close()
	defer client.Close()

	if err := client.MkdirAll(s.dir); err != nil {
		return backuperr.Wrap(backuperr.KindDestination, "create remote directory", err)
	}

	tmpPath := path.Join(s.dir, ".upload-"+name)
	f, err := client.Create(tmpPath)
	if err != nil {
		return backuperr.Wrap(backuperr.KindDestination, "create remote artifact", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		client.Remove(tmpPath)
		return backuperr.Wrap(backuperr.KindDestination, "partial transfer: upload interrupted", err)
	}
	if err := f.Close(); err != nil {
		client.Remove(tmpPath)
		return backuperr.Wrap(backuperr.KindDestination, "partial transfer: close remote artifact", err)
	}

	if err := client.PosixRename(tmpPath, path.Join(s.dir, name)); err != nil {
		client.Remove(tmpPath)
		return backuperr.Wrap(backuperr.KindDestination, "finalize remote artifact", err)
	}
	return nil
}

func (s *SFTPStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := withRetry(ctx, func() error {
		sshClient, client, err := s.connect(ctx)
		if err != nil {
			return err
		}

		f, err := client.Open(path.Join(s.dir, name))
		if err != nil {
			client.Close()
			sshClient.Close()
			if os.IsNotExist(err) {
				return backuperr.Newf(backuperr.KindConfig, "artifact %s not found", name)
			}
			return backuperr.Wrap(backuperr.KindDestination, "open remote artifact", err)
		}
		rc = &sftpReadCloser{File: f, client: client, ssh: sshClient}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (s *SFTPStore) List(ctx context.Context) ([]ArtifactInfo, error) {
	var artifacts []ArtifactInfo
	err := withRetry(ctx, func() error {
		sshClient, client, err := s.connect(ctx)
		if err != nil {
			return err
		}
		defer sshClient.Close()
		defer client.Close()

		entries, err := client.ReadDir(s.dir)
		if err != nil {
			if os.IsNotExist(err) {
				artifacts = nil
				return nil
			}
			return backuperr.Wrap(backuperr.KindDestination, "destination unavailable", err)
		}

		artifacts = artifacts[:0]
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			artifacts = append(artifacts, ArtifactInfo{
				Name:      entry.Name(),
				SizeBytes: entry.Size(),
				ModTime:   entry.ModTime(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (s *SFTPStore) Delete(ctx context.Context, name string) error {
	sshClient, client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer sshClient.Close()
	defer client.Close()

	if err := client.Remove(path.Join(s.dir, name)); err != nil {
		if os.IsNotExist(err) {
			return backuperr.Newf(backuperr.KindDestination, "artifact %s not found", name)
		}
		return backuperr.Wrap(backuperr.KindDestination, "delete remote artifact", err)
	}
	return nil
}

// sftpReadCloser tears down the session when the artifact stream is closed.
type sftpReadCloser struct {
	*sftp.File
	client *sftp.Client
	ssh    *ssh.Client
}

func (r *sftpReadCloser) Close() error {
	err := r.File.Close()
	r.client.Close()
	r.ssh.Close()
	return err
}
