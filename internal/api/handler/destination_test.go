package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/destination"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

type stubStore struct {
	listErr error
}

func (s *stubStore) Put(context.Context, string, io.Reader) error { return nil }
func (s *stubStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, backuperr.New(backuperr.KindDestination, "not found")
}
func (s *stubStore) List(context.Context) ([]destination.ArtifactInfo, error) {
	return nil, s.listErr
}
func (s *stubStore) Delete(context.Context, string) error { return nil }

type stubResolver struct{}

func (stubResolver) Resolve(ref string) (string, error) { return "", nil }

func newTestDestinationHandler(store *stubStore) *Destination {
	h := NewDestination(nil, stubResolver{}, time.Second)
	h.openStore = func(dest *model.Destination, secret string) (destination.Store, error) {
		return store, nil
	}
	return h
}

func TestDestinationTest_Reachable(t *testing.T) {
	h := newTestDestinationHandler(&stubStore{})

	body := map[string]any{"name": "offsite", "kind": "sftp", "host": "backup.example.com", "path": "/srv/backups"}
	rec := httptest.NewRecorder()
	h.Test(rec, withAdminKey(newRequest(http.MethodPost, "/destinations/test", body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestDestinationTest_Unreachable(t *testing.T) {
	h := newTestDestinationHandler(&stubStore{
		listErr: backuperr.New(backuperr.KindConnection, "dial tcp: connection refused"),
	})

	body := map[string]any{"name": "offsite", "kind": "sftp", "host": "backup.example.com"}
	rec := httptest.NewRecorder()
	h.Test(rec, withAdminKey(newRequest(http.MethodPost, "/destinations/test", body)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDestinationTest_InvalidKind(t *testing.T) {
	h := newTestDestinationHandler(&stubStore{})

	body := map[string]any{"name": "offsite", "kind": "ftp"}
	rec := httptest.NewRecorder()
	h.Test(rec, withAdminKey(newRequest(http.MethodPost, "/destinations/test", body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErrorResponse(rec)["error"], "validation error")
}

func TestDestinationCreate_InvalidJSON(t *testing.T) {
	h := newTestDestinationHandler(&stubStore{})

	rec := httptest.NewRecorder()
	h.Create(rec, withAdminKey(newRequestRaw(http.MethodPost, "/destinations", "{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
