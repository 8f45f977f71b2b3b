package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTargetHandler() *Target {
	return NewTarget(nil, nil, 0)
}

// --- Create ---

func TestTargetCreate_InvalidJSON(t *testing.T) {
	h := newTargetHandler()
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/targets", "{bad json")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestTargetCreate_MissingRequiredFields(t *testing.T) {
	h := newTargetHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/targets", map[string]any{})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestTargetCreate_InvalidSlugName(t *testing.T) {
	tests := []struct {
		name string
		slug string
	}{
		{"uppercase", "Orders-DB"},
		{"spaces", "orders db"},
		{"special chars", "orders@db"},
		{"starts with digit", "1orders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTargetHandler()
			rec := httptest.NewRecorder()
			r := newRequest(http.MethodPost, "/targets", map[string]any{
				"name":     tt.slug,
				"engine":   "relational-postgres",
				"database": "orders",
			})

			h.Create(rec, r)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestTargetCreate_InvalidPort(t *testing.T) {
	h := newTargetHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/targets", map[string]any{
		"name":     "orders-db",
		"engine":   "relational-postgres",
		"database": "orders",
		"port":     99999,
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Get / Update / Delete ---

func TestTargetGet_EmptyID(t *testing.T) {
	h := newTargetHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/targets/", nil)
	r = withChiURLParam(r, "id", "")

	h.Get(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "missing required ID")
}

func TestTargetUpdate_InvalidJSON(t *testing.T) {
	h := newTargetHandler()
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPut, "/targets/"+validID, "{bad json")
	r = withChiURLParam(r, "id", validID)

	h.Update(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTargetDelete_EmptyID(t *testing.T) {
	h := newTargetHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodDelete, "/targets/", nil)
	r = withChiURLParam(r, "id", "")

	h.Delete(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Error response format ---

func TestTargetCreate_ErrorResponseFormat(t *testing.T) {
	h := newTargetHandler()
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/targets", "{bad")

	h.Create(rec, r)

	var body map[string]any
	err := json.Unmarshal(rec.Body.Bytes(), &body)
	require.NoError(t, err)
	_, hasError := body["error"]
	assert.True(t, hasError)
}
