package request

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Valid(t *testing.T) {
	r := httptest.NewRequest("POST", "/targets",
		strings.NewReader(`{"name":"orders-db","engine":"relational-postgres","database":"orders"}`))

	var req CreateTarget
	require.NoError(t, Decode(r, &req))
	assert.Equal(t, "orders-db", req.Name)
}

func TestDecode_InvalidJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/targets", strings.NewReader(`{not json`))

	var req CreateTarget
	err := Decode(r, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestDecode_ValidationFailure(t *testing.T) {
	r := httptest.NewRequest("POST", "/targets",
		strings.NewReader(`{"name":"Bad Name!","engine":"relational-postgres","database":"orders"}`))

	var req CreateTarget
	err := Decode(r, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation error")
}

func TestDecode_MissingRequired(t *testing.T) {
	r := httptest.NewRequest("POST", "/schedules", strings.NewReader(`{"name":"nightly"}`))

	var req CreateSchedule
	require.Error(t, Decode(r, &req))
}

func TestParsePagination(t *testing.T) {
	r := httptest.NewRequest("GET", "/runs?limit=25&cursor=abc", nil)
	p := ParsePagination(r)
	assert.Equal(t, 25, p.Limit)
	assert.Equal(t, "abc", p.Cursor)

	r = httptest.NewRequest("GET", "/runs?limit=9999", nil)
	assert.Equal(t, MaxLimit, ParsePagination(r).Limit)

	r = httptest.NewRequest("GET", "/runs", nil)
	assert.Equal(t, DefaultLimit, ParsePagination(r).Limit)
}
