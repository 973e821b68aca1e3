package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type selectBody struct {
	PlanID string `json:"plan_id"`
}

func TestParseJSON(t *testing.T) {
	var body selectBody
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"plan_id":"pri_pro"}`))
	require.NoError(t, ParseJSON(r, &body))
	assert.Equal(t, "pri_pro", body.PlanID)

	body = selectBody{}
	r = httptest.NewRequest("POST", "/", http.NoBody)
	require.NoError(t, ParseJSON(r, &body))
	assert.Empty(t, body.PlanID)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"plan":"pri_pro"}`))
	assert.Error(t, ParseJSON(r, &body), "unknown fields are rejected")

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{`))
	assert.Error(t, ParseJSON(r, &body))
}

func TestParseJSONOrError(t *testing.T) {
	var body selectBody
	rr := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/", bytes.NewBufferString("not json"))

	assert.False(t, ParseJSONOrError(rr, r, &body))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPathParams(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest("GET", "/", nil), map[string]string{"id": "42", "flow": "flow_1"})

	id, err := ParsePathInt64(r, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ParsePathInt64(r, "flow")
	assert.Error(t, err)

	_, err = ParsePathInt64(r, "missing")
	assert.Error(t, err)

	flow, err := ParsePathString(r, "flow")
	require.NoError(t, err)
	assert.Equal(t, "flow_1", flow)

	rr := httptest.NewRecorder()
	_, ok := ParsePathStringOrError(rr, r, "missing")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	_, ok = ParsePathInt64OrError(rr, r, "flow")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQueryParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/?interval=year&dark=true&bad=maybe", nil)

	assert.Equal(t, "year", ParseQueryString(r, "interval", "month"))
	assert.Equal(t, "month", ParseQueryString(r, "missing", "month"))

	dark, err := ParseQueryBool(r, "dark", false)
	require.NoError(t, err)
	assert.True(t, dark)

	dark, err = ParseQueryBool(r, "missing", true)
	require.NoError(t, err)
	assert.True(t, dark)

	_, err = ParseQueryBool(r, "bad", false)
	assert.Error(t, err)
}
