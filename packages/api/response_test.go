package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonResponse(status int, body string) *Response {
	return &Response{
		StatusCode: status,
		Headers:    http.Header{"Content-Type": {"application/json; charset=utf-8"}},
		Body:       []byte(body),
	}
}

func TestResponse_StatusClasses(t *testing.T) {
	tests := []struct {
		status      int
		success     bool
		redirect    bool
		clientError bool
		serverError bool
	}{
		{200, true, false, false, false},
		{204, true, false, false, false},
		{302, false, true, false, false},
		{404, false, false, true, false},
		{503, false, false, false, true},
	}

	for _, tt := range tests {
		r := &Response{StatusCode: tt.status}
		assert.Equal(t, tt.success, r.IsSuccess(), "status %d", tt.status)
		assert.Equal(t, tt.redirect, r.IsRedirect(), "status %d", tt.status)
		assert.Equal(t, tt.clientError, r.IsClientError(), "status %d", tt.status)
		assert.Equal(t, tt.serverError, r.IsServerError(), "status %d", tt.status)
	}
}

func TestResponse_HeaderIsCaseInsensitive(t *testing.T) {
	r := jsonResponse(200, `{}`)
	assert.Equal(t, "application/json; charset=utf-8", r.Header("content-type"))
	assert.True(t, r.IsJSON())
}

func TestResponse_JSON(t *testing.T) {
	r := jsonResponse(200, `{"id": 7, "tags": ["a", "b"]}`)

	var out struct {
		ID   int      `json:"id"`
		Tags []string `json:"tags"`
	}
	require.NoError(t, r.JSON(&out))
	assert.Equal(t, 7, out.ID)
	assert.Equal(t, []string{"a", "b"}, out.Tags)

	v, err := r.BodyJSON()
	require.NoError(t, err)
	assert.Equal(t, float64(7), v.(map[string]any)["id"])

	assert.Equal(t, int64(2), r.Get("tags.#").Int())
	assert.False(t, r.Get("missing").Exists())
}

func TestResponse_JSONInvalid(t *testing.T) {
	r := &Response{Body: []byte("not json"), Method: "GET", URL: "http://test.com/x"}
	var out map[string]any
	err := r.JSON(&out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET http://test.com/x")
}

func TestResponse_ValidateSchema(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"required": ["id", "name"],
		"properties": {
			"id": {"type": "integer"},
			"name": {"type": "string"}
		}
	}`)

	assert.NoError(t, jsonResponse(200, `{"id": 1, "name": "ada"}`).ValidateSchema(schema))

	err := jsonResponse(200, `{"id": "one"}`).ValidateSchema(schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
	assert.Contains(t, err.Error(), "name")
}
