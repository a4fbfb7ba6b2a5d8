package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/abdul-hamid-achik/restapi/packages/api"
	"github.com/tidwall/gjson"
)

// JSONResponse gives map access to a JSON object body while keeping the
// raw response for status codes, headers, etc.
type JSONResponse struct {
	Data     map[string]any
	Response *api.Response
}

// NewJSONResponse decodes resp. An empty body yields an empty map. A body
// that is not a JSON object is an error; the response is still returned.
func NewJSONResponse(resp *api.Response) (*JSONResponse, error) {
	jr := &JSONResponse{
		Data:     make(map[string]any),
		Response: resp,
	}
	if len(resp.Body) == 0 {
		return jr, nil
	}

	if err := json.Unmarshal(resp.Body, &jr.Data); err != nil {
		return jr, fmt.Errorf("decode JSON object from %s %s: %w", resp.Method, resp.URL, err)
	}
	if jr.Data == nil {
		jr.Data = make(map[string]any)
	}
	return jr, nil
}

// Get looks up a value in the body using gjson path syntax.
func (r *JSONResponse) Get(path string) gjson.Result {
	return r.Response.Get(path)
}

// JSONEndpoint is an Endpoint whose verbs decode the response body as a
// JSON object.
type JSONEndpoint struct {
	*Endpoint
}

func NewJSON(a *api.API, uri string, opts ...Option) *JSONEndpoint {
	return &JSONEndpoint{Endpoint: New(a, uri, opts...)}
}

// Extend returns a copy of the endpoint with uri appended to its path.
func (e *JSONEndpoint) Extend(uri string) *JSONEndpoint {
	return &JSONEndpoint{Endpoint: e.Endpoint.Extend(uri)}
}

// Request performs method on the endpoint and decodes the body. On a
// request or status error nothing is decoded; the response of an
// unexpected status stays reachable through api.UnexpectedStatusError.
func (e *JSONEndpoint) Request(ctx context.Context, method, ext string, opts ...api.RequestOption) (*JSONResponse, error) {
	resp, err := e.Endpoint.Request(ctx, method, ext, opts...)
	if err != nil {
		return nil, err
	}
	return NewJSONResponse(resp)
}

func (e *JSONEndpoint) Get(ctx context.Context, ext string, opts ...api.RequestOption) (*JSONResponse, error) {
	return e.Request(ctx, http.MethodGet, ext, opts...)
}

func (e *JSONEndpoint) Put(ctx context.Context, ext string, opts ...api.RequestOption) (*JSONResponse, error) {
	return e.Request(ctx, http.MethodPut, ext, opts...)
}

func (e *JSONEndpoint) Post(ctx context.Context, ext string, opts ...api.RequestOption) (*JSONResponse, error) {
	return e.Request(ctx, http.MethodPost, ext, opts...)
}

func (e *JSONEndpoint) Patch(ctx context.Context, ext string, opts ...api.RequestOption) (*JSONResponse, error) {
	return e.Request(ctx, http.MethodPatch, ext, opts...)
}

func (e *JSONEndpoint) Delete(ctx context.Context, ext string, opts ...api.RequestOption) (*JSONResponse, error) {
	return e.Request(ctx, http.MethodDelete, ext, opts...)
}

func (e *JSONEndpoint) Options(ctx context.Context, ext string, opts ...api.RequestOption) (*JSONResponse, error) {
	return e.Request(ctx, http.MethodOptions, ext, opts...)
}
