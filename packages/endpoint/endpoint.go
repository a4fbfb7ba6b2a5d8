// Package endpoint maps the basic verbs of a REST resource onto an api.API.
//
// An Endpoint binds a path prefix to its parent API so tests can write
//
//	users := endpoint.New(svc, "/api/v1/users", endpoint.WithDefaultStatus(http.MethodGet, http.StatusOK))
//	users.Get(ctx, "")     // GET /api/v1/users
//	users.Get(ctx, "1337") // GET /api/v1/users/1337
//
// instead of repeating the prefix and the expected status in every call.
package endpoint

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/restapi/packages/api"
)

// Endpoint is a path prefix bound to an API.
type Endpoint struct {
	api      *api.API
	uri      string
	checked  bool
	defaults map[string][]int
}

type Option func(*Endpoint)

// WithChecked enables or disables the default status checks.
func WithChecked(checked bool) Option {
	return func(e *Endpoint) {
		e.checked = checked
	}
}

// WithDefaultStatus sets the status codes expected from method when the
// caller does not pass api.Expect. An empty method applies to every verb
// without a default of its own.
func WithDefaultStatus(method string, codes ...int) Option {
	return func(e *Endpoint) {
		e.defaults[strings.ToUpper(method)] = slices.Clone(codes)
	}
}

// New creates an endpoint for uri on a. A leading slash is added when
// missing. Status checking is enabled by default.
func New(a *api.API, uri string, opts ...Option) *Endpoint {
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}

	e := &Endpoint{
		api:      a,
		uri:      uri,
		checked:  true,
		defaults: make(map[string][]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// URI returns the endpoint path relative to the API root.
func (e *Endpoint) URI() string {
	return e.uri
}

// URL returns the full URL requests to the endpoint go to.
func (e *Endpoint) URL() string {
	return e.api.ResolveURL(e.uri)
}

func (e *Endpoint) API() *api.API {
	return e.api
}

func (e *Endpoint) Checked() bool {
	return e.checked
}

// SetStatusChecking turns the default status checks on or off.
func (e *Endpoint) SetStatusChecking(checked bool) {
	e.checked = checked
}

// Extend returns a copy of the endpoint with uri appended to its path.
// Status checking settings carry over.
func (e *Endpoint) Extend(uri string) *Endpoint {
	return &Endpoint{
		api:      e.api,
		uri:      e.extendURI(uri),
		checked:  e.checked,
		defaults: maps.Clone(e.defaults),
	}
}

func (e *Endpoint) extendURI(ext string) string {
	if ext == "" {
		return e.uri
	}
	trailing := ""
	if strings.HasSuffix(e.uri, "/") {
		trailing = "/"
	}
	return strings.ReplaceAll(e.uri+"/"+ext+trailing, "//", "/")
}

func (e *Endpoint) defaultStatus(method string) ([]int, bool) {
	if codes, ok := e.defaults[strings.ToUpper(method)]; ok {
		return codes, true
	}
	codes, ok := e.defaults[""]
	return codes, ok
}

// Request performs method on the endpoint, extended by ext when it is not
// empty (e.g. a resource ID). The default status for method is checked
// unless checking is off or opts contain api.Expect.
func (e *Endpoint) Request(ctx context.Context, method, ext string, opts ...api.RequestOption) (*api.Response, error) {
	if e.checked {
		if codes, ok := e.defaultStatus(method); ok {
			opts = append([]api.RequestOption{api.Expect(codes...)}, opts...)
		}
	}
	return e.api.Request(ctx, method, e.extendURI(ext), opts...)
}

func (e *Endpoint) Get(ctx context.Context, ext string, opts ...api.RequestOption) (*api.Response, error) {
	return e.Request(ctx, http.MethodGet, ext, opts...)
}

func (e *Endpoint) Put(ctx context.Context, ext string, opts ...api.RequestOption) (*api.Response, error) {
	return e.Request(ctx, http.MethodPut, ext, opts...)
}

func (e *Endpoint) Post(ctx context.Context, ext string, opts ...api.RequestOption) (*api.Response, error) {
	return e.Request(ctx, http.MethodPost, ext, opts...)
}

func (e *Endpoint) Patch(ctx context.Context, ext string, opts ...api.RequestOption) (*api.Response, error) {
	return e.Request(ctx, http.MethodPatch, ext, opts...)
}

func (e *Endpoint) Delete(ctx context.Context, ext string, opts ...api.RequestOption) (*api.Response, error) {
	return e.Request(ctx, http.MethodDelete, ext, opts...)
}

func (e *Endpoint) Options(ctx context.Context, ext string, opts ...api.RequestOption) (*api.Response, error) {
	return e.Request(ctx, http.MethodOptions, ext, opts...)
}
