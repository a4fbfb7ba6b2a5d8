package api

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"time"
)

// RequestOption configures a single request. The same options are used for
// persistent settings via WithDefaults; the per-call value always wins.
type RequestOption func(*requestConfig)

type basicAuth struct {
	username string
	password string
}

type requestConfig struct {
	timeout         time.Duration
	followRedirects *bool
	expected        []int
	statusMsg       string
	headers         http.Header
	query           url.Values
	body            []byte
	contentType     string
	basicAuth       *basicAuth
	bearerToken     string
	err             error
}

func (c requestConfig) clone() requestConfig {
	out := c
	out.expected = slices.Clone(c.expected)
	out.headers = c.headers.Clone()
	out.query = maps.Clone(c.query)
	if c.followRedirects != nil {
		follow := *c.followRedirects
		out.followRedirects = &follow
	}
	return out
}

// params describes the settings sent with a request. Status expectations
// are not part of it since they never reach the wire.
func (c *requestConfig) params() map[string]any {
	p := map[string]any{"timeout": c.timeout}
	if c.followRedirects != nil {
		p["follow_redirects"] = *c.followRedirects
	}
	if len(c.headers) > 0 {
		p["headers"] = flattenHeader(c.headers)
	}
	if len(c.query) > 0 {
		p["query"] = c.query.Encode()
	}
	if c.body != nil {
		p["body"] = string(c.body)
	}
	if c.basicAuth != nil {
		p["auth"] = "basic " + c.basicAuth.username
	}
	if c.bearerToken != "" {
		p["auth"] = "bearer"
	}
	return p
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// Expect declares the acceptable status codes. A response with any other
// status is returned together with an *UnexpectedStatusError. Calling it
// with no codes disables the check.
func Expect(codes ...int) RequestOption {
	return func(c *requestConfig) {
		c.expected = slices.Clone(codes)
	}
}

// StatusMessage adds a message to the error returned on an unexpected status.
func StatusMessage(msg string) RequestOption {
	return func(c *requestConfig) {
		c.statusMsg = msg
	}
}

// Header sets a request header, replacing any session header of the same name.
func Header(key, value string) RequestOption {
	return func(c *requestConfig) {
		if c.headers == nil {
			c.headers = make(http.Header)
		}
		c.headers.Set(key, value)
	}
}

// Query sets a query parameter on the request URL.
func Query(key, value string) RequestOption {
	return func(c *requestConfig) {
		if c.query == nil {
			c.query = make(url.Values)
		}
		c.query.Set(key, value)
	}
}

// Body sets the raw request body.
func Body(body []byte) RequestOption {
	return func(c *requestConfig) {
		c.body = body
		c.contentType = ""
	}
}

func BodyString(body string) RequestOption {
	return Body([]byte(body))
}

// JSONBody marshals v as the request body and sets Content-Type to
// application/json unless a header already names one. A marshal failure
// is reported by the request it was passed to.
func JSONBody(v any) RequestOption {
	data, err := json.Marshal(v)
	return func(c *requestConfig) {
		if err != nil {
			c.err = fmt.Errorf("encode JSON body: %w", err)
			return
		}
		c.body = data
		c.contentType = "application/json"
	}
}

// FormBody URL-encodes values as the request body.
func FormBody(values url.Values) RequestOption {
	return func(c *requestConfig) {
		c.body = []byte(values.Encode())
		c.contentType = "application/x-www-form-urlencoded"
	}
}

// Timeout bounds the whole request, including reading the body.
// Zero disables the timeout.
func Timeout(d time.Duration) RequestOption {
	return func(c *requestConfig) {
		c.timeout = d
	}
}

// FollowRedirects controls whether redirects are followed.
func FollowRedirects(follow bool) RequestOption {
	return func(c *requestConfig) {
		c.followRedirects = &follow
	}
}

func BasicAuth(username, password string) RequestOption {
	return func(c *requestConfig) {
		c.basicAuth = &basicAuth{username: username, password: password}
		c.bearerToken = ""
	}
}

func BearerToken(token string) RequestOption {
	return func(c *requestConfig) {
		c.bearerToken = token
		c.basicAuth = nil
	}
}
