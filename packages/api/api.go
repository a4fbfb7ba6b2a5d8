package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	neturl "net/url"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is applied to every request unless overridden
	DefaultTimeout = 10 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second

	// RequestIDHeader carries the generated ID when WithRequestID is set
	RequestIDHeader = "X-Request-ID"
)

// Recorder receives the timing of every request an API makes. name is the
// method and the relative URI, e.g. "GET /users".
type Recorder interface {
	Record(name string, duration time.Duration, err error)
}

// API is a session bound to a REST API root URL.
//
// Session headers and cookies are shared by all requests. Headers returned
// by Headers may be edited between requests but not concurrently with them.
type API struct {
	root     string
	client   *http.Client
	headers  http.Header
	defaults requestConfig

	session      *http.Client
	validateSSL  bool
	proxyURL     string
	maxRedirects int

	logger    *slog.Logger
	limiter   *rate.Limiter
	recorder  Recorder
	requestID bool
}

type Option func(*API)

// New creates an API rooted at root, e.g. "http://myservice.com".
func New(root string, opts ...Option) *API {
	a := &API{
		root:         root,
		headers:      make(http.Header),
		defaults:     requestConfig{timeout: DefaultTimeout},
		validateSSL:  true,
		maxRedirects: DefaultMaxRedirects,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.client = a.buildClient()
	return a
}

// WithSession makes the API use the cookies and transport of an existing
// client, so one session can be shared across services. The client's
// redirect policy and timeout are replaced by the API's own. A client
// without a jar gets one, shared by every API built on that client.
func WithSession(client *http.Client) Option {
	return func(a *API) {
		a.session = client
	}
}

// WithTimeout sets the default timeout for every request.
func WithTimeout(d time.Duration) Option {
	return func(a *API) {
		a.defaults.timeout = d
	}
}

// WithDefaults sets request options applied to every request made by the
// API. Options passed to an individual call take precedence.
func WithDefaults(opts ...RequestOption) Option {
	return func(a *API) {
		for _, opt := range opts {
			opt(&a.defaults)
		}
	}
}

func WithHeader(key, value string) Option {
	return func(a *API) {
		a.headers.Set(key, value)
	}
}

// WithHeaders sets multiple session headers
func WithHeaders(headers map[string]string) Option {
	return func(a *API) {
		for k, v := range headers {
			a.headers.Set(k, v)
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) Option {
	return func(a *API) {
		a.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) Option {
	return func(a *API) {
		a.proxyURL = proxyURL
	}
}

func WithMaxRedirects(max int) Option {
	return func(a *API) {
		a.maxRedirects = max
	}
}

// WithRateLimit caps the API at rps requests per second. Requests wait for
// their turn; the wait counts against the caller's context but not against
// the request timeout.
func WithRateLimit(rps float64) Option {
	return func(a *API) {
		if rps > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRequestID sends a fresh UUID in the X-Request-ID header of every
// request that does not already carry one.
func WithRequestID() Option {
	return func(a *API) {
		a.requestID = true
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(a *API) {
		a.recorder = r
	}
}

type followRedirectsKey struct{}

func (a *API) buildClient() *http.Client {
	if a.session != nil {
		c := *a.session
		if c.Jar == nil {
			c.Jar = sessionJar(a.session)
		}
		c.Timeout = 0
		c.CheckRedirect = a.checkRedirect
		return &c
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	// Configure TLS verification
	if !a.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if a.proxyURL != "" {
		proxyURL, err := neturl.Parse(a.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			a.logger.Warn("ignoring invalid proxy URL", slog.String("proxy", a.proxyURL), slog.String("error", err.Error()))
		}
	}

	return &http.Client{
		Transport:     transport,
		Jar:           newJar(),
		CheckRedirect: a.checkRedirect,
	}
}

// sessionJars holds the jar given to each shared client that came without
// one, so every API built on that client sees the same cookies.
var sessionJars sync.Map // map[*http.Client]http.CookieJar

func sessionJar(client *http.Client) http.CookieJar {
	jar, _ := sessionJars.LoadOrStore(client, newJar())
	return jar.(http.CookieJar)
}

func newJar() http.CookieJar {
	// cookiejar.New never returns an error
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

func (a *API) checkRedirect(req *http.Request, via []*http.Request) error {
	if follow, ok := req.Context().Value(followRedirectsKey{}).(bool); ok && !follow {
		return http.ErrUseLastResponse
	}
	if len(via) >= a.maxRedirects {
		return http.ErrUseLastResponse
	}
	return nil
}

// Root returns the root URL exactly as given to New.
func (a *API) Root() string {
	return a.root
}

// URL returns the root URL, normalized as a browser would show it.
func (a *API) URL() string {
	return NormalizeURL(a.root)
}

// Headers returns the live session headers.
func (a *API) Headers() http.Header {
	return a.headers
}

// Jar returns the session cookie jar.
func (a *API) Jar() http.CookieJar {
	return a.client.Jar
}

// Cookies returns the session cookies that would be sent to the root URL.
func (a *API) Cookies() []*http.Cookie {
	u, err := neturl.Parse(a.root)
	if err != nil {
		return nil
	}
	return a.client.Jar.Cookies(u)
}

// Client returns the underlying HTTP client.
func (a *API) Client() *http.Client {
	return a.client
}

// ResolveURL joins uri onto the root URL with exactly one slash. An empty
// uri is the root itself and an absolute http(s) URL is returned as is.
func (a *API) ResolveURL(uri string) string {
	switch {
	case uri == "":
		return a.root
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri
	}
	return strings.TrimRight(a.root, "/") + "/" + strings.TrimLeft(uri, "/")
}

// Request performs an HTTP request against uri, relative to the root URL.
//
// Transport failures of any kind are returned as *IncompleteRequestError.
// When Expect was given and the status does not match, the response is
// returned along with an *UnexpectedStatusError.
func (a *API) Request(ctx context.Context, method, uri string, opts ...RequestOption) (*Response, error) {
	cfg := a.defaults.clone()
	for _, opt := range opts {
		opt(&cfg)
	}

	reqURL := a.ResolveURL(uri)
	a.logger.DebugContext(ctx, "request", slog.String("method", method), slog.String("uri", uri))

	start := time.Now()
	resp, err := a.do(ctx, method, reqURL, &cfg)
	if a.recorder != nil {
		a.recorder.Record(method+" "+uri, time.Since(start), err)
	}
	if err != nil {
		a.logger.DebugContext(ctx, "request failed",
			slog.String("method", method),
			slog.String("url", reqURL),
			slog.String("error", err.Error()),
		)
		return nil, newIncompleteRequestError(method, reqURL, cfg.params(), err)
	}

	a.logger.DebugContext(ctx, "response",
		slog.String("method", method),
		slog.String("url", reqURL),
		slog.Int("status", resp.StatusCode),
		slog.Int64("duration_ms", resp.DurationMs()),
	)

	if len(cfg.expected) > 0 && !slices.Contains(cfg.expected, resp.StatusCode) {
		return resp, newUnexpectedStatusError(resp, method, reqURL, cfg.params(), cfg.statusMsg)
	}
	return resp, nil
}

func (a *API) do(ctx context.Context, method, reqURL string, cfg *requestConfig) (*Response, error) {
	if cfg.err != nil {
		return nil, cfg.err
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}
	if cfg.followRedirects != nil {
		ctx = context.WithValue(ctx, followRedirectsKey{}, *cfg.followRedirects)
	}

	var body io.Reader
	if cfg.body != nil {
		body = bytes.NewReader(cfg.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range a.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range cfg.headers {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	if cfg.contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", cfg.contentType)
	}
	if a.requestID && httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}

	switch {
	case cfg.basicAuth != nil:
		httpReq.SetBasicAuth(cfg.basicAuth.username, cfg.basicAuth.password)
	case cfg.bearerToken != "":
		httpReq.Header.Set("Authorization", "Bearer "+cfg.bearerToken)
	}

	if len(cfg.query) > 0 {
		q := httpReq.URL.Query()
		for k, vs := range cfg.query {
			q[k] = vs
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	start := time.Now()
	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	duration := time.Since(start)

	finalURL := httpReq.URL.String()
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Reason:     reasonPhrase(httpResp),
		Headers:    httpResp.Header,
		Body:       respBody,
		Duration:   duration,
		Method:     method,
		URL:        finalURL,
	}, nil
}

func reasonPhrase(resp *http.Response) string {
	code := fmt.Sprintf("%d", resp.StatusCode)
	if reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}

func (a *API) Get(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodGet, uri, opts...)
}

func (a *API) Post(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodPost, uri, opts...)
}

func (a *API) Put(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodPut, uri, opts...)
}

func (a *API) Patch(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodPatch, uri, opts...)
}

func (a *API) Delete(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodDelete, uri, opts...)
}

func (a *API) Options(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodOptions, uri, opts...)
}

func (a *API) Head(ctx context.Context, uri string, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodHead, uri, opts...)
}

// String returns "API(<url>)".
func (a *API) String() string {
	return fmt.Sprintf("API(%s)", a.URL())
}

// GoString lists the persistent request settings, sorted by name, e.g.
// api.API("http://test.com/", follow_redirects=false, timeout=10s).
func (a *API) GoString() string {
	params := a.defaults.params()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := []string{fmt.Sprintf("%q", a.URL())}
	for _, k := range keys {
		v := params[k]
		if s, ok := v.(string); ok {
			parts = append(parts, fmt.Sprintf("%s=%q", k, s))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return "api.API(" + strings.Join(parts, ", ") + ")"
}

var repeatedSlashes = regexp.MustCompile(`/{2,}`)

// NormalizeURL returns raw as a modern browser would show it: scheme and
// host lowercased, default ports (80 for http, 443 for https) removed and
// repeated slashes in the path collapsed. Input without a host is returned
// unchanged.
func NormalizeURL(raw string) string {
	u, err := neturl.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}

	switch {
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		u.Host = "[" + host + "]"
	default:
		u.Host = host
	}

	u.Path = repeatedSlashes.ReplaceAllString(u.Path, "/")
	if u.RawPath != "" {
		u.RawPath = repeatedSlashes.ReplaceAllString(u.RawPath, "/")
	}
	return u.String()
}
