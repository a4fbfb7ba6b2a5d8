package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_ValidateSSL(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{name: "validates by default", wantErr: true},
		{name: "explicit validation", opts: []Option{WithValidateSSL(true)}, wantErr: true},
		{name: "validation disabled", opts: []Option{WithValidateSSL(false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(server.URL, tt.opts...)
			resp, err := a.Get(context.Background(), "/secure")

			if tt.wantErr {
				var reqErr *IncompleteRequestError
				require.ErrorAs(t, err, &reqErr)
				assert.Contains(t, err.Error(), "certificate")
				assert.Nil(t, resp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

// redirectChain serves /r/N, redirecting to /r/N+1 until N reaches last.
func redirectChain(t *testing.T, last int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/r/"))
		if !assert.NoError(t, err) || n >= last {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/r/%d", n+1), http.StatusFound)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAPI_MaxRedirects(t *testing.T) {
	tests := []struct {
		name         string
		opts         []Option
		wantHits     int32
		wantStatus   int
		wantLocation string
	}{
		{name: "stops after one", opts: []Option{WithMaxRedirects(1)}, wantHits: 1, wantStatus: http.StatusFound, wantLocation: "/r/1"},
		{name: "stops after three", opts: []Option{WithMaxRedirects(3)}, wantHits: 3, wantStatus: http.StatusFound, wantLocation: "/r/3"},
		{name: "default follows the whole chain", wantHits: 6, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := redirectChain(t, 5, &hits)

			a := New(server.URL, tt.opts...)
			resp, err := a.Get(context.Background(), "/r/0", Expect(tt.wantStatus))

			require.NoError(t, err)
			assert.Equal(t, tt.wantHits, hits.Load())
			assert.Equal(t, tt.wantLocation, resp.Header("Location"))
		})
	}
}

func TestAPI_Proxy(t *testing.T) {
	var seenHost, seenPath string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHost = r.Host
		seenPath = r.URL.Path
		_, _ = w.Write([]byte("via proxy"))
	}))
	defer proxy.Close()

	t.Run("requests go through the proxy", func(t *testing.T) {
		a := New("http://api.invalid", WithProxy(proxy.URL))
		resp, err := a.Get(context.Background(), "/thing", Expect(http.StatusOK))

		require.NoError(t, err)
		assert.Equal(t, "via proxy", resp.BodyString())
		assert.Equal(t, "api.invalid", seenHost)
		assert.Equal(t, "/thing", seenPath)
	})

	t.Run("invalid proxy URL is logged and ignored", func(t *testing.T) {
		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))

		a := New("http://api.invalid", WithProxy("://bad"), WithLogger(logger))

		require.NotNil(t, a.Client())
		assert.Contains(t, logs.String(), "ignoring invalid proxy URL")
		assert.Contains(t, logs.String(), "proxy=://bad")
	})
}

func TestAPI_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tests := []struct {
		name        string
		rps         float64
		requests    int
		wantLimiter bool
		minElapsed  time.Duration
	}{
		{name: "zero means unlimited", rps: 0, requests: 3},
		{name: "twenty per second", rps: 20, requests: 3, wantLimiter: true, minElapsed: 90 * time.Millisecond},
		{name: "ten per second", rps: 10, requests: 2, wantLimiter: true, minElapsed: 90 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(server.URL, WithRateLimit(tt.rps))
			assert.Equal(t, tt.wantLimiter, a.limiter != nil)

			start := time.Now()
			for i, n := 0, tt.requests; i < n; i++ {
				_, err := a.Get(context.Background(), "/", Expect(http.StatusOK))
				require.NoError(t, err)
			}
			assert.GreaterOrEqual(t, time.Since(start), tt.minElapsed)
		})
	}
}

func TestAPI_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := New(server.URL, WithRateLimit(1))
	_, err := a.Get(context.Background(), "/")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = a.Get(ctx, "/")

	var reqErr *IncompleteRequestError
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, errors.Is(err, ErrRestAPI))
}

func TestAPI_SharedSessionWithoutJar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		case "/me":
			if c, err := r.Cookie("sid"); err != nil || c.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	shared := &http.Client{}
	first := New(server.URL, WithSession(shared))
	second := New(server.URL, WithSession(shared))
	ctx := context.Background()

	_, err := first.Post(ctx, "/login", Expect(http.StatusOK))
	require.NoError(t, err)
	_, err = second.Get(ctx, "/me", Expect(http.StatusOK))
	require.NoError(t, err)

	assert.True(t, first.Jar() == second.Jar())
	assert.Nil(t, shared.Jar)

	other := New(server.URL, WithSession(&http.Client{}))
	assert.False(t, other.Jar() == first.Jar())
}

func TestAPI_GoStringZeroTimeout(t *testing.T) {
	a := New("http://test.com/", WithTimeout(0))
	assert.Equal(t, `api.API("http://test.com/", timeout=0s)`, a.GoString())
}
