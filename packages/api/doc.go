// Package api provides a session-oriented REST API wrapper for test automation.
//
// An API binds a root URL to a net/http session and adds the conveniences
// that API tests tend to repeat:
//   - A default timeout on every request (10s), so nothing hangs
//   - Relative URIs joined onto the root URL
//   - Optional status-code expectations with rich diagnostics on failure
//   - Persistent request settings that individual calls can override
//   - Session headers and cookies shared by every request
//   - Debug-level logging of every request made
//
// Typical use is to embed an *API in a service-specific type and hang
// endpoints off it:
//
//	svc := api.New("https://example.com", api.WithHeader("Accept", "application/json"))
//	resp, err := svc.Get(ctx, "/api/v1/users", api.Expect(http.StatusOK))
package api
