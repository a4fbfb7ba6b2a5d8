package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/pretty"
)

// ErrRestAPI matches every error returned by an API through errors.Is.
var ErrRestAPI = errors.New("rest api error")

// UnexpectedStatusError is returned when a response status does not match
// any of the codes given to Expect.
type UnexpectedStatusError struct {
	Response   *Response
	StatusCode int
	Msg        string
}

func (e *UnexpectedStatusError) Error() string {
	return e.Msg
}

func (e *UnexpectedStatusError) Is(target error) bool {
	return target == ErrRestAPI
}

// IncompleteRequestError is returned when a request could not be completed,
// for any reason. Err is the underlying failure.
type IncompleteRequestError struct {
	Method string
	URL    string
	Msg    string
	Err    error
}

func (e *IncompleteRequestError) Error() string {
	return e.Msg
}

func (e *IncompleteRequestError) Unwrap() error {
	return e.Err
}

func (e *IncompleteRequestError) Is(target error) bool {
	return target == ErrRestAPI
}

func newUnexpectedStatusError(resp *Response, method, reqURL string, params map[string]any, statusMsg string) *UnexpectedStatusError {
	var b strings.Builder
	fmt.Fprintf(&b, "Unexpected status (%d %s) from '%s %s'\n", resp.StatusCode, resp.Reason, method, reqURL)
	fmt.Fprintf(&b, "    Request params (next line):\n%s\n", indent(formatParams(params), 2))

	kind, body := "text", resp.BodyString()
	if json.Valid(resp.Body) {
		kind, body = "JSON", prettyJSON(resp.Body)
	}
	fmt.Fprintf(&b, "    Response %s (next line):\n%s\n", kind, Excerpt(body, 2))

	if statusMsg != "" {
		fmt.Fprintf(&b, "\tError Message: %s", statusMsg)
	}

	return &UnexpectedStatusError{
		Response:   resp,
		StatusCode: resp.StatusCode,
		Msg:        b.String(),
	}
}

func newIncompleteRequestError(method, reqURL string, params map[string]any, err error) *IncompleteRequestError {
	var b strings.Builder
	fmt.Fprintf(&b, "Exception raised on '%s %s'\n", method, reqURL)
	fmt.Fprintf(&b, "    Request params (next line):\n%s\n", indent(formatParams(params), 2))
	fmt.Fprintf(&b, "    Exception (next line):\n        %T: %v", err, err)

	return &IncompleteRequestError{
		Method: method,
		URL:    reqURL,
		Msg:    b.String(),
		Err:    err,
	}
}

func formatParams(params map[string]any) string {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		out[k] = v
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	return prettyJSON(data)
}

func prettyJSON(data []byte) string {
	formatted := pretty.PrettyOptions(data, &pretty.Options{
		Width:    80,
		Indent:   "    ",
		SortKeys: true,
	})
	return strings.TrimRight(string(formatted), "\n")
}

func indent(text string, level int) string {
	prefix := strings.Repeat(" ", excerptIndentStep*level)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
