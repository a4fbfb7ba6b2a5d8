package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restapi/packages/api"
	"github.com/abdul-hamid-achik/restapi/packages/core/config"
	"github.com/abdul-hamid-achik/restapi/packages/latency"
	"github.com/spf13/cobra"
)

var methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"}

type requestFlags struct {
	base      string
	expect    []int
	headers   []string
	query     []string
	data      string
	json      bool
	timeout   string
	noFollow  bool
	insecure  bool
	proxy     string
	requestID bool
	repeat    int
	rate      float64
	path      string
	schema    string
	verbose   bool
}

func newRequestCmd(a *app) *cobra.Command {
	f := &requestFlags{}

	cmd := &cobra.Command{
		Use:     "request <METHOD> <uri>",
		Aliases: []string{"req"},
		Short:   "Send a request to the API and check the response",
		Long: `Send a request to a URI relative to the base URL and print the response.

Examples:
  restapi request GET /users --base http://localhost:8080
  restapi request POST /users -d '{"name":"ann"}' --json --expect 201
  restapi request GET /users/1 --path name
  restapi request GET /health --repeat 50 --rate 10
  restapi request GET /users --schema users.schema.json --config staging.yaml`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return usageError(fmt.Errorf("accepts 2 args (METHOD and uri), received %d", len(args)))
			}
			return nil
		},
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, a, f, args)
		},
	}

	// Request flags
	cmd.Flags().StringVar(&f.base, "base", getEnvString("RESTAPI_BASE_URL", ""), "Base URL of the API (env: RESTAPI_BASE_URL)")
	cmd.Flags().IntSliceVar(&f.expect, "expect", nil, "Expected status codes, e.g. --expect 200,204")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "Request header as \"Name: value\" (repeatable)")
	cmd.Flags().StringArrayVar(&f.query, "query", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "Request body, or @file to read it from a file")
	cmd.Flags().BoolVar(&f.json, "json", false, "Send --data as JSON")

	// Network flags
	cmd.Flags().StringVar(&f.timeout, "timeout", getEnvString("RESTAPI_TIMEOUT", ""), "Request timeout (e.g., 10s, 500ms) (env: RESTAPI_TIMEOUT)")
	cmd.Flags().BoolVar(&f.noFollow, "no-follow", false, "Do not follow redirects")
	cmd.Flags().BoolVarP(&f.insecure, "insecure", "k", getEnvBool("RESTAPI_INSECURE", false), "Disable SSL certificate validation (env: RESTAPI_INSECURE)")
	cmd.Flags().StringVar(&f.proxy, "proxy", getEnvString("RESTAPI_PROXY", ""), "Proxy URL for HTTP requests (env: RESTAPI_PROXY)")
	cmd.Flags().BoolVar(&f.requestID, "request-id", false, "Send a generated X-Request-ID header")

	// Repeat flags
	cmd.Flags().IntVar(&f.repeat, "repeat", getEnvInt("RESTAPI_REPEAT", 1), "Send the request N times and print latency stats (env: RESTAPI_REPEAT)")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "Maximum requests per second (0 = unlimited)")

	// Check flags
	cmd.Flags().StringVar(&f.path, "path", "", "Print only this field of the JSON body (gjson syntax); fails if missing")
	cmd.Flags().StringVar(&f.schema, "schema", "", "Validate the JSON body against this JSON Schema file")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print response headers")

	return cmd
}

func runRequest(cmd *cobra.Command, a *app, f *requestFlags, args []string) error {
	method := strings.ToUpper(args[0])
	if !slices.Contains(methods, method) {
		return usageError(fmt.Errorf("unsupported method %q (use one of %s)", args[0], strings.Join(methods, ", ")))
	}
	uri := args[1]

	if f.repeat < 1 {
		return usageError(fmt.Errorf("--repeat must be at least 1, got %d", f.repeat))
	}

	cfg, err := f.apply(a.cfg)
	if err != nil {
		return err
	}
	if cfg.BaseURL == "" {
		return usageError(errors.New("no base URL: pass --base or set baseURL in the config file"))
	}

	reqOpts, err := f.requestOptions()
	if err != nil {
		return err
	}

	var schema []byte
	if f.schema != "" {
		schema, err = os.ReadFile(f.schema)
		if err != nil {
			return usageError(fmt.Errorf("read schema: %w", err))
		}
	}

	recorder := latency.New()
	client := api.New(cfg.BaseURL, apiOptions(cfg, a.logger, recorder)...)
	p := newPrinter(cmd.OutOrStdout(), f.verbose)

	var firstErr error
	for i, n := 0, f.repeat; i < n; i++ {
		resp, err := client.Request(cmd.Context(), method, uri, reqOpts...)
		if err == nil {
			err = f.verify(resp, schema)
		}

		switch {
		case resp != nil && f.repeat == 1:
			p.response(resp, f.path)
		case resp != nil:
			p.statusLine(resp)
		default:
			p.failure(err)
		}

		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if f.repeat > 1 {
		p.summary(recorder.Summary())
	}
	return firstErr
}

// apply overlays the command-line flags on the loaded config.
func (f *requestFlags) apply(base *config.Config) (*config.Config, error) {
	if base == nil {
		base = config.DefaultConfig()
	}

	override := &config.Config{
		BaseURL:   f.base,
		Proxy:     f.proxy,
		RateLimit: f.rate,
	}
	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil || d < time.Millisecond {
			return nil, usageError(fmt.Errorf("invalid timeout value %q (use format like 10s, 1m, 500ms)", f.timeout))
		}
		override.Timeout = int(d.Milliseconds())
	}
	if f.noFollow {
		override.FollowRedirects = config.BoolPtr(false)
	}
	if f.insecure {
		override.ValidateSSL = config.BoolPtr(false)
	}
	if f.requestID {
		override.RequestID = config.BoolPtr(true)
	}

	return base.Merge(override), nil
}

func (f *requestFlags) requestOptions() ([]api.RequestOption, error) {
	var opts []api.RequestOption

	if len(f.expect) > 0 {
		opts = append(opts, api.Expect(f.expect...))
	}

	for _, h := range f.headers {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, usageError(fmt.Errorf("invalid header %q (use \"Name: value\")", h))
		}
		opts = append(opts, api.Header(key, strings.TrimSpace(value)))
	}

	for _, q := range f.query {
		key, value, ok := strings.Cut(q, "=")
		if !ok || key == "" {
			return nil, usageError(fmt.Errorf("invalid query parameter %q (use key=value)", q))
		}
		opts = append(opts, api.Query(key, value))
	}

	if f.data != "" {
		data := []byte(f.data)
		if name, ok := strings.CutPrefix(f.data, "@"); ok {
			var err error
			data, err = os.ReadFile(name)
			if err != nil {
				return nil, usageError(fmt.Errorf("read request body: %w", err))
			}
		}

		if f.json {
			if !json.Valid(data) {
				return nil, usageError(errors.New("--data is not valid JSON"))
			}
			opts = append(opts, api.JSONBody(json.RawMessage(data)))
		} else {
			opts = append(opts, api.Body(data))
		}
	}

	return opts, nil
}

// verify runs the --path and --schema checks on a response.
func (f *requestFlags) verify(resp *api.Response, schema []byte) error {
	if f.path != "" && !resp.Get(f.path).Exists() {
		return checkError(fmt.Errorf("path %q not found in response from '%s %s'", f.path, resp.Method, resp.URL))
	}
	if schema != nil {
		if err := resp.ValidateSchema(schema); err != nil {
			return checkError(err)
		}
	}
	return nil
}

func apiOptions(cfg *config.Config, logger *slog.Logger, recorder api.Recorder) []api.Option {
	opts := []api.Option{
		api.WithTimeout(cfg.TimeoutDuration()),
		api.WithValidateSSL(cfg.GetValidateSSL()),
		api.WithHeaders(cfg.Headers),
		api.WithLogger(logger),
		api.WithRecorder(recorder),
		api.WithDefaults(api.FollowRedirects(cfg.GetFollowRedirects())),
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, api.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, api.WithProxy(cfg.Proxy))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, api.WithRateLimit(cfg.RateLimit))
	}
	if cfg.GetRequestID() {
		opts = append(opts, api.WithRequestID())
	}
	return opts
}
