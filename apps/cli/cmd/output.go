package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/restapi/packages/api"
	"github.com/abdul-hamid-achik/restapi/packages/latency"
	"github.com/fatih/color"
	"github.com/tidwall/pretty"
)

type printer struct {
	w       io.Writer
	verbose bool
}

func newPrinter(w io.Writer, verbose bool) *printer {
	return &printer{w: w, verbose: verbose}
}

func statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return color.New(color.FgRed, color.Bold)
	case code >= 400:
		return color.New(color.FgRed)
	case code >= 300:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func (p *printer) statusLine(resp *api.Response) {
	bold := color.New(color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(p.w, "%s %s %s\n",
		statusColor(resp.StatusCode).Sprintf("%d %s", resp.StatusCode, resp.Reason),
		bold(resp.Method+" "+resp.URL),
		gray(fmt.Sprintf("(%dms)", resp.DurationMs())),
	)
}

// response prints the status line, the headers when verbose, and the body
// or the field selected by path.
func (p *printer) response(resp *api.Response, path string) {
	p.statusLine(resp)

	if p.verbose {
		cyan := color.New(color.FgCyan).SprintFunc()
		names := make([]string, 0, len(resp.Headers))
		for name := range resp.Headers {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(p.w, "%s: %s\n", cyan(name), strings.Join(resp.Headers[name], ", "))
		}
	}

	if path != "" {
		result := resp.Get(path)
		if !result.Exists() {
			return
		}
		if result.IsObject() || result.IsArray() {
			p.body([]byte(result.Raw))
		} else {
			fmt.Fprintln(p.w, result.String())
		}
		return
	}

	if len(resp.Body) > 0 {
		if p.verbose {
			fmt.Fprintln(p.w)
		}
		p.body(resp.Body)
	}
}

func (p *printer) body(data []byte) {
	if !json.Valid(data) {
		fmt.Fprintln(p.w, strings.TrimRight(string(data), "\n"))
		return
	}

	out := pretty.Pretty(data)
	if !color.NoColor {
		out = pretty.Color(out, nil)
	}
	p.w.Write(out)
}

// failure prints the first line of a request error.
func (p *printer) failure(err error) {
	red := color.New(color.FgRed).SprintFunc()
	line, _, _ := strings.Cut(err.Error(), "\n")
	fmt.Fprintf(p.w, "%s %s\n", red("ERR"), line)
}

func (p *printer) summary(s latency.Summary) {
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(p.w, "\n%s\n", bold("Latency"))
	fmt.Fprintf(p.w, "  requests: %d  errors: %d (%.1f%%)\n", s.Count, s.Errors, s.ErrorRate()*100)
	if s.Count == 0 {
		return
	}
	fmt.Fprintf(p.w, "  min: %s  mean: %s  max: %s\n", s.Min, s.Mean, s.Max)
	fmt.Fprintf(p.w, "  p50: %s  p90: %s  p95: %s  p99: %s\n", s.P50, s.P90, s.P95, s.P99)
}
