// Package latency aggregates request timings from an api.API.
package latency

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Histogram range: 1us to 60s, 3 significant digits
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
	sigFigures   = 3
)

// Recorder collects request durations overall and per request name. It is
// safe for concurrent use and satisfies api.Recorder.
type Recorder struct {
	mu      sync.Mutex
	overall *series
	byName  map[string]*series
	order   []string
}

type series struct {
	name      string
	count     int64
	errors    int64
	histogram *hdrhistogram.Histogram
}

func newSeries(name string) *series {
	return &series{
		name:      name,
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigures),
	}
}

// Summary is a snapshot of one series.
type Summary struct {
	Name   string
	Count  int64
	Errors int64
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	P50    time.Duration
	P90    time.Duration
	P95    time.Duration
	P99    time.Duration
}

// ErrorRate returns the share of failed requests, from 0 to 1.
func (s Summary) ErrorRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Count)
}

func New() *Recorder {
	return &Recorder{
		overall: newSeries(""),
		byName:  make(map[string]*series),
	}
}

// Record adds one request. Durations outside the histogram range are clamped.
func (r *Recorder) Record(name string, duration time.Duration, err error) {
	latencyUs := duration.Microseconds()
	if latencyUs < minLatencyUs {
		latencyUs = minLatencyUs
	}
	if latencyUs > maxLatencyUs {
		latencyUs = maxLatencyUs
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.overall.add(latencyUs, err)

	if name == "" {
		return
	}
	s, ok := r.byName[name]
	if !ok {
		s = newSeries(name)
		r.byName[name] = s
		r.order = append(r.order, name)
	}
	s.add(latencyUs, err)
}

func (s *series) add(latencyUs int64, err error) {
	s.count++
	if err != nil {
		s.errors++
	}
	_ = s.histogram.RecordValue(latencyUs)
}

func (s *series) summary() Summary {
	sum := Summary{
		Name:   s.name,
		Count:  s.count,
		Errors: s.errors,
	}
	if s.count == 0 {
		return sum
	}

	h := s.histogram
	sum.Min = usToDuration(h.Min())
	sum.Max = usToDuration(h.Max())
	sum.Mean = time.Duration(h.Mean() * float64(time.Microsecond))
	sum.P50 = usToDuration(h.ValueAtQuantile(50))
	sum.P90 = usToDuration(h.ValueAtQuantile(90))
	sum.P95 = usToDuration(h.ValueAtQuantile(95))
	sum.P99 = usToDuration(h.ValueAtQuantile(99))
	return sum
}

func usToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

// Summary returns the totals across all requests.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overall.summary()
}

// Summaries returns one summary per request name, in first-seen order.
func (r *Recorder) Summaries() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Summary, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].summary())
	}
	return out
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.overall = newSeries("")
	r.byName = make(map[string]*series)
	r.order = nil
}
