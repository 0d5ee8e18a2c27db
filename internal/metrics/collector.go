// Package metrics implements a small in-process collector exposed in
// Prometheus text format. The dependency-free exposition keeps the binary
// lean; the format is stable enough to hand-render.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// rpcBuckets are the latency histogram upper bounds in seconds.
var rpcBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Collector accumulates counters for tool executions, RPC calls, frames and
// session refreshes. Safe for concurrent use. All methods are no-ops on a nil
// receiver so call sites need no guards.
type Collector struct {
	mu sync.Mutex

	toolCalls       map[string]int64
	toolFailures    map[string]int64
	rpcCalls        map[string]int64
	rpcFailures     map[string]int64
	rpcLatency      []int64 // per-bucket counts, +Inf implicit
	rpcLatencySum   float64
	rpcLatencyCount int64
	framesRead      int64
	cacheRefreshes  int64
	cacheFailures   int64
}

func NewCollector() *Collector {
	return &Collector{
		toolCalls:    make(map[string]int64),
		toolFailures: make(map[string]int64),
		rpcCalls:     make(map[string]int64),
		rpcFailures:  make(map[string]int64),
		rpcLatency:   make([]int64, len(rpcBuckets)),
	}
}

// ToolExecuted records one tool execution.
func (c *Collector) ToolExecuted(name string, d time.Duration, failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolCalls[name]++
	if failed {
		c.toolFailures[name]++
	}
}

// ObserveRPC records one backend call and its latency.
func (c *Collector) ObserveRPC(procID string, d time.Duration, failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rpcCalls[procID]++
	if failed {
		c.rpcFailures[procID]++
	}
	secs := d.Seconds()
	for i, bound := range rpcBuckets {
		if secs <= bound {
			c.rpcLatency[i]++
		}
	}
	c.rpcLatencySum += secs
	c.rpcLatencyCount++
}

// AddFrames records frames parsed from responses.
func (c *Collector) AddFrames(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.framesRead += int64(n)
}

// CacheRefresh records one session cache refresh attempt.
func (c *Collector) CacheRefresh(ok bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheRefreshes++
	if !ok {
		c.cacheFailures++
	}
}

// Handler serves the current counters in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, c.render())
	})
}

func (c *Collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder

	b.WriteString("# HELP searchlens_tool_executions_total Tool executions by name.\n")
	b.WriteString("# TYPE searchlens_tool_executions_total counter\n")
	writeLabeled(&b, "searchlens_tool_executions_total", "tool", c.toolCalls)
	b.WriteString("# HELP searchlens_tool_failures_total Failed tool executions by name.\n")
	b.WriteString("# TYPE searchlens_tool_failures_total counter\n")
	writeLabeled(&b, "searchlens_tool_failures_total", "tool", c.toolFailures)

	b.WriteString("# HELP searchlens_rpc_calls_total Backend calls by procedure.\n")
	b.WriteString("# TYPE searchlens_rpc_calls_total counter\n")
	writeLabeled(&b, "searchlens_rpc_calls_total", "proc", c.rpcCalls)
	b.WriteString("# HELP searchlens_rpc_failures_total Failed backend calls by procedure.\n")
	b.WriteString("# TYPE searchlens_rpc_failures_total counter\n")
	writeLabeled(&b, "searchlens_rpc_failures_total", "proc", c.rpcFailures)

	b.WriteString("# HELP searchlens_rpc_duration_seconds Backend call latency.\n")
	b.WriteString("# TYPE searchlens_rpc_duration_seconds histogram\n")
	for i, bound := range rpcBuckets {
		fmt.Fprintf(&b, "searchlens_rpc_duration_seconds_bucket{le=\"%g\"} %d\n", bound, c.rpcLatency[i])
	}
	fmt.Fprintf(&b, "searchlens_rpc_duration_seconds_bucket{le=\"+Inf\"} %d\n", c.rpcLatencyCount)
	fmt.Fprintf(&b, "searchlens_rpc_duration_seconds_sum %g\n", c.rpcLatencySum)
	fmt.Fprintf(&b, "searchlens_rpc_duration_seconds_count %d\n", c.rpcLatencyCount)

	b.WriteString("# HELP searchlens_frames_read_total Response frames parsed.\n")
	b.WriteString("# TYPE searchlens_frames_read_total counter\n")
	fmt.Fprintf(&b, "searchlens_frames_read_total %d\n", c.framesRead)

	b.WriteString("# HELP searchlens_session_refreshes_total Session cache refresh attempts.\n")
	b.WriteString("# TYPE searchlens_session_refreshes_total counter\n")
	fmt.Fprintf(&b, "searchlens_session_refreshes_total %d\n", c.cacheRefreshes)
	b.WriteString("# HELP searchlens_session_refresh_failures_total Failed session refreshes.\n")
	b.WriteString("# TYPE searchlens_session_refresh_failures_total counter\n")
	fmt.Fprintf(&b, "searchlens_session_refresh_failures_total %d\n", c.cacheFailures)

	return b.String()
}

func writeLabeled(b *strings.Builder, metric, label string, values map[string]int64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s{%s=%q} %d\n", metric, label, k, values[k])
	}
}
