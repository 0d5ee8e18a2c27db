package tool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubTool struct {
	name   string
	result string
	err    error
}

func (t *stubTool) Name() string               { return t.name }
func (t *stubTool) Description() string        { return "stub" }
func (t *stubTool) Parameters() map[string]any { return objectSchema(map[string]any{}) }
func (t *stubTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return t.result, t.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (m *recordingMetrics) ToolExecuted(name string, d time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if failed {
		m.failures++
	}
}

func TestRegistryRegisterAndExecute(t *testing.T) {
	r := NewRegistry(nil, nil)
	if err := r.Register(&stubTool{name: "a", result: "ok"}); err != nil {
		t.Fatal(err)
	}
	got, err := r.Execute(context.Background(), "a", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "ok" {
		t.Fatalf("result = %q", got)
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	r := NewRegistry(nil, nil)
	if err := r.Register(&stubTool{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&stubTool{name: "a"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry(nil, nil)
	if _, err := r.Execute(context.Background(), "nope", nil); err == nil {
		t.Fatal("unknown tool should fail")
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry(nil, nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(&stubTool{name: name}); err != nil {
			t.Fatal(err)
		}
	}
	list := r.List()
	if len(list) != 3 || list[0].Name() != "alpha" || list[2].Name() != "zeta" {
		t.Fatalf("list order wrong: %v, %v, %v", list[0].Name(), list[1].Name(), list[2].Name())
	}
}

func TestRegistryMetrics(t *testing.T) {
	m := &recordingMetrics{}
	r := NewRegistry(nil, m)
	if err := r.Register(&stubTool{name: "good", result: "ok"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&stubTool{name: "bad", err: errors.New("boom")}); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Execute(context.Background(), "good", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Execute(context.Background(), "bad", nil); err == nil {
		t.Fatal("want the tool error back")
	}
	if m.calls != 2 || m.failures != 1 {
		t.Fatalf("metrics calls = %d failures = %d, want 2 and 1", m.calls, m.failures)
	}
}
