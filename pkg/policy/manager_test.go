package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/callisto/pkg/compiler"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/interpreter"
	"mercator-hq/callisto/pkg/telemetry/tracing"
)

const onePolicy = `
section "accounting" {
  return {
    rcode = "ok"
  }
}
`

const twoPolicy = `
section "accounting" {
  return {
    rcode = "ok"
  }
}

section "authorize" {
  return {
    rcode = "updated"
  }
}
`

type reloads struct {
	mu     sync.Mutex
	events []bool
	last   int
}

func (r *reloads) record(success bool, sections int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, success)
	r.last = sections
}

func (r *reloads) snapshot() ([]bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...), r.last
}

func writePolicy(t *testing.T, path, src string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newManager(t *testing.T, src string, opts ...Option) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.hcl")
	writePolicy(t, path, src)
	cfg := &config.PolicyConfig{File: path, Debounce: 20 * time.Millisecond}
	m, err := NewManager(cfg, compiler.New(nil, nil), opts...)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m, path
}

func TestNewManagerErrors(t *testing.T) {
	c := compiler.New(nil, nil)
	tests := []struct {
		name     string
		cfg      *config.PolicyConfig
		compiler Compiler
	}{
		{name: "nil config", cfg: nil, compiler: c},
		{name: "nil compiler", cfg: &config.PolicyConfig{File: "p.hcl"}, compiler: nil},
		{name: "empty file", cfg: &config.PolicyConfig{}, compiler: c},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.cfg, tt.compiler); err == nil {
				t.Error("NewManager() error = nil, want error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	var r reloads
	m, path := newManager(t, twoPolicy, WithReloadHook(r.record))

	if _, err := m.Section("accounting"); !errors.Is(err, ErrNoProgram) {
		t.Fatalf("Section() before Load error = %v, want ErrNoProgram", err)
	}

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	prog := m.Program()
	if prog == nil || prog.Source != path {
		t.Fatalf("Program() = %+v", prog)
	}
	root, err := m.Section("authorize")
	if err != nil {
		t.Fatalf("Section() error = %v", err)
	}
	if ret, ok := root.(*interpreter.Group); !ok || len(ret.Children) != 1 {
		t.Errorf("Section(authorize) = %#v", root)
	}
	if _, err := m.Section("missing"); err == nil {
		t.Error("Section(missing) error = nil, want error")
	}

	st := m.Status()
	if len(st.Sections) != 2 || st.Sections[0] != "accounting" || st.Sections[1] != "authorize" {
		t.Errorf("Status().Sections = %v", st.Sections)
	}
	if st.LastError != nil || st.LoadedAt.IsZero() {
		t.Errorf("Status() = %+v", st)
	}

	events, sections := r.snapshot()
	if len(events) != 1 || !events[0] || sections != 2 {
		t.Errorf("reload hook = %v/%d, want [true]/2", events, sections)
	}
}

func TestLoadKeepsPreviousProgram(t *testing.T) {
	var r reloads
	m, path := newManager(t, onePolicy, WithReloadHook(r.record))
	if err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := m.Program()

	writePolicy(t, path, `section "accounting" {`)
	err := m.Load(context.Background())
	var cerr *compiler.CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("Load() error = %v, want *compiler.CompileError", err)
	}

	if m.Program() != before {
		t.Error("failed reload replaced the active program")
	}
	if st := m.Status(); st.LastError == nil || len(st.Sections) != 1 {
		t.Errorf("Status() = %+v", st)
	}
	if events, _ := r.snapshot(); len(events) != 2 || events[1] {
		t.Errorf("reload hook = %v, want [true false]", events)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := &config.PolicyConfig{File: filepath.Join(t.TempDir(), "absent.hcl")}
	m, err := NewManager(cfg, compiler.New(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Load(context.Background()); err == nil {
		t.Fatal("Load() error = nil, want error")
	}
	if m.Program() != nil {
		t.Error("Program() != nil after failed first load")
	}
}

func TestLoadSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	m, path := newManager(t, twoPolicy, WithTracer(tp.Tracer("test")))
	if err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != tracing.SpanCompile {
		t.Errorf("span name = %q, want %q", spans[0].Name, tracing.SpanCompile)
	}
	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	if attrs["callisto.policy.file"] != path {
		t.Errorf("policy.file attribute = %v", attrs["callisto.policy.file"])
	}
	if attrs["callisto.policy.sections"] != int64(2) {
		t.Errorf("policy.sections attribute = %v", attrs["callisto.policy.sections"])
	}
}

func TestWatchDisabled(t *testing.T) {
	m, _ := newManager(t, onePolicy)
	if err := m.Watch(context.Background()); err == nil {
		t.Error("Watch() error = nil with watching disabled")
	}
}

func TestWatchReloads(t *testing.T) {
	m, path := newManager(t, onePolicy)
	m.config.Watch = true
	if err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// The watch is registered asynchronously; keep rewriting until the
	// change is picked up.
	deadline := time.Now().Add(5 * time.Second)
	for len(m.Program().Sections) != 2 {
		if time.Now().After(deadline) {
			t.Fatal("policy was not reloaded")
		}
		writePolicy(t, path, twoPolicy)
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}
