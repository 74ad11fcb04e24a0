package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/interpreter"
	"mercator-hq/callisto/pkg/telemetry/tracing"
)

type sectionMap map[string]interpreter.Instruction

func (m sectionMap) Section(name string) (interpreter.Instruction, error) {
	inst, ok := m[name]
	if !ok {
		return nil, errors.New("no such section")
	}
	return inst, nil
}

// yieldModule suspends once, resumes from another goroutine and returns ok.
type yieldModule struct{}

func (yieldModule) Name() string { return "yield" }

func (yieldModule) Call(_ context.Context, _ *interpreter.Result, _ *interpreter.ModuleContext, req *interpreter.Request) interpreter.Action {
	return interpreter.PushFunction(req,
		interpreter.NoResult(func(context.Context, *interpreter.Request, any) interpreter.Action {
			go func() {
				time.Sleep(time.Millisecond)
				req.Resume()
			}()
			return interpreter.ActionYield
		}),
		interpreter.WithResult(func(_ context.Context, result *interpreter.Result, _ *interpreter.Request, _ any) interpreter.Action {
			*result = interpreter.NewResult(interpreter.RcodeOK)
			return interpreter.ActionCalculateResult
		}),
		nil, 0, false, nil)
}

// stallModule yields and never resumes. It records the signals it gets.
type stallModule struct {
	mu      sync.Mutex
	signals []interpreter.Signal
}

func (*stallModule) Name() string { return "stall" }

func (m *stallModule) Call(_ context.Context, _ *interpreter.Result, _ *interpreter.ModuleContext, req *interpreter.Request) interpreter.Action {
	yield := func(context.Context, *interpreter.Request, any) interpreter.Action {
		return interpreter.ActionYield
	}
	return interpreter.PushFunction(req,
		interpreter.NoResult(yield),
		interpreter.NoResult(yield),
		func(_ *interpreter.Request, sig interpreter.Signal, _ any) {
			m.mu.Lock()
			m.signals = append(m.signals, sig)
			m.mu.Unlock()
		},
		0, false, nil)
}

func (m *stallModule) received() []interpreter.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interpreter.Signal(nil), m.signals...)
}

type countingMetrics struct {
	started, yielded, finished atomic.Int64
	mu                         sync.Mutex
	rcodes                     []string
}

func (c *countingMetrics) RequestStarted()       { c.started.Add(1) }
func (c *countingMetrics) RequestYielded(string) { c.yielded.Add(1) }
func (c *countingMetrics) RequestFinished(_, rcode string, _ time.Duration) {
	c.finished.Add(1)
	c.mu.Lock()
	c.rcodes = append(c.rcodes, rcode)
	c.mu.Unlock()
}

func moduleCall(m interpreter.Module) *interpreter.ModuleCall {
	return &interpreter.ModuleCall{
		Common: interpreter.Common{Kind: interpreter.TypeModule, Label: m.Name()},
		Module: m,
		Method: "accounting",
	}
}

func newScheduler(t *testing.T, sections sectionMap, timeout time.Duration, opts ...Option) *Scheduler {
	t.Helper()
	interp, err := interpreter.New(interpreter.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.SchedulerConfig{Workers: 4, QueueSize: 16, RequestTimeout: timeout}
	s, err := New(interp, sections, cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func wait(t *testing.T, out <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-out:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome within 5s")
		return Outcome{}
	}
}

func TestNewErrors(t *testing.T) {
	interp, err := interpreter.New(interpreter.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	sections := sectionMap{}
	tests := []struct {
		name     string
		interp   *interpreter.Interpreter
		sections Sections
		cfg      *config.SchedulerConfig
	}{
		{"nil interpreter", nil, sections, &config.SchedulerConfig{Workers: 1, QueueSize: 1}},
		{"nil sections", interp, nil, &config.SchedulerConfig{Workers: 1, QueueSize: 1}},
		{"nil config", interp, sections, nil},
		{"no workers", interp, sections, &config.SchedulerConfig{Workers: 0, QueueSize: 1}},
		{"no queue", interp, sections, &config.SchedulerConfig{Workers: 1, QueueSize: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.interp, tt.sections, tt.cfg); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	metrics := &countingMetrics{}
	s := newScheduler(t, sectionMap{
		"accounting": interpreter.NewGroup("accounting", interpreter.NewReturn(interpreter.RcodeUpdated)),
	}, 0, WithMetrics(metrics))

	out, err := s.Submit(context.Background(), "accounting", NewRequest(nil))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	o := wait(t, out)

	if o.Err != nil {
		t.Fatalf("Outcome.Err = %v", o.Err)
	}
	if o.Result.Rcode != interpreter.RcodeUpdated {
		t.Errorf("Outcome.Result = %v, want updated", o.Result)
	}
	if o.Section != "accounting" || o.Yields != 0 {
		t.Errorf("Outcome = %+v", o)
	}
	if _, err := uuid.Parse(o.RequestID); err != nil {
		t.Errorf("RequestID %q is not a uuid: %v", o.RequestID, err)
	}
	if metrics.started.Load() != 1 || metrics.finished.Load() != 1 {
		t.Errorf("metrics started/finished = %d/%d, want 1/1", metrics.started.Load(), metrics.finished.Load())
	}
	if s.Active() != 0 {
		t.Errorf("Active() = %d, want 0", s.Active())
	}
}

func TestSubmitKeepsRequestID(t *testing.T) {
	s := newScheduler(t, sectionMap{"s": interpreter.NewReturn(interpreter.RcodeOK)}, 0)

	out, err := s.Submit(context.Background(), "s", interpreter.NewRequest("req-1", nil))
	if err != nil {
		t.Fatal(err)
	}
	if o := wait(t, out); o.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", o.RequestID)
	}

	req := interpreter.NewRequest("", nil)
	out, err = s.Submit(context.Background(), "s", req)
	if err != nil {
		t.Fatal(err)
	}
	if o := wait(t, out); o.RequestID == "" || o.RequestID != req.ID {
		t.Errorf("RequestID = %q, request ID = %q", o.RequestID, req.ID)
	}
}

func TestSubmitErrors(t *testing.T) {
	s := newScheduler(t, sectionMap{"s": interpreter.NewReturn(interpreter.RcodeOK)}, 0)

	if _, err := s.Submit(context.Background(), "missing", NewRequest(nil)); err == nil {
		t.Error("Submit(missing section) error = nil")
	}
	if _, err := s.Submit(context.Background(), "s", nil); err == nil {
		t.Error("Submit(nil request) error = nil")
	}

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := s.Submit(context.Background(), "s", NewRequest(nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrClosed", err)
	}
}

func TestYieldedRequestsResume(t *testing.T) {
	metrics := &countingMetrics{}
	s := newScheduler(t, sectionMap{
		"accounting": interpreter.NewGroup("accounting", moduleCall(yieldModule{}), moduleCall(yieldModule{})),
	}, 0, WithMetrics(metrics))

	const n = 50
	outs := make([]<-chan Outcome, n)
	for i := range outs {
		out, err := s.Submit(context.Background(), "accounting", NewRequest(nil))
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		outs[i] = out
	}

	for i, out := range outs {
		o := wait(t, out)
		if o.Err != nil || o.Result.Rcode != interpreter.RcodeOK {
			t.Errorf("request %d: outcome = %+v", i, o)
		}
		if o.Yields != 2 {
			t.Errorf("request %d: yields = %d, want 2", i, o.Yields)
		}
	}
	if got := metrics.yielded.Load(); got != 2*n {
		t.Errorf("yields recorded = %d, want %d", got, 2*n)
	}
}

func TestRequestTimeout(t *testing.T) {
	stall := &stallModule{}
	s := newScheduler(t, sectionMap{"s": moduleCall(stall)}, 50*time.Millisecond)

	out, err := s.Submit(context.Background(), "s", NewRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	o := wait(t, out)

	if !errors.Is(o.Err, interpreter.ErrRequestCancelled) {
		t.Errorf("Outcome.Err = %v, want ErrRequestCancelled", o.Err)
	}
	if o.Result.Rcode != interpreter.RcodeFail {
		t.Errorf("Outcome.Result = %v, want fail", o.Result)
	}
	sigs := stall.received()
	if len(sigs) != 1 || sigs[0] != interpreter.SignalTimeout {
		t.Errorf("signals = %v, want [timeout]", sigs)
	}
}

func TestContextCancel(t *testing.T) {
	stall := &stallModule{}
	s := newScheduler(t, sectionMap{"s": moduleCall(stall)}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	out, err := s.Submit(ctx, "s", NewRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	o := wait(t, out)
	if !errors.Is(o.Err, interpreter.ErrRequestCancelled) {
		t.Errorf("Outcome.Err = %v, want ErrRequestCancelled", o.Err)
	}
	if o.Result.Rcode != interpreter.RcodeFail {
		t.Errorf("Outcome.Result = %v, want fail", o.Result)
	}
}

func TestCloseCancelsActiveRequests(t *testing.T) {
	s := newScheduler(t, sectionMap{"s": moduleCall(&stallModule{})}, 0)

	out, err := s.Submit(context.Background(), "s", NewRequest(nil))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	o := wait(t, out)
	if !errors.Is(o.Err, interpreter.ErrRequestCancelled) {
		t.Errorf("Outcome.Err = %v, want ErrRequestCancelled", o.Err)
	}
	if s.Active() != 0 {
		t.Errorf("Active() = %d after Close", s.Active())
	}
}

func TestRequestSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := newScheduler(t, sectionMap{
		"accounting": interpreter.NewGroup("accounting", moduleCall(yieldModule{})),
	}, 0, WithTracer(tp.Tracer("test")))

	req := NewRequest(nil)
	out, err := s.Submit(context.Background(), "accounting", req)
	if err != nil {
		t.Fatal(err)
	}
	wait(t, out)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name != tracing.SpanRequest {
		t.Errorf("span name = %q", span.Name)
	}
	attrs := map[string]any{}
	for _, kv := range span.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	want := map[string]any{
		"callisto.request.id": req.ID,
		"callisto.section":    "accounting",
		"callisto.rcode":      "ok",
		"callisto.yields":     int64(1),
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attribute %s = %v, want %v", k, attrs[k], v)
		}
	}
}
