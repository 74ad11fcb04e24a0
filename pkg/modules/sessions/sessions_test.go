package sessions

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/callisto/pkg/dict"
	"mercator-hq/callisto/pkg/interpreter"
	"mercator-hq/callisto/pkg/modules"
	"mercator-hq/callisto/pkg/pairs"
)

const testSettings = `
trim_count: 2
expiry: 1h
sections:
  Start:
    key: "${request.NAS-Identifier}:${request.Acct-Session-Id}"
    value: "start ${request.User-Name}"
  Interim-Update:
    key: "${request.NAS-Identifier}:${request.Acct-Session-Id}"
    value: "interim ${request.Acct-Session-Time}"
`

func newModule(t *testing.T, settings string) *Module {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(settings), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	node := doc.Content[0]
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "database"},
		&yaml.Node{Kind: yaml.ScalarNode, Value: filepath.Join(t.TempDir(), "sessions.db")},
	)

	m, err := New("sessions", node, modules.Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func accounting(t *testing.T, status string, fields map[string]string) *pairs.Lists {
	t.Helper()
	d := dict.Default()
	lists := pairs.NewLists()
	if status != "" {
		fields["Acct-Status-Type"] = status
	}
	for name, text := range fields {
		attr, ok := d.Lookup(name)
		if !ok {
			t.Fatalf("unknown attribute %s", name)
		}
		v, err := pairs.ParseValue(attr, text)
		if err != nil {
			t.Fatalf("ParseValue(%s) error = %v", name, err)
		}
		if err := lists.Request.Add(attr, v); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}
	return lists
}

// execute runs the module call to completion, resuming after each yield.
func execute(t *testing.T, m *Module, lists *pairs.Lists) interpreter.Result {
	t.Helper()
	interp, err := interpreter.New(interpreter.DefaultConfig())
	if err != nil {
		t.Fatalf("interpreter.New() error = %v", err)
	}

	resumed := make(chan struct{}, 1)
	req := interpreter.NewRequest("acct", lists)
	req.SetResumeHook(func() {
		select {
		case resumed <- struct{}{}:
		default:
		}
	})

	inst := &interpreter.ModuleCall{
		Common: interpreter.Common{Kind: interpreter.TypeModule, Label: m.Name()},
		Module: m,
		Method: "accounting",
	}
	res, state, err := interp.Execute(context.Background(), req, inst)
	for err == nil && state == interpreter.RunYielded {
		select {
		case <-resumed:
		case <-time.After(5 * time.Second):
			t.Fatal("request was never resumed")
		}
		res, state, err = interp.Run(context.Background(), req)
	}
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func TestCallRecordsSessions(t *testing.T) {
	m := newModule(t, testSettings)
	ctx := context.Background()

	fields := func() map[string]string {
		return map[string]string{
			"NAS-Identifier":    "nas1",
			"Acct-Session-Id":   "abc",
			"User-Name":         "bob",
			"Acct-Session-Time": "60",
		}
	}

	res := execute(t, m, accounting(t, "Start", fields()))
	if res.Rcode != interpreter.RcodeOK {
		t.Fatalf("Start rcode = %v, want ok", res.Rcode)
	}

	got, err := m.Sessions(ctx, "nas1:abc")
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(got) != 1 || got[0].Value != "start bob" || got[0].Status != "Start" {
		t.Fatalf("Sessions() = %+v, want one start row", got)
	}

	for i := 0; i < 3; i++ {
		if res := execute(t, m, accounting(t, "Interim-Update", fields())); res.Rcode != interpreter.RcodeOK {
			t.Fatalf("Interim-Update rcode = %v, want ok", res.Rcode)
		}
	}

	got, err = m.Sessions(ctx, "nas1:abc")
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Sessions()) = %d, want 2 after trimming", len(got))
	}
	for _, s := range got {
		if s.Status != "Interim-Update" {
			t.Errorf("row status = %q, want only interim rows to survive", s.Status)
		}
	}
}

func TestCallNoop(t *testing.T) {
	m := newModule(t, testSettings)

	tests := []struct {
		name   string
		status string
	}{
		{name: "no status", status: ""},
		{name: "status without section", status: "Stop"},
		{name: "status without name", status: "99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lists := accounting(t, tt.status, map[string]string{"NAS-Identifier": "nas1"})
			if res := execute(t, m, lists); res.Rcode != interpreter.RcodeNoop {
				t.Errorf("rcode = %v, want noop", res.Rcode)
			}
		})
	}
}

func TestCallMissingKeyAttribute(t *testing.T) {
	m := newModule(t, testSettings)

	lists := accounting(t, "Start", map[string]string{"User-Name": "bob"})
	if res := execute(t, m, lists); res.Rcode != interpreter.RcodeFail {
		t.Errorf("rcode = %v, want fail", res.Rcode)
	}
}

func TestCallStackFull(t *testing.T) {
	m := newModule(t, testSettings)
	interp, err := interpreter.New(interpreter.Config{MaxStackDepth: 1})
	if err != nil {
		t.Fatal(err)
	}

	lists := accounting(t, "Start", map[string]string{
		"NAS-Identifier":  "nas1",
		"Acct-Session-Id": "deep",
		"User-Name":       "bob",
	})
	inst := &interpreter.ModuleCall{
		Common: interpreter.Common{Kind: interpreter.TypeModule, Label: m.Name()},
		Module: m,
		Method: "accounting",
	}
	res, _, err := interp.Execute(context.Background(), interpreter.NewRequest("deep", lists), inst)
	if !errors.Is(err, interpreter.ErrStackOverflow) || res.Rcode != interpreter.RcodeFail {
		t.Fatalf("Execute() = %v, %v; want fail with ErrStackOverflow", res, err)
	}
	if n := m.InFlight(); n != 0 {
		t.Errorf("InFlight() = %d after a failed push, want 0", n)
	}
}

func TestCallReleasesJob(t *testing.T) {
	m := newModule(t, testSettings)

	lists := accounting(t, "Start", map[string]string{
		"NAS-Identifier":  "nas1",
		"Acct-Session-Id": "s1",
		"User-Name":       "bob",
	})
	if res := execute(t, m, lists); res.Rcode != interpreter.RcodeOK {
		t.Fatalf("rcode = %v, want ok", res.Rcode)
	}
	if n := m.InFlight(); n != 0 {
		t.Errorf("InFlight() = %d after completion, want 0", n)
	}
}

func TestPurge(t *testing.T) {
	m := newModule(t, testSettings)
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }

	lists := accounting(t, "Start", map[string]string{
		"NAS-Identifier":  "nas1",
		"Acct-Session-Id": "old",
		"User-Name":       "bob",
	})
	if res := execute(t, m, lists); res.Rcode != interpreter.RcodeOK {
		t.Fatalf("rcode = %v, want ok", res.Rcode)
	}

	m.now = func() time.Time { return start.Add(30 * time.Minute) }
	if n, err := m.Purge(ctx); err != nil || n != 0 {
		t.Fatalf("Purge() = %d, %v, want nothing purged before expiry", n, err)
	}

	m.now = func() time.Time { return start.Add(2 * time.Hour) }
	n, err := m.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings string
	}{
		{name: "unknown status", settings: "sections:\n  Bogus:\n    key: x\n    value: y\n"},
		{name: "missing key", settings: "sections:\n  Start:\n    value: y\n"},
		{name: "bad template", settings: "sections:\n  Start:\n    key: \"${request.User-Name\"\n    value: y\n"},
		{name: "bad schedule", settings: "purge_schedule: every day\n"},
		{name: "unknown field", settings: "trim: 3\n"},
		{name: "zero expiry", settings: "expiry: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc yaml.Node
			if err := yaml.Unmarshal([]byte(tt.settings+"database: "+filepath.Join(t.TempDir(), "s.db")+"\n"), &doc); err != nil {
				t.Fatalf("yaml.Unmarshal() error = %v", err)
			}
			if m, err := New("s", doc.Content[0], modules.Deps{}); err == nil {
				m.Close()
				t.Fatal("New() error = nil, want error")
			}
		})
	}
}

func TestCancelSignal(t *testing.T) {
	m := newModule(t, testSettings)
	interp, err := interpreter.New(interpreter.DefaultConfig())
	if err != nil {
		t.Fatalf("interpreter.New() error = %v", err)
	}

	req := interpreter.NewRequest("acct", accounting(t, "Start", map[string]string{
		"NAS-Identifier":  "nas1",
		"Acct-Session-Id": "abc",
		"User-Name":       "bob",
	}))
	inst := &interpreter.ModuleCall{
		Common: interpreter.Common{Kind: interpreter.TypeModule, Label: m.Name()},
		Module: m,
		Method: "accounting",
	}

	_, state, err := interp.Execute(context.Background(), req, inst)
	if err != nil || state != interpreter.RunYielded {
		t.Fatalf("Execute() = %v, %v, want yielded", state, err)
	}

	if err := interp.Signal(req, interpreter.SignalCancel); err != nil {
		t.Fatalf("Signal() error = %v", err)
	}
	res, _, err := interp.Run(context.Background(), req)
	if !errors.Is(err, interpreter.ErrRequestCancelled) {
		t.Errorf("Run() error = %v, want %v", err, interpreter.ErrRequestCancelled)
	}
	if res.Rcode != interpreter.RcodeFail {
		t.Errorf("Run() rcode = %v, want fail", res.Rcode)
	}
}
