package modules

import (
	"context"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"mercator-hq/callisto/pkg/interpreter"
)

type testModule struct {
	name    string
	value   string
	closed  *[]string
	started *[]string
}

func (m *testModule) Name() string { return m.name }

func (m *testModule) Call(_ context.Context, result *interpreter.Result, _ *interpreter.ModuleContext, _ *interpreter.Request) interpreter.Action {
	*result = interpreter.NewResult(interpreter.RcodeOK)
	return interpreter.ActionCalculateResult
}

func (m *testModule) Close() error {
	*m.closed = append(*m.closed, m.name)
	return nil
}

func (m *testModule) Start(context.Context) error {
	*m.started = append(*m.started, m.name)
	return nil
}

var closed, started []string

func init() {
	Register("test", func(name string, settings *yaml.Node, _ Deps) (interpreter.Module, error) {
		var cfg struct {
			Value string `yaml:"value"`
			Fail  bool   `yaml:"fail"`
		}
		if err := DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		if cfg.Fail {
			return nil, errors.New("asked to fail")
		}
		return &testModule{name: name, value: cfg.Value, closed: &closed, started: &started}, nil
	})
}

func instances(t *testing.T, text string) map[string]Instance {
	t.Helper()
	var out map[string]Instance
	if err := yaml.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	return out
}

func TestLoad(t *testing.T) {
	closed, started = nil, nil

	set, err := Load(instances(t, `
b:
  type: test
  settings:
    value: two
a:
  type: test
`), Deps{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	names := set.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", names)
	}
	m, ok := set.Module("b")
	if !ok {
		t.Fatal("Module(b) not found")
	}
	if got := m.(*testModule).value; got != "two" {
		t.Errorf("value = %q, want two", got)
	}
	if _, ok := set.Module("c"); ok {
		t.Error("Module(c) found")
	}

	if err := set.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(started) != 2 {
		t.Errorf("started = %v, want both modules", started)
	}
	if err := set.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(closed) != 2 {
		t.Errorf("closed = %v, want both modules", closed)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr error
	}{
		{
			name:    "unknown type",
			config:  "a:\n  type: nope\n",
			wantErr: ErrUnknownType,
		},
		{
			name:   "unknown setting",
			config: "a:\n  type: test\n  settings:\n    valu: x\n",
		},
		{
			name:   "factory failure",
			config: "a:\n  type: test\n  settings:\n    fail: true\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closed = nil
			_, err := Load(instances(t, tt.config), Deps{})
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register() did not panic on duplicate type")
		}
	}()
	Register("test", nil)
}

func TestNewSet(t *testing.T) {
	closed = nil
	set := NewSet(&testModule{name: "x", closed: &closed}, &testModule{name: "x", closed: &closed})
	if got := set.Names(); len(got) != 1 {
		t.Errorf("Names() = %v, want one entry", got)
	}
}
