package interpreter

import (
	"context"
	"testing"

	"mercator-hq/callisto/pkg/pairs"
)

// recordModule returns a fixed result code and records each call.
type recordModule struct {
	name  string
	rcode Rcode
	calls *[]string
}

func (m *recordModule) Name() string { return m.name }

func (m *recordModule) Call(_ context.Context, result *Result, _ *ModuleContext, _ *Request) Action {
	*m.calls = append(*m.calls, m.name)
	*result = NewResult(m.rcode)
	return ActionCalculateResult
}

// funcModule runs fn as its Call.
type funcModule struct {
	name string
	fn   func(ctx context.Context, result *Result, req *Request) Action
}

func (m *funcModule) Name() string { return m.name }

func (m *funcModule) Call(ctx context.Context, result *Result, _ *ModuleContext, req *Request) Action {
	return m.fn(ctx, result, req)
}

func call(m Module) *ModuleCall {
	return &ModuleCall{
		Common: Common{Kind: TypeModule, Label: m.Name()},
		Module: m,
		Method: "test",
	}
}

// fixedKey is a key template with a preset value.
type fixedKey struct {
	unsigned bool
	value    uint64
	bytes    []byte
	err      error
}

func (k *fixedKey) IsUnsigned() bool { return k.unsigned }

func (k *fixedKey) FindUint(_ *pairs.Lists) (uint64, error) {
	return k.value, k.err
}

func (k *fixedKey) Expand(_ context.Context, _ *pairs.Lists) ([]byte, error) {
	return k.bytes, k.err
}

func (k *fixedKey) String() string { return "fixed" }

// seqRandom replays a fixed sequence of values.
type seqRandom struct {
	values []uint32
	next   int
}

func (s *seqRandom) Uint32() uint32 {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

func newTestInterpreter(t *testing.T, opts ...Option) *Interpreter {
	t.Helper()
	interp, err := New(DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return interp
}

// children builds n recording modules named A, B, C...
func children(calls *[]string, rcodes ...Rcode) []Instruction {
	out := make([]Instruction, len(rcodes))
	for i, rc := range rcodes {
		out[i] = call(&recordModule{name: string(rune('A' + i)), rcode: rc, calls: calls})
	}
	return out
}

func run(t *testing.T, interp *Interpreter, inst Instruction) (Result, *Request, error) {
	t.Helper()
	req := NewRequest("test", nil)
	res, state, err := interp.Execute(context.Background(), req, inst)
	if err == nil && state != RunDone {
		t.Fatalf("Execute() state = %v, want done", state)
	}
	return res, req, err
}
