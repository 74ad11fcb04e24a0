package interpreter

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{MaxStackDepth: 0}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestGroupPriorities(t *testing.T) {
	tests := []struct {
		name      string
		rcodes    []Rcode
		want      Rcode
		wantCalls int
	}{
		{name: "highest priority wins", rcodes: []Rcode{RcodeNoop, RcodeOK, RcodeNotFound}, want: RcodeOK, wantCalls: 3},
		{name: "updated beats ok", rcodes: []Rcode{RcodeOK, RcodeUpdated}, want: RcodeUpdated, wantCalls: 2},
		{name: "reject returns", rcodes: []Rcode{RcodeOK, RcodeReject, RcodeOK}, want: RcodeReject, wantCalls: 2},
		{name: "notset ignored", rcodes: []Rcode{RcodeNotSet, RcodeNoop}, want: RcodeNoop, wantCalls: 2},
		{name: "empty is noop", rcodes: nil, want: RcodeNoop, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interp := newTestInterpreter(t)
			var calls []string
			res, _, err := run(t, interp, NewGroup("test", children(&calls, tt.rcodes...)...))
			if err != nil {
				t.Fatal(err)
			}
			if res.Rcode != tt.want {
				t.Errorf("result = %v, want %v", res.Rcode, tt.want)
			}
			if len(calls) != tt.wantCalls {
				t.Errorf("calls = %v, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestStackOverflowFailsRequest(t *testing.T) {
	interp, err := New(Config{MaxStackDepth: 3})
	if err != nil {
		t.Fatal(err)
	}

	var inst Instruction = NewReturn(RcodeOK)
	for i := 0; i < 5; i++ {
		inst = NewGroup("nested", inst)
	}

	res, req, err := run(t, interp, inst)
	if !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("error = %v, want ErrStackOverflow", err)
	}
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Depth != 4 {
		t.Errorf("error = %#v, want a FrameError at depth 4", err)
	}
	if res.Rcode != RcodeFail {
		t.Errorf("result = %v, want fail", res.Rcode)
	}
	if req.Depth() != 0 {
		t.Errorf("depth = %d, want 0 after teardown", req.Depth())
	}
}

func TestPushFunctionStackOverflow(t *testing.T) {
	interp, err := New(Config{MaxStackDepth: 1})
	if err != nil {
		t.Fatal(err)
	}
	var action Action
	m := &funcModule{name: "deep", fn: func(_ context.Context, _ *Result, req *Request) Action {
		action = PushFunction(req, NoResult(func(context.Context, *Request, any) Action {
			return ActionCalculateResult
		}), Continuation{}, nil, 0, false, nil)
		return action
	}}

	if _, _, err := run(t, interp, call(m)); !errors.Is(err, ErrStackOverflow) {
		t.Errorf("error = %v, want ErrStackOverflow", err)
	}
	if action != ActionFail {
		t.Errorf("PushFunction() = %v, want fail", action)
	}
}

func TestNothingPushed(t *testing.T) {
	interp := newTestInterpreter(t)
	m := &funcModule{name: "liar", fn: func(context.Context, *Result, *Request) Action {
		return ActionPushedChild
	}}
	if _, _, err := run(t, interp, call(m)); !errors.Is(err, ErrNothingPushed) {
		t.Errorf("error = %v, want ErrNothingPushed", err)
	}
}

func TestModuleYieldIsRejected(t *testing.T) {
	interp := newTestInterpreter(t)
	m := &funcModule{name: "yielder", fn: func(context.Context, *Result, *Request) Action {
		return ActionYield
	}}
	if _, _, err := run(t, interp, call(m)); !errors.Is(err, ErrUnexpectedYield) {
		t.Errorf("error = %v, want ErrUnexpectedYield", err)
	}
}

// yieldingModule pushes a function frame that yields and records signals.
func yieldingModule(signals *[]Signal, mask Signal) *funcModule {
	return &funcModule{name: "wait", fn: func(_ context.Context, _ *Result, req *Request) Action {
		wait := func(_ context.Context, _ *Result, _ *Request, _ any) Action { return ActionYield }
		done := func(_ context.Context, result *Result, _ *Request, _ any) Action {
			*result = NewResult(RcodeOK)
			return ActionCalculateResult
		}
		onSignal := func(_ *Request, sig Signal, _ any) {
			*signals = append(*signals, sig)
		}
		return PushFunction(req, WithResult(wait), WithResult(done), onSignal, mask, false, nil)
	}}
}

func TestSignalDelivery(t *testing.T) {
	tests := []struct {
		name string
		mask Signal
		sig  Signal
		want []Signal
	}{
		{name: "delivered", sig: SignalDup, want: []Signal{SignalDup}},
		{name: "masked", mask: SignalDup, sig: SignalDup, want: nil},
		{name: "partially masked", mask: SignalDetach, sig: SignalDup | SignalDetach, want: []Signal{SignalDup}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interp := newTestInterpreter(t)
			var got []Signal
			req := NewRequest("sig", nil)
			if _, state, _ := interp.Execute(context.Background(), req, call(yieldingModule(&got, tt.mask))); state != RunYielded {
				t.Fatalf("state = %v, want yielded", state)
			}
			if err := interp.Signal(req, tt.sig); err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("signals = %v, want %v", got, tt.want)
			}

			// Non-stopping signals leave the request runnable.
			res, _, err := interp.Run(context.Background(), req)
			if err != nil || res.Rcode != RcodeOK {
				t.Errorf("Run() = %v, %v; want ok", res, err)
			}
		})
	}
}

func TestCancelTearsDownWithoutCallbacks(t *testing.T) {
	for _, sig := range []Signal{SignalCancel, SignalTimeout} {
		t.Run(sig.String(), func(t *testing.T) {
			interp := newTestInterpreter(t)
			var got []Signal
			req := NewRequest("cancel", nil)
			if _, state, _ := interp.Execute(context.Background(), req, NewGroup("s", call(yieldingModule(&got, 0)))); state != RunYielded {
				t.Fatalf("state = %v, want yielded", state)
			}

			if err := interp.Signal(req, sig); err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0] != sig {
				t.Errorf("signal handler saw %v", got)
			}

			res, state, err := interp.Run(context.Background(), req)
			if !errors.Is(err, ErrRequestCancelled) {
				t.Fatalf("Run() error = %v, want ErrRequestCancelled", err)
			}
			if state != RunDone || res.Rcode != RcodeFail || req.Depth() != 0 {
				t.Errorf("Run() = %v %v depth %d", res, state, req.Depth())
			}

			// Signals to a finished request are ignored.
			if err := interp.Signal(req, SignalCancel); err != nil {
				t.Errorf("Signal() after completion error = %v", err)
			}
			if len(got) != 1 {
				t.Errorf("handler called after teardown: %v", got)
			}
		})
	}
}

func TestReentrantRunFromSignalHandler(t *testing.T) {
	interp := newTestInterpreter(t)
	var reentryErr error

	m := &funcModule{name: "reenter", fn: func(_ context.Context, _ *Result, req *Request) Action {
		wait := func(_ context.Context, _ *Result, _ *Request, _ any) Action { return ActionYield }
		onSignal := func(r *Request, _ Signal, _ any) {
			_, _, reentryErr = interp.Run(context.Background(), r)
		}
		return PushFunction(req, WithResult(wait), WithResult(wait), onSignal, 0, false, nil)
	}}

	req := NewRequest("reenter", nil)
	if _, state, _ := interp.Execute(context.Background(), req, call(m)); state != RunYielded {
		t.Fatalf("state = %v, want yielded", state)
	}
	if err := interp.Signal(req, SignalDup); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(reentryErr, ErrReentrantRun) {
		t.Errorf("re-entrant Run() error = %v, want ErrReentrantRun", reentryErr)
	}
}

func TestTopFrameReturnsToCaller(t *testing.T) {
	interp := newTestInterpreter(t)
	var calls []string

	m := &funcModule{name: "nested", fn: func(_ context.Context, _ *Result, req *Request) Action {
		inner := func(_ context.Context, result *Result, _ *Request, _ any) Action {
			*result = NewResult(RcodeNotFound)
			return ActionCalculateResult
		}
		return PushFunction(req, WithResult(inner), Continuation{}, nil, 0, true, nil)
	}}
	root := NewGroup("s", append([]Instruction{call(m)}, children(&calls, RcodeOK)...)...)

	req := NewRequest("top", nil)
	ctx := context.Background()
	res, state, err := interp.Execute(ctx, req, root)
	if err != nil || state != RunReturned {
		t.Fatalf("Execute() = %v, %v, %v; want returned", res, state, err)
	}
	if res.Rcode != RcodeNotFound {
		t.Errorf("boundary result = %v, want notfound", res.Rcode)
	}
	if len(calls) != 0 {
		t.Errorf("frames below the boundary ran early: %v", calls)
	}

	res, state, err = interp.Run(ctx, req)
	if err != nil || state != RunDone {
		t.Fatalf("Run() = %v, %v, %v; want done", res, state, err)
	}
	if res.Rcode != RcodeOK {
		t.Errorf("result = %v, want ok", res.Rcode)
	}
	if !reflect.DeepEqual(calls, []string{"A"}) {
		t.Errorf("calls = %v", calls)
	}
}

func TestContextCancellation(t *testing.T) {
	interp := newTestInterpreter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []string
	_, _, err := interp.Execute(ctx, NewRequest("ctx", nil), NewGroup("s", children(&calls, RcodeOK)...))
	if !errors.Is(err, ErrRequestCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want cancellation", err)
	}
	if len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestContextDoneSignalsTopFrame(t *testing.T) {
	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		ctx   context.Context
		mask  Signal
		want  []Signal
		cause error
	}{
		{name: "cancelled", ctx: cancelled, want: []Signal{SignalCancel}, cause: context.Canceled},
		{name: "deadline", ctx: expired, want: []Signal{SignalTimeout}, cause: context.DeadlineExceeded},
		{name: "masked", ctx: cancelled, mask: SignalCancel, cause: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interp := newTestInterpreter(t)
			var got []Signal
			req := NewRequest("ctx", nil)
			if _, state, _ := interp.Execute(context.Background(), req, call(yieldingModule(&got, tt.mask))); state != RunYielded {
				t.Fatalf("state = %v, want yielded", state)
			}

			res, state, err := interp.Run(tt.ctx, req)
			if !errors.Is(err, ErrRequestCancelled) || !errors.Is(err, tt.cause) {
				t.Fatalf("Run() error = %v, want %v", err, tt.cause)
			}
			if state != RunDone || res.Rcode != RcodeFail || req.Depth() != 0 {
				t.Errorf("Run() = %v %v depth %d", res, state, req.Depth())
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("signals = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunStates(t *testing.T) {
	interp := newTestInterpreter(t)
	req := NewRequest("idle", nil)
	if _, _, err := interp.Run(context.Background(), req); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Run() on idle request error = %v, want ErrNoFrame", err)
	}

	var calls []string
	if _, _, err := interp.Execute(context.Background(), req, NewGroup("s", children(&calls, RcodeOK)...)); err != nil {
		t.Fatal(err)
	}
	res, state, err := interp.Run(context.Background(), req)
	if err != nil || state != RunDone || res.Rcode != RcodeOK {
		t.Errorf("Run() on finished request = %v %v %v", res, state, err)
	}
	if len(calls) != 1 {
		t.Errorf("finished request ran again: %v", calls)
	}
}

func TestFrameRecycling(t *testing.T) {
	interp := newTestInterpreter(t)
	var calls []string
	req := NewRequest("recycle", nil)

	for i := 0; i < 3; i++ {
		if _, _, err := interp.Execute(context.Background(), req, NewGroup("s", children(&calls, RcodeOK, RcodeOK)...)); err != nil {
			t.Fatal(err)
		}
	}
	if len(req.frames) != 2 {
		t.Errorf("frame slice grew to %d, want 2 reused frames", len(req.frames))
	}
	for _, f := range req.frames {
		if f.state != nil || f.instruction != nil {
			t.Errorf("popped frame kept state: %v", f)
		}
	}
}

func TestParseRcodeAndActions(t *testing.T) {
	for _, name := range RcodeNames() {
		rc, err := ParseRcode(name)
		if err != nil || rc.String() != name {
			t.Errorf("ParseRcode(%q) = %v, %v", name, rc, err)
		}
	}
	if _, err := ParseRcode("maybe"); !errors.Is(err, ErrUnknownRcode) {
		t.Errorf("ParseRcode(maybe) error = %v", err)
	}

	tests := []struct {
		in      string
		want    ModAction
		wantErr bool
	}{
		{in: "return", want: ModActionReturn},
		{in: "Continue", want: Priority(1)},
		{in: "5", want: Priority(5)},
		{in: "0", wantErr: true},
		{in: "65", wantErr: true},
		{in: "later", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseModAction(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseModAction(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseModAction(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	red := DefaultRedundantActions()
	if red.ShouldReturn(RcodeFail) || !red.ShouldReturn(RcodeOK) || red.ShouldReturn(RcodeNotSet) {
		t.Error("unexpected default redundant actions")
	}
}
