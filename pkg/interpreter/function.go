package interpreter

import (
	"context"
	"reflect"
	"runtime"
	"strings"
)

// CallShape selects how a continuation is called.
type CallShape uint8

const (
	// ShapeWithResult continuations write the frame's result.
	ShapeWithResult CallShape = iota + 1

	// ShapeNoResult continuations leave no trace in the caller's result.
	ShapeNoResult
)

func (s CallShape) String() string {
	switch s {
	case ShapeWithResult:
		return "with-result"
	case ShapeNoResult:
		return "no-result"
	}
	return "none"
}

// FuncWithResult is a continuation that produces a result.
type FuncWithResult func(ctx context.Context, result *Result, req *Request, uctx any) Action

// FuncNoResult is a continuation that does not produce a result.
type FuncNoResult func(ctx context.Context, req *Request, uctx any) Action

// FunctionSignal handles a signal delivered to a function frame. It must
// only arrange cleanup (cancel outstanding work, mark state) and return.
type FunctionSignal func(req *Request, sig Signal, uctx any)

// Continuation is one of the two callback shapes a function frame can run.
// The zero value is "no callback".
type Continuation struct {
	shape      CallShape
	withResult FuncWithResult
	noResult   FuncNoResult
	name       string
}

// WithResult wraps fn as a result producing continuation.
func WithResult(fn FuncWithResult) Continuation {
	if fn == nil {
		return Continuation{}
	}
	return Continuation{shape: ShapeWithResult, withResult: fn, name: funcName(fn)}
}

// NoResult wraps fn as a continuation without a result.
func NoResult(fn FuncNoResult) Continuation {
	if fn == nil {
		return Continuation{}
	}
	return Continuation{shape: ShapeNoResult, noResult: fn, name: funcName(fn)}
}

// IsZero reports whether c holds no callback.
func (c Continuation) IsZero() bool {
	return c.shape == 0
}

// Shape returns the call shape.
func (c Continuation) Shape() CallShape {
	return c.shape
}

// Name returns the debug name of the callback.
func (c Continuation) Name() string {
	return c.name
}

func (c Continuation) call(ctx context.Context, result *Result, req *Request, uctx any) Action {
	switch c.shape {
	case ShapeWithResult:
		return c.withResult(ctx, result, req, uctx)
	case ShapeNoResult:
		return c.noResult(ctx, req, uctx)
	}
	return ActionFail
}

func funcName(fn any) string {
	name := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// functionState is the state of a function frame.
type functionState struct {
	up     Continuation
	repeat Continuation

	signal     FunctionSignal
	signalName string

	// uctx belongs to the caller; it is passed back, never inspected.
	uctx any

	entered bool
}

func init() {
	registerOp(TypeFunction, &op{
		name:      "function",
		interpret: functionProcess,
		signal:    functionFrameSignal,
		newState:  func() any { return &functionState{} },
	})
}

func functionProcess(ctx context.Context, result *Result, req *Request, f *Frame) Action {
	fs, ok := f.state.(*functionState)
	if !ok {
		req.setErr(&FrameError{Instruction: f.instruction.DebugName(), Depth: f.depth, Cause: ErrNotFunctionFrame})
		return ActionFail
	}

	c := fs.up
	if fs.entered {
		c = fs.repeat
	}
	fs.entered = true
	if c.IsZero() {
		req.setErr(&FrameError{Instruction: f.instruction.DebugName(), Depth: f.depth, Cause: ErrMissingRepeat})
		return ActionFail
	}

	req.logger.Debug("calling function", "callback", c.Name(), "shape", c.shape.String(), "depth", f.depth)
	action := c.call(ctx, result, req, fs.uctx)

	switch action {
	case ActionPushedChild, ActionYield:
		// fs.repeat is re-read here; the callback may have replaced it.
		if fs.repeat.IsZero() {
			req.setErr(&FrameError{Instruction: c.Name(), Depth: f.depth, Cause: ErrMissingRepeat})
			return ActionFail
		}
		if action == ActionPushedChild {
			f.repeatable = true
		}
		return action

	case ActionFail:
		if c.shape == ShapeNoResult {
			*result = NewResult(RcodeNotSet)
			return ActionCalculateResult
		}
		*result = NewResult(RcodeFail)
		return ActionCalculateResult

	case ActionCalculateResult:
		if c.shape == ShapeNoResult {
			*result = NewResult(RcodeNotSet)
		}
		return ActionCalculateResult
	}
	return action
}

// functionFrameSignal runs the frame's signal callback. Frames that were
// torn down have no state and are skipped.
func functionFrameSignal(req *Request, f *Frame, sig Signal) {
	fs, ok := f.state.(*functionState)
	if !ok || fs.signal == nil {
		return
	}
	req.logger.Debug("calling function signal", "callback", fs.signalName, "signal", sig.String())
	fs.signal(req, sig, fs.uctx)
}

// PushFunction pushes a function frame. up runs when the frame first
// becomes topmost; repeat runs after a child pushed by the frame completes
// or after the frame yields and is resumed (it may be the same callback as
// up, and may be zero if the frame never suspends). signal, if set, is
// called for signals not in mask while the frame is topmost. topFrame makes
// Run return to its caller when the frame completes. uctx is handed to every
// callback unchanged.
//
// It returns ActionPushedChild, or ActionFail if the stack is full. Callers
// propagate the returned action.
func PushFunction(req *Request, up, repeat Continuation, signal FunctionSignal, mask Signal, topFrame bool, uctx any) Action {
	f, err := req.push(functionInstruction, topFrame)
	if err != nil {
		return ActionFail
	}

	fs := f.state.(*functionState)
	fs.up = up
	fs.repeat = repeat
	fs.signal = signal
	if signal != nil {
		fs.signalName = funcName(signal)
	}
	fs.uctx = uctx
	f.sigmask = mask
	return ActionPushedChild
}

func topFunction(req *Request) (*Frame, *functionState, error) {
	f := req.top()
	if f == nil {
		return nil, nil, ErrNoFrame
	}
	fs, ok := f.state.(*functionState)
	if !ok {
		return nil, nil, ErrNotFunctionFrame
	}
	return f, fs, nil
}

// SetFunctionSignal replaces the signal callback and mask of the topmost
// frame, which must be a function frame.
func SetFunctionSignal(req *Request, signal FunctionSignal, mask Signal) error {
	f, fs, err := topFunction(req)
	if err != nil {
		return err
	}
	fs.signal = signal
	fs.signalName = ""
	if signal != nil {
		fs.signalName = funcName(signal)
	}
	f.sigmask = mask
	return nil
}

// SetFunctionRepeat replaces the repeat callback of the topmost frame,
// which must be a function frame. The continuation's call shape decides how
// it is called when the frame is resumed.
func SetFunctionRepeat(req *Request, repeat Continuation) error {
	_, fs, err := topFunction(req)
	if err != nil {
		return err
	}
	fs.repeat = repeat
	return nil
}

// ClearFunction pops the topmost frame, which must be a function frame,
// without calling any of its callbacks. It is meant for code that pushed a
// function frame and then decided not to return ActionPushedChild; it must
// not be called from the frame's own callbacks.
func ClearFunction(req *Request) error {
	if _, _, err := topFunction(req); err != nil {
		return err
	}
	req.pop()
	return nil
}
