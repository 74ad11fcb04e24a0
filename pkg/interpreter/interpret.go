package interpreter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrRequestActive is returned by Start for a request that is still running.
var ErrRequestActive = errors.New("request already has an active stack")

// Interpreter advances requests through compiled instructions. It holds no
// per request state and is safe for concurrent use.
type Interpreter struct {
	config   Config
	logger   *slog.Logger
	random   RandomSource
	observer Observer
}

// New creates an interpreter.
func New(cfg Config, opts ...Option) (*Interpreter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	i := &Interpreter{
		config:   cfg,
		logger:   slog.Default(),
		random:   globalRandom{},
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Start pushes inst as the request's bottom frame. The frame is a top frame,
// so Run returns once it completes.
func (i *Interpreter) Start(req *Request, inst Instruction) error {
	req.mu.Lock()
	defer req.mu.Unlock()

	if req.depth != 0 {
		return ErrRequestActive
	}
	req.interp = i
	req.status = statusReady
	req.cancelled = 0
	req.err = nil
	req.result = NewResult(RcodeNotSet)
	if !req.ownLogger {
		req.logger = i.logger.With("request_id", req.ID)
	}

	if _, err := req.push(inst, true); err != nil {
		req.status = statusDone
		req.result = NewResult(RcodeFail)
		return err
	}
	return nil
}

// Execute starts inst and runs the request until it yields or completes.
func (i *Interpreter) Execute(ctx context.Context, req *Request, inst Instruction) (Result, RunState, error) {
	if err := i.Start(req, inst); err != nil {
		return NewResult(RcodeFail), RunDone, err
	}
	return i.Run(ctx, req)
}

// Run advances the request until its stack is empty, a frame yields, or a
// top frame completes. The returned result is the last completed frame's
// result. A non-nil error means the request failed as a whole (stack
// overflow, terminal failure, cancellation).
func (i *Interpreter) Run(ctx context.Context, req *Request) (Result, RunState, error) {
	if req.busy.Load() {
		return NewResult(RcodeFail), RunDone, ErrReentrantRun
	}
	req.mu.Lock()
	req.busy.Store(true)
	defer func() {
		req.busy.Store(false)
		req.mu.Unlock()
	}()

	switch req.status {
	case statusDone:
		return req.result, RunDone, req.err
	case statusIdle:
		return NewResult(RcodeNotSet), RunDone, ErrNoFrame
	}

	if req.cancelled != 0 {
		return i.teardown(req, fmt.Errorf("%w (%s)", ErrRequestCancelled, req.cancelled))
	}

	if req.status == statusReturned {
		req.status = statusRunning
		if res, state, stop := i.afterChild(req); stop {
			return res, state, nil
		}
	}
	req.status = statusRunning

	for {
		if err := ctx.Err(); err != nil {
			sig := SignalCancel
			if errors.Is(err, context.DeadlineExceeded) {
				sig = SignalTimeout
			}
			i.observer.SignalDelivered(sig)
			i.deliverTop(req, sig)
			return i.teardown(req, fmt.Errorf("%w: %w", ErrRequestCancelled, err))
		}

		f := req.top()
		action := f.process(ctx, &f.result, req, f)

		switch action {
		case ActionPushedChild:
			if req.top() == f {
				req.setErr(&FrameError{Instruction: f.instruction.DebugName(), Depth: f.depth, Cause: ErrNothingPushed})
				return i.teardown(req, nil)
			}

		case ActionYield:
			req.status = statusYielded
			req.logger.Debug("request yielded", "instruction", f.instruction.DebugName(), "depth", f.depth)
			return f.result, RunYielded, nil

		case ActionCalculateResult:
			if res, state, stop := i.completeTop(req); stop {
				return res, state, nil
			}

		case ActionFail, ActionStop:
			req.logger.Debug("frame failed the request",
				"instruction", f.instruction.DebugName(),
				"action", action.String())
			return i.teardown(req, nil)

		default:
			req.setErr(&FrameError{Instruction: f.instruction.DebugName(), Depth: f.depth,
				Cause: fmt.Errorf("invalid action %d", int(action))})
			return i.teardown(req, nil)
		}
	}
}

// completeTop pops the topmost frame and hands its result to the frame
// below. It keeps popping while parents complete with their child's result.
// stop is true when control must return to the caller of Run.
func (i *Interpreter) completeTop(req *Request) (res Result, state RunState, stop bool) {
	f := req.top()
	res = f.result
	topFrame := f.topFrame

	req.logger.Debug("frame complete",
		"instruction", f.instruction.DebugName(),
		"depth", f.depth,
		"rcode", res.Rcode.String())
	req.pop()

	if req.depth == 0 {
		req.status = statusDone
		req.result = res
		return res, RunDone, true
	}

	req.top().result = res
	if topFrame {
		req.status = statusReturned
		return res, RunReturned, true
	}
	return i.afterChild(req)
}

// afterChild re-enters the topmost frame if it asked for it, otherwise the
// frame completes with the result its child left.
func (i *Interpreter) afterChild(req *Request) (Result, RunState, bool) {
	f := req.top()
	if f.repeatable {
		f.repeatable = false
		return Result{}, 0, false
	}
	return i.completeTop(req)
}

// teardown pops every frame without running callbacks and finishes the
// request with a fail result.
func (i *Interpreter) teardown(req *Request, cause error) (Result, RunState, error) {
	if cause != nil {
		req.setErr(cause)
	}
	if req.err == nil {
		req.setErr(ErrRequestFailed)
	}

	req.logger.Debug("tearing down request", "depth", req.depth, "error", req.err)
	for req.depth > 0 {
		req.pop()
	}
	req.status = statusDone
	req.result = NewResult(RcodeFail)
	return req.result, RunDone, req.err
}
