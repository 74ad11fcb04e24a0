package interpreter

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"mercator-hq/callisto/pkg/pairs"
)

type requestStatus int

const (
	statusIdle requestStatus = iota
	statusReady
	statusRunning
	statusYielded
	statusReturned
	statusDone
)

// Request is a request being interpreted: its attribute lists and its
// interpreter stack.
type Request struct {
	// ID identifies the request in logs.
	ID string

	// Lists are the request's attribute lists.
	Lists *pairs.Lists

	mu     sync.Mutex
	busy   atomic.Bool
	interp *Interpreter

	frames []*Frame
	depth  int

	status    requestStatus
	cancelled Signal
	result    Result
	err       error

	logger    *slog.Logger
	ownLogger bool
	resume    func()
}

// NewRequest returns a request with the given lists. Nil lists are
// replaced with empty ones.
func NewRequest(id string, lists *pairs.Lists) *Request {
	if lists == nil {
		lists = pairs.NewLists()
	}
	return &Request{
		ID:     id,
		Lists:  lists,
		result: NewResult(RcodeNotSet),
		logger: slog.Default().With("request_id", id),
	}
}

// Logger returns the request logger.
func (r *Request) Logger() *slog.Logger {
	return r.logger
}

// SetLogger replaces the request logger.
func (r *Request) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l.With("request_id", r.ID)
		r.ownLogger = true
	}
}

// SetResumeHook sets the function Resume calls. The scheduler uses it to
// re-queue the request.
func (r *Request) SetResumeHook(fn func()) {
	r.resume = fn
}

// Resume signals that whatever the request yielded for has completed. It
// may be called from any goroutine and does not take the request lock.
func (r *Request) Resume() {
	if r.resume != nil {
		r.resume()
	}
}

// Depth returns the number of frames on the stack. Only call it from the
// goroutine advancing the request.
func (r *Request) Depth() int {
	return r.depth
}

// Top returns the topmost frame, or nil. Only call it from the goroutine
// advancing the request.
func (r *Request) Top() *Frame {
	return r.top()
}

// Done reports whether the request has finished.
func (r *Request) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == statusDone
}

// Result returns the final result and error of a finished request.
func (r *Request) Result() (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

func (r *Request) top() *Frame {
	if r.depth == 0 {
		return nil
	}
	return r.frames[r.depth-1]
}

// setErr records the first error that fails the request.
func (r *Request) setErr(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Request) push(inst Instruction, topFrame bool) (*Frame, error) {
	maxDepth := DefaultMaxStackDepth
	observer := Observer(noopObserver{})
	if r.interp != nil {
		maxDepth = r.interp.config.MaxStackDepth
		observer = r.interp.observer
	}

	if r.depth >= maxDepth {
		err := &FrameError{Instruction: inst.DebugName(), Depth: r.depth + 1, Cause: ErrStackOverflow}
		r.setErr(err)
		r.logger.Error("failed to push frame", "instruction", inst.DebugName(), "max_depth", maxDepth)
		return nil, err
	}

	o := ops[inst.Type()]
	if o == nil {
		err := &FrameError{Instruction: inst.DebugName(), Depth: r.depth + 1,
			Cause: fmt.Errorf("no operation registered for %s", inst.Type())}
		r.setErr(err)
		return nil, err
	}

	var f *Frame
	if r.depth < len(r.frames) {
		f = r.frames[r.depth]
	} else {
		f = &Frame{}
		r.frames = append(r.frames, f)
	}
	*f = Frame{
		instruction: inst,
		op:          o,
		process:     o.interpret,
		signal:      o.signal,
		topFrame:    topFrame,
		depth:       r.depth + 1,
		result:      NewResult(RcodeNotSet),
	}
	if o.newState != nil {
		f.state = o.newState()
	}
	r.depth++

	observer.FramePushed(inst.Type())
	r.logger.Debug("pushed frame",
		"instruction", inst.DebugName(),
		"depth", f.depth,
		"top_frame", topFrame)
	return f, nil
}

// pop removes the topmost frame without running any callback. The frame's
// state is released, so signal dispatch for it becomes a no-op.
func (r *Request) pop() {
	if r.depth == 0 {
		return
	}
	r.depth--
	*r.frames[r.depth] = Frame{}
}

// Push pushes inst onto the request's stack. It returns ActionPushedChild,
// or ActionFail when the stack is full; the failure is recorded on the
// request and surfaces from Run.
func Push(req *Request, inst Instruction, topFrame bool) Action {
	if _, err := req.push(inst, topFrame); err != nil {
		return ActionFail
	}
	return ActionPushedChild
}
