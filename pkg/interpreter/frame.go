package interpreter

import (
	"context"
	"fmt"
)

// ProcessFunc is a frame callback. result points at the frame's result
// slot: on re-entry it holds the result of the child that just completed,
// and on ActionCalculateResult it is the frame's own result.
type ProcessFunc func(ctx context.Context, result *Result, req *Request, f *Frame) Action

// FrameSignalFunc handles a signal delivered to a frame.
type FrameSignalFunc func(req *Request, f *Frame, sig Signal)

// op is the static behaviour of an instruction type.
type op struct {
	name      string
	interpret ProcessFunc
	signal    FrameSignalFunc
	newState  func() any
}

// ops is populated by init functions and read-only afterwards.
var ops [numTypes]*op

func registerOp(t Type, o *op) {
	if ops[t] != nil {
		panic(fmt.Sprintf("interpreter: operation for %s registered twice", t))
	}
	ops[t] = o
}

// Frame is the per request state of an active instruction.
type Frame struct {
	instruction Instruction
	op          *op
	state       any

	process ProcessFunc
	signal  FrameSignalFunc
	sigmask Signal

	repeatable bool
	topFrame   bool
	depth      int

	result Result
}

// Instruction returns the instruction the frame executes.
func (f *Frame) Instruction() Instruction {
	return f.instruction
}

// State returns the frame's per instruction state.
func (f *Frame) State() any {
	return f.state
}

// Depth returns the frame's position on the stack, starting at 1.
func (f *Frame) Depth() int {
	return f.depth
}

// IsTopFrame reports whether Run returns to its caller when the frame pops.
func (f *Frame) IsTopFrame() bool {
	return f.topFrame
}

// SetRepeatable asks for the frame to be re-entered after the child it
// pushed completes. The flag is cleared each time the frame is re-entered.
func (f *Frame) SetRepeatable() {
	f.repeatable = true
}

// SetProcess replaces the callback run on the next entry.
func (f *Frame) SetProcess(fn ProcessFunc) {
	f.process = fn
}

// SetSignalMask sets the signals the frame declines.
func (f *Frame) SetSignalMask(mask Signal) {
	f.sigmask = mask
}

func (f *Frame) String() string {
	if f.instruction == nil {
		return "<empty frame>"
	}
	return fmt.Sprintf("[%d] %s", f.depth, f.instruction.DebugName())
}
