// Package interpreter runs compiled policy instructions against requests.
//
// The interpreter is a trampoline: each request owns a stack of frames, one
// per active instruction, and Run repeatedly invokes the topmost frame's
// process callback. A callback either completes with a result, pushes a
// child frame and returns ActionPushedChild, or yields. When a child
// completes its result is handed to the parent, which is re-entered if it
// marked itself repeatable and otherwise completes with the child's result.
//
// # Function frames
//
// PushFunction lets native code anywhere in a call chain install a
// resumption point on the request's stack without a goroutine or a
// coroutine. The frame carries an upward callback, run once when the frame
// first becomes topmost, and a repeat callback, run when control comes back
// after a pushed child completes or a yield is resumed. Both are
// Continuation values with an explicit call shape:
//
//	interpreter.PushFunction(req,
//		interpreter.WithResult(startQuery),
//		interpreter.WithResult(queryDone),
//		cancelQuery, 0, false, job)
//
// # Load balancing
//
// Load-balance groups select one child, either by hashing a key expression
// or uniformly at random, and surface its result. Redundant variants walk
// the remaining children in order, wrapping around, until a child's result
// code maps to return in the group's action table or every child was tried.
//
// # Signals
//
// Signal delivers cancellation notices to the topmost frame of a request.
// Cancel and timeout additionally mark the request so the next Run tears
// down every frame without running callbacks.
//
// # Concurrency
//
// A request is advanced by one goroutine at a time. Run and Signal take the
// request lock; the caller is expected to serialize them (the scheduler
// package does). Calling either from inside a callback of the same request
// returns ErrReentrantRun. Compiled instructions are immutable and shared
// by every request.
package interpreter
