package interpreter

import (
	"context"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	policyKeyed  = "keyed"
	policyRandom = "random"
	policyFirst  = "first"

	// randomRange is the range of the per child random draw (2^24).
	randomRange = 1 << 24
)

// redundantState is the walk state of a load-balance group. Both fields are
// indexes into the instruction's Children.
type redundantState struct {
	// found is the selected starting child.
	found int

	// child is the next child to push, -1 before the first push.
	child int
}

func newRedundantState() any {
	return &redundantState{child: -1}
}

func init() {
	for _, t := range []Type{TypeLoadBalance, TypeRedundantLoadBalance, TypeRedundant} {
		registerOp(t, &op{
			name:      t.String(),
			interpret: loadBalanceProcess,
			newState:  newRedundantState,
		})
	}
}

// loadBalanceProcess selects the starting child. Plain load-balance pushes it
// and completes with its result; the redundant kinds continue in
// redundantNext.
func loadBalanceProcess(ctx context.Context, result *Result, req *Request, f *Frame) Action {
	lb := f.instruction.(*LoadBalance)
	st := f.state.(*redundantState)

	if len(lb.Children) == 0 {
		*result = NewResult(RcodeNoop)
		return ActionCalculateResult
	}

	policy := policyFirst
	if lb.Kind == TypeRedundant {
		st.found = 0
	} else {
		st.found, policy = selectChild(ctx, req, lb)
	}

	req.interp.observer.LoadBalanceSelected(lb.Name(), policy)
	trace.SpanFromContext(ctx).AddEvent("load-balance selection", trace.WithAttributes(
		attribute.String("group", lb.DebugName()),
		attribute.String("policy", policy),
		attribute.Int("start", st.found),
		attribute.Int("children", len(lb.Children)),
	))
	req.logger.Debug("load-balance starting at child",
		"instruction", lb.DebugName(),
		"start", st.found,
		"policy", policy)

	if lb.Kind == TypeLoadBalance {
		return Push(req, lb.Children[st.found], false)
	}

	st.child = -1
	f.SetProcess(redundantNext)
	return redundantNext(ctx, result, req, f)
}

// redundantNext pushes the next child of the walk. On re-entry result holds
// the result of the child that just completed.
func redundantNext(_ context.Context, result *Result, req *Request, f *Frame) Action {
	lb := f.instruction.(*LoadBalance)
	st := f.state.(*redundantState)

	if st.child < 0 {
		st.child = st.found
	} else {
		// Every child was tried, surface the last one's result.
		if st.child == st.found {
			return ActionCalculateResult
		}
		if lb.Actions.ShouldReturn(result.Rcode) {
			return ActionCalculateResult
		}
		req.interp.observer.RedundantFailover(lb.Name())
		req.logger.Debug("redundant failing over",
			"instruction", lb.DebugName(),
			"rcode", result.Rcode.String(),
			"next", st.child)
	}

	if Push(req, lb.Children[st.child], false) == ActionFail {
		return ActionFail
	}
	st.child++
	if st.child >= len(lb.Children) {
		st.child = 0
	}
	f.SetRepeatable()
	return ActionPushedChild
}

// selectChild picks the starting child: keyed when the group has a key that
// evaluates, uniformly at random otherwise.
func selectChild(ctx context.Context, req *Request, lb *LoadBalance) (int, string) {
	n := len(lb.Children)
	if lb.Key != nil {
		start, err := keyStart(ctx, req, lb.Key, n)
		if err == nil {
			return keyedIndex(start, n), policyKeyed
		}
		req.logger.Debug("load-balance key failed, selecting at random",
			"instruction", lb.DebugName(),
			"key", lb.Key.String(),
			"error", err)
	}
	return reservoirIndex(req.interp.random, n), policyRandom
}

// keyStart reduces the key to a start value in [0, n): integer attributes by
// value, anything else by the xxhash of its expansion.
func keyStart(ctx context.Context, req *Request, key KeyTemplate, n int) (uint64, error) {
	if key.IsUnsigned() {
		v, err := key.FindUint(req.Lists)
		if err != nil {
			return 0, err
		}
		return v % uint64(n), nil
	}

	b, err := key.Expand(ctx, req.Lists)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b) % uint64(n), nil
}

// keyedIndex walks the children with a 1-based counter and selects the one
// whose counter equals start. A start of 0 matches no counter and selects
// the last child.
func keyedIndex(start uint64, n int) int {
	for count := 1; count <= n; count++ {
		if uint64(count) == start {
			return count - 1
		}
	}
	return n - 1
}

// reservoirIndex selects uniformly among n children in one pass: child i
// (1-based) replaces the held child when i * r < 2^24 for a fresh 24 bit r,
// which happens with probability 1/i.
func reservoirIndex(src RandomSource, n int) int {
	chosen := 0
	for i := 1; i <= n; i++ {
		r := uint64(src.Uint32() & (randomRange - 1))
		if uint64(i)*r < randomRange {
			chosen = i - 1
		}
	}
	return chosen
}
