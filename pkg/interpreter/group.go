package interpreter

import "context"

// groupState tracks a sequential group's progress.
type groupState struct {
	next   int
	result Result
}

func init() {
	registerOp(TypeGroup, &op{
		name:      "group",
		interpret: groupProcess,
		newState:  func() any { return &groupState{result: NewResult(RcodeNotSet)} },
	})
	registerOp(TypeReturn, &op{
		name:      "return",
		interpret: returnProcess,
	})
}

// groupProcess runs children in order. After each child the group's action
// table decides: return surfaces the child's result immediately, a priority
// records it if it beats the result held so far.
func groupProcess(_ context.Context, result *Result, req *Request, f *Frame) Action {
	g := f.instruction.(*Group)
	st := f.state.(*groupState)

	if st.next > 0 {
		rc := result.Rcode
		if g.Actions.ShouldReturn(rc) {
			req.logger.Debug("group returning", "instruction", g.DebugName(), "rcode", rc.String())
			return ActionCalculateResult
		}
		if rc != RcodeNotSet {
			if p := int(g.Actions[rc]); p > st.result.Priority {
				st.result = Result{Rcode: rc, Priority: p}
			}
		}
	}

	if st.next >= len(g.Children) {
		if len(g.Children) == 0 {
			st.result = NewResult(RcodeNoop)
		}
		*result = st.result
		return ActionCalculateResult
	}

	child := g.Children[st.next]
	st.next++
	if Push(req, child, false) == ActionFail {
		return ActionFail
	}
	f.SetRepeatable()
	return ActionPushedChild
}

func returnProcess(_ context.Context, result *Result, _ *Request, f *Frame) Action {
	*result = NewResult(f.instruction.(*Return).Rcode)
	return ActionCalculateResult
}
