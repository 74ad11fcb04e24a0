package interpreter

// Action is what a frame callback tells the trampoline to do next.
type Action int

const (
	// ActionCalculateResult completes the frame with the result it wrote.
	ActionCalculateResult Action = iota + 1

	// ActionPushedChild means the callback pushed a child frame which the
	// trampoline runs next.
	ActionPushedChild

	// ActionYield suspends the request until Resume is called.
	ActionYield

	// ActionFail fails the request. It is returned when a push fails.
	ActionFail

	// ActionStop stops the request without a result.
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionCalculateResult:
		return "calculate-result"
	case ActionPushedChild:
		return "pushed-child"
	case ActionYield:
		return "yield"
	case ActionFail:
		return "fail"
	case ActionStop:
		return "stop"
	}
	return "unknown"
}

// RunState describes why Run returned.
type RunState int

const (
	// RunDone means the request's stack is empty.
	RunDone RunState = iota + 1

	// RunYielded means a frame yielded; call Run again after Resume.
	RunYielded

	// RunReturned means a frame pushed with topFrame set completed while
	// frames remain below it. Calling Run again continues with those frames.
	RunReturned
)

func (s RunState) String() string {
	switch s {
	case RunDone:
		return "done"
	case RunYielded:
		return "yielded"
	case RunReturned:
		return "returned"
	}
	return "unknown"
}
