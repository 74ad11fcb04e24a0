package interpreter

import (
	"fmt"
	"strconv"
	"strings"
)

// ModAction is what a group does with a child's result code. Positive values
// mean "continue", remembering the result if its priority beats the one
// already held. ModActionReturn stops the group and surfaces the result.
type ModAction int

const (
	// ModActionUnset continues without recording the result.
	ModActionUnset ModAction = 0

	// ModActionReturn stops the group.
	ModActionReturn ModAction = -1

	// MaxPriority is the highest priority a continue action can carry.
	MaxPriority = 64
)

// Priority returns a continue action with the given priority.
func Priority(p int) ModAction {
	return ModAction(p)
}

// IsReturn reports whether the action stops the group.
func (a ModAction) IsReturn() bool {
	return a == ModActionReturn
}

func (a ModAction) String() string {
	switch {
	case a == ModActionReturn:
		return "return"
	case a == ModActionUnset:
		return "continue"
	}
	return strconv.Itoa(int(a))
}

// ParseModAction parses "return", "continue" or a priority.
func ParseModAction(s string) (ModAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "return":
		return ModActionReturn, nil
	case "continue":
		return Priority(1), nil
	}
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > MaxPriority {
		return ModActionUnset, fmt.Errorf("%w: %q (want return, continue or 1-%d)", ErrInvalidAction, s, MaxPriority)
	}
	return Priority(p), nil
}

// Actions maps every result code to an action.
type Actions [NumRcodes]ModAction

// ShouldReturn reports whether rc stops the group. RcodeNotSet never does.
func (a *Actions) ShouldReturn(rc Rcode) bool {
	if rc < 0 || rc >= RcodeNotSet {
		return false
	}
	return a[rc].IsReturn()
}

// DefaultGroupActions are the actions of sequential groups and sections.
func DefaultGroupActions() Actions {
	var a Actions
	a[RcodeReject] = ModActionReturn
	a[RcodeFail] = ModActionReturn
	a[RcodeOK] = Priority(3)
	a[RcodeHandled] = ModActionReturn
	a[RcodeInvalid] = ModActionReturn
	a[RcodeDisallow] = ModActionReturn
	a[RcodeNotFound] = Priority(1)
	a[RcodeNoop] = Priority(2)
	a[RcodeUpdated] = Priority(4)
	return a
}

// DefaultRedundantActions are the actions of redundant groups: a failure
// moves on to the next child, anything else is final.
func DefaultRedundantActions() Actions {
	var a Actions
	for rc := Rcode(0); rc < RcodeNotSet; rc++ {
		a[rc] = ModActionReturn
	}
	a[RcodeFail] = Priority(1)
	return a
}

// DefaultLoadBalanceActions are the actions of plain load-balance groups.
// The group surfaces its single child's result, so every code returns.
func DefaultLoadBalanceActions() Actions {
	var a Actions
	for rc := Rcode(0); rc < RcodeNotSet; rc++ {
		a[rc] = ModActionReturn
	}
	return a
}
