package interpreter

import (
	"fmt"
	"strings"
)

// Rcode is the outcome of executing an instruction.
type Rcode int

const (
	RcodeReject Rcode = iota
	RcodeFail
	RcodeOK
	RcodeHandled
	RcodeInvalid
	RcodeDisallow
	RcodeNotFound
	RcodeNoop
	RcodeUpdated
	// RcodeNotSet means no instruction has produced a result yet.
	RcodeNotSet

	// NumRcodes is the number of result codes, used to size action tables.
	NumRcodes
)

var rcodeNames = [NumRcodes]string{
	RcodeReject:   "reject",
	RcodeFail:     "fail",
	RcodeOK:       "ok",
	RcodeHandled:  "handled",
	RcodeInvalid:  "invalid",
	RcodeDisallow: "disallow",
	RcodeNotFound: "notfound",
	RcodeNoop:     "noop",
	RcodeUpdated:  "updated",
	RcodeNotSet:   "notset",
}

func (r Rcode) String() string {
	if r < 0 || r >= NumRcodes {
		return fmt.Sprintf("rcode(%d)", int(r))
	}
	return rcodeNames[r]
}

// ParseRcode parses the name of a result code.
func ParseRcode(s string) (Rcode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for rc, name := range rcodeNames {
		if name == s {
			return Rcode(rc), nil
		}
	}
	return RcodeNotSet, fmt.Errorf("%w: %q", ErrUnknownRcode, s)
}

// RcodeNames returns the result code names in enumeration order.
func RcodeNames() []string {
	return append([]string(nil), rcodeNames[:]...)
}

// Result is a result code with the priority it was recorded at.
type Result struct {
	Rcode    Rcode
	Priority int
}

// NewResult returns a result with no priority.
func NewResult(rc Rcode) Result {
	return Result{Rcode: rc}
}

func (r Result) String() string {
	return r.Rcode.String()
}
