package interpreter

import (
	"context"
	"fmt"

	"mercator-hq/callisto/pkg/pairs"
)

// Type is the kind of an instruction.
type Type int

const (
	TypeGroup Type = iota + 1
	TypeLoadBalance
	TypeRedundantLoadBalance
	TypeRedundant
	TypeModule
	TypeReturn
	TypeFunction

	numTypes
)

var typeNames = [numTypes]string{
	TypeGroup:                "group",
	TypeLoadBalance:          "load-balance",
	TypeRedundantLoadBalance: "redundant-load-balance",
	TypeRedundant:            "redundant",
	TypeModule:               "module",
	TypeReturn:               "return",
	TypeFunction:             "function",
}

func (t Type) String() string {
	if t <= 0 || t >= numTypes {
		return fmt.Sprintf("type(%d)", int(t))
	}
	return typeNames[t]
}

// Instruction is a node of a compiled policy. Instructions are built once by
// the compiler and never modified, so a single graph is shared by every
// request.
type Instruction interface {
	// Type returns the instruction kind.
	Type() Type

	// Name returns the instruction's name, e.g. the section or module name.
	Name() string

	// DebugName returns the name used in logs.
	DebugName() string

	// Location returns where the instruction was defined ("file:line").
	Location() string
}

// Common holds the fields shared by all instructions.
type Common struct {
	Kind      Type
	Label     string
	Debug     string
	SourceLoc string
}

func (c *Common) Type() Type { return c.Kind }

func (c *Common) Name() string { return c.Label }

func (c *Common) DebugName() string {
	if c.Debug != "" {
		return c.Debug
	}
	if c.Label != "" {
		return c.Kind.String() + " " + c.Label
	}
	return c.Kind.String()
}

func (c *Common) Location() string { return c.SourceLoc }

// Group is an instruction with ordered children.
type Group struct {
	Common

	// Children are executed according to the group kind.
	Children []Instruction

	// Actions decide whether a child's result stops the group.
	Actions Actions
}

// KeyTemplate computes the selection key of a load-balance group.
// *expr.Template implements it.
type KeyTemplate interface {
	// IsUnsigned reports whether the key references an unsigned integer
	// attribute.
	IsUnsigned() bool

	// FindUint returns the referenced integer value.
	FindUint(lists *pairs.Lists) (uint64, error)

	// Expand returns the raw bytes to hash.
	Expand(ctx context.Context, lists *pairs.Lists) ([]byte, error)

	String() string
}

// LoadBalance is a load-balance, redundant-load-balance or redundant group.
type LoadBalance struct {
	Group

	// Key optionally selects the starting child. Nil selects uniformly.
	Key KeyTemplate
}

// ModuleCall invokes a module method.
type ModuleCall struct {
	Common

	// Module is the module instance.
	Module Module

	// Method is the method name passed to the module, e.g. "accounting".
	Method string
}

// Return is a leaf that produces a fixed result code.
type Return struct {
	Common

	Rcode Rcode
}

// functionInstruction is the instruction shared by every function frame.
var functionInstruction = &Common{Kind: TypeFunction, Label: "function"}

// NewGroup returns a sequential group.
func NewGroup(name string, children ...Instruction) *Group {
	return &Group{
		Common:   Common{Kind: TypeGroup, Label: name},
		Children: children,
		Actions:  DefaultGroupActions(),
	}
}

// NewLoadBalance returns a load-balance group of the given kind with the
// kind's default actions.
func NewLoadBalance(kind Type, key KeyTemplate, children ...Instruction) *LoadBalance {
	actions := DefaultRedundantActions()
	if kind == TypeLoadBalance {
		actions = DefaultLoadBalanceActions()
	}
	return &LoadBalance{
		Group: Group{
			Common:   Common{Kind: kind},
			Children: children,
			Actions:  actions,
		},
		Key: key,
	}
}

// NewReturn returns a fixed result leaf.
func NewReturn(rc Rcode) *Return {
	return &Return{
		Common: Common{Kind: TypeReturn, Label: rc.String()},
		Rcode:  rc,
	}
}

// Program is a compiled policy: named sections, each a root instruction.
type Program struct {
	// Sections maps section names to their root instruction.
	Sections map[string]Instruction

	// Source is the file the program was compiled from.
	Source string
}

// Section returns the named section.
func (p *Program) Section(name string) (Instruction, bool) {
	inst, ok := p.Sections[name]
	return inst, ok
}
