package compiler

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"mercator-hq/callisto/pkg/interpreter"
)

// CompileFunc compiles one statement block.
type CompileFunc func(s *Scope, block *hclsyntax.Block) (interpreter.Instruction, hcl.Diagnostics)

// keywords is populated by init functions and read-only afterwards.
var keywords = map[string]CompileFunc{}

// Register adds a statement keyword. It panics on duplicates and must only
// be called from init functions.
func Register(keyword string, fn CompileFunc) {
	if _, exists := keywords[keyword]; exists {
		panic(fmt.Sprintf("compiler: keyword %q registered twice", keyword))
	}
	keywords[keyword] = fn
}

func keywordNames() []string {
	names := make([]string, 0, len(keywords)+1)
	for n := range keywords {
		names = append(names, n)
	}
	names = append(names, "actions")
	sort.Strings(names)
	return names
}

func init() {
	Register("group", compileGroup)
	Register("call", compileCall)
	Register("return", compileReturn)
}

func compileGroup(s *Scope, block *hclsyntax.Block) (interpreter.Instruction, hcl.Diagnostics) {
	diags := checkAttributes(block.Body)
	if len(block.Labels) > 1 {
		diags = append(diags, errorDiag("Too many labels",
			"A group takes at most one label, its name.", block.LabelRanges[1]))
	}

	name := ""
	if len(block.Labels) > 0 {
		name = block.Labels[0]
	}
	children, actions, cdiags := s.CompileBody(block.Body, interpreter.DefaultGroupActions())
	diags = append(diags, cdiags...)

	return &interpreter.Group{
		Common: interpreter.Common{
			Kind:      interpreter.TypeGroup,
			Label:     name,
			SourceLoc: s.location(block.DefRange()),
		},
		Children: children,
		Actions:  actions,
	}, diags
}

func compileCall(s *Scope, block *hclsyntax.Block) (interpreter.Instruction, hcl.Diagnostics) {
	diags := checkAttributes(block.Body, "method")
	diags = append(diags, noBlocks(block)...)
	if len(block.Labels) != 1 {
		diags = append(diags, errorDiag("Missing module name",
			"A call block needs exactly one label, the module instance to call.", block.DefRange()))
		return nil, diags
	}

	name := block.Labels[0]
	var mod interpreter.Module
	if s.compiler.modules != nil {
		mod, _ = s.compiler.modules.Module(name)
	}
	if mod == nil {
		detail := fmt.Sprintf("No module instance named %q is configured.", name)
		if lister, ok := s.compiler.modules.(interface{ Names() []string }); ok {
			detail += suggest(name, lister.Names())
		}
		diags = append(diags, errorDiag("Unknown module", detail, block.LabelRanges[0]))
		return nil, diags
	}

	method := s.section
	if attr, ok := block.Body.Attributes["method"]; ok {
		m, mdiags := stringLiteral(attr)
		diags = append(diags, mdiags...)
		method = m
	}

	return &interpreter.ModuleCall{
		Common: interpreter.Common{
			Kind:      interpreter.TypeModule,
			Label:     name,
			Debug:     fmt.Sprintf("call %s.%s", name, method),
			SourceLoc: s.location(block.DefRange()),
		},
		Module: mod,
		Method: method,
	}, diags
}

func compileReturn(s *Scope, block *hclsyntax.Block) (interpreter.Instruction, hcl.Diagnostics) {
	diags := checkAttributes(block.Body, "rcode")
	diags = append(diags, noBlocks(block)...)

	attr, ok := block.Body.Attributes["rcode"]
	if !ok {
		diags = append(diags, errorDiag("Missing rcode",
			"A return block needs an rcode argument.", block.DefRange()))
		return nil, diags
	}
	name, sdiags := stringLiteral(attr)
	diags = append(diags, sdiags...)
	if sdiags.HasErrors() {
		return nil, diags
	}

	rc, err := interpreter.ParseRcode(name)
	if err != nil || rc == interpreter.RcodeNotSet {
		diags = append(diags, errorDiag("Invalid rcode",
			fmt.Sprintf("%q is not a result code.%s", name, suggest(name, interpreter.RcodeNames())),
			attr.Expr.Range()))
		return nil, diags
	}

	ret := interpreter.NewReturn(rc)
	ret.SourceLoc = s.location(block.DefRange())
	return ret, diags
}

// parseActions reads an actions block on top of defaults.
func parseActions(block *hclsyntax.Block, defaults interpreter.Actions) (interpreter.Actions, hcl.Diagnostics) {
	actions := defaults
	diags := noBlocks(block)

	for _, attr := range sortedAttributes(block.Body) {
		rc, err := interpreter.ParseRcode(attr.Name)
		if err != nil || rc == interpreter.RcodeNotSet {
			diags = append(diags, errorDiag("Unknown result code",
				fmt.Sprintf("%q is not a result code.%s", attr.Name, suggest(attr.Name, interpreter.RcodeNames())),
				attr.NameRange))
			continue
		}

		v, vdiags := attr.Expr.Value(nil)
		diags = append(diags, vdiags...)
		if vdiags.HasErrors() {
			continue
		}
		sv, err := convert.Convert(v, cty.String)
		if err != nil || sv.IsNull() {
			diags = append(diags, errorDiag("Invalid action",
				`Actions are "return", "continue" or a priority number.`, attr.Expr.Range()))
			continue
		}

		a, err := interpreter.ParseModAction(sv.AsString())
		if err != nil {
			diags = append(diags, errorDiag("Invalid action", err.Error(), attr.Expr.Range()))
			continue
		}
		actions[rc] = a
	}
	return actions, diags
}

func stringLiteral(attr *hclsyntax.Attribute) (string, hcl.Diagnostics) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if v.IsNull() || v.Type() != cty.String {
		return "", hcl.Diagnostics{errorDiag("Invalid value",
			fmt.Sprintf("%s must be a string.", attr.Name), attr.Expr.Range())}
	}
	return v.AsString(), nil
}

func noBlocks(block *hclsyntax.Block) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, b := range block.Body.Blocks {
		diags = append(diags, errorDiag("Unexpected block",
			fmt.Sprintf("%s blocks cannot contain %q blocks.", block.Type, b.Type), b.TypeRange))
	}
	return diags
}
