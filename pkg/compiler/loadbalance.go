package compiler

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"mercator-hq/callisto/pkg/expr"
	"mercator-hq/callisto/pkg/interpreter"
)

func init() {
	Register("load-balance", compileLoadBalance(interpreter.TypeLoadBalance))
	Register("redundant-load-balance", compileLoadBalance(interpreter.TypeRedundantLoadBalance))
	Register("redundant", compileLoadBalance(interpreter.TypeRedundant))
}

func compileLoadBalance(kind interpreter.Type) CompileFunc {
	return func(s *Scope, block *hclsyntax.Block) (interpreter.Instruction, hcl.Diagnostics) {
		keyed := kind != interpreter.TypeRedundant

		var diags hcl.Diagnostics
		if keyed {
			diags = checkAttributes(block.Body, "key")
		} else {
			diags = checkAttributes(block.Body)
		}

		defaults := interpreter.DefaultRedundantActions()
		if kind == interpreter.TypeLoadBalance {
			defaults = interpreter.DefaultLoadBalanceActions()
		}
		children, actions, cdiags := s.CompileBody(block.Body, defaults)
		diags = append(diags, cdiags...)

		if len(children) == 0 && !cdiags.HasErrors() {
			diags = append(diags, errorDiag(
				fmt.Sprintf("%s sections cannot be empty", block.Type),
				fmt.Sprintf("A %s block needs at least one statement to select from.", block.Type),
				block.Range()))
		}

		var key *expr.Template
		if keyed {
			var kdiags hcl.Diagnostics
			key, kdiags = s.compileKey(block)
			diags = append(diags, kdiags...)
		} else if len(block.Labels) > 0 {
			diags = append(diags, errorDiag("Unexpected label",
				"redundant blocks select their first child and take no key.", block.LabelRanges[0]))
		}

		if diags.HasErrors() {
			return nil, diags
		}

		lb := &interpreter.LoadBalance{
			Group: interpreter.Group{
				Common: interpreter.Common{
					Kind:      kind,
					Label:     fmt.Sprintf("%s/%s:%d", s.section, block.Type, block.DefRange().Start.Line),
					SourceLoc: s.location(block.DefRange()),
				},
				Children: children,
				Actions:  actions,
			},
		}
		lb.Debug = block.Type
		if key != nil {
			lb.Key = key
			lb.Debug = fmt.Sprintf("%s %s", block.Type, key)
		}
		return lb, diags
	}
}

// compileKey parses the optional key, given either as the block label or as
// the key attribute, and checks that it can produce a selection key.
func (s *Scope) compileKey(block *hclsyntax.Block) (*expr.Template, hcl.Diagnostics) {
	attr, hasAttr := block.Body.Attributes["key"]

	switch {
	case len(block.Labels) > 1:
		return nil, hcl.Diagnostics{errorDiag("Too many labels",
			fmt.Sprintf("%s takes at most one label, the key.", block.Type), block.LabelRanges[1])}
	case len(block.Labels) == 1 && hasAttr:
		return nil, hcl.Diagnostics{errorDiag("Duplicate key",
			"The key is given both as a label and as an argument.", attr.NameRange)}
	case len(block.Labels) == 0 && !hasAttr:
		return nil, nil
	}

	opts := []expr.Option{expr.WithExecTimeout(s.compiler.execTimeout)}
	var (
		tmpl  *expr.Template
		diags hcl.Diagnostics
		rng   hcl.Range
	)
	if hasAttr {
		rng = attr.Expr.Range()
		src := rng.SliceBytes(s.src)
		tmpl, diags = expr.New(attr.Expr, string(src), s.compiler.dict, opts...)
	} else {
		rng = block.LabelRanges[0]
		// Skip the opening quote of the label.
		start := rng.Start
		start.Column++
		start.Byte++
		tmpl, diags = expr.Parse(block.Labels[0], rng.Filename, start, s.compiler.dict, opts...)
	}
	if diags.HasErrors() {
		return nil, diags
	}

	if tmpl.Kind() == expr.KindInvalid {
		return nil, hcl.Diagnostics{errorDiag("Invalid type in key",
			"Invalid type in key: data will not result in a load-balance key.", rng)}
	}
	return tmpl, diags
}
