package expr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"mercator-hq/callisto/pkg/dict"
	"mercator-hq/callisto/pkg/pairs"
)

// Kind classifies a compiled expression.
type Kind int

const (
	// KindInvalid is any expression that cannot produce a key, such as a
	// literal or an arithmetic expression.
	KindInvalid Kind = iota
	KindAttribute
	KindExpansion
	KindExec
)

func (k Kind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindExpansion:
		return "expansion"
	case KindExec:
		return "exec"
	}
	return "invalid"
}

// Template is a compiled expression. It is immutable and safe for
// concurrent use.
type Template struct {
	kind Kind
	expr hclsyntax.Expression
	text string

	// set for KindAttribute
	list pairs.ListName
	attr *dict.Attribute

	execTimeout time.Duration
}

// Option configures a Template.
type Option func(*Template)

// WithExecTimeout bounds external executions performed by the template.
func WithExecTimeout(d time.Duration) Option {
	return func(t *Template) {
		if d > 0 {
			t.execTimeout = d
		}
	}
}

// Parse parses expression source text, e.g. the label of a block.
func Parse(text, filename string, start hcl.Pos, d *dict.Dictionary, opts ...Option) (*Template, hcl.Diagnostics) {
	e, diags := hclsyntax.ParseExpression([]byte(text), filename, start)
	if diags.HasErrors() {
		return nil, diags
	}
	return New(e, text, d, opts...)
}

// ParseTemplate parses a string template such as
// "${request.User-Name}:${request.Acct-Session-Id}". The result is always an
// expansion, literal text included.
func ParseTemplate(text, filename string, d *dict.Dictionary, opts ...Option) (*Template, hcl.Diagnostics) {
	e, diags := hclsyntax.ParseTemplate([]byte(text), filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diags
	}
	t, diags := New(e, text, d, opts...)
	if t != nil && t.kind == KindInvalid {
		t.kind = KindExpansion
	}
	return t, diags
}

// New compiles an already parsed expression. text is the source form used
// in logs. References are resolved against d; attributes d does not define
// are treated as octets.
func New(e hclsyntax.Expression, text string, d *dict.Dictionary, opts ...Option) (*Template, hcl.Diagnostics) {
	t := &Template{
		expr:        e,
		text:        strings.TrimSpace(text),
		execTimeout: DefaultExecTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}

	var diags hcl.Diagnostics
	for _, tr := range e.Variables() {
		list, attr, rdiags := resolve(tr, d)
		diags = append(diags, rdiags...)
		if !rdiags.HasErrors() && t.attr == nil {
			t.list, t.attr = list, attr
		}
	}
	diags = append(diags, checkFunctions(e)...)
	if diags.HasErrors() {
		return nil, diags
	}

	t.kind = classify(e)
	if t.kind != KindAttribute {
		t.list, t.attr = "", nil
	}
	return t, diags
}

func resolve(tr hcl.Traversal, d *dict.Dictionary) (pairs.ListName, *dict.Attribute, hcl.Diagnostics) {
	list, ok := pairs.ParseListName(tr.RootName())
	if !ok {
		return "", nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unknown attribute list",
			Detail:   fmt.Sprintf("%q is not an attribute list; use request, reply or control.", tr.RootName()),
			Subject:  tr.SourceRange().Ptr(),
		}}
	}

	if len(tr) != 2 {
		return "", nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid attribute reference",
			Detail:   fmt.Sprintf("Attribute references have the form %s.<attribute>.", list),
			Subject:  tr.SourceRange().Ptr(),
		}}
	}
	step, ok := tr[1].(hcl.TraverseAttr)
	if !ok {
		return "", nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid attribute reference",
			Detail:   "Attributes are referenced by name, not by index.",
			Subject:  tr.SourceRange().Ptr(),
		}}
	}
	return list, d.LookupOrUnknown(step.Name), nil
}

func checkFunctions(e hclsyntax.Expression) hcl.Diagnostics {
	var diags hcl.Diagnostics
	hclsyntax.VisitAll(e, func(n hclsyntax.Node) hcl.Diagnostics {
		call, ok := n.(*hclsyntax.FunctionCallExpr)
		if !ok {
			return nil
		}
		switch {
		case !IsFunction(call.Name):
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Call to unknown function",
				Detail:   fmt.Sprintf("There is no function named %q.", call.Name),
				Subject:  call.NameRange.Ptr(),
			})
		case call.Name == ExecFunctionName && len(call.Args) == 0:
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Missing program",
				Detail:   "exec requires the program to run as its first argument.",
				Subject:  call.Range().Ptr(),
			})
		}
		return nil
	})
	return diags
}

func classify(e hclsyntax.Expression) Kind {
	switch e := e.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		return KindAttribute
	case *hclsyntax.TemplateWrapExpr:
		return KindExpansion
	case *hclsyntax.TemplateExpr:
		if e.IsStringLiteral() {
			return KindInvalid
		}
		return KindExpansion
	case *hclsyntax.FunctionCallExpr:
		if e.Name == ExecFunctionName {
			return KindExec
		}
		return KindExpansion
	}
	return KindInvalid
}

// Kind returns the expression kind.
func (t *Template) Kind() Kind {
	return t.kind
}

// Range returns the source range of the expression.
func (t *Template) Range() hcl.Range {
	return t.expr.Range()
}

// Attribute returns the referenced attribute for KindAttribute templates.
func (t *Template) Attribute() (pairs.ListName, *dict.Attribute, bool) {
	if t.kind != KindAttribute {
		return "", nil, false
	}
	return t.list, t.attr, true
}

// IsUnsigned reports whether the template references an unsigned integer
// attribute.
func (t *Template) IsUnsigned() bool {
	return t.kind == KindAttribute && t.attr.Type.IsUnsigned()
}

func (t *Template) String() string {
	return t.text
}

// FindUint returns the value of the referenced integer attribute.
func (t *Template) FindUint(lists *pairs.Lists) (uint64, error) {
	if !t.IsUnsigned() {
		return 0, ErrNotUnsigned
	}
	p, err := t.find(lists)
	if err != nil {
		return 0, err
	}
	return pairs.Uint(p.Value)
}

// Expand evaluates the template to raw bytes. Attribute references produce
// the value's network representation, other kinds the string result.
func (t *Template) Expand(ctx context.Context, lists *pairs.Lists) ([]byte, error) {
	if t.kind == KindAttribute {
		p, err := t.find(lists)
		if err != nil {
			return nil, err
		}
		return pairs.Bytes(p.Attr, p.Value)
	}

	s, err := t.EvalString(ctx, lists)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, ErrEmptyExpansion
	}
	return []byte(s), nil
}

// EvalString evaluates the template and converts the result to a string.
func (t *Template) EvalString(ctx context.Context, lists *pairs.Lists) (string, error) {
	ectx := &hcl.EvalContext{
		Variables: lists.Variables(),
		Functions: evalFunctions(ctx, t.execTimeout),
	}
	v, diags := t.expr.Value(ectx)
	if diags.HasErrors() {
		return "", &EvalError{Expression: t.text, Cause: diags}
	}
	if v.IsNull() {
		return "", nil
	}
	sv, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", &EvalError{Expression: t.text, Cause: err}
	}
	return sv.AsString(), nil
}

func (t *Template) find(lists *pairs.Lists) (*pairs.Pair, error) {
	list, ok := lists.Get(t.list)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAttributeNotFound, t.text)
	}
	p, ok := list.Find(t.attr.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAttributeNotFound, t.text)
	}
	return p, nil
}
