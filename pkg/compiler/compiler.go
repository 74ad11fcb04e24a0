package compiler

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"mercator-hq/callisto/pkg/dict"
	"mercator-hq/callisto/pkg/expr"
	"mercator-hq/callisto/pkg/interpreter"
)

// Compiler compiles policy files against a dictionary and a set of module
// instances. It is safe for concurrent use.
type Compiler struct {
	dict        *dict.Dictionary
	modules     interpreter.ModuleResolver
	logger      *slog.Logger
	execTimeout time.Duration
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithExecTimeout bounds exec() calls in compiled key expressions.
func WithExecTimeout(d time.Duration) Option {
	return func(c *Compiler) {
		c.execTimeout = d
	}
}

// New creates a compiler. A nil dictionary uses the built-in one.
func New(d *dict.Dictionary, modules interpreter.ModuleResolver, opts ...Option) *Compiler {
	if d == nil {
		d = dict.Default()
	}
	c := &Compiler{
		dict:        d,
		modules:     modules,
		logger:      slog.Default(),
		execTimeout: expr.DefaultExecTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileFile reads and compiles a policy file.
func (c *Compiler) CompileFile(path string) (*interpreter.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return c.Compile(src, path)
}

// Compile compiles policy source. On error the returned program still holds
// the sections that compiled, and the error is a *CompileError.
func (c *Compiler) Compile(src []byte, filename string) (*interpreter.Program, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, &CompileError{Diagnostics: diags, files: parser.Files()}
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("policy %s is not native HCL syntax", filename)
	}

	prog := &interpreter.Program{
		Sections: make(map[string]interpreter.Instruction),
		Source:   filename,
	}
	var failed []string

	for _, attr := range sortedAttributes(body) {
		diags = append(diags, errorDiag("Unexpected argument",
			fmt.Sprintf("Arguments are not allowed at the top level; %q must be inside a section.", attr.Name),
			attr.NameRange))
	}

	for _, block := range body.Blocks {
		if block.Type != "section" {
			diags = append(diags, errorDiag("Unexpected block",
				fmt.Sprintf("Only section blocks are allowed at the top level, found %q.%s", block.Type, suggest(block.Type, []string{"section"})),
				block.TypeRange))
			continue
		}
		if len(block.Labels) != 1 {
			diags = append(diags, errorDiag("Missing section name",
				"A section block needs exactly one label, its name.",
				block.DefRange()))
			continue
		}

		name := block.Labels[0]
		if _, exists := prog.Sections[name]; exists {
			diags = append(diags, errorDiag("Duplicate section",
				fmt.Sprintf("Section %q is defined more than once.", name),
				block.LabelRanges[0]))
			continue
		}

		s := &Scope{compiler: c, section: name, src: src}
		inst, sdiags := s.compileSection(block)
		diags = append(diags, sdiags...)
		if sdiags.HasErrors() {
			failed = append(failed, name)
			c.logger.Debug("section failed to compile", "section", name, "errors", len(sdiags.Errs()))
			continue
		}
		prog.Sections[name] = inst
	}

	if diags.HasErrors() {
		return prog, &CompileError{Diagnostics: diags, Sections: failed, files: parser.Files()}
	}

	c.logger.Debug("policy compiled", "file", filename, "sections", len(prog.Sections))
	return prog, nil
}

// Scope is the context a statement is compiled in.
type Scope struct {
	compiler *Compiler
	section  string
	src      []byte
}

// Section returns the name of the section being compiled.
func (s *Scope) Section() string {
	return s.section
}

// Dictionary returns the dictionary references are resolved against.
func (s *Scope) Dictionary() *dict.Dictionary {
	return s.compiler.dict
}

func (s *Scope) location(r hcl.Range) string {
	return fmt.Sprintf("%s:%d", r.Filename, r.Start.Line)
}

func (s *Scope) compileSection(block *hclsyntax.Block) (interpreter.Instruction, hcl.Diagnostics) {
	children, actions, diags := s.CompileBody(block.Body, interpreter.DefaultGroupActions())
	g := &interpreter.Group{
		Common: interpreter.Common{
			Kind:      interpreter.TypeGroup,
			Label:     s.section,
			Debug:     "section " + s.section,
			SourceLoc: s.location(block.DefRange()),
		},
		Children: children,
		Actions:  actions,
	}
	return g, diags
}

// CompileBody compiles the statements of a block body. An actions block, if
// present, overrides entries of defaults.
func (s *Scope) CompileBody(body *hclsyntax.Body, defaults interpreter.Actions) ([]interpreter.Instruction, interpreter.Actions, hcl.Diagnostics) {
	var (
		diags    hcl.Diagnostics
		children []interpreter.Instruction
		actions  = defaults
		seen     *hclsyntax.Block
	)

	for _, block := range body.Blocks {
		if block.Type == "actions" {
			if seen != nil {
				diags = append(diags, errorDiag("Duplicate actions block",
					fmt.Sprintf("Only one actions block is allowed; the first is at %s.", seen.DefRange()),
					block.DefRange()))
				continue
			}
			seen = block
			var adiags hcl.Diagnostics
			actions, adiags = parseActions(block, defaults)
			diags = append(diags, adiags...)
			continue
		}

		kw, ok := keywords[block.Type]
		if !ok {
			diags = append(diags, errorDiag("Unknown statement",
				fmt.Sprintf("%q is not a statement.%s", block.Type, suggest(block.Type, keywordNames())),
				block.TypeRange))
			continue
		}

		inst, kdiags := kw(s, block)
		diags = append(diags, kdiags...)
		if inst != nil && !kdiags.HasErrors() {
			children = append(children, inst)
		}
	}
	return children, actions, diags
}

// checkAttributes reports attributes other than the allowed ones.
func checkAttributes(body *hclsyntax.Body, allowed ...string) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, attr := range sortedAttributes(body) {
		ok := false
		for _, a := range allowed {
			if attr.Name == a {
				ok = true
				break
			}
		}
		if !ok {
			detail := fmt.Sprintf("An argument named %q is not expected here.", attr.Name)
			if len(allowed) > 0 {
				detail += suggest(attr.Name, allowed)
			}
			diags = append(diags, errorDiag("Unsupported argument", detail, attr.NameRange))
		}
	}
	return diags
}

func sortedAttributes(body *hclsyntax.Body) []*hclsyntax.Attribute {
	attrs := make([]*hclsyntax.Attribute, 0, len(body.Attributes))
	for _, a := range body.Attributes {
		attrs = append(attrs, a)
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].SrcRange.Start.Byte < attrs[j].SrcRange.Start.Byte
	})
	return attrs
}
