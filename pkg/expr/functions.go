package expr

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// ExecFunctionName is the name of the external execution function.
const ExecFunctionName = "exec"

// DefaultExecTimeout bounds a single external execution.
const DefaultExecTimeout = 2 * time.Second

var functions = map[string]function.Function{
	"upper":     stdlib.UpperFunc,
	"lower":     stdlib.LowerFunc,
	"format":    stdlib.FormatFunc,
	"join":      stdlib.JoinFunc,
	"trimspace": stdlib.TrimSpaceFunc,
	"substr":    stdlib.SubstrFunc,
	"replace":   stdlib.ReplaceFunc,
}

// IsFunction reports whether name can be called from an expression.
func IsFunction(name string) bool {
	if name == ExecFunctionName {
		return true
	}
	_, ok := functions[name]
	return ok
}

// FunctionNames lists the callable function names.
func FunctionNames() []string {
	names := make([]string, 0, len(functions)+1)
	names = append(names, ExecFunctionName)
	for n := range functions {
		names = append(names, n)
	}
	return names
}

func evalFunctions(ctx context.Context, timeout time.Duration) map[string]function.Function {
	fns := make(map[string]function.Function, len(functions)+1)
	for n, f := range functions {
		fns[n] = f
	}
	fns[ExecFunctionName] = execFunction(ctx, timeout)
	return fns
}

// execFunction runs a program and returns its standard output with trailing
// newlines removed. Arguments are passed as-is, never through a shell.
func execFunction(ctx context.Context, timeout time.Duration) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "program", Type: cty.String},
		},
		VarParam: &function.Parameter{Name: "args", Type: cty.String},
		Type:     function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			program := args[0].AsString()
			argv := make([]string, 0, len(args)-1)
			for _, a := range args[1:] {
				argv = append(argv, a.AsString())
			}

			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			out, err := exec.CommandContext(cctx, program, argv...).Output()
			if err != nil {
				return cty.NilVal, fmt.Errorf("exec %s: %w", program, err)
			}
			return cty.StringVal(strings.TrimRight(string(out), "\r\n")), nil
		},
	})
}
