package interpreter

import (
	"context"
	"log/slog"
)

// Module is a leaf implementation invoked by call instructions.
//
// Call either writes result and returns ActionCalculateResult, or pushes a
// function frame (PushFunction) and returns ActionPushedChild when it has
// to wait for something; the function frame's result then becomes the
// call's result. Call must not return ActionYield itself.
type Module interface {
	Name() string
	Call(ctx context.Context, result *Result, mctx *ModuleContext, req *Request) Action
}

// ModuleResolver finds module instances by name.
type ModuleResolver interface {
	Module(name string) (Module, bool)
}

// ModuleContext describes the call being made.
type ModuleContext struct {
	// Instruction is the call instruction.
	Instruction *ModuleCall

	// Method is the method being called, e.g. "accounting".
	Method string

	// Logger is the request logger annotated with the module name.
	Logger *slog.Logger
}

func init() {
	registerOp(TypeModule, &op{
		name:      "module",
		interpret: moduleProcess,
	})
}

func moduleProcess(ctx context.Context, result *Result, req *Request, f *Frame) Action {
	mc := f.instruction.(*ModuleCall)
	mctx := &ModuleContext{
		Instruction: mc,
		Method:      mc.Method,
		Logger:      req.logger.With("module", mc.Module.Name()),
	}

	action := mc.Module.Call(ctx, result, mctx, req)
	if action == ActionYield {
		req.setErr(&FrameError{Instruction: mc.DebugName(), Depth: f.depth, Cause: ErrUnexpectedYield})
		return ActionFail
	}
	return action
}
