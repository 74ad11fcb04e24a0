// Package always implements a module that returns a configured result
// code. With yield set it suspends the request once before returning,
// which makes it useful for exercising resumption.
package always

import (
	"context"
	"fmt"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"mercator-hq/callisto/pkg/interpreter"
	"mercator-hq/callisto/pkg/modules"
)

// Type is the module type name.
const Type = "always"

func init() {
	modules.Register(Type, New)
}

// Config holds the module settings.
type Config struct {
	Rcode string `yaml:"rcode"`
	Yield bool   `yaml:"yield"`
}

// Module returns its configured rcode for every call.
type Module struct {
	name  string
	rcode interpreter.Rcode
	yield bool
	calls atomic.Int64
}

// New creates an always module. The default rcode is ok.
func New(name string, settings *yaml.Node, _ modules.Deps) (interpreter.Module, error) {
	cfg := Config{Rcode: "ok"}
	if err := modules.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	rc, err := interpreter.ParseRcode(cfg.Rcode)
	if err != nil {
		return nil, fmt.Errorf("rcode: %w", err)
	}
	return &Module{name: name, rcode: rc, yield: cfg.Yield}, nil
}

// Name returns the instance name.
func (m *Module) Name() string { return m.name }

// Calls returns the number of calls made so far.
func (m *Module) Calls() int64 { return m.calls.Load() }

// Call implements interpreter.Module.
func (m *Module) Call(_ context.Context, result *interpreter.Result, _ *interpreter.ModuleContext, req *interpreter.Request) interpreter.Action {
	m.calls.Add(1)
	if !m.yield {
		*result = interpreter.NewResult(m.rcode)
		return interpreter.ActionCalculateResult
	}
	return interpreter.PushFunction(req,
		interpreter.NoResult(m.suspend),
		interpreter.WithResult(m.resume),
		nil, 0, false, nil)
}

func (m *Module) suspend(_ context.Context, req *interpreter.Request, _ any) interpreter.Action {
	go req.Resume()
	return interpreter.ActionYield
}

func (m *Module) resume(_ context.Context, result *interpreter.Result, _ *interpreter.Request, _ any) interpreter.Action {
	*result = interpreter.NewResult(m.rcode)
	return interpreter.ActionCalculateResult
}
