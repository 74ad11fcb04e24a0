package modules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"mercator-hq/callisto/pkg/dict"
	"mercator-hq/callisto/pkg/interpreter"
)

// ErrUnknownType is returned for module types nobody registered.
var ErrUnknownType = errors.New("unknown module type")

// Deps are the shared services handed to module factories.
type Deps struct {
	Dictionary *dict.Dictionary
	Logger     *slog.Logger
}

// Factory creates a module instance. settings may be nil when the instance
// has no settings block.
type Factory func(name string, settings *yaml.Node, deps Deps) (interpreter.Module, error)

// Starter is implemented by modules with background work, e.g. scheduled
// maintenance. Start must not block.
type Starter interface {
	Start(ctx context.Context) error
}

// Instance is the configuration of one module instance.
type Instance struct {
	Type     string    `yaml:"type"`
	Settings yaml.Node `yaml:"settings"`
}

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a module type available. It panics on duplicates.
func Register(typ string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[typ]; exists {
		panic(fmt.Sprintf("modules: type %q registered twice", typ))
	}
	factories[typ] = f
}

// Types returns the registered module types.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Set is a collection of module instances. It implements
// interpreter.ModuleResolver.
type Set struct {
	modules map[string]interpreter.Module
	names   []string
}

// Load creates every configured instance. Instances are created in name
// order; on error the ones already created are closed.
func Load(instances map[string]Instance, deps Deps) (*Set, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Dictionary == nil {
		deps.Dictionary = dict.Default()
	}

	names := make([]string, 0, len(instances))
	for name := range instances {
		names = append(names, name)
	}
	sort.Strings(names)

	s := &Set{modules: make(map[string]interpreter.Module, len(instances))}
	for _, name := range names {
		inst := instances[name]

		mu.RLock()
		factory, ok := factories[inst.Type]
		mu.RUnlock()
		if !ok {
			s.Close()
			return nil, fmt.Errorf("module %s: %w %q", name, ErrUnknownType, inst.Type)
		}

		var settings *yaml.Node
		if inst.Settings.Kind != 0 {
			settings = &inst.Settings
		}
		m, err := factory(name, settings, Deps{
			Dictionary: deps.Dictionary,
			Logger:     deps.Logger.With("module", name),
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
		s.Add(m)
		deps.Logger.Debug("module instantiated", "module", name, "type", inst.Type)
	}
	return s, nil
}

// NewSet returns a set holding the given modules.
func NewSet(mods ...interpreter.Module) *Set {
	s := &Set{modules: make(map[string]interpreter.Module, len(mods))}
	for _, m := range mods {
		s.Add(m)
	}
	return s
}

// Add adds a module, replacing any with the same name.
func (s *Set) Add(m interpreter.Module) {
	if _, exists := s.modules[m.Name()]; !exists {
		s.names = append(s.names, m.Name())
		sort.Strings(s.names)
	}
	s.modules[m.Name()] = m
}

// Module returns the named instance.
func (s *Set) Module(name string) (interpreter.Module, bool) {
	m, ok := s.modules[name]
	return m, ok
}

// Names returns the instance names.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Start starts every module with background work.
func (s *Set) Start(ctx context.Context) error {
	for _, name := range s.names {
		if st, ok := s.modules[name].(Starter); ok {
			if err := st.Start(ctx); err != nil {
				return fmt.Errorf("module %s: %w", name, err)
			}
		}
	}
	return nil
}

// Close closes every module holding resources.
func (s *Set) Close() error {
	var errs []error
	for _, name := range s.names {
		if c, ok := s.modules[name].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("module %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// DecodeSettings decodes settings into out, rejecting unknown fields. A nil
// node leaves out untouched.
func DecodeSettings(settings *yaml.Node, out any) error {
	if settings == nil {
		return nil
	}
	// Re-encode so KnownFields can be enforced by a decoder.
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
