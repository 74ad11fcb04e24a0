package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/interpreter"
	"mercator-hq/callisto/pkg/telemetry/tracing"
)

// ErrNoProgram is returned when no policy has been loaded yet.
var ErrNoProgram = errors.New("no policy loaded")

// Compiler compiles a policy file. *compiler.Compiler implements it.
type Compiler interface {
	CompileFile(path string) (*interpreter.Program, error)
}

// Tracer starts spans. Both trace.Tracer and *tracing.Tracer implement it.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// ReloadFunc is told about every compile attempt.
type ReloadFunc func(success bool, sections int)

// Status describes the last compile attempt.
type Status struct {
	// Source is the policy file.
	Source string

	// Sections are the section names of the active program.
	Sections []string

	// LoadedAt is when the active program was compiled.
	LoadedAt time.Time

	// LastError is the error of the last attempt, nil if it succeeded.
	LastError error
}

// Manager owns the active policy program. Requests read the program with
// Program; a reload swaps it atomically, so requests already running keep
// the instructions they started with.
type Manager struct {
	config   *config.PolicyConfig
	compiler Compiler
	logger   *slog.Logger
	tracer   Tracer
	onReload ReloadFunc

	program atomic.Pointer[interpreter.Program]

	// mu serializes compiles and guards the fields below.
	mu       sync.Mutex
	loadedAt time.Time
	lastErr  error
	watching bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTracer sets the tracer used for compile spans.
func WithTracer(t Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithReloadHook registers fn to be called after each compile attempt.
func WithReloadHook(fn ReloadFunc) Option {
	return func(m *Manager) {
		m.onReload = fn
	}
}

// NewManager creates a manager. Nothing is compiled until Load.
func NewManager(cfg *config.PolicyConfig, c Compiler, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("policy config is nil")
	}
	if c == nil {
		return nil, errors.New("compiler is nil")
	}
	if cfg.File == "" {
		return nil, errors.New("policy file is empty")
	}

	m := &Manager{
		config:   cfg,
		compiler: c,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracing.InstrumentationName),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Load compiles the policy file and makes it the active program. On error
// the active program, if any, is kept.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	_, span := m.tracer.Start(ctx, tracing.SpanCompile)
	defer span.End()

	prog, err := m.compiler.CompileFile(m.config.File)
	if err != nil {
		m.lastErr = err
		tracing.SetCompileAttributes(span, m.config.File, 0)
		tracing.SetStatus(span, err)
		m.notify(false, 0)

		if m.program.Load() != nil {
			m.logger.Error("policy reload failed, keeping previous program",
				"file", m.config.File,
				"error", err,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		} else {
			m.logger.Error("policy load failed",
				"file", m.config.File,
				"error", err,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
		return fmt.Errorf("failed to compile %s: %w", m.config.File, err)
	}

	m.program.Store(prog)
	m.loadedAt = time.Now()
	m.lastErr = nil

	tracing.SetCompileAttributes(span, m.config.File, len(prog.Sections))
	tracing.SetStatus(span, nil)
	m.notify(true, len(prog.Sections))

	m.logger.Info("policy loaded",
		"file", m.config.File,
		"sections", len(prog.Sections),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (m *Manager) notify(success bool, sections int) {
	if m.onReload != nil {
		m.onReload(success, sections)
	}
}

// Program returns the active program, or nil before the first successful
// Load.
func (m *Manager) Program() *interpreter.Program {
	return m.program.Load()
}

// Section returns the root instruction of the named section in the active
// program.
func (m *Manager) Section(name string) (interpreter.Instruction, error) {
	prog := m.program.Load()
	if prog == nil {
		return nil, ErrNoProgram
	}
	inst, ok := prog.Section(name)
	if !ok {
		return nil, fmt.Errorf("section %q not defined in %s", name, prog.Source)
	}
	return inst, nil
}

// Status reports the active program and the last compile result.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Source:    m.config.File,
		LoadedAt:  m.loadedAt,
		LastError: m.lastErr,
	}
	if prog := m.program.Load(); prog != nil {
		for name := range prog.Sections {
			st.Sections = append(st.Sections, name)
		}
		sort.Strings(st.Sections)
	}
	return st
}

// Watch recompiles the policy whenever the file changes, until ctx is
// done. It fails when watching is disabled or already running.
func (m *Manager) Watch(ctx context.Context) error {
	if !m.config.Watch {
		return errors.New("policy watching is not enabled in configuration")
	}

	m.mu.Lock()
	if m.watching {
		m.mu.Unlock()
		return errors.New("watch already started")
	}
	m.watching = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.watching = false
		m.mu.Unlock()
	}()

	fw, err := NewFileWatcher(m.config.File, m.config.Debounce, m.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := fw.Close(); err != nil {
			m.logger.Error("failed to stop file watcher", "error", err)
		}
	}()

	return fw.Watch(ctx, func() {
		// Errors are logged and counted by Load.
		_ = m.Load(context.WithoutCancel(ctx))
	})
}
