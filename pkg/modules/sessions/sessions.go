// Package sessions tracks accounting sessions in SQLite.
//
// Every accounting request is appended to a session list chosen by a key
// template, for example the NAS address and session id. Lists can be
// trimmed to a maximum length and have their expiry refreshed on each
// update; a cron schedule purges lists that expired. Statements run off the
// interpreter goroutine: the module pushes a function frame that yields
// until each statement completes.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"mercator-hq/callisto/pkg/dict"
	"mercator-hq/callisto/pkg/expr"
	"mercator-hq/callisto/pkg/interpreter"
	"mercator-hq/callisto/pkg/modules"
	"mercator-hq/callisto/pkg/pairs"
)

// Type is the module type name.
const Type = "sessions"

// StatusAttribute selects the section used for a request.
const StatusAttribute = "Acct-Status-Type"

func init() {
	modules.Register(Type, func(name string, settings *yaml.Node, deps modules.Deps) (interpreter.Module, error) {
		return New(name, settings, deps)
	})
}

// Config holds the module settings.
type Config struct {
	// Database is the SQLite database path.
	Database string `yaml:"database"`

	// BusyTimeout is how long to wait for locks.
	// Default: 5 seconds
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// TrimCount is the maximum length of a session list. Negative values
	// disable trimming.
	// Default: -1
	TrimCount int64 `yaml:"trim_count"`

	// Expiry is how long a list lives after its last update.
	// Default: 24 hours
	Expiry time.Duration `yaml:"expiry"`

	// StatementTimeout bounds each statement.
	// Default: 5 seconds
	StatementTimeout time.Duration `yaml:"statement_timeout"`

	// PurgeSchedule is a cron expression for deleting expired lists.
	// Empty disables purging.
	PurgeSchedule string `yaml:"purge_schedule"`

	// Sections maps Acct-Status-Type names to the templates used for
	// requests of that type. Types without a section are ignored.
	Sections map[string]SectionConfig `yaml:"sections"`
}

// SectionConfig holds the templates for one status type.
type SectionConfig struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type section struct {
	key   *expr.Template
	value *expr.Template
}

// Module is a sessions module instance.
type Module struct {
	name     string
	cfg      Config
	status   *dict.Attribute
	sections map[string]*section
	store    *store
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron

	// inflight counts updates whose statement context is still live.
	inflight atomic.Int64
}

// New creates a sessions module and opens its database.
func New(name string, settings *yaml.Node, deps modules.Deps) (*Module, error) {
	cfg := Config{
		BusyTimeout:      5 * time.Second,
		TrimCount:        -1,
		Expiry:           24 * time.Hour,
		StatementTimeout: 5 * time.Second,
	}
	if err := modules.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.Expiry <= 0 {
		return nil, fmt.Errorf("expiry must be positive")
	}
	if cfg.StatementTimeout <= 0 {
		return nil, fmt.Errorf("statement_timeout must be positive")
	}
	if cfg.PurgeSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PurgeSchedule); err != nil {
			return nil, fmt.Errorf("invalid cron schedule %q: %w", cfg.PurgeSchedule, err)
		}
	}

	d := deps.Dictionary
	if d == nil {
		d = dict.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	status, ok := d.Lookup(StatusAttribute)
	if !ok {
		return nil, fmt.Errorf("dictionary has no %s attribute", StatusAttribute)
	}

	m := &Module{
		name:     name,
		cfg:      cfg,
		status:   status,
		sections: make(map[string]*section, len(cfg.Sections)),
		logger:   logger.With("component", "sessions"),
		now:      time.Now,
	}

	names := make([]string, 0, len(cfg.Sections))
	for n := range cfg.Sections {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		v, ok := status.Value(n)
		if !ok {
			return nil, fmt.Errorf("sections: %q is not a value of %s", n, StatusAttribute)
		}
		canonical, _ := status.ValueName(v)
		sec, err := compileSection(n, cfg.Sections[n], d)
		if err != nil {
			return nil, err
		}
		m.sections[canonical] = sec
	}

	st, err := openStore(cfg.Database, cfg.BusyTimeout)
	if err != nil {
		return nil, err
	}
	m.store = st
	return m, nil
}

func compileSection(name string, sc SectionConfig, d *dict.Dictionary) (*section, error) {
	if strings.TrimSpace(sc.Key) == "" {
		return nil, fmt.Errorf("sections.%s: key is required", name)
	}
	if strings.TrimSpace(sc.Value) == "" {
		return nil, fmt.Errorf("sections.%s: value is required", name)
	}

	key, diags := expr.ParseTemplate(sc.Key, "sections."+name+".key", d)
	if diags.HasErrors() {
		return nil, fmt.Errorf("sections.%s.key: %s", name, diags.Error())
	}
	value, diags := expr.ParseTemplate(sc.Value, "sections."+name+".value", d)
	if diags.HasErrors() {
		return nil, fmt.Errorf("sections.%s.value: %s", name, diags.Error())
	}
	return &section{key: key, value: value}, nil
}

// Name returns the instance name.
func (m *Module) Name() string { return m.name }

// Call records the request in its session list.
func (m *Module) Call(ctx context.Context, result *interpreter.Result, mctx *interpreter.ModuleContext, req *interpreter.Request) interpreter.Action {
	logger := mctx.Logger

	status, sec, ok := m.sectionFor(req.Lists)
	if !ok {
		logger.Debug("no section for request, skipping", "status", status)
		*result = interpreter.NewResult(interpreter.RcodeNoop)
		return interpreter.ActionCalculateResult
	}

	key, err := sec.key.EvalString(ctx, req.Lists)
	if err == nil && key == "" {
		err = expr.ErrEmptyExpansion
	}
	if err != nil {
		logger.Error("failed to expand session key", "status", status, "error", err)
		*result = interpreter.NewResult(interpreter.RcodeFail)
		return interpreter.ActionCalculateResult
	}
	value, err := sec.value.EvalString(ctx, req.Lists)
	if err != nil {
		logger.Error("failed to expand session value", "status", status, "error", err)
		*result = interpreter.NewResult(interpreter.RcodeFail)
		return interpreter.ActionCalculateResult
	}

	now := m.now()
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.StatementTimeout)
	m.inflight.Add(1)
	j := &job{
		ctx: jctx,
		cancel: sync.OnceFunc(func() {
			cancel()
			m.inflight.Add(-1)
		}),
		logger: logger,
		session: Session{
			Key:       key,
			Value:     value,
			Status:    status,
			CreatedAt: now,
			ExpiresAt: now.Add(m.cfg.Expiry),
		},
	}

	action := interpreter.PushFunction(req,
		interpreter.WithResult(m.insertStart),
		interpreter.WithResult(m.insertDone),
		cancelJob, interpreter.SignalDetach|interpreter.SignalDup,
		false, j)
	if action == interpreter.ActionFail {
		j.cancel()
	}
	return action
}

// sectionFor returns the section matching the request's status type.
func (m *Module) sectionFor(lists *pairs.Lists) (string, *section, bool) {
	p, ok := lists.Request.Find(m.status.Name)
	if !ok {
		return "", nil, false
	}
	v, err := pairs.Uint(p.Value)
	if err != nil {
		return "", nil, false
	}
	name, ok := m.status.ValueName(v)
	if !ok {
		return fmt.Sprint(v), nil, false
	}
	sec, ok := m.sections[name]
	return name, sec, ok
}

// InFlight returns the number of updates that have not finished.
func (m *Module) InFlight() int64 { return m.inflight.Load() }

// Sessions returns the live rows of the list stored under key.
func (m *Module) Sessions(ctx context.Context, key string) ([]Session, error) {
	return m.store.list(ctx, key, m.now())
}

// Purge deletes expired lists and returns the number of rows removed.
func (m *Module) Purge(ctx context.Context) (int64, error) {
	return m.store.purge(ctx, m.now())
}

// Start schedules purging when a purge schedule is configured.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.PurgeSchedule == "" {
		m.logger.Info("purge schedule not configured, skipping scheduler")
		return nil
	}
	if m.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(m.cfg.PurgeSchedule, func() { m.runPurge(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule purging: %w", err)
	}
	c.Start()
	m.cron = c
	m.logger.Info("session purge scheduled", "schedule", m.cfg.PurgeSchedule)

	go func() {
		<-ctx.Done()
		m.stopCron()
	}()
	return nil
}

func (m *Module) runPurge(ctx context.Context) {
	deleted, err := m.Purge(ctx)
	if err != nil {
		m.logger.Error("scheduled purge failed", "error", err)
		return
	}
	if deleted > 0 {
		m.logger.Info("scheduled purge completed", "deleted_count", deleted)
	} else {
		m.logger.Debug("scheduled purge completed, no sessions deleted")
	}
}

func (m *Module) stopCron() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		<-m.cron.Stop().Done()
		m.cron = nil
	}
}

// Close stops purging and closes the database.
func (m *Module) Close() error {
	m.stopCron()
	return m.store.close()
}
