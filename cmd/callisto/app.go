package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/compiler"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/dict"
	"mercator-hq/callisto/pkg/modules"
	"mercator-hq/callisto/pkg/telemetry/logging"
)

// loadConfig loads the configuration named by --config. A missing file is
// only tolerated when the flag was left at its default.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		cfg := config.NewDefault()
		if err := config.Validate(cfg); err != nil {
			return nil, cli.NewConfigError("", err.Error())
		}
		return cfg, nil
	}
	if err := config.Initialize(path); err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return config.GetConfig(), nil
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg *config.LoggingConfig, w io.Writer, debug bool) (*slog.Logger, error) {
	patterns := make([]logging.Pattern, 0, len(cfg.RedactPatterns))
	for _, p := range cfg.RedactPatterns {
		patterns = append(patterns, logging.Pattern{Name: p.Name, Pattern: p.Pattern, Replacement: p.Replacement})
	}
	level := cfg.Level
	if debug {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:          level,
		Format:         cfg.Format,
		AddSource:      cfg.AddSource,
		Redact:         cfg.RedactEnabled(),
		RedactKeys:     cfg.RedactKeys,
		RedactPatterns: patterns,
		Writer:         w,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return logger, nil
}

// policyEnv is everything needed to compile a policy.
type policyEnv struct {
	dict     *dict.Dictionary
	modules  *modules.Set
	compiler *compiler.Compiler
}

// newPolicyEnv loads the dictionary and creates the configured module
// instances. The caller must close the module set.
func newPolicyEnv(cfg *config.Config, logger *slog.Logger) (*policyEnv, error) {
	d, err := dict.Load(cfg.Dictionary.File)
	if err != nil {
		return nil, cli.NewConfigError("dictionary.file", err.Error())
	}

	instances := make(map[string]modules.Instance, len(cfg.Modules))
	for name, mc := range cfg.Modules {
		instances[name] = modules.Instance{Type: mc.Type, Settings: mc.Settings}
	}
	mods, err := modules.Load(instances, modules.Deps{Dictionary: d, Logger: logger})
	if err != nil {
		return nil, cli.NewConfigError("modules", err.Error())
	}

	c := compiler.New(d, mods,
		compiler.WithLogger(logger),
		compiler.WithExecTimeout(cfg.Policy.ExecTimeout),
	)
	return &policyEnv{dict: d, modules: mods, compiler: c}, nil
}

func (e *policyEnv) close(logger *slog.Logger) {
	if err := e.modules.Close(); err != nil {
		logger.Error("failed to close modules", "error", err)
	}
}

// startModules runs module background work until ctx is done.
func (e *policyEnv) startModules(ctx context.Context) error {
	if err := e.modules.Start(ctx); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	return nil
}
