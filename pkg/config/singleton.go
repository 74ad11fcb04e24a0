package config

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// current holds the process-wide configuration.
	current atomic.Pointer[Config]

	// loadedFrom is the path Initialize loaded, used by ReloadConfig.
	loadedFrom string

	initMu sync.Mutex
)

// ErrNotInitialized is returned by ReloadConfig before Initialize.
var ErrNotInitialized = errors.New("configuration not initialized")

// Initialize loads configuration from path with environment overrides and
// stores it as the process-wide configuration. Only the first successful
// call has an effect.
func Initialize(path string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if current.Load() != nil {
		return nil
	}
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return err
	}
	loadedFrom = path
	current.Store(cfg)
	return nil
}

// GetConfig returns the process-wide configuration, or nil before
// Initialize.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig replaces the process-wide configuration. Meant for tests.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// ReloadConfig reloads the file Initialize loaded. On error the current
// configuration stays in place.
func ReloadConfig() error {
	initMu.Lock()
	path := loadedFrom
	initMu.Unlock()

	if path == "" {
		return ErrNotInitialized
	}
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	current.Store(cfg)
	return nil
}

// MustGetConfig returns the process-wide configuration and panics before
// Initialize.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}
