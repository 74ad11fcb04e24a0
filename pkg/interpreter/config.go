package interpreter

import (
	"fmt"
	"log/slog"
)

// DefaultMaxStackDepth is the default limit on frames per request.
const DefaultMaxStackDepth = 256

// Config holds interpreter limits.
type Config struct {
	// MaxStackDepth limits the frames a request can have. A push beyond it
	// fails the request.
	MaxStackDepth int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{MaxStackDepth: DefaultMaxStackDepth}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxStackDepth < 1 {
		return fmt.Errorf("%w: max stack depth must be positive, got %d", ErrInvalidConfig, c.MaxStackDepth)
	}
	return nil
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger. Requests without their own logger use it.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interpreter) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithRandomSource replaces the source used for uniform selection.
func WithRandomSource(src RandomSource) Option {
	return func(i *Interpreter) {
		if src != nil {
			i.random = src
		}
	}
}

// WithObserver installs an observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(i *Interpreter) {
		if o != nil {
			i.observer = o
		}
	}
}
