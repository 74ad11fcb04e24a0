package cli

import (
	"errors"
	"fmt"
	"testing"

	"mercator-hq/callisto/pkg/compiler"
)

func TestConfigError(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "with field",
			err:  &ConfigError{Field: "policy.file", Message: "missing required field"},
			want: "config error in policy.file: missing required field",
		},
		{
			name: "without field",
			err:  NewConfigError("", "failed to load"),
			want: "config error: failed to load",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	underlying := errors.New("underlying error")
	err := NewCommandError("run", underlying)

	if got, want := err.Error(), "command run failed: underlying error"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is() should see through CommandError")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitFailure},
		{"config", NewConfigError("scheduler.workers", "must be positive"), ExitConfig},
		{"wrapped config", fmt.Errorf("run: %w", NewConfigError("", "bad")), ExitConfig},
		{"compile", NewCommandError("check", &compiler.CompileError{}), ExitCompile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
