package dev

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DispatchMode decides whether parsed calls are executed.
type DispatchMode string

const (
	DispatchNever   DispatchMode = "never"
	DispatchConfirm DispatchMode = "confirm"
	DispatchAlways  DispatchMode = "always"
)

// ParseDispatchMode accepts never, confirm or always in any case. An empty
// string means confirm.
func ParseDispatchMode(s string) (DispatchMode, error) {
	switch mode := DispatchMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return DispatchConfirm, nil
	case DispatchNever, DispatchConfirm, DispatchAlways:
		return mode, nil
	default:
		return "", errors.Errorf("invalid dispatch mode %q, expected never, confirm or always", s)
	}
}

// Config holds the orchestrator settings read from the configuration file.
type Config struct {
	Dispatch  string          `mapstructure:"dispatch"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	Directive DirectiveConfig `mapstructure:"directive"`
	Calls     CallsConfig     `mapstructure:"calls"`
	Context   ContextConfig   `mapstructure:"context"`
}

type DirectiveConfig struct {
	Prefix      string `mapstructure:"prefix"`
	SkipUnknown bool   `mapstructure:"skip_unknown"`
}

type CallsConfig struct {
	Tag string `mapstructure:"tag"`
}

// ContextConfig limits the files shown to the model.
type ContextConfig struct {
	Selector string   `mapstructure:"selector"` // "keyword" or "model"
	Include  string   `mapstructure:"include"`
	Ignore   []string `mapstructure:"ignore"`
	MaxFiles int      `mapstructure:"max_files"`
	MaxBytes int      `mapstructure:"max_bytes"`
}
