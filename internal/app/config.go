package app

import (
	"errors"
	"fmt"
	"time"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	KBPaths    []string // files or directories of .hcl files
	KBPatterns []string // doublestar globs

	Store  string
	DBPath string

	Template  string // system identifier of the template to apply
	Arguments string // system identifier of the argument set
	Action    string // system identifier of an apply-template action

	Output    string
	LogFormat string
	LogLevel  string

	WaitInterval time.Duration
	WaitTimeout  time.Duration
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Store == "" {
		cfg.Store = StoreMemory
	}
	if cfg.Output == "" {
		cfg.Output = OutputText
	}

	switch cfg.Store {
	case StoreMemory:
		if len(cfg.KBPaths) == 0 && len(cfg.KBPatterns) == 0 {
			return nil, errors.New("at least one knowledge base path or pattern is required with the memory store")
		}
	case StoreSQLite:
		if cfg.DBPath == "" {
			return nil, errors.New("DBPath is required with the sqlite store")
		}
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if (cfg.Template == "") == (cfg.Action == "") {
		return nil, errors.New("exactly one of Template or Action must be set")
	}
	if cfg.Action != "" && cfg.Arguments != "" {
		return nil, errors.New("Arguments cannot be combined with Action; the action names its own arguments")
	}

	switch cfg.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Output)
	}
	if cfg.WaitInterval < 0 || cfg.WaitTimeout < 0 {
		return nil, errors.New("wait durations must not be negative")
	}
	return &cfg, nil
}
