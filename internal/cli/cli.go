package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/scagents/internal/app"
)

// Exit codes.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("scagents", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
scagents - apply sc-memory templates to a knowledge base.

Usage:
  scagents [options] [KB_PATH...]

Arguments:
  KB_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	var patterns stringList
	flagSet.Var(&patterns, "kb", "Glob of knowledge base files, e.g. 'kb/**/*.hcl'. Repeatable.")
	storeFlag := flagSet.String("store", app.StoreMemory, "Graph store. Options: 'memory' or 'sqlite'.")
	dbFlag := flagSet.String("db", "", "Path of the sqlite database file.")
	templateFlag := flagSet.String("template", "", "System identifier of the template to apply.")
	argumentsFlag := flagSet.String("arguments", "", "System identifier of the set holding the argument arcs.")
	actionFlag := flagSet.String("action", "", "System identifier of an apply-template action to run.")
	outputFlag := flagSet.String("output", app.OutputText, "Result format. Options: 'text', 'json' or 'yaml'.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	waitIntervalFlag := flagSet.Duration("wait-interval", 0, "Poll interval of wait templates. 0 keeps the default.")
	waitTimeoutFlag := flagSet.Duration("wait-timeout", 0, "Timeout of wait templates without their own wait time. 0 keeps the default.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	paths := flagSet.Args()
	store := strings.ToLower(*storeFlag)
	if len(paths) == 0 && len(patterns) == 0 && store != app.StoreSQLite {
		slog.Debug("No knowledge base provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		KBPaths:      paths,
		KBPatterns:   patterns,
		Store:        store,
		DBPath:       *dbFlag,
		Template:     *templateFlag,
		Arguments:    *argumentsFlag,
		Action:       *actionFlag,
		Output:       strings.ToLower(*outputFlag),
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		WaitInterval: *waitIntervalFlag,
		WaitTimeout:  *waitTimeoutFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
