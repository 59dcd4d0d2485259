package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/vk/scagents/internal/inmemorygraph"
	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
	"github.com/vk/scagents/internal/sqlitegraph"
)

// ErrNotApplied is returned by Run when the template or action completed
// without producing results.
var ErrNotApplied = errors.New("template was not applied")

// maxSuggestions caps the "did you mean" list of an unknown identifier.
const maxSuggestions = 3

// UnknownIdentifierError reports a system identifier the graph does not
// know, together with the closest known ones.
type UnknownIdentifierError struct {
	Identifier  string
	Suggestions []string
}

func (e *UnknownIdentifierError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown identifier %q", e.Identifier)
	}
	return fmt.Sprintf("unknown identifier %q (did you mean %s?)", e.Identifier, strings.Join(e.Suggestions, ", "))
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp is the constructor for the main application. Results are written
// to outW and logs to logW.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")
	return &App{outW: outW, logger: logger, config: cfg}
}

// openSQLite is swapped in tests.
var openSQLite = func(ctx context.Context, path string) (scmemory.Store, error) {
	return sqlitegraph.Open(ctx, path)
}

func (a *App) openStore(ctx context.Context) (scmemory.Store, error) {
	switch a.config.Store {
	case StoreSQLite:
		s, err := openSQLite(ctx, a.config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil
	default:
		return inmemorygraph.New(), nil
	}
}

// resolve looks a system identifier up, suggesting close matches when it is
// unknown.
func resolve(ctx context.Context, store scmemory.Store, idtf string) (sc.Addr, error) {
	a, ok, err := store.ResolveSystemIdentifier(ctx, idtf)
	if err != nil {
		return sc.EmptyAddr, fmt.Errorf("resolving %q: %w", idtf, err)
	}
	if ok {
		return a, nil
	}

	known, err := store.SystemIdentifiers(ctx)
	if err != nil {
		return sc.EmptyAddr, fmt.Errorf("listing identifiers: %w", err)
	}
	unknown := &UnknownIdentifierError{Identifier: idtf}
	for _, m := range fuzzy.Find(idtf, known) {
		if len(unknown.Suggestions) == maxSuggestions {
			break
		}
		unknown.Suggestions = append(unknown.Suggestions, m.Str)
	}
	return sc.EmptyAddr, unknown
}
