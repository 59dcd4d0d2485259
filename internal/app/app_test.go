package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vk/scagents/internal/scmemory"
)

const universityKB = `
connector "arg_bsuir" {
  from = "concept_university"
  to   = "bsuir"
}
connector "c_minsk" {
  from = "concept_city"
  to   = "minsk"
}
connector "bsuir_city" {
  type  = "common_arc"
  from  = "bsuir"
  to    = "minsk"
  attrs = ["nrel_city"]
}
set "bsuir_args" { members = ["arg_bsuir"] }
`

const templatesKB = `
connector "_u_arc" {
  type = "var_membership"
  from = "concept_university"
  to   = "_university"
}
connector "_c_arc" {
  type = "var_membership"
  from = "concept_city"
  to   = "_city"
}
connector "_rel" {
  type  = "var_common_arc"
  from  = "_university"
  to    = "_city"
  attrs = ["nrel_city"]
}
set "city_struct" {
  type    = "structure"
  members = ["_u_arc", "_c_arc", "_rel"]
}
set "input_university" { members = ["concept_university"] }
template "find_city" {
  kind      = "search"
  structure = "city_struct"
  input     = "input_university"
}

node "find_bsuir" { classes = ["action_apply_template", "action_initiated"] }
connector "find_bsuir_tpl" {
  from  = "find_bsuir"
  to    = "find_city"
  attrs = ["rrel_1"]
}
connector "find_bsuir_args" {
  from  = "find_bsuir"
  to    = "bsuir_args"
  attrs = ["rrel_2"]
}
`

func writeKB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	WriteKB(t, dir, "data/universities.hcl", universityKB)
	WriteKB(t, dir, "templates/city.hcl", templatesKB)
	return dir
}

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"minimal", Config{KBPaths: []string{"kb"}, Template: "t"}, ""},
		{"sqlite without kb", Config{Store: StoreSQLite, DBPath: "x.db", Action: "a"}, ""},
		{"no kb", Config{Template: "t"}, "knowledge base"},
		{"sqlite without db", Config{Store: StoreSQLite, Template: "t"}, "DBPath"},
		{"unknown store", Config{Store: "redis", Template: "t"}, "unknown store"},
		{"template and action", Config{KBPaths: []string{"kb"}, Template: "t", Action: "a"}, "exactly one"},
		{"neither template nor action", Config{KBPaths: []string{"kb"}}, "exactly one"},
		{"action with arguments", Config{KBPaths: []string{"kb"}, Action: "a", Arguments: "s"}, "cannot be combined"},
		{"bad output", Config{KBPaths: []string{"kb"}, Template: "t", Output: "xml"}, "output format"},
		{"negative wait", Config{KBPaths: []string{"kb"}, Template: "t", WaitTimeout: -time.Second}, "negative"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, cfg.Store)
			assert.NotEmpty(t, cfg.Output)
		})
	}
}

func TestRun_AppliesTemplate(t *testing.T) {
	// --- Arrange ---
	dir := writeKB(t)
	a, out, logs := SetupAppTest(t, Config{
		KBPaths:   []string{dir},
		Template:  "find_city",
		Arguments: "bsuir_args",
		Output:    OutputJSON,
	})

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	var rep report
	require.NoError(t, json.Unmarshal([]byte(out.String()), &rep))
	assert.True(t, rep.Success)
	assert.Equal(t, "search", rep.Kind)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "bsuir", rep.Results[0]["concept_university"])
	assert.Equal(t, "minsk", rep.Results[0]["concept_city"])
	assert.Contains(t, logs.String(), "Knowledge base loaded.")
}

func TestRun_GlobPatterns(t *testing.T) {
	dir := writeKB(t)
	a, out, _ := SetupAppTest(t, Config{
		KBPatterns: []string{filepath.Join(dir, "**", "*.hcl")},
		Template:   "find_city",
		Arguments:  "bsuir_args",
		Output:     OutputYAML,
	})

	require.NoError(t, a.Run(context.Background()))

	var rep report
	require.NoError(t, yaml.Unmarshal([]byte(out.String()), &rep))
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "minsk", rep.Results[0]["concept_city"])
}

func TestRun_NotApplied(t *testing.T) {
	dir := writeKB(t)
	a, out, logs := SetupAppTest(t, Config{KBPaths: []string{dir}, Template: "find_city"})

	err := a.Run(context.Background())

	assert.ErrorIs(t, err, ErrNotApplied)
	assert.Contains(t, out.String(), "Template find_city not applied, 0 result(s)")
	assert.Contains(t, logs.String(), "Required template parameter is not bound.")
}

func TestRun_Action(t *testing.T) {
	dir := writeKB(t)
	a, out, _ := SetupAppTest(t, Config{KBPaths: []string{dir}, Action: "find_bsuir"})

	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "Action find_bsuir (")
	assert.Contains(t, out.String(), "): succeeded")
	assert.Contains(t, out.String(), "concept_city -> minsk")
}

func TestRun_UnknownIdentifierSuggests(t *testing.T) {
	dir := writeKB(t)
	a, _, _ := SetupAppTest(t, Config{KBPaths: []string{dir}, Template: "find_cty"})

	err := a.Run(context.Background())

	var unknown *UnknownIdentifierError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "find_cty", unknown.Identifier)
	assert.Contains(t, unknown.Suggestions, "find_city")
	assert.Contains(t, err.Error(), "did you mean")
}

func TestRun_SQLitePersistsKB(t *testing.T) {
	// --- Arrange ---
	dir := writeKB(t)
	db := filepath.Join(t.TempDir(), "kb.db")
	load, _, _ := SetupAppTest(t, Config{Store: StoreSQLite, DBPath: db, KBPaths: []string{dir}, Template: "find_city", Arguments: "bsuir_args"})
	require.NoError(t, load.Run(context.Background()))

	// --- Act ---
	reuse, out, _ := SetupAppTest(t, Config{Store: StoreSQLite, DBPath: db, Template: "find_city", Arguments: "bsuir_args"})
	err := reuse.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, out.String(), "concept_university -> bsuir")
}

func TestRun_SQLiteOpenError(t *testing.T) {
	orig := openSQLite
	t.Cleanup(func() { openSQLite = orig })
	boom := errors.New("disk on fire")
	openSQLite = func(context.Context, string) (scmemory.Store, error) { return nil, boom }

	a, _, _ := SetupAppTest(t, Config{Store: StoreSQLite, DBPath: "ignored.db", Template: "t"})
	err := a.Run(context.Background())

	assert.ErrorIs(t, err, boom)
}

func TestNewLogger(t *testing.T) {
	var buf SafeBuffer
	logger := newLogger("warn", "json", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
