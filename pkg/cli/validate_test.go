package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderSchema = `{
	"type": "object",
	"properties": {
		"id": {"type": "integer", "minimum": 1},
		"email": {"type": "string", "format": "email"}
	},
	"required": ["id"]
}`

func TestValidateCommand(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"order.schema.json": orderSchema,
		"ok.json":           `{"id": 1, "email": "a@example.com"}`,
		"ok.yaml":           "id: 2\n",
		"bad.json":          `{"id": 0, "email": "nope"}`,
		"broken.json":       `{"id":`,
		"bad.schema.json":   `{"type": "obj"}`,
	})
	p := func(name string) string { return filepath.Join(dir, name) }

	tests := []struct {
		name      string
		args      []string
		stdin     string
		wantErr   string
		invalid   bool
		wantLines []string
	}{
		{
			name:    "missing schema flag",
			args:    []string{p("ok.json")},
			wantErr: "-schema is required",
		},
		{
			name:    "missing instances",
			args:    []string{"-schema", p("order.schema.json")},
			wantErr: "at least one instance file is required",
		},
		{
			name:    "bad concurrency",
			args:    []string{"-schema", p("order.schema.json"), "-concurrency", "0", p("ok.json")},
			wantErr: "-concurrency must be at least 1",
		},
		{
			name:    "unreadable schema",
			args:    []string{"-schema", p("nope.json"), p("ok.json")},
			wantErr: "failed to read schema",
		},
		{
			name:    "invalid schema",
			args:    []string{"-schema", p("bad.schema.json"), p("ok.json")},
			wantErr: `invalid schema at "/type"`,
		},
		{
			name:      "all valid",
			args:      []string{"-schema", p("order.schema.json"), p("ok.json"), p("ok.yaml")},
			wantLines: []string{p("ok.json") + ": valid", p("ok.yaml") + ": valid"},
		},
		{
			name:    "invalid instance",
			args:    []string{"-schema", p("order.schema.json"), p("ok.json"), p("bad.json"), p("broken.json")},
			invalid: true,
			wantLines: []string{
				p("ok.json") + ": valid",
				p("bad.json") + ": invalid",
				"  /id: 0 is less than the minimum of 1",
			},
		},
		{
			name:      "format not asserted",
			args:      []string{"-schema", p("order.schema.json"), "-assert-format=false", p("bad.json")},
			invalid:   true,
			wantLines: []string{p("bad.json") + ": invalid", "  /id: 0 is less than the minimum of 1"},
		},
		{
			name:      "stdin instance",
			args:      []string{"-schema", p("order.schema.json"), "-"},
			stdin:     `{"id": 5}`,
			wantLines: []string{"-: valid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, tt.stdin, append([]string{"validate"}, tt.args...)...)
			switch {
			case tt.wantErr != "":
				assert.ErrorContains(t, err, tt.wantErr)
				assert.NotErrorIs(t, err, ErrInvalid)
				return
			case tt.invalid:
				assert.ErrorIs(t, err, ErrInvalid)
			default:
				require.NoError(t, err)
			}
			lines := strings.Split(strings.TrimSpace(out), "\n")
			for _, want := range tt.wantLines {
				assert.Contains(t, lines, want)
			}
		})
	}
}

func TestValidateCommand_Order(t *testing.T) {
	files := map[string]string{"schema.json": `{"type":"integer"}`}
	var args []string
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("i%02d.json", i)
		files[name] = fmt.Sprint(i)
		args = append(args, name)
	}
	dir := writeFiles(t, files)
	for i := range args {
		args[i] = filepath.Join(dir, args[i])
	}

	out, _, err := run(t, "", append([]string{"validate", "-concurrency", "4", "-schema", filepath.Join(dir, "schema.json")}, args...)...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(args))
	for i, line := range lines {
		assert.Equal(t, args[i]+": valid", line)
	}
}

func TestValidateCommand_JSONOutput(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"schema.json": orderSchema,
		"bad.json":    `{"email": "x@example.com"}`,
	})

	out, _, err := run(t, "", "validate", "-output", "json", "-schema", filepath.Join(dir, "schema.json"), filepath.Join(dir, "bad.json"))
	assert.ErrorIs(t, err, ErrInvalid)

	var res instanceResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "required", res.Errors[0].Keyword)
	assert.Equal(t, "", res.Errors[0].InstancePath)
	assert.Equal(t, "/required", res.Errors[0].SchemaPath)
}

func TestValidateCommand_Verbose(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"schema.json": `{}`,
		"a.json":      `1`,
	})

	_, stderr, err := run(t, "", "validate", "-v", "-schema", filepath.Join(dir, "schema.json"), filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Contains(t, stderr, "compiled schema")
	assert.Contains(t, stderr, "validated instance")

	_, stderr, err = run(t, "", "validate", "-schema", filepath.Join(dir, "schema.json"), filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Empty(t, stderr)
}
