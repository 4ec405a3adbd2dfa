package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/jsonguard/pkg/engine"
	"github.com/platinummonkey/jsonguard/pkg/jsonschema"
)

func newCheckCommand() *Command {
	return &Command{
		Name:        "check",
		Description: "Check that schema documents are well-formed",
		Run:         runCheck,
	}
}

// schemaResult is one line of check output
type schemaResult struct {
	File    string `json:"file"`
	Valid   bool   `json:"valid"`
	Dialect string `json:"dialect,omitempty"`
	Error   string `json:"error,omitempty"`
	Path    string `json:"path,omitempty"`
}

func runCheck(ctx context.Context, args []string, streams Streams) error {
	flags := newFlagSet("check", streams)
	var ef engineFlags
	ef.register(flags)
	compile := flags.Bool("compile", true, "Also compile the schema, resolving references")

	if err := flags.Parse(args); err != nil {
		return err
	}
	files := flags.Args()
	if len(files) == 0 {
		return fmt.Errorf("at least one schema file is required")
	}

	eng, err := ef.engine()
	if err != nil {
		return err
	}
	log := ef.logger(streams)

	failed := 0
	for _, file := range files {
		res := checkSchema(ctx, eng, file, streams, *compile)
		if !res.Valid {
			failed++
		}
		log.WithField("file", file).WithField("valid", res.Valid).Debug("checked schema")
		if err := writeSchemaResult(streams, ef.output, res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d schemas invalid", ErrInvalid, failed, len(files))
	}
	return nil
}

func checkSchema(ctx context.Context, eng *engine.Engine, file string, streams Streams, compile bool) schemaResult {
	res := schemaResult{File: file}
	schema, err := readDocument(file, streams.In)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	info, err := eng.CheckSchema(ctx, schema)
	if err == nil && compile {
		_, err = eng.Compile(ctx, schema)
	}
	if err != nil {
		res.Error = err.Error()
		if ce, ok := jsonschema.AsCompileError(err); ok {
			res.Path = ce.Path.String()
		}
		return res
	}
	res.Valid = true
	res.Dialect = info.Dialect.String()
	return res
}

func writeSchemaResult(streams Streams, output string, res schemaResult) error {
	if output == OutputJSON {
		return json.NewEncoder(streams.Out).Encode(res)
	}
	var err error
	if res.Valid {
		_, err = fmt.Fprintf(streams.Out, "%s: valid (%s)\n", res.File, res.Dialect)
	} else {
		_, err = fmt.Fprintf(streams.Out, "%s: %s\n", res.File, res.Error)
	}
	return err
}
