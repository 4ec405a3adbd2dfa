package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/platinummonkey/jsonguard/pkg/jsonschema"
	"golang.org/x/sync/errgroup"
)

func newValidateCommand() *Command {
	return &Command{
		Name:        "validate",
		Description: "Validate instance documents against a schema",
		Run:         runValidate,
	}
}

// instanceResult is one line of validate output
type instanceResult struct {
	File   string                  `json:"file"`
	Valid  bool                    `json:"valid"`
	Error  string                  `json:"error,omitempty"`
	Errors []instanceErrorEnvelope `json:"errors,omitempty"`

	violations []*jsonschema.ValidationError
}

type instanceErrorEnvelope struct {
	Keyword      string `json:"keyword"`
	InstancePath string `json:"instance_path"`
	SchemaPath   string `json:"schema_path"`
	Message      string `json:"message"`
}

func runValidate(ctx context.Context, args []string, streams Streams) error {
	flags := newFlagSet("validate", streams)
	var ef engineFlags
	ef.register(flags)
	schemaPath := flags.String("schema", "", "Schema file (JSON or YAML, - for stdin)")
	concurrency := flags.Int("concurrency", runtime.GOMAXPROCS(0), "Maximum instances validated at once")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *schemaPath == "" {
		return fmt.Errorf("-schema is required")
	}
	files := flags.Args()
	if len(files) == 0 {
		return fmt.Errorf("at least one instance file is required")
	}
	if *concurrency < 1 {
		return fmt.Errorf("-concurrency must be at least 1")
	}

	eng, err := ef.engine()
	if err != nil {
		return err
	}
	log := ef.logger(streams)

	schema, err := readDocument(*schemaPath, streams.In)
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", *schemaPath, err)
	}
	v, err := eng.Compile(ctx, schema)
	if err != nil {
		return fmt.Errorf("%s: %w", *schemaPath, err)
	}
	log.WithField("schema", *schemaPath).WithField("dialect", v.Dialect().Dialect.String()).Debug("compiled schema")

	results := make([]instanceResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res := instanceResult{File: file}
			instance, err := readDocument(file, streams.In)
			if err != nil {
				res.Error = err.Error()
				log.WithError(err).WithField("file", file).Warn("failed to read instance")
				results[i] = res
				return nil
			}
			errs := eng.ValidateWith(gctx, v, instance)
			res.Valid = len(errs) == 0
			res.violations = errs
			for _, e := range errs {
				res.Errors = append(res.Errors, instanceErrorEnvelope{
					Keyword:      e.Keyword,
					InstancePath: e.InstancePath.String(),
					SchemaPath:   e.SchemaPath.String(),
					Message:      e.Message,
				})
			}
			results[i] = res
			log.WithFields(map[string]interface{}{
				"file":     file,
				"valid":    res.Valid,
				"errors":   len(errs),
				"duration": time.Since(start).String(),
			}).Debug("validated instance")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if !res.Valid {
			failed++
		}
		if err := writeResult(streams, ef.output, res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d instances invalid", ErrInvalid, failed, len(results))
	}
	return nil
}

func writeResult(streams Streams, output string, res instanceResult) error {
	if output == OutputJSON {
		return json.NewEncoder(streams.Out).Encode(res)
	}
	switch {
	case res.Error != "":
		_, err := fmt.Fprintf(streams.Out, "%s: error: %s\n", res.File, res.Error)
		return err
	case res.Valid:
		_, err := fmt.Fprintf(streams.Out, "%s: valid\n", res.File)
		return err
	}
	if _, err := fmt.Fprintf(streams.Out, "%s: invalid\n", res.File); err != nil {
		return err
	}
	for _, e := range res.violations {
		if _, err := fmt.Fprintf(streams.Out, "  %s\n", jsonschema.FormatDetailed(e)); err != nil {
			return err
		}
	}
	return nil
}
