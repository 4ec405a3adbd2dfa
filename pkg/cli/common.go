package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/jsonguard/pkg/engine"
	"github.com/platinummonkey/jsonguard/pkg/jsonschema"
	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
	"github.com/sirupsen/logrus"
)

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
)

// engineFlags are the compiler options shared by every command
type engineFlags struct {
	dialect        string
	unknownDialect string
	assertFormat   bool
	verbose        bool
	output         string
}

func (f *engineFlags) register(flags *flag.FlagSet) {
	flags.StringVar(&f.dialect, "dialect", jsonschema.Draft2020.String(), "Dialect for schemas without $schema")
	flags.StringVar(&f.unknownDialect, "unknown-dialect", "reject", "Handling of unrecognized $schema: reject or fallback")
	flags.BoolVar(&f.assertFormat, "assert-format", true, "Treat format as an assertion")
	flags.BoolVar(&f.verbose, "v", false, "Verbose logging to stderr")
	flags.StringVar(&f.output, "output", OutputText, "Output format: text or json")
}

func (f *engineFlags) engine() (*engine.Engine, error) {
	dialect, ok := jsonschema.ParseDialect(f.dialect)
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q", f.dialect)
	}
	policy, ok := jsonschema.ParseUnknownDialectPolicy(f.unknownDialect)
	if !ok {
		return nil, fmt.Errorf("invalid -unknown-dialect %q (must be reject or fallback)", f.unknownDialect)
	}
	if f.output != OutputText && f.output != OutputJSON {
		return nil, fmt.Errorf("invalid -output %q (must be text or json)", f.output)
	}
	cfg := jsonschema.DefaultCompilerConfig()
	cfg.DefaultDialect = dialect
	cfg.UnknownDialect = policy
	cfg.AssertFormat = f.assertFormat
	return engine.New(engine.Config{Compiler: cfg, DisableNotices: true}), nil
}

func (f *engineFlags) logger(streams Streams) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(streams.Err)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if f.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// readDocument loads a JSON or YAML document from path, or from in when
// path is "-". YAML is chosen by the .yaml and .yml extensions.
func readDocument(path string, in io.Reader) (jsonvalue.Value, error) {
	if path == "-" {
		return jsonvalue.DecodeReader(in)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return jsonvalue.DecodeYAML(data)
	default:
		return jsonvalue.Decode(data)
	}
}
