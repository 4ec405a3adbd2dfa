package jsonschema

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
)

// ValidationError describes one way in which an instance fails a schema
type ValidationError struct {
	// Keyword is the schema keyword whose check failed
	Keyword string
	// InstancePath locates the offending value within the instance
	InstancePath Path
	// SchemaPath locates the failing keyword within its schema document
	SchemaPath Path
	// Message is the human readable description
	Message string
	// Instance is the offending value
	Instance jsonvalue.Value
}

func (e *ValidationError) Error() string {
	return e.Message
}

// CompileError reports a schema that cannot be compiled: it is structurally
// invalid, declares an unknown dialect, or holds an unresolvable reference.
type CompileError struct {
	// Path locates the offending keyword, relative to the schema root
	Path Path
	// Keyword is the offending keyword, empty for whole-schema problems
	Keyword string
	// Message describes the violation
	Message string
	// Causes holds every violation found, in document order. The first
	// element is the violation described by the error itself.
	Causes []*CompileError
}

func (e *CompileError) Error() string {
	if len(e.Path) == 0 {
		return "invalid schema: " + e.Message
	}
	return fmt.Sprintf("invalid schema at %q: %s", e.Path.String(), e.Message)
}

// Format renders a single validation error
func Format(err *ValidationError) string {
	if err == nil {
		return ""
	}
	return err.Message
}

// FormatAll renders errors in the order they were reported
func FormatAll(errs []*ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, Format(err))
	}
	return out
}

// FormatDetailed renders an error with its instance location, as
// "<instance path>: <message>" (the root renders as "/").
func FormatDetailed(err *ValidationError) string {
	loc := err.InstancePath.String()
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + err.Message
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func quotedNames(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = "'" + n + "'"
	}
	return strings.Join(parts, ", ")
}

func renderValues(vals []jsonvalue.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
