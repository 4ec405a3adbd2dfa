package jsonschema

import (
	"errors"

	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
)

// Compile compiles schema with the default configuration
func Compile(schema jsonvalue.Value) (*Validator, error) {
	return NewCompiler(nil).Compile(schema)
}

// ValidateSchema meta-validates schema with the default configuration
func ValidateSchema(schema jsonvalue.Value) (DialectInfo, error) {
	return NewCompiler(nil).ValidateSchema(schema)
}

// IsValidSchema reports whether schema passes meta-validation
func IsValidSchema(schema jsonvalue.Value) bool {
	_, err := ValidateSchema(schema)
	return err == nil
}

// Matches reports whether instance is valid against schema. A schema that
// does not compile matches nothing.
func Matches(schema, instance jsonvalue.Value) bool {
	v, err := Compile(schema)
	if err != nil {
		return false
	}
	return v.IsValid(instance)
}

// ValidationErrors returns the messages describing why instance fails schema,
// in evaluation order. A schema that does not compile yields a single message
// describing the compile error.
func ValidationErrors(schema, instance jsonvalue.Value) []string {
	v, err := Compile(schema)
	if err != nil {
		return []string{err.Error()}
	}
	return FormatAll(v.Validate(instance))
}

// AsCompileError extracts a *CompileError from err
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
