package engine

import (
	"context"
	"fmt"

	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
)

func decodePair(schema, instance []byte) (jsonvalue.Value, jsonvalue.Value, error) {
	s, err := jsonvalue.Decode(schema)
	if err != nil {
		return jsonvalue.Value{}, jsonvalue.Value{}, fmt.Errorf("decoding schema: %w", err)
	}
	i, err := jsonvalue.Decode(instance)
	if err != nil {
		return jsonvalue.Value{}, jsonvalue.Value{}, fmt.Errorf("decoding instance: %w", err)
	}
	return s, i, nil
}

// MatchesJSON is Matches over JSON text
func (e *Engine) MatchesJSON(ctx context.Context, schema, instance []byte) (bool, error) {
	s, i, err := decodePair(schema, instance)
	if err != nil {
		return false, err
	}
	return e.Matches(ctx, s, i), nil
}

// ValidationErrorsJSON is ValidationErrors over JSON text
func (e *Engine) ValidationErrorsJSON(ctx context.Context, schema, instance []byte) ([]string, error) {
	s, i, err := decodePair(schema, instance)
	if err != nil {
		return nil, err
	}
	return e.ValidationErrors(ctx, s, i), nil
}

// IsValidSchemaJSON is IsValidSchema over JSON text
func (e *Engine) IsValidSchemaJSON(ctx context.Context, schema []byte) (bool, error) {
	s, err := jsonvalue.Decode(schema)
	if err != nil {
		return false, fmt.Errorf("decoding schema: %w", err)
	}
	return e.IsValidSchema(ctx, s), nil
}
