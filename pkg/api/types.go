package api

import (
	"encoding/json"
	"time"

	"github.com/platinummonkey/jsonguard/pkg/jsonschema"
)

// MatchRequest is the body of POST /v1/matches and POST /v1/validate
type MatchRequest struct {
	Schema   json.RawMessage `json:"schema"`
	Instance json.RawMessage `json:"instance"`
}

// InstanceRequest is the body of POST /v1/schemas/{name}/validate
type InstanceRequest struct {
	Instance json.RawMessage `json:"instance"`
}

// CheckSchemaRequest is the body of POST /v1/schemas/check
type CheckSchemaRequest struct {
	Schema json.RawMessage `json:"schema"`
}

// MatchResponse answers POST /v1/matches
type MatchResponse struct {
	Valid bool `json:"valid"`
}

// ValidationError is the wire form of a single violation
type ValidationError struct {
	Keyword      string `json:"keyword"`
	InstancePath string `json:"instance_path"`
	SchemaPath   string `json:"schema_path"`
	Message      string `json:"message"`
}

// ValidateResponse answers the validate endpoints
type ValidateResponse struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// CheckSchemaResponse answers POST /v1/schemas/check
type CheckSchemaResponse struct {
	Valid   bool   `json:"valid"`
	Dialect string `json:"dialect,omitempty"`
	Error   string `json:"error,omitempty"`
	Keyword string `json:"keyword,omitempty"`
	Path    string `json:"path,omitempty"`
}

// SchemaInfo describes a registered schema
type SchemaInfo struct {
	Name     string    `json:"name"`
	Dialect  string    `json:"dialect"`
	Location string    `json:"location"`
	LoadedAt time.Time `json:"loaded_at"`
}

// ListSchemasResponse answers GET /v1/schemas
type ListSchemasResponse struct {
	Schemas []SchemaInfo `json:"schemas"`
}

func newValidateResponse(errs []*jsonschema.ValidationError) ValidateResponse {
	resp := ValidateResponse{Valid: len(errs) == 0, Errors: make([]ValidationError, 0, len(errs))}
	for _, e := range errs {
		resp.Errors = append(resp.Errors, ValidationError{
			Keyword:      e.Keyword,
			InstancePath: e.InstancePath.String(),
			SchemaPath:   e.SchemaPath.String(),
			Message:      e.Message,
		})
	}
	return resp
}
