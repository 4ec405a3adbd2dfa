package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/jsonguard/pkg/httputil"
	"github.com/platinummonkey/jsonguard/pkg/jsonschema"
	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
	"github.com/platinummonkey/jsonguard/pkg/storage"
)

// matches handles POST /v1/matches
func (s *Server) matches(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	schema, ok := decodeField(w, req.Schema, "schema")
	if !ok {
		return
	}
	instance, ok := decodeField(w, req.Instance, "instance")
	if !ok {
		return
	}

	v, err := s.engine.Compile(r.Context(), schema)
	if err != nil {
		writeSchemaError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, MatchResponse{Valid: s.engine.MatchesWith(r.Context(), v, instance)})
}

// validate handles POST /v1/validate
func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	schema, ok := decodeField(w, req.Schema, "schema")
	if !ok {
		return
	}
	instance, ok := decodeField(w, req.Instance, "instance")
	if !ok {
		return
	}

	errs, err := s.engine.Validate(r.Context(), schema, instance)
	if err != nil {
		writeSchemaError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, newValidateResponse(errs))
}

// checkSchema handles POST /v1/schemas/check
func (s *Server) checkSchema(w http.ResponseWriter, r *http.Request) {
	var req CheckSchemaRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	schema, ok := decodeField(w, req.Schema, "schema")
	if !ok {
		return
	}

	info, err := s.engine.CheckSchema(r.Context(), schema)
	if err != nil {
		resp := CheckSchemaResponse{Error: err.Error()}
		if ce, ok := jsonschema.AsCompileError(err); ok {
			resp.Keyword = ce.Keyword
			resp.Path = ce.Path.String()
		}
		_ = httputil.WriteSuccess(w, resp)
		return
	}
	_ = httputil.WriteSuccess(w, CheckSchemaResponse{Valid: true, Dialect: info.Dialect.String()})
}

// listSchemas handles GET /v1/schemas
func (s *Server) listSchemas(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.Entries()
	resp := ListSchemasResponse{Schemas: make([]SchemaInfo, 0, len(entries))}
	for _, e := range entries {
		resp.Schemas = append(resp.Schemas, SchemaInfo{
			Name:     e.Name,
			Dialect:  e.Dialect().Dialect.String(),
			Location: e.Location,
			LoadedAt: e.LoadedAt,
		})
	}
	_ = httputil.WriteSuccess(w, resp)
}

// getSchema handles GET /v1/schemas/{name} and returns the schema document
func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}
	e, found := s.registry.Get(name)
	if !found {
		httputil.WriteNotFound(w, "schema not found: "+name)
		return
	}
	_ = httputil.WriteSuccess(w, e.Schema)
}

// validateNamed handles POST /v1/schemas/{name}/validate
func (s *Server) validateNamed(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}
	var req InstanceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	instance, ok := decodeField(w, req.Instance, "instance")
	if !ok {
		return
	}

	errs, err := s.registry.Validate(r.Context(), name, instance)
	if err != nil {
		if errors.Is(err, storage.ErrSchemaNotFound) {
			httputil.WriteNotFound(w, "schema not found: "+name)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, newValidateResponse(errs))
}

// decodeField decodes a required JSON member, writing a 400 reply when it is
// absent. An explicit null is a present value.
func decodeField(w http.ResponseWriter, raw json.RawMessage, field string) (jsonvalue.Value, bool) {
	if !httputil.RequireField(w, len(raw) > 0, field) {
		return jsonvalue.Value{}, false
	}
	v, err := jsonvalue.Decode(raw)
	if err != nil {
		httputil.WriteBadRequest(w, field+": "+err.Error())
		return jsonvalue.Value{}, false
	}
	return v, true
}

// writeSchemaError answers 422 for a schema that does not compile
func writeSchemaError(w http.ResponseWriter, err error) {
	ce, ok := jsonschema.AsCompileError(err)
	if !ok {
		httputil.WriteInternalError(w, err)
		return
	}
	details := map[string]string{"path": ce.Path.String()}
	if ce.Keyword != "" {
		details["keyword"] = ce.Keyword
	}
	httputil.WriteDetailedError(w, http.StatusUnprocessableEntity, err, details)
}
