package jsonschema

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
)

// shape is the structural form a keyword's value must take
type shape uint8

const (
	shapeAny shape = iota
	shapeSchema
	shapeSchemaOrBool // draft-04 additionalItems/additionalProperties
	shapeSchemaArray
	shapeSchemaOrArray
	shapeSchemaMap
	shapePatternSchemaMap
	shapeDependencies
	shapeDependentRequired
	shapeNonNegInt
	shapeNumber
	shapePositiveNumber
	shapeBool
	shapeString
	shapeURIRef
	shapeID
	shapeAnchor
	shapeType
	shapeRequired
	shapeEnum
	shapeArray
	shapeRegex
	shapeVocabulary
)

var simpleTypes = map[string]bool{
	"array":   true,
	"boolean": true,
	"integer": true,
	"null":    true,
	"number":  true,
	"object":  true,
	"string":  true,
}

var (
	idPattern         = regexp.MustCompile(`^[^#]*#?$`)
	anchorPattern2019 = regexp.MustCompile(`^[A-Za-z][-A-Za-z0-9.:_]*$`)
	anchorPattern2020 = regexp.MustCompile(`^[A-Za-z_][-A-Za-z0-9._]*$`)
)

// vocabularies holds the recognized keywords of each dialect and the shape of
// their values. Keywords outside a dialect's table are ignored.
var vocabularies = buildVocabularies()

func buildVocabularies() map[Dialect]map[string]shape {
	d4 := map[string]shape{
		"id":                   shapeURIRef,
		"$schema":              shapeURIRef,
		"$ref":                 shapeURIRef,
		"title":                shapeString,
		"description":          shapeString,
		"default":              shapeAny,
		"multipleOf":           shapePositiveNumber,
		"maximum":              shapeNumber,
		"exclusiveMaximum":     shapeBool,
		"minimum":              shapeNumber,
		"exclusiveMinimum":     shapeBool,
		"maxLength":            shapeNonNegInt,
		"minLength":            shapeNonNegInt,
		"pattern":              shapeRegex,
		"additionalItems":      shapeSchemaOrBool,
		"items":                shapeSchemaOrArray,
		"maxItems":             shapeNonNegInt,
		"minItems":             shapeNonNegInt,
		"uniqueItems":          shapeBool,
		"maxProperties":        shapeNonNegInt,
		"minProperties":        shapeNonNegInt,
		"required":             shapeRequired,
		"additionalProperties": shapeSchemaOrBool,
		"definitions":          shapeSchemaMap,
		"properties":           shapeSchemaMap,
		"patternProperties":    shapePatternSchemaMap,
		"dependencies":         shapeDependencies,
		"enum":                 shapeEnum,
		"type":                 shapeType,
		"format":               shapeString,
		"allOf":                shapeSchemaArray,
		"anyOf":                shapeSchemaArray,
		"oneOf":                shapeSchemaArray,
		"not":                  shapeSchema,
	}

	d6 := extend(d4, map[string]shape{
		"$id":                  shapeURIRef,
		"exclusiveMaximum":     shapeNumber,
		"exclusiveMinimum":     shapeNumber,
		"additionalItems":      shapeSchema,
		"additionalProperties": shapeSchema,
		"contains":             shapeSchema,
		"propertyNames":        shapeSchema,
		"const":                shapeAny,
		"examples":             shapeArray,
	}, "id")

	d7 := extend(d6, map[string]shape{
		"$comment":         shapeString,
		"if":               shapeSchema,
		"then":             shapeSchema,
		"else":             shapeSchema,
		"readOnly":         shapeBool,
		"writeOnly":        shapeBool,
		"contentMediaType": shapeString,
		"contentEncoding":  shapeString,
	})

	d2019 := extend(d7, map[string]shape{
		"$id":                   shapeID,
		"$anchor":               shapeAnchor,
		"$recursiveRef":         shapeURIRef,
		"$recursiveAnchor":      shapeBool,
		"$defs":                 shapeSchemaMap,
		"$vocabulary":           shapeVocabulary,
		"dependentSchemas":      shapeSchemaMap,
		"dependentRequired":     shapeDependentRequired,
		"maxContains":           shapeNonNegInt,
		"minContains":           shapeNonNegInt,
		"unevaluatedItems":      shapeSchema,
		"unevaluatedProperties": shapeSchema,
		"deprecated":            shapeBool,
		"contentSchema":         shapeSchema,
	})

	d2020 := extend(d2019, map[string]shape{
		"prefixItems":    shapeSchemaArray,
		"items":          shapeSchema,
		"$dynamicRef":    shapeURIRef,
		"$dynamicAnchor": shapeAnchor,
	}, "additionalItems", "$recursiveRef", "$recursiveAnchor")

	return map[Dialect]map[string]shape{
		Draft4:    d4,
		Draft6:    d6,
		Draft7:    d7,
		Draft2019: d2019,
		Draft2020: d2020,
	}
}

func extend(base, add map[string]shape, drop ...string) map[string]shape {
	out := make(map[string]shape, len(base)+len(add))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range add {
		out[k] = v
	}
	for _, k := range drop {
		delete(out, k)
	}
	return out
}

func idKeyword(d Dialect) string {
	if d == Draft4 {
		return "id"
	}
	return "$id"
}

// metaValidator checks keyword shapes, accumulating every violation
type metaValidator struct {
	cfg  *CompilerConfig
	errs []*CompileError
}

func (m *metaValidator) fail(path Path, keyword, msg string) {
	m.errs = append(m.errs, &CompileError{Path: path.Clone(), Keyword: keyword, Message: msg})
}

func (m *metaValidator) result() error {
	if len(m.errs) == 0 {
		return nil
	}
	first := *m.errs[0]
	first.Causes = m.errs
	return &first
}

// detectDialect determines the dialect of a document root
func (m *metaValidator) detectDialect(doc jsonvalue.Value, inherited Dialect) (DialectInfo, bool) {
	info := DialectInfo{Dialect: inherited, SchemaURI: inherited.URI()}
	raw, ok := doc.Get("$schema")
	if !ok {
		return info, true
	}
	s, isStr := raw.Str()
	if !isStr {
		m.fail(Path{KeySegment("$schema")}, "$schema", typeMessage(raw, "string"))
		return info, false
	}
	d, known := DialectFromURI(s)
	if !known {
		if m.cfg.UnknownDialect == FallbackToDefault {
			info.SchemaURI = s
			return info, true
		}
		m.fail(Path{KeySegment("$schema")}, "$schema", fmt.Sprintf("unknown dialect %q", s))
		return info, false
	}
	return DialectInfo{Dialect: d, SchemaURI: s, Declared: true}, true
}

// schema checks v as a schema at path
func (m *metaValidator) schema(v jsonvalue.Value, path Path, d Dialect, depth int) {
	if depth > m.cfg.MaxDepth {
		m.fail(path, "", fmt.Sprintf("schema nesting exceeds the maximum depth of %d", m.cfg.MaxDepth))
		return
	}
	switch v.Kind() {
	case jsonvalue.Bool:
		if d == Draft4 {
			m.fail(path, "", typeMessage(v, "object"))
		}
		return
	case jsonvalue.Object:
	default:
		if d == Draft4 {
			m.fail(path, "", typeMessage(v, "object"))
		} else {
			m.fail(path, "", typeMessage(v, "object", "boolean"))
		}
		return
	}

	// Embedded resources may switch dialect from 2019-09 on.
	if len(path) > 0 && d >= Draft2019 && v.Has("$id") && v.Has("$schema") {
		sub := &metaValidator{cfg: m.cfg}
		info, ok := sub.detectDialect(v, d)
		for _, e := range sub.errs {
			e.Path = append(path.Clone(), e.Path...)
			m.errs = append(m.errs, e)
		}
		if !ok {
			return
		}
		d = info.Dialect
	}

	vocab := vocabularies[d]
	for _, kw := range v.Keys() {
		sh, known := vocab[kw]
		if !known {
			continue
		}
		val, _ := v.Get(kw)
		m.keyword(kw, sh, val, path.Key(kw), d, depth)
	}
}

func (m *metaValidator) keyword(kw string, sh shape, v jsonvalue.Value, path Path, d Dialect, depth int) {
	switch sh {
	case shapeAny:
	case shapeSchema:
		m.schema(v, path, d, depth+1)
	case shapeSchemaOrBool:
		if v.Kind() == jsonvalue.Bool {
			return
		}
		if v.Kind() != jsonvalue.Object {
			m.fail(path, kw, typeMessage(v, "object", "boolean"))
			return
		}
		m.schema(v, path, d, depth+1)
	case shapeSchemaArray:
		m.schemaArray(kw, v, path, d, depth)
	case shapeSchemaOrArray:
		if v.Kind() == jsonvalue.Array {
			m.schemaArray(kw, v, path, d, depth)
			return
		}
		m.schema(v, path, d, depth+1)
	case shapeSchemaMap:
		if !m.expectKind(kw, v, path, jsonvalue.Object) {
			return
		}
		for _, k := range v.Keys() {
			sub, _ := v.Get(k)
			m.schema(sub, path.Key(k), d, depth+1)
		}
	case shapePatternSchemaMap:
		if !m.expectKind(kw, v, path, jsonvalue.Object) {
			return
		}
		for _, k := range v.Keys() {
			if _, err := compileRegex(k); err != nil {
				m.fail(path, kw, fmt.Sprintf("%s is not a \"regex\"", jsonvalue.Quote(k)))
			}
			sub, _ := v.Get(k)
			m.schema(sub, path.Key(k), d, depth+1)
		}
	case shapeDependencies:
		if !m.expectKind(kw, v, path, jsonvalue.Object) {
			return
		}
		for _, k := range v.Keys() {
			dep, _ := v.Get(k)
			switch {
			case dep.Kind() == jsonvalue.Array:
				m.stringArray(kw, dep, path.Key(k), false)
			case dep.Kind() == jsonvalue.Object, dep.Kind() == jsonvalue.Bool && d != Draft4:
				m.schema(dep, path.Key(k), d, depth+1)
			default:
				m.fail(path.Key(k), kw, fmt.Sprintf("%s is not valid under any of the given schemas", dep))
			}
		}
	case shapeDependentRequired:
		if !m.expectKind(kw, v, path, jsonvalue.Object) {
			return
		}
		for _, k := range v.Keys() {
			dep, _ := v.Get(k)
			m.stringArray(kw, dep, path.Key(k), false)
		}
	case shapeNonNegInt:
		if v.Kind() != jsonvalue.Number || !v.IsInteger() {
			m.fail(path, kw, typeMessage(v, "integer"))
			return
		}
		if jsonvalue.CompareNumbers(v, jsonvalue.IntValue(0)) < 0 {
			m.fail(path, kw, fmt.Sprintf("%s is less than the minimum of 0", v))
		}
	case shapeNumber:
		m.expectKind(kw, v, path, jsonvalue.Number)
	case shapePositiveNumber:
		if !m.expectKind(kw, v, path, jsonvalue.Number) {
			return
		}
		if jsonvalue.CompareNumbers(v, jsonvalue.IntValue(0)) <= 0 {
			m.fail(path, kw, fmt.Sprintf("%s is less than or equal to the minimum of 0", v))
		}
	case shapeBool:
		m.expectKind(kw, v, path, jsonvalue.Bool)
	case shapeString:
		m.expectKind(kw, v, path, jsonvalue.String)
	case shapeURIRef:
		if !m.expectKind(kw, v, path, jsonvalue.String) {
			return
		}
		s, _ := v.Str()
		if _, err := url.Parse(s); err != nil {
			m.fail(path, kw, fmt.Sprintf("%s is not a \"uri-reference\"", v))
		}
	case shapeID:
		if !m.expectKind(kw, v, path, jsonvalue.String) {
			return
		}
		s, _ := v.Str()
		if _, err := url.Parse(s); err != nil {
			m.fail(path, kw, fmt.Sprintf("%s is not a \"uri-reference\"", v))
			return
		}
		if !idPattern.MatchString(s) {
			m.fail(path, kw, fmt.Sprintf("%s does not match %q", v, idPattern.String()))
		}
	case shapeAnchor:
		if !m.expectKind(kw, v, path, jsonvalue.String) {
			return
		}
		re := anchorPattern2020
		if d == Draft2019 {
			re = anchorPattern2019
		}
		s, _ := v.Str()
		if !re.MatchString(s) {
			m.fail(path, kw, fmt.Sprintf("%s does not match %q", v, re.String()))
		}
	case shapeType:
		m.typeKeyword(kw, v, path)
	case shapeRequired:
		m.stringArray(kw, v, path, d == Draft4)
	case shapeEnum:
		if !m.expectKind(kw, v, path, jsonvalue.Array) {
			return
		}
		if d == Draft4 {
			if v.Len() == 0 {
				m.fail(path, kw, fmt.Sprintf("%s has less than 1 item", v))
			} else if !allUnique(v.Items()) {
				m.fail(path, kw, fmt.Sprintf("%s has non-unique elements", v))
			}
		}
	case shapeArray:
		m.expectKind(kw, v, path, jsonvalue.Array)
	case shapeRegex:
		if !m.expectKind(kw, v, path, jsonvalue.String) {
			return
		}
		s, _ := v.Str()
		if _, err := compileRegex(s); err != nil {
			m.fail(path, kw, fmt.Sprintf("%s is not a \"regex\"", v))
		}
	case shapeVocabulary:
		if !m.expectKind(kw, v, path, jsonvalue.Object) {
			return
		}
		for _, k := range v.Keys() {
			flag, _ := v.Get(k)
			m.expectKind(kw, flag, path.Key(k), jsonvalue.Bool)
		}
	}
}

func (m *metaValidator) schemaArray(kw string, v jsonvalue.Value, path Path, d Dialect, depth int) {
	if !m.expectKind(kw, v, path, jsonvalue.Array) {
		return
	}
	if v.Len() == 0 {
		m.fail(path, kw, fmt.Sprintf("%s has less than 1 item", v))
		return
	}
	for i, item := range v.Items() {
		m.schema(item, path.Index(i), d, depth+1)
	}
}

func (m *metaValidator) stringArray(kw string, v jsonvalue.Value, path Path, nonEmpty bool) {
	if !m.expectKind(kw, v, path, jsonvalue.Array) {
		return
	}
	if nonEmpty && v.Len() == 0 {
		m.fail(path, kw, fmt.Sprintf("%s has less than 1 item", v))
		return
	}
	ok := true
	for i, item := range v.Items() {
		if item.Kind() != jsonvalue.String {
			m.fail(path.Index(i), kw, typeMessage(item, "string"))
			ok = false
		}
	}
	if ok && !allUnique(v.Items()) {
		m.fail(path, kw, fmt.Sprintf("%s has non-unique elements", v))
	}
}

func (m *metaValidator) typeKeyword(kw string, v jsonvalue.Value, path Path) {
	invalid := func() {
		m.fail(path, kw, fmt.Sprintf("%s is not valid under any of the given schemas", v))
	}
	switch v.Kind() {
	case jsonvalue.String:
		s, _ := v.Str()
		if !simpleTypes[s] {
			invalid()
		}
	case jsonvalue.Array:
		if v.Len() == 0 || !allUnique(v.Items()) {
			invalid()
			return
		}
		for _, item := range v.Items() {
			s, ok := item.Str()
			if !ok || !simpleTypes[s] {
				invalid()
				return
			}
		}
	default:
		invalid()
	}
}

func (m *metaValidator) expectKind(kw string, v jsonvalue.Value, path Path, k jsonvalue.Kind) bool {
	if v.Kind() == k {
		return true
	}
	m.fail(path, kw, typeMessage(v, k.String()))
	return false
}

func typeMessage(v jsonvalue.Value, types ...string) string {
	if len(types) == 1 {
		return fmt.Sprintf("%s is not of type %q", v, types[0])
	}
	quoted := make([]string, len(types))
	for i, t := range types {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return fmt.Sprintf("%s is not of types %s", v, strings.Join(quoted, ", "))
}

func allUnique(items []jsonvalue.Value) bool {
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if jsonvalue.Equal(items[i], items[j]) {
				return false
			}
		}
	}
	return true
}
