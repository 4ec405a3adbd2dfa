package jsonschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	draft4URI = `"http://json-schema.org/draft-04/schema#"`
	draft6URI = `"http://json-schema.org/draft-06/schema#"`
	draft7URI = `"http://json-schema.org/draft-07/schema#"`
	draft2019 = `"https://json-schema.org/draft/2019-09/schema"`
)

func TestKeywordMessages(t *testing.T) {
	tests := []struct {
		name       string
		schema     string
		instance   string
		keyword    string
		schemaPath string
		message    string
	}{
		{"type single", `{"type":"string"}`, `1`, "type", "/type", `1 is not of type "string"`},
		{"type multiple", `{"type":["string","null"]}`, `1`, "type", "/type", `1 is not of types "string", "null"`},
		{"type integer", `{"type":"integer"}`, `1.5`, "type", "/type", `1.5 is not of type "integer"`},
		{"maxLength singular", `{"maxLength":1}`, `"ab"`, "maxLength", "/maxLength", `"ab" is longer than 1 character`},
		{"minLength", `{"minLength":3}`, `"ab"`, "minLength", "/minLength", `"ab" is shorter than 3 characters`},
		{"maximum", `{"maximum":3}`, `4`, "maximum", "/maximum", `4 is greater than the maximum of 3`},
		{"minimum", `{"minimum":3}`, `2`, "minimum", "/minimum", `2 is less than the minimum of 3`},
		{"exclusiveMaximum", `{"exclusiveMaximum":3}`, `3`, "exclusiveMaximum", "/exclusiveMaximum", `3 is greater than or equal to the maximum of 3`},
		{"exclusiveMinimum", `{"exclusiveMinimum":3}`, `3`, "exclusiveMinimum", "/exclusiveMinimum", `3 is less than or equal to the minimum of 3`},
		{"draft4 exclusive maximum", `{"$schema":` + draft4URI + `,"maximum":3,"exclusiveMaximum":true}`, `3`, "maximum", "/maximum", `3 is greater than or equal to the maximum of 3`},
		{"draft4 exclusive minimum", `{"$schema":` + draft4URI + `,"minimum":3,"exclusiveMinimum":true}`, `3`, "minimum", "/minimum", `3 is less than or equal to the minimum of 3`},
		{"multipleOf", `{"multipleOf":2}`, `3`, "multipleOf", "/multipleOf", `3 is not a multiple of 2`},
		{"enum", `{"enum":[1,"a",null]}`, `2`, "enum", "/enum", `2 is not one of [1,"a",null]`},
		{"const", `{"const":{"a":1}}`, `{"a":2}`, "const", "/const", `{"a":1} was expected`},
		{"required", `{"required":["a","b"]}`, `{"a":1}`, "required", "/required", `"b" is a required property`},
		{"additionalProperties", `{"properties":{"a":{}},"additionalProperties":false}`, `{"c":1,"a":1,"b":2}`, "additionalProperties", "/additionalProperties", `Additional properties are not allowed ('b', 'c' were unexpected)`},
		{"items false tail", `{"prefixItems":[{}],"items":false}`, `[1,"a",true]`, "items", "/items", `Additional items are not allowed ("a", true were unexpected)`},
		{"additionalItems", `{"$schema":` + draft7URI + `,"items":[{}],"additionalItems":false}`, `[1,2]`, "additionalItems", "/additionalItems", `Additional items are not allowed (2 was unexpected)`},
		{"pattern", `{"pattern":"^a"}`, `"b"`, "pattern", "/pattern", `"b" does not match "^a"`},
		{"format", `{"format":"ipv4"}`, `"x"`, "format", "/format", `"x" is not a "ipv4"`},
		{"maxItems singular", `{"maxItems":1}`, `[1,2]`, "maxItems", "/maxItems", `[1,2] has more than 1 item`},
		{"minItems", `{"minItems":2}`, `[1]`, "minItems", "/minItems", `[1] has less than 2 items`},
		{"maxProperties singular", `{"maxProperties":1}`, `{"a":1,"b":2}`, "maxProperties", "/maxProperties", `{"a":1,"b":2} has more than 1 property`},
		{"minProperties", `{"minProperties":2}`, `{}`, "minProperties", "/minProperties", `{} has less than 2 properties`},
		{"uniqueItems", `{"uniqueItems":true}`, `[1,2,1]`, "uniqueItems", "/uniqueItems", `[1,2,1] has non-unique elements`},
		{"contains", `{"contains":{"type":"string"}}`, `[1,2]`, "contains", "/contains", `None of [1,2] are valid under the given schema`},
		{"minContains", `{"contains":{"type":"integer"},"minContains":2}`, `["a",1]`, "minContains", "/minContains", `["a",1] has less than 2 matching items`},
		{"maxContains", `{"contains":{"type":"integer"},"maxContains":1}`, `[1,2]`, "maxContains", "/maxContains", `[1,2] has more than 1 matching item`},
		{"not", `{"not":{"type":"string"}}`, `"x"`, "not", "/not", `{"type":"string"} is not allowed for "x"`},
		{"anyOf", `{"anyOf":[{"type":"string"},{"type":"null"}]}`, `1`, "anyOf", "/anyOf", `1 is not valid under any of the given schemas`},
		{"oneOf none", `{"oneOf":[{"type":"string"},{"type":"null"}]}`, `1`, "oneOf", "/oneOf", `1 is not valid under any of the given schemas`},
		{"false schema", `false`, `1`, "false", "", `False schema does not allow 1`},
		{"dependentRequired", `{"dependentRequired":{"a":["b"]}}`, `{"a":1}`, "dependentRequired", "/dependentRequired/a", `"b" is a required property`},
		{"dependencies array", `{"$schema":` + draft7URI + `,"dependencies":{"a":["b"]}}`, `{"a":1}`, "dependencies", "/dependencies/a", `"b" is a required property`},
		{"propertyNames", `{"propertyNames":{"maxLength":2}}`, `{"abc":1}`, "maxLength", "/propertyNames/maxLength", `"abc" is longer than 2 characters`},
		{"then branch", `{"if":{"type":"string"},"then":{"minLength":2},"else":{"type":"null"}}`, `"a"`, "minLength", "/then/minLength", `"a" is shorter than 2 characters`},
		{"else branch", `{"if":{"type":"string"},"then":{"minLength":2},"else":{"type":"null"}}`, `1`, "type", "/else/type", `1 is not of type "null"`},
		{"unevaluatedProperties", `{"properties":{"a":{}},"unevaluatedProperties":false}`, `{"a":1,"b":2}`, "unevaluatedProperties", "/unevaluatedProperties", `Unevaluated properties are not allowed ('b' was unexpected)`},
		{"unevaluatedItems", `{"prefixItems":[{}],"unevaluatedItems":false}`, `[1,2,3]`, "unevaluatedItems", "/unevaluatedItems", `Unevaluated items are not allowed (2, 3 were unexpected)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustCompile(t, tt.schema)
			inst := val(t, tt.instance)
			assert.False(t, v.IsValid(inst))

			errs := v.Validate(inst)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.keyword, errs[0].Keyword)
			assert.Equal(t, tt.schemaPath, errs[0].SchemaPath.String())
			assert.Equal(t, tt.message, errs[0].Message)
		})
	}
}

func TestKeywordsAcceptValidInstances(t *testing.T) {
	tests := []struct {
		schema   string
		instance string
	}{
		{`{"type":"integer"}`, `1.0`},
		{`{"type":"number"}`, `1`},
		{`{"type":["string","null"]}`, `null`},
		{`{"maxLength":2}`, `"éé"`},
		{`{"maxLength":2}`, `12345`},
		{`{"maximum":3}`, `3`},
		{`{"exclusiveMinimum":3}`, `3.0000001`},
		{`{"enum":[1,"a",null]}`, `1.0`},
		{`{"const":{"a":[1,2]}}`, `{"a":[1,2.0]}`},
		{`{"required":["a"]}`, `[1]`},
		{`{"additionalProperties":{"type":"integer"}}`, `{"a":1,"b":2}`},
		{`{"patternProperties":{"^x_":{"type":"string"}},"additionalProperties":false}`, `{"x_1":"a"}`},
		{`{"prefixItems":[{"type":"integer"}],"items":{"type":"string"}}`, `[1,"a","b"]`},
		{`{"contains":{"type":"integer"},"minContains":0}`, `["a"]`},
		{`{"uniqueItems":true}`, `[1,"1",[1],{"a":1}]`},
		{`{"uniqueItems":false}`, `[1,1]`},
		{`{"dependentSchemas":{"a":{"required":["b"]}}}`, `{"a":1,"b":2}`},
		{`{"if":{"type":"string"},"then":{"minLength":2}}`, `5`},
		{`{"not":{"type":"string"}}`, `5`},
		{`{"allOf":[{"minimum":1},{"maximum":3}]}`, `2`},
		{`{"propertyNames":{"pattern":"^[a-z]+$"}}`, `{"abc":1}`},
		{`true`, `{"anything":[1,2,3]}`},
		{`{}`, `null`},
	}
	for _, tt := range tests {
		v := mustCompile(t, tt.schema)
		inst := val(t, tt.instance)
		assert.True(t, v.IsValid(inst), "%s / %s", tt.schema, tt.instance)
		assert.Nil(t, v.Validate(inst), "%s / %s", tt.schema, tt.instance)
	}
}

func TestECMAScriptPatterns(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		instance string
		valid    bool
	}{
		{"negative lookahead accepts", `{"pattern":"^(?!foo)"}`, `"bar"`, true},
		{"negative lookahead rejects", `{"pattern":"^(?!foo)"}`, `"foobar"`, false},
		{"positive lookahead", `{"pattern":"^(?=.*[0-9])[a-z0-9]+$"}`, `"abc1"`, true},
		{"positive lookahead rejects", `{"pattern":"^(?=.*[0-9])[a-z0-9]+$"}`, `"abc"`, false},
		{"lookbehind", `{"pattern":"(?<=\\$)[0-9]+"}`, `"cost $42"`, true},
		{"backreference", `{"pattern":"^(a)\\1$"}`, `"aa"`, true},
		{"backreference rejects", `{"pattern":"^(a)\\1$"}`, `"ab"`, false},
		{"unanchored search", `{"pattern":"b"}`, `"abc"`, true},
		{"ascii digit class", `{"pattern":"^\\d+$"}`, `"١٢"`, false},
		{"pattern properties lookahead", `{"patternProperties":{"^(?!x_)":{"type":"integer"}},"additionalProperties":false}`, `{"a":1,"x_b":2}`, false},
		{"pattern properties backreference", `{"patternProperties":{"^(.)\\1":{"type":"string"}}}`, `{"aa":"s","ab":1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustCompile(t, tt.schema)
			assert.Equal(t, tt.valid, v.IsValid(val(t, tt.instance)))
			assert.Equal(t, tt.valid, len(v.Validate(val(t, tt.instance))) == 0)
		})
	}

	info, err := ValidateSchema(val(t, `{"pattern":"^(?!foo)","patternProperties":{"^(a)\\1$":{}}}`))
	require.NoError(t, err)
	assert.Equal(t, Draft2020, info.Dialect)
	assert.True(t, Matches(val(t, `{"format":"regex"}`), val(t, `"(?<=a)b"`)))
}

func TestNumbersBeyondFloatRange(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		instance string
		valid    bool
	}{
		{"maximum exceeded", `{"maximum":1e1000000}`, `1e1000001`, false},
		{"maximum equal", `{"maximum":1e1000000}`, `10e999999`, true},
		{"exclusiveMaximum equal", `{"exclusiveMaximum":1e1000000}`, `1e1000000`, false},
		{"minimum below", `{"minimum":-1e1000000}`, `-1e1000001`, false},
		{"const differs", `{"const":1e1000000}`, `1e1000001`, false},
		{"const equal", `{"const":1e1000000}`, `1.0e1000000`, true},
		{"enum differs", `{"enum":[1e1000000]}`, `1e1000001`, false},
		{"uniqueItems distinct", `{"uniqueItems":true}`, `[1e1000000,1e1000001]`, true},
		{"uniqueItems duplicate", `{"uniqueItems":true}`, `[1e1000000,10e999999]`, false},
		{"huge integer", `{"type":"integer"}`, `1e9999999`, true},
		{"tiny fraction", `{"type":"integer"}`, `1e-9999999`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustCompile(t, tt.schema)
			assert.Equal(t, tt.valid, v.IsValid(val(t, tt.instance)))
			assert.Equal(t, tt.valid, len(v.Validate(val(t, tt.instance))) == 0)
		})
	}
}

func TestDiagnosticModeCollectsAllErrors(t *testing.T) {
	v := mustCompile(t, `{
		"type": "object",
		"properties": {
			"a": {"type": "string", "minLength": 3},
			"b": {"type": "array", "items": {"type": "integer"}}
		},
		"required": ["c", "d"]
	}`)
	errs := v.Validate(val(t, `{"a":"x","b":[1,"two",3,"four"]}`))

	var got []string
	for _, e := range errs {
		got = append(got, FormatDetailed(e))
	}
	assert.Equal(t, []string{
		`/a: "x" is shorter than 3 characters`,
		`/b/1: "two" is not of type "integer"`,
		`/b/3: "four" is not of type "integer"`,
		`/: "c" is a required property`,
		`/: "d" is a required property`,
	}, got)
}

func TestUnevaluatedPropertiesAnnotations(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		instance string
		valid    bool
	}{
		{"allOf branch", `{"allOf":[{"properties":{"a":{}}}],"unevaluatedProperties":false}`, `{"a":1}`, true},
		{"allOf branch extra", `{"allOf":[{"properties":{"a":{}}}],"unevaluatedProperties":false}`, `{"a":1,"b":1}`, false},
		{"failed anyOf branch", `{"anyOf":[{"properties":{"a":{"type":"string"}}},{"properties":{"b":{}}}],"unevaluatedProperties":false}`, `{"a":1,"b":1}`, false},
		{"every valid anyOf branch", `{"anyOf":[{"properties":{"a":{}}},{"properties":{"b":{}}}],"unevaluatedProperties":false}`, `{"a":1,"b":1}`, true},
		{"ref target", `{"$defs":{"x":{"properties":{"a":{}}}},"$ref":"#/$defs/x","unevaluatedProperties":false}`, `{"a":1}`, true},
		{"then taken", `{"if":{"properties":{"a":{"const":1}}},"then":{"properties":{"b":{}}},"unevaluatedProperties":false}`, `{"a":1,"b":2}`, true},
		{"if failed", `{"if":{"properties":{"a":{"const":1}}},"then":{"properties":{"b":{}}},"unevaluatedProperties":false}`, `{"a":2}`, false},
		{"patternProperties", `{"patternProperties":{"^x":{}},"unevaluatedProperties":false}`, `{"xy":1}`, true},
		{"additionalProperties", `{"additionalProperties":true,"unevaluatedProperties":false}`, `{"q":1}`, true},
		{"schema form", `{"unevaluatedProperties":{"type":"integer"}}`, `{"a":1,"b":2}`, true},
		{"schema form invalid", `{"unevaluatedProperties":{"type":"integer"}}`, `{"a":"x"}`, false},
		{"nested object is separate", `{"properties":{"o":{"type":"object"}},"unevaluatedProperties":false}`, `{"o":{"z":1}}`, true},
		{"dependentSchemas", `{"dependentSchemas":{"a":{"properties":{"b":{}}}},"properties":{"a":{}},"unevaluatedProperties":false}`, `{"a":1,"b":2}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustCompile(t, tt.schema)
			inst := val(t, tt.instance)
			assert.Equal(t, tt.valid, v.IsValid(inst))
			assert.Equal(t, tt.valid, v.Validate(inst) == nil)
		})
	}
}

func TestUnevaluatedItemsAnnotations(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		instance string
		valid    bool
	}{
		{"items covers all", `{"items":{},"unevaluatedItems":false}`, `[1,2]`, true},
		{"prefix only", `{"prefixItems":[{}],"unevaluatedItems":false}`, `[1]`, true},
		{"contains marks matches", `{"contains":{"type":"string"},"unevaluatedItems":false}`, `["a","b"]`, true},
		{"contains misses", `{"contains":{"type":"string"},"unevaluatedItems":false}`, `["a",1]`, false},
		{"allOf prefix", `{"allOf":[{"prefixItems":[{},{}]}],"unevaluatedItems":false}`, `[1,2]`, true},
		{"allOf prefix extra", `{"allOf":[{"prefixItems":[{},{}]}],"unevaluatedItems":false}`, `[1,2,3]`, false},
		{"schema form", `{"prefixItems":[{}],"unevaluatedItems":{"type":"string"}}`, `[1,"a"]`, true},
		{"draft 2019 additionalItems", `{"$schema":` + draft2019 + `,"items":[{}],"additionalItems":true,"unevaluatedItems":false}`, `[1,2]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustCompile(t, tt.schema)
			assert.Equal(t, tt.valid, v.IsValid(val(t, tt.instance)))
		})
	}
}

func TestRefOverridesSiblingsBeforeDraft2019(t *testing.T) {
	inst := val(t, `{"x":"abc"}`)
	for _, uri := range []string{draft4URI, draft6URI, draft7URI} {
		v := mustCompile(t, `{
			"$schema": `+uri+`,
			"definitions": {"s": {"type": "string"}},
			"properties": {"x": {"$ref": "#/definitions/s", "maxLength": 1}}
		}`)
		assert.True(t, v.IsValid(inst), uri)
	}

	v := mustCompile(t, `{
		"$defs": {"s": {"type": "string"}},
		"properties": {"x": {"$ref": "#/$defs/s", "maxLength": 1}}
	}`)
	assert.False(t, v.IsValid(inst))
}

func TestUnknownKeywordsAreIgnored(t *testing.T) {
	assert.True(t, Matches(val(t, `{"foo":{"type":"string"},"bar":12}`), val(t, `1`)))
	// dependentRequired is not a draft-07 keyword
	assert.True(t, Matches(val(t, `{"$schema":`+draft7URI+`,"dependentRequired":{"a":["b"]}}`), val(t, `{"a":1}`)))
	// nor is prefixItems draft 2019-09
	assert.True(t, Matches(val(t, `{"$schema":`+draft2019+`,"prefixItems":[{"type":"string"}]}`), val(t, `[1]`)))
}

func TestFormatAssertionCanBeDisabled(t *testing.T) {
	cfg := DefaultCompilerConfig()
	cfg.AssertFormat = false
	v, err := NewCompiler(cfg).Compile(val(t, `{"format":"ipv4"}`))
	require.NoError(t, err)
	assert.True(t, v.IsValid(val(t, `"not an address"`)))
}

func TestRegisterFormat(t *testing.T) {
	c := NewCompiler(nil)
	c.RegisterFormat("even-length", func(s string) bool { return len(s)%2 == 0 })
	c.RegisterFormat("ipv4", func(string) bool { return true })

	v, err := c.Compile(val(t, `{"properties":{"a":{"format":"even-length"},"b":{"format":"ipv4"}}}`))
	require.NoError(t, err)
	assert.True(t, v.IsValid(val(t, `{"a":"ab","b":"x"}`)))

	errs := v.Validate(val(t, `{"a":"abc"}`))
	require.Len(t, errs, 1)
	assert.Equal(t, `"abc" is not a "even-length"`, errs[0].Message)

	// unknown formats never fail
	assert.True(t, Matches(val(t, `{"format":"shoe-size"}`), val(t, `"x"`)))
}

func TestFastAndDiagnosticModesAgree(t *testing.T) {
	schema := `{
		"type": "object",
		"properties": {
			"list": {"type": "array", "items": {"anyOf": [{"type": "integer"}, {"type": "null"}]}, "maxItems": 3},
			"kind": {"enum": ["a", "b"]},
			"nested": {"$ref": "#"}
		},
		"additionalProperties": false,
		"unevaluatedProperties": false
	}`
	v := mustCompile(t, schema)
	for _, inst := range []string{
		`{}`,
		`{"list":[1,null,2]}`,
		`{"list":[1,null,2,3]}`,
		`{"list":["x"]}`,
		`{"kind":"c"}`,
		`{"nested":{"nested":{"kind":"a"}}}`,
		`{"nested":{"nested":{"other":1}}}`,
		`[]`,
	} {
		i := val(t, inst)
		assert.Equal(t, v.IsValid(i), v.Validate(i) == nil, inst)
	}
}
