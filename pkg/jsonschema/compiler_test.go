package jsonschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnchorReferences(t *testing.T) {
	v := mustCompile(t, `{
		"$defs": {"a": {"$anchor": "count", "type": "integer"}},
		"properties": {"n": {"$ref": "#count"}}
	}`)
	assert.True(t, v.IsValid(val(t, `{"n":1}`)))
	assert.False(t, v.IsValid(val(t, `{"n":"x"}`)))
}

func TestLegacyFragmentIDs(t *testing.T) {
	v := mustCompile(t, `{
		"$schema": `+draft6URI+`,
		"definitions": {"a": {"$id": "#count", "type": "integer"}},
		"properties": {"n": {"$ref": "#count"}}
	}`)
	assert.False(t, v.IsValid(val(t, `{"n":"x"}`)))

	v = mustCompile(t, `{
		"$schema": `+draft4URI+`,
		"id": "http://example.com/root.json",
		"definitions": {"s": {"id": "#str", "type": "string"}},
		"properties": {"a": {"$ref": "#str"}}
	}`)
	assert.True(t, v.IsValid(val(t, `{"a":"x"}`)))
	assert.False(t, v.IsValid(val(t, `{"a":1}`)))
}

func TestIDChangesResolutionBase(t *testing.T) {
	v := mustCompile(t, `{
		"$id": "http://example.com/root.json",
		"$defs": {
			"b": {"$id": "other.json", "$defs": {"x": {"type": "integer"}}}
		},
		"properties": {
			"p": {"$ref": "other.json#/$defs/x"},
			"q": {"$ref": "#/$defs/b/$defs/x"},
			"r": {"$ref": "http://example.com/other.json"}
		}
	}`)
	assert.True(t, v.IsValid(val(t, `{"p":1,"q":2,"r":{}}`)))
	assert.False(t, v.IsValid(val(t, `{"p":"s"}`)))
	assert.False(t, v.IsValid(val(t, `{"q":"s"}`)))
}

func TestEscapedPointerReferences(t *testing.T) {
	v := mustCompile(t, `{
		"$defs": {
			"a/b": {"type": "integer"},
			"c%d": {"type": "string"},
			"t~n": {"type": "boolean"}
		},
		"allOf": [{"minProperties": 0}, {"maxProperties": 5}],
		"properties": {
			"x": {"$ref": "#/$defs/a~1b"},
			"y": {"$ref": "#/$defs/c%25d"},
			"z": {"$ref": "#/$defs/t~0n"},
			"w": {"$ref": "#/allOf/1"}
		}
	}`)
	assert.True(t, v.IsValid(val(t, `{"x":1,"y":"s","z":true,"w":{}}`)))
	assert.False(t, v.IsValid(val(t, `{"x":"s"}`)))
	assert.False(t, v.IsValid(val(t, `{"y":1}`)))
	assert.False(t, v.IsValid(val(t, `{"z":1}`)))
	assert.False(t, v.IsValid(val(t, `{"w":{"1":1,"2":2,"3":3,"4":4,"5":5,"6":6}}`)))
}

func TestPointerIntoNonKeywordLocation(t *testing.T) {
	v := mustCompile(t, `{"foo": {"bar": {"type": "string"}}, "$ref": "#/foo/bar"}`)
	assert.True(t, v.IsValid(val(t, `"x"`)))
	assert.False(t, v.IsValid(val(t, `1`)))

	_, err := Compile(val(t, `{"foo": {"bar": {"type": "obj"}}, "$ref": "#/foo/bar"}`))
	require.Error(t, err)
	assert.Equal(t, `invalid schema at "/foo/bar/type": "obj" is not valid under any of the given schemas`, err.Error())
}

func TestExternalResources(t *testing.T) {
	c := NewCompiler(nil)
	require.NoError(t, c.AddResource("https://example.com/positive.json#ignored", val(t, `{"type":"integer","minimum":1}`)))
	require.NoError(t, c.AddResource("https://example.com/defs.json", val(t, `{"$defs":{"name":{"type":"string","minLength":1}}}`)))

	v, err := c.Compile(val(t, `{
		"properties": {
			"n": {"$ref": "https://example.com/positive.json"},
			"s": {"$ref": "https://example.com/defs.json#/$defs/name"}
		}
	}`))
	require.NoError(t, err)
	assert.True(t, v.IsValid(val(t, `{"n":3,"s":"a"}`)))

	errs := v.Validate(val(t, `{"n":0,"s":""}`))
	require.Len(t, errs, 2)
	assert.Equal(t, `0 is less than the minimum of 1`, errs[0].Message)
	assert.Equal(t, "/n", errs[0].InstancePath.String())
	assert.Equal(t, `"" is shorter than 1 character`, errs[1].Message)
}

func TestExternalResourceErrors(t *testing.T) {
	c := NewCompiler(nil)
	assert.Error(t, c.AddResource("relative.json", val(t, `{}`)))
	require.NoError(t, c.AddResource("https://example.com/bad.json", val(t, `{"type":"obj"}`)))

	_, err := c.Compile(val(t, `{"properties":{"n":{"$ref":"https://example.com/missing.json"}}}`))
	require.Error(t, err)
	assert.Equal(t, `invalid schema at "/properties/n/$ref": cannot resolve reference: no schema registered for "https://example.com/missing.json"`, err.Error())

	_, err = c.Compile(val(t, `{"$ref":"https://example.com/bad.json"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `in https://example.com/bad.json: "obj" is not valid under any of the given schemas`)

	// well-known meta-schemas are not bundled
	_, err = c.Compile(val(t, `{"$ref":"https://json-schema.org/draft/2020-12/schema"}`))
	assert.Error(t, err)
}

func TestDynamicRefExtendsRecursiveSchema(t *testing.T) {
	c := NewCompiler(nil)
	require.NoError(t, c.AddResource("https://example.com/tree", val(t, `{
		"$id": "https://example.com/tree",
		"$dynamicAnchor": "node",
		"type": "object",
		"properties": {
			"data": true,
			"children": {"type": "array", "items": {"$dynamicRef": "#node"}}
		}
	}`)))

	strict, err := c.Compile(val(t, `{
		"$id": "https://example.com/strict-tree",
		"$dynamicAnchor": "node",
		"$ref": "tree",
		"unevaluatedProperties": false
	}`))
	require.NoError(t, err)

	tree, err := c.Compile(val(t, `{"$ref": "https://example.com/tree"}`))
	require.NoError(t, err)

	typo := val(t, `{"children": [{"daat": 1}]}`)
	assert.False(t, strict.IsValid(typo))
	assert.True(t, tree.IsValid(typo))
	assert.True(t, strict.IsValid(val(t, `{"data": 1, "children": [{"data": 2, "children": []}]}`)))

	// the failed $ref also leaves "children" unevaluated at the root
	errs := strict.Validate(typo)
	require.Len(t, errs, 2)
	assert.Equal(t, "/children/0", errs[0].InstancePath.String())
	assert.Equal(t, "unevaluatedProperties", errs[0].Keyword)
	assert.Equal(t, "", errs[1].InstancePath.String())
	assert.Equal(t, `Unevaluated properties are not allowed ('children' was unexpected)`, errs[1].Message)
}

func TestRecursiveRefExtendsRecursiveSchema(t *testing.T) {
	c := NewCompiler(nil)
	require.NoError(t, c.AddResource("https://example.com/tree", val(t, `{
		"$schema": `+draft2019+`,
		"$id": "https://example.com/tree",
		"$recursiveAnchor": true,
		"type": "object",
		"properties": {
			"data": true,
			"children": {"type": "array", "items": {"$recursiveRef": "#"}}
		}
	}`)))

	strict, err := c.Compile(val(t, `{
		"$schema": `+draft2019+`,
		"$id": "https://example.com/strict-tree",
		"$recursiveAnchor": true,
		"$ref": "tree",
		"unevaluatedProperties": false
	}`))
	require.NoError(t, err)
	assert.Equal(t, Draft2019, strict.Dialect().Dialect)

	assert.False(t, strict.IsValid(val(t, `{"children": [{"daat": 1}]}`)))
	assert.True(t, strict.IsValid(val(t, `{"children": [{"data": 1}]}`)))
}

func TestEmbeddedResourceSwitchesDialect(t *testing.T) {
	v := mustCompile(t, `{
		"$defs": {
			"old": {
				"$id": "http://example.com/old",
				"$schema": `+draft7URI+`,
				"items": [{"type": "string"}]
			}
		},
		"$ref": "http://example.com/old"
	}`)
	assert.True(t, v.IsValid(val(t, `["a", 1]`)))
	assert.False(t, v.IsValid(val(t, `[1]`)))

	// without the embedded $schema, array-form items is not a 2020-12 schema
	assert.False(t, IsValidSchema(val(t, `{"items": [{"type": "string"}]}`)))
}

func TestDuplicateResource(t *testing.T) {
	_, err := Compile(val(t, `{"$defs":{"a":{"$id":"http://x/a"},"b":{"$id":"http://x/a"}}}`))
	require.Error(t, err)
	ce, ok := AsCompileError(err)
	require.True(t, ok)
	assert.Equal(t, "/$defs/b", ce.Path.String())
	assert.Equal(t, "$id", ce.Keyword)
	assert.Equal(t, `duplicate schema resource "http://x/a"`, ce.Message)
}

func TestSchemaNestingDepth(t *testing.T) {
	cfg := DefaultCompilerConfig()
	cfg.MaxDepth = 3
	c := NewCompiler(cfg)

	_, err := c.Compile(val(t, `{"properties":{"a":{"properties":{"b":{"properties":{"c":{"properties":{"d":{}}}}}}}}}`))
	require.Error(t, err)
	assert.Equal(t, `invalid schema at "/properties/a/properties/b/properties/c/properties/d": schema nesting exceeds the maximum depth of 3`, err.Error())

	_, err = c.Compile(val(t, `{"properties":{"a":{"properties":{"b":{"properties":{"c":{}}}}}}}`))
	assert.NoError(t, err)
}

func TestEvaluationDepth(t *testing.T) {
	cfg := DefaultCompilerConfig()
	cfg.MaxDepth = 3
	v, err := NewCompiler(cfg).Compile(val(t, `{"properties":{"a":{"$ref":"#"}}}`))
	require.NoError(t, err)

	assert.True(t, v.IsValid(val(t, `{"a":{}}`)))
	assert.False(t, v.IsValid(val(t, `{"a":{"a":{"a":{}}}}`)))

	errs := v.Validate(val(t, `{"a":{"a":{"a":{}}}}`))
	require.Len(t, errs, 1)
	assert.Equal(t, "maximum evaluation depth exceeded", errs[0].Message)
}

func TestUnknownDialectPolicy(t *testing.T) {
	schema := val(t, `{"$schema":"http://example.com/custom","type":"string"}`)

	_, err := Compile(schema)
	require.Error(t, err)
	assert.Equal(t, `invalid schema at "/$schema": unknown dialect "http://example.com/custom"`, err.Error())

	cfg := DefaultCompilerConfig()
	cfg.UnknownDialect = FallbackToDefault
	v, err := NewCompiler(cfg).Compile(schema)
	require.NoError(t, err)
	assert.Equal(t, DialectInfo{Dialect: Draft2020, SchemaURI: "http://example.com/custom"}, v.Dialect())
	assert.False(t, v.IsValid(val(t, `1`)))
}

func TestDefaultDialect(t *testing.T) {
	cfg := DefaultCompilerConfig()
	cfg.DefaultDialect = Draft7
	c := NewCompiler(cfg)

	v, err := c.Compile(val(t, `{"dependentRequired":{"a":["b"]},"items":[{"type":"string"}]}`))
	require.NoError(t, err)
	assert.Equal(t, Draft7, v.Dialect().Dialect)
	assert.False(t, v.Dialect().Declared)
	assert.True(t, v.IsValid(val(t, `{"a":1}`)))
	assert.False(t, v.IsValid(val(t, `[1]`)))

	assert.Equal(t, Draft2020, NewCompiler(&CompilerConfig{}).Config().DefaultDialect)
	assert.Equal(t, DefaultMaxDepth, NewCompiler(&CompilerConfig{}).Config().MaxDepth)
}

func TestResolveURI(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{DefaultBaseURI, "#/a", "json-schema:///#/a"},
		{DefaultBaseURI, "other.json", "json-schema:///other.json"},
		{"http://example.com/a/b.json", "c.json#/x", "http://example.com/a/c.json#/x"},
		{"http://example.com/a/b.json#frag", "#/y", "http://example.com/a/b.json#/y"},
		{"http://example.com/a/b.json", "urn:example:thing", "urn:example:thing"},
	}
	for _, tt := range tests {
		got, err := resolveURI(tt.base, tt.ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	base, frag := splitFragment("http://example.com/x#/a%20b")
	assert.Equal(t, "http://example.com/x", base)
	assert.Equal(t, "/a b", frag)
}
