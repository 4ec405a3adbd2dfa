package jsonvalue

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DecodeYAML parses a single YAML document into a Value. Mapping order is
// preserved and aliases are expanded. Keys must be scalars; values must be
// representable in JSON.
func DecodeYAML(data []byte) (Value, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Value{}, fmt.Errorf("jsonvalue: yaml: %w", err)
	}
	if root.Kind == 0 {
		return Value{}, &SyntaxError{Msg: "empty yaml document"}
	}
	return fromYAMLNode(&root, 0)
}

const maxYAMLAliasDepth = 64

func fromYAMLNode(n *yaml.Node, aliasDepth int) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NullValue(), nil
		}
		return fromYAMLNode(n.Content[0], aliasDepth)
	case yaml.AliasNode:
		if aliasDepth >= maxYAMLAliasDepth {
			return Value{}, &SyntaxError{Msg: "yaml alias nesting too deep"}
		}
		return fromYAMLNode(n.Alias, aliasDepth+1)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromYAMLNode(c, aliasDepth)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return ArrayValue(items...), nil
	case yaml.MappingNode:
		members := make([]Member, 0, len(n.Content)/2)
		seen := make(map[string]struct{}, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			for k.Kind == yaml.AliasNode {
				k = k.Alias
			}
			if k.Kind != yaml.ScalarNode {
				return Value{}, &SyntaxError{Msg: fmt.Sprintf("line %d: mapping key must be a scalar", k.Line)}
			}
			if k.Tag == "!!merge" {
				return Value{}, &SyntaxError{Msg: fmt.Sprintf("line %d: merge keys are not supported", k.Line)}
			}
			if _, dup := seen[k.Value]; dup {
				return Value{}, &SyntaxError{Msg: fmt.Sprintf("line %d: duplicate mapping key %q", k.Line, k.Value)}
			}
			seen[k.Value] = struct{}{}
			v, err := fromYAMLNode(n.Content[i+1], aliasDepth)
			if err != nil {
				return Value{}, err
			}
			members = append(members, Member{Key: k.Value, Value: v})
		}
		return ObjectValue(members...), nil
	case yaml.ScalarNode:
		return fromYAMLScalar(n)
	}
	return Value{}, &SyntaxError{Msg: fmt.Sprintf("line %d: unsupported yaml node", n.Line)}
}

func fromYAMLScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return NullValue(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("jsonvalue: yaml: %w", err)
		}
		return BoolValue(b), nil
	case "!!int":
		// Plain decimal literals keep their text; other bases are normalized.
		if isNumberLiteral(n.Value) {
			return NumberFromLiteral(n.Value)
		}
		var i int64
		if err := n.Decode(&i); err != nil {
			var u uint64
			if uerr := n.Decode(&u); uerr != nil {
				return Value{}, fmt.Errorf("jsonvalue: yaml: %w", err)
			}
			return NumberFromLiteral(strconv.FormatUint(u, 10))
		}
		return NumberFromLiteral(formatInt(i))
	case "!!float":
		if isNumberLiteral(n.Value) {
			return NumberFromLiteral(n.Value)
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("jsonvalue: yaml: %w", err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, &SyntaxError{Msg: fmt.Sprintf("line %d: non-finite number %q", n.Line, n.Value)}
		}
		return NumberValue(f), nil
	case "!!str", "!!timestamp", "!!binary":
		return StringValue(n.Value), nil
	}
	return Value{}, &SyntaxError{Msg: fmt.Sprintf("line %d: unsupported yaml tag %s", n.Line, n.Tag)}
}
