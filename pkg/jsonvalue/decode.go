package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// SyntaxError reports a document that cannot be turned into a Value
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string {
	return "jsonvalue: " + e.Msg
}

// Decode parses a single JSON document. Object member order and number
// literals are preserved; duplicate object keys are rejected.
func Decode(data []byte) (Value, error) {
	return DecodeReader(bytes.NewReader(data))
}

// DecodeString parses a single JSON document held in a string
func DecodeString(s string) (Value, error) {
	return Decode([]byte(s))
}

// MustDecode is like Decode but panics on error. Intended for tests and
// package-level fixtures.
func MustDecode(s string) Value {
	v, err := DecodeString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// DecodeReader parses a single JSON document from r
func DecodeReader(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return Value{}, &SyntaxError{Msg: "unexpected data after top-level value"}
		}
		return Value{}, fmt.Errorf("jsonvalue: %w", err)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, &SyntaxError{Msg: "unexpected end of input"}
		}
		return Value{}, fmt.Errorf("jsonvalue: %w", err)
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Number:
		return NumberFromLiteral(t.String())
	case json.Delim:
		switch t {
		case '[':
			items := make([]Value, 0)
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("jsonvalue: %w", err)
			}
			return ArrayValue(items...), nil
		case '{':
			members := make([]Member, 0)
			seen := make(map[string]struct{})
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, fmt.Errorf("jsonvalue: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, &SyntaxError{Msg: "object key is not a string"}
				}
				if _, dup := seen[key]; dup {
					return Value{}, &SyntaxError{Msg: "duplicate object key " + strconv.Quote(key)}
				}
				seen[key] = struct{}{}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				members = append(members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("jsonvalue: %w", err)
			}
			return ObjectValue(members...), nil
		}
	}
	return Value{}, &SyntaxError{Msg: fmt.Sprintf("unexpected token %v", tok)}
}

// FromAny converts a Go value as produced by encoding/json (or built by hand)
// into a Value. Go maps carry no order, so their members are sorted by key.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Number:
		return NumberFromLiteral(t.String())
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Value{}, &SyntaxError{Msg: "non-finite number"}
		}
		return NumberValue(t), nil
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, &SyntaxError{Msg: "non-finite number"}
		}
		return NumberValue(f), nil
	case int:
		return IntValue(int64(t)), nil
	case int8:
		return IntValue(int64(t)), nil
	case int16:
		return IntValue(int64(t)), nil
	case int32:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case uint:
		return NumberFromLiteral(strconv.FormatUint(uint64(t), 10))
	case uint8:
		return IntValue(int64(t)), nil
	case uint16:
		return IntValue(int64(t)), nil
	case uint32:
		return IntValue(int64(t)), nil
	case uint64:
		return NumberFromLiteral(strconv.FormatUint(t, 10))
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ArrayValue(items...), nil
	case []Value:
		return ArrayValue(t...), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]Member, len(keys))
		for i, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return Value{}, err
			}
			members[i] = Member{Key: k, Value: v}
		}
		return ObjectValue(members...), nil
	case json.RawMessage:
		return Decode(t)
	default:
		return Value{}, &SyntaxError{Msg: fmt.Sprintf("unsupported Go type %T", x)}
	}
}

// ToAny converts v into the generic Go representation used by encoding/json,
// with numbers as json.Number.
func ToAny(v Value) any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return json.Number(v.s)
	case String:
		return v.s
	case Array:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = ToAny(item)
		}
		return out
	case Object:
		out := make(map[string]any, len(v.obj.keys))
		for i, k := range v.obj.keys {
			out[k] = ToAny(v.obj.vals[i])
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON renders v as JSON, preserving member order
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalJSON parses JSON into v, preserving member order
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Decode(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
