package jsonvalue

import (
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the JSON type of a Value
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an immutable JSON value. The zero Value is JSON null.
//
// Values are shared by reference: slices returned by Items must not be
// modified by callers.
type Value struct {
	kind Kind
	b    bool
	s    string // string contents, or the literal text of a number
	f    float64
	arr  []Value
	obj  *object
}

type object struct {
	keys  []string
	vals  []Value
	index map[string]int
}

// Member is a single key/value pair of an object
type Member struct {
	Key   string
	Value Value
}

// NullValue returns JSON null
func NullValue() Value { return Value{} }

// BoolValue returns a JSON boolean
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// StringValue returns a JSON string
func StringValue(s string) Value { return Value{kind: String, s: s} }

// NumberValue returns a JSON number from a float64. The literal form is the
// shortest decimal that round-trips to f.
func NumberValue(f float64) Value {
	return Value{kind: Number, f: f, s: strconv.FormatFloat(f, 'g', -1, 64)}
}

// IntValue returns a JSON number from an integer
func IntValue(i int64) Value {
	return Value{kind: Number, f: float64(i), s: strconv.FormatInt(i, 10)}
}

// NumberFromLiteral returns a JSON number from its textual literal, keeping the
// literal so that comparisons can be made exactly.
func NumberFromLiteral(lit string) (Value, error) {
	if !isNumberLiteral(lit) {
		return Value{}, &SyntaxError{Msg: "invalid number literal " + strconv.Quote(lit)}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		// Out-of-range literals keep their exact text and saturate the float.
		if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
			return Value{}, &SyntaxError{Msg: "invalid number literal " + strconv.Quote(lit)}
		}
	}
	return Value{kind: Number, f: f, s: lit}, nil
}

// ArrayValue returns a JSON array holding items in order
func ArrayValue(items ...Value) Value {
	return Value{kind: Array, arr: items}
}

// ObjectValue returns a JSON object with members in the given order. A repeated
// key replaces the earlier value in place.
func ObjectValue(members ...Member) Value {
	o := &object{
		keys:  make([]string, 0, len(members)),
		vals:  make([]Value, 0, len(members)),
		index: make(map[string]int, len(members)),
	}
	for _, m := range members {
		if i, ok := o.index[m.Key]; ok {
			o.vals[i] = m.Value
			continue
		}
		o.index[m.Key] = len(o.keys)
		o.keys = append(o.keys, m.Key)
		o.vals = append(o.vals, m.Value)
	}
	return Value{kind: Object, obj: o}
}

// Kind returns the JSON type of v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null
func (v Value) IsNull() bool { return v.kind == Null }

// Bool returns the boolean held by v
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == Bool
}

// Str returns the string held by v
func (v Value) Str() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.s, true
}

// Float returns the float64 approximation of a number
func (v Value) Float() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	return v.f, true
}

// Literal returns the literal text of a number
func (v Value) Literal() string {
	if v.kind != Number {
		return ""
	}
	return v.s
}

// Rat returns the exact rational value of a number. It returns nil for
// non-numbers and non-finite floats.
func (v Value) Rat() *big.Rat {
	if v.kind != Number {
		return nil
	}
	if math.IsInf(v.f, 0) || math.IsNaN(v.f) {
		if !isNumberLiteral(v.s) {
			return nil
		}
	}
	r, ok := new(big.Rat).SetString(v.s)
	if !ok {
		return nil
	}
	return r
}

// IsInteger reports whether v is a number with no fractional part
func (v Value) IsInteger() bool {
	if v.kind != Number {
		return false
	}
	if !strings.ContainsAny(v.s, ".eE") {
		return true
	}
	if math.Abs(v.f) < 1<<53 && !math.IsInf(v.f, 0) && v.f != math.Trunc(v.f) {
		return false
	}
	return parseDecimal(v.s).isInt()
}

// Len returns the number of array items, object members or string bytes
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return len(v.obj.keys)
	case String:
		return len(v.s)
	default:
		return 0
	}
}

// Items returns the array items
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	return v.arr
}

// Index returns the i-th array item
func (v Value) Index(i int) Value {
	return v.arr[i]
}

// Get returns the object member named key
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	i, ok := v.obj.index[key]
	if !ok {
		return Value{}, false
	}
	return v.obj.vals[i], true
}

// Has reports whether the object has a member named key
func (v Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Keys returns object keys in insertion order
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	return v.obj.keys
}

// Member returns the i-th object member in insertion order
func (v Value) Member(i int) (string, Value) {
	return v.obj.keys[i], v.obj.vals[i]
}

// Members returns a copy of the object members in insertion order
func (v Value) Members() []Member {
	if v.kind != Object {
		return nil
	}
	out := make([]Member, len(v.obj.keys))
	for i, k := range v.obj.keys {
		out[i] = Member{Key: k, Value: v.obj.vals[i]}
	}
	return out
}

// Range calls fn for each object member in insertion order until fn returns
// false
func (v Value) Range(fn func(key string, val Value) bool) {
	if v.kind != Object {
		return
	}
	for i, k := range v.obj.keys {
		if !fn(k, v.obj.vals[i]) {
			return
		}
	}
}

// SortedKeys returns object keys in lexicographic order
func (v Value) SortedKeys() []string {
	keys := append([]string(nil), v.Keys()...)
	sort.Strings(keys)
	return keys
}

// Pointer resolves an RFC 6901 JSON Pointer against v
func (v Value) Pointer(ptr string) (Value, bool) {
	if ptr == "" {
		return v, true
	}
	if ptr[0] != '/' {
		return Value{}, false
	}
	cur := v
	for _, tok := range strings.Split(ptr[1:], "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		switch cur.kind {
		case Object:
			next, ok := cur.Get(tok)
			if !ok {
				return Value{}, false
			}
			cur = next
		case Array:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(cur.arr) || (len(tok) > 1 && tok[0] == '0') {
				return Value{}, false
			}
			cur = cur.arr[i]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

func isNumberLiteral(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	if i >= len(s) {
		return false
	}
	if s[i] == '0' {
		i++
	} else if s[i] >= '1' && s[i] <= '9' {
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	} else {
		return false
	}
	if i < len(s) && s[i] == '.' {
		i++
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return false
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return false
		}
	}
	return i == len(s)
}
