package jsonvalue

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// String renders v as compact JSON. Number literals are reproduced as given.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb, false)
	return sb.String()
}

// Canonical renders v as compact JSON with object keys sorted, so that two
// documents differing only in member order render identically.
func (v Value) Canonical() string {
	var sb strings.Builder
	v.write(&sb, true)
	return sb.String()
}

func (v Value) write(sb *strings.Builder, sorted bool) {
	switch v.kind {
	case Null:
		sb.WriteString("null")
	case Bool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case Number:
		sb.WriteString(v.s)
	case String:
		QuoteTo(sb, v.s)
	case Array:
		sb.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.write(sb, sorted)
		}
		sb.WriteByte(']')
	case Object:
		keys := v.obj.keys
		if sorted {
			keys = v.SortedKeys()
		}
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			QuoteTo(sb, k)
			sb.WriteByte(':')
			val, _ := v.Get(k)
			val.write(sb, sorted)
		}
		sb.WriteByte('}')
	}
}

// Quote returns s as a JSON string literal
func Quote(s string) string {
	var sb strings.Builder
	QuoteTo(&sb, s)
	return sb.String()
}

// QuoteTo writes s as a JSON string literal
func QuoteTo(sb *strings.Builder, s string) {
	const hex = "0123456789abcdef"
	sb.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"':
				sb.WriteString(`\"`)
			case c == '\\':
				sb.WriteString(`\\`)
			case c == '\n':
				sb.WriteString(`\n`)
			case c == '\r':
				sb.WriteString(`\r`)
			case c == '\t':
				sb.WriteString(`\t`)
			case c == '\b':
				sb.WriteString(`\b`)
			case c == '\f':
				sb.WriteString(`\f`)
			case c < 0x20:
				sb.WriteString(`\u00`)
				sb.WriteByte(hex[c>>4])
				sb.WriteByte(hex[c&0xf])
			default:
				sb.WriteByte(c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			sb.WriteString(`\ufffd`)
		} else {
			sb.WriteString(s[i : i+size])
		}
		i += size
	}
	sb.WriteByte('"')
}

// formatInt is used by decoders that normalize integer literals
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
