package jsonschema

import (
	"strconv"
	"strings"
)

// PathSegment is one step in an instance or schema location: either an object
// key or an array index.
type PathSegment struct {
	Key     string
	Index   int
	IsIndex bool
}

// KeySegment returns a segment naming an object member
func KeySegment(key string) PathSegment {
	return PathSegment{Key: key}
}

// IndexSegment returns a segment naming an array item
func IndexSegment(i int) PathSegment {
	return PathSegment{Index: i, IsIndex: true}
}

func (s PathSegment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// Path is an ordered location trail. It renders as a JSON Pointer.
type Path []PathSegment

// String renders p as an RFC 6901 JSON Pointer; the empty path renders as "".
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, s := range p {
		sb.WriteByte('/')
		if s.IsIndex {
			sb.WriteString(strconv.Itoa(s.Index))
			continue
		}
		sb.WriteString(escapePointerToken(s.Key))
	}
	return sb.String()
}

// Segments returns the path as plain strings
func (p Path) Segments() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.String()
	}
	return out
}

// Key returns a copy of p extended by an object key
func (p Path) Key(key string) Path {
	return p.with(KeySegment(key))
}

// Index returns a copy of p extended by an array index
func (p Path) Index(i int) Path {
	return p.with(IndexSegment(i))
}

func (p Path) with(s PathSegment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// Clone returns a copy of p that does not share storage
func (p Path) Clone() Path {
	if p == nil {
		return Path{}
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// ParsePointer splits a JSON Pointer into key segments. Every token is kept
// as a key; callers that need indices resolve them against a document.
func ParsePointer(ptr string) (Path, bool) {
	if ptr == "" {
		return Path{}, true
	}
	if ptr[0] != '/' {
		return nil, false
	}
	toks := strings.Split(ptr[1:], "/")
	out := make(Path, len(toks))
	for i, tok := range toks {
		out[i] = KeySegment(unescapePointerToken(tok))
	}
	return out, true
}

func escapePointerToken(s string) string {
	if !strings.ContainsAny(s, "~/") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

func unescapePointerToken(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
}
