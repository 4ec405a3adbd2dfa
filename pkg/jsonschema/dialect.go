package jsonschema

import "strings"

// Dialect identifies a JSON Schema specification version
type Dialect int

const (
	DialectUnknown Dialect = iota
	Draft4
	Draft6
	Draft7
	Draft2019
	Draft2020
)

var dialectURIs = map[Dialect]string{
	Draft4:    "http://json-schema.org/draft-04/schema#",
	Draft6:    "http://json-schema.org/draft-06/schema#",
	Draft7:    "http://json-schema.org/draft-07/schema#",
	Draft2019: "https://json-schema.org/draft/2019-09/schema",
	Draft2020: "https://json-schema.org/draft/2020-12/schema",
}

func (d Dialect) String() string {
	switch d {
	case Draft4:
		return "draft-04"
	case Draft6:
		return "draft-06"
	case Draft7:
		return "draft-07"
	case Draft2019:
		return "2019-09"
	case Draft2020:
		return "2020-12"
	default:
		return "unknown"
	}
}

// URI returns the canonical meta-schema URI of d
func (d Dialect) URI() string {
	return dialectURIs[d]
}

// DialectFromURI maps a $schema value onto a dialect. The http and https
// forms, with or without a trailing empty fragment, are accepted.
func DialectFromURI(uri string) (Dialect, bool) {
	u := strings.TrimSuffix(strings.TrimSpace(uri), "#")
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	switch u {
	case "json-schema.org/draft-04/schema":
		return Draft4, true
	case "json-schema.org/draft-06/schema":
		return Draft6, true
	case "json-schema.org/draft-07/schema":
		return Draft7, true
	case "json-schema.org/draft/2019-09/schema":
		return Draft2019, true
	case "json-schema.org/draft/2020-12/schema":
		return Draft2020, true
	}
	return DialectUnknown, false
}

// ParseDialect accepts either a short dialect name ("draft-07", "2020-12",
// "draft7") or a meta-schema URI.
func ParseDialect(s string) (Dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft-04", "draft4", "4":
		return Draft4, true
	case "draft-06", "draft6", "6":
		return Draft6, true
	case "draft-07", "draft7", "7":
		return Draft7, true
	case "2019-09", "draft2019-09", "draft-2019-09":
		return Draft2019, true
	case "2020-12", "draft2020-12", "draft-2020-12":
		return Draft2020, true
	}
	return DialectFromURI(s)
}

// DialectInfo is the outcome of meta-validation
type DialectInfo struct {
	Dialect Dialect
	// SchemaURI is the $schema value, or the default dialect's URI
	SchemaURI string
	// Declared reports whether the document carried a recognized $schema
	Declared bool
}

// UnknownDialectPolicy decides what happens when $schema names a dialect
// this package does not implement.
type UnknownDialectPolicy int

const (
	// RejectUnknownDialect fails compilation with a CompileError
	RejectUnknownDialect UnknownDialectPolicy = iota
	// FallbackToDefault compiles with the configured default dialect
	FallbackToDefault
)

func (p UnknownDialectPolicy) String() string {
	if p == FallbackToDefault {
		return "fallback"
	}
	return "reject"
}

// ParseUnknownDialectPolicy parses "reject" or "fallback"
func ParseUnknownDialectPolicy(s string) (UnknownDialectPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reject", "":
		return RejectUnknownDialect, true
	case "fallback", "default":
		return FallbackToDefault, true
	}
	return RejectUnknownDialect, false
}
