package jsonschema

import (
	"net/mail"
	"net/netip"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/net/idna"
)

// FormatFunc reports whether a string conforms to a format
type FormatFunc func(string) bool

var builtinFormats = map[string]FormatFunc{
	"date-time":             isDateTime,
	"date":                  isDate,
	"time":                  isTime,
	"duration":              isDuration,
	"email":                 isEmail,
	"idn-email":             isIDNEmail,
	"hostname":              isHostname,
	"idn-hostname":          isIDNHostname,
	"ipv4":                  isIPv4,
	"ipv6":                  isIPv6,
	"uri":                   isURI,
	"uri-reference":         isURIReference,
	"iri":                   isIRI,
	"iri-reference":         isIRIReference,
	"uri-template":          isURITemplate,
	"json-pointer":          isJSONPointer,
	"relative-json-pointer": isRelativeJSONPointer,
	"regex":                 isRegex,
	"uuid":                  isUUID,
}

// Formats returns the names of the built-in format checkers
func Formats() []string {
	out := make([]string, 0, len(builtinFormats))
	for name := range builtinFormats {
		out = append(out, name)
	}
	return out
}

var (
	dateRe     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	timeRe     = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})(\.\d+)?([Zz]|([+-])(\d{2}):(\d{2}))$`)
	durationRe = regexp.MustCompile(`^P(?:(\d+W)|(\d+Y)?(\d+M)?(\d+D)?(?:T(\d+H)?(\d+M)?(\d+S)?)?)$`)
	relPtrRe   = regexp.MustCompile(`^(0|[1-9][0-9]*)(#|(/([^~]|~[01])*)*)$`)
)

func isDateTime(s string) bool {
	i := strings.IndexAny(s, "Tt")
	if i < 0 {
		return false
	}
	return isDate(s[:i]) && isTime(s[i+1:])
}

func isDate(s string) bool {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	return day <= daysIn(month, year)
}

func daysIn(month, year int) int {
	switch month {
	case 2:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// isTime accepts an RFC 3339 full-time. A leap second is only valid at
// 23:59:60 UTC.
func isTime(s string) bool {
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second, _ := strconv.Atoi(m[3])
	if hour > 23 || minute > 59 || second > 60 {
		return false
	}
	offH, offM := 0, 0
	if m[6] != "" {
		offH, _ = strconv.Atoi(m[7])
		offM, _ = strconv.Atoi(m[8])
		if offH > 23 || offM > 59 {
			return false
		}
		if m[6] == "-" {
			offH, offM = -offH, -offM
		}
	}
	if second == 60 {
		utc := ((hour*60+minute-offH*60-offM)%(24*60) + 24*60) % (24 * 60)
		return utc == 23*60+59
	}
	return true
}

func isDuration(s string) bool {
	m := durationRe.FindStringSubmatch(s)
	if m == nil || s == "P" {
		return false
	}
	if strings.HasSuffix(s, "T") {
		return false
	}
	return true
}

func isEmail(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return isIDNEmail(s)
}

func isIDNEmail(s string) bool {
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	local, domain := s[:at], s[at+1:]
	if strings.HasPrefix(domain, "[") && strings.HasSuffix(domain, "]") {
		lit := domain[1 : len(domain)-1]
		if v6, ok := strings.CutPrefix(lit, "IPv6:"); ok {
			if !isIPv6(v6) {
				return false
			}
		} else if !isIPv4(lit) {
			return false
		}
		// the literal is checked; net/mail only judges the local part
		domain = "example.com"
	}
	addr, err := mail.ParseAddress(local + "@" + domain)
	return err == nil && addr.Name == ""
}

func isHostname(s string) bool {
	s = strings.TrimSuffix(s, ".")
	if s == "" || len(s) > 253 {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-') {
				return false
			}
		}
		// "xn--" labels must decode as punycode
		if strings.HasPrefix(strings.ToLower(label), "xn--") {
			if _, err := idna.Punycode.ToUnicode(label); err != nil {
				return false
			}
		}
	}
	return true
}

func isIDNHostname(s string) bool {
	ascii, err := idna.Lookup.ToASCII(s)
	if err != nil {
		return false
	}
	return isHostname(ascii)
}

func isIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4()
}

func isIPv6(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is6() && addr.Zone() == ""
}

func hasIllegalURIChars(s string, allowNonASCII bool) bool {
	for _, r := range s {
		switch {
		case r <= ' ' || r == 0x7f:
			return true
		case r == '\\' || r == '"' || r == '<' || r == '>' || r == '^' || r == '`' || r == '{' || r == '|' || r == '}':
			return true
		case r >= utf8.RuneSelf && !allowNonASCII:
			return true
		}
	}
	return false
}

func parseReference(s string, allowNonASCII bool) (*url.URL, bool) {
	if hasIllegalURIChars(s, allowNonASCII) {
		return nil, false
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, false
	}
	return u, true
}

func isURI(s string) bool {
	u, ok := parseReference(s, false)
	return ok && u.IsAbs()
}

func isURIReference(s string) bool {
	_, ok := parseReference(s, false)
	return ok
}

func isIRI(s string) bool {
	u, ok := parseReference(s, true)
	return ok && u.IsAbs()
}

func isIRIReference(s string) bool {
	_, ok := parseReference(s, true)
	return ok
}

func isURITemplate(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '{':
			if depth > 0 {
				return false
			}
			depth++
		case '}':
			if depth == 0 {
				return false
			}
			depth--
		}
	}
	return depth == 0
}

func isJSONPointer(s string) bool {
	if s == "" {
		return true
	}
	if s[0] != '/' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '~' && (i+1 >= len(s) || (s[i+1] != '0' && s[i+1] != '1')) {
			return false
		}
	}
	return true
}

func isRelativeJSONPointer(s string) bool {
	return relPtrRe.MatchString(s)
}

func isRegex(s string) bool {
	_, err := compileRegex(s)
	return err == nil
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
