package jsonschema

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
)

// check is one compiled keyword. The set of implementations is closed: the
// unexported methods keep other packages from adding to it.
type check interface {
	keyword() string
	eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, ann *annotations) bool
}

// nodeCtx carries what keyword builders need to know about the schema being
// compiled.
type nodeCtx struct {
	h       int
	d       *document
	v       jsonvalue.Value
	path    Path
	res     int
	dialect Dialect
}

func (nc *nodeCtx) member(kw string) (jsonvalue.Value, bool) {
	if _, known := vocabularies[nc.dialect][kw]; !known {
		return jsonvalue.Value{}, false
	}
	return nc.v.Get(kw)
}

// child returns the node compiled at path+segs
func (cc *compileCtx) child(nc *nodeCtx, segs ...PathSegment) int {
	p := nc.path
	for _, s := range segs {
		p = p.with(s)
	}
	h, ok := cc.locs[locKey(nc.d, p)]
	if !ok {
		return -1
	}
	return h
}

func (cc *compileCtx) children(nc *nodeCtx, kw string, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = cc.child(nc, KeySegment(kw), IndexSegment(i))
	}
	return out
}

func (cc *compileCtx) buildChecks(nc *nodeCtx) ([]check, error) {
	var checks []check
	add := func(c check) { checks = append(checks, c) }
	d := nc.dialect

	if v, ok := nc.member("type"); ok {
		var types []string
		if s, isStr := v.Str(); isStr {
			types = []string{s}
		} else {
			for _, t := range v.Items() {
				s, _ := t.Str()
				types = append(types, s)
			}
		}
		add(&typeCheck{types: types})
	}
	if v, ok := nc.member("enum"); ok {
		add(&enumCheck{values: v.Items(), doc: v})
	}
	if v, ok := nc.member("const"); ok {
		add(&constCheck{value: v})
	}
	if v, ok := nc.member("multipleOf"); ok {
		add(&multipleOfCheck{divisor: v})
	}

	for _, kw := range []string{"maximum", "minimum"} {
		v, ok := nc.member(kw)
		if !ok {
			continue
		}
		exclusive := false
		if d == Draft4 {
			flag := "exclusiveMaximum"
			if kw == "minimum" {
				flag = "exclusiveMinimum"
			}
			exclusive, _ = boolMember(nc.v, flag)
		}
		add(&boundCheck{kw: kw, limit: v, max: kw == "maximum", exclusive: exclusive})
	}
	if d >= Draft6 {
		if v, ok := nc.member("exclusiveMaximum"); ok {
			add(&boundCheck{kw: "exclusiveMaximum", limit: v, max: true, exclusive: true})
		}
		if v, ok := nc.member("exclusiveMinimum"); ok {
			add(&boundCheck{kw: "exclusiveMinimum", limit: v, exclusive: true})
		}
	}

	for _, kw := range []string{"maxLength", "minLength"} {
		if v, ok := nc.member(kw); ok {
			add(&lengthCheck{kw: kw, limit: toLimit(v), max: kw == "maxLength"})
		}
	}
	if v, ok := nc.member("pattern"); ok {
		src, _ := v.Str()
		re, err := compileRegex(src)
		if err != nil {
			return nil, &CompileError{Path: nc.path.Key("pattern"), Keyword: "pattern", Message: fmt.Sprintf("%s is not a \"regex\"", v)}
		}
		add(&patternCheck{src: src, re: re})
	}
	if v, ok := nc.member("format"); ok && cc.c.cfg.AssertFormat {
		name, _ := v.Str()
		if fn := cc.c.lookupFormat(name); fn != nil {
			add(&formatCheck{name: name, fn: fn})
		}
	}

	cc.buildArrayChecks(nc, add)
	if err := cc.buildObjectChecks(nc, add); err != nil {
		return nil, err
	}

	for _, kw := range []string{"allOf", "anyOf", "oneOf"} {
		v, ok := nc.member(kw)
		if !ok {
			continue
		}
		schemas := cc.children(nc, kw, v.Len())
		switch kw {
		case "allOf":
			add(&allOfCheck{schemas: schemas})
		case "anyOf":
			add(&anyOfCheck{schemas: schemas})
		case "oneOf":
			add(&oneOfCheck{schemas: schemas})
		}
	}
	if v, ok := nc.member("not"); ok {
		add(&notCheck{schema: cc.child(nc, KeySegment("not")), doc: v})
	}
	if _, ok := nc.member("if"); ok {
		cond := &conditionalCheck{
			ifSchema:   cc.child(nc, KeySegment("if")),
			thenSchema: -1,
			elseSchema: -1,
		}
		if _, ok := nc.member("then"); ok {
			cond.thenSchema = cc.child(nc, KeySegment("then"))
		}
		if _, ok := nc.member("else"); ok {
			cond.elseSchema = cc.child(nc, KeySegment("else"))
		}
		add(cond)
	}

	if v, ok := nc.member("$ref"); ok {
		ref, _ := v.Str()
		chk := &refCheck{target: -1}
		if err := cc.queueRef(nc, "$ref", ref, func(t int) { chk.target = t }); err != nil {
			return nil, err
		}
		add(chk)
	}
	if v, ok := nc.member("$dynamicRef"); ok {
		ref, _ := v.Str()
		chk := &dynamicRefCheck{kw: "$dynamicRef", target: -1}
		if _, frag := splitFragment(ref); frag != "" && !strings.HasPrefix(frag, "/") {
			chk.anchor = frag
		}
		if err := cc.queueRef(nc, "$dynamicRef", ref, func(t int) { chk.target = t }); err != nil {
			return nil, err
		}
		add(chk)
	}
	if v, ok := nc.member("$recursiveRef"); ok {
		ref, _ := v.Str()
		chk := &dynamicRefCheck{kw: "$recursiveRef", target: -1, recursive: true}
		if err := cc.queueRef(nc, "$recursiveRef", ref, func(t int) { chk.target = t }); err != nil {
			return nil, err
		}
		add(chk)
	}

	if _, ok := nc.member("unevaluatedProperties"); ok {
		add(&unevaluatedPropertiesCheck{schema: cc.child(nc, KeySegment("unevaluatedProperties"))})
		cc.track = true
	}
	if _, ok := nc.member("unevaluatedItems"); ok {
		add(&unevaluatedItemsCheck{schema: cc.child(nc, KeySegment("unevaluatedItems"))})
		cc.track = true
	}
	return checks, nil
}

func (cc *compileCtx) buildArrayChecks(nc *nodeCtx, add func(check)) {
	d := nc.dialect

	if d >= Draft2020 {
		prefix := 0
		if v, ok := nc.member("prefixItems"); ok {
			prefix = v.Len()
			add(&itemsCheck{kw: "prefixItems", prefix: cc.children(nc, "prefixItems", prefix), rest: -1})
		}
		if _, ok := nc.member("items"); ok {
			add(&itemsCheck{kw: "items", rest: cc.child(nc, KeySegment("items")), restStart: prefix})
		}
	} else if v, ok := nc.member("items"); ok {
		if v.Kind() == jsonvalue.Array {
			add(&itemsCheck{kw: "items", prefix: cc.children(nc, "items", v.Len()), rest: -1})
			if _, ok := nc.member("additionalItems"); ok {
				add(&itemsCheck{kw: "additionalItems", rest: cc.child(nc, KeySegment("additionalItems")), restStart: v.Len()})
			}
		} else {
			add(&itemsCheck{kw: "items", rest: cc.child(nc, KeySegment("items"))})
		}
	}

	if _, ok := nc.member("contains"); ok {
		c := &containsCheck{schema: cc.child(nc, KeySegment("contains")), min: 1, max: -1, annotate: d >= Draft2020}
		if d >= Draft2019 {
			if v, ok := nc.member("minContains"); ok {
				c.min = toLimit(v)
				c.explicitMin = true
			}
			if v, ok := nc.member("maxContains"); ok {
				c.max = toLimit(v)
			}
		}
		add(c)
	}

	for _, kw := range []string{"maxItems", "minItems", "maxProperties", "minProperties"} {
		if v, ok := nc.member(kw); ok {
			add(&sizeCheck{kw: kw, limit: toLimit(v), max: strings.HasPrefix(kw, "max"), objects: strings.HasSuffix(kw, "Properties")})
		}
	}
	if v, ok := nc.member("uniqueItems"); ok {
		if b, _ := v.Bool(); b {
			add(&uniqueItemsCheck{})
		}
	}
}

func (cc *compileCtx) buildObjectChecks(nc *nodeCtx, add func(check)) error {
	declared := make(map[string]struct{})
	if v, ok := nc.member("properties"); ok {
		names := v.SortedKeys()
		schemas := make([]int, len(names))
		for i, name := range names {
			declared[name] = struct{}{}
			schemas[i] = cc.child(nc, KeySegment("properties"), KeySegment(name))
		}
		add(&propertiesCheck{names: names, schemas: schemas})
	}

	var patterns []patternSchema
	if v, ok := nc.member("patternProperties"); ok {
		for _, src := range v.SortedKeys() {
			re, err := compileRegex(src)
			if err != nil {
				return &CompileError{Path: nc.path.Key("patternProperties"), Keyword: "patternProperties", Message: fmt.Sprintf("%s is not a \"regex\"", jsonvalue.Quote(src))}
			}
			patterns = append(patterns, patternSchema{re: re, schema: cc.child(nc, KeySegment("patternProperties"), KeySegment(src))})
		}
		add(&patternPropertiesCheck{patterns: patterns})
	}
	if _, ok := nc.member("additionalProperties"); ok {
		add(&additionalPropertiesCheck{declared: declared, patterns: patterns, schema: cc.child(nc, KeySegment("additionalProperties"))})
	}

	if v, ok := nc.member("required"); ok && v.Len() > 0 {
		names := make([]string, 0, v.Len())
		for _, item := range v.Items() {
			s, _ := item.Str()
			names = append(names, s)
		}
		add(&requiredCheck{names: names})
	}

	for _, kw := range []string{"dependencies", "dependentRequired", "dependentSchemas"} {
		v, ok := nc.member(kw)
		if !ok {
			continue
		}
		c := &dependenciesCheck{kw: kw}
		for _, prop := range v.SortedKeys() {
			dep, _ := v.Get(prop)
			entry := dependency{prop: prop, schema: -1}
			if dep.Kind() == jsonvalue.Array {
				for _, item := range dep.Items() {
					s, _ := item.Str()
					entry.required = append(entry.required, s)
				}
			} else {
				entry.schema = cc.child(nc, KeySegment(kw), KeySegment(prop))
			}
			c.deps = append(c.deps, entry)
		}
		add(c)
	}

	if _, ok := nc.member("propertyNames"); ok {
		add(&propertyNamesCheck{schema: cc.child(nc, KeySegment("propertyNames"))})
	}
	return nil
}

// toLimit converts a non-negative integer keyword value to int, saturating
func toLimit(v jsonvalue.Value) int {
	f, _ := v.Float()
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	if f < 0 {
		return 0
	}
	return int(f)
}

// regexMatchTimeout bounds a single pattern match
const regexMatchTimeout = 2 * time.Second

// ecmaRegex is a pattern compiled with ECMA-262 semantics, including
// lookaround and backreferences. It is safe for concurrent use.
type ecmaRegex struct {
	re *regexp2.Regexp
}

func compileRegex(src string) (*ecmaRegex, error) {
	re, err := regexp2.Compile(src, regexp2.ECMAScript)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = regexMatchTimeout
	return &ecmaRegex{re: re}, nil
}

// MatchString reports whether s contains a match. A timed out match counts
// as no match.
func (r *ecmaRegex) MatchString(s string) bool {
	ok, err := r.re.MatchString(s)
	return err == nil && ok
}

func isFalseSchema(e *evaluator, h int) bool {
	n := &e.v.nodes[h]
	return n.isBool && !n.boolVal
}

type typeCheck struct {
	types []string
}

func (c *typeCheck) keyword() string { return "type" }

func (c *typeCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	for _, t := range c.types {
		if matchesType(inst, t) {
			return true
		}
	}
	e.fail("type", n.path.Key("type"), inst, func() string { return typeMessage(inst, c.types...) })
	return false
}

func matchesType(v jsonvalue.Value, t string) bool {
	if t == "integer" {
		return v.IsInteger()
	}
	return v.Kind().String() == t
}

type enumCheck struct {
	values []jsonvalue.Value
	doc    jsonvalue.Value
}

func (c *enumCheck) keyword() string { return "enum" }

func (c *enumCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	for _, v := range c.values {
		if jsonvalue.Equal(v, inst) {
			return true
		}
	}
	e.fail("enum", n.path.Key("enum"), inst, func() string {
		return fmt.Sprintf("%s is not one of %s", inst, c.doc)
	})
	return false
}

type constCheck struct {
	value jsonvalue.Value
}

func (c *constCheck) keyword() string { return "const" }

func (c *constCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	if jsonvalue.Equal(c.value, inst) {
		return true
	}
	e.fail("const", n.path.Key("const"), inst, func() string {
		return fmt.Sprintf("%s was expected", c.value)
	})
	return false
}

type multipleOfCheck struct {
	divisor jsonvalue.Value
}

func (c *multipleOfCheck) keyword() string { return "multipleOf" }

func (c *multipleOfCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	if inst.Kind() != jsonvalue.Number || isMultiple(inst, c.divisor) {
		return true
	}
	e.fail("multipleOf", n.path.Key("multipleOf"), inst, func() string {
		return fmt.Sprintf("%s is not a multiple of %s", inst, c.divisor)
	})
	return false
}

// maxExactExponent bounds the decimal exponent for which exact rational
// arithmetic is used; beyond it the float64 approximation decides.
const maxExactExponent = 1000

func isMultiple(v, divisor jsonvalue.Value) bool {
	if !hugeExponent(v.Literal()) && !hugeExponent(divisor.Literal()) {
		rv, rd := v.Rat(), divisor.Rat()
		if rv != nil && rd != nil && rd.Sign() != 0 {
			return new(big.Rat).Quo(rv, rd).IsInt()
		}
	}
	fv, _ := v.Float()
	fd, _ := divisor.Float()
	q := fv / fd
	if math.IsInf(q, 0) || math.IsNaN(q) {
		return false
	}
	return q == math.Trunc(q)
}

func hugeExponent(lit string) bool {
	i := strings.IndexAny(lit, "eE")
	if i < 0 {
		return false
	}
	exp := strings.TrimLeft(lit[i+1:], "+-")
	exp = strings.TrimLeft(exp, "0")
	return len(exp) > 4 || (len(exp) == 4 && exp > fmt.Sprint(maxExactExponent))
}

type boundCheck struct {
	kw        string
	limit     jsonvalue.Value
	max       bool
	exclusive bool
}

func (c *boundCheck) keyword() string { return c.kw }

func (c *boundCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	if inst.Kind() != jsonvalue.Number {
		return true
	}
	cmp := jsonvalue.CompareNumbers(inst, c.limit)
	var ok bool
	var msg string
	switch {
	case c.max && c.exclusive:
		ok, msg = cmp < 0, "%s is greater than or equal to the maximum of %s"
	case c.max:
		ok, msg = cmp <= 0, "%s is greater than the maximum of %s"
	case c.exclusive:
		ok, msg = cmp > 0, "%s is less than or equal to the minimum of %s"
	default:
		ok, msg = cmp >= 0, "%s is less than the minimum of %s"
	}
	if ok {
		return true
	}
	e.fail(c.kw, n.path.Key(c.kw), inst, func() string { return fmt.Sprintf(msg, inst, c.limit) })
	return false
}

type lengthCheck struct {
	kw    string
	limit int
	max   bool
}

func (c *lengthCheck) keyword() string { return c.kw }

func (c *lengthCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	s, ok := inst.Str()
	if !ok {
		return true
	}
	count := utf8.RuneCountInString(s)
	if c.max && count > c.limit {
		e.fail(c.kw, n.path.Key(c.kw), inst, func() string {
			return fmt.Sprintf("%s is longer than %d %s", inst, c.limit, plural(c.limit, "character", "characters"))
		})
		return false
	}
	if !c.max && count < c.limit {
		e.fail(c.kw, n.path.Key(c.kw), inst, func() string {
			return fmt.Sprintf("%s is shorter than %d %s", inst, c.limit, plural(c.limit, "character", "characters"))
		})
		return false
	}
	return true
}

type patternCheck struct {
	src string
	re  *ecmaRegex
}

func (c *patternCheck) keyword() string { return "pattern" }

func (c *patternCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	s, ok := inst.Str()
	if !ok || c.re.MatchString(s) {
		return true
	}
	e.fail("pattern", n.path.Key("pattern"), inst, func() string {
		return fmt.Sprintf("%s does not match %s", inst, jsonvalue.Quote(c.src))
	})
	return false
}

type formatCheck struct {
	name string
	fn   FormatFunc
}

func (c *formatCheck) keyword() string { return "format" }

func (c *formatCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	s, ok := inst.Str()
	if !ok || c.fn(s) {
		return true
	}
	e.fail("format", n.path.Key("format"), inst, func() string {
		return fmt.Sprintf("%s is not a %s", inst, jsonvalue.Quote(c.name))
	})
	return false
}

// itemsCheck covers tuple validation (prefix) and validation of the items
// from restStart on (rest). It implements items, prefixItems and
// additionalItems.
type itemsCheck struct {
	kw        string
	prefix    []int
	rest      int
	restStart int
}

func (c *itemsCheck) keyword() string { return c.kw }

func (c *itemsCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	if inst.Kind() != jsonvalue.Array {
		return true
	}
	items := inst.Items()
	valid := true
	for i := 0; i < len(c.prefix) && i < len(items); i++ {
		if !e.evalIndex(c.prefix[i], i, items[i]) {
			valid = false
			if e.fast {
				return false
			}
		}
	}
	if len(c.prefix) > 0 {
		ann.markItems(min(len(c.prefix), len(items)))
	}
	if c.rest < 0 {
		return valid
	}
	ann.markAllItems()
	if len(items) <= c.restStart {
		return valid
	}
	if isFalseSchema(e, c.rest) {
		extra := items[c.restStart:]
		e.fail(c.kw, n.path.Key(c.kw), inst, func() string {
			return fmt.Sprintf("Additional items are not allowed (%s %s unexpected)", renderValues(extra), plural(len(extra), "was", "were"))
		})
		return false
	}
	for i := c.restStart; i < len(items); i++ {
		if !e.evalIndex(c.rest, i, items[i]) {
			valid = false
			if e.fast {
				return false
			}
		}
	}
	return valid
}

type containsCheck struct {
	schema      int
	min         int
	max         int
	explicitMin bool
	annotate    bool
}

func (c *containsCheck) keyword() string { return "contains" }

func (c *containsCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	if inst.Kind() != jsonvalue.Array {
		return true
	}
	count := 0
	for i, item := range inst.Items() {
		if e.probeIndex(c.schema, i, item) {
			count++
			if c.annotate {
				ann.addItem(i)
			} else if c.max < 0 && count >= c.min {
				break
			}
		}
	}
	if count < c.min {
		if !c.explicitMin {
			e.fail("contains", n.path.Key("contains"), inst, func() string {
				return fmt.Sprintf("None of %s are valid under the given schema", inst)
			})
		} else {
			e.fail("minContains", n.path.Key("minContains"), inst, func() string {
				return fmt.Sprintf("%s has less than %d matching %s", inst, c.min, plural(c.min, "item", "items"))
			})
		}
		return false
	}
	if c.max >= 0 && count > c.max {
		e.fail("maxContains", n.path.Key("maxContains"), inst, func() string {
			return fmt.Sprintf("%s has more than %d matching %s", inst, c.max, plural(c.max, "item", "items"))
		})
		return false
	}
	return true
}

type sizeCheck struct {
	kw      string
	limit   int
	max     bool
	objects bool
}

func (c *sizeCheck) keyword() string { return c.kw }

func (c *sizeCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	want := jsonvalue.Array
	one, many := "item", "items"
	if c.objects {
		want = jsonvalue.Object
		one, many = "property", "properties"
	}
	if inst.Kind() != want {
		return true
	}
	size := inst.Len()
	if c.max && size > c.limit {
		e.fail(c.kw, n.path.Key(c.kw), inst, func() string {
			return fmt.Sprintf("%s has more than %d %s", inst, c.limit, plural(c.limit, one, many))
		})
		return false
	}
	if !c.max && size < c.limit {
		e.fail(c.kw, n.path.Key(c.kw), inst, func() string {
			return fmt.Sprintf("%s has less than %d %s", inst, c.limit, plural(c.limit, one, many))
		})
		return false
	}
	return true
}

type uniqueItemsCheck struct{}

func (c *uniqueItemsCheck) keyword() string { return "uniqueItems" }

func (c *uniqueItemsCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	if inst.Kind() != jsonvalue.Array || allUnique(inst.Items()) {
		return true
	}
	e.fail("uniqueItems", n.path.Key("uniqueItems"), inst, func() string {
		return fmt.Sprintf("%s has non-unique elements", inst)
	})
	return false
}

type propertiesCheck struct {
	names   []string
	schemas []int
}

func (c *propertiesCheck) keyword() string { return "properties" }

func (c *propertiesCheck) eval(e *evaluator, _ *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	if inst.Kind() != jsonvalue.Object {
		return true
	}
	valid := true
	for i, name := range c.names {
		val, ok := inst.Get(name)
		if !ok {
			continue
		}
		ann.addProp(name)
		if !e.evalKey(c.schemas[i], name, val) {
			valid = false
			if e.fast {
				return false
			}
		}
	}
	return valid
}

type patternSchema struct {
	re     *ecmaRegex
	schema int
}

type patternPropertiesCheck struct {
	patterns []patternSchema
}

func (c *patternPropertiesCheck) keyword() string { return "patternProperties" }

func (c *patternPropertiesCheck) eval(e *evaluator, _ *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	if inst.Kind() != jsonvalue.Object {
		return true
	}
	valid := true
	for _, name := range inst.SortedKeys() {
		val, _ := inst.Get(name)
		for _, p := range c.patterns {
			if !p.re.MatchString(name) {
				continue
			}
			ann.addProp(name)
			if !e.evalKey(p.schema, name, val) {
				valid = false
				if e.fast {
					return false
				}
			}
		}
	}
	return valid
}

type additionalPropertiesCheck struct {
	declared map[string]struct{}
	patterns []patternSchema
	schema   int
}

func (c *additionalPropertiesCheck) keyword() string { return "additionalProperties" }

func (c *additionalPropertiesCheck) additional(name string) bool {
	if _, ok := c.declared[name]; ok {
		return false
	}
	for _, p := range c.patterns {
		if p.re.MatchString(name) {
			return false
		}
	}
	return true
}

func (c *additionalPropertiesCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	if inst.Kind() != jsonvalue.Object {
		return true
	}
	var extra []string
	for _, name := range inst.SortedKeys() {
		if c.additional(name) {
			extra = append(extra, name)
		}
	}
	if len(extra) == 0 {
		return true
	}
	if isFalseSchema(e, c.schema) {
		e.fail("additionalProperties", n.path.Key("additionalProperties"), inst, func() string {
			return fmt.Sprintf("Additional properties are not allowed (%s %s unexpected)", quotedNames(extra), plural(len(extra), "was", "were"))
		})
		return false
	}
	valid := true
	for _, name := range extra {
		val, _ := inst.Get(name)
		ann.addProp(name)
		if !e.evalKey(c.schema, name, val) {
			valid = false
			if e.fast {
				return false
			}
		}
	}
	return valid
}

type requiredCheck struct {
	names []string
}

func (c *requiredCheck) keyword() string { return "required" }

func (c *requiredCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	if inst.Kind() != jsonvalue.Object {
		return true
	}
	valid := true
	for _, name := range c.names {
		if inst.Has(name) {
			continue
		}
		valid = false
		if e.fast {
			return false
		}
		e.fail("required", n.path.Key("required"), inst, func() string {
			return fmt.Sprintf("%s is a required property", jsonvalue.Quote(name))
		})
	}
	return valid
}

type dependency struct {
	prop     string
	required []string
	schema   int
}

// dependenciesCheck implements dependentRequired, dependentSchemas and the
// older combined dependencies keyword.
type dependenciesCheck struct {
	kw   string
	deps []dependency
}

func (c *dependenciesCheck) keyword() string { return c.kw }

func (c *dependenciesCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	if inst.Kind() != jsonvalue.Object {
		return true
	}
	valid := true
	for _, dep := range c.deps {
		if !inst.Has(dep.prop) {
			continue
		}
		if dep.schema >= 0 {
			if !e.evalNode(dep.schema, inst, ann) {
				valid = false
				if e.fast {
					return false
				}
			}
			continue
		}
		for _, name := range dep.required {
			if inst.Has(name) {
				continue
			}
			valid = false
			if e.fast {
				return false
			}
			e.fail(c.kw, n.path.Key(c.kw).Key(dep.prop), inst, func() string {
				return fmt.Sprintf("%s is a required property", jsonvalue.Quote(name))
			})
		}
	}
	return valid
}

type propertyNamesCheck struct {
	schema int
}

func (c *propertyNamesCheck) keyword() string { return "propertyNames" }

func (c *propertyNamesCheck) eval(e *evaluator, _ *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	if inst.Kind() != jsonvalue.Object {
		return true
	}
	valid := true
	for _, name := range inst.SortedKeys() {
		if !e.evalNode(c.schema, jsonvalue.StringValue(name), nil) {
			valid = false
			if e.fast {
				return false
			}
		}
	}
	return valid
}

type allOfCheck struct {
	schemas []int
}

func (c *allOfCheck) keyword() string { return "allOf" }

func (c *allOfCheck) eval(e *evaluator, _ *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	valid := true
	for _, s := range c.schemas {
		if !e.evalNode(s, inst, ann) {
			valid = false
			if e.fast {
				return false
			}
		}
	}
	return valid
}

type anyOfCheck struct {
	schemas []int
}

func (c *anyOfCheck) keyword() string { return "anyOf" }

func (c *anyOfCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	matched := false
	for _, s := range c.schemas {
		if e.probe(s, inst, ann) {
			matched = true
			// Keep going only to collect annotations from every valid branch.
			if ann == nil {
				break
			}
		}
	}
	if matched {
		return true
	}
	e.fail("anyOf", n.path.Key("anyOf"), inst, func() string {
		return fmt.Sprintf("%s is not valid under any of the given schemas", inst)
	})
	return false
}

type oneOfCheck struct {
	schemas []int
}

func (c *oneOfCheck) keyword() string { return "oneOf" }

func (c *oneOfCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	count := 0
	var matched *annotations
	for _, s := range c.schemas {
		branch := e.newAnnotations()
		if e.probe(s, inst, branch) {
			count++
			matched = branch
			if count > 1 {
				break
			}
		}
	}
	switch count {
	case 1:
		ann.merge(matched)
		return true
	case 0:
		e.fail("oneOf", n.path.Key("oneOf"), inst, func() string {
			return fmt.Sprintf("%s is not valid under any of the given schemas", inst)
		})
	default:
		e.fail("oneOf", n.path.Key("oneOf"), inst, func() string {
			return fmt.Sprintf("%s is valid under more than one of the given schemas", inst)
		})
	}
	return false
}

type notCheck struct {
	schema int
	doc    jsonvalue.Value
}

func (c *notCheck) keyword() string { return "not" }

func (c *notCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, _ *annotations) bool {
	if !e.probe(c.schema, inst, nil) {
		return true
	}
	e.fail("not", n.path.Key("not"), inst, func() string {
		return fmt.Sprintf("%s is not allowed for %s", c.doc, inst)
	})
	return false
}

type conditionalCheck struct {
	ifSchema   int
	thenSchema int
	elseSchema int
}

func (c *conditionalCheck) keyword() string { return "if" }

func (c *conditionalCheck) eval(e *evaluator, _ *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	if e.probe(c.ifSchema, inst, ann) {
		if c.thenSchema < 0 {
			return true
		}
		return e.evalNode(c.thenSchema, inst, ann)
	}
	if c.elseSchema < 0 {
		return true
	}
	return e.evalNode(c.elseSchema, inst, ann)
}

type refCheck struct {
	target int
}

func (c *refCheck) keyword() string { return "$ref" }

func (c *refCheck) eval(e *evaluator, _ *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	return e.evalNode(c.target, inst, ann)
}

// dynamicRefCheck implements $dynamicRef and $recursiveRef. The statically
// resolved target is replaced by the outermost matching schema in the
// dynamic scope when the target opts in.
type dynamicRefCheck struct {
	kw        string
	target    int
	anchor    string
	recursive bool
}

func (c *dynamicRefCheck) keyword() string { return c.kw }

func (c *dynamicRefCheck) eval(e *evaluator, _ *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	return e.evalNode(c.resolve(e), inst, ann)
}

func (c *dynamicRefCheck) resolve(e *evaluator) int {
	target := &e.v.nodes[c.target]
	if c.recursive {
		r := &e.v.resources[target.resource]
		if !r.recursiveAnchor || r.root != c.target {
			return c.target
		}
		for _, ri := range e.scope {
			if outer := &e.v.resources[ri]; outer.recursiveAnchor {
				return outer.root
			}
		}
		return c.target
	}
	if c.anchor == "" || target.dynamicAnchor != c.anchor {
		return c.target
	}
	for _, ri := range e.scope {
		if h, ok := e.v.resources[ri].dynamicAnchors[c.anchor]; ok {
			return h
		}
	}
	return c.target
}

type unevaluatedPropertiesCheck struct {
	schema int
}

func (c *unevaluatedPropertiesCheck) keyword() string { return "unevaluatedProperties" }

func (c *unevaluatedPropertiesCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	if inst.Kind() != jsonvalue.Object {
		return true
	}
	var extra []string
	for _, name := range inst.SortedKeys() {
		if !ann.evaluatedProp(name) {
			extra = append(extra, name)
		}
	}
	if len(extra) == 0 {
		return true
	}
	if isFalseSchema(e, c.schema) {
		e.fail("unevaluatedProperties", n.path.Key("unevaluatedProperties"), inst, func() string {
			return fmt.Sprintf("Unevaluated properties are not allowed (%s %s unexpected)", quotedNames(extra), plural(len(extra), "was", "were"))
		})
		return false
	}
	valid := true
	for _, name := range extra {
		val, _ := inst.Get(name)
		if !e.evalKey(c.schema, name, val) {
			valid = false
			if e.fast {
				return false
			}
			continue
		}
		ann.addProp(name)
	}
	return valid
}

type unevaluatedItemsCheck struct {
	schema int
}

func (c *unevaluatedItemsCheck) keyword() string { return "unevaluatedItems" }

func (c *unevaluatedItemsCheck) eval(e *evaluator, n *schemaNode, inst jsonvalue.Value, ann *annotations) bool {
	if inst.Kind() != jsonvalue.Array {
		return true
	}
	items := inst.Items()
	var idx []int
	for i := range items {
		if !ann.evaluatedItem(i) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return true
	}
	if isFalseSchema(e, c.schema) {
		extra := make([]jsonvalue.Value, len(idx))
		for j, i := range idx {
			extra[j] = items[i]
		}
		e.fail("unevaluatedItems", n.path.Key("unevaluatedItems"), inst, func() string {
			return fmt.Sprintf("Unevaluated items are not allowed (%s %s unexpected)", renderValues(extra), plural(len(extra), "was", "were"))
		})
		return false
	}
	valid := true
	for _, i := range idx {
		if !e.evalIndex(c.schema, i, items[i]) {
			valid = false
			if e.fast {
				return false
			}
			continue
		}
		ann.addItem(i)
	}
	return valid
}
