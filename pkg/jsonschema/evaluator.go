package jsonschema

import (
	"fmt"

	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
)

// schemaNode is the compiled form of one schema or subschema. Nodes live in
// the Validator's arena and refer to each other by index.
type schemaNode struct {
	path          Path
	doc           jsonvalue.Value
	isBool        bool
	boolVal       bool
	checks        []check
	resource      int
	dialect       Dialect
	dynamicAnchor string
}

// Validator is a compiled schema. It is immutable and safe for concurrent
// use; every evaluation owns its own state.
type Validator struct {
	nodes     []schemaNode
	resources []resource
	root      int
	info      DialectInfo
	schema    jsonvalue.Value
	maxDepth  int
	track     bool
}

// Result is the outcome of a diagnostic evaluation
type Result struct {
	Valid  bool
	Errors []*ValidationError
}

// Messages returns the error messages in evaluation order
func (r *Result) Messages() []string {
	return FormatAll(r.Errors)
}

// Dialect returns the dialect the schema was compiled under
func (v *Validator) Dialect() DialectInfo {
	return v.info
}

// Schema returns the schema document the validator was compiled from
func (v *Validator) Schema() jsonvalue.Value {
	return v.schema
}

// IsValid reports whether inst satisfies the schema, stopping at the first
// failure.
func (v *Validator) IsValid(inst jsonvalue.Value) bool {
	e := v.newEvaluator(true)
	return e.evalNode(v.root, inst, nil)
}

// Validate returns every violation of the schema by inst, in evaluation
// order. It returns nil when inst is valid.
func (v *Validator) Validate(inst jsonvalue.Value) []*ValidationError {
	e := v.newEvaluator(false)
	if e.evalNode(v.root, inst, nil) {
		return nil
	}
	return e.errs
}

// Evaluate runs a diagnostic evaluation
func (v *Validator) Evaluate(inst jsonvalue.Value) *Result {
	e := v.newEvaluator(false)
	ok := e.evalNode(v.root, inst, nil)
	if ok {
		return &Result{Valid: true}
	}
	return &Result{Valid: false, Errors: e.errs}
}

func (v *Validator) newEvaluator(fast bool) *evaluator {
	return &evaluator{v: v, fast: fast, path: make(Path, 0, 8)}
}

// evaluator holds the state of one evaluation call
type evaluator struct {
	v *Validator
	// fast selects boolean mode: no errors are recorded and checks stop at
	// the first failure
	fast bool
	errs []*ValidationError
	// path is the current instance location
	path Path
	// scope is the dynamic scope, outermost resource first
	scope []int
	depth int
}

func (e *evaluator) fail(kw string, schemaPath Path, inst jsonvalue.Value, msg func() string) {
	if e.fast {
		return
	}
	e.errs = append(e.errs, &ValidationError{
		Keyword:      kw,
		InstancePath: e.path.Clone(),
		SchemaPath:   schemaPath,
		Message:      msg(),
		Instance:     inst,
	})
}

func (e *evaluator) evalNode(h int, inst jsonvalue.Value, ann *annotations) bool {
	n := &e.v.nodes[h]
	if n.isBool {
		if n.boolVal {
			return true
		}
		e.fail("false", n.path, inst, func() string {
			return fmt.Sprintf("False schema does not allow %s", inst)
		})
		return false
	}

	if e.depth >= e.v.maxDepth {
		e.fail("$ref", n.path, inst, func() string {
			return "maximum evaluation depth exceeded"
		})
		return false
	}
	e.depth++
	defer func() { e.depth-- }()

	if len(e.scope) == 0 || e.scope[len(e.scope)-1] != n.resource {
		e.scope = append(e.scope, n.resource)
		defer func() { e.scope = e.scope[:len(e.scope)-1] }()
	}

	local := e.newAnnotations()
	valid := true
	for _, c := range n.checks {
		if !c.eval(e, n, inst, local) {
			valid = false
			if e.fast {
				return false
			}
		}
	}
	if valid {
		ann.merge(local)
	}
	return valid
}

// probe evaluates h in boolean mode, whatever the current mode
func (e *evaluator) probe(h int, inst jsonvalue.Value, ann *annotations) bool {
	saved := e.fast
	e.fast = true
	defer func() { e.fast = saved }()
	return e.evalNode(h, inst, ann)
}

func (e *evaluator) evalKey(h int, key string, val jsonvalue.Value) bool {
	e.path = append(e.path, KeySegment(key))
	defer func() { e.path = e.path[:len(e.path)-1] }()
	return e.evalNode(h, val, nil)
}

func (e *evaluator) evalIndex(h int, i int, val jsonvalue.Value) bool {
	e.path = append(e.path, IndexSegment(i))
	defer func() { e.path = e.path[:len(e.path)-1] }()
	return e.evalNode(h, val, nil)
}

func (e *evaluator) probeIndex(h int, i int, val jsonvalue.Value) bool {
	saved := e.fast
	e.fast = true
	defer func() { e.fast = saved }()
	return e.evalIndex(h, i, val)
}

// annotations records which members of the current instance location were
// evaluated, for unevaluatedProperties and unevaluatedItems. A nil
// *annotations ignores every call.
type annotations struct {
	props    map[string]struct{}
	items    int
	allItems bool
	itemSet  map[int]struct{}
}

func (e *evaluator) newAnnotations() *annotations {
	if !e.v.track {
		return nil
	}
	return &annotations{}
}

func (a *annotations) addProp(name string) {
	if a == nil {
		return
	}
	if a.props == nil {
		a.props = make(map[string]struct{})
	}
	a.props[name] = struct{}{}
}

func (a *annotations) markItems(n int) {
	if a != nil && n > a.items {
		a.items = n
	}
}

func (a *annotations) markAllItems() {
	if a != nil {
		a.allItems = true
	}
}

func (a *annotations) addItem(i int) {
	if a == nil {
		return
	}
	if a.itemSet == nil {
		a.itemSet = make(map[int]struct{})
	}
	a.itemSet[i] = struct{}{}
}

func (a *annotations) evaluatedProp(name string) bool {
	if a == nil {
		return false
	}
	_, ok := a.props[name]
	return ok
}

func (a *annotations) evaluatedItem(i int) bool {
	if a == nil {
		return false
	}
	if a.allItems || i < a.items {
		return true
	}
	_, ok := a.itemSet[i]
	return ok
}

func (a *annotations) merge(o *annotations) {
	if a == nil || o == nil {
		return
	}
	for name := range o.props {
		a.addProp(name)
	}
	a.markItems(o.items)
	if o.allItems {
		a.allItems = true
	}
	for i := range o.itemSet {
		a.addItem(i)
	}
}
