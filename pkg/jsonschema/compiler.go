package jsonschema

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
)

// DefaultBaseURI is the base URI of a schema document that does not declare
// one with $id.
const DefaultBaseURI = "json-schema:///"

// DefaultMaxDepth bounds schema nesting and evaluation recursion
const DefaultMaxDepth = 512

// CompilerConfig configures schema compilation
type CompilerConfig struct {
	// DefaultDialect applies to schemas without $schema
	DefaultDialect Dialect
	// UnknownDialect decides how an unrecognized $schema is handled
	UnknownDialect UnknownDialectPolicy
	// AssertFormat turns the format keyword into an assertion
	AssertFormat bool
	// MaxDepth bounds schema nesting at compile time and recursion at
	// evaluation time
	MaxDepth int
}

// DefaultCompilerConfig returns the default compiler configuration
func DefaultCompilerConfig() *CompilerConfig {
	return &CompilerConfig{
		DefaultDialect: Draft2020,
		UnknownDialect: RejectUnknownDialect,
		AssertFormat:   true,
		MaxDepth:       DefaultMaxDepth,
	}
}

// Compiler turns schema documents into Validators. A Compiler is safe for
// concurrent use.
type Compiler struct {
	cfg CompilerConfig

	mu        sync.RWMutex
	resources map[string]jsonvalue.Value
	formats   map[string]FormatFunc
}

// NewCompiler creates a compiler. A nil config selects the defaults.
func NewCompiler(cfg *CompilerConfig) *Compiler {
	if cfg == nil {
		cfg = DefaultCompilerConfig()
	}
	c := &Compiler{
		cfg:       *cfg,
		resources: make(map[string]jsonvalue.Value),
		formats:   make(map[string]FormatFunc),
	}
	if c.cfg.DefaultDialect == DialectUnknown {
		c.cfg.DefaultDialect = Draft2020
	}
	if c.cfg.MaxDepth <= 0 {
		c.cfg.MaxDepth = DefaultMaxDepth
	}
	return c
}

// Config returns a copy of the compiler configuration
func (c *Compiler) Config() CompilerConfig {
	return c.cfg
}

// AddResource registers an external schema document under an absolute URI so
// that references to it can be resolved. The core never fetches documents.
func (c *Compiler) AddResource(uri string, doc jsonvalue.Value) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid resource uri %q: %w", uri, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("resource uri %q is not absolute", uri)
	}
	u.Fragment = ""
	u.RawFragment = ""

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[u.String()] = doc
	return nil
}

// RegisterFormat installs a format checker, replacing any built-in checker
// of the same name.
func (c *Compiler) RegisterFormat(name string, fn FormatFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formats[name] = fn
}

func (c *Compiler) lookupResource(uri string) (jsonvalue.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.resources[uri]
	return doc, ok
}

func (c *Compiler) lookupFormat(name string) FormatFunc {
	c.mu.RLock()
	fn, ok := c.formats[name]
	c.mu.RUnlock()
	if ok {
		return fn
	}
	return builtinFormats[name]
}

// ValidateSchema checks that doc is a well-formed schema of its dialect
func (c *Compiler) ValidateSchema(doc jsonvalue.Value) (DialectInfo, error) {
	m := &metaValidator{cfg: &c.cfg}
	info, ok := m.rootDialect(doc, c.cfg.DefaultDialect)
	if ok {
		m.schema(doc, Path{}, info.Dialect, 0)
	}
	return info, m.result()
}

// Compile meta-validates doc and compiles it into a Validator
func (c *Compiler) Compile(doc jsonvalue.Value) (*Validator, error) {
	info, err := c.ValidateSchema(doc)
	if err != nil {
		return nil, err
	}

	cc := &compileCtx{
		c:       c,
		locs:    make(map[string]int),
		anchors: make(map[string]int),
		byURI:   make(map[string]int),
	}
	root, err := cc.compileDocument(&document{uri: DefaultBaseURI, root: doc}, info.Dialect)
	if err != nil {
		return nil, err
	}
	if err := cc.link(); err != nil {
		return nil, err
	}

	return &Validator{
		nodes:     cc.nodes,
		resources: cc.resources,
		root:      root,
		info:      info,
		schema:    doc,
		maxDepth:  c.cfg.MaxDepth,
		track:     cc.track,
	}, nil
}

func (m *metaValidator) rootDialect(doc jsonvalue.Value, def Dialect) (DialectInfo, bool) {
	if doc.Kind() != jsonvalue.Object {
		return DialectInfo{Dialect: def, SchemaURI: def.URI()}, true
	}
	return m.detectDialect(doc, def)
}

type document struct {
	uri  string
	root jsonvalue.Value
}

// resource is a schema identified by an absolute URI: a document root or a
// subschema carrying $id.
type resource struct {
	uri             string
	root            int
	doc             *document
	docPath         Path
	dialect         Dialect
	dynamicAnchors  map[string]int
	recursiveAnchor bool
}

type pendingRef struct {
	uri     string
	path    Path
	keyword string
	set     func(target int)
}

type compileCtx struct {
	c         *Compiler
	nodes     []schemaNode
	resources []resource
	// locs maps "<document uri>#<pointer>" to the node compiled there
	locs map[string]int
	// anchors maps "<resource uri>#<name>" to the anchored node
	anchors map[string]int
	byURI   map[string]int
	pending []pendingRef
	track   bool
}

func (cc *compileCtx) compileDocument(d *document, dialect Dialect) (int, error) {
	ri, err := cc.addResource(d.uri, d, Path{}, dialect)
	if err != nil {
		return -1, err
	}
	cc.resources[ri].root = len(cc.nodes)
	return cc.compileSchema(d, d.root, Path{}, ri, dialect)
}

func (cc *compileCtx) addResource(uri string, d *document, at Path, dialect Dialect) (int, error) {
	if ri, ok := cc.byURI[uri]; ok {
		r := cc.resources[ri]
		if r.doc == d && r.docPath.String() == at.String() {
			return ri, nil
		}
		return -1, &CompileError{Path: at.Clone(), Keyword: idKeyword(dialect), Message: fmt.Sprintf("duplicate schema resource %q", uri)}
	}
	ri := len(cc.resources)
	cc.resources = append(cc.resources, resource{
		uri:            uri,
		root:           -1,
		doc:            d,
		docPath:        at.Clone(),
		dialect:        dialect,
		dynamicAnchors: make(map[string]int),
	})
	cc.byURI[uri] = ri
	return ri, nil
}

func locKey(d *document, p Path) string {
	return d.uri + "#" + p.String()
}

// compileSchema compiles the schema v found at path within d. Nodes are
// created once per location; subschemas are compiled depth first and their
// references queued for linking.
func (cc *compileCtx) compileSchema(d *document, v jsonvalue.Value, path Path, res int, dialect Dialect) (int, error) {
	key := locKey(d, path)
	if h, ok := cc.locs[key]; ok {
		return h, nil
	}
	h := len(cc.nodes)
	cc.nodes = append(cc.nodes, schemaNode{path: path.Clone(), doc: v, resource: res, dialect: dialect})
	cc.locs[key] = h

	if b, ok := v.Bool(); ok {
		cc.nodes[h].isBool = true
		cc.nodes[h].boolVal = b
		return h, nil
	}
	if v.Kind() != jsonvalue.Object {
		return h, nil
	}

	if s, ok := stringMember(v, "$schema"); ok && (len(path) == 0 || (dialect >= Draft2019 && v.Has("$id"))) {
		if declared, known := DialectFromURI(s); known {
			dialect = declared
			cc.nodes[h].dialect = dialect
		}
	}

	legacyRef := dialect <= Draft7 && v.Has("$ref")
	if !legacyRef {
		var err error
		if res, err = cc.identify(h, d, v, path, res, dialect); err != nil {
			return -1, err
		}
	}
	cc.nodes[h].resource = res

	if err := cc.compileChildren(d, v, path, res, dialect); err != nil {
		return -1, err
	}

	nc := &nodeCtx{h: h, d: d, v: v, path: path, res: res, dialect: dialect}
	checks, err := cc.buildChecks(nc)
	if err != nil {
		return -1, err
	}
	if legacyRef {
		kept := checks[:0]
		for _, chk := range checks {
			if chk.keyword() == "$ref" {
				kept = append(kept, chk)
			}
		}
		checks = kept
	}
	sort.SliceStable(checks, func(i, j int) bool {
		return checkOrder(checks[i].keyword()) < checkOrder(checks[j].keyword())
	})
	cc.nodes[h].checks = checks
	return h, nil
}

// checkOrder sorts keywords lexicographically with the unevaluated* keywords
// last, since they consume annotations produced by all the others.
func checkOrder(kw string) string {
	if strings.HasPrefix(kw, "unevaluated") {
		return "\xff" + kw
	}
	return kw
}

// identify registers $id, anchors and dynamic anchors of the schema at h and
// returns the resource the schema belongs to.
func (cc *compileCtx) identify(h int, d *document, v jsonvalue.Value, path Path, res int, dialect Dialect) (int, error) {
	base := cc.resources[res].uri

	if id, ok := stringMember(v, idKeyword(dialect)); ok && id != "" {
		if strings.HasPrefix(id, "#") {
			if dialect <= Draft7 && len(id) > 1 {
				cc.anchors[base+id] = h
			}
		} else {
			abs, err := resolveURI(base, id)
			if err != nil {
				return -1, &CompileError{Path: path.Key(idKeyword(dialect)), Keyword: idKeyword(dialect), Message: err.Error()}
			}
			uri, frag := splitFragment(abs)
			ri, err := cc.addResource(uri, d, path, dialect)
			if err != nil {
				return -1, err
			}
			if cc.resources[ri].root < 0 {
				cc.resources[ri].root = h
			}
			res, base = ri, uri
			if frag != "" && dialect <= Draft7 {
				cc.anchors[uri+"#"+frag] = h
			}
		}
	}

	if dialect >= Draft2019 {
		if name, ok := stringMember(v, "$anchor"); ok {
			cc.anchors[base+"#"+name] = h
		}
	}
	if dialect == Draft2019 {
		if b, ok := boolMember(v, "$recursiveAnchor"); ok && b && cc.resources[res].root == h {
			cc.resources[res].recursiveAnchor = true
		}
	}
	if dialect >= Draft2020 {
		if name, ok := stringMember(v, "$dynamicAnchor"); ok {
			cc.anchors[base+"#"+name] = h
			cc.resources[res].dynamicAnchors[name] = h
			cc.nodes[h].dynamicAnchor = name
		}
	}
	return res, nil
}

// compileChildren compiles every subschema position of v
func (cc *compileCtx) compileChildren(d *document, v jsonvalue.Value, path Path, res int, dialect Dialect) error {
	vocab := vocabularies[dialect]
	sub := func(val jsonvalue.Value, p Path) error {
		_, err := cc.compileSchema(d, val, p, res, dialect)
		return err
	}
	for _, kw := range v.Keys() {
		sh, ok := vocab[kw]
		if !ok {
			continue
		}
		val, _ := v.Get(kw)
		p := path.Key(kw)
		switch sh {
		case shapeSchema, shapeSchemaOrBool:
			if err := sub(val, p); err != nil {
				return err
			}
		case shapeSchemaOrArray:
			if val.Kind() != jsonvalue.Array {
				if err := sub(val, p); err != nil {
					return err
				}
				continue
			}
			fallthrough
		case shapeSchemaArray:
			for i, item := range val.Items() {
				if err := sub(item, p.Index(i)); err != nil {
					return err
				}
			}
		case shapeSchemaMap, shapePatternSchemaMap:
			for _, k := range val.Keys() {
				item, _ := val.Get(k)
				if err := sub(item, p.Key(k)); err != nil {
					return err
				}
			}
		case shapeDependencies:
			for _, k := range val.Keys() {
				item, _ := val.Get(k)
				if item.Kind() == jsonvalue.Array {
					continue
				}
				if err := sub(item, p.Key(k)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// queueRef records a reference to be linked once every document location is
// known.
func (cc *compileCtx) queueRef(nc *nodeCtx, kw, ref string, set func(int)) error {
	abs, err := resolveURI(cc.resources[nc.res].uri, ref)
	if err != nil {
		return &CompileError{Path: nc.path.Key(kw), Keyword: kw, Message: err.Error()}
	}
	cc.pending = append(cc.pending, pendingRef{uri: abs, path: nc.path.Key(kw), keyword: kw, set: set})
	return nil
}

// link resolves queued references. Resolution may compile further schemas,
// which may queue further references.
func (cc *compileCtx) link() error {
	for i := 0; i < len(cc.pending); i++ {
		p := cc.pending[i]
		h, err := cc.resolve(p.uri)
		if err != nil {
			if ce, ok := err.(*CompileError); ok {
				return ce
			}
			return &CompileError{Path: p.path, Keyword: p.keyword, Message: err.Error()}
		}
		p.set(h)
	}
	return nil
}

func (cc *compileCtx) resolve(abs string) (int, error) {
	uri, frag := splitFragment(abs)

	if frag == "" || strings.HasPrefix(frag, "/") {
		ri, ok := cc.byURI[uri]
		if !ok {
			if err := cc.loadExternal(uri); err != nil {
				return -1, err
			}
			if ri, ok = cc.byURI[uri]; !ok {
				return -1, fmt.Errorf("cannot resolve reference %q", abs)
			}
		}
		r := cc.resources[ri]
		ptr, ok := ParsePointer(frag)
		if !ok {
			return -1, fmt.Errorf("cannot resolve reference %q", abs)
		}
		full := append(r.docPath.Clone(), ptr...)
		if h, ok := cc.locs[locKey(r.doc, full)]; ok {
			return h, nil
		}
		val, ok := r.doc.root.Pointer(full.String())
		if !ok {
			return -1, fmt.Errorf("cannot resolve reference %q", abs)
		}

		// Pointer targets outside keyword positions have not been checked yet
		m := &metaValidator{cfg: &cc.c.cfg}
		m.schema(val, full, r.dialect, len(full))
		if err := m.result(); err != nil {
			return -1, err
		}
		return cc.compileSchema(r.doc, val, full, ri, r.dialect)
	}

	if h, ok := cc.anchors[uri+"#"+frag]; ok {
		return h, nil
	}
	if _, loaded := cc.byURI[uri]; !loaded {
		if err := cc.loadExternal(uri); err != nil {
			return -1, err
		}
		if h, ok := cc.anchors[uri+"#"+frag]; ok {
			return h, nil
		}
	}
	return -1, fmt.Errorf("cannot resolve reference %q", abs)
}

// loadExternal compiles a document registered with AddResource
func (cc *compileCtx) loadExternal(uri string) error {
	doc, ok := cc.c.lookupResource(uri)
	if !ok {
		return fmt.Errorf("cannot resolve reference: no schema registered for %q", uri)
	}
	m := &metaValidator{cfg: &cc.c.cfg}
	info, ok := m.rootDialect(doc, cc.c.cfg.DefaultDialect)
	if ok {
		m.schema(doc, Path{}, info.Dialect, 0)
	}
	if err := m.result(); err != nil {
		ce := err.(*CompileError)
		ce.Message = fmt.Sprintf("in %s: %s", uri, ce.Message)
		return ce
	}
	_, err := cc.compileDocument(&document{uri: uri, root: doc}, info.Dialect)
	return err
}

// resolveURI resolves ref against base
func resolveURI(base, ref string) (string, error) {
	if strings.HasPrefix(ref, "#") {
		b, _ := splitRaw(base)
		return b + ref, nil
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	if r.IsAbs() {
		return r.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base uri %q: %w", base, err)
	}
	return b.ResolveReference(r).String(), nil
}

func splitRaw(uri string) (string, string) {
	if i := strings.IndexByte(uri, '#'); i >= 0 {
		return uri[:i], uri[i+1:]
	}
	return uri, ""
}

// splitFragment separates the fragment of an absolute URI and percent-decodes it
func splitFragment(uri string) (string, string) {
	base, frag := splitRaw(uri)
	if dec, err := url.PathUnescape(frag); err == nil {
		frag = dec
	}
	return base, frag
}

func stringMember(v jsonvalue.Value, key string) (string, bool) {
	m, ok := v.Get(key)
	if !ok {
		return "", false
	}
	return m.Str()
}

func boolMember(v jsonvalue.Value, key string) (bool, bool) {
	m, ok := v.Get(key)
	if !ok {
		return false, false
	}
	return m.Bool()
}
