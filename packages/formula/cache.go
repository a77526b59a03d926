package formula

import (
	"strings"
	"sync"
)

// formulaKey identifies formula text parsed with a given set of options
type formulaKey struct {
	text string
	opts ParseOptions
}

// canonicalKey is the formatted form of a parsed tree. formulas differing
// only in spacing, case or redundant parentheses share one.
type canonicalKey string

type cachedFormula struct {
	expr      Expression
	canonical canonicalKey
	keys      []formulaKey // every text that maps to this entry
	refCount  int
}

// ParsedFormulaCache parses each distinct formula once. entries interned
// by cells are reference counted and shared between formulas with the same
// canonical form. it is safe for concurrent use.
type ParsedFormulaCache struct {
	mu      sync.RWMutex
	byText  map[formulaKey]uint32
	byTree  map[canonicalKey]uint32
	entries map[uint32]*cachedFormula
	nextID  uint32
	hits    uint64
	misses  uint64
}

// NewParsedFormulaCache creates an empty cache
func NewParsedFormulaCache() *ParsedFormulaCache {
	return &ParsedFormulaCache{
		byText:  make(map[formulaKey]uint32),
		byTree:  make(map[canonicalKey]uint32),
		entries: make(map[uint32]*cachedFormula),
		nextID:  1, // 0 means no formula
	}
}

func newFormulaKey(text string, opts *ParseOptions) formulaKey {
	return formulaKey{text: strings.TrimSpace(text), opts: opts.normalize()}
}

// Parse returns the tree for text, parsing it only on first use. parse
// failures are not cached.
func (c *ParsedFormulaCache) Parse(text string, opts *ParseOptions) (Expression, error) {
	key := newFormulaKey(text, opts)
	c.mu.RLock()
	if id, ok := c.byText[key]; ok {
		expr := c.entries[id].expr
		c.mu.RUnlock()
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return expr, nil
	}
	c.mu.RUnlock()

	_, expr, err := c.intern(key, false)
	return expr, err
}

// Intern parses text if needed and adds a reference to it. the returned ID
// stays valid until every reference is released.
func (c *ParsedFormulaCache) Intern(text string, opts *ParseOptions) (uint32, Expression, error) {
	return c.intern(newFormulaKey(text, opts), true)
}

func (c *ParsedFormulaCache) intern(key formulaKey, addRef bool) (uint32, Expression, error) {
	c.mu.Lock()
	if id, ok := c.byText[key]; ok {
		e := c.entries[id]
		if addRef {
			e.refCount++
		}
		c.hits++
		c.mu.Unlock()
		return id, e.expr, nil
	}
	c.mu.Unlock()

	// parse outside the lock; a racing parse of the same text is harmless
	expr, err := Parse(key.text, &key.opts)
	if err != nil {
		return 0, nil, err
	}
	canonical := canonicalKey(Format(expr, nil))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	id, ok := c.byText[key]
	if !ok {
		id, ok = c.byTree[canonical]
	}
	if ok {
		e := c.entries[id]
		if _, seen := c.byText[key]; !seen {
			c.byText[key] = id
			e.keys = append(e.keys, key)
		}
		if addRef {
			e.refCount++
		}
		return id, e.expr, nil
	}

	id = c.nextID
	c.nextID++
	e := &cachedFormula{expr: expr, canonical: canonical, keys: []formulaKey{key}}
	if addRef {
		e.refCount = 1
	}
	c.entries[id] = e
	c.byText[key] = id
	c.byTree[canonical] = id
	return id, expr, nil
}

// Get returns the tree of an interned formula
func (c *ParsedFormulaCache) Get(id uint32) (Expression, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return e.expr, true
}

// Release drops one reference to an interned formula. it reports whether
// the entry was evicted.
func (c *ParsedFormulaCache) Release(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return false
	}
	e.refCount--
	if e.refCount > 0 {
		return false
	}
	for _, k := range e.keys {
		delete(c.byText, k)
	}
	delete(c.byTree, e.canonical)
	delete(c.entries, id)
	return true
}

// Len returns the number of distinct parsed trees
func (c *ParsedFormulaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns how many lookups were served from the cache and how many
// required a parse
func (c *ParsedFormulaCache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
