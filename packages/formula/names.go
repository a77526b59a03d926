package formula

import (
	"slices"
	"strings"
	"unicode"
)

// nameKey identifies a defined name. scope 0 is the workbook, otherwise a
// worksheet ID. the name is upper cased since lookups ignore case.
type nameKey struct {
	scope uint32
	name  string
}

// definedName is a name bound to a formula: usually a reference but any
// expression is allowed
type definedName struct {
	name    string // as written when defined
	scope   uint32
	formula string
	expr    Expression
}

// nameTable holds workbook and sheet scoped names with stable IDs so a
// rename keeps the definition
type nameTable struct {
	keyToID map[nameKey]uint32
	defs    map[uint32]*definedName
	nextID  uint32
}

func newNameTable() *nameTable {
	return &nameTable{
		keyToID: make(map[nameKey]uint32),
		defs:    make(map[uint32]*definedName),
		nextID:  1, // 0 means no name
	}
}

func newNameKey(scope uint32, name string) nameKey {
	return nameKey{scope: scope, name: strings.ToUpper(name)}
}

// define adds or replaces a name and returns its ID
func (t *nameTable) define(scope uint32, name, formula string, expr Expression) uint32 {
	key := newNameKey(scope, name)
	def := &definedName{name: name, scope: scope, formula: formula, expr: expr}
	if id, ok := t.keyToID[key]; ok {
		t.defs[id] = def
		return id
	}
	id := t.nextID
	t.nextID++
	t.keyToID[key] = id
	t.defs[id] = def
	return id
}

func (t *nameTable) lookup(scope uint32, name string) (*definedName, bool) {
	id, ok := t.keyToID[newNameKey(scope, name)]
	if !ok {
		return nil, false
	}
	return t.defs[id], true
}

func (t *nameTable) remove(scope uint32, name string) bool {
	key := newNameKey(scope, name)
	id, ok := t.keyToID[key]
	if !ok {
		return false
	}
	delete(t.keyToID, key)
	delete(t.defs, id)
	return true
}

// rename moves a definition to a new name in the same scope
func (t *nameTable) rename(scope uint32, oldName, newName string) bool {
	oldKey, newKey := newNameKey(scope, oldName), newNameKey(scope, newName)
	id, ok := t.keyToID[oldKey]
	if !ok {
		return false
	}
	if _, taken := t.keyToID[newKey]; taken && oldKey != newKey {
		return false
	}
	delete(t.keyToID, oldKey)
	t.keyToID[newKey] = id
	t.defs[id].name = newName
	return true
}

// removeScope drops every name scoped to a worksheet
func (t *nameTable) removeScope(scope uint32) {
	for key, id := range t.keyToID {
		if key.scope == scope {
			delete(t.keyToID, key)
			delete(t.defs, id)
		}
	}
}

// list returns the definitions in a scope sorted by name
func (t *nameTable) list(scope uint32) []*definedName {
	var out []*definedName
	for key, id := range t.keyToID {
		if key.scope == scope {
			out = append(out, t.defs[id])
		}
	}
	slices.SortFunc(out, func(a, b *definedName) int {
		return strings.Compare(strings.ToUpper(a.name), strings.ToUpper(b.name))
	})
	return out
}

// validName reports whether s can be used as a defined name or table name:
// it must start with a letter or '_', hold only letters, digits, '_'
// and '.', and not read as a cell reference or a boolean
func validName(s string) bool {
	if s == "" || len(s) > 255 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	upper := strings.ToUpper(s)
	if upper == "TRUE" || upper == "FALSE" || upper == "R" || upper == "C" {
		return false
	}
	if _, ok := parseA1Cell(s); ok {
		return false
	}
	if _, ok := parseR1C1Address(upper); ok {
		return false
	}
	return true
}
