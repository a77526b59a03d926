package formula

import "testing"

func key(sheet, row, col uint32) cellKey {
	return cellKey{sheet: sheet, row: row, col: col}
}

func TestDependencyGraphAffected(t *testing.T) {
	dg := newDependencyGraph()
	a1, b1, c1, d1 := key(1, 1, 1), key(1, 1, 2), key(1, 1, 3), key(1, 1, 4)
	total := key(1, 10, 1)

	// B1 reads A1, C1 reads B1, D1 is unrelated, A10 reads A1:A5
	dg.addCellDependency(b1, a1)
	dg.addCellDependency(c1, b1)
	dg.addCellDependency(d1, key(2, 1, 1))
	dg.addRangeDependency(total, rangeKey{sheet: 1, row1: 1, col1: 1, row2: 5, col2: 1})

	got := dg.affected(a1)
	for _, k := range []cellKey{a1, b1, c1, total} {
		if _, ok := got[k]; !ok {
			t.Errorf("%v should be affected by A1", k)
		}
	}
	if _, ok := got[d1]; ok {
		t.Errorf("D1 does not read A1")
	}

	got = dg.affected(key(1, 3, 1))
	if _, ok := got[total]; !ok {
		t.Errorf("A3 lies in A1:A5, A10 should be affected")
	}
	if len(got) != 2 {
		t.Errorf("affected(A3) = %v, want A3 and A10", got)
	}
	if got := dg.affected(key(1, 6, 1)); len(got) != 1 {
		t.Errorf("A6 is outside every range, got %v", got)
	}
}

func TestDependencyGraphCycleTerminates(t *testing.T) {
	dg := newDependencyGraph()
	a, b := key(1, 1, 1), key(1, 2, 1)
	dg.addCellDependency(a, b)
	dg.addCellDependency(b, a)
	if got := dg.affected(a); len(got) != 2 {
		t.Errorf("affected = %v, want both cells", got)
	}
}

func TestDependencyGraphClearPrecedents(t *testing.T) {
	dg := newDependencyGraph()
	a1, b1 := key(1, 1, 1), key(1, 1, 2)
	r := rangeKey{sheet: 1, row1: 1, col1: 3, row2: 9, col2: 3}
	dg.addCellDependency(b1, a1)
	dg.addRangeDependency(b1, r)

	dg.clearPrecedents(b1)
	if len(dg.nodes) != 0 {
		t.Errorf("nodes left after clearing the only formula: %v", dg.nodes)
	}
	if len(dg.rangeObservers) != 0 {
		t.Errorf("range observers left: %v", dg.rangeObservers)
	}
	if got := dg.affected(a1); len(got) != 1 {
		t.Errorf("B1 no longer reads A1, got %v", got)
	}
}

func TestDependencyGraphRemoveSheet(t *testing.T) {
	dg := newDependencyGraph()
	onOther := key(2, 1, 1)
	reader := key(1, 1, 1)
	dg.addCellDependency(reader, onOther)
	dg.addCellDependency(key(2, 2, 1), onOther)
	dg.addRangeDependency(key(2, 3, 1), rangeKey{sheet: 2, row1: 1, col1: 1, row2: 2, col2: 1})
	dg.setVolatile(key(2, 4, 1), true)
	dg.setVolatile(reader, true)

	dg.removeSheet(2)
	for k := range dg.nodes {
		if k.sheet == 2 {
			t.Errorf("node %v survived removing its sheet", k)
		}
	}
	if len(dg.rangeObservers) != 0 {
		t.Errorf("range observers left: %v", dg.rangeObservers)
	}
	if v := dg.volatile(); len(v) != 1 || v[0] != reader {
		t.Errorf("volatile = %v, want only the reader on sheet 1", v)
	}

	dg.setVolatile(reader, false)
	if len(dg.volatile()) != 0 {
		t.Errorf("volatile flag was not cleared")
	}
}

func TestNameTable(t *testing.T) {
	nt := newNameTable()
	id := nt.define(0, "TaxRate", "0.2", nil)
	if again := nt.define(0, "TAXRATE", "0.25", nil); again != id {
		t.Errorf("redefining a name should keep its ID")
	}
	def, ok := nt.lookup(0, "taxrate")
	if !ok || def.formula != "0.25" {
		t.Fatalf("lookup = %+v, %v", def, ok)
	}
	if _, ok := nt.lookup(1, "TaxRate"); ok {
		t.Errorf("workbook names should not be found in a sheet scope")
	}

	nt.define(1, "Local", "1", nil)
	nt.define(0, "Alpha", "2", nil)
	if !nt.rename(0, "TaxRate", "Rate") {
		t.Fatal("rename failed")
	}
	if nt.rename(0, "Rate", "alpha") {
		t.Errorf("rename onto an existing name should fail")
	}
	if def, ok := nt.lookup(0, "Rate"); !ok || def.name != "Rate" {
		t.Errorf("renamed definition = %+v, %v", def, ok)
	}

	list := nt.list(0)
	if len(list) != 2 || list[0].name != "Alpha" || list[1].name != "Rate" {
		t.Errorf("list = %v, want Alpha and Rate", list)
	}

	nt.removeScope(1)
	if _, ok := nt.lookup(1, "Local"); ok {
		t.Errorf("sheet scope should be gone")
	}
	if !nt.remove(0, "ALPHA") || nt.remove(0, "Alpha") {
		t.Errorf("remove should succeed once")
	}
}

func TestValidName(t *testing.T) {
	tests := map[string]bool{
		"TaxRate":    true,
		"_private":   true,
		"Rate.2024":  true,
		"Über":       true,
		"":           false,
		"A1":         false,
		"XFD1048576": false,
		"R1C1":       false,
		"R":          false,
		"true":       false,
		"1abc":       false,
		"has space":  false,
		"a-b":        false,
	}
	for name, want := range tests {
		if got := validName(name); got != want {
			t.Errorf("validName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestStringPool(t *testing.T) {
	p := newStringPool()
	a := p.intern("label")
	b := p.intern("label")
	if a != b {
		t.Errorf("same text got IDs %d and %d", a, b)
	}
	c := p.intern("other")
	if p.len() != 2 {
		t.Errorf("len = %d, want 2", p.len())
	}
	if p.release(a) {
		t.Errorf("first release should keep the shared string")
	}
	if s, ok := p.get(a); !ok || s != "label" {
		t.Errorf("get = %q, %v", s, ok)
	}
	if !p.release(b) {
		t.Errorf("last release should drop the string")
	}
	if _, ok := p.get(a); ok {
		t.Errorf("released string is still readable")
	}
	if !p.release(c) || p.len() != 0 {
		t.Errorf("pool should be empty")
	}
}
