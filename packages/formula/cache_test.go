package formula

import (
	"sync"
	"testing"
)

func TestParsedFormulaCacheDedupe(t *testing.T) {
	c := NewParsedFormulaCache()

	id1, e1, err := c.Intern("=SUM(A1)", nil)
	if err != nil {
		t.Fatal(err)
	}
	id2, e2, err := c.Intern("= sum( a1 )", nil)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 || e1 != e2 {
		t.Errorf("equivalent formulas should share one tree, got IDs %d and %d", id1, id2)
	}
	id3, _, err := c.Intern("=SUM(A2)", nil)
	if err != nil {
		t.Fatal(err)
	}
	if id3 == id1 {
		t.Errorf("different formulas share ID %d", id1)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	// a locale spelling of the same formula is the same tree
	id4, _, err := c.Intern("=SUM(1,5;2)", &ParseOptions{DecimalSeparator: ',', ArgumentSeparator: ';'})
	if err != nil {
		t.Fatal(err)
	}
	id5, _, err := c.Intern("=SUM(1.5,2)", nil)
	if err != nil {
		t.Fatal(err)
	}
	if id4 != id5 {
		t.Errorf("locale spellings got IDs %d and %d", id4, id5)
	}

	hits, misses := c.Stats()
	if hits != 0 || misses != 5 {
		t.Errorf("Stats = %d hits, %d misses, want 0 and 5", hits, misses)
	}
	if _, _, err := c.Intern("=SUM(A1)", nil); err != nil {
		t.Fatal(err)
	}
	if hits, _ := c.Stats(); hits != 1 {
		t.Errorf("hits = %d after repeating a formula, want 1", hits)
	}
}

func TestParsedFormulaCacheRelease(t *testing.T) {
	c := NewParsedFormulaCache()
	var id uint32
	for _, text := range []string{"=A1*2", "=a1 * 2", "=A1*2"} {
		got, _, err := c.Intern(text, nil)
		if err != nil {
			t.Fatal(err)
		}
		id = got
	}

	for i := 0; i < 2; i++ {
		if c.Release(id) {
			t.Fatalf("release %d evicted a formula still in use", i+1)
		}
		if _, ok := c.Get(id); !ok {
			t.Fatalf("formula gone after release %d", i+1)
		}
	}
	if !c.Release(id) {
		t.Errorf("last release should evict")
	}
	if _, ok := c.Get(id); ok {
		t.Errorf("evicted formula is still readable")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
	if c.Release(id) {
		t.Errorf("releasing an unknown ID should report false")
	}

	newID, _, err := c.Intern("=A1*2", nil)
	if err != nil {
		t.Fatal(err)
	}
	if newID == id {
		t.Errorf("IDs should not be reused")
	}
}

func TestParsedFormulaCacheParse(t *testing.T) {
	c := NewParsedFormulaCache()
	if _, err := c.Parse("=1+", nil); err == nil {
		t.Fatal("expected a parse error")
	}
	if c.Len() != 0 {
		t.Errorf("failed parses should not be cached")
	}

	first, err := c.Parse("=1+2", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Parse("  =1+2  ", nil)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("surrounding space should not cause a second parse")
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("Stats = %d hits, %d misses, want 1 and 1", hits, misses)
	}
}

func TestParsedFormulaCacheConcurrentUse(t *testing.T) {
	c := NewParsedFormulaCache()
	var wg sync.WaitGroup
	ids := make([]uint32, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _, err := c.Intern("=SUM(A1:A10)*2", nil)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = id
			if _, err := c.Parse("=SUM(A1:A10)*2", nil); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("goroutines got different IDs: %v", ids)
		}
	}
	for i := range ids {
		evicted := c.Release(ids[0])
		if evicted != (i == len(ids)-1) {
			t.Fatalf("release %d evicted = %v", i+1, evicted)
		}
	}
}
