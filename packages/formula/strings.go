package formula

// stringPool interns cell text with reference counting so repeated labels
// are stored once per workbook
type stringPool struct {
	ids       map[string]uint32
	text      map[uint32]string
	refCounts map[uint32]int
	nextID    uint32
}

func newStringPool() *stringPool {
	return &stringPool{
		ids:       make(map[string]uint32),
		text:      make(map[uint32]string),
		refCounts: make(map[uint32]int),
		nextID:    1, // 0 means no string
	}
}

// intern adds a reference to s and returns its ID
func (p *stringPool) intern(s string) uint32 {
	if id, ok := p.ids[s]; ok {
		p.refCounts[id]++
		return id
	}
	id := p.nextID
	p.ids[s] = id
	p.text[id] = s
	p.refCounts[id] = 1
	p.nextID++
	return id
}

func (p *stringPool) get(id uint32) (string, bool) {
	s, ok := p.text[id]
	return s, ok
}

// release drops one reference. the string is forgotten when none are
// left; the result reports whether that happened.
func (p *stringPool) release(id uint32) bool {
	s, ok := p.text[id]
	if !ok {
		return false
	}
	p.refCounts[id]--
	if p.refCounts[id] > 0 {
		return false
	}
	delete(p.ids, s)
	delete(p.text, id)
	delete(p.refCounts, id)
	return true
}

func (p *stringPool) len() int { return len(p.ids) }
