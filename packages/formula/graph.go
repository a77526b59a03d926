package formula

// cellKey addresses one cell of a workbook by sheet ID so that renaming a
// sheet keeps its dependencies intact
type cellKey struct {
	sheet uint32
	row   uint32
	col   uint32
}

// rangeKey addresses a rectangle on one sheet
type rangeKey struct {
	sheet uint32
	row1  uint32
	col1  uint32
	row2  uint32
	col2  uint32
}

func (r rangeKey) contains(k cellKey) bool {
	return k.sheet == r.sheet &&
		k.row >= r.row1 && k.row <= r.row2 &&
		k.col >= r.col1 && k.col <= r.col2
}

// dependencyNode is a formula cell and what it read during its last
// evaluation
type dependencyNode struct {
	cellPrecedents  map[cellKey]struct{}
	rangePrecedents map[rangeKey]struct{}
	cellDependents  map[cellKey]struct{}
}

// dependencyGraph records which cells each formula read. precedents are
// captured while a formula evaluates, so references built at run time by
// INDIRECT, OFFSET, names and tables are tracked like literal ones.
type dependencyGraph struct {
	nodes          map[cellKey]*dependencyNode
	rangeObservers map[rangeKey]map[cellKey]struct{} // range -> cells that read it
	volatileCells  map[cellKey]struct{}
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{
		nodes:          make(map[cellKey]*dependencyNode),
		rangeObservers: make(map[rangeKey]map[cellKey]struct{}),
		volatileCells:  make(map[cellKey]struct{}),
	}
}

func (dg *dependencyGraph) node(k cellKey) *dependencyNode {
	if n, ok := dg.nodes[k]; ok {
		return n
	}
	n := &dependencyNode{
		cellPrecedents:  make(map[cellKey]struct{}),
		rangePrecedents: make(map[rangeKey]struct{}),
		cellDependents:  make(map[cellKey]struct{}),
	}
	dg.nodes[k] = n
	return n
}

// addCellDependency records that from read to
func (dg *dependencyGraph) addCellDependency(from, to cellKey) {
	dg.node(from).cellPrecedents[to] = struct{}{}
	dg.node(to).cellDependents[from] = struct{}{}
}

// addRangeDependency records that from read a whole range
func (dg *dependencyGraph) addRangeDependency(from cellKey, r rangeKey) {
	dg.node(from).rangePrecedents[r] = struct{}{}
	if dg.rangeObservers[r] == nil {
		dg.rangeObservers[r] = make(map[cellKey]struct{})
	}
	dg.rangeObservers[r][from] = struct{}{}
}

// clearPrecedents forgets what a cell read. it runs before the cell is
// evaluated again and when its formula goes away.
func (dg *dependencyGraph) clearPrecedents(k cellKey) {
	n, ok := dg.nodes[k]
	if !ok {
		return
	}
	for p := range n.cellPrecedents {
		if pn, ok := dg.nodes[p]; ok {
			delete(pn.cellDependents, k)
			dg.cleanupIfEmpty(p)
		}
	}
	clear(n.cellPrecedents)
	for r := range n.rangePrecedents {
		if observers, ok := dg.rangeObservers[r]; ok {
			delete(observers, k)
			if len(observers) == 0 {
				delete(dg.rangeObservers, r)
			}
		}
	}
	clear(n.rangePrecedents)
	dg.cleanupIfEmpty(k)
}

// cleanupIfEmpty drops a node nothing points to or from
func (dg *dependencyGraph) cleanupIfEmpty(k cellKey) {
	n, ok := dg.nodes[k]
	if !ok {
		return
	}
	if len(n.cellPrecedents) > 0 || len(n.cellDependents) > 0 || len(n.rangePrecedents) > 0 {
		return
	}
	delete(dg.nodes, k)
}

func (dg *dependencyGraph) setVolatile(k cellKey, on bool) {
	if on {
		dg.volatileCells[k] = struct{}{}
	} else {
		delete(dg.volatileCells, k)
	}
}

// affected returns every formula cell whose result may change when the
// given cells change: direct readers, readers of ranges covering them, and
// so on transitively. the changed cells themselves are included.
func (dg *dependencyGraph) affected(changed ...cellKey) map[cellKey]struct{} {
	seen := make(map[cellKey]struct{}, len(changed))
	queue := append([]cellKey(nil), changed...)
	for _, k := range changed {
		seen[k] = struct{}{}
	}
	visit := func(k cellKey) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			queue = append(queue, k)
		}
	}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if n, ok := dg.nodes[k]; ok {
			for d := range n.cellDependents {
				visit(d)
			}
		}
		for r, observers := range dg.rangeObservers {
			if !r.contains(k) {
				continue
			}
			for o := range observers {
				visit(o)
			}
		}
	}
	return seen
}

// volatile returns the volatile cells
func (dg *dependencyGraph) volatile() []cellKey {
	out := make([]cellKey, 0, len(dg.volatileCells))
	for k := range dg.volatileCells {
		out = append(out, k)
	}
	return out
}

// removeSheet drops every node and range on a sheet
func (dg *dependencyGraph) removeSheet(sheet uint32) {
	for k := range dg.nodes {
		if k.sheet == sheet {
			dg.clearPrecedents(k)
		}
	}
	for k, n := range dg.nodes {
		if k.sheet != sheet {
			continue
		}
		for d := range n.cellDependents {
			if dn, ok := dg.nodes[d]; ok {
				delete(dn.cellPrecedents, k)
			}
		}
		delete(dg.nodes, k)
	}
	for r := range dg.rangeObservers {
		if r.sheet == sheet {
			delete(dg.rangeObservers, r)
		}
	}
	for k := range dg.volatileCells {
		if k.sheet == sheet {
			delete(dg.volatileCells, k)
		}
	}
}

func (dg *dependencyGraph) reset() {
	clear(dg.nodes)
	clear(dg.rangeObservers)
	clear(dg.volatileCells)
}
