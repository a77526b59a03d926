package formula

import "math/bits"

const (
	chunkRows = 256                   // rows per chunk, power of 2 for cheap modulo
	chunkCols = 256                   // columns per chunk
	chunkSize = chunkRows * chunkCols // 65536 cells per chunk
)

type chunkKey struct {
	row uint32
	col uint32
}

// chunk holds a 256x256 block of cells in structure-of-arrays layout. only
// kinds and the occupied bitmap exist up front; the payload arrays are
// allocated the first time a cell needs them.
type chunk struct {
	kinds    []uint8  // ValueKind per cell
	occupied []uint64 // one bit per non-empty cell
	count    int

	numbers  []float64 // numbers, booleans and error codes (lazy)
	strings  []uint32  // interned text IDs (lazy)
	formulas []uint32  // ParsedFormulaCache IDs (lazy)
}

func newChunk() *chunk {
	return &chunk{
		kinds:    make([]uint8, chunkSize),
		occupied: make([]uint64, chunkSize/64),
	}
}

func (c *chunk) isOccupied(idx uint32) bool {
	return c.occupied[idx/64]&(1<<(idx%64)) != 0
}

func (c *chunk) setOccupied(idx uint32, on bool) {
	if on {
		c.occupied[idx/64] |= 1 << (idx % 64)
	} else {
		c.occupied[idx/64] &^= 1 << (idx % 64)
	}
}

func (c *chunk) formulaAt(idx uint32) uint32 {
	if c.formulas == nil {
		return 0
	}
	return c.formulas[idx]
}

// cellEntry is what a worksheet stores for one cell: a constant value or a
// formula ID
type cellEntry struct {
	value   Value
	formula uint32
}

// worksheet is sparse cell storage. cells are partitioned into 256x256
// chunks and memory is only allocated for regions that hold data. text is
// interned through the workbook string pool.
type worksheet struct {
	id     uint32
	name   string
	chunks map[chunkKey]*chunk
	pool   *stringPool
	cells  int
	maxRow int
	maxCol int
}

func newWorksheet(id uint32, name string, pool *stringPool) *worksheet {
	return &worksheet{id: id, name: name, chunks: make(map[chunkKey]*chunk), pool: pool}
}

// Name returns the sheet name
func (w *worksheet) Name() string { return w.name }

// Len returns the number of non-empty cells
func (w *worksheet) Len() int { return w.cells }

// UsedExtent returns the largest row and column ever written
func (w *worksheet) UsedExtent() (rows, cols int) { return w.maxRow, w.maxCol }

// locate maps a 1-based cell to its chunk key and column-first offset
func locate(row, col int) (chunkKey, uint32) {
	r, c := uint32(row-1), uint32(col-1)
	key := chunkKey{row: r / chunkRows, col: c / chunkCols}
	return key, (c%chunkCols)*chunkRows + r%chunkRows
}

func (w *worksheet) get(row, col int) (cellEntry, bool) {
	key, idx := locate(row, col)
	c, ok := w.chunks[key]
	if !ok || !c.isOccupied(idx) {
		return cellEntry{}, false
	}
	entry := cellEntry{formula: c.formulaAt(idx)}
	switch kind := ValueKind(c.kinds[idx]); kind {
	case KindNumber:
		entry.value = Number(c.numbers[idx])
	case KindBoolean:
		entry.value = Boolean(c.numbers[idx] != 0)
	case KindError:
		entry.value = ErrorValue(ErrorCode(c.numbers[idx]))
	case KindText:
		s, _ := w.pool.get(c.strings[idx])
		entry.value = Text(s)
	}
	return entry, true
}

// set stores a scalar or, when formula is non-zero, a formula cell. the
// formula ID previously held by the cell is returned so the caller can
// release it.
func (w *worksheet) set(row, col int, v Value, formula uint32) uint32 {
	key, idx := locate(row, col)
	c, ok := w.chunks[key]
	if !ok {
		c = newChunk()
		w.chunks[key] = c
	}
	old := w.clear(c, idx)
	if !c.isOccupied(idx) {
		c.count++
		w.cells++
	}
	c.setOccupied(idx, true)
	w.maxRow = max(w.maxRow, row)
	w.maxCol = max(w.maxCol, col)

	if formula != 0 {
		if c.formulas == nil {
			c.formulas = make([]uint32, chunkSize)
		}
		c.formulas[idx] = formula
		c.kinds[idx] = uint8(KindBlank)
		return old
	}

	c.kinds[idx] = uint8(v.kind)
	switch v.kind {
	case KindNumber, KindBoolean:
		c.ensureNumbers()
		c.numbers[idx] = v.num
	case KindError:
		c.ensureNumbers()
		c.numbers[idx] = float64(v.code)
	case KindText:
		if c.strings == nil {
			c.strings = make([]uint32, chunkSize)
		}
		c.strings[idx] = w.pool.intern(v.text)
	}
	return old
}

func (c *chunk) ensureNumbers() {
	if c.numbers == nil {
		c.numbers = make([]float64, chunkSize)
	}
}

// clear drops the payload of a cell and returns its formula ID
func (w *worksheet) clear(c *chunk, idx uint32) uint32 {
	if ValueKind(c.kinds[idx]) == KindText && c.strings != nil && c.strings[idx] != 0 {
		w.pool.release(c.strings[idx])
		c.strings[idx] = 0
	}
	c.kinds[idx] = uint8(KindBlank)
	old := c.formulaAt(idx)
	if old != 0 {
		c.formulas[idx] = 0
	}
	return old
}

// remove empties a cell and returns the formula ID it held
func (w *worksheet) remove(row, col int) uint32 {
	key, idx := locate(row, col)
	c, ok := w.chunks[key]
	if !ok || !c.isOccupied(idx) {
		return 0
	}
	old := w.clear(c, idx)
	c.setOccupied(idx, false)
	c.count--
	w.cells--
	if c.count == 0 {
		delete(w.chunks, key)
	}
	return old
}

// chunkEmpty reports whether the chunk holding a cell has no data. it is
// used to skip empty blocks while streaming a range.
func (w *worksheet) chunkEmpty(row, col int) bool {
	key, _ := locate(row, col)
	c, ok := w.chunks[key]
	return !ok || c.count == 0
}

// eachOccupied calls fn with the offset of every non-empty cell
func (c *chunk) eachOccupied(fn func(idx uint32)) {
	for word, set := range c.occupied {
		for set != 0 {
			b := bits.TrailingZeros64(set)
			set &^= 1 << b
			fn(uint32(word*64 + b))
		}
	}
}

// formulaCells calls fn for every formula cell
func (w *worksheet) formulaCells(fn func(row, col int, id uint32)) {
	for key, c := range w.chunks {
		if c.formulas == nil {
			continue
		}
		c.eachOccupied(func(idx uint32) {
			if id := c.formulas[idx]; id != 0 {
				row := int(key.row*chunkRows+idx%chunkRows) + 1
				col := int(key.col*chunkCols+idx/chunkRows) + 1
				fn(row, col, id)
			}
		})
	}
}

// drop empties the sheet, releasing its strings and passing every formula
// ID to releaseFormula
func (w *worksheet) drop(releaseFormula func(uint32)) {
	for _, c := range w.chunks {
		c.eachOccupied(func(idx uint32) {
			if f := w.clear(c, idx); f != 0 {
				releaseFormula(f)
			}
		})
	}
	clear(w.chunks)
	w.cells = 0
	w.maxRow, w.maxCol = 0, 0
}
