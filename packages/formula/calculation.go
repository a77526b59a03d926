package formula

import (
	"iter"
	"strings"
)

// calculation is one pass of workbook evaluation. it resolves references,
// names and tables against the workbook, evaluates formula cells the first
// time they are read and records what every formula reads. the workbook
// lock is held for its whole lifetime.
type calculation struct {
	wb     *Workbook
	active map[cellKey]struct{}      // formula cells being evaluated
	stack  []cellKey                 // innermost formula cell last
	names  map[*definedName]struct{} // names being evaluated
}

func (wb *Workbook) newCalculation() *calculation {
	return &calculation{
		wb:     wb,
		active: make(map[cellKey]struct{}),
		names:  make(map[*definedName]struct{}),
	}
}

func (s *calculation) context(ws *worksheet, row, col int) *EvaluationContext {
	return &EvaluationContext{
		Address:  CellAddress{Sheet: ws.name, Row: row, Column: col},
		Workbook: &WorkbookContext{Settings: s.wb.settings},
	}
}

// cell returns the value of a cell. formula results are cached on the
// workbook; a formula that reads itself, directly or through other cells,
// gets #REF!.
func (s *calculation) cell(ws *worksheet, row, col int) Value {
	entry, ok := ws.get(row, col)
	if !ok {
		return Blank()
	}
	if entry.formula == 0 {
		return entry.value
	}
	key := cellKey{sheet: ws.id, row: uint32(row), col: uint32(col)}
	if v, ok := s.wb.results[key]; ok {
		return v
	}
	if _, busy := s.active[key]; busy {
		return ErrorValue(ErrorCodeRef)
	}
	expr, ok := s.wb.cache.Get(entry.formula)
	if !ok {
		return ErrorValue(ErrorCodeRef)
	}

	s.active[key] = struct{}{}
	s.stack = append(s.stack, key)
	s.wb.graph.clearPrecedents(key)
	v := s.wb.evaluator.Evaluate(expr, s.context(ws, row, col), s)
	s.stack = s.stack[:len(s.stack)-1]
	delete(s.active, key)

	// a formula pointing at an empty cell shows 0
	if v.IsBlank() {
		v = Number(0)
	}
	s.wb.results[key] = v
	return v
}

// record notes that the formula being evaluated read a cell or range
func (s *calculation) record(ws *worksheet, row1, col1, row2, col2 int) {
	if len(s.stack) == 0 {
		return
	}
	from := s.stack[len(s.stack)-1]
	if row1 == row2 && col1 == col2 {
		s.wb.graph.addCellDependency(from, cellKey{sheet: ws.id, row: uint32(row1), col: uint32(col1)})
		return
	}
	s.wb.graph.addRangeDependency(from, rangeKey{
		sheet: ws.id,
		row1:  uint32(row1),
		col1:  uint32(col1),
		row2:  uint32(row2),
		col2:  uint32(col2),
	})
}

// sheetsOf returns the worksheets a reference covers, in tab order for a
// 3-D reference
func (s *calculation) sheetsOf(ctx *EvaluationContext, ref Reference) ([]*worksheet, bool) {
	if ref.Sheet != nil && ref.Sheet.Workbook != "" {
		return nil, false
	}
	if !ref.Sheet.IsRange() {
		ws, ok := s.wb.sheet(ref.SheetName(ctx.Address.Sheet))
		if !ok {
			return nil, false
		}
		return []*worksheet{ws}, true
	}
	i, j := s.wb.sheetIndex(ref.Sheet.First), s.wb.sheetIndex(ref.Sheet.Last)
	if i < 0 || j < 0 {
		return nil, false
	}
	if i > j {
		i, j = j, i
	}
	return s.wb.sheets[i : j+1], true
}

// scalarOf reads a spilled formula result through its anchor cell
func scalarOf(v Value) Value {
	if v.IsArray() {
		return v.array.At(0, 0)
	}
	return v
}

func (s *calculation) ResolveReference(ctx *EvaluationContext, ref Reference) (Value, bool) {
	if ref.Sheet.IsRange() {
		return Value{}, false
	}
	sheets, ok := s.sheetsOf(ctx, ref)
	if !ok {
		return Value{}, false
	}
	ws := sheets[0]
	row1, col1, row2, col2 := ref.Bounds()
	s.record(ws, row1, col1, row2, col2)
	if row1 == row2 && col1 == col2 {
		return scalarOf(s.cell(ws, row1, col1)), true
	}

	// whole rows and columns stop at the used part of the sheet
	usedRows, usedCols := ws.UsedExtent()
	if ref.Start.AnyRow || ref.End.AnyRow {
		row2 = max(row1, min(row2, usedRows))
	}
	if ref.Start.AnyColumn || ref.End.AnyColumn {
		col2 = max(col1, min(col2, usedCols))
	}
	rows, cols := row2-row1+1, col2-col1+1
	if rows*cols > maxArrayCells {
		return ErrorValue(ErrorCodeNum), true
	}
	values := make([]Value, rows*cols)
	for i := range rows {
		for j := range cols {
			if ws.chunkEmpty(row1+i, col1+j) {
				continue
			}
			values[i*cols+j] = scalarOf(s.cell(ws, row1+i, col1+j))
		}
	}
	arr := newArrayNoCopy(rows, cols, values, nil).
		WithOrigin(CellAddress{Sheet: ws.name, Row: row1, Column: col1})
	return ArrayValue(arr), true
}

// EnumerateReferenceValues streams the non-empty cells of a range row by
// row, skipping empty chunks. a 3-D reference is walked sheet by sheet.
func (s *calculation) EnumerateReferenceValues(ctx *EvaluationContext, ref Reference) iter.Seq[Value] {
	return func(yield func(Value) bool) {
		sheets, ok := s.sheetsOf(ctx, ref)
		if !ok {
			yield(ErrorValue(ErrorCodeRef))
			return
		}
		row1, col1, row2, col2 := ref.Bounds()
		for _, ws := range sheets {
			s.record(ws, row1, col1, row2, col2)
			usedRows, usedCols := ws.UsedExtent()
			for row := row1; row <= min(row2, usedRows); row++ {
				for col := col1; col <= min(col2, usedCols); col++ {
					if ws.chunkEmpty(row, col) {
						// continue after the last column of this chunk
						col = ((col-1)/chunkCols + 1) * chunkCols
						continue
					}
					entry, ok := ws.get(row, col)
					if !ok {
						continue
					}
					v := entry.value
					if entry.formula != 0 {
						v = scalarOf(s.cell(ws, row, col))
					}
					if !yield(v) {
						return
					}
				}
			}
		}
	}
}

// lookupName finds a name in the qualifying sheet, or else in the sheet of
// the evaluating cell and then the workbook
func (s *calculation) lookupName(ctx *EvaluationContext, sheet *SheetRef, name string) (*definedName, bool) {
	if sheet != nil {
		ws, ok := s.wb.sheet(sheet.First)
		if !ok {
			return nil, false
		}
		return s.wb.names.lookup(ws.id, name)
	}
	if ws, ok := s.wb.sheet(ctx.Address.Sheet); ok {
		if def, ok := s.wb.names.lookup(ws.id, name); ok {
			return def, true
		}
	}
	return s.wb.names.lookup(0, name)
}

func (s *calculation) ResolveName(ctx *EvaluationContext, sheet *SheetRef, name string) (Value, bool) {
	def, ok := s.lookupName(ctx, sheet, name)
	if !ok {
		// a bare table name means its data rows
		if _, isTable := s.wb.tables[strings.ToUpper(name)]; isTable && sheet == nil {
			return s.ResolveStructuredReference(ctx, StructuredReference{Table: name, Scope: ScopeData})
		}
		return Value{}, false
	}
	if ref, ok := def.expr.(*ReferenceExpr); ok {
		r := ref.Ref
		if r.Sheet == nil && def.scope != 0 {
			if ws, ok := s.wb.sheetByID(def.scope); ok {
				r.Sheet = &SheetRef{First: ws.name}
			}
		}
		return ReferenceValue(r), true
	}
	if _, busy := s.names[def]; busy {
		return ErrorValue(ErrorCodeRef), true
	}
	s.names[def] = struct{}{}
	defer delete(s.names, def)
	return s.wb.evaluator.Evaluate(def.expr, ctx, s), true
}

// tableFor finds a table by name. an unnamed reference such as [@Price]
// means the table holding the evaluating cell.
func (s *calculation) tableFor(ctx *EvaluationContext, name string) (*table, bool) {
	if name != "" {
		t, ok := s.wb.tables[strings.ToUpper(name)]
		return t, ok
	}
	ws, ok := s.wb.sheet(ctx.Address.Sheet)
	if !ok {
		return nil, false
	}
	at := ctx.Address
	for _, t := range s.wb.tables {
		if t.sheet == ws.id && at.Row >= t.row1 && at.Row <= t.row2 && at.Column >= t.col1 && at.Column <= t.col2 {
			return t, true
		}
	}
	return nil, false
}

func (s *calculation) ResolveStructuredReference(ctx *EvaluationContext, ref StructuredReference) (Value, bool) {
	t, ok := s.tableFor(ctx, ref.Table)
	if !ok {
		return Value{}, false
	}
	ws, ok := s.wb.sheetByID(t.sheet)
	if !ok {
		return Value{}, false
	}

	col1, col2 := t.col1, t.col2
	switch len(ref.Columns) {
	case 1:
		i := t.columnIndex(ref.Columns[0])
		if i < 0 {
			return Value{}, false
		}
		col1, col2 = t.col1+i, t.col1+i
	case 2:
		i, j := t.columnIndex(ref.Columns[0]), t.columnIndex(ref.Columns[1])
		if i < 0 || j < 0 {
			return Value{}, false
		}
		col1, col2 = t.col1+min(i, j), t.col1+max(i, j)
	}

	row1, row2 := t.dataRows()
	switch ref.Scope {
	case ScopeAll:
		row1, row2 = t.row1, t.row2
	case ScopeHeaders:
		row1, row2 = t.row1, t.row1
	case ScopeTotals:
		if !t.totals {
			return ErrorValue(ErrorCodeRef), true
		}
		row1, row2 = t.row2, t.row2
	case ScopeThisRow:
		at := ctx.Address
		if !strings.EqualFold(at.Sheet, ws.name) || at.Row < row1 || at.Row > row2 {
			return ErrorValue(ErrorCodeValue), true
		}
		row1, row2 = at.Row, at.Row
	}
	if row1 > row2 {
		return ErrorValue(ErrorCodeRef), true
	}
	return ReferenceValue(RangeReference(ws.name, row1, col1, row2, col2)), true
}
