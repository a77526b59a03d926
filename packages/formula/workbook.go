package formula

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const maxSheetNameLength = 31

// WorkbookOptions configures a Workbook
type WorkbookOptions struct {
	// Settings are passed to every evaluation.
	Settings CalculationSettings
	// Parse controls how cell formulas and defined names are read.
	Parse ParseOptions
	// Evaluator runs formulas; nil creates one over the default registry.
	Evaluator *Evaluator
	// Cache is shared between workbooks when set; nil creates a private
	// one.
	Cache *ParsedFormulaCache
}

// Table describes a structured table. Range covers the header row, the
// data rows and, when HasTotals is set, a trailing totals row.
type Table struct {
	Name      string
	Sheet     string
	Range     string   // e.g. "A1:C10"
	Columns   []string // header names; read from the header row when nil
	HasTotals bool
}

type table struct {
	name    string
	sheet   uint32
	row1    int
	col1    int
	row2    int
	col2    int
	columns []string
	totals  bool
}

func (t *table) columnIndex(name string) int {
	return slices.IndexFunc(t.columns, func(c string) bool { return strings.EqualFold(c, name) })
}

// dataRows returns the first and last data row. first > last for a table
// without data.
func (t *table) dataRows() (int, int) {
	last := t.row2
	if t.totals {
		last--
	}
	return t.row1 + 1, last
}

// Workbook stores worksheets, defined names and tables and evaluates cell
// formulas on demand. results are cached until a cell they read changes;
// dependencies are recorded while formulas run. a Workbook is safe for
// concurrent use.
type Workbook struct {
	mu          sync.Mutex
	sheets      []*worksheet // in tab order
	byName      map[string]*worksheet
	nextSheetID uint32

	pool   *stringPool
	cache  *ParsedFormulaCache
	names  *nameTable
	tables map[string]*table

	graph   *dependencyGraph
	results map[cellKey]Value

	evaluator    *Evaluator
	settings     CalculationSettings
	parseOptions ParseOptions
}

// NewWorkbook creates a workbook without worksheets
func NewWorkbook(opts *WorkbookOptions) *Workbook {
	if opts == nil {
		opts = &WorkbookOptions{}
	}
	wb := &Workbook{
		byName:       make(map[string]*worksheet),
		nextSheetID:  1, // 0 is the workbook scope
		pool:         newStringPool(),
		cache:        opts.Cache,
		names:        newNameTable(),
		tables:       make(map[string]*table),
		graph:        newDependencyGraph(),
		results:      make(map[cellKey]Value),
		evaluator:    opts.Evaluator,
		settings:     opts.Settings.normalize(),
		parseOptions: opts.Parse.normalize(),
	}
	if wb.cache == nil {
		wb.cache = NewParsedFormulaCache()
	}
	if wb.evaluator == nil {
		wb.evaluator = NewEvaluator()
	}
	return wb
}

func (wb *Workbook) formatOptions() *FormatOptions {
	return &FormatOptions{
		DecimalSeparator:  wb.parseOptions.DecimalSeparator,
		ArgumentSeparator: wb.parseOptions.ArgumentSeparator,
	}
}

func (wb *Workbook) sheet(name string) (*worksheet, bool) {
	ws, ok := wb.byName[strings.ToUpper(name)]
	return ws, ok
}

func (wb *Workbook) sheetByID(id uint32) (*worksheet, bool) {
	for _, ws := range wb.sheets {
		if ws.id == id {
			return ws, true
		}
	}
	return nil, false
}

func (wb *Workbook) sheetIndex(name string) int {
	return slices.IndexFunc(wb.sheets, func(ws *worksheet) bool { return strings.EqualFold(ws.name, name) })
}

func validSheetName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return NewApplicationError(InvalidArgument, "worksheet name is empty")
	case utf8.RuneCountInString(name) > maxSheetNameLength:
		return NewApplicationError(InvalidArgument, fmt.Sprintf("worksheet name %q is longer than %d characters", name, maxSheetNameLength))
	case strings.ContainsAny(name, `[]:*?/\`):
		return NewApplicationError(InvalidArgument, fmt.Sprintf("worksheet name %q contains a reserved character", name))
	case strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'"):
		return NewApplicationError(InvalidArgument, fmt.Sprintf("worksheet name %q starts or ends with a quote", name))
	}
	return nil
}

// AddWorksheet appends a worksheet
func (wb *Workbook) AddWorksheet(name string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if err := validSheetName(name); err != nil {
		return err
	}
	if _, exists := wb.sheet(name); exists {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("worksheet %q already exists", name))
	}
	ws := newWorksheet(wb.nextSheetID, name, wb.pool)
	wb.nextSheetID++
	wb.sheets = append(wb.sheets, ws)
	wb.byName[strings.ToUpper(name)] = ws
	// formulas that referenced a missing sheet of this name now resolve
	clear(wb.results)
	return nil
}

// RemoveWorksheet deletes a worksheet with its cells, sheet scoped names
// and tables. formulas elsewhere that point at it evaluate to #REF!.
func (wb *Workbook) RemoveWorksheet(name string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	ws, exists := wb.sheet(name)
	if !exists {
		return NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", name))
	}
	ws.drop(func(id uint32) { wb.cache.Release(id) })
	wb.sheets = slices.DeleteFunc(wb.sheets, func(s *worksheet) bool { return s == ws })
	delete(wb.byName, strings.ToUpper(ws.name))
	wb.names.removeScope(ws.id)
	for key, t := range wb.tables {
		if t.sheet == ws.id {
			delete(wb.tables, key)
		}
	}
	wb.graph.removeSheet(ws.id)
	clear(wb.results)
	return nil
}

// RenameWorksheet renames a worksheet and rewrites every formula and
// defined name that refers to it by name
func (wb *Workbook) RenameWorksheet(oldName, newName string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	ws, exists := wb.sheet(oldName)
	if !exists {
		return NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", oldName))
	}
	if err := validSheetName(newName); err != nil {
		return err
	}
	if other, taken := wb.sheet(newName); taken && other != ws {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("worksheet %q already exists", newName))
	}

	previous := ws.name
	type rewrite struct {
		sheet    *worksheet
		row, col int
		id       uint32
	}
	// intern every rewritten formula before touching a cell so a failure
	// leaves the workbook as it was
	var rewrites []rewrite
	var failed error
	for _, sheet := range wb.sheets {
		sheet.formulaCells(func(row, col int, id uint32) {
			if failed != nil {
				return
			}
			expr, ok := wb.cache.Get(id)
			if !ok {
				return
			}
			renamed, changed := renameSheet(expr, previous, newName)
			if !changed {
				return
			}
			newID, _, err := wb.cache.Intern(Format(renamed, wb.formatOptions()), &wb.parseOptions)
			if err != nil {
				failed = wrapApplicationError(InvalidArgument, err, "rewriting formula in %s!%s%d", QuoteSheetName(sheet.name), ColumnName(col), row)
				return
			}
			rewrites = append(rewrites, rewrite{sheet, row, col, newID})
		})
	}
	if failed != nil {
		for _, rw := range rewrites {
			wb.cache.Release(rw.id)
		}
		return failed
	}
	for _, rw := range rewrites {
		if old := rw.sheet.set(rw.row, rw.col, Value{}, rw.id); old != 0 {
			wb.cache.Release(old)
		}
	}
	for _, scope := range append([]uint32{0}, wb.sheetIDs()...) {
		for _, def := range wb.names.list(scope) {
			if renamed, changed := renameSheet(def.expr, previous, newName); changed {
				wb.names.define(scope, def.name, Format(renamed, wb.formatOptions()), renamed)
			}
		}
	}

	delete(wb.byName, strings.ToUpper(previous))
	ws.name = newName
	wb.byName[strings.ToUpper(newName)] = ws
	clear(wb.results)
	return nil
}

func (wb *Workbook) sheetIDs() []uint32 {
	ids := make([]uint32, len(wb.sheets))
	for i, ws := range wb.sheets {
		ids[i] = ws.id
	}
	return ids
}

// ListWorksheets returns the worksheet names in tab order
func (wb *Workbook) ListWorksheets() []string {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	names := make([]string, len(wb.sheets))
	for i, ws := range wb.sheets {
		names[i] = ws.name
	}
	return names
}

// Dimensions returns the largest row and column ever written on a sheet
func (wb *Workbook) Dimensions(sheet string) (rows, cols int, err error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	ws, ok := wb.sheet(sheet)
	if !ok {
		return 0, 0, NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", sheet))
	}
	rows, cols = ws.UsedExtent()
	return rows, cols, nil
}

// resolveAddress reads "Sheet1!B2", "'My Sheet'!B2" or "B2". an
// unqualified address refers to the first worksheet.
func (wb *Workbook) resolveAddress(address string) (*worksheet, int, int, error) {
	sheetName, cell := "", strings.TrimSpace(address)
	if i := strings.LastIndexByte(cell, '!'); i >= 0 {
		sheetName, cell = unquoteSheetName(cell[:i]), cell[i+1:]
	}
	addr, ok := parseA1Cell(cell)
	if !ok {
		return nil, 0, 0, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid address %q", address))
	}
	if addr.Row < 1 || addr.Row > MaxRows || addr.Column < 1 || addr.Column > MaxColumns {
		return nil, 0, 0, NewApplicationError(OutOfRange, fmt.Sprintf("address %q is outside the grid", address))
	}
	if sheetName == "" {
		if len(wb.sheets) == 0 {
			return nil, 0, 0, NewApplicationError(FailedPrecondition, "workbook has no worksheets")
		}
		return wb.sheets[0], addr.Row, addr.Column, nil
	}
	ws, exists := wb.sheet(sheetName)
	if !exists {
		return nil, 0, 0, NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", sheetName))
	}
	return ws, addr.Row, addr.Column, nil
}

func unquoteSheetName(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

// Set stores content in a cell. a string starting with "=" is a formula;
// nil or Blank empties the cell. numbers of any Go numeric type, bools,
// strings, ErrorCode, time.Time and scalar Values are accepted.
func (wb *Workbook) Set(address string, content any) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	ws, row, col, err := wb.resolveAddress(address)
	if err != nil {
		return err
	}
	return wb.set(ws, row, col, content)
}

// Remove empties a cell
func (wb *Workbook) Remove(address string) error {
	return wb.Set(address, nil)
}

func (wb *Workbook) set(ws *worksheet, row, col int, content any) error {
	key := cellKey{sheet: ws.id, row: uint32(row), col: uint32(col)}

	if text, ok := content.(string); ok && len(text) > 1 && text[0] == '=' {
		id, expr, err := wb.cache.Intern(text[1:], &wb.parseOptions)
		if err != nil {
			return wrapApplicationError(InvalidArgument, err, "invalid formula in %s!%s%d", QuoteSheetName(ws.name), ColumnName(col), row)
		}
		if old := ws.set(row, col, Value{}, id); old != 0 {
			wb.cache.Release(old)
		}
		wb.graph.clearPrecedents(key)
		wb.graph.setVolatile(key, wb.isVolatile(expr))
		wb.invalidate(key)
		return nil
	}

	v, err := cellValueOf(content, wb.settings)
	if err != nil {
		return err
	}
	var old uint32
	if v.IsBlank() {
		old = ws.remove(row, col)
	} else {
		old = ws.set(row, col, v, 0)
	}
	if old != 0 {
		wb.cache.Release(old)
	}
	wb.graph.clearPrecedents(key)
	wb.graph.setVolatile(key, false)
	wb.invalidate(key)
	return nil
}

// cellValueOf converts Go content to a cell constant
func cellValueOf(content any, settings CalculationSettings) (Value, error) {
	switch x := content.(type) {
	case nil:
		return Blank(), nil
	case Value:
		if x.IsArray() || x.IsReference() {
			return Value{}, NewApplicationError(InvalidArgument, "a cell holds a single value")
		}
		return x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ErrorValue(ErrorCodeNum), nil
		}
		return Number(x), nil
	case float32:
		return cellValueOf(float64(x), settings)
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case bool:
		return Boolean(x), nil
	case string:
		return Text(x), nil
	case ErrorCode:
		return ErrorValue(x), nil
	case time.Time:
		return Number(settings.serialFromTime(x)), nil
	}
	return Value{}, NewApplicationError(InvalidArgument, fmt.Sprintf("unsupported cell content %T", content))
}

func (wb *Workbook) isVolatile(expr Expression) bool {
	volatile := false
	Walk(expr, func(e Expression) bool {
		call, ok := e.(*FunctionCallExpr)
		if !ok {
			return true
		}
		if fn, ok := wb.evaluator.Registry().TryGetFunction(call.Name); ok && fn.IsVolatile() {
			volatile = true
			return false
		}
		return true
	})
	return volatile
}

// invalidate drops cached results of everything that read the given cells
func (wb *Workbook) invalidate(keys ...cellKey) {
	for k := range wb.graph.affected(keys...) {
		delete(wb.results, k)
	}
}

// Get returns the value of a cell, evaluating its formula if the cached
// result is stale. a formula may produce an array.
func (wb *Workbook) Get(address string) (Value, error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	ws, row, col, err := wb.resolveAddress(address)
	if err != nil {
		return Value{}, err
	}
	return wb.newCalculation().cell(ws, row, col), nil
}

// Formula returns the formula of a cell with a leading "=", or false for a
// constant or empty cell
func (wb *Workbook) Formula(address string) (string, bool, error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	ws, row, col, err := wb.resolveAddress(address)
	if err != nil {
		return "", false, err
	}
	entry, ok := ws.get(row, col)
	if !ok || entry.formula == 0 {
		return "", false, nil
	}
	expr, ok := wb.cache.Get(entry.formula)
	if !ok {
		return "", false, NewApplicationError(Internal, "formula missing from cache")
	}
	fo := wb.formatOptions()
	fo.IncludeLeadingEquals = true
	return Format(expr, fo), true, nil
}

// FormulaCells returns the addresses of the formula cells on a sheet in
// row-major order
func (wb *Workbook) FormulaCells(sheet string) ([]CellAddress, error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	ws, ok := wb.sheet(sheet)
	if !ok {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", sheet))
	}
	var out []CellAddress
	ws.formulaCells(func(row, col int, _ uint32) {
		out = append(out, CellAddress{Sheet: ws.name, Row: row, Column: col})
	})
	slices.SortFunc(out, func(a, b CellAddress) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Column - b.Column
	})
	return out, nil
}

// Evaluate evaluates a formula that is not stored in the workbook as if it
// sat in the cell at address. an empty address means A1 of the first
// worksheet.
func (wb *Workbook) Evaluate(formula, address string) (Value, error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	expr, err := wb.cache.Parse(formula, &wb.parseOptions)
	if err != nil {
		return Value{}, wrapApplicationError(InvalidArgument, err, "invalid formula")
	}
	if address == "" {
		address = "A1"
	}
	ws, row, col, err := wb.resolveAddress(address)
	if err != nil {
		return Value{}, err
	}
	s := wb.newCalculation()
	return wb.evaluator.Evaluate(expr, s.context(ws, row, col), s), nil
}

// Calculate refreshes volatile formulas and evaluates every formula cell
// whose cached result is stale
func (wb *Workbook) Calculate() {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	wb.invalidate(wb.graph.volatile()...)
	s := wb.newCalculation()
	for _, ws := range wb.sheets {
		ws.formulaCells(func(row, col int, _ uint32) {
			s.cell(ws, row, col)
		})
	}
}

// DefineName binds a name to a formula, usually a reference such as
// "Sheet1!$A$1:$A$10". an empty scope makes a workbook name, otherwise the
// name is local to that worksheet.
func (wb *Workbook) DefineName(name, formula, scope string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if !validName(name) {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("invalid name %q", name))
	}
	scopeID, err := wb.scopeID(scope)
	if err != nil {
		return err
	}
	expr, err := Parse(formula, &wb.parseOptions)
	if err != nil {
		return wrapApplicationError(InvalidArgument, err, "invalid definition of %s", name)
	}
	wb.names.define(scopeID, name, formula, expr)
	clear(wb.results)
	return nil
}

// RemoveName deletes a defined name
func (wb *Workbook) RemoveName(name, scope string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	scopeID, err := wb.scopeID(scope)
	if err != nil {
		return err
	}
	if !wb.names.remove(scopeID, name) {
		return NewApplicationError(NotFound, fmt.Sprintf("name %q not found", name))
	}
	clear(wb.results)
	return nil
}

// RenameName renames a defined name. formulas using the old name evaluate
// to #NAME? afterwards.
func (wb *Workbook) RenameName(oldName, newName, scope string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if !validName(newName) {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("invalid name %q", newName))
	}
	scopeID, err := wb.scopeID(scope)
	if err != nil {
		return err
	}
	if _, ok := wb.names.lookup(scopeID, oldName); !ok {
		return NewApplicationError(NotFound, fmt.Sprintf("name %q not found", oldName))
	}
	if !wb.names.rename(scopeID, oldName, newName) {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("name %q already exists", newName))
	}
	clear(wb.results)
	return nil
}

// ListNames returns the names defined in a scope
func (wb *Workbook) ListNames(scope string) ([]string, error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	scopeID, err := wb.scopeID(scope)
	if err != nil {
		return nil, err
	}
	defs := wb.names.list(scopeID)
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.name
	}
	return out, nil
}

func (wb *Workbook) scopeID(scope string) (uint32, error) {
	if scope == "" {
		return 0, nil
	}
	ws, ok := wb.sheet(scope)
	if !ok {
		return 0, NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", scope))
	}
	return ws.id, nil
}

// DefineTable adds a structured table
func (wb *Workbook) DefineTable(t Table) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if !validName(t.Name) {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("invalid table name %q", t.Name))
	}
	if _, exists := wb.tables[strings.ToUpper(t.Name)]; exists {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("table %q already exists", t.Name))
	}
	ws, ok := wb.sheet(t.Sheet)
	if !ok {
		return NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", t.Sheet))
	}
	first, last, found := strings.Cut(t.Range, ":")
	start, ok1 := parseA1Cell(strings.TrimSpace(first))
	end, ok2 := parseA1Cell(strings.TrimSpace(last))
	if !found || !ok1 || !ok2 {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("invalid table range %q", t.Range))
	}
	tb := &table{
		name:   t.Name,
		sheet:  ws.id,
		row1:   min(start.Row, end.Row),
		col1:   min(start.Column, end.Column),
		row2:   max(start.Row, end.Row),
		col2:   max(start.Column, end.Column),
		totals: t.HasTotals,
	}
	if tb.totals && tb.row2 == tb.row1 {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("table %q has no room for a totals row", t.Name))
	}

	width := tb.col2 - tb.col1 + 1
	columns := t.Columns
	if columns == nil {
		columns = make([]string, width)
		for i := range columns {
			columns[i] = headerText(ws, tb.row1, tb.col1+i)
		}
	}
	if len(columns) != width {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("table %q has %d columns but %d names", t.Name, width, len(columns)))
	}
	for i, c := range columns {
		if slices.IndexFunc(columns[:i], func(p string) bool { return strings.EqualFold(p, c) }) >= 0 {
			return NewApplicationError(InvalidArgument, fmt.Sprintf("table %q repeats column %q", t.Name, c))
		}
	}
	tb.columns = slices.Clone(columns)
	wb.tables[strings.ToUpper(t.Name)] = tb
	clear(wb.results)
	return nil
}

// headerText reads a header cell as text; empty headers get a positional
// name
func headerText(ws *worksheet, row, col int) string {
	entry, ok := ws.get(row, col)
	if ok && entry.formula == 0 {
		if s, errv := coerceText(entry.value); !errv.IsError() && s != "" {
			return s
		}
	}
	return fmt.Sprintf("Column%d", col)
}

// RemoveTable deletes a table definition; the cells stay
func (wb *Workbook) RemoveTable(name string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	key := strings.ToUpper(name)
	if _, ok := wb.tables[key]; !ok {
		return NewApplicationError(NotFound, fmt.Sprintf("table %q not found", name))
	}
	delete(wb.tables, key)
	clear(wb.results)
	return nil
}

// ListTables returns the table names sorted
func (wb *Workbook) ListTables() []string {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	out := make([]string, 0, len(wb.tables))
	for _, t := range wb.tables {
		out = append(out, t.name)
	}
	slices.SortFunc(out, func(a, b string) int { return strings.Compare(strings.ToUpper(a), strings.ToUpper(b)) })
	return out
}

// CacheStats reports formula cache hits and misses
func (wb *Workbook) CacheStats() (hits, misses uint64) {
	return wb.cache.Stats()
}

// renameSheet returns a copy of e with every reference to oldName pointing
// at newName. nodes without such references are shared with e.
func renameSheet(e Expression, oldName, newName string) (Expression, bool) {
	switch n := e.(type) {
	case *ReferenceExpr:
		if sheet, changed := renameSheetRef(n.Ref.Sheet, oldName, newName); changed {
			c := *n
			c.Ref.Sheet = sheet
			return &c, true
		}
	case *NameExpr:
		if sheet, changed := renameSheetRef(n.Sheet, oldName, newName); changed {
			c := *n
			c.Sheet = sheet
			return &c, true
		}
	case *FunctionCallExpr:
		args := make([]Expression, len(n.Args))
		renamed := false
		for i, a := range n.Args {
			var changed bool
			args[i], changed = renameSheet(a, oldName, newName)
			renamed = renamed || changed
		}
		if renamed {
			c := *n
			c.Args = args
			return &c, true
		}
	case *UnaryExpr:
		if operand, changed := renameSheet(n.Operand, oldName, newName); changed {
			c := *n
			c.Operand = operand
			return &c, true
		}
	case *BinaryExpr:
		left, lc := renameSheet(n.Left, oldName, newName)
		right, rc := renameSheet(n.Right, oldName, newName)
		if lc || rc {
			c := *n
			c.Left, c.Right = left, right
			return &c, true
		}
	}
	return e, false
}

func renameSheetRef(s *SheetRef, oldName, newName string) (*SheetRef, bool) {
	if s == nil || s.Workbook != "" {
		return s, false
	}
	out := *s
	changed := false
	if strings.EqualFold(out.First, oldName) {
		out.First = newName
		changed = true
	}
	if out.Last != "" && strings.EqualFold(out.Last, oldName) {
		out.Last = newName
		changed = true
	}
	return &out, changed
}
