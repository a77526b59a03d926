package formula

import (
	"strconv"
	"strings"
)

// grid limits of the xlsx format
const (
	MaxRows    = 1048576
	MaxColumns = 16384
)

// CellAddress identifies a single cell. rows and columns are 1-based; an
// empty sheet means the sheet of the evaluating cell.
type CellAddress struct {
	Sheet  string
	Row    int
	Column int
}

func (a CellAddress) String() string {
	cell := ColumnName(a.Column) + strconv.Itoa(a.Row)
	if a.Sheet == "" {
		return cell
	}
	return QuoteSheetName(a.Sheet) + "!" + cell
}

// ColumnName converts a 1-based column index to its letters, e.g. 28 -> "AB"
func ColumnName(col int) string {
	if col < 1 {
		return ""
	}
	var buf [4]byte
	i := len(buf)
	for col > 0 {
		col--
		i--
		buf[i] = byte('A' + col%26)
		col /= 26
	}
	return string(buf[i:])
}

// ColumnIndex converts column letters to a 1-based index. letters are
// case-insensitive.
func ColumnIndex(letters string) (int, bool) {
	if letters == "" || len(letters) > 3 {
		return 0, false
	}
	col := 0
	for i := 0; i < len(letters); i++ {
		ch := letters[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			col = col*26 + int(ch-'A'+1)
		case ch >= 'a' && ch <= 'z':
			col = col*26 + int(ch-'a'+1)
		default:
			return 0, false
		}
	}
	if col > MaxColumns {
		return 0, false
	}
	return col, true
}

// AddressMode selects A1 or R1C1 reference notation
type AddressMode uint8

const (
	AddressModeA1 AddressMode = iota
	AddressModeR1C1
)

func (m AddressMode) String() string {
	if m == AddressModeR1C1 {
		return "R1C1"
	}
	return "A1"
}

// ReferenceAddress is one corner of a reference. in R1C1 mode a relative
// axis stores an offset from the evaluating cell instead of a coordinate.
// AnyRow marks a whole-column reference (A:A) and AnyColumn a whole-row
// reference (1:1); the corresponding coordinate is then meaningless.
type ReferenceAddress struct {
	Row            int
	Column         int
	RowAbsolute    bool
	ColumnAbsolute bool
	Mode           AddressMode
	AnyRow         bool
	AnyColumn      bool
}

func (a ReferenceAddress) String() string {
	if a.Mode == AddressModeR1C1 {
		return a.r1c1()
	}
	return a.a1()
}

func (a ReferenceAddress) a1() string {
	var sb strings.Builder
	if !a.AnyColumn {
		if a.ColumnAbsolute {
			sb.WriteByte('$')
		}
		sb.WriteString(ColumnName(a.Column))
	}
	if !a.AnyRow {
		if a.RowAbsolute {
			sb.WriteByte('$')
		}
		sb.WriteString(strconv.Itoa(a.Row))
	}
	return sb.String()
}

func (a ReferenceAddress) r1c1() string {
	var sb strings.Builder
	axis := func(prefix byte, n int, abs bool) {
		sb.WriteByte(prefix)
		switch {
		case abs:
			sb.WriteString(strconv.Itoa(n))
		case n != 0:
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(n))
			sb.WriteByte(']')
		}
	}
	if !a.AnyRow {
		axis('R', a.Row, a.RowAbsolute)
	}
	if !a.AnyColumn {
		axis('C', a.Column, a.ColumnAbsolute)
	}
	return sb.String()
}

// SheetRef qualifies a reference with a sheet or a sheet range, optionally
// inside another workbook
type SheetRef struct {
	Workbook string
	First    string
	Last     string // empty unless this is a sheet range
}

func (s *SheetRef) String() string {
	if s == nil {
		return ""
	}
	first := s.First
	if s.Workbook != "" {
		first = "[" + s.Workbook + "]" + first
	}
	out := QuoteSheetName(first)
	if s.Last != "" {
		out += ":" + QuoteSheetName(s.Last)
	}
	return out
}

// IsRange reports whether the qualifier spans several sheets
func (s *SheetRef) IsRange() bool {
	return s != nil && s.Last != "" && !strings.EqualFold(s.First, s.Last)
}

func (s *SheetRef) equal(o *SheetRef) bool {
	if s == nil || o == nil {
		return s == o
	}
	return strings.EqualFold(s.Workbook, o.Workbook) &&
		strings.EqualFold(s.First, o.First) &&
		strings.EqualFold(s.Last, o.Last)
}

// QuoteSheetName quotes a sheet name when it contains anything outside
// [A-Za-z0-9_.] or starts with a digit
func QuoteSheetName(name string) string {
	if !needsQuote(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func needsQuote(name string) bool {
	if name == "" {
		return true
	}
	if name[0] >= '0' && name[0] <= '9' {
		return true
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if !isASCIILetter(ch) && !isDigit(ch) && ch != '_' && ch != '.' {
			return true
		}
	}
	return false
}

// Reference is a cell or a rectangular range. a nil Sheet means the sheet
// of the evaluating cell.
type Reference struct {
	Sheet *SheetRef
	Start ReferenceAddress
	End   ReferenceAddress
}

// CellReference creates an absolute single-cell reference
func CellReference(sheet string, row, col int) Reference {
	return RangeReference(sheet, row, col, row, col)
}

// RangeReference creates an absolute rectangular reference
func RangeReference(sheet string, row1, col1, row2, col2 int) Reference {
	r := Reference{
		Start: ReferenceAddress{Row: row1, Column: col1, RowAbsolute: true, ColumnAbsolute: true},
		End:   ReferenceAddress{Row: row2, Column: col2, RowAbsolute: true, ColumnAbsolute: true},
	}
	if sheet != "" {
		r.Sheet = &SheetRef{First: sheet}
	}
	return r
}

// IsCell reports whether the reference names exactly one cell
func (r Reference) IsCell() bool {
	return !r.Start.AnyRow && !r.Start.AnyColumn &&
		r.Start.Row == r.End.Row && r.Start.Column == r.End.Column &&
		r.Start.RowAbsolute == r.End.RowAbsolute && r.Start.ColumnAbsolute == r.End.ColumnAbsolute
}

// Normalize converts R1C1 offsets into coordinates relative to at, expands
// whole rows and columns to the grid bounds and orders the corners. the
// result uses A1 coordinates. ok is false when a corner falls off the grid.
func (r Reference) Normalize(at CellAddress) (Reference, bool) {
	start, ok1 := r.Start.resolve(at)
	end, ok2 := r.End.resolve(at)
	if !ok1 || !ok2 {
		return Reference{}, false
	}
	if start.Row > end.Row {
		start.Row, end.Row = end.Row, start.Row
		start.RowAbsolute, end.RowAbsolute = end.RowAbsolute, start.RowAbsolute
	}
	if start.Column > end.Column {
		start.Column, end.Column = end.Column, start.Column
		start.ColumnAbsolute, end.ColumnAbsolute = end.ColumnAbsolute, start.ColumnAbsolute
	}
	return Reference{Sheet: r.Sheet, Start: start, End: end}, true
}

func (a ReferenceAddress) resolve(at CellAddress) (ReferenceAddress, bool) {
	out := a
	out.Mode = AddressModeA1
	switch {
	case a.AnyRow:
		out.Row = 1
	case a.Mode == AddressModeR1C1 && !a.RowAbsolute:
		out.Row = at.Row + a.Row
	}
	switch {
	case a.AnyColumn:
		out.Column = 1
	case a.Mode == AddressModeR1C1 && !a.ColumnAbsolute:
		out.Column = at.Column + a.Column
	}
	if out.Row < 1 || out.Row > MaxRows || out.Column < 1 || out.Column > MaxColumns {
		return out, false
	}
	return out, true
}

// bounds returns the corners of a normalized reference with whole rows and
// columns expanded to the grid limits
func (r Reference) bounds() (row1, col1, row2, col2 int) {
	row1, col1, row2, col2 = r.Start.Row, r.Start.Column, r.End.Row, r.End.Column
	if r.Start.AnyRow || r.End.AnyRow {
		row1, row2 = 1, MaxRows
	}
	if r.Start.AnyColumn || r.End.AnyColumn {
		col1, col2 = 1, MaxColumns
	}
	return
}

// Bounds returns the 1-based corners of a normalized reference
func (r Reference) Bounds() (row1, col1, row2, col2 int) {
	return r.bounds()
}

// Rows returns the height of a normalized reference
func (r Reference) Rows() int {
	row1, _, row2, _ := r.bounds()
	return row2 - row1 + 1
}

// Columns returns the width of a normalized reference
func (r Reference) Columns() int {
	_, col1, _, col2 := r.bounds()
	return col2 - col1 + 1
}

// SheetName returns the single sheet the reference points at, or current
// when it is unqualified
func (r Reference) SheetName(current string) string {
	if r.Sheet == nil {
		return current
	}
	return r.Sheet.First
}

// TopLeft returns the first cell of a normalized reference
func (r Reference) TopLeft(current string) CellAddress {
	row1, col1, _, _ := r.bounds()
	return CellAddress{Sheet: r.SheetName(current), Row: row1, Column: col1}
}

// Contains reports whether a normalized reference covers the cell
func (r Reference) Contains(row, col int) bool {
	row1, col1, row2, col2 := r.bounds()
	return row >= row1 && row <= row2 && col >= col1 && col <= col2
}

// Intersect returns the overlap of two normalized references on the same
// sheet
func (r Reference) Intersect(o Reference, current string) (Reference, bool) {
	if r.Sheet.IsRange() || o.Sheet.IsRange() {
		return Reference{}, false
	}
	if !strings.EqualFold(r.SheetName(current), o.SheetName(current)) {
		return Reference{}, false
	}
	a1, b1, a2, b2 := r.bounds()
	c1, d1, c2, d2 := o.bounds()
	row1, col1 := max(a1, c1), max(b1, d1)
	row2, col2 := min(a2, c2), min(b2, d2)
	if row1 > row2 || col1 > col2 {
		return Reference{}, false
	}
	out := RangeReference("", row1, col1, row2, col2)
	out.Sheet = r.Sheet
	return out, true
}

// Offset shifts a normalized reference and resizes it to height x width
func (r Reference) Offset(rows, cols, height, width int) (Reference, bool) {
	row1, col1, _, _ := r.bounds()
	row1 += rows
	col1 += cols
	row2 := row1 + height - 1
	col2 := col1 + width - 1
	if height < 1 || width < 1 || row1 < 1 || col1 < 1 || row2 > MaxRows || col2 > MaxColumns {
		return Reference{}, false
	}
	out := RangeReference("", row1, col1, row2, col2)
	out.Sheet = r.Sheet
	return out, true
}

// Equal compares two references structurally
func (r Reference) Equal(o Reference) bool {
	return r.Sheet.equal(o.Sheet) && r.Start == o.Start && r.End == o.End
}

func (r Reference) String() string {
	var sb strings.Builder
	if r.Sheet != nil {
		sb.WriteString(r.Sheet.String())
		sb.WriteByte('!')
	}
	sb.WriteString(r.Start.String())
	if !r.IsCell() || r.Start.AnyRow || r.Start.AnyColumn {
		sb.WriteByte(':')
		sb.WriteString(r.End.String())
	}
	return sb.String()
}

// parseA1Address parses "$A$1", "A" (whole column) or "1" (whole row)
func parseA1Address(s string) (ReferenceAddress, bool) {
	var addr ReferenceAddress
	i := 0
	colAbs := false
	if i < len(s) && s[i] == '$' {
		colAbs = true
		i++
	}
	j := i
	for j < len(s) && isASCIILetter(s[j]) {
		j++
	}
	letters := s[i:j]
	i = j
	rowAbs := false
	if i < len(s) && s[i] == '$' {
		rowAbs = true
		i++
	}
	j = i
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	digits := s[i:j]
	if j != len(s) || (letters == "" && digits == "") {
		return addr, false
	}
	if letters == "" {
		// whole row, a lone "$" before the digits belongs to the row
		if rowAbs || colAbs {
			addr.RowAbsolute = true
		}
		if rowAbs && colAbs {
			return addr, false
		}
		addr.AnyColumn = true
	} else {
		col, ok := ColumnIndex(letters)
		if !ok {
			return addr, false
		}
		addr.Column = col
		addr.ColumnAbsolute = colAbs
	}
	if digits == "" {
		if rowAbs {
			return addr, false
		}
		addr.AnyRow = true
	} else if letters != "" {
		addr.RowAbsolute = rowAbs
	}
	if digits != "" {
		row, err := strconv.Atoi(digits)
		if err != nil || row < 1 || row > MaxRows {
			return addr, false
		}
		addr.Row = row
	}
	return addr, true
}

// parseA1Cell parses a full A1 cell address, rejecting partial forms
func parseA1Cell(s string) (ReferenceAddress, bool) {
	addr, ok := parseA1Address(s)
	if !ok || addr.AnyRow || addr.AnyColumn {
		return addr, false
	}
	return addr, true
}

// parseR1C1Address parses R1C1 notation: R2C3, R[-1]C, RC[2], R2 (whole
// row) and C3 (whole column)
func parseR1C1Address(s string) (ReferenceAddress, bool) {
	addr := ReferenceAddress{Mode: AddressModeR1C1}
	i := 0
	hasRow, hasCol := false, false
	if i < len(s) && (s[i] == 'R' || s[i] == 'r') {
		hasRow = true
		i++
		n, abs, next, ok := parseR1C1Axis(s, i)
		if !ok {
			return addr, false
		}
		addr.Row, addr.RowAbsolute, i = n, abs, next
	}
	if i < len(s) && (s[i] == 'C' || s[i] == 'c') {
		hasCol = true
		i++
		n, abs, next, ok := parseR1C1Axis(s, i)
		if !ok {
			return addr, false
		}
		addr.Column, addr.ColumnAbsolute, i = n, abs, next
	}
	if i != len(s) || (!hasRow && !hasCol) {
		return addr, false
	}
	if addr.RowAbsolute && (addr.Row < 1 || addr.Row > MaxRows) {
		return addr, false
	}
	if addr.ColumnAbsolute && (addr.Column < 1 || addr.Column > MaxColumns) {
		return addr, false
	}
	addr.AnyRow = !hasRow
	addr.AnyColumn = !hasCol
	return addr, true
}

func parseR1C1Axis(s string, i int) (n int, abs bool, next int, ok bool) {
	if i < len(s) && s[i] == '[' {
		end := strings.IndexByte(s[i:], ']')
		if end < 0 {
			return 0, false, i, false
		}
		v, err := strconv.Atoi(s[i+1 : i+end])
		if err != nil {
			return 0, false, i, false
		}
		return v, false, i + end + 1, true
	}
	j := i
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	if j == i {
		// bare R or C is a zero offset
		return 0, false, i, true
	}
	v, err := strconv.Atoi(s[i:j])
	if err != nil {
		return 0, false, i, false
	}
	return v, true, j, true
}

// splitWorkbook splits "[Book.xlsx]Sheet1" into its workbook and sheet
func splitWorkbook(name string) (workbook, sheet string) {
	if strings.HasPrefix(name, "[") {
		if end := strings.IndexByte(name, ']'); end > 0 {
			return name[1:end], name[end+1:]
		}
	}
	return "", name
}

// StructuredScope selects which part of a table a structured reference
// covers
type StructuredScope uint8

const (
	ScopeData StructuredScope = iota
	ScopeAll
	ScopeHeaders
	ScopeTotals
	ScopeThisRow
)

var scopeNames = map[StructuredScope]string{
	ScopeData:    "#Data",
	ScopeAll:     "#All",
	ScopeHeaders: "#Headers",
	ScopeTotals:  "#Totals",
	ScopeThisRow: "#This Row",
}

// StructuredReference names table columns, e.g. Table1[[#Headers],[Price]].
// resolution is left to a StructuredReferenceResolver.
type StructuredReference struct {
	Table   string
	Columns []string // none, one, or a first:last pair
	Scope   StructuredScope
}

func (s StructuredReference) Equal(o StructuredReference) bool {
	if !strings.EqualFold(s.Table, o.Table) || s.Scope != o.Scope || len(s.Columns) != len(o.Columns) {
		return false
	}
	for i := range s.Columns {
		if !strings.EqualFold(s.Columns[i], o.Columns[i]) {
			return false
		}
	}
	return true
}

func (s StructuredReference) String() string {
	var sb strings.Builder
	sb.WriteString(s.Table)
	if s.Scope == ScopeThisRow && len(s.Columns) == 1 {
		sb.WriteString("[@" + s.Columns[0] + "]")
		return sb.String()
	}
	var parts []string
	if s.Scope != ScopeData || len(s.Columns) == 0 {
		parts = append(parts, "["+scopeNames[s.Scope]+"]")
	}
	switch len(s.Columns) {
	case 1:
		parts = append(parts, "["+s.Columns[0]+"]")
	case 2:
		parts = append(parts, "["+s.Columns[0]+"]:["+s.Columns[1]+"]")
	}
	if len(parts) == 1 && len(s.Columns) < 2 {
		sb.WriteString(parts[0])
		return sb.String()
	}
	sb.WriteString("[" + strings.Join(parts, ",") + "]")
	return sb.String()
}

// parseStructuredReference parses Table[Col], Table[[#Headers],[Col]],
// Table[[A]:[B]], Table[#All] and [@Col]
func parseStructuredReference(text string) (StructuredReference, bool) {
	open := strings.IndexByte(text, '[')
	if open < 0 || !strings.HasSuffix(text, "]") {
		return StructuredReference{}, false
	}
	ref := StructuredReference{Table: text[:open]}
	body := text[open+1 : len(text)-1]
	if strings.HasPrefix(body, "@") {
		col := strings.TrimPrefix(body, "@")
		col = strings.TrimSuffix(strings.TrimPrefix(col, "["), "]")
		ref.Scope = ScopeThisRow
		if col != "" {
			ref.Columns = []string{col}
		}
		return ref, true
	}
	if !strings.HasPrefix(body, "[") {
		return applyStructuredItem(ref, body)
	}
	// nested form: [item],[item] or [a]:[b]
	var items []string
	for i := 0; i < len(body); {
		switch body[i] {
		case '[':
			end := strings.IndexByte(body[i:], ']')
			if end < 0 {
				return ref, false
			}
			items = append(items, body[i+1:i+end])
			i += end + 1
		case ',', ' ':
			i++
		case ':':
			if len(items) == 0 || i+1 >= len(body) || body[i+1] != '[' {
				return ref, false
			}
			end := strings.IndexByte(body[i+1:], ']')
			if end < 0 {
				return ref, false
			}
			last := body[i+2 : i+1+end]
			if strings.HasPrefix(items[len(items)-1], "#") {
				return ref, false
			}
			ref.Columns = append(ref.Columns, items[len(items)-1], last)
			items = items[:len(items)-1]
			i += end + 2
		default:
			return ref, false
		}
	}
	for _, item := range items {
		var ok bool
		if ref, ok = applyStructuredItem(ref, item); !ok {
			return ref, false
		}
	}
	return ref, true
}

func applyStructuredItem(ref StructuredReference, item string) (StructuredReference, bool) {
	if strings.HasPrefix(item, "#") {
		for scope, name := range scopeNames {
			if strings.EqualFold(name, item) {
				ref.Scope = scope
				return ref, true
			}
		}
		return ref, false
	}
	if item == "" {
		return ref, true
	}
	if len(ref.Columns) > 0 {
		return ref, false
	}
	ref.Columns = []string{item}
	return ref, true
}

func isASCIILetter(ch byte) bool {
	return ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
