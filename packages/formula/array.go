package formula

import (
	"fmt"
	"iter"
	"strings"
)

// largest array a function builds or a range materializes, about 256MB of
// values
const maxArrayCells = 1 << 22

// Array is an immutable rows x cols grid of values stored row-major. an
// optional presence mask marks gaps produced by dynamic array functions; a
// gap always reads as Blank. the optional origin is the sheet address of the
// top-left cell and is used for implicit intersection and slicing.
type Array struct {
	rows    int
	cols    int
	values  []Value
	present []bool // nil means every cell is present
	origin  *CellAddress
}

// NewArray creates an array from row-major values. it panics when the value
// count does not match the shape, which is always a programming error.
func NewArray(rows, cols int, values []Value) *Array {
	if rows < 1 || cols < 1 || len(values) != rows*cols {
		panic(fmt.Sprintf("formula: invalid array shape %dx%d for %d values", rows, cols, len(values)))
	}
	cp := make([]Value, len(values))
	copy(cp, values)
	return &Array{rows: rows, cols: cols, values: cp}
}

// NewMaskedArray creates an array with a presence mask. a nil mask is the
// same as NewArray.
func NewMaskedArray(rows, cols int, values []Value, present []bool) *Array {
	a := NewArray(rows, cols, values)
	if present == nil {
		return a
	}
	if len(present) != len(values) {
		panic(fmt.Sprintf("formula: mask length %d does not match %d values", len(present), len(values)))
	}
	a.present = make([]bool, len(present))
	copy(a.present, present)
	for i, ok := range a.present {
		if !ok {
			a.values[i] = Value{}
		}
	}
	return a
}

// ArrayFromRows builds an array from a slice of equally sized rows
func ArrayFromRows(rows [][]Value) *Array {
	if len(rows) == 0 || len(rows[0]) == 0 {
		panic("formula: empty array")
	}
	cols := len(rows[0])
	values := make([]Value, 0, len(rows)*cols)
	for _, r := range rows {
		if len(r) != cols {
			panic("formula: ragged array rows")
		}
		values = append(values, r...)
	}
	return &Array{rows: len(rows), cols: cols, values: values}
}

// newArrayNoCopy takes ownership of values
func newArrayNoCopy(rows, cols int, values []Value, present []bool) *Array {
	return &Array{rows: rows, cols: cols, values: values, present: present}
}

func (a *Array) Rows() int    { return a.rows }
func (a *Array) Columns() int { return a.cols }
func (a *Array) Len() int     { return a.rows * a.cols }

// At returns the value at a zero-based position. positions outside the grid
// and masked gaps read as Blank.
func (a *Array) At(row, col int) Value {
	if row < 0 || col < 0 || row >= a.rows || col >= a.cols {
		return Value{}
	}
	idx := row*a.cols + col
	if a.present != nil && !a.present[idx] {
		return Value{}
	}
	return a.values[idx]
}

// IsPresent reports whether a cell holds a real value rather than a gap
func (a *Array) IsPresent(row, col int) bool {
	if row < 0 || col < 0 || row >= a.rows || col >= a.cols {
		return false
	}
	return a.present == nil || a.present[row*a.cols+col]
}

// HasMask reports whether the array carries a presence mask
func (a *Array) HasMask() bool { return a.present != nil }

// Origin returns the sheet address of the top-left cell, if known
func (a *Array) Origin() (CellAddress, bool) {
	if a.origin == nil {
		return CellAddress{}, false
	}
	return *a.origin, true
}

// WithOrigin returns a copy of the array anchored at addr
func (a *Array) WithOrigin(addr CellAddress) *Array {
	cp := *a
	cp.origin = &addr
	return &cp
}

// Values iterates every cell row by row. gaps are yielded as Blank.
func (a *Array) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for i, v := range a.values {
			if a.present != nil && !a.present[i] {
				v = Value{}
			}
			if !yield(v) {
				return
			}
		}
	}
}

// PresentValues iterates only the cells that are not gaps
func (a *Array) PresentValues() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for i, v := range a.values {
			if a.present != nil && !a.present[i] {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Row returns the zero-based row i as a 1 x cols array
func (a *Array) Row(i int) *Array {
	return a.Slice(i, 0, 1, a.cols)
}

// Column returns the zero-based column j as a rows x 1 array
func (a *Array) Column(j int) *Array {
	return a.Slice(0, j, a.rows, 1)
}

// Slice copies a height x width window starting at (row, col). the origin
// of the result is shifted accordingly.
func (a *Array) Slice(row, col, height, width int) *Array {
	values := make([]Value, 0, height*width)
	var present []bool
	if a.present != nil {
		present = make([]bool, 0, height*width)
	}
	for r := row; r < row+height; r++ {
		for c := col; c < col+width; c++ {
			values = append(values, a.At(r, c))
			if present != nil {
				present = append(present, a.IsPresent(r, c))
			}
		}
	}
	out := newArrayNoCopy(height, width, values, present)
	if a.origin != nil {
		o := CellAddress{Sheet: a.origin.Sheet, Row: a.origin.Row + row, Column: a.origin.Column + col}
		out.origin = &o
	}
	return out
}

// Transpose swaps rows and columns
func (a *Array) Transpose() *Array {
	values := make([]Value, a.rows*a.cols)
	var present []bool
	if a.present != nil {
		present = make([]bool, len(values))
	}
	for r := 0; r < a.rows; r++ {
		for c := 0; c < a.cols; c++ {
			values[c*a.rows+r] = a.values[r*a.cols+c]
			if present != nil {
				present[c*a.rows+r] = a.present[r*a.cols+c]
			}
		}
	}
	return newArrayNoCopy(a.cols, a.rows, values, present)
}

// Map applies fn to every present cell. gaps stay gaps and fn is never
// invoked for them.
func (a *Array) Map(fn func(Value) Value) *Array {
	return a.MapCells(func(_, _ int, v Value) Value { return fn(v) })
}

// MapCells is Map with the position of each cell
func (a *Array) MapCells(fn func(row, col int, v Value) Value) *Array {
	values := make([]Value, len(a.values))
	for i, v := range a.values {
		if a.present != nil && !a.present[i] {
			continue
		}
		values[i] = fn(i/a.cols, i%a.cols, v)
	}
	var present []bool
	if a.present != nil {
		present = make([]bool, len(a.present))
		copy(present, a.present)
	}
	out := newArrayNoCopy(a.rows, a.cols, values, present)
	out.origin = a.origin
	return out
}

// Equal reports whether both arrays have the same shape, mask and values
func (a *Array) Equal(o *Array) bool {
	if a == nil || o == nil {
		return a == o
	}
	if a.rows != o.rows || a.cols != o.cols {
		return false
	}
	for r := 0; r < a.rows; r++ {
		for c := 0; c < a.cols; c++ {
			if a.IsPresent(r, c) != o.IsPresent(r, c) {
				return false
			}
			if !a.At(r, c).Equal(o.At(r, c)) {
				return false
			}
		}
	}
	return true
}

// String renders the array with array-literal syntax
func (a *Array) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for r := 0; r < a.rows; r++ {
		if r > 0 {
			sb.WriteByte(';')
		}
		for c := 0; c < a.cols; c++ {
			if c > 0 {
				sb.WriteByte(',')
			}
			v := a.At(r, c)
			if v.IsText() {
				sb.WriteString(quoteText(v.Str()))
			} else {
				sb.WriteString(v.String())
			}
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

func quoteText(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ApplyImplicitIntersection reduces an array or reference to the single cell
// that shares the row or column of at. arrays without an origin reduce to
// their top-left cell. references are left untouched since they must be
// resolved first; see Evaluator.ApplyImplicitIntersection.
func ApplyImplicitIntersection(v Value, at CellAddress) Value {
	if !v.IsArray() {
		return v
	}
	a := v.Array()
	if a.rows == 1 && a.cols == 1 {
		return a.At(0, 0)
	}
	origin, ok := a.Origin()
	if !ok {
		return a.At(0, 0)
	}
	switch {
	case a.cols == 1:
		r := at.Row - origin.Row
		if r >= 0 && r < a.rows {
			return a.At(r, 0)
		}
	case a.rows == 1:
		c := at.Column - origin.Column
		if c >= 0 && c < a.cols {
			return a.At(0, c)
		}
	default:
		r, c := at.Row-origin.Row, at.Column-origin.Column
		if r >= 0 && r < a.rows && c >= 0 && c < a.cols {
			return a.At(r, c)
		}
	}
	return ErrorValue(ErrorCodeValue)
}
