package formula

import "strings"

func registerLookupFunctions(r *Registry) {
	r.mustRegister(
		NewEagerFunction("VLOOKUP", 3, 4, false, func(cc *CallContext, args []Value) Value {
			return tableLookup(cc, args, false)
		}),
		NewEagerFunction("HLOOKUP", 3, 4, false, func(cc *CallContext, args []Value) Value {
			return tableLookup(cc, args, true)
		}),
		NewEagerFunction("MATCH", 2, 3, false, match),
		NewEagerFunction("INDEX", 2, 3, false, index),
		NewEagerFunction("XLOOKUP", 3, 6, false, xlookup),
		NewEagerFunction("XMATCH", 2, 4, false, xmatch),
		NewLazyFunction("ROW", 0, 1, false, func(cc *CallContext, args []Expression) Value {
			return position(cc, args, true)
		}),
		NewLazyFunction("COLUMN", 0, 1, false, func(cc *CallContext, args []Expression) Value {
			return position(cc, args, false)
		}),
		NewLazyFunction("ROWS", 1, 1, false, func(cc *CallContext, args []Expression) Value {
			return extent(cc, args[0], true)
		}),
		NewLazyFunction("COLUMNS", 1, 1, false, func(cc *CallContext, args []Expression) Value {
			return extent(cc, args[0], false)
		}),
		NewLazyFunction("OFFSET", 3, 5, true, offset),
		NewLazyFunction("INDIRECT", 1, 2, true, indirect),
		NewEagerFunction("TRANSPOSE", 1, 1, false, func(cc *CallContext, args []Value) Value {
			if !args[0].IsArray() {
				return args[0]
			}
			return ArrayValue(args[0].array.Transpose())
		}),
	)
}

// match modes shared by the lookup functions
type matchMode int

const (
	matchExact matchMode = iota
	matchExactOrSmaller
	matchExactOrLarger
	matchWildcardExact
)

// lookupEqual reports whether a key matches the target exactly. text is
// compared case-insensitively and with wildcards when allowed.
func lookupEqual(cc *CallContext, target, key Value, wildcards bool) bool {
	if target.kind != key.kind {
		return false
	}
	if target.IsText() && wildcards && hasWildcard(target.text) {
		return matchWildcard(target.text, key.text)
	}
	return compareValues(target, key, cc.Comparer()) == 0
}

func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?~")
}

// approximateMatch returns the last key of the same kind that is <= target,
// or >= target when descending. -1 means no key qualifies.
func approximateMatch(cc *CallContext, target Value, keys []Value, descending bool) int {
	found := -1
	for i, k := range keys {
		if k.kind != target.kind {
			continue
		}
		c := compareValues(k, target, cc.Comparer())
		if (!descending && c <= 0) || (descending && c >= 0) {
			found = i
		}
	}
	return found
}

func exactMatch(cc *CallContext, target Value, keys []Value, wildcards bool) int {
	for i, k := range keys {
		if lookupEqual(cc, target, k, wildcards) {
			return i
		}
	}
	return -1
}

// vectorOf returns the cells of a single row or column
func vectorOf(a *Array) ([]Value, bool) {
	if a.rows != 1 && a.cols != 1 {
		return nil, false
	}
	out := make([]Value, 0, a.Len())
	for v := range a.Values() {
		out = append(out, v)
	}
	return out, true
}

func lookupTarget(v Value) Value {
	if v.IsArray() {
		return v.array.At(0, 0)
	}
	return v
}

// tableLookup implements VLOOKUP and HLOOKUP
func tableLookup(cc *CallContext, args []Value, horizontal bool) Value {
	target := lookupTarget(args[0])
	if target.IsError() {
		return target
	}
	if args[1].IsError() {
		return args[1]
	}
	table := toArray(args[1])
	if horizontal {
		table = table.Transpose()
	}
	n, errv := coerceInt(args[2])
	if errv.IsError() {
		return errv
	}
	approximate, errv := boolArg(args, 3, true)
	if errv.IsError() {
		return errv
	}
	if n < 1 {
		return ErrorValue(ErrorCodeValue)
	}
	if n > table.cols {
		return ErrorValue(ErrorCodeRef)
	}

	keys, _ := vectorOf(table.Column(0))
	var i int
	if approximate {
		i = approximateMatch(cc, target, keys, false)
	} else {
		i = exactMatch(cc, target, keys, true)
	}
	if i < 0 {
		return ErrorValue(ErrorCodeNA)
	}
	return lookupResult(table.At(i, n-1))
}

// lookupResult reads an empty result cell as 0
func lookupResult(v Value) Value {
	if v.IsBlank() {
		return Number(0)
	}
	return v
}

func match(cc *CallContext, args []Value) Value {
	target := lookupTarget(args[0])
	if target.IsError() {
		return target
	}
	if args[1].IsError() {
		return args[1]
	}
	keys, ok := vectorOf(toArray(args[1]))
	if !ok {
		return ErrorValue(ErrorCodeNA)
	}
	kind, errv := intArg(args, 2, 1)
	if errv.IsError() {
		return errv
	}
	var i int
	switch {
	case kind == 0:
		i = exactMatch(cc, target, keys, true)
	case kind > 0:
		i = approximateMatch(cc, target, keys, false)
	default:
		i = approximateMatch(cc, target, keys, true)
	}
	if i < 0 {
		return ErrorValue(ErrorCodeNA)
	}
	return Number(float64(i + 1))
}

// index returns a cell, or a whole row or column when one index is 0. a
// single row or column accepts one index for its only axis.
func index(cc *CallContext, args []Value) Value {
	if args[0].IsError() {
		return args[0]
	}
	a := toArray(args[0])
	row, errv := coerceInt(args[1])
	if errv.IsError() {
		return errv
	}
	col, errv := intArg(args, 2, 0)
	if errv.IsError() {
		return errv
	}
	if len(args) < 3 && a.rows == 1 && a.cols > 1 {
		row, col = 1, row
	}
	if len(args) < 3 && a.cols == 1 && col == 0 {
		col = 1
	}
	if row < 0 || col < 0 || row > a.rows || col > a.cols {
		return ErrorValue(ErrorCodeRef)
	}
	switch {
	case row == 0 && col == 0:
		return ArrayValue(a)
	case row == 0:
		return ArrayValue(a.Column(col - 1))
	case col == 0:
		return ArrayValue(a.Row(row - 1))
	}
	return lookupResult(a.At(row-1, col-1))
}

// xsearch scans keys in search order for the match mode. for the nearest
// modes an exact hit wins, then the closest key of the same kind.
func xsearch(cc *CallContext, target Value, keys []Value, mode matchMode, reverse bool) int {
	best := -1
	for n := range keys {
		i := n
		if reverse {
			i = len(keys) - 1 - n
		}
		k := keys[i]
		if lookupEqual(cc, target, k, mode == matchWildcardExact) {
			return i
		}
		if (mode != matchExactOrSmaller && mode != matchExactOrLarger) || k.kind != target.kind {
			continue
		}
		c := compareValues(k, target, cc.Comparer())
		if (mode == matchExactOrSmaller && c > 0) || (mode == matchExactOrLarger && c < 0) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		d := compareValues(k, keys[best], cc.Comparer())
		if (mode == matchExactOrSmaller && d > 0) || (mode == matchExactOrLarger && d < 0) {
			best = i
		}
	}
	return best
}

// xlookupModes reads the match and search mode arguments starting at i
func xlookupModes(args []Value, i int) (matchMode, bool, Value) {
	m, errv := intArg(args, i, 0)
	if errv.IsError() {
		return 0, false, errv
	}
	s, errv := intArg(args, i+1, 1)
	if errv.IsError() {
		return 0, false, errv
	}
	var mode matchMode
	switch m {
	case 0:
		mode = matchExact
	case -1:
		mode = matchExactOrSmaller
	case 1:
		mode = matchExactOrLarger
	case 2:
		mode = matchWildcardExact
	default:
		return 0, false, ErrorValue(ErrorCodeValue)
	}
	switch s {
	case 1, 2:
		return mode, false, Value{}
	case -1, -2:
		return mode, true, Value{}
	}
	return 0, false, ErrorValue(ErrorCodeValue)
}

func xlookup(cc *CallContext, args []Value) Value {
	target := lookupTarget(args[0])
	if target.IsError() {
		return target
	}
	if errv := firstError(args[1], args[2]); errv.IsError() {
		return errv
	}
	lookup := toArray(args[1])
	keys, ok := vectorOf(lookup)
	if !ok {
		return ErrorValue(ErrorCodeValue)
	}
	results := toArray(args[2])
	vertical := (lookup.cols == 1 && lookup.rows > 1) || (lookup.Len() == 1 && results.rows == 1)
	if (vertical && results.rows != len(keys)) || (!vertical && results.cols != len(keys)) {
		return ErrorValue(ErrorCodeValue)
	}
	mode, reverse, errv := xlookupModes(args, 4)
	if errv.IsError() {
		return errv
	}

	i := xsearch(cc, target, keys, mode, reverse)
	if i < 0 {
		if len(args) > 3 && !args[3].IsBlank() {
			return args[3]
		}
		return ErrorValue(ErrorCodeNA)
	}
	var out *Array
	if vertical {
		out = results.Row(i)
	} else {
		out = results.Column(i)
	}
	if out.Len() == 1 {
		return lookupResult(out.At(0, 0))
	}
	return ArrayValue(out)
}

func xmatch(cc *CallContext, args []Value) Value {
	target := lookupTarget(args[0])
	if target.IsError() {
		return target
	}
	if args[1].IsError() {
		return args[1]
	}
	keys, ok := vectorOf(toArray(args[1]))
	if !ok {
		return ErrorValue(ErrorCodeValue)
	}
	mode, reverse, errv := xlookupModes(args, 2)
	if errv.IsError() {
		return errv
	}
	i := xsearch(cc, target, keys, mode, reverse)
	if i < 0 {
		return ErrorValue(ErrorCodeNA)
	}
	return Number(float64(i + 1))
}

// singleArea evaluates a reference argument. anything but a one-area
// reference is a #VALUE! error.
func singleArea(cc *CallContext, e Expression) (Reference, Value) {
	v := cc.EvaluateRaw(e)
	if v.IsError() {
		return Reference{}, v
	}
	if !v.IsReference() || len(v.areas) != 1 {
		return Reference{}, ErrorValue(ErrorCodeValue)
	}
	return v.areas[0], Value{}
}

// position implements ROW and COLUMN. a multi-cell reference yields the
// numbers of every row (as a column) or every column (as a row).
func position(cc *CallContext, args []Expression, rows bool) Value {
	if len(args) == 0 || isBlankLiteral(args[0]) {
		if rows {
			return Number(float64(cc.Context.Address.Row))
		}
		return Number(float64(cc.Context.Address.Column))
	}
	ref, errv := singleArea(cc, args[0])
	if errv.IsError() {
		return errv
	}
	row1, col1, row2, col2 := ref.Bounds()
	first, last := col1, col2
	if rows {
		first, last = row1, row2
	}
	if first == last {
		return Number(float64(first))
	}
	values := make([]Value, 0, last-first+1)
	for i := first; i <= last; i++ {
		values = append(values, Number(float64(i)))
	}
	if rows {
		return ArrayValue(newArrayNoCopy(len(values), 1, values, nil))
	}
	return ArrayValue(newArrayNoCopy(1, len(values), values, nil))
}

func isBlankLiteral(e Expression) bool {
	lit, ok := e.(*LiteralExpr)
	return ok && lit.Value.IsBlank()
}

// extent implements ROWS and COLUMNS without resolving references
func extent(cc *CallContext, e Expression, rows bool) Value {
	v := cc.EvaluateRaw(e)
	switch {
	case v.IsError():
		return v
	case v.IsReference():
		if len(v.areas) != 1 {
			return ErrorValue(ErrorCodeRef)
		}
		if rows {
			return Number(float64(v.areas[0].Rows()))
		}
		return Number(float64(v.areas[0].Columns()))
	case v.IsArray():
		if rows {
			return Number(float64(v.array.rows))
		}
		return Number(float64(v.array.cols))
	}
	return Number(1)
}

// offset shifts a reference. the result is itself a reference so that
// aggregates can stream it.
func offset(cc *CallContext, args []Expression) Value {
	ref, errv := singleArea(cc, args[0])
	if errv.IsError() {
		return errv
	}
	vals := make([]Value, len(args)-1)
	for i, a := range args[1:] {
		vals[i] = cc.Evaluate(a)
	}
	rows, errv := coerceInt(vals[0])
	if errv.IsError() {
		return errv
	}
	cols, errv := coerceInt(vals[1])
	if errv.IsError() {
		return errv
	}
	height, errv := intArg(vals, 2, ref.Rows())
	if errv.IsError() {
		return errv
	}
	width, errv := intArg(vals, 3, ref.Columns())
	if errv.IsError() {
		return errv
	}
	out, ok := ref.Offset(rows, cols, height, width)
	if !ok {
		return ErrorValue(ErrorCodeRef)
	}
	return ReferenceValue(out)
}

// indirect parses reference text at evaluation time. defined names are
// resolved as well.
func indirect(cc *CallContext, args []Expression) Value {
	text, errv := coerceText(cc.Evaluate(args[0]))
	if errv.IsError() {
		return errv
	}
	a1 := true
	if len(args) > 1 {
		if a1, errv = coerceBoolean(cc.Evaluate(args[1])); errv.IsError() {
			return errv
		}
	}
	opts := &ParseOptions{DisallowLeadingEquals: true}
	if !a1 {
		opts.ReferenceMode = AddressModeR1C1
	}
	expr, err := Parse(strings.TrimSpace(text), opts)
	if err != nil {
		return ErrorValue(ErrorCodeRef)
	}
	switch expr.(type) {
	case *ReferenceExpr, *NameExpr:
	default:
		return ErrorValue(ErrorCodeRef)
	}
	v := cc.EvaluateRaw(expr)
	if !v.IsReference() {
		return ErrorValue(ErrorCodeRef)
	}
	return v
}
