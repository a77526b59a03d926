package formula

import "slices"

func registerDynamicArrayFunctions(r *Registry) {
	r.mustRegister(
		NewEagerFunction("FILTER", 2, 3, false, filter),
		NewEagerFunction("SORT", 1, 4, false, sortFunc),
		NewEagerFunction("UNIQUE", 1, 3, false, unique),
		NewEagerFunction("SEQUENCE", 1, 4, false, sequence),
	)
}

// rowsOf splits an array into rows, or columns when byCol is set
func rowsOf(a *Array, byCol bool) []*Array {
	if byCol {
		out := make([]*Array, a.cols)
		for j := range out {
			out[j] = a.Column(j)
		}
		return out
	}
	out := make([]*Array, a.rows)
	for i := range out {
		out[i] = a.Row(i)
	}
	return out
}

// stack joins rows (or columns) back into one array. masks of the parts
// carry over.
func stack(parts []*Array, byCol bool) *Array {
	var values []Value
	var present []bool
	masked := slices.ContainsFunc(parts, (*Array).HasMask)
	for _, p := range parts {
		if byCol {
			p = p.Transpose()
		}
		for i := range p.values {
			values = append(values, p.values[i])
			if masked {
				present = append(present, p.present == nil || p.present[i])
			}
		}
	}
	width := parts[0].cols
	if byCol {
		width = parts[0].rows
	}
	out := newArrayNoCopy(len(parts), width, values, present)
	if byCol {
		return out.Transpose()
	}
	return out
}

// filter keeps the rows, or columns, whose include flag is true
func filter(cc *CallContext, args []Value) Value {
	if errv := firstError(args[0], args[1]); errv.IsError() {
		return errv
	}
	a := toArray(args[0])
	include := toArray(args[1])
	var byCol bool
	switch {
	case include.cols == 1 && include.rows == a.rows:
	case include.rows == 1 && include.cols == a.cols:
		byCol = true
	default:
		return ErrorValue(ErrorCodeValue)
	}

	var kept []*Array
	for i, part := range rowsOf(a, byCol) {
		flag := include.At(i, 0)
		if byCol {
			flag = include.At(0, i)
		}
		keep, errv := coerceBoolean(flag)
		if errv.IsError() {
			return errv
		}
		if keep {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		if len(args) > 2 {
			return args[2]
		}
		return ErrorValue(ErrorCodeCalc)
	}
	return ArrayValue(stack(kept, byCol))
}

// sortFunc sorts rows by one column, or columns by one row. the sort is
// stable and uses the culture comparer for text.
func sortFunc(cc *CallContext, args []Value) Value {
	if args[0].IsError() {
		return args[0]
	}
	a := toArray(args[0])
	key, errv := intArg(args, 1, 1)
	if errv.IsError() {
		return errv
	}
	order, errv := intArg(args, 2, 1)
	if errv.IsError() {
		return errv
	}
	byCol, errv := boolArg(args, 3, false)
	if errv.IsError() {
		return errv
	}
	width := a.cols
	if byCol {
		width = a.rows
	}
	if key < 1 || key > width || (order != 1 && order != -1) {
		return ErrorValue(ErrorCodeValue)
	}

	parts := rowsOf(a, byCol)
	tc := cc.Comparer()
	slices.SortStableFunc(parts, func(x, y *Array) int {
		kx, ky := x.At(0, key-1), y.At(0, key-1)
		if byCol {
			kx, ky = x.At(key-1, 0), y.At(key-1, 0)
		}
		// errors then blanks sort last either way
		if rx, ry := sortTail(kx), sortTail(ky); rx != 0 || ry != 0 {
			if rx == ry && rx == 1 {
				return cmpInt(int(kx.code), int(ky.code))
			}
			return cmpInt(rx, ry)
		}
		return order * compareValues(kx, ky, tc)
	})
	return ArrayValue(stack(parts, byCol))
}

// sortTail ranks the keys SORT keeps at the end: 1 for errors, 2 for
// blanks and 0 for everything else
func sortTail(v Value) int {
	switch {
	case v.IsError():
		return 1
	case v.IsBlank():
		return 2
	}
	return 0
}

func sameRow(x, y *Array, tc *TextComparer) bool {
	for i := range x.values {
		a, b := x.At(i/x.cols, i%x.cols), y.At(i/y.cols, i%y.cols)
		if a.kind != b.kind || compareValues(a, b, tc) != 0 {
			return false
		}
	}
	return true
}

// unique keeps the first occurrence of every distinct row or column. with
// exactlyOnce set only rows appearing a single time are kept.
func unique(cc *CallContext, args []Value) Value {
	if args[0].IsError() {
		return args[0]
	}
	a := toArray(args[0])
	byCol, errv := boolArg(args, 1, false)
	if errv.IsError() {
		return errv
	}
	exactlyOnce, errv := boolArg(args, 2, false)
	if errv.IsError() {
		return errv
	}

	tc := cc.Comparer()
	var distinct []*Array
	var counts []int
	for _, part := range rowsOf(a, byCol) {
		found := slices.IndexFunc(distinct, func(d *Array) bool { return sameRow(d, part, tc) })
		if found >= 0 {
			counts[found]++
			continue
		}
		distinct = append(distinct, part)
		counts = append(counts, 1)
	}
	if exactlyOnce {
		var once []*Array
		for i, d := range distinct {
			if counts[i] == 1 {
				once = append(once, d)
			}
		}
		distinct = once
	}
	if len(distinct) == 0 {
		return ErrorValue(ErrorCodeCalc)
	}
	return ArrayValue(stack(distinct, byCol))
}

func sequence(cc *CallContext, args []Value) Value {
	rows, errv := intArg(args, 0, 1)
	if errv.IsError() {
		return errv
	}
	cols, errv := intArg(args, 1, 1)
	if errv.IsError() {
		return errv
	}
	start, errv := numberArg(args, 2, 1)
	if errv.IsError() {
		return errv
	}
	step, errv := numberArg(args, 3, 1)
	if errv.IsError() {
		return errv
	}
	switch {
	case rows == 0 || cols == 0:
		return ErrorValue(ErrorCodeCalc)
	case rows < 0 || cols < 0:
		return ErrorValue(ErrorCodeValue)
	case rows > MaxRows || cols > MaxColumns || rows*cols > maxArrayCells:
		return ErrorValue(ErrorCodeNum)
	}
	values := make([]Value, rows*cols)
	for i := range values {
		values[i] = Number(cc.Settings.snap(start + float64(i)*step))
	}
	return ArrayValue(newArrayNoCopy(rows, cols, values, nil))
}
