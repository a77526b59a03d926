package formula

func registerLogicalFunctions(r *Registry) {
	r.mustRegister(
		NewLazyFunction("IF", 2, 3, false, ifFunc),
		NewLazyFunction("IFS", 2, -1, false, ifs),
		NewLazyFunction("AND", 1, -1, false, func(cc *CallContext, args []Expression) Value {
			return logical(cc, args, true)
		}),
		NewLazyFunction("OR", 1, -1, false, func(cc *CallContext, args []Expression) Value {
			return logical(cc, args, false)
		}),
		NewLazyFunction("XOR", 1, -1, false, xor),
		NewEagerFunction("NOT", 1, 1, false, func(cc *CallContext, args []Value) Value {
			return broadcast1(args[0], func(v Value) Value {
				b, errv := coerceBoolean(v)
				if errv.IsError() {
					return errv
				}
				return Boolean(!b)
			})
		}),
		NewLazyFunction("IFERROR", 2, 2, false, func(cc *CallContext, args []Expression) Value {
			return ifError(cc, args, func(v Value) bool { return v.IsError() })
		}),
		NewLazyFunction("IFNA", 2, 2, false, func(cc *CallContext, args []Expression) Value {
			return ifError(cc, args, func(v Value) bool { return v.IsError() && v.code == ErrorCodeNA })
		}),
		NewLazyFunction("SWITCH", 3, -1, false, switchFunc),
		NewEagerFunction("TRUE", 0, 0, false, func(cc *CallContext, args []Value) Value {
			return Boolean(true)
		}),
		NewEagerFunction("FALSE", 0, 0, false, func(cc *CallContext, args []Value) Value {
			return Boolean(false)
		}),
		NewLazyFunction("CHOOSE", 2, -1, false, choose),
	)
}

// branch evaluates a taken branch. references pass through so the caller
// can aggregate them; an empty argument reads as 0.
func branch(cc *CallContext, args []Expression, i int, def Value) Value {
	if i >= len(args) {
		return def
	}
	v := cc.EvaluateRaw(args[i])
	if v.IsBlank() {
		return Number(0)
	}
	return v
}

// ifFunc only evaluates the branch it takes. an array condition picks
// branch cells element by element.
func ifFunc(cc *CallContext, args []Expression) Value {
	cond := cc.Evaluate(args[0])
	if cond.IsError() {
		return cond
	}
	if !cond.IsArray() {
		b, errv := coerceBoolean(cond)
		if errv.IsError() {
			return errv
		}
		if b {
			return branch(cc, args, 1, Boolean(true))
		}
		return branch(cc, args, 2, Boolean(false))
	}

	then := cc.Deref(branch(cc, args, 1, Boolean(true)))
	otherwise := cc.Deref(branch(cc, args, 2, Boolean(false)))
	a := cond.array
	values := make([]Value, a.Len())
	for row := 0; row < a.rows; row++ {
		for col := 0; col < a.cols; col++ {
			c := a.At(row, col)
			b, errv := coerceBoolean(c)
			switch {
			case errv.IsError():
				values[row*a.cols+col] = errv
			case b:
				values[row*a.cols+col] = cellOf(then, row, col)
			default:
				values[row*a.cols+col] = cellOf(otherwise, row, col)
			}
		}
	}
	out := newArrayNoCopy(a.rows, a.cols, values, a.present)
	out.origin = a.origin
	return ArrayValue(out)
}

// cellOf reads the cell of an array operand, or the operand itself when it
// is a scalar
func cellOf(v Value, row, col int) Value {
	if !v.IsArray() {
		return v
	}
	a := v.array
	if a.rows == 1 && a.cols == 1 {
		return a.At(0, 0)
	}
	if row >= a.rows || col >= a.cols {
		return ErrorValue(ErrorCodeNA)
	}
	return a.At(row, col)
}

func ifs(cc *CallContext, args []Expression) Value {
	if len(args)%2 != 0 {
		return ErrorValue(ErrorCodeValue)
	}
	for i := 0; i < len(args); i += 2 {
		cond := cc.Evaluate(args[i])
		b, errv := coerceBoolean(cond)
		if errv.IsError() {
			return errv
		}
		if b {
			return branch(cc, args, i+1, Blank())
		}
	}
	return ErrorValue(ErrorCodeNA)
}

// logical implements AND (all) and OR. arguments are evaluated one at a time
// and evaluation stops as soon as the outcome is known. text inside ranges
// is ignored.
func logical(cc *CallContext, args []Expression, all bool) Value {
	seen := false
	for v, direct := range cc.Flatten(args) {
		var b bool
		switch {
		case v.IsError():
			return v
		case v.IsBoolean() || v.IsNumber():
			b = v.num != 0
		case direct && v.IsText():
			var errv Value
			if b, errv = coerceBoolean(v); errv.IsError() {
				return errv
			}
		default:
			continue
		}
		seen = true
		if b != all {
			return Boolean(b)
		}
	}
	if !seen {
		return ErrorValue(ErrorCodeValue)
	}
	return Boolean(all)
}

func xor(cc *CallContext, args []Expression) Value {
	seen, odd := false, false
	for v, direct := range cc.Flatten(args) {
		switch {
		case v.IsError():
			return v
		case v.IsBoolean() || v.IsNumber():
			seen = true
			odd = odd != (v.num != 0)
		case direct && v.IsText():
			b, errv := coerceBoolean(v)
			if errv.IsError() {
				return errv
			}
			seen = true
			odd = odd != b
		}
	}
	if !seen {
		return ErrorValue(ErrorCodeValue)
	}
	return Boolean(odd)
}

// ifError evaluates the fallback only when the primary value, or a cell of
// it, is caught
func ifError(cc *CallContext, args []Expression, caught func(Value) bool) Value {
	v := cc.Evaluate(args[0])
	if !v.IsArray() {
		if caught(v) {
			return branch(cc, args, 1, Blank())
		}
		return v
	}

	var fallback *Value
	return ArrayValue(v.array.MapCells(func(row, col int, x Value) Value {
		if !caught(x) {
			return x
		}
		if fallback == nil {
			f := cc.Evaluate(args[1])
			fallback = &f
		}
		f := *fallback
		if f.IsArray() {
			f = broadcastAt(f.array, row, col)
		}
		if f.IsBlank() {
			f = Number(0)
		}
		return f
	}))
}

func switchFunc(cc *CallContext, args []Expression) Value {
	target := cc.Evaluate(args[0])
	if target.IsError() {
		return target
	}
	target, _ = operand(target)
	i := 1
	for ; i+1 < len(args); i += 2 {
		v := cc.Evaluate(args[i])
		if v.IsError() {
			return v
		}
		if v.kind == target.kind && compareValues(target, v, cc.Comparer()) == 0 {
			return branch(cc, args, i+1, Blank())
		}
	}
	if i < len(args) {
		return branch(cc, args, i, Blank())
	}
	return ErrorValue(ErrorCodeNA)
}

func choose(cc *CallContext, args []Expression) Value {
	idx, errv := coerceInt(cc.Evaluate(args[0]))
	if errv.IsError() {
		return errv
	}
	if idx < 1 || idx >= len(args) {
		return ErrorValue(ErrorCodeValue)
	}
	return branch(cc, args, idx, Blank())
}
