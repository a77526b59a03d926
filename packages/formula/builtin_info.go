package formula

func registerInfoFunctions(r *Registry) {
	r.mustRegister(
		is("ISBLANK", Value.IsBlank),
		is("ISERROR", Value.IsError),
		is("ISERR", func(v Value) bool { return v.IsError() && v.code != ErrorCodeNA }),
		is("ISNA", func(v Value) bool { return v.IsError() && v.code == ErrorCodeNA }),
		is("ISNUMBER", Value.IsNumber),
		is("ISTEXT", Value.IsText),
		is("ISLOGICAL", Value.IsBoolean),
		NewLazyFunction("ISREF", 1, 1, false, func(cc *CallContext, args []Expression) Value {
			return Boolean(cc.EvaluateRaw(args[0]).IsReference())
		}),
		numeric1("ISEVEN", func(x float64) Value {
			return Boolean(int64(toInteger(x))%2 == 0)
		}),
		numeric1("ISODD", func(x float64) Value {
			return Boolean(int64(toInteger(x))%2 != 0)
		}),
		NewEagerFunction("NA", 0, 0, false, func(cc *CallContext, args []Value) Value {
			return ErrorValue(ErrorCodeNA)
		}),
		NewEagerFunction("ERROR.TYPE", 1, 1, false, func(cc *CallContext, args []Value) Value {
			return mapCells(args[0], func(v Value) Value {
				if !v.IsError() {
					return ErrorValue(ErrorCodeNA)
				}
				return Number(float64(v.code))
			})
		}),
		NewEagerFunction("TYPE", 1, 1, false, func(cc *CallContext, args []Value) Value {
			return Number(float64(typeCode(args[0])))
		}),
		NewEagerFunction("N", 1, 1, false, func(cc *CallContext, args []Value) Value {
			v := args[0]
			if v.IsArray() {
				v = v.array.At(0, 0)
			}
			switch v.kind {
			case KindNumber, KindBoolean:
				return Number(v.num)
			case KindError:
				return v
			}
			return Number(0)
		}),
	)
}

// mapCells applies fn to a scalar or every cell of an array, errors
// included
func mapCells(v Value, fn func(Value) Value) Value {
	if !v.IsArray() {
		return fn(v)
	}
	return ArrayValue(v.array.Map(fn))
}

// is builds an IS* predicate. it never propagates errors.
func is(name string, pred func(Value) bool) Function {
	return NewEagerFunction(name, 1, 1, false, func(cc *CallContext, args []Value) Value {
		return mapCells(args[0], func(v Value) Value { return Boolean(pred(v)) })
	})
}

func typeCode(v Value) int {
	switch v.kind {
	case KindText:
		return 2
	case KindBoolean:
		return 4
	case KindError:
		return 16
	case KindArray:
		return 64
	}
	return 1
}
