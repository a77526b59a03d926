package formula

import "iter"

// toArray views a value as a grid. scalars become 1x1 arrays.
func toArray(v Value) *Array {
	if v.IsArray() {
		return v.array
	}
	return newArrayNoCopy(1, 1, []Value{v}, nil)
}

// optional returns args[i], or def when the argument is omitted or empty
func optional(args []Value, i int, def Value) Value {
	if i >= len(args) || args[i].IsBlank() {
		return def
	}
	return args[i]
}

func numberArg(args []Value, i int, def float64) (float64, Value) {
	return coerceNumber(optional(args, i, Number(def)))
}

func intArg(args []Value, i int, def int) (int, Value) {
	return coerceInt(optional(args, i, Number(float64(def))))
}

func boolArg(args []Value, i int, def bool) (bool, Value) {
	return coerceBoolean(optional(args, i, Boolean(def)))
}

func textArg(args []Value, i int) (string, Value) {
	if i >= len(args) {
		return "", Value{}
	}
	return coerceText(args[i])
}

// firstError returns the first error value, or Blank when there is none
func firstError(values ...Value) Value {
	for _, v := range values {
		if v.IsError() {
			return v
		}
	}
	return Value{}
}

// numeric1 builds a one-argument numeric function lifted over arrays
func numeric1(name string, fn func(x float64) Value) Function {
	return NewEagerFunction(name, 1, 1, false, func(cc *CallContext, args []Value) Value {
		return broadcast1(args[0], func(v Value) Value {
			x, errv := coerceNumber(v)
			if errv.IsError() {
				return errv
			}
			return fn(x)
		})
	})
}

// numeric2 builds a two-argument numeric function lifted over arrays. when
// minArgs is 1 the second argument defaults to def.
func numeric2(name string, minArgs int, def float64, fn func(x, y float64) Value) Function {
	return NewEagerFunction(name, minArgs, 2, false, func(cc *CallContext, args []Value) Value {
		return broadcast2(args[0], optional(args, 1, Number(def)), func(a, b Value) Value {
			x, errv := coerceNumber(a)
			if errv.IsError() {
				return errv
			}
			y, errv := coerceNumber(b)
			if errv.IsError() {
				return errv
			}
			return fn(x, y)
		})
	})
}

// text1 builds a one-argument text function lifted over arrays
func text1(name string, fn func(cc *CallContext, s string) Value) Function {
	return NewEagerFunction(name, 1, 1, false, func(cc *CallContext, args []Value) Value {
		return broadcast1(args[0], func(v Value) Value {
			s, errv := coerceText(v)
			if errv.IsError() {
				return errv
			}
			return fn(cc, s)
		})
	})
}

// flattenValues yields the values of evaluated arguments. the flag is true
// for scalar arguments and false for array members.
func flattenValues(args []Value) iter.Seq2[Value, bool] {
	return func(yield func(Value, bool) bool) {
		for _, arg := range args {
			if !arg.IsArray() {
				if !yield(arg, true) {
					return
				}
				continue
			}
			for v := range arg.array.PresentValues() {
				if !yield(v, false) {
					return
				}
			}
		}
	}
}

// collectNumbers feeds the numeric content of aggregate arguments to fn.
// direct arguments are coerced; values from ranges and arrays count only
// when they are numbers, or booleans and text too when countAll is set
// (the *A variants). it returns the first error met, or Blank.
func collectNumbers(values iter.Seq2[Value, bool], countAll bool, fn func(x float64)) Value {
	for v, direct := range values {
		switch {
		case v.IsError():
			return v
		case direct:
			x, errv := coerceNumber(v)
			if errv.IsError() {
				return errv
			}
			fn(x)
		case v.IsNumber():
			fn(v.num)
		case countAll && v.IsBoolean():
			fn(v.num)
		case countAll && v.IsText():
			fn(0)
		}
	}
	return Value{}
}
