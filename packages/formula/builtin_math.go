package formula

import "math"

func registerMathFunctions(r *Registry) {
	r.mustRegister(
		numeric1("ABS", func(x float64) Value { return Number(math.Abs(x)) }),
		numeric1("SIGN", func(x float64) Value { return Number(float64(cmpFloat(x, 0))) }),
		numeric1("INT", func(x float64) Value { return Number(math.Floor(x)) }),
		numeric2("TRUNC", 1, 0, func(x, y float64) Value {
			return Number(roundDigits(x, int(toInteger(y)), roundTowardZero))
		}),
		numeric2("ROUND", 1, 0, func(x, y float64) Value {
			return Number(roundDigits(x, int(toInteger(y)), roundHalfAway))
		}),
		numeric2("ROUNDUP", 1, 0, func(x, y float64) Value {
			return Number(roundDigits(x, int(toInteger(y)), roundAwayFromZero))
		}),
		numeric2("ROUNDDOWN", 1, 0, func(x, y float64) Value {
			return Number(roundDigits(x, int(toInteger(y)), roundTowardZero))
		}),
		numeric2("MROUND", 2, 0, mround),
		numeric2("MOD", 2, 0, func(n, d float64) Value {
			if d == 0 {
				return ErrorValue(ErrorCodeDiv0)
			}
			return checkNumber(modDecimal(n, d))
		}),
		numeric2("QUOTIENT", 2, 0, func(n, d float64) Value {
			if d == 0 {
				return ErrorValue(ErrorCodeDiv0)
			}
			return checkNumber(math.Trunc(roundSignificant(n/d, 15)))
		}),
		numeric2("POWER", 2, 0, power),
		numeric1("SQRT", func(x float64) Value {
			if x < 0 {
				return ErrorValue(ErrorCodeNum)
			}
			return Number(math.Sqrt(x))
		}),
		numeric1("EXP", func(x float64) Value { return checkNumber(math.Exp(x)) }),
		numeric1("LN", func(x float64) Value {
			if x <= 0 {
				return ErrorValue(ErrorCodeNum)
			}
			return Number(math.Log(x))
		}),
		numeric2("LOG", 1, 10, func(x, base float64) Value {
			if x <= 0 || base <= 0 {
				return ErrorValue(ErrorCodeNum)
			}
			if base == 1 {
				return ErrorValue(ErrorCodeDiv0)
			}
			return checkNumber(roundSignificant(math.Log(x)/math.Log(base), 15))
		}),
		numeric1("LOG10", func(x float64) Value {
			if x <= 0 {
				return ErrorValue(ErrorCodeNum)
			}
			return Number(math.Log10(x))
		}),
		NewEagerFunction("PI", 0, 0, false, func(cc *CallContext, args []Value) Value {
			return Number(math.Pi)
		}),
		numeric2("FLOOR", 1, 1, floorTo),
		numeric2("CEILING", 1, 1, ceilingTo),
		numeric1("FACT", fact),
		numeric1("SIN", func(x float64) Value { return checkNumber(math.Sin(x)) }),
		numeric1("COS", func(x float64) Value { return checkNumber(math.Cos(x)) }),
		numeric1("TAN", func(x float64) Value { return checkNumber(math.Tan(x)) }),
		NewLazyFunction("PRODUCT", 1, -1, false, product),
		NewLazyFunction("SUMSQ", 1, -1, false, sumsq),
		NewEagerFunction("SUMPRODUCT", 1, -1, false, sumproduct),
		NewEagerFunction("RAND", 0, 0, true, func(cc *CallContext, args []Value) Value {
			return Number(cc.Random())
		}),
		NewEagerFunction("RANDBETWEEN", 2, 2, true, randbetween),
	)
}

func power(x, y float64) Value {
	if x == 0 && y == 0 {
		return ErrorValue(ErrorCodeNum)
	}
	if x == 0 && y < 0 {
		return ErrorValue(ErrorCodeDiv0)
	}
	return checkNumber(math.Pow(x, y))
}

func mround(n, m float64) Value {
	if m == 0 || n == 0 {
		return Number(0)
	}
	if (n < 0) != (m < 0) {
		return ErrorValue(ErrorCodeNum)
	}
	q := roundDigits(roundSignificant(n/m, 15), 0, roundHalfAway)
	return checkNumber(roundSignificant(q*m, 15))
}

// floorTo rounds x down to a multiple of sig
func floorTo(x, sig float64) Value {
	if x == 0 {
		return Number(0)
	}
	if sig == 0 {
		return ErrorValue(ErrorCodeDiv0)
	}
	if x > 0 && sig < 0 {
		return ErrorValue(ErrorCodeNum)
	}
	q := math.Floor(roundSignificant(x/sig, 15))
	return checkNumber(roundSignificant(q*sig, 15))
}

// ceilingTo rounds x up to a multiple of sig
func ceilingTo(x, sig float64) Value {
	if x == 0 || sig == 0 {
		return Number(0)
	}
	if x > 0 && sig < 0 {
		return ErrorValue(ErrorCodeNum)
	}
	q := math.Ceil(roundSignificant(x/sig, 15))
	return checkNumber(roundSignificant(q*sig, 15))
}

func fact(x float64) Value {
	n := toInteger(x)
	if n < 0 || n > 170 {
		return ErrorValue(ErrorCodeNum)
	}
	r := 1.0
	for i := 2.0; i <= n; i++ {
		r *= i
	}
	return Number(r)
}

func product(cc *CallContext, args []Expression) Value {
	r, seen := 1.0, false
	if errv := collectNumbers(cc.Flatten(args), false, func(x float64) {
		r = cc.Settings.snap(r * x)
		seen = true
	}); errv.IsError() {
		return errv
	}
	if !seen {
		return Number(0)
	}
	return checkNumber(r)
}

func sumsq(cc *CallContext, args []Expression) Value {
	acc := newAccumulator(cc.Settings)
	if errv := collectNumbers(cc.Flatten(args), false, func(x float64) {
		acc.add(x * x)
	}); errv.IsError() {
		return errv
	}
	return acc.total()
}

// sumproduct multiplies same-shaped arrays cell by cell and sums the
// products. non-numeric cells count as zero.
func sumproduct(cc *CallContext, args []Value) Value {
	arrays := make([]*Array, len(args))
	for i, arg := range args {
		if arg.IsError() {
			return arg
		}
		arrays[i] = toArray(arg)
		if arrays[i].rows != arrays[0].rows || arrays[i].cols != arrays[0].cols {
			return ErrorValue(ErrorCodeValue)
		}
	}
	acc := newAccumulator(cc.Settings)
	for idx := 0; idx < arrays[0].Len(); idx++ {
		row, col := idx/arrays[0].cols, idx%arrays[0].cols
		p := 1.0
		for _, a := range arrays {
			v := a.At(row, col)
			switch {
			case v.IsError():
				return v
			case v.IsNumber():
				p *= v.num
			default:
				p = 0
			}
		}
		acc.add(p)
	}
	return acc.total()
}

func randbetween(cc *CallContext, args []Value) Value {
	lo, errv := coerceNumber(args[0])
	if errv.IsError() {
		return errv
	}
	hi, errv := coerceNumber(args[1])
	if errv.IsError() {
		return errv
	}
	lo, hi = math.Ceil(lo), math.Floor(hi)
	if lo > hi {
		return ErrorValue(ErrorCodeNum)
	}
	return Number(lo + math.Floor(cc.Random()*(hi-lo+1)))
}
