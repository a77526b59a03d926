package formula

import "math"

const (
	solverIterations = 100
	solverTolerance  = 1e-8
)

func registerFinancialFunctions(r *Registry) {
	r.mustRegister(
		NewEagerFunction("PV", 3, 5, false, pv),
		NewEagerFunction("FV", 3, 5, false, fv),
		NewEagerFunction("PMT", 3, 5, false, pmt),
		NewEagerFunction("NPER", 3, 5, false, nper),
		NewEagerFunction("RATE", 3, 6, false, rate),
		NewEagerFunction("IRR", 1, 2, false, irr),
		NewEagerFunction("NPV", 2, -1, false, npv),
	)
}

// numberArgs reads a fixed list of numeric arguments, using defaults for
// omitted trailing ones
func numberArgs(args []Value, defaults ...float64) ([]float64, Value) {
	out := make([]float64, len(defaults))
	for i, def := range defaults {
		x, errv := numberArg(args, i, def)
		if errv.IsError() {
			return nil, errv
		}
		out[i] = x
	}
	return out, Value{}
}

// annuity terms: pv*(1+r)^n + pmt*(1+r*type)*((1+r)^n-1)/r + fv = 0
func pv(cc *CallContext, args []Value) Value {
	a, errv := numberArgs(args, 0, 0, 0, 0, 0)
	if errv.IsError() {
		return errv
	}
	r, n, payment, future, due := a[0], a[1], a[2], a[3], dueFactor(a[4])
	if r == 0 {
		return checkNumber(cc.Settings.snap(-(payment*n + future)))
	}
	g := math.Pow(1+r, n)
	return checkNumber(cc.Settings.snap(-(future + payment*(1+r*due)*(g-1)/r) / g))
}

func fv(cc *CallContext, args []Value) Value {
	a, errv := numberArgs(args, 0, 0, 0, 0, 0)
	if errv.IsError() {
		return errv
	}
	r, n, payment, present, due := a[0], a[1], a[2], a[3], dueFactor(a[4])
	if r == 0 {
		return checkNumber(cc.Settings.snap(-(present + payment*n)))
	}
	g := math.Pow(1+r, n)
	return checkNumber(cc.Settings.snap(-(present*g + payment*(1+r*due)*(g-1)/r)))
}

func pmt(cc *CallContext, args []Value) Value {
	a, errv := numberArgs(args, 0, 0, 0, 0, 0)
	if errv.IsError() {
		return errv
	}
	r, n, present, future, due := a[0], a[1], a[2], a[3], dueFactor(a[4])
	if n == 0 {
		return ErrorValue(ErrorCodeNum)
	}
	if r == 0 {
		return checkNumber(cc.Settings.snap(-(present + future) / n))
	}
	g := math.Pow(1+r, n)
	return checkNumber(cc.Settings.snap(-(future + present*g) * r / ((1 + r*due) * (g - 1))))
}

func nper(cc *CallContext, args []Value) Value {
	a, errv := numberArgs(args, 0, 0, 0, 0, 0)
	if errv.IsError() {
		return errv
	}
	r, payment, present, future, due := a[0], a[1], a[2], a[3], dueFactor(a[4])
	if r == 0 {
		if payment == 0 {
			return ErrorValue(ErrorCodeNum)
		}
		return checkNumber(cc.Settings.snap(-(present + future) / payment))
	}
	k := payment * (1 + r*due) / r
	num, den := k-future, k+present
	if den == 0 || num/den <= 0 {
		return ErrorValue(ErrorCodeNum)
	}
	return checkNumber(cc.Settings.snap(math.Log(num/den) / math.Log(1+r)))
}

func dueFactor(t float64) float64 {
	if t != 0 {
		return 1
	}
	return 0
}

// newton finds a root of f starting at guess. it fails on a non-finite
// step, a zero derivative or when the iteration cap is hit.
func newton(guess float64, f func(x float64) (y, dy float64)) (float64, bool) {
	x := guess
	for i := 0; i < solverIterations; i++ {
		y, dy := f(x)
		if dy == 0 || math.IsNaN(dy) || math.IsInf(dy, 0) {
			return 0, false
		}
		next := x - y/dy
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return 0, false
		}
		if math.Abs(next-x) < solverTolerance {
			return next, true
		}
		x = next
	}
	return 0, false
}

func rate(cc *CallContext, args []Value) Value {
	a, errv := numberArgs(args, 0, 0, 0, 0, 0, 0.1)
	if errv.IsError() {
		return errv
	}
	n, payment, present, future, due, guess := a[0], a[1], a[2], a[3], dueFactor(a[4]), a[5]
	if n <= 0 {
		return ErrorValue(ErrorCodeNum)
	}
	r, ok := newton(guess, func(r float64) (float64, float64) {
		if r == 0 {
			y := present + payment*n + future
			dy := present*n + payment*n*(n-1)/2 + payment*due*n
			return y, dy
		}
		g := math.Pow(1+r, n)
		dg := n * math.Pow(1+r, n-1)
		c := payment * (1 + r*due) / r
		dc := payment*due/r - payment*(1+r*due)/(r*r)
		y := present*g + c*(g-1) + future
		dy := present*dg + dc*(g-1) + c*dg
		return y, dy
	})
	if !ok || r <= -1 {
		return ErrorValue(ErrorCodeNum)
	}
	return Number(r)
}

func irr(cc *CallContext, args []Value) Value {
	var flows []float64
	for v := range flattenValues(args[:1]) {
		switch {
		case v.IsError():
			return v
		case v.IsNumber():
			flows = append(flows, v.num)
		}
	}
	guess, errv := numberArg(args, 1, 0.1)
	if errv.IsError() {
		return errv
	}
	positive, negative := false, false
	for _, f := range flows {
		positive = positive || f > 0
		negative = negative || f < 0
	}
	if !positive || !negative {
		return ErrorValue(ErrorCodeNum)
	}
	r, ok := newton(guess, func(r float64) (float64, float64) {
		y, dy := 0.0, 0.0
		for i, f := range flows {
			d := math.Pow(1+r, float64(i))
			y += f / d
			dy -= float64(i) * f / (d * (1 + r))
		}
		return y, dy
	})
	if !ok || r <= -1 {
		return ErrorValue(ErrorCodeNum)
	}
	return Number(r)
}

// npv discounts values starting one period out. only numbers count inside
// arrays.
func npv(cc *CallContext, args []Value) Value {
	r, errv := coerceNumber(args[0])
	if errv.IsError() {
		return errv
	}
	if r == -1 {
		return ErrorValue(ErrorCodeDiv0)
	}
	acc := newAccumulator(cc.Settings)
	period := 1.0
	errv = collectNumbers(flattenValues(args[1:]), false, func(x float64) {
		acc.add(x / math.Pow(1+r, period))
		period++
	})
	if errv.IsError() {
		return errv
	}
	return acc.total()
}
