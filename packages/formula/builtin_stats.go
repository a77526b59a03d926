package formula

import (
	"math"
	"slices"
)

func registerStatisticalFunctions(r *Registry) {
	r.mustRegister(
		NewLazyFunction("SUM", 1, -1, false, sum),
		NewLazyFunction("AVERAGE", 1, -1, false, average),
		NewLazyFunction("AVERAGEA", 1, -1, false, averagea),
		NewLazyFunction("COUNT", 1, -1, false, count),
		NewLazyFunction("COUNTA", 1, -1, false, counta),
		NewEagerFunction("COUNTBLANK", 1, 1, false, countblank),
		NewLazyFunction("MIN", 1, -1, false, func(cc *CallContext, args []Expression) Value {
			return extremum(cc, args, false)
		}),
		NewLazyFunction("MAX", 1, -1, false, func(cc *CallContext, args []Expression) Value {
			return extremum(cc, args, true)
		}),
		NewLazyFunction("MEDIAN", 1, -1, false, median),
		NewLazyFunction("MODE", 1, -1, false, mode),
		NewLazyFunction("STDEV", 1, -1, false, variance(true, true)),
		NewLazyFunction("STDEVP", 1, -1, false, variance(false, true)),
		NewLazyFunction("VAR", 1, -1, false, variance(true, false)),
		NewLazyFunction("VARP", 1, -1, false, variance(false, false)),
		NewEagerFunction("LARGE", 2, 2, false, func(cc *CallContext, args []Value) Value {
			return kth(args, true)
		}),
		NewEagerFunction("SMALL", 2, 2, false, func(cc *CallContext, args []Value) Value {
			return kth(args, false)
		}),
		NewEagerFunction("COUNTIF", 2, 2, false, countif),
		NewEagerFunction("SUMIF", 2, 3, false, func(cc *CallContext, args []Value) Value {
			return aggregateIf(cc, args, false)
		}),
		NewEagerFunction("AVERAGEIF", 2, 3, false, func(cc *CallContext, args []Value) Value {
			return aggregateIf(cc, args, true)
		}),
		NewEagerFunction("COUNTIFS", 2, -1, false, countifs),
		NewEagerFunction("SUMIFS", 3, -1, false, aggregateIfs(func(acc *accumulator) Value { return acc.total() })),
		NewEagerFunction("AVERAGEIFS", 3, -1, false, aggregateIfs(func(acc *accumulator) Value { return acc.mean() })),
		NewEagerFunction("MAXIFS", 3, -1, false, aggregateIfs(func(acc *accumulator) Value { return acc.maximum() })),
		NewEagerFunction("MINIFS", 3, -1, false, aggregateIfs(func(acc *accumulator) Value { return acc.minimum() })),
	)
}

// aggregate runs the numeric content of the arguments through an
// accumulator
func aggregate(cc *CallContext, args []Expression, countAll bool) (accumulator, Value) {
	acc := newAccumulator(cc.Settings)
	errv := collectNumbers(cc.Flatten(args), countAll, acc.add)
	return acc, errv
}

func sum(cc *CallContext, args []Expression) Value {
	acc, errv := aggregate(cc, args, false)
	if errv.IsError() {
		return errv
	}
	return acc.total()
}

func average(cc *CallContext, args []Expression) Value {
	acc, errv := aggregate(cc, args, false)
	if errv.IsError() {
		return errv
	}
	return acc.mean()
}

func averagea(cc *CallContext, args []Expression) Value {
	acc, errv := aggregate(cc, args, true)
	if errv.IsError() {
		return errv
	}
	return acc.mean()
}

func extremum(cc *CallContext, args []Expression, largest bool) Value {
	acc, errv := aggregate(cc, args, false)
	if errv.IsError() {
		return errv
	}
	if largest {
		return acc.maximum()
	}
	return acc.minimum()
}

// count counts numbers. errors and non-numeric text are skipped, not
// propagated.
func count(cc *CallContext, args []Expression) Value {
	n := 0
	for v, direct := range cc.Flatten(args) {
		switch {
		case v.IsNumber():
			n++
		case direct && v.IsBoolean():
			n++
		case direct && v.IsText():
			if _, ok := parseNumberText(v.text); ok {
				n++
			}
		}
	}
	return Number(float64(n))
}

func counta(cc *CallContext, args []Expression) Value {
	n := 0
	for v := range cc.Flatten(args) {
		if !v.IsBlank() {
			n++
		}
	}
	return Number(float64(n))
}

func countblank(cc *CallContext, args []Value) Value {
	if args[0].IsError() {
		return args[0]
	}
	n := 0
	for v := range toArray(args[0]).Values() {
		if v.IsBlank() || (v.IsText() && v.text == "") {
			n++
		}
	}
	return Number(float64(n))
}

// numbers collects the numeric content of aggregate arguments
func numbers(cc *CallContext, args []Expression) ([]float64, Value) {
	var xs []float64
	errv := collectNumbers(cc.Flatten(args), false, func(x float64) {
		xs = append(xs, x)
	})
	return xs, errv
}

func median(cc *CallContext, args []Expression) Value {
	xs, errv := numbers(cc, args)
	if errv.IsError() {
		return errv
	}
	if len(xs) == 0 {
		return ErrorValue(ErrorCodeNum)
	}
	slices.Sort(xs)
	mid := len(xs) / 2
	if len(xs)%2 == 1 {
		return Number(xs[mid])
	}
	return Number(cc.Settings.snap((xs[mid-1] + xs[mid]) / 2))
}

// mode returns the most frequent number. ties go to the value seen first.
func mode(cc *CallContext, args []Expression) Value {
	xs, errv := numbers(cc, args)
	if errv.IsError() {
		return errv
	}
	counts := make(map[float64]int, len(xs))
	best, bestCount := 0.0, 1
	for _, x := range xs {
		counts[x]++
		if c := counts[x]; c > bestCount {
			best, bestCount = x, c
		}
	}
	if bestCount < 2 {
		return ErrorValue(ErrorCodeNA)
	}
	// first-seen tie break
	for _, x := range xs {
		if counts[x] == bestCount {
			return Number(x)
		}
	}
	return Number(best)
}

// variance builds STDEV/STDEVP/VAR/VARP. sample uses n-1 as the divisor.
func variance(sample, root bool) func(cc *CallContext, args []Expression) Value {
	return func(cc *CallContext, args []Expression) Value {
		xs, errv := numbers(cc, args)
		if errv.IsError() {
			return errv
		}
		n := float64(len(xs))
		if (sample && n < 2) || n < 1 {
			return ErrorValue(ErrorCodeDiv0)
		}
		acc := newAccumulator(cc.Settings)
		for _, x := range xs {
			acc.add(x)
		}
		mean := acc.sum / n
		ss := 0.0
		for _, x := range xs {
			ss += (x - mean) * (x - mean)
		}
		if sample {
			n--
		}
		v := cc.Settings.snap(ss / n)
		if root {
			v = math.Sqrt(v)
		}
		return checkNumber(v)
	}
}

// kth returns the k-th largest or smallest number of an array
func kth(args []Value, largest bool) Value {
	if args[0].IsError() {
		return args[0]
	}
	k, errv := coerceInt(args[1])
	if errv.IsError() {
		return errv
	}
	var xs []float64
	for v := range toArray(args[0]).PresentValues() {
		if v.IsError() {
			return v
		}
		if v.IsNumber() {
			xs = append(xs, v.num)
		}
	}
	if k < 1 || k > len(xs) {
		return ErrorValue(ErrorCodeNum)
	}
	slices.Sort(xs)
	if largest {
		return Number(xs[len(xs)-k])
	}
	return Number(xs[k-1])
}

func countif(cc *CallContext, args []Value) Value {
	if args[0].IsError() {
		return args[0]
	}
	c, errv := compileCriterion(args[1], cc.Comparer())
	if errv.IsError() {
		return errv
	}
	n := 0
	for v := range toArray(args[0]).Values() {
		if c.match(v) {
			n++
		}
	}
	return Number(float64(n))
}

// aggregateIf implements SUMIF and AVERAGEIF. the optional third range is
// read cell by cell aligned on its top-left corner.
func aggregateIf(cc *CallContext, args []Value, mean bool) Value {
	if errv := firstError(args[0], optional(args, 2, Value{})); errv.IsError() {
		return errv
	}
	c, errv := compileCriterion(args[1], cc.Comparer())
	if errv.IsError() {
		return errv
	}
	rng := toArray(args[0])
	values := rng
	if len(args) > 2 && !args[2].IsBlank() {
		values = toArray(args[2])
	}
	acc := newAccumulator(cc.Settings)
	for row := 0; row < rng.rows; row++ {
		for col := 0; col < rng.cols; col++ {
			if !c.match(rng.At(row, col)) {
				continue
			}
			v := values.At(row, col)
			if v.IsError() {
				return v
			}
			if v.IsNumber() {
				acc.add(v.num)
			}
		}
	}
	if mean {
		return acc.mean()
	}
	return acc.total()
}

func countifs(cc *CallContext, args []Value) Value {
	if args[0].IsError() {
		return args[0]
	}
	first := toArray(args[0])
	mask, errv := criteriaMask(cc, args, 0, first.rows, first.cols)
	if errv.IsError() {
		return errv
	}
	n := 0
	for _, ok := range mask {
		if ok {
			n++
		}
	}
	return Number(float64(n))
}

// aggregateIfs implements the *IFS family, whose first argument is the
// range being aggregated
func aggregateIfs(finish func(acc *accumulator) Value) func(cc *CallContext, args []Value) Value {
	return func(cc *CallContext, args []Value) Value {
		if args[0].IsError() {
			return args[0]
		}
		values := toArray(args[0])
		mask, errv := criteriaMask(cc, args, 1, values.rows, values.cols)
		if errv.IsError() {
			return errv
		}
		acc := newAccumulator(cc.Settings)
		for idx, ok := range mask {
			if !ok {
				continue
			}
			v := values.At(idx/values.cols, idx%values.cols)
			if v.IsError() {
				return v
			}
			if v.IsNumber() {
				acc.add(v.num)
			}
		}
		return finish(&acc)
	}
}
