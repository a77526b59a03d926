package formula

import "math"

// accumulator is a running sum that applies the precision policy after
// every partial sum, so 0.1+0.2+0.3 totals exactly 0.6
type accumulator struct {
	settings CalculationSettings
	sum      float64
	count    int
	min, max float64
}

func newAccumulator(s CalculationSettings) accumulator {
	return accumulator{settings: s, min: math.Inf(1), max: math.Inf(-1)}
}

func (a *accumulator) add(x float64) {
	a.sum = a.settings.snap(a.sum + x)
	a.count++
	a.min = math.Min(a.min, x)
	a.max = math.Max(a.max, x)
}

func (a *accumulator) total() Value {
	return checkNumber(a.sum)
}

// mean is #DIV/0! when nothing was added
func (a *accumulator) mean() Value {
	if a.count == 0 {
		return ErrorValue(ErrorCodeDiv0)
	}
	return checkNumber(a.settings.snap(a.sum / float64(a.count)))
}

// minimum and maximum are 0 for an empty set
func (a *accumulator) minimum() Value {
	if a.count == 0 {
		return Number(0)
	}
	return Number(a.min)
}

func (a *accumulator) maximum() Value {
	if a.count == 0 {
		return Number(0)
	}
	return Number(a.max)
}
