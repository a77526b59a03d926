package formula

import (
	"math"
	"strconv"

	"github.com/cockroachdb/apd"
)

// decimal arithmetic holds 28 significant digits
const decimalPrecision = 28

var decimalContext = func() apd.Context {
	c := apd.BaseContext.WithPrecision(decimalPrecision)
	c.Rounding = apd.RoundHalfUp
	return *c
}()

type roundingMode int

const (
	// half away from zero, as ROUND
	roundHalfAway roundingMode = iota
	// away from zero, as ROUNDUP
	roundAwayFromZero
	// toward zero, as ROUNDDOWN
	roundTowardZero
)

// toDecimal converts through the 15 significant digit text form so binary
// noise such as 2.00499999999 for 2.005 is dropped
func toDecimal(f float64) (*apd.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= 1e28 {
		return nil, false
	}
	d, _, err := apd.NewFromString(strconv.FormatFloat(f, 'g', 15, 64))
	if err != nil {
		return nil, false
	}
	return d, true
}

func fromDecimal(d *apd.Decimal) (float64, bool) {
	f, err := d.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// roundDigits rounds x to the given number of decimal places (negative
// places round to tens, hundreds...). exact decimal arithmetic is used when
// the result fits in 28 digits, float math otherwise.
func roundDigits(x float64, places int, mode roundingMode) float64 {
	if places > 308 {
		return x
	}
	if d, ok := toDecimal(x); ok && places >= -decimalPrecision && places <= decimalPrecision {
		ctx := decimalContext
		switch mode {
		case roundAwayFromZero:
			ctx.Rounding = apd.RoundUp
		case roundTowardZero:
			ctx.Rounding = apd.RoundDown
		default:
			ctx.Rounding = apd.RoundHalfUp
		}
		var out apd.Decimal
		if _, err := ctx.Quantize(&out, d, int32(-places)); err == nil {
			if f, ok := fromDecimal(&out); ok {
				return f
			}
		}
	}
	return roundFloat(x, places, mode)
}

func roundFloat(x float64, places int, mode roundingMode) float64 {
	p := math.Pow(10, float64(places))
	if math.IsInf(p, 0) {
		return x
	}
	if p == 0 {
		return 0
	}
	y := x * p
	switch mode {
	case roundAwayFromZero:
		y = math.Copysign(math.Ceil(math.Abs(y)), y)
	case roundTowardZero:
		y = math.Trunc(y)
	default:
		y = math.Round(y)
	}
	return y / p
}

// modDecimal computes n - d*floor(n/d), the sign of the result following
// the divisor. d must not be zero.
func modDecimal(n, d float64) float64 {
	a, okA := toDecimal(n)
	b, okB := toDecimal(d)
	if okA && okB {
		ctx := decimalContext
		var q, fl, m, r apd.Decimal
		_, err := ctx.Quo(&q, a, b)
		if err == nil {
			_, err = ctx.Floor(&fl, &q)
		}
		if err == nil {
			_, err = ctx.Mul(&m, &fl, b)
		}
		if err == nil {
			_, err = ctx.Sub(&r, a, &m)
		}
		if err == nil {
			if f, ok := fromDecimal(&r); ok {
				return f
			}
		}
	}
	return n - d*math.Floor(n/d)
}
