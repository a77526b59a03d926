package formula

import (
	"math"
	"strconv"
	"strings"
)

// integer snapping tolerance for float noise such as 2.9999999999
const intSnapTolerance = 1e-9

// FormatNumber renders a number the way text coercion does: at most 15
// significant digits, scientific notation only for very large or very small
// magnitudes
func FormatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrorCodeNum.String()
	}
	if f == 0 {
		return "0"
	}
	v := roundSignificant(f, 15)
	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-9 {
		return strconv.FormatFloat(v, 'E', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// roundSignificant rounds f to the given number of significant digits
func roundSignificant(f float64, digits int) float64 {
	if digits <= 0 || f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'g', digits, 64), 64)
	if err != nil {
		return f
	}
	return r
}

// parseNumberText converts numeric text such as " 1,234.5 ", "12%", "$3" or
// "1e3" to a number
func parseNumberText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		s = s[1:]
	}
	if strings.HasPrefix(s, "$") {
		s = s[1:]
	}
	if len(s) > 2 && s[0] == '(' && s[len(s)-1] == ')' && !neg {
		neg = true
		s = s[1 : len(s)-1]
	}
	percent := false
	if strings.HasSuffix(s, "%") {
		percent = true
		s = strings.TrimSpace(s[:len(s)-1])
	}
	if s == "" {
		return 0, false
	}
	var sb strings.Builder
	seenDigit, seenExp := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case isDigit(ch):
			seenDigit = true
			sb.WriteByte(ch)
		case ch == '.':
			sb.WriteByte(ch)
		case ch == ',' && !seenExp && seenDigit:
			// thousands grouping
		case (ch == 'e' || ch == 'E') && seenDigit && !seenExp:
			seenExp = true
			sb.WriteByte(ch)
			if i+1 < len(s) && (s[i+1] == '+' || s[i+1] == '-') {
				i++
				sb.WriteByte(s[i])
			}
		default:
			return 0, false
		}
	}
	if !seenDigit {
		return 0, false
	}
	n, err := strconv.ParseFloat(sb.String(), 64)
	if err != nil || math.IsInf(n, 0) {
		return 0, false
	}
	if neg {
		n = -n
	}
	if percent {
		n /= 100
	}
	return n, true
}

// ToNumber coerces a scalar to a number. blank is 0, booleans are 1 or 0
// and text must hold a number.
func ToNumber(v Value) (float64, bool) {
	n, errv := coerceNumber(v)
	return n, !errv.IsError()
}

// coerceNumber returns an error value as its second result when v cannot be
// used as a number. error inputs are passed through unchanged.
func coerceNumber(v Value) (float64, Value) {
	switch v.kind {
	case KindNumber, KindBoolean:
		return v.num, Value{}
	case KindBlank:
		return 0, Value{}
	case KindText:
		if n, ok := parseNumberText(v.text); ok {
			return n, Value{}
		}
		return 0, ErrorValue(ErrorCodeValue)
	case KindError:
		return 0, v
	case KindArray:
		return coerceNumber(v.array.At(0, 0))
	}
	return 0, ErrorValue(ErrorCodeValue)
}

// ToText coerces a scalar to text
func ToText(v Value) (string, bool) {
	s, errv := coerceText(v)
	return s, !errv.IsError()
}

func coerceText(v Value) (string, Value) {
	switch v.kind {
	case KindText:
		return v.text, Value{}
	case KindBlank:
		return "", Value{}
	case KindNumber, KindBoolean:
		return v.String(), Value{}
	case KindError:
		return "", v
	case KindArray:
		return coerceText(v.array.At(0, 0))
	}
	return "", ErrorValue(ErrorCodeValue)
}

// ToBoolean coerces a scalar to a logical value. text must read TRUE or
// FALSE.
func ToBoolean(v Value) (bool, bool) {
	b, errv := coerceBoolean(v)
	return b, !errv.IsError()
}

func coerceBoolean(v Value) (bool, Value) {
	switch v.kind {
	case KindBoolean, KindNumber:
		return v.num != 0, Value{}
	case KindBlank:
		return false, Value{}
	case KindText:
		switch strings.ToUpper(strings.TrimSpace(v.text)) {
		case "TRUE":
			return true, Value{}
		case "FALSE":
			return false, Value{}
		}
		return false, ErrorValue(ErrorCodeValue)
	case KindError:
		return false, v
	case KindArray:
		return coerceBoolean(v.array.At(0, 0))
	}
	return false, ErrorValue(ErrorCodeValue)
}

// toInteger truncates toward zero after snapping values within 1e-9 of an
// integer
func toInteger(f float64) float64 {
	r := math.Round(f)
	if math.Abs(f-r) < intSnapTolerance {
		return r
	}
	return math.Trunc(f)
}

// coerceInt coerces to a truncated integer. values outside the int range
// report #NUM!.
func coerceInt(v Value) (int, Value) {
	n, errv := coerceNumber(v)
	if errv.IsError() {
		return 0, errv
	}
	n = toInteger(n)
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, ErrorValue(ErrorCodeNum)
	}
	return int(n), Value{}
}

// snap applies the precision policy of the settings to an arithmetic result
func (s CalculationSettings) snap(f float64) float64 {
	if s.PrecisionDigits < 0 {
		return f
	}
	return roundSignificant(f, s.PrecisionDigits)
}

// checkNumber turns NaN and infinities into #NUM!
func checkNumber(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrorValue(ErrorCodeNum)
	}
	return Number(f)
}
