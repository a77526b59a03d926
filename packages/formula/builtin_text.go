package formula

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
)

// longest text a cell can hold
const maxTextLength = 32767

func registerTextFunctions(r *Registry) {
	r.mustRegister(
		NewEagerFunction("CONCATENATE", 1, -1, false, concatenate),
		NewEagerFunction("CONCAT", 1, -1, false, concat),
		NewEagerFunction("TEXTJOIN", 3, -1, false, textjoin),
		text1("LEN", func(cc *CallContext, s string) Value {
			return Number(float64(utf8.RuneCountInString(s)))
		}),
		text1("UPPER", func(cc *CallContext, s string) Value {
			return Text(cases.Upper(cc.Settings.Culture).String(s))
		}),
		text1("LOWER", func(cc *CallContext, s string) Value {
			return Text(cases.Lower(cc.Settings.Culture).String(s))
		}),
		text1("PROPER", proper),
		text1("TRIM", func(cc *CallContext, s string) Value {
			return Text(trimSpaces(s))
		}),
		NewEagerFunction("LEFT", 1, 2, false, func(cc *CallContext, args []Value) Value {
			return takeText(args, true)
		}),
		NewEagerFunction("RIGHT", 1, 2, false, func(cc *CallContext, args []Value) Value {
			return takeText(args, false)
		}),
		NewEagerFunction("MID", 3, 3, false, mid),
		NewEagerFunction("FIND", 2, 3, false, func(cc *CallContext, args []Value) Value {
			return findText(args, false)
		}),
		NewEagerFunction("SEARCH", 2, 3, false, func(cc *CallContext, args []Value) Value {
			return findText(args, true)
		}),
		NewEagerFunction("SUBSTITUTE", 3, 4, false, substitute),
		NewEagerFunction("REPLACE", 4, 4, false, replace),
		NewEagerFunction("REPT", 2, 2, false, rept),
		NewEagerFunction("EXACT", 2, 2, false, func(cc *CallContext, args []Value) Value {
			return broadcast2(args[0], args[1], func(a, b Value) Value {
				sa, errv := coerceText(a)
				if errv.IsError() {
					return errv
				}
				sb, errv := coerceText(b)
				if errv.IsError() {
					return errv
				}
				return Boolean(sa == sb)
			})
		}),
		NewEagerFunction("VALUE", 1, 1, false, func(cc *CallContext, args []Value) Value {
			return broadcast1(args[0], func(v Value) Value { return textToNumber(cc, v) })
		}),
		NewEagerFunction("TEXT", 2, 2, false, func(cc *CallContext, args []Value) Value {
			code, errv := coerceText(args[1])
			if errv.IsError() {
				return errv
			}
			return broadcast1(args[0], func(v Value) Value {
				return formatValue(cc.Settings, v, code)
			})
		}),
		NewEagerFunction("FIXED", 1, 3, false, func(cc *CallContext, args []Value) Value {
			x, errv := numberArg(args, 0, 0)
			if errv.IsError() {
				return errv
			}
			decimals, errv := intArg(args, 1, 2)
			if errv.IsError() {
				return errv
			}
			noCommas, errv := boolArg(args, 2, false)
			if errv.IsError() {
				return errv
			}
			if decimals > 127 {
				return ErrorValue(ErrorCodeValue)
			}
			return Text(fixed(cc.Settings.Culture, x, decimals, noCommas))
		}),
		NewEagerFunction("DOLLAR", 1, 2, false, func(cc *CallContext, args []Value) Value {
			x, errv := numberArg(args, 0, 0)
			if errv.IsError() {
				return errv
			}
			decimals, errv := intArg(args, 1, 2)
			if errv.IsError() {
				return errv
			}
			if decimals > 127 {
				return ErrorValue(ErrorCodeValue)
			}
			return Text(dollar(cc.Settings.Culture, x, decimals))
		}),
		numeric1("CHAR", func(x float64) Value {
			n := int(toInteger(x))
			if n < 1 || n > 255 {
				return ErrorValue(ErrorCodeValue)
			}
			return Text(string(charmap.Windows1252.DecodeByte(byte(n))))
		}),
		text1("CODE", func(cc *CallContext, s string) Value {
			if s == "" {
				return ErrorValue(ErrorCodeValue)
			}
			r, _ := utf8.DecodeRuneInString(s)
			b, ok := charmap.Windows1252.EncodeRune(r)
			if !ok {
				return Number('?')
			}
			return Number(float64(b))
		}),
	)
}

func concatenate(cc *CallContext, args []Value) Value {
	var sb strings.Builder
	for _, arg := range args {
		s, errv := coerceText(arg)
		if errv.IsError() {
			return errv
		}
		sb.WriteString(s)
	}
	return checkLength(sb.String())
}

func concat(cc *CallContext, args []Value) Value {
	var sb strings.Builder
	for v := range flattenValues(args) {
		s, errv := coerceText(v)
		if errv.IsError() {
			return errv
		}
		sb.WriteString(s)
	}
	return checkLength(sb.String())
}

func textjoin(cc *CallContext, args []Value) Value {
	delim, errv := coerceText(args[0])
	if errv.IsError() {
		return errv
	}
	ignoreEmpty, errv := coerceBoolean(args[1])
	if errv.IsError() {
		return errv
	}
	var parts []string
	for v := range flattenValues(args[2:]) {
		s, errv := coerceText(v)
		if errv.IsError() {
			return errv
		}
		if s == "" && ignoreEmpty {
			continue
		}
		parts = append(parts, s)
	}
	return checkLength(strings.Join(parts, delim))
}

func checkLength(s string) Value {
	if utf8.RuneCountInString(s) > maxTextLength {
		return ErrorValue(ErrorCodeValue)
	}
	return Text(s)
}

// proper capitalizes the first letter after every non-letter
func proper(cc *CallContext, s string) Value {
	runes := []rune(cases.Lower(cc.Settings.Culture).String(s))
	prevLetter := false
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if !prevLetter {
				runes[i] = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
	}
	return Text(string(runes))
}

// trimSpaces removes leading and trailing spaces and collapses inner runs
// to one space. other whitespace is kept.
func trimSpaces(s string) string {
	fields := strings.Split(s, " ")
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}

func takeText(args []Value, left bool) Value {
	count := optional(args, 1, Number(1))
	return broadcastN([]Value{args[0], count}, func(v []Value) Value {
		s, errv := coerceText(v[0])
		if errv.IsError() {
			return errv
		}
		n, errv := coerceInt(v[1])
		if errv.IsError() {
			return errv
		}
		if n < 0 {
			return ErrorValue(ErrorCodeValue)
		}
		runes := []rune(s)
		if n > len(runes) {
			n = len(runes)
		}
		if left {
			return Text(string(runes[:n]))
		}
		return Text(string(runes[len(runes)-n:]))
	})
}

func mid(cc *CallContext, args []Value) Value {
	return broadcastN(args[:3], func(v []Value) Value {
		s, errv := coerceText(v[0])
		if errv.IsError() {
			return errv
		}
		start, errv := coerceInt(v[1])
		if errv.IsError() {
			return errv
		}
		n, errv := coerceInt(v[2])
		if errv.IsError() {
			return errv
		}
		if start < 1 || n < 0 {
			return ErrorValue(ErrorCodeValue)
		}
		runes := []rune(s)
		if start > len(runes) {
			return Text("")
		}
		end := min(start-1+n, len(runes))
		return Text(string(runes[start-1 : end]))
	})
}

// findText implements FIND (case-sensitive) and SEARCH (case-insensitive
// with wildcards). the result is a 1-based character position.
func findText(args []Value, search bool) Value {
	needle, errv := coerceText(args[0])
	if errv.IsError() {
		return errv
	}
	haystack, errv := coerceText(args[1])
	if errv.IsError() {
		return errv
	}
	start, errv := intArg(args, 2, 1)
	if errv.IsError() {
		return errv
	}
	runes := []rune(haystack)
	if start < 1 || start > len(runes)+1 {
		return ErrorValue(ErrorCodeValue)
	}
	if needle == "" {
		return Number(float64(start))
	}
	for i := start - 1; i < len(runes); i++ {
		rest := string(runes[i:])
		var found bool
		if search {
			found = matchWildcard(needle+"*", rest)
		} else {
			found = strings.HasPrefix(rest, needle)
		}
		if found {
			return Number(float64(i + 1))
		}
	}
	return ErrorValue(ErrorCodeValue)
}

func substitute(cc *CallContext, args []Value) Value {
	s, errv := coerceText(args[0])
	if errv.IsError() {
		return errv
	}
	old, errv := coerceText(args[1])
	if errv.IsError() {
		return errv
	}
	repl, errv := coerceText(args[2])
	if errv.IsError() {
		return errv
	}
	if old == "" {
		return Text(s)
	}
	if len(args) < 4 {
		return checkLength(strings.ReplaceAll(s, old, repl))
	}
	instance, errv := coerceInt(args[3])
	if errv.IsError() {
		return errv
	}
	if instance < 1 {
		return ErrorValue(ErrorCodeValue)
	}
	pos := 0
	for n := 1; ; n++ {
		idx := strings.Index(s[pos:], old)
		if idx < 0 {
			return Text(s)
		}
		if n == instance {
			at := pos + idx
			return checkLength(s[:at] + repl + s[at+len(old):])
		}
		pos += idx + len(old)
	}
}

func replace(cc *CallContext, args []Value) Value {
	s, errv := coerceText(args[0])
	if errv.IsError() {
		return errv
	}
	start, errv := coerceInt(args[1])
	if errv.IsError() {
		return errv
	}
	n, errv := coerceInt(args[2])
	if errv.IsError() {
		return errv
	}
	repl, errv := coerceText(args[3])
	if errv.IsError() {
		return errv
	}
	if start < 1 || n < 0 {
		return ErrorValue(ErrorCodeValue)
	}
	runes := []rune(s)
	from := min(start-1, len(runes))
	to := min(from+n, len(runes))
	return checkLength(string(runes[:from]) + repl + string(runes[to:]))
}

func rept(cc *CallContext, args []Value) Value {
	s, errv := coerceText(args[0])
	if errv.IsError() {
		return errv
	}
	n, errv := coerceInt(args[1])
	if errv.IsError() {
		return errv
	}
	if n < 0 || utf8.RuneCountInString(s)*n > maxTextLength {
		return ErrorValue(ErrorCodeValue)
	}
	return Text(strings.Repeat(s, n))
}

// textToNumber converts text holding a number, percentage, date or time to a
// number
func textToNumber(cc *CallContext, v Value) Value {
	switch v.kind {
	case KindNumber:
		return v
	case KindBlank:
		return Number(0)
	case KindText:
		if n, ok := parseNumberText(v.text); ok {
			return Number(n)
		}
		if n, ok := cc.Settings.parseDateText(v.text); ok {
			return Number(n)
		}
	}
	return ErrorValue(ErrorCodeValue)
}
