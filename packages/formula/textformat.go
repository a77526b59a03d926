package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goodsign/monday"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// mondayLocales maps culture tags to localized month and day names
var mondayLocales = map[string]monday.Locale{
	"en":    monday.LocaleEnUS,
	"en_us": monday.LocaleEnUS,
	"en_gb": monday.LocaleEnGB,
	"de":    monday.LocaleDeDE,
	"de_de": monday.LocaleDeDE,
	"fr":    monday.LocaleFrFR,
	"fr_fr": monday.LocaleFrFR,
	"fr_ca": monday.LocaleFrCA,
	"es":    monday.LocaleEsES,
	"es_es": monday.LocaleEsES,
	"it":    monday.LocaleItIT,
	"it_it": monday.LocaleItIT,
	"pt":    monday.LocalePtPT,
	"pt_pt": monday.LocalePtPT,
	"pt_br": monday.LocalePtBR,
	"nl":    monday.LocaleNlNL,
	"nl_nl": monday.LocaleNlNL,
	"ru":    monday.LocaleRuRU,
	"pl":    monday.LocalePlPL,
	"sv":    monday.LocaleSvSE,
	"da":    monday.LocaleDaDK,
	"fi":    monday.LocaleFiFI,
	"ja":    monday.LocaleJaJP,
	"zh":    monday.LocaleZhCN,
	"zh_cn": monday.LocaleZhCN,
	"zh_tw": monday.LocaleZhTW,
	"ko":    monday.LocaleKoKR,
}

func mondayLocale(tag language.Tag) monday.Locale {
	base, _ := tag.Base()
	region, _ := tag.Region()
	if loc, ok := mondayLocales[strings.ToLower(base.String()+"_"+region.String())]; ok {
		return loc
	}
	if loc, ok := mondayLocales[base.String()]; ok {
		return loc
	}
	return monday.LocaleEnUS
}

// groupedNumber prints x with culture digit grouping and a fixed number of
// decimals
func groupedNumber(tag language.Tag, x float64, decimals int, group bool) string {
	opts := []number.Option{number.Scale(decimals)}
	if !group {
		opts = append(opts, number.NoSeparator())
	}
	return message.NewPrinter(tag).Sprint(number.Decimal(x, opts...))
}

// currencySymbol is the symbol of the culture's currency, "$" for the
// invariant culture or one without a currency
func currencySymbol(tag language.Tag) string {
	if tag == language.Und {
		return "$"
	}
	unit, conf := currency.FromTag(tag)
	if conf == language.No {
		return "$"
	}
	return message.NewPrinter(tag).Sprint(currency.Symbol(unit))
}

// fixed formats like FIXED: rounded to decimals places, grouped unless
// noCommas. negative decimals round left of the point.
func fixed(tag language.Tag, x float64, decimals int, noCommas bool) string {
	x = roundDigits(x, decimals, roundHalfAway)
	neg := x < 0
	s := groupedNumber(tag, math.Abs(x), max(decimals, 0), !noCommas)
	if neg {
		return "-" + s
	}
	return s
}

// dollar formats like DOLLAR: a negative amount is wrapped in parentheses
func dollar(tag language.Tag, x float64, decimals int) string {
	x = roundDigits(x, decimals, roundHalfAway)
	s := currencySymbol(tag) + groupedNumber(tag, math.Abs(x), max(decimals, 0), true)
	if x < 0 {
		return "(" + s + ")"
	}
	return s
}

// splitSections splits a format code on ';' outside quotes
func splitSections(code string) []string {
	var sections []string
	var sb strings.Builder
	quoted := false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case ch == '"':
			quoted = !quoted
		case ch == '\\' && i+1 < len(code):
			sb.WriteByte(ch)
			i++
			ch = code[i]
		case ch == ';' && !quoted:
			sections = append(sections, sb.String())
			sb.Reset()
			continue
		}
		sb.WriteByte(ch)
	}
	return append(sections, sb.String())
}

// formatValue renders v with a spreadsheet format code as TEXT does
func formatValue(s CalculationSettings, v Value, code string) Value {
	sections := splitSections(code)
	if v.IsText() {
		if n, ok := parseNumberText(v.text); ok {
			v = Number(n)
		} else {
			if len(sections) >= 4 {
				return Text(strings.ReplaceAll(unquote(sections[3]), "@", v.text))
			}
			return v
		}
	}
	x, errv := coerceNumber(v)
	if errv.IsError() {
		return errv
	}

	section, neg := sections[0], x < 0
	switch {
	case x < 0 && len(sections) >= 2:
		section, neg, x = sections[1], false, -x
	case x == 0 && len(sections) >= 3:
		section = sections[2]
	}

	if isDateFormat(section) {
		out, ok := formatDate(s, x, section)
		if !ok {
			return ErrorValue(ErrorCodeValue)
		}
		return Text(out)
	}
	out := formatNumberCode(s.Culture, math.Abs(x), section)
	if neg && x != 0 && strings.ContainsAny(out, "123456789") {
		out = "-" + out
	}
	return Text(out)
}

func unquote(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

// isDateFormat reports date or time tokens outside quotes
func isDateFormat(section string) bool {
	if strings.EqualFold(section, "General") {
		return false
	}
	quoted := false
	for i := 0; i < len(section); i++ {
		ch := section[i]
		switch {
		case ch == '"':
			quoted = !quoted
		case ch == '\\':
			i++
		case quoted:
		case strings.IndexByte("yYdDhHsS", ch) >= 0:
			return true
		case ch == 'm' || ch == 'M':
			if !strings.ContainsAny(section, "0#?") {
				return true
			}
		}
	}
	return false
}

// formatDate renders a serial with y, m, d, h, s and AM/PM tokens. month
// and day names come from the culture.
func formatDate(s CalculationSettings, serial float64, section string) (string, bool) {
	d, ok := s.dateFromSerial(serial)
	if !ok {
		return "", false
	}
	t, _ := s.timeFromSerial(serial)
	hour, minute, second := clockFromSerial(serial)
	locale := mondayLocale(s.Culture)
	twelve := strings.Contains(strings.ToUpper(section), "AM/PM")

	var sb strings.Builder
	lastWasHour := false
	for i := 0; i < len(section); {
		ch := section[i]
		run := 1
		for i+run < len(section) && strings.EqualFold(section[i+run:i+run+1], string(ch)) {
			run++
		}
		lower := ch | 0x20
		switch {
		case ch == '"':
			end := strings.IndexByte(section[i+1:], '"')
			if end < 0 {
				end = len(section) - i - 1
			}
			sb.WriteString(section[i+1 : i+1+end])
			i += end + 2
			continue
		case ch == '\\' && i+1 < len(section):
			sb.WriteByte(section[i+1])
			i += 2
			continue
		case strings.HasPrefix(strings.ToUpper(section[i:]), "AM/PM"):
			if hour < 12 {
				sb.WriteString("AM")
			} else {
				sb.WriteString("PM")
			}
			i += 5
			continue
		case lower == 'y':
			if run <= 2 {
				fmt.Fprintf(&sb, "%02d", d.year%100)
			} else {
				fmt.Fprintf(&sb, "%04d", d.year)
			}
		case lower == 'm':
			minutes := lastWasHour || nextIsSeconds(section[i+run:])
			switch {
			case minutes && run <= 2:
				sb.WriteString(pad(minute, run))
			case run == 1 || run == 2:
				sb.WriteString(pad(int(d.month), run))
			case run == 3:
				sb.WriteString(monday.Format(t, "Jan", locale))
			default:
				sb.WriteString(monday.Format(t, "January", locale))
			}
		case lower == 'd':
			switch {
			case run <= 2:
				sb.WriteString(pad(d.day, run))
			case run == 3:
				sb.WriteString(monday.Format(t, "Mon", locale))
			default:
				sb.WriteString(monday.Format(t, "Monday", locale))
			}
		case lower == 'h':
			h := hour
			if twelve {
				h = hour % 12
				if h == 0 {
					h = 12
				}
			}
			sb.WriteString(pad(h, run))
		case lower == 's':
			sb.WriteString(pad(second, run))
		default:
			sb.WriteString(section[i : i+run])
		}
		if strings.IndexByte("ymdhs", lower) >= 0 {
			lastWasHour = lower == 'h'
		}
		i += run
	}
	return sb.String(), true
}

func nextIsSeconds(rest string) bool {
	rest = strings.TrimLeft(rest, ":. ")
	return rest != "" && (rest[0]|0x20) == 's'
}

func pad(n, width int) string {
	if width >= 2 {
		return fmt.Sprintf("%02d", n)
	}
	return strconv.Itoa(n)
}

// numberCode is a parsed numeric format section
type numberCode struct {
	prefix, suffix string
	intZeros       int
	fracMin        int
	fracMax        int
	group          bool
	percent        int
	scale          int
	exponent       bool
	expDigits      int
	expPlus        bool
}

func parseNumberCode(section string) numberCode {
	var nc numberCode
	var prefix, suffix strings.Builder
	seenDigit, inFrac, afterDigits := false, false, false
	pendingCommas := 0
	for i := 0; i < len(section); i++ {
		ch := section[i]
		out := &prefix
		if seenDigit {
			out = &suffix
		}
		switch {
		case ch == '"':
			end := strings.IndexByte(section[i+1:], '"')
			if end < 0 {
				end = len(section) - i - 1
			}
			out.WriteString(section[i+1 : i+1+end])
			i += end + 1
			afterDigits = seenDigit
		case ch == '\\' && i+1 < len(section):
			i++
			out.WriteByte(section[i])
			afterDigits = seenDigit
		case (ch == 'E' || ch == 'e') && seenDigit && i+1 < len(section) && (section[i+1] == '+' || section[i+1] == '-'):
			nc.exponent = true
			nc.expPlus = section[i+1] == '+'
			i += 2
			for i < len(section) && section[i] == '0' {
				nc.expDigits++
				i++
			}
			i--
			afterDigits = true
		case (ch == '0' || ch == '#' || ch == '?') && !afterDigits:
			seenDigit = true
			if pendingCommas > 0 {
				nc.group = true
				pendingCommas = 0
			}
			if inFrac {
				nc.fracMax++
				if ch == '0' {
					nc.fracMin = nc.fracMax
				}
			} else if ch == '0' {
				nc.intZeros++
			}
		case ch == '.' && !afterDigits && !inFrac:
			inFrac = true
			seenDigit = true
		case ch == ',' && seenDigit && !afterDigits && !inFrac:
			pendingCommas++
		case ch == '%':
			nc.percent++
			out.WriteByte(ch)
			afterDigits = seenDigit
		default:
			if seenDigit {
				afterDigits = true
			}
			out.WriteByte(ch)
		}
	}
	// commas after the last digit placeholder scale by thousands
	nc.scale = pendingCommas
	nc.prefix, nc.suffix = prefix.String(), suffix.String()
	return nc
}

func formatNumberCode(tag language.Tag, x float64, section string) string {
	if section == "" || strings.EqualFold(section, "General") {
		return FormatNumber(x)
	}
	if strings.Contains(section, "@") && !strings.ContainsAny(section, "0#?") {
		return strings.ReplaceAll(unquote(section), "@", FormatNumber(x))
	}
	nc := parseNumberCode(section)
	for i := 0; i < nc.percent; i++ {
		x *= 100
	}
	for i := 0; i < nc.scale; i++ {
		x /= 1000
	}

	var body string
	if nc.exponent {
		exp := 0
		if x != 0 {
			exp = int(math.Floor(math.Log10(x)))
		}
		mant := roundDigits(x/math.Pow(10, float64(exp)), nc.fracMax, roundHalfAway)
		if mant >= 10 {
			mant /= 10
			exp++
		}
		sign := ""
		switch {
		case exp < 0:
			sign = "-"
		case nc.expPlus:
			sign = "+"
		}
		digits := strconv.Itoa(abs(exp))
		for len(digits) < nc.expDigits {
			digits = "0" + digits
		}
		body = strconv.FormatFloat(mant, 'f', nc.fracMax, 64) + "E" + sign + digits
	} else {
		x = roundDigits(x, nc.fracMax, roundHalfAway)
		body = groupedNumber(tag, x, nc.fracMax, nc.group)
		body = trimFraction(body, nc.fracMin, nc.fracMax)
		if nc.intZeros == 0 && math.Abs(x) < 1 {
			body = strings.TrimPrefix(body, "0")
		}
	}
	return nc.prefix + body + nc.suffix
}

// trimFraction drops optional trailing zeros (# placeholders) beyond the
// required fraction digits
func trimFraction(s string, fracMin, fracMax int) string {
	if fracMax == fracMin {
		return s
	}
	drop := 0
	for drop < fracMax-fracMin && strings.HasSuffix(s[:len(s)-drop], "0") {
		drop++
	}
	s = s[:len(s)-drop]
	if drop == fracMax {
		// remove the now trailing decimal separator
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
