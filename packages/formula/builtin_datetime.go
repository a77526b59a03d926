package formula

import "math"

func registerDateTimeFunctions(r *Registry) {
	r.mustRegister(
		NewEagerFunction("DATE", 3, 3, false, date),
		NewEagerFunction("TIME", 3, 3, false, timeFunc),
		datePart("YEAR", func(d civilDate, serial float64) Value { return Number(float64(d.year)) }),
		datePart("MONTH", func(d civilDate, serial float64) Value { return Number(float64(d.month)) }),
		datePart("DAY", func(d civilDate, serial float64) Value { return Number(float64(d.day)) }),
		datePart("HOUR", func(d civilDate, serial float64) Value {
			h, _, _ := clockFromSerial(serial)
			return Number(float64(h))
		}),
		datePart("MINUTE", func(d civilDate, serial float64) Value {
			_, m, _ := clockFromSerial(serial)
			return Number(float64(m))
		}),
		datePart("SECOND", func(d civilDate, serial float64) Value {
			_, _, s := clockFromSerial(serial)
			return Number(float64(s))
		}),
		NewEagerFunction("TODAY", 0, 0, true, func(cc *CallContext, args []Value) Value {
			return Number(math.Floor(cc.Settings.serialFromTime(cc.Now())))
		}),
		NewEagerFunction("NOW", 0, 0, true, func(cc *CallContext, args []Value) Value {
			return Number(cc.Settings.serialFromTime(cc.Now()))
		}),
		NewEagerFunction("WEEKDAY", 1, 2, false, weekday),
		NewEagerFunction("EDATE", 2, 2, false, func(cc *CallContext, args []Value) Value {
			return shiftMonths(cc, args, false)
		}),
		NewEagerFunction("EOMONTH", 2, 2, false, func(cc *CallContext, args []Value) Value {
			return shiftMonths(cc, args, true)
		}),
		NewEagerFunction("DAYS", 2, 2, false, days),
		NewEagerFunction("DATEVALUE", 1, 1, false, func(cc *CallContext, args []Value) Value {
			return broadcast1(args[0], func(v Value) Value {
				if !v.IsText() {
					return ErrorValue(ErrorCodeValue)
				}
				serial, ok := cc.Settings.parseDateText(v.text)
				if !ok {
					return ErrorValue(ErrorCodeValue)
				}
				return Number(math.Floor(serial))
			})
		}),
		NewEagerFunction("WORKDAY", 2, 3, false, workday),
		NewEagerFunction("NETWORKDAYS", 2, 3, false, networkdays),
	)
}

// serialArg reads a date argument. text is accepted as a number or as
// date text.
func serialArg(s CalculationSettings, v Value) (float64, Value) {
	if v.IsText() {
		if n, ok := parseNumberText(v.text); ok {
			return n, Value{}
		}
		if n, ok := s.parseDateText(v.text); ok {
			return n, Value{}
		}
		return 0, ErrorValue(ErrorCodeValue)
	}
	return coerceNumber(v)
}

// datePart builds a function extracting one component of a serial
func datePart(name string, fn func(d civilDate, serial float64) Value) Function {
	return NewEagerFunction(name, 1, 1, false, func(cc *CallContext, args []Value) Value {
		return broadcast1(args[0], func(v Value) Value {
			serial, errv := serialArg(cc.Settings, v)
			if errv.IsError() {
				return errv
			}
			d, ok := cc.Settings.dateFromSerial(serial)
			if !ok {
				return ErrorValue(ErrorCodeNum)
			}
			return fn(d, serial)
		})
	})
}

func date(cc *CallContext, args []Value) Value {
	var parts [3]int
	for i := range parts {
		n, errv := coerceInt(args[i])
		if errv.IsError() {
			return errv
		}
		parts[i] = n
	}
	serial, ok := cc.Settings.serialFromDate(parts[0], parts[1], parts[2])
	if !ok {
		return ErrorValue(ErrorCodeNum)
	}
	return Number(serial)
}

func timeFunc(cc *CallContext, args []Value) Value {
	var parts [3]int
	for i := range parts {
		n, errv := coerceInt(args[i])
		if errv.IsError() {
			return errv
		}
		parts[i] = n
	}
	secs := parts[0]*3600 + parts[1]*60 + parts[2]
	if secs < 0 {
		return ErrorValue(ErrorCodeNum)
	}
	return Number(float64(secs%86400) / 86400)
}

func weekday(cc *CallContext, args []Value) Value {
	serial, errv := serialArg(cc.Settings, args[0])
	if errv.IsError() {
		return errv
	}
	kind, errv := intArg(args, 1, 1)
	if errv.IsError() {
		return errv
	}
	if _, ok := cc.Settings.dateFromSerial(serial); !ok {
		return ErrorValue(ErrorCodeNum)
	}
	wd := cc.Settings.weekdayOf(serial)
	switch {
	case kind == 1:
		return Number(float64(wd + 1))
	case kind == 2:
		return Number(float64((wd+6)%7 + 1))
	case kind == 3:
		return Number(float64((wd + 6) % 7))
	case kind >= 11 && kind <= 17:
		// 11 starts the week on Monday, 17 on Sunday
		start := (kind - 10) % 7
		return Number(float64((wd-start+7)%7 + 1))
	}
	return ErrorValue(ErrorCodeNum)
}

func shiftMonths(cc *CallContext, args []Value, endOfMonth bool) Value {
	serial, errv := serialArg(cc.Settings, args[0])
	if errv.IsError() {
		return errv
	}
	months, errv := coerceInt(args[1])
	if errv.IsError() {
		return errv
	}
	out, ok := cc.Settings.addMonths(serial, months, endOfMonth)
	if !ok {
		return ErrorValue(ErrorCodeNum)
	}
	return Number(out)
}

func days(cc *CallContext, args []Value) Value {
	end, errv := serialArg(cc.Settings, args[0])
	if errv.IsError() {
		return errv
	}
	start, errv := serialArg(cc.Settings, args[1])
	if errv.IsError() {
		return errv
	}
	return Number(math.Floor(end) - math.Floor(start))
}

// holidaySet reads an optional holiday list into a set of day serials
func holidaySet(cc *CallContext, args []Value, i int) (map[int]bool, Value) {
	set := make(map[int]bool)
	if i >= len(args) {
		return set, Value{}
	}
	for v := range flattenValues(args[i:]) {
		if v.IsBlank() {
			continue
		}
		serial, errv := serialArg(cc.Settings, v)
		if errv.IsError() {
			return nil, errv
		}
		set[int(math.Floor(serial))] = true
	}
	return set, Value{}
}

func (cc *CallContext) isWorkday(day int, holidays map[int]bool) bool {
	return !isWeekend(cc.Settings.weekdayOf(float64(day))) && !holidays[day]
}

// workday steps over weekends and holidays one day at a time
func workday(cc *CallContext, args []Value) Value {
	start, errv := serialArg(cc.Settings, args[0])
	if errv.IsError() {
		return errv
	}
	n, errv := coerceInt(args[1])
	if errv.IsError() {
		return errv
	}
	holidays, errv := holidaySet(cc, args, 2)
	if errv.IsError() {
		return errv
	}
	if _, ok := cc.Settings.dateFromSerial(start); !ok {
		return ErrorValue(ErrorCodeNum)
	}
	day, step := int(math.Floor(start)), 1
	if n < 0 {
		step, n = -1, -n
	}
	limit := cc.Settings.maxSerial()
	for n > 0 {
		day += step
		if day < 0 || day > limit {
			return ErrorValue(ErrorCodeNum)
		}
		if cc.isWorkday(day, holidays) {
			n--
		}
	}
	return Number(float64(day))
}

// networkdays counts working days between two dates, both included. the
// count is negative when start is after end.
func networkdays(cc *CallContext, args []Value) Value {
	start, errv := serialArg(cc.Settings, args[0])
	if errv.IsError() {
		return errv
	}
	end, errv := serialArg(cc.Settings, args[1])
	if errv.IsError() {
		return errv
	}
	holidays, errv := holidaySet(cc, args, 2)
	if errv.IsError() {
		return errv
	}
	from, to, sign := int(math.Floor(start)), int(math.Floor(end)), 1
	if from > to {
		from, to, sign = to, from, -1
	}
	if from < 0 || to > cc.Settings.maxSerial() {
		return ErrorValue(ErrorCodeNum)
	}
	n := 0
	for day := from; day <= to; day++ {
		if cc.isWorkday(day, holidays) {
			n++
		}
	}
	return Number(float64(sign * n))
}
