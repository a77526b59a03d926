package formula

import "strings"

type criteriaOp int

const (
	criteriaEqual criteriaOp = iota
	criteriaNotEqual
	criteriaLess
	criteriaLessEqual
	criteriaGreater
	criteriaGreaterEqual
)

// longest prefixes first
var criteriaPrefixes = []struct {
	text string
	op   criteriaOp
}{
	{">=", criteriaGreaterEqual},
	{"<=", criteriaLessEqual},
	{"<>", criteriaNotEqual},
	{">", criteriaGreater},
	{"<", criteriaLess},
	{"=", criteriaEqual},
}

// criterion is a compiled COUNTIF-style condition such as ">=10", "ca*" or
// "<>". operand is Blank for the empty-cell tests.
type criterion struct {
	op       criteriaOp
	operand  Value
	wildcard bool
	tc       *TextComparer
}

// compileCriterion compiles a criteria argument once so it can be applied
// to every cell of a range
func compileCriterion(v Value, tc *TextComparer) (*criterion, Value) {
	c := &criterion{op: criteriaEqual, tc: tc}
	switch v.kind {
	case KindError:
		return nil, v
	case KindArray:
		return compileCriterion(v.array.At(0, 0), tc)
	case KindNumber, KindBoolean, KindBlank:
		c.operand = v
		return c, Value{}
	case KindText:
	default:
		return nil, ErrorValue(ErrorCodeValue)
	}

	rest := v.text
	for _, p := range criteriaPrefixes {
		if strings.HasPrefix(rest, p.text) {
			c.op = p.op
			rest = rest[len(p.text):]
			break
		}
	}

	if rest == "" {
		c.operand = Blank()
		return c, Value{}
	}
	if n, ok := parseNumberText(rest); ok {
		c.operand = Number(n)
		return c, Value{}
	}
	switch strings.ToUpper(rest) {
	case "TRUE":
		c.operand = Boolean(true)
		return c, Value{}
	case "FALSE":
		c.operand = Boolean(false)
		return c, Value{}
	}
	if code, ok := ParseErrorCode(rest); ok {
		c.operand = ErrorValue(code)
		return c, Value{}
	}
	c.operand = Text(rest)
	c.wildcard = (c.op == criteriaEqual || c.op == criteriaNotEqual) && strings.ContainsAny(rest, "*?~")
	return c, Value{}
}

func (c *criterion) holds(cmp int) bool {
	switch c.op {
	case criteriaEqual:
		return cmp == 0
	case criteriaNotEqual:
		return cmp != 0
	case criteriaLess:
		return cmp < 0
	case criteriaLessEqual:
		return cmp <= 0
	case criteriaGreater:
		return cmp > 0
	}
	return cmp >= 0
}

// match reports whether a cell value satisfies the criterion. values of a
// different kind than the operand only satisfy "<>".
func (c *criterion) match(v Value) bool {
	mismatch := c.op == criteriaNotEqual
	switch c.operand.kind {
	case KindBlank:
		empty := v.IsBlank() || (v.IsText() && v.text == "")
		switch c.op {
		case criteriaEqual:
			return empty
		case criteriaNotEqual:
			return !empty
		}
		return false
	case KindNumber:
		x := v.num
		switch {
		case v.IsNumber():
		case v.IsText() && c.op == criteriaEqual:
			n, ok := parseNumberText(v.text)
			if !ok {
				return false
			}
			x = n
		default:
			return mismatch
		}
		return c.holds(cmpFloat(x, c.operand.num))
	case KindBoolean:
		if !v.IsBoolean() {
			return mismatch
		}
		return c.holds(cmpFloat(v.num, c.operand.num))
	case KindError:
		if !v.IsError() {
			return mismatch
		}
		return c.holds(cmpInt(int(v.code), int(c.operand.code)))
	case KindText:
		if !v.IsText() {
			return mismatch
		}
		if c.wildcard {
			return matchWildcard(c.operand.text, v.text) != mismatch
		}
		return c.holds(c.tc.Compare(v.text, c.operand.text))
	}
	return false
}

// matchWildcard matches s against a pattern where * is any run, ? any one
// character and ~ escapes the next wildcard. matching ignores case.
func matchWildcard(pattern, s string) bool {
	p := []rune(strings.ToLower(pattern))
	t := []rune(strings.ToLower(s))
	pi, ti := 0, 0
	star, mark := -1, 0
	for ti < len(t) {
		if pi < len(p) {
			switch {
			case p[pi] == '*':
				star, mark = pi, ti
				pi++
				continue
			case p[pi] == '~' && pi+1 < len(p) && strings.ContainsRune("*?~", p[pi+1]):
				if p[pi+1] == t[ti] {
					pi += 2
					ti++
					continue
				}
			case p[pi] == '?' || p[pi] == t[ti]:
				pi++
				ti++
				continue
			}
		}
		if star < 0 {
			return false
		}
		pi = star + 1
		mark++
		ti = mark
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// criteriaMask applies the (range, criteria) pairs in args[start:] and
// returns which cells of a rows x cols grid satisfy all of them. every range
// must have that shape.
func criteriaMask(cc *CallContext, args []Value, start, rows, cols int) ([]bool, Value) {
	if (len(args)-start)%2 != 0 {
		return nil, ErrorValue(ErrorCodeValue)
	}
	mask := make([]bool, rows*cols)
	for i := range mask {
		mask[i] = true
	}
	for i := start; i < len(args); i += 2 {
		if args[i].IsError() {
			return nil, args[i]
		}
		r := toArray(args[i])
		if r.rows != rows || r.cols != cols {
			return nil, ErrorValue(ErrorCodeValue)
		}
		c, errv := compileCriterion(args[i+1], cc.Comparer())
		if errv.IsError() {
			return nil, errv
		}
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				idx := row*cols + col
				if mask[idx] && !c.match(r.At(row, col)) {
					mask[idx] = false
				}
			}
		}
	}
	return mask, Value{}
}
