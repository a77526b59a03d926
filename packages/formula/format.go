package formula

import (
	"math"
	"strconv"
	"strings"
)

// Format renders an expression back to formula text with the minimal set of
// parentheses needed to parse to the same tree
func Format(expr Expression, opts *FormatOptions) string {
	f := &formatter{opts: opts.normalize()}
	if f.opts.IncludeLeadingEquals {
		f.sb.WriteByte('=')
	}
	f.write(expr, false)
	return f.sb.String()
}

type formatter struct {
	opts FormatOptions
	sb   strings.Builder
}

// exprPrecedence is the binding strength of a node as an operand
func exprPrecedence(e Expression) int {
	switch n := e.(type) {
	case *BinaryExpr:
		return n.Op.precedence()
	case *UnaryExpr:
		return precUnary
	}
	return precPrimary
}

func (f *formatter) write(e Expression, inArgs bool) {
	switch n := e.(type) {
	case *LiteralExpr:
		f.writeLiteral(n.Value)
	case *NameExpr:
		if n.Sheet != nil {
			f.sb.WriteString(n.Sheet.String())
			f.sb.WriteByte('!')
		}
		f.sb.WriteString(n.Name)
	case *ReferenceExpr:
		f.sb.WriteString(n.Ref.String())
	case *StructuredReferenceExpr:
		f.sb.WriteString(n.Ref.String())
	case *FunctionCallExpr:
		f.sb.WriteString(n.Name)
		f.sb.WriteByte('(')
		for i, arg := range n.Args {
			if i > 0 {
				f.sb.WriteRune(f.opts.ArgumentSeparator)
			}
			f.write(arg, true)
		}
		f.sb.WriteByte(')')
	case *ArrayLiteralExpr:
		colSep := arrayColumnSeparator(f.opts.ArgumentSeparator)
		f.sb.WriteByte('{')
		for r, row := range n.Rows {
			if r > 0 {
				f.sb.WriteByte(';')
			}
			for c, elem := range row {
				if c > 0 {
					f.sb.WriteRune(colSep)
				}
				f.write(elem, false)
			}
		}
		f.sb.WriteByte('}')
	case *UnaryExpr:
		wrap := exprPrecedence(n.Operand) < precUnary
		if n.Op == UnaryOpPercent {
			// -5% reads as -(5%), so a signed operand needs parentheses
			if u, ok := n.Operand.(*UnaryExpr); ok && u.Op != UnaryOpPercent {
				wrap = true
			}
			f.writeOperand(n.Operand, wrap, inArgs)
			f.sb.WriteByte('%')
			return
		}
		f.sb.WriteString(n.Op.String())
		f.writeOperand(n.Operand, wrap, inArgs)
	case *BinaryExpr:
		f.writeBinary(n, inArgs)
	}
}

func (f *formatter) writeBinary(n *BinaryExpr, inArgs bool) {
	prec := n.Op.precedence()

	// a union inside an argument list must be parenthesized or it would
	// read as two arguments
	if n.Op == BinOpUnion && inArgs {
		f.sb.WriteByte('(')
		f.writeBinary(n, false)
		f.sb.WriteByte(')')
		return
	}

	lp := exprPrecedence(n.Left)
	wrapLeft := lp < prec || (lp == prec && n.Op.rightAssociative())
	rp := exprPrecedence(n.Right)
	wrapRight := rp < prec || (rp == prec && !n.Op.rightAssociative())

	if n.Op == BinOpIntersect && !wrapLeft {
		// "foo (A1,B1)" lexes as a call to foo, so a left operand that
		// does not end in a cell or ")" needs parentheses when the right
		// one starts with "("
		left := f.operandText(n.Left, false, inArgs)
		right := f.operandText(n.Right, wrapRight, inArgs)
		if strings.HasPrefix(right, "(") && !endsLikeReference(left) {
			wrapLeft = true
		}
	}
	f.writeOperand(n.Left, wrapLeft, inArgs)

	if n.Op == BinOpUnion {
		f.sb.WriteRune(f.opts.ArgumentSeparator)
	} else {
		f.sb.WriteString(n.Op.String())
	}

	f.writeOperand(n.Right, wrapRight, inArgs)
}

func (f *formatter) operandText(e Expression, wrap, inArgs bool) string {
	sub := &formatter{opts: f.opts}
	sub.writeOperand(e, wrap, inArgs)
	return sub.sb.String()
}

// endsLikeReference reports whether the lexer accepts "(" after text as the
// start of an intersection operand
func endsLikeReference(text string) bool {
	if strings.HasSuffix(text, ")") {
		return true
	}
	tail := text
	if i := strings.LastIndexAny(tail, ":!"); i >= 0 {
		tail = tail[i+1:]
	}
	_, ok := parseA1Cell(tail)
	return ok
}

func (f *formatter) writeOperand(e Expression, wrap, inArgs bool) {
	if wrap {
		f.sb.WriteByte('(')
		f.write(e, false)
		f.sb.WriteByte(')')
		return
	}
	f.write(e, inArgs)
}

func (f *formatter) writeLiteral(v Value) {
	switch v.Kind() {
	case KindNumber:
		f.sb.WriteString(f.formatNumber(v.Num()))
	case KindText:
		f.sb.WriteString(quoteText(v.Str()))
	case KindBoolean, KindError:
		f.sb.WriteString(v.String())
	case KindBlank:
	default:
		f.sb.WriteString(v.String())
	}
}

func (f *formatter) formatNumber(n float64) string {
	abs := math.Abs(n)
	var s string
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		s = strconv.FormatFloat(n, 'E', -1, 64)
	} else {
		s = strconv.FormatFloat(n, 'f', -1, 64)
	}
	if f.opts.DecimalSeparator != '.' {
		s = strings.Replace(s, ".", string(f.opts.DecimalSeparator), 1)
	}
	return s
}
