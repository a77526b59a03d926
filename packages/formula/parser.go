package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxFormulaLength is the longest formula text accepted, not counting the
// leading "="
const MaxFormulaLength = 8192

// Parser builds an expression tree from a token stream using precedence
// climbing
type Parser struct {
	tokens []Token
	pos    int
	opts   ParseOptions
	depth  int
	// union is the union operator state: enabled at the top level and inside
	// parentheses, suppressed inside function argument lists
	union bool
}

// Parse parses formula text. a leading "=" is skipped unless
// DisallowLeadingEquals is set. the returned error is a *ParseError or wraps
// ErrInvalidOptions.
func Parse(text string, opts *ParseOptions) (Expression, error) {
	popt := opts.normalize()
	if err := popt.validate(); err != nil {
		return nil, err
	}
	n, lead := utf8.RuneCountInString(text), 0
	if body := strings.TrimLeft(text, " \t\r\n"); strings.HasPrefix(body, "=") {
		lead = len(text) - len(body) + 1
		n -= lead
	}
	if n > MaxFormulaLength {
		return nil, newParseError(lead+MaxFormulaLength, "formula is longer than %d characters", MaxFormulaLength)
	}
	tokens, err := NewLexer(text, &popt).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens, popt).Parse()
}

// NewParser creates a parser over tokens produced with the same options
func NewParser(tokens []Token, opts ParseOptions) *Parser {
	return &Parser{tokens: tokens, opts: opts, union: true}
}

// Parse parses the whole token stream into one expression
func (p *Parser) Parse() (Expression, error) {
	if p.peek().Type == TokenEnd {
		return nil, newParseError(p.peek().Pos, "empty formula")
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEnd {
		return nil, newParseError(tok.Pos, "unexpected %s", describeToken(tok))
	}
	return expr, nil
}

func (p *Parser) peek() Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: TokenEnd}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) enter(pos int) error {
	p.depth++
	if p.depth > p.opts.MaxDepth {
		return &ParseError{Message: "formula nested too deeply", Offset: pos, cause: ErrTooDeep}
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

func describeToken(tok Token) string {
	switch tok.Type {
	case TokenEnd:
		return "end of formula"
	case TokenText:
		return "text " + strconv.Quote(tok.Value)
	case TokenIntersection:
		return "space"
	}
	return fmt.Sprintf("%s %q", strings.ToLower(tok.Type.String()), tok.Value)
}

// argumentSeparator returns the token type used between arguments
func (p *Parser) argumentSeparator() TokenType {
	if p.opts.ArgumentSeparator == ';' {
		return TokenSemicolon
	}
	return TokenComma
}

func (p *Parser) parseExpression() (Expression, error) {
	return p.parseBinary(precComparison)
}

// peekBinaryOp reports the binary operator at the current token, if any
func (p *Parser) peekBinaryOp() (BinaryOp, bool) {
	tok := p.peek()
	switch tok.Type {
	case TokenOperator:
		switch tok.Value {
		case "+":
			return BinOpAdd, true
		case "-":
			return BinOpSubtract, true
		case "*":
			return BinOpMultiply, true
		case "/":
			return BinOpDivide, true
		case "^":
			return BinOpPower, true
		case "&":
			return BinOpConcat, true
		case "=":
			return BinOpEqual, true
		case "<>":
			return BinOpNotEqual, true
		case "<":
			return BinOpLess, true
		case "<=":
			return BinOpLessEqual, true
		case ">":
			return BinOpGreater, true
		case ">=":
			return BinOpGreaterEqual, true
		}
	case TokenIntersection:
		return BinOpIntersect, true
	case p.argumentSeparator():
		if p.union {
			return BinOpUnion, true
		}
	}
	return 0, false
}

// parseBinary implements precedence climbing over the binary operators
func (p *Parser) parseBinary(minPrec int) (Expression, error) {
	if err := p.enter(p.peek().Pos); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := p.peekBinaryOp()
		if !ok || op.precedence() < minPrec {
			return left, nil
		}
		opTok := p.advance()

		next := op.precedence() + 1
		if op.rightAssociative() {
			next = op.precedence()
		}
		if p.peek().Type == TokenEnd {
			return nil, newParseError(opTok.Pos, "missing operand after %q", opTok.Value)
		}
		right, err := p.parseBinary(next)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{
			Op:    op,
			Left:  left,
			Right: right,
			Pos:   NodePosition{Start: left.Position().Start, End: right.Position().End},
		}
	}
}

// parseUnary handles prefix + and -, which bind tighter than every binary
// operator including ^
func (p *Parser) parseUnary() (Expression, error) {
	tok := p.peek()
	if tok.Type == TokenOperator && (tok.Value == "-" || tok.Value == "+") {
		if err := p.enter(tok.Pos); err != nil {
			return nil, err
		}
		defer p.leave()

		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := UnaryOpPlus
		if tok.Value == "-" {
			op = UnaryOpMinus
		}
		return &UnaryExpr{Op: op, Operand: operand, Pos: NodePosition{Start: tok.Pos, End: operand.Position().End}}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles the percent operator
func (p *Parser) parsePostfix() (Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokenOperator && p.peek().Value == "%" {
		tok := p.advance()
		expr = &UnaryExpr{Op: UnaryOpPercent, Operand: expr, Pos: NodePosition{Start: expr.Position().Start, End: tok.End}}
	}
	return expr, nil
}

func (p *Parser) parsePrimary() (Expression, error) {
	tok := p.peek()
	pos := NodePosition{Start: tok.Pos, End: tok.End}

	var expr Expression
	switch tok.Type {
	case TokenNumber:
		if p.opts.ReferenceMode == AddressModeA1 && p.peekAt(1).Type == TokenColon && isRowNumber(tok.Value) {
			ref, ok, err := p.parseReference(nil, tok.Pos)
			if err != nil {
				return nil, err
			}
			if ok {
				expr = ref
				break
			}
		}
		p.advance()
		n, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, newParseError(tok.Pos, "invalid number %q", tok.Value)
		}
		return &LiteralExpr{Value: Number(n), Pos: pos}, nil
	case TokenText:
		p.advance()
		return &LiteralExpr{Value: Text(tok.Value), Pos: pos}, nil
	case TokenBoolean:
		p.advance()
		return &LiteralExpr{Value: Boolean(tok.Value == "TRUE"), Pos: pos}, nil
	case TokenError:
		p.advance()
		code, ok := ParseErrorCode(tok.Value)
		if !ok {
			return nil, newParseError(tok.Pos, "unknown error literal %q", tok.Value)
		}
		return &LiteralExpr{Value: ErrorValue(code), Pos: pos}, nil
	case TokenLeftParen:
		inner, err := p.parseParenthesized()
		if err != nil {
			return nil, err
		}
		return inner, nil
	case TokenLeftBrace:
		return p.parseArrayLiteral()
	case TokenName:
		var err error
		expr, err = p.parseName()
		if err != nil {
			return nil, err
		}
	case TokenEnd:
		return nil, newParseError(tok.Pos, "unexpected end of formula")
	default:
		return nil, newParseError(tok.Pos, "unexpected %s", describeToken(tok))
	}

	return p.parseRangeChain(expr)
}

// parseRangeChain applies the ":" operator, which needs references on both
// sides and merges them into one
func (p *Parser) parseRangeChain(expr Expression) (Expression, error) {
	for p.peek().Type == TokenColon {
		colon := p.advance()
		left, ok := expr.(*ReferenceExpr)
		if !ok {
			return nil, newParseError(colon.Pos, "range operator requires a reference on the left")
		}
		next := p.peek()
		var right *ReferenceExpr
		switch next.Type {
		case TokenName, TokenNumber:
			r, isRef, err := p.parseReferenceOperand()
			if err != nil {
				return nil, err
			}
			if !isRef {
				return nil, newParseError(next.Pos, "range operator requires a reference on the right")
			}
			right = r
		default:
			return nil, newParseError(next.Pos, "range operator requires a reference on the right")
		}
		merged, err := mergeRange(left, right, colon.Pos)
		if err != nil {
			return nil, err
		}
		expr = merged
	}
	return expr, nil
}

// parseReferenceOperand parses the right side of ":" which may itself be
// sheet qualified
func (p *Parser) parseReferenceOperand() (*ReferenceExpr, bool, error) {
	tok := p.peek()
	var sheet *SheetRef
	if tok.Type == TokenName && p.peekAt(1).Type == TokenExclamation {
		sheet = sheetFromName(tok.Value, "")
		p.advance()
		p.advance()
	}
	expr, ok, err := p.parseReference(sheet, tok.Pos)
	if err != nil || !ok {
		return nil, ok, err
	}
	return expr, true, nil
}

func mergeRange(left, right *ReferenceExpr, colonPos int) (*ReferenceExpr, error) {
	if right.Ref.Sheet != nil && !right.Ref.Sheet.equal(left.Ref.Sheet) {
		return nil, newParseError(colonPos, "range spans different sheets")
	}
	l, r := left.Ref, right.Ref
	if l.Start.Mode != r.Start.Mode {
		return nil, newParseError(colonPos, "mixed reference styles in range")
	}
	merged := Reference{Sheet: l.Sheet, Start: l.Start, End: r.End}
	if l.Start.Mode == AddressModeA1 && !l.IsCell() {
		// chained ranges take the bounding box
		merged.Start, merged.End = boundingCorners(l, r)
	}
	return &ReferenceExpr{
		Ref: merged,
		Pos: NodePosition{Start: left.Pos.Start, End: right.Pos.End},
	}, nil
}

func boundingCorners(a, b Reference) (ReferenceAddress, ReferenceAddress) {
	start, end := a.Start, a.End
	for _, c := range []ReferenceAddress{b.Start, b.End} {
		if c.Row < start.Row {
			start.Row, start.RowAbsolute = c.Row, c.RowAbsolute
		}
		if c.Column < start.Column {
			start.Column, start.ColumnAbsolute = c.Column, c.ColumnAbsolute
		}
		if c.Row > end.Row {
			end.Row, end.RowAbsolute = c.Row, c.RowAbsolute
		}
		if c.Column > end.Column {
			end.Column, end.ColumnAbsolute = c.Column, c.ColumnAbsolute
		}
		start.AnyRow = start.AnyRow || c.AnyRow
		end.AnyRow = end.AnyRow || c.AnyRow
		start.AnyColumn = start.AnyColumn || c.AnyColumn
		end.AnyColumn = end.AnyColumn || c.AnyColumn
	}
	return start, end
}

func isRowNumber(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s != ""
}

func (p *Parser) parseParenthesized() (Expression, error) {
	open := p.advance()
	saved := p.union
	p.union = true
	inner, err := p.parseExpression()
	p.union = saved
	if err != nil {
		return nil, err
	}
	if p.peek().Type != TokenRightParen {
		return nil, newParseError(p.peek().Pos, "expected ')' to close '(' at %d", open.Pos)
	}
	p.advance()
	return inner, nil
}

// parseName resolves a name token into a sheet-qualified reference, a
// function call, a reference, a structured reference or a defined name
func (p *Parser) parseName() (Expression, error) {
	tok := p.peek()

	// Sheet1!A1 and 'Sheet 1':'Sheet 3'!A1
	if p.peekAt(1).Type == TokenExclamation {
		sheet := sheetFromName(tok.Value, "")
		p.advance()
		p.advance()
		return p.parseQualified(sheet, tok.Pos)
	}
	if p.peekAt(1).Type == TokenColon && p.peekAt(2).Type == TokenName && p.peekAt(3).Type == TokenExclamation {
		sheet := sheetFromName(tok.Value, p.peekAt(2).Value)
		p.pos += 4
		return p.parseQualified(sheet, tok.Pos)
	}

	// function call, the "(" must follow the name directly
	if next := p.peekAt(1); next.Type == TokenLeftParen && !tok.Quoted {
		if next.Pos != tok.End {
			return nil, newParseError(next.Pos, "unexpected space before '('")
		}
		return p.parseFunctionCall()
	}

	if !tok.Quoted {
		ref, ok, err := p.parseReference(nil, tok.Pos)
		if err != nil {
			return nil, err
		}
		if ok {
			return ref, nil
		}
	}

	p.advance()
	pos := NodePosition{Start: tok.Pos, End: tok.End}
	if strings.ContainsRune(tok.Value, charLBracket) {
		sref, ok := parseStructuredReference(tok.Value)
		if !ok {
			return nil, newParseError(tok.Pos, "invalid structured reference %q", tok.Value)
		}
		return &StructuredReferenceExpr{Ref: sref, Pos: pos}, nil
	}
	if tok.Quoted || !isValidName(tok.Value) {
		return nil, newParseError(tok.Pos, "invalid name %q", tok.Value)
	}
	return &NameExpr{Name: tok.Value, Pos: pos}, nil
}

// parseQualified parses whatever follows "Sheet!": a reference, a defined
// name or #REF!
func (p *Parser) parseQualified(sheet *SheetRef, start int) (Expression, error) {
	tok := p.peek()
	switch tok.Type {
	case TokenName, TokenNumber:
		if tok.Type == TokenName && !tok.Quoted {
			ref, ok, err := p.parseReference(sheet, start)
			if err != nil {
				return nil, err
			}
			if ok {
				return ref, nil
			}
			if sheet.IsRange() || !isValidName(tok.Value) {
				return nil, newParseError(tok.Pos, "invalid reference %q", tok.Value)
			}
			p.advance()
			return &NameExpr{Sheet: sheet, Name: tok.Value, Pos: NodePosition{Start: start, End: tok.End}}, nil
		}
		ref, ok, err := p.parseReference(sheet, start)
		if err != nil {
			return nil, err
		}
		if ok {
			return ref, nil
		}
	case TokenError:
		if tok.Value == ErrorCodeRef.String() {
			p.advance()
			return &LiteralExpr{Value: ErrorValue(ErrorCodeRef), Pos: NodePosition{Start: start, End: tok.End}}, nil
		}
	}
	return nil, newParseError(tok.Pos, "expected a reference after sheet name")
}

// sheetFromName builds a sheet qualifier, splitting off a [workbook] prefix
func sheetFromName(first, last string) *SheetRef {
	wb, sheet := splitWorkbook(first)
	return &SheetRef{Workbook: wb, First: sheet, Last: last}
}

// parseReference tries to read a reference at the current token. on success
// the tokens are consumed; otherwise the position is left untouched.
func (p *Parser) parseReference(sheet *SheetRef, start int) (*ReferenceExpr, bool, error) {
	tok := p.peek()
	if tok.Quoted {
		return nil, false, nil
	}

	if p.opts.ReferenceMode == AddressModeR1C1 {
		if tok.Type != TokenName {
			return nil, false, nil
		}
		addr, ok := parseR1C1Address(tok.Value)
		if !ok {
			return nil, false, nil
		}
		p.advance()
		return &ReferenceExpr{
			Ref: Reference{Sheet: sheet, Start: addr, End: addr},
			Pos: NodePosition{Start: start, End: tok.End},
		}, true, nil
	}

	var addr ReferenceAddress
	var ok bool
	switch tok.Type {
	case TokenName:
		addr, ok = parseA1Address(tok.Value)
	case TokenNumber:
		if isRowNumber(tok.Value) {
			addr, ok = parseA1Address(tok.Value)
		}
	}
	if !ok {
		return nil, false, nil
	}

	if !addr.AnyRow && !addr.AnyColumn {
		p.advance()
		return &ReferenceExpr{
			Ref: Reference{Sheet: sheet, Start: addr, End: addr},
			Pos: NodePosition{Start: start, End: tok.End},
		}, true, nil
	}

	// whole columns (A:C) and whole rows (1:3) only exist as ranges
	if p.peekAt(1).Type != TokenColon {
		return nil, false, nil
	}
	endTok := p.peekAt(2)
	if endTok.Type != TokenName && endTok.Type != TokenNumber {
		return nil, false, nil
	}
	end, ok := parseA1Address(endTok.Value)
	if !ok || end.AnyRow != addr.AnyRow || end.AnyColumn != addr.AnyColumn {
		return nil, false, nil
	}
	p.pos += 3
	return &ReferenceExpr{
		Ref: Reference{Sheet: sheet, Start: addr, End: end},
		Pos: NodePosition{Start: start, End: endTok.End},
	}, true, nil
}

// isValidName checks defined-name syntax
func isValidName(s string) bool {
	if s == "" || strings.ContainsAny(s, "$[]") {
		return false
	}
	r := []rune(s)
	return isNameStart(r[0])
}

// parseFunctionCall parses NAME(arg, arg, ...). empty positions become
// blank literals.
func (p *Parser) parseFunctionCall() (Expression, error) {
	nameTok := p.advance()
	p.advance() // (

	name := strings.ToUpper(nameTok.Value)
	for _, prefix := range []string{"_XLFN.", "_XLWS."} {
		name = strings.TrimPrefix(name, prefix)
	}

	saved := p.union
	p.union = false
	defer func() { p.union = saved }()

	sep := p.argumentSeparator()
	var args []Expression

	if p.peek().Type == TokenRightParen {
		end := p.advance()
		return &FunctionCallExpr{Name: name, Args: args, Pos: NodePosition{Start: nameTok.Pos, End: end.End}}, nil
	}

	for {
		tok := p.peek()
		switch tok.Type {
		case sep, TokenRightParen:
			args = append(args, &LiteralExpr{Value: Blank(), Pos: NodePosition{Start: tok.Pos, End: tok.Pos}})
		case TokenEnd:
			return nil, newParseError(tok.Pos, "missing ')' in call to %s", name)
		default:
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}

		tok = p.advance()
		switch tok.Type {
		case TokenRightParen:
			return &FunctionCallExpr{Name: name, Args: args, Pos: NodePosition{Start: nameTok.Pos, End: tok.End}}, nil
		case sep:
			if p.peek().Type == TokenRightParen {
				// trailing separator yields a trailing blank argument
				blank := p.peek()
				args = append(args, &LiteralExpr{Value: Blank(), Pos: NodePosition{Start: blank.Pos, End: blank.Pos}})
				end := p.advance()
				return &FunctionCallExpr{Name: name, Args: args, Pos: NodePosition{Start: nameTok.Pos, End: end.End}}, nil
			}
		case TokenEnd:
			return nil, newParseError(tok.Pos, "missing ')' in call to %s", name)
		default:
			return nil, newParseError(tok.Pos, "expected %q or ')' in call to %s", string(p.opts.ArgumentSeparator), name)
		}
	}
}

// parseArrayLiteral parses {1,2;3,4}. elements are constants, a leading sign
// is folded into the number.
func (p *Parser) parseArrayLiteral() (Expression, error) {
	open := p.advance()
	colSep := TokenComma
	if arrayColumnSeparator(p.opts.ArgumentSeparator) == charBackslash {
		colSep = TokenBackslash
	}

	var rows [][]Expression
	var row []Expression
	rowStart := open.Pos
	for {
		elem, err := p.parseArrayElement()
		if err != nil {
			return nil, err
		}
		row = append(row, elem)

		tok := p.advance()
		switch tok.Type {
		case colSep:
			continue
		case TokenSemicolon:
			if len(rows) > 0 && len(row) != len(rows[0]) {
				return nil, newParseError(rowStart, "array rows must have the same number of columns")
			}
			rows = append(rows, row)
			row = nil
			rowStart = p.peek().Pos
		case TokenRightBrace:
			if len(rows) > 0 && len(row) != len(rows[0]) {
				return nil, newParseError(rowStart, "array rows must have the same number of columns")
			}
			rows = append(rows, row)
			return &ArrayLiteralExpr{Rows: rows, Pos: NodePosition{Start: open.Pos, End: tok.End}}, nil
		case TokenEnd:
			return nil, newParseError(open.Pos, "unterminated array literal")
		default:
			return nil, newParseError(tok.Pos, "unexpected %s in array literal", describeToken(tok))
		}
	}
}

func (p *Parser) parseArrayElement() (Expression, error) {
	tok := p.peek()
	start := tok.Pos
	sign := 1.0
	for tok.Type == TokenOperator && (tok.Value == "-" || tok.Value == "+") {
		if tok.Value == "-" {
			sign = -sign
		}
		p.advance()
		tok = p.peek()
		if tok.Type != TokenNumber && !(tok.Type == TokenOperator && (tok.Value == "-" || tok.Value == "+")) {
			return nil, newParseError(tok.Pos, "expected a number after sign in array literal")
		}
	}
	pos := NodePosition{Start: start, End: tok.End}
	switch tok.Type {
	case TokenNumber:
		p.advance()
		n, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, newParseError(tok.Pos, "invalid number %q", tok.Value)
		}
		return &LiteralExpr{Value: Number(sign * n), Pos: pos}, nil
	case TokenText:
		p.advance()
		return &LiteralExpr{Value: Text(tok.Value), Pos: pos}, nil
	case TokenBoolean:
		p.advance()
		return &LiteralExpr{Value: Boolean(tok.Value == "TRUE"), Pos: pos}, nil
	case TokenError:
		p.advance()
		code, _ := ParseErrorCode(tok.Value)
		return &LiteralExpr{Value: ErrorValue(code), Pos: pos}, nil
	case TokenRightBrace, TokenSemicolon, TokenComma, TokenBackslash:
		return nil, newParseError(tok.Pos, "array literal elements cannot be empty")
	}
	return nil, newParseError(tok.Pos, "array literal elements must be constants")
}
