package formula

import (
	"strings"
	"unicode"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEnd TokenType = iota
	TokenNumber
	TokenText
	TokenBoolean
	TokenError
	TokenName
	TokenComma
	TokenSemicolon
	TokenColon
	TokenExclamation
	TokenLeftParen
	TokenRightParen
	TokenLeftBrace
	TokenRightBrace
	TokenBackslash
	TokenOperator
	TokenIntersection
)

var tokenTypeNames = [...]string{
	"End", "Number", "Text", "Boolean", "Error", "Name", "Comma", "Semicolon",
	"Colon", "Exclamation", "LeftParen", "RightParen", "LeftBrace", "RightBrace",
	"Backslash", "Operator", "Intersection",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "Unknown"
}

// Token is a lexical unit. Pos and End are the character offsets of its
// first rune and one past its last. numbers always use '.' as decimal
// separator in Value; Quoted marks names written as 'quoted sheet names'.
type Token struct {
	Type   TokenType
	Value  string
	Pos    int
	End    int
	Quoted bool
}

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charPercent    = '%'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charLBrace     = '{'
	charRBrace     = '}'
	charLBracket   = '['
	charRBracket   = ']'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charSemicolon  = ';'
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charBackslash  = '\\'
	charColon      = ':'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
	charDollar     = '$'
	charHash       = '#'
	charQuestion   = '?'
)

// Lexer tokenizes spreadsheet formula expressions
type Lexer struct {
	runes  []rune // UTF-8 aware representation
	pos    int
	opts   ParseOptions
	tokens []Token
}

// NewLexer creates a lexer for the formula text
func NewLexer(input string, opts *ParseOptions) *Lexer {
	return &Lexer{
		runes: []rune(input),
		opts:  opts.normalize(),
	}
}

// Tokenize splits formula text into tokens terminated by TokenEnd
func Tokenize(input string, opts *ParseOptions) ([]Token, error) {
	l := NewLexer(input, opts)
	if err := l.opts.validate(); err != nil {
		return nil, err
	}
	return l.Tokenize()
}

// Tokenize tokenizes the entire input
func (l *Lexer) Tokenize() ([]Token, error) {
	l.pos = 0
	l.tokens = l.tokens[:0]

	if !l.opts.DisallowLeadingEquals && l.current() == charEqual {
		l.pos++
	}

	for {
		wsStart := l.pos
		l.skipWhitespace()
		if l.pos >= len(l.runes) {
			break
		}
		if l.pos > wsStart && l.isIntersection() {
			l.tokens = append(l.tokens, Token{Type: TokenIntersection, Value: " ", Pos: wsStart, End: l.pos})
		}
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tok.End = l.pos
		l.tokens = append(l.tokens, tok)
	}

	l.tokens = append(l.tokens, Token{Type: TokenEnd, Pos: len(l.runes), End: len(l.runes)})
	return l.tokens, nil
}

// isIntersection decides whether the whitespace just skipped is the
// intersection operator: it must sit between a reference-like token and
// the start of another reference, and never between a name and "(".
func (l *Lexer) isIntersection() bool {
	if len(l.tokens) == 0 {
		return false
	}
	prev := l.tokens[len(l.tokens)-1]
	if prev.Type != TokenName && prev.Type != TokenRightParen {
		return false
	}
	ch := l.current()
	if ch == charLParen {
		return prev.Type == TokenRightParen || l.isCellName(prev)
	}
	return isNameStart(ch) || ch == charApostrophe
}

// isCellName reports whether a name token reads as a cell address, which
// tells "A1 (B1:C2)" apart from a function name followed by a space
func (l *Lexer) isCellName(tok Token) bool {
	if tok.Type != TokenName || tok.Quoted {
		return false
	}
	if l.opts.ReferenceMode == AddressModeR1C1 {
		_, ok := parseR1C1Address(tok.Value)
		return ok
	}
	_, ok := parseA1Cell(tok.Value)
	return ok
}

func (l *Lexer) nextToken() (Token, error) {
	startPos := l.pos
	ch := l.current()

	// check for string literals
	if ch == charQuote {
		return l.scanString()
	}

	// quoted sheet names
	if ch == charApostrophe {
		return l.scanQuotedName()
	}

	// check for numbers
	if isDigitRune(ch) || (ch == l.opts.DecimalSeparator && isDigitRune(l.peek(1))) {
		return l.scanNumber(), nil
	}

	if ch == charHash {
		return l.scanErrorLiteral()
	}

	single := func(t TokenType) (Token, error) {
		l.pos++
		return Token{Type: t, Value: string(ch), Pos: startPos}, nil
	}

	switch ch {
	case charLParen:
		return single(TokenLeftParen)
	case charRParen:
		return single(TokenRightParen)
	case charLBrace:
		return single(TokenLeftBrace)
	case charRBrace:
		return single(TokenRightBrace)
	case charComma:
		return single(TokenComma)
	case charSemicolon:
		return single(TokenSemicolon)
	case charColon:
		return single(TokenColon)
	case charExclaim:
		return single(TokenExclamation)
	case charBackslash:
		return single(TokenBackslash)
	case charPlus, charMinus, charAsterisk, charSlash, charCaret, charAmpersand, charPercent, charEqual:
		return single(TokenOperator)
	case charLess:
		l.pos++
		if l.current() == charEqual || l.current() == charGreater {
			l.pos++
		}
		return Token{Type: TokenOperator, Value: string(l.runes[startPos:l.pos]), Pos: startPos}, nil
	case charGreater:
		l.pos++
		if l.current() == charEqual {
			l.pos++
		}
		return Token{Type: TokenOperator, Value: string(l.runes[startPos:l.pos]), Pos: startPos}, nil
	}

	// check for identifiers, functions, cells, booleans
	if isNameStart(ch) {
		return l.scanName()
	}

	// unknown character
	return Token{}, newParseError(startPos, "unexpected character %q", ch)
}

// helper methods for character navigation and classification

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charSpace || ch == charTab || ch == charNewline || ch == charReturn {
			l.pos++
		} else {
			break
		}
	}
}

func isDigitRune(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isNameStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == charUnderscore || ch == charDollar || ch == charLBracket
}

func isNameRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) ||
		ch == charUnderscore || ch == charPeriod || ch == charDollar || ch == charQuestion
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos
	var sb strings.Builder

	// scan integer part
	for isDigitRune(l.current()) {
		sb.WriteRune(l.current())
		l.pos++
	}

	// check for decimal part
	if l.current() == l.opts.DecimalSeparator && isDigitRune(l.peek(1)) {
		l.pos++
		sb.WriteByte('.')
		for isDigitRune(l.current()) {
			sb.WriteRune(l.current())
			l.pos++
		}
	} else if l.current() == l.opts.DecimalSeparator && l.opts.DecimalSeparator == charPeriod {
		// trailing "1." is still a number
		l.pos++
	}

	// check for scientific notation (e or E)
	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		exp := []rune{'E'}
		l.pos++

		// optional + or - sign
		if l.current() == charPlus || l.current() == charMinus {
			exp = append(exp, l.current())
			l.pos++
		}

		// must have at least one digit after e/E
		if !isDigitRune(l.current()) {
			l.pos = savedPos
		} else {
			for isDigitRune(l.current()) {
				exp = append(exp, l.current())
				l.pos++
			}
			sb.WriteString(string(exp))
		}
	}

	return Token{Type: TokenNumber, Value: sb.String(), Pos: startPos}
}

// scanString scans a string literal with support for double-quote escapes
func (l *Lexer) scanString() (Token, error) {
	startPos := l.pos
	l.pos++ // consume opening quote

	var sb strings.Builder
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charQuote {
			if l.peek(1) == charQuote {
				sb.WriteRune(charQuote)
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenText, Value: sb.String(), Pos: startPos}, nil
		}
		sb.WriteRune(ch)
		l.pos++
	}

	return Token{}, newParseError(startPos, "unterminated string literal")
}

// scanQuotedName scans 'sheet name' with '' as the escaped apostrophe
func (l *Lexer) scanQuotedName() (Token, error) {
	startPos := l.pos
	l.pos++

	var sb strings.Builder
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charApostrophe {
			if l.peek(1) == charApostrophe {
				sb.WriteRune(charApostrophe)
				l.pos += 2
				continue
			}
			l.pos++
			if sb.Len() == 0 {
				return Token{}, newParseError(startPos, "empty quoted name")
			}
			return Token{Type: TokenName, Value: sb.String(), Pos: startPos, Quoted: true}, nil
		}
		sb.WriteRune(ch)
		l.pos++
	}

	return Token{}, newParseError(startPos, "unterminated quoted name")
}

// scanErrorLiteral matches one of the canonical error literals
func (l *Lexer) scanErrorLiteral() (Token, error) {
	startPos := l.pos
	best := ""
	for _, text := range ErrorMapper {
		n := len([]rune(text))
		if l.pos+n > len(l.runes) || n <= len(best) {
			continue
		}
		if strings.EqualFold(string(l.runes[l.pos:l.pos+n]), text) {
			best = text
		}
	}
	if best == "" {
		return Token{}, newParseError(startPos, "unknown error literal")
	}
	l.pos += len([]rune(best))
	return Token{Type: TokenError, Value: best, Pos: startPos}, nil
}

// scanName scans identifiers, function names, cell references and
// structured references. bracketed segments are kept inside the name.
func (l *Lexer) scanName() (Token, error) {
	startPos := l.pos

scan:
	for l.pos < len(l.runes) {
		ch := l.current()
		switch {
		case ch == charLBracket:
			if err := l.scanBracket(); err != nil {
				return Token{}, err
			}
		case isNameRune(ch):
			l.pos++
		default:
			break scan
		}
	}

	value := string(l.runes[startPos:l.pos])
	upper := strings.ToUpper(value)
	if (upper == "TRUE" || upper == "FALSE") && l.current() != charLParen && l.current() != charExclaim {
		return Token{Type: TokenBoolean, Value: upper, Pos: startPos}, nil
	}
	return Token{Type: TokenName, Value: value, Pos: startPos}, nil
}

// scanBracket consumes a [...] segment that may nest one level deep
func (l *Lexer) scanBracket() error {
	startPos := l.pos
	depth := 0
	for l.pos < len(l.runes) {
		switch l.current() {
		case charLBracket:
			depth++
			if depth > 2 {
				return newParseError(l.pos, "brackets nested too deeply")
			}
		case charRBracket:
			depth--
			if depth == 0 {
				l.pos++
				return nil
			}
		}
		l.pos++
	}
	return newParseError(startPos, "unterminated bracket")
}
