package formula

import (
	"strings"
	"testing"

	"github.com/xuri/efp"
)

func tokenTypes(tokens []Token) []TokenType {
	out := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func TestLexingAndParsing(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{"=1+2", []TokenType{TokenNumber, TokenOperator, TokenNumber, TokenEnd}},
		{"=A1:B2", []TokenType{TokenName, TokenColon, TokenName, TokenEnd}},
		{`=SUM(A1,"x")`, []TokenType{TokenName, TokenLeftParen, TokenName, TokenComma, TokenText, TokenRightParen, TokenEnd}},
		{"='My Sheet'!A1", []TokenType{TokenName, TokenExclamation, TokenName, TokenEnd}},
		{"=TRUE", []TokenType{TokenBoolean, TokenEnd}},
		{"=TRUE()", []TokenType{TokenName, TokenLeftParen, TokenRightParen, TokenEnd}},
		{"=#DIV/0!", []TokenType{TokenError, TokenEnd}},
		{"=A1 B1", []TokenType{TokenName, TokenIntersection, TokenName, TokenEnd}},
		{"=1 <> 2", []TokenType{TokenNumber, TokenOperator, TokenNumber, TokenEnd}},
		{"={1;2}", []TokenType{TokenLeftBrace, TokenNumber, TokenSemicolon, TokenNumber, TokenRightBrace, TokenEnd}},
		{"=Sales[[#Headers],[Price]]", []TokenType{TokenName, TokenEnd}},
		{"=5%", []TokenType{TokenNumber, TokenOperator, TokenEnd}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := Tokenize(tt.input, nil)
			if err != nil {
				t.Fatalf("Tokenize(%q) failed: %v", tt.input, err)
			}
			got := tokenTypes(tokens)
			if len(got) != len(tt.want) {
				t.Fatalf("got tokens %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLexerTokenValues(t *testing.T) {
	tokens, err := Tokenize(`="a""b"&'It''s'!A1&1.5e3`, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{`a"b`, "&", "It's", "!", "A1", "&", "1.5E3", ""}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want))
	}
	for i, tok := range tokens {
		if tok.Value != want[i] {
			t.Errorf("token %d = %q, want %q", i, tok.Value, want[i])
		}
	}
	if !tokens[2].Quoted {
		t.Errorf("quoted sheet name should be marked")
	}
	if tokens[0].Pos != 1 || tokens[0].End != 7 {
		t.Errorf("text token spans %d..%d, want 1..7", tokens[0].Pos, tokens[0].End)
	}
}

func TestLexerDecimalComma(t *testing.T) {
	tokens, err := Tokenize("=1,5;2", &ParseOptions{DecimalSeparator: ',', ArgumentSeparator: ';'})
	if err != nil {
		t.Fatal(err)
	}
	if tokens[0].Type != TokenNumber || tokens[0].Value != "1.5" {
		t.Errorf("first token = %+v, want the number 1.5", tokens[0])
	}
	if tokens[1].Type != TokenSemicolon {
		t.Errorf("second token = %v, want a semicolon", tokens[1].Type)
	}
}

// efp is an independent tokenizer; both must agree on which functions a
// formula calls
func TestFunctionCallsMatchEFP(t *testing.T) {
	formulas := []string{
		"SUM(A1,MAX(1,2))",
		`IF(A1>0,ROUND(A1,2),"x")`,
		`LEN("a(b")+1`,
		"SUMPRODUCT((A1:A3>1)*(B1:B3))",
		"IFERROR(VLOOKUP(A1,Sheet2!A:B,2,FALSE),NA())",
		"'My Sheet'!A1+ABS(-'My Sheet'!B2)",
		"TEXTJOIN(\",\",TRUE,UPPER(A1),LOWER(B1),PROPER(C1))",
		"1+2*3",
	}

	for _, formula := range formulas {
		t.Run(formula, func(t *testing.T) {
			expr, err := Parse(formula, nil)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", formula, err)
			}
			var ours []string
			Walk(expr, func(e Expression) bool {
				if call, ok := e.(*FunctionCallExpr); ok {
					ours = append(ours, call.Name)
				}
				return true
			})

			var theirs []string
			ps := efp.ExcelParser()
			for _, tok := range ps.Parse(formula) {
				if tok.TType == efp.TokenTypeFunction && tok.TSubType == efp.TokenSubTypeStart {
					theirs = append(theirs, strings.ToUpper(tok.TValue))
				}
			}

			if strings.Join(ours, ",") != strings.Join(theirs, ",") {
				t.Errorf("function calls %v, efp found %v", ours, theirs)
			}
		})
	}
}
