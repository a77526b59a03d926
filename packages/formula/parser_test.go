package formula

import (
	"errors"
	"strings"
	"testing"
)

func TestParserBasicFormulas(t *testing.T) {
	validFormulas := []string{
		"=1+2",
		"1+2",
		"=A1",
		"=$A$1+A$2",
		"=SUM(A1:A10)",
		"=SUM(B2:A1)",
		"=Sheet2!A1",
		"=Sheet2!A1:B2",
		"=SUM(Sheet2!A1:A10)",
		"=Sheet2!A1 + Sheet3!B1",
		"='My Sheet'!A1",
		"=Jan:Mar!A1",
		"=A:A",
		"=1:3",
		"=A1:B2 B1:C3",
		"=SUM((A1,B1))",
		"=Sales[Price]",
		"=Sales[[#Headers],[Price]]",
		"=[@Price]*2",
		"={1,2;3,4}",
		"={-1,\"a\",TRUE,#N/A}",
		`="Hello 世界"`,
		`=CONCATENATE("Hello ", "世界")`,
		"=IF(A1,,2)",
		"=_xlfn.XLOOKUP(1,A:A,B:B)",
		"=TaxRate*2",
		"=1.5E+30",
		"=.5",
	}

	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			if _, err := Parse(formula, nil); err != nil {
				t.Errorf("Failed to parse valid formula %s: %v", formula, err)
			}
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	tests := []struct {
		formula string
		offset  int
		message string
	}{
		{"", 0, "empty formula"},
		{"=", 1, "empty formula"},
		{"=1+", 2, `missing operand after "+"`},
		{"=SUM(1,2", 8, "missing ')' in call to SUM"},
		{`="abc`, 1, "unterminated string literal"},
		{"=(1+2", 5, "expected ')' to close '(' at 1"},
		{"=1 2", 3, `unexpected number "2"`},
		{"={1,2;3}", 6, "array rows must have the same number of columns"},
		{"={1,A1}", 4, "array literal elements must be constants"},
		{"={1,}", 4, "array literal elements cannot be empty"},
		{"=SUM (1)", 5, "unexpected space before '('"},
		{"=@", 1, "unexpected character '@'"},
		{"=#FOO", 1, "unknown error literal"},
		{"=Sheet1!", 8, "expected a reference after sheet name"},
		{"=Jan:Mar!Total", 9, `invalid reference "Total"`},
		{"=1+A1:", 6, "range operator requires a reference on the right"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			_, err := Parse(tt.formula, nil)
			if err == nil {
				t.Fatalf("expected %q to fail", tt.formula)
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("error %v does not wrap ErrParse", err)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error %v is not a *ParseError", err)
			}
			if perr.Offset != tt.offset {
				t.Errorf("offset = %d, want %d", perr.Offset, tt.offset)
			}
			if perr.Message != tt.message {
				t.Errorf("message = %q, want %q", perr.Message, tt.message)
			}
		})
	}
}

func TestParserPrecedence(t *testing.T) {
	expr, err := Parse("=-2^2", nil)
	if err != nil {
		t.Fatal(err)
	}
	bin, ok := expr.(*BinaryExpr)
	if !ok || bin.Op != BinOpPower {
		t.Fatalf("-2^2 parsed as %T, want a power expression", expr)
	}
	if _, ok := bin.Left.(*UnaryExpr); !ok {
		t.Errorf("-2^2 left operand is %T, want the negation", bin.Left)
	}

	expr, err = Parse("=2^3^2", nil)
	if err != nil {
		t.Fatal(err)
	}
	bin = expr.(*BinaryExpr)
	if _, ok := bin.Right.(*BinaryExpr); !ok {
		t.Errorf("2^3^2 should group to the right, got %s", Format(expr, nil))
	}

	expr, err = Parse("=1+2&3=33", nil)
	if err != nil {
		t.Fatal(err)
	}
	if bin := expr.(*BinaryExpr); bin.Op != BinOpEqual {
		t.Errorf("comparison should bind loosest, got %v at the root", bin.Op)
	}

	expr, err = Parse("=5%^2", nil)
	if err != nil {
		t.Fatal(err)
	}
	if u, ok := expr.(*BinaryExpr).Left.(*UnaryExpr); !ok || u.Op != UnaryOpPercent {
		t.Errorf("percent should bind tighter than ^")
	}
}

func TestParserFunctionCalls(t *testing.T) {
	expr, err := Parse("=_xlfn.xlookup(1,,A:A,)", nil)
	if err != nil {
		t.Fatal(err)
	}
	call, ok := expr.(*FunctionCallExpr)
	if !ok {
		t.Fatalf("got %T, want a function call", expr)
	}
	if call.Name != "XLOOKUP" {
		t.Errorf("name = %q, want XLOOKUP", call.Name)
	}
	if len(call.Args) != 4 {
		t.Fatalf("got %d arguments, want 4", len(call.Args))
	}
	for _, i := range []int{1, 3} {
		lit, ok := call.Args[i].(*LiteralExpr)
		if !ok || !lit.Value.IsBlank() {
			t.Errorf("argument %d = %v, want a blank literal", i, call.Args[i])
		}
	}

	expr, err = Parse("=NOW()", nil)
	if err != nil {
		t.Fatal(err)
	}
	if call := expr.(*FunctionCallExpr); len(call.Args) != 0 {
		t.Errorf("NOW() has %d arguments", len(call.Args))
	}
}

func TestParserReferences(t *testing.T) {
	expr, err := Parse("=Jan:Mar!B2", nil)
	if err != nil {
		t.Fatal(err)
	}
	ref, ok := expr.(*ReferenceExpr)
	if !ok {
		t.Fatalf("got %T, want a reference", expr)
	}
	if !ref.Ref.Sheet.IsRange() || ref.Ref.Sheet.First != "Jan" || ref.Ref.Sheet.Last != "Mar" {
		t.Errorf("sheet = %+v, want Jan:Mar", ref.Ref.Sheet)
	}

	expr, err = Parse("=A1:B2 B1:C3", nil)
	if err != nil {
		t.Fatal(err)
	}
	if bin, ok := expr.(*BinaryExpr); !ok || bin.Op != BinOpIntersect {
		t.Errorf("space between ranges should intersect, got %s", Format(expr, nil))
	}

	expr, err = Parse("=TaxRate", nil)
	if err != nil {
		t.Fatal(err)
	}
	if name, ok := expr.(*NameExpr); !ok || name.Name != "TaxRate" {
		t.Errorf("got %#v, want the name TaxRate", expr)
	}

	expr, err = Parse("=Sales[[#Headers],[Price]]", nil)
	if err != nil {
		t.Fatal(err)
	}
	sref, ok := expr.(*StructuredReferenceExpr)
	if !ok {
		t.Fatalf("got %T, want a structured reference", expr)
	}
	if sref.Ref.Table != "Sales" || sref.Ref.Scope != ScopeHeaders || len(sref.Ref.Columns) != 1 || sref.Ref.Columns[0] != "Price" {
		t.Errorf("got %+v", sref.Ref)
	}
}

func TestFormatCanonicalForm(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=1 + 2 * 3", "1+2*3"},
		{"=(1+2)*3", "(1+2)*3"},
		{"=((1))", "1"},
		{"=1+(2*3)", "1+2*3"},
		{"=2^3^2", "2^3^2"},
		{"=(2^3)^2", "(2^3)^2"},
		{"=1-(2-3)", "1-(2-3)"},
		{"=(1-2)-3", "1-2-3"},
		{"=-2^2", "-2^2"},
		{"=-(2^2)", "-(2^2)"},
		{"=5%", "5%"},
		{"=sum( a1:b2 , 2 )", "SUM(A1:B2,2)"},
		{"=$a$1+a$2", "$A$1+A$2"},
		{"=a:c", "A:C"},
		{"=1:3", "1:3"},
		{"='My Sheet'!A1", "'My Sheet'!A1"},
		{"=Sheet1!a1:b2", "Sheet1!A1:B2"},
		{"=Jan:Mar!A1", "Jan:Mar!A1"},
		{`="a""b"`, `"a""b"`},
		{"={1, 2; 3, 4}", "{1,2;3,4}"},
		{"={-1,+2}", "{-1,2}"},
		{"=IF(A1,,2)", "IF(A1,,2)"},
		{"=_xlfn.XLOOKUP(1,A:A,B:B)", "XLOOKUP(1,A:A,B:B)"},
		{"=SUM((A1,B1))", "SUM((A1,B1))"},
		{"=(foo) (A1,B1)", "(foo) (A1,B1)"},
		{"=(A1) (B1,C1)", "A1 (B1,C1)"},
		{"=#n/a", "#N/A"},
		{"=true", "TRUE"},
		{"=1.5E+30", "1.5E+30"},
		{"=.5", "0.5"},
		{"=Sales[Price]", "Sales[Price]"},
		{"=[@Price]*2", "[@Price]*2"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			expr, err := Parse(tt.formula, nil)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.formula, err)
			}
			if got := Format(expr, nil); got != tt.want {
				t.Errorf("Format = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	formulas := []string{
		"=1+2*3-4/5^6&\"x\"",
		"=-(1+2)%",
		"=SUM(A1:B2,Sheet2!C3,'Other Sheet'!$D$4:E5)",
		"=IF(AND(A1>0,B1<>\"\"),XLOOKUP(A1,C:C,D:D,\"none\"),NA())",
		"=SUM((A1:A3,C1:C3))",
		"=A1:C3 B2:D4",
		"={1,2;3,4}*{\"a\",TRUE;#DIV/0!,-5}",
		"=Sales[[#Headers],[Price]]",
		"=Sales[[Price]:[Total]]",
		"=COUNTA(Sales[#All])",
		"=Jan:Mar!A1+1",
		"=1.25E-10",
		"=(foo) (A1,B1)",
		"=(A:A) (B1,C1)",
		"=(Sheet1!foo) (A1:B2)",
		"=(Sheet1!foo) (A1,B1)",
		"=(Sales[Price]) (A1,A2)",
		"=A1 (B1,C1)",
	}

	for _, formula := range formulas {
		t.Run(formula, func(t *testing.T) {
			first, err := Parse(formula, nil)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", formula, err)
			}
			text := Format(first, &FormatOptions{IncludeLeadingEquals: true})
			second, err := Parse(text, nil)
			if err != nil {
				t.Fatalf("Parse(%q) of formatted text failed: %v", text, err)
			}
			if !first.Equal(second) {
				t.Errorf("%q formatted as %q, which parses to a different tree", formula, text)
			}
		})
	}
}

func TestParserLocaleSeparators(t *testing.T) {
	opts := &ParseOptions{DecimalSeparator: ',', ArgumentSeparator: ';'}
	expr, err := Parse("=SUM(1,5;2)", opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := Evaluate(expr, nil, nil); got.String() != "3.5" {
		t.Errorf("SUM(1,5;2) = %s, want 3.5", got)
	}
	format := &FormatOptions{DecimalSeparator: ',', ArgumentSeparator: ';'}
	if got := Format(expr, format); got != "SUM(1,5;2)" {
		t.Errorf("Format = %q, want SUM(1,5;2)", got)
	}

	expr, err = Parse(`={1\2;3\4}`, opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := Evaluate(expr, nil, nil); got.String() != "{1,2;3,4}" {
		t.Errorf("array = %s, want {1,2;3,4}", got)
	}
	if got := Format(expr, format); got != `{1\2;3\4}` {
		t.Errorf("Format = %q", got)
	}

	_, err = Parse("=1", &ParseOptions{DecimalSeparator: ',', ArgumentSeparator: ','})
	if !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("matching separators should be rejected, got %v", err)
	}
}

func TestParserLimits(t *testing.T) {
	deep := strings.Repeat("(", 50) + "1" + strings.Repeat(")", 50)
	if _, err := Parse(deep, &ParseOptions{MaxDepth: 20}); !errors.Is(err, ErrTooDeep) {
		t.Errorf("expected ErrTooDeep, got %v", err)
	}
	if _, err := Parse(deep, nil); err != nil {
		t.Errorf("default depth should accept 50 levels: %v", err)
	}

	if _, err := Parse("=1", &ParseOptions{DisallowLeadingEquals: true}); err == nil {
		t.Errorf("leading '=' should be rejected when disallowed")
	}

	longest := `="` + strings.Repeat("x", MaxFormulaLength-2) + `"`
	if _, err := Parse(longest, nil); err != nil {
		t.Errorf("formula of %d characters rejected: %v", MaxFormulaLength, err)
	}
	var perr *ParseError
	_, err := Parse(`="`+strings.Repeat("x", MaxFormulaLength-1)+`"`, nil)
	if !errors.As(err, &perr) || perr.Offset != MaxFormulaLength+1 {
		t.Errorf("over-long formula: got %v", err)
	}
}

func TestParserR1C1(t *testing.T) {
	opts := &ParseOptions{ReferenceMode: AddressModeR1C1}
	expr, err := Parse("=R1C1+R[1]C[-1]", opts)
	if err != nil {
		t.Fatal(err)
	}
	var refs []Reference
	Walk(expr, func(e Expression) bool {
		if r, ok := e.(*ReferenceExpr); ok {
			refs = append(refs, r.Ref)
		}
		return true
	})
	if len(refs) != 2 {
		t.Fatalf("found %d references, want 2", len(refs))
	}
	if got := refs[1].String(); got != "R[1]C[-1]" {
		t.Errorf("relative reference = %q, want R[1]C[-1]", got)
	}
}
