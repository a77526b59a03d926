package formula

import (
	"math"
	"strconv"
	"testing"
	"time"

	"golang.org/x/text/language"
)

// evalFormula parses and evaluates text without a workbook
func evalFormula(t *testing.T, text string) Value {
	t.Helper()
	expr, err := Parse(text, nil)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	return Evaluate(expr, nil, nil)
}

type evalCase struct {
	formula string
	want    string
}

func runEvalCases(t *testing.T, cases []evalCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.formula, func(t *testing.T) {
			if got := evalFormula(t, tc.formula); got.String() != tc.want {
				t.Errorf("%s = %s, want %s", tc.formula, got, tc.want)
			}
		})
	}
}

// assertNear checks a numeric result within tol
func assertNear(t *testing.T, formula string, want, tol float64) {
	t.Helper()
	got := evalFormula(t, formula)
	if !got.IsNumber() || math.Abs(got.Num()-want) > tol {
		t.Errorf("%s = %v, want %v", formula, got, want)
	}
}

func TestBinaryOperators(t *testing.T) {
	runEvalCases(t, []evalCase{
		{"=1+2*3", "7"},
		{"=(1+2)*3", "9"},
		{"=2^3^2", "512"},
		{"=-2^2", "4"},
		{"=-(2^2)", "-4"},
		{"=10-4-3", "3"},
		{"=12/3/2", "2"},
		{"=5%", "0.05"},
		{"=2*50%", "1"},
		{"=0.1+0.2", "0.3"},
		{`="a"&"b"`, "ab"},
		{"=1&2", "12"},
		{`="1"+1`, "2"},
		{`="x"+1`, "#VALUE!"},
		{"=1/0", "#DIV/0!"},
		{"=1=1", "TRUE"},
		{`="a"="A"`, "TRUE"},
		{`="a"<"b"`, "TRUE"},
		{`=1<"a"`, "TRUE"},
		{"=TRUE>1", "TRUE"},
		{"=2<>2", "FALSE"},
		{"=1+2&3", "33"},
		{"=1+2>2", "TRUE"},
	})
}

func TestUnaryOperators(t *testing.T) {
	runEvalCases(t, []evalCase{
		{"=-1", "-1"},
		{"=--1", "1"},
		{"=+5", "5"},
		{`=-"2"`, "-2"},
		{"=-TRUE", "-1"},
		{"=-#N/A", "#N/A"},
	})
}

func TestErrorPropagation(t *testing.T) {
	runEvalCases(t, []evalCase{
		{"=SUM(1,#REF!,2)", "#REF!"},
		{"=IFERROR(1/0,99)", "99"},
		{"=IFERROR(5,99)", "5"},
		{"=IFNA(NA(),1)", "1"},
		{"=IFNA(1/0,1)", "#DIV/0!"},
		{"=#N/A+1", "#N/A"},
		{"=1/0+#N/A", "#DIV/0!"},
		{"=ERROR.TYPE(1/0)", "2"},
		{"=ERROR.TYPE(1)", "#N/A"},
		{"=ISERROR(1/0)", "TRUE"},
		{"=ISNA(#N/A)", "TRUE"},
		{"=ISERR(#N/A)", "FALSE"},
		{"=A1", "#REF!"},
		{"=NOSUCHFUNCTION(1)", "#NAME?"},
		{"=ABS()", "#VALUE!"},
		{"=ABS(1,2)", "#VALUE!"},
		{"=Missing", "#NAME?"},
		{"=IFERROR({1,#N/A},{10,20})", "{1,20}"},
		{"=IFERROR(1/{0;1;0},{7,8})", "{7;1;7}"},
		{"=IFERROR(1/{0,0},5)", "{5,5}"},
		{"=IFNA({#N/A,#N/A,#N/A},{1,2})", "{1,2,#N/A}"},
		{"=IFNA({#N/A,#DIV/0!},{1;2})", "{1,#DIV/0!}"},
	})
}

func TestArrayBroadcasting(t *testing.T) {
	runEvalCases(t, []evalCase{
		{"={1,2,3}+{10,20,30}", "{11,22,33}"},
		{"={1,2}+{1,2,3}", "#VALUE!"},
		{"={1;2}*10", "{10;20}"},
		{"=10-{1,2}", "{9,8}"},
		{"={1,2}={1,3}", "{TRUE,FALSE}"},
		{"={1,0}/{1,0}", "{1,#DIV/0!}"},
		{`={"a","b"}&"!"`, `{"a!","b!"}`},
		{"=-{1,-2}", "{-1,2}"},
		{"={4}+1", "5"},
		{"=SUM({1,2;3,4}*2)", "20"},
	})
}

func TestAggregationFunctions(t *testing.T) {
	runEvalCases(t, []evalCase{
		{"=SUM(1,2,3,4,5)", "15"},
		{"=SUM({1,2,3})", "6"},
		{`=SUM({1,"a",TRUE})`, "1"},
		{`=SUM("2",TRUE)`, "3"},
		{`=SUM("x")`, "#VALUE!"},
		{"=SUM(4,5,6,1/0)", "#DIV/0!"},
		{"=AVERAGE(1,2,3)", "2"},
		{`=AVERAGE({1,"a",3})`, "2"},
		{`=AVERAGEA({1,"a",3})`, "1.33333333333333"},
		{"=COUNT(1,2,3)", "3"},
		{`=COUNT({1,"a",TRUE})`, "1"},
		{`=COUNTA({1,"a",TRUE})`, "3"},
		{"=MIN(3,1,2)", "1"},
		{"=MAX(3,1,2)", "3"},
		{"=MEDIAN(1,3,2,4)", "2.5"},
		{"=MODE(1,2,2,3,3)", "2"},
		{"=LARGE({5,1,9,3},2)", "5"},
		{"=SMALL({5,1,9,3},2)", "3"},
		{"=PRODUCT(2,3,4)", "24"},
		{"=SUMSQ(3,4)", "25"},
		{"=SUMPRODUCT({1,2},{3,4})", "11"},
		{"=SUMPRODUCT({1,2},{3,4,5})", "#VALUE!"},
		{"=VARP(2,4,4,4,5,5,7,9)", "4"},
		{"=STDEVP(2,4,4,4,5,5,7,9)", "2"},
		{"=STDEV(1)", "#DIV/0!"},
	})
}

func TestCriteriaFunctions(t *testing.T) {
	runEvalCases(t, []evalCase{
		{`=COUNTIF({"cat","dog","car"},"ca*")`, "2"},
		{`=COUNTIF({"cat","dog","car"},"?og")`, "1"},
		{`=COUNTIF({1,5,10},">4")`, "2"},
		{`=COUNTIF({1,5,10},"<>5")`, "2"},
		{`=COUNTIF({1,"1",2},1)`, "2"},
		{`=SUMIF({1,5,10},">=5")`, "15"},
		{`=SUMIF({"a","b","a"},"a",{1,2,3})`, "4"},
		{`=AVERAGEIF({1,5,10},">1")`, "7.5"},
		{`=AVERAGEIF({1,5,10},">100")`, "#DIV/0!"},
		{`=COUNTIFS({1,2,3},">1",{"x","y","x"},"x")`, "1"},
		{`=SUMIFS({10,20,30},{1,2,3},">1",{"x","y","x"},"x")`, "30"},
		{`=MAXIFS({10,20,30},{"a","b","a"},"a")`, "30"},
		{`=MINIFS({10,20,30},{"a","b","a"},"a")`, "10"},
	})
}

func TestMathFunctions(t *testing.T) {
	runEvalCases(t, []evalCase{
		{"=ROUND(2.005,2)", "2.01"},
		{"=ROUND(-2.5,0)", "-3"},
		{"=ROUND(1234.5678,-2)", "1200"},
		{"=ROUND(5,-400)", "0"},
		{"=ROUND(-5,-400)", "0"},
		{"=ROUNDDOWN(123,-400)", "0"},
		{"=ROUND(1.005,2)", "1.01"},
		{"=ROUNDUP(1.21,1)", "1.3"},
		{"=ROUNDDOWN(-1.29,1)", "-1.2"},
		{"=TRUNC(-1.5)", "-1"},
		{"=INT(-1.5)", "-2"},
		{"=MOD(-3,2)", "1"},
		{"=MOD(3,-2)", "-1"},
		{"=MOD(5,0)", "#DIV/0!"},
		{"=QUOTIENT(7,2)", "3"},
		{"=ABS(-2)", "2"},
		{"=SIGN(-0.5)", "-1"},
		{"=SQRT(16)", "4"},
		{"=SQRT(-1)", "#NUM!"},
		{"=POWER(2,10)", "1024"},
		{"=LN(0)", "#NUM!"},
		{"=LOG(1000)", "3"},
		{"=LOG(8,2)", "3"},
		{"=FACT(5)", "120"},
		{"=FLOOR(2.7)", "2"},
		{"=CEILING(2.1)", "3"},
		{"=CEILING(7,5)", "10"},
		{"=MROUND(10,3)", "9"},
		{"=ABS({-1,2})", "{1,2}"},
	})
}

func TestLogicalFunctions(t *testing.T) {
	runEvalCases(t, []evalCase{
		{"=IF(TRUE,1,2)", "1"},
		{"=IF(FALSE,1,2)", "2"},
		{"=IF(FALSE,1)", "FALSE"},
		{"=IF(TRUE,,2)", "0"},
		{"=IF(TRUE,1,1/0)", "1"},
		{`=IF("x",1,2)`, "#VALUE!"},
		{"=IF({TRUE,FALSE},1,2)", "{1,2}"},
		{"=AND(TRUE,FALSE)", "FALSE"},
		{"=AND(TRUE,1)", "TRUE"},
		{"=OR(FALSE,0)", "FALSE"},
		{"=OR(FALSE,1)", "TRUE"},
		{"=XOR(TRUE,TRUE)", "FALSE"},
		{"=XOR(TRUE,FALSE)", "TRUE"},
		{"=NOT(0)", "TRUE"},
		{"=IFS(FALSE,1,TRUE,2)", "2"},
		{"=IFS(FALSE,1)", "#N/A"},
		{`=SWITCH(2,1,"a",2,"b")`, "b"},
		{`=SWITCH(3,1,"a",2,"b","z")`, "z"},
		{`=SWITCH(3,1,"a",2,"b")`, "#N/A"},
		{`=CHOOSE(2,"a","b","c")`, "b"},
		{`=CHOOSE(4,"a","b","c")`, "#VALUE!"},
		{"=TRUE()", "TRUE"},
	})
}

func TestTextFunctions(t *testing.T) {
	runEvalCases(t, []evalCase{
		{`=LEN("héllo")`, "5"},
		{`=UPPER("abc")`, "ABC"},
		{`=LOWER("ABC")`, "abc"},
		{`=PROPER("hello wORLD")`, "Hello World"},
		{`=LEFT("hello",2)`, "he"},
		{`=LEFT("hello")`, "h"},
		{`=RIGHT("hello",3)`, "llo"},
		{`=MID("hello",2,3)`, "ell"},
		{`=MID("hello",10,3)`, ""},
		{`=LEFT({"ab","cd"},1)`, `{"a","c"}`},
		{`=RIGHT("hello",{1;2})`, `{"o";"lo"}`},
		{`=MID({"abc","xyz"},{1,2},2)`, `{"ab","yz"}`},
		{`=LEFT({"ab",#N/A},1)`, `{"a",#N/A}`},
		{`=LEFT({"ab","cd","ef"},{1,2})`, `{"a","cd",#N/A}`},
		{`=TRIM("  a   b ")`, "a b"},
		{`=FIND("l","hello")`, "3"},
		{`=FIND("L","hello")`, "#VALUE!"},
		{`=SEARCH("L","hello")`, "3"},
		{`=SEARCH("h?l","ahello")`, "2"},
		{`=SUBSTITUTE("a-b-c","-","+")`, "a+b+c"},
		{`=SUBSTITUTE("a-b-c","-","+",2)`, "a-b+c"},
		{`=REPLACE("abcdef",2,3,"X")`, "aXef"},
		{`=REPT("ab",3)`, "ababab"},
		{`=EXACT("a","A")`, "FALSE"},
		{`=CONCATENATE("a",1,TRUE)`, "a1TRUE"},
		{`=CONCAT({"a","b"},"c")`, "abc"},
		{`=TEXTJOIN(",",TRUE,"a","","b")`, "a,b"},
		{`=TEXTJOIN("-",FALSE,{"a","","b"})`, "a--b"},
		{`=VALUE("1,234.5")`, "1234.5"},
		{`=VALUE("abc")`, "#VALUE!"},
		{`=CHAR(65)`, "A"},
		{`=CODE("A")`, "65"},
		{`=CHAR(0)`, "#VALUE!"},
		{`=TEXT(1234.5,"#,##0.00")`, "1,234.50"},
		{`=TEXT(0.256,"0.0%")`, "25.6%"},
		{`=TEXT(3.14159,"0.00")`, "3.14"},
		{`=TEXT(45366,"yyyy-mm-dd")`, "2024-03-15"},
		{`=TEXT("abc","0.00")`, "abc"},
		{`=FIXED(1234.567,1)`, "1,234.6"},
		{`=FIXED(1234.567,1,TRUE)`, "1234.6"},
		{`=DOLLAR(1234.567,2)`, "$1,234.57"},
		{`=DOLLAR(1234.567)`, "$1,234.57"},
		{`=DOLLAR(-1234.567,1)`, "($1,234.6)"},
		{`=DOLLAR(1250,-2)`, "$1,300"},
		{`=DOLLAR("x")`, "#VALUE!"},
	})

	t.Run("culture currency", func(t *testing.T) {
		for culture, want := range map[string]string{
			"en-US": "$1,234.57",
			"en":    "$1,234.57",
		} {
			expr, err := Parse("DOLLAR(1234.567,2)", nil)
			if err != nil {
				t.Fatal(err)
			}
			ctx := &EvaluationContext{Workbook: &WorkbookContext{Settings: CalculationSettings{Culture: language.MustParse(culture)}}}
			if got := Evaluate(expr, ctx, nil); got.String() != want {
				t.Errorf("DOLLAR under %s = %s, want %s", culture, got, want)
			}
		}
	})
}

func TestDateTimeFunctions(t *testing.T) {
	runEvalCases(t, []evalCase{
		{"=DATE(1900,2,29)", "60"},
		{"=DATE(1900,2,28)", "59"},
		{"=DATE(1900,3,1)", "61"},
		{"=DATE(2024,3,15)", "45366"},
		{"=DATE(2024,13,1)", "45658"},
		{"=DATE(2024,1,0)", "45291"},
		{"=YEAR(45366)", "2024"},
		{"=MONTH(45366)", "3"},
		{"=DAY(45366)", "15"},
		{"=DAY(60)", "29"},
		{"=TIME(12,0,0)", "0.5"},
		{"=HOUR(0.75)", "18"},
		{"=WEEKDAY(45366)", "6"},
		{"=WEEKDAY(45366,2)", "5"},
		{"=EDATE(45322,1)", "45351"},
		{"=EOMONTH(45366,0)", "45382"},
		{"=DAYS(45366,45292)", "74"},
		{"=YEAR(-1)", "#NUM!"},
		{"=DATEVALUE(\"2024-03-15\")", "45366"},
		{"=DATEVALUE(\"15 Mar 2024\")", "45366"},
		{"=DATEVALUE(\"2024-03-15 18:00\")", "45366"},
		{"=DATEVALUE(\"someday\")", "#VALUE!"},
		{"=DATEVALUE(45366)", "#VALUE!"},
		{"=WORKDAY(45296,1)", "45299"},
		{"=WORKDAY(45299,-1)", "45296"},
		{"=WORKDAY(45296,5)", "45303"},
		{"=WORKDAY(45296,5,{45299})", "45306"},
		{"=WORKDAY(\"2024-01-05\",1)", "45299"},
		{"=WORKDAY(45296,0)", "45296"},
		{"=NETWORKDAYS(45292,45322)", "23"},
		{"=NETWORKDAYS(45322,45292)", "-23"},
		{"=NETWORKDAYS(45292,45322,{45292,45306})", "21"},
		{"=NETWORKDAYS(45292,45322,45297)", "23"},
		{"=NETWORKDAYS(45292,45322,\"x\")", "#VALUE!"},
	})

	t.Run("1904", func(t *testing.T) {
		expr, err := Parse("DATE(1904,1,2)", nil)
		if err != nil {
			t.Fatal(err)
		}
		ctx := &EvaluationContext{Workbook: &WorkbookContext{Settings: CalculationSettings{DateSystem: DateSystem1904}}}
		if got := Evaluate(expr, ctx, nil); got.String() != "1" {
			t.Errorf("DATE(1904,1,2) = %s under 1904, want 1", got)
		}
	})
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func TestVolatileFunctions(t *testing.T) {
	ev := NewEvaluator(WithClock(fixedClock(time.Date(2024, time.March, 15, 18, 0, 0, 0, time.UTC))))
	for formula, want := range map[string]string{
		"TODAY()": "45366",
		"NOW()":   "45366.75",
	} {
		expr, err := Parse(formula, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := ev.Evaluate(expr, nil, nil); got.String() != want {
			t.Errorf("%s = %s, want %s", formula, got, want)
		}
	}

	for _, name := range []string{"RAND", "NOW", "TODAY", "OFFSET", "INDIRECT"} {
		fn, ok := DefaultRegistry().TryGetFunction(name)
		if !ok || !fn.IsVolatile() {
			t.Errorf("%s should be volatile", name)
		}
	}
	if fn, _ := DefaultRegistry().TryGetFunction("SUM"); fn.IsVolatile() {
		t.Errorf("SUM should not be volatile")
	}

	seeded := NewEvaluator(WithRandom(NewSeededRandomGenerator(42)))
	expr, _ := Parse("RANDBETWEEN(1,6)", nil)
	for range 50 {
		v := seeded.Evaluate(expr, nil, nil)
		if n := v.Num(); n < 1 || n > 6 || n != math.Trunc(n) {
			t.Fatalf("RANDBETWEEN(1,6) = %v", v)
		}
	}
}

func TestFinancialFunctions(t *testing.T) {
	runEvalCases(t, []evalCase{
		{"=PV(0,12,-100,0)", "1200"},
		{"=FV(0,10,-10)", "100"},
		{"=PMT(0,10,1000)", "-100"},
		{"=NPER(0,-100,1000)", "10"},
		{"=PMT(0.1,0,1000)", "#NUM!"},
		{"=IRR({100,200})", "#NUM!"},
	})
	assertNear(t, "=PMT(0.1/12,12,1000)", -87.91588723, 1e-8)
	assertNear(t, "=PV(0.05,10,-100)", 772.1734929, 1e-6)
	assertNear(t, "=FV(0.05,10,-100)", 1257.789254, 1e-6)
	assertNear(t, "=NPV(0.1,100,100)", 173.5537190, 1e-6)
	assertNear(t, "=IRR({-100,110})", 0.1, 1e-9)
	assertNear(t, "=RATE(10,-100,772.1734929)", 0.05, 1e-7)
	assertNear(t, "=NPER(0.05,-100,772.1734929)", 10, 1e-6)
}

func TestLookupFunctions(t *testing.T) {
	runEvalCases(t, []evalCase{
		{`=VLOOKUP(3,{1,"a";2,"b";3,"c"},2,FALSE)`, "c"},
		{`=VLOOKUP(4,{1,"a";2,"b";3,"c"},2,FALSE)`, "#N/A"},
		{`=VLOOKUP(2.5,{1,"a";2,"b";3,"c"},2)`, "b"},
		{`=VLOOKUP(3,{1,"a";2,"b";3,"c"},3,FALSE)`, "#REF!"},
		{`=VLOOKUP("B*",{"apple",1;"banana",2},2,FALSE)`, "2"},
		{`=HLOOKUP(2,{1,2,3;"a","b","c"},2,FALSE)`, "b"},
		{`=MATCH(2,{1,2,3},0)`, "2"},
		{`=MATCH(2.5,{1,2,3})`, "2"},
		{`=MATCH(2.5,{3,2,1},-1)`, "1"},
		{`=MATCH("x",{"a","b"},0)`, "#N/A"},
		{`=INDEX({1,2;3,4},2,1)`, "3"},
		{`=INDEX({1,2,3},2)`, "2"},
		{`=INDEX({1,2;3,4},0,2)`, "{2;4}"},
		{`=INDEX({1,2;3,4},3,1)`, "#REF!"},
		{`=XLOOKUP("b",{"a","b"},{1,2})`, "2"},
		{`=XLOOKUP("z",{"a","b"},{1,2},"none")`, "none"},
		{`=XLOOKUP("z",{"a","b"},{1,2})`, "#N/A"},
		{`=_xlfn.XLOOKUP("a",{"a","b"},{1,2})`, "1"},
		{`=XMATCH(3,{1,2,3})`, "3"},
		{`=ROWS({1,2;3,4;5,6})`, "3"},
		{`=COLUMNS({1,2;3,4;5,6})`, "2"},
		{`=TRANSPOSE({1,2,3})`, "{1;2;3}"},
	})
}

func TestDynamicArrayFunctions(t *testing.T) {
	runEvalCases(t, []evalCase{
		{"=FILTER({1;2;3},{TRUE;FALSE;TRUE})", "{1;3}"},
		{"=FILTER({1;2;3},{FALSE;FALSE;FALSE})", "#CALC!"},
		{`=FILTER({1;2;3},{FALSE;FALSE;FALSE},"none")`, "none"},
		{"=FILTER({1,2,3},{TRUE,FALSE,TRUE})", "{1,3}"},
		{"=FILTER({1;2;3},{TRUE;FALSE})", "#VALUE!"},
		{"=SORT({3;1;2})", "{1;2;3}"},
		{"=SORT({3;1;2},1,-1)", "{3;2;1}"},
		{`=SORT({2,"b";1,"a"},2)`, `{1,"a";2,"b"}`},
		{"=SORT({1;2},1,2)", "#VALUE!"},
		{"=SORT({3;#N/A;1})", "{1;3;#N/A}"},
		{"=SORT({3;#N/A;1},1,-1)", "{3;1;#N/A}"},
		{"=SORT({#DIV/0!;2;#N/A},1,-1)", "{2;#DIV/0!;#N/A}"},
		{"=UNIQUE({1;2;1})", "{1;2}"},
		{"=UNIQUE({1;2;1},FALSE,TRUE)", "{2}"},
		{"=UNIQUE({1;1},FALSE,TRUE)", "#CALC!"},
		{"=SEQUENCE(2,2)", "{1,2;3,4}"},
		{"=SEQUENCE(3,1,10,-2)", "{10;8;6}"},
		{"=SEQUENCE(0)", "#CALC!"},
		{"=SEQUENCE(2000000,20)", "#NUM!"},
		{"=SEQUENCE(1048576,5)", "#NUM!"},
	})
}

func TestInformationFunctions(t *testing.T) {
	runEvalCases(t, []evalCase{
		{"=ISNUMBER(1)", "TRUE"},
		{`=ISNUMBER("1")`, "FALSE"},
		{`=ISTEXT("a")`, "TRUE"},
		{"=ISLOGICAL(FALSE)", "TRUE"},
		{"=ISEVEN(4)", "TRUE"},
		{"=ISODD(4)", "FALSE"},
		{"=TYPE(1)", "1"},
		{`=TYPE("a")`, "2"},
		{"=TYPE(TRUE)", "4"},
		{"=TYPE(#N/A)", "16"},
		{"=TYPE({1,2})", "64"},
		{"=N(TRUE)", "1"},
		{`=N("a")`, "0"},
		{"=NA()", "#N/A"},
	})
}

func TestMaxEvaluationDepth(t *testing.T) {
	text := "1"
	for range 40 {
		text = "ABS(" + text + ")"
	}
	expr, err := Parse(text, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := NewEvaluator(WithMaxDepth(10)).Evaluate(expr, nil, nil); !got.IsError() || got.Code() != ErrorCodeNum {
		t.Errorf("deep formula = %v, want #NUM!", got)
	}
	if got := NewEvaluator().Evaluate(expr, nil, nil); got.String() != "1" {
		t.Errorf("deep formula = %v, want 1", got)
	}
}

func TestImplicitIntersection(t *testing.T) {
	wb := NewWorkbook(nil)
	if err := wb.AddWorksheet("Sheet1"); err != nil {
		t.Fatal(err)
	}
	for row := 1; row <= 3; row++ {
		if err := wb.Set("A"+strconv.Itoa(row), row*10); err != nil {
			t.Fatal(err)
		}
	}
	expr, err := Parse("A1:A3", nil)
	if err != nil {
		t.Fatal(err)
	}

	wb.mu.Lock()
	defer wb.mu.Unlock()
	s := wb.newCalculation()
	ws, _ := wb.sheet("Sheet1")

	ctx := s.context(ws, 2, 3)
	ctx.ImplicitIntersection = true
	if got := wb.evaluator.Evaluate(expr, ctx, s); got.String() != "20" {
		t.Errorf("A1:A3 at C2 = %s, want 20", got)
	}
	ctx = s.context(ws, 5, 3)
	ctx.ImplicitIntersection = true
	if got := wb.evaluator.Evaluate(expr, ctx, s); got.String() != "#VALUE!" {
		t.Errorf("A1:A3 at C5 = %s, want #VALUE!", got)
	}
	ctx.ImplicitIntersection = false
	if got := wb.evaluator.Evaluate(expr, ctx, s); got.String() != "{10;20;30}" {
		t.Errorf("A1:A3 at C5 = %s, want {10;20;30}", got)
	}
}
