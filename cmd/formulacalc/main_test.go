package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"

	"github.com/vogtb/go-formula/packages/formula"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunEval(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=1+2", "3\n"},
		{`=UPPER("abc")&"!"`, "ABC!\n"},
		{"=1/0", "#DIV/0!\n"},
		{"=SEQUENCE(1,3)", "{1,2,3}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			code, out, errOut := runCLI(t, "eval", tt.formula)
			if code != 0 {
				t.Fatalf("exit %d, stderr: %s", code, errOut)
			}
			if out != tt.want {
				t.Errorf("got %q, want %q", out, tt.want)
			}
		})
	}
}

func TestRunEvalWithSettings(t *testing.T) {
	path := writeFile(t, "settings.yaml", "decimal_separator: \",\"\nargument_separator: \";\"\ndate_system: \"1904\"\n")

	code, out, errOut := runCLI(t, "eval", "-settings", path, "=SUM(1,5;2)")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, errOut)
	}
	if out != "3.5\n" {
		t.Errorf("got %q, want 3.5", out)
	}

	code, out, _ = runCLI(t, "eval", "-settings", path, "=DATE(1904;1;2)")
	if code != 0 || out != "1\n" {
		t.Errorf("1904 date system: exit %d, output %q", code, out)
	}
}

func TestRunLint(t *testing.T) {
	code, out, _ := runCLI(t, "lint", "= sum( a1 ,2 )")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if out != "=SUM(A1,2)\n" {
		t.Errorf("got %q", out)
	}

	code, out, _ = runCLI(t, "lint", "=SUMM(1)+1")
	if code != 1 {
		t.Errorf("unknown function should exit 1, got %d", code)
	}
	if !strings.Contains(out, "unknown function SUMM, did you mean") || !strings.Contains(out, "SUM") {
		t.Errorf("missing suggestion in %q", out)
	}

	code, out, _ = runCLI(t, "lint", "=1+")
	if code != 1 {
		t.Errorf("parse error should exit 1, got %d", code)
	}
	if !strings.Contains(out, "^ missing operand") {
		t.Errorf("parse error not pointed at: %q", out)
	}
}

func TestRunWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", 2)
	f.SetCellFormula("Sheet1", "B1", "A1*2")
	f.SetCellValue("Sheet1", "C1", "end")
	f.SetCellValue("Sheet1", "A2", 5)
	f.SetCellFormula("Sheet1", "B2", "SUM(A1:A2)")
	f.SetCellValue("Sheet1", "C2", "end")
	path := filepath.Join(t.TempDir(), "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	code, out, errOut := runCLI(t, "workbook", "-sheet", "Sheet1", path)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, errOut)
	}
	want := "Sheet1!B1\t=A1*2\t4\nSheet1!B2\t=SUM(A1:A2)\t7\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}

	if code, _, _ := runCLI(t, "workbook", filepath.Join(t.TempDir(), "missing.xlsx")); code != 1 {
		t.Errorf("missing file should exit 1, got %d", code)
	}
}

func TestRunUsage(t *testing.T) {
	if code, _, errOut := runCLI(t); code != 2 || !strings.Contains(errOut, "Usage:") {
		t.Errorf("no arguments: exit %d, stderr %q", code, errOut)
	}
	if code, _, errOut := runCLI(t, "frobnicate"); code != 2 || !strings.Contains(errOut, `unknown command "frobnicate"`) {
		t.Errorf("unknown command: exit %d, stderr %q", code, errOut)
	}
	if code, _, _ := runCLI(t, "eval"); code != 2 {
		t.Errorf("missing formula should exit 2, got %d", code)
	}
	if code, out, _ := runCLI(t, "version"); code != 0 || out != version+"\n" {
		t.Errorf("version: exit %d, output %q", code, out)
	}
	if code, out, _ := runCLI(t, "help"); code != 0 || !strings.Contains(out, "formulacalc lint") {
		t.Errorf("help: exit %d", code)
	}
}

func TestConfig(t *testing.T) {
	cfg, err := loadConfig(writeFile(t, "c.yaml", `
date_system: "1904"
culture: de-DE
precision_digits: 12
max_depth: 64
reference_mode: R1C1
log_level: debug
`))
	if err != nil {
		t.Fatal(err)
	}

	s, err := cfg.settings()
	if err != nil {
		t.Fatal(err)
	}
	if s.DateSystem != formula.DateSystem1904 {
		t.Errorf("date system = %v", s.DateSystem)
	}
	if s.Culture != language.MustParse("de-DE") {
		t.Errorf("culture = %v", s.Culture)
	}
	if s.PrecisionDigits != 12 || s.MaxDepth != 64 {
		t.Errorf("precision %d, depth %d", s.PrecisionDigits, s.MaxDepth)
	}
	o, err := cfg.parseOptions()
	if err != nil {
		t.Fatal(err)
	}
	if o.ReferenceMode != formula.AddressModeR1C1 {
		t.Errorf("reference mode = %v", o.ReferenceMode)
	}
	if cfg.logLevel().String() != "DEBUG" {
		t.Errorf("log level = %v", cfg.logLevel())
	}

	empty, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if empty.logLevel().String() != "INFO" {
		t.Errorf("default log level = %v", empty.logLevel())
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config
	}{
		{"date system", config{DateSystem: "2000"}},
		{"culture", config{Culture: "not a tag!"}},
		{"reference mode", config{ReferenceMode: "xy"}},
		{"separator", config{DecimalSeparator: ",,"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, serr := tt.cfg.settings()
			_, perr := tt.cfg.parseOptions()
			if serr == nil && perr == nil {
				t.Errorf("%+v accepted", tt.cfg)
			}
		})
	}

	if _, err := loadConfig(writeFile(t, "bad.yaml", "date_system: [1900")); err == nil {
		t.Errorf("malformed yaml accepted")
	}
	path := writeFile(t, "bad.yaml", "reference_mode: xy\n")
	if code, _, _ := runCLI(t, "eval", "-settings", path, "=1"); code != 2 {
		t.Errorf("invalid settings should exit 2, got %d", code)
	}
}
